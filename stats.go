package rtvoice

import (
	"log/slog"
	"time"
)

// statsLoop periodically logs how much audio flowed in both directions.
func (s *Session) statsLoop(every time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			up, upTotal := s.observer.Up.Swap()
			down, downTotal := s.observer.Down.Swap()
			s.logger.Info(
				"audio stats",
				slog.Int64("up_samples", up),
				slog.Int64("up_total", upTotal),
				slog.Int64("down_samples", down),
				slog.Int64("down_total", downTotal),
			)
		}
	}
}
