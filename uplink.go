package rtvoice

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/babelforce/rtvoice-go/audio"
	"github.com/babelforce/rtvoice-go/config"
)

// OpenCapture acquires the microphone of p. Failures are media stage errors.
func OpenCapture(ctx context.Context, p OpenParams) (audio.Capture, error) {
	if p.Source == nil {
		return nil, NewConnectError(StageMedia, errors.New("no microphone configured"))
	}
	capture, err := p.Source.Open(ctx)
	if err != nil {
		return nil, NewConnectError(StageMedia, err)
	}
	return capture, nil
}

// Uplink reads the capture in frames of p.Config.UplinkFrame, converts them to
// the input sample rate and hands them to send. It returns nil when ctx is
// done or the capture reached its end.
func Uplink(ctx context.Context, capture audio.Capture, p OpenParams, send func(context.Context, audio.Chunk) error) error {
	frame := config.DefaultUplinkFrame
	rate := capture.SampleRate()
	if p.Config != nil {
		if p.Config.UplinkFrame > 0 {
			frame = p.Config.UplinkFrame
		}
		if p.Config.InputSampleRate > 0 {
			rate = p.Config.InputSampleRate
		}
	}

	buf := make([]float32, max(1, capture.SampleRate()*int(frame/time.Millisecond)/1000))
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := capture.Read(buf)
		if n > 0 {
			samples := make([]float32, n)
			copy(samples, buf[:n])
			c := audio.ResampleChunk(audio.NewChunk(samples, capture.SampleRate()), rate)
			if p.Observer != nil {
				p.Observer.Up.Add(c.Len())
			}
			if serr := send(ctx, c); serr != nil {
				if ctx.Err() != nil {
					return nil
				}
				return serr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
