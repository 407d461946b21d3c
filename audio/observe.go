package audio

import "sync/atomic"

// Meter counts samples flowing through one direction of a session.
type Meter struct {
	n     atomic.Int64
	total atomic.Int64
}

// Add records n samples.
func (m *Meter) Add(n int) {
	m.n.Add(int64(n))
	m.total.Add(int64(n))
}

// Swap returns the samples recorded since the previous Swap and the total.
func (m *Meter) Swap() (interval int64, total int64) {
	return m.n.Swap(0), m.total.Load()
}

// Observer holds the uplink and downlink meters of a session.
type Observer struct {
	Up   Meter
	Down Meter
}
