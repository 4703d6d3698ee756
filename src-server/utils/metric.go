package utils

import "time"

// Latency samples in microseconds, drained by the metric package.
type Metric struct {
	CounterFileRead    chan float64
	CounterFileWrite   chan float64
	DatabaseRead       chan float64
	DatabaseWrite      chan float64
	DiscordSendMessage chan float64
}

func NewMetric() *Metric {
	return &Metric{
		CounterFileRead:    make(chan float64, 16),
		CounterFileWrite:   make(chan float64, 16),
		DatabaseRead:       make(chan float64, 16),
		DatabaseWrite:      make(chan float64, 16),
		DiscordSendMessage: make(chan float64, 16),
	}
}

// Push records the time elapsed since startTimer.
// The sample is dropped when nobody is collecting.
func (m *Metric) Push(ch chan float64, startTimer time.Time) {
	m.PushDuration(ch, time.Since(startTimer))
}

func (m *Metric) PushDuration(ch chan float64, d time.Duration) {
	if m == nil {
		return
	}
	select {
	case ch <- float64(d.Microseconds()):
	default:
	}
}
