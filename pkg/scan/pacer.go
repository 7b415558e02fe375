package scan

import "time"

// DefaultRefreshHz approximates a display refresh rate.
const DefaultRefreshHz = 60

// Pacer delivers presentation ticks to the sampling loop.
type Pacer interface {
	C() <-chan time.Time
	Stop()
}

type tickerPacer struct {
	t *time.Ticker
}

// NewRefreshPacer ticks hz times per second.
func NewRefreshPacer(hz int) Pacer {
	if hz <= 0 {
		hz = DefaultRefreshHz
	}
	return &tickerPacer{t: time.NewTicker(time.Second / time.Duration(hz))}
}

func (p *tickerPacer) C() <-chan time.Time { return p.t.C }

func (p *tickerPacer) Stop() { p.t.Stop() }
