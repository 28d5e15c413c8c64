// ABOUTME: Clock abstraction so interval-driven code can run against fake time in tests
// ABOUTME: Real() wraps the time package; NewFake() advances only when told to

package clock

import "time"

// Clock is the subset of the time package used by long-lived loops.
type Clock interface {
	Now() time.Time

	// NewTicker returns a Ticker delivering ticks every d. Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called. C has capacity 1; ticks are
// dropped when the consumer falls behind, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. It does not close C.
func (t *Ticker) Stop() { t.stopFunc() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stopFunc: t.Stop}
}
