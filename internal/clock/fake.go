// ABOUTME: Deterministic Clock for tests driven by explicit Advance calls
// ABOUTME: Tracks live tickers so tests can assert that loops released them

package clock

import (
	"sync"
	"time"
)

// Fake is a Clock whose time only moves when Advance is called.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	ch       chan time.Time
	interval time.Duration
	next     time.Time
	stopped  bool
}

// NewFake returns a Fake clock starting at the given time.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker that fires as Advance crosses its deadlines.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	ft := &fakeTicker{
		ch:       make(chan time.Time, 1),
		interval: d,
		next:     f.now.Add(d),
	}
	f.tickers = append(f.tickers, ft)

	return &Ticker{
		C: ft.ch,
		stopFunc: func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			ft.stopped = true
		},
	}
}

// Advance moves time forward by d, firing every ticker deadline crossed on
// the way in chronological order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	target := f.now.Add(d)
	for {
		var due *fakeTicker
		for _, ft := range f.tickers {
			if ft.stopped || ft.next.After(target) {
				continue
			}
			if due == nil || ft.next.Before(due.next) {
				due = ft
			}
		}
		if due == nil {
			break
		}

		f.now = due.next
		select {
		case due.ch <- f.now:
		default:
		}
		due.next = due.next.Add(due.interval)
	}
	f.now = target
}

// ActiveTickers reports how many tickers have been created and not stopped.
func (f *Fake) ActiveTickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, ft := range f.tickers {
		if !ft.stopped {
			n++
		}
	}
	return n
}
