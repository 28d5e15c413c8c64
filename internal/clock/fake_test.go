// ABOUTME: Tests for the fake clock used by ticker-driven loops
// ABOUTME: Covers tick delivery order, drop-on-full semantics, and Stop accounting

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresDueTickers(t *testing.T) {
	f := NewFake(epoch)
	fast := f.NewTicker(2 * time.Second)
	slow := f.NewTicker(15 * time.Second)

	f.Advance(2 * time.Second)

	select {
	case got := <-fast.C:
		if !got.Equal(epoch.Add(2 * time.Second)) {
			t.Errorf("fast tick at %v, want %v", got, epoch.Add(2*time.Second))
		}
	default:
		t.Fatal("expected fast ticker to fire")
	}

	select {
	case <-slow.C:
		t.Fatal("slow ticker fired early")
	default:
	}

	f.Advance(13 * time.Second)
	select {
	case <-slow.C:
	default:
		t.Fatal("expected slow ticker to fire at 15s")
	}
}

func TestFake_DropsTicksWhenConsumerLags(t *testing.T) {
	f := NewFake(epoch)
	tk := f.NewTicker(time.Second)

	f.Advance(5 * time.Second)

	<-tk.C
	select {
	case <-tk.C:
		t.Fatal("expected buffered ticks beyond capacity to be dropped")
	default:
	}

	if got := f.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Errorf("Now() = %v, want %v", got, epoch.Add(5*time.Second))
	}
}

func TestFake_StopReleasesTicker(t *testing.T) {
	f := NewFake(epoch)
	a := f.NewTicker(time.Second)
	b := f.NewTicker(time.Second)

	if got := f.ActiveTickers(); got != 2 {
		t.Fatalf("ActiveTickers() = %d, want 2", got)
	}

	a.Stop()
	b.Stop()

	if got := f.ActiveTickers(); got != 0 {
		t.Errorf("ActiveTickers() = %d, want 0", got)
	}

	f.Advance(time.Second)
	select {
	case <-a.C:
		t.Error("stopped ticker fired")
	default:
	}
}

func TestFake_NewTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero interval")
		}
	}()
	NewFake(epoch).NewTicker(0)
}
