// Copyright 2026 The Sandpool Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNow(t *testing.T) {
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	if got := fake.Now(); !got.Equal(start) {
		t.Errorf("Now() = %v, want %v", got, start)
	}

	fake.Advance(90 * time.Minute)
	want := start.Add(90 * time.Minute)
	if got := fake.Now(); !got.Equal(want) {
		t.Errorf("Now() after Advance = %v, want %v", got, want)
	}
}

func TestFakeAfter(t *testing.T) {
	start := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	fake := Fake(start)

	ch := fake.After(time.Hour)
	select {
	case <-ch:
		t.Fatal("After channel fired before Advance")
	default:
	}

	fake.Advance(30 * time.Minute)
	select {
	case <-ch:
		t.Fatal("After channel fired before deadline")
	default:
	}

	fake.Advance(30 * time.Minute)
	select {
	case fired := <-ch:
		if !fired.Equal(start.Add(time.Hour)) {
			t.Errorf("fired at %v, want %v", fired, start.Add(time.Hour))
		}
	default:
		t.Fatal("After channel did not fire at deadline")
	}
}

func TestFakeAfterNonPositive(t *testing.T) {
	fake := Fake(time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC))
	select {
	case <-fake.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeTicker(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(start)

	ticker := fake.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for tick := 1; tick <= 3; tick++ {
		fake.Advance(10 * time.Minute)
		select {
		case fired := <-ticker.C:
			want := start.Add(time.Duration(tick) * 10 * time.Minute)
			if !fired.Equal(want) {
				t.Errorf("tick %d fired at %v, want %v", tick, fired, want)
			}
		default:
			t.Fatalf("tick %d not delivered", tick)
		}
	}
}

func TestFakeTickerDropsWhenSlow(t *testing.T) {
	fake := Fake(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Minute)
	defer ticker.Stop()

	// Advance across many intervals without draining: only one
	// buffered tick should be pending.
	fake.Advance(10 * time.Minute)

	delivered := 0
	for {
		select {
		case <-ticker.C:
			delivered++
			continue
		default:
		}
		break
	}
	if delivered != 1 {
		t.Errorf("delivered %d ticks, want 1 (dropped ticks for slow consumer)", delivered)
	}
}

func TestFakeTickerStop(t *testing.T) {
	fake := Fake(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	ticker := fake.NewTicker(time.Minute)
	ticker.Stop()

	fake.Advance(5 * time.Minute)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
}

func TestFakeTickerNonPositivePanics(t *testing.T) {
	fake := Fake(time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	defer func() {
		if recover() == nil {
			t.Fatal("NewTicker(0) did not panic")
		}
	}()
	fake.NewTicker(0)
}

func TestFakeSleepOrdering(t *testing.T) {
	start := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	fake := Fake(start)

	done := make(chan time.Time, 1)
	go func() {
		fake.Sleep(time.Hour)
		done <- fake.Now()
	}()

	// Give the sleeper time to register its waiter, then release it.
	for i := 0; i < 100; i++ {
		fake.mu.Lock()
		registered := len(fake.waiters) > 0
		fake.mu.Unlock()
		if registered {
			break
		}
		time.Sleep(time.Millisecond)
	}
	fake.Advance(time.Hour)

	select {
	case woke := <-done:
		if woke.Before(start.Add(time.Hour)) {
			t.Errorf("sleeper woke at %v, before deadline %v", woke, start.Add(time.Hour))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sleeper never woke")
	}
}
