package ratelimit

import (
	"testing"
	"time"
)

func TestCounterThrottles(t *testing.T) {
	c := NewCounter(time.Minute)
	base := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	if total, suppressed, ok := c.Allow(base); !ok || total != 1 || suppressed != 0 {
		t.Fatalf("expected first event to log, got total=%d suppressed=%d ok=%v", total, suppressed, ok)
	}
	for i := 1; i <= 3; i++ {
		if _, _, ok := c.Allow(base.Add(time.Duration(i) * time.Second)); ok {
			t.Fatalf("expected event %d to be throttled", i)
		}
	}
	total, suppressed, ok := c.Allow(base.Add(time.Minute))
	if !ok || total != 5 || suppressed != 3 {
		t.Fatalf("expected total=5 suppressed=3 ok, got total=%d suppressed=%d ok=%v", total, suppressed, ok)
	}
}

func TestCounterWithoutInterval(t *testing.T) {
	c := NewCounter(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if _, _, ok := c.Allow(now); !ok {
			t.Fatalf("expected unthrottled counter to allow every event")
		}
	}
	var nilCounter *Counter
	if _, _, ok := nilCounter.Allow(now); ok {
		t.Fatalf("expected nil counter to refuse")
	}
}
