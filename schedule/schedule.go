// Package schedule maps wall-clock time to the active screen and decides when
// a data source is due for refresh. Everything here is a pure function of its
// arguments so callers can test rotation without a real clock.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRotation is returned for zero-length periods or slices.
var ErrInvalidRotation = errors.New("invalid rotation")

// Rotation divides a repeating period into equal slices, one screen per slice.
// Build it with NewRotation; the zero value is not usable.
type Rotation struct {
	period uint
	slice  uint
}

// NewRotation validates the period and slice lengths once at startup.
func NewRotation(periodSeconds, sliceSeconds uint) (Rotation, error) {
	if periodSeconds == 0 {
		return Rotation{}, fmt.Errorf("%w: period must be positive", ErrInvalidRotation)
	}
	if sliceSeconds == 0 {
		return Rotation{}, fmt.Errorf("%w: slice must be positive", ErrInvalidRotation)
	}
	return Rotation{period: periodSeconds, slice: sliceSeconds}, nil
}

// Period returns the rotation period in seconds.
func (r Rotation) Period() uint { return r.period }

// Slice returns the slice length in seconds.
func (r Rotation) Slice() uint { return r.slice }

// Slices is ceil(period/slice).
func (r Rotation) Slices() int {
	if r.slice == 0 {
		return 0
	}
	return int((r.period + r.slice - 1) / r.slice)
}

// SecondOfPeriod is floor(now) mod period, non-negative for pre-epoch times.
func (r Rotation) SecondOfPeriod(now time.Time) uint {
	if r.period == 0 {
		return 0
	}
	p := int64(r.period)
	sec := now.Unix() % p
	if sec < 0 {
		sec += p
	}
	return uint(sec)
}

// SliceIndex returns the slice containing now, in [0, Slices()).
func (r Rotation) SliceIndex(now time.Time) int {
	if r.slice == 0 {
		return 0
	}
	return int(r.SecondOfPeriod(now) / r.slice)
}

// ActiveScreen returns the screen owning the slice that contains now.
// When there are more slices than screens the extra slices stay on the last
// screen. Screens past the last slice are never shown. An empty list yields
// the zero ID.
func ActiveScreen[ID any](now time.Time, screens []ID, r Rotation) ID {
	var zero ID
	if len(screens) == 0 {
		return zero
	}
	idx := r.SliceIndex(now)
	if idx >= len(screens) {
		idx = len(screens) - 1
	}
	return screens[idx]
}

// IsRefreshDue reports whether a source last attempted at lastAttempt should
// be fetched again at now. A zero or Unix-epoch lastAttempt means never
// attempted. A lastAttempt in the future (clock stepped backwards) counts as
// due so a skewed clock cannot suppress refreshes indefinitely.
func IsRefreshDue(now, lastAttempt time.Time, interval time.Duration) bool {
	if lastAttempt.IsZero() || lastAttempt.Unix() == 0 {
		return true
	}
	if now.Before(lastAttempt) {
		return true
	}
	return now.Sub(lastAttempt) >= interval
}
