package source

import (
	"fmt"
	"sync"
	"time"

	"matrixboard/schedule"
)

// RefreshState tracks one source's refresh history and current snapshot.
type RefreshState struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
	Failures    int
	InFlight    bool
	Current     Snapshot
}

// Store holds the RefreshState of every registered source. Fetch goroutines
// write through BeginAttempt/Complete; the render tick only reads.
type Store struct {
	mu     sync.RWMutex
	order  []string
	states map[string]*RefreshState
}

func NewStore() *Store {
	return &Store{states: make(map[string]*RefreshState)}
}

// Register adds a source with a placeholder snapshot.
func (s *Store) Register(name string) error {
	if name == "" {
		return fmt.Errorf("source: empty name")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[name]; ok {
		return fmt.Errorf("source: %q already registered", name)
	}
	s.states[name] = &RefreshState{Current: placeholder(name)}
	s.order = append(s.order, name)
	return nil
}

// Names returns registered sources in registration order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Snapshot returns the current snapshot for name. Unknown names get a
// placeholder rather than nil.
func (s *Store) Snapshot(name string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[name]
	if !ok {
		return placeholder(name)
	}
	return st.Current
}

// State returns a copy of the refresh state for name.
func (s *Store) State(name string) (RefreshState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[name]
	if !ok {
		return RefreshState{}, false
	}
	return *st, true
}

// Due reports whether name should be fetched at now. A source with a fetch
// still in flight is never due.
func (s *Store) Due(name string, now time.Time, interval time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[name]
	if !ok || st.InFlight {
		return false
	}
	return schedule.IsRefreshDue(now, st.LastAttempt, interval)
}

// BeginAttempt records an attempt at now and marks it in flight. It returns
// false when the source is unknown or already fetching.
func (s *Store) BeginAttempt(name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok || st.InFlight {
		return false
	}
	st.LastAttempt = now
	st.InFlight = true
	return true
}

// Complete finishes an attempt. On success the snapshot is replaced and
// LastSuccess advances; on failure only the error bookkeeping changes. The
// state before the update is returned.
func (s *Store) Complete(name string, now time.Time, p Payload, err error) (RefreshState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok {
		return RefreshState{}, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	prev := *st
	st.InFlight = false
	if err != nil {
		st.LastError = err
		st.Failures++
		return prev, nil
	}
	if p == nil {
		p = Empty{}
	}
	st.Current = Snapshot{Source: name, FetchedAt: now, Payload: p, OK: true}
	st.LastSuccess = now
	st.LastError = nil
	st.Failures = 0
	return prev, nil
}
