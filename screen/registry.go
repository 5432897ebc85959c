package screen

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrDuplicate = errors.New("screen: duplicate id")
	ErrFrozen    = errors.New("screen: registry is frozen")
)

// Registry is the ordered list of screens. Registration order is rotation
// order. Once frozen it is read-only for the rest of the process.
type Registry struct {
	mu      sync.RWMutex
	screens []Screen
	index   map[ID]int
	frozen  bool
}

func NewRegistry() *Registry {
	return &Registry{index: make(map[ID]int)}
}

// Register appends s to the rotation.
func (r *Registry) Register(s Screen) error {
	if s.ID == "" {
		return fmt.Errorf("screen: empty id")
	}
	if s.Render == nil {
		return fmt.Errorf("screen %q: nil render func", s.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("%w: cannot add %q", ErrFrozen, s.ID)
	}
	if _, ok := r.index[s.ID]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, s.ID)
	}
	r.index[s.ID] = len(r.screens)
	r.screens = append(r.screens, s)
	return nil
}

// Freeze makes the registry read-only. It is idempotent.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Screens returns the screens in rotation order.
func (r *Registry) Screens() []Screen {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Screen, len(r.screens))
	copy(out, r.screens)
	return out
}

// IDs returns the screen ids in rotation order.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ID, len(r.screens))
	for i, s := range r.screens {
		out[i] = s.ID
	}
	return out
}

func (r *Registry) Lookup(id ID) (Screen, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.index[id]
	if !ok {
		return Screen{}, false
	}
	return r.screens[i], true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.screens)
}
