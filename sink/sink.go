// Package sink contains the OutputSink implementations that put finished
// frames on a physical or simulated display.
package sink

import (
	"log"
	"sync"

	"github.com/zeebo/xxh3"

	"matrixboard/canvas"
)

// Sink presents completed frames. Present must copy anything it keeps; the
// caller reuses the canvas for the next frame. Clear blanks the display and
// releases it; the render loop calls it exactly once on shutdown.
type Sink interface {
	Present(c *canvas.Canvas) error
	Clear() error
}

func frameHash(c *canvas.Canvas) uint64 {
	return xxh3.Hash(c.RGB())
}

// Headless keeps the last frame in memory instead of drawing it. It stands in
// for the panel when stdout is not a terminal.
type Headless struct {
	logger *log.Logger

	mu       sync.Mutex
	last     *canvas.Canvas
	lastHash uint64
	frames   int
	changes  int
	cleared  bool
}

func NewHeadless(logger *log.Logger) *Headless {
	return &Headless{logger: logger}
}

func (h *Headless) Present(c *canvas.Canvas) error {
	sum := frameHash(c)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames++
	if h.last != nil && sum == h.lastHash {
		return nil
	}
	h.changes++
	h.lastHash = sum
	h.last = c.Clone()
	return nil
}

func (h *Headless) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cleared = true
	if h.last != nil {
		h.last.Clear()
		h.lastHash = frameHash(h.last)
	}
	if h.logger != nil {
		h.logger.Printf("Display: presented %d frames (%d distinct); cleared", h.frames, h.changes)
	}
	return nil
}

// Last returns a copy of the most recent frame, or nil before the first one.
func (h *Headless) Last() *canvas.Canvas {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil {
		return nil
	}
	return h.last.Clone()
}

// Stats reports presented frames and how many differed from their predecessor.
func (h *Headless) Stats() (frames, changes int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames, h.changes
}

func (h *Headless) Cleared() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cleared
}
