package sink

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"matrixboard/canvas"
)

func TestHeadlessKeepsDistinctFrames(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeadless(log.New(&buf, "", 0))
	if h.Last() != nil {
		t.Fatalf("expected no frame before Present")
	}

	c := canvas.New(8, 4)
	c.Set(1, 1, canvas.Red)
	for i := 0; i < 3; i++ {
		if err := h.Present(c); err != nil {
			t.Fatalf("Present: %v", err)
		}
	}
	c.Set(2, 2, canvas.Green)
	if err := h.Present(c); err != nil {
		t.Fatalf("Present: %v", err)
	}

	frames, changes := h.Stats()
	if frames != 4 || changes != 2 {
		t.Fatalf("expected 4 frames and 2 changes, got %d and %d", frames, changes)
	}

	// The sink must not alias the caller's canvas.
	c.Clear()
	last := h.Last()
	if last.At(1, 1) != canvas.Red || last.At(2, 2) != canvas.Green {
		t.Fatalf("expected last frame to be a copy")
	}

	if err := h.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if !h.Cleared() || h.Last().Lit() != 0 {
		t.Fatalf("expected blank frame after Clear")
	}
	if !strings.Contains(buf.String(), "presented 4 frames (2 distinct)") {
		t.Fatalf("unexpected log: %q", buf.String())
	}
}
