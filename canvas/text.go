package canvas

import (
	"image/color"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

// Size is a named font size class.
type Size int

const (
	Large Size = iota
	Medium
	Small
)

func (s Size) String() string {
	switch s {
	case Large:
		return "large"
	case Medium:
		return "medium"
	case Small:
		return "small"
	default:
		return "unknown"
	}
}

// Text measures and draws strings with one font per size class. Coordinates
// passed to Draw are the left edge and the text baseline.
type Text struct {
	fonts map[Size]*tinyfont.Font
}

// NewText returns the default font set sized for a 64x32 panel.
func NewText() *Text {
	return NewTextWith(map[Size]*tinyfont.Font{
		Large:  &proggy.TinySZ8pt7b,
		Medium: &tinyfont.Picopixel,
		Small:  &tinyfont.TomThumb,
	})
}

// NewTextWith uses the given fonts; missing classes fall back to the small font
// and then to TomThumb.
func NewTextWith(fonts map[Size]*tinyfont.Font) *Text {
	t := &Text{fonts: make(map[Size]*tinyfont.Font, 3)}
	fallback := fonts[Small]
	if fallback == nil {
		fallback = &tinyfont.TomThumb
	}
	for _, s := range []Size{Large, Medium, Small} {
		f := fonts[s]
		if f == nil {
			f = fallback
		}
		t.fonts[s] = f
	}
	return t
}

func (t *Text) font(s Size) *tinyfont.Font {
	if f, ok := t.fonts[s]; ok {
		return f
	}
	return t.fonts[Small]
}

// Width returns the rendered width of str in pixels.
func (t *Text) Width(s Size, str string) int {
	_, outbox := tinyfont.LineWidth(t.font(s), str)
	return int(outbox)
}

// Draw writes str with its baseline at y.
func (t *Text) Draw(c *Canvas, s Size, x, y int, str string, col color.RGBA) {
	if str == "" {
		return
	}
	tinyfont.WriteLine(c, t.font(s), int16(x), int16(y), str, col)
}

// Center draws str horizontally centred on the canvas and returns its x.
func (t *Text) Center(c *Canvas, s Size, y int, str string, col color.RGBA) int {
	x := (c.Width() - t.Width(s, str)) / 2
	if x < 0 {
		x = 0
	}
	t.Draw(c, s, x, y, str, col)
	return x
}
