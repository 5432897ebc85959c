// Package canvas holds the fixed-size pixel buffer screens draw into and the
// text measuring/drawing helpers they use.
package canvas

import (
	"image/color"
)

// Common colours used by the built-in screens.
var (
	Black   = color.RGBA{0, 0, 0, 255}
	White   = color.RGBA{255, 255, 255, 255}
	Red     = color.RGBA{255, 0, 0, 255}
	Green   = color.RGBA{0, 255, 0, 255}
	Cyan    = color.RGBA{0, 255, 255, 255}
	Orange  = color.RGBA{255, 165, 0, 255}
	Navy    = color.RGBA{0, 0, 128, 255}
	Maroon  = color.RGBA{128, 0, 0, 255}
	DimGray = color.RGBA{90, 90, 90, 255}
)

// Canvas is a width x height RGBA buffer. It satisfies the tinyfont display
// interface so text can be drawn straight into it. Writes outside the buffer
// are dropped.
type Canvas struct {
	width  int
	height int
	pix    []color.RGBA
}

// New allocates a cleared canvas. Non-positive sizes yield an empty canvas.
func New(width, height int) *Canvas {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	c := &Canvas{
		width:  width,
		height: height,
		pix:    make([]color.RGBA, width*height),
	}
	c.Clear()
	return c
}

func (c *Canvas) Width() int  { return c.width }
func (c *Canvas) Height() int { return c.height }

// Size reports the dimensions in the form display drivers expect.
func (c *Canvas) Size() (x, y int16) {
	return int16(c.width), int16(c.height)
}

// SetPixel writes one pixel.
func (c *Canvas) SetPixel(x, y int16, col color.RGBA) {
	c.Set(int(x), int(y), col)
}

// Display is a no-op; presenting is the sink's job.
func (c *Canvas) Display() error {
	return nil
}

// Set writes one pixel, ignoring out-of-range coordinates.
func (c *Canvas) Set(x, y int, col color.RGBA) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.pix[y*c.width+x] = col
}

// At returns the pixel at x,y or transparent black when out of range.
func (c *Canvas) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return color.RGBA{}
	}
	return c.pix[y*c.width+x]
}

// Clear resets every pixel to opaque black.
func (c *Canvas) Clear() {
	for i := range c.pix {
		c.pix[i] = Black
	}
}

// Fill sets the inclusive rectangle x0,y0 - x1,y1, clipped to the canvas.
func (c *Canvas) Fill(x0, y0, x1, y1 int, col color.RGBA) {
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, c.width-1), min(y1, c.height-1)
	for y := y0; y <= y1; y++ {
		row := c.pix[y*c.width : (y+1)*c.width]
		for x := x0; x <= x1; x++ {
			row[x] = col
		}
	}
}

// Pixels exposes the backing buffer in row-major order. Callers must not
// retain it past the current render.
func (c *Canvas) Pixels() []color.RGBA {
	return c.pix
}

// Clone returns an independent copy.
func (c *Canvas) Clone() *Canvas {
	out := &Canvas{width: c.width, height: c.height, pix: make([]color.RGBA, len(c.pix))}
	copy(out.pix, c.pix)
	return out
}

// RGB packs the buffer as 3 bytes per pixel, row-major.
func (c *Canvas) RGB() []byte {
	out := make([]byte, 0, len(c.pix)*3)
	for _, p := range c.pix {
		out = append(out, p.R, p.G, p.B)
	}
	return out
}

// Lit counts pixels that are not black. Handy for tests and for the
// headless sink's frame summary.
func (c *Canvas) Lit() int {
	n := 0
	for _, p := range c.pix {
		if p.R != 0 || p.G != 0 || p.B != 0 {
			n++
		}
	}
	return n
}
