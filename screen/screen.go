// Package screen defines the rotating display pages and the registry that
// fixes their rotation order.
package screen

import (
	"errors"
	"time"

	"matrixboard/canvas"
	"matrixboard/source"
)

// ID identifies a screen. Registry order, not the ID, decides rotation order.
type ID string

const (
	ClockID   ID = "clock"
	WeatherID ID = "weather"
	RaceID    ID = "race"
)

// View is everything a render function may read.
type View struct {
	Now      time.Time
	Snapshot source.Snapshot
}

// RenderFunc draws one frame into a cleared canvas. It must not keep the
// canvas after returning.
type RenderFunc func(c *canvas.Canvas, v View) error

// Screen pairs an ID with its render function and, for live screens, the
// name of the source whose snapshot it consumes.
type Screen struct {
	ID     ID
	Render RenderFunc
	Source string
}

var errNoText = errors.New("screen: no text provider")

// Placeholder is drawn when a screen fails to render: a blank frame with the
// screen's name so one broken page does not blank the display.
func Placeholder(c *canvas.Canvas, text *canvas.Text, id ID) {
	c.Clear()
	if text == nil {
		return
	}
	label := string(id)
	if label == "" {
		label = "?"
	}
	text.Center(c, canvas.Small, c.Height()/2+2, label, canvas.DimGray)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
