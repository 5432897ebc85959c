package screen

import (
	"fmt"
	"math"

	"matrixboard/canvas"
	"matrixboard/source"
)

const (
	weatherMaxChars  = 30
	weatherLineChars = 15
)

// Weather shows the current conditions under a blue header. Long text wraps
// onto a second line.
func Weather(text *canvas.Text, sourceName string) Screen {
	return Screen{
		ID:     WeatherID,
		Source: sourceName,
		Render: func(c *canvas.Canvas, v View) error {
			if text == nil {
				return errNoText
			}
			c.Fill(0, 0, c.Width()-1, 9, canvas.Navy)
			text.Center(c, canvas.Medium, 7, "WEATHER", canvas.White)

			line := truncate(weatherLine(v.Snapshot.Payload), weatherMaxChars)
			r := []rune(line)
			if len(r) > weatherLineChars {
				text.Draw(c, canvas.Small, 2, 19, string(r[:weatherLineChars]), canvas.White)
				text.Draw(c, canvas.Small, 2, 27, string(r[weatherLineChars:]), canvas.White)
			} else {
				text.Draw(c, canvas.Small, 2, 23, line, canvas.White)
			}
			return nil
		},
	}
}

func weatherLine(p source.Payload) string {
	switch w := p.(type) {
	case source.WeatherInfo:
		cond := w.Condition
		if cond == "" {
			cond = w.Description
		}
		return fmt.Sprintf("%d%s %s", int(math.Round(w.Temp)), unitSymbol(w.Units), cond)
	case source.Unavailable:
		return w.Reason
	default:
		return "No data"
	}
}

func unitSymbol(units string) string {
	switch units {
	case "imperial":
		return "F"
	case "standard":
		return "K"
	default:
		return "C"
	}
}
