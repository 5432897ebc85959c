package screen

import (
	"matrixboard/canvas"
)

// Clock shows the time, weekday and date, each centred.
func Clock(text *canvas.Text) Screen {
	return Screen{
		ID: ClockID,
		Render: func(c *canvas.Canvas, v View) error {
			if text == nil {
				return errNoText
			}
			now := v.Now
			text.Center(c, canvas.Large, 11, now.Format("03:04 PM"), canvas.Red)
			text.Center(c, canvas.Medium, 20, now.Format("Monday"), canvas.Green)
			text.Center(c, canvas.Small, 29, now.Format("January 02"), canvas.Cyan)
			return nil
		},
	}
}
