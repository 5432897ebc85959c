package screen

import (
	"matrixboard/canvas"
	"matrixboard/source"
)

const (
	raceNameChars     = 15
	raceLocationChars = 8
)

// Race shows the next race under a red header, or "No races" when the season
// is over or nothing has been fetched yet.
func Race(text *canvas.Text, sourceName string) Screen {
	return Screen{
		ID:     RaceID,
		Source: sourceName,
		Render: func(c *canvas.Canvas, v View) error {
			if text == nil {
				return errNoText
			}
			c.Fill(0, 0, c.Width()-1, 9, canvas.Maroon)
			text.Center(c, canvas.Medium, 7, "F1", canvas.White)

			race, ok := v.Snapshot.Payload.(source.NextRace)
			if !ok {
				text.Center(c, canvas.Small, 24, "No races", canvas.White)
				return nil
			}
			text.Center(c, canvas.Small, 18, truncate(race.Name, raceNameChars), canvas.Orange)
			when := race.Date.Format("Jan 02") + " - " + truncate(race.Location, raceLocationChars)
			text.Center(c, canvas.Small, 27, when, canvas.White)
			return nil
		},
	}
}
