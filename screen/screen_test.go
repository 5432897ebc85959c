package screen

import (
	"testing"
	"time"

	"matrixboard/canvas"
	"matrixboard/source"
)

func render(t *testing.T, s Screen, v View) *canvas.Canvas {
	t.Helper()
	c := canvas.New(64, 32)
	if err := s.Render(c, v); err != nil {
		t.Fatalf("%s render: %v", s.ID, err)
	}
	return c
}

func TestClockRenders(t *testing.T) {
	text := canvas.NewText()
	now := time.Date(2024, 5, 1, 15, 4, 0, 0, time.UTC)
	c := render(t, Clock(text), View{Now: now})
	if c.Lit() == 0 {
		t.Fatalf("expected clock pixels")
	}
	if Clock(text).Source != "" {
		t.Fatalf("clock should not consume a source")
	}
}

func TestWeatherHeaderAndText(t *testing.T) {
	text := canvas.NewText()
	s := Weather(text, "weather")
	if s.Source != "weather" || s.ID != WeatherID {
		t.Fatalf("unexpected screen definition: %+v", s)
	}
	snap := source.Snapshot{Payload: source.WeatherInfo{Condition: "Clouds", Temp: 12.6, Units: "metric"}, OK: true}
	c := render(t, s, View{Now: time.Now(), Snapshot: snap})
	if c.At(0, 0) != canvas.Navy || c.At(63, 9) != canvas.Navy {
		t.Fatalf("expected navy header band")
	}
	if c.At(0, 10) != canvas.Black {
		t.Fatalf("expected header to stop at row 9")
	}
	body := 0
	for y := 10; y < 32; y++ {
		for x := 0; x < 64; x++ {
			if c.At(x, y) == canvas.White {
				body++
			}
		}
	}
	if body == 0 {
		t.Fatalf("expected weather text below the header")
	}
}

func TestWeatherLine(t *testing.T) {
	cases := []struct {
		payload source.Payload
		want    string
	}{
		{source.WeatherInfo{Condition: "Rain", Temp: 7.4, Units: "metric"}, "7C Rain"},
		{source.WeatherInfo{Description: "light snow", Temp: 30.5, Units: "imperial"}, "31F light snow"},
		{source.Unavailable{Reason: "needs API key"}, "needs API key"},
		{source.Empty{}, "No data"},
		{nil, "No data"},
	}
	for _, tc := range cases {
		if got := weatherLine(tc.payload); got != tc.want {
			t.Fatalf("weatherLine(%#v) = %q, want %q", tc.payload, got, tc.want)
		}
	}
}

func TestRaceRendersNextRaceAndEmpty(t *testing.T) {
	text := canvas.NewText()
	s := Race(text, "race")
	next := source.Snapshot{Payload: source.NextRace{Name: "Monaco", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Location: "Monte-Carlo"}, OK: true}
	withRace := render(t, s, View{Snapshot: next})
	if withRace.At(0, 0) != canvas.Maroon {
		t.Fatalf("expected maroon header")
	}
	orange := 0
	for _, p := range withRace.Pixels() {
		if p == canvas.Orange {
			orange++
		}
	}
	if orange == 0 {
		t.Fatalf("expected race name in orange")
	}

	empty := render(t, s, View{Snapshot: source.Snapshot{Payload: source.Empty{}}})
	for _, p := range empty.Pixels() {
		if p == canvas.Orange {
			t.Fatalf("expected no race name for Empty payload")
		}
	}
	if empty.Lit() <= 64*10 {
		t.Fatalf("expected \"No races\" text below the header")
	}
}

func TestRenderWithoutTextFails(t *testing.T) {
	c := canvas.New(64, 32)
	for _, s := range []Screen{Clock(nil), Weather(nil, "w"), Race(nil, "r")} {
		if err := s.Render(c, View{}); err == nil {
			t.Fatalf("%s: expected error without text provider", s.ID)
		}
	}
}

func TestPlaceholder(t *testing.T) {
	c := canvas.New(64, 32)
	c.Fill(0, 0, 63, 31, canvas.Red)
	Placeholder(c, canvas.NewText(), RaceID)
	for _, p := range c.Pixels() {
		if p == canvas.Red {
			t.Fatalf("expected placeholder to clear the canvas")
		}
	}
	if c.Lit() == 0 {
		t.Fatalf("expected placeholder label")
	}
	Placeholder(c, nil, RaceID)
	if c.Lit() != 0 {
		t.Fatalf("expected blank placeholder without text provider")
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncate("São Paulo Grand", 3); got != "São" {
		t.Fatalf("expected rune-aware truncation, got %q", got)
	}
	if got := truncate("abc", 8); got != "abc" {
		t.Fatalf("expected short string unchanged, got %q", got)
	}
}
