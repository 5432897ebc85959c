// Package source fetches and normalizes the data behind the live screens and
// keeps the per-source refresh state the render loop reads from.
package source

import (
	"context"
	"time"
)

// Source fetches one provider's data and normalizes it into a Payload.
// Fetch may block on the network; callers bound it with ctx.
type Source interface {
	Name() string
	Fetch(ctx context.Context, now time.Time) (Payload, error)
}

// Payload is the normalized content of a snapshot. The concrete type is one of
// WeatherInfo, NextRace, Empty or Unavailable.
type Payload interface {
	payload()
}

// WeatherInfo is a current-conditions summary.
type WeatherInfo struct {
	Location    string
	Condition   string
	Description string
	Temp        float64
	Units       string
	Humidity    int
}

// NextRace is the first event dated after the fetch time.
type NextRace struct {
	Name     string
	Round    int
	Date     time.Time
	Location string
	Circuit  string
}

// Empty means the provider answered but had nothing to show, e.g. no race
// left in the season.
type Empty struct{}

// Unavailable means the feature is not configured, e.g. no API key.
type Unavailable struct {
	Reason string
}

func (WeatherInfo) payload() {}
func (NextRace) payload()    {}
func (Empty) payload()       {}
func (Unavailable) payload() {}

// Snapshot is the most recent successfully normalized data for a source. It is
// immutable; a later successful fetch supersedes it.
type Snapshot struct {
	Source    string
	FetchedAt time.Time
	Payload   Payload
	OK        bool
}

// placeholder is held until the first successful fetch so readers never see a
// missing snapshot.
func placeholder(name string) Snapshot {
	return Snapshot{Source: name, Payload: Empty{}}
}
