package source

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const raceDateLayout = "2006-01-02"

type ergastDocument struct {
	MRData struct {
		RaceTable *struct {
			Season string       `json:"season"`
			Races  []ergastRace `json:"Races"`
		} `json:"RaceTable"`
	} `json:"MRData"`
}

type ergastRace struct {
	Round    string `json:"round"`
	RaceName string `json:"raceName"`
	Date     string `json:"date"`
	Circuit  struct {
		CircuitName string `json:"circuitName"`
		Location    struct {
			Locality string `json:"locality"`
			Country  string `json:"country"`
		} `json:"Location"`
	} `json:"Circuit"`
}

// scheduledRace is a schedule entry with its date kept as text so it can be
// re-anchored to the caller's time zone on every selection.
type scheduledRace struct {
	name     string
	round    int
	date     string
	location string
	circuit  string
}

// parseSchedule decodes an Ergast season document. Entries with an unusable
// date are skipped; a document without a race table yields no entries.
func parseSchedule(body []byte) ([]scheduledRace, error) {
	var doc ergastDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.MRData.RaceTable == nil {
		return nil, nil
	}
	races := make([]scheduledRace, 0, len(doc.MRData.RaceTable.Races))
	for _, r := range doc.MRData.RaceTable.Races {
		date := strings.TrimSpace(r.Date)
		if _, err := time.Parse(raceDateLayout, date); err != nil {
			continue
		}
		round, _ := strconv.Atoi(strings.TrimSpace(r.Round))
		races = append(races, scheduledRace{
			name:     strings.TrimSpace(r.RaceName),
			round:    round,
			date:     date,
			location: strings.TrimSpace(r.Circuit.Location.Locality),
			circuit:  strings.TrimSpace(r.Circuit.CircuitName),
		})
	}
	return races, nil
}

// nextRace selects the first race, in schedule order, whose date (midnight in
// now's location) is strictly after now. Empty is returned when none qualifies.
func nextRace(races []scheduledRace, now time.Time) Payload {
	for _, r := range races {
		date, err := time.ParseInLocation(raceDateLayout, r.date, now.Location())
		if err != nil {
			continue
		}
		if !date.After(now) {
			continue
		}
		return NextRace{
			Name:     shortRaceName(r.name),
			Round:    r.round,
			Date:     date,
			Location: r.location,
			Circuit:  r.circuit,
		}
	}
	return Empty{}
}

// shortRaceName drops the "Grand Prix" suffix: "Monaco Grand Prix" -> "Monaco".
func shortRaceName(name string) string {
	short, _, _ := strings.Cut(name, "Grand Prix")
	short = strings.TrimSpace(short)
	if short == "" {
		return name
	}
	return short
}

// Race fetches an Ergast-compatible season schedule and reports the next race.
type Race struct {
	name    string
	fetcher *conditionalFetcher

	mu     sync.Mutex
	races  []scheduledRace
	loaded bool
}

// NewRace builds a race schedule source for url.
func NewRace(name, url string, client *http.Client) *Race {
	return &Race{
		name:    name,
		fetcher: newConditionalFetcher(name, url, client),
	}
}

func (r *Race) Name() string { return r.name }

// Fetch downloads the schedule when it changed and selects the next race
// relative to now.
func (r *Race) Fetch(ctx context.Context, now time.Time) (Payload, error) {
	body, changed, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if changed {
		races, err := parseSchedule(body)
		if err != nil {
			r.fetcher.forget()
			return nil, fetchErr(r.name, "decode", err)
		}
		r.races = races
		r.loaded = true
	}
	if !r.loaded {
		r.fetcher.forget()
		return nil, fetchErr(r.name, "fetch", errNoCachedBody)
	}
	return nextRace(r.races, now), nil
}
