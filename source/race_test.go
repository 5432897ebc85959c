package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const seasonPayload = `{"MRData":{"RaceTable":{"season":"2024","Races":[
{"round":"1","raceName":"Bahrain Grand Prix","date":"2024-01-01","Circuit":{"circuitName":"Bahrain International Circuit","Location":{"locality":"Sakhir","country":"Bahrain"}}},
{"round":"2","raceName":"Monaco Grand Prix","date":"2024-06-01","Circuit":{"circuitName":"Circuit de Monaco","Location":{"locality":"Monte-Carlo","country":"Monaco"}}},
{"round":"3","raceName":"Abu Dhabi Grand Prix","date":"2024-12-01","Circuit":{"circuitName":"Yas Marina Circuit","Location":{"locality":"Abu Dhabi","country":"UAE"}}}
]}}}`

func TestNextRaceSelectsFirstFutureEvent(t *testing.T) {
	races, err := parseSchedule([]byte(seasonPayload))
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	if len(races) != 3 {
		t.Fatalf("expected 3 races, got %d", len(races))
	}
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, ok := nextRace(races, now).(NextRace)
	if !ok {
		t.Fatalf("expected NextRace payload")
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !got.Date.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got.Date)
	}
	if got.Name != "Monaco" || got.Location != "Monte-Carlo" || got.Round != 2 {
		t.Fatalf("unexpected race: %+v", got)
	}
}

func TestNextRaceAfterSeason(t *testing.T) {
	races, _ := parseSchedule([]byte(seasonPayload))
	now := time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC)
	if _, ok := nextRace(races, now).(Empty); !ok {
		t.Fatalf("expected Empty once every race is in the past")
	}
}

func TestNextRaceSameDayIsPast(t *testing.T) {
	races, _ := parseSchedule([]byte(seasonPayload))
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	got, ok := nextRace(races, now).(NextRace)
	if !ok || got.Round != 3 {
		t.Fatalf("expected race day itself to be skipped, got %#v", nextRace(races, now))
	}
}

func TestParseScheduleSkipsBadDatesAndMissingTable(t *testing.T) {
	races, err := parseSchedule([]byte(`{"MRData":{"RaceTable":{"Races":[{"raceName":"X Grand Prix","date":"soon"}]}}}`))
	if err != nil {
		t.Fatalf("parseSchedule: %v", err)
	}
	if len(races) != 0 {
		t.Fatalf("expected bad date to be skipped, got %d", len(races))
	}
	races, err = parseSchedule([]byte(`{"MRData":{}}`))
	if err != nil || races != nil {
		t.Fatalf("expected empty result for missing race table, got %v %v", races, err)
	}
	if _, err := parseSchedule([]byte(`<html>`)); err == nil {
		t.Fatalf("expected decode error for non-JSON body")
	}
}

func TestShortRaceName(t *testing.T) {
	cases := map[string]string{
		"Monaco Grand Prix":    "Monaco",
		"São Paulo Grand Prix": "São Paulo",
		"Grand Prix":           "Grand Prix",
		"Indy 500":             "Indy 500",
	}
	for in, want := range cases {
		if got := shortRaceName(in); got != want {
			t.Fatalf("shortRaceName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRaceFetchOverHTTP(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(seasonPayload))
	}))
	defer srv.Close()

	src := NewRace("race", srv.URL, srv.Client())
	ctx := context.Background()

	p, err := src.Fetch(ctx, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := p.(NextRace); got.Name != "Monaco" {
		t.Fatalf("expected Monaco, got %+v", got)
	}

	// 304 reuses the cached schedule but re-selects against the new time.
	p, err = src.Fetch(ctx, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Fetch after 304: %v", err)
	}
	if got := p.(NextRace); got.Round != 3 {
		t.Fatalf("expected round 3 after Monaco passed, got %+v", got)
	}
	if hits.Load() != 2 {
		t.Fatalf("expected 2 requests, got %d", hits.Load())
	}
}

func TestRaceFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			_, _ = w.Write([]byte(`{"MRData":`))
			return
		}
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRace("race", srv.URL+"/down", srv.Client()).Fetch(context.Background(), time.Now())
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", fe.Status)
	}

	_, err = NewRace("race", srv.URL+"/broken", srv.Client()).Fetch(context.Background(), time.Now())
	if !errors.As(err, &fe) || fe.Op != "decode" {
		t.Fatalf("expected decode FetchError, got %v", err)
	}
}

func TestRaceFetchHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := NewRace("race", srv.URL, srv.Client()).Fetch(ctx, time.Now())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatalf("fetch did not respect the context deadline")
	}
}
