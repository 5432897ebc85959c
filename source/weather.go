package source

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main *struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
}

// WeatherOptions configures the OpenWeatherMap source.
type WeatherOptions struct {
	URL    string
	APIKey string
	City   string
	Units  string
	Client *http.Client
}

// Weather reports current conditions from OpenWeatherMap. Without an API key
// it answers Unavailable and never touches the network.
type Weather struct {
	name    string
	opts    WeatherOptions
	fetcher *conditionalFetcher

	mu   sync.Mutex
	last *WeatherInfo
}

// NewWeather builds a weather source.
func NewWeather(name string, opts WeatherOptions) *Weather {
	w := &Weather{name: name, opts: opts}
	if opts.APIKey != "" && opts.City != "" {
		w.fetcher = newConditionalFetcher(name, weatherURL(opts), opts.Client)
	}
	return w
}

func weatherURL(opts WeatherOptions) string {
	q := url.Values{}
	q.Set("q", opts.City)
	q.Set("appid", opts.APIKey)
	if opts.Units != "" {
		q.Set("units", opts.Units)
	}
	sep := "?"
	if strings.Contains(opts.URL, "?") {
		sep = "&"
	}
	return opts.URL + sep + q.Encode()
}

func (w *Weather) Name() string { return w.name }

func (w *Weather) Fetch(ctx context.Context, _ time.Time) (Payload, error) {
	switch {
	case w.opts.APIKey == "":
		return Unavailable{Reason: "needs API key"}, nil
	case w.opts.City == "":
		return Unavailable{Reason: "no city set"}, nil
	}
	body, changed, err := w.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if changed {
		info, err := parseWeather(body, w.opts.Units)
		if err != nil {
			w.fetcher.forget()
			return nil, fetchErr(w.name, "decode", err)
		}
		w.last = &info
	}
	if w.last == nil {
		w.fetcher.forget()
		return nil, fetchErr(w.name, "fetch", errNoCachedBody)
	}
	return *w.last, nil
}

func parseWeather(body []byte, units string) (WeatherInfo, error) {
	var resp owmResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return WeatherInfo{}, err
	}
	if resp.Main == nil {
		return WeatherInfo{}, errors.New("response has no main block")
	}
	info := WeatherInfo{
		Location: resp.Name,
		Temp:     resp.Main.Temp,
		Humidity: resp.Main.Humidity,
		Units:    units,
	}
	if len(resp.Weather) > 0 {
		info.Condition = resp.Weather[0].Main
		info.Description = resp.Weather[0].Description
	}
	return info, nil
}
