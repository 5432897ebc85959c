package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/zeebo/xxh3"
)

const maxBodyBytes = 4 << 20

// conditionalFetcher issues GETs with If-None-Match/If-Modified-Since and
// remembers the hash of the last body so callers can skip re-decoding.
type conditionalFetcher struct {
	source       string
	url          string
	userAgent    string
	client       *http.Client
	mu           sync.Mutex
	etag         string
	lastModified string
	lastHash     uint64
}

func newConditionalFetcher(source, url string, client *http.Client) *conditionalFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &conditionalFetcher{
		source:    source,
		url:       url,
		userAgent: "matrixboard/1.0",
		client:    client,
	}
}

// Fetch returns the body and whether it differs from the previous one. A 304
// or an identical body reports changed=false with a nil body.
func (f *conditionalFetcher) Fetch(ctx context.Context) ([]byte, bool, error) {
	if f == nil {
		return nil, false, fmt.Errorf("nil fetcher")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, false, fetchErr(f.source, "build request", err)
	}
	if f.etag != "" {
		req.Header.Set("If-None-Match", f.etag)
	}
	if f.lastModified != "" {
		req.Header.Set("If-Modified-Since", f.lastModified)
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, false, fetchErr(f.source, "fetch", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotModified {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, &FetchError{Source: f.source, Op: "fetch", Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, false, fetchErr(f.source, "read body", err)
	}
	if etag := resp.Header.Get("ETag"); etag != "" {
		f.etag = etag
	}
	if last := resp.Header.Get("Last-Modified"); last != "" {
		f.lastModified = last
	}
	sum := xxh3.Hash(body)
	if f.lastHash != 0 && sum == f.lastHash {
		return nil, false, nil
	}
	f.lastHash = sum
	return body, true, nil
}

// forget drops cached validators so the next Fetch returns a full body.
// Used when a body was received but failed to decode.
func (f *conditionalFetcher) forget() {
	f.mu.Lock()
	f.etag = ""
	f.lastModified = ""
	f.lastHash = 0
	f.mu.Unlock()
}
