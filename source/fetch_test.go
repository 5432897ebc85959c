package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConditionalFetcherSendsValidators(t *testing.T) {
	var gotETag, gotModified string
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := newConditionalFetcher("test", srv.URL, srv.Client())
	body, changed, err := f.Fetch(context.Background())
	if err != nil || !changed || string(body) != "{}" {
		t.Fatalf("first fetch: body=%q changed=%v err=%v", body, changed, err)
	}
	body, changed, err = f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if changed || body != nil {
		t.Fatalf("expected identical body to report unchanged")
	}
	if gotETag != `"abc"` || gotModified == "" {
		t.Fatalf("expected validators on second request, got etag=%q modified=%q", gotETag, gotModified)
	}

	f.forget()
	_, changed, _ = f.Fetch(context.Background())
	if !changed {
		t.Fatalf("expected forget to force a full body")
	}
	if gotETag != "" {
		t.Fatalf("expected no validators after forget, got %q", gotETag)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}
