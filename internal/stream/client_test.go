package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/filters"
)

func TestParseEndpoint_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseEndpoint("")
	if err != nil {
		t.Fatalf("parseEndpoint returned error: %v", err)
	}
	if u.String() != DefaultEndpoint {
		t.Fatalf("endpoint = %q, want %q", u.String(), DefaultEndpoint)
	}

	u, err = parseEndpoint("example.com:1234/cgi/widget?x=1#frag")
	if err != nil {
		t.Fatalf("parseEndpoint returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "/cgi/widget" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("endpoint not normalized: %q", u.String())
	}

	if _, err := parseEndpoint("http://"); err == nil {
		t.Fatalf("parseEndpoint(http://) returned nil error, want missing host")
	}
}

func TestQuery_Values(t *testing.T) {
	tests := []struct {
		name  string
		query Query
		want  map[string]string
		unset []string
	}{
		{
			name:  "full listing",
			query: Query{State: `[{"property":"pillars","tag":"Sleep"}]`},
			want: map[string]string{
				"ac":         "filter_system_data",
				"widget":     "widget-content-stream.pl",
				"valid_json": "1",
				"state":      `[{"property":"pillars","tag":"Sleep"}]`,
			},
			unset: []string{"mode", "start", "limit"},
		},
		{
			name:  "empty state",
			query: Query{},
			want:  map[string]string{"state": "[]"},
			unset: []string{"mode"},
		},
		{
			name:  "page",
			query: PageQuery("[]", 8, 4),
			want:  map[string]string{"mode": "articles", "start": "8", "limit": "4", "state": "[]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := tt.query.Values()
			for k, v := range tt.want {
				if got := values.Get(k); got != v {
					t.Fatalf("%s = %q, want %q", k, got, v)
				}
			}
			for _, k := range tt.unset {
				if values.Has(k) {
					t.Fatalf("%s set to %q, want absent", k, values.Get(k))
				}
			}
		})
	}
}

func TestClient_FetchPostsFormAndDecodes(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var gotForm url.Values
	var gotHeaders http.Header
	var gotMethod string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		mu.Lock()
		gotMethod = r.Method
		gotForm = r.PostForm
		gotHeaders = r.Header.Clone()
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"first": "8",
			"last": 11,
			"articles": [
				{"index": 8, "title": "Sleep well", "url": "/a/8", "tags": [{"property": "pillars", "tag": "Sleep"}]},
				{"index": "9", "title": "Eat well"}
			],
			"filters": [{"property": "pillars", "label": "Pillars", "tags": [{"tag": "Sleep", "count": 3, "active": true}]}]
		}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{Endpoint: server.URL + "/widget", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	listing, err := c.Fetch(ctx, PageQuery(`[]`, 8, 4))
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if listing.First != 8 || listing.Last != 11 || len(listing.Articles) != 2 {
		t.Fatalf("listing = %+v, want first 8 last 11 with 2 articles", listing)
	}
	if listing.Articles[1].Index != 9 {
		t.Fatalf("string index = %d, want 9", listing.Articles[1].Index)
	}
	if !listing.Articles[0].Tags.Contains("pillars", "Sleep") {
		t.Fatalf("tags = %v, want pillars:Sleep", listing.Articles[0].Tags)
	}
	if len(listing.Filters) != 1 || !listing.Filters[0].Tags[0].Active {
		t.Fatalf("filters = %+v", listing.Filters)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotMethod != http.MethodPost {
		t.Fatalf("method = %s, want POST", gotMethod)
	}
	if gotForm.Get("ac") != "filter_system_data" || gotForm.Get("mode") != "articles" || gotForm.Get("start") != "8" || gotForm.Get("limit") != "4" {
		t.Fatalf("form = %v", gotForm)
	}
	if !strings.HasPrefix(gotHeaders.Get("User-Agent"), "contentstream/") {
		t.Fatalf("User-Agent = %q", gotHeaders.Get("User-Agent"))
	}
	id := gotHeaders.Get("X-Request-Id")
	if _, err := ulid.ParseStrict(id); err != nil {
		t.Fatalf("X-Request-Id %q is not a ULID: %v", id, err)
	}
	if listing.RequestID != id {
		t.Fatalf("RequestID = %q, want %q", listing.RequestID, id)
	}
}

func TestClient_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Listing{Last: 3, Articles: []Article{{Index: 0, Title: "x"}}})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{Endpoint: server.URL, RetryWaitMin: time.Millisecond, RetryWaitMax: 5 * time.Millisecond, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	listing, err := c.Fetch(context.Background(), Query{})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if listing.Last != 3 || calls.Load() != 3 {
		t.Fatalf("last = %d calls = %d, want 3 and 3", listing.Last, calls.Load())
	}
}

func TestClient_ErrorPaths(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/garbled":
			_, _ = w.Write([]byte("{not json"))
		case "/down":
			http.Error(w, "down", http.StatusInternalServerError)
		}
	}))
	t.Cleanup(server.Close)

	tests := []struct {
		path string
		want string
	}{
		{path: "/missing", want: "status 404"},
		{path: "/garbled", want: "decode response"},
		{path: "/down", want: "execute request"},
	}
	for _, tt := range tests {
		c, err := NewClient(Options{Endpoint: server.URL + tt.path, RetryMax: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond, Logger: zerolog.Nop()})
		if err != nil {
			t.Fatalf("NewClient returned error: %v", err)
		}
		_, err = c.Fetch(context.Background(), Query{})
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("%s error = %v, want %q", tt.path, err, tt.want)
		}
	}
}

func TestListing_DecodesIntegralFloatIndexes(t *testing.T) {
	var l Listing
	if err := json.Unmarshal([]byte(`{"first":0.0,"last":11.0,"articles":[{"index":8.0,"title":"a"}]}`), &l); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if l.Last != 11 || l.Articles[0].Index != 8 {
		t.Fatalf("listing = %+v, want last 11 and index 8", l)
	}
}

func TestIndex_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Index
		wantErr bool
	}{
		{in: `12`, want: 12},
		{in: `"12"`, want: 12},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"twelve"`, wantErr: true},
		{in: `1.5`, wantErr: true},
		{in: `12.0`, want: 12},
		{in: `"12.0"`, want: 12},
		{in: `-1`, want: -1},
		{in: `1e3`, want: 1000},
		{in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		var got Index
		err := json.Unmarshal([]byte(tt.in), &got)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("Unmarshal(%s) returned nil error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("Unmarshal(%s) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}

func TestListing_Empty(t *testing.T) {
	var nilListing *Listing
	if !nilListing.Empty() {
		t.Fatalf("nil listing not empty")
	}
	if (&Listing{Articles: []Article{{Tags: filters.Set{}}}}).Empty() {
		t.Fatalf("listing with an article reported empty")
	}
}
