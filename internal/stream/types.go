package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/five82/contentstream/internal/filters"
)

// Index is an item position. The widget backend emits it either as a JSON
// number or as a numeric string.
type Index int

// UnmarshalJSON accepts 12, 12.0, "12" and null. Fractional values are
// rejected.
func (i *Index) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}
	raw := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*i = 0
			return nil
		}
	}
	n, err := parseIndex(raw)
	if err != nil {
		return err
	}
	*i = Index(n)
	return nil
}

func parseIndex(raw string) (int, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse index %q: %w", raw, err)
	}
	if f != math.Trunc(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("parse index %q: not an integer", raw)
	}
	return int(f), nil
}

// Listing mirrors a filter_system_data response. A full listing starts at
// First 0; a page carries the slice of articles from First onwards.
type Listing struct {
	First    Index         `json:"first"`
	Last     Index         `json:"last"`
	Articles []Article     `json:"articles"`
	Filters  []FilterGroup `json:"filters"`

	// RequestID is the id sent with the request that produced the listing.
	RequestID string `json:"-"`
}

// Article is one item in the stream.
type Article struct {
	Index   Index       `json:"index"`
	Title   string      `json:"title"`
	Summary string      `json:"summary"`
	URL     string      `json:"url"`
	Tags    filters.Set `json:"tags"`
}

// FilterGroup lists the tags available for one property.
type FilterGroup struct {
	Property string      `json:"property"`
	Label    string      `json:"label"`
	Tags     []FilterTag `json:"tags"`
}

// FilterTag is one selectable tag with its article count.
type FilterTag struct {
	Tag    string `json:"tag"`
	Count  int    `json:"count"`
	Active bool   `json:"active"`
}

// Empty reports whether the listing carries no articles.
func (l *Listing) Empty() bool {
	return l == nil || len(l.Articles) == 0
}
