package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/stream"
)

// WriteFilters prints the persisted set as a location spec followed by one
// criterion per line.
func (s *Session) WriteFilters(w io.Writer) error {
	set := s.Store.Load()
	if _, err := fmt.Fprintf(w, "#%s\n", filters.FormatSpec(set)); err != nil {
		return err
	}
	for _, c := range set {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", c.Property, c.Tag); err != nil {
			return err
		}
	}
	return nil
}

// ApplySpec applies a location-style spec to the persisted set without
// fetching. Malformed segments are skipped and returned.
func (s *Session) ApplySpec(spec string) (filters.Set, []string) {
	tokens, invalid := filters.ParseSpec(spec)
	for _, raw := range invalid {
		s.Logger.Warn().Str("token", raw).Msg("skipping malformed filter token")
	}
	policy := s.Config.Policy()
	for _, tok := range tokens {
		s.Store.ApplyToken(policy, tok)
	}
	return s.Store.Load(), invalid
}

// RemoveFilter drops one criterion given as "property:tag", or every tag of
// the property when the tag is omitted.
func (s *Session) RemoveFilter(criterion string) (filters.Set, error) {
	property, tag, _ := strings.Cut(strings.TrimSpace(criterion), ":")
	property, tag = strings.TrimSpace(property), strings.TrimSpace(tag)
	if property == "" {
		return nil, fmt.Errorf("remove filter: property is required in %q", criterion)
	}
	if tag == "" {
		return s.Store.Apply(filters.ModeReplace, property, ""), nil
	}
	return s.Store.Apply(filters.ModeRemove, property, tag), nil
}

// ClearFilters empties the persisted set.
func (s *Session) ClearFilters() error {
	return s.Store.Clear()
}

// FetchOptions select the listing Fetch retrieves.
type FetchOptions struct {
	// Start and Limit request the page [Start, Start+Limit-1]; a zero Limit
	// requests the full listing.
	Start int
	Limit int
	JSON  bool
}

// Fetch retrieves a listing for the persisted filters and writes it to w.
func (s *Session) Fetch(ctx context.Context, w io.Writer, opts FetchOptions) error {
	if opts.Start < 0 || opts.Limit < 0 {
		return fmt.Errorf("start and limit must not be negative")
	}
	query := stream.Query{State: s.Store.Raw(), Limit: s.Config.PageLimit}
	if opts.Limit > 0 {
		query = stream.PageQuery(s.Store.Raw(), opts.Start, opts.Limit)
	}

	listing, err := s.Client.Fetch(ctx, query)
	if err != nil {
		return err
	}
	if opts.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(listing)
	}
	return writeListing(w, listing)
}

func writeListing(w io.Writer, listing *stream.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "first %d\tlast %d\t%d articles\n", listing.First, listing.Last, len(listing.Articles))
	for _, a := range listing.Articles {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", a.Index, a.Title, a.URL)
	}
	return tw.Flush()
}
