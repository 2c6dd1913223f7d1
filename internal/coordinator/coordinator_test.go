package coordinator

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/events"
	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/ranges"
	"github.com/five82/contentstream/internal/state"
	"github.com/five82/contentstream/internal/storage"
	"github.com/five82/contentstream/internal/stream"
	"github.com/five82/contentstream/internal/viewport"
)

type fakeFetcher struct {
	mu      sync.Mutex
	queries []stream.Query
	fn      func(ctx context.Context, q stream.Query) (*stream.Listing, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, q stream.Query) (*stream.Listing, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, q)
}

func (f *fakeFetcher) all() []stream.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]stream.Query(nil), f.queries...)
}

type fakeRenderer struct {
	mu           sync.Mutex
	listings     []*stream.Listing
	active       []filters.Set
	placeholders []ranges.Request
	pages        []ranges.Request
}

func (r *fakeRenderer) RenderListing(l *stream.Listing, active filters.Set) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings = append(r.listings, l)
	r.active = append(r.active, active)
}

func (r *fakeRenderer) RenderPlaceholders(req ranges.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.placeholders = append(r.placeholders, req)
}

func (r *fakeRenderer) RenderPage(_ *stream.Listing, req ranges.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, req)
}

func (r *fakeRenderer) counts() (listings, placeholders, pages int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listings), len(r.placeholders), len(r.pages)
}

type staticLayout struct {
	meas viewport.Measurements
}

func (s staticLayout) Measure() viewport.Measurements { return s.meas }
func (s staticLayout) SetContainerHeight(float64)     {}

// A grid of 4 items per row and 100 tall rows; present items decide whether
// the viewport asks for more.
func layoutWith(present int, scrollTop float64) staticLayout {
	return staticLayout{meas: viewport.Measurements{
		ScrollTop:      scrollTop,
		HasItem:        true,
		ItemHeight:     100,
		ItemWidth:      10,
		ContainerWidth: 40,
		WindowHeight:   300,
		ItemsPresent:   present,
		ItemsLoaded:    present,
	}}
}

func listing(first, last, n int) *stream.Listing {
	l := &stream.Listing{First: stream.Index(first), Last: stream.Index(last)}
	for i := 0; i < n; i++ {
		l.Articles = append(l.Articles, stream.Article{Index: stream.Index(first + i)})
	}
	return l
}

type harness struct {
	c        *Coordinator
	store    *state.Store
	medium   *storage.Memory
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	bus      *events.Bus
}

func newHarness(t *testing.T, layout viewport.Layout, fn func(ctx context.Context, q stream.Query) (*stream.Listing, error)) *harness {
	t.Helper()
	medium := storage.NewMemory()
	h := &harness{
		medium:   medium,
		store:    state.NewStore(medium, zerolog.Nop()),
		fetcher:  &fakeFetcher{fn: fn},
		renderer: &fakeRenderer{},
		bus:      events.NewBus(16),
	}
	c, err := New(Options{
		Store:    h.store,
		Fetcher:  h.fetcher,
		Renderer: h.renderer,
		Layout:   layout,
		Bus:      h.bus,
		Logger:   zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(c.Close)
	h.c = c
	return h
}

func TestNew_RequiresCollaborators(t *testing.T) {
	store := state.NewStore(storage.NewMemory(), zerolog.Nop())
	full := Options{Store: store, Fetcher: &fakeFetcher{}, Renderer: &fakeRenderer{}, Layout: layoutWith(0, 0)}

	for name, mutate := range map[string]func(*Options){
		"store":    func(o *Options) { o.Store = nil },
		"fetcher":  func(o *Options) { o.Fetcher = nil },
		"renderer": func(o *Options) { o.Renderer = nil },
		"layout":   func(o *Options) { o.Layout = nil },
	} {
		opts := full
		mutate(&opts)
		if _, err := New(opts); err == nil {
			t.Fatalf("New without %s returned nil error", name)
		}
	}
}

func TestRequestMutation_RejectsWhileLocked(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		close(started)
		<-release
		return listing(0, 39, 20), nil
	})
	updates := h.bus.Subscribe(events.EventContentUpdate)

	done := make(chan error, 1)
	go func() {
		done <- h.c.RequestMutation(context.Background(), filters.ModeAdd, "subcategories", "Protein", false)
	}()
	<-started

	if !h.c.Locked() || h.c.State().String() != "locked" {
		t.Fatalf("State = %v, want locked during reload", h.c.State())
	}
	err := h.c.RequestMutation(context.Background(), filters.ModeAdd, "pillars", "Sleep", false)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("second RequestMutation error = %v, want ErrLocked", err)
	}
	if h.store.Load().Contains("pillars", "Sleep") {
		t.Fatalf("rejected mutation changed the store")
	}
	if err := h.c.Reload(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("Reload while locked = %v, want ErrLocked", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first RequestMutation returned error: %v", err)
	}
	if h.c.State() != Idle {
		t.Fatalf("State = %v, want idle after cycle", h.c.State())
	}
	if got := len(h.fetcher.all()); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}

	select {
	case ev := <-updates:
		u := ev.(*events.ContentUpdateEvent)
		if u.LastIndex != 39 || !u.Filters.Contains("subcategories", "Protein") {
			t.Fatalf("content update = %+v", u)
		}
	case <-time.After(time.Second):
		t.Fatalf("no content update published")
	}
}

func TestRequestMutation_BypassProceedsWhileLocked(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(0, 39, 20), nil
	})
	h.c.acquire(false)

	if err := h.c.RequestMutation(context.Background(), filters.ModeReplace, "pillars", "Sleep", true); err != nil {
		t.Fatalf("bypass RequestMutation returned error: %v", err)
	}
	if !h.store.Load().Contains("pillars", "Sleep") {
		t.Fatalf("bypass mutation not applied")
	}
	if h.c.Locked() {
		t.Fatalf("lock still held after the bypassing cycle")
	}
}

func TestRequestMutation_SendsSerializedState(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(0, 39, 20), nil
	})

	if err := h.c.RequestMutation(context.Background(), filters.ModeAdd, "experts", "Jane", false); err != nil {
		t.Fatalf("RequestMutation returned error: %v", err)
	}
	q := h.fetcher.all()[0]
	if q.State != `[{"property":"experts","tag":"Jane"}]` || q.Mode != "" {
		t.Fatalf("query = %+v, want state of the mutated set and no mode", q)
	}
	if got := h.c.Monitor().State().LastIndex; got != 39 {
		t.Fatalf("LastIndex = %d, want 39", got)
	}
}

func TestBootstrap_ClearThenReplace(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(0, 39, 20), nil
	})
	if err := h.store.Save(filters.Set{{Property: "subcategories", Tag: "Protein"}}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	if err := h.c.Bootstrap(context.Background(), "#clear/pillars:Cognition/not a token"); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}

	want := filters.Set{{Property: "pillars", Tag: "Cognition"}}
	if got := h.store.Load(); !reflect.DeepEqual(got, want) {
		t.Fatalf("store = %v, want %v", got, want)
	}
	if got := len(h.fetcher.all()); got != 1 {
		t.Fatalf("fetches = %d, want a single reload", got)
	}
	if listings, _, _ := h.renderer.counts(); listings != 1 {
		t.Fatalf("listings rendered = %d, want 1", listings)
	}
	if !reflect.DeepEqual(h.renderer.active[0], want) {
		t.Fatalf("rendered with filters %v, want %v", h.renderer.active[0], want)
	}
	if h.c.Locked() {
		t.Fatalf("lock held after bootstrap")
	}
}

func TestBootstrap_NonExclusiveAdds(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(0, 39, 20), nil
	})

	if err := h.c.Bootstrap(context.Background(), "subcategories:Protein/subcategories:Fibre/experts:Jane/experts:Ann"); err != nil {
		t.Fatalf("Bootstrap returned error: %v", err)
	}
	want := filters.Set{
		{Property: "subcategories", Tag: "Protein"},
		{Property: "subcategories", Tag: "Fibre"},
		{Property: "experts", Tag: "Ann"},
	}
	if got := h.store.Load(); !reflect.DeepEqual(got, want) {
		t.Fatalf("store = %v, want %v", got, want)
	}
}

func TestToggleAndClear(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(0, 39, 20), nil
	})
	ctx := context.Background()

	steps := []struct {
		property, tag string
		want          filters.Set
	}{
		{"subcategories", "Protein", filters.Set{{Property: "subcategories", Tag: "Protein"}}},
		{"pillars", "Sleep", filters.Set{{Property: "subcategories", Tag: "Protein"}, {Property: "pillars", Tag: "Sleep"}}},
		{"pillars", "Move", filters.Set{{Property: "subcategories", Tag: "Protein"}, {Property: "pillars", Tag: "Move"}}},
		{"subcategories", "Protein", filters.Set{{Property: "pillars", Tag: "Move"}}},
		{"pillars", "Move", nil},
		{"pillars", "Sleep", filters.Set{{Property: "pillars", Tag: "Sleep"}}},
		{"pillars", "", nil},
	}
	for i, step := range steps {
		if err := h.c.Toggle(ctx, step.property, step.tag); err != nil {
			t.Fatalf("step %d Toggle returned error: %v", i, err)
		}
		if got := h.store.Load(); !reflect.DeepEqual(got, step.want) {
			t.Fatalf("step %d store = %v, want %v", i, got, step.want)
		}
	}

	if err := h.c.ClearFilters(ctx); err != nil {
		t.Fatalf("ClearFilters returned error: %v", err)
	}
	if got := h.store.Load(); len(got) != 0 {
		t.Fatalf("store after clear = %v, want empty", got)
	}
}

func TestReload_FetchFailureReleasesLock(t *testing.T) {
	h := newHarness(t, layoutWith(40, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return nil, errors.New("backend down")
	})
	failures := h.bus.Subscribe(events.EventFetchFailed)

	err := h.c.Reload(context.Background())
	if err == nil {
		t.Fatalf("Reload returned nil error on fetch failure")
	}
	if h.c.Locked() {
		t.Fatalf("lock held after failed reload")
	}
	if listings, _, _ := h.renderer.counts(); listings != 0 {
		t.Fatalf("rendered %d listings after failure", listings)
	}
	select {
	case ev := <-failures:
		if ev.(*events.FetchFailedEvent).Start != -1 {
			t.Fatalf("failure event = %+v, want full reload", ev)
		}
	default:
		t.Fatalf("no fetch failure published")
	}
}

func TestReload_DispatchesClampedRange(t *testing.T) {
	h := newHarness(t, layoutWith(8, 50), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		if q.Mode == stream.ModeArticles {
			return listing(q.Start, 11, q.Limit), nil
		}
		return listing(0, 11, 8), nil
	})
	pages := h.bus.Subscribe(events.EventPageLoaded)

	if err := h.c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	h.c.Wait()

	_, placeholders, rendered := h.renderer.counts()
	if placeholders != 1 || rendered != 1 {
		t.Fatalf("placeholders = %d pages = %d, want 1 and 1", placeholders, rendered)
	}
	if got := h.renderer.pages[0].String(); got != "[8,11]" {
		t.Fatalf("page = %s, want [8,11]", got)
	}

	queries := h.fetcher.all()
	if len(queries) != 2 {
		t.Fatalf("queries = %+v, want listing then page", queries)
	}
	if q := queries[1]; q.Mode != "articles" || q.Start != 8 || q.Limit != 4 {
		t.Fatalf("page query = %+v, want articles start 8 limit 4", q)
	}

	entries := h.c.Scheduler().Entries()
	if len(entries) != 1 || !entries[0].Fulfilled {
		t.Fatalf("ledger = %+v, want one fulfilled entry", entries)
	}
	if !h.c.Monitor().State().LoadedEverything {
		t.Fatalf("LoadedEverything = false after clamped range")
	}
	select {
	case ev := <-pages:
		if p := ev.(*events.PageLoadedEvent); p.Start != 8 || p.End != 11 || p.Articles != 4 {
			t.Fatalf("page event = %+v", p)
		}
	default:
		t.Fatalf("no page event published")
	}
}

func TestRangeFetchFailureIsAbsorbed(t *testing.T) {
	h := newHarness(t, layoutWith(8, 50), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		if q.Mode == stream.ModeArticles {
			return nil, errors.New("timeout")
		}
		return listing(0, 100, 8), nil
	})

	if err := h.c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload returned error: %v", err)
	}
	h.c.Wait()

	if _, placeholders, pages := h.renderer.counts(); placeholders != 1 || pages != 0 {
		t.Fatalf("placeholders = %d pages = %d, want 1 and 0", placeholders, pages)
	}
	if h.c.Scheduler().Pending() != 1 {
		t.Fatalf("Pending = %d, want the failed range left unfulfilled", h.c.Scheduler().Pending())
	}
	if h.c.Locked() {
		t.Fatalf("range failure left the lock held")
	}
}

func TestRangeCompletionAfterResetLeavesViewportAlone(t *testing.T) {
	h := newHarness(t, layoutWith(4, 0), func(ctx context.Context, q stream.Query) (*stream.Listing, error) {
		return listing(20, 50, 4), nil
	})
	pages := h.bus.Subscribe(events.EventPageLoaded)
	h.c.Monitor().SetLastIndex(3)

	// No ledger entry covers [20,23], as after a reload reset the ledger.
	h.c.DispatchRange(ranges.Request{Start: 20, End: 23, RequestedRows: 1})
	h.c.Wait()

	if got := h.c.Monitor().State().LastIndex; got != 3 {
		t.Fatalf("LastIndex = %d, want 3", got)
	}
	select {
	case ev := <-pages:
		t.Fatalf("page event published for a stale range: %+v", ev)
	default:
	}
	if _, _, rendered := h.renderer.counts(); rendered != 1 {
		t.Fatalf("pages handed to the renderer = %d, want 1", rendered)
	}
}
