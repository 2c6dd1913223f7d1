package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/events"
	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/ranges"
	"github.com/five82/contentstream/internal/state"
	"github.com/five82/contentstream/internal/stream"
	"github.com/five82/contentstream/internal/viewport"
)

// ErrLocked is returned when a mutation arrives while a reload cycle holds
// the lock.
var ErrLocked = errors.New("filter update already in progress")

// LockState is the mutation lock state.
type LockState int

const (
	Idle LockState = iota
	Locked
)

func (s LockState) String() string {
	if s == Locked {
		return "locked"
	}
	return "idle"
}

// Renderer draws what the coordinator fetched. Calls may arrive from any
// goroutine.
type Renderer interface {
	// RenderListing replaces everything with a fresh full listing.
	RenderListing(listing *stream.Listing, active filters.Set)
	// RenderPlaceholders reserves slots for a range about to be fetched.
	RenderPlaceholders(req ranges.Request)
	// RenderPage fills the slots of a fetched range.
	RenderPage(listing *stream.Listing, req ranges.Request)
}

// Options wires a Coordinator. Store, Fetcher, Renderer and Layout are
// required.
type Options struct {
	Store    *state.Store
	Fetcher  stream.Fetcher
	Renderer Renderer
	Layout   viewport.Layout
	Viewport viewport.Options
	Policy   filters.Policy
	Bus      *events.Bus
	// PageLimit caps the size of a full listing; zero lets the backend decide.
	PageLimit int
	Logger    zerolog.Logger
}

// Coordinator serializes filter changes behind a non-queuing lock and runs
// the reload cycle. Range fetches triggered by scrolling run independently
// of the lock.
type Coordinator struct {
	store     *state.Store
	fetcher   stream.Fetcher
	renderer  Renderer
	policy    filters.Policy
	bus       *events.Bus
	pageLimit int
	logger    zerolog.Logger

	scheduler *ranges.Scheduler
	monitor   *viewport.Monitor

	ctx    context.Context
	cancel context.CancelFunc
	pages  sync.WaitGroup

	mu    sync.Mutex
	state LockState
}

// New builds a Coordinator together with the scheduler and viewport monitor
// it drives.
func New(opts Options) (*Coordinator, error) {
	switch {
	case opts.Store == nil:
		return nil, fmt.Errorf("coordinator: store is required")
	case opts.Fetcher == nil:
		return nil, fmt.Errorf("coordinator: fetcher is required")
	case opts.Renderer == nil:
		return nil, fmt.Errorf("coordinator: renderer is required")
	case opts.Layout == nil:
		return nil, fmt.Errorf("coordinator: layout is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:     opts.Store,
		fetcher:   opts.Fetcher,
		renderer:  opts.Renderer,
		policy:    opts.Policy,
		bus:       opts.Bus,
		pageLimit: opts.PageLimit,
		logger:    opts.Logger,
		scheduler: ranges.NewScheduler(),
		ctx:       ctx,
		cancel:    cancel,
	}
	vopts := opts.Viewport
	vopts.Logger = opts.Logger.With().Str("component", "viewport").Logger()
	c.monitor = viewport.NewMonitor(opts.Layout, c.scheduler, c.DispatchRange, vopts)
	return c, nil
}

// Monitor returns the viewport monitor fed by scroll and resize signals.
func (c *Coordinator) Monitor() *viewport.Monitor {
	return c.monitor
}

// Scheduler returns the range scheduler.
func (c *Coordinator) Scheduler() *ranges.Scheduler {
	return c.scheduler
}

// Store returns the filter state store.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

// ActiveFilters returns a copy of the persisted filter set.
func (c *Coordinator) ActiveFilters() filters.Set {
	return c.store.Load()
}

// Policy returns the exclusive-property policy.
func (c *Coordinator) Policy() filters.Policy {
	return c.policy
}

// State returns the lock state.
func (c *Coordinator) State() LockState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Locked reports whether a reload cycle holds the lock.
func (c *Coordinator) Locked() bool {
	return c.State() == Locked
}

// RequestMutation applies one filter change and reloads the listing. While
// the lock is held the request is rejected with ErrLocked unless bypassLock
// is set. Fetch failures are logged, the lock is released and the error is
// returned.
func (c *Coordinator) RequestMutation(ctx context.Context, mode filters.Mode, property, tag string, bypassLock bool) error {
	if !c.acquire(bypassLock) {
		c.logger.Warn().
			Str("mode", mode.String()).
			Str("property", property).
			Str("tag", tag).
			Msg("filter change rejected while an update is in progress")
		return ErrLocked
	}
	set := c.store.Apply(mode, property, tag)
	c.logger.Info().
		Str("mode", mode.String()).
		Str("property", property).
		Str("tag", tag).
		Int("active", len(set)).
		Msg("filter changed")
	return c.cycle(ctx)
}

// Toggle flips a tag using the exclusive-property policy. Active tags are
// removed, an empty tag clears the property, exclusive properties replace and
// everything else is added.
func (c *Coordinator) Toggle(ctx context.Context, property, tag string) error {
	mode := c.policy.ToggleMode(c.store.Load(), property, tag)
	return c.RequestMutation(ctx, mode, property, tag, false)
}

// ClearFilters empties the filter set and reloads.
func (c *Coordinator) ClearFilters(ctx context.Context) error {
	if !c.acquire(false) {
		c.logger.Warn().Msg("clear rejected while an update is in progress")
		return ErrLocked
	}
	if err := c.store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("persist filter state")
	}
	return c.cycle(ctx)
}

// Reload refetches the full listing for the current filters.
func (c *Coordinator) Reload(ctx context.Context) error {
	if !c.acquire(false) {
		c.logger.Warn().Msg("reload rejected while an update is in progress")
		return ErrLocked
	}
	return c.cycle(ctx)
}

// Bootstrap applies a location-style filter spec such as
// "clear/pillars:Cognition" and then loads the listing once. Tokens bypass
// the lock and are applied in order; malformed tokens are skipped.
func (c *Coordinator) Bootstrap(ctx context.Context, spec string) error {
	tokens, invalid := filters.ParseSpec(spec)
	for _, raw := range invalid {
		c.logger.Warn().Str("token", raw).Msg("skipping malformed filter token")
	}

	c.acquire(true)
	for _, tok := range tokens {
		c.store.ApplyToken(c.policy, tok)
	}
	if len(tokens) > 0 {
		c.logger.Info().Int("tokens", len(tokens)).Str("filters", filters.FormatSpec(c.store.Load())).Msg("filters bootstrapped")
	}
	return c.cycle(ctx)
}

// DispatchRange renders placeholders for req and fetches it in the
// background. The viewport monitor calls it for every issued range.
func (c *Coordinator) DispatchRange(req ranges.Request) {
	c.renderer.RenderPlaceholders(req)
	c.pages.Add(1)
	go func() {
		defer c.pages.Done()
		c.fetchRange(req)
	}()
}

// Wait blocks until every dispatched range fetch has finished.
func (c *Coordinator) Wait() {
	c.pages.Wait()
}

// Close cancels in-flight range fetches, stops the monitor and waits.
func (c *Coordinator) Close() {
	c.monitor.Stop()
	c.cancel()
	c.pages.Wait()
}

func (c *Coordinator) acquire(bypass bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Locked && !bypass {
		return false
	}
	c.state = Locked
	return true
}

func (c *Coordinator) release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Idle
}

// cycle runs the reload with the lock held and always releases it.
func (c *Coordinator) cycle(ctx context.Context) error {
	released := false
	defer func() {
		if !released {
			c.release()
		}
	}()

	c.scheduler.Reset()
	c.monitor.Reset(-1)

	active := c.store.Load()
	query := stream.Query{State: c.store.Raw()}
	if c.pageLimit > 0 {
		query.Limit = c.pageLimit
	}
	listing, err := c.fetcher.Fetch(ctx, query)
	if err != nil {
		c.logger.Error().Err(err).Msg("listing fetch failed")
		c.bus.PublishFetchFailed(-1, -1, err)
		return fmt.Errorf("reload listing: %w", err)
	}

	c.renderer.RenderListing(listing, active)
	c.monitor.SetLastIndex(int(listing.Last))
	c.monitor.Recompute()

	c.release()
	released = true

	c.logger.Debug().
		Str("request_id", listing.RequestID).
		Int("articles", len(listing.Articles)).
		Int("last", int(listing.Last)).
		Msg("listing rendered")
	c.bus.PublishContentUpdate(active, int(listing.Last), len(listing.Articles))
	return nil
}

func (c *Coordinator) fetchRange(req ranges.Request) {
	listing, err := c.fetcher.Fetch(c.ctx, stream.PageQuery(c.store.Raw(), req.Start, req.Limit()))
	if err != nil {
		if c.ctx.Err() != nil {
			return
		}
		c.logger.Warn().Err(err).Str("range", req.String()).Msg("range fetch failed")
		c.bus.PublishFetchFailed(req.Start, req.End, err)
		return
	}

	c.renderer.RenderPage(listing, req)
	if !c.scheduler.MarkFulfilled(req.Start, req.End) {
		// The listing was replaced while the page was in flight; its
		// lastIndex belongs to the old filters.
		c.logger.Debug().Str("range", req.String()).Msg("range completed after the ledger was reset")
		return
	}
	c.monitor.SetLastIndex(int(listing.Last))
	c.logger.Debug().
		Str("request_id", listing.RequestID).
		Str("range", req.String()).
		Int("articles", len(listing.Articles)).
		Msg("range rendered")
	c.bus.PublishPageLoaded(req.Start, req.End, len(listing.Articles))
	c.monitor.Recompute()
}
