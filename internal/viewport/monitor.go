// Package viewport derives layout metrics from the scroll position and asks
// the range scheduler for more items when the reader nears the end of what
// has been loaded or requested.
package viewport

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/ranges"
)

const (
	DefaultNotReadyDelay   = 50 * time.Millisecond
	DefaultNotReadyRetries = 200
)

// Measurements are the raw layout readings taken for one recomputation.
type Measurements struct {
	ScrollTop      float64
	HasItem        bool    // false until the first item is laid out
	ItemHeight     float64 // outer height of the first item
	ItemWidth      float64 // outer width of the first item
	ContainerWidth float64
	WindowHeight   float64
	ContainerTop   float64
	ItemsPresent   int // loaded items plus placeholders
	ItemsLoaded    int
}

// Layout is the rendering surface the monitor reads from and resizes.
type Layout interface {
	Measure() Measurements
	SetContainerHeight(height float64)
}

// State is the live viewport bookkeeping.
type State struct {
	ScrollTop               float64
	LastScrollTop           float64
	MaxScrollTop            float64
	Direction               int
	ScreenOffset            int
	ItemHeight              float64
	ItemsPerRow             int
	MaxRows                 int
	WrapperHeight           float64
	ContainerTop            float64
	LoadThresholdScrollTop  float64
	ItemsLoaded             int
	ItemsLoadedAndRequested int
	RequestedRows           float64
	LastIndex               int
	LoadedEverything        bool
}

// NewState returns the state for a fresh listing; lastIndex < 0 means unknown.
func NewState(lastIndex int) State {
	return State{LastIndex: lastIndex}
}

// Options tune a Monitor. Zero durations use the defaults; NotReadyRetries
// of zero uses DefaultNotReadyRetries and a negative value retries forever.
type Options struct {
	ScrollDebounce  time.Duration
	ResizeDebounce  time.Duration
	NotReadyDelay   time.Duration
	NotReadyRetries int
	Logger          zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.ScrollDebounce <= 0 {
		o.ScrollDebounce = DefaultScrollDebounce
	}
	if o.ResizeDebounce <= 0 {
		o.ResizeDebounce = DefaultResizeDebounce
	}
	if o.NotReadyDelay <= 0 {
		o.NotReadyDelay = DefaultNotReadyDelay
	}
	if o.NotReadyRetries == 0 {
		o.NotReadyRetries = DefaultNotReadyRetries
	}
	return o
}

// Monitor owns the State for one session.
type Monitor struct {
	layout    Layout
	scheduler *ranges.Scheduler
	dispatch  func(ranges.Request)
	opts      Options
	logger    zerolog.Logger

	scroll *Debouncer
	resize *Debouncer

	mu         sync.Mutex
	state      State
	retry      *time.Timer
	retries    int
	retryEpoch uint64
	stopped    bool
}

// NewMonitor wires a Monitor to its layout, the scheduler it consults and
// the function that dispatches issued ranges. dispatch is called without any
// Monitor lock held.
func NewMonitor(layout Layout, scheduler *ranges.Scheduler, dispatch func(ranges.Request), opts Options) *Monitor {
	opts = opts.withDefaults()
	m := &Monitor{
		layout:    layout,
		scheduler: scheduler,
		dispatch:  dispatch,
		opts:      opts,
		logger:    opts.Logger,
		state:     NewState(-1),
	}
	m.scroll = NewDebouncer(opts.ScrollDebounce, m.Recompute)
	m.resize = NewDebouncer(opts.ResizeDebounce, m.Relayout)
	return m
}

// Scroll records a scroll signal; the recomputation runs once the signals
// stop for the scroll debounce window.
func (m *Monitor) Scroll() {
	m.scroll.Signal()
}

// Resize records a resize signal; the relayout runs once the signals stop
// for the resize debounce window.
func (m *Monitor) Resize() {
	m.resize.Signal()
}

// Recompute measures the layout, refreshes the state and dispatches the next
// range when the reader has scrolled past the load threshold.
func (m *Monitor) Recompute() {
	m.mu.Lock()
	if m.stopped || m.state.LoadedEverything {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	meas := m.layout.Measure()
	itemsPerRow := itemsPerRow(meas)
	if !meas.HasItem || itemsPerRow <= 0 || meas.ItemHeight <= 0 {
		m.scheduleRetry()
		return
	}

	m.mu.Lock()
	m.retries = 0
	s := &m.state
	s.ScrollTop = meas.ScrollTop
	s.ItemHeight = meas.ItemHeight
	s.ScreenOffset = int(math.Floor(s.ScrollTop / s.ItemHeight))
	s.ItemsPerRow = itemsPerRow
	s.ItemsLoadedAndRequested = meas.ItemsPresent
	s.ItemsLoaded = meas.ItemsLoaded
	s.ContainerTop = meas.ContainerTop
	s.LoadThresholdScrollTop = (float64(meas.ItemsPresent)/float64(itemsPerRow))*s.ItemHeight + meas.ContainerTop - meas.WindowHeight
	s.MaxRows = maxRows(s.LastIndex, itemsPerRow)
	if s.ScrollTop > s.MaxScrollTop {
		s.MaxScrollTop = s.ScrollTop
	}
	s.WrapperHeight = float64(s.MaxRows) * s.ItemHeight
	if s.ScrollTop-s.LastScrollTop > 0 {
		s.Direction = 1
	} else {
		s.Direction = -1
	}
	wrapperHeight := s.WrapperHeight

	newRows := 0
	if overflow := s.ScrollTop - s.LoadThresholdScrollTop; overflow > 0 {
		newRows = int(math.Ceil(overflow / s.ItemHeight))
	}

	var decision ranges.Decision
	if newRows > 0 && s.LastIndex >= 0 {
		s.LoadThresholdScrollTop = s.ScrollTop
		decision = m.scheduler.RequestRangeIfNeeded(newRows, itemsPerRow, meas.ItemsPresent-1, s.LastIndex)
		if decision.Exhausted {
			s.LoadedEverything = true
		}
		if decision.Issue {
			s.LastScrollTop = s.ScrollTop
			s.RequestedRows += decision.Request.RequestedRows
		}
	}
	m.mu.Unlock()

	m.layout.SetContainerHeight(wrapperHeight)

	if decision.Issue {
		m.logger.Debug().
			Int("start", decision.Request.Start).
			Int("end", decision.Request.End).
			Int("rows", newRows).
			Msg("range requested")
		if m.dispatch != nil {
			m.dispatch(decision.Request)
		}
	} else if newRows > 0 {
		m.logger.Debug().Int("rows", newRows).Bool("exhausted", decision.Exhausted).Msg("range already requested or past end")
	}
}

// Relayout refreshes the size-derived metrics after a resize without
// scheduling any fetch. It does nothing until an item is laid out.
func (m *Monitor) Relayout() {
	meas := m.layout.Measure()
	itemsPerRow := itemsPerRow(meas)
	if !meas.HasItem || itemsPerRow <= 0 || meas.ItemHeight <= 0 {
		return
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	s := &m.state
	s.ItemHeight = meas.ItemHeight
	s.ScreenOffset = int(math.Floor(s.ScrollTop / s.ItemHeight))
	s.ItemsPerRow = itemsPerRow
	s.MaxRows = maxRows(s.LastIndex, itemsPerRow)
	s.WrapperHeight = float64(s.MaxRows) * s.ItemHeight
	wrapperHeight := s.WrapperHeight
	m.mu.Unlock()

	m.layout.SetContainerHeight(wrapperHeight)
}

// Reset replaces the state with a fresh one for a new listing.
func (m *Monitor) Reset(lastIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = NewState(lastIndex)
	m.cancelRetryLocked()
}

// SetLastIndex records the last index reported by the backend.
func (m *Monitor) SetLastIndex(lastIndex int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.LastIndex = lastIndex
}

// State returns a copy of the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stop cancels pending debounced work and retries. A stopped Monitor ignores
// further recomputation.
func (m *Monitor) Stop() {
	m.scroll.Stop()
	m.resize.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	m.cancelRetryLocked()
}

func (m *Monitor) scheduleRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped || m.retry != nil {
		return
	}
	limit := m.opts.NotReadyRetries
	if limit > 0 && m.retries >= limit {
		if m.retries == limit {
			m.logger.Warn().Int("attempts", m.retries).Msg("layout never became ready, giving up until the next signal")
			m.retries++
		}
		return
	}
	if limit > 0 {
		m.retries++
	}

	epoch := m.retryEpoch
	m.retry = time.AfterFunc(m.opts.NotReadyDelay, func() {
		m.mu.Lock()
		if epoch != m.retryEpoch {
			m.mu.Unlock()
			return
		}
		m.retry = nil
		m.mu.Unlock()
		m.Recompute()
	})
}

func (m *Monitor) cancelRetryLocked() {
	m.retryEpoch++
	m.retries = 0
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

func itemsPerRow(meas Measurements) int {
	if meas.ItemWidth <= 0 {
		return 0
	}
	return int(math.Floor(meas.ContainerWidth / meas.ItemWidth))
}

func maxRows(lastIndex, itemsPerRow int) int {
	if lastIndex <= 0 || itemsPerRow <= 0 {
		return 0
	}
	return int(math.Ceil(float64(lastIndex) / float64(itemsPerRow)))
}
