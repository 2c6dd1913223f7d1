// Package events is a small in-process publish/subscribe bus. The update
// coordinator announces finished reloads, loaded pages and failed fetches on
// it; the terminal UI and the CLI listen.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/contentstream/internal/filters"
)

// EventType names an event kind.
type EventType string

const (
	EventContentUpdate EventType = "content:update"
	EventPageLoaded    EventType = "content:page"
	EventFetchFailed   EventType = "content:error"
)

const defaultBuffer = 64

// Event is implemented by every published value.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent carries the common fields.
type BaseEvent struct {
	EventType EventType
	Time      time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// ContentUpdateEvent follows a completed reload cycle.
type ContentUpdateEvent struct {
	BaseEvent
	Filters   filters.Set
	LastIndex int
	Articles  int
}

// PageLoadedEvent follows a rendered range.
type PageLoadedEvent struct {
	BaseEvent
	Start    int
	End      int
	Articles int
}

// FetchFailedEvent reports a fetch that failed after transport retries.
type FetchFailedEvent struct {
	BaseEvent
	Start int // -1 for a full reload
	End   int
	Err   error
}

// Bus fans events out to buffered subscriber channels. Publish never blocks;
// events for a full channel are dropped and counted.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]chan Event
	all         []chan Event
	bufferSize  int
	closed      bool
	dropped     atomic.Int64
}

// NewBus returns a Bus whose subscriber channels hold bufferSize events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBuffer
	}
	return &Bus{
		subscribers: make(map[EventType][]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel receiving events of one type.
func (b *Bus) Subscribe(eventType EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[eventType] = append(b.subscribers[eventType], ch)
	return ch
}

// SubscribeAll returns a channel receiving every event.
func (b *Bus) SubscribeAll() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.all = append(b.all, ch)
	return ch
}

// Publish delivers event to its subscribers. A nil Bus discards it.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers[event.Type()] {
		b.send(ch, event)
	}
	for _, ch := range b.all {
		b.send(ch, event)
	}
}

func (b *Bus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		b.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded on full channels.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, channels := range b.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.all {
		close(ch)
	}
}

// PublishContentUpdate announces a completed reload.
func (b *Bus) PublishContentUpdate(set filters.Set, lastIndex, articles int) {
	b.Publish(&ContentUpdateEvent{
		BaseEvent: BaseEvent{EventType: EventContentUpdate, Time: time.Now()},
		Filters:   set,
		LastIndex: lastIndex,
		Articles:  articles,
	})
}

// PublishPageLoaded announces a rendered range.
func (b *Bus) PublishPageLoaded(start, end, articles int) {
	b.Publish(&PageLoadedEvent{
		BaseEvent: BaseEvent{EventType: EventPageLoaded, Time: time.Now()},
		Start:     start,
		End:       end,
		Articles:  articles,
	})
}

// PublishFetchFailed announces a failed fetch.
func (b *Bus) PublishFetchFailed(start, end int, err error) {
	b.Publish(&FetchFailedEvent{
		BaseEvent: BaseEvent{EventType: EventFetchFailed, Time: time.Now()},
		Start:     start,
		End:       end,
		Err:       err,
	})
}
