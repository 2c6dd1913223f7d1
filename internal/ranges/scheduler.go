// Package ranges decides which contiguous index range to request next and
// keeps the ledger of every range already requested.
package ranges

import (
	"fmt"
	"sync"
)

// Request is an inclusive index range issued to the backend.
type Request struct {
	Start         int
	End           int
	RequestedRows float64
	Fulfilled     bool
}

// Limit returns the number of items the range covers.
func (r Request) Limit() int {
	return r.End - r.Start + 1
}

func (r Request) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Decision is the outcome of RequestRangeIfNeeded.
type Decision struct {
	// Request is set when Issue is true.
	Request Request
	// Issue reports that Request was appended to the ledger and must be dispatched.
	Issue bool
	// Exhausted reports that the computed range reached the last known index.
	Exhausted bool
}

// Scheduler owns the request ledger. Entries are appended and marked
// fulfilled; they are only dropped as a whole by Reset.
type Scheduler struct {
	mu     sync.Mutex
	ledger []Request
}

// NewScheduler returns a Scheduler with an empty ledger.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// RequestRangeIfNeeded computes the range following lastRequestedIndex that
// covers newRowsNeeded rows of itemsPerRow items, clamped to lastIndex.
//
// Nothing is issued when no rows are needed, when the range would start past
// lastIndex, or when an existing ledger entry equals or contains the range.
// Partial overlaps with earlier entries are not detected.
func (s *Scheduler) RequestRangeIfNeeded(newRowsNeeded, itemsPerRow, lastRequestedIndex, lastIndex int) Decision {
	if newRowsNeeded <= 0 || itemsPerRow <= 0 {
		return Decision{}
	}

	var d Decision
	start := lastRequestedIndex + 1
	end := lastRequestedIndex + newRowsNeeded*itemsPerRow
	if end > lastIndex {
		end = lastIndex
		d.Exhausted = true
	}
	if start > lastIndex {
		d.Exhausted = true
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.alreadyRequestedLocked(start, end) {
		return d
	}
	req := Request{
		Start:         start,
		End:           end,
		RequestedRows: float64(end-start+1) / float64(itemsPerRow),
	}
	s.ledger = append(s.ledger, req)
	d.Request = req
	d.Issue = true
	return d
}

// AlreadyRequested reports whether an entry equals or contains [start, end].
func (s *Scheduler) AlreadyRequested(start, end int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alreadyRequestedLocked(start, end)
}

func (s *Scheduler) alreadyRequestedLocked(start, end int) bool {
	for _, r := range s.ledger {
		if r.Start <= start && r.End >= end {
			return true
		}
	}
	return false
}

// MarkFulfilled flags the entry for [start, end] as fulfilled. It reports
// false when the ledger holds no such entry, which happens when a response
// arrives after a Reset.
func (s *Scheduler) MarkFulfilled(start, end int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.ledger {
		if s.ledger[i].Start == start && s.ledger[i].End == end {
			s.ledger[i].Fulfilled = true
			return true
		}
	}
	return false
}

// Entries returns a copy of the ledger in issue order.
func (s *Scheduler) Entries() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ledger) == 0 {
		return nil
	}
	dup := make([]Request, len(s.ledger))
	copy(dup, s.ledger)
	return dup
}

// Len returns the number of ledger entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ledger)
}

// Pending returns the number of entries not yet fulfilled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.ledger {
		if !r.Fulfilled {
			n++
		}
	}
	return n
}

// Reset discards the ledger. Used when a filter change invalidates every
// outstanding range.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = nil
}
