package ranges

import (
	"testing"
)

func TestRequestRangeIfNeeded_ClampsToLastIndex(t *testing.T) {
	s := NewScheduler()

	d := s.RequestRangeIfNeeded(2, 4, 7, 11)
	if !d.Issue {
		t.Fatalf("Issue = false, want true")
	}
	if d.Request.Start != 8 || d.Request.End != 11 {
		t.Fatalf("Request = %v, want [8,11]", d.Request)
	}
	if !d.Exhausted {
		t.Fatalf("Exhausted = false, want true after clamping from [8,15]")
	}
	if d.Request.RequestedRows != 1 {
		t.Fatalf("RequestedRows = %v, want 1", d.Request.RequestedRows)
	}
	if d.Request.Fulfilled {
		t.Fatalf("new request already fulfilled")
	}
}

func TestRequestRangeIfNeeded_ClampThenPastEnd(t *testing.T) {
	s := NewScheduler()

	d := s.RequestRangeIfNeeded(3, 10, 29, 42)
	if !d.Issue || d.Request.Start != 30 || d.Request.End != 42 || !d.Exhausted {
		t.Fatalf("Decision = %+v, want issued [30,42] exhausted", d)
	}

	d = s.RequestRangeIfNeeded(1, 10, 42, 42)
	if d.Issue {
		t.Fatalf("Issue = true for start 43 past lastIndex 42")
	}
	if !d.Exhausted {
		t.Fatalf("Exhausted = false, want true when start passes lastIndex")
	}
	if s.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", s.Len())
	}
}

func TestRequestRangeIfNeeded_NoRowsNeeded(t *testing.T) {
	s := NewScheduler()
	for _, rows := range []int{0, -3} {
		d := s.RequestRangeIfNeeded(rows, 4, 7, 100)
		if d.Issue || d.Exhausted {
			t.Fatalf("rows=%d Decision = %+v, want zero", rows, d)
		}
	}
	if d := s.RequestRangeIfNeeded(1, 0, 7, 100); d.Issue {
		t.Fatalf("itemsPerRow=0 issued %v", d.Request)
	}
	if s.Len() != 0 {
		t.Fatalf("ledger len = %d, want 0", s.Len())
	}
}

func TestRequestRangeIfNeeded_DedupIsIdempotent(t *testing.T) {
	s := NewScheduler()

	first := s.RequestRangeIfNeeded(2, 5, -1, 100)
	if !first.Issue || first.Request.Start != 0 || first.Request.End != 9 {
		t.Fatalf("first = %+v, want issued [0,9]", first)
	}
	for i := 0; i < 3; i++ {
		again := s.RequestRangeIfNeeded(2, 5, -1, 100)
		if again.Issue {
			t.Fatalf("repeat %d issued %v, want dedup", i, again.Request)
		}
	}
	if s.Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", s.Len())
	}
}

func TestRequestRangeIfNeeded_ContainedVersusPartialOverlap(t *testing.T) {
	s := NewScheduler()
	if d := s.RequestRangeIfNeeded(2, 5, -1, 100); !d.Issue {
		t.Fatalf("seed [0,9] not issued")
	}

	// [3,7] sits inside [0,9].
	if d := s.RequestRangeIfNeeded(1, 5, 2, 100); d.Issue {
		t.Fatalf("contained range issued %v", d.Request)
	}
	if !s.AlreadyRequested(3, 7) {
		t.Fatalf("AlreadyRequested(3,7) = false, want true")
	}

	// [5,14] only overlaps [0,9] and is issued.
	d := s.RequestRangeIfNeeded(2, 5, 4, 100)
	if !d.Issue || d.Request.Start != 5 || d.Request.End != 14 {
		t.Fatalf("partial overlap Decision = %+v, want issued [5,14]", d)
	}
	if s.Len() != 2 {
		t.Fatalf("ledger len = %d, want 2", s.Len())
	}
}

func TestMarkFulfilled(t *testing.T) {
	s := NewScheduler()
	s.RequestRangeIfNeeded(1, 4, -1, 100)
	s.RequestRangeIfNeeded(1, 4, 3, 100)

	if s.Pending() != 2 {
		t.Fatalf("Pending = %d, want 2", s.Pending())
	}
	if !s.MarkFulfilled(4, 7) {
		t.Fatalf("MarkFulfilled(4,7) = false, want true")
	}
	if s.MarkFulfilled(100, 104) {
		t.Fatalf("MarkFulfilled on unknown range = true, want false")
	}

	entries := s.Entries()
	if entries[0].Fulfilled || !entries[1].Fulfilled {
		t.Fatalf("entries = %+v, want only second fulfilled", entries)
	}
	if s.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", s.Pending())
	}

	// Entries is a copy.
	entries[0].Fulfilled = true
	if s.Entries()[0].Fulfilled {
		t.Fatalf("Entries should return a copy")
	}
}

func TestReset_AllowsReissue(t *testing.T) {
	s := NewScheduler()
	s.RequestRangeIfNeeded(1, 4, -1, 100)
	s.Reset()

	if s.Len() != 0 || s.Entries() != nil {
		t.Fatalf("ledger not empty after Reset")
	}
	if s.MarkFulfilled(0, 3) {
		t.Fatalf("stale MarkFulfilled after Reset = true, want false")
	}
	if d := s.RequestRangeIfNeeded(1, 4, -1, 100); !d.Issue {
		t.Fatalf("range not reissued after Reset")
	}
}

func TestRequest_LimitAndString(t *testing.T) {
	r := Request{Start: 8, End: 11}
	if r.Limit() != 4 {
		t.Fatalf("Limit = %d, want 4", r.Limit())
	}
	if r.String() != "[8,11]" {
		t.Fatalf("String = %q, want [8,11]", r.String())
	}
}
