package ui

import (
	"sort"
	"sync"

	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/ranges"
	"github.com/five82/contentstream/internal/stream"
	"github.com/five82/contentstream/internal/viewport"
)

const (
	defaultCardWidth  = 32
	defaultCardHeight = 7
)

// Slot is one grid cell. A nil Article marks a placeholder awaiting its page.
type Slot struct {
	Index   int
	Article *stream.Article
}

// Placeholder reports whether the slot is still waiting for data.
func (s Slot) Placeholder() bool {
	return s.Article == nil
}

// Board is the shared grid the coordinator renders into and the viewport
// monitor measures. Coordinates are terminal cells: one line is one unit of
// vertical scroll.
type Board struct {
	mu sync.Mutex

	cardWidth  int
	cardHeight int
	width      int
	height     int
	scrollTop  int
	container  int

	slots   []Slot
	pending map[[2]int]bool
	groups  []stream.FilterGroup
	active  filters.Set
	last    int
	version uint64
}

// NewBoard returns an empty Board with cards of the given cell size. Zero
// sizes use the defaults.
func NewBoard(cardWidth, cardHeight int) *Board {
	if cardWidth <= 0 {
		cardWidth = defaultCardWidth
	}
	if cardHeight <= 0 {
		cardHeight = defaultCardHeight
	}
	return &Board{cardWidth: cardWidth, cardHeight: cardHeight, last: -1}
}

// RenderListing replaces the grid with a fresh listing and scrolls to the top.
func (b *Board) RenderListing(listing *stream.Listing, active filters.Set) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slots = b.slots[:0]
	clear(b.pending)
	if listing != nil {
		for i := range listing.Articles {
			a := listing.Articles[i]
			b.slots = append(b.slots, Slot{Index: int(a.Index), Article: &a})
		}
		b.groups = listing.Filters
		b.last = int(listing.Last)
	}
	sortSlots(b.slots)
	b.active = active.Clone()
	b.scrollTop = 0
	b.version++
}

// RenderPlaceholders reserves a slot for every index of req not yet shown.
func (b *Board) RenderPlaceholders(req ranges.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == nil {
		b.pending = make(map[[2]int]bool)
	}
	b.pending[[2]int{req.Start, req.End}] = true
	for i := req.Start; i <= req.End; i++ {
		if b.findLocked(i) < 0 {
			b.slots = append(b.slots, Slot{Index: i})
		}
	}
	sortSlots(b.slots)
	b.version++
}

// RenderPage fills the slots of req. Placeholders the page did not fill are
// dropped. A page whose placeholders were discarded by a newer listing is
// ignored.
func (b *Board) RenderPage(listing *stream.Listing, req ranges.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := [2]int{req.Start, req.End}
	if !b.pending[key] {
		return
	}
	delete(b.pending, key)

	if listing != nil {
		for i := range listing.Articles {
			a := listing.Articles[i]
			if pos := b.findLocked(int(a.Index)); pos >= 0 {
				b.slots[pos].Article = &a
				continue
			}
			b.slots = append(b.slots, Slot{Index: int(a.Index), Article: &a})
		}
		b.last = int(listing.Last)
	}

	kept := b.slots[:0]
	for _, s := range b.slots {
		if s.Placeholder() && s.Index >= req.Start && s.Index <= req.End {
			continue
		}
		kept = append(kept, s)
	}
	b.slots = kept
	sortSlots(b.slots)
	b.version++
}

// Measure implements viewport.Layout.
func (b *Board) Measure() viewport.Measurements {
	b.mu.Lock()
	defer b.mu.Unlock()

	loaded := 0
	for _, s := range b.slots {
		if !s.Placeholder() {
			loaded++
		}
	}
	return viewport.Measurements{
		ScrollTop:      float64(b.scrollTop),
		HasItem:        len(b.slots) > 0 && b.width > 0 && b.height > 0,
		ItemHeight:     float64(b.cardHeight),
		ItemWidth:      float64(b.cardWidth),
		ContainerWidth: float64(b.width),
		WindowHeight:   float64(b.height),
		ItemsPresent:   len(b.slots),
		ItemsLoaded:    loaded,
	}
}

// SetContainerHeight implements viewport.Layout. It bounds how far the reader
// can scroll ahead of the loaded rows.
func (b *Board) SetContainerHeight(height float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.container = int(height)
}

// SetSize records the body area available to the grid.
func (b *Board) SetSize(width, height int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.width = max(width, 0)
	b.height = max(height, 0)
	b.scrollTop = b.clampLocked(b.scrollTop)
}

// ScrollBy moves the scroll offset by delta lines and reports whether it
// changed.
func (b *Board) ScrollBy(delta int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.clampLocked(b.scrollTop + delta)
	if next == b.scrollTop {
		return false
	}
	b.scrollTop = next
	return true
}

// ScrollTo moves to an absolute offset, clamped.
func (b *Board) ScrollTo(top int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := b.clampLocked(top)
	if next == b.scrollTop {
		return false
	}
	b.scrollTop = next
	return true
}

// Snapshot is a consistent copy of the board for drawing.
type Snapshot struct {
	CardWidth  int
	CardHeight int
	Width      int
	Height     int
	ScrollTop  int
	Slots      []Slot
	Groups     []stream.FilterGroup
	Active     filters.Set
	Last       int
	Version    uint64
}

// Snapshot returns a copy of the current board.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		CardWidth:  b.cardWidth,
		CardHeight: b.cardHeight,
		Width:      b.width,
		Height:     b.height,
		ScrollTop:  b.scrollTop,
		Slots:      append([]Slot(nil), b.slots...),
		Groups:     append([]stream.FilterGroup(nil), b.groups...),
		Active:     b.active.Clone(),
		Last:       b.last,
		Version:    b.version,
	}
}

// Pending returns the number of placeholder slots.
func (s Snapshot) Pending() int {
	n := 0
	for _, slot := range s.Slots {
		if slot.Placeholder() {
			n++
		}
	}
	return n
}

// PerRow returns how many cards fit side by side, at least one.
func (s Snapshot) PerRow() int {
	if s.CardWidth <= 0 || s.Width < s.CardWidth {
		return 1
	}
	return s.Width / s.CardWidth
}

func (b *Board) clampLocked(top int) int {
	perRow := 1
	if b.cardWidth > 0 && b.width >= b.cardWidth {
		perRow = b.width / b.cardWidth
	}
	rows := (len(b.slots) + perRow - 1) / perRow
	content := max(rows*b.cardHeight, b.container)
	limit := max(content-b.height, 0)
	return min(max(top, 0), limit)
}

func (b *Board) findLocked(index int) int {
	for i, s := range b.slots {
		if s.Index == index {
			return i
		}
	}
	return -1
}

func sortSlots(slots []Slot) {
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Index < slots[j].Index })
}
