// Package coordinator owns the update cycle that ties filter state, the
// range scheduler, the viewport monitor and the transport together.
//
// # Lock
//
// A filter change, a clear and a reload each take a two-state lock
// (Idle/Locked). A second request while Locked is rejected with ErrLocked and
// leaves every piece of state untouched; nothing is queued. Bootstrap bypasses
// the lock so that every token of a location spec applies before the first
// render.
//
// # Reload cycle
//
//	lock → mutate store → reset ledger and viewport → fetch listing
//	     → render → refresh last index → recompute viewport → unlock → publish
//
// The lock is released on every path, including fetch failures.
//
// # Ranges
//
// The viewport monitor calls DispatchRange for every range the scheduler
// issues. Placeholders are drawn synchronously, the page is fetched on its
// own goroutine and rendered when it arrives. Range fetches never touch the
// lock and are not cancelled by a filter change; a page that lands after a
// reset is still drawn and its ledger lookup misses.
package coordinator
