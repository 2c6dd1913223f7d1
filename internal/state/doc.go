// Package state holds the canonical filter set for a content stream session.
//
// # Overview
//
// Store is the only owner of the active filter criteria. Callers never hold a
// reference to its data: Load returns a copy, and every mutation goes through
// Apply, which performs load, mutate and save as one call.
//
//	caller                     Store                       storage.Medium
//	  │  Apply(mode,p,t) ───────▶ loadLocked() ──────────────▶ Get(contentFilters)
//	  │                          filters.Apply(...)
//	  │                          saveLocked() ───────────────▶ Set(contentFilters, json)
//	  │  ◀────────────── copy of result
//
// # Persistence
//
// The set is stored as a JSON array of {"property","tag"} records under the
// single key "contentFilters". The same JSON string is what the transport
// sends as its state parameter (see Raw).
//
// A value that cannot be decoded reads as an empty set and is overwritten by
// the next mutation. A missing medium is logged once at construction and the
// Store then reports no filters and drops saves.
//
// # Concurrency
//
// Each method takes the Store mutex for its own duration only. The
// coordinator's mutation lock is what keeps two user-level cycles from
// interleaving.
package state
