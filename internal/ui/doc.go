// Package ui is the Bubble Tea front end: a scrolling grid of article cards
// with a fuzzy tag picker.
//
// Board is shared with the update coordinator. It implements the
// coordinator's Renderer (listing, placeholder and page draws arrive on
// coordinator goroutines) and the viewport Layout (card size, terminal width,
// visible height and scroll offset, all in terminal cells). Model owns the
// Bubble Tea loop, turns keys into scroll signals and filter requests, and
// redraws from a Board snapshot.
//
// Key bindings:
//
//	j/k, pgup/pgdown, g/G   scroll
//	f or /                  open the tag picker; enter toggles, esc closes
//	c                       clear filters
//	r                       reload
//	T                       cycle theme (saved to prefs)
//	?                       toggle help
//	q or ctrl+c             quit
package ui
