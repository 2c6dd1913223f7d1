// Package app is the composition root for contentstream.
//
// Open loads the configuration and builds the pieces everything else shares:
// the logger, the storage medium, the filter store and the widget client.
// Run adds the event bus, the ui Board (renderer and layout source) and the
// update coordinator, then drives the Bubble Tea program until the user
// quits or the context is cancelled.
//
// The headless helpers on Session back the CLI subcommands. They read and
// write the same persisted filter set as the TUI; ApplySpec mutates it
// without fetching, Fetch queries the widget with it.
//
// Interactive runs log to the configured log file because the TUI owns the
// terminal. Headless runs log warnings to stderr, or everything with
// Verbose.
package app
