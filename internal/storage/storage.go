// Package storage provides the key/value media that persist session state.
//
// Three media are available: a TOML session file (the default), a SQLite
// database, and process memory. All of them store opaque string values under
// string keys and are safe for concurrent use. The file and SQLite media
// outlive the process; Memory lasts for one run.
package storage

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Medium is a string key/value store.
type Medium interface {
	// Get returns the value stored under key. ok is false when nothing is stored.
	Get(key string) (value string, ok bool, err error)
	// Set stores value under key, replacing any previous value.
	Set(key, value string) error
	// Close releases resources held by the medium.
	Close() error
}

// Kind names a medium implementation.
type Kind string

const (
	KindFile   Kind = "file"
	KindSQLite Kind = "sqlite"
	KindMemory Kind = "memory"
	KindNone   Kind = "none"
)

// ErrNoMedium is returned by Open for KindNone.
var ErrNoMedium = errors.New("no storage medium configured")

// Open constructs the medium for kind rooted at path.
func Open(kind Kind, path string) (Medium, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(string(kind)))) {
	case KindFile, "":
		return NewFile(path)
	case KindSQLite:
		return OpenSQLite(path)
	case KindMemory:
		return NewMemory(), nil
	case KindNone:
		return nil, ErrNoMedium
	default:
		return nil, fmt.Errorf("unknown storage kind %q", kind)
	}
}

// Memory keeps values in process memory.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns an empty Memory medium.
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Close() error { return nil }
