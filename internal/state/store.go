package state

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/filters"
	"github.com/five82/contentstream/internal/storage"
)

// StorageKey is the single session key holding the serialized filter set.
const StorageKey = "contentFilters"

// Store owns the canonical filter set and persists it through a storage
// medium after every mutation. Without a medium it behaves as if no filters
// are active and drops saves.
//
// Store serializes individual calls only. A load-mutate-save cycle spanning
// several calls must be guarded by the caller.
type Store struct {
	mu     sync.Mutex
	medium storage.Medium
	logger zerolog.Logger
}

// NewStore returns a Store backed by medium. A nil medium is logged as a
// fatal condition for persistence; the Store still works as a no-op.
func NewStore(medium storage.Medium, logger zerolog.Logger) *Store {
	s := &Store{medium: medium, logger: logger}
	if medium == nil {
		logger.Error().Str("severity", "fatal").Msg("session storage is required by the filtering system to maintain state")
	}
	return s
}

// Persistent reports whether mutations reach a storage medium.
func (s *Store) Persistent() bool {
	return s.medium != nil
}

// Load returns a copy of the current filter set.
func (s *Store) Load() filters.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Raw returns the serialized set exactly as the transport sends it.
func (s *Store) Raw() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := encode(s.loadLocked())
	if err != nil {
		return "[]"
	}
	return raw
}

// Save replaces the persisted set.
func (s *Store) Save(set filters.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(set)
}

// Apply loads the set, applies the mutation, saves and returns the result.
// A failed save is logged; the returned set is what the mutation produced.
func (s *Store) Apply(mode filters.Mode, property, tag string) filters.Set {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := filters.Apply(s.loadLocked(), mode, property, tag)
	if err := s.saveLocked(next); err != nil {
		s.logger.Error().Err(err).Str("mode", mode.String()).Msg("persist filter state")
	}
	return next.Clone()
}

// Clear empties the persisted set.
func (s *Store) Clear() error {
	return s.Save(nil)
}

// ApplyToken applies one location-spec token. A clear token empties the set;
// a criterion is applied in the mode policy assigns to its property.
func (s *Store) ApplyToken(policy filters.Policy, tok filters.Token) filters.Set {
	switch tok.Kind {
	case filters.TokenClear:
		if err := s.Clear(); err != nil {
			s.logger.Error().Err(err).Msg("persist filter state")
		}
		return nil
	default:
		p, t := tok.Criterion.Property, tok.Criterion.Tag
		return s.Apply(policy.ModeFor(p), p, t)
	}
}

func (s *Store) loadLocked() filters.Set {
	if s.medium == nil {
		return nil
	}
	raw, ok, err := s.medium.Get(StorageKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("load filter state")
		return nil
	}
	if !ok {
		return nil
	}
	set, err := decode(raw)
	if err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable filter state")
		return nil
	}
	return set
}

func (s *Store) saveLocked(set filters.Set) error {
	if s.medium == nil {
		return nil
	}
	raw, err := encode(set)
	if err != nil {
		return err
	}
	if err := s.medium.Set(StorageKey, raw); err != nil {
		return fmt.Errorf("save filter state: %w", err)
	}
	return nil
}

func encode(set filters.Set) (string, error) {
	if set == nil {
		set = filters.Set{}
	}
	bytes, err := json.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("encode filter state: %w", err)
	}
	return string(bytes), nil
}

func decode(raw string) (filters.Set, error) {
	var set filters.Set
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		return nil, fmt.Errorf("decode filter state: %w", err)
	}
	if len(set) == 0 {
		return nil, nil
	}
	return set, nil
}
