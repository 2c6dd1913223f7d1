package filters

import (
	"fmt"
	"strings"
)

// Criterion is a single property/tag filter constraint.
type Criterion struct {
	Property string `json:"property" toml:"property"`
	Tag      string `json:"tag" toml:"tag"`
}

func (c Criterion) String() string {
	return c.Property + ":" + c.Tag
}

// Set is an ordered collection of criteria.
type Set []Criterion

// Clone returns an independent copy of the set. A nil or empty set clones to nil.
func (s Set) Clone() Set {
	if len(s) == 0 {
		return nil
	}
	dup := make(Set, len(s))
	copy(dup, s)
	return dup
}

// Contains reports whether the exact property/tag pair is present.
func (s Set) Contains(property, tag string) bool {
	for _, c := range s {
		if c.Property == property && c.Tag == tag {
			return true
		}
	}
	return false
}

// Tags returns the tags active for property in set order.
func (s Set) Tags(property string) []string {
	var tags []string
	for _, c := range s {
		if c.Property == property {
			tags = append(tags, c.Tag)
		}
	}
	return tags
}

// Mode selects how a mutation changes a Set.
type Mode int

const (
	ModeAdd Mode = iota
	ModeRemove
	ModeReplace
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeRemove:
		return "remove"
	case ModeReplace:
		return "replace"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps the textual mode names used by callers to a Mode.
func ParseMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "add":
		return ModeAdd, nil
	case "remove":
		return ModeRemove, nil
	case "replace":
		return ModeReplace, nil
	default:
		return 0, fmt.Errorf("unknown filter mode %q", value)
	}
}

// Apply returns the result of applying mode with property and tag to set.
// The input set is never modified.
//
// remove drops every exact match and keeps the rest in order. add appends the
// pair unless it is already present. replace drops every criterion for the
// property and then appends the pair, unless tag is empty, which clears the
// property.
func Apply(set Set, mode Mode, property, tag string) Set {
	switch mode {
	case ModeRemove:
		var out Set
		for _, c := range set {
			if c.Property != property || c.Tag != tag {
				out = append(out, c)
			}
		}
		return out
	case ModeAdd:
		out := set.Clone()
		if out.Contains(property, tag) {
			return out
		}
		return append(out, Criterion{Property: property, Tag: tag})
	case ModeReplace:
		var out Set
		for _, c := range set {
			if c.Property != property {
				out = append(out, c)
			}
		}
		if tag != "" {
			out = append(out, Criterion{Property: property, Tag: tag})
		}
		return out
	default:
		return set.Clone()
	}
}
