package filters

import "strings"

// DefaultExclusiveProperties are the category-like properties that hold at
// most one tag at a time.
var DefaultExclusiveProperties = []string{"pillars", "experts", "featuring"}

// Policy decides which mode a caller uses for a property. The store itself
// executes whatever mode it is handed; Policy lives with the callers.
type Policy struct {
	exclusive map[string]bool
}

// NewPolicy builds a Policy. An empty list falls back to DefaultExclusiveProperties.
func NewPolicy(exclusive []string) Policy {
	if len(exclusive) == 0 {
		exclusive = DefaultExclusiveProperties
	}
	p := Policy{exclusive: make(map[string]bool, len(exclusive))}
	for _, name := range exclusive {
		name = strings.TrimSpace(name)
		if name != "" {
			p.exclusive[name] = true
		}
	}
	return p
}

// Exclusive reports whether property uses replace semantics.
func (p Policy) Exclusive(property string) bool {
	if p.exclusive == nil {
		return NewPolicy(nil).Exclusive(property)
	}
	return p.exclusive[property]
}

// ModeFor returns replace for exclusive properties and add otherwise.
func (p Policy) ModeFor(property string) Mode {
	if p.Exclusive(property) {
		return ModeReplace
	}
	return ModeAdd
}

// ToggleMode returns the mode a UI toggle should use for the pair given the
// current set. An active pair is removed. An empty tag clears the property
// through replace. Otherwise exclusive properties replace and the rest add.
func (p Policy) ToggleMode(set Set, property, tag string) Mode {
	switch {
	case tag == "":
		return ModeReplace
	case set.Contains(property, tag):
		return ModeRemove
	case p.Exclusive(property):
		return ModeReplace
	default:
		return ModeAdd
	}
}
