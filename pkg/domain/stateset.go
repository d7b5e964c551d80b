package domain

import (
	"encoding/json"
	"sort"
	"strings"
)

// StateSet is an unordered set of state identifiers.
// It serializes as a sorted array so snapshots are stable across runs.
type StateSet map[string]struct{}

// NewStateSet builds a set from the given states.
func NewStateSet(states ...string) StateSet {
	s := make(StateSet, len(states))
	for _, st := range states {
		s[st] = struct{}{}
	}
	return s
}

// Add inserts a state and reports whether it was new.
func (s StateSet) Add(state string) bool {
	if _, ok := s[state]; ok {
		return false
	}
	s[state] = struct{}{}
	return true
}

// Has reports membership. A nil set contains nothing.
func (s StateSet) Has(state string) bool {
	_, ok := s[state]
	return ok
}

// Len returns the number of states.
func (s StateSet) Len() int {
	return len(s)
}

// Empty reports whether the set has no members.
func (s StateSet) Empty() bool {
	return len(s) == 0
}

// Union adds every member of other into s.
func (s StateSet) Union(other StateSet) {
	for st := range other {
		s[st] = struct{}{}
	}
}

// Intersects reports whether s and other share at least one member.
func (s StateSet) Intersects(other StateSet) bool {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	for st := range small {
		if large.Has(st) {
			return true
		}
	}
	return false
}

// Equal reports set equality.
func (s StateSet) Equal(other StateSet) bool {
	if len(s) != len(other) {
		return false
	}
	for st := range s {
		if !other.Has(st) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every member of s is in other.
func (s StateSet) SubsetOf(other StateSet) bool {
	for st := range s {
		if !other.Has(st) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy. Cloning nil yields an empty set.
func (s StateSet) Clone() StateSet {
	c := make(StateSet, len(s))
	for st := range s {
		c[st] = struct{}{}
	}
	return c
}

// Sorted returns the members in lexical order.
func (s StateSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for st := range s {
		out = append(out, st)
	}
	sort.Strings(out)
	return out
}

// String renders the set as "{a,b,c}".
func (s StateSet) String() string {
	return "{" + strings.Join(s.Sorted(), ",") + "}"
}

func (s StateSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *StateSet) UnmarshalJSON(data []byte) error {
	var members []string
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = NewStateSet(members...)
	return nil
}

func (s StateSet) MarshalYAML() (any, error) {
	return s.Sorted(), nil
}

func (s *StateSet) UnmarshalYAML(unmarshal func(any) error) error {
	var members []string
	if err := unmarshal(&members); err != nil {
		return err
	}
	*s = NewStateSet(members...)
	return nil
}
