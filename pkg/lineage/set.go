package lineage

import (
	"strings"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// AttributeSet is an insertion ordered set of attributes keyed by identity.
// When an identity is added twice the first attribute is kept.
type AttributeSet struct {
	attrs []plan.Attribute
	index map[plan.ExprID]int
}

// NewAttributeSet builds a set from attrs.
func NewAttributeSet(attrs ...plan.Attribute) AttributeSet {
	var s AttributeSet
	for _, a := range attrs {
		s.insert(a)
	}
	return s
}

// insert mutates s; callers own s exclusively.
func (s *AttributeSet) insert(a plan.Attribute) {
	if s.Contains(a.ID) {
		return
	}
	if s.index == nil {
		s.index = make(map[plan.ExprID]int)
	}
	s.index[a.ID] = len(s.attrs)
	s.attrs = append(s.attrs, a)
}

func (s AttributeSet) clone() AttributeSet {
	return NewAttributeSet(s.attrs...)
}

// Add returns a set with a added.
func (s AttributeSet) Add(a plan.Attribute) AttributeSet {
	if s.Contains(a.ID) {
		return s
	}
	out := s.clone()
	out.insert(a)
	return out
}

// Union returns the attributes of s followed by those of other not in s.
func (s AttributeSet) Union(other AttributeSet) AttributeSet {
	if other.Len() == 0 {
		return s
	}
	if s.Len() == 0 {
		return other
	}
	out := s.clone()
	for _, a := range other.attrs {
		out.insert(a)
	}
	return out
}

// Contains reports whether an attribute with identity id is in s.
func (s AttributeSet) Contains(id plan.ExprID) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of attributes.
func (s AttributeSet) Len() int {
	return len(s.attrs)
}

// Attributes returns the attributes in insertion order.
func (s AttributeSet) Attributes() []plan.Attribute {
	return append([]plan.Attribute(nil), s.attrs...)
}

// QualifiedNames returns the dotted names of the attributes, deduplicated
// in first-seen order.
func (s AttributeSet) QualifiedNames() []string {
	names := make([]string, 0, len(s.attrs))
	seen := make(map[string]struct{}, len(s.attrs))
	for _, a := range s.attrs {
		n := a.QualifiedName()
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	return names
}

func (s AttributeSet) String() string {
	parts := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		parts[i] = a.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
