package lineage

import (
	"strings"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// ColumnsLineage maps output attributes to the attributes they were
// computed from. Keys are compared by identity and keep insertion order.
type ColumnsLineage struct {
	keys   []plan.Attribute
	values []AttributeSet
	index  map[plan.ExprID]int
}

// Entry is one key/value pair of a ColumnsLineage.
type Entry struct {
	Attr    plan.Attribute
	Sources AttributeSet
}

// NewColumnsLineage builds a map from entries. Later entries for the same
// identity replace earlier ones in place.
func NewColumnsLineage(entries ...Entry) ColumnsLineage {
	var m ColumnsLineage
	for _, e := range entries {
		m.put(e.Attr, e.Sources)
	}
	return m
}

// put mutates m; callers own m exclusively.
func (m *ColumnsLineage) put(k plan.Attribute, v AttributeSet) {
	if i, ok := m.index[k.ID]; ok {
		m.keys[i] = k
		m.values[i] = v
		return
	}
	if m.index == nil {
		m.index = make(map[plan.ExprID]int)
	}
	m.index[k.ID] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
}

// Len returns the number of entries.
func (m ColumnsLineage) Len() int {
	return len(m.keys)
}

// IsEmpty reports whether m has no entries.
func (m ColumnsLineage) IsEmpty() bool {
	return len(m.keys) == 0
}

// Get returns the sources recorded for identity id.
func (m ColumnsLineage) Get(id plan.ExprID) (AttributeSet, bool) {
	i, ok := m.index[id]
	if !ok {
		return AttributeSet{}, false
	}
	return m.values[i], true
}

// Keys returns the output attributes in order.
func (m ColumnsLineage) Keys() []plan.Attribute {
	return append([]plan.Attribute(nil), m.keys...)
}

// Values returns the source sets in key order.
func (m ColumnsLineage) Values() []AttributeSet {
	return append([]AttributeSet(nil), m.values...)
}

// Entries returns the pairs in order.
func (m ColumnsLineage) Entries() []Entry {
	out := make([]Entry, len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry{Attr: k, Sources: m.values[i]}
	}
	return out
}

// Map returns a new map with every entry passed through fn.
func (m ColumnsLineage) Map(fn func(plan.Attribute, AttributeSet) (plan.Attribute, AttributeSet)) ColumnsLineage {
	var out ColumnsLineage
	for i, k := range m.keys {
		out.put(fn(k, m.values[i]))
	}
	return out
}

func (m ColumnsLineage) String() string {
	parts := make([]string, len(m.keys))
	for i, k := range m.keys {
		parts[i] = k.String() + " -> " + m.values[i].String()
	}
	return "[" + strings.Join(parts, "; ") + "]"
}

// MergeColumnsLineage unions two maps. Keys of left come first; for keys
// present in both the source sets are unioned.
func MergeColumnsLineage(left, right ColumnsLineage) ColumnsLineage {
	if right.IsEmpty() {
		return left
	}
	if left.IsEmpty() {
		return right
	}
	out := NewColumnsLineage(left.Entries()...)
	for i, k := range right.keys {
		v := right.values[i]
		if prev, ok := left.Get(k.ID); ok {
			v = v.Union(prev)
		}
		out.put(k, v)
	}
	return out
}

// JoinColumnsLineage resolves the requests of parent against the computed
// lineage of child. Every dependency found in child is replaced by its
// sources; one that is not found stands for itself, except the count-all
// marker which is dropped. An empty parent yields child unchanged.
func JoinColumnsLineage(parent, child ColumnsLineage) ColumnsLineage {
	return joinColumnsLineage(parent, child, nil)
}

func joinColumnsLineage(parent, child ColumnsLineage, onDroppedCount func(k, dep plan.Attribute)) ColumnsLineage {
	if parent.IsEmpty() {
		return child
	}
	return parent.Map(func(k plan.Attribute, deps AttributeSet) (plan.Attribute, AttributeSet) {
		var resolved AttributeSet
		for _, dep := range deps.attrs {
			if sources, ok := child.Get(dep.ID); ok {
				for _, s := range sources.attrs {
					resolved.insert(s)
				}
				continue
			}
			if dep.IsCountAll() {
				if onDroppedCount != nil {
					onDroppedCount(k, dep)
				}
				continue
			}
			resolved.insert(dep)
		}
		return k, resolved
	})
}

// JoinRelationColumnLineage qualifies the attributes a leaf relation owns.
//
// With pending requests, each dependency is rewritten: relation attributes
// and count-all markers get qualifier, subquery attributes lose one marker
// level, names already carrying the qualifier path are cut to their last
// segment. Any other dependency belongs to another relation and is dropped.
// Without requests every relation attribute maps to its qualified self.
func JoinRelationColumnLineage(parent ColumnsLineage, relationOutput []plan.Attribute, qualifier []string) ColumnsLineage {
	if parent.IsEmpty() {
		var out ColumnsLineage
		for _, a := range relationOutput {
			out.put(a, NewAttributeSet(a.WithQualifier(qualifier)))
		}
		return out
	}
	owned := NewAttributeSet(relationOutput...)
	return parent.Map(func(k plan.Attribute, deps AttributeSet) (plan.Attribute, AttributeSet) {
		var resolved AttributeSet
		for _, dep := range deps.attrs {
			switch {
			case owned.Contains(dep.ID):
				resolved.insert(dep.WithQualifier(qualifier))
			case dep.InSubquery():
				resolved.insert(dep.TrimQualifier())
			case dep.IsCountAll():
				resolved.insert(dep.WithQualifier(qualifier))
			case nameHasQualifier(dep, qualifier):
				resolved.insert(dep.WithName(lastNameSegment(dep.Name)).WithQualifier(qualifier))
			}
		}
		return k, resolved
	})
}

// MergeRelationColumnLineage resolves parent against a relation backed by
// an analyzed plan. relationOutput is zipped positionally with the values of
// relationLineage, which must follow the same column order; missing values
// become empty sets.
func MergeRelationColumnLineage(parent ColumnsLineage, relationOutput []plan.Attribute, relationLineage ColumnsLineage) ColumnsLineage {
	return mergeRelationColumnLineage(parent, relationOutput, relationLineage, nil)
}

func mergeRelationColumnLineage(parent ColumnsLineage, relationOutput []plan.Attribute, relationLineage ColumnsLineage, onDroppedCount func(k, dep plan.Attribute)) ColumnsLineage {
	var zipped ColumnsLineage
	for i, a := range relationOutput {
		var v AttributeSet
		if i < len(relationLineage.values) {
			v = relationLineage.values[i]
		}
		zipped.put(a, v)
	}
	return joinColumnsLineage(parent, zipped, onDroppedCount)
}

// nameHasQualifier reports whether a dotted attribute name already starts
// with a namespace ending in qualifier.
func nameHasQualifier(a plan.Attribute, qualifier []string) bool {
	tokens := strings.Split(a.Name, ".")
	if len(tokens) < 2 {
		return false
	}
	namespace := strings.Join(tokens[:len(tokens)-1], ".")
	return strings.HasSuffix(namespace, strings.Join(qualifier, "."))
}

func lastNameSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "`"), "`")
}
