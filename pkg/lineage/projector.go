package lineage

import "strings"

// Lineage is the lineage record of one statement.
type Lineage struct {
	InputTables   []string        `json:"inputTables" yaml:"inputTables"`
	OutputTables  []string        `json:"outputTables" yaml:"outputTables"`
	ColumnLineage []ColumnLineage `json:"columnLineage" yaml:"columnLineage"`
}

// ColumnLineage lists the source columns of one output column.
type ColumnLineage struct {
	Column          string   `json:"column" yaml:"column"`
	OriginalColumns []string `json:"originalColumns" yaml:"originalColumns"`
}

// Project flattens an extracted map into the public record. Output columns
// use the key's name; sources use their qualified names. Table names are
// every qualified name minus its last segment, deduplicated in first-seen
// order.
func Project(lin ColumnsLineage) *Lineage {
	result := &Lineage{
		InputTables:   []string{},
		OutputTables:  []string{},
		ColumnLineage: make([]ColumnLineage, 0, lin.Len()),
	}
	inputs := newOrderedSet()
	outputs := newOrderedSet()

	for _, entry := range lin.Entries() {
		sources := entry.Sources.QualifiedNames()
		result.ColumnLineage = append(result.ColumnLineage, ColumnLineage{
			Column:          entry.Attr.Name,
			OriginalColumns: sources,
		})
		for _, s := range sources {
			inputs.add(tableOf(s))
		}
		outputs.add(tableOf(entry.Attr.Name))
	}

	result.InputTables = append(result.InputTables, inputs.items...)
	result.OutputTables = append(result.OutputTables, outputs.items...)
	return result
}

// Tables returns the union of input and output tables.
func (l *Lineage) Tables() []string {
	set := newOrderedSet()
	for _, t := range l.InputTables {
		set.add(t)
	}
	for _, t := range l.OutputTables {
		set.add(t)
	}
	return set.items
}

// tableOf strips the trailing column segment of a qualified name.
func tableOf(qualified string) string {
	i := strings.LastIndex(qualified, ".")
	if i < 0 {
		return ""
	}
	return qualified[:i]
}

type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if v == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
