package plan

import (
	"fmt"
	"strings"
)

// Reserved name and qualifier tokens for synthetic lineage columns.
const (
	// SubqueryMarker is appended to the qualifier of attributes pulled out
	// of a nested scalar subquery. One level is stripped per boundary.
	SubqueryMarker = "__subquery__"
	// CountAllMarker names the pseudo-column standing in for COUNT(*).
	CountAllMarker = "__count__"
	// LocalTable qualifies columns read from inline/local relations.
	LocalTable = "__local__"
)

// ExprID is the stable identity of a column across the plan tree.
type ExprID int64

// Attribute is a column with a stable identity and a display name/qualifier.
type Attribute struct {
	ID        ExprID   `json:"exprId"`
	Name      string   `json:"name"`
	Qualifier []string `json:"qualifier,omitempty"`
}

// NewAttribute creates an attribute with the given identity and name.
func NewAttribute(id ExprID, name string, qualifier ...string) Attribute {
	return Attribute{ID: id, Name: name, Qualifier: cloneStrings(qualifier)}
}

// WithName returns a copy of a renamed to name.
func (a Attribute) WithName(name string) Attribute {
	return Attribute{ID: a.ID, Name: name, Qualifier: cloneStrings(a.Qualifier)}
}

// WithQualifier returns a copy of a with the qualifier replaced.
func (a Attribute) WithQualifier(qualifier []string) Attribute {
	return Attribute{ID: a.ID, Name: a.Name, Qualifier: cloneStrings(qualifier)}
}

// AppendQualifier returns a copy of a with part appended to its qualifier.
func (a Attribute) AppendQualifier(part string) Attribute {
	q := make([]string, 0, len(a.Qualifier)+1)
	q = append(q, a.Qualifier...)
	q = append(q, part)
	return Attribute{ID: a.ID, Name: a.Name, Qualifier: q}
}

// TrimQualifier returns a copy of a with the last qualifier segment removed.
func (a Attribute) TrimQualifier() Attribute {
	if len(a.Qualifier) == 0 {
		return a
	}
	return a.WithQualifier(a.Qualifier[:len(a.Qualifier)-1])
}

// LastQualifier returns the innermost qualifier segment, or "".
func (a Attribute) LastQualifier() string {
	if len(a.Qualifier) == 0 {
		return ""
	}
	return a.Qualifier[len(a.Qualifier)-1]
}

// InSubquery reports whether a carries the subquery marker.
func (a Attribute) InSubquery() bool {
	return strings.EqualFold(a.LastQualifier(), SubqueryMarker)
}

// IsCountAll reports whether a is the synthetic count-all column.
func (a Attribute) IsCountAll() bool {
	return strings.EqualFold(a.Name, CountAllMarker)
}

// QualifiedName dot-joins the qualifier and the name.
func (a Attribute) QualifiedName() string {
	if len(a.Qualifier) == 0 {
		return a.Name
	}
	return strings.Join(a.Qualifier, ".") + "." + a.Name
}

func (a Attribute) String() string {
	return fmt.Sprintf("%s#%d", a.QualifiedName(), a.ID)
}

// TableIdentifier names a catalog object. Database holds the namespace,
// dot-joined when nested.
type TableIdentifier struct {
	Catalog  string `json:"catalog,omitempty"`
	Database string `json:"database,omitempty"`
	Table    string `json:"table"`
}

// QualifiedName returns the dotted table name. A name carrying a database
// but no catalog is placed in defaultCatalog when one is given.
func (t TableIdentifier) QualifiedName(defaultCatalog string) string {
	catalog := t.Catalog
	if catalog == "" && t.Database != "" {
		catalog = defaultCatalog
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{catalog, t.Database, t.Table} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// IsZero reports whether no table name is set.
func (t TableIdentifier) IsZero() bool {
	return t.Table == ""
}

// ParseTableIdentifier splits a dotted name into its parts. With three or
// more segments the first is the catalog and everything between it and the
// table is the namespace, kept dotted in Database.
func ParseTableIdentifier(name string) TableIdentifier {
	parts := strings.Split(name, ".")
	switch n := len(parts); n {
	case 1:
		return TableIdentifier{Table: parts[0]}
	case 2:
		return TableIdentifier{Database: parts[0], Table: parts[1]}
	default:
		return TableIdentifier{
			Catalog:  parts[0],
			Database: strings.Join(parts[1:n-1], "."),
			Table:    parts[n-1],
		}
	}
}

func cloneStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
