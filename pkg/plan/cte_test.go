package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineCTEs(t *testing.T) {
	a := NewAttribute(1, "a")
	refA := NewAttribute(2, "a")
	refB := NewAttribute(3, "a")
	base := &Relation{Table: ParseTableIdentifier("db.t"), Out: []Attribute{a}}

	root := &WithCTE{
		Defs: []CTEDef{
			{ID: 1, Plan: &Project{List: []NamedExpr{Ref(a)}, Child: base}},
			{ID: 2, Plan: &Project{
				List:  []NamedExpr{Ref(refA)},
				Child: &CTERef{CTEID: 1, Out: []Attribute{refA}},
			}},
		},
		Plan: &Project{
			List:  []NamedExpr{Ref(refB)},
			Child: &CTERef{CTEID: 2, Out: []Attribute{refB}},
		},
	}

	out := InlineCTEs(root)

	top, ok := out.(*Project)
	require.True(t, ok, "WithCTE should be replaced by its body, got %T", out)
	assert.Equal(t, []Attribute{refB}, top.Output())

	// CTERef 2 became an aliasing projection over definition 2.
	alias, ok := top.Child.(*Project)
	require.True(t, ok)
	assert.Equal(t, []Attribute{refB}, alias.Output())
	def2, ok := alias.Child.(*Project)
	require.True(t, ok)

	// Definition 2 had its own reference to definition 1 inlined.
	inner, ok := def2.Child.(*Project)
	require.True(t, ok)
	assert.Equal(t, []Attribute{refA}, inner.Output())
	assert.Equal(t, []Attribute{a}, inner.Child.Output())
	assertNoCTEs(t, out)
}

func TestInlineCTEs_InsideSubquery(t *testing.T) {
	a := NewAttribute(1, "a")
	ref := NewAttribute(2, "a")
	m := NewAttribute(3, "m")

	sub := &WithCTE{
		Defs: []CTEDef{{ID: 9, Plan: &Relation{Table: ParseTableIdentifier("db.t"), Out: []Attribute{a}}}},
		Plan: &CTERef{CTEID: 9, Out: []Attribute{ref}},
	}
	root := &Project{
		List:  []NamedExpr{As(&ScalarSubquery{Plan: sub}, m)},
		Child: &OneRowRelation{},
	}

	out := InlineCTEs(root).(*Project)
	plans := SubqueryPlans(out.List[0])
	require.Len(t, plans, 1)
	assertNoCTEs(t, plans[0])
}

func TestInlineCTEs_UnknownReferenceKept(t *testing.T) {
	ref := &CTERef{CTEID: 4, Out: []Attribute{NewAttribute(1, "a")}}
	out := InlineCTEs(&WithCTE{Plan: ref})
	assert.Same(t, ref, out)
}

func assertNoCTEs(t *testing.T, n Node) {
	t.Helper()
	switch n.(type) {
	case *WithCTE, *CTERef:
		t.Fatalf("unexpected %T after inlining", n)
	}
	for _, c := range n.Children() {
		assertNoCTEs(t, c)
	}
}
