package lineage

import (
	"testing"

	"github.com/leapstack-labs/planlineage/pkg/plan"
	"github.com/stretchr/testify/assert"
)

func TestAttributeSet_IdentityKeyed(t *testing.T) {
	a := plan.NewAttribute(1, "a")
	renamed := a.WithQualifier([]string{"db.t"})
	b := plan.NewAttribute(2, "b")

	s := NewAttributeSet(a, b, renamed)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []plan.Attribute{a, b}, s.Attributes(), "first attribute per identity is kept")

	u := NewAttributeSet(b).Union(NewAttributeSet(a, b))
	assert.Equal(t, []plan.Attribute{b, a}, u.Attributes())

	added := s.Add(plan.NewAttribute(3, "c"))
	assert.Equal(t, 3, added.Len())
	assert.Equal(t, 2, s.Len(), "Add must not modify the receiver")
}

func TestMergeColumnsLineage(t *testing.T) {
	x := plan.NewAttribute(1, "x")
	y := plan.NewAttribute(2, "y")
	s1 := plan.NewAttribute(10, "s1")
	s2 := plan.NewAttribute(11, "s2")
	s3 := plan.NewAttribute(12, "s3")

	left := NewColumnsLineage(Entry{x, NewAttributeSet(s1)})
	right := NewColumnsLineage(Entry{y, NewAttributeSet(s3)}, Entry{x, NewAttributeSet(s2)})

	merged := MergeColumnsLineage(left, right)
	assert.Equal(t, []plan.Attribute{x, y}, merged.Keys())

	xs, _ := merged.Get(x.ID)
	assert.ElementsMatch(t, []plan.Attribute{s1, s2}, xs.Attributes())
	ys, _ := merged.Get(y.ID)
	assert.Equal(t, []plan.Attribute{s3}, ys.Attributes())

	assert.Equal(t, right, MergeColumnsLineage(ColumnsLineage{}, right))
	assert.Equal(t, left, MergeColumnsLineage(left, ColumnsLineage{}))
}

func TestJoinColumnsLineage(t *testing.T) {
	out := plan.NewAttribute(1, "out")
	mid := plan.NewAttribute(2, "mid")
	passthrough := plan.NewAttribute(3, "p")
	src := plan.NewAttribute(4, "src").WithQualifier([]string{"db.t"})
	count := plan.NewAttribute(5, "cnt").WithName(plan.CountAllMarker)

	child := NewColumnsLineage(Entry{mid, NewAttributeSet(src)})

	t.Run("substitutes found dependencies", func(t *testing.T) {
		parent := NewColumnsLineage(Entry{out, NewAttributeSet(mid, passthrough)})
		joined := JoinColumnsLineage(parent, child)
		got, ok := joined.Get(out.ID)
		assert.True(t, ok)
		assert.Equal(t, []plan.Attribute{src, passthrough}, got.Attributes())
	})

	t.Run("drops unresolved count-all marker", func(t *testing.T) {
		parent := NewColumnsLineage(Entry{out, NewAttributeSet(count)})
		var dropped []plan.Attribute
		joined := joinColumnsLineage(parent, child, func(_, dep plan.Attribute) {
			dropped = append(dropped, dep)
		})
		got, _ := joined.Get(out.ID)
		assert.Equal(t, 0, got.Len())
		assert.Equal(t, []plan.Attribute{count}, dropped)
	})

	t.Run("empty parent returns child", func(t *testing.T) {
		assert.Equal(t, child, JoinColumnsLineage(ColumnsLineage{}, child))
	})
}

func TestJoinRelationColumnLineage(t *testing.T) {
	qualifier := []string{"db.t"}
	a := plan.NewAttribute(1, "a")
	b := plan.NewAttribute(2, "b")
	foreign := plan.NewAttribute(3, "other")
	fromSubquery := plan.NewAttribute(4, "x").WithQualifier([]string{"db.u", plan.SubqueryMarker})
	count := plan.NewAttribute(5, plan.CountAllMarker)
	prequalified := plan.NewAttribute(6, "db.t.c")
	out := plan.NewAttribute(7, "out")

	t.Run("base case qualifies every output", func(t *testing.T) {
		got := JoinRelationColumnLineage(ColumnsLineage{}, []plan.Attribute{a, b}, qualifier)
		assert.Equal(t, []plan.Attribute{a, b}, got.Keys())
		as, _ := got.Get(a.ID)
		assert.Equal(t, []string{"db.t.a"}, as.QualifiedNames())
	})

	t.Run("rewrites pending requests", func(t *testing.T) {
		parent := NewColumnsLineage(Entry{out, NewAttributeSet(a, foreign, fromSubquery, count, prequalified)})
		got := JoinRelationColumnLineage(parent, []plan.Attribute{a, b}, qualifier)
		deps, _ := got.Get(out.ID)
		assert.Equal(t, []string{"db.t.a", "db.u.x", "db.t.__count__", "db.t.c"}, deps.QualifiedNames())
	})
}

func TestMergeRelationColumnLineage(t *testing.T) {
	v1 := plan.NewAttribute(1, "v1")
	v2 := plan.NewAttribute(2, "v2")
	inner := plan.NewAttribute(3, "inner")
	src := plan.NewAttribute(4, "src").WithQualifier([]string{"db.t"})

	body := NewColumnsLineage(Entry{inner, NewAttributeSet(src)})
	got := MergeRelationColumnLineage(ColumnsLineage{}, []plan.Attribute{v1, v2}, body)

	assert.Equal(t, []plan.Attribute{v1, v2}, got.Keys())
	first, _ := got.Get(v1.ID)
	assert.Equal(t, []string{"db.t.src"}, first.QualifiedNames())
	second, _ := got.Get(v2.ID)
	assert.Equal(t, 0, second.Len(), "missing positions resolve to nothing")
}
