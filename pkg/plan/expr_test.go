package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReferences(t *testing.T) {
	a, b := NewAttribute(1, "a"), NewAttribute(2, "b")
	inner := NewAttribute(3, "inner")

	e := Call("coalesce",
		Ref(a),
		Call("+", Ref(b), Ref(a)),
		&Literal{Value: 1},
		&ScalarSubquery{Plan: &Relation{Out: []Attribute{inner}}},
	)

	assert.Equal(t, []Attribute{a, b}, References(e))
	assert.Empty(t, References(&Literal{Value: "x"}))
}

func TestSubqueryPlans(t *testing.T) {
	outer := NewAttribute(1, "o")
	p1 := &OneRowRelation{}
	p2 := &LocalRelation{}

	e := Call("+",
		&ScalarSubquery{Plan: p1, Outer: []Expr{&ScalarSubquery{Plan: p2}}},
		Ref(outer),
	)

	plans := SubqueryPlans(e)
	assert.Len(t, plans, 1)
	assert.Same(t, p1, plans[0])
	assert.Nil(t, SubqueryPlans(nil))
}

func TestContainsCountAll(t *testing.T) {
	a := NewAttribute(1, "a")

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{name: "count star", expr: &Count{Args: []Expr{&Literal{Value: 1}}}, want: true},
		{name: "count without args", expr: &Count{}, want: true},
		{name: "count column", expr: &Count{Args: []Expr{Ref(a)}}, want: false},
		{name: "nested in arithmetic", expr: Call("*", &Count{}, &Literal{Value: 2}), want: true},
		{name: "no count", expr: Call("sum", Ref(a)), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsCountAll(tt.expr))
		})
	}
}

func TestParseJoinType(t *testing.T) {
	for _, jt := range []JoinType{InnerJoin, LeftOuterJoin, RightOuterJoin, FullOuterJoin, CrossJoin, LeftSemiJoin, LeftAntiJoin} {
		got, ok := ParseJoinType(jt.String())
		assert.True(t, ok)
		assert.Equal(t, jt, got)
	}
	_, ok := ParseJoinType("Sideways")
	assert.False(t, ok)
	assert.False(t, LeftAntiJoin.ExposesRight())
	assert.True(t, FullOuterJoin.ExposesRight())
}
