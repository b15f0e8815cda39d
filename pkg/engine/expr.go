package engine

import (
	"github.com/leapstack-labs/planlineage/pkg/plan"
)

func (a *jsonAdapter) expr(r rawNode) (plan.Expr, error) {
	class := r.class()
	if class == "" {
		return nil, &plan.PlanShapeError{Node: "expression", Field: "class"}
	}

	var children []rawNode
	if err := r.get("children", &children); err != nil {
		return nil, err
	}

	switch class {
	case "AttributeReference", "Alias":
		var attr plan.Attribute
		if err := r.require("exprId", &attr.ID); err != nil {
			return nil, err
		}
		if err := r.require("name", &attr.Name); err != nil {
			return nil, err
		}
		if err := r.get("qualifier", &attr.Qualifier); err != nil {
			return nil, err
		}
		if class == "AttributeReference" {
			return plan.Ref(attr), nil
		}
		if len(children) != 1 {
			return nil, &plan.PlanShapeError{Node: class, Field: "child"}
		}
		c, err := a.expr(children[0])
		if err != nil {
			return nil, err
		}
		return plan.As(c, attr), nil

	case "Literal":
		var v any
		if err := r.get("value", &v); err != nil {
			return nil, err
		}
		return &plan.Literal{Value: v}, nil

	case "Count":
		var distinct bool
		if err := r.get("distinct", &distinct); err != nil {
			return nil, err
		}
		args, err := a.exprs(children)
		if err != nil {
			return nil, err
		}
		return &plan.Count{Args: args, Distinct: distinct}, nil

	case "ScalarSubquery":
		p, err := a.requiredNode(r, "plan")
		if err != nil {
			return nil, err
		}
		var outer []rawNode
		if err := r.get("outerAttrs", &outer); err != nil {
			return nil, err
		}
		o, err := a.exprs(outer)
		if err != nil {
			return nil, err
		}
		return &plan.ScalarSubquery{Plan: p, Outer: o}, nil
	}

	args, err := a.exprs(children)
	if err != nil {
		return nil, err
	}
	return &plan.Func{Name: class, Args: args}, nil
}

func (a *jsonAdapter) exprs(raw []rawNode) ([]plan.Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]plan.Expr, len(raw))
	for i, r := range raw {
		e, err := a.expr(r)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// namedExprs decodes an output list. Every item must name its result.
func (a *jsonAdapter) namedExprs(raw []rawNode) ([]plan.NamedExpr, error) {
	out := make([]plan.NamedExpr, len(raw))
	for i, r := range raw {
		e, err := a.expr(r)
		if err != nil {
			return nil, err
		}
		named, ok := e.(plan.NamedExpr)
		if !ok {
			return nil, &plan.PlanShapeError{Node: r.class(), Field: "name"}
		}
		out[i] = named
	}
	return out, nil
}

func (a *jsonAdapter) optionalExpr(r rawNode, field string) (plan.Expr, error) {
	if !r.has(field) {
		return nil, nil
	}
	var raw rawNode
	if err := r.get(field, &raw); err != nil {
		return nil, err
	}
	return a.expr(raw)
}
