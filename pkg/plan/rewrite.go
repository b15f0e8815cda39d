package plan

// WithChildren returns a copy of n with its inputs replaced by children, in
// the order Children reports them. Nodes without inputs are returned as is.
func WithChildren(n Node, children []Node) Node {
	child := func(i int) Node {
		if i < len(children) {
			return children[i]
		}
		return nil
	}
	switch x := n.(type) {
	case *Project:
		c := *x
		c.Child = child(0)
		return &c
	case *Aggregate:
		c := *x
		c.Child = child(0)
		return &c
	case *Window:
		c := *x
		c.Child = child(0)
		return &c
	case *Expand:
		c := *x
		c.Child = child(0)
		return &c
	case *Join:
		c := *x
		c.Left, c.Right = child(0), child(1)
		return &c
	case *Union:
		c := *x
		c.Inputs = children
		return &c
	case *WithCTE:
		c := *x
		c.Plan = child(0)
		return &c
	case *Opaque:
		c := *x
		c.Inputs = children
		return &c
	case *CommandResult:
		return &CommandResult{Command: child(0)}
	case *AlterViewAs:
		c := *x
		c.Query = child(0)
		return &c
	case *CreateView:
		c := *x
		c.Query = child(0)
		return &c
	case *WriteTable:
		c := *x
		c.Query = child(0)
		return &c
	case *InsertIntoDir:
		c := *x
		c.Query = child(0)
		return &c
	case *SaveIntoDataSource:
		return &SaveIntoDataSource{Query: child(0)}
	case *MergeInto:
		c := *x
		c.Target, c.Source = child(0), child(1)
		return &c
	default:
		return n
	}
}

// TransformUp rewrites the tree bottom-up: fn sees every node after its
// inputs have been rewritten. Scalar subquery plans inside projection,
// aggregate and window lists are rewritten too.
func TransformUp(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	kids := n.Children()
	if len(kids) > 0 {
		rewritten := make([]Node, len(kids))
		for i, k := range kids {
			rewritten[i] = TransformUp(k, fn)
		}
		n = WithChildren(n, rewritten)
	}
	n = transformSubqueries(n, func(p Node) Node { return TransformUp(p, fn) })
	return fn(n)
}

func transformSubqueries(n Node, fn func(Node) Node) Node {
	switch x := n.(type) {
	case *Project:
		c := *x
		c.List = mapNamed(x.List, fn)
		return &c
	case *Aggregate:
		c := *x
		c.Aggregates = mapNamed(x.Aggregates, fn)
		return &c
	case *Window:
		c := *x
		c.Exprs = mapNamed(x.Exprs, fn)
		return &c
	}
	return n
}

func mapNamed(list []NamedExpr, fn func(Node) Node) []NamedExpr {
	out := make([]NamedExpr, len(list))
	for i, e := range list {
		out[i], _ = mapSubqueryPlans(e, fn).(NamedExpr)
	}
	return out
}

// mapSubqueryPlans rebuilds e with every scalar subquery plan passed
// through fn. Expressions without subqueries are returned unchanged.
func mapSubqueryPlans(e Expr, fn func(Node) Node) Expr {
	if e == nil || len(SubqueryPlans(e)) == 0 {
		return e
	}
	switch x := e.(type) {
	case *ScalarSubquery:
		return &ScalarSubquery{Plan: fn(x.Plan), Outer: x.Outer}
	case *Alias:
		return &Alias{Child: mapSubqueryPlans(x.Child, fn), Attr: x.Attr}
	case *Count:
		return &Count{Args: mapExprs(x.Args, fn), Distinct: x.Distinct}
	case *Func:
		return &Func{Name: x.Name, Args: mapExprs(x.Args, fn)}
	}
	return e
}

func mapExprs(list []Expr, fn func(Node) Node) []Expr {
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = mapSubqueryPlans(e, fn)
	}
	return out
}
