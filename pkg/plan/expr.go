package plan

// Expr is a scalar expression inside an operator.
type Expr interface {
	// Children returns the direct sub-expressions.
	Children() []Expr
	expr()
}

// NamedExpr is an expression that produces an output attribute.
type NamedExpr interface {
	Expr
	ToAttribute() Attribute
}

// AttributeRef references an attribute produced by a child operator.
type AttributeRef struct {
	Attr Attribute
}

// Alias names the result of Child as Attr.
type Alias struct {
	Child Expr
	Attr  Attribute
}

// Literal is a constant value.
type Literal struct {
	Value any
}

// Count is the COUNT aggregate. COUNT(*) is a Count whose arguments
// reference no attributes.
type Count struct {
	Args     []Expr
	Distinct bool
}

// ScalarSubquery embeds a plan that yields a single value.
type ScalarSubquery struct {
	Plan Node
	// Outer lists correlated outer references.
	Outer []Expr
}

// Func is any other expression: function calls, operators, CASE, window
// functions. Lineage only looks at its arguments.
type Func struct {
	Name string
	Args []Expr
}

func (*AttributeRef) expr()   {}
func (*Alias) expr()          {}
func (*Literal) expr()        {}
func (*Count) expr()          {}
func (*ScalarSubquery) expr() {}
func (*Func) expr()           {}

func (*AttributeRef) Children() []Expr     { return nil }
func (e *Alias) Children() []Expr          { return []Expr{e.Child} }
func (*Literal) Children() []Expr          { return nil }
func (e *Count) Children() []Expr          { return e.Args }
func (e *ScalarSubquery) Children() []Expr { return e.Outer }
func (e *Func) Children() []Expr           { return e.Args }

// ToAttribute returns the referenced attribute.
func (e *AttributeRef) ToAttribute() Attribute { return e.Attr }

// ToAttribute returns the attribute the alias defines.
func (e *Alias) ToAttribute() Attribute { return e.Attr }

// Ref is shorthand for an attribute reference.
func Ref(a Attribute) *AttributeRef { return &AttributeRef{Attr: a} }

// As is shorthand for an alias.
func As(child Expr, a Attribute) *Alias { return &Alias{Child: child, Attr: a} }

// Call is shorthand for a function expression.
func Call(name string, args ...Expr) *Func { return &Func{Name: name, Args: args} }

// References returns the attributes e references, deduplicated by identity
// in first-seen order. Subquery plans are not entered.
func References(e Expr) []Attribute {
	var out []Attribute
	seen := make(map[ExprID]struct{})
	walk(e, func(x Expr) {
		if r, ok := x.(*AttributeRef); ok {
			if _, dup := seen[r.Attr.ID]; !dup {
				seen[r.Attr.ID] = struct{}{}
				out = append(out, r.Attr)
			}
		}
	})
	return out
}

// SubqueryPlans returns the plans of scalar subqueries nested in e.
// A subquery's own outer references are not searched.
func SubqueryPlans(e Expr) []Node {
	if e == nil {
		return nil
	}
	if s, ok := e.(*ScalarSubquery); ok {
		return []Node{s.Plan}
	}
	var plans []Node
	for _, c := range e.Children() {
		plans = append(plans, SubqueryPlans(c)...)
	}
	return plans
}

// ContainsCountAll reports whether e contains a COUNT with no column
// references.
func ContainsCountAll(e Expr) bool {
	if e == nil {
		return false
	}
	if c, ok := e.(*Count); ok && len(References(c)) == 0 {
		return true
	}
	for _, c := range e.Children() {
		if ContainsCountAll(c) {
			return true
		}
	}
	return false
}

func walk(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, c := range e.Children() {
		walk(c, fn)
	}
}
