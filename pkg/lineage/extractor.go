package lineage

import (
	"log/slog"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// extractor walks one plan. It holds no state besides its configuration,
// so a single value may serve concurrent walks.
type extractor struct {
	opts   Options
	logger *slog.Logger
}

// extract returns the lineage of n resolved against the requests in parent.
func (e *extractor) extract(n plan.Node, parent ColumnsLineage, depth int) (ColumnsLineage, error) {
	if depth > e.opts.MaxDepth {
		return ColumnsLineage{}, &ExtractionError{Kind: n.Kind(), Err: ErrPlanTooDeep}
	}
	next := depth + 1

	switch x := n.(type) {
	// Write commands. These are matched before any query shape.
	case *plan.CommandResult:
		if x.Command == nil {
			return ColumnsLineage{}, &plan.PlanShapeError{Node: string(x.Kind()), Field: "commandLogicalPlan"}
		}
		return e.extract(x.Command, parent, next)

	case *plan.AlterViewAs:
		lin, err := e.extractQuery(x, x.Query, parent, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		return prefixNames(lin, x.View.QualifiedName(e.opts.DefaultCatalog)), nil

	case *plan.CreateView:
		if !x.Persisted {
			return ColumnsLineage{}, nil
		}
		lin, err := e.extractQuery(x, x.Query, parent, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		view := x.View.QualifiedName(e.opts.DefaultCatalog)
		var out ColumnsLineage
		for i, entry := range lin.Entries() {
			name := entry.Attr.Name
			if i < len(x.Columns) {
				name = x.Columns[i]
			}
			out.put(entry.Attr.WithName(view+"."+name), entry.Sources)
		}
		return out, nil

	case *plan.WriteTable:
		lin, err := e.extractQuery(x, x.Query, parent, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		if x.Table.IsZero() {
			e.logger.Debug("write target has no catalog identity", "op", x.Op.String())
			return ColumnsLineage{}, nil
		}
		return prefixNames(lin, x.Table.QualifiedName(e.opts.DefaultCatalog)), nil

	case *plan.InsertIntoDir:
		lin, err := e.extractQuery(x, x.Query, parent, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		if x.Location == "" {
			return ColumnsLineage{}, nil
		}
		return prefixNames(lin, "`"+x.Location+"`"), nil

	case *plan.SaveIntoDataSource:
		return e.extractQuery(x, x.Query, parent, next)

	case *plan.MergeInto:
		return e.extractMerge(x, next)

	case *plan.WithCTE:
		return e.extract(plan.InlineCTEs(x), parent, next)

	// Query shapes.
	case *plan.Project:
		req, err := e.selectLineage(x.List, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		return e.extractChildren(x, e.join(parent, req), next)

	case *plan.Aggregate:
		req, err := e.selectLineage(x.Aggregates, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		return e.extractChildren(x, e.join(parent, req), next)

	case *plan.Expand:
		return e.extractChildren(x, e.join(parent, expandLineage(x)), next)

	case *plan.Window:
		return e.extractChildren(x, windowRequests(x, parent), next)

	case *plan.Join:
		if !x.Type.ExposesRight() {
			if x.Left == nil {
				return ColumnsLineage{}, &plan.PlanShapeError{Node: string(x.Kind()), Field: "left"}
			}
			return e.extract(x.Left, parent, next)
		}
		return e.extractChildren(x, parent, next)

	case *plan.Union:
		return e.extractUnion(x, parent, next)

	case *plan.Relation:
		return JoinRelationColumnLineage(parent, x.Out, []string{x.Table.QualifiedName(e.opts.DefaultCatalog)}), nil

	case *plan.LocalRelation:
		return JoinRelationColumnLineage(parent, x.Out, []string{plan.LocalTable}), nil

	case *plan.OneRowRelation:
		return parent.Map(func(k plan.Attribute, deps AttributeSet) (plan.Attribute, AttributeSet) {
			var out AttributeSet
			for _, d := range deps.attrs {
				if d.InSubquery() {
					d = d.TrimQualifier()
				}
				out.insert(d)
			}
			return k, out
		}), nil

	case *plan.View:
		if !x.Temporary && e.opts.SkipParsingPermanentViews {
			return JoinRelationColumnLineage(parent, x.Out, []string{x.Name.QualifiedName(e.opts.DefaultCatalog)}), nil
		}
		if x.Body == nil {
			return ColumnsLineage{}, &plan.PlanShapeError{Node: string(x.Kind()), Field: "child"}
		}
		body, err := e.extract(x.Body, ColumnsLineage{}, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		return mergeRelationColumnLineage(parent, x.Out, body, e.countDropped), nil

	case *plan.CachedRelation:
		if x.Plan == nil {
			var qualifier []string
			if x.TableName != "" {
				qualifier = []string{x.TableName}
			}
			return JoinRelationColumnLineage(parent, x.Out, qualifier), nil
		}
		cached, err := e.extract(x.Plan, ColumnsLineage{}, next)
		if err != nil {
			return ColumnsLineage{}, err
		}
		return mergeRelationColumnLineage(parent, x.Out, cached, e.countDropped), nil

	case *plan.CTERef:
		e.logger.Debug("CTE reference outside of its definition scope", "cte_id", x.CTEID)
		return ColumnsLineage{}, nil

	default:
		if len(n.Children()) == 0 {
			return ColumnsLineage{}, nil
		}
		return e.extractChildren(n, parent, next)
	}
}

// extractQuery recurses into the query of a write command.
func (e *extractor) extractQuery(cmd plan.Node, query plan.Node, parent ColumnsLineage, depth int) (ColumnsLineage, error) {
	if query == nil {
		return ColumnsLineage{}, &plan.PlanShapeError{Node: string(cmd.Kind()), Field: "query"}
	}
	return e.extract(query, parent, depth)
}

// extractChildren resolves parent against every input of n and merges the
// results.
func (e *extractor) extractChildren(n plan.Node, parent ColumnsLineage, depth int) (ColumnsLineage, error) {
	var merged ColumnsLineage
	for _, child := range n.Children() {
		if child == nil {
			return ColumnsLineage{}, &plan.PlanShapeError{Node: string(n.Kind()), Field: "child"}
		}
		lin, err := e.extract(child, parent, depth)
		if err != nil {
			return ColumnsLineage{}, err
		}
		merged = MergeColumnsLineage(merged, lin)
	}
	return merged, nil
}

// selectLineage maps every item of a projection or aggregate list to the
// attributes it references.
func (e *extractor) selectLineage(list []plan.NamedExpr, depth int) (ColumnsLineage, error) {
	var out ColumnsLineage
	for _, item := range list {
		switch x := item.(type) {
		case *plan.Alias:
			refs := NewAttributeSet(plan.References(x.Child)...)
			if refs.Len() == 0 {
				sub, err := e.subqueryLineage(x.Child, depth)
				if err != nil {
					return ColumnsLineage{}, err
				}
				refs = sub
			}
			if plan.ContainsCountAll(x.Child) {
				refs = refs.Add(x.Attr.WithName(plan.CountAllMarker))
			}
			out.put(x.Attr, refs)
		case *plan.AttributeRef:
			out.put(x.Attr, NewAttributeSet(x.Attr))
		}
	}
	return out, nil
}

// subqueryLineage resolves the scalar subqueries nested in expr and tags
// their sources with the subquery marker.
func (e *extractor) subqueryLineage(expr plan.Expr, depth int) (AttributeSet, error) {
	var merged ColumnsLineage
	for _, p := range plan.SubqueryPlans(expr) {
		if p == nil {
			return AttributeSet{}, &plan.PlanShapeError{Node: "ScalarSubquery", Field: "plan"}
		}
		lin, err := e.extract(p, ColumnsLineage{}, depth)
		if err != nil {
			return AttributeSet{}, err
		}
		merged = MergeColumnsLineage(merged, lin)
	}
	var out AttributeSet
	for _, v := range merged.values {
		for _, a := range v.attrs {
			out.insert(a.AppendQualifier(plan.SubqueryMarker))
		}
	}
	return out, nil
}

// extractUnion zips the positional union of every branch with the union's
// declared output. Without a declared output the branches are independent.
func (e *extractor) extractUnion(u *plan.Union, parent ColumnsLineage, depth int) (ColumnsLineage, error) {
	branches := make([]ColumnsLineage, 0, len(u.Inputs))
	for _, child := range u.Inputs {
		if child == nil {
			return ColumnsLineage{}, &plan.PlanShapeError{Node: string(u.Kind()), Field: "children"}
		}
		lin, err := e.extract(child, ColumnsLineage{}, depth)
		if err != nil {
			return ColumnsLineage{}, err
		}
		branches = append(branches, lin)
	}

	var own ColumnsLineage
	if len(u.Out) == 0 {
		for _, b := range branches {
			own = MergeColumnsLineage(own, b)
		}
		return e.join(parent, own), nil
	}

	var columns []AttributeSet
	for i, b := range branches {
		if i == 0 {
			columns = b.Values()
			continue
		}
		values := b.values
		if len(values) < len(columns) {
			columns = columns[:len(values)]
		}
		for j := range columns {
			columns[j] = columns[j].Union(values[j])
		}
	}
	for i, a := range u.Out {
		if i >= len(columns) {
			break
		}
		own.put(a, columns[i])
	}
	return e.join(parent, own), nil
}

// extractMerge pairs every assigned target column with the sources of the
// value assigned to it.
func (e *extractor) extractMerge(m *plan.MergeInto, depth int) (ColumnsLineage, error) {
	if m.Target == nil {
		return ColumnsLineage{}, &plan.PlanShapeError{Node: string(m.Kind()), Field: "targetTable"}
	}
	if m.Source == nil {
		return ColumnsLineage{}, &plan.PlanShapeError{Node: string(m.Kind()), Field: "sourceTable"}
	}

	var requests ColumnsLineage
	for _, action := range m.Actions() {
		if action.Kind == plan.MergeDelete {
			continue
		}
		for _, as := range action.Assignments {
			refs := NewAttributeSet(plan.References(as.Value)...)
			if prev, ok := requests.Get(as.Key.ID); ok {
				refs = prev.Union(refs)
			}
			requests.put(as.Key, refs)
		}
	}
	if requests.IsEmpty() {
		return ColumnsLineage{}, nil
	}

	self := requests.Map(func(k plan.Attribute, _ AttributeSet) (plan.Attribute, AttributeSet) {
		return k, NewAttributeSet(k)
	})
	target, err := e.extract(m.Target, self, depth)
	if err != nil {
		return ColumnsLineage{}, err
	}
	source, err := e.extract(m.Source, requests, depth)
	if err != nil {
		return ColumnsLineage{}, err
	}

	var targets []plan.Attribute
	for _, v := range target.values {
		for _, col := range v.attrs {
			targets = append(targets, col.WithName(col.QualifiedName()))
		}
	}
	var out ColumnsLineage
	for i, col := range targets {
		if i >= len(source.values) {
			break
		}
		out.put(col, source.values[i])
	}
	return out, nil
}

func (e *extractor) join(parent, child ColumnsLineage) ColumnsLineage {
	return joinColumnsLineage(parent, child, e.countDropped)
}

func (e *extractor) countDropped(k, dep plan.Attribute) {
	e.logger.Debug("dropping unresolved count-all dependency",
		"column", k.String(), "dependency", dep.String())
}

// expandLineage unions, per output position, the references of every
// projection row.
func expandLineage(x *plan.Expand) ColumnsLineage {
	var out ColumnsLineage
	for i, a := range x.Out {
		var refs AttributeSet
		for _, row := range x.Projections {
			if i < len(row) {
				for _, r := range plan.References(row[i]) {
					refs.insert(r)
				}
			}
		}
		out.put(a, refs)
	}
	return out
}

// windowRequests rewrites parent through the window expressions. Without
// pending requests every child column requests itself.
func windowRequests(x *plan.Window, parent ColumnsLineage) ColumnsLineage {
	var window ColumnsLineage
	for _, item := range x.Exprs {
		var refs AttributeSet
		switch it := item.(type) {
		case *plan.Alias:
			refs = NewAttributeSet(plan.References(it.Child)...)
		case *plan.AttributeRef:
			refs = NewAttributeSet(it.Attr)
		}
		window.put(item.ToAttribute(), refs)
	}

	if parent.IsEmpty() {
		var out ColumnsLineage
		if x.Child != nil {
			for _, a := range x.Child.Output() {
				out.put(a, NewAttributeSet(a))
			}
		}
		for _, entry := range window.Entries() {
			out.put(entry.Attr, entry.Sources)
		}
		return out
	}

	return parent.Map(func(k plan.Attribute, deps AttributeSet) (plan.Attribute, AttributeSet) {
		if own, ok := window.Get(k.ID); ok {
			return k, own
		}
		var out AttributeSet
		for _, d := range deps.attrs {
			if own, ok := window.Get(d.ID); ok {
				for _, a := range own.attrs {
					out.insert(a)
				}
				continue
			}
			out.insert(d)
		}
		return k, out
	})
}

// prefixNames renames every key to prefix.name.
func prefixNames(lin ColumnsLineage, prefix string) ColumnsLineage {
	return lin.Map(func(k plan.Attribute, v AttributeSet) (plan.Attribute, AttributeSet) {
		return k.WithName(prefix + "." + k.Name), v
	})
}
