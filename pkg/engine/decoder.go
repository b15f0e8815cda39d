package engine

import (
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// shape captures the per-version differences in plan layout.
type shape struct {
	version string
	// viewQueryField holds the body of CreateViewCommand.
	viewQueryField string
	// mergeBySource enables WHEN NOT MATCHED BY SOURCE clauses.
	mergeBySource bool
}

// jsonAdapter decodes class-tagged JSON plan trees.
type jsonAdapter struct {
	shape  shape
	logger *slog.Logger
}

func newJSONAdapter(s shape) func(*slog.Logger) Adapter {
	return func(logger *slog.Logger) Adapter {
		if logger == nil {
			logger = slog.New(slog.DiscardHandler)
		}
		return &jsonAdapter{shape: s, logger: logger}
	}
}

func (a *jsonAdapter) Version() string { return a.shape.version }

func (a *jsonAdapter) Decode(doc []byte) (plan.Node, error) {
	var root rawNode
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return a.node(root)
}

// rawNode is one class-tagged object of the plan tree.
type rawNode map[string]json.RawMessage

func (r rawNode) class() string {
	var c string
	_ = json.Unmarshal(r["class"], &c)
	return c
}

func (r rawNode) has(field string) bool {
	v, ok := r[field]
	return ok && string(v) != "null"
}

// get decodes field into dst. Absent and null fields leave dst untouched.
func (r rawNode) get(field string, dst any) error {
	if !r.has(field) {
		return nil
	}
	if err := json.Unmarshal(r[field], dst); err != nil {
		return fmt.Errorf("decode %s.%s: %w", r.class(), field, err)
	}
	return nil
}

// require decodes a field that must be present.
func (r rawNode) require(field string, dst any) error {
	if !r.has(field) {
		return &plan.PlanShapeError{Node: r.class(), Field: field}
	}
	return r.get(field, dst)
}

func (a *jsonAdapter) node(r rawNode) (plan.Node, error) {
	class := r.class()
	if class == "" {
		return nil, &plan.PlanShapeError{Node: "plan", Field: "class"}
	}

	var children []rawNode
	if err := r.get("children", &children); err != nil {
		return nil, err
	}
	child := func(i int) (plan.Node, error) {
		if i >= len(children) {
			return nil, &plan.PlanShapeError{Node: class, Field: "children"}
		}
		return a.node(children[i])
	}

	switch class {
	case "Project":
		var list []rawNode
		if err := r.require("projectList", &list); err != nil {
			return nil, err
		}
		items, err := a.namedExprs(list)
		if err != nil {
			return nil, err
		}
		c, err := child(0)
		if err != nil {
			return nil, err
		}
		return &plan.Project{List: items, Child: c}, nil

	case "Aggregate":
		var grouping, aggs []rawNode
		if err := r.get("groupingExpressions", &grouping); err != nil {
			return nil, err
		}
		if err := r.require("aggregateExpressions", &aggs); err != nil {
			return nil, err
		}
		g, err := a.exprs(grouping)
		if err != nil {
			return nil, err
		}
		items, err := a.namedExprs(aggs)
		if err != nil {
			return nil, err
		}
		c, err := child(0)
		if err != nil {
			return nil, err
		}
		return &plan.Aggregate{Grouping: g, Aggregates: items, Child: c}, nil

	case "Window":
		var list []rawNode
		if err := r.require("windowExpressions", &list); err != nil {
			return nil, err
		}
		items, err := a.namedExprs(list)
		if err != nil {
			return nil, err
		}
		c, err := child(0)
		if err != nil {
			return nil, err
		}
		return &plan.Window{Exprs: items, Child: c}, nil

	case "Expand":
		var rows [][]rawNode
		var out []plan.Attribute
		if err := r.require("projections", &rows); err != nil {
			return nil, err
		}
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		projections := make([][]plan.Expr, len(rows))
		for i, row := range rows {
			exprs, err := a.exprs(row)
			if err != nil {
				return nil, err
			}
			projections[i] = exprs
		}
		c, err := child(0)
		if err != nil {
			return nil, err
		}
		return &plan.Expand{Projections: projections, Out: out, Child: c}, nil

	case "Join":
		var name string
		if err := r.require("joinType", &name); err != nil {
			return nil, err
		}
		jt, ok := plan.ParseJoinType(name)
		if !ok {
			return nil, fmt.Errorf("unknown join type %q", name)
		}
		cond, err := a.optionalExpr(r, "condition")
		if err != nil {
			return nil, err
		}
		left, err := child(0)
		if err != nil {
			return nil, err
		}
		right, err := child(1)
		if err != nil {
			return nil, err
		}
		return &plan.Join{Type: jt, Left: left, Right: right, Condition: cond}, nil

	case "Union":
		var out []plan.Attribute
		if err := r.get("output", &out); err != nil {
			return nil, err
		}
		inputs, err := a.nodes(children)
		if err != nil {
			return nil, err
		}
		return &plan.Union{Out: out, Inputs: inputs}, nil

	case "LogicalRelation", "HiveTableRelation", "DataSourceV2Relation", "DataSourceV2ScanRelation":
		var table string
		var out []plan.Attribute
		if err := r.require("table", &table); err != nil {
			return nil, err
		}
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		return &plan.Relation{Table: plan.ParseTableIdentifier(table), Out: out}, nil

	case "LocalRelation":
		var out []plan.Attribute
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		return &plan.LocalRelation{Out: out}, nil

	case "OneRowRelation":
		return &plan.OneRowRelation{}, nil

	case "View":
		var name string
		var temp bool
		var out []plan.Attribute
		if err := r.require("desc", &name); err != nil {
			return nil, err
		}
		if err := r.get("isTempView", &temp); err != nil {
			return nil, err
		}
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		body, err := child(0)
		if err != nil {
			return nil, err
		}
		return &plan.View{Name: plan.ParseTableIdentifier(name), Temporary: temp, Out: out, Body: body}, nil

	case "WithCTE":
		var defs []rawNode
		if err := r.require("cteDefs", &defs); err != nil {
			return nil, err
		}
		w := &plan.WithCTE{Defs: make([]plan.CTEDef, 0, len(defs))}
		for _, d := range defs {
			var id int64
			if err := d.require("id", &id); err != nil {
				return nil, err
			}
			var body rawNode
			if err := d.require("child", &body); err != nil {
				return nil, err
			}
			p, err := a.node(body)
			if err != nil {
				return nil, err
			}
			w.Defs = append(w.Defs, plan.CTEDef{ID: id, Plan: p})
		}
		body, err := child(0)
		if err != nil {
			return nil, err
		}
		w.Plan = body
		return w, nil

	case "CTERelationRef":
		var id int64
		var out []plan.Attribute
		if err := r.require("cteId", &id); err != nil {
			return nil, err
		}
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		return &plan.CTERef{CTEID: id, Out: out}, nil

	case "InMemoryRelation":
		var name string
		var out []plan.Attribute
		if err := r.get("tableName", &name); err != nil {
			return nil, err
		}
		if err := r.require("output", &out); err != nil {
			return nil, err
		}
		cached, err := a.optionalNode(r, "cachedPlan")
		if err != nil {
			return nil, err
		}
		return &plan.CachedRelation{TableName: name, Out: out, Plan: cached}, nil

	case "CommandResult":
		cmd, err := a.requiredNode(r, "commandLogicalPlan")
		if err != nil {
			return nil, err
		}
		return &plan.CommandResult{Command: cmd}, nil

	case "AlterViewAs":
		var name string
		if err := r.require("name", &name); err != nil {
			return nil, err
		}
		q, err := a.requiredNode(r, "query")
		if err != nil {
			return nil, err
		}
		return &plan.AlterViewAs{View: plan.ParseTableIdentifier(name), Query: q}, nil

	case "CreateViewCommand":
		var name, viewType string
		var columns []string
		if err := r.require("name", &name); err != nil {
			return nil, err
		}
		if err := r.require("viewType", &viewType); err != nil {
			return nil, err
		}
		if err := r.get("userSpecifiedColumns", &columns); err != nil {
			return nil, err
		}
		q, err := a.requiredNode(r, a.shape.viewQueryField)
		if err != nil {
			return nil, err
		}
		return &plan.CreateView{
			View:      plan.ParseTableIdentifier(name),
			Persisted: viewType == "PersistedView",
			Columns:   columns,
			Query:     q,
		}, nil

	case "InsertIntoDataSourceDirCommand", "InsertIntoHiveDirCommand":
		var location string
		if err := r.get("location", &location); err != nil {
			return nil, err
		}
		q, err := a.requiredNode(r, "query")
		if err != nil {
			return nil, err
		}
		return &plan.InsertIntoDir{Location: location, Query: q}, nil

	case "SaveIntoDataSourceCommand":
		q, err := a.requiredNode(r, "query")
		if err != nil {
			return nil, err
		}
		return &plan.SaveIntoDataSource{Query: q}, nil

	case "MergeIntoTable":
		return a.merge(r)
	}

	if op, ok := writeOps[class]; ok {
		var table string
		if err := r.get("table", &table); err != nil {
			return nil, err
		}
		q, err := a.requiredNode(r, "query")
		if err != nil {
			return nil, err
		}
		w := &plan.WriteTable{Op: op, Query: q}
		if table != "" {
			w.Table = plan.ParseTableIdentifier(table)
		}
		return w, nil
	}

	a.logger.Debug("decoding unknown plan class as opaque", "class", class)
	var out []plan.Attribute
	if err := r.get("output", &out); err != nil {
		return nil, err
	}
	inputs, err := a.nodes(children)
	if err != nil {
		return nil, err
	}
	return &plan.Opaque{Name: class, Out: out, Inputs: inputs}, nil
}

// writeOps maps table write commands to their kind.
var writeOps = map[string]plan.WriteOp{
	"CreateTableAsSelect":                     plan.CreateTableAsSelect,
	"CreateDataSourceTableAsSelectCommand":    plan.CreateTableAsSelect,
	"CreateHiveTableAsSelectCommand":          plan.CreateTableAsSelect,
	"OptimizedCreateHiveTableAsSelectCommand": plan.CreateTableAsSelect,
	"ReplaceTableAsSelect":                    plan.ReplaceTableAsSelect,
	"InsertIntoHiveTable":                     plan.InsertInto,
	"InsertIntoHadoopFsRelationCommand":       plan.InsertInto,
	"InsertIntoDataSourceCommand":             plan.InsertInto,
	"AppendData":                              plan.AppendData,
	"OverwriteByExpression":                   plan.OverwriteByExpression,
	"OverwritePartitionsDynamic":              plan.OverwritePartitionsDynamic,
}

func (a *jsonAdapter) merge(r rawNode) (plan.Node, error) {
	target, err := a.requiredNode(r, "targetTable")
	if err != nil {
		return nil, err
	}
	source, err := a.requiredNode(r, "sourceTable")
	if err != nil {
		return nil, err
	}
	cond, err := a.optionalExpr(r, "mergeCondition")
	if err != nil {
		return nil, err
	}
	m := &plan.MergeInto{Target: target, Source: source, Condition: cond}
	if m.Matched, err = a.mergeActions(r, "matchedActions"); err != nil {
		return nil, err
	}
	if m.NotMatched, err = a.mergeActions(r, "notMatchedActions"); err != nil {
		return nil, err
	}
	if a.shape.mergeBySource {
		if m.NotMatchedBySource, err = a.mergeActions(r, "notMatchedBySourceActions"); err != nil {
			return nil, err
		}
	} else if r.has("notMatchedBySourceActions") {
		a.logger.Debug("ignoring merge clauses unknown to engine version",
			"version", a.shape.version, "field", "notMatchedBySourceActions")
	}
	return m, nil
}

func (a *jsonAdapter) mergeActions(r rawNode, field string) ([]plan.MergeAction, error) {
	var raw []rawNode
	if err := r.get(field, &raw); err != nil {
		return nil, err
	}
	actions := make([]plan.MergeAction, 0, len(raw))
	for _, ra := range raw {
		var action plan.MergeAction
		switch ra.class() {
		case "UpdateAction", "UpdateStarAction":
			action.Kind = plan.MergeUpdate
		case "InsertAction", "InsertStarAction":
			action.Kind = plan.MergeInsert
		case "DeleteAction":
			action.Kind = plan.MergeDelete
		default:
			return nil, fmt.Errorf("unknown merge action %q", ra.class())
		}
		cond, err := a.optionalExpr(ra, "condition")
		if err != nil {
			return nil, err
		}
		action.Condition = cond

		var assignments []struct {
			Key   plan.Attribute `json:"key"`
			Value rawNode        `json:"value"`
		}
		if err := ra.get("assignments", &assignments); err != nil {
			return nil, err
		}
		for _, as := range assignments {
			v, err := a.expr(as.Value)
			if err != nil {
				return nil, err
			}
			action.Assignments = append(action.Assignments, plan.Assignment{Key: as.Key, Value: v})
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func (a *jsonAdapter) nodes(raw []rawNode) ([]plan.Node, error) {
	out := make([]plan.Node, len(raw))
	for i, r := range raw {
		n, err := a.node(r)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func (a *jsonAdapter) requiredNode(r rawNode, field string) (plan.Node, error) {
	var body rawNode
	if err := r.require(field, &body); err != nil {
		return nil, err
	}
	return a.node(body)
}

func (a *jsonAdapter) optionalNode(r rawNode, field string) (plan.Node, error) {
	if !r.has(field) {
		return nil, nil
	}
	return a.requiredNode(r, field)
}
