package plan

// Kind names an operator kind. It is used for logging and error messages.
type Kind string

// Operator kinds.
const (
	KindProject            Kind = "Project"
	KindAggregate          Kind = "Aggregate"
	KindWindow             Kind = "Window"
	KindExpand             Kind = "Expand"
	KindJoin               Kind = "Join"
	KindUnion              Kind = "Union"
	KindRelation           Kind = "Relation"
	KindLocalRelation      Kind = "LocalRelation"
	KindOneRowRelation     Kind = "OneRowRelation"
	KindView               Kind = "View"
	KindWithCTE            Kind = "WithCTE"
	KindCTERef             Kind = "CTERelationRef"
	KindCachedRelation     Kind = "InMemoryRelation"
	KindCommandResult      Kind = "CommandResult"
	KindAlterViewAs        Kind = "AlterViewAs"
	KindCreateView         Kind = "CreateView"
	KindWriteTable         Kind = "WriteTable"
	KindInsertIntoDir      Kind = "InsertIntoDir"
	KindSaveIntoDataSource Kind = "SaveIntoDataSource"
	KindMergeInto          Kind = "MergeInto"
)

// Node is an operator in a resolved logical plan. The set of
// implementations is closed; unknown host operators become *Opaque.
type Node interface {
	// Kind returns the operator kind.
	Kind() Kind
	// Output returns the attributes the operator produces.
	Output() []Attribute
	// Children returns the input operators.
	Children() []Node
	node()
}

// JoinType is the kind of a join.
type JoinType int

// Join types.
const (
	InnerJoin JoinType = iota
	LeftOuterJoin
	RightOuterJoin
	FullOuterJoin
	CrossJoin
	LeftSemiJoin
	LeftAntiJoin
)

var joinTypeNames = map[JoinType]string{
	InnerJoin:      "Inner",
	LeftOuterJoin:  "LeftOuter",
	RightOuterJoin: "RightOuter",
	FullOuterJoin:  "FullOuter",
	CrossJoin:      "Cross",
	LeftSemiJoin:   "LeftSemi",
	LeftAntiJoin:   "LeftAnti",
}

func (t JoinType) String() string {
	if s, ok := joinTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseJoinType maps a join type name to a JoinType.
func ParseJoinType(name string) (JoinType, bool) {
	for t, s := range joinTypeNames {
		if s == name {
			return t, true
		}
	}
	return 0, false
}

// ExposesRight reports whether the right side's columns can appear in the
// join output.
func (t JoinType) ExposesRight() bool {
	return t != LeftSemiJoin && t != LeftAntiJoin
}

// Project evaluates a projection list over its child.
type Project struct {
	List  []NamedExpr
	Child Node
}

// Aggregate groups its child and evaluates the aggregate list.
type Aggregate struct {
	Grouping   []Expr
	Aggregates []NamedExpr
	Child      Node
}

// Window appends window function results to its child's output.
type Window struct {
	Exprs []NamedExpr
	Child Node
}

// Expand emits one row per projection for every input row (GROUPING SETS,
// ROLLUP, CUBE).
type Expand struct {
	Projections [][]Expr
	Out         []Attribute
	Child       Node
}

// Join combines two inputs.
type Join struct {
	Type      JoinType
	Left      Node
	Right     Node
	Condition Expr
}

// Union concatenates its inputs. An empty Out means the branches are
// independent statements (multi-insert).
type Union struct {
	Out    []Attribute
	Inputs []Node
}

// Relation reads a catalog table.
type Relation struct {
	Table TableIdentifier
	Out   []Attribute
}

// LocalRelation is an inline relation without catalog identity.
type LocalRelation struct {
	Out []Attribute
}

// OneRowRelation is the single empty row of a FROM-less SELECT.
type OneRowRelation struct{}

// View is a resolved reference to a persisted or temporary view.
type View struct {
	Name      TableIdentifier
	Temporary bool
	Out       []Attribute
	Body      Node
}

// CTEDef is one WITH definition.
type CTEDef struct {
	ID   int64
	Plan Node
}

// WithCTE holds CTE definitions in scope for Plan.
type WithCTE struct {
	Defs []CTEDef
	Plan Node
}

// CTERef references a CTE definition by id. Out carries the reference's own
// identities, which differ from the definition's.
type CTERef struct {
	CTEID int64
	Out   []Attribute
}

// CachedRelation reads a cached/materialized query. Plan is the cached
// logical plan when the host could recover it, nil otherwise.
type CachedRelation struct {
	TableName string
	Out       []Attribute
	Plan      Node
}

// Opaque is a host operator lineage does not model. Leaves contribute
// nothing; internal nodes pass requests through to every child.
type Opaque struct {
	Name   string
	Out    []Attribute
	Inputs []Node
}

// CommandResult wraps an already executed command.
type CommandResult struct {
	Command Node
}

// AlterViewAs replaces a view definition.
type AlterViewAs struct {
	View  TableIdentifier
	Query Node
}

// CreateView creates a view. Columns holds user specified column names.
type CreateView struct {
	View      TableIdentifier
	Persisted bool
	Columns   []string
	Query     Node
}

// WriteOp is the kind of a table write.
type WriteOp int

// Table write kinds.
const (
	CreateTableAsSelect WriteOp = iota
	ReplaceTableAsSelect
	InsertInto
	AppendData
	OverwriteByExpression
	OverwritePartitionsDynamic
)

var writeOpNames = map[WriteOp]string{
	CreateTableAsSelect:        "CreateTableAsSelect",
	ReplaceTableAsSelect:       "ReplaceTableAsSelect",
	InsertInto:                 "InsertInto",
	AppendData:                 "AppendData",
	OverwriteByExpression:      "OverwriteByExpression",
	OverwritePartitionsDynamic: "OverwritePartitionsDynamic",
}

func (o WriteOp) String() string {
	if s, ok := writeOpNames[o]; ok {
		return s
	}
	return "Unknown"
}

// WriteTable writes the result of Query into Table. A zero Table means the
// target has no catalog identity.
type WriteTable struct {
	Op    WriteOp
	Table TableIdentifier
	Query Node
}

// InsertIntoDir writes the result of Query to a storage location.
type InsertIntoDir struct {
	Location string
	Query    Node
}

// SaveIntoDataSource writes through a data source without catalog identity.
type SaveIntoDataSource struct {
	Query Node
}

// MergeActionKind is the kind of a MERGE clause.
type MergeActionKind int

// Merge clause kinds.
const (
	MergeUpdate MergeActionKind = iota
	MergeInsert
	MergeDelete
)

// Assignment sets Key to Value.
type Assignment struct {
	Key   Attribute
	Value Expr
}

// MergeAction is a WHEN [NOT] MATCHED clause.
type MergeAction struct {
	Kind        MergeActionKind
	Condition   Expr
	Assignments []Assignment
}

// MergeInto merges Source into Target.
type MergeInto struct {
	Target             Node
	Source             Node
	Condition          Expr
	Matched            []MergeAction
	NotMatched         []MergeAction
	NotMatchedBySource []MergeAction
}

// Actions returns all merge clauses in declaration order.
func (m *MergeInto) Actions() []MergeAction {
	out := make([]MergeAction, 0, len(m.Matched)+len(m.NotMatched)+len(m.NotMatchedBySource))
	out = append(out, m.Matched...)
	out = append(out, m.NotMatched...)
	return append(out, m.NotMatchedBySource...)
}

func (*Project) node()            {}
func (*Aggregate) node()          {}
func (*Window) node()             {}
func (*Expand) node()             {}
func (*Join) node()               {}
func (*Union) node()              {}
func (*Relation) node()           {}
func (*LocalRelation) node()      {}
func (*OneRowRelation) node()     {}
func (*View) node()               {}
func (*WithCTE) node()            {}
func (*CTERef) node()             {}
func (*CachedRelation) node()     {}
func (*Opaque) node()             {}
func (*CommandResult) node()      {}
func (*AlterViewAs) node()        {}
func (*CreateView) node()         {}
func (*WriteTable) node()         {}
func (*InsertIntoDir) node()      {}
func (*SaveIntoDataSource) node() {}
func (*MergeInto) node()          {}

func (*Project) Kind() Kind            { return KindProject }
func (*Aggregate) Kind() Kind          { return KindAggregate }
func (*Window) Kind() Kind             { return KindWindow }
func (*Expand) Kind() Kind             { return KindExpand }
func (*Join) Kind() Kind               { return KindJoin }
func (*Union) Kind() Kind              { return KindUnion }
func (*Relation) Kind() Kind           { return KindRelation }
func (*LocalRelation) Kind() Kind      { return KindLocalRelation }
func (*OneRowRelation) Kind() Kind     { return KindOneRowRelation }
func (*View) Kind() Kind               { return KindView }
func (*WithCTE) Kind() Kind            { return KindWithCTE }
func (*CTERef) Kind() Kind             { return KindCTERef }
func (*CachedRelation) Kind() Kind     { return KindCachedRelation }
func (n *Opaque) Kind() Kind           { return Kind(n.Name) }
func (*CommandResult) Kind() Kind      { return KindCommandResult }
func (*AlterViewAs) Kind() Kind        { return KindAlterViewAs }
func (*CreateView) Kind() Kind         { return KindCreateView }
func (*WriteTable) Kind() Kind         { return KindWriteTable }
func (*InsertIntoDir) Kind() Kind      { return KindInsertIntoDir }
func (*SaveIntoDataSource) Kind() Kind { return KindSaveIntoDataSource }
func (*MergeInto) Kind() Kind          { return KindMergeInto }

func (n *Project) Output() []Attribute   { return namedOutput(n.List) }
func (n *Aggregate) Output() []Attribute { return namedOutput(n.Aggregates) }
func (n *Window) Output() []Attribute {
	return append(childOutput(n.Child), namedOutput(n.Exprs)...)
}
func (n *Expand) Output() []Attribute { return n.Out }
func (n *Join) Output() []Attribute {
	if !n.Type.ExposesRight() {
		return childOutput(n.Left)
	}
	return append(childOutput(n.Left), childOutput(n.Right)...)
}
func (n *Union) Output() []Attribute            { return n.Out }
func (n *Relation) Output() []Attribute         { return n.Out }
func (n *LocalRelation) Output() []Attribute    { return n.Out }
func (*OneRowRelation) Output() []Attribute     { return nil }
func (n *View) Output() []Attribute             { return n.Out }
func (n *WithCTE) Output() []Attribute          { return childOutput(n.Plan) }
func (n *CTERef) Output() []Attribute           { return n.Out }
func (n *CachedRelation) Output() []Attribute   { return n.Out }
func (n *Opaque) Output() []Attribute           { return n.Out }
func (*CommandResult) Output() []Attribute      { return nil }
func (*AlterViewAs) Output() []Attribute        { return nil }
func (*CreateView) Output() []Attribute         { return nil }
func (*WriteTable) Output() []Attribute         { return nil }
func (*InsertIntoDir) Output() []Attribute      { return nil }
func (*SaveIntoDataSource) Output() []Attribute { return nil }
func (*MergeInto) Output() []Attribute          { return nil }

func (n *Project) Children() []Node      { return []Node{n.Child} }
func (n *Aggregate) Children() []Node    { return []Node{n.Child} }
func (n *Window) Children() []Node       { return []Node{n.Child} }
func (n *Expand) Children() []Node       { return []Node{n.Child} }
func (n *Join) Children() []Node         { return []Node{n.Left, n.Right} }
func (n *Union) Children() []Node        { return n.Inputs }
func (*Relation) Children() []Node       { return nil }
func (*LocalRelation) Children() []Node  { return nil }
func (*OneRowRelation) Children() []Node { return nil }

// Children returns nil: the view body is not an input of the reading plan.
func (*View) Children() []Node                 { return nil }
func (n *WithCTE) Children() []Node            { return []Node{n.Plan} }
func (*CTERef) Children() []Node               { return nil }
func (*CachedRelation) Children() []Node       { return nil }
func (n *Opaque) Children() []Node             { return n.Inputs }
func (n *CommandResult) Children() []Node      { return []Node{n.Command} }
func (n *AlterViewAs) Children() []Node        { return []Node{n.Query} }
func (n *CreateView) Children() []Node         { return []Node{n.Query} }
func (n *WriteTable) Children() []Node         { return []Node{n.Query} }
func (n *InsertIntoDir) Children() []Node      { return []Node{n.Query} }
func (n *SaveIntoDataSource) Children() []Node { return []Node{n.Query} }
func (n *MergeInto) Children() []Node          { return []Node{n.Target, n.Source} }

func namedOutput(list []NamedExpr) []Attribute {
	out := make([]Attribute, len(list))
	for i, e := range list {
		out[i] = e.ToAttribute()
	}
	return out
}

func childOutput(n Node) []Attribute {
	if n == nil {
		return nil
	}
	out := n.Output()
	return append(make([]Attribute, 0, len(out)), out...)
}
