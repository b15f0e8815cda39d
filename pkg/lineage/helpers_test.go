package lineage

import (
	"testing"

	"github.com/leapstack-labs/planlineage/internal/testutil"
	"github.com/leapstack-labs/planlineage/pkg/plan"
	"github.com/stretchr/testify/require"
)

// attrs hands out attributes with fresh identities.
type attrs struct {
	next plan.ExprID
}

func (g *attrs) col(name string) plan.Attribute {
	g.next++
	return plan.NewAttribute(g.next, name)
}

func (g *attrs) cols(names ...string) []plan.Attribute {
	out := make([]plan.Attribute, len(names))
	for i, n := range names {
		out[i] = g.col(n)
	}
	return out
}

func table(name string, out ...plan.Attribute) *plan.Relation {
	return &plan.Relation{Table: plan.ParseTableIdentifier(name), Out: out}
}

func project(child plan.Node, list ...plan.NamedExpr) *plan.Project {
	return &plan.Project{List: list, Child: child}
}

func refs(list ...plan.Attribute) []plan.NamedExpr {
	out := make([]plan.NamedExpr, len(list))
	for i, a := range list {
		out[i] = plan.Ref(a)
	}
	return out
}

func analyze(t *testing.T, root plan.Node, opts Options) *Lineage {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = testutil.NewTestLogger(t)
	}
	result, err := NewAnalyzer(opts).Analyze(root)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

// sourcesOf returns the original columns of col, failing if col is absent.
func sourcesOf(t *testing.T, l *Lineage, col string) []string {
	t.Helper()
	for _, c := range l.ColumnLineage {
		if c.Column == col {
			return c.OriginalColumns
		}
	}
	t.Fatalf("column %q not in lineage %+v", col, l.ColumnLineage)
	return nil
}
