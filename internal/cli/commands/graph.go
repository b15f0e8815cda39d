package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/flow"
	"github.com/leapstack-labs/planlineage/internal/state"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Columns    bool
	Upstream   bool
	Downstream bool
	Depth      int
}

// graphOutput is the machine-readable result of the graph command.
type graphOutput struct {
	Root       string      `json:"root" yaml:"root"`
	Level      string      `json:"level" yaml:"level"`
	Upstream   []flow.Hop  `json:"upstream" yaml:"upstream"`
	Downstream []flow.Hop  `json:"downstream" yaml:"downstream"`
	Edges      []flow.Edge `json:"edges" yaml:"edges"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <table|column>",
		Short: "Show recorded upstream and downstream lineage",
		Long: `Walk the lineage recorded in the state database from one table, or with
--columns from one fully qualified column.

Every recorded write links its input tables to its output table, and each
source column to the output column it feeds. The walk follows those links
across statements.`,
		Example: `  # Everything that feeds or reads a table
  planlineage graph spark_catalog.db.orders

  # Where does a column come from?
  planlineage graph spark_catalog.db.report.total --columns --downstream=false

  # Limit traversal depth
  planlineage graph spark_catalog.db.orders --depth 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Columns, "columns", false, "Walk column lineage instead of table lineage")
	cmd.Flags().BoolVar(&opts.Upstream, "upstream", true, "Include upstream sources")
	cmd.Flags().BoolVar(&opts.Downstream, "downstream", true, "Include downstream consumers")
	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Max traversal depth (0 = unlimited)")

	return cmd
}

func runGraph(cmd *cobra.Command, root string, opts *GraphOptions) error {
	return withStore(cmd, func(store *state.SQLiteStore) error {
		load := store.TableEdges
		level := "table"
		if opts.Columns {
			load = store.ColumnEdges
			level = "column"
		}
		edges, err := load(cmd.Context())
		if err != nil {
			return err
		}

		g := flow.NewGraph()
		for _, e := range edges {
			g.AddEdge(e.From, e.To)
		}
		if !g.Has(root) {
			return fmt.Errorf("no recorded %s lineage for %q", level, root)
		}

		out := graphOutput{Root: root, Level: level, Upstream: []flow.Hop{}, Downstream: []flow.Hop{}}
		if opts.Upstream {
			out.Upstream = g.Upstream(root, opts.Depth)
		}
		if opts.Downstream {
			out.Downstream = g.Downstream(root, opts.Depth)
		}
		ids := []string{root}
		for _, h := range append(append([]flow.Hop{}, out.Upstream...), out.Downstream...) {
			ids = append(ids, h.Node)
		}
		out.Edges = g.EdgesWithin(ids)

		ok, err := writeData(cmd.OutOrStdout(), config.FromContext(cmd.Context()).Output, out)
		if !ok {
			renderGraph(cmd.OutOrStdout(), &out, opts)
		}
		return err
	})
}

func renderGraph(w io.Writer, out *graphOutput, opts *GraphOptions) {
	st := newStyles(w)
	_, _ = fmt.Fprintln(w, st.Heading.Render("Lineage for: "+out.Root))
	_, _ = fmt.Fprintln(w)

	if opts.Upstream {
		_, _ = fmt.Fprintf(w, "Upstream (%d):\n", len(out.Upstream))
		renderHops(w, out.Upstream)
	}
	if opts.Upstream && opts.Downstream {
		_, _ = fmt.Fprintln(w)
	}
	if opts.Downstream {
		_, _ = fmt.Fprintf(w, "Downstream (%d):\n", len(out.Downstream))
		renderHops(w, out.Downstream)
	}
}

func renderHops(w io.Writer, hops []flow.Hop) {
	for _, h := range hops {
		_, _ = fmt.Fprintf(w, "  %*s- %s\n", 2*(h.Depth-1), "", h.Node)
	}
}
