package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/planlineage/internal/config"
	"github.com/leapstack-labs/planlineage/internal/listener"
	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// AnalyzeOptions holds options for the analyze command.
type AnalyzeOptions struct {
	Record bool
	Jobs   int
}

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	opts := &AnalyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <plan>...",
		Short: "Extract column lineage from plan documents",
		Long: `Decode one or more resolved logical plans and print the column lineage
of each statement.

Arguments may be plan files or directories; directories contribute every
*.json file they contain. A document is either a bare plan or an envelope
carrying engineVersion, operation and plan.`,
		Example: `  # Analyze a single plan
  planlineage analyze plans/insert_orders.json

  # Analyze a directory and record the events
  planlineage analyze plans/ --record

  # Emit JSON for another tool
  planlineage analyze plans/ -o json

  # Or YAML
  planlineage analyze plans/ -o yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Record, "record", false, "Record lineage events in the state database")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 4, "Number of plans analyzed concurrently")

	return cmd
}

// analyzeResult is the outcome for one plan file.
type analyzeResult struct {
	Path  string          `json:"path" yaml:"path"`
	Event *listener.Event `json:"event,omitempty" yaml:"event,omitempty"`
	Error string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *analyzeResult) failed() bool {
	return r.Error != "" || r.Event == nil || (r.Event.Lineage == nil && r.Event.Exception == "")
}

func runAnalyze(cmd *cobra.Command, args []string, opts *AnalyzeOptions) error {
	cfg := config.FromContext(cmd.Context())
	logger := config.GetLogger(cmd.Context())

	files, err := collectPlanFiles(args)
	if err != nil {
		return err
	}

	var sinks []listener.Sink
	if opts.Record {
		store, err := openStore(cfg.StatePath, logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		sinks = append(sinks, listener.NewStoreSink(store))
	}

	analyzer := lineage.NewAnalyzer(cfg.AnalyzerOptions(logger))
	lst := listener.New(analyzer, logger, sinks...)

	results := make([]*analyzeResult, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, path := range files {
		g.Go(func() error {
			results[i] = analyzeFile(ctx, lst, path, cfg, logger)
			return nil
		})
	}
	_ = g.Wait()

	out := cmd.OutOrStdout()
	ok, err := writeData(out, cfg.Output, results)
	if err != nil {
		return err
	}
	if !ok {
		renderResults(out, results)
	}

	failed := 0
	for _, r := range results {
		if r.failed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d plans failed", failed, len(results))
	}
	return nil
}

func analyzeFile(ctx context.Context, lst *listener.Listener, path string, cfg *config.Config, logger *slog.Logger) *analyzeResult {
	r := &analyzeResult{Path: path}
	pf, err := loadPlanFile(path, cfg, logger)
	if err != nil {
		logger.Warn("failed to load plan", "path", path, "error", err)
		r.Error = err.Error()
		return r
	}
	r.Event = dispatch(ctx, lst, pf)
	return r
}

// dispatch routes a decoded plan to the listener by its operation state.
func dispatch(ctx context.Context, lst *listener.Listener, pf *planFile) *listener.Event {
	if strings.EqualFold(pf.Operation.State, "FINISHED") {
		return lst.OnSuccess(ctx, pf.Operation, pf.Root)
	}
	return lst.OnFailure(ctx, pf.Operation, nil)
}

// collectPlanFiles expands directories into their plan files. Files named
// explicitly are kept regardless of extension.
func collectPlanFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", arg, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && isPlanFile(e.Name()) {
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no plan files found")
	}
	return files, nil
}
