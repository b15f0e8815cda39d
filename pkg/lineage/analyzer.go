package lineage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// DefaultMaxDepth bounds plan nesting when Options.MaxDepth is unset.
const DefaultMaxDepth = 512

// Options configures an Analyzer.
type Options struct {
	// SkipParsingPermanentViews treats permanent views as opaque tables
	// instead of expanding their definitions.
	SkipParsingPermanentViews bool
	// DefaultCatalog is prepended to database-qualified table names that
	// carry no catalog. Empty leaves them as they are.
	DefaultCatalog string
	// MaxDepth bounds the recursion depth. Zero means DefaultMaxDepth.
	MaxDepth int
	// Logger receives failures and debug traces. Nil discards.
	Logger *slog.Logger
}

// Analyzer computes lineage records. It is safe for concurrent use.
type Analyzer struct {
	ext *extractor
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(opts Options) *Analyzer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{ext: &extractor{opts: opts, logger: logger}}
}

// Extract returns the raw lineage map of root.
func (a *Analyzer) Extract(root plan.Node) (lin ColumnsLineage, err error) {
	if root == nil {
		return ColumnsLineage{}, &plan.PlanShapeError{Node: "root", Field: "plan"}
	}
	defer func() {
		if r := recover(); r != nil {
			lin = ColumnsLineage{}
			err = &ExtractionError{Kind: root.Kind(), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return a.ext.extract(root, ColumnsLineage{}, 0)
}

// Analyze computes the lineage record of root. Errors are
// *plan.PlanShapeError or *ExtractionError.
func (a *Analyzer) Analyze(root plan.Node) (*Lineage, error) {
	lin, err := a.Extract(root)
	if err != nil {
		var shape *plan.PlanShapeError
		var extraction *ExtractionError
		if errors.As(err, &shape) || errors.As(err, &extraction) {
			return nil, err
		}
		return nil, &ExtractionError{Kind: root.Kind(), Err: err}
	}
	return Project(lin), nil
}

// TryAnalyze is the failure boundary around Analyze: failures are logged
// with the statement identifier and reported as no lineage.
func (a *Analyzer) TryAnalyze(statementID string, root plan.Node) (*Lineage, bool) {
	result, err := a.Analyze(root)
	if err != nil {
		a.ext.logger.Warn("failed to extract lineage",
			"statement", statementID,
			"error", err,
		)
		return nil, false
	}
	return result, true
}
