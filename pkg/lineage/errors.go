package lineage

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// ErrPlanTooDeep is returned when the plan nests deeper than Options.MaxDepth.
var ErrPlanTooDeep = errors.New("plan exceeds maximum depth")

// ExtractionError wraps any other failure raised while walking the plan.
type ExtractionError struct {
	Kind plan.Kind
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("lineage extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("lineage extraction failed at %s: %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
