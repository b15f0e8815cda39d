package plan

import "fmt"

// PlanShapeError reports a node that lacks a field its kind requires,
// usually because the host engine version does not match the adapter that
// decoded the plan.
type PlanShapeError struct {
	Node  string
	Field string
}

func (e *PlanShapeError) Error() string {
	return fmt.Sprintf("plan shape error: %s has no field %q", e.Node, e.Field)
}
