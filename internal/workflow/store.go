// Package workflow implements the workflow status state machine: creating
// statuses on scopes, events, forms and fields, transitioning them between
// configured states, and computing aggregated states.
package workflow

import (
	"context"

	"edc/internal/record"
)

// Store persists workflow statuses.
type Store interface {
	Save(ctx context.Context, status *record.WorkflowStatus) error
	ByPK(ctx context.Context, pk int64) (*record.WorkflowStatus, error)
	// ByWorkflowable returns every status attached to the row, deleted ones
	// included, ordered by primary key.
	ByWorkflowable(ctx context.Context, workflowable record.Workflowable) ([]*record.WorkflowStatus, error)
}

// attachedTo reports whether the status hangs off the given row. A status is
// attached to exactly one row: the deepest foreign key set decides the kind.
func attachedTo(status *record.WorkflowStatus, workflowable record.Workflowable) bool {
	pk := workflowable.WorkflowablePK()
	switch workflowable.WorkflowableEntity() {
	case record.WorkflowableScope:
		return status.WorkflowableType() == record.WorkflowableScope && status.ScopeFK == pk
	case record.WorkflowableEvent:
		return status.WorkflowableType() == record.WorkflowableEvent && *status.EventFK == pk
	case record.WorkflowableForm:
		return status.FormFK != nil && *status.FormFK == pk
	case record.WorkflowableField:
		return status.FieldFK != nil && *status.FieldFK == pk
	default:
		return false
	}
}
