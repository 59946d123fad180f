package record

import (
	"time"

	"edc/internal/study"
)

// WorkflowStatus is one live instance of a workflow attached to a scope,
// event, form or field. It is created by the workflow state machine, mutated
// only through state transitions, and soft-deleted rather than removed so its
// audit history stays addressable.
type WorkflowStatus struct {
	PK      int64
	ScopeFK int64
	EventFK *int64
	FormFK  *int64
	FieldFK *int64

	WorkflowID     string
	StateID        string
	ActionID       string
	ValidatorID    string
	ProfileID      string
	TriggerMessage string

	Deleted        bool
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (ws *WorkflowStatus) EvaluableID() string                { return ws.WorkflowID }
func (ws *WorkflowStatus) RulableEntity() study.RulableEntity { return study.EntityWorkflow }

// WorkflowableType returns the kind of row the status is attached to.
func (ws *WorkflowStatus) WorkflowableType() WorkflowableEntity {
	switch {
	case ws.FieldFK != nil:
		return WorkflowableField
	case ws.FormFK != nil:
		return WorkflowableForm
	case ws.EventFK != nil:
		return WorkflowableEvent
	default:
		return WorkflowableScope
	}
}

// MoreRecentThan orders statuses for getMostRecent: by creation time, ties
// broken by primary key.
func (ws *WorkflowStatus) MoreRecentThan(other *WorkflowStatus) bool {
	if !ws.CreationTime.Equal(other.CreationTime) {
		return ws.CreationTime.After(other.CreationTime)
	}
	return ws.PK > other.PK
}
