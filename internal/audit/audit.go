// Package audit keeps the append-only trail of every row mutation. Each save
// of an auditable row appends one trail entry carrying the rationale, the
// actor and a snapshot of the audited properties; entries are never updated
// or removed.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Auditable entity names used as trail keys.
const (
	EntityScope          = "scope"
	EntityEvent          = "event"
	EntityDataset        = "dataset"
	EntityField          = "field"
	EntityForm           = "form"
	EntityWorkflowStatus = "workflow_status"
)

// Trail is one audit entry for one row.
type Trail struct {
	ID        uuid.UUID
	Entity    string
	EntityPK  int64
	Actor     string
	Rationale string
	Time      time.Time
	Values    map[string]string
}

// Store persists audit trails.
type Store interface {
	Append(ctx context.Context, trail Trail) error
	// List returns the trails of one row ordered by time, optionally
	// restricted to a window. Nil bounds are open.
	List(ctx context.Context, entity string, entityPK int64, from, to *time.Time) ([]Trail, error)
}

// NewTrail builds a trail entry with a fresh id.
func NewTrail(entity string, entityPK int64, actor, rationale string, at time.Time, values map[string]string) Trail {
	return Trail{
		ID:        uuid.New(),
		Entity:    entity,
		EntityPK:  entityPK,
		Actor:     actor,
		Rationale: rationale,
		Time:      at,
		Values:    values,
	}
}
