// Package storage defines the row stores for the clinical graph. Services
// depend on the interfaces; the in-memory implementations back tests and the
// default wiring. Workflow statuses and audit trails live in their own
// packages with their own stores.
package storage

import (
	"context"

	"edc/internal/record"
)

type ScopeStore interface {
	Save(ctx context.Context, scope *record.Scope) error
	ByPK(ctx context.Context, pk int64) (*record.Scope, error)
}

type EventStore interface {
	Save(ctx context.Context, event *record.Event) error
	ByPK(ctx context.Context, pk int64) (*record.Event, error)
	ByScope(ctx context.Context, scopePK int64) ([]*record.Event, error)
}

type DatasetStore interface {
	Save(ctx context.Context, dataset *record.Dataset) error
	ByPK(ctx context.Context, pk int64) (*record.Dataset, error)
	ByScope(ctx context.Context, scopePK int64) ([]*record.Dataset, error)
	ByEvent(ctx context.Context, eventPK int64) ([]*record.Dataset, error)
}

type FieldStore interface {
	Save(ctx context.Context, field *record.Field) error
	ByPK(ctx context.Context, pk int64) (*record.Field, error)
	ByDataset(ctx context.Context, datasetPK int64) ([]*record.Field, error)
}

type FormStore interface {
	Save(ctx context.Context, form *record.Form) error
	ByPK(ctx context.Context, pk int64) (*record.Form, error)
}
