package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"edc/internal/record"
	"edc/internal/storage"
	"edc/internal/study"
)

// fixedStatuses is a StatusLister serving a canned status list per row.
type fixedStatuses struct {
	byPK map[int64][]*record.WorkflowStatus
}

func (s *fixedStatuses) StatusesFor(_ context.Context, w record.Workflowable) ([]*record.WorkflowStatus, error) {
	return s.byPK[w.WorkflowablePK()], nil
}

type testData struct {
	scope     *record.Scope
	event     *record.Event
	dataset   *record.Dataset
	weight    *record.Field
	comment   *record.Field
	visitDate *record.Field

	datasets *storage.InMemoryDatasetStore
	statuses *fixedStatuses
	binder   *Binder
}

func newTestData(t *testing.T) *testData {
	t.Helper()
	ctx := context.Background()

	weightModel := &study.FieldModel{ID: "WEIGHT", DatasetModelID: "VITALS", DataType: study.OperandNumber}
	commentModel := &study.FieldModel{ID: "COMMENT", DatasetModelID: "VITALS", DataType: study.OperandString}
	visitDateModel := &study.FieldModel{ID: "VISIT_DATE", DatasetModelID: "VITALS", DataType: study.OperandDate}
	datasetModel := &study.DatasetModel{
		ID:          "VITALS",
		FieldModels: []*study.FieldModel{weightModel, commentModel, visitDateModel},
	}

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	d := &testData{
		scope: &record.Scope{
			ID: "scope-1", Code: "DE-01-03",
			Model:          &study.ScopeModel{ID: "PATIENT"},
			CreationTime:   now,
			LastUpdateTime: now,
		},
		datasets: storage.NewInMemoryDatasetStore(),
		statuses: &fixedStatuses{byPK: make(map[int64][]*record.WorkflowStatus)},
	}

	scopes := storage.NewInMemoryScopeStore()
	events := storage.NewInMemoryEventStore()
	fields := storage.NewInMemoryFieldStore()

	require.NoError(t, scopes.Save(ctx, d.scope))

	visit := study.PartialDateOf(2024, 3, 9)
	d.event = &record.Event{
		ID: "event-1", ScopeFK: d.scope.PK,
		Model:          &study.EventModel{ID: "BASELINE"},
		Date:           &visit,
		CreationTime:   now,
		LastUpdateTime: now,
	}
	require.NoError(t, events.Save(ctx, d.event))

	d.dataset = &record.Dataset{
		ID: "dataset-1", ScopeFK: d.scope.PK, EventFK: &d.event.PK,
		Model:          datasetModel,
		CreationTime:   now,
		LastUpdateTime: now,
	}
	require.NoError(t, d.datasets.Save(ctx, d.dataset))

	d.weight = &record.Field{
		ID: "field-weight", ScopeFK: d.scope.PK, EventFK: &d.event.PK, DatasetFK: d.dataset.PK,
		Model: weightModel, Value: "82.5",
		CreationTime:   now,
		LastUpdateTime: now,
	}
	d.comment = &record.Field{
		ID: "field-comment", ScopeFK: d.scope.PK, EventFK: &d.event.PK, DatasetFK: d.dataset.PK,
		Model: commentModel, Value: "stable",
		CreationTime:   now,
		LastUpdateTime: now,
	}
	d.visitDate = &record.Field{
		ID: "field-visit-date", ScopeFK: d.scope.PK, EventFK: &d.event.PK, DatasetFK: d.dataset.PK,
		Model: visitDateModel, Value: "09.03.2024",
		CreationTime:   now,
		LastUpdateTime: now,
	}
	require.NoError(t, fields.Save(ctx, d.weight))
	require.NoError(t, fields.Save(ctx, d.comment))
	require.NoError(t, fields.Save(ctx, d.visitDate))

	d.binder = NewBinder(events, d.datasets, fields, d.statuses)
	return d
}

func (d *testData) weightFamily() record.DataFamily {
	return record.NewFieldFamily(d.scope, d.event, d.dataset, d.weight)
}

func fieldConstraint(conditions ...*study.RuleCondition) *study.RuleConstraint {
	return &study.RuleConstraint{
		Conditions: map[study.RulableEntity]*study.RuleConditionList{
			study.EntityField: {Mode: study.ModeAnd, Conditions: conditions},
		},
	}
}
