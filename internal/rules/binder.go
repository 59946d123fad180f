package rules

import (
	"context"

	"edc/internal/record"
	"edc/internal/storage"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// EntityAttribute resolves a named property of an evaluable, typed for the
// operator algebra.
type EntityAttribute struct {
	ID    string
	Type  study.OperandType
	Value func(ctx context.Context, ev record.Evaluable) (any, error)
}

// EntityRelation navigates from an evaluable to related evaluables of
// another entity.
type EntityRelation struct {
	ID      string
	Target  study.RulableEntity
	Targets func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error)
}

// StatusLister gives the binder access to the workflow statuses attached to a
// row without depending on the workflow package.
type StatusLister interface {
	StatusesFor(ctx context.Context, workflowable record.Workflowable) ([]*record.WorkflowStatus, error)
}

// Binder maps (entity, property) pairs to attributes and relations. The
// evaluator first looks for an attribute; a property that is not an attribute
// must be a relation, and an unknown property is a configuration defect.
type Binder struct {
	attributes map[study.RulableEntity]map[string]EntityAttribute
	relations  map[study.RulableEntity]map[string]EntityRelation
}

// NewBinder registers the built-in attributes and relations over the row
// stores.
func NewBinder(
	events storage.EventStore,
	datasets storage.DatasetStore,
	fields storage.FieldStore,
	statuses StatusLister,
) *Binder {
	b := &Binder{
		attributes: make(map[study.RulableEntity]map[string]EntityAttribute),
		relations:  make(map[study.RulableEntity]map[string]EntityRelation),
	}

	b.RegisterAttribute(study.EntityScope, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Scope).Model.ID, nil
		},
	})
	b.RegisterAttribute(study.EntityScope, EntityAttribute{
		ID: "CODE", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Scope).Code, nil
		},
	})
	b.RegisterAttribute(study.EntityScope, EntityAttribute{
		ID: "REMOVED", Type: study.OperandBoolean,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Scope).Deleted, nil
		},
	})

	b.RegisterAttribute(study.EntityEvent, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Event).Model.ID, nil
		},
	})
	b.RegisterAttribute(study.EntityEvent, EntityAttribute{
		ID: "DATE", Type: study.OperandDate,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			event := ev.(*record.Event)
			if event.Date == nil {
				return nil, nil
			}
			return *event.Date, nil
		},
	})
	b.RegisterAttribute(study.EntityEvent, EntityAttribute{
		ID: "REMOVED", Type: study.OperandBoolean,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Event).Deleted, nil
		},
	})

	b.RegisterAttribute(study.EntityDataset, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Dataset).Model.ID, nil
		},
	})
	b.RegisterAttribute(study.EntityDataset, EntityAttribute{
		ID: "REMOVED", Type: study.OperandBoolean,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Dataset).Deleted, nil
		},
	})

	b.RegisterAttribute(study.EntityField, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Field).Model.ID, nil
		},
	})
	b.RegisterAttribute(study.EntityField, EntityAttribute{
		ID: "VALUE", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			field := ev.(*record.Field)
			if field.IsBlank() {
				return nil, nil
			}
			return field.Value, nil
		},
	})
	b.RegisterAttribute(study.EntityField, EntityAttribute{
		ID: "VALUE_DATE", Type: study.OperandDate,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Field).TypedValue()
		},
	})
	b.RegisterAttribute(study.EntityField, EntityAttribute{
		ID: "VALUE_NUMBER", Type: study.OperandNumber,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Field).TypedValue()
		},
	})
	b.RegisterAttribute(study.EntityField, EntityAttribute{
		ID: "MODIFICATION_DATE", Type: study.OperandDate,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return study.PartialDateOfTime(ev.(*record.Field).LastUpdateTime), nil
		},
	})

	b.RegisterAttribute(study.EntityForm, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Form).Model.ID, nil
		},
	})
	b.RegisterAttribute(study.EntityForm, EntityAttribute{
		ID: "REMOVED", Type: study.OperandBoolean,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.Form).Deleted, nil
		},
	})

	b.RegisterAttribute(study.EntityWorkflow, EntityAttribute{
		ID: "ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.WorkflowStatus).WorkflowID, nil
		},
	})
	b.RegisterAttribute(study.EntityWorkflow, EntityAttribute{
		ID: "STATUS", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			return ev.(*record.WorkflowStatus).StateID, nil
		},
	})
	b.RegisterAttribute(study.EntityWorkflow, EntityAttribute{
		ID: "VALIDATOR_ID", Type: study.OperandString,
		Value: func(_ context.Context, ev record.Evaluable) (any, error) {
			status := ev.(*record.WorkflowStatus)
			if status.ValidatorID == "" {
				return nil, nil
			}
			return status.ValidatorID, nil
		},
	})

	statusesOf := func(ctx context.Context, workflowable record.Workflowable) ([]record.Evaluable, error) {
		all, err := statuses.StatusesFor(ctx, workflowable)
		if err != nil {
			return nil, err
		}
		out := make([]record.Evaluable, 0, len(all))
		for _, ws := range all {
			out = append(out, ws)
		}
		return out, nil
	}

	b.RegisterRelation(study.EntityScope, EntityRelation{
		ID: "EVENT", Target: study.EntityEvent,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			rows, err := events.ByScope(ctx, ev.(*record.Scope).PK)
			if err != nil {
				return nil, err
			}
			out := make([]record.Evaluable, 0, len(rows))
			for _, row := range rows {
				out = append(out, row)
			}
			return out, nil
		},
	})
	b.RegisterRelation(study.EntityScope, EntityRelation{
		ID: "DATASET", Target: study.EntityDataset,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			rows, err := datasets.ByScope(ctx, ev.(*record.Scope).PK)
			if err != nil {
				return nil, err
			}
			out := make([]record.Evaluable, 0, len(rows))
			for _, row := range rows {
				out = append(out, row)
			}
			return out, nil
		},
	})
	b.RegisterRelation(study.EntityScope, EntityRelation{
		ID: "WORKFLOW", Target: study.EntityWorkflow,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			return statusesOf(ctx, ev.(*record.Scope))
		},
	})

	b.RegisterRelation(study.EntityEvent, EntityRelation{
		ID: "DATASET", Target: study.EntityDataset,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			rows, err := datasets.ByEvent(ctx, ev.(*record.Event).PK)
			if err != nil {
				return nil, err
			}
			out := make([]record.Evaluable, 0, len(rows))
			for _, row := range rows {
				out = append(out, row)
			}
			return out, nil
		},
	})
	b.RegisterRelation(study.EntityEvent, EntityRelation{
		ID: "WORKFLOW", Target: study.EntityWorkflow,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			return statusesOf(ctx, ev.(*record.Event))
		},
	})

	b.RegisterRelation(study.EntityDataset, EntityRelation{
		ID: "FIELD", Target: study.EntityField,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			rows, err := fields.ByDataset(ctx, ev.(*record.Dataset).PK)
			if err != nil {
				return nil, err
			}
			out := make([]record.Evaluable, 0, len(rows))
			for _, row := range rows {
				out = append(out, row)
			}
			return out, nil
		},
	})

	b.RegisterRelation(study.EntityField, EntityRelation{
		ID: "DATASET", Target: study.EntityDataset,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			dataset, err := datasets.ByPK(ctx, ev.(*record.Field).DatasetFK)
			if err != nil {
				return nil, err
			}
			return []record.Evaluable{dataset}, nil
		},
	})
	b.RegisterRelation(study.EntityField, EntityRelation{
		ID: "WORKFLOW", Target: study.EntityWorkflow,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			return statusesOf(ctx, ev.(*record.Field))
		},
	})

	b.RegisterRelation(study.EntityForm, EntityRelation{
		ID: "WORKFLOW", Target: study.EntityWorkflow,
		Targets: func(ctx context.Context, ev record.Evaluable) ([]record.Evaluable, error) {
			return statusesOf(ctx, ev.(*record.Form))
		},
	})

	return b
}

// RegisterAttribute adds or replaces an attribute for an entity.
func (b *Binder) RegisterAttribute(entity study.RulableEntity, attribute EntityAttribute) {
	if b.attributes[entity] == nil {
		b.attributes[entity] = make(map[string]EntityAttribute)
	}
	b.attributes[entity][attribute.ID] = attribute
}

// RegisterRelation adds or replaces a relation for an entity.
func (b *Binder) RegisterRelation(entity study.RulableEntity, relation EntityRelation) {
	if b.relations[entity] == nil {
		b.relations[entity] = make(map[string]EntityRelation)
	}
	b.relations[entity][relation.ID] = relation
}

// AttributeExists reports whether the entity has the attribute.
func (b *Binder) AttributeExists(entity study.RulableEntity, id string) bool {
	_, ok := b.attributes[entity][id]
	return ok
}

// Attribute returns the attribute, or a configuration error.
func (b *Binder) Attribute(entity study.RulableEntity, id string) (EntityAttribute, error) {
	if attribute, ok := b.attributes[entity][id]; ok {
		return attribute, nil
	}
	return EntityAttribute{}, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"no attribute %s on entity %s", id, entity)
}

// Relation returns the relation, or a configuration error.
func (b *Binder) Relation(entity study.RulableEntity, id string) (EntityRelation, error) {
	if relation, ok := b.relations[entity][id]; ok {
		return relation, nil
	}
	return EntityRelation{}, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"no relation %s on entity %s", id, entity)
}
