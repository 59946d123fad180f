package record

import (
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// DataFamily is the ownership chain of one piece of clinical data: a scope,
// an optional event, and either a dataset/field pair or a form. Guards walk
// the whole chain: a mutation anywhere below a locked or deleted ancestor is
// rejected.
type DataFamily struct {
	Scope   *Scope
	Event   *Event
	Dataset *Dataset
	Field   *Field
	Form    *Form
}

// NewScopeFamily builds the family of a scope-level mutation.
func NewScopeFamily(scope *Scope) DataFamily {
	return DataFamily{Scope: scope}
}

// NewEventFamily builds the family of an event-level mutation.
func NewEventFamily(scope *Scope, event *Event) DataFamily {
	return DataFamily{Scope: scope, Event: event}
}

// NewFormFamily builds the family of a form-level mutation. The event may be
// nil for scope-attached forms.
func NewFormFamily(scope *Scope, event *Event, form *Form) DataFamily {
	return DataFamily{Scope: scope, Event: event, Form: form}
}

// NewDatasetFamily builds the family of a dataset-level mutation. The event
// may be nil for scope-attached datasets.
func NewDatasetFamily(scope *Scope, event *Event, dataset *Dataset) DataFamily {
	return DataFamily{Scope: scope, Event: event, Dataset: dataset}
}

// NewFieldFamily builds the family of a field-level mutation.
func NewFieldFamily(scope *Scope, event *Event, dataset *Dataset, field *Field) DataFamily {
	return DataFamily{Scope: scope, Event: event, Dataset: dataset, Field: field}
}

// DeepestEntity returns the workflowable the family points at.
func (f DataFamily) DeepestEntity() Workflowable {
	switch {
	case f.Field != nil:
		return f.Field
	case f.Form != nil:
		return f.Form
	case f.Event != nil:
		return f.Event
	default:
		return f.Scope
	}
}

// RulableEntity maps the family to the rule entity of its deepest member.
func (f DataFamily) RulableEntity() study.RulableEntity {
	switch {
	case f.Field != nil:
		return study.EntityField
	case f.Form != nil:
		return study.EntityForm
	case f.Event != nil:
		return study.EntityEvent
	default:
		return study.EntityScope
	}
}

// CheckNotLocked rejects the mutation when the scope or event is locked.
func (f DataFamily) CheckNotLocked() error {
	if f.Scope != nil && f.Scope.Locked {
		return pkgerrors.Newf(pkgerrors.CodeLocked, "scope %s is locked", f.Scope.Code)
	}
	if f.Event != nil && f.Event.Locked {
		return pkgerrors.Newf(pkgerrors.CodeLocked, "event %s is locked", f.Event.ID)
	}
	return nil
}

// CheckNotDeleted rejects the mutation when any ancestor in the chain is
// soft-deleted.
func (f DataFamily) CheckNotDeleted() error {
	if f.Scope != nil && f.Scope.Deleted {
		return pkgerrors.Newf(pkgerrors.CodeDeleted, "scope %s is deleted", f.Scope.Code)
	}
	if f.Event != nil && f.Event.Deleted {
		return pkgerrors.Newf(pkgerrors.CodeDeleted, "event %s is deleted", f.Event.ID)
	}
	if f.Dataset != nil && f.Dataset.Deleted {
		return pkgerrors.Newf(pkgerrors.CodeDeleted, "dataset %s is deleted", f.Dataset.ID)
	}
	if f.Form != nil && f.Form.Deleted {
		return pkgerrors.Newf(pkgerrors.CodeDeleted, "form %s is deleted", f.Form.ID)
	}
	return nil
}

// AnyDeleted reports whether any ancestor in the chain is soft-deleted.
func (f DataFamily) AnyDeleted() bool {
	return f.CheckNotDeleted() != nil
}
