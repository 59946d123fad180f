// Package record holds the live clinical rows: scopes, events, datasets,
// fields, forms and workflow statuses. Rows reference their configuration
// models from the study snapshot; services resolve and attach the model when
// a row is built or loaded.
package record

import (
	"strings"
	"time"

	"edc/internal/study"
)

// WorkflowableEntity is the kind of row a workflow status attaches to.
type WorkflowableEntity string

const (
	WorkflowableScope WorkflowableEntity = "SCOPE"
	WorkflowableEvent WorkflowableEntity = "EVENT"
	WorkflowableForm  WorkflowableEntity = "FORM"
	WorkflowableField WorkflowableEntity = "FIELD"
)

// Workflowable is any row that can carry workflow statuses.
type Workflowable interface {
	WorkflowablePK() int64
	WorkflowableEntity() WorkflowableEntity
	WorkflowableModel() study.WorkflowableModel
}

// Evaluable is any row a rule condition can be tested against.
type Evaluable interface {
	EvaluableID() string
	RulableEntity() study.RulableEntity
}

// Scope is a node of the scope hierarchy (study, site, patient).
type Scope struct {
	PK             int64
	ID             string
	Code           string
	Model          *study.ScopeModel
	Locked         bool
	Deleted        bool
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (s *Scope) WorkflowablePK() int64 { return s.PK }
func (s *Scope) WorkflowableEntity() WorkflowableEntity { return WorkflowableScope }
func (s *Scope) WorkflowableModel() study.WorkflowableModel { return s.Model }
func (s *Scope) EvaluableID() string { return s.ID }
func (s *Scope) RulableEntity() study.RulableEntity { return study.EntityScope }

// Event is a visit or other scheduled event inside a scope.
type Event struct {
	PK             int64
	ID             string
	ScopeFK        int64
	Model          *study.EventModel
	Date           *study.PartialDate
	Locked         bool
	Deleted        bool
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (e *Event) WorkflowablePK() int64 { return e.PK }
func (e *Event) WorkflowableEntity() WorkflowableEntity { return WorkflowableEvent }
func (e *Event) WorkflowableModel() study.WorkflowableModel { return e.Model }
func (e *Event) EvaluableID() string { return e.ID }
func (e *Event) RulableEntity() study.RulableEntity { return study.EntityEvent }

// Dataset groups the fields recorded together on a scope or event.
type Dataset struct {
	PK             int64
	ID             string
	ScopeFK        int64
	EventFK        *int64
	Model          *study.DatasetModel
	Deleted        bool
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (d *Dataset) EvaluableID() string { return d.ID }
func (d *Dataset) RulableEntity() study.RulableEntity { return study.EntityDataset }

// Form is a data entry form instance.
type Form struct {
	PK             int64
	ID             string
	ScopeFK        int64
	EventFK        *int64
	Model          *study.FormModel
	Deleted        bool
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (f *Form) WorkflowablePK() int64 { return f.PK }
func (f *Form) WorkflowableEntity() WorkflowableEntity { return WorkflowableForm }
func (f *Form) WorkflowableModel() study.WorkflowableModel { return f.Model }
func (f *Form) EvaluableID() string { return f.ID }
func (f *Form) RulableEntity() study.RulableEntity { return study.EntityForm }

// Field is a single recorded data point. An empty value means no value has
// been recorded.
type Field struct {
	PK             int64
	ID             string
	ScopeFK        int64
	EventFK        *int64
	DatasetFK      int64
	Model          *study.FieldModel
	Value          string
	CreationTime   time.Time
	LastUpdateTime time.Time
}

func (f *Field) WorkflowablePK() int64 { return f.PK }
func (f *Field) WorkflowableEntity() WorkflowableEntity { return WorkflowableField }
func (f *Field) WorkflowableModel() study.WorkflowableModel { return f.Model }
func (f *Field) EvaluableID() string { return f.ID }
func (f *Field) RulableEntity() study.RulableEntity { return study.EntityField }

// IsBlank reports whether the field has no meaningful value.
func (f *Field) IsBlank() bool { return strings.TrimSpace(f.Value) == "" }

// TypedValue converts the stored value to the representation used by the
// operator algebra.
func (f *Field) TypedValue() (any, error) { return f.Model.ParseValue(f.Value) }
