// Package field implements the field value lifecycle: creating the rows of a
// dataset, updating values under blocking validators, resetting them, and
// reading historical values back from the audit trail.
package field

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"edc/internal/audit"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	"edc/internal/validation"
	"edc/internal/workflow"
	"edc/pkg/requestcontext"
)

// Service mutates field rows.
type Service struct {
	study     *study.Study
	fields    storage.FieldStore
	audit     audit.Store
	executor  *rules.Executor
	validator *validation.Service
	workflows *workflow.Service
	logger    *slog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the field service.
func NewService(
	st *study.Study,
	fields storage.FieldStore,
	auditStore audit.Store,
	executor *rules.Executor,
	validator *validation.Service,
	workflows *workflow.Service,
	opts ...Option,
) *Service {
	s := &Service{
		study:     st,
		fields:    fields,
		audit:     auditStore,
		executor:  executor,
		validator: validator,
		workflows: workflows,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create instantiates one field of the dataset, empty, with its mandatory
// workflows.
func (s *Service) Create(ctx context.Context, scope *record.Scope, event *record.Event, dataset *record.Dataset, model *study.FieldModel, rationale string) (*record.Field, error) {
	field := &record.Field{
		ID:        uuid.NewString(),
		ScopeFK:   scope.PK,
		DatasetFK: dataset.PK,
		Model:     model,
	}
	if event != nil {
		field.EventFK = &event.PK
	}
	if err := s.save(ctx, field, rationale); err != nil {
		return nil, err
	}
	family := record.NewFieldFamily(scope, event, dataset, field)
	if err := s.workflows.CreateAll(ctx, family, rationale); err != nil {
		return nil, err
	}
	return field, nil
}

// CreateAll instantiates every field of the dataset's model.
func (s *Service) CreateAll(ctx context.Context, scope *record.Scope, event *record.Event, dataset *record.Dataset, rationale string) ([]*record.Field, error) {
	out := make([]*record.Field, 0, len(dataset.Model.FieldModels))
	for _, model := range dataset.Model.FieldModels {
		field, err := s.Create(ctx, scope, event, dataset, model, rationale)
		if err != nil {
			return nil, err
		}
		out = append(out, field)
	}
	return out, nil
}

// UpdateValue stores a new value on the family's field.
//
// The value is sanitized against the model, checked by the blocking
// validators, saved with an audit entry, and only then do the value-change
// rules and the non-blocking validators run. Setting the current value again
// is a no-op.
func (s *Service) UpdateValue(ctx context.Context, family record.DataFamily, value, rationale string) error {
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	if err := family.CheckNotDeleted(); err != nil {
		return err
	}
	field := family.Field

	sanitized, err := field.Model.CheckAndSanitizeValue(value)
	if err != nil {
		return err
	}
	if sanitized == field.Value {
		return nil
	}

	previous := field.Value
	field.Value = sanitized
	if err := s.validator.ApplyBlockingValidators(ctx, family); err != nil {
		field.Value = previous
		return err
	}

	if err := s.save(ctx, field, rationale); err != nil {
		field.Value = previous
		return err
	}

	state := rules.StateOf(family)
	if _, err := s.executor.Execute(ctx, s.study.RulesForTrigger(study.TriggerUpdateValue), state); err != nil {
		return err
	}
	if _, err := s.executor.Execute(ctx, field.Model.Rules, state); err != nil {
		return err
	}

	s.validator.ValidateField(ctx, family)
	return nil
}

// Reset blanks the field and restarts its review history: mandatory workflow
// statuses return to their initial state, the rest are deleted.
func (s *Service) Reset(ctx context.Context, family record.DataFamily, rationale string) error {
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	if err := family.CheckNotDeleted(); err != nil {
		return err
	}
	field := family.Field
	if !field.IsBlank() {
		field.Value = ""
		if err := s.save(ctx, field, rationale); err != nil {
			return err
		}
	}
	return s.workflows.ResetMandatoryAndDeleteTheRest(ctx, family, rationale)
}

// ValueAtDate reads the value the field held at the given instant from the
// audit trail. A field with no trail entry up to that instant was blank.
func (s *Service) ValueAtDate(ctx context.Context, field *record.Field, at time.Time) (string, error) {
	trails, err := s.audit.List(ctx, audit.EntityField, field.PK, nil, &at)
	if err != nil {
		return "", err
	}
	value := ""
	for _, trail := range trails {
		if v, ok := trail.Values["value"]; ok {
			value = v
		}
	}
	return value, nil
}

func (s *Service) save(ctx context.Context, field *record.Field, rationale string) error {
	now := requestcontext.Now(ctx)
	if field.PK == 0 {
		field.CreationTime = now
	}
	field.LastUpdateTime = now
	if err := s.fields.Save(ctx, field); err != nil {
		return err
	}
	trail := audit.NewTrail(audit.EntityField, field.PK, requestcontext.Actor(ctx), rationale, now,
		map[string]string{"value": field.Value})
	return s.audit.Append(ctx, trail)
}
