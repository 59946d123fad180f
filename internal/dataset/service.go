// Package dataset implements the dataset lifecycle: creation with its field
// rows, soft deletion and restoration with their configured rules, and
// recalculation of plugin-computed field values.
package dataset

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"edc/internal/audit"
	"edc/internal/field"
	"edc/internal/platform/metrics"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	"edc/pkg/requestcontext"
)

// ValueSource computes the value of plugin fields. Implemented by the plugin
// registry; ok is false when no provider covers the field.
type ValueSource interface {
	Compute(ctx context.Context, family record.DataFamily) (value string, ok bool, err error)
}

// Service mutates dataset rows.
type Service struct {
	study    *study.Study
	datasets storage.DatasetStore
	fields   storage.FieldStore
	audit    audit.Store
	executor *rules.Executor
	values   *field.Service
	plugins  ValueSource
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables plugin error counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithValueSource wires the plugin value provider.
func WithValueSource(plugins ValueSource) Option {
	return func(s *Service) { s.plugins = plugins }
}

// NewService builds the dataset service.
func NewService(
	st *study.Study,
	datasets storage.DatasetStore,
	fields storage.FieldStore,
	auditStore audit.Store,
	executor *rules.Executor,
	values *field.Service,
	opts ...Option,
) *Service {
	s := &Service{
		study:    st,
		datasets: datasets,
		fields:   fields,
		audit:    auditStore,
		executor: executor,
		values:   values,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create instantiates a dataset of the given model with all its fields, then
// fires the dataset creation rules.
func (s *Service) Create(ctx context.Context, scope *record.Scope, event *record.Event, model *study.DatasetModel, rationale string) (*record.Dataset, error) {
	family := record.NewDatasetFamily(scope, event, nil)
	if err := family.CheckNotLocked(); err != nil {
		return nil, err
	}
	if err := family.CheckNotDeleted(); err != nil {
		return nil, err
	}

	dataset := &record.Dataset{
		ID:      uuid.NewString(),
		ScopeFK: scope.PK,
		Model:   model,
	}
	if event != nil {
		dataset.EventFK = &event.PK
	}
	if err := s.save(ctx, dataset, rationale); err != nil {
		return nil, err
	}
	if _, err := s.values.CreateAll(ctx, scope, event, dataset, rationale); err != nil {
		return nil, err
	}

	family.Dataset = dataset
	if _, err := s.executor.Execute(ctx, s.study.RulesForTrigger(study.TriggerCreateDataset), rules.StateOf(family)); err != nil {
		return nil, err
	}
	return dataset, nil
}

// Delete soft-deletes the dataset and fires its removal rules.
func (s *Service) Delete(ctx context.Context, family record.DataFamily, rationale string) error {
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	dataset := family.Dataset
	if dataset.Deleted {
		return nil
	}
	dataset.Deleted = true
	if err := s.save(ctx, dataset, rationale); err != nil {
		return err
	}

	state := rules.StateOf(family)
	if _, err := s.executor.Execute(ctx, dataset.Model.DeleteRules, state); err != nil {
		return err
	}
	_, err := s.executor.Execute(ctx, s.study.RulesForTrigger(study.TriggerRemoveDataset), state)
	return err
}

// Restore brings a soft-deleted dataset back and fires its restoration rules.
func (s *Service) Restore(ctx context.Context, family record.DataFamily, rationale string) error {
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	dataset := family.Dataset
	if !dataset.Deleted {
		return nil
	}
	dataset.Deleted = false
	if err := s.save(ctx, dataset, rationale); err != nil {
		return err
	}

	state := rules.StateOf(family)
	if _, err := s.executor.Execute(ctx, dataset.Model.RestoreRules, state); err != nil {
		return err
	}
	_, err := s.executor.Execute(ctx, s.study.RulesForTrigger(study.TriggerRestoreDataset), state)
	return err
}

// Reset blanks every field of the dataset and restarts their review history.
func (s *Service) Reset(ctx context.Context, family record.DataFamily, rationale string) error {
	fields, err := s.fields.ByDataset(ctx, family.Dataset.PK)
	if err != nil {
		return err
	}
	for _, f := range fields {
		fieldFamily := record.NewFieldFamily(family.Scope, family.Event, family.Dataset, f)
		if err := s.values.Reset(ctx, fieldFamily, rationale); err != nil {
			return err
		}
	}
	return nil
}

// RecalculatePluginValues recomputes the plugin fields of the dataset.
// Provider failures are counted and logged, not propagated: one broken plugin
// must not block the others.
func (s *Service) RecalculatePluginValues(ctx context.Context, family record.DataFamily, rationale string) error {
	if s.plugins == nil {
		return nil
	}
	fields, err := s.fields.ByDataset(ctx, family.Dataset.PK)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if !f.Model.Plugin {
			continue
		}
		fieldFamily := record.NewFieldFamily(family.Scope, family.Event, family.Dataset, f)
		value, ok, err := s.plugins.Compute(ctx, fieldFamily)
		if err != nil {
			if s.metrics != nil {
				s.metrics.PluginErrors.Inc()
			}
			s.logger.Error("plugin value computation failed",
				slog.String("field", f.ID),
				slog.String("model", f.Model.ID),
				slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		if err := s.values.UpdateValue(ctx, fieldFamily, value, rationale); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) save(ctx context.Context, dataset *record.Dataset, rationale string) error {
	now := requestcontext.Now(ctx)
	if dataset.PK == 0 {
		dataset.CreationTime = now
	}
	dataset.LastUpdateTime = now
	if err := s.datasets.Save(ctx, dataset); err != nil {
		return err
	}
	trail := audit.NewTrail(audit.EntityDataset, dataset.PK, requestcontext.Actor(ctx), rationale, now,
		map[string]string{
			"model":   dataset.Model.ID,
			"deleted": strconv.FormatBool(dataset.Deleted),
		})
	return s.audit.Append(ctx, trail)
}
