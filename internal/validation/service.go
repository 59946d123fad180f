package validation

import (
	"context"
	"log/slog"

	"edc/internal/platform/metrics"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/study"
	"edc/internal/workflow"
	pkgerrors "edc/pkg/errors"
)

// Messages recorded on workflow statuses touched by re-validation. Sites see
// these verbatim in the query history, so they are part of the behavior.
const (
	reassessSatisfied = "Re-assessing due to value change. Validation criteria satisfied."
	reassessChanged   = "Re-assessing due to value change"
)

// ScriptRunner executes script validators. Implemented by the plugin
// registry; nil when no plugins are wired.
type ScriptRunner interface {
	Run(ctx context.Context, validator *study.Validator, field *record.Field) (bool, error)
}

// Service checks field values against their validators and keeps the
// validation workflow statuses consistent with the current value.
type Service struct {
	study     *study.Study
	evaluator *rules.Evaluator
	workflows *workflow.Service
	scripts   ScriptRunner
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables validation counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithScriptRunner wires the executor for script validators.
func WithScriptRunner(runner ScriptRunner) Option {
	return func(s *Service) { s.scripts = runner }
}

// NewService builds the validation service.
func NewService(st *study.Study, evaluator *rules.Evaluator, workflows *workflow.Service, opts ...Option) *Service {
	s := &Service{
		study:     st,
		evaluator: evaluator,
		workflows: workflows,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckValue runs one validator against the family's field: the blank check
// for required validators, the plugin for script validators, the constraint
// otherwise. The evaluation is returned for constraint validators so callers
// can inspect dependencies.
func (s *Service) CheckValue(ctx context.Context, validator *study.Validator, family record.DataFamily) (bool, *rules.DataEvaluation, error) {
	if s.metrics != nil {
		s.metrics.ValidationsRun.Inc()
	}
	if validator.Required && family.Field.IsBlank() {
		return false, nil, nil
	}
	if validator.Script {
		if s.scripts == nil {
			return false, nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
				"validator %s is a script validator but no script runner is wired", validator.ID)
		}
		valid, err := s.scripts.Run(ctx, validator, family.Field)
		return valid, nil, err
	}
	if validator.Constraint != nil {
		evaluation := rules.NewDataEvaluation(rules.StateOf(family), validator.Constraint)
		if err := s.evaluator.Evaluate(ctx, evaluation); err != nil {
			return false, nil, err
		}
		return evaluation.Valid, evaluation, nil
	}
	return true, nil, nil
}

// ApplyBlockingValidators runs the field's blocking validators in importance
// order and returns a ValidatorError for the first failure. Callers invoke it
// before persisting a new value.
func (s *Service) ApplyBlockingValidators(ctx context.Context, family record.DataFamily) error {
	validators, err := s.study.FieldValidators(family.Field.Model)
	if err != nil {
		return err
	}
	for _, validator := range validators {
		if !validator.IsBlocking() {
			continue
		}
		valid, evaluation, err := s.CheckValue(ctx, validator, family)
		if err != nil {
			return err
		}
		if !valid {
			if s.metrics != nil {
				s.metrics.ValidatorFailures.WithLabelValues(validator.ID).Inc()
			}
			return &ValidatorError{
				Validator:  validator,
				Evaluation: evaluation,
				Message:    failureMessage(validator, s.study.DefaultLanguage),
			}
		}
	}
	return nil
}

// ValidateField reconciles the field's non-blocking validators with their
// workflow statuses after a value change. Unexpected errors are logged, never
// propagated: a broken validator must not prevent the value from being
// stored.
func (s *Service) ValidateField(ctx context.Context, family record.DataFamily) {
	field := family.Field
	if field == nil || !field.Model.HasValidators() || family.AnyDeleted() {
		return
	}
	if err := s.validateField(ctx, family); err != nil {
		s.logger.Error("field validation failed",
			slog.String("field", field.ID), slog.Any("error", err))
	}
}

// validateField runs the non-blocking validators in importance order and
// evolves the field's validation statuses around the first failure, if any.
//
// On success every open status (one sitting in its own validator's invalid
// state) transitions to its validator's valid state. On failure a new status
// is only opened when no existing validator status, open or closed, covers
// the same context; open statuses whose context changed (other workflow or
// validator, value updated since, dependencies updated since) are closed
// first. Statuses of validators that define no valid state are never
// transitioned.
func (s *Service) validateField(ctx context.Context, family record.DataFamily) error {
	field := family.Field
	validators, err := s.study.FieldValidators(field.Model)
	if err != nil {
		return err
	}

	var failure *ValidatorError
	for _, validator := range validators {
		if validator.IsBlocking() {
			continue
		}
		valid, evaluation, err := s.CheckValue(ctx, validator, family)
		if err != nil {
			return err
		}
		if !valid {
			if s.metrics != nil {
				s.metrics.ValidatorFailures.WithLabelValues(validator.ID).Inc()
			}
			failure = &ValidatorError{
				Validator:  validator,
				Evaluation: evaluation,
				Message:    failureMessage(validator, s.study.DefaultLanguage),
			}
			break
		}
	}

	statuses, err := s.validationStatuses(ctx, field)
	if err != nil {
		return err
	}

	if failure == nil {
		for _, status := range statuses {
			owner, err := s.study.Validator(status.ValidatorID)
			if err != nil {
				return err
			}
			if status.StateID != owner.InvalidStateID || owner.ValidStateID == "" {
				continue
			}
			if err := s.workflows.UpdateState(ctx, family, status, owner.ValidStateID, reassessSatisfied); err != nil {
				return err
			}
		}
		return nil
	}

	validator := failure.Validator
	alreadyDone := false
	for _, status := range statuses {
		if !s.contextChanged(field, status, validator, failure.Evaluation) {
			// an existing status, open or closed, already covers this failure
			alreadyDone = true
			continue
		}
		owner, err := s.study.Validator(status.ValidatorID)
		if err != nil {
			return err
		}
		// closed statuses are history and stay untouched
		if status.StateID != owner.InvalidStateID || owner.ValidStateID == "" {
			continue
		}
		if err := s.workflows.UpdateState(ctx, family, status, owner.ValidStateID, reassessChanged); err != nil {
			return err
		}
	}
	if alreadyDone {
		return nil
	}

	workflowCfg, err := s.study.Workflow(validator.WorkflowID)
	if err != nil {
		return err
	}
	_, err = s.workflows.Create(ctx, family, workflowCfg, workflow.CreateOptions{
		StateID:     validator.InvalidStateID,
		ValidatorID: validator.ID,
		Rationale:   failure.Message,
	})
	return err
}

// validationStatuses lists the live statuses opened on the field by any
// validator, across all workflows.
func (s *Service) validationStatuses(ctx context.Context, field *record.Field) ([]*record.WorkflowStatus, error) {
	all, err := s.workflows.StatusesFor(ctx, field)
	if err != nil {
		return nil, err
	}
	statuses := make([]*record.WorkflowStatus, 0, len(all))
	for _, status := range all {
		if status.ValidatorID != "" {
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}

func (s *Service) contextChanged(field *record.Field, status *record.WorkflowStatus, validator *study.Validator, evaluation *rules.DataEvaluation) bool {
	if status.WorkflowID != validator.WorkflowID {
		return true
	}
	if status.ValidatorID != validator.ID {
		return true
	}
	if field.LastUpdateTime.After(status.CreationTime) {
		return true
	}
	return evaluation != nil && evaluation.DependenciesChangedSince(status.LastUpdateTime)
}
