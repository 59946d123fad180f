package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"edc/internal/audit"
	"edc/internal/platform/metrics"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/requestcontext"
)

// Service runs the workflow status state machine.
type Service struct {
	study    *study.Study
	statuses Store
	audit    audit.Store
	executor *rules.Executor
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics enables status counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the state machine over the given stores and rule
// executor.
func NewService(st *study.Study, statuses Store, auditStore audit.Store, executor *rules.Executor, opts ...Option) *Service {
	s := &Service{
		study:    st,
		statuses: statuses,
		audit:    auditStore,
		executor: executor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOptions carries the optional attributes of a new status.
type CreateOptions struct {
	// StateID overrides the workflow's initial state.
	StateID     string
	Action      *study.Action
	ValidatorID string
	ProfileID   string
	Rationale   string
}

// Create instantiates a workflow on the family's deepest row.
//
// An aggregator workflow never persists a status: creating it only fires the
// rules of the action passed in the options, or of its configured action when
// none is passed, and Create returns nil. A unique workflow returns the
// already existing status instead of creating a second one.
func (s *Service) Create(ctx context.Context, family record.DataFamily, workflow *study.Workflow, opts CreateOptions) (*record.WorkflowStatus, error) {
	if err := family.CheckNotLocked(); err != nil {
		return nil, err
	}
	if err := family.CheckNotDeleted(); err != nil {
		return nil, err
	}

	workflowable := family.DeepestEntity()
	if !workflowAllowed(workflowable.WorkflowableModel(), workflow.ID) {
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"workflow %s is not attachable to model %s", workflow.ID, workflowable.WorkflowableModel().ModelID())
	}

	if workflow.IsAggregator() {
		action := opts.Action
		if action == nil && workflow.ActionID != "" {
			configured, err := workflow.Action(workflow.ActionID)
			if err != nil {
				return nil, err
			}
			action = configured
		}
		if action != nil {
			if _, err := s.executor.Execute(ctx, action.Rules, rules.StateOf(family)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if workflow.Unique {
		existing, err := s.MostRecent(ctx, workflowable, workflow)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	stateID := opts.StateID
	if stateID == "" {
		initial, err := workflow.InitialState()
		if err != nil {
			return nil, err
		}
		stateID = initial.ID
	}

	status := &record.WorkflowStatus{
		ScopeFK:        family.Scope.PK,
		WorkflowID:     workflow.ID,
		StateID:        stateID,
		ValidatorID:    opts.ValidatorID,
		ProfileID:      opts.ProfileID,
		TriggerMessage: opts.Rationale,
	}
	if family.Event != nil {
		status.EventFK = &family.Event.PK
	}
	switch deepest := workflowable.(type) {
	case *record.Form:
		status.FormFK = &deepest.PK
	case *record.Field:
		status.FieldFK = &deepest.PK
	}
	if opts.Action != nil {
		status.ActionID = opts.Action.ID
	}

	if err := s.save(ctx, status, opts.Rationale); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.StatusesCreated.WithLabelValues(workflow.ID).Inc()
	}

	state := rules.StateOfStatus(family, status)
	if _, err := s.executor.Execute(ctx, s.study.RulesForTrigger(study.TriggerCreateWorkflowStatus), state); err != nil {
		return nil, err
	}
	if opts.Action != nil {
		if _, err := s.executor.Execute(ctx, opts.Action.Rules, state); err != nil {
			return nil, err
		}
	}
	return status, nil
}

// CreateAll instantiates every mandatory non-aggregator workflow of the
// family's deepest model.
func (s *Service) CreateAll(ctx context.Context, family record.DataFamily, rationale string) error {
	model := family.DeepestEntity().WorkflowableModel()
	for _, workflowID := range model.WorkflowIDs() {
		workflow, err := s.study.Workflow(workflowID)
		if err != nil {
			return err
		}
		if workflow.IsAggregator() || !workflow.Mandatory {
			continue
		}
		if _, err := s.Create(ctx, family, workflow, CreateOptions{Rationale: rationale}); err != nil {
			return err
		}
	}
	return nil
}

// UpdateState transitions the status to the given state. Transitioning to the
// current state is a no-op: no save, no audit entry, no rules.
func (s *Service) UpdateState(ctx context.Context, family record.DataFamily, status *record.WorkflowStatus, stateID, rationale string) error {
	workflow, err := s.study.Workflow(status.WorkflowID)
	if err != nil {
		return err
	}
	state, err := workflow.State(stateID)
	if err != nil {
		return err
	}
	if status.StateID == state.ID {
		return nil
	}
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	if err := family.CheckNotDeleted(); err != nil {
		return err
	}

	status.StateID = state.ID
	status.TriggerMessage = rationale
	if err := s.save(ctx, status, rationale); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.StatusesTransitions.WithLabelValues(workflow.ID).Inc()
	}

	_, err = s.executor.Execute(ctx, workflow.Rules, rules.StateOfStatus(family, status))
	return err
}

// Delete soft-deletes the status.
func (s *Service) Delete(ctx context.Context, family record.DataFamily, status *record.WorkflowStatus, rationale string) error {
	if status.Deleted {
		return nil
	}
	if err := family.CheckNotLocked(); err != nil {
		return err
	}
	status.Deleted = true
	if err := s.save(ctx, status, rationale); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.StatusesDeleted.Inc()
	}
	return nil
}

// ResetMandatoryAndDeleteTheRest resets every mandatory workflow status of
// the row to its initial state and deletes the non-mandatory ones. Used when
// a row's value is reset and its review history must restart.
func (s *Service) ResetMandatoryAndDeleteTheRest(ctx context.Context, family record.DataFamily, rationale string) error {
	statuses, err := s.StatusesFor(ctx, family.DeepestEntity())
	if err != nil {
		return err
	}
	for _, status := range statuses {
		workflow, err := s.study.Workflow(status.WorkflowID)
		if err != nil {
			return err
		}
		if workflow.Mandatory {
			initial, err := workflow.InitialState()
			if err != nil {
				return err
			}
			if err := s.UpdateState(ctx, family, status, initial.ID, rationale); err != nil {
				return err
			}
			continue
		}
		if err := s.Delete(ctx, family, status, rationale); err != nil {
			return err
		}
	}
	return nil
}

// StatusesFor returns the live statuses of the row. It satisfies the rule
// binder's status lister.
func (s *Service) StatusesFor(ctx context.Context, workflowable record.Workflowable) ([]*record.WorkflowStatus, error) {
	all, err := s.statuses.ByWorkflowable(ctx, workflowable)
	if err != nil {
		return nil, err
	}
	out := make([]*record.WorkflowStatus, 0, len(all))
	for _, status := range all {
		if !status.Deleted {
			out = append(out, status)
		}
	}
	return out, nil
}

// GetAll returns the live statuses of one workflow on the row.
func (s *Service) GetAll(ctx context.Context, workflowable record.Workflowable, workflow *study.Workflow) ([]*record.WorkflowStatus, error) {
	statuses, err := s.StatusesFor(ctx, workflowable)
	if err != nil {
		return nil, err
	}
	out := make([]*record.WorkflowStatus, 0, len(statuses))
	for _, status := range statuses {
		if status.WorkflowID == workflow.ID {
			out = append(out, status)
		}
	}
	return out, nil
}

// MostRecent returns the most recently created live status of the workflow on
// the row, or storage.ErrNotFound.
func (s *Service) MostRecent(ctx context.Context, workflowable record.Workflowable, workflow *study.Workflow) (*record.WorkflowStatus, error) {
	statuses, err := s.GetAll(ctx, workflowable, workflow)
	if err != nil {
		return nil, err
	}
	var mostRecent *record.WorkflowStatus
	for _, status := range statuses {
		if mostRecent == nil || status.MoreRecentThan(mostRecent) {
			mostRecent = status
		}
	}
	if mostRecent == nil {
		return nil, storage.ErrNotFound
	}
	return mostRecent, nil
}

func (s *Service) save(ctx context.Context, status *record.WorkflowStatus, rationale string) error {
	now := requestcontext.Now(ctx)
	if status.PK == 0 {
		status.CreationTime = now
	}
	status.LastUpdateTime = now
	if err := s.statuses.Save(ctx, status); err != nil {
		return err
	}
	trail := audit.NewTrail(audit.EntityWorkflowStatus, status.PK, requestcontext.Actor(ctx), rationale, now,
		map[string]string{
			"workflow": status.WorkflowID,
			"state":    status.StateID,
			"deleted":  strconv.FormatBool(status.Deleted),
		})
	return s.audit.Append(ctx, trail)
}

func workflowAllowed(model study.WorkflowableModel, workflowID string) bool {
	for _, id := range model.WorkflowIDs() {
		if id == workflowID {
			return true
		}
	}
	return false
}
