package validation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edc/internal/audit"
	"edc/internal/platform/metrics"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	"edc/internal/workflow"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/requestcontext"
)

type lazyStatuses struct {
	svc *workflow.Service
}

func (l *lazyStatuses) StatusesFor(ctx context.Context, w record.Workflowable) ([]*record.WorkflowStatus, error) {
	return l.svc.StatusesFor(ctx, w)
}

type env struct {
	study     *study.Study
	svc       *Service
	workflows *workflow.Service
	audits    *audit.InMemoryStore

	scope   *record.Scope
	event   *record.Event
	dataset *record.Dataset
	field   *record.Field
	fields  *storage.InMemoryFieldStore
}

func (e *env) family() record.DataFamily {
	return record.NewFieldFamily(e.scope, e.event, e.dataset, e.field)
}

// rangeValidator opens a query when the weight exceeds 100.
func rangeValidator() *study.Validator {
	return &study.Validator{
		ID:             "WEIGHT_RANGE",
		WorkflowID:     "VALIDATION",
		InvalidStateID: "INVALID",
		ValidStateID:   "VALID",
		Message:        map[string]string{"en": "Weight must not exceed 100 kg"},
		Constraint: &study.RuleConstraint{
			Conditions: map[study.RulableEntity]*study.RuleConditionList{
				study.EntityField: {
					Mode: study.ModeAnd,
					Conditions: []*study.RuleCondition{
						{
							ID: "IN_RANGE",
							Criterion: study.RuleConditionCriterion{
								Property: "VALUE_NUMBER", Operator: study.OperatorLowerEquals, Values: []string{"100"},
							},
							Dependency: true,
						},
					},
				},
			},
		},
	}
}

// minValidator opens a query when the weight falls below 10.
func minValidator() *study.Validator {
	return &study.Validator{
		ID:             "WEIGHT_MIN",
		WorkflowID:     "VALIDATION",
		InvalidStateID: "INVALID",
		ValidStateID:   "VALID",
		Message:        map[string]string{"en": "Weight must be at least 10 kg"},
		Constraint: &study.RuleConstraint{
			Conditions: map[study.RulableEntity]*study.RuleConditionList{
				study.EntityField: {
					Mode: study.ModeAnd,
					Conditions: []*study.RuleCondition{
						{
							ID: "ABOVE_MIN",
							Criterion: study.RuleConditionCriterion{
								Property: "VALUE_NUMBER", Operator: study.OperatorGreaterEquals, Values: []string{"10"},
							},
							Dependency: true,
						},
					},
				},
			},
		},
	}
}

func validationWorkflow() *study.Workflow {
	return &study.Workflow{
		ID:             "VALIDATION",
		States:         []study.WorkflowState{{ID: "INVALID"}, {ID: "VALID"}},
		InitialStateID: "INVALID",
	}
}

func newEnv(t *testing.T, validators ...*study.Validator) *env {
	t.Helper()
	ctx := context.Background()

	st := &study.Study{
		DefaultLanguage: "en",
		Languages:       []string{"en"},
		Workflows:       []*study.Workflow{validationWorkflow()},
		Validators:      validators,
	}

	fieldModel := &study.FieldModel{
		ID: "WEIGHT", DatasetModelID: "VITALS", DataType: study.OperandNumber,
		Workflows: []string{"VALIDATION"},
	}
	for _, v := range validators {
		fieldModel.ValidatorIDs = append(fieldModel.ValidatorIDs, v.ID)
	}
	datasetModel := &study.DatasetModel{ID: "VITALS", FieldModels: []*study.FieldModel{fieldModel}}

	e := &env{study: st, fields: storage.NewInMemoryFieldStore(), audits: audit.NewInMemoryStore()}

	scopes := storage.NewInMemoryScopeStore()
	events := storage.NewInMemoryEventStore()
	datasets := storage.NewInMemoryDatasetStore()

	e.scope = &record.Scope{ID: "scope-1", Code: "DE-01-03", Model: &study.ScopeModel{ID: "PATIENT"}}
	require.NoError(t, scopes.Save(ctx, e.scope))
	e.event = &record.Event{ID: "event-1", ScopeFK: e.scope.PK, Model: &study.EventModel{ID: "BASELINE"}}
	require.NoError(t, events.Save(ctx, e.event))
	e.dataset = &record.Dataset{ID: "dataset-1", ScopeFK: e.scope.PK, EventFK: &e.event.PK, Model: datasetModel}
	require.NoError(t, datasets.Save(ctx, e.dataset))
	e.field = &record.Field{
		ID: "field-1", ScopeFK: e.scope.PK, EventFK: &e.event.PK, DatasetFK: e.dataset.PK,
		Model: fieldModel,
	}
	require.NoError(t, e.fields.Save(ctx, e.field))

	lazy := &lazyStatuses{}
	binder := rules.NewBinder(events, datasets, e.fields, lazy)
	evaluator := rules.NewEvaluator(binder)
	executor := rules.NewExecutor(st, evaluator)
	e.workflows = workflow.NewService(st, workflow.NewInMemoryStore(), e.audits, executor)
	lazy.svc = e.workflows
	e.svc = NewService(st, evaluator, e.workflows, WithMetrics(metrics.NewForTest()))
	return e
}

func (e *env) setValue(t *testing.T, value string, at time.Time) {
	t.Helper()
	e.field.Value = value
	e.field.LastUpdateTime = at
	require.NoError(t, e.fields.Save(context.Background(), e.field))
}

func (e *env) statuses(t *testing.T) []*record.WorkflowStatus {
	t.Helper()
	statuses, err := e.workflows.StatusesFor(context.Background(), e.field)
	require.NoError(t, err)
	return statuses
}

func TestValidateFieldOpensFinding(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.setValue(t, "150", t1)

	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "INVALID", statuses[0].StateID)
	assert.Equal(t, "WEIGHT_RANGE", statuses[0].ValidatorID)
	assert.Equal(t, "Weight must not exceed 100 kg", statuses[0].TriggerMessage)
}

func TestValidateFieldIsIdempotent(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.setValue(t, "150", t1)
	ctx := requestcontext.WithTime(context.Background(), t1)

	e.svc.ValidateField(ctx, e.family())
	e.svc.ValidateField(ctx, e.family())
	e.svc.ValidateField(ctx, e.family())

	assert.Len(t, e.statuses(t), 1)
}

func TestValidateFieldReplacesFindingAfterValueChange(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	e.setValue(t, "150", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	e.setValue(t, "160", t2)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t2), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 2)
	// the stale finding was closed before a fresh one was opened
	assert.Equal(t, "VALID", statuses[0].StateID)
	assert.Equal(t, "Re-assessing due to value change", statuses[0].TriggerMessage)
	assert.Equal(t, "INVALID", statuses[1].StateID)
	assert.Equal(t, t2, statuses[1].CreationTime)
}

func TestValidateFieldClosesFindingOnceSatisfied(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	e.setValue(t, "150", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	e.setValue(t, "90", t2)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t2), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "VALID", statuses[0].StateID)
	assert.Equal(t, "Re-assessing due to value change. Validation criteria satisfied.", statuses[0].TriggerMessage)
}

func TestValidateFieldKeepsManuallyClosedFinding(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	e.setValue(t, "150", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 1)

	// a reviewer closes the finding by hand, the value stays wrong
	ctx := requestcontext.WithTime(context.Background(), t2)
	require.NoError(t, e.workflows.UpdateState(ctx, e.family(), statuses[0], "VALID", "resolved after source data review"))

	e.svc.ValidateField(ctx, e.family())

	// the closed status still covers the failure, no new finding opens
	statuses = e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "VALID", statuses[0].StateID)
}

func TestValidateFieldHandlesFirstFailingValidatorOnly(t *testing.T) {
	strict := rangeValidator()
	strict.ID = "WEIGHT_RANGE_STRICT"
	strict.Message = map[string]string{"en": "Weight must not exceed 50 kg"}
	strict.Constraint.Conditions[study.EntityField].Conditions[0].Criterion.Values = []string{"50"}

	e := newEnv(t, rangeValidator(), strict)
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.setValue(t, "150", t1)
	ctx := requestcontext.WithTime(context.Background(), t1)

	e.svc.ValidateField(ctx, e.family())
	e.svc.ValidateField(ctx, e.family())

	// both validators reject the value but only the most important one opens
	statuses := e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "WEIGHT_RANGE", statuses[0].ValidatorID)
	assert.Equal(t, "Weight must not exceed 100 kg", statuses[0].TriggerMessage)
}

func TestValidateFieldSecondFailureReplacesFirstFinding(t *testing.T) {
	e := newEnv(t, minValidator(), rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	e.setValue(t, "150", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	e.setValue(t, "5", t2)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t2), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 2)
	assert.Equal(t, "WEIGHT_RANGE", statuses[0].ValidatorID)
	assert.Equal(t, "VALID", statuses[0].StateID)
	assert.Equal(t, "Re-assessing due to value change", statuses[0].TriggerMessage)
	assert.Equal(t, "WEIGHT_MIN", statuses[1].ValidatorID)
	assert.Equal(t, "INVALID", statuses[1].StateID)

	// the replaced finding was opened once and closed once
	trails, err := e.audits.List(context.Background(), audit.EntityWorkflowStatus, statuses[0].PK, nil, nil)
	require.NoError(t, err)
	assert.Len(t, trails, 2)
}

func TestValidateFieldKeepsFindingWhenValidatorHasNoValidState(t *testing.T) {
	noValid := rangeValidator()
	noValid.ValidStateID = ""
	e := newEnv(t, noValid)
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	e.setValue(t, "150", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	// a valid value cannot close a finding that has no valid state
	e.setValue(t, "90", t2)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t2), e.family())

	statuses := e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "INVALID", statuses[0].StateID)

	// a later failure leaves the stale finding open and adds a fresh one
	e.setValue(t, "160", t3)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t3), e.family())

	statuses = e.statuses(t)
	require.Len(t, statuses, 2)
	assert.Equal(t, "INVALID", statuses[0].StateID)
	assert.Equal(t, "INVALID", statuses[1].StateID)
}

func TestValidateFieldClosesFindingsAcrossWorkflows(t *testing.T) {
	queryMin := minValidator()
	queryMin.WorkflowID = "QUERY"
	queryMin.InvalidStateID = "OPEN"
	queryMin.ValidStateID = "CLOSED"

	e := newEnv(t, queryMin, rangeValidator())
	e.study.Workflows = append(e.study.Workflows, &study.Workflow{
		ID:             "QUERY",
		States:         []study.WorkflowState{{ID: "OPEN"}, {ID: "CLOSED"}},
		InitialStateID: "OPEN",
	})
	e.field.Model.Workflows = append(e.field.Model.Workflows, "QUERY")

	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	e.setValue(t, "5", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	e.setValue(t, "150", t2)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t2), e.family())

	// the finding in the other workflow is closed through its own validator's states
	statuses := e.statuses(t)
	require.Len(t, statuses, 2)
	assert.Equal(t, "WEIGHT_MIN", statuses[0].ValidatorID)
	assert.Equal(t, "CLOSED", statuses[0].StateID)
	assert.Equal(t, "Re-assessing due to value change", statuses[0].TriggerMessage)
	assert.Equal(t, "WEIGHT_RANGE", statuses[1].ValidatorID)
	assert.Equal(t, "INVALID", statuses[1].StateID)
}

func TestValidateFieldSkipsDeletedChain(t *testing.T) {
	e := newEnv(t, rangeValidator())
	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.setValue(t, "150", t1)
	e.dataset.Deleted = true

	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())
	assert.Empty(t, e.statuses(t))
}

func TestValidateFieldWithoutValidatorsDoesNothing(t *testing.T) {
	e := newEnv(t)
	e.svc.ValidateField(context.Background(), e.family())
	assert.Empty(t, e.statuses(t))
}

func TestApplyBlockingValidatorsRequired(t *testing.T) {
	required := &study.Validator{ID: "REQUIRED", Required: true}
	e := newEnv(t, required)

	err := e.svc.ApplyBlockingValidators(context.Background(), e.family())
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	var verr *ValidatorError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Field is required.", verr.Message)

	e.setValue(t, "82.5", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))
	assert.NoError(t, e.svc.ApplyBlockingValidators(context.Background(), e.family()))
}

func TestApplyBlockingValidatorsConstraint(t *testing.T) {
	blocking := rangeValidator()
	blocking.WorkflowID = "" // no workflow makes the validator blocking
	e := newEnv(t, blocking)
	e.setValue(t, "150", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	err := e.svc.ApplyBlockingValidators(context.Background(), e.family())
	require.Error(t, err)

	var verr *ValidatorError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Weight must not exceed 100 kg", verr.Message)
	require.NotNil(t, verr.Evaluation)
	assert.False(t, verr.Evaluation.Valid)
}

type stubRunner struct {
	valid bool
	runs  int
}

func (r *stubRunner) Run(_ context.Context, _ *study.Validator, _ *record.Field) (bool, error) {
	r.runs++
	return r.valid, nil
}

func TestScriptValidator(t *testing.T) {
	script := &study.Validator{
		ID: "SCRIPTED", Script: true,
		WorkflowID: "VALIDATION", InvalidStateID: "INVALID", ValidStateID: "VALID",
		Message: map[string]string{"en": "scripted check failed"},
	}
	e := newEnv(t, script)
	runner := &stubRunner{valid: false}
	WithScriptRunner(runner)(e.svc)

	t1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	e.setValue(t, "82.5", t1)
	e.svc.ValidateField(requestcontext.WithTime(context.Background(), t1), e.family())

	assert.Equal(t, 1, runner.runs)
	statuses := e.statuses(t)
	require.Len(t, statuses, 1)
	assert.Equal(t, "scripted check failed", statuses[0].TriggerMessage)
}

func TestScriptValidatorWithoutRunnerIsLoggedNotFatal(t *testing.T) {
	script := &study.Validator{
		ID: "SCRIPTED", Script: true,
		WorkflowID: "VALIDATION", InvalidStateID: "INVALID", ValidStateID: "VALID",
	}
	e := newEnv(t, script)
	e.setValue(t, "82.5", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC))

	// must not panic or create statuses
	e.svc.ValidateField(context.Background(), e.family())
	assert.Empty(t, e.statuses(t))
}
