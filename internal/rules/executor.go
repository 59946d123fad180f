package rules

import (
	"context"
	"log/slog"
	"strings"

	"edc/internal/platform/metrics"
	"edc/internal/record"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// StaticAction is a registry-level side effect fired against the whole state.
type StaticAction func(ctx context.Context, state DataState, params map[string]any) error

// EntityAction is a side effect applied to each targeted row.
type EntityAction func(ctx context.Context, ev record.Evaluable, params map[string]any) error

// Executor runs configured rules: it evaluates each rule's constraint and,
// when the constraint holds, fires the rule's actions. Actions are registered
// at wiring time so the executor stays decoupled from the services it drives.
type Executor struct {
	study         *study.Study
	evaluator     *Evaluator
	logger        *slog.Logger
	metrics       *metrics.Metrics
	staticActions map[string]StaticAction
	entityActions map[study.RulableEntity]map[string]EntityAction
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithExecutorLogger sets the logger used for action diagnostics.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = logger }
}

// WithExecutorMetrics enables rule execution counters.
func WithExecutorMetrics(m *metrics.Metrics) ExecutorOption {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor builds an executor for the given study configuration.
func NewExecutor(st *study.Study, evaluator *Evaluator, opts ...ExecutorOption) *Executor {
	e := &Executor{
		study:         st,
		evaluator:     evaluator,
		logger:        slog.Default(),
		staticActions: make(map[string]StaticAction),
		entityActions: make(map[study.RulableEntity]map[string]EntityAction),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterStaticAction binds an action id to a registry-level action.
func (e *Executor) RegisterStaticAction(id string, action StaticAction) {
	e.staticActions[id] = action
}

// RegisterEntityAction binds an action id to an entity-level action.
func (e *Executor) RegisterEntityAction(entity study.RulableEntity, id string, action EntityAction) {
	if e.entityActions[entity] == nil {
		e.entityActions[entity] = make(map[string]EntityAction)
	}
	e.entityActions[entity][id] = action
}

// Execute runs the rules in order against the state and returns the localized
// messages of the rules whose constraint held. A rule whose constraint does
// not hold is skipped silently. Action failures are logged and do not stop
// the remaining rules.
func (e *Executor) Execute(ctx context.Context, rules []study.Rule, state DataState) ([]string, error) {
	return e.execute(ctx, rules, state, make(map[string]struct{}))
}

func (e *Executor) execute(ctx context.Context, rules []study.Rule, state DataState, replaying map[string]struct{}) ([]string, error) {
	var messages []string
	for _, rule := range rules {
		evaluation := NewDataEvaluation(state, rule.Constraint)
		if err := e.evaluator.Evaluate(ctx, evaluation); err != nil {
			return messages, err
		}
		if !evaluation.Valid {
			continue
		}
		if e.metrics != nil {
			e.metrics.RulesExecuted.Inc()
		}
		for _, action := range rule.Actions {
			if err := e.executeAction(ctx, action, evaluation, replaying); err != nil {
				// a failing action must not prevent the remaining actions and rules
				e.logger.Error("rule action failed",
					slog.String("action", action.ID),
					slog.String("rule", rule.Description),
					slog.Any("error", err))
			}
		}
		if message, ok := rule.Message[e.study.DefaultLanguage]; ok && message != "" {
			messages = append(messages, message)
		}
	}
	return messages, nil
}

func (e *Executor) executeAction(ctx context.Context, action study.RuleAction, evaluation *DataEvaluation, replaying map[string]struct{}) error {
	if action.ConfigurationActionID != "" {
		return e.replayConfigurationAction(ctx, action, evaluation, replaying)
	}

	params, err := e.resolveParameters(ctx, action, evaluation)
	if err != nil {
		return err
	}

	if action.StaticActionID != "" {
		static, ok := e.staticActions[action.StaticActionID]
		if !ok {
			return pkgerrors.Newf(pkgerrors.CodeConfiguration,
				"unsupported static action %s", action.StaticActionID)
		}
		return static(ctx, evaluation.InitialState(), params)
	}

	entity, targets, err := e.actionTargets(action, evaluation)
	if err != nil {
		return err
	}
	entityAction, ok := e.entityActions[entity][action.ActionID]
	if !ok {
		return pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"unsupported action %s on entity %s", action.ActionID, entity)
	}
	for _, target := range targets {
		if err := entityAction(ctx, target, params); err != nil {
			return err
		}
	}
	return nil
}

// replayConfigurationAction runs the rules of another workflow action. The
// replaying set breaks cycles between actions replaying each other.
func (e *Executor) replayConfigurationAction(ctx context.Context, action study.RuleAction, evaluation *DataEvaluation, replaying map[string]struct{}) error {
	key := action.ConfigurationWorkflowID + "/" + action.ConfigurationActionID
	if _, ok := replaying[key]; ok {
		e.logger.Warn("skipping cyclic configuration action replay", slog.String("action", key))
		return nil
	}
	workflow, err := e.study.Workflow(action.ConfigurationWorkflowID)
	if err != nil {
		return err
	}
	workflowAction, err := workflow.Action(action.ConfigurationActionID)
	if err != nil {
		return err
	}
	replaying[key] = struct{}{}
	defer delete(replaying, key)
	_, err = e.execute(ctx, workflowAction.Rules, evaluation.InitialState(), replaying)
	return err
}

func (e *Executor) actionTargets(action study.RuleAction, evaluation *DataEvaluation) (study.RulableEntity, []record.Evaluable, error) {
	if action.RulableEntity != nil {
		return *action.RulableEntity, evaluation.InitialState().Evaluables(*action.RulableEntity), nil
	}
	state, ok := evaluation.States[action.ConditionID]
	if !ok {
		return 0, nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"action %s targets unevaluated condition %s", action.ID, action.ConditionID)
	}
	return state.Reference(), state.ReferenceEvaluables(), nil
}

// resolveParameters materializes the action's arguments: the rows of a rulable
// entity, the rows selected by a condition, a formula result, or a literal.
func (e *Executor) resolveParameters(ctx context.Context, action study.RuleAction, evaluation *DataEvaluation) (map[string]any, error) {
	params := make(map[string]any, len(action.Parameters))
	for _, parameter := range action.Parameters {
		switch {
		case parameter.RulableEntity != nil:
			params[parameter.ID] = evaluation.InitialState().Evaluables(*parameter.RulableEntity)
		case parameter.ConditionID != "":
			state, ok := evaluation.States[parameter.ConditionID]
			if !ok {
				return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
					"parameter %s references unevaluated condition %s", parameter.ID, parameter.ConditionID)
			}
			params[parameter.ID] = state.ReferenceEvaluables()
		case strings.HasPrefix(parameter.Value, "="):
			value, err := e.evaluator.formulas.Parse(ctx, parameter.Value, evaluation.States)
			if err != nil {
				e.logger.Warn("skipping unparseable action parameter",
					slog.String("parameter", parameter.ID), slog.Any("error", err))
				continue
			}
			params[parameter.ID] = value
		default:
			params[parameter.ID] = parameter.Value
		}
	}
	return params, nil
}
