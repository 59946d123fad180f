package rules

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"edc/internal/record"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// ruleBreak aborts constraint evaluation from deep inside the condition tree.
// It is only caught at the constraint root, where allow decides the verdict.
type ruleBreak struct {
	allow bool
}

func (b *ruleBreak) Error() string {
	if b.allow {
		return "constraint evaluation stopped: allow"
	}
	return "constraint evaluation stopped: block"
}

// Evaluator walks constraint condition trees against data states.
type Evaluator struct {
	binder   *Binder
	formulas *FormulaParser
	logger   *slog.Logger
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorLogger sets the logger used for formula diagnostics.
func WithEvaluatorLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = logger }
}

// NewEvaluator builds an evaluator over the given binder.
func NewEvaluator(binder *Binder, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		binder: binder,
		logger: slog.Default(),
	}
	e.formulas = NewFormulaParser(binder)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs the evaluation's constraint against its initial state,
// filling in the verdict, the per-condition states and the dependency rows.
//
// Condition lists are walked in entity order so that later lists may
// reference results of earlier ones. A failing entity list does not stop the
// walk: references from later conditions must still resolve. Only an explicit
// break aborts, and then the break type alone decides the verdict.
func (e *Evaluator) Evaluate(ctx context.Context, evaluation *DataEvaluation) error {
	if evaluation.constraint == nil {
		evaluation.Valid = true
		return nil
	}

	valid := true
	for _, entity := range study.RulableEntities {
		list, ok := evaluation.constraint.Conditions[entity]
		if !ok || list == nil {
			continue
		}
		// a list without conditions cannot invalidate its entity
		entityValid := true
		if len(list.Conditions) > 0 {
			entityValid = list.Mode == study.ModeAnd
		}
		for _, condition := range list.Conditions {
			conditionValid, err := e.evaluateCondition(ctx, evaluation, condition, evaluation.initial.WithReference(entity))
			if err != nil {
				var brk *ruleBreak
				if errors.As(err, &brk) {
					evaluation.Valid = brk.allow
					e.collectDependencies(evaluation)
					return nil
				}
				return err
			}
			if list.Mode == study.ModeAnd && !conditionValid {
				entityValid = false
			}
			if list.Mode == study.ModeOr && conditionValid {
				entityValid = true
			}
		}
		if !entityValid {
			valid = false
		}
	}

	evaluation.Valid = valid
	e.collectDependencies(evaluation)
	return nil
}

func (e *Evaluator) collectDependencies(evaluation *DataEvaluation) {
	for _, condition := range evaluation.constraint.DependencyConditions() {
		if state, ok := evaluation.States[condition.ID]; ok {
			evaluation.Dependencies = append(evaluation.Dependencies, state.ReferenceEvaluables()...)
		}
	}
}

func (e *Evaluator) evaluateCondition(ctx context.Context, evaluation *DataEvaluation, condition *study.RuleCondition, state DataState) (bool, error) {
	criterion := condition.Criterion

	var resultState DataState
	if e.binder.AttributeExists(state.Reference(), criterion.Property) {
		attribute, err := e.binder.Attribute(state.Reference(), criterion.Property)
		if err != nil {
			return false, err
		}
		results, err := e.filterByAttribute(ctx, evaluation, criterion, attribute, state)
		if err != nil {
			return false, err
		}
		resultState = state.WithEvaluables(state.Reference(), results)
	} else {
		relation, err := e.binder.Relation(state.Reference(), criterion.Property)
		if err != nil {
			return false, err
		}
		results, err := e.traverseRelation(ctx, relation, state)
		if err != nil {
			return false, err
		}
		resultState = state.WithReference(relation.Target).WithEvaluables(relation.Target, results)
	}

	evaluation.States[condition.ID] = resultState

	// Inverse flips the verdict, never the surviving rows.
	conditionValid := condition.Inverse != resultState.IsValid()
	if !conditionValid && condition.BreakType != "" && condition.BreakType != study.BreakNone {
		return false, &ruleBreak{allow: condition.BreakType == study.BreakAllow}
	}

	childrenValid := true
	if len(condition.Conditions) > 0 {
		childrenValid = condition.Mode == study.ModeAnd
		for _, child := range condition.Conditions {
			childValid, err := e.evaluateCondition(ctx, evaluation, child, resultState)
			if err != nil {
				return false, err
			}
			if condition.Mode == study.ModeAnd && !childValid {
				childrenValid = false
			}
			if condition.Mode == study.ModeOr && childValid {
				childrenValid = true
			}
		}
	}

	return conditionValid && childrenValid, nil
}

// filterByAttribute keeps the reference rows whose attribute value passes the
// criterion. When the criterion references another condition instead of
// carrying values, the rows pass as a whole iff they match that condition's
// result set exactly.
func (e *Evaluator) filterByAttribute(
	ctx context.Context,
	evaluation *DataEvaluation,
	criterion study.RuleConditionCriterion,
	attribute EntityAttribute,
	state DataState,
) ([]record.Evaluable, error) {
	if criterion.ConditionID != "" {
		referenced, ok := evaluation.States[criterion.ConditionID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
				"criterion references unevaluated condition %s", criterion.ConditionID)
		}
		if state.referenceSet().equal(referenced.referenceSet()) {
			return state.ReferenceEvaluables(), nil
		}
		return nil, nil
	}

	if !attribute.Type.Allows(criterion.Operator) {
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"operator %s is not allowed on %s attribute %s", criterion.Operator, attribute.Type, attribute.ID)
	}

	var candidates []any
	if criterion.Operator.HasValue() {
		for _, raw := range criterion.Values {
			candidate, err := e.parseCriterionValue(ctx, evaluation, attribute.Type, raw)
			if err != nil {
				// a broken formula must not invalidate the whole rule
				e.logger.Warn("skipping unparseable criterion value",
					slog.String("value", raw), slog.Any("error", err))
				continue
			}
			candidates = append(candidates, candidate)
		}
	}

	var results []record.Evaluable
	for _, ev := range state.ReferenceEvaluables() {
		value, err := attribute.Value(ctx, ev)
		if err != nil {
			return nil, err
		}
		passes := false
		if criterion.Operator.HasValue() {
			for _, candidate := range candidates {
				ok, err := criterion.Operator.TestPair(attribute.Type, value, candidate)
				if err != nil {
					return nil, err
				}
				if ok {
					passes = true
					break
				}
			}
		} else {
			passes, err = criterion.Operator.Test(attribute.Type, value)
			if err != nil {
				return nil, err
			}
		}
		if passes {
			results = append(results, ev)
		}
	}
	return results, nil
}

func (e *Evaluator) parseCriterionValue(ctx context.Context, evaluation *DataEvaluation, t study.OperandType, raw string) (any, error) {
	if strings.HasPrefix(raw, "=") {
		return e.formulas.Parse(ctx, raw, evaluation.States)
	}
	switch t {
	case study.OperandDate:
		date, err := study.ParsePartialDate(raw)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeConfiguration, "criterion value is not a date")
		}
		return date, nil
	case study.OperandNumber:
		number, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeConfiguration, "criterion value is not a number")
		}
		return number, nil
	case study.OperandBoolean:
		switch strings.ToLower(raw) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "criterion value %q is not a boolean", raw)
		}
	default:
		return raw, nil
	}
}

// traverseRelation follows the relation from every reference row, deduplicating
// targets reached through multiple paths.
func (e *Evaluator) traverseRelation(ctx context.Context, relation EntityRelation, state DataState) ([]record.Evaluable, error) {
	seen := make(evaluableSet)
	var results []record.Evaluable
	for _, ev := range state.ReferenceEvaluables() {
		targets, err := relation.Targets(ctx, ev)
		if err != nil {
			return nil, err
		}
		for _, target := range targets {
			if _, ok := seen[target]; ok {
				continue
			}
			seen[target] = struct{}{}
			results = append(results, target)
		}
	}
	return results, nil
}
