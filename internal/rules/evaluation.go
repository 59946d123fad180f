package rules

import (
	"time"

	"edc/internal/record"
	"edc/internal/study"
)

// DataEvaluation is the result of running one constraint against a snapshot:
// the overall verdict, the per-condition result states (addressable by
// condition id for references and action parameters) and the rows consumed by
// dependency conditions. The dependency list is what lets the reconciliation
// service ask "did anything this constraint depends on change since time T"
// without re-running the whole tree.
type DataEvaluation struct {
	initial    DataState
	constraint *study.RuleConstraint

	States       map[string]DataState
	Valid        bool
	Dependencies []record.Evaluable
}

// NewDataEvaluation prepares an evaluation of a constraint against a
// snapshot. A nil constraint evaluates to valid.
func NewDataEvaluation(state DataState, constraint *study.RuleConstraint) *DataEvaluation {
	return &DataEvaluation{
		initial:    state,
		constraint: constraint,
		States:     make(map[string]DataState),
	}
}

// InitialState returns the snapshot the evaluation started from.
func (e *DataEvaluation) InitialState() DataState { return e.initial }

// Constraint returns the evaluated constraint; nil when there is none.
func (e *DataEvaluation) Constraint() *study.RuleConstraint { return e.constraint }

// DependenciesChangedSince reports whether any row consumed by a dependency
// condition was updated after the given time.
func (e *DataEvaluation) DependenciesChangedSince(t time.Time) bool {
	for _, ev := range e.Dependencies {
		if lastUpdate(ev).After(t) {
			return true
		}
	}
	return false
}

func lastUpdate(ev record.Evaluable) time.Time {
	switch row := ev.(type) {
	case *record.Scope:
		return row.LastUpdateTime
	case *record.Event:
		return row.LastUpdateTime
	case *record.Dataset:
		return row.LastUpdateTime
	case *record.Field:
		return row.LastUpdateTime
	case *record.Form:
		return row.LastUpdateTime
	case *record.WorkflowStatus:
		return row.LastUpdateTime
	default:
		return time.Time{}
	}
}
