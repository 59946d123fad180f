// Package rules implements the constraint evaluation engine and the rule
// executor: walking condition trees against a snapshot of live rows,
// recording the dependency values consumed, and firing configured actions
// when a constraint holds.
package rules

import (
	"fmt"

	"edc/internal/record"
	"edc/internal/study"
)

// evaluableSet is keyed by row identity: two references to the same loaded
// row are the same evaluable.
type evaluableSet map[record.Evaluable]struct{}

func (s evaluableSet) clone() evaluableSet {
	out := make(evaluableSet, len(s))
	for ev := range s {
		out[ev] = struct{}{}
	}
	return out
}

func (s evaluableSet) equal(other evaluableSet) bool {
	if len(s) != len(other) {
		return false
	}
	for ev := range s {
		if _, ok := other[ev]; !ok {
			return false
		}
	}
	return true
}

// DataState is a point-in-time snapshot of the rows a constraint is evaluated
// against, one set per rulable entity, plus the reference entity the current
// condition applies to. States are value types: the With* methods return
// copies so every condition's result state can be retained independently.
type DataState struct {
	sets      [6]evaluableSet
	reference study.RulableEntity
}

// StateOf builds the snapshot for a family, referencing its deepest entity.
func StateOf(family record.DataFamily) DataState {
	var state DataState
	for i := range state.sets {
		state.sets[i] = make(evaluableSet)
	}
	if family.Scope != nil {
		state.sets[study.EntityScope][family.Scope] = struct{}{}
	}
	if family.Event != nil {
		state.sets[study.EntityEvent][family.Event] = struct{}{}
	}
	if family.Dataset != nil {
		state.sets[study.EntityDataset][family.Dataset] = struct{}{}
	}
	if family.Field != nil {
		state.sets[study.EntityField][family.Field] = struct{}{}
	}
	if family.Form != nil {
		state.sets[study.EntityForm][family.Form] = struct{}{}
	}
	state.reference = family.RulableEntity()
	return state
}

// StateOfStatus builds the snapshot for a workflow status mutation: the
// owning family plus the status itself, referencing the workflow entity.
func StateOfStatus(family record.DataFamily, status *record.WorkflowStatus) DataState {
	state := StateOf(family)
	state.sets[study.EntityWorkflow][status] = struct{}{}
	state.reference = study.EntityWorkflow
	return state
}

// Reference returns the entity the state currently applies to.
func (s DataState) Reference() study.RulableEntity { return s.reference }

// WithReference returns a copy of the state pointing at another entity.
func (s DataState) WithReference(entity study.RulableEntity) DataState {
	out := s
	out.reference = entity
	return out
}

// WithEvaluables returns a copy of the state with the given entity's set
// replaced.
func (s DataState) WithEvaluables(entity study.RulableEntity, evaluables []record.Evaluable) DataState {
	out := s
	set := make(evaluableSet, len(evaluables))
	for _, ev := range evaluables {
		set[ev] = struct{}{}
	}
	out.sets[entity] = set
	return out
}

// Evaluables returns the rows of one entity.
func (s DataState) Evaluables(entity study.RulableEntity) []record.Evaluable {
	out := make([]record.Evaluable, 0, len(s.sets[entity]))
	for ev := range s.sets[entity] {
		out = append(out, ev)
	}
	return out
}

// ReferenceEvaluables returns the rows of the reference entity.
func (s DataState) ReferenceEvaluables() []record.Evaluable {
	return s.Evaluables(s.reference)
}

// IsValid reports whether any row of the reference entity survived the
// condition.
func (s DataState) IsValid() bool {
	return len(s.sets[s.reference]) > 0
}

func (s DataState) referenceSet() evaluableSet { return s.sets[s.reference] }

func (s DataState) String() string {
	return fmt.Sprintf("DataState{reference: %s, evaluables: %d}", s.reference, len(s.referenceSet()))
}
