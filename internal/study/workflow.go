package study

import (
	pkgerrors "edc/pkg/errors"
)

// StateMatcher decides how an aggregator state is derived from the distinct
// states of the child workflow statuses.
type StateMatcher string

const (
	// MatcherAll requires every child to sit in the matched state.
	MatcherAll StateMatcher = "ALL"
	// MatcherOne requires at least one child in the matched state.
	MatcherOne StateMatcher = "ONE"
	// MatcherDefault marks the fallback state when no other state matches.
	MatcherDefault StateMatcher = "DEFAULT"
)

// WorkflowState is one named state of a workflow.
type WorkflowState struct {
	ID                    string
	Shortname             map[string]string
	Important             bool
	AggregateStateID      string
	AggregateStateMatcher StateMatcher
	PossibleActionIDs     []string
}

// Action is a named entry point on a workflow carrying its own rules.
type Action struct {
	ID        string
	Shortname map[string]string
	Rules     []Rule
}

// Workflow is a configured state machine attachable to scopes, events, forms
// and fields.
//
// A unique workflow has at most one live status per workflowable. An
// aggregator workflow (one with AggregateWorkflowID set) never persists its
// own statuses: its state is computed on read from the statuses of the
// aggregated workflow, and creating it only fires its action rules.
type Workflow struct {
	ID                  string
	Shortname           map[string]string
	Longname            map[string]string
	States              []WorkflowState
	Actions             []Action
	Rules               []Rule
	InitialStateID      string
	Mandatory           bool
	ActionID            string
	Unique              bool
	AggregateWorkflowID string
	Message             map[string]string
}

// IsAggregator reports whether the workflow aggregates another workflow's
// statuses instead of persisting its own.
func (w *Workflow) IsAggregator() bool {
	return w.AggregateWorkflowID != ""
}

// State returns the state with the given id.
func (w *Workflow) State(id string) (*WorkflowState, error) {
	for i := range w.States {
		if w.States[i].ID == id {
			return &w.States[i], nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"workflow %s has no state %s", w.ID, id)
}

// InitialState returns the configured initial state. A workflow without a
// resolvable initial state is a configuration defect.
func (w *Workflow) InitialState() (*WorkflowState, error) {
	if w.InitialStateID == "" {
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"workflow %s has no initial state", w.ID)
	}
	return w.State(w.InitialStateID)
}

// Action returns the action with the given id.
func (w *Workflow) Action(id string) (*Action, error) {
	for i := range w.Actions {
		if w.Actions[i].ID == id {
			return &w.Actions[i], nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"workflow %s has no action %s", w.ID, id)
}

// StatesByAggregate groups the workflow's states by their aggregate state id.
func (w *Workflow) StatesByAggregate() map[string][]WorkflowState {
	out := make(map[string][]WorkflowState)
	for _, state := range w.States {
		if state.AggregateStateID != "" {
			out[state.AggregateStateID] = append(out[state.AggregateStateID], state)
		}
	}
	return out
}
