package workflow

import (
	"context"

	"edc/internal/record"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// AggregatedState computes the state of an aggregator workflow on a row from
// the live statuses of the workflow it aggregates.
//
// Each state of the aggregated workflow may map to a state of the aggregator
// through its aggregate state id and matcher: ONE matches as soon as one
// status sits in the state, ALL when every status does, DEFAULT marks the
// fallback when nothing else matches. States of the aggregated workflow are
// inspected in declaration order.
func (s *Service) AggregatedState(ctx context.Context, workflowable record.Workflowable, aggregator *study.Workflow) (*study.WorkflowState, error) {
	if !aggregator.IsAggregator() {
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
			"workflow %s does not aggregate another workflow", aggregator.ID)
	}
	aggregated, err := s.study.Workflow(aggregator.AggregateWorkflowID)
	if err != nil {
		return nil, err
	}
	statuses, err := s.GetAll(ctx, workflowable, aggregated)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, status := range statuses {
		counts[status.StateID]++
	}

	fallback := ""
	for _, state := range aggregated.States {
		if state.AggregateStateID == "" {
			continue
		}
		switch state.AggregateStateMatcher {
		case study.MatcherOne:
			if counts[state.ID] > 0 {
				return aggregator.State(state.AggregateStateID)
			}
		case study.MatcherAll:
			if len(statuses) > 0 && counts[state.ID] == len(statuses) {
				return aggregator.State(state.AggregateStateID)
			}
		case study.MatcherDefault:
			fallback = state.AggregateStateID
		}
	}
	if fallback != "" {
		return aggregator.State(fallback)
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"no aggregate state of workflow %s matches", aggregator.ID)
}
