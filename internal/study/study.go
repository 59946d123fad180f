// Package study holds the immutable configuration snapshot of a clinical
// study: the data models, workflows, validators and rules everything else is
// driven by. The snapshot is loaded once at startup and passed explicitly to
// every service; nothing in this package mutates after construction.
package study

import (
	pkgerrors "edc/pkg/errors"
)

// Study is the configuration root.
type Study struct {
	ID              string
	DefaultLanguage string
	Languages       []string

	ScopeModels   []*ScopeModel
	EventModels   []*EventModel
	DatasetModels []*DatasetModel
	FormModels    []*FormModel

	Workflows  []*Workflow
	Validators []*Validator

	// TriggerRules fire on study-level hook points such as UPDATE_VALUE.
	TriggerRules map[Trigger][]Rule
}

// Workflow returns the workflow with the given id, or a configuration error.
func (s *Study) Workflow(id string) (*Workflow, error) {
	for _, w := range s.Workflows {
		if w.ID == id {
			return w, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no workflow %s", id)
}

// Validator returns the validator with the given id, or a configuration error.
func (s *Study) Validator(id string) (*Validator, error) {
	for _, v := range s.Validators {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no validator %s", id)
}

// Validators returns the validators guarding the given field model, sorted by
// importance.
func (s *Study) FieldValidators(model *FieldModel) ([]*Validator, error) {
	validators := make([]*Validator, 0, len(model.ValidatorIDs))
	for _, id := range model.ValidatorIDs {
		v, err := s.Validator(id)
		if err != nil {
			return nil, err
		}
		validators = append(validators, v)
	}
	SortValidatorsByImportance(validators)
	return validators, nil
}

// ScopeModel returns the scope model with the given id.
func (s *Study) ScopeModel(id string) (*ScopeModel, error) {
	for _, m := range s.ScopeModels {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no scope model %s", id)
}

// EventModel returns the event model with the given id.
func (s *Study) EventModel(id string) (*EventModel, error) {
	for _, m := range s.EventModels {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no event model %s", id)
}

// DatasetModel returns the dataset model with the given id.
func (s *Study) DatasetModel(id string) (*DatasetModel, error) {
	for _, m := range s.DatasetModels {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no dataset model %s", id)
}

// FormModel returns the form model with the given id.
func (s *Study) FormModel(id string) (*FormModel, error) {
	for _, m := range s.FormModels {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "study has no form model %s", id)
}

// FieldModel resolves a field model inside a dataset model.
func (s *Study) FieldModel(datasetModelID, fieldModelID string) (*FieldModel, error) {
	dm, err := s.DatasetModel(datasetModelID)
	if err != nil {
		return nil, err
	}
	return dm.FieldModel(fieldModelID)
}

// RulesForTrigger returns the rules bound to a study-level trigger.
func (s *Study) RulesForTrigger(trigger Trigger) []Rule {
	if s.TriggerRules == nil {
		return nil
	}
	return s.TriggerRules[trigger]
}
