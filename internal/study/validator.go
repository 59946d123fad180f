package study

import "sort"

// Validator is a configured check on a field value. A validator is exactly
// one of: required (blank check), script (delegated to an external plugin) or
// constraint driven.
//
// A validator with no workflow id is blocking: its failure rejects the value
// outright. A non-blocking validator instead opens a tracked workflow status
// in InvalidStateID, closed again through ValidStateID once the value passes.
type Validator struct {
	ID             string
	Shortname      map[string]string
	Description    map[string]string
	Required       bool
	Script         bool
	WorkflowID     string
	InvalidStateID string
	ValidStateID   string
	Message        map[string]string
	Constraint     *RuleConstraint
}

// IsBlocking reports whether a failure aborts the save instead of opening a
// workflow status.
func (v *Validator) IsBlocking() bool {
	return v.WorkflowID == ""
}

// LocalizedMessage returns the validator's failure message in the first
// language available.
func (v *Validator) LocalizedMessage(languages ...string) string {
	return localized(v.Message, languages...)
}

func localized(m map[string]string, languages ...string) string {
	for _, lang := range languages {
		if s, ok := m[lang]; ok && s != "" {
			return s
		}
	}
	for _, s := range m {
		if s != "" {
			return s
		}
	}
	return ""
}

// SortValidatorsByImportance orders validators the way the engine applies
// them: required first, blocking before non-blocking, then by id for a stable
// order.
func SortValidatorsByImportance(validators []*Validator) {
	sort.SliceStable(validators, func(i, j int) bool {
		v1, v2 := validators[i], validators[j]
		if v1.Required != v2.Required {
			return v1.Required
		}
		if v1.IsBlocking() != v2.IsBlocking() {
			return v1.IsBlocking()
		}
		return v1.ID < v2.ID
	})
}
