package study

import (
	"encoding/json"
	"fmt"
	"os"

	pkgerrors "edc/pkg/errors"
	pkgstrings "edc/pkg/platform/strings"
)

// Load reads a study snapshot from a JSON file. The snapshot is validated
// just enough to fail fast on references that would otherwise surface as
// configuration errors mid-request.
func Load(path string) (*Study, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study snapshot: %w", err)
	}
	var st Study
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeConfiguration, "study snapshot is not valid JSON")
	}
	if st.DefaultLanguage == "" {
		st.DefaultLanguage = "en"
	}
	st.normalize()
	if err := st.checkReferences(); err != nil {
		return nil, err
	}
	return &st, nil
}

// normalize cleans up hand-edited snapshots: duplicate or blank entries in
// reference lists are dropped.
func (s *Study) normalize() {
	s.Languages = pkgstrings.DedupeAndTrim(s.Languages)
	for _, m := range s.ScopeModels {
		m.Workflows = pkgstrings.DedupeAndTrim(m.Workflows)
	}
	for _, m := range s.EventModels {
		m.Workflows = pkgstrings.DedupeAndTrim(m.Workflows)
	}
	for _, m := range s.FormModels {
		m.Workflows = pkgstrings.DedupeAndTrim(m.Workflows)
	}
	for _, dm := range s.DatasetModels {
		for _, fm := range dm.FieldModels {
			fm.ValidatorIDs = pkgstrings.DedupeAndTrim(fm.ValidatorIDs)
			fm.Workflows = pkgstrings.DedupeAndTrim(fm.Workflows)
		}
	}
}

// checkReferences verifies the cross-references inside the snapshot: field
// models must point at existing validators and workflows, validators at
// existing workflow states, aggregators at existing workflows.
func (s *Study) checkReferences() error {
	for _, dm := range s.DatasetModels {
		for _, fm := range dm.FieldModels {
			for _, id := range fm.ValidatorIDs {
				if _, err := s.Validator(id); err != nil {
					return err
				}
			}
			for _, id := range fm.Workflows {
				if _, err := s.Workflow(id); err != nil {
					return err
				}
			}
		}
	}
	for _, v := range s.Validators {
		if v.WorkflowID == "" {
			continue
		}
		w, err := s.Workflow(v.WorkflowID)
		if err != nil {
			return err
		}
		if _, err := w.State(v.InvalidStateID); err != nil {
			return err
		}
		if _, err := w.State(v.ValidStateID); err != nil {
			return err
		}
	}
	for _, w := range s.Workflows {
		if w.AggregateWorkflowID == "" {
			continue
		}
		if _, err := s.Workflow(w.AggregateWorkflowID); err != nil {
			return err
		}
	}
	return nil
}
