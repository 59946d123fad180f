package study

import (
	"strconv"
	"strings"

	pkgerrors "edc/pkg/errors"
)

// WorkflowableModel is implemented by every model whose instances can carry
// workflow statuses.
type WorkflowableModel interface {
	ModelID() string
	WorkflowIDs() []string
}

// ScopeModel describes one level of the scope hierarchy (study, site,
// patient).
type ScopeModel struct {
	ID          string
	Shortname   map[string]string
	Workflows   []string
	EventModels []string
}

func (m *ScopeModel) ModelID() string       { return m.ID }
func (m *ScopeModel) WorkflowIDs() []string { return m.Workflows }

// EventModel describes a visit or other scheduled event.
type EventModel struct {
	ID            string
	Shortname     map[string]string
	Workflows     []string
	DatasetModels []string
	FormModels    []string
}

func (m *EventModel) ModelID() string       { return m.ID }
func (m *EventModel) WorkflowIDs() []string { return m.Workflows }

// FormModel describes a data entry form.
type FormModel struct {
	ID        string
	Shortname map[string]string
	Workflows []string
}

func (m *FormModel) ModelID() string       { return m.ID }
func (m *FormModel) WorkflowIDs() []string { return m.Workflows }

// DatasetModel groups field models recorded together.
type DatasetModel struct {
	ID           string
	Shortname    map[string]string
	FieldModels  []*FieldModel
	DeleteRules  []Rule
	RestoreRules []Rule
}

// FieldModel returns the field model with the given id, or a configuration
// error when the dataset model does not carry it.
func (m *DatasetModel) FieldModel(id string) (*FieldModel, error) {
	for _, fm := range m.FieldModels {
		if fm.ID == id {
			return fm, nil
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"dataset model %s has no field model %s", m.ID, id)
}

// PossibleValue is one entry of a closed value list.
type PossibleValue struct {
	ID        string
	Shortname map[string]string
}

// FieldModel describes a single data point: its value type, the validators
// guarding it, the workflows attachable to it and the rules fired when its
// value changes.
type FieldModel struct {
	ID             string
	DatasetModelID string
	Shortname      map[string]string
	DataType       OperandType
	MaxLength      int
	PossibleValues []PossibleValue
	ValidatorIDs   []string
	Workflows      []string
	Rules          []Rule
	Plugin         bool
}

func (m *FieldModel) ModelID() string       { return m.ID }
func (m *FieldModel) WorkflowIDs() []string { return m.Workflows }

// HasValidators reports whether any validator guards the field.
func (m *FieldModel) HasValidators() bool { return len(m.ValidatorIDs) > 0 }

// CheckAndSanitizeValue validates the raw textual value against the field's
// type and returns the canonical form to store. Empty values are always
// accepted; required-ness is a validator concern, not a format concern.
func (m *FieldModel) CheckAndSanitizeValue(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if m.MaxLength > 0 && len(value) > m.MaxLength {
		return "", pkgerrors.Newf(pkgerrors.CodeInvalidValue,
			"value for field %s exceeds maximum length %d", m.ID, m.MaxLength)
	}
	if len(m.PossibleValues) > 0 {
		for _, pv := range m.PossibleValues {
			if pv.ID == value {
				return value, nil
			}
		}
		return "", pkgerrors.Newf(pkgerrors.CodeInvalidValue,
			"value %q is not a possible value for field %s", value, m.ID)
	}
	switch m.DataType {
	case OperandNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "", pkgerrors.Newf(pkgerrors.CodeBadFormat,
				"value %q is not a valid number for field %s", value, m.ID)
		}
	case OperandDate:
		if _, err := ParsePartialDate(value); err != nil {
			return "", pkgerrors.Newf(pkgerrors.CodeBadFormat,
				"value %q is not a valid date for field %s", value, m.ID)
		}
	case OperandBoolean:
		if !strings.EqualFold(value, "true") && !strings.EqualFold(value, "false") {
			return "", pkgerrors.Newf(pkgerrors.CodeBadFormat,
				"value %q is not a valid boolean for field %s", value, m.ID)
		}
		value = strings.ToLower(value)
	}
	return value, nil
}

// ParseValue converts a stored textual value into the typed representation
// used by the operator algebra. A blank value yields nil.
func (m *FieldModel) ParseValue(value string) (any, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	switch m.DataType {
	case OperandNumber:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeBadFormat, "stored value is not a number")
		}
		return f, nil
	case OperandDate:
		d, err := ParsePartialDate(value)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeBadFormat, "stored value is not a date")
		}
		return d, nil
	case OperandBoolean:
		return strings.EqualFold(value, "true"), nil
	default:
		return value, nil
	}
}
