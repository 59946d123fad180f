// Package validation runs field validators and reconciles their outcomes
// with the workflow statuses tracking open findings.
package validation

import (
	"fmt"

	"edc/internal/rules"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

// RequiredMessage is the failure message of a required validator that carries
// no configured message.
const RequiredMessage = "Field is required."

// ValidatorError reports a failed blocking validator.
type ValidatorError struct {
	Validator  *study.Validator
	Evaluation *rules.DataEvaluation
	Message    string
}

func (e *ValidatorError) Error() string {
	return fmt.Sprintf("validator %s failed: %s", e.Validator.ID, e.Message)
}

// Unwrap exposes the failure as a coded domain error so callers can branch on
// CodeValidation without knowing this type.
func (e *ValidatorError) Unwrap() error {
	return pkgerrors.New(pkgerrors.CodeValidation, e.Message)
}

func failureMessage(v *study.Validator, languages ...string) string {
	if message := v.LocalizedMessage(languages...); message != "" {
		return message
	}
	if v.Required {
		return RequiredMessage
	}
	return fmt.Sprintf("validator %s failed", v.ID)
}
