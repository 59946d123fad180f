package study

import (
	"strings"
	"time"

	pkgerrors "edc/pkg/errors"
)

// Operator is one of the comparison operators usable in rule condition
// criteria. Operators come in two families: two-value comparisons
// (EQUALS through NOT_CONTAINS) and one-value tests (NULL through NOT_BLANK).
// Calling the wrong family is a configuration defect and fails loudly.
type Operator string

const (
	OperatorEquals        Operator = "EQUALS"
	OperatorNotEquals     Operator = "NOT_EQUALS"
	OperatorContains      Operator = "CONTAINS"
	OperatorNotContains   Operator = "NOT_CONTAINS"
	OperatorGreater       Operator = "GREATER"
	OperatorGreaterEquals Operator = "GREATER_EQUALS"
	OperatorLower         Operator = "LOWER"
	OperatorLowerEquals   Operator = "LOWER_EQUALS"
	OperatorNull          Operator = "NULL"
	OperatorNotNull       Operator = "NOT_NULL"
	OperatorBlank         Operator = "BLANK"
	OperatorNotBlank      Operator = "NOT_BLANK"
)

// OperandType is the value type a field or attribute carries. It constrains
// which operators may be configured against it.
type OperandType string

const (
	OperandString  OperandType = "STRING"
	OperandNumber  OperandType = "NUMBER"
	OperandDate    OperandType = "DATE"
	OperandBoolean OperandType = "BOOLEAN"
	OperandBlob    OperandType = "BLOB"
)

type operatorMeta struct {
	hasValue bool
	negate   bool
}

var operatorMetas = map[Operator]operatorMeta{
	OperatorEquals:        {hasValue: true},
	OperatorNotEquals:     {hasValue: true, negate: true},
	OperatorContains:      {hasValue: true},
	OperatorNotContains:   {hasValue: true, negate: true},
	OperatorGreater:       {hasValue: true},
	OperatorGreaterEquals: {hasValue: true},
	OperatorLower:         {hasValue: true},
	OperatorLowerEquals:   {hasValue: true},
	OperatorNull:          {},
	OperatorNotNull:       {negate: true},
	OperatorBlank:         {},
	OperatorNotBlank:      {negate: true},
}

// HasValue reports whether the operator compares against candidate values
// (the two-value family).
func (o Operator) HasValue() bool { return operatorMetas[o].hasValue }

// IsNegate reports whether the operator is the negative of another operator.
func (o Operator) IsNegate() bool { return operatorMetas[o].negate }

var allowedOperators = map[OperandType][]Operator{
	OperandString: {
		OperatorEquals, OperatorNotEquals, OperatorContains, OperatorNotContains,
		OperatorNull, OperatorNotNull, OperatorBlank, OperatorNotBlank,
	},
	OperandNumber: {
		OperatorEquals, OperatorNotEquals, OperatorGreater, OperatorGreaterEquals,
		OperatorLower, OperatorLowerEquals, OperatorNull, OperatorNotNull, OperatorNotBlank,
	},
	OperandDate: {
		OperatorEquals, OperatorNotEquals, OperatorGreater, OperatorGreaterEquals,
		OperatorLower, OperatorLowerEquals, OperatorNull, OperatorNotNull, OperatorNotBlank,
	},
	OperandBoolean: {OperatorEquals},
	OperandBlob:    {},
}

// AllowedOperators lists the operators that may be configured against the
// operand type.
func (t OperandType) AllowedOperators() []Operator {
	return allowedOperators[t]
}

// Allows reports whether the operator may be configured against the operand
// type.
func (t OperandType) Allows(op Operator) bool {
	for _, allowed := range allowedOperators[t] {
		if allowed == op {
			return true
		}
	}
	return false
}

func unsupported(op Operator, t OperandType, arity string) error {
	return pkgerrors.Newf(pkgerrors.CodeConfiguration,
		"operator %s does not support %s %s test", op, t, arity)
}

// Test runs the one-value family (NULL, NOT_NULL, BLANK, NOT_BLANK) of the
// operator against a single value. The value may be nil, and is otherwise
// coerced according to the operand type.
func (o Operator) Test(t OperandType, value any) (bool, error) {
	switch o {
	case OperatorNull, OperatorNotNull:
		present, err := isPresent(t, value)
		if err != nil {
			return false, err
		}
		if o == OperatorNull {
			return !present, nil
		}
		return present, nil
	case OperatorBlank:
		if t != OperandString {
			return false, unsupported(o, t, "one-value")
		}
		s, err := asString(value)
		if err != nil {
			return false, err
		}
		return s == nil || strings.TrimSpace(*s) == "", nil
	case OperatorNotBlank:
		if t == OperandString {
			s, err := asString(value)
			if err != nil {
				return false, err
			}
			return s != nil && strings.TrimSpace(*s) != "", nil
		}
		present, err := isPresent(t, value)
		if err != nil {
			return false, err
		}
		return present, nil
	default:
		return false, unsupported(o, t, "one-value")
	}
}

// TestPair runs the two-value family (EQUALS through NOT_CONTAINS, the
// ordering operators) of the operator. Null handling is operator and type
// specific: ordering operators return false when either side is null, EQUALS
// on numbers treats two nulls as equal, NOT_EQUALS on numbers treats exactly
// one null as different.
func (o Operator) TestPair(t OperandType, value1, value2 any) (bool, error) {
	if !o.HasValue() {
		return false, unsupported(o, t, "two-value")
	}
	switch t {
	case OperandString:
		v1, err := asString(value1)
		if err != nil {
			return false, err
		}
		v2, err := asString(value2)
		if err != nil {
			return false, err
		}
		return o.testStrings(v1, v2)
	case OperandNumber:
		v1, err := asNumber(value1)
		if err != nil {
			return false, err
		}
		v2, err := asNumber(value2)
		if err != nil {
			return false, err
		}
		return o.testNumbers(v1, v2)
	case OperandDate:
		v1, err := asDate(value1)
		if err != nil {
			return false, err
		}
		v2, err := asDate(value2)
		if err != nil {
			return false, err
		}
		return o.testDates(v1, v2)
	case OperandBoolean:
		v1, err := asBool(value1)
		if err != nil {
			return false, err
		}
		v2, err := asBool(value2)
		if err != nil {
			return false, err
		}
		return o.testBools(v1, v2)
	default:
		return false, unsupported(o, t, "two-value")
	}
}

func (o Operator) testStrings(v1, v2 *string) (bool, error) {
	switch o {
	case OperatorEquals:
		return v1 != nil && v2 != nil && *v1 == *v2, nil
	case OperatorNotEquals:
		if v1 == nil && v2 == nil {
			return true, nil
		}
		return v1 != nil && (v2 == nil || *v1 != *v2), nil
	case OperatorContains, OperatorNotContains:
		if v1 == nil || v2 == nil {
			return false, pkgerrors.Newf(pkgerrors.CodeConfiguration,
				"operator %s requires non-null strings", o)
		}
		contains := strings.Contains(*v1, *v2)
		if o == OperatorNotContains {
			return !contains, nil
		}
		return contains, nil
	default:
		return false, unsupported(o, OperandString, "two-value")
	}
}

func (o Operator) testNumbers(v1, v2 *float64) (bool, error) {
	switch o {
	case OperatorEquals:
		// raw floating-point equality, no epsilon
		return v1 == nil && v2 == nil || v1 != nil && v2 != nil && *v1 == *v2, nil
	case OperatorNotEquals:
		if v1 == nil && v2 == nil {
			return false, nil
		}
		if v1 == nil || v2 == nil {
			return true, nil
		}
		return *v1 != *v2, nil
	case OperatorGreater, OperatorGreaterEquals, OperatorLower, OperatorLowerEquals:
		if v1 == nil || v2 == nil {
			return false, nil
		}
		switch o {
		case OperatorGreater:
			return *v1 > *v2, nil
		case OperatorGreaterEquals:
			return *v1 >= *v2, nil
		case OperatorLower:
			return *v1 < *v2, nil
		default:
			return *v1 <= *v2, nil
		}
	default:
		return false, unsupported(o, OperandNumber, "two-value")
	}
}

func (o Operator) testDates(v1, v2 *PartialDate) (bool, error) {
	switch o {
	case OperatorEquals:
		return v1 != nil && v2 != nil && v1.Equals(*v2), nil
	case OperatorNotEquals:
		if v1 == nil && v2 == nil {
			return true, nil
		}
		return v1 != nil && (v2 == nil || !v1.Equals(*v2)), nil
	case OperatorGreater, OperatorGreaterEquals, OperatorLower, OperatorLowerEquals:
		if v1 == nil || v2 == nil {
			return false, nil
		}
		switch o {
		case OperatorGreater:
			return v1.After(*v2), nil
		case OperatorGreaterEquals:
			return v1.Equals(*v2) || v1.After(*v2), nil
		case OperatorLower:
			return v1.Before(*v2), nil
		default:
			return v1.Equals(*v2) || v1.Before(*v2), nil
		}
	default:
		return false, unsupported(o, OperandDate, "two-value")
	}
}

func (o Operator) testBools(v1, v2 *bool) (bool, error) {
	switch o {
	case OperatorEquals:
		return v1 != nil && v2 != nil && *v1 == *v2, nil
	case OperatorNotEquals:
		if v1 == nil && v2 == nil {
			return true, nil
		}
		return v1 != nil && (v2 == nil || *v1 != *v2), nil
	default:
		return false, unsupported(o, OperandBoolean, "two-value")
	}
}

func isPresent(t OperandType, value any) (bool, error) {
	switch t {
	case OperandString:
		v, err := asString(value)
		return v != nil, err
	case OperandNumber:
		v, err := asNumber(value)
		return v != nil, err
	case OperandDate:
		v, err := asDate(value)
		return v != nil, err
	case OperandBoolean:
		v, err := asBool(value)
		return v != nil, err
	default:
		return value != nil, nil
	}
}

func asString(value any) (*string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *string:
		return v, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "value %v is not a string", value)
	}
}

func asNumber(value any) (*float64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return &v, nil
	case *float64:
		return v, nil
	case int:
		f := float64(v)
		return &f, nil
	case int64:
		f := float64(v)
		return &f, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "value %v is not a number", value)
	}
}

func asDate(value any) (*PartialDate, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case PartialDate:
		return &v, nil
	case *PartialDate:
		return v, nil
	case time.Time:
		d := PartialDateOfTime(v)
		return &d, nil
	case string:
		d, err := ParsePartialDate(v)
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeConfiguration, "value is not a date")
		}
		return &d, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "value %v is not a date", value)
	}
}

func asBool(value any) (*bool, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool:
		return &v, nil
	case *bool:
		return v, nil
	case string:
		b := strings.EqualFold(v, "true")
		if !b && !strings.EqualFold(v, "false") {
			return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "value %q is not a boolean", v)
		}
		return &b, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeConfiguration, "value %v is not a boolean", value)
	}
}
