package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "edc/pkg/errors"
)

func f(v float64) *float64 { return &v }
func s(v string) *string   { return &v }

func TestOperatorFamilies(t *testing.T) {
	assert.True(t, OperatorEquals.HasValue())
	assert.True(t, OperatorNotContains.HasValue())
	assert.False(t, OperatorNull.HasValue())
	assert.False(t, OperatorNotBlank.HasValue())

	assert.True(t, OperatorNotEquals.IsNegate())
	assert.True(t, OperatorNotNull.IsNegate())
	assert.False(t, OperatorGreater.IsNegate())
}

func TestAllowedOperators(t *testing.T) {
	assert.True(t, OperandString.Allows(OperatorContains))
	assert.False(t, OperandNumber.Allows(OperatorContains))
	assert.True(t, OperandNumber.Allows(OperatorGreaterEquals))
	assert.False(t, OperandString.Allows(OperatorGreater))
	assert.True(t, OperandBoolean.Allows(OperatorEquals))
	assert.False(t, OperandBoolean.Allows(OperatorNotEquals))
	assert.Empty(t, OperandBlob.AllowedOperators())
}

func TestTestPairNumbers(t *testing.T) {
	tests := []struct {
		name     string
		op       Operator
		v1, v2   any
		expected bool
	}{
		{"equals", OperatorEquals, 82.5, 82.5, true},
		{"equals mismatch", OperatorEquals, 82.5, 82.6, false},
		{"equals both null", OperatorEquals, nil, nil, true},
		{"equals one null", OperatorEquals, 82.5, nil, false},
		{"not equals one null", OperatorNotEquals, nil, 82.5, true},
		{"not equals both null", OperatorNotEquals, nil, nil, false},
		{"greater", OperatorGreater, 100.0, 82.5, true},
		{"greater with null", OperatorGreater, nil, 82.5, false},
		{"greater equals boundary", OperatorGreaterEquals, 82.5, 82.5, true},
		{"lower", OperatorLower, 82.5, 100.0, true},
		{"lower equals", OperatorLowerEquals, 100.0, 82.5, false},
		{"int coercion", OperatorEquals, 82, f(82), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op.TestPair(OperandNumber, tt.v1, tt.v2)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTestPairStrings(t *testing.T) {
	tests := []struct {
		name     string
		op       Operator
		v1, v2   any
		expected bool
	}{
		{"equals", OperatorEquals, "stable", "stable", true},
		{"equals null left", OperatorEquals, nil, "stable", false},
		{"not equals", OperatorNotEquals, "stable", "worse", true},
		{"not equals both null", OperatorNotEquals, nil, nil, true},
		{"not equals null right", OperatorNotEquals, "stable", nil, true},
		{"contains", OperatorContains, "patient stable", "stable", true},
		{"not contains", OperatorNotContains, "patient stable", "worse", true},
		{"pointer coercion", OperatorEquals, s("stable"), "stable", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op.TestPair(OperandString, tt.v1, tt.v2)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTestPairContainsRequiresValues(t *testing.T) {
	_, err := OperatorContains.TestPair(OperandString, nil, "stable")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestTestPairDates(t *testing.T) {
	march := PartialDateOf(2024, 3, 9)
	april := PartialDateOf(2024, 4, 1)
	monthless, err := ParsePartialDate("Unknown.Unknown.2024")
	require.NoError(t, err)

	got, err := OperatorLower.TestPair(OperandDate, march, april)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = OperatorGreater.TestPair(OperandDate, march, april)
	require.NoError(t, err)
	assert.False(t, got)

	// the unknown month makes the dates equal
	got, err = OperatorEquals.TestPair(OperandDate, monthless, april)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = OperatorGreaterEquals.TestPair(OperandDate, monthless, april)
	require.NoError(t, err)
	assert.True(t, got)

	// strings parse as dates
	got, err = OperatorEquals.TestPair(OperandDate, "09.03.2024", march)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestTestPairBooleans(t *testing.T) {
	got, err := OperatorEquals.TestPair(OperandBoolean, true, "true")
	require.NoError(t, err)
	assert.True(t, got)

	_, err = OperatorEquals.TestPair(OperandBoolean, true, "maybe")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestTestOneValue(t *testing.T) {
	tests := []struct {
		name     string
		op       Operator
		typ      OperandType
		value    any
		expected bool
	}{
		{"null on nil", OperatorNull, OperandNumber, nil, true},
		{"null on value", OperatorNull, OperandNumber, 82.5, false},
		{"not null on value", OperatorNotNull, OperandDate, PartialDateOf(2024, 3, 9), true},
		{"blank on empty", OperatorBlank, OperandString, "", true},
		{"blank on spaces", OperatorBlank, OperandString, "   ", true},
		{"blank on text", OperatorBlank, OperandString, "stable", false},
		{"not blank on text", OperatorNotBlank, OperandString, "stable", true},
		{"not blank on nil string", OperatorNotBlank, OperandString, nil, false},
		{"not blank on number", OperatorNotBlank, OperandNumber, 82.5, true},
		{"not blank on nil number", OperatorNotBlank, OperandNumber, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op.Test(tt.typ, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestTestRejectsWrongFamily(t *testing.T) {
	_, err := OperatorEquals.Test(OperandString, "stable")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))

	_, err = OperatorNull.TestPair(OperandString, nil, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))

	_, err = OperatorBlank.Test(OperandNumber, 82.5)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestNegateOperatorsComplementTheirPositive(t *testing.T) {
	pairs := []struct {
		positive, negative Operator
	}{
		{OperatorEquals, OperatorNotEquals},
		{OperatorContains, OperatorNotContains},
	}
	values := []struct{ v1, v2 string }{
		{"alpha", "alpha"},
		{"alpha", "beta"},
		{"alphabet", "beta"},
	}
	for _, pair := range pairs {
		for _, vals := range values {
			pos, err := pair.positive.TestPair(OperandString, vals.v1, vals.v2)
			require.NoError(t, err)
			neg, err := pair.negative.TestPair(OperandString, vals.v1, vals.v2)
			require.NoError(t, err)
			assert.NotEqual(t, pos, neg, "%s vs %s on (%q, %q)", pair.positive, pair.negative, vals.v1, vals.v2)
		}
	}
}
