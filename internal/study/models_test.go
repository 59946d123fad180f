package study

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "edc/pkg/errors"
)

func TestCheckAndSanitizeValue(t *testing.T) {
	number := &FieldModel{ID: "WEIGHT", DataType: OperandNumber}
	date := &FieldModel{ID: "VISIT_DATE", DataType: OperandDate}
	boolean := &FieldModel{ID: "FASTING", DataType: OperandBoolean}
	text := &FieldModel{ID: "COMMENT", DataType: OperandString, MaxLength: 10}
	coded := &FieldModel{ID: "SEVERITY", DataType: OperandString, PossibleValues: []PossibleValue{
		{ID: "MILD"}, {ID: "SEVERE"},
	}}

	tests := []struct {
		name      string
		model     *FieldModel
		input     string
		sanitized string
		code      pkgerrors.Code
	}{
		{"number trimmed", number, " 82.5 ", "82.5", ""},
		{"number garbage", number, "82,5", "", pkgerrors.CodeBadFormat},
		{"empty always passes", number, "   ", "", ""},
		{"partial date", date, "Unknown.05.2021", "Unknown.05.2021", ""},
		{"date garbage", date, "yesterday", "", pkgerrors.CodeBadFormat},
		{"boolean lowercased", boolean, "TRUE", "true", ""},
		{"boolean garbage", boolean, "yes", "", pkgerrors.CodeBadFormat},
		{"within max length", text, "short", "short", ""},
		{"over max length", text, "far too long a comment", "", pkgerrors.CodeInvalidValue},
		{"coded value", coded, "MILD", "MILD", ""},
		{"outside value list", coded, "MODERATE", "", pkgerrors.CodeInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.model.CheckAndSanitizeValue(tt.input)
			if tt.code != "" {
				require.Error(t, err)
				assert.True(t, pkgerrors.HasCode(err, tt.code))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.sanitized, got)
		})
	}
}

func TestParseValue(t *testing.T) {
	number := &FieldModel{ID: "WEIGHT", DataType: OperandNumber}
	v, err := number.ParseValue("82.5")
	require.NoError(t, err)
	assert.Equal(t, 82.5, v)

	v, err = number.ParseValue("")
	require.NoError(t, err)
	assert.Nil(t, v)

	date := &FieldModel{ID: "VISIT_DATE", DataType: OperandDate}
	v, err = date.ParseValue("09.03.2024")
	require.NoError(t, err)
	assert.Equal(t, PartialDateOf(2024, 3, 9), v)

	boolean := &FieldModel{ID: "FASTING", DataType: OperandBoolean}
	v, err = boolean.ParseValue("true")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	text := &FieldModel{ID: "COMMENT", DataType: OperandString}
	v, err = text.ParseValue("stable")
	require.NoError(t, err)
	assert.Equal(t, "stable", v)
}

func TestDatasetModelFieldLookup(t *testing.T) {
	model := &DatasetModel{ID: "VITALS", FieldModels: []*FieldModel{{ID: "WEIGHT"}}}

	fm, err := model.FieldModel("WEIGHT")
	require.NoError(t, err)
	assert.Equal(t, "WEIGHT", fm.ID)

	_, err = model.FieldModel("HEIGHT")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}
