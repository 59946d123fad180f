package plugin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edc/internal/record"
	"edc/internal/study"
	pkgerrors "edc/pkg/errors"
)

func TestRunScript(t *testing.T) {
	registry := NewRegistry()
	registry.RegisterScript("CHECKSUM", func(_ context.Context, field *record.Field) (bool, error) {
		return field.Value == "ok", nil
	})
	validator := &study.Validator{ID: "CHECKSUM", Script: true}

	valid, err := registry.Run(context.Background(), validator, &record.Field{Value: "ok"})
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = registry.Run(context.Background(), validator, &record.Field{Value: "broken"})
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestRunUnregisteredScriptIsConfigurationError(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Run(context.Background(), &study.Validator{ID: "MISSING", Script: true}, &record.Field{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestComputeWithoutProvider(t *testing.T) {
	registry := NewRegistry()
	family := record.DataFamily{Field: &record.Field{Model: &study.FieldModel{ID: "BMI"}}}

	_, ok, err := registry.Compute(context.Background(), family)
	require.NoError(t, err)
	assert.False(t, ok)

	registry.RegisterValue("BMI", func(context.Context, record.DataFamily) (string, error) {
		return "25.3", nil
	})
	value, ok, err := registry.Compute(context.Background(), family)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "25.3", value)
}
