package study

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "edc/pkg/errors"
)

func writeSnapshot(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "study.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSnapshot(t *testing.T) {
	path := writeSnapshot(t, `{
		"ID": "TRIAL-01",
		"Workflows": [{
			"ID": "VALIDATION",
			"States": [{"ID": "INVALID"}, {"ID": "VALID"}],
			"InitialStateID": "INVALID"
		}],
		"Validators": [{
			"ID": "RANGE",
			"WorkflowID": "VALIDATION",
			"InvalidStateID": "INVALID",
			"ValidStateID": "VALID"
		}],
		"DatasetModels": [{
			"ID": "VITALS",
			"FieldModels": [{
				"ID": "WEIGHT",
				"DatasetModelID": "VITALS",
				"DataType": "NUMBER",
				"ValidatorIDs": ["RANGE", " RANGE ", ""]
			}]
		}]
	}`)

	st, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "TRIAL-01", st.ID)
	assert.Equal(t, "en", st.DefaultLanguage)

	model, err := st.FieldModel("VITALS", "WEIGHT")
	require.NoError(t, err)
	assert.Equal(t, OperandNumber, model.DataType)
	// duplicate and blank list entries are dropped
	assert.Equal(t, []string{"RANGE"}, model.ValidatorIDs)
}

func TestLoadRejectsDanglingValidator(t *testing.T) {
	path := writeSnapshot(t, `{
		"DatasetModels": [{
			"ID": "VITALS",
			"FieldModels": [{"ID": "WEIGHT", "ValidatorIDs": ["MISSING"]}]
		}]
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestLoadRejectsValidatorWithUnknownState(t *testing.T) {
	path := writeSnapshot(t, `{
		"Workflows": [{"ID": "VALIDATION", "States": [{"ID": "VALID"}], "InitialStateID": "VALID"}],
		"Validators": [{
			"ID": "RANGE",
			"WorkflowID": "VALIDATION",
			"InvalidStateID": "NOT_A_STATE",
			"ValidStateID": "VALID"
		}]
	}`)

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := writeSnapshot(t, `{`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConfiguration))
}
