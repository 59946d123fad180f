package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edc/internal/audit"
	"edc/internal/dataset"
	"edc/internal/field"
	"edc/internal/record"
	"edc/internal/rules"
	"edc/internal/storage"
	"edc/internal/study"
	"edc/internal/validation"
	"edc/internal/workflow"
)

type lazyStatuses struct {
	svc *workflow.Service
}

func (l *lazyStatuses) StatusesFor(ctx context.Context, w record.Workflowable) ([]*record.WorkflowStatus, error) {
	return l.svc.StatusesFor(ctx, w)
}

type testServer struct {
	router http.Handler
	fields *storage.InMemoryFieldStore

	scope   *record.Scope
	event   *record.Event
	dataset *record.Dataset
	weight  *record.Field
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	st := &study.Study{
		DefaultLanguage: "en",
		DatasetModels: []*study.DatasetModel{{
			ID: "VITALS",
			FieldModels: []*study.FieldModel{
				{ID: "WEIGHT", DatasetModelID: "VITALS", DataType: study.OperandNumber, Workflows: []string{"REVIEW"}},
			},
		}},
		Workflows: []*study.Workflow{{
			ID:             "REVIEW",
			States:         []study.WorkflowState{{ID: "TODO"}, {ID: "DONE"}},
			InitialStateID: "TODO",
		}},
	}

	ts := &testServer{fields: storage.NewInMemoryFieldStore()}

	scopes := storage.NewInMemoryScopeStore()
	events := storage.NewInMemoryEventStore()
	datasets := storage.NewInMemoryDatasetStore()
	forms := storage.NewInMemoryFormStore()
	statuses := workflow.NewInMemoryStore()
	auditStore := audit.NewInMemoryStore()

	ts.scope = &record.Scope{ID: "scope-1", Code: "DE-01-03", Model: &study.ScopeModel{ID: "PATIENT"}}
	require.NoError(t, scopes.Save(ctx, ts.scope))
	ts.event = &record.Event{ID: "event-1", ScopeFK: ts.scope.PK, Model: &study.EventModel{ID: "BASELINE"}}
	require.NoError(t, events.Save(ctx, ts.event))

	lazy := &lazyStatuses{}
	binder := rules.NewBinder(events, datasets, ts.fields, lazy)
	evaluator := rules.NewEvaluator(binder)
	executor := rules.NewExecutor(st, evaluator)
	workflows := workflow.NewService(st, statuses, auditStore, executor)
	lazy.svc = workflows
	validator := validation.NewService(st, evaluator, workflows)
	fieldSvc := field.NewService(st, ts.fields, auditStore, executor, validator, workflows)
	datasetSvc := dataset.NewService(st, datasets, ts.fields, auditStore, executor, fieldSvc)

	model, err := st.DatasetModel("VITALS")
	require.NoError(t, err)
	ts.dataset, err = datasetSvc.Create(ctx, ts.scope, ts.event, model, "initial")
	require.NoError(t, err)
	rows, err := ts.fields.ByDataset(ctx, ts.dataset.PK)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	ts.weight = rows[0]

	handler := NewHandler(st, Stores{
		Scopes:   scopes,
		Events:   events,
		Datasets: datasets,
		Fields:   ts.fields,
		Forms:    forms,
		Statuses: statuses,
	}, fieldSvc, datasetSvc, workflows, auditStore, slog.Default())
	ts.router = NewRouter(handler)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Actor", "investigator")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateFieldValue(t *testing.T) {
	ts := newTestServer(t)
	path := fmt.Sprintf("/v1/fields/%d/value", ts.weight.PK)

	w := ts.do(t, http.MethodPut, path, UpdateFieldValueRequest{Value: "82.5", Rationale: "data entry"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[FieldResponse](t, w)
	assert.Equal(t, "82.5", resp.Value)

	// malformed numbers map to 400
	w = ts.do(t, http.MethodPut, path, UpdateFieldValueRequest{Value: "not a number"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errResp := decodeBody[ErrorResponseBody](t, w)
	assert.Equal(t, "badly_formatted_value", errResp.Error)
}

// ErrorResponseBody mirrors the error envelope for decoding in tests.
type ErrorResponseBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

func TestUpdateFieldValueOnLockedScope(t *testing.T) {
	ts := newTestServer(t)
	ts.scope.Locked = true

	w := ts.do(t, http.MethodPut, fmt.Sprintf("/v1/fields/%d/value", ts.weight.PK),
		UpdateFieldValueRequest{Value: "82.5"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestFieldValueUnknownPK(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(t, http.MethodGet, "/v1/fields/999/value", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorkflowStatusLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, fmt.Sprintf("/v1/fields/%d/statuses", ts.weight.PK),
		CreateStatusRequest{WorkflowID: "REVIEW", Rationale: "review requested"})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[StatusResponse](t, w)
	assert.Equal(t, "TODO", created.StateID)

	w = ts.do(t, http.MethodPut, fmt.Sprintf("/v1/statuses/%d/state", created.PK),
		TransitionStatusRequest{StateID: "DONE", Rationale: "reviewed"})
	require.Equal(t, http.StatusOK, w.Code)
	moved := decodeBody[StatusResponse](t, w)
	assert.Equal(t, "DONE", moved.StateID)

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/fields/%d/statuses", ts.weight.PK), nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decodeBody[[]StatusResponse](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, "DONE", listed[0].StateID)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/v1/statuses/%d", created.PK),
		RationaleRequest{Rationale: "withdrawn"})
	require.Equal(t, http.StatusOK, w.Code)
	deleted := decodeBody[StatusResponse](t, w)
	assert.True(t, deleted.Deleted)
}

func TestDatasetLifecycle(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/v1/datasets", CreateDatasetRequest{
		ScopePK: ts.scope.PK, EventPK: &ts.event.PK, ModelID: "VITALS", Rationale: "second visit",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	created := decodeBody[DatasetResponse](t, w)
	assert.NotZero(t, created.PK)

	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/v1/datasets/%d", created.PK),
		RationaleRequest{Rationale: "entered in error"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeBody[DatasetResponse](t, w).Deleted)

	w = ts.do(t, http.MethodPost, fmt.Sprintf("/v1/datasets/%d/restore", created.PK),
		RationaleRequest{Rationale: "restored"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decodeBody[DatasetResponse](t, w).Deleted)

	w = ts.do(t, http.MethodPost, "/v1/datasets", CreateDatasetRequest{
		ScopePK: ts.scope.PK, ModelID: "UNKNOWN",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditTrailEndpoint(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPut, fmt.Sprintf("/v1/fields/%d/value", ts.weight.PK),
		UpdateFieldValueRequest{Value: "82.5", Rationale: "data entry"})
	require.Equal(t, http.StatusOK, w.Code)

	// one trail for the field creation, one for the update
	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/audit/fields/%d", ts.weight.PK), nil)
	require.Equal(t, http.StatusOK, w.Code)
	trails := decodeBody[[]TrailResponse](t, w)
	require.Len(t, trails, 2)
	assert.Equal(t, "investigator", trails[1].Actor)
	assert.Equal(t, "82.5", trails[1].Values["value"])

	w = ts.do(t, http.MethodGet, fmt.Sprintf("/v1/audit/unknown/%d", ts.weight.PK), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
