// Package httptransport is the thin HTTP layer over the clinical services.
// Handlers decode requests, load the ownership chain of the addressed row and
// delegate to the domain services; business rules never live here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"edc/internal/audit"
	"edc/internal/dataset"
	"edc/internal/field"
	"edc/internal/record"
	"edc/internal/storage"
	"edc/internal/study"
	"edc/internal/workflow"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/httputil"
)

// Stores bundles the row stores the transport needs to rebuild a DataFamily
// from a primary key.
type Stores struct {
	Scopes   storage.ScopeStore
	Events   storage.EventStore
	Datasets storage.DatasetStore
	Fields   storage.FieldStore
	Forms    storage.FormStore
	Statuses workflow.Store
}

// Handler wires the HTTP endpoints to the domain services.
type Handler struct {
	study     *study.Study
	stores    Stores
	fields    *field.Service
	datasets  *dataset.Service
	workflows *workflow.Service
	audits    audit.Store
	logger    *slog.Logger
}

// NewHandler builds the transport handler.
func NewHandler(
	st *study.Study,
	stores Stores,
	fields *field.Service,
	datasets *dataset.Service,
	workflows *workflow.Service,
	audits audit.Store,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		study:     st,
		stores:    stores,
		fields:    fields,
		datasets:  datasets,
		workflows: workflows,
		audits:    audits,
		logger:    logger,
	}
}

// pathPK parses the named URL parameter as a primary key. On failure it
// writes a bad_request response and returns ok=false.
func pathPK(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	pk, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httputil.WriteError(w, pkgerrors.Newf(pkgerrors.CodeBadRequest, "%s must be an integer", name))
		return 0, false
	}
	return pk, true
}

// fieldFamily loads a field and its ownership chain.
func (h *Handler) fieldFamily(ctx context.Context, pk int64) (record.DataFamily, error) {
	fieldRow, err := h.stores.Fields.ByPK(ctx, pk)
	if err != nil {
		return record.DataFamily{}, err
	}
	datasetRow, err := h.stores.Datasets.ByPK(ctx, fieldRow.DatasetFK)
	if err != nil {
		return record.DataFamily{}, err
	}
	scope, event, err := h.ancestors(ctx, fieldRow.ScopeFK, fieldRow.EventFK)
	if err != nil {
		return record.DataFamily{}, err
	}
	return record.NewFieldFamily(scope, event, datasetRow, fieldRow), nil
}

// datasetFamily loads a dataset and its ownership chain.
func (h *Handler) datasetFamily(ctx context.Context, pk int64) (record.DataFamily, error) {
	datasetRow, err := h.stores.Datasets.ByPK(ctx, pk)
	if err != nil {
		return record.DataFamily{}, err
	}
	scope, event, err := h.ancestors(ctx, datasetRow.ScopeFK, datasetRow.EventFK)
	if err != nil {
		return record.DataFamily{}, err
	}
	return record.NewDatasetFamily(scope, event, datasetRow), nil
}

// statusFamily loads the family of the row a workflow status is attached to.
func (h *Handler) statusFamily(ctx context.Context, status *record.WorkflowStatus) (record.DataFamily, error) {
	switch status.WorkflowableType() {
	case record.WorkflowableField:
		return h.fieldFamily(ctx, *status.FieldFK)
	case record.WorkflowableForm:
		form, err := h.stores.Forms.ByPK(ctx, *status.FormFK)
		if err != nil {
			return record.DataFamily{}, err
		}
		scope, event, err := h.ancestors(ctx, form.ScopeFK, form.EventFK)
		if err != nil {
			return record.DataFamily{}, err
		}
		return record.NewFormFamily(scope, event, form), nil
	case record.WorkflowableEvent:
		scope, event, err := h.ancestors(ctx, status.ScopeFK, status.EventFK)
		if err != nil {
			return record.DataFamily{}, err
		}
		return record.NewEventFamily(scope, event), nil
	default:
		scope, err := h.stores.Scopes.ByPK(ctx, status.ScopeFK)
		if err != nil {
			return record.DataFamily{}, err
		}
		return record.NewScopeFamily(scope), nil
	}
}

func (h *Handler) ancestors(ctx context.Context, scopeFK int64, eventFK *int64) (*record.Scope, *record.Event, error) {
	scope, err := h.stores.Scopes.ByPK(ctx, scopeFK)
	if err != nil {
		return nil, nil, err
	}
	var event *record.Event
	if eventFK != nil {
		if event, err = h.stores.Events.ByPK(ctx, *eventFK); err != nil {
			return nil, nil, err
		}
	}
	return scope, event, nil
}
