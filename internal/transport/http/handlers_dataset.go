package httptransport

import (
	"net/http"

	"edc/internal/record"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/httputil"
	"edc/pkg/requestcontext"
)

// CreateDatasetRequest is the body of POST /v1/datasets.
type CreateDatasetRequest struct {
	ScopePK   int64  `json:"scope_pk"`
	EventPK   *int64 `json:"event_pk,omitempty"`
	ModelID   string `json:"model_id"`
	Rationale string `json:"rationale"`
}

// DatasetResponse is the JSON rendering of a dataset row.
type DatasetResponse struct {
	PK      int64  `json:"pk"`
	ID      string `json:"id"`
	ModelID string `json:"model_id"`
	Deleted bool   `json:"deleted"`
}

func fromDataset(d *record.Dataset) DatasetResponse {
	return DatasetResponse{PK: d.PK, ID: d.ID, ModelID: d.Model.ID, Deleted: d.Deleted}
}

// HandleCreateDataset handles POST /v1/datasets.
func (h *Handler) HandleCreateDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.Decode[CreateDatasetRequest](w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.study.DatasetModel(req.ModelID)
	if err != nil {
		httputil.WriteError(w, pkgerrors.Wrapf(err, pkgerrors.CodeBadRequest, "unknown dataset model %s", req.ModelID))
		return
	}
	scope, event, err := h.ancestors(ctx, req.ScopePK, req.EventPK)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	datasetRow, err := h.datasets.Create(ctx, scope, event, model, req.Rationale)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "dataset created",
		"request_id", requestcontext.RequestID(ctx),
		"dataset_pk", datasetRow.PK,
		"model_id", model.ID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromDataset(datasetRow))
}

// datasetMutation factors the shared load-and-delegate shape of the dataset
// lifecycle endpoints.
func (h *Handler) datasetMutation(w http.ResponseWriter, r *http.Request,
	apply func(family record.DataFamily, rationale string) error,
) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "datasetPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[RationaleRequest](w, r, h.logger)
	if !ok {
		return
	}

	family, err := h.datasetFamily(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := apply(family, req.Rationale); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromDataset(family.Dataset))
}

// HandleDeleteDataset handles DELETE /v1/datasets/{datasetPK}.
func (h *Handler) HandleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	h.datasetMutation(w, r, func(family record.DataFamily, rationale string) error {
		return h.datasets.Delete(r.Context(), family, rationale)
	})
}

// HandleRestoreDataset handles POST /v1/datasets/{datasetPK}/restore.
func (h *Handler) HandleRestoreDataset(w http.ResponseWriter, r *http.Request) {
	h.datasetMutation(w, r, func(family record.DataFamily, rationale string) error {
		return h.datasets.Restore(r.Context(), family, rationale)
	})
}

// HandleResetDataset handles POST /v1/datasets/{datasetPK}/reset.
func (h *Handler) HandleResetDataset(w http.ResponseWriter, r *http.Request) {
	h.datasetMutation(w, r, func(family record.DataFamily, rationale string) error {
		return h.datasets.Reset(r.Context(), family, rationale)
	})
}

// HandleRecalculateDataset handles POST /v1/datasets/{datasetPK}/values/recalculate.
func (h *Handler) HandleRecalculateDataset(w http.ResponseWriter, r *http.Request) {
	h.datasetMutation(w, r, func(family record.DataFamily, rationale string) error {
		return h.datasets.RecalculatePluginValues(r.Context(), family, rationale)
	})
}
