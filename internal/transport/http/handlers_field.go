package httptransport

import (
	"net/http"
	"time"

	"edc/internal/record"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/httputil"
	"edc/pkg/platform/middleware/metadata"
	"edc/pkg/requestcontext"
)

// UpdateFieldValueRequest is the body of PUT /v1/fields/{fieldPK}/value.
type UpdateFieldValueRequest struct {
	Value     string `json:"value"`
	Rationale string `json:"rationale"`
}

// RationaleRequest is the body of mutations that only carry a reason.
type RationaleRequest struct {
	Rationale string `json:"rationale"`
}

// FieldResponse is the JSON rendering of a field row.
type FieldResponse struct {
	PK             int64     `json:"pk"`
	ID             string    `json:"id"`
	ModelID        string    `json:"model_id"`
	Value          string    `json:"value"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

func fromField(f *record.Field) FieldResponse {
	return FieldResponse{
		PK:             f.PK,
		ID:             f.ID,
		ModelID:        f.Model.ID,
		Value:          f.Value,
		LastUpdateTime: f.LastUpdateTime,
	}
}

// HandleUpdateFieldValue handles PUT /v1/fields/{fieldPK}/value.
func (h *Handler) HandleUpdateFieldValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "fieldPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[UpdateFieldValueRequest](w, r, h.logger)
	if !ok {
		return
	}

	family, err := h.fieldFamily(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.fields.UpdateValue(ctx, family, req.Value, req.Rationale); err != nil {
		h.logger.WarnContext(ctx, "field value rejected",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", metadata.ClientIP(ctx),
			"field_pk", pk,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromField(family.Field))
}

// HandleFieldValue handles GET /v1/fields/{fieldPK}/value. With an at
// parameter the value is reconstructed from the audit trail.
func (h *Handler) HandleFieldValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "fieldPK")
	if !ok {
		return
	}
	fieldRow, err := h.stores.Fields.ByPK(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if raw := r.URL.Query().Get("at"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeBadRequest, "at must be RFC 3339"))
			return
		}
		value, err := h.fields.ValueAtDate(ctx, fieldRow, at)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"value": value})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromField(fieldRow))
}

// HandleResetField handles POST /v1/fields/{fieldPK}/reset.
func (h *Handler) HandleResetField(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "fieldPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[RationaleRequest](w, r, h.logger)
	if !ok {
		return
	}

	family, err := h.fieldFamily(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.fields.Reset(ctx, family, req.Rationale); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromField(family.Field))
}
