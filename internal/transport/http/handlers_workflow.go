package httptransport

import (
	"net/http"
	"time"

	"edc/internal/record"
	"edc/internal/workflow"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/httputil"
	"edc/pkg/requestcontext"
)

// CreateStatusRequest is the body of POST /v1/fields/{fieldPK}/statuses.
type CreateStatusRequest struct {
	WorkflowID string `json:"workflow_id"`
	StateID    string `json:"state_id,omitempty"`
	ProfileID  string `json:"profile_id,omitempty"`
	Rationale  string `json:"rationale"`
}

// TransitionStatusRequest is the body of PUT /v1/statuses/{statusPK}/state.
type TransitionStatusRequest struct {
	StateID   string `json:"state_id"`
	Rationale string `json:"rationale"`
}

// StatusResponse is the JSON rendering of a workflow status.
type StatusResponse struct {
	PK             int64     `json:"pk"`
	WorkflowID     string    `json:"workflow_id"`
	StateID        string    `json:"state_id"`
	ValidatorID    string    `json:"validator_id,omitempty"`
	ProfileID      string    `json:"profile_id,omitempty"`
	Deleted        bool      `json:"deleted"`
	CreationTime   time.Time `json:"creation_time"`
	LastUpdateTime time.Time `json:"last_update_time"`
}

func fromStatus(s *record.WorkflowStatus) StatusResponse {
	return StatusResponse{
		PK:             s.PK,
		WorkflowID:     s.WorkflowID,
		StateID:        s.StateID,
		ValidatorID:    s.ValidatorID,
		ProfileID:      s.ProfileID,
		Deleted:        s.Deleted,
		CreationTime:   s.CreationTime,
		LastUpdateTime: s.LastUpdateTime,
	}
}

// HandleCreateFieldStatus handles POST /v1/fields/{fieldPK}/statuses.
func (h *Handler) HandleCreateFieldStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "fieldPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[CreateStatusRequest](w, r, h.logger)
	if !ok {
		return
	}

	wf, err := h.study.Workflow(req.WorkflowID)
	if err != nil {
		httputil.WriteError(w, pkgerrors.Wrapf(err, pkgerrors.CodeBadRequest, "unknown workflow %s", req.WorkflowID))
		return
	}
	family, err := h.fieldFamily(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.workflows.Create(ctx, family, wf, workflow.CreateOptions{
		StateID:   req.StateID,
		ProfileID: req.ProfileID,
		Rationale: req.Rationale,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if status == nil {
		// aggregator workflows fire their rules without persisting a status
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.logger.InfoContext(ctx, "workflow status created",
		"request_id", requestcontext.RequestID(ctx),
		"field_pk", pk,
		"workflow_id", status.WorkflowID,
		"state_id", status.StateID,
	)
	httputil.WriteJSON(w, http.StatusCreated, fromStatus(status))
}

// HandleListFieldStatuses handles GET /v1/fields/{fieldPK}/statuses.
func (h *Handler) HandleListFieldStatuses(w http.ResponseWriter, r *http.Request) {
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
	statuses, err := h.workflows.StatusesFor(ctx, fieldRow)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]StatusResponse, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, fromStatus(status))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// HandleAggregateFieldState handles GET /v1/fields/{fieldPK}/statuses/aggregate.
func (h *Handler) HandleAggregateFieldState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "fieldPK")
	if !ok {
		return
	}
	wf, err := h.study.Workflow(r.URL.Query().Get("workflow"))
	if err != nil {
		httputil.WriteError(w, pkgerrors.Wrap(err, pkgerrors.CodeBadRequest, "workflow parameter must name an aggregating workflow"))
		return
	}
	fieldRow, err := h.stores.Fields.ByPK(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	state, err := h.workflows.AggregatedState(ctx, fieldRow, wf)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"state_id": state.ID})
}

// HandleTransitionStatus handles PUT /v1/statuses/{statusPK}/state.
func (h *Handler) HandleTransitionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "statusPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[TransitionStatusRequest](w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.stores.Statuses.ByPK(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	family, err := h.statusFamily(ctx, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.workflows.UpdateState(ctx, family, status, req.StateID, req.Rationale); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStatus(status))
}

// HandleDeleteStatus handles DELETE /v1/statuses/{statusPK}.
func (h *Handler) HandleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pk, ok := pathPK(w, r, "statusPK")
	if !ok {
		return
	}
	req, ok := httputil.Decode[RationaleRequest](w, r, h.logger)
	if !ok {
		return
	}

	status, err := h.stores.Statuses.ByPK(ctx, pk)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	family, err := h.statusFamily(ctx, status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.workflows.Delete(ctx, family, status, req.Rationale); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStatus(status))
}
