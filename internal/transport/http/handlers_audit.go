package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"edc/internal/audit"
	pkgerrors "edc/pkg/errors"
	"edc/pkg/platform/httputil"
)

// TrailResponse is the JSON rendering of one audit entry.
type TrailResponse struct {
	Actor     string            `json:"actor"`
	Rationale string            `json:"rationale,omitempty"`
	Time      time.Time         `json:"time"`
	Values    map[string]string `json:"values"`
}

var auditEntities = map[string]string{
	"scopes":   audit.EntityScope,
	"events":   audit.EntityEvent,
	"datasets": audit.EntityDataset,
	"fields":   audit.EntityField,
	"forms":    audit.EntityForm,
	"statuses": audit.EntityWorkflowStatus,
}

// HandleListAudit handles GET /v1/audit/{entity}/{entityPK}. Optional from
// and to parameters restrict the window, both RFC 3339.
func (h *Handler) HandleListAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity, ok := auditEntities[chi.URLParam(r, "entity")]
	if !ok {
		httputil.WriteError(w, pkgerrors.Newf(pkgerrors.CodeBadRequest, "unknown audit entity %s", chi.URLParam(r, "entity")))
		return
	}
	pk, ok := pathPK(w, r, "entityPK")
	if !ok {
		return
	}
	from, ok := queryTime(w, r, "from")
	if !ok {
		return
	}
	to, ok := queryTime(w, r, "to")
	if !ok {
		return
	}

	trails, err := h.audits.List(ctx, entity, pk, from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]TrailResponse, 0, len(trails))
	for _, trail := range trails {
		out = append(out, TrailResponse{
			Actor:     trail.Actor,
			Rationale: trail.Rationale,
			Time:      trail.Time,
			Values:    trail.Values,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func queryTime(w http.ResponseWriter, r *http.Request, name string) (*time.Time, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		httputil.WriteError(w, pkgerrors.Newf(pkgerrors.CodeBadRequest, "%s must be RFC 3339", name))
		return nil, false
	}
	return &t, true
}
