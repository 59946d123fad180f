package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"edc/pkg/platform/httputil"
	"edc/pkg/platform/middleware/metadata"
	"edc/pkg/platform/middleware/requestmeta"
	"edc/pkg/platform/middleware/requesttime"
)

// NewRouter mounts all endpoints with the shared middleware chain. Every
// request carries a correlation id, the acting user and a pinned request time
// before it reaches a handler.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestmeta.RequestID)
	r.Use(requestmeta.Actor)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)

	r.Get("/health", handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/fields/{fieldPK}", func(r chi.Router) {
			r.Put("/value", h.HandleUpdateFieldValue)
			r.Get("/value", h.HandleFieldValue)
			r.Post("/reset", h.HandleResetField)
			r.Get("/statuses", h.HandleListFieldStatuses)
			r.Post("/statuses", h.HandleCreateFieldStatus)
			r.Get("/statuses/aggregate", h.HandleAggregateFieldState)
		})

		r.Post("/datasets", h.HandleCreateDataset)
		r.Route("/datasets/{datasetPK}", func(r chi.Router) {
			r.Delete("/", h.HandleDeleteDataset)
			r.Post("/restore", h.HandleRestoreDataset)
			r.Post("/reset", h.HandleResetDataset)
			r.Post("/values/recalculate", h.HandleRecalculateDataset)
		})

		r.Put("/statuses/{statusPK}/state", h.HandleTransitionStatus)
		r.Delete("/statuses/{statusPK}", h.HandleDeleteStatus)

		r.Get("/audit/{entity}/{entityPK}", h.HandleListAudit)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
