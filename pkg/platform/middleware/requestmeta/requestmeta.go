// Package requestmeta provides middleware that seeds the request context with
// the acting user and a correlation id. Services read both through
// pkg/requestcontext without touching net/http.
package requestmeta

import (
	"net/http"

	"github.com/google/uuid"

	"edc/pkg/requestcontext"
)

// Header names recognized by the middleware.
const (
	HeaderActor     = "X-Actor"
	HeaderRequestID = "X-Request-Id"
)

// Actor copies the X-Actor header into the context. An absent header leaves
// the actor empty; audit trails record such changes as system-initiated.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithActor(r.Context(), r.Header.Get(HeaderActor))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID propagates the inbound correlation id, minting one when the
// client did not send any. The id is echoed back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
