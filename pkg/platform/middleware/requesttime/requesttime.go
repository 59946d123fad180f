// Package requesttime pins one "now" per HTTP request. Every service call,
// audit trail and timestamp within a request observes the same instant.
package requesttime

import (
	"net/http"
	"time"

	"edc/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and stores
// it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
