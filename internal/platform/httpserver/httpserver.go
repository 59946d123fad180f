// Package httpserver builds the http.Server instances used for the API and
// the metrics listener.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the project defaults.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
