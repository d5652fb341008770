package httpserver

import (
	"net/http"
	"time"

	"loanbook/internal/platform/config"
)

// New builds the HTTP server. The write timeout sits above the request timeout
// so the in-request deadline middleware fires first and the client still gets
// a response body.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
