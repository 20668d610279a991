package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/instillct/authbridge/internal/metrics"
)

// NewRouter wires the bridge handlers and operational endpoints.
func NewRouter(b *Bridge) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recovery)
	r.Use(Logger)

	r.Get("/oauth", b.OAuthHandler)
	r.Get("/consent", b.ConsentHandler)
	r.Post("/consent", b.ConsentSubmitHandler)
	r.Get("/callback", b.CallbackHandler)
	r.Get("/logout", b.LogoutHandler)
	r.Get("/error", b.ErrorPageHandler)

	r.Get("/healthz", handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}
