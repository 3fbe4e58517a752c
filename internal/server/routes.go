// Package server wires the gateway HTTP handlers into a chi router.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes returns the gateway router: health check, WebSocket endpoint and
// test page. Only GET is routed.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", g.HealthHandler)
	r.Get("/ws", g.WebSocketHandler)
	r.Get("/test", g.TestPageHandler)
	return r
}
