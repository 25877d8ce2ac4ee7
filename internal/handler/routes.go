package handler

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrblmoore/hannibal-ai/internal/auth"
	"github.com/mrblmoore/hannibal-ai/internal/middleware"
)

// Routes builds the debug server's handler.
func Routes(debug *DebugHandler, feed *FeedHandler, jwtMgr *auth.JWTManager) http.Handler {
	mux := http.NewServeMux()
	authMw := auth.Middleware(jwtMgr)

	mux.HandleFunc("GET /healthz", debug.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Protected API routes
	api := http.NewServeMux()
	api.HandleFunc("GET /loop", debug.LoopStatus)
	api.HandleFunc("GET /commanders", debug.ListCommanders)
	api.HandleFunc("GET /commanders/{id}", debug.GetCommander)
	api.HandleFunc("DELETE /commanders/{id}", debug.DeleteCommander)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", authMw(api)))

	// WebSocket (auth via query param, not middleware)
	mux.HandleFunc("GET /api/v1/ws", feed.ServeWS)

	return middleware.Chain(mux, middleware.Recover, middleware.Logger, middleware.CORS("*"))
}
