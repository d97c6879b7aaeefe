// ABOUTME: HTTP route table for lisa-gateway
// ABOUTME: Splits public, bearer-authenticated, and MCP routes and wraps everything in CORS

package gateway

import (
	"net/http"

	"github.com/rs/cors"

	"github.com/shivsinghin/Voice-Assistant/internal/assets"
	"github.com/shivsinghin/Voice-Assistant/internal/auth"
)

// Handler returns the gateway's complete HTTP handler.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", g.handleHealth)
	mux.HandleFunc("GET /health/ready", g.handleReady)
	mux.HandleFunc("POST /api/login", g.handleLogin)
	mux.Handle("GET /{$}", assets.IndexHandler())
	mux.Handle("GET /static/", http.StripPrefix("/static/", assets.FileServer()))

	// Bearer token required
	authMiddleware := auth.HTTPAuthMiddleware(g.auth)
	protect := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMiddleware(h))
	}
	protect("POST /api/verify-token", g.handleVerifyToken)
	protect("POST /api/offer", g.handleOffer)
	protect("GET /ws/", g.handleAttach)
	protect("GET /api/tools", g.handleListTools)
	protect("GET /api/sessions", g.handleListSessions)
	protect("GET /api/calls", g.handleListCalls)
	if g.config.Tools.HotReload {
		protect("POST /api/tools/reload", g.handleReloadTools)
	}

	// MCP authenticates each request itself so failures are JSON-RPC shaped.
	g.mcpServer.RegisterRoutes(mux)

	return g.corsMiddleware().Handler(mux)
}

// corsMiddleware allows any origin unless cors.allowed_origins is set.
func (g *Gateway) corsMiddleware() *cors.Cors {
	origins := g.config.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Mcp-Session-Id"},
		AllowCredentials: true,
	})
}
