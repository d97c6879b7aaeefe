// Package gateway orchestrates the lisa-gateway server components.
//
// # Overview
//
// The gateway package wires every other package together. It owns:
//
//   - the SQLite store (calendar backend and tool-call audit log)
//   - the capability registry and the dispatcher in front of it
//   - the agent runtime and the session manager that starts one per session
//   - the WebSocket hub that carries session frames
//   - the MCP server, the HTTP server, and an optional gRPC health server
//
// # HTTP API
//
// Public:
//
//   - GET /health - Liveness check
//   - GET /health/ready - 200 once the capability registry is loaded
//   - POST /api/login - {username, password} -> {access_token, token_type}
//   - GET / - Browser client
//
// Bearer token required (Authorization header, or ?token= on WebSocket upgrades):
//
//   - POST /api/verify-token - {valid, username}
//   - POST /api/offer - open a session or renegotiate a live one
//   - GET /ws/{session_id} - attach the session WebSocket
//   - GET /api/tools - capability catalog
//   - POST /api/tools/reload - rebuild the registry (tools.hot_reload only)
//   - GET /api/sessions - live sessions, oldest first
//   - GET /api/calls - tool-call audit log, newest first
//   - POST|DELETE /mcp - Model Context Protocol endpoint
//
// # Sessions
//
// POST /api/offer with an unknown or empty session_id (pc_id is accepted as
// an alias) creates a session and starts its runtime. The same id on a live
// session renegotiates in place and never starts a second runtime:
//
//	{"session_id": "", "sdp": "...", "type": "offer"}
//	-> {"session_id": "4f0c...", "pc_id": "4f0c...", "sdp": "...", "type": "answer"}
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, version, logger)
//	err = gw.Run(ctx) // blocks; shuts down when ctx is cancelled
//
// Shutdown stops the listeners, closes every session through
// session.Manager.ShutdownAll, and closes the store last.
package gateway
