// ABOUTME: HTTP API handlers for login, session negotiation, and capability introspection
// ABOUTME: Provides /api/offer (open or reuse a session), /ws attach, /api/tools, /api/sessions, /api/calls

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shivsinghin/Voice-Assistant/internal/auth"
	"github.com/shivsinghin/Voice-Assistant/internal/capability"
	"github.com/shivsinghin/Voice-Assistant/internal/session"
	"github.com/shivsinghin/Voice-Assistant/internal/store"
	"github.com/shivsinghin/Voice-Assistant/internal/transport"
)

const maxRequestBody = 1 << 20

// LoginRequest is the JSON request body for POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the JSON response for POST /api/login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// VerifyTokenResponse is the JSON response for POST /api/verify-token.
type VerifyTokenResponse struct {
	Valid    bool   `json:"valid"`
	Username string `json:"username"`
}

// OfferRequest is the JSON request body for POST /api/offer.
// pc_id is accepted as an alias for session_id.
type OfferRequest struct {
	SessionID string `json:"session_id,omitempty"`
	PCID      string `json:"pc_id,omitempty"`
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
}

// OfferResponse is the JSON response for POST /api/offer.
type OfferResponse struct {
	SessionID string `json:"session_id"`
	PCID      string `json:"pc_id"`
	SDP       string `json:"sdp"`
	Type      string `json:"type"`
}

// SkippedSource describes a capability source left out of the current snapshot.
type SkippedSource struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// ToolsResponse is the JSON response for GET /api/tools and POST /api/tools/reload.
type ToolsResponse struct {
	Generation uint64                    `json:"generation"`
	LoadedAt   string                    `json:"loaded_at"`
	Tools      []capability.CatalogEntry `json:"tools"`
	Skipped    []SkippedSource           `json:"skipped,omitempty"`
}

// SessionsResponse is the JSON response for GET /api/sessions.
type SessionsResponse struct {
	Count    int            `json:"count"`
	Sessions []session.Info `json:"sessions"`
}

// ToolCallResponse is one audit row in GET /api/calls.
type ToolCallResponse struct {
	ID         string `json:"id"`
	CallID     string `json:"call_id"`
	SessionID  string `json:"session_id"`
	Capability string `json:"capability"`
	Status     string `json:"status"`
	ErrorKind  string `json:"error_kind,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

// CallsResponse is the JSON response for GET /api/calls.
type CallsResponse struct {
	Calls []ToolCallResponse `json:"calls"`
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeBody reads a bounded JSON request body into v.
func decodeBody(r io.Reader, v any) error {
	if err := json.NewDecoder(io.LimitReader(r, maxRequestBody)).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once the capability registry has a snapshot.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if !g.registry.Loaded() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("capabilities not loaded"))
		return
	}
	snap, err := g.registry.Snapshot(r.Context())
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("capabilities not loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d capabilities, %d sessions)", snap.Len(), g.sessions.Count())
}

// handleLogin handles POST /api/login.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := g.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		g.logger.Warn("failed login attempt", "username", req.Username, "remote", r.RemoteAddr)
		w.Header().Set("WWW-Authenticate", "Bearer")
		g.sendJSONError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	if err != nil {
		g.logger.Error("issuing token", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	g.logger.Info("successful login", "username", req.Username)
	writeJSON(w, http.StatusOK, TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// handleVerifyToken handles POST /api/verify-token. The middleware has
// already rejected bad tokens.
func (g *Gateway) handleVerifyToken(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "invalid authentication credentials")
		return
	}
	writeJSON(w, http.StatusOK, VerifyTokenResponse{Valid: true, Username: authCtx.Username})
}

// handleOffer handles POST /api/offer. A known live session id renegotiates
// that session; anything else starts a new one.
func (g *Gateway) handleOffer(w http.ResponseWriter, r *http.Request) {
	var req OfferRequest
	if err := decodeBody(r.Body, &req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	requested := req.SessionID
	if requested == "" {
		requested = req.PCID
	}

	answer, id, err := g.sessions.OpenOrReuse(r.Context(), requested, transport.Offer{SDP: req.SDP, Type: req.Type})
	switch {
	case errors.Is(err, transport.ErrInvalidOffer):
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, session.ErrTooManySessions), errors.Is(err, session.ErrShuttingDown):
		g.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		g.logger.Error("negotiating session", "session_id", requested, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to negotiate session")
		return
	}

	writeJSON(w, http.StatusOK, OfferResponse{
		SessionID: id,
		PCID:      id,
		SDP:       answer.SDP,
		Type:      answer.Type,
	})
}

// handleAttach handles GET /ws/{session_id}, binding the client socket to a
// negotiated session.
func (g *Gateway) handleAttach(w http.ResponseWriter, r *http.Request) {
	id, ok := g.hub.AttachID(r.URL.Path)
	if !ok {
		g.sendJSONError(w, http.StatusNotFound, "unknown session")
		return
	}
	if _, err := g.sessions.Get(id); err != nil {
		g.sendJSONError(w, http.StatusNotFound, "unknown session")
		return
	}

	err := g.hub.Attach(w, r, id)
	if errors.Is(err, transport.ErrUnknownConnection) {
		g.sendJSONError(w, http.StatusNotFound, "unknown session")
		return
	}
	if err != nil {
		// The upgrader has already replied.
		g.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
	}
}

func (g *Gateway) toolsResponse(snap *capability.Snapshot) ToolsResponse {
	resp := ToolsResponse{
		Generation: snap.Generation,
		LoadedAt:   snap.LoadedAt.UTC().Format(time.RFC3339),
		Tools:      snap.Catalog(),
	}
	for _, le := range snap.LoadErrors() {
		resp.Skipped = append(resp.Skipped, SkippedSource{Source: le.Source, Error: le.Err.Error()})
	}
	return resp
}

// handleListTools handles GET /api/tools.
func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	snap, err := g.registry.Snapshot(r.Context())
	if err != nil {
		g.logger.Error("loading capabilities", "error", err)
		g.sendJSONError(w, http.StatusServiceUnavailable, "capabilities unavailable")
		return
	}
	writeJSON(w, http.StatusOK, g.toolsResponse(snap))
}

// handleReloadTools handles POST /api/tools/reload. A failed reload leaves
// the previous snapshot in place.
func (g *Gateway) handleReloadTools(w http.ResponseWriter, r *http.Request) {
	err := g.registry.Reload(r.Context())
	if errors.Is(err, capability.ErrDuplicateCapability) {
		g.logger.Warn("capability reload rejected", "error", err)
		g.sendJSONError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("capability reload failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "reload failed")
		return
	}

	snap, err := g.registry.Snapshot(r.Context())
	if err != nil {
		g.sendJSONError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	g.logger.Info("capabilities reloaded", "generation", snap.Generation, "count", snap.Len())
	writeJSON(w, http.StatusOK, g.toolsResponse(snap))
}

// handleListSessions handles GET /api/sessions.
func (g *Gateway) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := g.sessions.List()
	writeJSON(w, http.StatusOK, SessionsResponse{Count: len(sessions), Sessions: sessions})
}

// parseCallsFilter reads ?session_id=&capability=&since=&limit= into a filter.
func parseCallsFilter(r *http.Request) (store.ToolCallFilter, error) {
	q := r.URL.Query()
	f := store.ToolCallFilter{
		SessionID:  q.Get("session_id"),
		Capability: q.Get("capability"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid since %q: want RFC3339", v)
		}
		f.Since = &t
	}
	return f, nil
}

// handleListCalls handles GET /api/calls, newest first.
func (g *Gateway) handleListCalls(w http.ResponseWriter, r *http.Request) {
	f, err := parseCallsFilter(r)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	calls, err := g.store.ListToolCalls(r.Context(), f)
	if err != nil {
		g.logger.Error("listing tool calls", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "failed to list calls")
		return
	}

	resp := CallsResponse{Calls: make([]ToolCallResponse, 0, len(calls))}
	for _, c := range calls {
		resp.Calls = append(resp.Calls, ToolCallResponse{
			ID:         c.ID,
			CallID:     c.CallID,
			SessionID:  c.SessionID,
			Capability: c.Capability,
			Status:     c.Status,
			ErrorKind:  c.ErrorKind,
			Error:      c.Error,
			DurationMS: c.DurationMS,
			CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
