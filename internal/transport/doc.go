// Package transport defines the session channel between the gateway and a
// client, and provides a WebSocket implementation of it.
//
// Negotiation is two-step. The client posts an offer; the answer it gets back
// names an attach path (/ws/<session id>). The client then opens a WebSocket
// on that path. Frames the server sends before the socket is attached are
// queued and flushed on attach.
//
// A client may attach again at any time (after a network change, for
// example); the new socket replaces the old one and the session continues.
// If the live socket fails, the connection closes and its OnClosed handlers
// run.
package transport
