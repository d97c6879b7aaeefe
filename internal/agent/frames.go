// ABOUTME: JSON frames exchanged between a client and its session runtime.
// ABOUTME: One flat envelope keyed by "type" covers every message in both directions.

package agent

import (
	"encoding/json"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

// Frame types.
const (
	FrameReady      = "ready"
	FrameToolCall   = "tool_call"
	FrameToolResult = "tool_result"
	FrameListTools  = "list_tools"
	FrameTools      = "tools"
	FramePing       = "ping"
	FramePong       = "pong"
	FrameError      = "error"
)

// Frame is the wire envelope.
type Frame struct {
	Type      string             `json:"type"`
	SessionID string             `json:"session_id,omitempty"`
	ID        string             `json:"id,omitempty"`
	Name      string             `json:"name,omitempty"`
	Arguments json.RawMessage    `json:"arguments,omitempty"`
	Result    *capability.Result `json:"result,omitempty"`
	Tools     []ToolInfo         `json:"tools,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// ToolInfo describes one capability to the client.
type ToolInfo struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolInfos converts descriptors to their wire form, preserving order.
func ToolInfos(schema []capability.Descriptor) []ToolInfo {
	out := make([]ToolInfo, 0, len(schema))
	for _, d := range schema {
		out = append(out, ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.InputSchema(),
		})
	}
	return out
}

func errorFrame(id, msg string) *Frame {
	return &Frame{Type: FrameError, ID: id, Error: msg}
}
