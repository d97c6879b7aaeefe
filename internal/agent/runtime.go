// ABOUTME: Per-session runtime: announces the tool set, then serves client frames in order.
// ABOUTME: Tool calls go through the dispatcher; retried call ids replay the cached result.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
	"github.com/shivsinghin/Voice-Assistant/internal/dedupe"
	"github.com/shivsinghin/Voice-Assistant/internal/dispatch"
	"github.com/shivsinghin/Voice-Assistant/internal/transport"
)

const (
	// DefaultDedupeTTL is how long a tool result is replayed for a retried call id.
	DefaultDedupeTTL = 5 * time.Minute

	defaultDedupeSize = 10_000
)

// Invoker runs one capability call.
type Invoker interface {
	Invoke(ctx context.Context, call dispatch.Call) capability.Result
}

// SchemaSource supplies the capability schema advertised to a session.
type SchemaSource interface {
	Schema(ctx context.Context) ([]capability.Descriptor, error)
}

// Config contains configuration options for the Runtime.
type Config struct {
	Schema     SchemaSource
	Invoker    Invoker
	Logger     *slog.Logger
	DedupeTTL  time.Duration
	DedupeSize int
}

// Runtime serves sessions. One Runtime is shared by all sessions; Run is
// called once per session.
type Runtime struct {
	schema  SchemaSource
	invoker Invoker
	logger  *slog.Logger
	replay  *dedupe.Cache[capability.Result]
}

// New creates a Runtime. Call Close to stop its cache cleanup goroutine.
func New(cfg Config) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}
	size := cfg.DedupeSize
	if size <= 0 {
		size = defaultDedupeSize
	}
	return &Runtime{
		schema:  cfg.Schema,
		invoker: cfg.Invoker,
		logger:  logger.With("component", "runtime"),
		replay:  dedupe.New[capability.Result](ttl, size),
	}
}

// Close releases the replay cache.
func (r *Runtime) Close() {
	r.replay.Close()
}

// Run fetches the schema once, sends a ready frame, and handles frames until
// ctx is cancelled or the connection closes. Frames are handled one at a
// time, so results go out in the order their calls arrived.
func (r *Runtime) Run(ctx context.Context, sessionID string, conn transport.Connection) error {
	logger := r.logger.With("session_id", sessionID)

	schema, err := r.schema.Schema(ctx)
	if err != nil {
		_ = r.send(ctx, conn, errorFrame("", "capabilities unavailable"))
		return fmt.Errorf("loading schema: %w", err)
	}
	tools := ToolInfos(schema)

	if err := r.send(ctx, conn, &Frame{Type: FrameReady, SessionID: sessionID, Tools: tools}); err != nil {
		return quiet(ctx, err)
	}
	logger.Debug("session runtime started", "tools", len(tools))

	for {
		data, err := conn.Receive(ctx)
		if err != nil {
			logger.Debug("session runtime stopped", "reason", err)
			return quiet(ctx, err)
		}

		reply := r.handle(ctx, logger, sessionID, tools, data)
		if reply == nil {
			continue
		}
		if err := r.send(ctx, conn, reply); err != nil {
			return quiet(ctx, err)
		}
	}
}

// quiet maps the normal ways a session ends to a nil error.
func quiet(ctx context.Context, err error) error {
	if errors.Is(err, transport.ErrClosed) || ctx.Err() != nil {
		return nil
	}
	return err
}

func (r *Runtime) send(ctx context.Context, conn transport.Connection, f *Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding %s frame: %w", f.Type, err)
	}
	return conn.Send(ctx, data)
}

func (r *Runtime) handle(ctx context.Context, logger *slog.Logger, sessionID string, tools []ToolInfo, data []byte) *Frame {
	var in Frame
	if err := json.Unmarshal(data, &in); err != nil {
		logger.Warn("malformed frame", "error", err)
		return errorFrame("", "malformed frame")
	}

	switch in.Type {
	case FrameToolCall:
		return r.toolCall(ctx, logger, sessionID, in)
	case FrameListTools:
		return &Frame{Type: FrameTools, ID: in.ID, Tools: tools}
	case FramePing:
		return &Frame{Type: FramePong, ID: in.ID}
	default:
		return errorFrame(in.ID, fmt.Sprintf("unknown frame type %q", in.Type))
	}
}

func (r *Runtime) toolCall(ctx context.Context, logger *slog.Logger, sessionID string, in Frame) *Frame {
	if in.Name == "" {
		return errorFrame(in.ID, "tool_call requires a name")
	}

	args := capability.Args{}
	if len(in.Arguments) > 0 && string(in.Arguments) != "null" {
		if err := json.Unmarshal(in.Arguments, &args); err != nil {
			return errorFrame(in.ID, "arguments must be a JSON object")
		}
	}

	id := in.ID
	if id == "" {
		id = uuid.New().String()
	}
	key := sessionID + "/" + id

	if cached, ok := r.replay.Get(key); ok {
		logger.Info("replaying tool result", "call_id", id, "capability", in.Name)
		return &Frame{Type: FrameToolResult, ID: id, Name: in.Name, Result: &cached}
	}

	result := r.invoker.Invoke(ctx, dispatch.Call{
		ID:        id,
		SessionID: sessionID,
		Name:      in.Name,
		Arguments: args,
	})
	// A call cut short by session close is not worth replaying.
	if ctx.Err() == nil {
		r.replay.Put(key, result)
	}
	return &Frame{Type: FrameToolResult, ID: id, Name: in.Name, Result: &result}
}
