// ABOUTME: Routes capability calls to handlers and converts every outcome into one Result.
// ABOUTME: Validates arguments, enforces timeouts, recovers handler panics, and records audits.

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
)

// ErrHandlerFault wraps errors returned or raised by a capability handler.
var ErrHandlerFault = errors.New("capability handler fault")

// DefaultTimeout is the default timeout for a single capability call.
const DefaultTimeout = 30 * time.Second

// UnsupportedMessage is returned for names the registry does not know.
const UnsupportedMessage = "unsupported capability"

// Call is one invocation request coming from the LLM.
type Call struct {
	ID        string
	SessionID string
	Name      string
	Arguments capability.Args
}

// Record is the audit view of a completed call.
type Record struct {
	CallID     string
	SessionID  string
	Capability string
	Status     capability.Status
	Kind       capability.ErrorKind
	Duration   time.Duration
	Error      string
	CreatedAt  time.Time
}

// Recorder persists call records. Failures are logged and never affect the result.
type Recorder interface {
	RecordCall(ctx context.Context, rec Record) error
}

// SnapshotSource supplies the capability snapshot a call runs against.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*capability.Snapshot, error)
}

// Config contains configuration options for the Dispatcher.
type Config struct {
	Registry SnapshotSource
	Recorder Recorder
	Logger   *slog.Logger
	Timeout  time.Duration
}

// Dispatcher routes calls to capability handlers.
type Dispatcher struct {
	registry SnapshotSource
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
}

// New creates a Dispatcher with the given configuration.
func New(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		recorder: cfg.Recorder,
		logger:   logger.With("component", "dispatch"),
		timeout:  timeout,
	}
}

// Invoke runs one call and returns its single Result. It never panics and
// never returns without a Result, whatever the handler does.
func (d *Dispatcher) Invoke(ctx context.Context, call Call) capability.Result {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	start := time.Now()
	result, cause := d.invoke(ctx, call)

	d.record(ctx, call, result, cause, time.Since(start))
	return result
}

func (d *Dispatcher) invoke(ctx context.Context, call Call) (capability.Result, error) {
	// One snapshot per call: lookup and execution see the same table.
	snap, err := d.registry.Snapshot(ctx)
	if err != nil {
		d.logger.Error("capability registry unavailable", "capability", call.Name, "error", err)
		return faultResult(call.Name), err
	}

	entry, err := snap.Lookup(call.Name)
	if err != nil {
		d.logger.Warn("unsupported capability requested",
			"capability", call.Name,
			"call_id", call.ID,
			"session_id", call.SessionID,
		)
		r := capability.Failure(UnsupportedMessage)
		r.Kind = capability.KindUnsupported
		return r, nil
	}

	if err := entry.ValidateArgs(call.Arguments); err != nil {
		d.logger.Info("capability arguments rejected",
			"capability", call.Name,
			"call_id", call.ID,
			"error", err,
		)
		return capability.ValidationError(argsMessage(entry.Descriptor, call.Arguments)), err
	}

	d.logger.Info("→ dispatching capability",
		"capability", call.Name,
		"call_id", call.ID,
		"session_id", call.SessionID,
	)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := runHandler(callCtx, entry.Handler, call.Arguments)
	if err != nil {
		if ctxErr := callCtx.Err(); ctxErr != nil {
			d.logger.Warn("capability call interrupted",
				"capability", call.Name,
				"call_id", call.ID,
				"error", ctxErr,
			)
			r := capability.Failure(fmt.Sprintf("%s took too long to respond. Please try again.", call.Name))
			r.Kind = capability.KindTimeout
			return r, ctxErr
		}
		d.logger.Error("capability handler fault",
			"capability", call.Name,
			"call_id", call.ID,
			"error", err,
		)
		return faultResult(call.Name), err
	}
	if result.Status != capability.StatusSuccess && result.Status != capability.StatusError {
		err := fmt.Errorf("%w: %s returned result with status %q", ErrHandlerFault, call.Name, result.Status)
		d.logger.Error("capability handler fault", "capability", call.Name, "call_id", call.ID, "error", err)
		return faultResult(call.Name), err
	}

	d.logger.Info("← capability responded",
		"capability", call.Name,
		"call_id", call.ID,
		"status", result.Status,
	)
	return result, nil
}

// runHandler invokes h on its own goroutine so a handler that ignores its
// context still cannot hold the caller past the deadline. Returned errors and
// panics both become ErrHandlerFault.
func runHandler(ctx context.Context, h capability.Handler, args capability.Args) (capability.Result, error) {
	type outcome struct {
		result capability.Result
		err    error
	}
	if args == nil {
		args = capability.Args{}
	}

	done := make(chan outcome, 1)
	go func() {
		var o outcome
		defer func() {
			if rec := recover(); rec != nil {
				o = outcome{err: fmt.Errorf("%w: panic: %v", ErrHandlerFault, rec)}
			}
			done <- o
		}()
		o.result, o.err = h(ctx, args)
		if o.err != nil {
			o.err = fmt.Errorf("%w: %w", ErrHandlerFault, o.err)
		}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return capability.Result{}, ctx.Err()
	}
}

// argsMessage is the spoken explanation for arguments that failed schema
// validation. The schema detail stays in the log and the audit record.
func argsMessage(d capability.Descriptor, args capability.Args) string {
	for _, name := range d.Required {
		if v, ok := args[name]; !ok || v == nil {
			return fmt.Sprintf("I need the %s to do that. Could you tell me?", strings.ReplaceAll(name, "_", " "))
		}
	}
	return "I didn't quite catch the details for that request. Could you say it again?"
}

func faultResult(name string) capability.Result {
	r := capability.Failure(fmt.Sprintf("I couldn't complete %s right now. Please try again.", name))
	r.Kind = capability.KindFault
	return r
}

// record writes the audit row. cause, when set, is the internal reason for a
// failed call and is stored in place of the user-facing message.
func (d *Dispatcher) record(ctx context.Context, call Call, result capability.Result, cause error, took time.Duration) {
	if d.recorder == nil {
		return
	}
	rec := Record{
		CallID:     call.ID,
		SessionID:  call.SessionID,
		Capability: call.Name,
		Status:     result.Status,
		Kind:       result.Kind,
		Duration:   took,
		CreatedAt:  time.Now().UTC(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	} else if !result.OK() {
		rec.Error = result.Message()
	}
	if err := d.recorder.RecordCall(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.Warn("failed to record capability call", "call_id", call.ID, "error", err)
	}
}
