// ABOUTME: Capability modules: descriptor/handler pairs and the Result a handler returns.
// ABOUTME: Sources construct modules at startup in place of filesystem discovery.

package capability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
)

// Status discriminates a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// ErrorKind classifies an error Result for callers that need to branch on it.
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindUnsupported ErrorKind = "unsupported"
	KindValidation  ErrorKind = "validation"
	KindFault       ErrorKind = "fault"
	KindTimeout     ErrorKind = "timeout"
)

// Result is the single outcome of one capability invocation.
// It serializes flat: {"status": "...", <payload fields>}.
type Result struct {
	Status  Status
	Kind    ErrorKind
	Payload map[string]any
}

// Success builds a success Result carrying payload.
func Success(payload map[string]any) Result {
	if payload == nil {
		payload = map[string]any{}
	}
	return Result{Status: StatusSuccess, Payload: payload}
}

// Failure builds a user-facing error Result with the given message.
func Failure(message string) Result {
	return Result{Status: StatusError, Payload: map[string]any{"message": message}}
}

// ValidationError builds an error Result for arguments that failed validation.
func ValidationError(message string) Result {
	r := Failure(message)
	r.Kind = KindValidation
	return r
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Message returns the payload's message field, if any.
func (r Result) Message() string {
	s, _ := r.Payload["message"].(string)
	return s
}

// MarshalJSON flattens status and payload into one object.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+2)
	maps.Copy(out, r.Payload)
	out["status"] = r.Status
	if r.Kind != KindNone {
		out["error_kind"] = r.Kind
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status, _ := raw["status"].(string)
	kind, _ := raw["error_kind"].(string)
	delete(raw, "status")
	delete(raw, "error_kind")
	*r = Result{Status: Status(status), Kind: ErrorKind(kind), Payload: raw}
	return nil
}

// Args are the decoded arguments of a call, as produced by the LLM.
type Args map[string]any

// Decode copies the arguments into the struct pointed to by v.
func (a Args) Decode(v any) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}
	return nil
}

// String returns the named argument as a string, or def when absent or empty.
func (a Args) String(name, def string) string {
	if s, ok := a[name].(string); ok && s != "" {
		return s
	}
	return def
}

// Handler executes a capability and returns exactly one Result.
// A non-nil error is a fault, not a user-facing outcome.
type Handler func(ctx context.Context, args Args) (Result, error)

// Capability pairs a descriptor with the handler that implements it.
type Capability struct {
	Descriptor Descriptor
	Handler    Handler
}

// Module is a unit of registration: a primary capability and at most one secondary.
type Module struct {
	Name         string
	Capabilities []Capability
}

// ErrInvalidModule indicates a module that does not satisfy the registration contract.
var ErrInvalidModule = errors.New("invalid capability module")

// Validate checks the module's shape: a name, one or two capabilities, each
// with a consistent descriptor and a handler.
func (m *Module) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("%w: empty module name", ErrInvalidModule)
	}
	if n := len(m.Capabilities); n == 0 || n > 2 {
		return fmt.Errorf("%w: module %q declares %d capabilities, want 1 or 2", ErrInvalidModule, m.Name, n)
	}
	for _, c := range m.Capabilities {
		if err := c.Descriptor.check(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidModule, err)
		}
		if c.Handler == nil {
			return fmt.Errorf("%w: capability %q has no handler", ErrInvalidModule, c.Descriptor.Name)
		}
	}
	if len(m.Capabilities) == 2 && m.Capabilities[0].Descriptor.Name == m.Capabilities[1].Descriptor.Name {
		return fmt.Errorf("%w: module %q declares %q twice", ErrInvalidModule, m.Name, m.Capabilities[0].Descriptor.Name)
	}
	return nil
}

// Source constructs a module. Sources run on every registry load, so they
// may pick up configuration or backends that changed since the last load.
type Source struct {
	Name  string
	Build func(ctx context.Context) (*Module, error)
}

// Static wraps an already-built module as a Source.
func Static(m *Module) Source {
	return Source{
		Name:  m.Name,
		Build: func(context.Context) (*Module, error) { return m, nil },
	}
}
