// ABOUTME: Capability registry: builds the schema and dispatch table from module sources.
// ABOUTME: Snapshots are immutable and swapped atomically so reloads never disturb in-flight calls.

package capability

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrDuplicateCapability indicates two modules declare the same capability name.
// It is the only load failure that aborts a load.
var ErrDuplicateCapability = errors.New("duplicate capability name")

// ErrUnknownCapability indicates no loaded module provides the requested name.
var ErrUnknownCapability = errors.New("unknown capability")

// LoadError records a source that was skipped during a load.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("capability source %q skipped: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Entry is one row of the dispatch table.
type Entry struct {
	Descriptor Descriptor
	Handler    Handler
	Module     string
	schema     *jsonschema.Schema
}

// ValidateArgs checks args against the descriptor's compiled schema.
func (e *Entry) ValidateArgs(args Args) error {
	if e.schema == nil {
		return nil
	}
	doc := map[string]any(args)
	if doc == nil {
		doc = map[string]any{}
	}
	if err := e.schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid arguments for %s: %s", e.Descriptor.Name, validationDetail(err))
	}
	return nil
}

// validationDetail drops the schema location header from a validation error
// and keeps the individual failures.
func validationDetail(err error) string {
	lines := strings.Split(err.Error(), "\n")
	if len(lines) <= 1 {
		return err.Error()
	}
	details := make([]string, 0, len(lines)-1)
	for _, l := range lines[1:] {
		l = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(l), "-"))
		if l != "" {
			details = append(details, l)
		}
	}
	return strings.Join(details, "; ")
}

// CatalogEntry describes a loaded capability and the module that owns it.
type CatalogEntry struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Module      string   `json:"module"`
	Required    []string `json:"required"`
}

// Snapshot is an immutable view of one successful load.
// The schema and the dispatch table always describe the same capability set.
type Snapshot struct {
	Generation uint64
	LoadedAt   time.Time

	schema     []Descriptor
	table      map[string]*Entry
	loadErrors []*LoadError
}

// Schema returns the ordered descriptor list.
func (s *Snapshot) Schema() []Descriptor {
	return slices.Clone(s.schema)
}

// Lookup returns the dispatch entry for name.
func (s *Snapshot) Lookup(name string) (*Entry, error) {
	e, ok := s.table[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return e, nil
}

// Len returns the number of loaded capabilities.
func (s *Snapshot) Len() int {
	return len(s.schema)
}

// Catalog maps every loaded capability to its owning module, in schema order.
func (s *Snapshot) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(s.schema))
	for _, d := range s.schema {
		out = append(out, CatalogEntry{
			Name:        d.Name,
			Description: d.Description,
			Module:      s.table[d.Name].Module,
			Required:    slices.Clone(d.Required),
		})
	}
	return out
}

// LoadErrors returns the sources skipped while building this snapshot.
func (s *Snapshot) LoadErrors() []*LoadError {
	return slices.Clone(s.loadErrors)
}

// Registry owns the current capability snapshot.
type Registry struct {
	sources []Source
	logger  *slog.Logger

	loadMu     sync.Mutex // serializes builds
	generation uint64     // guarded by loadMu
	current    atomic.Pointer[Snapshot]
}

// New creates a Registry over the given sources. Nothing is loaded until
// Load is called or the schema is first requested.
func New(logger *slog.Logger, sources ...Source) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sources: slices.Clone(sources),
		logger:  logger.With("component", "capabilities"),
	}
}

// Load builds a fresh snapshot from every source and makes it current.
// Sources that fail or produce invalid modules are skipped and logged.
// A duplicate capability name returns ErrDuplicateCapability and leaves the
// previous snapshot, if any, in place.
func (r *Registry) Load(ctx context.Context) error {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	return r.loadLocked(ctx)
}

// Reload is Load under the name operators expect. In-flight invocations keep
// the snapshot they started with.
func (r *Registry) Reload(ctx context.Context) error {
	return r.Load(ctx)
}

// Loaded reports whether a snapshot is available.
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}

// Snapshot returns the current snapshot, loading it on first use.
func (r *Registry) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := r.current.Load(); s != nil {
		return s, nil
	}
	r.loadMu.Lock()
	defer r.loadMu.Unlock()
	if s := r.current.Load(); s != nil {
		return s, nil
	}
	if err := r.loadLocked(ctx); err != nil {
		return nil, err
	}
	return r.current.Load(), nil
}

// Schema returns the ordered descriptor list, loading on first use.
func (r *Registry) Schema(ctx context.Context) ([]Descriptor, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Schema(), nil
}

// Lookup returns the dispatch entry for name, loading on first use.
func (r *Registry) Lookup(ctx context.Context, name string) (*Entry, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Lookup(name)
}

func (r *Registry) loadLocked(ctx context.Context) error {
	start := time.Now()

	type built struct {
		module *Module
		source string
	}
	var modules []built
	var loadErrors []*LoadError

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := buildSource(ctx, src)
		if err == nil {
			err = m.Validate()
		}
		if err != nil {
			le := &LoadError{Source: src.Name, Err: err}
			loadErrors = append(loadErrors, le)
			r.logger.Warn("skipping capability module", "source", src.Name, "error", err)
			continue
		}
		modules = append(modules, built{module: m, source: src.Name})
	}

	if err := checkCollisions(modules, func(b built) *Module { return b.module }); err != nil {
		r.logger.Error("capability load aborted", "error", err)
		return err
	}

	snap := &Snapshot{
		LoadedAt:   time.Now(),
		table:      make(map[string]*Entry),
		loadErrors: loadErrors,
	}
	for _, b := range modules {
		entries := make([]*Entry, 0, len(b.module.Capabilities))
		var compileErr error
		for _, c := range b.module.Capabilities {
			sch, err := compileArgsSchema(c.Descriptor)
			if err != nil {
				compileErr = err
				break
			}
			entries = append(entries, &Entry{
				Descriptor: c.Descriptor,
				Handler:    c.Handler,
				Module:     b.module.Name,
				schema:     sch,
			})
		}
		if compileErr != nil {
			le := &LoadError{Source: b.source, Err: compileErr}
			snap.loadErrors = append(snap.loadErrors, le)
			r.logger.Warn("skipping capability module", "source", b.source, "error", compileErr)
			continue
		}
		for _, e := range entries {
			snap.schema = append(snap.schema, e.Descriptor)
			snap.table[e.Descriptor.Name] = e
		}
	}

	r.generation++
	snap.Generation = r.generation
	r.current.Store(snap)

	r.logger.Info("=== CAPABILITIES LOADED ===",
		"generation", snap.Generation,
		"capabilities", len(snap.schema),
		"modules", len(modules),
		"skipped", len(snap.loadErrors),
		"duration", time.Since(start),
	)
	return nil
}

// buildSource runs a source, converting a panic into an error so one broken
// module cannot take the load down.
func buildSource(ctx context.Context, src Source) (m *Module, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("source panicked: %v", rec)
		}
	}()
	if src.Build == nil {
		return nil, fmt.Errorf("%w: source has no constructor", ErrInvalidModule)
	}
	m, err = src.Build(ctx)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: source returned no module", ErrInvalidModule)
	}
	return m, nil
}

// checkCollisions reports the lexicographically first duplicated name so the
// error is the same whatever order the sources were listed in.
func checkCollisions[T any](items []T, module func(T) *Module) error {
	owners := make(map[string][]string)
	for _, it := range items {
		m := module(it)
		for _, c := range m.Capabilities {
			owners[c.Descriptor.Name] = append(owners[c.Descriptor.Name], m.Name)
		}
	}
	var dupes []string
	for name, mods := range owners {
		if len(mods) > 1 {
			dupes = append(dupes, name)
		}
	}
	if len(dupes) == 0 {
		return nil
	}
	slices.Sort(dupes)
	mods := owners[dupes[0]]
	slices.Sort(mods)
	return fmt.Errorf("%w: %q declared by modules %s", ErrDuplicateCapability, dupes[0], strings.Join(mods, ", "))
}

func compileArgsSchema(d Descriptor) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(d.InputSchema()))
	if err != nil {
		return nil, fmt.Errorf("parsing schema for %s: %w", d.Name, err)
	}
	loc := "mem:///capabilities/" + url.PathEscape(d.Name) + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, doc); err != nil {
		return nil, fmt.Errorf("adding schema for %s: %w", d.Name, err)
	}
	sch, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("compiling schema for %s: %w", d.Name, err)
	}
	return sch, nil
}
