// ABOUTME: Gateway orchestrator that wires the capability stack, session registry, and servers
// ABOUTME: Owns listener setup (TCP or Tailscale), the server errgroup, and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/shivsinghin/Voice-Assistant/internal/agent"
	"github.com/shivsinghin/Voice-Assistant/internal/auth"
	"github.com/shivsinghin/Voice-Assistant/internal/capability"
	"github.com/shivsinghin/Voice-Assistant/internal/config"
	"github.com/shivsinghin/Voice-Assistant/internal/dispatch"
	"github.com/shivsinghin/Voice-Assistant/internal/mcp"
	"github.com/shivsinghin/Voice-Assistant/internal/session"
	"github.com/shivsinghin/Voice-Assistant/internal/store"
	"github.com/shivsinghin/Voice-Assistant/internal/tools"
	"github.com/shivsinghin/Voice-Assistant/internal/transport"
)

const shutdownTimeout = 5 * time.Second

// tailscaleGRPCPort is where the health service listens on the tailnet.
const tailscaleGRPCPort = ":50051"

// Gateway orchestrates the lisa-gateway server components.
type Gateway struct {
	config  *config.Config
	version string
	logger  *slog.Logger

	store      *store.SQLiteStore
	registry   *capability.Registry
	dispatcher *dispatch.Dispatcher
	runtime    *agent.Runtime
	hub        *transport.Hub
	sessions   *session.Manager
	auth       *auth.Authenticator
	mcpServer  *mcp.Server
	pruner     *store.Pruner

	httpServer  *http.Server
	grpcServer  *grpc.Server
	health      *health.Server
	tsnetServer *tsnet.Server

	shutdownOnce sync.Once
	shutdownErr  error
}

// initStore opens the SQLite store, letting LISA_DB_PATH override the config.
func initStore(cfg *config.Config) (*store.SQLiteStore, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("LISA_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// newAuthenticator builds the admin authenticator from the auth section.
func newAuthenticator(cfg config.AuthConfig) (*auth.Authenticator, error) {
	verifier, err := auth.NewJWTVerifier([]byte(cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("creating JWT verifier: %w", err)
	}
	a, err := auth.NewAuthenticator(cfg.AdminUsername, cfg.AdminPasswordHash, verifier, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating authenticator: %w", err)
	}
	return a, nil
}

// LoadRegistry builds the registry over the built-in capability modules and
// loads it. calendar may be nil, which leaves the calendar module unloaded.
func LoadRegistry(ctx context.Context, cfg config.ToolsConfig, calendar tools.CalendarOpener, logger *slog.Logger) (*capability.Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", cfg.Timezone, err)
	}

	registry := capability.New(logger, tools.Sources(tools.Options{
		Location: loc,
		Calendar: calendar,
		Logger:   logger.With("component", "tools"),
	})...)
	if err := registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading capabilities: %w", err)
	}
	return registry, nil
}

// New creates a Gateway and loads the capability registry. A duplicate
// capability name is the only registry failure that aborts startup.
func New(ctx context.Context, cfg *config.Config, version string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	authenticator, err := newAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	registry, err := LoadRegistry(ctx, cfg.Tools, s, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	dispatcher := dispatch.New(dispatch.Config{
		Registry: registry,
		Recorder: s,
		Logger:   logger,
		Timeout:  cfg.Tools.CallTimeout,
	})

	runtime := agent.New(agent.Config{
		Schema:    registry,
		Invoker:   dispatcher,
		Logger:    logger,
		DedupeTTL: cfg.Tools.DedupeTTL,
	})

	hub := transport.NewHub(transport.HubConfig{
		AttachPrefix:   "/ws/",
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         logger,
	})

	sessions := session.NewManager(session.Config{
		Factory:     hub,
		Runtime:     runtime,
		Logger:      logger,
		MaxSessions: cfg.Sessions.MaxSessions,
	})

	mcpServer, err := mcp.NewServer(mcp.Config{
		Schema:        registry,
		Invoker:       dispatcher,
		TokenVerifier: authenticator,
		Logger:        logger,
		Version:       version,
	})
	if err != nil {
		runtime.Close()
		_ = s.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:     cfg,
		version:    version,
		logger:     logger.With("component", "gateway"),
		store:      s,
		registry:   registry,
		dispatcher: dispatcher,
		runtime:    runtime,
		hub:        hub,
		sessions:   sessions,
		auth:       authenticator,
		mcpServer:  mcpServer,
	}

	if cfg.Tools.AuditRetention > 0 {
		gw.pruner, err = store.NewPruner(s, cfg.Tools.AuditRetention, cfg.Tools.AuditPruneSchedule, logger)
		if err != nil {
			runtime.Close()
			_ = s.Close()
			return nil, fmt.Errorf("creating audit pruner: %w", err)
		}
	}

	if cfg.Server.GRPCAddr != "" {
		gw.grpcServer, gw.health = newHealthServer()
		gw.markServing(true)
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	snap, _ := registry.Snapshot(ctx)
	gw.logger.Info("capabilities loaded",
		"count", snap.Len(),
		"skipped", len(snap.LoadErrors()),
		"hot_reload", cfg.Tools.HotReload,
	)

	return gw, nil
}

// setupTCPListeners creates standard TCP listeners. grpcLn is nil when no
// gRPC address is configured.
func (g *Gateway) setupTCPListeners() (grpcLn, httpLn net.Listener, err error) {
	g.logger.Info("starting gateway",
		"http_addr", g.config.Server.HTTPAddr,
		"grpc_addr", g.config.Server.GRPCAddr,
	)

	httpLn, err = net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, nil, fmt.Errorf("listening on HTTP address: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = net.Listen("tcp", g.config.Server.GRPCAddr)
		if err != nil {
			_ = httpLn.Close()
			return nil, nil, fmt.Errorf("listening on gRPC address: %w", err)
		}
	}

	return grpcLn, httpLn, nil
}

// setupListeners creates listeners based on configuration (Tailscale or TCP).
func (g *Gateway) setupListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", g.config.Server.HTTPAddr)
		}
		return g.setupTailscaleListeners(ctx)
	}
	return g.setupTCPListeners()
}

// Run starts the servers and blocks until ctx is cancelled or a server fails.
// Shutdown runs in either case. Returns nil on a clean, cancelled exit.
func (g *Gateway) Run(ctx context.Context) error {
	grpcLn, httpLn, err := g.setupListeners(ctx)
	if err != nil {
		return errors.Join(err, g.gracefulShutdown())
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", httpLn.Addr().String())
		if err := g.httpServer.Serve(httpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	if grpcLn != nil {
		group.Go(func() error {
			g.logger.Info("gRPC health server listening", "addr", grpcLn.Addr().String())
			if err := g.grpcServer.Serve(grpcLn); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("gRPC server: %w", err)
			}
			return nil
		})
	}

	if g.pruner != nil {
		group.Go(func() error { return g.pruner.Run(gctx) })
	}

	group.Go(func() error {
		<-gctx.Done()
		g.logger.Info("context canceled, initiating shutdown")
		return g.gracefulShutdown()
	})

	return group.Wait()
}

// gracefulShutdown performs shutdown with a fresh context and timeout,
// since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "lisa-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListeners joins the tailnet and listens there for HTTP and,
// if configured, gRPC health.
func (g *Gateway) setupTailscaleListeners(ctx context.Context) (grpcLn, httpLn net.Listener, err error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, nil, fmt.Errorf("starting tailscale: %w", err)
	}
	g.logTailscaleStatus(tsCfg.Hostname, status)

	if tsCfg.Funnel {
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		httpLn, err = g.tsnetServer.ListenFunnel("tcp", ":443")
	} else {
		httpLn, err = g.tsnetServer.Listen("tcp", ":80")
	}
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}

	if g.grpcServer != nil {
		grpcLn, err = g.tsnetServer.Listen("tcp", tailscaleGRPCPort)
		if err != nil {
			_ = httpLn.Close()
			_ = g.tsnetServer.Close()
			return nil, nil, fmt.Errorf("listening on tailscale gRPC port: %w", err)
		}
	}

	return grpcLn, httpLn, nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// shutdownGRPCServer gracefully stops the gRPC server or force-stops on context cancel.
func (g *Gateway) shutdownGRPCServer(ctx context.Context) {
	stopped := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, closes every live session, and
// releases the store. Later calls return the first call's result.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.shutdownOnce.Do(func() {
		g.shutdownErr = g.shutdown(ctx)
	})
	return g.shutdownErr
}

func (g *Gateway) shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway", "sessions", g.sessions.Count())
	g.markServing(false)

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "session shutdown", g.sessions.ShutdownAll(ctx))

	if g.grpcServer != nil {
		g.shutdownGRPCServer(ctx)
	}
	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}

	g.runtime.Close()
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}
