// ABOUTME: Operator commands: init, tools, token, hash-password, health
// ABOUTME: Everything except serve; each loads config itself and prints plain or colored text

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shivsinghin/Voice-Assistant/internal/auth"
	"github.com/shivsinghin/Voice-Assistant/internal/config"
	"github.com/shivsinghin/Voice-Assistant/internal/gateway"
	"github.com/shivsinghin/Voice-Assistant/internal/store"
)

// --- init ---

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a new config file with a generated JWT secret and admin password hash",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

// generateSecret returns a random base64 secret long enough for auth.NewJWTVerifier.
func generateSecret() (string, error) {
	b := make([]byte, 48)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// renderConfig produces the YAML written by init.
func renderConfig(secret, username, hash, dbPath string) string {
	return fmt.Sprintf(`# lisa-gateway configuration
# Generated by lisa-gateway init

server:
  http_addr: "%s"
  # grpc_addr: "127.0.0.1:50051"   # grpc.health.v1 only

auth:
  jwt_secret: "%s"
  admin_username: "%s"
  admin_password_hash: "%s"
  token_ttl: "24h"

database:
  path: "%s"

tools:
  timezone: "%s"
  call_timeout: "30s"
  hot_reload: false
  dedupe_ttl: "5m"
  # audit_retention: "720h"
  # audit_prune_schedule: "15 3 * * *"

sessions:
  max_sessions: 0

cors:
  allowed_origins: ["*"]

logging:
  level: "info"
  format: "text"
`, config.DefaultHTTPAddr, secret, username, hash, dbPath, config.DefaultTimezone)
}

func defaultDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.DefaultDatabasePath
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "lisa", config.DefaultDatabasePath)
}

func runInit(cmd *cobra.Command, _ []string) error {
	path := resolveConfigPath()
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	username := prompt(reader, cmd.OutOrStdout(), "Admin username", config.DefaultAdminUsername)
	password, err := readPassword(reader, cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	secret, err := generateSecret()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	dbPath := defaultDataPath()
	if err := os.WriteFile(path, []byte(renderConfig(secret, username, hash, dbPath)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Fprintf(cmd.OutOrStdout(), "  ✓ Created config: %s\n", path)
	fmt.Fprintf(cmd.OutOrStdout(), "  Database: %s\n\n", dbPath)
	fmt.Fprintln(cmd.OutOrStdout(), "  To start the server:")
	fmt.Fprintln(cmd.OutOrStdout(), "    lisa-gateway serve")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal
	}
	return line
}

// readPassword reads a password without echo on a terminal, or one line from
// reader when input is piped.
func readPassword(reader *bufio.Reader, out io.Writer, confirm bool) (string, error) {
	read := func(label string) (string, error) {
		fd := int(os.Stdin.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprintf(out, "%s: ", label)
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			if err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return string(b), nil
		}
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	password, err := read("Password")
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	if confirm && term.IsTerminal(int(os.Stdin.Fd())) {
		again, err := read("Confirm password")
		if err != nil {
			return "", err
		}
		if again != password {
			return "", errors.New("passwords do not match")
		}
	}
	return password, nil
}

// --- hash-password ---

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print a bcrypt hash for auth.admin_password_hash (reads the password from stdin)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := readPassword(bufio.NewReader(cmd.InOrStdin()), cmd.ErrOrStderr(), true)
		if err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

// --- token ---

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an access token for the configured admin without a password round-trip",
	Args:  cobra.NoArgs,
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl)")
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Auth.TokenTTL
	}
	if ttl <= 0 {
		ttl = auth.DefaultTokenTTL
	}

	token, err := verifier.Generate(cfg.Auth.AdminUsername, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	gray := color.New(color.FgHiBlack)
	gray.Fprintf(cmd.ErrOrStderr(), "subject %s, expires %s\n", cfg.Auth.AdminUsername, time.Now().Add(ttl).Format(time.RFC1123))
	return nil
}

// --- tools ---

var toolsJSON bool

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Load the capability modules and print the catalog",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print the full descriptors with input schemas as JSON")
}

type toolJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Module      string          `json:"module"`
	InputSchema json.RawMessage `json:"input_schema"`
}

func runTools(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if envPath := os.Getenv("LISA_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: cfg.Logging.Format})
	registry, err := gateway.LoadRegistry(cmd.Context(), cfg.Tools, s, logger)
	if err != nil {
		return err
	}
	snap, err := registry.Snapshot(cmd.Context())
	if err != nil {
		return err
	}

	catalog := snap.Catalog()
	out := cmd.OutOrStdout()

	if toolsJSON {
		schema := snap.Schema()
		tools := make([]toolJSON, 0, len(schema))
		for i, d := range schema {
			tools = append(tools, toolJSON{
				Name:        d.Name,
				Description: d.Description,
				Module:      catalog[i].Module,
				InputSchema: d.InputSchema(),
			})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODULE\tREQUIRED\tDESCRIPTION")
	for _, e := range catalog {
		required := strings.Join(e.Required, ",")
		if required == "" {
			required = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Name, e.Module, required, e.Description)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, le := range snap.LoadErrors() {
		color.New(color.FgYellow).Fprintf(out, "skipped %s: %v\n", le.Source, le.Err)
	}
	return nil
}

// --- health ---

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check a running gateway's readiness endpoint",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

// localAddr turns a wildcard listen address into one a client can dial.
func localAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func runHealth(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	url := fmt.Sprintf("http://%s/health/ready", localAddr(cfg.Server.HTTPAddr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(string(body)))
	return nil
}
