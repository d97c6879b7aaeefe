// ABOUTME: Entry point for lisa-gateway, the voice assistant's capability and session server
// ABOUTME: Defines the cobra root command and the shared --config flag

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shivsinghin/Voice-Assistant/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _ _
 | (_)___  __ _
 | | / __|/ _' |
 | | \__ \ (_| |
 |_|_|___/\__,_|
`

var configPath string

var rootCmd = &cobra.Command{
	Use:           "lisa-gateway",
	Short:         "Capability registry, tool dispatch, and session server for the Lisa voice assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: $LISA_CONFIG or ~/.config/lisa/gateway.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(healthCmd)
}

// resolveConfigPath returns --config if given, otherwise the default location.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath()
}

func loadConfig() (*config.Config, string, error) {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
