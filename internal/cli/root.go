package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"czstreams/internal/app"
	"czstreams/internal/domain"
)

var rootCmd = &cobra.Command{
	Use:   "czstreams",
	Short: "Operator tool for the CzStreams addon",
	Long: `czstreams runs the stream pipeline of the CzStreams addon from the command line.

It reads the same environment variables as the server, so a lookup here behaves
like a request to /stream. Use it to check credentials or probe a single resolver.`,
	SilenceUsage: true,
}

var (
	configPairs []string
	verbose     bool
)

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringArrayVarP(&configPairs, "config", "c", nil, "Resolver configuration as key=value, repeatable")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	rootCmd.AddCommand(streamsCmd, searchCmd, manifestCmd)
}

// environment loads the server configuration and a logger that stays quiet
// unless --verbose is set.
func environment(cmd *cobra.Command) (app.Config, *slog.Logger) {
	cfg := app.LoadConfig()
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return cfg, logger
}

// parseConfigPairs turns repeated key=value flags into a resolver
// configuration. A value may itself contain '='.
func parseConfigPairs(pairs []string) (domain.Configuration, error) {
	cfg := make(domain.Configuration, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid config %q, want key=value", pair)
		}
		cfg[key] = value
	}
	return cfg, nil
}

func printJSON(out io.Writer, payload any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(payload)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
