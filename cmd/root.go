package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/cosheet/cosheet-cli/client"
	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const defaultServerURL = "http://localhost:8000"

var (
	apiKey     string
	serverURL  string
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:           "cosheet",
	Short:         "cosheet: load Excel workbooks into a collaborative sheet server",
	Version:       Version,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Sheet server URL (env: COSHEET_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Server key used to sign writes (env: COSHEET_API_KEY)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON instead of human-formatted summaries")
}

// modeFlag is a --mode value validated at parse time.
type modeFlag struct {
	mode codec.Mode
	set  bool
}

var _ pflag.Value = (*modeFlag)(nil)

func (m *modeFlag) String() string { return string(m.mode) }

func (m *modeFlag) Set(s string) error {
	mode, err := codec.ParseMode(s)
	if err != nil {
		return err
	}
	m.mode, m.set = mode, true
	return nil
}

func (m *modeFlag) Type() string { return "mode" }

func addModeFlag(fs *pflag.FlagSet, m *modeFlag) {
	fs.Var(m, "mode", "Upload mode: per-sheet (one resource per sheet plus an index) or concat (one merged sheet) (env: COSHEET_MODE)")
}

// newLogger writes structured diagnostics to stderr; stdout carries results.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig() config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "note: ignoring unreadable config: %v\n", err)
		return config.Config{}
	}
	return cfg
}

func resolveServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if v := os.Getenv("COSHEET_SERVER_URL"); v != "" {
		return v
	}
	if cfg := loadConfig(); cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return defaultServerURL
}

func resolveAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	if v := os.Getenv("COSHEET_API_KEY"); v != "" {
		return v
	}
	return loadConfig().APIKey
}

func resolveMode(m *modeFlag) (codec.Mode, error) {
	if m.set {
		return m.mode, nil
	}
	if v := os.Getenv("COSHEET_MODE"); v != "" {
		mode, err := codec.ParseMode(v)
		if err != nil {
			return "", fmt.Errorf("COSHEET_MODE: %w", err)
		}
		return mode, nil
	}
	if v := loadConfig().Mode; v != "" {
		mode, err := codec.ParseMode(v)
		if err != nil {
			return "", fmt.Errorf("config mode: %w", err)
		}
		return mode, nil
	}
	return codec.ModePerSheet, nil
}

func resolveConcurrency(flagValue int, changed bool) (int, error) {
	if changed {
		if flagValue < 1 {
			return 0, fmt.Errorf("--concurrency must be at least 1")
		}
		return flagValue, nil
	}
	if v := strings.TrimSpace(os.Getenv("COSHEET_CONCURRENCY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, fmt.Errorf("COSHEET_CONCURRENCY must be a positive integer, got %q", v)
		}
		return n, nil
	}
	if n := loadConfig().Concurrency; n > 0 {
		return n, nil
	}
	return 4, nil
}

func newClient(logger *slog.Logger) *client.Client {
	c := client.New(resolveServerURL(), resolveAPIKey())
	c.UserAgent = "cosheet-cli/" + Version
	c.Logger = logger
	return c
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}
