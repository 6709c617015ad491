package cmd

import (
	"fmt"
	"strings"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write persistent settings",
	Long: `Read and write settings stored in the cosheet config file.

Keys: ` + strings.Join(config.Keys(), ", ") + `

Flags and COSHEET_* environment variables take precedence over the file.

Examples:
  cosheet config set server_url https://sheets.example.com
  cosheet config get mode
  cosheet config get
  cosheet config unset api_key`,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one setting, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			v, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, v)
			return nil
		}
		if jsonOutput {
			cfg.APIKey = maskSecret(cfg.APIKey)
			return jsonPrint(out, cfg)
		}
		for _, k := range config.Keys() {
			v, _ := cfg.Get(k)
			if k == "api_key" {
				v = maskSecret(v)
			}
			fmt.Fprintf(out, "%-12s %s\n", k, v)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		key, value := args[0], args[1]
		if key == "mode" {
			m, err := codec.ParseMode(value)
			if err != nil {
				return err
			}
			value = string(m)
		}
		return updateConfig(func(cfg *config.Config) error { return cfg.Set(key, value) })
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return updateConfig(func(cfg *config.Config) error { return cfg.Set(args[0], "") })
	},
}

func init() {
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func updateConfig(fn func(*config.Config) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := fn(&cfg); err != nil {
		return err
	}
	if cfg == (config.Config{}) {
		return config.Delete()
	}
	return config.Save(cfg)
}

func maskSecret(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
