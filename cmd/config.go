package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gwicho38/polidisc/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage polidisc configuration",
	Long:  `Read and write polidisc configuration stored in config.json.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a template config.json in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config.json already exists at %s (delete it first to re-initialise)", path)
		}
		tmpl := config.Template()
		if err := config.WriteFile(path, tmpl); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Created %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "  Edit it and set supabase_url / supabase_anon_key to get started.")
		return nil
	},
}

var configShowShowSecrets bool

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current resolved configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Overrides{
			SupabaseURL: globalFlags.SupabaseURL,
			LogLevel:    globalFlags.LogLevel,
		})
		if err != nil {
			return err
		}

		anonKey := cfg.RedactedAnonKey()
		if configShowShowSecrets {
			anonKey = cfg.SupabaseAnonKey
		}
		if anonKey == "" {
			anonKey = "(not set)"
		}

		src := "(not found)"
		if cfg.ConfigPath != "" {
			src = cfg.ConfigPath
		}

		format := resolveFormat("")

		if format == "json" {
			type configOut struct {
				SupabaseURL     string  `json:"supabase_url"`
				SupabaseAnonKey string  `json:"supabase_anon_key"`
				LogLevel        string  `json:"log_level"`
				Timeout         string  `json:"timeout"`
				Concurrency     int     `json:"concurrency"`
				Rate            float64 `json:"rate"`
				DBPath          string  `json:"db_path"`
				ConfigFile      string  `json:"config_file"`
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(configOut{
				SupabaseURL:     cfg.SupabaseURL,
				SupabaseAnonKey: anonKey,
				LogLevel:        cfg.LogLevel,
				Timeout:         cfg.Timeout.String(),
				Concurrency:     cfg.Concurrency,
				Rate:            cfg.Rate,
				DBPath:          cfg.DBPath,
				ConfigFile:      src,
			})
		}

		rows := [][]string{
			{"supabase_url", cfg.SupabaseURL},
			{"supabase_anon_key", anonKey},
			{"log_level", cfg.LogLevel},
			{"timeout", cfg.Timeout.String()},
			{"concurrency", fmt.Sprintf("%d", cfg.Concurrency)},
			{"rate", fmt.Sprintf("%.1f req/s", cfg.Rate)},
			{"db_path", cfg.DBPath},
			{"config_file", src},
		}
		printKVTable(cmd, rows)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value in config.json",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := strings.ToLower(args[0])
		val := args[1]

		f, path, err := loadConfigFile()
		if err != nil {
			path = config.DefaultConfigFile
			tmpl := config.Template()
			f = &tmpl
		}

		switch key {
		case "supabase_url":
			f.SupabaseURL = val
		case "supabase_anon_key":
			f.SupabaseAnonKey = val
		case "supabase_service_role_key":
			f.SupabaseService = val
		case "quiverquant_api_key":
			f.QuiverQuantKey = val
		case "log_level":
			f.LogLevel = val
		case "timeout":
			f.Timeout = val
		case "concurrency":
			n, err := strconv.Atoi(val)
			if err != nil {
				return fmt.Errorf("concurrency must be an integer")
			}
			f.Concurrency = n
		case "rate":
			r, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("rate must be a number")
			}
			f.Rate = r
		case "db_path":
			f.DBPath = val
		default:
			return fmt.Errorf("unknown config key: %q\n\nValid keys: supabase_url, supabase_anon_key, supabase_service_role_key, quiverquant_api_key, log_level, timeout, concurrency, rate, db_path", key)
		}

		if err := config.WriteFile(path, *f); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Set %s in %s\n", key, path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)

	configShowCmd.Flags().BoolVar(&configShowShowSecrets, "show-secrets", false, "show supabase_anon_key in plain text")
}

// loadConfigFile reads config.json from cwd; used by configSetCmd.
func loadConfigFile() (*config.File, string, error) {
	path := config.DefaultConfigFile
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var f config.File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", err
	}
	return &f, path, nil
}

// printKVTable renders a two-column key/value table to cmd's output stream
// using aligned columns.
func printKVTable(cmd *cobra.Command, rows [][]string) {
	maxKey := 0
	for _, r := range rows {
		if len(r[0]) > maxKey {
			maxKey = len(r[0])
		}
	}
	for _, r := range rows {
		padding := strings.Repeat(" ", maxKey-len(r[0]))
		fmt.Fprintf(cmd.OutOrStdout(), "  %s%s  %s\n", r[0], padding, r[1])
	}
}
