package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/solatis/regcheck/internal/core/config"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/plugin"
	"github.com/solatis/regcheck/internal/types"
)

// Version is the regcheck release.
const Version = "0.1.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "regcheck",
	Short: "Building-regulation compliance engine",
	Long: `regcheck evaluates project records against plugin-defined regulation rules
and engineering formulas, producing findings with regulation references.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...; default: sqlite under evaluator.data_dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (expected json or text)", format)
	}
}

// loadConfig loads the config file and applies the workers flag when set.
func loadConfig(cmd *cobra.Command) (*config.EvaluatorConfig, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		workers, _ := cmd.Flags().GetInt("workers")
		cfg.Workers = workers
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// databaseURL returns --db-url, or a sqlite database under
// evaluator.data_dir when the flag is not set.
func databaseURL(cmd *cobra.Command) (string, error) {
	if dbURL != "" {
		return dbURL, nil
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}
	return "sqlite://" + filepath.Join(cfg.DataDir, "regcheck.db"), nil
}

// openDB opens the database and loads the named queries. With
// requireMigrated the schema must be current.
func openDB(cmd *cobra.Command, requireMigrated bool) (*sqlx.DB, *db.Queries, error) {
	url, err := databaseURL(cmd)
	if err != nil {
		return nil, nil, err
	}
	database, err := db.Open(url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if requireMigrated {
		if err := db.RequireMigrated(database); err != nil {
			database.Close()
			return nil, nil, err
		}
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// loadPluginDir loads and validates every plugin document in dir.
func loadPluginDir(dir string) ([]plugin.Loaded, error) {
	loaded, err := plugin.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	var issues []plugin.Issue
	for i := range loaded {
		issues = append(issues, plugin.Validate(&loaded[i].Plugin)...)
	}
	if err := plugin.Err(issues); err != nil {
		return nil, err
	}
	return loaded, nil
}

func plugins(loaded []plugin.Loaded) []types.Plugin {
	out := make([]types.Plugin, len(loaded))
	for i, l := range loaded {
		out[i] = l.Plugin
	}
	return out
}

// readRecord reads a YAML or JSON project record.
func readRecord(path string) (types.Record, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		// #nosec G304 -- path is an operator-supplied CLI argument.
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse record %s: %w", path, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("record %s is empty", path)
	}
	return types.Record(plugin.Normalize(raw).(map[string]any)), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
