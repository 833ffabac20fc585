package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/plugin"
)

var importCmd = &cobra.Command{
	Use:   "import [DIR]",
	Short: "Import plugin documents into the database catalogue",
	Long: `Validates every plugin in DIR (default: evaluator.plugins_dir) and
registers it. Plugins whose content hash is unchanged are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir = cfg.PluginsDir
	}

	loaded, err := loadPluginDir(dir)
	if err != nil {
		return err
	}
	if _, err := plugin.Bundle(plugins(loaded)); err != nil {
		return err
	}

	database, queries, err := openDB(cmd, true)
	if err != nil {
		return err
	}
	defer database.Close()
	store := db.NewStore(queries)

	out := cmd.OutOrStdout()
	imported := 0
	for i := range loaded {
		l := &loaded[i]
		changed, err := store.SavePlugin(ctx, &l.Plugin, l.Hash)
		if err != nil {
			return err
		}
		state := "unchanged"
		if changed {
			state = "imported"
			imported++
		}
		logger.Debug("plugin processed", "plugin_id", l.Plugin.ID, "path", l.Path, "hash", l.Hash, "state", state)
		fmt.Fprintf(out, "%-10s %s (%s)\n", state, l.Plugin.ID, l.Hash)
	}
	fmt.Fprintf(out, "%d of %d plugins imported\n", imported, len(loaded))
	return nil
}
