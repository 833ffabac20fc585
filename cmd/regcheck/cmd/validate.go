package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/plugin"
)

var validateCmd = &cobra.Command{
	Use:   "validate [PATH...]",
	Short: "Statically validate plugin documents",
	Long: `Checks plugin files, or every plugin in a directory, for unknown operators,
missing tables, malformed formulas and id conflicts. Defaults to
evaluator.plugins_dir.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		args = []string{cfg.PluginsDir}
	}

	var loaded []plugin.Loaded
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			ls, err := plugin.LoadDir(path)
			if err != nil {
				return err
			}
			loaded = append(loaded, ls...)
			continue
		}
		l, err := plugin.LoadFile(path)
		if err != nil {
			return err
		}
		loaded = append(loaded, l)
	}

	out := cmd.OutOrStdout()
	failed := 0
	for i := range loaded {
		issues := plugin.Validate(&loaded[i].Plugin)
		for _, issue := range issues {
			fmt.Fprintf(out, "%s: %s\n", loaded[i].Path, issue)
		}
		failed += len(issues)
	}
	if _, err := plugin.Bundle(plugins(loaded)); err != nil {
		fmt.Fprintf(out, "bundle: %s\n", err)
		failed++
	}

	if failed > 0 {
		return fmt.Errorf("%d issues in %d plugin documents", failed, len(loaded))
	}
	fmt.Fprintf(out, "%d plugin documents valid\n", len(loaded))
	return nil
}
