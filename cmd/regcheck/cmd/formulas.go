package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/core/api"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/formula"
	"github.com/solatis/regcheck/internal/types"
)

var formulasCmd = &cobra.Command{
	Use:   "formulas DATA",
	Short: "Evaluate engineering formulas against a data record",
	Long: `Evaluates the formula rules of the plugin catalogue, plus any --formula
given on the command line, against a YAML or JSON data record.

  regcheck formulas --formula "IDn_mA <= 30" --formula "S_pe >= 16" data.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runFormulas,
}

func init() {
	rootCmd.AddCommand(formulasCmd)
	formulasCmd.Flags().String("plugins-dir", "", "plugin directory (default: evaluator.plugins_dir)")
	formulasCmd.Flags().StringArray("formula", nil, "ad-hoc formula; skips the catalogue unless --plugins-dir is set")
	formulasCmd.Flags().String("severity", string(types.SeverityWarning), "severity of ad-hoc formulas")
}

func runFormulas(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	data, err := readRecord(args[0])
	if err != nil {
		return err
	}

	adhoc, _ := cmd.Flags().GetStringArray("formula")
	severity, _ := cmd.Flags().GetString("severity")
	if !types.Severity(severity).Valid() {
		return fmt.Errorf("invalid --severity %q", severity)
	}

	var tables []types.LookupTable
	var rs []types.ElectricalRule
	if len(adhoc) == 0 || cmd.Flags().Changed("plugins-dir") {
		var store *db.Store
		if dbURL != "" {
			database, queries, err := openDB(cmd, true)
			if err != nil {
				return err
			}
			defer database.Close()
			store = db.NewStore(queries)
		}
		set, err := catalogue(ctx, cmd, cfg.PluginsDir, store)
		if err != nil {
			return err
		}
		tables = set.Input.LookupTables
		rs = append(rs, set.ElectricalRules...)
	}
	for i, f := range adhoc {
		if err := formula.Check(f); err != nil {
			return fmt.Errorf("--formula %q: %w", f, err)
		}
		rs = append(rs, types.ElectricalRule{
			ID:       fmt.Sprintf("cli-%d", i+1),
			Formula:  f,
			Severity: types.Severity(severity),
		})
	}

	summary := formula.NewEvaluator(tables, logger).EvaluateAll(rs, data)
	return printJSON(cmd.OutOrStdout(), api.FormulaSummary{Summary: summary, Coverage: summary.Coverage()})
}
