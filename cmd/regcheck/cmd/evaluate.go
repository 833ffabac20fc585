package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/solatis/regcheck/internal/core/api"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/formula"
	"github.com/solatis/regcheck/internal/plugin"
	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate RECORD",
	Short: "Evaluate a project record and print the report as JSON",
	Long: `Evaluates a YAML or JSON project record ("-" reads stdin) against the
plugins in --plugins-dir, or against the imported catalogue when --db-url is
given without --plugins-dir. With --db-url and --project-ref the report is
also stored.`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().String("plugins-dir", "", "plugin directory (default: evaluator.plugins_dir)")
	evaluateCmd.Flags().String("project-ref", "", "project reference to store the report under")
	evaluateCmd.Flags().Int("workers", 4, "rule evaluation workers")
	evaluateCmd.Flags().Bool("fail-on-critical", false, "exit non-zero when a critical finding or formula failure is reported")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	record, err := readRecord(args[0])
	if err != nil {
		return err
	}

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
	if n := len(set.Input.Rules) + len(set.ElectricalRules); n > cfg.MaxRules {
		return fmt.Errorf("%d rules selected, limit %d (evaluator.max_rules)", n, cfg.MaxRules)
	}

	engine := rules.NewEngine(logger, cfg.Workers)
	resp := api.ProjectResponse{
		Report:  engine.EvaluateBatch(set.ForRecord(record), rules.NewCounter()),
		Plugins: set.PluginIDs,
	}
	if len(set.ElectricalRules) > 0 {
		summary := formula.NewEvaluator(set.Input.LookupTables, logger).EvaluateAll(set.ElectricalRules, record)
		resp.Formulas = &api.FormulaSummary{Summary: summary, Coverage: summary.Coverage()}
	}

	projectRef, _ := cmd.Flags().GetString("project-ref")
	if store != nil && projectRef != "" {
		var formulas []types.FormulaReport
		if resp.Formulas != nil {
			formulas = resp.Formulas.Reports
		}
		if err := store.SaveReport(ctx, projectRef, resp.Report, formulas); err != nil {
			return err
		}
		resp.Stored = true
	}

	if err := printJSON(cmd.OutOrStdout(), resp); err != nil {
		return err
	}

	if failOn, _ := cmd.Flags().GetBool("fail-on-critical"); failOn {
		critical := 0
		for _, f := range resp.Report.Findings {
			if f.Severity == types.SeverityCritical {
				critical++
			}
		}
		if resp.Formulas != nil {
			critical += resp.Formulas.FailedBySeverity[types.SeverityCritical]
		}
		if critical > 0 {
			return fmt.Errorf("%d critical non-compliances", critical)
		}
	}
	return nil
}

// catalogue bundles the plugins from --plugins-dir, or from the store when
// only a database is given.
func catalogue(ctx context.Context, cmd *cobra.Command, defaultDir string, store *db.Store) (*plugin.Set, error) {
	dir, _ := cmd.Flags().GetString("plugins-dir")
	if dir == "" && store != nil {
		recs, err := store.LoadPlugins(ctx)
		if err != nil {
			return nil, err
		}
		ps := make([]types.Plugin, len(recs))
		for i, r := range recs {
			ps[i] = r.Plugin
		}
		return plugin.Bundle(ps)
	}
	if dir == "" {
		dir = defaultDir
	}
	loaded, err := loadPluginDir(dir)
	if err != nil {
		return nil, err
	}
	return plugin.Bundle(plugins(loaded))
}
