package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/solatis/regcheck/internal/types"
)

// openTestStore opens a migrated sqlite database in a temp directory.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	q, err := LoadQueries(conn)
	if err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}
	return NewStore(q)
}

func TestDataSourceFor(t *testing.T) {
	tests := []struct {
		url        string
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{"sqlite://regcheck.db", "sqlite3", "regcheck.db?_busy_timeout=5000", false},
		{"sqlite:///var/lib/regcheck.db", "sqlite3", "/var/lib/regcheck.db?_busy_timeout=5000", false},
		{"sqlite://regcheck.db?_busy_timeout=100", "sqlite3", "regcheck.db?_busy_timeout=100", false},
		{"postgres://u:p@localhost/rc", "postgres", "postgres://u:p@localhost/rc", false},
		{"postgresql://u:p@localhost/rc", "postgres", "postgresql://u:p@localhost/rc", false},
		{"mysql://localhost/rc", "", "", true},
		{"sqlite://", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			driver, dsn, err := dataSourceFor(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got driver=%q dsn=%q", driver, dsn)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if driver != tt.wantDriver || dsn != tt.wantDSN {
				t.Errorf("got (%q, %q), want (%q, %q)", driver, dsn, tt.wantDriver, tt.wantDSN)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x INT);\n\n-- second\nCREATE INDEX i ON a (x);\n"
	got := splitStatements(sql)
	if len(got) != 2 {
		t.Fatalf("got %d statements: %q", len(got), got)
	}
	if got[0] != "CREATE TABLE a (x INT)" {
		t.Errorf("first statement = %q", got[0])
	}
}

func TestMigrateUp_Idempotent(t *testing.T) {
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	if err := RequireMigrated(conn); err == nil {
		t.Fatal("RequireMigrated should fail on an empty database")
	}
	for i := 0; i < 2; i++ {
		if err := MigrateUp(conn); err != nil {
			t.Fatalf("MigrateUp run %d: %v", i+1, err)
		}
	}
	if err := RequireMigrated(conn); err != nil {
		t.Fatalf("RequireMigrated: %v", err)
	}

	statuses, err := MigrateStatus(conn)
	if err != nil {
		t.Fatalf("MigrateStatus: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d migrations, want 2", len(statuses))
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("migration %s not recorded as applied", s.ID)
		}
	}
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	conn, err := Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	if err := MigrateUp(conn); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if _, err := conn.Exec("UPDATE migrations SET checksum = 'tampered' WHERE migration_id = '001_initial_schema.sql'"); err != nil {
		t.Fatalf("tamper: %v", err)
	}
	if err := MigrateUp(conn); err == nil {
		t.Fatal("expected checksum validation error")
	}
}

func testPlugin() *types.Plugin {
	return &types.Plugin{
		ID:      "fire-safety",
		Name:    "Fire safety",
		Area:    "fire",
		Version: "1.0.0",
		Regulations: []types.Regulation{
			{ID: "reg-cte-si", ShortRef: "CTE DB-SI"},
		},
		Rules: []types.Rule{{
			ID:           "FIRE-001",
			RegulationID: "reg-cte-si",
			Severity:     types.SeverityCritical,
			Conditions: []types.Condition{
				{Field: "fire.evacuationWidth", Operator: "<", Value: 0.8},
			},
			Enabled: true,
		}},
		ElectricalRules: []types.ElectricalRule{
			{ID: "ELEC-1", Formula: "rcd_sensitivity <= 30", Severity: types.SeverityWarning},
		},
	}
}

func TestStore_SavePlugin(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p := testPlugin()

	changed, err := s.SavePlugin(ctx, p, "sha256:aaa")
	if err != nil {
		t.Fatalf("SavePlugin: %v", err)
	}
	if !changed {
		t.Error("first save should report changed")
	}

	changed, err = s.SavePlugin(ctx, p, "sha256:aaa")
	if err != nil {
		t.Fatalf("SavePlugin (same hash): %v", err)
	}
	if changed {
		t.Error("same hash should not report changed")
	}

	p.Version = "1.1.0"
	changed, err = s.SavePlugin(ctx, p, "sha256:bbb")
	if err != nil {
		t.Fatalf("SavePlugin (new hash): %v", err)
	}
	if !changed {
		t.Error("new hash should report changed")
	}

	rec, err := s.GetPlugin(ctx, "fire-safety")
	if err != nil {
		t.Fatalf("GetPlugin: %v", err)
	}
	if rec.ContentHash != "sha256:bbb" || rec.Version != "1.1.0" {
		t.Errorf("got hash=%s version=%s", rec.ContentHash, rec.Version)
	}
	if rec.RuleCount != 2 {
		t.Errorf("RuleCount = %d, want 2", rec.RuleCount)
	}
	if len(rec.Plugin.Rules) != 1 || !rec.Plugin.Rules[0].Enabled {
		t.Errorf("decoded rules = %+v", rec.Plugin.Rules)
	}
	if rec.Plugin.ElectricalRules[0].Formula != "rcd_sensitivity <= 30" {
		t.Errorf("decoded formula = %q", rec.Plugin.ElectricalRules[0].Formula)
	}
	if rec.ImportedAt.IsZero() {
		t.Error("ImportedAt not set")
	}
}

func TestStore_PluginNotFound(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.GetPlugin(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetPlugin: got %v, want ErrNotFound", err)
	}
	if err := s.DeletePlugin(ctx, "missing"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("DeletePlugin: got %v, want ErrNotFound", err)
	}
}

func TestStore_LoadAndDeletePlugins(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a := testPlugin()
	b := testPlugin()
	b.ID = "accessibility"
	b.Area = "accessibility"
	for _, p := range []*types.Plugin{a, b} {
		if _, err := s.SavePlugin(ctx, p, "sha256:"+p.ID); err != nil {
			t.Fatalf("SavePlugin %s: %v", p.ID, err)
		}
	}

	recs, err := s.LoadPlugins(ctx)
	if err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if len(recs) != 2 || recs[0].ID != "accessibility" || recs[1].ID != "fire-safety" {
		t.Fatalf("LoadPlugins order: %+v", recs)
	}
	if recs[0].Plugin.Area != "accessibility" {
		t.Errorf("decoded area = %q", recs[0].Plugin.Area)
	}

	if err := s.DeletePlugin(ctx, "accessibility"); err != nil {
		t.Fatalf("DeletePlugin: %v", err)
	}
	recs, err = s.LoadPlugins(ctx)
	if err != nil {
		t.Fatalf("LoadPlugins: %v", err)
	}
	if len(recs) != 1 {
		t.Errorf("got %d plugins after delete, want 1", len(recs))
	}
}

func testReport(at time.Time) *types.BatchReport {
	return &types.BatchReport{
		EvaluationID:     types.NewEvaluationID(),
		TotalActiveRules: 4,
		RulesEvaluated:   3,
		RulesFired:       1,
		RulesSkipped:     1,
		Findings: []types.Finding{{
			ID:           "F-0001",
			SourceRuleID: "FIRE-001",
			Area:         "fire",
			Severity:     types.SeverityCritical,
		}},
		RegulationsUsed:    []string{"CTE DB-SI"},
		RegulationsSkipped: []string{},
		Coverage:           75,
		EvaluatedAt:        at,
	}
}

func TestStore_Reports(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := testReport(base)
	second := testReport(base.Add(time.Hour))
	other := testReport(base)

	formulas := []types.FormulaReport{{RuleID: "ELEC-1", Passed: false, Severity: types.SeverityWarning}}
	if err := s.SaveReport(ctx, "proj-1", first, formulas); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.SaveReport(ctx, "proj-1", second, nil); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	if err := s.SaveReport(ctx, "proj-2", other, nil); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	rec, err := s.GetReport(ctx, first.EvaluationID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if rec.ProjectRef != "proj-1" || rec.Coverage != 75 || rec.RulesFired != 1 {
		t.Errorf("unexpected record columns: %+v", rec)
	}
	if len(rec.Report.Findings) != 1 || rec.Report.Findings[0].SourceRuleID != "FIRE-001" {
		t.Errorf("decoded findings = %+v", rec.Report.Findings)
	}
	if len(rec.Formulas) != 1 || rec.Formulas[0].RuleID != "ELEC-1" {
		t.Errorf("decoded formulas = %+v", rec.Formulas)
	}
	if !rec.EvaluatedAt.Equal(base) {
		t.Errorf("EvaluatedAt = %v, want %v", rec.EvaluatedAt, base)
	}

	list, err := s.ListReports(ctx, "proj-1", 10)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d reports, want 2", len(list))
	}
	if list[0].ID != string(second.EvaluationID) {
		t.Errorf("newest first: got %s, want %s", list[0].ID, second.EvaluationID)
	}

	list, err = s.ListReports(ctx, "proj-1", 1)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("limit ignored: got %d", len(list))
	}

	if _, err := s.GetReport(ctx, types.NewEvaluationID()); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("GetReport missing: got %v, want ErrNotFound", err)
	}
}

func TestStore_RevokeAPIKey(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if err := s.InsertAPIKey(ctx, "key-1", "ci", "0123456789abcdef0123456789abcdef", []byte{1, 2, 3}); err != nil {
		t.Fatalf("InsertAPIKey: %v", err)
	}
	if err := s.RevokeAPIKey(ctx, "key-1"); err != nil {
		t.Fatalf("RevokeAPIKey: %v", err)
	}
	if err := s.RevokeAPIKey(ctx, "key-1"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("second revoke: got %v, want ErrNotFound", err)
	}
}
