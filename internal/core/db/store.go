package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Store persists the three things the evaluator keeps between requests:
 *
 *   plugins      imported plugin documents, keyed by plugin id, stored as
 *                JSON with the loader's content hash
 *   evaluations  batch and formula reports per project reference
 *   api_keys     HMAC-hashed keys checked by internal/core/auth
 *
 * All access goes through named queries; see queries/*.sql.
 */

// Store wraps the named queries with typed operations.
type Store struct {
	q *Queries
}

// NewStore creates a store over loaded queries.
func NewStore(q *Queries) *Store {
	return &Store{q: q}
}

// PluginRecord is one registered plugin.
type PluginRecord struct {
	ID          string       `db:"plugin_id"`
	Name        string       `db:"name"`
	Area        string       `db:"area"`
	Version     string       `db:"version"`
	ContentHash string       `db:"content_hash"`
	Document    []byte       `db:"document"`
	RuleCount   int          `db:"rule_count"`
	ImportedAt  time.Time    `db:"imported_at"`
	Plugin      types.Plugin `db:"-"`
}

// SavePlugin registers p under its id. An existing plugin with the same
// content hash is left untouched and changed is false.
func (s *Store) SavePlugin(ctx context.Context, p *types.Plugin, hash string) (changed bool, err error) {
	existing, err := s.GetPlugin(ctx, p.ID)
	switch {
	case err == nil && existing.ContentHash == hash:
		return false, nil
	case err != nil && !errors.Is(err, types.ErrNotFound):
		return false, err
	}

	doc, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("encode plugin %s: %w", p.ID, err)
	}
	_, err = s.q.ExecContext(ctx, "upsert-plugin",
		p.ID, p.Name, p.Area, p.Version, hash, string(doc),
		len(p.Rules)+len(p.ElectricalRules), time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("save plugin %s: %w", p.ID, err)
	}
	return true, nil
}

// GetPlugin returns the plugin registered under id, or ErrNotFound.
func (s *Store) GetPlugin(ctx context.Context, id string) (*PluginRecord, error) {
	var rec PluginRecord
	err := s.q.GetContext(ctx, "get-plugin", &rec, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plugin %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plugin %s: %w", id, err)
	}
	if err := json.Unmarshal(rec.Document, &rec.Plugin); err != nil {
		return nil, fmt.Errorf("decode plugin %s: %w", id, err)
	}
	return &rec, nil
}

// LoadPlugins returns every registered plugin ordered by id.
func (s *Store) LoadPlugins(ctx context.Context) ([]PluginRecord, error) {
	var recs []PluginRecord
	if err := s.q.SelectContext(ctx, "list-plugins", &recs); err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}
	for i := range recs {
		if err := json.Unmarshal(recs[i].Document, &recs[i].Plugin); err != nil {
			return nil, fmt.Errorf("decode plugin %s: %w", recs[i].ID, err)
		}
	}
	return recs, nil
}

// DeletePlugin removes a plugin; ErrNotFound if it was not registered.
func (s *Store) DeletePlugin(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "delete-plugin", id)
	if err != nil {
		return fmt.Errorf("delete plugin %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("plugin %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// EvaluationRecord is one stored evaluation.
type EvaluationRecord struct {
	ID               string    `db:"evaluation_id"`
	ProjectRef       string    `db:"project_ref"`
	TotalActiveRules int       `db:"total_active_rules"`
	RulesEvaluated   int       `db:"rules_evaluated"`
	RulesFired       int       `db:"rules_fired"`
	RulesSkipped     int       `db:"rules_skipped"`
	Coverage         float64   `db:"coverage"`
	Raw              []byte    `db:"report"`
	EvaluatedAt      time.Time `db:"evaluated_at"`

	Report   types.BatchReport     `db:"-"`
	Formulas []types.FormulaReport `db:"-"`
}

type storedReport struct {
	Batch    *types.BatchReport    `json:"batch"`
	Formulas []types.FormulaReport `json:"formulas,omitempty"`
}

// SaveReport records a batch report, and the formula reports produced
// alongside it, under projectRef.
func (s *Store) SaveReport(ctx context.Context, projectRef string, report *types.BatchReport, formulas []types.FormulaReport) error {
	raw, err := json.Marshal(storedReport{Batch: report, Formulas: formulas})
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.EvaluationID, err)
	}
	_, err = s.q.ExecContext(ctx, "insert-evaluation",
		string(report.EvaluationID), projectRef,
		report.TotalActiveRules, report.RulesEvaluated, report.RulesFired, report.RulesSkipped,
		report.Coverage, string(raw), report.EvaluatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", report.EvaluationID, err)
	}
	return nil
}

// GetReport returns a stored evaluation, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id types.EvaluationID) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	err := s.q.GetContext(ctx, "get-evaluation", &rec, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get evaluation %s: %w", id, err)
	}
	if err := rec.decode(); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListReports returns up to limit evaluations of projectRef, newest first.
func (s *Store) ListReports(ctx context.Context, projectRef string, limit int) ([]EvaluationRecord, error) {
	var recs []EvaluationRecord
	if err := s.q.SelectContext(ctx, "list-evaluations-by-project", &recs, projectRef, limit); err != nil {
		return nil, fmt.Errorf("list evaluations for %s: %w", projectRef, err)
	}
	for i := range recs {
		if err := recs[i].decode(); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (r *EvaluationRecord) decode() error {
	var stored storedReport
	if err := json.Unmarshal(r.Raw, &stored); err != nil {
		return fmt.Errorf("decode evaluation %s: %w", r.ID, err)
	}
	if stored.Batch != nil {
		r.Report = *stored.Batch
	}
	r.Formulas = stored.Formulas
	return nil
}

// InsertAPIKey stores the HMAC hash of a newly issued key.
func (s *Store) InsertAPIKey(ctx context.Context, id, name, secretID string, keyHash []byte) error {
	if _, err := s.q.ExecContext(ctx, "insert-api-key", id, name, secretID, keyHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert api key %s: %w", id, err)
	}
	return nil
}

// RevokeAPIKey marks a key revoked; ErrNotFound if it does not exist or is
// already revoked.
func (s *Store) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("api key %s: %w", id, types.ErrNotFound)
	}
	return nil
}
