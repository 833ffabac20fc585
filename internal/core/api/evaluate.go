package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/regcheck/internal/core/auth"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/formula"
	"github.com/solatis/regcheck/internal/plugin"
	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// ProjectRequest is the EvaluateProject request document.
type ProjectRequest struct {
	ProjectRef string       `json:"projectRef"`
	Record     types.Record `json:"record"`

	// Plugins restricts evaluation to these catalogue plugins.
	Plugins []string `json:"plugins,omitempty"`

	// Definitions is an inline plugin document evaluated alongside the
	// selected plugins; it is validated like an imported one.
	Definitions json.RawMessage `json:"definitions,omitempty"`
}

// FormulaSummary is formula.Summary with its coverage.
type FormulaSummary struct {
	formula.Summary
	Coverage float64 `json:"coverage"`
}

// ProjectResponse is the EvaluateProject response document.
type ProjectResponse struct {
	Report   *types.BatchReport `json:"report"`
	Formulas *FormulaSummary    `json:"formulas,omitempty"`
	Plugins  []string           `json:"plugins"`
	Stored   bool               `json:"stored"`
}

// FormulaRequest is the EvaluateFormulas request document. Rules are
// evaluated in addition to the selected plugins' formula rules; with rules
// given and no plugins, only the rules are evaluated.
type FormulaRequest struct {
	Data    types.Record           `json:"data"`
	Rules   []types.ElectricalRule `json:"rules,omitempty"`
	Plugins []string               `json:"plugins,omitempty"`
}

// EvaluateProject runs the rule batch and the formula rules of the selected
// plugins against one project record. With a store configured and a
// projectRef given, the result is recorded.
func (s *EvaluatorService) EvaluateProject(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ProjectRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, statusFor(err)
	}
	if req.Record == nil {
		return nil, statusFor(fmt.Errorf("%w: record is required", errBadRequest))
	}

	var inline *types.Plugin
	if len(req.Definitions) > 0 {
		p, err := plugin.Parse(req.Definitions)
		if err != nil {
			return nil, statusFor(fmt.Errorf("%w: definitions: %v", errBadRequest, err))
		}
		if err := plugin.Err(plugin.Validate(&p)); err != nil {
			return nil, statusFor(err)
		}
		inline = &p
	}

	set, err := s.selectSet(req.Plugins, inline)
	if err != nil {
		return nil, statusFor(err)
	}

	resp, err := bounded(ctx, s.cfg.RequestTimeout, func() *ProjectResponse {
		report := s.engine.EvaluateBatch(set.ForRecord(req.Record), rules.NewCounter())
		out := &ProjectResponse{Report: report, Plugins: set.PluginIDs}
		if len(set.ElectricalRules) > 0 {
			summary := formula.NewEvaluator(set.Input.LookupTables, s.logger).EvaluateAll(set.ElectricalRules, req.Record)
			out.Formulas = &FormulaSummary{Summary: summary, Coverage: summary.Coverage()}
		}
		return out
	})
	if err != nil {
		s.logger.Warn("evaluation abandoned", "project_ref", req.ProjectRef, "error", err)
		return nil, statusFor(err)
	}
	if resp.Plugins == nil {
		resp.Plugins = []string{}
	}

	if s.store != nil && req.ProjectRef != "" {
		var formulas []types.FormulaReport
		if resp.Formulas != nil {
			formulas = resp.Formulas.Reports
		}
		if err := s.store.SaveReport(ctx, req.ProjectRef, resp.Report, formulas); err != nil {
			return nil, statusFor(fmt.Errorf("%w: %v", errStore, err))
		}
		resp.Stored = true
	}

	s.logger.Info("project evaluated",
		"client", auth.ClientFromContext(ctx),
		"project_ref", req.ProjectRef,
		"evaluation_id", resp.Report.EvaluationID,
		"findings", len(resp.Report.Findings),
		"stored", resp.Stored,
	)

	out, err := encodeStruct(resp)
	return out, statusFor(err)
}

// EvaluateFormulas evaluates formula rules only.
func (s *EvaluatorService) EvaluateFormulas(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req FormulaRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, statusFor(err)
	}
	if req.Data == nil {
		return nil, statusFor(fmt.Errorf("%w: data is required", errBadRequest))
	}
	for _, r := range req.Rules {
		if r.ID == "" {
			return nil, statusFor(fmt.Errorf("%w: formula rule without id", errBadRequest))
		}
	}

	var tables []types.LookupTable
	var rs []types.ElectricalRule
	if len(req.Plugins) > 0 || len(req.Rules) == 0 {
		set, err := s.selectSet(req.Plugins, nil)
		if err != nil {
			return nil, statusFor(err)
		}
		tables = set.Input.LookupTables
		rs = append(rs, set.ElectricalRules...)
	}
	rs = append(rs, req.Rules...)
	if len(rs) > s.cfg.MaxRules {
		return nil, statusFor(fmt.Errorf("%w: %d formula rules, limit %d", errTooManyRules, len(rs), s.cfg.MaxRules))
	}

	summary, err := bounded(ctx, s.cfg.RequestTimeout, func() formula.Summary {
		return formula.NewEvaluator(tables, s.logger).EvaluateAll(rs, req.Data)
	})
	if err != nil {
		return nil, statusFor(err)
	}

	s.logger.Info("formulas evaluated",
		"client", auth.ClientFromContext(ctx),
		"total", summary.Total,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)

	out, err := encodeStruct(FormulaSummary{Summary: summary, Coverage: summary.Coverage()})
	return out, statusFor(err)
}

// EvaluationResponse is one stored evaluation.
type EvaluationResponse struct {
	EvaluationID string                `json:"evaluationId"`
	ProjectRef   string                `json:"projectRef"`
	EvaluatedAt  time.Time             `json:"evaluatedAt"`
	Report       types.BatchReport     `json:"report"`
	Formulas     []types.FormulaReport `json:"formulas,omitempty"`
}

// GetEvaluation returns a stored evaluation by {"evaluationId": ...}.
func (s *EvaluatorService) GetEvaluation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, statusFor(errNoHistory)
	}
	var req struct {
		EvaluationID string `json:"evaluationId"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, statusFor(err)
	}
	id, err := types.ParseEvaluationID(req.EvaluationID)
	if err != nil {
		return nil, statusFor(fmt.Errorf("%w: evaluationId: %v", errBadRequest, err))
	}

	rec, err := s.store.GetReport(ctx, id)
	if err != nil {
		return nil, statusFor(storeErr(err))
	}
	out, err := encodeStruct(evaluationResponse(rec))
	return out, statusFor(err)
}

// defaultListLimit applies when ListEvaluations is given no limit.
const defaultListLimit = 20

// ListEvaluations returns the newest evaluations of {"projectRef": ...,
// "limit": n}.
func (s *EvaluatorService) ListEvaluations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.store == nil {
		return nil, statusFor(errNoHistory)
	}
	var req struct {
		ProjectRef string `json:"projectRef"`
		Limit      int    `json:"limit"`
	}
	if err := decodeStruct(in, &req); err != nil {
		return nil, statusFor(err)
	}
	if req.ProjectRef == "" {
		return nil, statusFor(fmt.Errorf("%w: projectRef is required", errBadRequest))
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	recs, err := s.store.ListReports(ctx, req.ProjectRef, req.Limit)
	if err != nil {
		return nil, statusFor(storeErr(err))
	}
	list := make([]EvaluationResponse, len(recs))
	for i := range recs {
		list[i] = evaluationResponse(&recs[i])
	}
	out, err := encodeStruct(map[string]any{"evaluations": list})
	return out, statusFor(err)
}

func evaluationResponse(rec *db.EvaluationRecord) EvaluationResponse {
	return EvaluationResponse{
		EvaluationID: rec.ID,
		ProjectRef:   rec.ProjectRef,
		EvaluatedAt:  rec.EvaluatedAt,
		Report:       rec.Report,
		Formulas:     rec.Formulas,
	}
}

// storeErr marks store failures UNAVAILABLE unless the record is missing.
func storeErr(err error) error {
	if errors.Is(err, types.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", errStore, err)
}
