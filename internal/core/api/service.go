// Package api implements the regcheck.v1.Evaluator gRPC service.
//
// Requests and responses are google.protobuf.Struct documents; see desc.go
// for the service descriptor and evaluate.go for the handlers.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/solatis/regcheck/internal/core/config"
	"github.com/solatis/regcheck/internal/core/db"
	"github.com/solatis/regcheck/internal/plugin"
	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// EvaluatorService implements EvaluatorServer.
// Thin orchestration layer over the plugin catalogue, rules engine and store.
type EvaluatorService struct {
	engine *rules.Engine
	store  *db.Store // nil disables evaluation history
	cfg    *config.EvaluatorConfig
	logger *slog.Logger

	mu       sync.RWMutex
	plugins  []types.Plugin
	all      *plugin.Set
	loadedAt time.Time
}

// NewEvaluatorService creates the service with an empty catalogue; call Load
// or Reload before serving.
func NewEvaluatorService(cfg *config.EvaluatorConfig, engine *rules.Engine, store *db.Store, logger *slog.Logger) (*EvaluatorService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	empty, _ := plugin.Bundle(nil)
	return &EvaluatorService{
		engine: engine,
		store:  store,
		cfg:    cfg,
		logger: logger,
		all:    empty,
	}, nil
}

// Load replaces the plugin catalogue. Every plugin must validate and the set
// must bundle without id conflicts; on error the previous catalogue stays.
func (s *EvaluatorService) Load(plugins []types.Plugin) error {
	for i := range plugins {
		if err := plugin.Err(plugin.Validate(&plugins[i])); err != nil {
			return err
		}
	}
	all, err := plugin.Bundle(plugins)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.plugins = plugins
	s.all = all
	s.loadedAt = time.Now().UTC()

	s.logger.Info("plugin catalogue loaded",
		"plugins", len(plugins),
		"rules", len(all.Input.Rules),
		"formula_rules", len(all.ElectricalRules),
	)
	return nil
}

// Reload loads the catalogue from the store.
func (s *EvaluatorService) Reload(ctx context.Context) error {
	if s.store == nil {
		return errNoHistory
	}
	recs, err := s.store.LoadPlugins(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errStore, err)
	}
	plugins := make([]types.Plugin, len(recs))
	for i, r := range recs {
		plugins[i] = r.Plugin
	}
	return s.Load(plugins)
}

// Plugins returns the ids of the loaded plugins.
func (s *EvaluatorService) Plugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.all.PluginIDs...)
}

// selectSet bundles the requested plugins, in catalogue order, plus an
// optional inline plugin. No ids and no inline plugin selects the whole
// catalogue.
func (s *EvaluatorService) selectSet(ids []string, inline *types.Plugin) (*plugin.Set, error) {
	s.mu.RLock()
	all, loaded := s.all, s.plugins
	s.mu.RUnlock()

	var set *plugin.Set
	if len(ids) == 0 && inline == nil {
		set = all
	} else {
		var chosen []types.Plugin
		if len(ids) > 0 {
			want := make(map[string]bool, len(ids))
			for _, id := range ids {
				want[id] = true
			}
			for _, p := range loaded {
				if want[p.ID] {
					chosen = append(chosen, p)
					delete(want, p.ID)
				}
			}
			for _, id := range ids {
				if want[id] {
					return nil, fmt.Errorf("plugin %q: %w", id, types.ErrNotFound)
				}
			}
		}
		if inline != nil {
			chosen = append(chosen, *inline)
		}
		var err error
		if set, err = plugin.Bundle(chosen); err != nil {
			return nil, err
		}
	}

	if n := len(set.Input.Rules) + len(set.ElectricalRules); n > s.cfg.MaxRules {
		return nil, fmt.Errorf("%w: %d rules selected, limit %d", errTooManyRules, n, s.cfg.MaxRules)
	}
	return set, nil
}

// bounded runs fn under the request timeout. The engine does not observe
// ctx, so on timeout fn keeps running to completion in the background and
// its result is dropped.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func() T) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan T, 1)
	go func() { done <- fn() }()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
