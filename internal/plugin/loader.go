// Package plugin loads rule plugin documents, validates them statically and
// merges several plugins into one evaluation set.
package plugin

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/solatis/regcheck/internal/types"
)

/*
 * Plugin document loading.
 *
 * A plugin document is YAML (JSON is accepted as the YAML subset it is)
 * carrying the fields of types.Plugin. Rules are decoded through a local
 * document type so an omitted "enabled" key defaults to true. Nested values
 * (condition values, table contents, parameters) are normalised to
 * map[string]any and []any so they resolve and serialise like JSON input.
 *
 * Each load records a "sha256:<hex>" digest of the raw bytes; the registry
 * uses it to skip re-importing unchanged documents.
 */

// Extensions recognised by LoadDir.
var Extensions = []string{".yaml", ".yml", ".json"}

// Loaded is one parsed plugin document.
type Loaded struct {
	Plugin types.Plugin
	Path   string
	Hash   string
}

type document struct {
	types.Plugin `yaml:",inline"`
	Rules        []ruleDocument `yaml:"rules"`
}

type ruleDocument struct {
	types.Rule `yaml:",inline"`
	Enabled    *bool `yaml:"enabled"`
}

// LoadFile reads and parses one plugin document.
func LoadFile(path string) (Loaded, error) {
	// #nosec G304 -- path comes from operator-configured plugin directory.
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, fmt.Errorf("read plugin %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse plugin %s: %w", path, err)
	}
	return Loaded{Plugin: p, Path: path, Hash: Digest(data)}, nil
}

// LoadDir loads every plugin document directly under dir, in file name order.
func LoadDir(dir string) ([]Loaded, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read plugin dir %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !hasExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Loaded, 0, len(names))
	for _, name := range names {
		l, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// Parse decodes a plugin document.
func Parse(data []byte) (types.Plugin, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return types.Plugin{}, err
	}

	p := doc.Plugin
	p.Rules = make([]types.Rule, len(doc.Rules))
	for i, rd := range doc.Rules {
		r := rd.Rule
		r.Enabled = rd.Enabled == nil || *rd.Enabled
		r.Conditions = normalizeConditions(r.Conditions)
		r.Exclusions = normalizeConditions(r.Exclusions)
		p.Rules[i] = r
	}
	for i := range p.LookupTables {
		p.LookupTables[i].Values = normalizeMap(p.LookupTables[i].Values)
	}
	for i := range p.ComputedFields {
		c := &p.ComputedFields[i].Computation
		c.IfTrue = Normalize(c.IfTrue)
		c.IfFalse = Normalize(c.IfFalse)
		for j := range c.Tiers {
			c.Tiers[j].Result = Normalize(c.Tiers[j].Result)
		}
	}
	for i := range p.ElectricalRules {
		p.ElectricalRules[i].LookupTables = normalizeMap(p.ElectricalRules[i].LookupTables)
		p.ElectricalRules[i].Parameters = normalizeMap(p.ElectricalRules[i].Parameters)
	}
	return p, nil
}

// Digest returns the "sha256:<hex>" content hash of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func hasExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func normalizeConditions(conds []types.Condition) []types.Condition {
	for i := range conds {
		conds[i].Value = Normalize(conds[i].Value)
	}
	return conds
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}

// Normalize converts YAML-decoded values into their JSON-shaped equivalents:
// map[any]any becomes map[string]any (keys formatted with %v) and slices are
// normalised element-wise.
func Normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalizeMap(t)
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	default:
		return v
	}
}
