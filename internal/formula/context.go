// internal/formula/context.go
package formula

import (
	"sort"
	"strings"

	"github.com/solatis/regcheck/internal/rules"
	"github.com/solatis/regcheck/internal/types"
)

// Aliases maps formula symbols to the canonical project keys that may carry
// their value, in preference order. Formula authors write regulation
// notation (IDn_mA, S_fase); intake produces descriptive keys.
var Aliases = map[string][]string{
	// protective devices
	"IDn_mA": {"rcdSensitivity", "rcdSensitivity_mA"},
	"IDn":    {"rcdSensitivity", "rcdSensitivity_mA"},
	"I_dn":   {"rcdSensitivity"},
	"In":     {"nominalCurrent", "breakerRating", "protectionRating"},
	"I2":     {"conventionalTrippingCurrent", "trippingCurrent"},
	"Ia":     {"disconnectionCurrent", "trippingCurrent"},

	// currents
	"IB":           {"designCurrent", "loadCurrent"},
	"Ib":           {"designCurrent", "loadCurrent"},
	"Iz":           {"ampacity", "currentCapacity", "admissibleCurrent"},
	"Iz_base":      {"baseAmpacity", "ampacity"},
	"Iz_corrected": {"correctedAmpacity"},
	"Icc":          {"shortCircuitCurrent", "faultCurrent"},
	"Ik":           {"shortCircuitCurrent", "faultCurrent"},
	"I":            {"faultCurrent", "shortCircuitCurrent"},
	"I_leak":       {"leakageCurrent"},
	"I_fuga":       {"leakageCurrent"},

	// conductors
	"S":         {"conductorSection"},
	"S_fase":    {"conductorSection", "phaseSection"},
	"S_phase":   {"conductorSection", "phaseSection"},
	"S_pe":      {"peSection", "protectiveConductorSection"},
	"S_PE":      {"peSection", "protectiveConductorSection"},
	"S_neutral": {"neutralSection"},
	"S_neutro":  {"neutralSection"},
	"S_N":       {"neutralSection"},
	"material":  {"conductorMaterial", "material"},
	"L":         {"length", "circuitLength"},

	// installation conditions
	"temp_ambient":        {"ambientTemperature", "temperature"},
	"insulation_type":     {"insulationType", "insulation"},
	"installation_method": {"installationMethod", "method"},
	"grouping":            {"groupedCircuits", "circuitsGrouped"},

	// earthing
	"RA": {"earthResistance", "earthingResistance"},
	"RE": {"earthResistance", "earthingResistance"},
	"RB": {"neutralEarthResistance", "systemEarthResistance"},
	"Uo": {"nominalVoltageToEarth", "phaseVoltage"},
	"U":  {"nominalVoltage", "voltage"},
	"t":  {"disconnectionTime", "tripTime", "faultDuration"},
	"k":  {"kFactor"},

	// booleans and ratings
	"has_rcd":       {"hasRcd", "rcdInstalled"},
	"spd_installed": {"hasSpd", "spdInstalled"},
	"IP":            {"ipRating", "ip"},
	"voltage_drop":  {"voltageDrop"},
	"P":             {"power", "contractedPower"},
}

// Context resolves formula symbols against a project record and a rule's
// parameters. Lookup order: exact key, aliases, parameters.
type Context struct {
	values map[string]any
	params map[string]any
}

// NewContext flattens record (dotted and shallow names) for symbol lookup.
func NewContext(record types.Record, params map[string]any) *Context {
	return &Context{values: rules.Flatten(record), params: params}
}

// Value returns the raw value bound to name.
func (c *Context) Value(name string) (any, bool) {
	if v, ok := c.values[name]; ok {
		return v, true
	}
	for _, alias := range Aliases[name] {
		if v, ok := c.values[alias]; ok {
			return v, true
		}
	}
	if v, ok := c.params[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// Number returns the numeric value bound to name. Numeric strings count.
func (c *Context) Number(name string) (float64, bool) {
	v, ok := c.Value(name)
	if !ok {
		return 0, false
	}
	return rules.ParseNumber(v)
}

// Text returns the value bound to name rendered as a string.
func (c *Context) Text(name string) (string, bool) {
	v, ok := c.Value(name)
	if !ok {
		return "", false
	}
	return rules.FormatValue(v), true
}

// Param returns a rule parameter without consulting the record.
func (c *Context) Param(name string) (any, bool) {
	v, ok := c.params[name]
	return v, ok && v != nil
}

// Missing returns the names in vars that do not resolve to a number, sorted.
func (c *Context) Missing(vars []string) []string {
	var out []string
	for _, v := range vars {
		if _, ok := c.Number(v); !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// resolver adapts Context for mathexpr.
func (c *Context) resolver(name string) (float64, bool) {
	return c.Number(name)
}

// argument resolves a lookup argument: quoted literal, numeric literal, or symbol.
func (c *Context) argument(arg string) (any, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, false
	}
	if unq, ok := unquote(arg); ok {
		return unq, true
	}
	if n, ok := rules.ParseNumber(arg); ok {
		return n, true
	}
	return c.Value(arg)
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return "", false
}
