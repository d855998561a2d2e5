// Package classifier reads and writes node groups in the Puppet node classifier.
package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"

	"servicenow-cmdb-integration/internal/rule"
)

// Group is a node classifier group. Fields the integration does not touch are
// carried through unchanged so an update never drops classes or variables. The rule
// is read leniently: only its and/or/not structure is decoded, leaves stay raw.
type Group struct {
	ID                string
	Name              string
	Environment       string
	EnvironmentTrumps bool
	Rule              rule.Rule

	extra map[string]json.RawMessage
}

var knownFields = []string{"id", "name", "environment", "environment_trumps", "rule"}

// UnmarshalJSON implements json.Unmarshaler
func (g *Group) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := []struct {
		key string
		dst interface{}
	}{
		{"id", &g.ID},
		{"name", &g.Name},
		{"environment", &g.Environment},
		{"environment_trumps", &g.EnvironmentTrumps},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok || bytes.Equal(v, []byte("null")) {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return fmt.Errorf("invalid group field %q: %w", f.key, err)
		}
	}

	g.Rule = nil
	if v, ok := raw["rule"]; ok {
		r, err := rule.ParseLenient(v)
		if err != nil {
			return fmt.Errorf("invalid rule in group %q: %w", g.Name, err)
		}
		g.Rule = r
	}

	for _, key := range knownFields {
		delete(raw, key)
	}
	g.extra = raw
	return nil
}

// MarshalJSON implements json.Marshaler
func (g Group) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(g.extra)+len(knownFields))
	for k, v := range g.extra {
		out[k] = v
	}
	out["id"] = g.ID
	out["name"] = g.Name
	out["environment"] = g.Environment
	out["environment_trumps"] = g.EnvironmentTrumps
	out["rule"] = rule.ToValue(g.Rule)
	return json.Marshal(out)
}

// WithRule returns a copy of g carrying r.
func (g *Group) WithRule(r rule.Rule) *Group {
	cp := *g
	cp.Rule = r
	return &cp
}
