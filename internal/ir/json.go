package ir

import (
	"encoding/json"
	"fmt"
)

// UnmarshalJSON decodes a SetDef, keeping element values untyped.
func (s *SetDef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Elements    json.RawMessage `json:"elements"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Name = raw.Name
	s.Description = raw.Description
	s.Elements = nil
	if len(raw.Elements) == 0 {
		return nil
	}
	v, err := DecodeJSON(raw.Elements)
	if err != nil {
		return fmt.Errorf("set %q elements: %w", raw.Name, err)
	}
	switch list := v.(type) {
	case List:
		s.Elements = []Value(list)
	case Null:
	default:
		return fmt.Errorf("set %q elements: want array, got %T", raw.Name, v)
	}
	return nil
}

// UnmarshalJSON decodes a ParamDef, keeping key order in Values.
func (p *ParamDef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string          `json:"name"`
		Indices     []string        `json:"indices"`
		Values      json.RawMessage `json:"values"`
		Description string          `json:"description"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Indices = raw.Indices
	p.Description = raw.Description
	p.Values = Null{}
	if len(raw.Values) == 0 {
		return nil
	}
	v, err := DecodeJSON(raw.Values)
	if err != nil {
		return fmt.Errorf("param %q values: %w", raw.Name, err)
	}
	p.Values = v
	return nil
}

// UnmarshalModel decodes the wire format produced by json.Marshal(*ModelIR).
// It performs no schema checks; untrusted input goes through the adapter.
func UnmarshalModel(data []byte) (*ModelIR, error) {
	var m ModelIR
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for i := range m.Vars {
		if m.Vars[i].VarType == "" {
			m.Vars[i].VarType = Continuous
		}
	}
	normalizeSlices(&m)
	return &m, nil
}

// normalizeSlices replaces nil slices with empty ones so the wire form
// always carries arrays.
func normalizeSlices(m *ModelIR) {
	if m.Sets == nil {
		m.Sets = []SetDef{}
	}
	if m.Params == nil {
		m.Params = []ParamDef{}
	}
	if m.Vars == nil {
		m.Vars = []VarDef{}
	}
	if m.Constraints == nil {
		m.Constraints = []ConstraintDef{}
	}
	for i := range m.Sets {
		if m.Sets[i].Elements == nil {
			m.Sets[i].Elements = []Value{}
		}
	}
	for i := range m.Params {
		if m.Params[i].Indices == nil {
			m.Params[i].Indices = []string{}
		}
	}
	for i := range m.Vars {
		if m.Vars[i].Indices == nil {
			m.Vars[i].Indices = []string{}
		}
	}
}

// Dict converts the model into an ordered Value tree, the ir_dict shape
// recorded in pipeline results.
func (m *ModelIR) Dict() (*Dict, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	v, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	d, ok := v.(*Dict)
	if !ok {
		return nil, fmt.Errorf("model encoded as %T", v)
	}
	return d, nil
}
