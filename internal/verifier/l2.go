package verifier

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/nlopt/internal/ir"
)

// Layer2Rules returns the semantic sanity rules in declared order. They
// read names and descriptions only, never parameter values.
func Layer2Rules() []Rule {
	return []Rule{
		&integralityRule{rule{"L2-R1", L2}},
		&directionRule{rule{"L2-R2", L2}},
		&normalizeRule{rule{"L2-R3", L2}},
	}
}

// ---------------------------------------------------------------------------
// L2-R1: continuous variables with discrete cues.

var discreteCue = regexp.MustCompile(`assign|select|choose|open|install|use|route|facility|worker|task|item|node|edge|arc`)

type integralityRule struct{ rule }

type retype struct {
	Var  string     `json:"var"`
	From ir.VarType `json:"from"`
	To   ir.VarType `json:"to"`
	Cue  string     `json:"cue"`
}

func (r *integralityRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var changes []retype
	for _, v := range m.Vars {
		if v.VarType != "" && canonicalVarType(v.VarType) != ir.Continuous {
			continue
		}
		text := strings.ToLower(v.Name + " " + v.Description + " " + strings.Join(v.Indices, " "))
		cue := discreteCue.FindString(text)
		if cue == "" {
			continue
		}
		to := ir.Integer
		if v.LB == 0 && v.UB != nil && *v.UB == 1 {
			to = ir.Binary
		}
		changes = append(changes, retype{Var: v.Name, From: v.VarType, To: to, Cue: cue})
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "integrality",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d continuous variable(s) look discrete", len(changes)),
			Evidence: map[string]any{"vars": changes},
		},
		Data: changes,
	}, nil
}

func (r *integralityRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	changes := d.Data.([]retype)
	for _, c := range changes {
		v := m.Var(c.Var)
		v.VarType = c.To
		if c.To == ir.Binary {
			v.LB, v.UB = 0, ir.Float(1)
		}
	}
	return &Repair{Action: "retype_vars", Details: map[string]any{"vars": changes}}, nil
}

// ---------------------------------------------------------------------------
// L2-R2: equality constraints whose wording asks for an inequality.

var (
	atLeastCue = regexp.MustCompile(`\b(at least|no less|minimum|min)\b`)
	atMostCue  = regexp.MustCompile(`\b(at most|no more|maximum|max|up to|limits?)\b`)
)

type directionRule struct{ rule }

type resense struct {
	Index int         `json:"index"`
	Name  string      `json:"constraint"`
	To    ir.ConSense `json:"to"`
}

func (r *directionRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var changes []resense
	var ambiguous []string
	for i, c := range m.Constraints {
		if canonicalConSense(c.Sense) != ir.EQ {
			continue
		}
		text := spaced(c.Name + " " + c.Description)
		least, most := atLeastCue.MatchString(text), atMostCue.MatchString(text)
		switch {
		case least && most:
			ambiguous = append(ambiguous, c.Name)
		case least:
			changes = append(changes, resense{Index: i, Name: c.Name, To: ir.GE})
		case most:
			changes = append(changes, resense{Index: i, Name: c.Name, To: ir.LE})
		}
	}
	if len(changes) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "direction",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d equality constraint(s) are worded as bounds", len(changes)),
			Evidence: map[string]any{"constraints": changes, "ambiguous": ambiguous},
		},
		Data: changes,
	}, nil
}

func (r *directionRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	changes := d.Data.([]resense)
	for _, c := range changes {
		m.Constraints[c.Index].Sense = c.To
	}
	return &Repair{Action: "relax_equalities", Details: map[string]any{"constraints": changes}}, nil
}

// ---------------------------------------------------------------------------
// L2-R3: token normalization and sense agreement.

var objSenseAliases = map[string]ir.ObjSense{
	"min": ir.SenseMin, "minimize": ir.SenseMin, "minimise": ir.SenseMin,
	"minimum": ir.SenseMin, "minimization": ir.SenseMin,
	"max": ir.SenseMax, "maximize": ir.SenseMax, "maximise": ir.SenseMax,
	"maximum": ir.SenseMax, "maximization": ir.SenseMax,
}

var conSenseAliases = map[string]ir.ConSense{
	"<=": ir.LE, "=<": ir.LE, "<": ir.LE, "\u2264": ir.LE,
	">=": ir.GE, "=>": ir.GE, ">": ir.GE, "\u2265": ir.GE,
	"==": ir.EQ, "=": ir.EQ,
}

var varTypeAliases = map[string]ir.VarType{
	"continuous": ir.Continuous, "real": ir.Continuous, "float": ir.Continuous,
	"integer": ir.Integer, "int": ir.Integer,
	"binary": ir.Binary, "bin": ir.Binary, "bool": ir.Binary, "boolean": ir.Binary,
}

// canonicalConSense maps a sense alias such as "=" to its token. Unknown
// senses come back unchanged.
func canonicalConSense(s ir.ConSense) ir.ConSense {
	if to, ok := conSenseAliases[strings.TrimSpace(string(s))]; ok {
		return to
	}
	return s
}

func canonicalVarType(vt ir.VarType) ir.VarType {
	if to, ok := varTypeAliases[strings.ToLower(strings.TrimSpace(string(vt)))]; ok {
		return to
	}
	return vt
}

func normalizeObjSense(s ir.ObjSense) (ir.ObjSense, bool) {
	n, ok := objSenseAliases[strings.ToLower(strings.TrimSpace(string(s)))]
	return n, ok
}

type normalizeRule struct{ rule }

// normalization is the full target state computed by Detect.
type normalization struct {
	MetaSense      ir.ObjSense           `json:"meta_sense,omitempty"`
	ObjectiveSense ir.ObjSense           `json:"objective_sense,omitempty"`
	ConSenses      map[int]ir.ConSense   `json:"constraint_senses,omitempty"`
	VarTypes       map[string]ir.VarType `json:"vartypes,omitempty"`
	BinaryBounds   []string              `json:"binary_bounds,omitempty"`
	Changes        []string              `json:"changes"`
}

func (r *normalizeRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	n := normalization{ConSenses: map[int]ir.ConSense{}, VarTypes: map[string]ir.VarType{}}

	meta, metaOK := normalizeObjSense(m.Meta.Sense)
	obj, objOK := normalizeObjSense(m.Objective.Sense)
	switch {
	case metaOK && objOK && meta != obj:
		obj = meta
	case !metaOK && objOK && m.Meta.Sense == "":
		meta, metaOK = obj, true
	case metaOK && !objOK && m.Objective.Sense == "":
		obj, objOK = meta, true
	}
	if metaOK && meta != m.Meta.Sense {
		n.MetaSense = meta
		n.Changes = append(n.Changes, fmt.Sprintf("meta.sense %q -> %q", m.Meta.Sense, meta))
	}
	if objOK && obj != m.Objective.Sense {
		n.ObjectiveSense = obj
		n.Changes = append(n.Changes, fmt.Sprintf("objective.sense %q -> %q", m.Objective.Sense, obj))
	}

	for i, c := range m.Constraints {
		if to := canonicalConSense(c.Sense); to != c.Sense {
			n.ConSenses[i] = to
			n.Changes = append(n.Changes, fmt.Sprintf("constraints[%d].sense %q -> %q", i, c.Sense, to))
		}
	}

	for _, v := range m.Vars {
		vt := v.VarType
		if to := canonicalVarType(vt); to != vt {
			n.VarTypes[v.Name] = to
			n.Changes = append(n.Changes, fmt.Sprintf("var %s vartype %q -> %q", v.Name, vt, to))
			vt = to
		}
		if vt == ir.Binary && (v.LB != 0 || v.UB == nil || *v.UB != 1) {
			n.BinaryBounds = append(n.BinaryBounds, v.Name)
			n.Changes = append(n.Changes, fmt.Sprintf("var %s bounds -> [0,1]", v.Name))
		}
	}

	if len(n.Changes) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "normalization",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d token(s) need normalization", len(n.Changes)),
			Evidence: map[string]any{"changes": n.Changes},
		},
		Data: n,
	}, nil
}

func (r *normalizeRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	n := d.Data.(normalization)
	if n.MetaSense != "" {
		m.Meta.Sense = n.MetaSense
	}
	if n.ObjectiveSense != "" {
		m.Objective.Sense = n.ObjectiveSense
	}
	for i, s := range n.ConSenses {
		m.Constraints[i].Sense = s
	}
	for name, vt := range n.VarTypes {
		m.Var(name).VarType = vt
	}
	for _, name := range n.BinaryBounds {
		v := m.Var(name)
		v.LB, v.UB = 0, ir.Float(1)
	}
	return &Repair{Action: "normalize_tokens", Details: map[string]any{"changes": n.Changes}}, nil
}
