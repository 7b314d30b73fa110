package ir

// ObjSense is an objective direction token. The LLM may emit aliases such
// as "minimize"; the verifier normalizes them to SenseMin/SenseMax.
type ObjSense string

const (
	SenseMin ObjSense = "min"
	SenseMax ObjSense = "max"
)

// Valid reports whether s is a normalized sense.
func (s ObjSense) Valid() bool {
	return s == SenseMin || s == SenseMax
}

// ConSense is a constraint relation token.
type ConSense string

const (
	LE ConSense = "<="
	GE ConSense = ">="
	EQ ConSense = "=="
)

// Valid reports whether s is a normalized relation.
func (s ConSense) Valid() bool {
	return s == LE || s == GE || s == EQ
}

// VarType is a decision variable domain.
type VarType string

const (
	Continuous VarType = "continuous"
	Integer    VarType = "integer"
	Binary     VarType = "binary"
)

// Valid reports whether t is a known variable type.
func (t VarType) Valid() bool {
	return t == Continuous || t == Integer || t == Binary
}

// MetaInfo identifies the instance a model was built for.
type MetaInfo struct {
	ProblemID   string   `json:"problem_id"`
	Source      string   `json:"source,omitempty"`
	Description string   `json:"description,omitempty"`
	Sense       ObjSense `json:"sense"`
	Version     int      `json:"version"`
}

// SetDef is a named, ordered collection of opaque elements.
type SetDef struct {
	Name        string  `json:"name"`
	Elements    []Value `json:"elements"`
	Description string  `json:"description,omitempty"`
}

// ElementStrings returns the stringified elements in order.
func (s *SetDef) ElementStrings() []string {
	out := make([]string, len(s.Elements))
	for i, e := range s.Elements {
		out[i] = KeyString(e)
	}
	return out
}

// ParamDef is a named constant indexed by zero, one or two sets.
//
// Canonical Values shapes:
//   - 0D: Number
//   - 1D: *Dict string -> Number
//   - 2D: *Dict string -> *Dict string -> Number
type ParamDef struct {
	Name        string   `json:"name"`
	Indices     []string `json:"indices"`
	Values      Value    `json:"values"`
	Description string   `json:"description,omitempty"`
}

// VarDef is a decision variable family.
type VarDef struct {
	Name        string   `json:"name"`
	Indices     []string `json:"indices"`
	VarType     VarType  `json:"vartype"`
	LB          float64  `json:"lb"`
	UB          *float64 `json:"ub"`
	Description string   `json:"description,omitempty"`
}

// ObjectiveDef is the expression to optimize.
type ObjectiveDef struct {
	Name        string   `json:"name"`
	Sense       ObjSense `json:"sense"`
	Expr        string   `json:"expr"`
	Description string   `json:"description,omitempty"`
}

// ConstraintDef is a scalar relation between two expressions.
type ConstraintDef struct {
	Name        string   `json:"name"`
	ExprLHS     string   `json:"expr_lhs"`
	Sense       ConSense `json:"sense"`
	ExprRHS     string   `json:"expr_rhs"`
	Description string   `json:"description,omitempty"`
}

// ModelIR is the single structure passed between the adapter, the verifier
// and lowering.
type ModelIR struct {
	Meta        MetaInfo        `json:"meta"`
	Sets        []SetDef        `json:"sets"`
	Params      []ParamDef      `json:"params"`
	Vars        []VarDef        `json:"vars"`
	Objective   ObjectiveDef    `json:"objective"`
	Constraints []ConstraintDef `json:"constraints"`
}

// NameKind classifies a model-level name.
type NameKind string

const (
	KindSet   NameKind = "set"
	KindParam NameKind = "param"
	KindVar   NameKind = "var"
)

// Set returns the set with the given name, or nil.
func (m *ModelIR) Set(name string) *SetDef {
	for i := range m.Sets {
		if m.Sets[i].Name == name {
			return &m.Sets[i]
		}
	}
	return nil
}

// Param returns the parameter with the given name, or nil.
func (m *ModelIR) Param(name string) *ParamDef {
	for i := range m.Params {
		if m.Params[i].Name == name {
			return &m.Params[i]
		}
	}
	return nil
}

// Var returns the variable with the given name, or nil.
func (m *ModelIR) Var(name string) *VarDef {
	for i := range m.Vars {
		if m.Vars[i].Name == name {
			return &m.Vars[i]
		}
	}
	return nil
}

// Constraint returns the constraint with the given name, or nil.
func (m *ModelIR) Constraint(name string) *ConstraintDef {
	for i := range m.Constraints {
		if m.Constraints[i].Name == name {
			return &m.Constraints[i]
		}
	}
	return nil
}

// Names maps every set, param and var name to its kind. Later definitions
// shadow earlier ones the same way the lowering namespace does.
func (m *ModelIR) Names() map[string]NameKind {
	names := make(map[string]NameKind, len(m.Sets)+len(m.Params)+len(m.Vars))
	for _, s := range m.Sets {
		names[s.Name] = KindSet
	}
	for _, p := range m.Params {
		names[p.Name] = KindParam
	}
	for _, v := range m.Vars {
		names[v.Name] = KindVar
	}
	return names
}

// IndicesOf returns the index set names of a param or var.
func (m *ModelIR) IndicesOf(name string) ([]string, bool) {
	if v := m.Var(name); v != nil {
		return v.Indices, true
	}
	if p := m.Param(name); p != nil {
		return p.Indices, true
	}
	return nil, false
}

// Float returns a pointer to f, for optional bounds.
func Float(f float64) *float64 {
	return &f
}
