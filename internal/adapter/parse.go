package adapter

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/nlopt/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// DefaultDescriptionLimit caps meta.description, in runes.
const DefaultDescriptionLimit = 2000

// Decode unifies raw JSON with the IR schema and decodes it, keeping the
// key order of param values. Structural validation errors fail the decode;
// repairable ones are left for the verifier.
func Decode(raw []byte) (*ir.ModelIR, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errorf(KindIRParse, "schema: %v", err)
	}

	expr, err := cuejson.Extract("reply.json", raw)
	if err != nil {
		return nil, errorf(KindIRParse, "invalid JSON: %v", err)
	}
	data := ctx.BuildExpr(expr)
	v := schema.LookupPath(cue.ParsePath("#ModelIR")).Unify(data)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, &Error{Kind: KindIRParse, Err: formatCUEError(err)}
	}

	m, err := decodeModel(v)
	if err != nil {
		return nil, &Error{Kind: KindIRParse, Err: err}
	}
	if errs := ir.StructuralErrors(ir.Validate(m)); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, errorf(KindIRParse, "invalid model: %s", strings.Join(msgs, "; "))
	}
	return m, nil
}

// ParseIR decodes raw and fills meta from the question: a stable
// placeholder problem_id when missing, the truncated question as
// description, and the schema version.
func ParseIR(raw []byte, question string, limit int) (*ir.ModelIR, error) {
	m, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	FillMeta(m, question, limit)
	return m, nil
}

// FillMeta applies the meta fill-in rules of ParseIR.
func FillMeta(m *ir.ModelIR, question string, limit int) {
	if limit <= 0 {
		limit = DefaultDescriptionLimit
	}
	if strings.TrimSpace(m.Meta.ProblemID) == "" {
		m.Meta.ProblemID = ir.StablePlaceholderID(question)
	}
	if q := strings.TrimSpace(question); q != "" {
		m.Meta.Description = truncate(q, limit)
	}
	if m.Meta.Version == 0 {
		m.Meta.Version = ir.SchemaVersion
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// formatCUEError flattens CUE's error list into one error with positions.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	msgs := make([]string, 0, min(len(errs), 5))
	for _, e := range errs[:min(len(errs), 5)] {
		msg := e.Error()
		if path := e.Path(); len(path) > 0 {
			msg = strings.Join(path, ".") + ": " + msg
		}
		msgs = append(msgs, msg)
	}
	if len(errs) > 5 {
		msgs = append(msgs, fmt.Sprintf("and %d more", len(errs)-5))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// field looks up a field, resolving defaults.
func field(v cue.Value, name string) (cue.Value, bool) {
	f := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !f.Exists() {
		return f, false
	}
	if d, ok := f.Default(); ok {
		f = d
	}
	return f, true
}

func stringField(v cue.Value, name string) (string, error) {
	f, ok := field(v, name)
	if !ok || f.IsNull() {
		return "", nil
	}
	s, err := f.String()
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return s, nil
}

func stringsField(v cue.Value, name string) ([]string, error) {
	out := []string{}
	f, ok := field(v, name)
	if !ok || f.IsNull() {
		return out, nil
	}
	iter, err := f.List()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// eachElem calls fn for every element of the list field name.
func eachElem(v cue.Value, name string, fn func(i int, e cue.Value) error) error {
	f, ok := field(v, name)
	if !ok {
		return nil
	}
	iter, err := f.List()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	for i := 0; iter.Next(); i++ {
		if err := fn(i, iter.Value()); err != nil {
			return fmt.Errorf("%s[%d].%w", name, i, err)
		}
	}
	return nil
}

func decodeModel(v cue.Value) (*ir.ModelIR, error) {
	m := &ir.ModelIR{
		Sets:        []ir.SetDef{},
		Params:      []ir.ParamDef{},
		Vars:        []ir.VarDef{},
		Constraints: []ir.ConstraintDef{},
	}

	if meta, ok := field(v, "meta"); ok {
		var err error
		if m.Meta.ProblemID, err = stringField(meta, "problem_id"); err != nil {
			return nil, fmt.Errorf("meta.%w", err)
		}
		if m.Meta.Source, err = stringField(meta, "source"); err != nil {
			return nil, fmt.Errorf("meta.%w", err)
		}
		if m.Meta.Description, err = stringField(meta, "description"); err != nil {
			return nil, fmt.Errorf("meta.%w", err)
		}
		sense, err := stringField(meta, "sense")
		if err != nil {
			return nil, fmt.Errorf("meta.%w", err)
		}
		m.Meta.Sense = ir.ObjSense(sense)
		if f, ok := field(meta, "version"); ok {
			n, err := f.Int64()
			if err != nil {
				return nil, fmt.Errorf("meta.version: %w", err)
			}
			m.Meta.Version = int(n)
		}
	}

	err := eachElem(v, "sets", func(_ int, e cue.Value) error {
		var s ir.SetDef
		var err error
		if s.Name, err = stringField(e, "name"); err != nil {
			return err
		}
		if s.Description, err = stringField(e, "description"); err != nil {
			return err
		}
		s.Elements = []ir.Value{}
		err = eachElem(e, "elements", func(_ int, el cue.Value) error {
			val, err := toValue(el)
			if err != nil {
				return err
			}
			s.Elements = append(s.Elements, val)
			return nil
		})
		if err != nil {
			return err
		}
		m.Sets = append(m.Sets, s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachElem(v, "params", func(_ int, e cue.Value) error {
		var p ir.ParamDef
		var err error
		if p.Name, err = stringField(e, "name"); err != nil {
			return err
		}
		if p.Description, err = stringField(e, "description"); err != nil {
			return err
		}
		if p.Indices, err = stringsField(e, "indices"); err != nil {
			return err
		}
		vals, _ := field(e, "values")
		if p.Values, err = toValue(vals); err != nil {
			return fmt.Errorf("values: %w", err)
		}
		m.Params = append(m.Params, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = eachElem(v, "vars", func(_ int, e cue.Value) error {
		var d ir.VarDef
		var err error
		if d.Name, err = stringField(e, "name"); err != nil {
			return err
		}
		if d.Description, err = stringField(e, "description"); err != nil {
			return err
		}
		if d.Indices, err = stringsField(e, "indices"); err != nil {
			return err
		}
		vt, err := stringField(e, "vartype")
		if err != nil {
			return err
		}
		d.VarType = ir.VarType(vt)
		if f, ok := field(e, "lb"); ok && !f.IsNull() {
			if d.LB, err = f.Float64(); err != nil {
				return fmt.Errorf("lb: %w", err)
			}
		}
		if f, ok := field(e, "ub"); ok && !f.IsNull() {
			ub, err := f.Float64()
			if err != nil {
				return fmt.Errorf("ub: %w", err)
			}
			d.UB = ir.Float(ub)
		}
		m.Vars = append(m.Vars, d)
		return nil
	})
	if err != nil {
		return nil, err
	}

	obj, _ := field(v, "objective")
	if m.Objective.Name, err = stringField(obj, "name"); err != nil {
		return nil, fmt.Errorf("objective.%w", err)
	}
	sense, err := stringField(obj, "sense")
	if err != nil {
		return nil, fmt.Errorf("objective.%w", err)
	}
	m.Objective.Sense = ir.ObjSense(sense)
	if m.Objective.Expr, err = stringField(obj, "expr"); err != nil {
		return nil, fmt.Errorf("objective.%w", err)
	}
	if m.Objective.Description, err = stringField(obj, "description"); err != nil {
		return nil, fmt.Errorf("objective.%w", err)
	}

	err = eachElem(v, "constraints", func(_ int, e cue.Value) error {
		var c ir.ConstraintDef
		var err error
		if c.Name, err = stringField(e, "name"); err != nil {
			return err
		}
		if c.ExprLHS, err = stringField(e, "expr_lhs"); err != nil {
			return err
		}
		if c.ExprRHS, err = stringField(e, "expr_rhs"); err != nil {
			return err
		}
		sense, err := stringField(e, "sense")
		if err != nil {
			return err
		}
		c.Sense = ir.ConSense(sense)
		if c.Description, err = stringField(e, "description"); err != nil {
			return err
		}
		m.Constraints = append(m.Constraints, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// toValue converts a concrete CUE value, keeping struct field order.
func toValue(v cue.Value) (ir.Value, error) {
	if d, ok := v.Default(); ok {
		v = d
	}
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return ir.Bool(b), err
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		return ir.Number(f), err
	case cue.StringKind:
		s, err := v.String()
		return ir.String(s), err
	case cue.ListKind:
		out := ir.List{}
		iter, err := v.List()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			e, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, nil
	case cue.StructKind:
		out := ir.NewDict()
		iter, err := v.Fields()
		if err != nil {
			return nil, err
		}
		for iter.Next() {
			e, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			out.Set(iter.Label(), e)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value of kind %v", v.Kind())
}
