package verifier

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/nlopt/internal/expr"
	"github.com/roach88/nlopt/internal/ir"
)

// Layer1Rules returns the compile-safety rules in declared order.
func Layer1Rules(cfg Config) []Rule {
	cfg = cfg.withDefaults()
	return []Rule{
		&stringKeysRule{rule{"L1-R1", L1}},
		&nested2DRule{rule{"L1-R2", L1}},
		&diagonalRule{rule{"L1-R3", L1}},
		&unrollRule{rule: rule{"L1-R4", L1}, maxUnroll: cfg.MaxUnroll},
		&sumTypoRule{rule{"L1-R5", L1}},
		&uniqueNamesRule{rule{"L1-R6", L1}},
	}
}

// parseLenient parses src after the sum typo repair, so analyses see the
// same expression L1-R5 will leave behind.
func parseLenient(src string) (expr.Node, error) {
	fixed, _ := expr.FixSumCalls(src)
	return expr.Parse(fixed)
}

// ---------------------------------------------------------------------------
// L1-R1: set elements and param keys become strings.

type stringKeysRule struct{ rule }

type stringKeysData struct {
	Sets   []string
	Params []string
	Lists  []string
	Exprs  []exprEdit
}

func hasNonStringKeys(d *ir.Dict, nested bool) bool {
	for _, e := range d.Entries() {
		if _, ok := e.Key.(ir.String); !ok {
			return true
		}
		if row, ok := e.Val.(*ir.Dict); ok && nested && hasNonStringKeys(row, false) {
			return true
		}
	}
	return false
}

func (r *stringKeysRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var data stringKeysData
	for _, s := range m.Sets {
		for _, e := range s.Elements {
			if _, ok := e.(ir.String); !ok {
				data.Sets = append(data.Sets, s.Name)
				break
			}
		}
	}
	for _, p := range m.Params {
		switch v := p.Values.(type) {
		case *ir.Dict:
			if (len(p.Indices) == 1 || len(p.Indices) == 2) && hasNonStringKeys(v, len(p.Indices) == 2) {
				data.Params = append(data.Params, p.Name)
			}
		case ir.List:
			if len(p.Indices) == 1 && setSize(m, p.Indices[0]) == len(v) && !allLists(v) {
				data.Lists = append(data.Lists, p.Name)
			}
		}
	}
	data.Exprs = numericSubscriptEdits(m)

	if len(data.Sets)+len(data.Params)+len(data.Lists)+len(data.Exprs) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "non_string_keys",
			Severity: SeverityWarning,
			Message:  "set elements, param keys or subscripts are not strings",
			Evidence: map[string]any{
				"sets":          data.Sets,
				"params":        data.Params,
				"list_params":   data.Lists,
				"numeric_index": editEvidence(data.Exprs),
			},
		},
		Data: data,
	}, nil
}

func allLists(l ir.List) bool {
	for _, e := range l {
		if _, ok := e.(ir.List); !ok {
			return false
		}
	}
	return len(l) > 0
}

// numericSubscriptEdits finds x[1] where the indexed dimension ranges over
// a set of digit strings and proposes x['1'].
func numericSubscriptEdits(m *ir.ModelIR) []exprEdit {
	digits := digitSets(m)
	if len(digits) == 0 {
		return nil
	}
	var edits []exprEdit
	for _, ref := range exprRefs(m) {
		n, err := parseLenient(ref.Text)
		if err != nil {
			continue
		}
		changed := false
		out := expr.Rewrite(n, func(n expr.Node) expr.Node {
			s, ok := n.(*expr.Subscript)
			if !ok {
				return n
			}
			base, idx := expr.SubscriptChain(s)
			indices, ok := m.IndicesOf(base)
			if !ok {
				return n
			}
			own := []expr.Node{s.Index}
			tuple, isTuple := s.Index.(*expr.Tuple)
			if isTuple {
				own = tuple.Elts
			}
			first := len(idx) - len(own)
			repl := make([]expr.Node, len(own))
			hit := false
			for k, ix := range own {
				repl[k] = ix
				dim := first + k
				num, ok := ix.(*expr.Num)
				if !ok || dim >= len(indices) || !digits[indices[dim]] || num.Value != math.Trunc(num.Value) {
					continue
				}
				repl[k] = &expr.Str{P: num.P, Value: strconv.FormatFloat(num.Value, 'f', -1, 64)}
				hit = true
			}
			if !hit {
				return n
			}
			changed = true
			if isTuple {
				return &expr.Subscript{P: s.P, X: s.X, Index: &expr.Tuple{P: tuple.P, Elts: repl}}
			}
			return &expr.Subscript{P: s.P, X: s.X, Index: repl[0]}
		})
		if changed {
			edits = append(edits, exprEdit{Path: ref.Path, From: ref.Text, Text: expr.Format(out)})
		}
	}
	return edits
}

func stringifyDict(d *ir.Dict, nested bool) *ir.Dict {
	out := ir.NewDict()
	for _, e := range d.Entries() {
		k := ir.KeyString(e.Key)
		if out.Has(k) {
			continue
		}
		v := e.Val
		if row, ok := v.(*ir.Dict); ok && nested {
			v = stringifyDict(row, false)
		}
		out.Set(k, v)
	}
	return out
}

func (r *stringKeysRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	data := d.Data.(stringKeysData)
	for _, name := range data.Sets {
		s := m.Set(name)
		seen := map[string]bool{}
		elems := make([]ir.Value, 0, len(s.Elements))
		for _, e := range s.Elements {
			k := ir.KeyString(e)
			if seen[k] {
				continue
			}
			seen[k] = true
			elems = append(elems, ir.String(k))
		}
		s.Elements = elems
	}
	for _, name := range data.Params {
		p := m.Param(name)
		p.Values = stringifyDict(p.Values.(*ir.Dict), len(p.Indices) == 2)
	}
	for _, name := range data.Lists {
		p := m.Param(name)
		list := p.Values.(ir.List)
		out := ir.NewDict()
		for i, e := range m.Set(p.Indices[0]).ElementStrings() {
			if !out.Has(e) {
				out.Set(e, list[i])
			}
		}
		p.Values = out
	}
	if err := applyEdits(m, data.Exprs); err != nil {
		return nil, err
	}
	return &Repair{
		Action: "stringify_keys",
		Details: map[string]any{
			"sets":          data.Sets,
			"params":        data.Params,
			"list_params":   data.Lists,
			"numeric_index": editEvidence(data.Exprs),
		},
	}, nil
}

// ---------------------------------------------------------------------------
// L1-R2: flat or list-shaped 2D params become nested dicts.

type nested2DRule struct{ rule }

func (r *nested2DRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var names []string
	for _, p := range m.Params {
		if len(p.Indices) != 2 {
			continue
		}
		if _, ok := flatten2D(m, p); ok {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "flat_2d_param",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("2D params not in nested dict form: %s", strings.Join(names, ", ")),
			Evidence: map[string]any{"params": names},
		},
		Data: names,
	}, nil
}

// flatten2D converts a tuple-keyed dict or a row-major nested list into a
// nested dict. It reports false when the value is already nested or has a
// shape it cannot read.
func flatten2D(m *ir.ModelIR, p ir.ParamDef) (*ir.Dict, bool) {
	switch v := p.Values.(type) {
	case *ir.Dict:
		if v.Len() == 0 {
			return nil, false
		}
		nested := true
		for _, e := range v.Entries() {
			if _, ok := e.Val.(*ir.Dict); !ok {
				nested = false
				break
			}
		}
		if nested {
			return nil, false
		}
		out := ir.NewDict()
		for _, e := range v.Entries() {
			a, b, ok := parsePair(e.Key)
			if !ok {
				return nil, false
			}
			row, ok := out.Get(a)
			if !ok {
				row = ir.NewDict()
				out.Set(a, row)
			}
			rd := row.(*ir.Dict)
			if !rd.Has(b) {
				rd.Set(b, e.Val)
			}
		}
		return out, true
	case ir.List:
		rows, cols := m.Set(p.Indices[0]), m.Set(p.Indices[1])
		if rows == nil || cols == nil || len(v) != len(rows.Elements) {
			return nil, false
		}
		out := ir.NewDict()
		colNames := cols.ElementStrings()
		for i, a := range rows.ElementStrings() {
			line, ok := v[i].(ir.List)
			if !ok || len(line) != len(colNames) {
				return nil, false
			}
			row := ir.NewDict()
			for j, b := range colNames {
				row.Set(b, line[j])
			}
			out.Set(a, row)
		}
		return out, true
	}
	return nil, false
}

// parsePair reads a 2-tuple key: a real pair, "(a,b)", "a,b" or "a|b".
func parsePair(k ir.Value) (string, string, bool) {
	if list, ok := k.(ir.List); ok {
		if len(list) != 2 {
			return "", "", false
		}
		return ir.KeyString(list[0]), ir.KeyString(list[1]), true
	}
	s, ok := k.(ir.String)
	if !ok {
		return "", "", false
	}
	text := strings.TrimSpace(string(s))
	if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
		text = text[1 : len(text)-1]
	}
	var parts []string
	switch {
	case strings.Count(text, ",") == 1:
		parts = strings.Split(text, ",")
	case strings.Count(text, "|") == 1:
		parts = strings.Split(text, "|")
	default:
		return "", "", false
	}
	a := strings.Trim(strings.TrimSpace(parts[0]), `'"`)
	b := strings.Trim(strings.TrimSpace(parts[1]), `'"`)
	if a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

func (r *nested2DRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	names := d.Data.([]string)
	for _, name := range names {
		p := m.Param(name)
		nested, ok := flatten2D(m, *p)
		if !ok {
			return nil, fmt.Errorf("param %q changed shape since detection", name)
		}
		p.Values = nested
	}
	return &Repair{Action: "nest_2d_params", Details: map[string]any{"params": names}}, nil
}

// ---------------------------------------------------------------------------
// L1-R3: square 2D params get a zero diagonal.

type diagonalRule struct{ rule }

type diagonalGap struct {
	Param   string   `json:"param"`
	Missing []string `json:"missing"`
}

func (r *diagonalRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var gaps []diagonalGap
	for _, p := range m.Params {
		if len(p.Indices) != 2 || p.Indices[0] != p.Indices[1] {
			continue
		}
		set := m.Set(p.Indices[0])
		if set == nil {
			continue
		}
		values, ok := p.Values.(*ir.Dict)
		if !ok {
			if _, isNull := p.Values.(ir.Null); !isNull && p.Values != nil {
				continue
			}
			values = ir.NewDict()
		}
		var missing []string
		for _, e := range set.ElementStrings() {
			row, ok := values.Get(e)
			if !ok {
				missing = append(missing, e)
				continue
			}
			rd, ok := row.(*ir.Dict)
			if !ok {
				// A flat row is L1-R2's business.
				missing = nil
				break
			}
			if !rd.Has(e) {
				missing = append(missing, e)
			}
		}
		if len(missing) > 0 {
			gaps = append(gaps, diagonalGap{Param: p.Name, Missing: missing})
		}
	}
	if len(gaps) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "missing_diagonal",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d square 2D param(s) lack diagonal entries", len(gaps)),
			Evidence: map[string]any{"gaps": gaps},
		},
		Data: gaps,
	}, nil
}

func (r *diagonalRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	gaps := d.Data.([]diagonalGap)
	for _, g := range gaps {
		p := m.Param(g.Param)
		values, ok := p.Values.(*ir.Dict)
		if !ok {
			values = ir.NewDict()
			p.Values = values
		}
		for _, e := range g.Missing {
			row, ok := values.Get(e)
			if !ok {
				row = ir.NewDict()
				values.Set(e, row)
			}
			rd := row.(*ir.Dict)
			if !rd.Has(e) {
				rd.Set(e, ir.Number(0))
			}
		}
	}
	return &Repair{Action: "fill_diagonal", Details: map[string]any{"gaps": gaps}}, nil
}

// ---------------------------------------------------------------------------
// L1-R4: constraints over free short index symbols are unrolled.

// indexSymbols are the names treated as loop indices when left unbound.
var indexSymbols = map[string]bool{
	"i": true, "j": true, "k": true, "t": true, "u": true, "v": true,
	"n": true, "m": true, "p": true, "q": true, "w": true,
}

type unrollRule struct {
	rule
	maxUnroll int
}

type unrollPlan struct {
	Index  int
	Copies []ir.ConstraintDef
}

type unrollRefusal struct {
	Constraint string `json:"constraint"`
	Symbol     string `json:"symbol"`
	Reason     string `json:"reason"`
}

type unrollSummary struct {
	Constraint string   `json:"constraint"`
	Symbols    []string `json:"symbols"`
	Sets       []string `json:"sets"`
	Copies     int      `json:"copies"`
}

// freeIndexSymbols returns the undefined short index names of nodes.
func freeIndexSymbols(m *ir.ModelIR, nodes ...expr.Node) []string {
	defined := m.Names()
	var out []string
	for _, n := range nodes {
		for _, name := range expr.FreeNames(n) {
			if !indexSymbols[name] || expr.IsHelper(name) || slices.Contains(out, name) {
				continue
			}
			if _, ok := defined[name]; ok {
				continue
			}
			out = append(out, name)
		}
	}
	return out
}

// inferSet picks the set a free symbol ranges over: generator bindings
// first, then first-dimension subscripts, then second-dimension ones. Each
// stage votes; the majority wins and a tie is ambiguous.
func inferSet(m *ir.ModelIR, sym string, nodes ...expr.Node) (string, string) {
	stages := make([]map[string]int, 3)
	for i := range stages {
		stages[i] = map[string]int{}
	}
	for _, n := range nodes {
		for _, b := range expr.GeneratorBindings(n) {
			if b.Sym == sym && m.Set(b.Set) != nil {
				stages[0][b.Set]++
			}
		}
		for _, u := range expr.Subscripts(n) {
			if u.Sym != sym || u.Bound || u.Dim > 1 {
				continue
			}
			indices, ok := m.IndicesOf(u.Base)
			if !ok || u.Dim >= len(indices) {
				continue
			}
			stages[1+u.Dim][indices[u.Dim]]++
		}
	}
	for _, votes := range stages {
		if len(votes) == 0 {
			continue
		}
		best, bestN, tie := "", 0, false
		for set, n := range votes {
			switch {
			case n > bestN:
				best, bestN, tie = set, n, false
			case n == bestN:
				tie = true
			}
		}
		if tie {
			return "", "ambiguous index set"
		}
		return best, ""
	}
	return "", "no index set could be inferred"
}

func (r *unrollRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var plans []unrollPlan
	var refused []unrollRefusal
	var done []unrollSummary

	for ci, c := range m.Constraints {
		lhs, err := parseLenient(c.ExprLHS)
		if err != nil {
			continue
		}
		rhs, err := parseLenient(c.ExprRHS)
		if err != nil {
			continue
		}
		syms := freeIndexSymbols(m, lhs, rhs)
		if len(syms) == 0 {
			continue
		}

		sets := make([]string, len(syms))
		domains := make([][]string, len(syms))
		total := 1
		ok := true
		for si, sym := range syms {
			set, reason := inferSet(m, sym, lhs, rhs)
			if reason == "" {
				domains[si] = m.Set(set).ElementStrings()
				if len(domains[si]) == 0 {
					reason = fmt.Sprintf("inferred set %s is empty", set)
				}
			}
			if reason != "" {
				refused = append(refused, unrollRefusal{Constraint: c.Name, Symbol: sym, Reason: reason})
				ok = false
				break
			}
			sets[si] = set
			total *= len(domains[si])
		}
		if !ok {
			continue
		}
		if total > r.maxUnroll {
			refused = append(refused, unrollRefusal{
				Constraint: c.Name,
				Symbol:     strings.Join(syms, ","),
				Reason:     fmt.Sprintf("%d copies exceed the unroll limit of %d", total, r.maxUnroll),
			})
			continue
		}

		copies := make([]ir.ConstraintDef, 0, total)
		for _, combo := range product(domains) {
			l, rr := lhs, rhs
			name := c.Name
			for si, sym := range syms {
				l = expr.Substitute(l, sym, combo[si])
				rr = expr.Substitute(rr, sym, combo[si])
				name += "__" + sym + "_" + sanitize(combo[si])
			}
			copies = append(copies, ir.ConstraintDef{
				Name:        name,
				ExprLHS:     expr.Format(l),
				Sense:       c.Sense,
				ExprRHS:     expr.Format(rr),
				Description: c.Description,
			})
		}
		plans = append(plans, unrollPlan{Index: ci, Copies: copies})
		done = append(done, unrollSummary{Constraint: c.Name, Symbols: syms, Sets: sets, Copies: total})
	}

	if len(plans) == 0 && len(refused) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "free_index",
			Severity: SeverityWarning,
			Message: fmt.Sprintf("%d constraint(s) use free index symbols; %d unrollable, %d refused",
				len(plans)+len(refused), len(plans), len(refused)),
			Evidence: map[string]any{"unroll": done, "refused": refused},
		},
		Data: plans,
	}, nil
}

// product enumerates the cartesian product of domains, first domain
// outermost.
func product(domains [][]string) [][]string {
	out := [][]string{{}}
	for _, d := range domains {
		var next [][]string
		for _, prefix := range out {
			for _, e := range d {
				next = append(next, append(slices.Clone(prefix), e))
			}
		}
		out = next
	}
	return out
}

func (r *unrollRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	plans := d.Data.([]unrollPlan)
	if len(plans) == 0 {
		return nil, nil
	}
	byIndex := make(map[int][]ir.ConstraintDef, len(plans))
	var names []string
	for _, p := range plans {
		byIndex[p.Index] = p.Copies
		names = append(names, m.Constraints[p.Index].Name)
	}
	out := make([]ir.ConstraintDef, 0, len(m.Constraints))
	created := 0
	for i, c := range m.Constraints {
		if copies, ok := byIndex[i]; ok {
			out = append(out, copies...)
			created += len(copies)
			continue
		}
		out = append(out, c)
	}
	m.Constraints = out
	return &Repair{
		Action:  "unroll_constraints",
		Details: map[string]any{"constraints": names, "created": created},
	}, nil
}

// ---------------------------------------------------------------------------
// L1-R5: sum/quicksum call typos.

type sumTypoRule struct{ rule }

func (r *sumTypoRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	var edits []exprEdit
	for _, ref := range exprRefs(m) {
		if fixed, changed := expr.FixSumCalls(ref.Text); changed {
			edits = append(edits, exprEdit{Path: ref.Path, From: ref.Text, Text: fixed})
		}
	}
	if len(edits) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "call_typo",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d expression(s) misuse sum or quicksum", len(edits)),
			Evidence: map[string]any{"edits": editEvidence(edits)},
		},
		Data: edits,
	}, nil
}

func (r *sumTypoRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	edits := d.Data.([]exprEdit)
	if err := applyEdits(m, edits); err != nil {
		return nil, err
	}
	return &Repair{Action: "fix_sum_calls", Details: map[string]any{"edits": editEvidence(edits)}}, nil
}

// ---------------------------------------------------------------------------
// L1-R6: constraint names become unique and non-empty.

type uniqueNamesRule struct{ rule }

type rename struct {
	Index int    `json:"index"`
	From  string `json:"from"`
	To    string `json:"to"`
}

func (r *uniqueNamesRule) Detect(_ context.Context, m *ir.ModelIR) (*Detection, error) {
	taken := make(map[string]bool, len(m.Constraints))
	for _, c := range m.Constraints {
		taken[c.Name] = true
	}
	seen := make(map[string]bool, len(m.Constraints))
	var renames []rename
	for i, c := range m.Constraints {
		name := strings.TrimSpace(c.Name)
		if name != "" && !seen[name] {
			seen[name] = true
			continue
		}
		base := name
		if base == "" {
			base = fmt.Sprintf("constraint_%d", i+1)
		}
		candidate := base
		for n := 1; candidate == "" || taken[candidate] || seen[candidate]; n++ {
			candidate = fmt.Sprintf("%s__dup%d", base, n)
		}
		seen[candidate] = true
		renames = append(renames, rename{Index: i, From: c.Name, To: candidate})
	}
	if len(renames) == 0 {
		return nil, nil
	}
	return &Detection{
		Issue: Issue{
			Kind:     "duplicate_name",
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("%d constraint name(s) are empty or repeated", len(renames)),
			Evidence: map[string]any{"renames": renames},
		},
		Data: renames,
	}, nil
}

func (r *uniqueNamesRule) Apply(_ context.Context, m *ir.ModelIR, d *Detection) (*Repair, error) {
	renames := d.Data.([]rename)
	for _, rn := range renames {
		m.Constraints[rn.Index].Name = rn.To
	}
	return &Repair{Action: "rename_constraints", Details: map[string]any{"renames": renames}}, nil
}
