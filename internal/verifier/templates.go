package verifier

import (
	"slices"
	"strings"

	"github.com/roach88/nlopt/internal/ir"
)

// Shape is one fingerprint check: some set, param or var of the model has
// the given dimensionality and attributes.
type Shape struct {
	Kind ir.NameKind
	Dims int

	// Square requires a 2D entity indexed twice by the same set; Distinct
	// requires two different sets.
	Square   bool
	Distinct bool

	// VarType restricts var shapes. Empty matches any type.
	VarType ir.VarType

	// Count is how many distinct entities must match. Zero means one.
	Count int
}

// Template is a canonical problem type L3 can rebuild towards.
type Template struct {
	Name         string
	Keywords     []string
	Shapes       []Shape
	Instructions string
}

// keywordSaturation is the number of keyword hits that scores 1.0.
const keywordSaturation = 4

// Templates is the rescue table, in tie-break order.
var Templates = []*Template{
	{
		Name: "max_flow",
		Keywords: []string{
			"max flow", "maximum flow", "max-flow", "flow", "source", "sink",
			"capacity", "network", "arc", "edge", "pipeline",
		},
		Shapes: []Shape{
			{Kind: ir.KindSet, Dims: 0},
			{Kind: ir.KindParam, Dims: 2, Square: true},
			{Kind: ir.KindVar, Dims: 2, Square: true},
			{Kind: ir.KindVar, Dims: 0},
		},
		Instructions: `This is a MAXIMUM FLOW problem. Build the model as follows:
- One set N of nodes. Identify the source and the sink among them.
- A 2D param capacity over (N, N) holding the capacity of every arc; use 0 for pairs that are not arcs.
- A continuous var f over (N, N) with lb 0 and a scalar continuous var F with lb 0.
- For every pair (i, j) a constraint f[i][j] <= capacity[i][j].
- Source balance: outflow minus inflow of the source == F.
- Sink balance: inflow minus outflow of the sink == F.
- Every other node conserves flow: inflow == outflow.
- Objective: maximize F.`,
	},
	{
		Name: "assignment",
		Keywords: []string{
			"assign", "assignment", "worker", "task", "job", "agent",
			"each task", "exactly one", "cost",
		},
		Shapes: []Shape{
			{Kind: ir.KindSet, Dims: 0, Count: 2},
			{Kind: ir.KindParam, Dims: 2, Distinct: true},
			{Kind: ir.KindVar, Dims: 2, Distinct: true, VarType: ir.Binary},
		},
		Instructions: `This is an ASSIGNMENT problem. Build the model as follows:
- A set W of workers and a set T of tasks.
- A 2D param cost over (W, T): cost[w][t] is the cost of giving task t to worker w.
- A binary var x over (W, T).
- Each task is assigned exactly once: sum(x[w][t] for w in W) == 1 for every t.
- Each worker takes at most one task: sum(x[w][t] for t in T) <= 1 for every w.
- Objective: minimize sum(cost[w][t] * x[w][t] for w in W for t in T).`,
	},
	{
		Name: "knapsack",
		Keywords: []string{
			"knapsack", "item", "weight", "value", "capacity", "pack",
			"select", "budget",
		},
		Shapes: []Shape{
			{Kind: ir.KindSet, Dims: 0},
			{Kind: ir.KindParam, Dims: 1, Count: 2},
			{Kind: ir.KindParam, Dims: 0},
			{Kind: ir.KindVar, Dims: 1, VarType: ir.Binary},
		},
		Instructions: `This is a 0/1 KNAPSACK problem. Build the model as follows:
- A set I of items.
- 1D params weight and value over I, and a scalar param capacity C.
- A binary var x over I.
- One capacity constraint: sum(weight[i] * x[i] for i in I) <= C.
- Objective: maximize sum(value[i] * x[i] for i in I).`,
	},
}

// TemplateScore is the type identification result for one template.
type TemplateScore struct {
	Template    string  `json:"template"`
	Keyword     float64 `json:"keyword"`
	Fingerprint float64 `json:"fingerprint"`
	Score       float64 `json:"score"`
}

// KeywordScore counts keyword hits in text, saturating at
// keywordSaturation.
func (t *Template) KeywordScore(text string) float64 {
	text = spaced(text)
	hits := 0
	for _, kw := range t.Keywords {
		if strings.Contains(text, spaced(kw)) {
			hits++
		}
	}
	return float64(min(hits, keywordSaturation)) / keywordSaturation
}

// FingerprintScore is the fraction of shapes present in m.
func (t *Template) FingerprintScore(m *ir.ModelIR) float64 {
	if len(t.Shapes) == 0 {
		return 0
	}
	hit := 0
	for _, s := range t.Shapes {
		if s.matches(m) {
			hit++
		}
	}
	return float64(hit) / float64(len(t.Shapes))
}

// Score combines both signals with the fixed 0.55/0.45 weighting.
func (t *Template) Score(m *ir.ModelIR) TemplateScore {
	kw := t.KeywordScore(m.Meta.Description)
	fp := t.FingerprintScore(m)
	return TemplateScore{
		Template:    t.Name,
		Keyword:     kw,
		Fingerprint: fp,
		Score:       0.55*kw + 0.45*fp,
	}
}

func (s Shape) matches(m *ir.ModelIR) bool {
	want := max(s.Count, 1)
	n := 0
	check := func(indices []string, vt ir.VarType) {
		if len(indices) != s.Dims {
			return
		}
		if s.Square && (len(indices) != 2 || indices[0] != indices[1]) {
			return
		}
		if s.Distinct && (len(indices) != 2 || indices[0] == indices[1]) {
			return
		}
		if s.VarType != "" && vt != s.VarType {
			return
		}
		n++
	}
	switch s.Kind {
	case ir.KindSet:
		n = len(m.Sets)
	case ir.KindParam:
		for _, p := range m.Params {
			check(p.Indices, "")
		}
	case ir.KindVar:
		for _, v := range m.Vars {
			check(v.Indices, v.VarType)
		}
	}
	return n >= want
}

// Identify scores every template against m and returns the best one with
// all scores. Ties keep table order.
func Identify(m *ir.ModelIR) (*Template, []TemplateScore) {
	scores := make([]TemplateScore, len(Templates))
	var best *Template
	bestScore := -1.0
	for i, t := range Templates {
		scores[i] = t.Score(m)
		if scores[i].Score > bestScore {
			best, bestScore = t, scores[i].Score
		}
	}
	return best, scores
}

// TemplateByName looks up a template of the rescue table.
func TemplateByName(name string) *Template {
	i := slices.IndexFunc(Templates, func(t *Template) bool { return t.Name == name })
	if i < 0 {
		return nil
	}
	return Templates[i]
}
