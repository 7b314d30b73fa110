package expr

// Children returns the direct sub-nodes of n in source order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case *Unary:
		return []Node{n.X}
	case *Binary:
		return []Node{n.X, n.Y}
	case *Compare:
		return append([]Node{n.X}, n.Ys...)
	case *BoolOp:
		return n.Xs
	case *Cond:
		return []Node{n.Then, n.Test, n.Else}
	case *Subscript:
		return []Node{n.X, n.Index}
	case *Call:
		return append([]Node{n.Fn}, n.Args...)
	case *List:
		return n.Elts
	case *Tuple:
		return n.Elts
	case *Comp:
		var out []Node
		for _, cl := range n.Clauses {
			out = append(out, cl.Iter)
			out = append(out, cl.Ifs...)
		}
		return append(out, n.Elt)
	}
	return nil
}

// Walk calls fn for n and its descendants in pre-order. Returning false
// from fn skips the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range Children(n) {
		Walk(c, fn)
	}
}

// bindings tracks comprehension targets in scope.
type bindings map[string]int

func (b bindings) has(name string) bool { return b[name] > 0 }

func (b bindings) push(names []string) {
	for _, n := range names {
		b[n]++
	}
}

func (b bindings) pop(names []string) {
	for _, n := range names {
		b[n]--
	}
}

// walkScoped visits every node with the set of comprehension targets
// visible at that point.
func walkScoped(n Node, b bindings, fn func(Node, bindings)) {
	if n == nil {
		return
	}
	fn(n, b)
	c, ok := n.(*Comp)
	if !ok {
		for _, child := range Children(n) {
			walkScoped(child, b, fn)
		}
		return
	}
	var pushed [][]string
	for _, cl := range c.Clauses {
		walkScoped(cl.Iter, b, fn)
		b.push(cl.Targets)
		pushed = append(pushed, cl.Targets)
		for _, cond := range cl.Ifs {
			walkScoped(cond, b, fn)
		}
	}
	walkScoped(c.Elt, b, fn)
	for _, t := range pushed {
		b.pop(t)
	}
}

// FreeNames returns the identifiers n references that no enclosing
// comprehension binds, in order of first appearance. Helper names such as
// sum are included; callers filter them with IsHelper.
func FreeNames(n Node) []string {
	var out []string
	seen := map[string]bool{}
	walkScoped(n, bindings{}, func(n Node, b bindings) {
		name, ok := n.(*Name)
		if !ok || b.has(name.ID) || seen[name.ID] {
			return
		}
		seen[name.ID] = true
		out = append(out, name.ID)
	})
	return out
}

// SubscriptUse records one indexing position of a named base.
type SubscriptUse struct {
	Base  string // root identifier, e.g. "cost" in cost[i][j]
	Dim   int    // 0 for the first index, 1 for the second
	Index Node
	Sym   string // identifier used as the index, if any
	Bound bool   // Sym is a comprehension target at this point
	Pos   int
}

// Subscripts lists every index position applied to a named base, covering
// both x[i][j] and x[i, j] forms.
func Subscripts(n Node) []SubscriptUse {
	var out []SubscriptUse
	inner := map[*Subscript]bool{}
	walkScoped(n, bindings{}, func(n Node, b bindings) {
		s, ok := n.(*Subscript)
		if !ok || inner[s] {
			return
		}
		// Pre-order: the outermost subscript of a chain reports for the
		// whole chain.
		for x, ok := s.X.(*Subscript); ok; x, ok = x.X.(*Subscript) {
			inner[x] = true
		}
		base, idx := SubscriptChain(s)
		if base == "" {
			return
		}
		for dim, ix := range idx {
			use := SubscriptUse{Base: base, Dim: dim, Index: ix, Pos: ix.Pos()}
			if name, ok := ix.(*Name); ok {
				use.Sym = name.ID
				use.Bound = b.has(name.ID)
			}
			out = append(out, use)
		}
	})
	return out
}

// SubscriptChain returns the root identifier of a subscript chain and its
// index expressions in dimension order. x[i][j] and x[i, j] both yield
// ("x", [i, j]). The base is empty when the chain is not rooted at a name.
func SubscriptChain(s *Subscript) (string, []Node) {
	var parts [][]Node
	var cur Node = s
	for {
		sub, ok := cur.(*Subscript)
		if !ok {
			break
		}
		if t, ok := sub.Index.(*Tuple); ok {
			parts = append(parts, t.Elts)
		} else {
			parts = append(parts, []Node{sub.Index})
		}
		cur = sub.X
	}
	name, ok := cur.(*Name)
	if !ok {
		return "", nil
	}
	var idx []Node
	for i := len(parts) - 1; i >= 0; i-- {
		idx = append(idx, parts[i]...)
	}
	return name.ID, idx
}

// Binding maps a comprehension target to the set it iterates.
type Binding struct {
	Sym string
	Set string
}

// GeneratorBindings lists the targets bound directly over a named set:
// "for i in I" binds i to I, and "for k, i in enumerate(I)" binds i to I.
func GeneratorBindings(n Node) []Binding {
	var out []Binding
	Walk(n, func(n Node) bool {
		c, ok := n.(*Comp)
		if !ok {
			return true
		}
		for _, cl := range c.Clauses {
			if set := iterSetName(cl.Iter); set != "" {
				switch {
				case len(cl.Targets) == 1:
					out = append(out, Binding{Sym: cl.Targets[0], Set: set})
				case isEnumerate(cl.Iter) && len(cl.Targets) == 2:
					out = append(out, Binding{Sym: cl.Targets[1], Set: set})
				}
			}
		}
		return true
	})
	return out
}

func isEnumerate(n Node) bool {
	call, ok := n.(*Call)
	if !ok {
		return false
	}
	fn, ok := call.Fn.(*Name)
	return ok && fn.ID == "enumerate"
}

// iterSetName returns the set a clause iterates: a bare name or the first
// argument of enumerate.
func iterSetName(n Node) string {
	if name, ok := n.(*Name); ok {
		return name.ID
	}
	if isEnumerate(n) {
		if call := n.(*Call); len(call.Args) >= 1 {
			if name, ok := call.Args[0].(*Name); ok {
				return name.ID
			}
		}
	}
	return ""
}

// Rewrite returns a copy of n with fn applied bottom-up to every node. fn
// receives nodes whose children are already rewritten and returns the
// replacement.
func Rewrite(n Node, fn func(Node) Node) Node {
	if n == nil {
		return nil
	}
	return fn(rewriteChildren(n, func(c Node) Node { return Rewrite(c, fn) }))
}

func rewriteChildren(n Node, f func(Node) Node) Node {
	all := func(xs []Node) []Node {
		out := make([]Node, len(xs))
		for i, x := range xs {
			out[i] = f(x)
		}
		return out
	}
	switch n := n.(type) {
	case *Num:
		c := *n
		return &c
	case *Str:
		c := *n
		return &c
	case *Const:
		c := *n
		return &c
	case *Name:
		c := *n
		return &c
	case *Unary:
		return &Unary{P: n.P, Op: n.Op, X: f(n.X)}
	case *Binary:
		return &Binary{P: n.P, Op: n.Op, X: f(n.X), Y: f(n.Y)}
	case *Compare:
		return &Compare{P: n.P, X: f(n.X), Ops: append([]string(nil), n.Ops...), Ys: all(n.Ys)}
	case *BoolOp:
		return &BoolOp{P: n.P, Op: n.Op, Xs: all(n.Xs)}
	case *Cond:
		return &Cond{P: n.P, Then: f(n.Then), Test: f(n.Test), Else: f(n.Else)}
	case *Subscript:
		return &Subscript{P: n.P, X: f(n.X), Index: f(n.Index)}
	case *Call:
		return &Call{P: n.P, Fn: f(n.Fn), Args: all(n.Args)}
	case *List:
		return &List{P: n.P, Elts: all(n.Elts)}
	case *Tuple:
		return &Tuple{P: n.P, Elts: all(n.Elts)}
	case *Comp:
		out := &Comp{P: n.P, IsList: n.IsList, Elt: f(n.Elt)}
		for _, cl := range n.Clauses {
			out.Clauses = append(out.Clauses, Clause{
				Targets: append([]string(nil), cl.Targets...),
				Iter:    f(cl.Iter),
				Ifs:     all(cl.Ifs),
			})
		}
		return out
	}
	return n
}

// Substitute replaces every free occurrence of the identifier sym with the
// string literal lit. Occurrences bound by a comprehension target of the
// same name are left alone.
func Substitute(n Node, sym, lit string) Node {
	return substitute(n, sym, lit, bindings{})
}

func substitute(n Node, sym, lit string, b bindings) Node {
	switch n := n.(type) {
	case *Name:
		if n.ID == sym && !b.has(sym) {
			return &Str{P: n.P, Value: lit}
		}
		c := *n
		return &c
	case *Comp:
		out := &Comp{P: n.P, IsList: n.IsList}
		var pushed [][]string
		for _, cl := range n.Clauses {
			nc := Clause{
				Targets: append([]string(nil), cl.Targets...),
				Iter:    substitute(cl.Iter, sym, lit, b),
			}
			b.push(cl.Targets)
			pushed = append(pushed, cl.Targets)
			for _, cond := range cl.Ifs {
				nc.Ifs = append(nc.Ifs, substitute(cond, sym, lit, b))
			}
			out.Clauses = append(out.Clauses, nc)
		}
		out.Elt = substitute(n.Elt, sym, lit, b)
		for _, t := range pushed {
			b.pop(t)
		}
		return out
	}
	return rewriteChildren(n, func(c Node) Node { return substitute(c, sym, lit, b) })
}
