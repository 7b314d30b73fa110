package expr

// Node is an expression AST node.
type Node interface {
	Pos() int
	node()
}

// Num is a numeric literal. Raw keeps the source spelling for Format.
type Num struct {
	P     int
	Value float64
	Raw   string
}

// Str is a string literal.
type Str struct {
	P     int
	Value string
}

// Const is True, False or None.
type Const struct {
	P     int
	Value any // bool or nil
}

// Name is an identifier reference.
type Name struct {
	P  int
	ID string
}

// Unary is -X, +X or not X.
type Unary struct {
	P  int
	Op string
	X  Node
}

// Binary is X Op Y for arithmetic operators.
type Binary struct {
	P    int
	Op   string
	X, Y Node
}

// Compare is a comparison chain X op0 Ys[0] op1 Ys[1] ...
type Compare struct {
	P   int
	X   Node
	Ops []string
	Ys  []Node
}

// BoolOp is a sequence joined by "and" or "or".
type BoolOp struct {
	P  int
	Op string
	Xs []Node
}

// Cond is Then if Test else Else.
type Cond struct {
	P                int
	Then, Test, Else Node
}

// Subscript is X[Index]. A comma-separated index is a *Tuple.
type Subscript struct {
	P     int
	X     Node
	Index Node
}

// Call is Fn(Args...).
type Call struct {
	P    int
	Fn   Node
	Args []Node
}

// List is [Elts...].
type List struct {
	P    int
	Elts []Node
}

// Tuple is (Elts...) or a bare comma list inside a subscript.
type Tuple struct {
	P    int
	Elts []Node
}

// Clause is one "for Targets in Iter if Ifs..." part of a comprehension.
type Clause struct {
	Targets []string
	Iter    Node
	Ifs     []Node
}

// Comp is a generator expression or, with IsList, a list comprehension.
type Comp struct {
	P       int
	Elt     Node
	Clauses []Clause
	IsList  bool
}

func (n *Num) Pos() int       { return n.P }
func (n *Str) Pos() int       { return n.P }
func (n *Const) Pos() int     { return n.P }
func (n *Name) Pos() int      { return n.P }
func (n *Unary) Pos() int     { return n.P }
func (n *Binary) Pos() int    { return n.P }
func (n *Compare) Pos() int   { return n.P }
func (n *BoolOp) Pos() int    { return n.P }
func (n *Cond) Pos() int      { return n.P }
func (n *Subscript) Pos() int { return n.P }
func (n *Call) Pos() int      { return n.P }
func (n *List) Pos() int      { return n.P }
func (n *Tuple) Pos() int     { return n.P }
func (n *Comp) Pos() int      { return n.P }

func (*Num) node()       {}
func (*Str) node()       {}
func (*Const) node()     {}
func (*Name) node()      {}
func (*Unary) node()     {}
func (*Binary) node()    {}
func (*Compare) node()   {}
func (*BoolOp) node()    {}
func (*Cond) node()      {}
func (*Subscript) node() {}
func (*Call) node()      {}
func (*List) node()      {}
func (*Tuple) node()     {}
func (*Comp) node()      {}
