package expr

import "strings"

// Parse parses an expression.
func Parse(src string) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tEOF {
		return nil, errorf(KindSyntax, 0, "empty expression")
	}
	n, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tEOF {
		return nil, errorf(KindSyntax, t.pos, "unexpected %q", t.text)
	}
	return n, nil
}

// MustParse is like Parse but panics on error.
// Use only in tests or for literals known to be valid.
func MustParse(src string) Node {
	n, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return n
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) peek() token {
	return p.toks[p.i]
}

func (p *parser) peekAt(k int) token {
	if p.i+k >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+k]
}

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tEOF {
		p.i++
	}
	return t
}

// isOp reports whether the next token is the operator or keyword s.
func (p *parser) isOp(s string) bool {
	t := p.peek()
	return (t.kind == tOp || t.kind == tName) && t.text == s
}

func (p *parser) accept(s string) bool {
	if p.isOp(s) {
		p.next()
		return true
	}
	return false
}

func (p *parser) expect(s string) (token, error) {
	t := p.peek()
	if (t.kind == tOp || t.kind == tName) && t.text == s {
		return p.next(), nil
	}
	if t.kind == tEOF {
		return t, errorf(KindSyntax, t.pos, "expected %q, found end of expression", s)
	}
	return t, errorf(KindSyntax, t.pos, "expected %q, found %q", s, t.text)
}

// test: or_test ['if' or_test 'else' test]
func (p *parser) parseTest() (Node, error) {
	x, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.isOp("if") {
		return x, nil
	}
	// A trailing "if" inside a comprehension belongs to the clause.
	save := p.i
	p.next()
	test, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.accept("else") {
		p.i = save
		return x, nil
	}
	els, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	return &Cond{P: x.Pos(), Then: x, Test: test, Else: els}, nil
}

func (p *parser) parseOr() (Node, error) {
	x, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	if !p.isOp("or") {
		return x, nil
	}
	n := &BoolOp{P: x.Pos(), Op: "or", Xs: []Node{x}}
	for p.accept("or") {
		y, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		n.Xs = append(n.Xs, y)
	}
	return n, nil
}

func (p *parser) parseAnd() (Node, error) {
	x, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	if !p.isOp("and") {
		return x, nil
	}
	n := &BoolOp{P: x.Pos(), Op: "and", Xs: []Node{x}}
	for p.accept("and") {
		y, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		n.Xs = append(n.Xs, y)
	}
	return n, nil
}

func (p *parser) parseNot() (Node, error) {
	if t := p.peek(); t.kind == tName && t.text == "not" {
		p.next()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &Unary{P: t.pos, Op: "not", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) compOp() string {
	t := p.peek()
	switch {
	case t.kind == tOp && (t.text == "<" || t.text == ">" || t.text == "<=" ||
		t.text == ">=" || t.text == "==" || t.text == "!="):
		return t.text
	case t.kind == tName && t.text == "in":
		return "in"
	case t.kind == tName && t.text == "not":
		if n := p.peekAt(1); n.kind == tName && n.text == "in" {
			return "not in"
		}
	}
	return ""
}

func (p *parser) parseComparison() (Node, error) {
	x, err := p.parseArith()
	if err != nil {
		return nil, err
	}
	op := p.compOp()
	if op == "" {
		return x, nil
	}
	n := &Compare{P: x.Pos(), X: x}
	for ; op != ""; op = p.compOp() {
		p.next()
		if op == "not in" {
			p.next()
		}
		y, err := p.parseArith()
		if err != nil {
			return nil, err
		}
		n.Ops = append(n.Ops, op)
		n.Ys = append(n.Ys, y)
	}
	return n, nil
}

func (p *parser) parseArith() (Node, error) {
	x, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+") || p.isOp("-") {
		op := p.next()
		y, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		x = &Binary{P: op.pos, Op: op.text, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseTerm() (Node, error) {
	x, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.isOp("*") || p.isOp("/") || p.isOp("//") || p.isOp("%") {
		op := p.next()
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		x = &Binary{P: op.pos, Op: op.text, X: x, Y: y}
	}
	return x, nil
}

func (p *parser) parseFactor() (Node, error) {
	if p.isOp("-") || p.isOp("+") {
		op := p.next()
		x, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Unary{P: op.pos, Op: op.text, X: x}, nil
	}
	return p.parsePower()
}

func (p *parser) parsePower() (Node, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if p.isOp("**") {
		op := p.next()
		y, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return &Binary{P: op.pos, Op: "**", X: x, Y: y}, nil
	}
	return x, nil
}

func (p *parser) parsePrimary() (Node, error) {
	x, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isOp("("):
			open := p.next()
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			x = &Call{P: open.pos, Fn: x, Args: args}
		case p.isOp("["):
			open := p.next()
			idx, err := p.parseSubscriptList()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect("]"); err != nil {
				return nil, err
			}
			x = &Subscript{P: open.pos, X: x, Index: idx}
		case p.isOp("."):
			t := p.next()
			return nil, errorf(KindSyntax, t.pos, "attribute access is not allowed")
		default:
			return x, nil
		}
	}
}

func (p *parser) parseSubscriptList() (Node, error) {
	start := p.peek().pos
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if !p.isOp(",") {
		return first, nil
	}
	elts := []Node{first}
	for p.accept(",") {
		if p.isOp("]") {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	return &Tuple{P: start, Elts: elts}, nil
}

func (p *parser) parseArgs() ([]Node, error) {
	var args []Node
	if p.accept(")") {
		return args, nil
	}
	for {
		if t := p.peek(); t.kind == tName && !keywords[t.text] && p.peekAt(1).kind == tOp && p.peekAt(1).text == "=" {
			return nil, errorf(KindSyntax, t.pos, "keyword arguments are not supported")
		}
		if p.isOp("*") {
			return nil, errorf(KindSyntax, p.peek().pos, "argument unpacking is not supported")
		}
		arg, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		if p.isOp("for") {
			comp, err := p.parseCompTail(arg, false)
			if err != nil {
				return nil, err
			}
			if len(args) > 0 || !p.isOp(")") {
				return nil, errorf(KindSyntax, arg.Pos(), "generator expression must be parenthesized")
			}
			arg = comp
		}
		args = append(args, arg)
		if p.accept(")") {
			return args, nil
		}
		if _, err := p.expect(","); err != nil {
			return nil, err
		}
		if p.accept(")") {
			return args, nil
		}
	}
}

// parseCompTail parses the "for ... in ... [if ...]" clauses after elt.
func (p *parser) parseCompTail(elt Node, isList bool) (*Comp, error) {
	comp := &Comp{P: elt.Pos(), Elt: elt, IsList: isList}
	for p.isOp("for") {
		p.next()
		targets, err := p.parseTargets()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect("in"); err != nil {
			return nil, err
		}
		iter, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		cl := Clause{Targets: targets, Iter: iter}
		for p.isOp("if") {
			p.next()
			cond, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			cl.Ifs = append(cl.Ifs, cond)
		}
		comp.Clauses = append(comp.Clauses, cl)
	}
	return comp, nil
}

func (p *parser) parseTargets() ([]string, error) {
	paren := p.accept("(")
	var targets []string
	for {
		t := p.peek()
		if t.kind != tName || keywords[t.text] {
			return nil, errorf(KindSyntax, t.pos, "expected loop variable, found %q", t.text)
		}
		p.next()
		targets = append(targets, t.text)
		if !p.accept(",") {
			break
		}
		if paren && p.isOp(")") {
			break
		}
	}
	if paren {
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

func (p *parser) parseAtom() (Node, error) {
	t := p.peek()
	switch t.kind {
	case tNumber:
		p.next()
		return &Num{P: t.pos, Value: t.num, Raw: t.text}, nil
	case tString:
		p.next()
		var b strings.Builder
		b.WriteString(t.text)
		for p.peek().kind == tString {
			b.WriteString(p.next().text)
		}
		return &Str{P: t.pos, Value: b.String()}, nil
	case tName:
		switch t.text {
		case "True":
			p.next()
			return &Const{P: t.pos, Value: true}, nil
		case "False":
			p.next()
			return &Const{P: t.pos, Value: false}, nil
		case "None":
			p.next()
			return &Const{P: t.pos, Value: nil}, nil
		case "lambda", "import":
			return nil, errorf(KindSyntax, t.pos, "%q is not allowed", t.text)
		}
		if keywords[t.text] {
			return nil, errorf(KindSyntax, t.pos, "unexpected keyword %q", t.text)
		}
		p.next()
		return &Name{P: t.pos, ID: t.text}, nil
	case tOp:
		switch t.text {
		case "(":
			return p.parseParen()
		case "[":
			return p.parseListDisplay()
		}
		return nil, errorf(KindSyntax, t.pos, "unexpected %q", t.text)
	}
	return nil, errorf(KindSyntax, t.pos, "unexpected end of expression")
}

func (p *parser) parseParen() (Node, error) {
	open := p.next()
	if p.accept(")") {
		return &Tuple{P: open.pos}, nil
	}
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.isOp("for") {
		comp, err := p.parseCompTail(first, false)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(")"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	if p.accept(")") {
		return first, nil
	}
	elts := []Node{first}
	for p.accept(",") {
		if p.isOp(")") {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expect(")"); err != nil {
		return nil, err
	}
	return &Tuple{P: open.pos, Elts: elts}, nil
}

func (p *parser) parseListDisplay() (Node, error) {
	open := p.next()
	if p.accept("]") {
		return &List{P: open.pos}, nil
	}
	first, err := p.parseTest()
	if err != nil {
		return nil, err
	}
	if p.isOp("for") {
		comp, err := p.parseCompTail(first, true)
		if err != nil {
			return nil, err
		}
		comp.P = open.pos
		if _, err := p.expect("]"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	elts := []Node{first}
	for p.accept(",") {
		if p.isOp("]") {
			break
		}
		e, err := p.parseTest()
		if err != nil {
			return nil, err
		}
		elts = append(elts, e)
	}
	if _, err := p.expect("]"); err != nil {
		return nil, err
	}
	return &List{P: open.pos, Elts: elts}, nil
}
