// parser.go: recursive-descent parser for policy snippets.
//
// OVERVIEW
// --------
// Consumes the token stream from lexer.go and builds a generic tagged tree.
// Every node is a Node{Tag, Line, Col, Lit, Kids}; the tag string is the only
// dispatch key downstream (validator allow-list, evaluator switch), so the
// full node vocabulary is documented here.
//
// **This list is the authoritative reference.**
//
// Statements:
//
//	("module", stmt...)                  // root
//	("def", name; params, block)         // Lit=name, Kids[0]=params, Kids[1]=block
//	("params", param...)                 // ("param", name; default?)
//	("block", stmt...)
//	("return", expr?)
//	("if", branch..., else?)             // ("branch"; cond, block) / ("else"; block)
//	("assign", target, value)
//	("augassign", op; target, value)     // "+=", "-=", "*=", "/="
//	("exprstmt", expr)
//	("pass") ("break") ("continue")
//
// Statements parsed only so the validator can reject them by name:
//
//	("import", module)  ("importfrom", module)
//	("class", name; block)  ("decorated", decoratorExpr..., subject)
//	("while", cond, block)  ("for", target, iter, block)
//	("try", block...)  ("raise", expr?)  ("with", expr, block)
//	("global", names)  ("nonlocal", names)  ("del", expr...)  ("assert", expr...)
//
// Expressions:
//
//	("name", id)  ("num", float64)  ("str", string)  ("bool", bool)  ("none")
//	("binop", op; lhs, rhs)          // "+","-","*","/","//","%","**"
//	("unop", op; operand)            // "-","+","not"
//	("boolop", op; lhs, rhs)         // "and","or" (short-circuit)
//	("compare", ops []string; operand...)
//	("ifexp"; cond, then, else)
//	("call"; callee, arg...)  ("kwarg", name; value)  ("starred"; expr)
//	("attr", name; obj)  ("index"; obj, key)  ("slice"; lo, hi, step)
//	("dict", pair...)  ("pair"; key, value)  ("list", ...)  ("tuple", ...)  ("set", ...)
//	("lambda"; params, bodyExpr)  ("yield", expr?)
//	("listcomp"|"setcomp"|"dictcomp"|"genexp"; elt..., compfor...)
//
// The parser accepts strictly more than the sandbox admits. Rejection with a
// machine-readable reason is the validator's job (validate.go); producing a
// node for `while` here is what lets the validator say "loop at 3:1" instead
// of "syntax error".
package policyscript

import (
	"fmt"
	"strings"
)

// Node is a syntax tree node. Line/Col locate the construct in the original
// source (1-based line, 0-based column, same convention as Token).
type Node struct {
	Tag  string
	Line int
	Col  int
	Lit  any // literal payload: float64, string, bool, []string
	Kids []*Node
}

// Walk visits n and every descendant in depth-first pre-order. The visitor
// returns false to prune the subtree.
func (n *Node) Walk(visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, k := range n.Kids {
		k.Walk(visit)
	}
}

// String renders the node as a compact s-expression, for tests and debugging.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	b.WriteByte('(')
	b.WriteString(n.Tag)
	if n.Lit != nil {
		fmt.Fprintf(b, " %v", n.Lit)
	}
	for _, k := range n.Kids {
		b.WriteByte(' ')
		k.write(b)
	}
	b.WriteByte(')')
}

// ----- errors -----

type ParseError struct {
	Line int
	Col  int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PARSE ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// ----- public API -----

// Parse lexes and parses a complete snippet, returning the module root.
func Parse(src string) (*Node, error) {
	toks, err := NewLexer(src).Scan()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	return p.module()
}

// ----- parser -----

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) peek() Token { return p.toks[min(p.pos+1, len(p.toks)-1)] }

func (p *parser) at(tt TokenType) bool { return p.cur().Type == tt }

func (p *parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) accept(tt TokenType) (Token, bool) {
	if p.at(tt) {
		return p.advance(), true
	}
	return Token{}, false
}

func (p *parser) expect(tt TokenType, what string) (Token, error) {
	if p.at(tt) {
		return p.advance(), nil
	}
	return Token{}, p.errHere("expected " + what)
}

func (p *parser) errHere(msg string) error {
	t := p.cur()
	return &ParseError{Line: t.Line, Col: t.Col, Msg: msg}
}

func (p *parser) node(tag string, at Token, kids ...*Node) *Node {
	return &Node{Tag: tag, Line: at.Line, Col: at.Col, Kids: kids}
}

// ----- statements -----

func (p *parser) module() (*Node, error) {
	root := &Node{Tag: "module", Line: 1, Col: 0}
	for !p.at(EOF) {
		if _, ok := p.accept(NEWLINE); ok {
			continue
		}
		st, err := p.statement()
		if err != nil {
			return nil, err
		}
		root.Kids = append(root.Kids, st...)
	}
	return root, nil
}

// statement parses one logical line (simple statements, possibly several
// separated by ';') or one compound statement.
func (p *parser) statement() ([]*Node, error) {
	switch p.cur().Type {
	case DEF:
		n, err := p.defStmt()
		return wrap(n, err)
	case IF:
		n, err := p.ifStmt()
		return wrap(n, err)
	case WHILE:
		n, err := p.whileStmt()
		return wrap(n, err)
	case FOR:
		n, err := p.forStmt()
		return wrap(n, err)
	case CLASS:
		n, err := p.classStmt()
		return wrap(n, err)
	case TRY:
		n, err := p.tryStmt()
		return wrap(n, err)
	case WITH:
		n, err := p.withStmt()
		return wrap(n, err)
	case AT:
		n, err := p.decorated()
		return wrap(n, err)
	}
	return p.simpleLine()
}

func wrap(n *Node, err error) ([]*Node, error) {
	if err != nil {
		return nil, err
	}
	return []*Node{n}, nil
}

func (p *parser) simpleLine() ([]*Node, error) {
	var out []*Node
	for {
		st, err := p.simpleStmt()
		if err != nil {
			return nil, err
		}
		out = append(out, st)
		if _, ok := p.accept(SEMI); !ok {
			break
		}
		if p.at(NEWLINE) || p.at(EOF) {
			break
		}
	}
	if _, err := p.expect(NEWLINE, "end of line"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) simpleStmt() (*Node, error) {
	t := p.cur()
	switch t.Type {
	case RETURN:
		p.advance()
		n := p.node("return", t)
		if !p.at(NEWLINE) && !p.at(SEMI) && !p.at(EOF) {
			v, err := p.exprOrTuple()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, v)
		}
		return n, nil
	case PASS:
		p.advance()
		return p.node("pass", t), nil
	case BREAK:
		p.advance()
		return p.node("break", t), nil
	case CONTINUE:
		p.advance()
		return p.node("continue", t), nil
	case IMPORT:
		return p.importStmt()
	case FROM:
		return p.fromImportStmt()
	case RAISE:
		p.advance()
		n := p.node("raise", t)
		if !p.at(NEWLINE) && !p.at(SEMI) && !p.at(EOF) {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, v)
			if _, ok := p.accept(FROM); ok {
				cause, err := p.expression()
				if err != nil {
					return nil, err
				}
				n.Kids = append(n.Kids, cause)
			}
		}
		return n, nil
	case GLOBAL, NONLOCAL:
		p.advance()
		tag := "global"
		if t.Type == NONLOCAL {
			tag = "nonlocal"
		}
		names, err := p.nameList()
		if err != nil {
			return nil, err
		}
		n := p.node(tag, t)
		n.Lit = names
		return n, nil
	case DEL:
		p.advance()
		n := p.node("del", t)
		for {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, v)
			if _, ok := p.accept(COMMA); !ok {
				break
			}
		}
		return n, nil
	case ASSERT:
		p.advance()
		n := p.node("assert", t)
		for {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, v)
			if _, ok := p.accept(COMMA); !ok {
				break
			}
		}
		return n, nil
	}
	return p.exprOrAssign()
}

// exprOrAssign parses `target = value`, augmented assignment, or a bare
// expression statement.
func (p *parser) exprOrAssign() (*Node, error) {
	t := p.cur()
	lhs, err := p.exprOrTuple()
	if err != nil {
		return nil, err
	}
	switch p.cur().Type {
	case ASSIGN:
		p.advance()
		rhs, err := p.exprOrTuple()
		if err != nil {
			return nil, err
		}
		// chained assignment a = b = 1 folds right-associatively
		for p.at(ASSIGN) {
			p.advance()
			next, err := p.exprOrTuple()
			if err != nil {
				return nil, err
			}
			rhs = p.node("assign", t, rhs, next)
		}
		return p.node("assign", t, lhs, rhs), nil
	case PLUS_ASSIGN, MINUS_ASSIGN, STAR_ASSIGN, SLASH_ASSIGN:
		op := map[TokenType]string{
			PLUS_ASSIGN: "+=", MINUS_ASSIGN: "-=", STAR_ASSIGN: "*=", SLASH_ASSIGN: "/=",
		}[p.advance().Type]
		rhs, err := p.exprOrTuple()
		if err != nil {
			return nil, err
		}
		n := p.node("augassign", t, lhs, rhs)
		n.Lit = op
		return n, nil
	}
	return p.node("exprstmt", t, lhs), nil
}

func (p *parser) importStmt() (*Node, error) {
	t := p.advance() // 'import'
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(AS); ok {
		if _, err := p.expect(ID, "alias name"); err != nil {
			return nil, err
		}
	}
	for p.at(COMMA) {
		p.advance()
		if _, err := p.dottedName(); err != nil {
			return nil, err
		}
		if _, ok := p.accept(AS); ok {
			if _, err := p.expect(ID, "alias name"); err != nil {
				return nil, err
			}
		}
	}
	n := p.node("import", t)
	n.Lit = mod
	return n, nil
}

func (p *parser) fromImportStmt() (*Node, error) {
	t := p.advance() // 'from'
	mod, err := p.dottedName()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IMPORT, "'import'"); err != nil {
		return nil, err
	}
	if _, ok := p.accept(STAR); !ok {
		if _, err := p.nameList(); err != nil {
			return nil, err
		}
	}
	n := p.node("importfrom", t)
	n.Lit = mod
	return n, nil
}

func (p *parser) dottedName() (string, error) {
	id, err := p.expect(ID, "module name")
	if err != nil {
		return "", err
	}
	name := id.Lexeme
	for p.at(DOT) {
		p.advance()
		part, err := p.expect(ID, "name after '.'")
		if err != nil {
			return "", err
		}
		name += "." + part.Lexeme
	}
	return name, nil
}

func (p *parser) nameList() ([]string, error) {
	var names []string
	for {
		id, err := p.expect(ID, "name")
		if err != nil {
			return nil, err
		}
		names = append(names, id.Lexeme)
		if _, ok := p.accept(AS); ok {
			if _, err := p.expect(ID, "alias name"); err != nil {
				return nil, err
			}
		}
		if _, ok := p.accept(COMMA); !ok {
			return names, nil
		}
	}
}

func (p *parser) defStmt() (*Node, error) {
	t := p.advance() // 'def'
	name, err := p.expect(ID, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(LPAREN, "'('"); err != nil {
		return nil, err
	}
	params, err := p.paramList(t)
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(ARROW); ok {
		if _, err := p.expression(); err != nil { // return annotation, discarded
			return nil, err
		}
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	n := p.node("def", t, params, body)
	n.Lit = name.Lexeme
	return n, nil
}

// paramList parses up to and including the closing ')'.
func (p *parser) paramList(at Token) (*Node, error) {
	params := p.node("params", at)
	for !p.at(RPAREN) {
		id, err := p.expect(ID, "parameter name")
		if err != nil {
			return nil, err
		}
		param := &Node{Tag: "param", Line: id.Line, Col: id.Col, Lit: id.Lexeme}
		if _, ok := p.accept(COLON); ok {
			if _, err := p.expression(); err != nil { // type annotation, discarded
				return nil, err
			}
		}
		if _, ok := p.accept(ASSIGN); ok {
			def, err := p.expression()
			if err != nil {
				return nil, err
			}
			param.Kids = append(param.Kids, def)
		}
		params.Kids = append(params.Kids, param)
		if _, ok := p.accept(COMMA); !ok {
			break
		}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}

// suite parses either an inline body (`if x: return y`) or an indented block.
func (p *parser) suite() (*Node, error) {
	t := p.cur()
	block := p.node("block", t)
	if _, ok := p.accept(NEWLINE); !ok {
		sts, err := p.simpleLine()
		if err != nil {
			return nil, err
		}
		block.Kids = sts
		return block, nil
	}
	if _, err := p.expect(INDENT, "an indented block"); err != nil {
		return nil, err
	}
	for !p.at(DEDENT) && !p.at(EOF) {
		if _, ok := p.accept(NEWLINE); ok {
			continue
		}
		sts, err := p.statement()
		if err != nil {
			return nil, err
		}
		block.Kids = append(block.Kids, sts...)
	}
	if _, err := p.expect(DEDENT, "dedent"); err != nil {
		return nil, err
	}
	return block, nil
}

func (p *parser) ifStmt() (*Node, error) {
	t := p.advance() // 'if'
	n := p.node("if", t)
	for {
		cond, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		body, err := p.suite()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, p.node("branch", t, cond, body))
		if _, ok := p.accept(ELIF); !ok {
			break
		}
	}
	if et, ok := p.accept(ELSE); ok {
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		body, err := p.suite()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, p.node("else", et, body))
	}
	return n, nil
}

func (p *parser) whileStmt() (*Node, error) {
	t := p.advance()
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	n := p.node("while", t, cond, body)
	if _, ok := p.accept(ELSE); ok {
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		eb, err := p.suite()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, eb)
	}
	return n, nil
}

func (p *parser) forStmt() (*Node, error) {
	t := p.advance()
	target, err := p.forTarget()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(IN, "'in'"); err != nil {
		return nil, err
	}
	iter, err := p.exprOrTuple()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	n := p.node("for", t, target, iter, body)
	if _, ok := p.accept(ELSE); ok {
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		eb, err := p.suite()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, eb)
	}
	return n, nil
}

// forTarget parses the target of a for or comprehension clause: a plain name
// or a comma-separated tuple of names, optionally parenthesized. The full
// expression grammar cannot be used here because it would consume the `in`
// as a comparison operator; in a target, `in` is the clause delimiter.
func (p *parser) forTarget() (*Node, error) {
	t := p.cur()
	first, err := p.forTargetAtom()
	if err != nil {
		return nil, err
	}
	if !p.at(COMMA) {
		return first, nil
	}
	tup := p.node("tuple", t, first)
	for p.at(COMMA) {
		p.advance()
		if p.at(IN) || p.at(RPAREN) { // trailing comma
			break
		}
		next, err := p.forTargetAtom()
		if err != nil {
			return nil, err
		}
		tup.Kids = append(tup.Kids, next)
	}
	return tup, nil
}

func (p *parser) forTargetAtom() (*Node, error) {
	if _, ok := p.accept(LPAREN); ok {
		inner, err := p.forTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	}
	id, err := p.expect(ID, "loop variable")
	if err != nil {
		return nil, err
	}
	n := p.node("name", id)
	n.Lit = id.Lexeme
	return n, nil
}

func (p *parser) classStmt() (*Node, error) {
	t := p.advance()
	name, err := p.expect(ID, "class name")
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(LPAREN); ok {
		for !p.at(RPAREN) {
			if _, err := p.expression(); err != nil {
				return nil, err
			}
			if _, ok := p.accept(COMMA); !ok {
				break
			}
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	n := p.node("class", t, body)
	n.Lit = name.Lexeme
	return n, nil
}

func (p *parser) tryStmt() (*Node, error) {
	t := p.advance()
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	n := p.node("try", t, body)
	for p.at(EXCEPT) {
		p.advance()
		if !p.at(COLON) {
			if _, err := p.expression(); err != nil {
				return nil, err
			}
			if _, ok := p.accept(AS); ok {
				if _, err := p.expect(ID, "name"); err != nil {
					return nil, err
				}
			}
		}
		if _, err := p.expect(COLON, "':'"); err != nil {
			return nil, err
		}
		hb, err := p.suite()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, hb)
	}
	for _, kw := range []TokenType{ELSE, FINALLY} {
		if _, ok := p.accept(kw); ok {
			if _, err := p.expect(COLON, "':'"); err != nil {
				return nil, err
			}
			b, err := p.suite()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, b)
		}
	}
	return n, nil
}

func (p *parser) withStmt() (*Node, error) {
	t := p.advance()
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(AS); ok {
		if _, err := p.expression(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.suite()
	if err != nil {
		return nil, err
	}
	return p.node("with", t, expr, body), nil
}

func (p *parser) decorated() (*Node, error) {
	t := p.cur()
	n := p.node("decorated", t)
	for p.at(AT) {
		p.advance()
		dec, err := p.expression()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, dec)
		if _, err := p.expect(NEWLINE, "end of line after decorator"); err != nil {
			return nil, err
		}
	}
	var subject *Node
	var err error
	switch p.cur().Type {
	case DEF:
		subject, err = p.defStmt()
	case CLASS:
		subject, err = p.classStmt()
	default:
		return nil, p.errHere("expected 'def' or 'class' after decorator")
	}
	if err != nil {
		return nil, err
	}
	n.Kids = append(n.Kids, subject)
	return n, nil
}

// ----- expressions -----

// exprOrTuple parses an expression and folds `a, b, c` into a tuple node.
func (p *parser) exprOrTuple() (*Node, error) {
	t := p.cur()
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if !p.at(COMMA) {
		return first, nil
	}
	tup := p.node("tuple", t, first)
	for p.at(COMMA) {
		p.advance()
		if p.at(NEWLINE) || p.at(EOF) || p.at(ASSIGN) || p.at(RPAREN) {
			break
		}
		next, err := p.expression()
		if err != nil {
			return nil, err
		}
		tup.Kids = append(tup.Kids, next)
	}
	return tup, nil
}

func (p *parser) expression() (*Node, error) {
	if p.at(LAMBDA) {
		return p.lambdaExpr()
	}
	if t, ok := p.accept(YIELD); ok {
		n := p.node("yield", t)
		if !p.at(NEWLINE) && !p.at(RPAREN) && !p.at(EOF) {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, v)
		}
		return n, nil
	}
	cond, err := p.orExpr()
	if err != nil {
		return nil, err
	}
	// conditional expression: `a if c else b`
	if t, ok := p.accept(IF); ok {
		test, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(ELSE, "'else'"); err != nil {
			return nil, err
		}
		alt, err := p.expression()
		if err != nil {
			return nil, err
		}
		return p.node("ifexp", t, test, cond, alt), nil
	}
	return cond, nil
}

func (p *parser) lambdaExpr() (*Node, error) {
	t := p.advance() // 'lambda'
	params := p.node("params", t)
	for p.at(ID) {
		id := p.advance()
		params.Kids = append(params.Kids, &Node{Tag: "param", Line: id.Line, Col: id.Col, Lit: id.Lexeme})
		if _, ok := p.accept(COMMA); !ok {
			break
		}
	}
	if _, err := p.expect(COLON, "':'"); err != nil {
		return nil, err
	}
	body, err := p.expression()
	if err != nil {
		return nil, err
	}
	return p.node("lambda", t, params, body), nil
}

func (p *parser) orExpr() (*Node, error) {
	lhs, err := p.andExpr()
	if err != nil {
		return nil, err
	}
	for p.at(OR) {
		t := p.advance()
		rhs, err := p.andExpr()
		if err != nil {
			return nil, err
		}
		n := p.node("boolop", t, lhs, rhs)
		n.Lit = "or"
		lhs = n
	}
	return lhs, nil
}

func (p *parser) andExpr() (*Node, error) {
	lhs, err := p.notExpr()
	if err != nil {
		return nil, err
	}
	for p.at(AND) {
		t := p.advance()
		rhs, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		n := p.node("boolop", t, lhs, rhs)
		n.Lit = "and"
		lhs = n
	}
	return lhs, nil
}

func (p *parser) notExpr() (*Node, error) {
	if t, ok := p.accept(NOT); ok {
		operand, err := p.notExpr()
		if err != nil {
			return nil, err
		}
		n := p.node("unop", t, operand)
		n.Lit = "not"
		return n, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (*Node, error) {
	t := p.cur()
	first, err := p.arith()
	if err != nil {
		return nil, err
	}
	var ops []string
	operands := []*Node{first}
	for {
		var op string
		switch p.cur().Type {
		case EQ:
			op = "=="
		case NEQ:
			op = "!="
		case LESS:
			op = "<"
		case LESS_EQ:
			op = "<="
		case GREATER:
			op = ">"
		case GREATER_EQ:
			op = ">="
		case IN:
			op = "in"
		case IS:
			op = "is"
		case NOT: // `not in`
			if p.peek().Type != IN {
				return nil, p.errHere("expected 'in' after 'not'")
			}
			p.advance()
			op = "not in"
		default:
			if len(ops) == 0 {
				return first, nil
			}
			n := p.node("compare", t, operands...)
			n.Lit = ops
			return n, nil
		}
		p.advance()
		if op == "is" {
			if _, ok := p.accept(NOT); ok {
				op = "is not"
			}
		}
		next, err := p.arith()
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
		operands = append(operands, next)
	}
}

func (p *parser) arith() (*Node, error) {
	lhs, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.at(PLUS) || p.at(MINUS) {
		t := p.advance()
		op := "+"
		if t.Type == MINUS {
			op = "-"
		}
		rhs, err := p.term()
		if err != nil {
			return nil, err
		}
		n := p.node("binop", t, lhs, rhs)
		n.Lit = op
		lhs = n
	}
	return lhs, nil
}

func (p *parser) term() (*Node, error) {
	lhs, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		var op string
		switch p.cur().Type {
		case STAR:
			op = "*"
		case SLASH:
			op = "/"
		case DOUBLESLASH:
			op = "//"
		case PERCENT:
			op = "%"
		default:
			return lhs, nil
		}
		t := p.advance()
		rhs, err := p.factor()
		if err != nil {
			return nil, err
		}
		n := p.node("binop", t, lhs, rhs)
		n.Lit = op
		lhs = n
	}
}

func (p *parser) factor() (*Node, error) {
	if p.at(PLUS) || p.at(MINUS) {
		t := p.advance()
		op := "+"
		if t.Type == MINUS {
			op = "-"
		}
		operand, err := p.factor()
		if err != nil {
			return nil, err
		}
		n := p.node("unop", t, operand)
		n.Lit = op
		return n, nil
	}
	return p.power()
}

func (p *parser) power() (*Node, error) {
	base, err := p.postfix()
	if err != nil {
		return nil, err
	}
	if t, ok := p.accept(DOUBLESTAR); ok {
		exp, err := p.factor() // right-associative
		if err != nil {
			return nil, err
		}
		n := p.node("binop", t, base, exp)
		n.Lit = "**"
		return n, nil
	}
	return base, nil
}

func (p *parser) postfix() (*Node, error) {
	n, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Type {
		case LPAREN:
			t := p.advance()
			call := p.node("call", t, n)
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			call.Kids = append(call.Kids, args...)
			n = call
		case DOT:
			p.advance()
			id, err := p.expect(ID, "attribute name")
			if err != nil {
				return nil, err
			}
			attr := &Node{Tag: "attr", Line: id.Line, Col: id.Col, Lit: id.Lexeme, Kids: []*Node{n}}
			n = attr
		case LBRACKET:
			t := p.advance()
			key, err := p.subscript()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACKET, "']'"); err != nil {
				return nil, err
			}
			n = p.node("index", t, n, key)
		default:
			return n, nil
		}
	}
}

// callArgs parses up to and including ')'. A lone `expr for ...` argument
// becomes a genexp node.
func (p *parser) callArgs() ([]*Node, error) {
	var args []*Node
	for !p.at(RPAREN) {
		if t, ok := p.accept(STAR); ok {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			args = append(args, p.node("starred", t, v))
		} else if p.at(ID) && p.peek().Type == ASSIGN {
			id := p.advance()
			p.advance() // '='
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			kw := &Node{Tag: "kwarg", Line: id.Line, Col: id.Col, Lit: id.Lexeme, Kids: []*Node{v}}
			args = append(args, kw)
		} else {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			if p.at(FOR) {
				gen, err := p.comprehension("genexp", v, nil)
				if err != nil {
					return nil, err
				}
				args = append(args, gen)
			} else {
				args = append(args, v)
			}
		}
		if _, ok := p.accept(COMMA); !ok {
			break
		}
	}
	if _, err := p.expect(RPAREN, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

func (p *parser) subscript() (*Node, error) {
	t := p.cur()
	var lo *Node
	if !p.at(COLON) {
		var err error
		lo, err = p.expression()
		if err != nil {
			return nil, err
		}
	}
	if !p.at(COLON) {
		return lo, nil
	}
	// slice form; bounds may be absent
	sl := p.node("slice", t)
	none := func(at Token) *Node { return p.node("none", at) }
	if lo == nil {
		lo = none(t)
	}
	sl.Kids = append(sl.Kids, lo)
	p.advance() // first ':'
	if !p.at(RBRACKET) && !p.at(COLON) {
		hi, err := p.expression()
		if err != nil {
			return nil, err
		}
		sl.Kids = append(sl.Kids, hi)
	} else {
		sl.Kids = append(sl.Kids, none(t))
	}
	if _, ok := p.accept(COLON); ok && !p.at(RBRACKET) {
		step, err := p.expression()
		if err != nil {
			return nil, err
		}
		sl.Kids = append(sl.Kids, step)
	}
	return sl, nil
}

// comprehension parses `for target in iter [if cond]...` clauses after the
// element expression(s) have been consumed.
func (p *parser) comprehension(tag string, elt *Node, val *Node) (*Node, error) {
	t := p.cur() // 'for'
	n := p.node(tag, t, elt)
	if val != nil {
		n.Kids = append(n.Kids, val)
	}
	for p.at(FOR) {
		p.advance()
		target, err := p.forTarget()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(IN, "'in'"); err != nil {
			return nil, err
		}
		iter, err := p.orExpr()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, target, iter)
		for p.at(IF) {
			p.advance()
			cond, err := p.orExpr()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, cond)
		}
	}
	return n, nil
}

func (p *parser) atom() (*Node, error) {
	t := p.cur()
	switch t.Type {
	case NUMBER:
		p.advance()
		n := p.node("num", t)
		n.Lit = t.Literal
		return n, nil
	case STRING:
		p.advance()
		n := p.node("str", t)
		n.Lit = t.Literal
		return n, nil
	case TRUE, FALSE:
		p.advance()
		n := p.node("bool", t)
		n.Lit = t.Literal
		return n, nil
	case NONE:
		p.advance()
		return p.node("none", t), nil
	case ID:
		p.advance()
		n := p.node("name", t)
		n.Lit = t.Lexeme
		return n, nil
	case LPAREN:
		p.advance()
		if _, ok := p.accept(RPAREN); ok {
			return p.node("tuple", t), nil
		}
		inner, err := p.exprOrTuple()
		if err != nil {
			return nil, err
		}
		if p.at(FOR) {
			gen, err := p.comprehension("genexp", inner, nil)
			if err != nil {
				return nil, err
			}
			inner = gen
		}
		if _, err := p.expect(RPAREN, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case LBRACKET:
		return p.listDisplay()
	case LBRACE:
		return p.dictOrSetDisplay()
	case LAMBDA:
		return p.lambdaExpr()
	}
	return nil, p.errHere(fmt.Sprintf("unexpected token %q", t.Lexeme))
}

func (p *parser) listDisplay() (*Node, error) {
	t := p.advance() // '['
	n := p.node("list", t)
	if _, ok := p.accept(RBRACKET); ok {
		return n, nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.at(FOR) {
		comp, err := p.comprehension("listcomp", first, nil)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACKET, "']'"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	n.Kids = append(n.Kids, first)
	for p.at(COMMA) {
		p.advance()
		if p.at(RBRACKET) {
			break
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, v)
	}
	if _, err := p.expect(RBRACKET, "']'"); err != nil {
		return nil, err
	}
	return n, nil
}

func (p *parser) dictOrSetDisplay() (*Node, error) {
	t := p.advance() // '{'
	if _, ok := p.accept(RBRACE); ok {
		return p.node("dict", t), nil
	}
	first, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(COLON); ok {
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		if p.at(FOR) {
			comp, err := p.comprehension("dictcomp", first, val)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(RBRACE, "'}'"); err != nil {
				return nil, err
			}
			return comp, nil
		}
		n := p.node("dict", t, p.node("pair", t, first, val))
		for p.at(COMMA) {
			p.advance()
			if p.at(RBRACE) {
				break
			}
			k, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(COLON, "':'"); err != nil {
				return nil, err
			}
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			n.Kids = append(n.Kids, p.node("pair", t, k, v))
		}
		if _, err := p.expect(RBRACE, "'}'"); err != nil {
			return nil, err
		}
		return n, nil
	}
	// set display or set comprehension
	if p.at(FOR) {
		comp, err := p.comprehension("setcomp", first, nil)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(RBRACE, "'}'"); err != nil {
			return nil, err
		}
		return comp, nil
	}
	n := p.node("set", t, first)
	for p.at(COMMA) {
		p.advance()
		if p.at(RBRACE) {
			break
		}
		v, err := p.expression()
		if err != nil {
			return nil, err
		}
		n.Kids = append(n.Kids, v)
	}
	if _, err := p.expect(RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return n, nil
}
