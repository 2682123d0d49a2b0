// lexer.go: tokenizer for policy snippets.
//
// Snippets are written in an indentation-delimited surface syntax: '#' line
// comments, NEWLINE terminates a logical line, INDENT/DEDENT bracket blocks.
// Inside (), [] and {} newlines and indentation are not significant.
//
// The lexer deliberately knows every keyword of the source language, including
// the ones the sandbox forbids (import, while, lambda, try, ...). Forbidden
// constructs must reach the validator as parsed nodes so rejections carry a
// precise reason and location instead of a generic parse error.
package policyscript

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota
	ILLEGAL
	NEWLINE
	INDENT
	DEDENT

	// Punctuation
	LPAREN   // "("
	RPAREN   // ")"
	LBRACKET // "["
	RBRACKET // "]"
	LBRACE   // "{"
	RBRACE   // "}"
	COLON    // ":"
	COMMA    // ","
	DOT      // "."
	SEMI     // ";"
	AT       // "@" (decorator marker; parsed, then rejected by the validator)
	ARROW    // "->" (return annotation)

	// Operators
	PLUS
	MINUS
	STAR
	DOUBLESTAR
	SLASH
	DOUBLESLASH
	PERCENT
	ASSIGN       // "="
	PLUS_ASSIGN  // "+="
	MINUS_ASSIGN // "-="
	STAR_ASSIGN  // "*="
	SLASH_ASSIGN // "/="
	EQ           // "=="
	NEQ          // "!="
	LESS
	LESS_EQ
	GREATER
	GREATER_EQ

	// Literals & identifiers
	ID
	STRING
	NUMBER

	// Keywords admitted by the sandbox grammar
	DEF
	RETURN
	IF
	ELIF
	ELSE
	AND
	OR
	NOT
	TRUE
	FALSE
	NONE
	PASS
	IN
	IS

	// Keywords lexed only so the parser can build nodes the validator rejects
	IMPORT
	FROM
	AS
	CLASS
	WHILE
	FOR
	LAMBDA
	TRY
	EXCEPT
	FINALLY
	RAISE
	WITH
	YIELD
	GLOBAL
	NONLOCAL
	DEL
	ASSERT
	BREAK
	CONTINUE
)

// Token is a lexical token with optional literal value.
type Token struct {
	Type    TokenType
	Lexeme  string // raw text slice
	Literal any    // parsed value for literals
	Line    int    // 1-based
	Col     int    // 0-based
}

// keywords map
var keywords = map[string]TokenType{
	"def":      DEF,
	"return":   RETURN,
	"if":       IF,
	"elif":     ELIF,
	"else":     ELSE,
	"and":      AND,
	"or":       OR,
	"not":      NOT,
	"True":     TRUE,
	"False":    FALSE,
	"None":     NONE,
	"pass":     PASS,
	"in":       IN,
	"is":       IS,
	"import":   IMPORT,
	"from":     FROM,
	"as":       AS,
	"class":    CLASS,
	"while":    WHILE,
	"for":      FOR,
	"lambda":   LAMBDA,
	"try":      TRY,
	"except":   EXCEPT,
	"finally":  FINALLY,
	"raise":    RAISE,
	"with":     WITH,
	"yield":    YIELD,
	"global":   GLOBAL,
	"nonlocal": NONLOCAL,
	"del":      DEL,
	"assert":   ASSERT,
	"break":    BREAK,
	"continue": CONTINUE,
}

// Lexer scans a policy snippet into tokens.
type Lexer struct {
	src        string
	start      int // start index of current token
	cur        int // current index
	line       int // 1-based
	col        int // 0-based column within line
	tokens     []Token
	indents    []int // indentation stack, always begins with 0
	parenDepth int   // (), [], {} nesting; suppresses NEWLINE/INDENT
	atLineHead bool

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{
		src:        src,
		line:       1,
		col:        0,
		indents:    []int{0},
		atLineHead: true,
	}
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) rewindToStart() {
	l.cur = l.start
}

func (l *Lexer) addToken(tt TokenType, lit any) {
	lex := l.src[l.start:l.cur]
	l.tokens = append(l.tokens, Token{
		Type:    tt,
		Lexeme:  lex,
		Literal: lit,
		Line:    l.tokStartLine,
		Col:     l.tokStartCol,
	})
	l.start = l.cur
}

// addSynthetic emits a token with no backing source slice (NEWLINE at EOF,
// INDENT/DEDENT).
func (l *Lexer) addSynthetic(tt TokenType) {
	l.tokens = append(l.tokens, Token{Type: tt, Line: l.line, Col: l.col})
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool {
	return isAlpha(b) || isDigit(b)
}

// ----- errors -----

type LexError struct {
	Line int
	Col  int
	Msg  string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("LEXICAL ERROR at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.line, Col: l.col, Msg: msg}
}

// ----- line structure -----

// measureIndent consumes leading whitespace of a physical line and returns its
// indentation width. Tabs advance to the next multiple of 8, matching the
// reference tokenizer of the source language.
func (l *Lexer) measureIndent() int {
	width := 0
	for {
		b, ok := l.peek()
		if !ok {
			break
		}
		if b == ' ' {
			width++
			l.advance()
			continue
		}
		if b == '\t' {
			width = (width/8 + 1) * 8
			l.advance()
			continue
		}
		break
	}
	l.start = l.cur
	return width
}

// blankLine reports whether the rest of the current line holds nothing but an
// optional comment.
func (l *Lexer) blankLine() bool {
	b, ok := l.peek()
	return !ok || b == '\n' || b == '\r' || b == '#'
}

func (l *Lexer) skipToLineEnd() {
	for {
		b, ok := l.peek()
		if !ok || b == '\n' {
			return
		}
		l.advance()
	}
}

// handleLineHead processes indentation at the start of a logical line,
// emitting INDENT/DEDENT tokens as the stack changes. Blank and comment-only
// lines produce nothing.
func (l *Lexer) handleLineHead() error {
	for {
		width := l.measureIndent()
		if l.blankLine() {
			l.skipToLineEnd()
			if l.isAtEnd() {
				return nil
			}
			l.advance() // consume newline
			l.start = l.cur
			continue
		}
		top := l.indents[len(l.indents)-1]
		switch {
		case width > top:
			l.indents = append(l.indents, width)
			l.addSynthetic(INDENT)
		case width < top:
			for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
				l.indents = l.indents[:len(l.indents)-1]
				l.addSynthetic(DEDENT)
			}
			if l.indents[len(l.indents)-1] != width {
				return l.err("unindent does not match any outer indentation level")
			}
		}
		l.atLineHead = false
		return nil
	}
}

// ----- scanners -----

// scanString parses a quoted string literal (single or double quotes).
func (l *Lexer) scanString() (string, error) {
	del := l.src[l.start]
	l.advance() // consume the delimiter

	var out strings.Builder
	for !l.isAtEnd() {
		ch, _ := l.advance()
		if ch == del {
			return out.String(), nil
		}
		if ch == '\n' {
			return "", l.err("string literal was not terminated before end of line")
		}
		if ch == '\\' {
			esc, ok := l.advance()
			if !ok {
				return "", l.err("unfinished escape sequence")
			}
			switch esc {
			case '"':
				out.WriteByte('"')
			case '\'':
				out.WriteByte('\'')
			case '\\':
				out.WriteByte('\\')
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case '0':
				out.WriteByte(0)
			default:
				return "", l.err(fmt.Sprintf("invalid escape sequence: \\%c", esc))
			}
			continue
		}
		out.WriteByte(ch)
	}
	return "", l.err("string literal was not terminated")
}

// scanIdentifier parses [A-Za-z_][A-Za-z0-9_]*
func (l *Lexer) scanIdentifier() string {
	for {
		b, ok := l.peek()
		if !ok || !isAlphaNum(b) {
			break
		}
		l.advance()
	}
	return l.src[l.start:l.cur]
}

// scanNumber parses an integer or float literal; both lex as NUMBER carrying
// float64, since policy values are uniformly floating point.
func (l *Lexer) scanNumber() (float64, error) {
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '.' {
		if b2, ok2 := l.peekN(1); ok2 && isDigit(b2) {
			l.advance() // '.'
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
			}
		} else if l.start < l.cur {
			// trailing dot as in "1.", consume it
			l.advance()
		}
	}
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		save := l.cur
		l.advance()
		if b2, ok := l.peek(); ok && (b2 == '+' || b2 == '-') {
			l.advance()
		}
		if b3, ok := l.peek(); ok && isDigit(b3) {
			for {
				b4, ok := l.peek()
				if !ok || !isDigit(b4) {
					break
				}
				l.advance()
			}
		} else {
			l.cur = save
		}
	}
	lex := l.src[l.start:l.cur]
	v, convErr := strconv.ParseFloat(lex, 64)
	if convErr != nil {
		return 0, l.err("invalid numeric literal")
	}
	return v, nil
}

// ----- main scanner -----

func (l *Lexer) scanToken() error {
	if l.atLineHead && l.parenDepth == 0 {
		if err := l.handleLineHead(); err != nil {
			return err
		}
		if l.isAtEnd() {
			l.finish()
			return nil
		}
	}

	// intra-line whitespace
	for {
		b, ok := l.peek()
		if !ok {
			break
		}
		if b == ' ' || b == '\t' || b == '\r' {
			l.advance()
			l.start = l.cur
			continue
		}
		if b == '\\' {
			// explicit line joining
			if b2, ok2 := l.peekN(1); ok2 && b2 == '\n' {
				l.advance()
				l.advance()
				l.start = l.cur
				continue
			}
		}
		break
	}

	l.tokStartLine = l.line
	l.tokStartCol = l.col
	l.start = l.cur

	if l.isAtEnd() {
		l.finish()
		return nil
	}

	ch, _ := l.advance()

	if ch == '\n' {
		if l.parenDepth > 0 {
			l.start = l.cur
			return nil
		}
		l.addToken(NEWLINE, nil)
		l.atLineHead = true
		return nil
	}

	if ch == '#' {
		l.skipToLineEnd()
		l.start = l.cur
		return nil
	}

	switch ch {
	case '(':
		l.parenDepth++
		l.addToken(LPAREN, nil)
		return nil
	case ')':
		l.parenDepth--
		l.addToken(RPAREN, nil)
		return nil
	case '[':
		l.parenDepth++
		l.addToken(LBRACKET, nil)
		return nil
	case ']':
		l.parenDepth--
		l.addToken(RBRACKET, nil)
		return nil
	case '{':
		l.parenDepth++
		l.addToken(LBRACE, nil)
		return nil
	case '}':
		l.parenDepth--
		l.addToken(RBRACE, nil)
		return nil
	case ':':
		l.addToken(COLON, nil)
		return nil
	case ',':
		l.addToken(COMMA, nil)
		return nil
	case ';':
		l.addToken(SEMI, nil)
		return nil
	case '@':
		l.addToken(AT, nil)
		return nil
	case '%':
		l.addToken(PERCENT, nil)
		return nil
	}

	// one- and two-character operators
	switch ch {
	case '+':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(PLUS_ASSIGN, nil)
			return nil
		}
		l.addToken(PLUS, nil)
		return nil
	case '-':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(MINUS_ASSIGN, nil)
			return nil
		}
		if b, ok := l.peek(); ok && b == '>' {
			l.advance()
			l.addToken(ARROW, nil)
			return nil
		}
		l.addToken(MINUS, nil)
		return nil
	case '*':
		if b, ok := l.peek(); ok && b == '*' {
			l.advance()
			l.addToken(DOUBLESTAR, nil)
			return nil
		}
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(STAR_ASSIGN, nil)
			return nil
		}
		l.addToken(STAR, nil)
		return nil
	case '/':
		if b, ok := l.peek(); ok && b == '/' {
			l.advance()
			l.addToken(DOUBLESLASH, nil)
			return nil
		}
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(SLASH_ASSIGN, nil)
			return nil
		}
		l.addToken(SLASH, nil)
		return nil
	case '=':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(EQ, nil)
			return nil
		}
		l.addToken(ASSIGN, nil)
		return nil
	case '!':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(NEQ, nil)
			return nil
		}
		return l.err("unexpected character: '!'")
	case '<':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(LESS_EQ, nil)
			return nil
		}
		l.addToken(LESS, nil)
		return nil
	case '>':
		if b, ok := l.peek(); ok && b == '=' {
			l.advance()
			l.addToken(GREATER_EQ, nil)
			return nil
		}
		l.addToken(GREATER, nil)
		return nil
	}

	// '.' : either decimal-starting float or DOT
	if ch == '.' {
		if b, ok := l.peek(); ok && isDigit(b) {
			l.rewindToStart()
			v, err := l.scanNumber()
			if err != nil {
				return err
			}
			l.addToken(NUMBER, v)
			return nil
		}
		l.addToken(DOT, nil)
		return nil
	}

	// Strings
	if ch == '"' || ch == '\'' {
		l.rewindToStart()
		text, err := l.scanString()
		if err != nil {
			return err
		}
		l.addToken(STRING, text)
		return nil
	}

	// Numbers
	if isDigit(ch) {
		l.rewindToStart()
		v, err := l.scanNumber()
		if err != nil {
			return err
		}
		l.addToken(NUMBER, v)
		return nil
	}

	// Identifiers / keywords
	if isAlpha(ch) {
		l.rewindToStart()
		lex := l.scanIdentifier()
		if tt, ok := keywords[lex]; ok {
			switch tt {
			case TRUE:
				l.addToken(TRUE, true)
			case FALSE:
				l.addToken(FALSE, false)
			case NONE:
				l.addToken(NONE, nil)
			default:
				l.addToken(tt, lex)
			}
			return nil
		}
		l.addToken(ID, lex)
		return nil
	}

	return l.err(fmt.Sprintf("unexpected character: %q", ch))
}

// finish closes out the token stream: a terminating NEWLINE if the last
// logical line lacked one, one DEDENT per open indent level, then EOF.
func (l *Lexer) finish() {
	if n := len(l.tokens); n > 0 {
		last := l.tokens[n-1].Type
		if last != NEWLINE && last != INDENT && last != DEDENT {
			l.addSynthetic(NEWLINE)
		}
	}
	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.addSynthetic(DEDENT)
	}
	l.addSynthetic(EOF)
}

// Scan tokenizes the entire source and returns tokens (EOF included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		if err := l.scanToken(); err != nil {
			return nil, err
		}
		if n := len(l.tokens); n > 0 && l.tokens[n-1].Type == EOF {
			return l.tokens, nil
		}
	}
}
