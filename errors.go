// errors.go: user-facing error wrapping and caret-snippet rendering.
//
// Turns low-level diagnostics into readable error snippets with a caret
// pointing at the offending column:
//
//	SANDBOX VIOLATION at 2:4: loop constructs are not allowed (code loop)
//
//	   1 | def policy(inputs, params, rng):
//	   2 |     while True:
//	       |    ^
//	   3 |         pass
//
// The snippet includes up to one line of context before and after the error,
// numbers the lines, and places a caret under the 1-based column.
// `WrapErrorWithSource` recognizes *LexError, *ParseError, *Violation and
// *EvalError; anything else is returned unchanged. Output is plain text,
// suitable for logs and terminals.
package policyscript

import (
	"fmt"
	"strings"
)

// WrapErrorWithSource returns an error augmented with a caret-annotated
// snippet of the provided source. It recognizes this package's located error
// types and leaves other errors untouched.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source label ("in <name>")
// included in the header when name is non-empty.
func WrapErrorWithName(err error, srcName string, src string) error {
	switch e := err.(type) {
	case *LexError:
		// Lexer/parser Col are 0-based; render as 1-based.
		return fmt.Errorf("%s", snippet(src, "LEXICAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *ParseError:
		return fmt.Errorf("%s", snippet(src, "PARSE ERROR", srcName, e.Line, e.Col+1, e.Msg))
	case *Violation:
		msg := fmt.Sprintf("%s (code %s)", e.Detail, e.Code)
		return fmt.Errorf("%s", snippet(src, "SANDBOX VIOLATION", srcName, e.Line, e.Col+1, msg))
	case *EvalError:
		if e.Line > 0 {
			return fmt.Errorf("%s", snippet(src, "EVAL ERROR", srcName, e.Line, e.Col+1, e.Msg))
		}
		return err
	default:
		return err
	}
}

// snippet builds the numbered-line caret rendering. Coordinates are treated
// as 1-based and clamped to the source bounds so a bad location cannot crash
// rendering.
func snippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}
	cur := lines[line-1]
	if col > len(cur)+1 {
		col = len(cur) + 1
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}

	width := len(fmt.Sprintf("%d", line+1))
	writeLine := func(n int) {
		if n < 1 || n > len(lines) {
			return
		}
		fmt.Fprintf(&b, " %*d | %s\n", width, n, lines[n-1])
	}

	writeLine(line - 1)
	writeLine(line)
	fmt.Fprintf(&b, " %s | %s^\n", strings.Repeat(" ", width), strings.Repeat(" ", col-1))
	writeLine(line + 1)

	return strings.TrimRight(b.String(), "\n")
}
