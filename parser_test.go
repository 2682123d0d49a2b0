// parser_test.go
package policyscript

import (
	"errors"
	"reflect"
	"testing"
)

func parseSrc(t *testing.T, src string) *Node {
	t.Helper()
	root, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse error: %v\nsource:\n%s", err, src)
	}
	return root
}

func wantSexpr(t *testing.T, src, want string) {
	t.Helper()
	got := parseSrc(t, src).String()
	if got != want {
		t.Fatalf("\nsource:\n%s\nwant:\n%s\ngot:\n%s\n", src, want, got)
	}
}

func findTag(root *Node, tag string) *Node {
	var found *Node
	root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if n.Tag == tag {
			found = n
			return false
		}
		return true
	})
	return found
}

func Test_Parser_PolicySkeleton_Shape(t *testing.T) {
	src := "def policy(inputs, params, rng):\n    return {}\n"
	root := parseSrc(t, src)
	if root.Tag != "module" || len(root.Kids) != 1 {
		t.Fatalf("root = %s", root)
	}
	def := root.Kids[0]
	if def.Tag != "def" || def.Lit.(string) != "policy" {
		t.Fatalf("def node = %s", def)
	}
	params := def.Kids[0]
	var names []string
	for _, p := range params.Kids {
		names = append(names, p.Lit.(string))
	}
	if !reflect.DeepEqual(names, []string{"inputs", "params", "rng"}) {
		t.Fatalf("param names = %v", names)
	}
	if def.Kids[1].Tag != "block" {
		t.Fatalf("body = %s", def.Kids[1])
	}
}

func Test_Parser_Precedence_MulBindsTighter(t *testing.T) {
	wantSexpr(t, "1 + 2 * 3\n",
		"(module (exprstmt (binop + (num 1) (binop * (num 2) (num 3)))))")
}

func Test_Parser_Power_RightAssociative(t *testing.T) {
	wantSexpr(t, "2 ** 3 ** 2\n",
		"(module (exprstmt (binop ** (num 2) (binop ** (num 3) (num 2)))))")
}

func Test_Parser_UnaryMinus(t *testing.T) {
	wantSexpr(t, "-x + 1\n",
		"(module (exprstmt (binop + (unop - (name x)) (num 1))))")
}

func Test_Parser_ChainedComparison_SingleNode(t *testing.T) {
	root := parseSrc(t, "a < b <= c\n")
	cmp := findTag(root, "compare")
	if cmp == nil {
		t.Fatal("no compare node")
	}
	if !reflect.DeepEqual(cmp.Lit, []string{"<", "<="}) {
		t.Fatalf("compare ops = %v", cmp.Lit)
	}
	if len(cmp.Kids) != 3 {
		t.Fatalf("compare operands = %d, want 3", len(cmp.Kids))
	}
}

func Test_Parser_Conditional_Expression(t *testing.T) {
	wantSexpr(t, "1 if x else 2\n",
		"(module (exprstmt (ifexp (name x) (num 1) (num 2))))")
}

func Test_Parser_BoolOps_ShortCircuitShape(t *testing.T) {
	wantSexpr(t, "a and b or not c\n",
		"(module (exprstmt (boolop or (boolop and (name a) (name b)) (unop not (name c)))))")
}

func Test_Parser_DictLiteral(t *testing.T) {
	wantSexpr(t, "{\"a\": 1, \"b\": 2}\n",
		"(module (exprstmt (dict (pair (str a) (num 1)) (pair (str b) (num 2)))))")
}

func Test_Parser_Postfix_CallAttrIndex(t *testing.T) {
	wantSexpr(t, "rng.gauss(0, 1)\n",
		"(module (exprstmt (call (attr gauss (name rng)) (num 0) (num 1))))")
	wantSexpr(t, "inputs[\"x\"]\n",
		"(module (exprstmt (index (name inputs) (str x))))")
}

func Test_Parser_AugAssign(t *testing.T) {
	wantSexpr(t, "x += 1\n",
		"(module (augassign += (name x) (num 1)))")
}

func Test_Parser_InlineSuite(t *testing.T) {
	wantSexpr(t, "if x: return 1\n",
		"(module (if (branch (name x) (block (return (num 1))))))")
}

func Test_Parser_IfElifElse(t *testing.T) {
	src := "if a:\n    pass\nelif b:\n    pass\nelse:\n    pass\n"
	root := parseSrc(t, src)
	n := root.Kids[0]
	if n.Tag != "if" || len(n.Kids) != 3 {
		t.Fatalf("if node = %s", n)
	}
	if n.Kids[0].Tag != "branch" || n.Kids[1].Tag != "branch" || n.Kids[2].Tag != "else" {
		t.Fatalf("if structure = %s", n)
	}
}

// The parser must build nodes for everything the sandbox rejects, so the
// validator can point at the construct by name and location.
func Test_Parser_RejectedConstructs_StillParse(t *testing.T) {
	cases := []struct {
		src string
		tag string
	}{
		{"import os\n", "import"},
		{"from os import path\n", "importfrom"},
		{"while True:\n    pass\n", "while"},
		{"for i in xs:\n    pass\n", "for"},
		{"class C:\n    pass\n", "class"},
		{"@dec\ndef f(a):\n    pass\n", "decorated"},
		{"lambda x: x\n", "lambda"},
		{"[x for x in xs]\n", "listcomp"},
		{"{x for x in xs}\n", "setcomp"},
		{"{x: x for x in xs}\n", "dictcomp"},
		{"f(x for x in xs)\n", "genexp"},
		{"try:\n    pass\nexcept:\n    pass\n", "try"},
		{"raise x\n", "raise"},
		{"with x:\n    pass\n", "with"},
		{"yield x\n", "yield"},
		{"global x\n", "global"},
		{"del x\n", "del"},
		{"assert x\n", "assert"},
		{"a[1:2]\n", "slice"},
		{"f(a=1)\n", "kwarg"},
		{"f(*a)\n", "starred"},
		{"[1, 2]\n", "list"},
		{"(1, 2)\n", "tuple"},
		{"{1, 2}\n", "set"},
		{"break\n", "break"},
		{"continue\n", "continue"},
	}
	for _, c := range cases {
		root := parseSrc(t, c.src)
		if findTag(root, c.tag) == nil {
			t.Errorf("source %q: no %q node in %s", c.src, c.tag, root)
		}
	}
}

// `in` after a loop target is the clause delimiter, not the membership
// operator, so for statements and comprehensions must parse cleanly and
// reach the validator as loop/comprehension nodes.
func Test_Parser_ForTargets_InIsClauseDelimiter(t *testing.T) {
	wantSexpr(t, "for i in inputs:\n    pass\n",
		"(module (for (name i) (name inputs) (block (pass))))")
	wantSexpr(t, "for k, v in items:\n    pass\n",
		"(module (for (tuple (name k) (name v)) (name items) (block (pass))))")

	root := parseSrc(t, "x = [i for i in inputs]\n")
	lc := findTag(root, "listcomp")
	if lc == nil {
		t.Fatalf("no listcomp node in %s", root)
	}
	if lc.Kids[1].Tag != "name" || lc.Kids[2].Tag != "name" {
		t.Fatalf("comprehension clause = %s", lc)
	}
}

func Test_Parser_Locations(t *testing.T) {
	src := "def f(a, b, c):\n    while a:\n        pass\n"
	root := parseSrc(t, src)
	w := findTag(root, "while")
	if w == nil {
		t.Fatal("no while node")
	}
	if w.Line != 2 || w.Col != 4 {
		t.Fatalf("while at %d:%d, want 2:4", w.Line, w.Col)
	}
}

func Test_Parser_Errors(t *testing.T) {
	for _, src := range []string{
		"def f(:\n",
		"x = \n",
		")\n",
		"if x\n    pass\n",
		"def f(a, b, c)\n    pass\n",
		"for 1 in xs:\n    pass\n",
	} {
		_, err := Parse(src)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Errorf("source %q: error = %v, want *ParseError", src, err)
		}
	}
}
