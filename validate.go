// validate.go: sandbox validator for policy snippets.
//
// The validator is the security boundary: it walks the ENTIRE parse tree and
// admits only the allow-listed node tags. Everything else is rejected with a
// machine-readable ViolationCode and the offending node's source location.
// The evaluator (eval.go) then only implements the allow-listed tags, so a
// construct that slipped past this walk would still have no execution path;
// escape is structural, not policy.
//
// Allow-listed surface: one top-level function definition with exactly three
// parameters; return; if/elif/else; simple assignment to local names;
// numeric/boolean/string literals; arithmetic, comparison and boolean
// operators; conditional expressions; dict literals (for the output mapping);
// subscript reads; non-dunder attribute access (how the rng handle exposes
// its methods); calls to whitelisted globals, rng methods, or the function
// itself (recursion is legal and bounded by the evaluator's meters); `pass`.
package policyscript

import (
	"fmt"
	"strings"
)

// ViolationCode is the machine-readable reason a snippet was rejected.
type ViolationCode string

const (
	ViolationImport        ViolationCode = "import"
	ViolationClass         ViolationCode = "class"
	ViolationDecorator     ViolationCode = "decorator"
	ViolationLoop          ViolationCode = "loop"
	ViolationComprehension ViolationCode = "comprehension"
	ViolationLambda        ViolationCode = "lambda"
	ViolationTryExcept     ViolationCode = "try_except"
	ViolationDunder        ViolationCode = "dunder"
	ViolationDeniedBuiltin ViolationCode = "denied_builtin"
	ViolationConstruct     ViolationCode = "denied_construct"
	ViolationSignature     ViolationCode = "signature"
	ViolationUnknownName   ViolationCode = "unknown_name"
	ViolationAssignTarget  ViolationCode = "assign_target"
)

// Violation is a single disallowed construct, located in the source.
type Violation struct {
	Code   ViolationCode
	Line   int
	Col    int
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("SANDBOX VIOLATION at %d:%d: %s (code %s)", v.Line, v.Col, v.Detail, v.Code)
}

// deniedTags maps node tags the parser can produce but the sandbox forbids.
var deniedTags = map[string]struct {
	code   ViolationCode
	detail string
}{
	"import":     {ViolationImport, "import statements are not allowed"},
	"importfrom": {ViolationImport, "import statements are not allowed"},
	"class":      {ViolationClass, "class definitions are not allowed"},
	"decorated":  {ViolationDecorator, "decorators are not allowed"},
	"while":      {ViolationLoop, "loop constructs are not allowed"},
	"for":        {ViolationLoop, "loop constructs are not allowed"},
	"listcomp":   {ViolationComprehension, "comprehensions are not allowed"},
	"setcomp":    {ViolationComprehension, "comprehensions are not allowed"},
	"dictcomp":   {ViolationComprehension, "comprehensions are not allowed"},
	"genexp":     {ViolationComprehension, "comprehensions are not allowed"},
	"lambda":     {ViolationLambda, "lambda expressions are not allowed"},
	"try":        {ViolationTryExcept, "exception handling is not allowed"},
	"raise":      {ViolationTryExcept, "exception handling is not allowed"},
	"with":       {ViolationConstruct, "with statements are not allowed"},
	"yield":      {ViolationConstruct, "yield is not allowed"},
	"global":     {ViolationConstruct, "global declarations are not allowed"},
	"nonlocal":   {ViolationConstruct, "nonlocal declarations are not allowed"},
	"del":        {ViolationConstruct, "del statements are not allowed"},
	"assert":     {ViolationConstruct, "assert statements are not allowed"},
	"break":      {ViolationConstruct, "break outside a loop is not allowed"},
	"continue":   {ViolationConstruct, "continue outside a loop is not allowed"},
	"starred":    {ViolationConstruct, "starred arguments are not allowed"},
	"kwarg":      {ViolationConstruct, "keyword arguments are not allowed"},
	"slice":      {ViolationConstruct, "slicing is not allowed"},
	"list":       {ViolationConstruct, "list literals are not allowed"},
	"tuple":      {ViolationConstruct, "tuple literals are not allowed"},
	"set":        {ViolationConstruct, "set literals are not allowed"},
}

// deniedBuiltins are callables that would pierce the sandbox: dynamic
// evaluation/compilation, attribute and namespace introspection, and file or
// environment access. Calls are rejected at validation; the evaluator's
// global environment never contains them either.
var deniedBuiltins = map[string]bool{
	"eval": true, "exec": true, "compile": true,
	"getattr": true, "setattr": true, "delattr": true, "hasattr": true,
	"globals": true, "locals": true, "vars": true, "dir": true,
	"type": true, "id": true, "super": true, "isinstance": true, "issubclass": true,
	"open": true, "input": true, "breakpoint": true, "exit": true, "quit": true, "help": true,
	"__import__": true,
}

// ValidatedPolicy is the outcome of a successful validation: the single
// function definition, decomposed.
type ValidatedPolicy struct {
	Name   string   // function name
	Params []string // exactly three parameter names, in order
	Body   *Node    // the function body block
	Root   *Node    // the full module tree
}

// PolicyArity is the number of arguments every policy function declares:
// the live input mapping, the tunable parameter mapping, and the random
// source.
const PolicyArity = 3

// ValidateSource lexes, parses, and validates a snippet.
func ValidateSource(src string) (*ValidatedPolicy, error) {
	root, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return ValidateTree(root)
}

// ValidateTree verifies every node of the tree against the allow-list and
// checks the structural rules. The first violation in pre-order wins, so a
// disallowed node nested inside an otherwise-legal expression is still
// reported at its own location.
func ValidateTree(root *Node) (*ValidatedPolicy, error) {
	if v := scanDenied(root); v != nil {
		return nil, v
	}
	return checkStructure(root)
}

// scanDenied walks the whole tree looking for deny-listed tags, dunder
// names/attributes, and calls to denied builtins.
func scanDenied(root *Node) *Violation {
	var found *Violation
	root.Walk(func(n *Node) bool {
		if found != nil {
			return false
		}
		if d, ok := deniedTags[n.Tag]; ok {
			found = &Violation{Code: d.code, Line: n.Line, Col: n.Col, Detail: d.detail}
			return false
		}
		switch n.Tag {
		case "name":
			if id, _ := n.Lit.(string); isDunder(id) {
				if deniedBuiltins[id] {
					found = &Violation{Code: ViolationDeniedBuiltin, Line: n.Line, Col: n.Col,
						Detail: fmt.Sprintf("call to builtin %q is not allowed", id)}
				} else {
					found = &Violation{Code: ViolationDunder, Line: n.Line, Col: n.Col,
						Detail: fmt.Sprintf("dunder name %q is not allowed", id)}
				}
				return false
			}
		case "attr":
			if id, _ := n.Lit.(string); isDunder(id) {
				found = &Violation{Code: ViolationDunder, Line: n.Line, Col: n.Col,
					Detail: fmt.Sprintf("dunder attribute %q is not allowed", id)}
				return false
			}
		case "call":
			if callee := n.Kids[0]; callee.Tag == "name" {
				if id, _ := callee.Lit.(string); deniedBuiltins[id] {
					found = &Violation{Code: ViolationDeniedBuiltin, Line: callee.Line, Col: callee.Col,
						Detail: fmt.Sprintf("call to builtin %q is not allowed", id)}
					return false
				}
			}
		}
		return true
	})
	return found
}

func isDunder(id string) bool {
	return len(id) > 4 && strings.HasPrefix(id, "__") && strings.HasSuffix(id, "__")
}

// checkStructure enforces the shape rules: exactly one top-level def with
// exactly PolicyArity plain parameters, no nested defs, assignment only to
// plain local names, and every referenced name resolvable to a parameter, a
// local, a whitelisted global, or the function itself.
func checkStructure(root *Node) (*ValidatedPolicy, error) {
	var def *Node
	for _, st := range root.Kids {
		if st.Tag != "def" {
			return nil, &Violation{Code: ViolationSignature, Line: st.Line, Col: st.Col,
				Detail: "only a single function definition is allowed at top level"}
		}
		if def != nil {
			return nil, &Violation{Code: ViolationSignature, Line: st.Line, Col: st.Col,
				Detail: "more than one top-level function definition"}
		}
		def = st
	}
	if def == nil {
		return nil, &Violation{Code: ViolationSignature, Line: root.Line, Col: root.Col,
			Detail: "snippet must define exactly one function"}
	}

	name, _ := def.Lit.(string)
	paramsNode, body := def.Kids[0], def.Kids[1]
	if len(paramsNode.Kids) != PolicyArity {
		return nil, &Violation{Code: ViolationSignature, Line: paramsNode.Line, Col: paramsNode.Col,
			Detail: fmt.Sprintf("policy function must declare exactly %d parameters, got %d",
				PolicyArity, len(paramsNode.Kids))}
	}
	params := make([]string, 0, PolicyArity)
	seen := map[string]bool{}
	for _, pn := range paramsNode.Kids {
		id, _ := pn.Lit.(string)
		if len(pn.Kids) > 0 {
			return nil, &Violation{Code: ViolationSignature, Line: pn.Line, Col: pn.Col,
				Detail: "parameter defaults are not allowed"}
		}
		if seen[id] {
			return nil, &Violation{Code: ViolationSignature, Line: pn.Line, Col: pn.Col,
				Detail: fmt.Sprintf("duplicate parameter %q", id)}
		}
		seen[id] = true
		params = append(params, id)
	}

	// no nested function definitions
	var nested *Violation
	body.Walk(func(n *Node) bool {
		if nested != nil {
			return false
		}
		if n.Tag == "def" {
			nested = &Violation{Code: ViolationConstruct, Line: n.Line, Col: n.Col,
				Detail: "nested function definitions are not allowed"}
			return false
		}
		return true
	})
	if nested != nil {
		return nil, nested
	}

	if v := checkNames(body, name, params); v != nil {
		return nil, v
	}

	return &ValidatedPolicy{Name: name, Params: params, Body: body, Root: root}, nil
}

// checkNames verifies assignment targets and name resolution over the body.
func checkNames(body *Node, fnName string, params []string) *Violation {
	scope := map[string]bool{fnName: true}
	for _, p := range params {
		scope[p] = true
	}

	// first pass: collect locals, reject non-name targets
	var bad *Violation
	body.Walk(func(n *Node) bool {
		if bad != nil {
			return false
		}
		if n.Tag == "assign" || n.Tag == "augassign" {
			if n.Tag == "assign" && n.Kids[1].Tag == "assign" {
				v := n.Kids[1]
				bad = &Violation{Code: ViolationConstruct, Line: v.Line, Col: v.Col,
					Detail: "chained assignment is not allowed"}
				return false
			}
			target := n.Kids[0]
			if target.Tag != "name" {
				bad = &Violation{Code: ViolationAssignTarget, Line: target.Line, Col: target.Col,
					Detail: "assignment target must be a plain local name"}
				return false
			}
			scope[target.Lit.(string)] = true
		}
		return true
	})
	if bad != nil {
		return bad
	}

	// second pass: every name load must resolve
	body.Walk(func(n *Node) bool {
		if bad != nil {
			return false
		}
		if n.Tag == "name" {
			id, _ := n.Lit.(string)
			if !scope[id] && !globalWhitelist[id] {
				bad = &Violation{Code: ViolationUnknownName, Line: n.Line, Col: n.Col,
					Detail: fmt.Sprintf("name %q is not a parameter, local, or whitelisted global", id)}
				return false
			}
		}
		return true
	})
	return bad
}
