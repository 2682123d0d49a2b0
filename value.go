// value.go: runtime value model for the policy evaluator.
//
// A small tagged union in the interpreter tradition: the Tag selects the
// shape, Data holds the payload. Policies compute over numbers; strings,
// bools and string-keyed maps exist because inputs/params arrive as mappings
// and outputs leave as one.
package policyscript

import (
	"fmt"
	"math"
)

// ValueTag discriminates the runtime value union.
type ValueTag uint8

const (
	VTNone ValueTag = iota
	VTNum
	VTBool
	VTStr
	VTMap
	VTRand
	VTFun
)

func (t ValueTag) String() string {
	switch t {
	case VTNone:
		return "none"
	case VTNum:
		return "number"
	case VTBool:
		return "bool"
	case VTStr:
		return "string"
	case VTMap:
		return "mapping"
	case VTRand:
		return "rng"
	case VTFun:
		return "function"
	}
	return "unknown"
}

// Value is a runtime value. Payloads by tag: VTNum→float64, VTBool→bool,
// VTStr→string, VTMap→map[string]Value, VTRand→Rand, VTFun→callable.
type Value struct {
	Tag  ValueTag
	Data any
}

func Num(f float64) Value             { return Value{Tag: VTNum, Data: f} }
func Str(s string) Value              { return Value{Tag: VTStr, Data: s} }
func Bool(b bool) Value               { return Value{Tag: VTBool, Data: b} }
func NoneVal() Value                  { return Value{Tag: VTNone} }
func MapVal(m map[string]Value) Value { return Value{Tag: VTMap, Data: m} }

// numMap lifts a plain float mapping into the value world. The input is
// copied; invocations never alias caller state.
func numMap(m map[string]float64) Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = Num(v)
	}
	return MapVal(out)
}

// Truthy follows the source language: zero, empty and none are false.
func (v Value) Truthy() bool {
	switch v.Tag {
	case VTNone:
		return false
	case VTNum:
		return v.Data.(float64) != 0
	case VTBool:
		return v.Data.(bool)
	case VTStr:
		return v.Data.(string) != ""
	case VTMap:
		return len(v.Data.(map[string]Value)) > 0
	}
	return true
}

// Equal is structural equality for the data-shaped tags. Function and rng
// values are never equal to anything.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	switch v.Tag {
	case VTNone:
		return true
	case VTNum:
		return v.Data.(float64) == o.Data.(float64)
	case VTBool:
		return v.Data.(bool) == o.Data.(bool)
	case VTStr:
		return v.Data.(string) == o.Data.(string)
	case VTMap:
		a, b := v.Data.(map[string]Value), o.Data.(map[string]Value)
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.Tag {
	case VTNone:
		return "None"
	case VTNum:
		f := v.Data.(float64)
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return fmt.Sprintf("%d", int64(f))
		}
		return fmt.Sprintf("%g", f)
	case VTBool:
		if v.Data.(bool) {
			return "True"
		}
		return "False"
	case VTStr:
		return fmt.Sprintf("%q", v.Data.(string))
	case VTMap:
		return fmt.Sprintf("%v", v.Data)
	}
	return "<" + v.Tag.String() + ">"
}

// Env is a lexical environment: one frame of locals with a parent chain.
// The outermost parent is always the frozen global environment.
type Env struct {
	vars   map[string]Value
	parent *Env
}

func NewEnv(parent *Env) *Env {
	return &Env{vars: map[string]Value{}, parent: parent}
}

func (e *Env) Get(name string) (Value, bool) {
	for env := e; env != nil; env = env.parent {
		if v, ok := env.vars[name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Define binds name in this frame, shadowing outer frames.
func (e *Env) Define(name string, v Value) { e.vars[name] = v }
