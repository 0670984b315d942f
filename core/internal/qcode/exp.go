package qcode

import "fmt"

// ExpOp identifies a boolean combinator or a leaf comparison
// in a filter expression tree.
type ExpOp int8

const (
	OpNop ExpOp = iota
	OpAnd
	OpOr
	OpNot
	OpEquals
	OpNotEquals
	OpGreaterOrEquals
	OpGreaterThan
	OpLesserOrEquals
	OpLesserThan
	OpIn
	OpNotIn
	OpLike
	OpRegex
	OpExists
	OpIsNull
)

// String returns the operator name as used in the caller-facing
// filter grammar.
func (op ExpOp) String() string {
	switch op {
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	case OpEquals:
		return "eq"
	case OpNotEquals:
		return "neq"
	case OpGreaterOrEquals:
		return "gte"
	case OpGreaterThan:
		return "gt"
	case OpLesserOrEquals:
		return "lte"
	case OpLesserThan:
		return "lt"
	case OpIn:
		return "in"
	case OpNotIn:
		return "nin"
	case OpLike:
		return "like"
	case OpRegex:
		return "regex"
	case OpExists:
		return "exists"
	case OpIsNull:
		return "is_null"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}

// Exp is a node in a filter expression tree. Boolean nodes
// (OpAnd, OpOr, OpNot) carry Children; leaf nodes carry a field
// path, a comparison operator and a value.
//
// An Exp has no persistent identity. It is built, translated and
// discarded within a single call.
type Exp struct {
	Op       ExpOp
	Field    string
	Val      any
	Children []*Exp
}

func newExpOp(op ExpOp) *Exp {
	return &Exp{Op: op}
}

// NewFilter returns a leaf comparison node.
func NewFilter(field string, op ExpOp, val any) *Exp {
	return &Exp{Op: op, Field: field, Val: val}
}

// NewAnd combines the given expressions with AND semantics.
func NewAnd(children ...*Exp) *Exp {
	ex := newExpOp(OpAnd)
	ex.Children = children
	return ex
}

// NewOr combines the given expressions with OR semantics.
func NewOr(children ...*Exp) *Exp {
	ex := newExpOp(OpOr)
	ex.Children = children
	return ex
}

// NewNot negates the given expression.
func NewNot(child *Exp) *Exp {
	ex := newExpOp(OpNot)
	ex.Children = []*Exp{child}
	return ex
}

// And merges two filters with AND semantics. A nil operand
// collapses to the other; the merge is associative and commutative
// with respect to result-set intersection.
func And(a, b *Exp) *Exp {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return NewAnd(a, b)
}

// IsBool reports whether the node is a boolean combinator rather
// than a leaf comparison.
func (ex *Exp) IsBool() bool {
	switch ex.Op {
	case OpAnd, OpOr, OpNot:
		return true
	}
	return false
}
