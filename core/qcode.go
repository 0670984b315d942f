package core

import (
	"github.com/dosco/reljin/core/internal/dialect"
	"github.com/dosco/reljin/core/internal/qcode"
	"github.com/dosco/reljin/core/internal/sdata"
)

// The filter grammar and schema types are implemented in internal
// packages and surfaced here for callers.

type (
	// Filter is a caller-supplied filter expression tree.
	Filter = qcode.Exp

	// FilterOp is a filter operator.
	FilterOp = qcode.ExpOp

	// Query is a filter with sort and pagination directives.
	Query = qcode.Query

	// OrderBy is one sort directive of a Query.
	OrderBy = qcode.OrderBy

	// AggregateQuery is a declarative count/sum/avg/min/max spec.
	AggregateQuery = qcode.AggregateQuery

	// FindOptions is the store-native form of sort/skip/limit.
	FindOptions = dialect.FindOptions

	// Schema describes the collections and their relations.
	Schema = sdata.Schema

	// SchemaCollection declares one collection of a Schema.
	SchemaCollection = sdata.Collection

	// Relation is the classified descriptor of a named relation.
	Relation = sdata.Relation

	// RelationKind tags a Relation as reference or lookup.
	RelationKind = sdata.RelationKind
)

const (
	OpAnd             = qcode.OpAnd
	OpOr              = qcode.OpOr
	OpNot             = qcode.OpNot
	OpEquals          = qcode.OpEquals
	OpNotEquals       = qcode.OpNotEquals
	OpGreaterOrEquals = qcode.OpGreaterOrEquals
	OpGreaterThan     = qcode.OpGreaterThan
	OpLesserOrEquals  = qcode.OpLesserOrEquals
	OpLesserThan      = qcode.OpLesserThan
	OpIn              = qcode.OpIn
	OpNotIn           = qcode.OpNotIn
	OpLike            = qcode.OpLike
	OpRegex           = qcode.OpRegex
	OpExists          = qcode.OpExists
	OpIsNull          = qcode.OpIsNull

	OrderAsc  = qcode.OrderAsc
	OrderDesc = qcode.OrderDesc

	KindReference = sdata.KindReference
	KindLookup    = sdata.KindLookup
)

// NewFilter returns a leaf comparison node.
func NewFilter(field string, op FilterOp, val any) *Filter {
	return qcode.NewFilter(field, op, val)
}

// NewAnd combines filters with AND semantics.
func NewAnd(children ...*Filter) *Filter { return qcode.NewAnd(children...) }

// NewOr combines filters with OR semantics.
func NewOr(children ...*Filter) *Filter { return qcode.NewOr(children...) }

// NewNot negates a filter.
func NewNot(child *Filter) *Filter { return qcode.NewNot(child) }

// NewSchema builds a schema from declared collections.
func NewSchema(cols []SchemaCollection) (*Schema, error) {
	return sdata.NewSchema(cols)
}

// ParseSchema builds a schema from YAML bytes.
func ParseSchema(b []byte) (*Schema, error) {
	return sdata.ParseSchema(b)
}
