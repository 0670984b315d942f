package core

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/dosco/reljin/core/internal/qcode"
)

// Assembler translates between a relation's declared type and its
// underlying document representation. It is treated as a black box
// that preserves filter semantics.
type Assembler interface {
	// ConvertQuery rewrites a caller query into document terms.
	ConvertQuery(q *Query) (*Query, error)

	// ConvertAggregateQuery rewrites an aggregate spec into document
	// terms.
	ConvertAggregateQuery(aq *AggregateQuery) (*AggregateQuery, error)

	// ToDTO converts a raw document into the caller-facing shape.
	ToDTO(doc Document) (Document, error)
}

// PassthroughAssembler is the default Assembler: declared and
// document representations are the same.
type PassthroughAssembler struct{}

func (PassthroughAssembler) ConvertQuery(q *Query) (*Query, error) { return q, nil }

func (PassthroughAssembler) ConvertAggregateQuery(aq *AggregateQuery) (*AggregateQuery, error) {
	return aq, nil
}

func (PassthroughAssembler) ToDTO(doc Document) (Document, error) { return doc, nil }

// TypedAssembler maps between declared field names and document
// field names and shapes documents through a DTO struct. Fields maps
// declared name -> document name; filter fields, sort keys and
// aggregate fields are rewritten, and ToDTO decodes the raw document
// into T (dropping anything T does not declare) before re-encoding.
type TypedAssembler[T any] struct {
	Fields map[string]string
}

func (a TypedAssembler[T]) ConvertQuery(q *Query) (*Query, error) {
	if q == nil {
		return nil, nil
	}
	out := *q
	out.Filter = a.convertExp(q.Filter)
	if len(q.Sort) > 0 {
		out.Sort = make([]OrderBy, len(q.Sort))
		for i, ob := range q.Sort {
			out.Sort[i] = OrderBy{Field: a.field(ob.Field), Dir: ob.Dir}
		}
	}
	return &out, nil
}

func (a TypedAssembler[T]) ConvertAggregateQuery(aq *AggregateQuery) (*AggregateQuery, error) {
	if aq == nil {
		return nil, nil
	}
	return &AggregateQuery{
		Count: a.fields(aq.Count),
		Sum:   a.fields(aq.Sum),
		Avg:   a.fields(aq.Avg),
		Min:   a.fields(aq.Min),
		Max:   a.fields(aq.Max),
	}, nil
}

func (a TypedAssembler[T]) ToDTO(doc Document) (Document, error) {
	if doc == nil {
		return nil, nil
	}

	var dto T
	if err := mapstructure.Decode(map[string]any(doc), &dto); err != nil {
		return nil, fmt.Errorf("assembler: decode: %w", err)
	}

	var out map[string]any
	if err := mapstructure.Decode(dto, &out); err != nil {
		return nil, fmt.Errorf("assembler: encode: %w", err)
	}
	return Document(out), nil
}

func (a TypedAssembler[T]) field(name string) string {
	if doc, ok := a.Fields[name]; ok {
		return doc
	}
	return name
}

func (a TypedAssembler[T]) fields(names []string) []string {
	if names == nil {
		return nil
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = a.field(n)
	}
	return out
}

func (a TypedAssembler[T]) convertExp(ex *Filter) *Filter {
	if ex == nil {
		return nil
	}
	out := *ex
	out.Field = a.field(ex.Field)
	if len(ex.Children) > 0 {
		out.Children = make([]*qcode.Exp, len(ex.Children))
		for i, c := range ex.Children {
			out.Children[i] = a.convertExp(c)
		}
	}
	return &out
}
