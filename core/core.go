// Package core implements a relation-resolution engine for a
// document store. Given an entity document and the name of a
// relation declared in the schema (a direct reference field, an
// embedded reference or a virtual lookup), it resolves, aggregates,
// counts and mutates the related documents, always scoped by an
// optional caller-supplied filter.
package core

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dosco/reljin/core/internal/dialect"
	"github.com/dosco/reljin/core/internal/sdata"
)

const defaultBatchConcurrency = 8

// RefQuery is the reference query engine. It is safe for concurrent
// use; it holds no per-call state and caches nothing across calls.
type RefQuery struct {
	schema     *sdata.Schema
	store      DocumentStore
	db         dialect.MongoDB
	asm        Assembler
	agg        AggregateResultBuilder
	log        *zap.Logger
	batchLimit int
}

// Option configures a RefQuery.
type Option func(*RefQuery) error

// OptionSetLogger sets the zap logger used for per-operation debug
// logging.
func OptionSetLogger(log *zap.Logger) Option {
	return func(rq *RefQuery) error {
		if log == nil {
			return errors.New("logger is nil")
		}
		rq.log = log
		return nil
	}
}

// OptionSetAssembler sets the type assembler applied to caller
// queries and result documents.
func OptionSetAssembler(asm Assembler) Option {
	return func(rq *RefQuery) error {
		if asm == nil {
			return errors.New("assembler is nil")
		}
		rq.asm = asm
		return nil
	}
}

// OptionSetAggregateBuilder sets the aggregate result builder.
func OptionSetAggregateBuilder(agg AggregateResultBuilder) Option {
	return func(rq *RefQuery) error {
		if agg == nil {
			return errors.New("aggregate builder is nil")
		}
		rq.agg = agg
		return nil
	}
}

// OptionSetBatchConcurrency bounds how many entities of a batched
// call are resolved at once. One means strictly sequential.
func OptionSetBatchConcurrency(n int) Option {
	return func(rq *RefQuery) error {
		if n < 1 {
			return fmt.Errorf("batch concurrency must be >= 1, got %d", n)
		}
		rq.batchLimit = n
		return nil
	}
}

// New creates a reference query engine over the given schema and
// store.
func New(schema *Schema, store DocumentStore, options ...Option) (*RefQuery, error) {
	if schema == nil {
		return nil, errors.New("schema is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}

	rq := &RefQuery{
		schema:     schema,
		store:      store,
		asm:        PassthroughAssembler{},
		agg:        GroupRowBuilder{},
		log:        zap.NewNop(),
		batchLimit: defaultBatchConcurrency,
	}
	for _, op := range options {
		if err := op(rq); err != nil {
			return nil, err
		}
	}
	return rq, nil
}

// relation resolves and classifies a relation name. Every public
// operation goes through here before touching the store.
func (rq *RefQuery) relation(collection, name string) (sdata.Relation, error) {
	return rq.schema.Relation(collection, name)
}

// entityID extracts the document id of a source entity.
func entityID(entity Document) (any, error) {
	id, ok := entity["_id"]
	if !ok || id == nil {
		return nil, errors.New("entity has no _id")
	}
	return id, nil
}

// refValues normalizes a foreign-key field value into the id set it
// holds. An absent, nil or empty value yields an empty set.
func refValues(doc Document, path string) []any {
	v, ok := sdata.FieldValue(doc, path)
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}
