package core

import (
	"context"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dosco/reljin/core/internal/qcode"
	"github.com/dosco/reljin/core/internal/sdata"
)

// RelationOptions carries the optional caller filter applied to the
// related collection on the read path.
type RelationOptions struct {
	Filter *Filter
}

// RelationResult is one entry of a batched FindRelations call.
// Relation is nil when the entity's relation resolved to nothing.
type RelationResult struct {
	Entity   Document
	Relation Document
}

// RelationListResult is one entry of a batched QueryRelationsBatch
// call.
type RelationListResult struct {
	Entity    Document
	Relations []Document
}

// AggregateResult is one entry of a batched AggregateRelationsBatch
// call.
type AggregateResult struct {
	Entity    Document
	Aggregate AggregateResponse
}

// CountResult is one entry of a batched CountRelationsBatch call.
type CountResult struct {
	Entity Document
	Count  int64
}

// FindRelation resolves at most one related document for the entity.
// Absence is a valid outcome and returns (nil, nil): an unset foreign
// key, a source entity deleted concurrently, and a relation that
// matched nothing under the filter are all the same empty result.
func (rq *RefQuery) FindRelation(ctx context.Context, collection, relation string, entity Document, opts *RelationOptions) (Document, error) {
	rel, err := rq.relation(collection, relation)
	if err != nil {
		return nil, err
	}
	rq.logOp("find relation", collection, relation)

	rf, ok, err := rq.sourceRefFilter(ctx, collection, rel, entity)
	if err != nil || !ok {
		return nil, err
	}

	fq, err := rq.convertFilter(optFilter(opts))
	if err != nil {
		return nil, err
	}

	doc, err := rq.store.FindOne(ctx, rel.Target, rq.db.MergeFilters(rf, fq))
	if err != nil || doc == nil {
		return nil, err
	}
	return rq.asm.ToDTO(doc)
}

// FindRelations is the batched form of FindRelation. It returns one
// entry per input entity, in input order; entities resolve
// independently and any failure aborts the batch.
func (rq *RefQuery) FindRelations(ctx context.Context, collection, relation string, entities []Document, opts *RelationOptions) ([]RelationResult, error) {
	return batch(rq, ctx, entities, func(ctx context.Context, e Document) (RelationResult, error) {
		doc, err := rq.FindRelation(ctx, collection, relation, e, opts)
		return RelationResult{Entity: e, Relation: doc}, err
	})
}

// QueryRelations returns all related documents matching the caller
// query, honoring its sort and pagination. An empty result is a
// valid outcome.
func (rq *RefQuery) QueryRelations(ctx context.Context, collection, relation string, entity Document, q *Query) ([]Document, error) {
	rel, err := rq.relation(collection, relation)
	if err != nil {
		return nil, err
	}
	rq.logOp("query relations", collection, relation)

	rf, ok, err := rq.sourceRefFilter(ctx, collection, rel, entity)
	if err != nil || !ok {
		return nil, err
	}

	cq, err := rq.asm.ConvertQuery(q)
	if err != nil {
		return nil, err
	}
	fq, fopts, err := rq.db.BuildQuery(cq)
	if err != nil {
		return nil, err
	}

	docs, err := rq.store.Find(ctx, rel.Target, rq.db.MergeFilters(rf, fq), fopts)
	if err != nil {
		return nil, err
	}

	out := make([]Document, len(docs))
	for i, d := range docs {
		if out[i], err = rq.asm.ToDTO(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// QueryRelationsBatch is the batched form of QueryRelations; one
// entry per input entity, input order preserved.
func (rq *RefQuery) QueryRelationsBatch(ctx context.Context, collection, relation string, entities []Document, q *Query) ([]RelationListResult, error) {
	return batch(rq, ctx, entities, func(ctx context.Context, e Document) (RelationListResult, error) {
		docs, err := rq.QueryRelations(ctx, collection, relation, e, q)
		return RelationListResult{Entity: e, Relations: docs}, err
	})
}

// AggregateRelations runs an aggregate query against the related
// collection scoped to the entity. When the entity's foreign-key
// value is empty or the entity is gone, it returns an empty response
// without querying the target collection.
func (rq *RefQuery) AggregateRelations(ctx context.Context, collection, relation string, entity Document, filter *Filter, aq *AggregateQuery) (AggregateResponse, error) {
	rel, err := rq.relation(collection, relation)
	if err != nil {
		return AggregateResponse{}, err
	}
	rq.logOp("aggregate relations", collection, relation)

	rf, ok, err := rq.sourceRefFilter(ctx, collection, rel, entity)
	if err != nil || !ok {
		return AggregateResponse{}, err
	}

	fq, err := rq.convertFilter(filter)
	if err != nil {
		return AggregateResponse{}, err
	}
	caq, err := rq.asm.ConvertAggregateQuery(aq)
	if err != nil {
		return AggregateResponse{}, err
	}

	pipeline, err := rq.db.BuildAggregateQuery(caq, rq.db.MergeFilters(rf, fq))
	if err != nil {
		return AggregateResponse{}, err
	}

	rows, err := rq.store.Aggregate(ctx, rel.Target, pipeline)
	if err != nil || len(rows) == 0 {
		return AggregateResponse{}, err
	}
	return rq.agg.ConvertToAggregateResponse(rows[0])
}

// AggregateRelationsBatch is the batched form of AggregateRelations.
func (rq *RefQuery) AggregateRelationsBatch(ctx context.Context, collection, relation string, entities []Document, filter *Filter, aq *AggregateQuery) ([]AggregateResult, error) {
	return batch(rq, ctx, entities, func(ctx context.Context, e Document) (AggregateResult, error) {
		ar, err := rq.AggregateRelations(ctx, collection, relation, e, filter, aq)
		return AggregateResult{Entity: e, Aggregate: ar}, err
	})
}

// CountRelations returns the number of related documents matching
// the filter. An empty foreign-key value returns 0 without querying.
func (rq *RefQuery) CountRelations(ctx context.Context, collection, relation string, entity Document, filter *Filter) (int64, error) {
	rel, err := rq.relation(collection, relation)
	if err != nil {
		return 0, err
	}
	rq.logOp("count relations", collection, relation)

	rf, ok, err := rq.sourceRefFilter(ctx, collection, rel, entity)
	if err != nil || !ok {
		return 0, err
	}

	fq, err := rq.convertFilter(filter)
	if err != nil {
		return 0, err
	}
	return rq.store.Count(ctx, rel.Target, rq.db.MergeFilters(rf, fq))
}

// CountRelationsBatch is the batched form of CountRelations.
func (rq *RefQuery) CountRelationsBatch(ctx context.Context, collection, relation string, entities []Document, filter *Filter) ([]CountResult, error) {
	return batch(rq, ctx, entities, func(ctx context.Context, e Document) (CountResult, error) {
		n, err := rq.CountRelations(ctx, collection, relation, e, filter)
		return CountResult{Entity: e, Count: n}, err
	})
}

// sourceRefFilter re-fetches the source entity by id and derives the
// identity constraint against the related collection. ok is false,
// with no error, when the entity no longer exists or its foreign-key
// value is empty; callers return their natural empty result then.
func (rq *RefQuery) sourceRefFilter(ctx context.Context, collection string, rel sdata.Relation, entity Document) (bson.M, bool, error) {
	id, err := entityID(entity)
	if err != nil {
		return nil, false, err
	}

	fresh, err := rq.store.FindByID(ctx, collection, id)
	if err != nil {
		return nil, false, err
	}
	if fresh == nil {
		return nil, false, nil
	}

	switch rel.Kind {
	case sdata.KindLookup:
		vals := refValues(fresh, rel.LocalField)
		switch len(vals) {
		case 0:
			return nil, false, nil
		case 1:
			return bson.M{rel.ForeignField: vals[0]}, true, nil
		default:
			return bson.M{rel.ForeignField: bson.M{"$in": vals}}, true, nil
		}

	default: // KindReference
		vals := refValues(fresh, rel.Field)
		if len(vals) == 0 {
			return nil, false, nil
		}
		if rel.Array {
			return bson.M{"_id": bson.M{"$in": vals}}, true, nil
		}
		return bson.M{"_id": vals[0]}, true, nil
	}
}

// convertFilter runs a bare filter through the assembler and builds
// the native match document.
func (rq *RefQuery) convertFilter(filter *Filter) (bson.M, error) {
	q, err := rq.asm.ConvertQuery(&qcode.Query{Filter: filter})
	if err != nil {
		return nil, err
	}
	var f *Filter
	if q != nil {
		f = q.Filter
	}
	return rq.db.BuildFilterQuery(f)
}

func (rq *RefQuery) logOp(op, collection, relation string) {
	rq.log.Debug(op,
		zap.String("op_id", xid.New().String()),
		zap.String("collection", collection),
		zap.String("relation", relation))
}

func optFilter(opts *RelationOptions) *Filter {
	if opts == nil {
		return nil
	}
	return opts.Filter
}

// batch applies a single-entity operation independently to each
// input entity, collecting results by input index so ordering is
// preserved no matter how the work interleaves. The first error
// cancels the remaining work and fails the whole batch.
func batch[T any](rq *RefQuery, ctx context.Context, entities []Document, fn func(context.Context, Document) (T, error)) ([]T, error) {
	out := make([]T, len(entities))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(rq.batchLimit)

	for i, e := range entities {
		i, e := i, e
		g.Go(func() error {
			r, err := fn(ctx, e)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
