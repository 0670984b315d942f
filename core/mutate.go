package core

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dosco/reljin/core/internal/sdata"
)

// MutateOptions carries the optional filters applied by mutation
// operations. Filter scopes the entity being mutated (authorization
// or tenancy); RelationFilter scopes the existence check of the
// relation targets.
type MutateOptions struct {
	Filter         *Filter
	RelationFilter *Filter
}

// AddRelations appends relationIDs to the entity's reference array
// field and returns the updated entity. All relation targets must
// exist within the relation-filter scope; if fewer match, nothing is
// linked.
func (rq *RefQuery) AddRelations(ctx context.Context, collection, relation string, id any, relationIDs []any, opts *MutateOptions) (Document, error) {
	rel, err := rq.mutableRelation(collection, relation, true)
	if err != nil {
		return nil, err
	}
	rq.logOp("add relations", collection, relation)

	if err := rq.verifyRelations(ctx, rel, relationIDs, opts, "add"); err != nil {
		return nil, err
	}

	update := bson.M{"$push": bson.M{rel.Field: bson.M{"$each": relationIDs}}}
	return rq.updateEntity(ctx, collection, id, opts, update)
}

// SetRelation overwrites the entity's singular reference field with
// relationID and returns the updated entity. Exactly one target must
// match within the relation-filter scope.
func (rq *RefQuery) SetRelation(ctx context.Context, collection, relation string, id, relationID any, opts *MutateOptions) (Document, error) {
	rel, err := rq.mutableRelation(collection, relation, false)
	if err != nil {
		return nil, err
	}
	rq.logOp("set relation", collection, relation)

	if err := rq.verifyRelation(ctx, rel, relationID, opts, "set"); err != nil {
		return nil, err
	}

	update := bson.M{"$set": bson.M{rel.Field: relationID}}
	return rq.updateEntity(ctx, collection, id, opts, update)
}

// RemoveRelation unsets the entity's singular reference field. The
// target's existence is re-verified first even though it is being
// removed; this stops callers from unlinking a reference outside
// their relation-filter scope. The entity is reloaded fresh after
// the update.
func (rq *RefQuery) RemoveRelation(ctx context.Context, collection, relation string, id, relationID any, opts *MutateOptions) (Document, error) {
	rel, err := rq.mutableRelation(collection, relation, false)
	if err != nil {
		return nil, err
	}
	rq.logOp("remove relation", collection, relation)

	if err := rq.verifyRelation(ctx, rel, relationID, opts, "remove"); err != nil {
		return nil, err
	}

	update := bson.M{"$unset": bson.M{rel.Field: ""}}
	if _, err := rq.updateEntity(ctx, collection, id, opts, update); err != nil {
		return nil, err
	}
	return rq.reloadEntity(ctx, collection, id)
}

// RemoveRelations pulls relationIDs from the entity's reference
// array field, with the same all-or-nothing existence check as
// AddRelations, and reloads the entity fresh afterwards.
func (rq *RefQuery) RemoveRelations(ctx context.Context, collection, relation string, id any, relationIDs []any, opts *MutateOptions) (Document, error) {
	rel, err := rq.mutableRelation(collection, relation, true)
	if err != nil {
		return nil, err
	}
	rq.logOp("remove relations", collection, relation)

	if err := rq.verifyRelations(ctx, rel, relationIDs, opts, "remove"); err != nil {
		return nil, err
	}

	update := bson.M{"$pull": bson.M{rel.Field: bson.M{"$in": relationIDs}}}
	if _, err := rq.updateEntity(ctx, collection, id, opts, update); err != nil {
		return nil, err
	}
	return rq.reloadEntity(ctx, collection, id)
}

// mutableRelation classifies the relation and rejects kinds and
// shapes a mutation cannot operate on. Virtual lookups store no
// foreign key, so there is nothing to write.
func (rq *RefQuery) mutableRelation(collection, relation string, wantArray bool) (sdata.Relation, error) {
	rel, err := rq.relation(collection, relation)
	if err != nil {
		return rel, err
	}
	if rel.Kind == sdata.KindLookup {
		return rel, fmt.Errorf("%w: %s.%s is a %s relation", ErrRelationNotSupported, collection, relation, rel.Kind)
	}
	if rel.Array != wantArray {
		shape := "singular"
		if rel.Array {
			shape = "an array"
		}
		return rel, fmt.Errorf("%w: %s.%s is %s", ErrRelationNotSupported, collection, relation, shape)
	}
	return rel, nil
}

// verifyRelations checks that every id in relationIDs matches a
// document in the target collection within the relation-filter
// scope. A shortfall fails the whole operation before anything is
// written.
func (rq *RefQuery) verifyRelations(ctx context.Context, rel sdata.Relation, relationIDs []any, opts *MutateOptions, verb string) error {
	rf, err := rq.convertFilter(mutRelationFilter(opts))
	if err != nil {
		return err
	}
	fq, err := rq.db.BuildIDInFilterQuery(relationIDs, nil)
	if err != nil {
		return err
	}

	n, err := rq.store.Count(ctx, rel.Target, rq.db.MergeFilters(fq, rf))
	if err != nil {
		return err
	}
	if n != int64(len(relationIDs)) {
		return fmt.Errorf("%w to %s", ErrMissingRelations, verb)
	}
	return nil
}

// verifyRelation checks that exactly one document matches
// relationID within the relation-filter scope.
func (rq *RefQuery) verifyRelation(ctx context.Context, rel sdata.Relation, relationID any, opts *MutateOptions, verb string) error {
	rf, err := rq.convertFilter(mutRelationFilter(opts))
	if err != nil {
		return err
	}

	n, err := rq.store.Count(ctx, rel.Target, rq.db.MergeFilters(bson.M{"_id": relationID}, rf))
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("%w to %s", ErrMissingRelation, verb)
	}
	return nil
}

// updateEntity applies an update to the entity located by id plus
// the caller filter. No match is a hard not-found: the caller asked
// to mutate something it cannot see.
func (rq *RefQuery) updateEntity(ctx context.Context, collection string, id any, opts *MutateOptions, update bson.M) (Document, error) {
	fq, err := rq.db.BuildIDFilterQuery(id, mutFilter(opts))
	if err != nil {
		return nil, err
	}

	doc, err := rq.store.UpdateOne(ctx, collection, fq, update)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s id %v", ErrNotFound, collection, id)
	}
	return rq.asm.ToDTO(doc)
}

// reloadEntity fetches the entity fresh from the primary collection.
func (rq *RefQuery) reloadEntity(ctx context.Context, collection string, id any) (Document, error) {
	doc, err := rq.store.FindByID(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s id %v", ErrNotFound, collection, id)
	}
	return rq.asm.ToDTO(doc)
}

func mutFilter(opts *MutateOptions) *Filter {
	if opts == nil {
		return nil
	}
	return opts.Filter
}

func mutRelationFilter(opts *MutateOptions) *Filter {
	if opts == nil {
		return nil
	}
	return opts.RelationFilter
}
