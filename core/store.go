package core

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Document is a raw document as stored in a collection.
type Document = bson.M

// DocumentStore is the store access consumed by the engine. The
// mongostore package provides the MongoDB implementation; tests use
// an in-memory one.
//
// Absence is not an error: FindByID, FindOne and UpdateOne return
// (nil, nil) when nothing matches. Cancellation and timeouts are
// delegated to the store client through ctx.
type DocumentStore interface {
	// FindByID fetches one document by its _id.
	FindByID(ctx context.Context, collection string, id any) (Document, error)

	// FindOne fetches the first document matching the filter.
	FindOne(ctx context.Context, collection string, filter bson.M) (Document, error)

	// Find fetches all documents matching the filter, honoring
	// sort/skip/limit options.
	Find(ctx context.Context, collection string, filter bson.M, opts *FindOptions) ([]Document, error)

	// Count returns the number of documents matching the filter.
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)

	// Aggregate runs an aggregation pipeline and returns its rows.
	Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]Document, error)

	// UpdateOne applies an update to the first document matching the
	// filter and returns the updated document, or (nil, nil) when no
	// document matched. The update of a single document is atomic;
	// this layer relies on that and nothing else.
	UpdateOne(ctx context.Context, collection string, filter bson.M, update bson.M) (Document, error)
}
