// Package mongostore implements the engine's DocumentStore over the
// official MongoDB driver.
package mongostore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dosco/reljin/core"
)

const tracerName = "github.com/dosco/reljin/mongostore"

var _ core.DocumentStore = (*Store)(nil)

// Store wraps a MongoDB database handle. All calls delegate
// cancellation and timeouts to the driver; a missing document is
// reported as (nil, nil), never as an error.
type Store struct {
	db     *mongo.Database
	tracer trace.Tracer
}

// New creates a Store over the given database.
func New(db *mongo.Database) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer(tracerName),
	}
}

// Client returns the underlying MongoDB client.
func (s *Store) Client() *mongo.Client {
	return s.db.Client()
}

// Database returns the database name.
func (s *Store) Database() string {
	return s.db.Name()
}

// Ping verifies connectivity to the deployment.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// FindByID fetches one document by its _id.
func (s *Store) FindByID(ctx context.Context, collection string, id any) (core.Document, error) {
	return s.FindOne(ctx, collection, bson.M{"_id": id})
}

// FindOne fetches the first document matching the filter.
func (s *Store) FindOne(ctx context.Context, collection string, filter bson.M) (core.Document, error) {
	ctx, span := s.startSpan(ctx, "FindOne", collection)
	defer span.End()

	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Find fetches all documents matching the filter, honoring
// sort/skip/limit options.
func (s *Store) Find(ctx context.Context, collection string, filter bson.M, fopts *core.FindOptions) ([]core.Document, error) {
	ctx, span := s.startSpan(ctx, "Find", collection)
	defer span.End()

	o := options.Find()
	if fopts != nil {
		if len(fopts.Sort) > 0 {
			o.SetSort(fopts.Sort)
		}
		if fopts.Skip > 0 {
			o.SetSkip(fopts.Skip)
		}
		if fopts.Limit > 0 {
			o.SetLimit(fopts.Limit)
		}
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, o)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

// Count returns the number of documents matching the filter.
func (s *Store) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	ctx, span := s.startSpan(ctx, "Count", collection)
	defer span.End()

	return s.db.Collection(collection).CountDocuments(ctx, filter)
}

// Aggregate runs an aggregation pipeline and returns its rows.
func (s *Store) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]core.Document, error) {
	ctx, span := s.startSpan(ctx, "Aggregate", collection)
	defer span.End()

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cursor)
}

// UpdateOne applies an update to the first document matching the
// filter and returns the document as it is after the update.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter bson.M, update bson.M) (core.Document, error) {
	ctx, span := s.startSpan(ctx, "UpdateOne", collection)
	defer span.End()

	o := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc bson.M
	err := s.db.Collection(collection).FindOneAndUpdate(ctx, filter, update, o).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) startSpan(ctx context.Context, op, collection string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "mongostore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.collection", collection),
			attribute.String("db.operation", op),
		))
}

// decodeAll drains a cursor into documents, closing it on all paths.
func decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]core.Document, error) {
	defer cursor.Close(ctx)

	var docs []core.Document
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}
