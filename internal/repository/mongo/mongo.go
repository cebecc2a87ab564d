// Package mongo implements repository.DocumentStore on MongoDB.
//
// Each document collection (including per-user subcollection paths such as
// "users/{uid}/likes") is its own Mongo collection, and the document id is the
// string _id.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rs/xid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
)

var _ repository.DocumentStore = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

// Connect dials uri, pings the deployment and selects database.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging: %w", err)
	}

	logger.Info("connected to MongoDB", slog.String("database", database))
	return &Store{client: client, db: client.Database(database), logger: logger}, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("mongo: disconnecting: %w", err)
	}
	s.logger.Info("disconnected from MongoDB", slog.String("database", s.db.Name()))
	return nil
}

func (s *Store) Create(ctx context.Context, collection, id string, doc model.Document) (string, error) {
	if id == "" {
		id = xid.New().String()
	}

	body := toBSON(doc)
	body["_id"] = id
	delete(body, "id")

	_, err := s.db.Collection(collection).InsertOne(ctx, body)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperror.Conflict(collection, id)
		}
		return "", fmt.Errorf("mongo: creating %s/%s: %w", collection, id, err)
	}
	return id, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound(collection, id)
		}
		return nil, fmt.Errorf("mongo: getting %s/%s: %w", collection, id, err)
	}
	return fromBSON(raw), nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields model.Document) error {
	set := toBSON(fields)
	delete(set, "id")
	delete(set, "_id")
	if len(set) == 0 {
		_, err := s.Get(ctx, collection, id)
		return err
	}

	result, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("mongo: updating %s/%s: %w", collection, id, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

func (s *Store) Increment(ctx context.Context, collection, id, field string, delta int) error {
	result, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{field: delta}},
	)
	if err != nil {
		return fmt.Errorf("mongo: incrementing %s on %s/%s: %w", field, collection, id, err)
	}
	if result.MatchedCount == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	result, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongo: deleting %s/%s: %w", collection, id, err)
	}
	if result.DeletedCount == 0 {
		return apperror.NotFound(collection, id)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q repository.Query) ([]model.Document, error) {
	filter, err := buildFilter(q.Where)
	if err != nil {
		return nil, err
	}

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Desc {
			dir = -1
		}
		field := q.OrderBy
		if field == repository.FieldID {
			field = "_id"
		}
		sort := bson.D{{Key: field, Value: dir}}
		if field != "_id" {
			sort = append(sort, bson.E{Key: "_id", Value: dir})
		}
		opts.SetSort(sort)
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: querying %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("mongo: reading %s: %w", collection, err)
	}

	docs := make([]model.Document, 0, len(raw))
	for _, r := range raw {
		docs = append(docs, fromBSON(r))
	}
	return docs, nil
}

// buildFilter translates where-clauses into a Mongo filter. Mongo matches a
// scalar against array elements on plain equality, so array-contains needs no
// operator of its own.
func buildFilter(where []repository.Filter) (bson.M, error) {
	filter := bson.M{}
	for _, f := range where {
		field := f.Field
		if field == repository.FieldID {
			field = "_id"
		}

		var cond any
		switch f.Op {
		case repository.OpEqual, "", repository.OpArrayContains:
			cond = toBSONValue(f.Value)
		case repository.OpIn:
			values := repository.InValues(f.Value)
			converted := make(bson.A, len(values))
			for i, v := range values {
				converted[i] = toBSONValue(v)
			}
			cond = bson.M{"$in": converted}
		default:
			return nil, fmt.Errorf("mongo: unsupported filter operator %q", f.Op)
		}

		if existing, ok := filter[field]; ok {
			// Two clauses on one field: combine with $and.
			and, _ := filter["$and"].(bson.A)
			filter["$and"] = append(and, bson.M{field: existing}, bson.M{field: cond})
			delete(filter, field)
			continue
		}
		filter[field] = cond
	}
	return filter, nil
}

func toBSON(doc model.Document) bson.M {
	out := bson.M{}
	for k, v := range doc {
		out[k] = toBSONValue(v)
	}
	return out
}

func toBSONValue(v any) any {
	switch t := v.(type) {
	case model.Timestamp:
		if t.IsZero() {
			return nil
		}
		return t.UTC()
	case time.Time:
		return t.UTC()
	case model.Document:
		return toBSON(t)
	case map[string]any:
		return toBSON(t)
	case []any:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = toBSONValue(val)
		}
		return out
	}
	return v
}

func fromBSON(raw bson.M) model.Document {
	doc := model.Document{}
	for k, v := range raw {
		if k == "_id" {
			doc["id"] = fmt.Sprint(v)
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return doc
}

func fromBSONValue(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		return map[string]any(fromBSON(t))
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = fromBSONValue(val)
		}
		return out
	}
	return v
}
