package mongo

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository"
)

// Apart from a failed Connect these tests cover the translation layer; the
// store itself needs a running MongoDB and is exercised through the sqlite implementation's tests.

func TestBuildFilter(t *testing.T) {
	filter, err := buildFilter([]repository.Filter{
		repository.Where("author.id", "u1"),
		{Field: repository.FieldID, Op: repository.OpIn, Value: []string{"a", "b"}},
		{Field: "tags", Op: repository.OpArrayContains, Value: "derby"},
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", filter["author.id"])
	assert.Equal(t, bson.M{"$in": bson.A{"a", "b"}}, filter["_id"])
	assert.Equal(t, "derby", filter["tags"])
}

func TestBuildFilter_SameFieldTwice(t *testing.T) {
	filter, err := buildFilter([]repository.Filter{
		repository.Where("authorId", "u1"),
		{Field: "authorId", Op: repository.OpIn, Value: []string{"u1", "u2"}},
	})
	require.NoError(t, err)

	_, direct := filter["authorId"]
	assert.False(t, direct)
	assert.Len(t, filter["$and"], 2)
}

func TestBuildFilter_UnknownOperator(t *testing.T) {
	_, err := buildFilter([]repository.Filter{{Field: "x", Op: ">=", Value: 1}})
	assert.Error(t, err)
}

func TestToBSON_ConvertsTimestamps(t *testing.T) {
	when := time.Date(2024, 3, 9, 20, 0, 0, 0, time.FixedZone("JST", 9*3600))
	out := toBSON(model.Document{
		"createdAt": model.Timestamp{Time: when},
		"match":     map[string]any{"date": when},
		"id":        "ignored-by-create",
	})

	assert.Equal(t, when.UTC(), out["createdAt"])
	assert.Equal(t, when.UTC(), out["match"].(bson.M)["date"])
}

func TestFromBSON(t *testing.T) {
	when := time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC)
	doc := fromBSON(bson.M{
		"_id":       "p1",
		"createdAt": primitive.NewDateTimeFromTime(when),
		"author":    bson.M{"id": "u1"},
		"imageUrls": bson.A{"a.jpg", "b.jpg"},
		"likeCount": int32(3),
	})

	assert.Equal(t, "p1", doc["id"])
	_, hasMongoID := doc["_id"]
	assert.False(t, hasMongoID)
	assert.Equal(t, when, doc["createdAt"])
	assert.Equal(t, "u1", doc.String("author.id"))
	assert.Equal(t, []any{"a.jpg", "b.jpg"}, doc["imageUrls"])
	assert.Equal(t, float64(3), doc.Number("likeCount"))
}

func TestConnect_BadURI(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	store, err := Connect(context.Background(), "postgres://localhost/kansenki", "kansenki", logger)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "mongo: connecting")
	assert.NotContains(t, logs.String(), "connected to MongoDB")
}
