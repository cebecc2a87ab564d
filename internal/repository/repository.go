// Package repository defines the document store boundary.
//
// Every collection of the application (posts, simple-posts, simple-travels,
// spots, users and their subcollections, banners, questions) lives behind one
// DocumentStore. Implementations: repository/sqlite (default) and
// repository/mongo.
package repository

import (
	"context"

	"github.com/sakif/kansenki/internal/model"
)

// FieldID filters on the document id instead of a body field.
const FieldID = "__id__"

// Op is a filter operator.
type Op string

const (
	OpEqual         Op = "=="
	OpIn            Op = "in"
	OpArrayContains Op = "array-contains"
)

// MaxInValues is the largest value list an OpIn filter may carry. Callers with
// more ids split them into chunks of this size.
const MaxInValues = 30

// Filter is one where-clause. Field may be a dotted path ("author.id").
type Filter struct {
	Field string
	Op    Op
	Value any // []string or []any for OpIn
}

// Where is shorthand for an equality filter.
func Where(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// Query selects documents of one collection. Filters are ANDed.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   int
}

// DocumentStore is the schemaless store every service talks to.
//
// Get and Query return documents with their id under the "id" key. Time values
// written as time.Time may come back as time.Time or as ISO-8601 strings
// depending on the implementation; read them with model.ParseTimestamp.
type DocumentStore interface {
	// Create stores doc under id, generating one when id is empty.
	// An existing id yields apperror.ErrConflict.
	Create(ctx context.Context, collection, id string, doc model.Document) (string, error)
	Get(ctx context.Context, collection, id string) (model.Document, error)
	// Update merges the top-level fields into the stored document.
	Update(ctx context.Context, collection, id string, fields model.Document) error
	// Increment adds delta to a numeric field atomically.
	Increment(ctx context.Context, collection, id, field string, delta int) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, collection string, q Query) ([]model.Document, error)
}

// InValues normalizes an OpIn filter value into a slice.
func InValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	}
	return []any{v}
}

// Chunk splits ids into groups of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxInValues
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
