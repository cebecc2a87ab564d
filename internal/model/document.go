// Package model defines the data structures used throughout the application.
//
// Stored records are schemaless documents (Document). Typed structs describe what
// the API writes; reads go through Document so that older records with differently
// named fields still load.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Collection names. Subcollections are addressed as "parent/{id}/child" paths.
const (
	CollectionPosts          = "posts"
	CollectionSimplePosts    = "simple-posts"
	CollectionTravels        = "simple-travels"
	CollectionSpots          = "spots"
	CollectionUsers          = "users"
	CollectionBanners        = "banners"
	CollectionQuestions      = "questions"
	CollectionAnonymousLikes = "anonymous-likes"
)

// Per-user subcollection names.
const (
	SubBookmarks = "bookmarks"
	SubLikes     = "likes"
	SubThanks    = "thanks"
)

// Counter field names shared by every post-like collection.
const (
	FieldLikeCount     = "likeCount"
	FieldHelpfulCount  = "helpfulCount"
	FieldBookmarkCount = "bookmarkCount"
	FieldViewCount     = "viewCount"
)

// UserSubcollection returns the path of a per-user subcollection, e.g.
// "users/abc/likes".
func UserSubcollection(uid, name string) string {
	return CollectionUsers + "/" + uid + "/" + name
}

// IsPostLike reports whether documents of the collection can be liked,
// bookmarked, thanked and shown in feeds.
func IsPostLike(collection string) bool {
	switch collection {
	case CollectionPosts, CollectionSimplePosts, CollectionSpots, CollectionTravels:
		return true
	}
	return false
}

// Document is a raw stored record. Any field may be absent.
type Document map[string]any

// Lookup walks a dotted path ("author.id") through nested maps.
func (d Document) Lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the trimmed string at path, or "" when it is missing or not a string.
func (d Document) String(path string) string {
	v, ok := d.Lookup(path)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// Map returns the nested object at path.
func (d Document) Map(path string) (Document, bool) {
	v, ok := d.Lookup(path)
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	return Document(m), true
}

// Number returns the numeric value at path as float64. JSON numbers, Go ints and
// floats are all accepted; anything else is 0.
func (d Document) Number(path string) float64 {
	v, ok := d.Lookup(path)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, _ := n.Float64()
		return f
	}
	return 0
}

// Clone returns a deep copy so callers can hand documents out without sharing state.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return Document(cloneMap(d))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Document:
		return Document(cloneMap(t))
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}

// ToDocument converts a typed struct into a Document through its JSON form.
// The "id" key and null values are dropped: the store keeps ids separately and a
// null would overwrite a field on merge.
func ToDocument(v any) (Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("model: encoding document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("model: decoding document: %w", err)
	}
	delete(doc, "id")
	for k, val := range doc {
		if val == nil {
			delete(doc, k)
		}
	}
	return doc, nil
}

// FromDocument decodes a Document into a typed struct. Timestamps in any of the
// stored shapes are accepted by the Timestamp type.
func FromDocument(doc Document, out any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("model: encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("model: decoding document: %w", err)
	}
	return nil
}
