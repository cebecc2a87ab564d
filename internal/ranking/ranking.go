// Package ranking picks the most popular recent posts across collections.
//
// There is no stored rank: every call fetches the latest documents of each
// ranked collection, scores them from their engagement counters and keeps the
// top few.
package ranking

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/repository"
)

const (
	// FetchLimit is how many recent documents are read from each collection.
	FetchLimit = 100
	// TopN is the size of the ranking.
	TopN = 5
)

// Collections are fetched in this order; ties in score keep it.
var Collections = []string{
	model.CollectionPosts,
	model.CollectionSimplePosts,
	model.CollectionSpots,
}

// Score weighs engagement counters. Missing counters count as zero.
func Score(doc model.Document) float64 {
	return doc.Number(model.FieldLikeCount)*0.3 +
		doc.Number(model.FieldHelpfulCount)*0.4 +
		doc.Number(model.FieldBookmarkCount)*0.2 +
		doc.Number(model.FieldViewCount)*0.1
}

// Candidate is a fetched document with the collection it came from.
type Candidate struct {
	Collection string
	Doc        model.Document
	Score      float64
}

// TopK returns the k highest-scoring candidates, highest first. The sort is
// stable, so equal scores keep their input order, and zero scores are not
// filtered out.
func TopK(candidates []Candidate, k int) []Candidate {
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if k >= 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}

// Aggregator builds the ranking from a DocumentStore.
type Aggregator struct {
	store  repository.DocumentStore
	logger *slog.Logger
}

func NewAggregator(store repository.DocumentStore, logger *slog.Logger) *Aggregator {
	return &Aggregator{store: store, logger: logger}
}

// Entry is one ranked post.
type Entry struct {
	Rank  int                   `json:"rank"`
	Score float64               `json:"score"`
	Post  normalize.UnifiedPost `json:"post"`
}

// Top fetches the recent documents of every ranked collection concurrently,
// keeps the TopN by score and resolves their authors. viewerID only affects
// edit links.
func (a *Aggregator) Top(ctx context.Context, viewerID string) ([]Entry, error) {
	perCollection := make([][]model.Document, len(Collections))

	g, gctx := errgroup.WithContext(ctx)
	for i, collection := range Collections {
		g.Go(func() error {
			docs, err := a.store.Query(gctx, collection, repository.Query{
				OrderBy: "createdAt",
				Desc:    true,
				Limit:   FetchLimit,
			})
			if err != nil {
				return fmt.Errorf("ranking: fetching %s: %w", collection, err)
			}
			perCollection[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var candidates []Candidate
	for i, docs := range perCollection {
		for _, doc := range docs {
			candidates = append(candidates, Candidate{
				Collection: Collections[i],
				Doc:        doc,
				Score:      Score(doc),
			})
		}
	}

	top := TopK(candidates, TopN)

	authorIDs := make([]string, 0, len(top))
	for _, c := range top {
		authorIDs = append(authorIDs, normalize.ResolveAuthorID(c.Doc))
	}
	profiles, err := ResolveProfiles(ctx, a.store, authorIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(top))
	for i, c := range top {
		entries[i] = Entry{
			Rank:  i + 1,
			Score: c.Score,
			Post:  normalize.NormalizeForViewer(c.Doc, c.Collection, ProfileFor(profiles, c.Doc), viewerID),
		}
	}

	a.logger.Debug("ranking built",
		slog.Int("candidates", len(candidates)),
		slog.Int("ranked", len(entries)),
	)
	return entries, nil
}

// ResolveProfiles loads the users documents for ids, repository.MaxInValues
// at a time. Empty and duplicate ids are skipped; ids without a profile are
// simply absent from the result.
func ResolveProfiles(ctx context.Context, store repository.DocumentStore, ids []string) (map[string]normalize.Profile, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	profiles := make(map[string]normalize.Profile, len(unique))
	for _, chunk := range repository.Chunk(unique, repository.MaxInValues) {
		docs, err := store.Query(ctx, model.CollectionUsers, repository.Query{
			Where: []repository.Filter{{Field: repository.FieldID, Op: repository.OpIn, Value: chunk}},
		})
		if err != nil {
			return nil, fmt.Errorf("ranking: resolving authors: %w", err)
		}
		for _, doc := range docs {
			profiles[doc.String("id")] = normalize.ProfileFromDocument(doc)
		}
	}
	return profiles, nil
}

// ProfileFor returns the resolved profile of doc's author, or nil.
func ProfileFor(profiles map[string]normalize.Profile, doc model.Document) *normalize.Profile {
	p, ok := profiles[normalize.ResolveAuthorID(doc)]
	if !ok {
		return nil
	}
	return &p
}
