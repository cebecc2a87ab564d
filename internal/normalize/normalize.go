// Package normalize turns documents from the four post-like collections into
// one display record.
//
// posts, simple-posts, spots and simple-travels were written by different
// forms over time, so titles, images, authors and timestamps live under
// different field names. Normalize reads every known spelling and always
// produces a complete UnifiedPost: a missing field falls back to a default, it
// never causes an error.
package normalize

import (
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/model"
)

const (
	UntitledTitle = "無題"
	AnonymousName = "匿名ユーザー"
	DefaultAvatar = "/default-avatar.svg"
)

// hrefPrefix maps a collection to its detail page.
var hrefPrefix = map[string]string{
	model.CollectionPosts:       "/posts/",
	model.CollectionSimplePosts: "/simple-posts/",
	model.CollectionSpots:       "/spots/",
	model.CollectionTravels:     "/travels/",
}

// editPrefix maps a collection to its edit form.
var editPrefix = map[string]string{
	model.CollectionPosts:       "/edit/",
	model.CollectionSimplePosts: "/edit-simple/",
	model.CollectionSpots:       "/edit-spot/",
	model.CollectionTravels:     "/edit-travel/",
}

// Author is the display block of a post's writer.
type Author struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// Profile is the part of a user profile the normalizer needs. Callers resolve
// profiles in bulk and pass the one matching ResolveAuthorID.
type Profile struct {
	Nickname  string
	AvatarURL string
}

// ProfileFromDocument reads a users/{uid} document.
func ProfileFromDocument(doc model.Document) Profile {
	return Profile{
		Nickname:  doc.String("nickname"),
		AvatarURL: doc.String("avatarUrl"),
	}
}

// UnifiedPost is what feeds, rankings, profile pages and bookmarks render.
type UnifiedPost struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Subtitle  *string        `json:"subtitle"`
	ImageURLs []string       `json:"imageUrls"`
	Author    Author         `json:"author"`
	CreatedAt time.Time      `json:"createdAt"`
	Href      string         `json:"href"`
	EditHref  string         `json:"editHref,omitempty"`
	Raw       model.Document `json:"raw"`
}

// Normalize maps doc, read from collection, into a UnifiedPost. profile may be
// nil when the author has no profile document.
func Normalize(doc model.Document, collection string, profile *Profile) UnifiedPost {
	id := doc.String("id")
	title, subtitle := titles(doc, collection)

	return UnifiedPost{
		ID:        id,
		Type:      collection,
		Title:     title,
		Subtitle:  subtitle,
		ImageURLs: ImageURLs(doc),
		Author:    resolveAuthor(doc, profile),
		CreatedAt: Timestamp(doc["createdAt"]),
		Href:      link(hrefPrefix, collection, id),
		Raw:       doc.Clone(),
	}
}

// NormalizeForViewer is Normalize plus the edit link, which is only set when
// viewerID is the post's author.
func NormalizeForViewer(doc model.Document, collection string, profile *Profile, viewerID string) UnifiedPost {
	p := Normalize(doc, collection, profile)
	if viewerID != "" && viewerID == p.Author.ID {
		p.EditHref = link(editPrefix, collection, p.ID)
	}
	return p
}

// Timestamp converts any stored createdAt shape into a time.Time. Unknown
// shapes give the zero time.
func Timestamp(v any) time.Time {
	t, ok := model.ParseTimestamp(v)
	if !ok {
		return time.Time{}
	}
	return t
}

// MatchTitle returns "home vs away" when both teams are known.
func MatchTitle(doc model.Document) string {
	home := firstString(doc, "match.homeTeam", "homeTeam")
	away := firstString(doc, "match.awayTeam", "awayTeam")
	if home == "" || away == "" {
		return ""
	}
	return home + " vs " + away
}

// titles applies the title fallback chain.
//
// For the posts collection an explicit title beats the match title; every
// other collection prefers the match title. The two forms historically
// disagreed here and the difference is kept as-is.
func titles(doc model.Document, collection string) (string, *string) {
	explicit := doc.String("title")
	match := MatchTitle(doc)

	var title string
	literal := false
	switch {
	case collection == model.CollectionPosts && explicit != "":
		title, literal = explicit, true
	case match != "":
		title = match
	case explicit != "":
		title, literal = explicit, true
	default:
		title = firstString(doc, "name", "spotName")
		if title == "" {
			title = UntitledTitle
		}
	}

	if literal && match != "" {
		return title, &match
	}
	if s := firstString(doc, "match.stadium.name", "stadium.name", "stadium"); s != "" {
		return title, &s
	}
	if s := firstString(doc, "address", "match.stadium.address"); s != "" {
		return title, &s
	}
	return title, nil
}

// ImageURLs reads imageUrls, then images (plain strings or {url} objects),
// then the single imageUrl. The result is never nil.
func ImageURLs(doc model.Document) []string {
	if urls := stringList(doc["imageUrls"]); len(urls) > 0 {
		return urls
	}
	if urls := stringList(doc["images"]); len(urls) > 0 {
		return urls
	}
	if u := doc.String("imageUrl"); u != "" {
		return []string{u}
	}
	return []string{}
}

// ResolveAuthorID is the one place that knows the three author id spellings:
// authorId, author.id and the legacy uid.
func ResolveAuthorID(doc model.Document) string {
	return firstString(doc, "authorId", "author.id", "uid")
}

// AuthorFields lists every field an author id may be stored under, in
// resolution order. Queries for "posts by user" search all of them.
var AuthorFields = []string{"authorId", "author.id", "uid"}

func resolveAuthor(doc model.Document, profile *Profile) Author {
	a := Author{ID: ResolveAuthorID(doc)}

	if profile != nil {
		a.Name = strings.TrimSpace(profile.Nickname)
		a.AvatarURL = strings.TrimSpace(profile.AvatarURL)
	}
	if a.Name == "" {
		a.Name = firstString(doc, "authorName", "author.name")
	}
	if a.Name == "" {
		a.Name = AnonymousName
	}
	if a.AvatarURL == "" {
		a.AvatarURL = firstString(doc, "authorImage", "author.image")
	}
	if a.AvatarURL == "" {
		a.AvatarURL = DefaultAvatar
	}
	return a
}

func link(table map[string]string, collection, id string) string {
	prefix, ok := table[collection]
	if !ok || id == "" {
		return ""
	}
	return prefix + id
}

func firstString(doc model.Document, paths ...string) string {
	for _, p := range paths {
		if s := doc.String(p); s != "" {
			return s
		}
	}
	return ""
}

func stringList(v any) []string {
	var items []any
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []any:
		items = t
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		switch it := item.(type) {
		case string:
			if s := strings.TrimSpace(it); s != "" {
				out = append(out, s)
			}
		case map[string]any:
			if s := model.Document(it).String("url"); s != "" {
				out = append(out, s)
			}
		case model.Document:
			if s := it.String("url"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
