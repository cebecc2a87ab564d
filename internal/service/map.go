package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/sakif/kansenki/internal/mapview"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/normalize"
	"github.com/sakif/kansenki/internal/repository"
)

// MapFetchLimit is how many recent documents per collection feed the map.
const MapFetchLimit = 500

// Marker is one pin on the map page.
type Marker struct {
	Kind     string  `json:"kind"`
	Title    string  `json:"title"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Color    string  `json:"color"`
	Category string  `json:"category,omitempty"`
	// Count is the number of reports at a stadium or hotel.
	Count int    `json:"count"`
	Href  string `json:"href,omitempty"`
}

type MapService struct {
	store   repository.DocumentStore
	palette *mapview.Palette
	logger  *slog.Logger
}

func NewMapService(store repository.DocumentStore, palette *mapview.Palette, logger *slog.Logger) *MapService {
	return &MapService{store: store, palette: palette, logger: logger}
}

// Markers builds stadium, hotel and spot pins. Documents without
// coordinates are skipped. Stadiums and hotels mentioned by several reports
// collapse into one pin with a count.
func (s *MapService) Markers(ctx context.Context) ([]Marker, error) {
	fetch := func(collection string) ([]model.Document, error) {
		docs, err := s.store.Query(ctx, collection, repository.Query{
			OrderBy: "createdAt",
			Desc:    true,
			Limit:   MapFetchLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("map: fetching %s: %w", collection, err)
		}
		return docs, nil
	}

	stadiums := newPinGroup(mapview.KindStadium)
	hotels := newPinGroup(mapview.KindHotel)
	var spots []Marker

	for _, collection := range []string{model.CollectionPosts, model.CollectionSimplePosts} {
		docs, err := fetch(collection)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if stadium, ok := doc.Map("match.stadium"); ok {
				if lat, lng, ok := coords(stadium); ok {
					stadiums.add(stadium.String("name"), lat, lng)
				}
			}
			addHotels(hotels, doc)
		}
	}

	travels, err := fetch(model.CollectionTravels)
	if err != nil {
		return nil, err
	}
	for _, doc := range travels {
		addHotels(hotels, doc)
	}

	spotDocs, err := fetch(model.CollectionSpots)
	if err != nil {
		return nil, err
	}
	for _, doc := range spotDocs {
		lat, lng, ok := coords(doc)
		if !ok {
			continue
		}
		p := normalize.Normalize(doc, model.CollectionSpots, nil)
		category := doc.String("category")
		spots = append(spots, Marker{
			Kind:     mapview.KindSpot,
			Title:    p.Title,
			Lat:      lat,
			Lng:      lng,
			Color:    s.palette.Color(mapview.KindSpot, category),
			Category: category,
			Count:    1,
			Href:     p.Href,
		})
	}

	markers := make([]Marker, 0, len(stadiums.order)+len(hotels.order)+len(spots))
	markers = append(markers, stadiums.markers(s.palette)...)
	markers = append(markers, hotels.markers(s.palette)...)
	markers = append(markers, spots...)

	s.logger.Debug("map markers built",
		slog.Int("stadiums", len(stadiums.order)),
		slog.Int("hotels", len(hotels.order)),
		slog.Int("spots", len(spots)),
	)
	return markers, nil
}

func addHotels(g *pinGroup, doc model.Document) {
	list, ok := doc["hotels"].([]any)
	if !ok {
		return
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		hotel := model.Document(m)
		if lat, lng, ok := coords(hotel); ok {
			g.add(hotel.String("name"), lat, lng)
		}
	}
}

// coords reads lat/lng; both must be present.
func coords(doc model.Document) (float64, float64, bool) {
	_, hasLat := doc.Lookup("lat")
	_, hasLng := doc.Lookup("lng")
	if !hasLat || !hasLng {
		return 0, 0, false
	}
	lat, lng := doc.Number("lat"), doc.Number("lng")
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 || (lat == 0 && lng == 0) {
		return 0, 0, false
	}
	return lat, lng, true
}

// pinGroup merges pins by name, keeping first-seen order and coordinates.
type pinGroup struct {
	kind  string
	order []string
	pins  map[string]*Marker
}

func newPinGroup(kind string) *pinGroup {
	return &pinGroup{kind: kind, pins: make(map[string]*Marker)}
}

func (g *pinGroup) add(name string, lat, lng float64) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = fmt.Sprintf("%.4f,%.4f", lat, lng)
	}
	if pin, ok := g.pins[key]; ok {
		pin.Count++
		return
	}
	g.order = append(g.order, key)
	g.pins[key] = &Marker{Kind: g.kind, Title: strings.TrimSpace(name), Lat: lat, Lng: lng, Count: 1}
}

// markers returns the pins busiest first.
func (g *pinGroup) markers(p *mapview.Palette) []Marker {
	out := make([]Marker, 0, len(g.order))
	for _, key := range g.order {
		m := *g.pins[key]
		m.Color = p.Color(g.kind, "")
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
