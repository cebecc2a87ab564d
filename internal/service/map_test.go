package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/mapview"
	"github.com/sakif/kansenki/internal/model"
)

func TestMarkers(t *testing.T) {
	useStepClock(t)
	store := newTestStore(t)
	palette, err := mapview.DefaultPalette()
	require.NoError(t, err)
	svc := NewMapService(store, palette, testLogger())

	anfield := map[string]any{"name": "Anfield", "lat": 53.4308, "lng": -2.9608}
	seedPost(t, store, model.CollectionPosts, model.Document{
		"match":  map[string]any{"homeTeam": "Liverpool", "awayTeam": "Everton", "stadium": anfield},
		"hotels": []any{map[string]any{"name": "Titanic Hotel", "lat": 53.42, "lng": -3.0}},
	})
	seedPost(t, store, model.CollectionSimplePosts, model.Document{
		"match": map[string]any{"homeTeam": "Liverpool", "awayTeam": "Chelsea", "stadium": map[string]any{"name": " anfield ", "lat": 53.43, "lng": -2.96}},
	})
	seedPost(t, store, model.CollectionSimplePosts, model.Document{
		"match": map[string]any{"homeTeam": "Dortmund", "awayTeam": "Schalke", "stadium": map[string]any{"name": "Signal Iduna Park"}},
	})
	seedPost(t, store, model.CollectionTravels, model.Document{
		"hotels": []any{
			map[string]any{"name": "Titanic Hotel", "lat": 53.42, "lng": -3.0},
			map[string]any{"name": "No coordinates"},
		},
	})
	spotID := seedPost(t, store, model.CollectionSpots, model.Document{"name": "The Albert", "category": "pub", "lat": 53.43, "lng": -2.96})
	seedPost(t, store, model.CollectionSpots, model.Document{"name": "Nowhere", "lat": 0, "lng": 0})

	markers, err := svc.Markers(context.Background())
	require.NoError(t, err)
	require.Len(t, markers, 3)

	stadium := markers[0]
	assert.Equal(t, mapview.KindStadium, stadium.Kind)
	assert.Equal(t, "Anfield", stadium.Title)
	assert.Equal(t, 2, stadium.Count, "same stadium spelled differently is one pin")
	assert.Equal(t, 53.4308, stadium.Lat, "first report's coordinates win")
	assert.Equal(t, palette.Color(mapview.KindStadium, ""), stadium.Color)

	hotel := markers[1]
	assert.Equal(t, mapview.KindHotel, hotel.Kind)
	assert.Equal(t, 2, hotel.Count)

	spot := markers[2]
	assert.Equal(t, "The Albert", spot.Title)
	assert.Equal(t, "pub", spot.Category)
	assert.Equal(t, palette.Color(mapview.KindSpot, "pub"), spot.Color)
	assert.Equal(t, "/spots/"+spotID, spot.Href)
}

func TestMarkers_Empty(t *testing.T) {
	palette, err := mapview.DefaultPalette()
	require.NoError(t, err)
	svc := NewMapService(newTestStore(t), palette, testLogger())

	markers, err := svc.Markers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, markers)
}
