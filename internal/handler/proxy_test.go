package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/handler"
	"github.com/sakif/kansenki/internal/ogp"
	"github.com/sakif/kansenki/internal/places"
)

// newUpstream fakes both the Places API and a page with OGP tags.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/textsearch/json", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("key") != "maps-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"OK","results":[{"name":"Anfield","place_id":"p1"}]}`))
	})
	mux.HandleFunc("/photo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head>
<meta property="og:title" content="Anfield Tour">
<meta property="og:image" content="/tour.jpg">
</head></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newProxyHandler(upstream *httptest.Server, apiKey string) *handler.ProxyHandler {
	client := places.New(apiKey, 2*time.Second, testLogger(), places.WithBaseURL(upstream.URL))
	return handler.NewProxyHandler(client, ogp.NewFetcher(2*time.Second, testLogger(), ogp.AllowPrivateNetworks()), testLogger())
}

func TestProxyHandler_PlaceSearch(t *testing.T) {
	upstream := newUpstream(t)
	h := newProxyHandler(upstream, "maps-key")

	rec := httptest.NewRecorder()
	h.HandlePlaceSearch(rec, httptest.NewRequest(http.MethodGet, "/api/places/search?q=Anfield", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"OK","results":[{"name":"Anfield","place_id":"p1"}]}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "maps-key")

	rec = httptest.NewRecorder()
	h.HandlePlaceSearch(rec, httptest.NewRequest(http.MethodGet, "/api/places/search?q=", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyHandler_PlacesWithoutKey(t *testing.T) {
	h := newProxyHandler(newUpstream(t), "")

	rec := httptest.NewRecorder()
	h.HandlePlaceSearch(rec, httptest.NewRequest(http.MethodGet, "/api/places/search?q=Anfield", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "GOOGLE_MAPS_API_KEY")
}

func TestProxyHandler_PlacePhoto(t *testing.T) {
	h := newProxyHandler(newUpstream(t), "maps-key")

	rec := httptest.NewRecorder()
	h.HandlePlacePhoto(rec, httptest.NewRequest(http.MethodGet, "/api/places/photo?ref=abc&maxWidth=400", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandlePlacePhoto(rec, httptest.NewRequest(http.MethodGet, "/api/places/photo?ref=abc&maxWidth=wide", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProxyHandler_OGP(t *testing.T) {
	upstream := newUpstream(t)
	h := newProxyHandler(upstream, "maps-key")

	rec := httptest.NewRecorder()
	h.HandleOGP(rec, httptest.NewRequest(http.MethodGet, "/api/ogp?url="+upstream.URL+"/page", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	meta := decode[ogp.Metadata](t, rec)
	assert.Equal(t, "Anfield Tour", meta.Title)
	assert.Equal(t, upstream.URL+"/tour.jpg", meta.Image)

	rec = httptest.NewRecorder()
	h.HandleOGP(rec, httptest.NewRequest(http.MethodGet, "/api/ogp?url=ftp://example.com", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "url", errorBody(t, rec).Field)
}
