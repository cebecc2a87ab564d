// Package places proxies Google Maps Places requests.
//
// The browser never sees the API key: it calls our endpoints, and this client
// adds the key before forwarding to Google. Responses are passed through
// unchanged.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/kansenki/internal/apperror"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	// DefaultPhotoWidth is used when the caller does not ask for a width.
	DefaultPhotoWidth = 800
	MaxPhotoWidth     = 1600

	maxJSONBody  = 2 << 20
	maxPhotoBody = 10 << 20

	serviceName = "maps"
)

// detailFields limits the details response to what the forms use.
const detailFields = "place_id,name,formatted_address,geometry,photos,types,url,website,rating"

// Client talks to the Places web service.
type Client struct {
	baseURL  string
	apiKey   string
	language string
	http     *http.Client
	logger   *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another host (tests use httptest).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the language of names and addresses. Default "ja".
func WithLanguage(lang string) Option {
	return func(c *Client) { c.language = lang }
}

func New(apiKey string, timeout time.Duration, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		apiKey:   apiKey,
		language: "ja",
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Search runs a text search ("Anfield", "Camp Nou hotel").
func (c *Client) Search(ctx context.Context, query string) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}
	params := url.Values{"query": {query}}
	return c.getJSON(ctx, "/textsearch/json", params)
}

// Details returns one place.
func (c *Client) Details(ctx context.Context, placeID string) (json.RawMessage, error) {
	placeID = strings.TrimSpace(placeID)
	if placeID == "" {
		return nil, apperror.ValidationFailed("placeId", "placeId is required")
	}
	params := url.Values{"place_id": {placeID}, "fields": {detailFields}}
	return c.getJSON(ctx, "/details/json", params)
}

// Photo is an image streamed from the photo endpoint. The caller closes Body.
type Photo struct {
	ContentType string
	Body        io.ReadCloser
}

// Photo fetches a place photo by its photo reference. maxWidth <= 0 uses
// DefaultPhotoWidth; larger values are capped at MaxPhotoWidth.
func (c *Client) Photo(ctx context.Context, ref string, maxWidth int) (*Photo, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperror.ValidationFailed("ref", "photo reference is required")
	}
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoWidth
	}
	if maxWidth > MaxPhotoWidth {
		maxWidth = MaxPhotoWidth
	}

	params := url.Values{"photo_reference": {ref}, "maxwidth": {strconv.Itoa(maxWidth)}}
	resp, err := c.do(ctx, "/photo", params)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		resp.Body.Close()
		return nil, apperror.Upstream(serviceName, fmt.Errorf("photo content type %q", contentType))
	}

	return &Photo{
		ContentType: contentType,
		Body:        readCloser{Reader: io.LimitReader(resp.Body, maxPhotoBody), Closer: resp.Body},
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	resp, err := c.do(ctx, path, params)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, apperror.Upstream(serviceName, err)
	}
	if !json.Valid(body) {
		return nil, apperror.Upstream(serviceName, errors.New("response is not JSON"))
	}

	// Places reports request errors inside a 200 response.
	var status struct {
		Status       string `json:"status"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &status); err == nil {
		switch status.Status {
		case "REQUEST_DENIED", "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
			return nil, apperror.Upstream(serviceName, fmt.Errorf("%s: %s", status.Status, status.ErrorMessage))
		case "INVALID_REQUEST":
			return nil, apperror.ValidationFailed("", "invalid maps request")
		case "NOT_FOUND":
			return nil, apperror.NotFound("place", params.Get("place_id"))
		}
	}

	return json.RawMessage(body), nil
}

// do sends a GET with the API key added and returns the response when the
// status is 2xx.
func (c *Client) do(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	if !c.Configured() {
		return nil, apperror.Upstream(serviceName, errors.New("GOOGLE_MAPS_API_KEY is not set"))
	}

	params.Set("key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("places: building request: %w", err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error prints the request URL, which carries the key.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Error("maps request failed", slog.String("path", path), slog.String("error", err.Error()))
		return nil, apperror.Upstream(serviceName, err)
	}

	c.logger.Debug("maps request",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, apperror.Upstream(serviceName, fmt.Errorf("status %d", resp.StatusCode))
	}
	return resp, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
