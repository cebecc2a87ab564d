package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/auth"
	"github.com/sakif/kansenki/internal/handler"
	"github.com/sakif/kansenki/internal/images"
	"github.com/sakif/kansenki/internal/middleware"
	"github.com/sakif/kansenki/internal/model"
	"github.com/sakif/kansenki/internal/repository/sqlite"
)

// =========================================================================
// HELPERS
// =========================================================================

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeImages records uploads instead of calling Cloudinary.
type fakeImages struct {
	fail     bool
	uploaded []string
}

func (f *fakeImages) Upload(_ context.Context, file images.File) (string, error) {
	if f.fail {
		return "", apperror.Upstream("image hosting", errors.New("quota exceeded"))
	}
	url := "https://res.cloudinary.com/demo/" + file.Filename
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

// as signs the request in as uid, the way auth.OptionalAuth would.
func as(r *http.Request, uid string) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), uid))
}

// asVisitor attaches a guest's visitor id, the way middleware.Visitor would.
func asVisitor(r *http.Request, visitorID string) *http.Request {
	return r.WithContext(middleware.WithVisitorID(r.Context(), visitorID))
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// upload is one file part of a multipart request.
type upload struct {
	field       string
	filename    string
	contentType string
	body        string
}

// multipartRequest builds the "data" JSON part plus file parts.
func multipartRequest(t *testing.T, method, target string, data any, files ...upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("data", string(raw)))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func seed(t *testing.T, store *sqlite.DB, collection string, doc model.Document) string {
	t.Helper()
	id, err := store.Create(context.Background(), collection, "", doc)
	require.NoError(t, err)
	return id
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rec)
}
