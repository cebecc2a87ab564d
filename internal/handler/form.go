package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sakif/kansenki/internal/apperror"
	"github.com/sakif/kansenki/internal/images"
)

const (
	// maxJSONBody caps plain JSON requests.
	maxJSONBody = 1 << 20
	// maxFormBody fits a full set of photos plus the JSON part.
	maxFormBody = images.MaxPerPost*images.MaxFileSize + maxJSONBody
	// formMemory is how much of a multipart body is kept in RAM; the rest
	// spills to temp files.
	formMemory = 8 << 20
)

// readForm decodes a form submission into dst.
//
// The post forms send either plain JSON, or multipart/form-data with the
// fields as JSON in a "data" part and the photos as fileField parts:
//
//	data:   {"title": "...", "match": {...}}
//	images: <file>, <file>
//
// The returned cleanup closes the opened files and removes temp files; call
// it once the files have been uploaded.
func readForm(w http.ResponseWriter, r *http.Request, dst any, fileField string) ([]images.File, func(), error) {
	noop := func() {}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return nil, noop, decodeJSON(w, r, dst, maxJSONBody)
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, noop, apperror.ValidationFailed(fileField, "upload is too large")
		}
		return nil, noop, apperror.ValidationFailed("body", "invalid multipart form")
	}

	if data := r.MultipartForm.Value["data"]; len(data) > 0 && strings.TrimSpace(data[0]) != "" {
		if err := json.Unmarshal([]byte(data[0]), dst); err != nil {
			r.MultipartForm.RemoveAll()
			return nil, noop, apperror.ValidationFailed("data", "invalid JSON in data field")
		}
	}

	files, closers, err := openFiles(r.MultipartForm.File[fileField])
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
		r.MultipartForm.RemoveAll()
	}
	if err != nil {
		cleanup()
		return nil, noop, err
	}
	return files, cleanup, nil
}

func openFiles(headers []*multipart.FileHeader) ([]images.File, []multipart.File, error) {
	files := make([]images.File, 0, len(headers))
	closers := make([]multipart.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closers, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
		}
		closers = append(closers, f)
		files = append(files, images.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return files, closers, nil
}
