package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vidhub/backend/internal/apperr"
	"github.com/vidhub/backend/internal/logging"
	"github.com/vidhub/backend/internal/media"
)

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 8 << 20

// parseMultipart parses a multipart form. The caller must defer the returned
// cleanup to drop the parser's own temp files.
func parseMultipart(r *http.Request) (func(), error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return func() {}, apperr.New(http.StatusRequestEntityTooLarge, "Upload too large")
		}
		return func() {}, apperr.Wrap(http.StatusBadRequest, "Invalid multipart form", err)
	}
	return func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}, nil
}

// saveFormFile copies the named form file into dir and returns its path, or
// "" when the field is absent. The media uploader deletes the copy.
func saveFormFile(r *http.Request, field, dir string) (string, error) {
	if r.MultipartForm == nil || len(r.MultipartForm.File[field]) == 0 {
		return "", nil
	}
	header := r.MultipartForm.File[field][0]
	if header.Size == 0 {
		return "", nil
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open form file %s: %w", field, err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+safeExt(header))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return dst.Name(), nil
}

func safeExt(header *multipart.FileHeader) string {
	ext := filepath.Ext(filepath.Base(header.Filename))
	if len(ext) > 10 {
		return ""
	}
	return ext
}

// discard removes temp files that will never reach the uploader.
func discard(paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
}

// uploadError converts a media failure into a client error. Callers pass the
// message shown when the file itself was rejected.
func uploadError(r *http.Request, err error, message string) error {
	logging.FromContext(r.Context()).Warn("media upload failed", "error", err)
	if errors.Is(err, media.ErrUnavailable) {
		return apperr.Wrap(http.StatusServiceUnavailable, "Media service unavailable, please retry later", err)
	}
	return apperr.Wrap(http.StatusBadRequest, message, err)
}
