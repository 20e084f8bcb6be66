package handler

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/storage"
)

// UploadHandler serves stored files at /uploads/{key}. Files are public;
// keys are random UUIDs.
type UploadHandler struct {
	files  storage.Storage
	logger *slog.Logger
}

// inlineTypes can be displayed by the browser without running script on the
// API origin. SVG is deliberately absent: it can carry script.
var inlineTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/gif":       true,
	"image/webp":      true,
	"image/avif":      true,
	"image/bmp":       true,
	"text/plain":      true,
	"application/pdf": true,
}

// inlineSafe reports whether a stored file may be rendered in place. Anything
// else (html, svg, xml, unknown) is sent as a download.
func inlineSafe(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return inlineTypes[mediaType]
}

func NewUploadHandler(files storage.Storage, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{files: files, logger: logger}
}

// HandleServe streams a stored file. Seekable backends (local disk) get
// range and conditional request support through http.ServeContent.
//
// HTTP: GET /uploads/{key} → file bytes | 404
func (h *UploadHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !storage.ValidKey(key) {
		writeError(w, h.logger, apperror.NotFound("file", key))
		return
	}

	rc, err := h.files.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, apperror.NotFound("file", key))
			return
		}
		writeError(w, h.logger, err)
		return
	}
	defer rc.Close()

	contentType := storage.ContentType(key)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	if !inlineSafe(contentType) {
		w.Header().Set("Content-Disposition", "attachment")
	}

	if rs, ok := rc.(io.ReadSeeker); ok {
		var modTime time.Time
		if st, ok := rc.(interface{ Stat() (fs.FileInfo, error) }); ok {
			if info, err := st.Stat(); err == nil {
				modTime = info.ModTime()
			}
		}
		http.ServeContent(w, r, key, modTime, rs)
		return
	}

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("streaming upload failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}
