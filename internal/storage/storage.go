// Package storage keeps uploaded note files. Two backends exist: a local
// directory and an S3 bucket. Both are addressed by a flat key, and notes
// reference files by the public URL "/uploads/<key>".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// URLPrefix is where stored files are served from.
const URLPrefix = "/uploads/"

// ErrNotFound is returned by Open for a key that does not exist.
var ErrNotFound = errors.New("storage: file not found")

// Storage stores, serves and removes uploaded files.
type Storage interface {
	// Save writes data under key. On error nothing is left behind.
	Save(ctx context.Context, key string, data io.Reader, size int64) error

	// Open returns the file contents. The caller closes the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

type Type string

const (
	TypeLocal Type = "local"
	TypeS3    Type = "s3"
)

// Config selects and configures a backend.
type Config struct {
	Type         Type
	LocalPath    string
	S3Bucket     string
	S3Region     string
	AWSAccessKey string
	AWSSecretKey string
}

// New creates the backend named by cfg.Type.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch cfg.Type {
	case TypeLocal, "":
		return NewLocal(cfg.LocalPath)
	case TypeS3:
		if cfg.S3Bucket == "" {
			return nil, errors.New("storage: AWS_S3_BUCKET is required for s3 storage")
		}
		return NewS3(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown storage type %q", cfg.Type)
	}
}

// NewKey returns a fresh, unguessable key that keeps a sanitised version of
// the client's file extension so browsers get a sensible content type.
func NewKey(filename string) string {
	return uuid.NewString() + cleanExt(filename)
}

func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	var b strings.Builder
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len() > 10 {
		return ""
	}
	return "." + b.String()
}

// URL is the public reference stored on a note.
func URL(key string) string {
	return URLPrefix + key
}

// KeyFromURL reverses URL. It rejects anything that could escape the
// storage root.
func KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, URLPrefix)
	if !ok {
		return "", false
	}
	return key, ValidKey(key)
}

// ValidKey reports whether key is a single, non-hidden path element.
func ValidKey(key string) bool {
	return key != "" &&
		!strings.HasPrefix(key, ".") &&
		!strings.ContainsAny(key, `/\`) &&
		!strings.Contains(key, "..")
}
