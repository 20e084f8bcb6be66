package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/payload"
	"github.com/sakif/notebox/internal/service"
)

// DefaultMaxFileSize is the upload limit for a note's file.
const DefaultMaxFileSize = 5 << 20

const (
	maxFieldSize    = 64 << 10 // per text field
	maxFormParts    = 16
	maxFormOverhead = 1 << 20 // text fields and multipart framing on top of the file
	fileField       = "file"
)

// IntakeConfig controls how note forms are read.
type IntakeConfig struct {
	MaxFileSize int64  // 0 means DefaultMaxFileSize
	TempDir     string // "" means os.TempDir()
}

// noteForm is the parsed body of a create or update request. title and
// description are nil when the client did not send them.
type noteForm struct {
	title       *string
	description *string

	file     *os.File // spooled upload, nil if none
	filename string
	size     int64
}

// attachment returns the upload as a service.Attachment, or nil.
func (f *noteForm) attachment() *service.Attachment {
	if f.file == nil {
		return nil
	}
	return &service.Attachment{Filename: f.filename, Body: f.file, Size: f.size}
}

// cleanup closes and removes the temp file. Safe to call more than once.
func (f *noteForm) cleanup() {
	if f.file == nil {
		return
	}
	name := f.file.Name()
	f.file.Close()
	os.Remove(name)
	f.file = nil
}

func (c IntakeConfig) maxFileSize() int64 {
	if c.MaxFileSize <= 0 {
		return DefaultMaxFileSize
	}
	return c.MaxFileSize
}

func (c IntakeConfig) tooLarge() error {
	return apperror.ValidationFailed(fileField,
		fmt.Sprintf("File too large (max %s)", formatSize(c.maxFileSize())))
}

func formatSize(n int64) string {
	if n%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", n>>20)
	}
	if n%(1<<10) == 0 {
		return fmt.Sprintf("%d KiB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

// readNoteForm parses a note body. multipart/form-data may carry one file
// part named "file"; JSON and url-encoded bodies carry text fields only.
//
// On success the caller must call cleanup on the returned form. On error
// nothing is left on disk.
func (c IntakeConfig) readNoteForm(w http.ResponseWriter, r *http.Request) (*noteForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "multipart/form-data":
		return c.readMultipart(w, r)

	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, maxFormOverhead)
		if err := r.ParseForm(); err != nil {
			return nil, apperror.ValidationFailed("body", "Invalid form body")
		}
		form := &noteForm{}
		if vs, ok := r.PostForm["title"]; ok && len(vs) > 0 {
			form.title = &vs[0]
		}
		if vs, ok := r.PostForm["description"]; ok && len(vs) > 0 {
			form.description = &vs[0]
		}
		return form, nil

	default:
		var body struct {
			Title       *string `json:"title"`
			Description *string `json:"description"`
		}
		if err := payload.DecodeJSON(http.MaxBytesReader(w, r.Body, maxFormOverhead), &body); err != nil {
			return nil, err
		}
		return &noteForm{title: body.Title, description: body.Description}, nil
	}
}

// readMultipart streams the parts in order. The file part is copied to a
// temp file through a limit of max+1 bytes; reading the extra byte is how an
// oversize upload is detected without buffering it.
func (c IntakeConfig) readMultipart(w http.ResponseWriter, r *http.Request) (*noteForm, error) {
	maxFile := c.maxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxFile+maxFormOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperror.ValidationFailed("body", "Invalid multipart body")
	}

	form := &noteForm{}
	fail := func(err error) (*noteForm, error) {
		form.cleanup()
		return nil, err
	}

	for parts := 0; ; parts++ {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(c.classifyReadError(err))
		}
		if parts >= maxFormParts {
			part.Close()
			return fail(apperror.ValidationFailed("body", "Too many form fields"))
		}

		err = c.readPart(form, part, maxFile)
		part.Close()
		if err != nil {
			return fail(err)
		}
	}

	return form, nil
}

func (c IntakeConfig) readPart(form *noteForm, part *multipart.Part, maxFile int64) error {
	name := part.FormName()

	if part.FileName() != "" {
		if name != fileField {
			return apperror.ValidationFailed(name, fmt.Sprintf("Unexpected file field %q", name))
		}
		if form.file != nil {
			return apperror.ValidationFailed(fileField, "Only one file may be uploaded")
		}
		return c.spool(form, part, maxFile)
	}

	value, err := readField(part)
	if err != nil {
		return c.classifyReadError(err)
	}
	if len(value) > maxFieldSize {
		return apperror.ValidationFailed(name, fmt.Sprintf("%s: field too large", name))
	}

	switch name {
	case "title":
		form.title = &value
	case "description":
		form.description = &value
	}
	return nil
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	return string(b), err
}

func (c IntakeConfig) spool(form *noteForm, part *multipart.Part, maxFile int64) error {
	tmp, err := os.CreateTemp(c.TempDir, "notebox-upload-*")
	if err != nil {
		return fmt.Errorf("handler: creating temp file: %w", err)
	}
	form.file = tmp
	form.filename = part.FileName()

	n, err := io.Copy(tmp, io.LimitReader(part, maxFile+1))
	if err != nil {
		return c.classifyReadError(err)
	}
	if n > maxFile {
		return c.tooLarge()
	}
	form.size = n

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("handler: rewinding temp file: %w", err)
	}
	return nil
}

// classifyReadError turns a failure while reading the request body into a
// client error. Hitting the overall body cap is reported as an oversize file.
func (c IntakeConfig) classifyReadError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return c.tooLarge()
	}
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("handler: writing temp file: %w", err)
	}
	return apperror.ValidationFailed("body", "Invalid multipart body")
}
