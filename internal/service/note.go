package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/payload"
	"github.com/sakif/notebox/internal/repository"
	"github.com/sakif/notebox/internal/storage"
)

// MsgNoChanges is returned for an update that carries no title, no
// description and no file.
const MsgNoChanges = "No changes"

// Attachment is an uploaded file that has already passed the size limit.
// Body must yield exactly Size bytes.
type Attachment struct {
	Filename string
	Body     io.Reader
	Size     int64
}

// NoteService implements note CRUD. Every operation is scoped to ownerID;
// notes belonging to other users are reported as not found.
type NoteService struct {
	notes  repository.NoteRepository
	files  storage.Storage
	logger *slog.Logger
}

func NewNoteService(notes repository.NoteRepository, files storage.Storage, logger *slog.Logger) *NoteService {
	return &NoteService{
		notes:  notes,
		files:  files,
		logger: logger,
	}
}

// List returns the owner's notes, newest first. Never nil.
func (s *NoteService) List(ctx context.Context, ownerID string) ([]model.Note, error) {
	notes, err := s.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/note: listing notes for %s: %w", ownerID, err)
	}
	if notes == nil {
		notes = []model.Note{}
	}
	return notes, nil
}

func (s *NoteService) Get(ctx context.Context, id, ownerID string) (*model.Note, error) {
	note, err := s.notes.GetOwned(ctx, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("service/note: getting note %s: %w", id, err)
	}
	return note, nil
}

// Create validates the fields, stores the attachment (if any) and inserts
// the note. If the insert fails the stored file is removed again.
func (s *NoteService) Create(ctx context.Context, ownerID string, req payload.NoteCreateRequest, file *Attachment) (*model.Note, error) {
	if err := payload.Validate(req); err != nil {
		return nil, err
	}

	note := &model.Note{
		Title:       req.Title,
		Description: emptyToNil(req.Description),
		UploadedBy:  ownerID,
	}

	var key string
	if file != nil {
		var err error
		if key, err = s.saveFile(ctx, file); err != nil {
			return nil, err
		}
		url := storage.URL(key)
		note.FileURL = &url
	}

	if err := s.notes.Create(ctx, note); err != nil {
		if key != "" {
			s.removeFile(ctx, key)
		}
		return nil, fmt.Errorf("service/note: creating note: %w", err)
	}

	s.logger.Info("note created",
		slog.String("noteID", note.ID),
		slog.String("ownerID", ownerID),
		slog.Bool("hasFile", note.FileURL != nil),
	)
	return note, nil
}

// Update applies the present fields and optionally replaces the file.
//
// ORDER OF CHECKS:
//  1. payload validation (400)
//  2. ownership (404), so a foreign id never learns about "No changes"
//  3. at least one change (400 "No changes")
//
// The new file is stored before the row is updated; the old file is removed
// only after the new reference has been committed.
func (s *NoteService) Update(ctx context.Context, id, ownerID string, req payload.NoteUpdateRequest, file *Attachment) (*model.Note, error) {
	if err := payload.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.notes.GetOwned(ctx, id, ownerID); err != nil {
		return nil, fmt.Errorf("service/note: getting note %s: %w", id, err)
	}

	changes := model.NoteChanges{Title: req.Title}
	if req.Description != nil {
		if *req.Description == "" {
			changes.ClearDescription = true
		} else {
			changes.Description = req.Description
		}
	}
	if changes.Empty() && file == nil {
		return nil, apperror.ValidationFailed("body", MsgNoChanges)
	}

	var key string
	if file != nil {
		var err error
		if key, err = s.saveFile(ctx, file); err != nil {
			return nil, err
		}
		url := storage.URL(key)
		changes.FileURL = &url
	}

	before, after, err := s.notes.UpdateOwned(ctx, id, ownerID, changes)
	if err != nil {
		if key != "" {
			s.removeFile(ctx, key)
		}
		return nil, fmt.Errorf("service/note: updating note %s: %w", id, err)
	}

	if key != "" && before.FileURL != nil {
		s.removeFileURL(ctx, *before.FileURL)
	}

	s.logger.Info("note updated",
		slog.String("noteID", id),
		slog.String("ownerID", ownerID),
		slog.Bool("fileReplaced", key != ""),
	)
	return after, nil
}

// Delete removes the note, then its file. A file that cannot be removed is
// logged and otherwise ignored.
func (s *NoteService) Delete(ctx context.Context, id, ownerID string) error {
	deleted, err := s.notes.DeleteOwned(ctx, id, ownerID)
	if err != nil {
		return fmt.Errorf("service/note: deleting note %s: %w", id, err)
	}

	if deleted.FileURL != nil {
		s.removeFileURL(ctx, *deleted.FileURL)
	}

	s.logger.Info("note deleted",
		slog.String("noteID", id),
		slog.String("ownerID", ownerID),
	)
	return nil
}

func (s *NoteService) saveFile(ctx context.Context, file *Attachment) (string, error) {
	key := storage.NewKey(file.Filename)
	if err := s.files.Save(ctx, key, file.Body, file.Size); err != nil {
		return "", fmt.Errorf("service/note: storing upload: %w", err)
	}
	return key, nil
}

// removeFile is best-effort and survives a cancelled request context.
func (s *NoteService) removeFile(ctx context.Context, key string) {
	if err := s.files.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn("failed to remove stored file",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}
}

func (s *NoteService) removeFileURL(ctx context.Context, url string) {
	key, ok := storage.KeyFromURL(url)
	if !ok {
		s.logger.Warn("note references a file outside storage", slog.String("fileURL", url))
		return
	}
	s.removeFile(ctx, key)
}

// emptyToNil maps "" to nil; an empty description is stored as NULL.
func emptyToNil(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
