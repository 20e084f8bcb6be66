package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/payload"
	"github.com/sakif/notebox/internal/service"
)

// NoteService is what NoteHandler needs from the service layer.
type NoteService interface {
	List(ctx context.Context, ownerID string) ([]model.Note, error)
	Get(ctx context.Context, id, ownerID string) (*model.Note, error)
	Create(ctx context.Context, ownerID string, req payload.NoteCreateRequest, file *service.Attachment) (*model.Note, error)
	Update(ctx context.Context, id, ownerID string, req payload.NoteUpdateRequest, file *service.Attachment) (*model.Note, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// NoteHandler serves /api/notes. Every route sits behind auth.RequireAuth,
// so the caller's identity is always in the request context.
type NoteHandler struct {
	notes  NoteService
	intake IntakeConfig
	logger *slog.Logger
}

func NewNoteHandler(notes NoteService, intake IntakeConfig, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, intake: intake, logger: logger}
}

// caller returns the authenticated identity or writes a 401.
func (h *NoteHandler) caller(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, apperror.Unauthenticated("Missing token"))
	}
	return id, ok
}

// HandleList returns the caller's notes, newest first.
//
// HTTP: GET /api/notes → 200 [Note...]
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	notes, err := h.notes.List(r.Context(), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, notes)
}

// HandleGet returns one note.
//
// HTTP: GET /api/notes/{id} → 200 Note | 404
func (h *NoteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	note, err := h.notes.Get(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleCreate creates a note from a form with fields title, description
// and an optional file.
//
// HTTP: POST /api/notes → 201 Note | 400
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	form, err := h.intake.readNoteForm(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer form.cleanup()

	req := payload.NoteCreateRequest{Description: form.description}
	if form.title != nil {
		req.Title = *form.title
	}

	note, err := h.notes.Create(r.Context(), user.ID, req, form.attachment())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// HandleUpdate changes any of title, description and file.
//
// HTTP: PUT /api/notes/{id} → 200 Note | 400 | 404
func (h *NoteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	form, err := h.intake.readNoteForm(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer form.cleanup()

	req := payload.NoteUpdateRequest{Title: form.title, Description: form.description}

	note, err := h.notes.Update(r.Context(), chi.URLParam(r, "id"), user.ID, req, form.attachment())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// HandleDelete removes a note and its file.
//
// HTTP: DELETE /api/notes/{id} → 204 | 404
func (h *NoteHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	if err := h.notes.Delete(r.Context(), chi.URLParam(r, "id"), user.ID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
