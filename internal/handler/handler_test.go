package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/payload"
	"github.com/sakif/notebox/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

// =========================================================================
// writeError
// =========================================================================

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", apperror.ValidationFailed("title", "title: cannot be blank"), http.StatusBadRequest, "title: cannot be blank"},
		{"not found", apperror.NotFound("note", "x"), http.StatusNotFound, "Not found"},
		{"conflict", apperror.Conflict("Username or email already exists"), http.StatusConflict, "Username or email already exists"},
		{"unauthenticated", apperror.Unauthenticated("Missing token"), http.StatusUnauthorized, "Missing token"},
		{"bad credentials", apperror.InvalidCredentials(), http.StatusUnauthorized, "Invalid credentials"},
		{"wrapped", errorf("service: %w", apperror.NotFound("note", "x")), http.StatusNotFound, "Not found"},
		{"unknown", errorf("sql: connection refused"), http.StatusInternalServerError, "Server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeError(rec, testLogger(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantMsg, decodeError(t, rec))
		})
	}
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

// =========================================================================
// AuthHandler
// =========================================================================

type fakeAuthService struct {
	token    string
	err      error
	register payload.RegisterRequest
	login    payload.LoginRequest
}

func (f *fakeAuthService) Register(_ context.Context, req payload.RegisterRequest) (string, error) {
	f.register = req
	return f.token, f.err
}

func (f *fakeAuthService) Login(_ context.Context, req payload.LoginRequest) (string, error) {
	f.login = req
	return f.token, f.err
}

func TestHandleRegister(t *testing.T) {
	svc := &fakeAuthService{token: "tok"}
	h := NewAuthHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		bytes.NewBufferString(`{"username":"alice","email":"alice@example.com","password":"secret1"}`))
	h.HandleRegister(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"token":"tok"}`, rec.Body.String())
	assert.Equal(t, "alice@example.com", svc.register.Email)
}

func TestHandleRegister_InvalidJSON(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{}, testLogger())

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{"username":`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON body", decodeError(t, rec))
}

func TestHandleRegister_Conflict(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{err: apperror.Conflict("Username or email already exists")}, testLogger())

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	svc := &fakeAuthService{token: "tok"}
	h := NewAuthHandler(svc, testLogger())

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"username":"alice","password":"secret1"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token":"tok"}`, rec.Body.String())
	assert.Equal(t, "alice", svc.login.Username)
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	h := NewAuthHandler(&fakeAuthService{err: apperror.InvalidCredentials()}, testLogger())

	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decodeError(t, rec))
}

// =========================================================================
// NoteHandler
// =========================================================================

// fakeNoteService records the last call. Attachment bytes are read during
// the call because the handler removes the temp file afterwards.
type fakeNoteService struct {
	called    bool
	ownerID   string
	id        string
	createReq payload.NoteCreateRequest
	updateReq payload.NoteUpdateRequest
	fileName  string
	fileBody  []byte
	err       error
}

func (f *fakeNoteService) record(file *service.Attachment) {
	f.called = true
	if file != nil {
		f.fileName = file.Filename
		f.fileBody, _ = io.ReadAll(file.Body)
	}
}

func (f *fakeNoteService) List(_ context.Context, ownerID string) ([]model.Note, error) {
	f.called, f.ownerID = true, ownerID
	return []model.Note{}, f.err
}

func (f *fakeNoteService) Get(_ context.Context, id, ownerID string) (*model.Note, error) {
	f.called, f.id, f.ownerID = true, id, ownerID
	if f.err != nil {
		return nil, f.err
	}
	return &model.Note{ID: id, Title: "t", UploadedBy: ownerID}, nil
}

func (f *fakeNoteService) Create(_ context.Context, ownerID string, req payload.NoteCreateRequest, file *service.Attachment) (*model.Note, error) {
	f.record(file)
	f.ownerID, f.createReq = ownerID, req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Note{ID: "n1", Title: req.Title, UploadedBy: ownerID, CreatedAt: time.Now()}, nil
}

func (f *fakeNoteService) Update(_ context.Context, id, ownerID string, req payload.NoteUpdateRequest, file *service.Attachment) (*model.Note, error) {
	f.record(file)
	f.id, f.ownerID, f.updateReq = id, ownerID, req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Note{ID: id, Title: "t", UploadedBy: ownerID}, nil
}

func (f *fakeNoteService) Delete(_ context.Context, id, ownerID string) error {
	f.called, f.id, f.ownerID = true, id, ownerID
	return f.err
}

// noteRouter mounts the handler the way the server does, with a fixed
// identity standing in for RequireAuth.
func noteRouter(h *NoteHandler, withIdentity bool) http.Handler {
	r := chi.NewRouter()
	if withIdentity {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := auth.WithIdentity(r.Context(), auth.Identity{ID: "u1", Username: "alice"})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
	}
	r.Get("/api/notes", h.HandleList)
	r.Get("/api/notes/{id}", h.HandleGet)
	r.Post("/api/notes", h.HandleCreate)
	r.Put("/api/notes/{id}", h.HandleUpdate)
	r.Delete("/api/notes/{id}", h.HandleDelete)
	return r
}

type formFile struct {
	field, name string
	content     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func newTestNoteHandler(t *testing.T, svc *fakeNoteService, maxFile int64) (http.Handler, string) {
	t.Helper()
	tempDir := t.TempDir()
	h := NewNoteHandler(svc, IntakeConfig{MaxFileSize: maxFile, TempDir: tempDir}, testLogger())
	return noteRouter(h, true), tempDir
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp files left behind")
}

func TestHandleCreate_MultipartWithFile(t *testing.T) {
	svc := &fakeNoteService{}
	router, tempDir := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, map[string]string{"title": "scan", "description": "receipt"},
		formFile{"file", "receipt.pdf", []byte("%PDF-1.4")})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "u1", svc.ownerID)
	assert.Equal(t, "scan", svc.createReq.Title)
	require.NotNil(t, svc.createReq.Description)
	assert.Equal(t, "receipt", *svc.createReq.Description)
	assert.Equal(t, "receipt.pdf", svc.fileName)
	assert.Equal(t, []byte("%PDF-1.4"), svc.fileBody)
	assertDirEmpty(t, tempDir)
}

func TestHandleCreate_FileExactlyAtLimit(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 1024)

	body, ct := multipartBody(t, map[string]string{"title": "t"}, formFile{"file", "a.bin", bytes.Repeat([]byte("x"), 1024)})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, svc.fileBody, 1024)
}

func TestHandleCreate_OversizeFileRejected(t *testing.T) {
	svc := &fakeNoteService{}
	router, tempDir := newTestNoteHandler(t, svc, 1024)

	body, ct := multipartBody(t, map[string]string{"title": "t"}, formFile{"file", "big.bin", bytes.Repeat([]byte("x"), 1025)})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "File too large (max 1 KiB)", decodeError(t, rec))
	assert.False(t, svc.called)
	assertDirEmpty(t, tempDir)
}

func TestHandleCreate_DefaultLimitMessage(t *testing.T) {
	assert.Equal(t, "File too large (max 5 MiB)", IntakeConfig{}.tooLarge().Error())
}

func TestHandleCreate_TwoFilesRejected(t *testing.T) {
	svc := &fakeNoteService{}
	router, tempDir := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, map[string]string{"title": "t"},
		formFile{"file", "a.txt", []byte("a")},
		formFile{"file", "b.txt", []byte("b")})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.called)
	assertDirEmpty(t, tempDir)
}

func TestHandleCreate_FileUnderOtherFieldRejected(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, map[string]string{"title": "t"}, formFile{"attachment", "a.txt", []byte("a")})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.called)
}

func TestHandleCreate_OversizeFieldRejected(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, map[string]string{"title": string(bytes.Repeat([]byte("t"), maxFieldSize+1))})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, svc.called)
}

func TestHandleCreate_JSONBody(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	req := httptest.NewRequest(http.MethodPost, "/api/notes", bytes.NewBufferString(`{"title":"json note"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "json note", svc.createReq.Title)
	assert.Nil(t, svc.createReq.Description)
	assert.Nil(t, svc.fileBody)
}

func TestHandleCreate_ServiceValidationError(t *testing.T) {
	svc := &fakeNoteService{err: apperror.ValidationFailed("title", "title: cannot be blank")}
	router, tempDir := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, nil, formFile{"file", "a.txt", []byte("a")})
	req := httptest.NewRequest(http.MethodPost, "/api/notes", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title: cannot be blank", decodeError(t, rec))
	assertDirEmpty(t, tempDir)
}

func TestHandleUpdate_AbsentFieldsAreNil(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	body, ct := multipartBody(t, map[string]string{"description": ""})
	req := httptest.NewRequest(http.MethodPut, "/api/notes/n42", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "n42", svc.id)
	assert.Nil(t, svc.updateReq.Title)
	require.NotNil(t, svc.updateReq.Description)
	assert.Equal(t, "", *svc.updateReq.Description)
}

func TestHandleUpdate_URLEncoded(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	req := httptest.NewRequest(http.MethodPut, "/api/notes/n1", bytes.NewBufferString("title=renamed"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updateReq.Title)
	assert.Equal(t, "renamed", *svc.updateReq.Title)
	assert.Nil(t, svc.updateReq.Description)
}

func TestHandleGet_NotFound(t *testing.T) {
	svc := &fakeNoteService{err: apperror.NotFound("note", "nope")}
	router, _ := newTestNoteHandler(t, svc, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Not found", decodeError(t, rec))
}

func TestHandleList(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, "u1", svc.ownerID)
}

func TestHandleDelete(t *testing.T) {
	svc := &fakeNoteService{}
	router, _ := newTestNoteHandler(t, svc, 0)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/notes/n9", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "n9", svc.id)
}

func TestNoteRoutes_WithoutIdentity(t *testing.T) {
	svc := &fakeNoteService{}
	h := NewNoteHandler(svc, IntakeConfig{}, testLogger())

	rec := httptest.NewRecorder()
	noteRouter(h, false).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, svc.called)
}
