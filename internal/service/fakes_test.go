package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
	"github.com/sakif/notebox/internal/storage"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository and storage interfaces. Each
// has error fields to simulate failures.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeUserRepo struct {
	users  map[string]*model.User // keyed by username
	nextID int

	createErr error
	getErr    error
	existsErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Username == user.Username || u.Email == user.Email {
			return apperror.Conflict(repository.MsgUserExists)
		}
	}
	f.nextID++
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	user.CreatedAt = time.Now().UTC()
	stored := *user
	f.users[user.Username] = &stored
	return nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	result := *u
	return &result, nil
}

func (f *fakeUserRepo) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type fakeNoteRepo struct {
	notes  map[string]*model.Note
	nextID int

	createErr error
	updateErr error
	deleteErr error
}

func newFakeNoteRepo() *fakeNoteRepo {
	return &fakeNoteRepo{notes: make(map[string]*model.Note)}
}

func (f *fakeNoteRepo) Create(_ context.Context, note *model.Note) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	note.ID = fmt.Sprintf("note-%d", f.nextID)
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC().Add(time.Duration(f.nextID) * time.Second)
	}
	stored := *note
	f.notes[note.ID] = &stored
	return nil
}

func (f *fakeNoteRepo) owned(id, ownerID string) (*model.Note, error) {
	n, ok := f.notes[id]
	if !ok || n.UploadedBy != ownerID {
		return nil, apperror.NotFound("note", id)
	}
	return n, nil
}

func (f *fakeNoteRepo) GetOwned(_ context.Context, id, ownerID string) (*model.Note, error) {
	n, err := f.owned(id, ownerID)
	if err != nil {
		return nil, err
	}
	result := *n
	return &result, nil
}

func (f *fakeNoteRepo) ListByOwner(_ context.Context, ownerID string) ([]model.Note, error) {
	var result []model.Note
	for _, n := range f.notes {
		if n.UploadedBy == ownerID {
			result = append(result, *n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeNoteRepo) UpdateOwned(_ context.Context, id, ownerID string, changes model.NoteChanges) (*model.Note, *model.Note, error) {
	if f.updateErr != nil {
		return nil, nil, f.updateErr
	}
	n, err := f.owned(id, ownerID)
	if err != nil {
		return nil, nil, err
	}
	before := *n
	if changes.Title != nil {
		n.Title = *changes.Title
	}
	if changes.ClearDescription {
		n.Description = nil
	} else if changes.Description != nil {
		d := *changes.Description
		n.Description = &d
	}
	if changes.FileURL != nil {
		u := *changes.FileURL
		n.FileURL = &u
	}
	after := *n
	return &before, &after, nil
}

func (f *fakeNoteRepo) DeleteOwned(_ context.Context, id, ownerID string) (*model.Note, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	n, err := f.owned(id, ownerID)
	if err != nil {
		return nil, err
	}
	delete(f.notes, id)
	return n, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	files   map[string][]byte
	saveErr error
	delErr  error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Save(_ context.Context, key string, data io.Reader, _ int64) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = b
	return nil
}

func (f *fakeStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *fakeStorage) Delete(_ context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func (f *fakeStorage) has(fileURL string) bool {
	key, ok := storage.KeyFromURL(fileURL)
	if !ok {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok = f.files[key]
	return ok
}

var errDatabaseDown = errors.New("database is down")
