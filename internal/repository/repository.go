// Package repository declares the storage interfaces the service layer
// depends on. The sqldb subpackage implements them on database/sql.
package repository

import (
	"context"

	"github.com/sakif/notebox/internal/model"
)

type UserRepository interface {
	// Create inserts the user and fills in ID and CreatedAt. A duplicate
	// username or email yields apperror.ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	// ExistsByUsernameOrEmail reports whether either value is already taken.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// NoteRepository methods are all scoped by owner: a note owned by someone
// else behaves exactly like a note that does not exist (apperror.ErrNotFound).
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetOwned(ctx context.Context, id, ownerID string) (*model.Note, error)
	ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error)
	// UpdateOwned applies changes and returns the note before and after.
	UpdateOwned(ctx context.Context, id, ownerID string, changes model.NoteChanges) (before, after *model.Note, err error)
	// DeleteOwned removes the note and returns it as it was.
	DeleteOwned(ctx context.Context, id, ownerID string) (*model.Note, error)
}

// MsgUserExists is the client-facing message for a duplicate registration.
// It does not say which of username/email collided.
const MsgUserExists = "Username or email already exists"
