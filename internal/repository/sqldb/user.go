package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*UserStore)(nil)

// Create inserts a new user. The UNIQUE constraints on username and email
// are the final word on duplicates; a violation becomes apperror.ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = now()

	_, err := s.db.conn.ExecContext(ctx, s.db.d.rebind(
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		if s.db.d.isUnique(err) {
			return apperror.Conflict(repository.MsgUserExists)
		}
		return fmt.Errorf("sqldb: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetByUsername looks a user up by exact username.
// Returns apperror.ErrNotFound if there is none.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User

	err := s.db.conn.QueryRowContext(ctx, s.db.d.rebind(
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE username = ?`),
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqldb: getting user %q: %w", username, err)
	}

	return &u, nil
}

// ExistsByUsernameOrEmail reports whether either value is taken.
func (s *UserStore) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx, s.db.d.rebind(
		`SELECT COUNT(*) FROM users WHERE username = ? OR email = ?`),
		username, email,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("sqldb: checking for existing user: %w", err)
	}
	return count > 0, nil
}
