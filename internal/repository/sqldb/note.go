package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/model"
	"github.com/sakif/notebox/internal/repository"
)

var _ repository.NoteRepository = (*NoteStore)(nil)

const noteColumns = `id, title, description, file_url, uploaded_by, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*model.Note, error) {
	var (
		n           model.Note
		description sql.NullString
		fileURL     sql.NullString
	)
	if err := row.Scan(&n.ID, &n.Title, &description, &fileURL, &n.UploadedBy, &n.CreatedAt); err != nil {
		return nil, err
	}
	if description.Valid {
		n.Description = &description.String
	}
	if fileURL.Valid {
		n.FileURL = &fileURL.String
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

// nullable maps a nil pointer to SQL NULL.
func nullable(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// Create inserts a note and fills in its ID. CreatedAt is set to now unless
// the caller already set it.
func (s *NoteStore) Create(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now()
	}

	_, err := s.db.conn.ExecContext(ctx, s.db.d.rebind(
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		note.ID,
		note.Title,
		nullable(note.Description),
		nullable(note.FileURL),
		note.UploadedBy,
		note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqldb: creating note: %w", err)
	}

	return nil
}

// GetOwned returns the note only if ownerID owns it.
func (s *NoteStore) GetOwned(ctx context.Context, id, ownerID string) (*model.Note, error) {
	row := s.db.conn.QueryRowContext(ctx, s.db.d.rebind(
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND uploaded_by = ?`),
		id, ownerID,
	)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqldb: getting note %s: %w", id, err)
	}
	return n, nil
}

// ListByOwner returns the owner's notes, newest first. Notes created in the
// same instant are ordered by ID, which xid makes time-sortable too.
func (s *NoteStore) ListByOwner(ctx context.Context, ownerID string) ([]model.Note, error) {
	rows, err := s.db.conn.QueryContext(ctx, s.db.d.rebind(
		`SELECT `+noteColumns+` FROM notes
		 WHERE uploaded_by = ?
		 ORDER BY created_at DESC, id DESC`),
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing notes: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("sqldb: scanning note row: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating notes: %w", err)
	}

	return notes, nil
}

// getOwnedTx reads the note inside tx, locking the row where the dialect
// supports it so the following write sees the same owner.
func (s *NoteStore) getOwnedTx(ctx context.Context, tx *sql.Tx, id, ownerID string) (*model.Note, error) {
	row := tx.QueryRowContext(ctx, s.db.d.rebind(
		`SELECT `+noteColumns+` FROM notes WHERE id = ? AND uploaded_by = ?`+s.db.d.lockClause),
		id, ownerID,
	)
	n, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("note", id)
		}
		return nil, fmt.Errorf("sqldb: getting note %s: %w", id, err)
	}
	return n, nil
}

// UpdateOwned applies changes to a note the owner holds. The ownership check
// and the UPDATE share one transaction.
func (s *NoteStore) UpdateOwned(ctx context.Context, id, ownerID string, changes model.NoteChanges) (*model.Note, *model.Note, error) {
	if changes.Empty() {
		return nil, nil, apperror.ValidationFailed("", "No changes")
	}

	var sets []string
	var args []any
	if changes.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *changes.Title)
	}
	if changes.Description != nil || changes.ClearDescription {
		sets = append(sets, "description = ?")
		args = append(args, nullable(changes.Description))
	}
	if changes.FileURL != nil {
		sets = append(sets, "file_url = ?")
		args = append(args, *changes.FileURL)
	}
	args = append(args, id, ownerID)

	var before, after *model.Note
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		before, err = s.getOwnedTx(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, s.db.d.rebind(
			`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ? AND uploaded_by = ?`),
			args...,
		)
		if err != nil {
			return fmt.Errorf("sqldb: updating note %s: %w", id, err)
		}

		after, err = s.getOwnedTx(ctx, tx, id, ownerID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return before, after, nil
}

// DeleteOwned removes the note if ownerID owns it and returns the deleted row
// so the caller can clean up its file.
func (s *NoteStore) DeleteOwned(ctx context.Context, id, ownerID string) (*model.Note, error) {
	var deleted *model.Note
	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		deleted, err = s.getOwnedTx(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, s.db.d.rebind(
			`DELETE FROM notes WHERE id = ? AND uploaded_by = ?`),
			id, ownerID,
		)
		if err != nil {
			return fmt.Errorf("sqldb: deleting note %s: %w", id, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqldb: checking rows affected: %w", err)
		}
		if affected == 0 {
			return apperror.NotFound("note", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return deleted, nil
}
