package model

import "time"

// Note is a user-owned text note with an optional attached file.
//
// Description and FileURL are pointers because both are nullable columns and
// the API renders them as null rather than "".
type Note struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description *string   `json:"description" db:"description"`
	FileURL     *string   `json:"file_url"    db:"file_url"`
	UploadedBy  string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}

// NoteChanges lists the columns an update touches. A nil field is left as is.
// ClearDescription stores NULL, which is how an empty description is saved.
type NoteChanges struct {
	Title            *string
	Description      *string
	ClearDescription bool
	FileURL          *string
}

// Empty reports whether applying the changes would modify nothing.
func (c NoteChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && !c.ClearDescription && c.FileURL == nil
}
