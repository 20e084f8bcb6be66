// Package model defines the data structures shared by the repository,
// service and handler layers.
package model

import "time"

// User is a registered account. Users are created on registration and never
// updated afterwards.
type User struct {
	ID           string    `json:"id"         db:"id"`
	Username     string    `json:"username"   db:"username"`
	Email        string    `json:"email"      db:"email"`
	PasswordHash string    `json:"-"          db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
