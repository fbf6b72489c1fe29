// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a tenant identity. Every folder and file carries the owning
// user's id, and all queries are scoped by it.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
