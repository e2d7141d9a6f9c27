// Package services provides repository interfaces and SQLite implementations
// for the data TubeDeck persists: users, their browser sessions, and
// key-value settings.
package services

import "errors"

// Sentinel errors returned by repositories.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
