// Package common contains sentinel errors shared across FileVault components.
package common

import "errors"

var (

	// repository specific errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// service specific errors
	ErrValidation   = errors.New("validation error")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")

	// blob store specific errors
	ErrRemote = errors.New("remote storage error")

	ErrInvalidToken = errors.New("invalid token")
)
