// Package common defines shared sentinel errors and small helpers used across
// the fileshare components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorBlobNotFound  = errors.New("blob not found")
	ErrVersionConflict = errors.New("version conflict")

	// File access errors, in the order FileService checks them.
	ErrorFileNotFound = errors.New("file not found")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorFileDeleted  = errors.New("file is deleted")
	ErrorNoVersions   = errors.New("no versions found for file")

	// Key and cipher errors.
	ErrorKeyNotFound           = errors.New("key not found")
	ErrorInvalidNonce          = errors.New("invalid nonce size")
	ErrorAuthenticationFailure = errors.New("ciphertext authentication failed")
	ErrorChecksumMismatch      = errors.New("checksum mismatch")

	// Stream and storage I/O.
	ErrorIOFailure = errors.New("i/o failure")

	// Generic service errors.
	ErrorInternal        = errors.New("internal error")
	ErrorInvalidArgument = errors.New("invalid argument")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
