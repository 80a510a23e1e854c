package model

import "errors"

// Rotation failure categories. Each failed rotation wraps exactly one of
// these so callers can classify it with errors.Is.
var (
	ErrConfiguration          = errors.New("configuration error")
	ErrCredentialsUnavailable = errors.New("controller credentials unavailable")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrProfileListFailed      = errors.New("listing profiles failed")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrMalformedProfile       = errors.New("malformed profile")
	ErrRemoteWriteFailed      = errors.New("remote write failed")
	ErrPersistenceFailed      = errors.New("persistence failed")
)
