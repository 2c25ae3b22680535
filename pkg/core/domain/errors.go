package domain

import "errors"

// Errors returned by the link service.
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrInvalidAlias     = errors.New("invalid custom alias")
	ErrAliasTaken       = errors.New("custom alias already taken")
	ErrExhaustedRetries = errors.New("could not allocate a unique short code")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Errors returned by MappingStore implementations.
var (
	ErrAlreadyExists = errors.New("short code already exists")
	ErrNotFound      = errors.New("short code not found")
)
