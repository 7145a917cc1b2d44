package entities

import "errors"

var (
	// ErrNotFound is returned when no item matches the requested id
	// within the caller's visibility.
	ErrNotFound = errors.New("media item not found")

	// ErrNotReady is returned when a stream is requested for an item
	// that has not reached COMPLETED yet.
	ErrNotReady = errors.New("media item is not ready for streaming")

	// ErrDeleted is returned for writes that target a soft-deleted row.
	ErrDeleted = errors.New("media item is deleted")

	// ErrUnauthorized covers every authentication and authorization
	// failure, including invalid, expired and mismatched tokens.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrValidation rejects bad input at ingestion before a row exists.
	ErrValidation = errors.New("invalid upload")

	ErrInvalidArgument = errors.New("invalid argument")
)
