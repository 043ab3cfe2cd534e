package sending

import "errors"

var (
	// ErrUnreadable is reported when the source could not be read, or is a directory.
	ErrUnreadable = errors.New("file could not be read")
	// ErrEmpty is reported for zero-byte sources.
	ErrEmpty = errors.New("file is empty")
	// ErrTooLarge is reported when the source exceeds the size limit.
	ErrTooLarge = errors.New("file is too large")

	// ErrItemNotFound is returned by Album operations for unknown messages.
	ErrItemNotFound = errors.New("album item not found")
	// ErrMediaAlreadySet is returned when an album item already has media.
	ErrMediaAlreadySet = errors.New("album item already has media")
)
