package conversation

import "errors"

var (
	// ErrValidation covers malformed input: empty titles or contents,
	// an upsert update supplying neither parent_version nor root_message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidReference is returned when a cross-entity reference breaks
	// ownership, e.g. a parent version from another conversation.
	ErrInvalidReference = errors.New("invalid reference")

	ErrNotFound = errors.New("not found")
)
