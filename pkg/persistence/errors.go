package persistence

import "errors"

// Standard persistence error types that all implementations should use.
var (
	// ErrActionNotFound indicates an action was not found by the given identifier.
	ErrActionNotFound = errors.New("action not found")

	// ErrActionAlreadyExists indicates an action with the same identifier already exists.
	ErrActionAlreadyExists = errors.New("action already exists")
)

// IsActionNotFound reports whether err wraps ErrActionNotFound.
func IsActionNotFound(err error) bool {
	return errors.Is(err, ErrActionNotFound)
}
