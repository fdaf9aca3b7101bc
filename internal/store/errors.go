package store

import "errors"

var (
	// ErrNotFound is returned when an item id does not exist.
	ErrNotFound = errors.New("item not found")

	// ErrExists is returned when an explicit id is already taken.
	ErrExists = errors.New("item already exists")
)
