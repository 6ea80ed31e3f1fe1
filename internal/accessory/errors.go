package accessory

import "errors"

// Sentinel errors for accessory persistence operations.
// Check with errors.Is().
var (
	// ErrNotFound indicates no accessory exists for the given identifier.
	ErrNotFound = errors.New("accessory: not found")

	// ErrExists indicates an accessory with the same UUID or composite id
	// is already persisted.
	ErrExists = errors.New("accessory: already exists")

	// ErrInvalidRecord indicates the record is missing required fields.
	ErrInvalidRecord = errors.New("accessory: invalid record")
)
