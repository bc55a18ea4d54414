package rowstore

import "errors"

var (
	// ErrSchemaMismatch is returned when a record's columns or value types
	// do not match the table's declared columns.
	ErrSchemaMismatch = errors.New("record does not match table schema")

	// ErrNotFound is returned by Get when no row matches, and by Edit when
	// the identity no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrNoIdentity is returned by Edit for a record that was never fetched.
	ErrNoIdentity = errors.New("record has no identity")

	// ErrUnknownColumn is returned when a condition names an undeclared column.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrNoConditions guards Delete against wiping the table by accident.
	ErrNoConditions = errors.New("delete requires at least one condition")

	// ErrConsumed is yielded when a Rows sequence is ranged over twice.
	ErrConsumed = errors.New("row sequence already consumed")
)
