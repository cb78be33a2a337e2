// Package repository holds the MySQL stores and the sentinel errors they
// share.  Higher layers translate these into domain errors or HTTP codes:
// ErrNotFound becomes 404 and ErrConflict (a compare-and-swap that matched
// no row, or a duplicate claim) becomes 409.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be applied because the row
// is no longer in the expected state.
var ErrConflict = errors.New("conflict")
