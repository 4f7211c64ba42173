package store

import "errors"

var (
	// ErrNotFound is returned when a keyed lookup finds nothing.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned by compare-and-set updates whose expected
	// version no longer matches the stored row.
	ErrVersionConflict = errors.New("record was modified concurrently")

	// ErrActiveKeyConflict is returned when activating a key pair would leave
	// two active keys for one algorithm.
	ErrActiveKeyConflict = errors.New("another key pair is already active for this algorithm")
)
