package interfaces

import "errors"

// Common interface errors used across components
var (
	// ErrStaleUpdate is returned by compare-and-set updates when the stored row
	// no longer matches the state the caller read.
	ErrStaleUpdate = errors.New("started lecture changed concurrently")
)
