// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as opening a process that is not DRAFT,
// consuming a session twice, or resetting a token that is not in a
// resettable state. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")
