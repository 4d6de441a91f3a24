package sentinel

import "errors"

// Sentinel errors for storage facts. Repositories return these (usually
// wrapped) so handlers can translate them into HTTP responses without
// inspecting driver-specific error types.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)
