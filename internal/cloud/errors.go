package cloud

import (
	"fmt"
)

// ValidationError reports a malformed request. It is raised at request
// construction, before any network call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// UnsupportedError reports a requested combination that is known to be
// unimplemented, such as decompressing a remote compressed source. The
// operation fails immediately and is never attempted partially.
type UnsupportedError struct {
	Op string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("not implemented: %s", e.Op)
}
