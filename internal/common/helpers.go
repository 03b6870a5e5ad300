package common

import (
	"io"
)

// ToPtr returns a pointer to the given value.
func ToPtr[T any](x T) *T {
	return &x
}

type readSeekNopCloser struct {
	io.ReadSeeker
}

func (readSeekNopCloser) Close() error {
	return nil
}

// NopSeekCloser wraps an io.ReadSeeker into an io.ReadSeekCloser with a
// no-op Close method.
func NopSeekCloser(r io.ReadSeeker) io.ReadSeekCloser {
	return readSeekNopCloser{r}
}
