// Package progress implements thread-safe, rate-limited progress accounting
// for streaming uploads. A Tracker is either determinate (the total upload
// size is known up front, e.g. a local file) or indeterminate (the size is
// unknown, e.g. a remote stream).
package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultLogInterval is the minimum wall-clock time between two progress
// log lines, except for the final 100% line which is always emitted.
const DefaultLogInterval = 15 * time.Second

// Tracker accumulates bytes-transferred counts. The provider SDKs upload
// with multiple workers, so Add may be called concurrently; the counter
// update and the log decision happen under a single lock to avoid lost
// updates and duplicate log lines.
type Tracker struct {
	container string
	object    string

	mu       sync.Mutex
	total    int64 // negative for indeterminate uploads
	seen     int64
	interval time.Duration
	lastLog  time.Time

	now func() time.Time
}

// Option adjusts a Tracker at construction time.
type Option func(*Tracker)

// WithInterval overrides the log rate limit interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		t.interval = d
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

func newTracker(container, object string, total int64, opts []Option) *Tracker {
	t := &Tracker{
		container: container,
		object:    object,
		total:     total,
		interval:  DefaultLogInterval,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewDeterminate returns a tracker for an upload whose total size in bytes
// is known in advance.
func NewDeterminate(container, object string, total int64, opts ...Option) *Tracker {
	return newTracker(container, object, total, opts)
}

// NewIndeterminate returns a tracker for an upload of unknown total size.
func NewIndeterminate(container, object string, opts ...Option) *Tracker {
	return newTracker(container, object, -1, opts)
}

// Determinate reports whether the tracker knows the total upload size.
func (t *Tracker) Determinate() bool {
	return t.total >= 0
}

// Done reports whether all expected bytes have been seen. Calling Done on
// an indeterminate tracker is a usage error and panics.
func (t *Tracker) Done() bool {
	if !t.Determinate() {
		panic("progress: Done is unsupported for indeterminate uploads")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen == t.total
}

// Seen returns the number of bytes accumulated so far.
func (t *Tracker) Seen() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seen
}

// Add accumulates n transferred bytes and emits a progress log line when
// the upload completed (determinate only) or when the last line is older
// than the configured interval.
func (t *Tracker) Add(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen += n

	now := t.now()
	overdue := now.Sub(t.lastLog) >= t.interval

	switch {
	case t.Determinate() && (t.seen == t.total || overdue):
		percentage := 0.0
		if t.total > 0 {
			percentage = float64(t.seen) / float64(t.total) * 100
		}
		logrus.Infof("Bytes uploaded (%s/%s): %d/%d (%.2f%%)",
			t.container, t.object, t.seen, t.total, percentage)
		t.lastLog = now
	case !t.Determinate() && overdue:
		logrus.Infof("Bytes uploaded (%s/%s): %d", t.container, t.object, t.seen)
		t.lastLog = now
	}
}

// String summarizes the current progress, mainly for a final log line.
func (t *Tracker) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.Determinate() {
		return fmt.Sprintf("%d bytes uploaded", t.seen)
	}
	percentage := 0.0
	if t.total > 0 {
		percentage = float64(t.seen) / float64(t.total) * 100
	}
	return fmt.Sprintf("%d/%d bytes uploaded (%.2f%%)", t.seen, t.total, percentage)
}

type trackingReader struct {
	r io.Reader
	t *Tracker
}

func (tr *trackingReader) Read(p []byte) (int, error) {
	n, err := tr.r.Read(p)
	if n > 0 {
		tr.t.Add(int64(n))
	}
	return n, err
}

// NewReader wraps r so every read reports to the tracker. The returned
// reader intentionally does not implement io.Seeker; the SDK uploaders
// fall back to sequential reads, which keeps the byte accounting exact.
func (t *Tracker) NewReader(r io.Reader) io.Reader {
	return &trackingReader{r: r, t: t}
}
