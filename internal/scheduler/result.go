package scheduler

import (
	"errors"
	"fmt"

	"github.com/tbeck/coursemirror/internal/course"
	"github.com/tbeck/coursemirror/internal/fingerprint"
)

// Outcome is the terminal state of one job.
type Outcome int

const (
	// OutcomeDownloaded means the full content was fetched and written.
	OutcomeDownloaded Outcome = iota
	// OutcomeSkipped means the fingerprint was already in the index; no bytes
	// beyond the fingerprint window were transferred.
	OutcomeSkipped
	// OutcomeFailed means the job gave up after exhausting retries, or was
	// cancelled.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrCancelled marks a job aborted by the global stop signal rather than a
// fault.
var ErrCancelled = errors.New("cancelled")

// StorageError reports a local filesystem failure while persisting a
// download. It is not retried; retrying a local write rarely helps.
type StorageError struct {
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error for %s: %v", e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Result is emitted exactly once per job, in completion order.
type Result struct {
	Job         *course.RemoteFile
	Outcome     Outcome
	Fingerprint fingerprint.Fingerprint
	Written     int64 // bytes written to disk, zero unless Downloaded
	Err         error // set when Outcome is OutcomeFailed
}
