package report

import (
	"context"
	"errors"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/tbeck/coursemirror/internal/logctx"
	"github.com/tbeck/coursemirror/internal/scheduler"
)

// Summary aggregates per-job outcomes for one sync run. Jobs complete in any
// order; the reporter only counts, it never sequences.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
	Cancelled  int
	Bytes      int64
}

// Total is the number of jobs accounted for.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// Reporter consumes the scheduler's result stream and keeps running totals.
type Reporter struct {
	mu      sync.Mutex
	summary Summary
}

func NewReporter() *Reporter {
	return &Reporter{}
}

// Consume drains results until the channel closes, logging each outcome. It
// returns the final summary.
func (r *Reporter) Consume(ctx context.Context, results <-chan scheduler.Result) Summary {
	logger := logctx.LoggerFromContext(ctx)

	for res := range results {
		r.record(res)

		switch res.Outcome {
		case scheduler.OutcomeDownloaded:
			logger.Info("file downloaded",
				"course_id", res.Job.Course.ID,
				"file", res.Job.Name,
				"size", humanize.Bytes(uint64(res.Written)))
		case scheduler.OutcomeSkipped:
			logger.Info("duplicate skipped",
				"course_id", res.Job.Course.ID,
				"file", res.Job.Name,
				"fingerprint", res.Fingerprint.String())
		case scheduler.OutcomeFailed:
			logger.Error("file failed",
				"course_id", res.Job.Course.ID,
				"file", res.Job.Name,
				"err", res.Err)
		}
	}

	summary := r.Summary()

	logger.Info("sync finished",
		"downloaded", summary.Downloaded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"cancelled", summary.Cancelled,
		"bytes", humanize.Bytes(uint64(summary.Bytes)))

	return summary
}

func (r *Reporter) record(res scheduler.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch res.Outcome {
	case scheduler.OutcomeDownloaded:
		r.summary.Downloaded++
		r.summary.Bytes += res.Written
	case scheduler.OutcomeSkipped:
		r.summary.Skipped++
	case scheduler.OutcomeFailed:
		r.summary.Failed++

		if errors.Is(res.Err, scheduler.ErrCancelled) {
			r.summary.Cancelled++
		}
	}
}

// Summary returns a copy of the current totals.
func (r *Reporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.summary
}
