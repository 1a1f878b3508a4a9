package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/tbeck/coursemirror/internal/course"
	"github.com/tbeck/coursemirror/internal/fingerprint"
	"github.com/tbeck/coursemirror/internal/index"
	"github.com/tbeck/coursemirror/internal/logctx"
	"github.com/tbeck/coursemirror/internal/scheduler/progress"
	"github.com/tbeck/coursemirror/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	dirPerm = 0755

	progressInterval = int64(50 * 1024 * 1024) // 50MB
)

// RetryConfig bounds the retry loop around network operations.
type RetryConfig struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Scheduler drains a job queue with a fixed pool of workers. Each worker runs
// one job to completion: fingerprint the remote file, consult the index, then
// either skip or download. Per-job failures are contained in that job's
// Result and never abort the pool.
type Scheduler struct {
	engine      *fingerprint.Engine
	index       index.Index
	downloadDir string
	workers     int
	retry       RetryConfig
	telemetry   *telemetry.Telemetry
}

func New(
	engine *fingerprint.Engine,
	idx index.Index,
	downloadDir string,
	workers int,
	retry RetryConfig,
	tel *telemetry.Telemetry,
) *Scheduler {
	if workers < 1 {
		workers = 1
	}

	return &Scheduler{
		engine:      engine,
		index:       idx,
		downloadDir: downloadDir,
		workers:     workers,
		retry:       retry,
		telemetry:   tel,
	}
}

// Run starts the worker pool against the job channel and returns the result
// stream. The result channel is closed once the job channel is drained (or
// the context is cancelled) and all workers have exited. Results arrive in
// completion order, which is not the enqueue order.
func (s *Scheduler) Run(ctx context.Context, jobs <-chan *course.RemoteFile) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		wg, ctx := errgroup.WithContext(ctx)

		for i := 0; i < s.workers; i++ {
			workerID := i

			wg.Go(func() error {
				s.worker(ctx, workerID, jobs, results)

				return nil
			})
		}

		_ = wg.Wait()
	}()

	return results
}

func (s *Scheduler) worker(ctx context.Context, id int, jobs <-chan *course.RemoteFile, results chan<- Result) {
	logger := logctx.LoggerFromContext(ctx).With("worker", id)

	for {
		// Checked first so a stopped worker never claims another job even
		// when the queue still has entries ready.
		select {
		case <-ctx.Done():
			logger.Debug("worker exiting", "reason", "context cancelled")

			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug("worker exiting", "reason", "context cancelled")

			return
		case job, ok := <-jobs:
			if !ok {
				logger.Debug("worker exiting", "reason", "queue drained")

				return
			}

			results <- s.process(ctx, job)
		}
	}
}

// process runs one job's state machine to a terminal state.
func (s *Scheduler) process(ctx context.Context, job *course.RemoteFile) Result {
	start := time.Now()

	res := s.run(logctx.With(ctx, "course_id", job.Course.ID, "file", job.Name), job)

	s.telemetry.RecordJob(ctx, res.Outcome.String(), time.Since(start))

	return res
}

func (s *Scheduler) run(ctx context.Context, job *course.RemoteFile) Result {
	logger := logctx.LoggerFromContext(ctx)

	fp, err := s.fingerprintJob(ctx, job)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("fingerprinting failed: %w", err))
	}

	s.telemetry.RecordFingerprint(ctx)

	seen, err := s.index.Contains(ctx, job.Course.ID, fp)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("index lookup failed: %w", err))
	}

	if seen {
		logger.Debug("skipping duplicate", "fingerprint", fp.String())

		return Result{Job: job, Outcome: OutcomeSkipped, Fingerprint: fp}
	}

	written, err := s.downloadJob(ctx, job)
	if err != nil {
		return s.fail(ctx, job, fmt.Errorf("download failed: %w", err))
	}

	// Insert strictly after the file is durably on disk. A crash in between
	// re-downloads the file next run, which is safe; the reverse order could
	// skip content that was never written.
	if err := s.index.Insert(ctx, job.Course.ID, fp); err != nil {
		logger.Warn("file saved but index update failed, next run will re-download", "err", err)
	}

	return Result{Job: job, Outcome: OutcomeDownloaded, Fingerprint: fp, Written: written}
}

func (s *Scheduler) fail(ctx context.Context, job *course.RemoteFile, err error) Result {
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return Result{Job: job, Outcome: OutcomeFailed, Err: err}
}

func (s *Scheduler) fingerprintJob(ctx context.Context, job *course.RemoteFile) (fingerprint.Fingerprint, error) {
	return backoff.Retry(ctx, func() (fingerprint.Fingerprint, error) {
		return s.engine.Fingerprint(ctx, job.Source, job.Name, job.Ext)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.retry.MaxAttempts))
}

func (s *Scheduler) downloadJob(ctx context.Context, job *course.RemoteFile) (int64, error) {
	return backoff.Retry(ctx, func() (int64, error) {
		written, err := s.download(ctx, job)

		var storageErr *StorageError
		if errors.As(err, &storageErr) {
			return 0, backoff.Permanent(err)
		}

		return written, err
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(s.retry.MaxAttempts))
}

// download performs one full transfer attempt: fetch to a temp file next to
// the target, fsync, then rename into place. On any error the partial file is
// removed so it is never mistaken for a finished download.
func (s *Scheduler) download(ctx context.Context, job *course.RemoteFile) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	targetPath := filepath.Join(s.downloadDir, job.RelPath())
	if err := os.MkdirAll(filepath.Dir(targetPath), dirPerm); err != nil {
		return 0, &StorageError{Path: targetPath, Err: err}
	}

	body, err := job.Source.FetchFull(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch file: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(targetPath), "."+filepath.Base(targetPath)+".part-")
	if err != nil {
		return 0, &StorageError{Path: targetPath, Err: err}
	}

	done := s.telemetry.DownloadStarted(ctx)

	written, err := s.writeFile(ctx, tmp, body, job, targetPath)

	done(written)

	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return 0, err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())

		return 0, &StorageError{Path: targetPath, Err: err}
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())

		return 0, &StorageError{Path: targetPath, Err: err}
	}

	if err := os.Rename(tmp.Name(), targetPath); err != nil {
		os.Remove(tmp.Name())

		return 0, &StorageError{Path: targetPath, Err: err}
	}

	logger.Info("downloaded and saved file", "target", targetPath, "size", humanize.Bytes(uint64(written)))

	return written, nil
}

func (s *Scheduler) writeFile(ctx context.Context, out *os.File, body io.Reader, job *course.RemoteFile, targetPath string) (int64, error) {
	logger := logctx.LoggerFromContext(ctx)

	progressCb := func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"target", targetPath,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "target", targetPath, "downloaded", humanize.Bytes(uint64(written)))
		}
	}
	pr := progress.NewReader(body, job.Size, progressInterval, progressCb)

	written, err := io.Copy(out, pr)
	if err != nil {
		if ctx.Err() != nil {
			return written, fmt.Errorf("transfer aborted: %w", ctx.Err())
		}

		return written, fmt.Errorf("failed to copy file: %w", err)
	}

	return written, nil
}

func (s *Scheduler) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.InitialInterval
	b.MaxInterval = s.retry.MaxInterval

	return b
}
