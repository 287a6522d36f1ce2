package orchestrator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Confuzu/CivitAI-Downloader/internal/config"
	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/Confuzu/CivitAI-Downloader/internal/metrics"
	"github.com/Confuzu/CivitAI-Downloader/internal/progress"
	"github.com/Confuzu/CivitAI-Downloader/internal/storage"
	"github.com/Confuzu/CivitAI-Downloader/internal/worker"
	"golang.org/x/sync/errgroup"
)

// Orchestrator drives the retry loop: each attempt runs the whole pending
// set through a fixed pool of workers, then the failures become the next
// attempt's pending set. Attempts are strict barriers; no task of attempt
// N+1 starts before every task of attempt N has a terminal result.
type Orchestrator struct {
	cfg      *config.Config
	store    *storage.Store
	token    string
	logger   *slog.Logger
	reporter *progress.Reporter
	out      io.Writer
}

// New creates an Orchestrator. out receives the per-file status lines;
// pass nil for os.Stdout.
func New(cfg *config.Config, store *storage.Store, token string, logger *slog.Logger, reporter *progress.Reporter, out io.Writer) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = os.Stdout
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		token:    token,
		logger:   logger,
		reporter: reporter,
		out:      out,
	}
}

// Run processes tasks until every one succeeds or is skipped, or the
// attempt budget is exhausted. The returned Report lists the still-failing
// tasks, if any.
func (o *Orchestrator) Run(ctx context.Context, tasks []domain.Task) domain.Report {
	report := domain.Report{}
	pending := tasks

	for attempt := 1; attempt <= o.cfg.Retries; attempt++ {
		report.Attempts = attempt
		o.reporter.SetAttempt(attempt)

		if attempt > 1 {
			metrics.RetryAttempts.Inc()
			o.logger.Info("retrying failed downloads", "attempt", attempt, "max_attempts", o.cfg.Retries, "remaining", len(pending))
			fmt.Fprintf(o.out, "\nRetry attempt %d/%d (%d file(s) remaining)...\n", attempt, o.cfg.Retries, len(pending))
		}

		results := o.runAttempt(ctx, pending)

		var failed []domain.Task
		failedResults := make([]domain.AttemptResult, 0)
		for _, res := range results {
			o.record(&report, res)
			if res.Outcome == domain.OutcomeFailed {
				failed = append(failed, res.Task)
				failedResults = append(failedResults, res)
			}
		}

		if len(failed) == 0 {
			report.Failures = nil
			return report
		}

		report.Failures = failedResults
		pending = failed

		if ctx.Err() != nil {
			o.logger.Warn("run canceled", "remaining", len(pending))
			break
		}
	}

	return report
}

// runAttempt dispatches every pending task to a fixed pool and waits for
// all terminal results. Each pool worker owns its own HTTP client.
func (o *Orchestrator) runAttempt(ctx context.Context, tasks []domain.Task) []domain.AttemptResult {
	workers := o.cfg.MaxThreads
	if workers > len(tasks) {
		workers = len(tasks)
	}

	jobs := make(chan domain.Task)
	resultCh := make(chan domain.AttemptResult, len(tasks))

	opts := worker.Options{
		Token:          o.token,
		ConnectTimeout: o.cfg.ConnectTimeout,
		ReadTimeout:    o.cfg.ReadTimeout,
		ChunkSize:      o.cfg.ChunkSize,
	}

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		w := worker.NewDownloadWorker(o.store, opts, o.logger.With("worker", i+1), o.reporter)
		g.Go(func() error {
			for task := range jobs {
				start := time.Now()
				res := w.Download(ctx, task)
				if res.Outcome == domain.OutcomeSuccess && !res.AlreadyPresent {
					metrics.DownloadDuration.Observe(time.Since(start).Seconds())
				}
				resultCh <- res
			}
			return nil
		})
	}

	for _, task := range tasks {
		jobs <- task
	}
	close(jobs)
	_ = g.Wait()
	close(resultCh)

	results := make([]domain.AttemptResult, 0, len(tasks))
	for res := range resultCh {
		results = append(results, res)
	}
	return results
}

// record updates the report, metrics, progress counters and the per-file
// status line for one terminal result.
func (o *Orchestrator) record(report *domain.Report, res domain.AttemptResult) {
	switch res.Outcome {
	case domain.OutcomeSuccess:
		if res.AlreadyPresent {
			report.AlreadyPresent++
			metrics.FilesAlreadyPresent.Inc()
			o.reporter.FileAlreadyPresent()
			fmt.Fprintf(o.out, "  EXISTS  %s\n", res.SanitizedName)
			return
		}
		report.Downloaded++
		metrics.DownloadsTotal.Inc()
		metrics.DownloadsSuccess.Inc()
		metrics.DownloadBytes.Add(float64(res.BytesRead))
		o.reporter.FileDownloaded()
		fmt.Fprintf(o.out, "  OK      %s -> %s/ (%s)\n", res.SanitizedName, res.Folder, progress.FormatBytes(res.BytesRead))

	case domain.OutcomeSkipped:
		report.Skipped++
		metrics.DownloadsSkipped.Inc()
		o.reporter.FileSkipped()
		fmt.Fprintf(o.out, "  SKIP    %s (%s)\n", res.SanitizedName, res.Reason)

	case domain.OutcomeFailed:
		metrics.DownloadsTotal.Inc()
		metrics.DownloadsFailed.Inc()
		o.reporter.FileFailed()
		fmt.Fprintf(o.out, "  FAIL    %s: %s\n", displayName(res), res.Reason)
	}
}

func displayName(res domain.AttemptResult) string {
	if res.SanitizedName != "" {
		return res.SanitizedName
	}
	return res.Task.Filename
}
