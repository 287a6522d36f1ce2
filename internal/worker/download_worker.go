package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Confuzu/CivitAI-Downloader/internal/classify"
	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/Confuzu/CivitAI-Downloader/internal/progress"
	"github.com/Confuzu/CivitAI-Downloader/internal/sanitize"
	"github.com/Confuzu/CivitAI-Downloader/internal/storage"
)

// Options configures a DownloadWorker.
type Options struct {
	Token          string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	ChunkSize      int
}

// DownloadWorker downloads one task at a time: sanitize, gate, existence
// check, HTTP stream to a temp file, classify, atomic commit. Each worker
// owns its HTTP client for its lifetime; no session state is shared
// across workers.
type DownloadWorker struct {
	store    *storage.Store
	client   *http.Client
	opts     Options
	logger   *slog.Logger
	reporter *progress.Reporter
}

// NewDownloadWorker creates a worker with its own HTTP client using the
// configured connect and read timeouts.
func NewDownloadWorker(store *storage.Store, opts Options, logger *slog.Logger, reporter *progress.Reporter) *DownloadWorker {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: opts.ConnectTimeout,
			}).DialContext,
			TLSHandshakeTimeout:   opts.ConnectTimeout,
			ResponseHeaderTimeout: opts.ReadTimeout,
		},
	}
	return NewDownloadWorkerWithClient(store, opts, logger, reporter, client)
}

// NewDownloadWorkerWithClient creates a worker around an explicit client.
// Used by tests to count or fault-inject transport calls.
func NewDownloadWorkerWithClient(store *storage.Store, opts Options, logger *slog.Logger, reporter *progress.Reporter, client *http.Client) *DownloadWorker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 64 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DownloadWorker{
		store:    store,
		client:   client,
		opts:     opts,
		logger:   logger,
		reporter: reporter,
	}
}

// Download performs one attempt at one task. Every error is converted to
// a terminal AttemptResult here; nothing propagates to the orchestrator
// or other in-flight workers.
func (w *DownloadWorker) Download(ctx context.Context, task domain.Task) domain.AttemptResult {
	name, err := sanitize.Sanitize(task.Filename)
	if err != nil {
		w.logger.Warn("invalid filename", "filename", task.Filename, "error", err)
		return domain.Failed(task, task.Filename, domain.FailureInvalidFilename, err.Error())
	}

	if !classify.IsSupported(name) {
		return domain.Skipped(task, name, fmt.Sprintf("unsupported extension %q", classify.Ext(name)))
	}

	if w.store.Exists(name) {
		return domain.AlreadyExists(task, name)
	}

	return w.fetch(ctx, task, name)
}

func (w *DownloadWorker) fetch(ctx context.Context, task domain.Task, name string) domain.AttemptResult {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		return domain.Failed(task, name, domain.FailureTransport, fmt.Sprintf("create request: %v", err))
	}
	if w.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+w.opts.Token)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		kind, reason := classifyTransportErr(err, false)
		w.logger.Error("request failed", "url", task.URL, "file", name, "error", err)
		return domain.Failed(task, name, kind, reason)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Error("bad status", "url", task.URL, "file", name, "status", resp.Status)
		return domain.Failed(task, name, domain.FailureHTTPStatus, fmt.Sprintf("http status %d", resp.StatusCode))
	}

	tmp, err := w.store.CreateTemp(name)
	if err != nil {
		return domain.Failed(task, name, domain.FailureIO, fmt.Sprintf("create temp file: %v", err))
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			w.store.Discard(tmpPath)
		}
	}()

	written, err := w.stream(reqCtx, cancel, tmp, resp.Body)
	closeErr := tmp.Close()
	if err != nil {
		kind, reason := classifyStreamErr(err)
		w.logger.Error("stream failed", "url", task.URL, "file", name, "bytes", written, "error", err)
		return domain.Failed(task, name, kind, reason)
	}
	if closeErr != nil {
		return domain.Failed(task, name, domain.FailureIO, fmt.Sprintf("close temp file: %v", closeErr))
	}

	folder := classify.Classify(name, written)
	if err := w.store.Commit(tmpPath, folder, name); err != nil {
		return domain.Failed(task, name, domain.FailureIO, err.Error())
	}
	committed = true

	w.logger.Debug("file downloaded", "file", name, "folder", folder, "bytes", written)
	return domain.Succeeded(task, name, folder, written)
}

// errStalled marks a body read that produced no data for ReadTimeout.
var errStalled = errors.New("read stalled")

// stream copies the response body to dst in fixed-size chunks. A watchdog
// timer cancels the request when no data arrives within ReadTimeout, so a
// stalled body read cannot block a worker forever.
func (w *DownloadWorker) stream(ctx context.Context, cancel context.CancelFunc, dst io.Writer, src io.Reader) (int64, error) {
	var stalled atomic.Bool
	var watchdog *time.Timer
	if w.opts.ReadTimeout > 0 {
		watchdog = time.AfterFunc(w.opts.ReadTimeout, func() {
			stalled.Store(true)
			cancel()
		})
		defer watchdog.Stop()
	}

	buf := make([]byte, w.opts.ChunkSize)
	var total int64

	for {
		if err := ctx.Err(); err != nil {
			if stalled.Load() {
				return total, errStalled
			}
			return total, err
		}

		nr, rerr := src.Read(buf)
		if nr > 0 {
			if watchdog != nil {
				watchdog.Reset(w.opts.ReadTimeout)
			}
			nw, werr := dst.Write(buf[:nr])
			if nw > 0 {
				total += int64(nw)
				w.reporter.Add(int64(nw))
			}
			if werr != nil {
				return total, fmt.Errorf("write: %w", werr)
			}
			if nw != nr {
				return total, io.ErrShortWrite
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			if stalled.Load() {
				return total, errStalled
			}
			return total, fmt.Errorf("read body: %w", rerr)
		}
	}
}

func classifyStreamErr(err error) (domain.FailureKind, string) {
	if errors.Is(err, errStalled) {
		return domain.FailureTimeout, "read timed out"
	}
	if errors.Is(err, io.ErrShortWrite) {
		return domain.FailureIO, err.Error()
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return domain.FailureIO, err.Error()
	}
	return classifyTransportErr(err, true)
}

func classifyTransportErr(err error, midStream bool) (domain.FailureKind, string) {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return domain.FailureTimeout, "timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		if midStream {
			return domain.FailureTimeout, "read timed out"
		}
		return domain.FailureTimeout, "connect timed out"
	default:
		return domain.FailureTransport, err.Error()
	}
}
