package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gosuri/uilive"
)

// Snapshot is a point-in-time view of a run, served by the status API.
type Snapshot struct {
	TotalFiles     int   `json:"total_files"`
	Downloaded     int   `json:"downloaded"`
	AlreadyPresent int   `json:"already_present"`
	Skipped        int   `json:"skipped"`
	FailedAttempts int   `json:"failed_attempts"`
	Pending        int   `json:"pending"`
	Bytes          int64 `json:"bytes_downloaded"`
	Attempt        int   `json:"attempt"`
	ElapsedSeconds int64 `json:"elapsed_seconds"`
}

// Reporter tracks aggregate download progress and renders a single live
// status line. All counters are advisory; a nil Reporter is valid and
// every method on it is a no-op.
type Reporter struct {
	totalFiles int
	interval   time.Duration

	w   *uilive.Writer
	out io.Writer

	start          time.Time
	downloaded     atomic.Int64
	alreadyPresent atomic.Int64
	skipped        atomic.Int64
	failedAttempts atomic.Int64
	bytes          atomic.Int64
	attempt        atomic.Int64
	lastBytes      int64
	lastUpdate     time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// NewReporter creates a reporter for totalFiles tasks writing to out.
func NewReporter(totalFiles int, out io.Writer) *Reporter {
	w := uilive.New()
	w.Out = out
	return &Reporter{
		totalFiles: totalFiles,
		interval:   500 * time.Millisecond,
		w:          w,
		out:        out,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start begins the render loop.
func (r *Reporter) Start() {
	if r == nil {
		return
	}
	r.start = time.Now()
	r.lastUpdate = r.start
	go r.loop()
}

// Stop renders a final line and stops the loop. Safe to call twice.
func (r *Reporter) Stop() {
	if r == nil {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopCh)
		<-r.doneCh
	})
}

// Bypass returns a writer whose output appears above the live line.
// Per-file status lines go through it so they are not overwritten.
func (r *Reporter) Bypass() io.Writer {
	if r == nil {
		return io.Discard
	}
	return r.w.Bypass()
}

// Add records n streamed bytes.
func (r *Reporter) Add(n int64) {
	if r == nil {
		return
	}
	r.bytes.Add(n)
}

// FileDownloaded records a completed fresh download.
func (r *Reporter) FileDownloaded() {
	if r == nil {
		return
	}
	r.downloaded.Add(1)
}

// FileAlreadyPresent records a task satisfied by an existing file.
func (r *Reporter) FileAlreadyPresent() {
	if r == nil {
		return
	}
	r.alreadyPresent.Add(1)
}

// FileSkipped records a task skipped by the extension gate or sanitizer.
func (r *Reporter) FileSkipped() {
	if r == nil {
		return
	}
	r.skipped.Add(1)
}

// FileFailed records one failed attempt at a task.
func (r *Reporter) FileFailed() {
	if r == nil {
		return
	}
	r.failedAttempts.Add(1)
}

// SetAttempt records the current attempt number.
func (r *Reporter) SetAttempt(attempt int) {
	if r == nil {
		return
	}
	r.attempt.Store(int64(attempt))
}

// Snapshot returns the current counters.
func (r *Reporter) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	done := int(r.downloaded.Load())
	present := int(r.alreadyPresent.Load())
	skipped := int(r.skipped.Load())
	pending := r.totalFiles - done - present - skipped
	if pending < 0 {
		pending = 0
	}
	var elapsed int64
	if !r.start.IsZero() {
		elapsed = int64(time.Since(r.start).Seconds())
	}
	return Snapshot{
		TotalFiles:     r.totalFiles,
		Downloaded:     done,
		AlreadyPresent: present,
		Skipped:        skipped,
		FailedAttempts: int(r.failedAttempts.Load()),
		Pending:        pending,
		Bytes:          r.bytes.Load(),
		Attempt:        int(r.attempt.Load()),
		ElapsedSeconds: elapsed,
	}
}

func (r *Reporter) loop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.render(true)
			return
		case <-ticker.C:
			r.render(false)
		}
	}
}

func (r *Reporter) render(final bool) {
	snap := r.Snapshot()

	now := time.Now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(snap.Bytes-r.lastBytes) / elapsed
	r.lastBytes = snap.Bytes
	r.lastUpdate = now

	if final {
		total := time.Since(r.start)
		avg := float64(snap.Bytes) / total.Seconds()
		fmt.Fprintf(r.w, "%d/%d files | %d existing | %d skipped | %s in %s (%s/s avg)\n",
			snap.Downloaded, snap.TotalFiles,
			snap.AlreadyPresent, snap.Skipped,
			FormatBytes(snap.Bytes), formatDuration(total), FormatBytes(int64(avg)),
		)
	} else {
		fmt.Fprintf(r.w, "%d/%d files | %d pending | %s | %s/s | attempt %d\n",
			snap.Downloaded+snap.AlreadyPresent+snap.Skipped, snap.TotalFiles,
			snap.Pending,
			FormatBytes(snap.Bytes), FormatBytes(int64(speed)),
			snap.Attempt,
		)
	}
	r.w.Flush()
}

// FormatBytes renders b as a human-readable size.
func FormatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
		tb = gb * 1024
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm %ds", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}
