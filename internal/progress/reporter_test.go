package progress

import (
	"bytes"
	"strings"
	"testing"
)

func TestReporter_SnapshotCounts(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(5, &buf)
	r.SetAttempt(2)

	r.FileDownloaded()
	r.FileDownloaded()
	r.FileAlreadyPresent()
	r.FileSkipped()
	r.FileFailed()
	r.Add(1024)
	r.Add(512)

	snap := r.Snapshot()
	if snap.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", snap.Downloaded)
	}
	if snap.AlreadyPresent != 1 {
		t.Errorf("AlreadyPresent = %d, want 1", snap.AlreadyPresent)
	}
	if snap.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", snap.Skipped)
	}
	if snap.FailedAttempts != 1 {
		t.Errorf("FailedAttempts = %d, want 1", snap.FailedAttempts)
	}
	if snap.Pending != 1 {
		t.Errorf("Pending = %d, want 1", snap.Pending)
	}
	if snap.Bytes != 1536 {
		t.Errorf("Bytes = %d, want 1536", snap.Bytes)
	}
	if snap.Attempt != 2 {
		t.Errorf("Attempt = %d, want 2", snap.Attempt)
	}
}

func TestReporter_StartStopRendersFinalLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(1, &buf)
	r.Start()
	r.FileDownloaded()
	r.Add(2048)
	r.Stop()

	out := buf.String()
	if !strings.Contains(out, "1/1 files") {
		t.Errorf("final line missing file count: %q", out)
	}
	if !strings.Contains(out, "2.00 KB") {
		t.Errorf("final line missing byte total: %q", out)
	}

	// second Stop is a no-op
	r.Stop()
}

func TestReporter_NilIsSafe(t *testing.T) {
	var r *Reporter
	r.Start()
	r.Add(10)
	r.FileDownloaded()
	r.FileAlreadyPresent()
	r.FileSkipped()
	r.FileFailed()
	r.SetAttempt(1)
	if w := r.Bypass(); w == nil {
		t.Error("nil reporter Bypass should still return a writer")
	}
	if snap := r.Snapshot(); snap.TotalFiles != 0 {
		t.Errorf("nil snapshot should be zero, got %+v", snap)
	}
	r.Stop()
}

func TestFormatBytes(t *testing.T) {
	cases := map[int64]string{
		512:             "512 B",
		2048:            "2.00 KB",
		5 * 1024 * 1024: "5.00 MB",
	}
	for in, want := range cases {
		if got := FormatBytes(in); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
