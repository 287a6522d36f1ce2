package orchestrator

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Confuzu/CivitAI-Downloader/internal/config"
	"github.com/Confuzu/CivitAI-Downloader/internal/domain"
	"github.com/Confuzu/CivitAI-Downloader/internal/storage"
)

func testConfig() *config.Config {
	return &config.Config{
		DownloadDir:    ".",
		MaxThreads:     3,
		Retries:        3,
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		ChunkSize:      1024,
	}
}

func newTestOrchestrator(t *testing.T, cfg *config.Config, out io.Writer) (*Orchestrator, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if out == nil {
		out = io.Discard
	}
	return New(cfg, store, "", logger, nil, out), store
}

// flakyServer succeeds on path once failBefore[path] requests have been
// seen for it.
type flakyServer struct {
	mu         sync.Mutex
	hits       map[string]int
	failBefore map[string]int
}

func (f *flakyServer) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	n := f.hits[r.URL.Path]
	threshold := f.failBefore[r.URL.Path]
	f.mu.Unlock()

	if n < threshold {
		http.Error(w, "temporarily broken", http.StatusInternalServerError)
		return
	}
	io.WriteString(w, "content for "+r.URL.Path)
}

func (f *flakyServer) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func TestRun_AllSucceedFirstAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer server.Close()

	o, store := newTestOrchestrator(t, testConfig(), nil)

	tasks := []domain.Task{
		{Filename: "a.pt", URL: server.URL + "/a"},
		{Filename: "b.safetensors", URL: server.URL + "/b"},
	}
	report := o.Run(context.Background(), tasks)

	if !report.Resolved() {
		t.Fatalf("expected all resolved, got failures %+v", report.Failures)
	}
	if report.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2", report.Downloaded)
	}
	if report.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", report.Attempts)
	}
	if _, err := os.Stat(store.Path(domain.FolderEmbeddings, "a.pt")); err != nil {
		t.Errorf("a.pt not placed: %v", err)
	}
	if _, err := os.Stat(store.Path(domain.FolderLoras, "b.safetensors")); err != nil {
		t.Errorf("b.safetensors not placed: %v", err)
	}
}

func TestRun_RetryScenario(t *testing.T) {
	// A succeeds on attempt 1, B fails attempts 1-2 and succeeds on 3,
	// C fails every attempt.
	fs := &flakyServer{
		hits: make(map[string]int),
		failBefore: map[string]int{
			"/a": 1,
			"/b": 3,
			"/c": 100,
		},
	}
	server := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer server.Close()

	var out bytes.Buffer
	o, _ := newTestOrchestrator(t, testConfig(), &out)

	tasks := []domain.Task{
		{Filename: "a.pt", URL: server.URL + "/a"},
		{Filename: "b.pt", URL: server.URL + "/b"},
		{Filename: "c.pt", URL: server.URL + "/c"},
	}
	report := o.Run(context.Background(), tasks)

	if report.Resolved() {
		t.Fatal("expected residual failures")
	}
	if report.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", report.Attempts)
	}
	if report.Downloaded != 2 {
		t.Errorf("Downloaded = %d, want 2 (a and b)", report.Downloaded)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("Failures = %+v, want exactly c.pt", report.Failures)
	}
	if report.Failures[0].SanitizedName != "c.pt" {
		t.Errorf("failing file = %q, want c.pt", report.Failures[0].SanitizedName)
	}

	// A must not be re-requested once it succeeded.
	if got := fs.hitCount("/a"); got != 1 {
		t.Errorf("hits(/a) = %d, want 1", got)
	}
	if got := fs.hitCount("/b"); got != 3 {
		t.Errorf("hits(/b) = %d, want 3", got)
	}
	if got := fs.hitCount("/c"); got != 3 {
		t.Errorf("hits(/c) = %d, want 3", got)
	}
}

func TestRun_SkippedTasksNeverRetried(t *testing.T) {
	fs := &flakyServer{
		hits:       make(map[string]int),
		failBefore: map[string]int{"/fail": 100},
	}
	server := httptest.NewServer(http.HandlerFunc(fs.handler))
	defer server.Close()

	var out bytes.Buffer
	o, _ := newTestOrchestrator(t, testConfig(), &out)

	tasks := []domain.Task{
		{Filename: "meta.json", URL: server.URL + "/meta"},
		{Filename: "fail.pt", URL: server.URL + "/fail"},
	}
	report := o.Run(context.Background(), tasks)

	if report.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", report.Skipped)
	}
	// The skipped task never reaches the network, in any attempt.
	if got := fs.hitCount("/meta"); got != 0 {
		t.Errorf("hits(/meta) = %d, want 0", got)
	}
	// Exactly one SKIP line, from the first attempt only.
	if n := strings.Count(out.String(), "SKIP"); n != 1 {
		t.Errorf("SKIP lines = %d, want 1\noutput:\n%s", n, out.String())
	}
	if len(report.Failures) != 1 {
		t.Errorf("expected only fail.pt to remain, got %+v", report.Failures)
	}
}

func TestRun_DuplicateFilenames_OneCompleteFile(t *testing.T) {
	content := "identical payload"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, content)
	}))
	defer server.Close()

	o, store := newTestOrchestrator(t, testConfig(), nil)

	tasks := []domain.Task{
		{Filename: "same.safetensors", URL: server.URL + "/1"},
		{Filename: "same.safetensors", URL: server.URL + "/2"},
	}
	report := o.Run(context.Background(), tasks)

	if !report.Resolved() {
		t.Fatalf("expected all resolved, got %+v", report.Failures)
	}

	data, err := os.ReadFile(store.Path(domain.FolderLoras, "same.safetensors"))
	if err != nil {
		t.Fatalf("read destination: %v", err)
	}
	if string(data) != content {
		t.Errorf("destination must hold one complete file, got %q", data)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".part") {
			t.Errorf("leftover temp file: %s", e.Name())
		}
	}
}

func TestRun_InvalidFilenameFailsEveryAttempt(t *testing.T) {
	var out bytes.Buffer
	o, _ := newTestOrchestrator(t, testConfig(), &out)

	tasks := []domain.Task{
		{Filename: "../traversal.pt", URL: "https://example.invalid/x"},
	}
	report := o.Run(context.Background(), tasks)

	if report.Resolved() {
		t.Fatal("expected failure")
	}
	if report.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", report.Attempts)
	}
	if report.Failures[0].Kind != domain.FailureInvalidFilename {
		t.Errorf("Kind = %s, want invalid_filename", report.Failures[0].Kind)
	}
}
