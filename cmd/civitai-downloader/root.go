package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/Confuzu/CivitAI-Downloader/internal/api/http"
	cfgpkg "github.com/Confuzu/CivitAI-Downloader/internal/config"
	"github.com/Confuzu/CivitAI-Downloader/internal/listfile"
	"github.com/Confuzu/CivitAI-Downloader/internal/orchestrator"
	"github.com/Confuzu/CivitAI-Downloader/internal/progress"
	"github.com/Confuzu/CivitAI-Downloader/internal/storage"
	"github.com/Confuzu/CivitAI-Downloader/internal/token"
	"github.com/spf13/cobra"
)

var (
	// errDownloadsFailed marks retries exhausted with residual failures.
	errDownloadsFailed = errors.New("some files could not be downloaded")
	// errUsage marks invalid arguments or an unusable input list.
	errUsage = errors.New("invalid usage")
)

func newRootCmd() *cobra.Command {
	var (
		urlFile     string
		maxThreads  int
		retries     int
		downloadDir string
		statusAddr  string
		logLevel    string
		logFormat   string
	)

	cmd := &cobra.Command{
		Use:   "civitai-downloader",
		Short: "Download CivitAI files from a 'filename - url' list",
		Long: `Reads a text file of "<filename> - <url>" lines, downloads each file
concurrently and sorts it into embeddings/, loras/ or models/ by type
and size. Failed downloads are retried until the attempt budget runs
out. The API token comes from CIVITAI_API_TOKEN or an interactive
prompt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cfgpkg.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("url-file") || cfg.URLFile == "" {
				cfg.URLFile = urlFile
			}
			if flags.Changed("max-threads") {
				cfg.MaxThreads = maxThreads
			}
			if flags.Changed("retries") {
				cfg.Retries = retries
			}
			if flags.Changed("download-dir") {
				cfg.DownloadDir = downloadDir
			}
			if flags.Changed("status-addr") {
				cfg.StatusAddr = statusAddr
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}

			cfgpkg.SetupLogger(cfg)
			return run(cfg)
		},
	}

	cmd.Flags().StringVar(&urlFile, "url-file", "", "Text file with 'filename - url' lines (required)")
	cmd.Flags().IntVar(&maxThreads, "max-threads", 5, "Concurrent downloads")
	cmd.Flags().IntVar(&retries, "retries", 3, "Attempts per file before giving up")
	cmd.Flags().StringVar(&downloadDir, "download-dir", ".", "Parent directory of embeddings/, loras/ and models/")
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "Optional listen address for the status/metrics server (e.g. 127.0.0.1:9177)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")

	return cmd
}

func run(cfg *cfgpkg.Config) error {
	tasks, err := listfile.ParseFile(cfg.URLFile, slog.Default())
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return fmt.Errorf("%w: no valid entries found in %s", errUsage, cfg.URLFile)
	}

	tok, err := token.Resolve(os.Stdin, os.Stderr)
	if err != nil {
		return err
	}

	store, err := storage.NewStore(cfg.DownloadDir)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d file(s) to download.\n\n", len(tasks))

	reporter := progress.NewReporter(len(tasks), os.Stderr)
	reporter.Start()
	defer reporter.Stop()

	stopStatus := startStatusServer(cfg, reporter)
	defer stopStatus()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch := orchestrator.New(cfg, store, tok, slog.Default(), reporter, reporter.Bypass())
	report := orch.Run(ctx, tasks)

	reporter.Stop()

	if report.Resolved() {
		fmt.Println("\nAll files downloaded successfully.")
		return nil
	}

	fmt.Printf("\n%d file(s) could not be downloaded after %d attempt(s):\n", len(report.Failures), report.Attempts)
	for _, res := range report.Failures {
		fmt.Printf("  %s\n", res.Task.Filename)
	}
	return errDownloadsFailed
}

// startStatusServer serves /status, /health and /metrics when a listen
// address is configured. Returns a shutdown func; a no-op when disabled.
func startStatusServer(cfg *cfgpkg.Config, reporter *progress.Reporter) func() {
	if cfg.StatusAddr == "" {
		return func() {}
	}

	server := &http.Server{
		Addr:    cfg.StatusAddr,
		Handler: h.NewRouter(reporter, slog.Default()),
	}

	go func() {
		slog.Info("status server starting", "address", cfg.StatusAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("status server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("status server shutdown failed", "error", err)
		}
	}
}
