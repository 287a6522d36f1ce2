package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_downloads_total",
		Help: "Total number of download attempts",
	})

	DownloadsSuccess = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_downloads_success_total",
		Help: "Total number of successful downloads",
	})

	DownloadsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_downloads_failed_total",
		Help: "Total number of failed download attempts",
	})

	DownloadsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_downloads_skipped_total",
		Help: "Total number of tasks skipped before any network call",
	})

	FilesAlreadyPresent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_files_already_present_total",
		Help: "Total number of tasks satisfied by an existing file",
	})

	RetryAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_retry_attempts_total",
		Help: "Total number of retry passes over the pending set",
	})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "civitai_downloader_download_duration_seconds",
		Help:    "Single-file download duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "civitai_downloader_download_bytes_total",
		Help: "Total bytes downloaded",
	})
)
