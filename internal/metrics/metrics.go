package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ariami",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method", "path"})

	ScansTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "library_scans_total",
		Help:      "Total number of library scans started.",
	})

	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ariami",
		Name:      "library_scan_duration_seconds",
		Help:      "Duration of full library scans in seconds.",
		Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 180, 600},
	})

	MetadataCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "metadata_cache_hits_total",
		Help:      "Scan files satisfied from the persistent metadata cache.",
	})

	MetadataCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "metadata_cache_misses_total",
		Help:      "Scan files that required fresh metadata extraction.",
	})

	ExtractFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "metadata_extract_failures_total",
		Help:      "Files skipped because metadata extraction failed.",
	})

	LibrarySongs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ariami",
		Name:      "library_songs",
		Help:      "Number of songs in the current library snapshot.",
	})

	LibraryAlbums = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ariami",
		Name:      "library_albums",
		Help:      "Number of valid albums in the current library snapshot.",
	})

	WarmupUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "duration_warmup_updates_total",
		Help:      "Songs whose duration was filled in by the warm-up task.",
	})

	TranscodeActiveJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ariami",
		Name:      "transcode_active_jobs",
		Help:      "Number of currently running transcode jobs.",
	})

	TranscodeStartsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "transcode_job_starts_total",
		Help:      "Total number of transcode jobs started.",
	})

	TranscodeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "transcode_job_failures_total",
		Help:      "Total number of transcode job failures.",
	})

	TranscodeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ariami",
		Name:      "transcode_duration_seconds",
		Help:      "Duration of encoder invocations in seconds.",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
	})

	TranscodeCacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "ariami",
		Name:      "transcode_cache_size_bytes",
		Help:      "Current total size of the transcoded artifact cache.",
	})

	TranscodeCacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "transcode_cache_evictions_total",
		Help:      "Artifacts evicted from the transcoded cache.",
	})

	DownloadsCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "downloads_completed_total",
		Help:      "Download tasks finished successfully.",
	})

	DownloadsFailedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "downloads_failed_total",
		Help:      "Download tasks that exhausted their retries.",
	})

	DownloadRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ariami",
		Name:      "download_retries_total",
		Help:      "Transport-error retries across all download tasks.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ScansTotal,
		ScanDuration,
		MetadataCacheHits,
		MetadataCacheMisses,
		ExtractFailuresTotal,
		LibrarySongs,
		LibraryAlbums,
		WarmupUpdatesTotal,
		TranscodeActiveJobs,
		TranscodeStartsTotal,
		TranscodeFailuresTotal,
		TranscodeDuration,
		TranscodeCacheSizeBytes,
		TranscodeCacheEvictions,
		DownloadsCompletedTotal,
		DownloadsFailedTotal,
		DownloadRetriesTotal,
	)
}
