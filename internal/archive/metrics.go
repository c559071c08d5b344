package archive

import "github.com/prometheus/client_golang/prometheus"

var (
	archiveRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_archive_runs_total",
			Help: "Total number of archive export runs by status.",
		},
		[]string{"status"},
	)
	archiveSessionsExportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_archive_sessions_exported_total",
			Help: "Total number of sessions exported to the object store.",
		},
	)
	archiveBytesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_archive_bytes_written_total",
			Help: "Total parquet bytes written by archive exports.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		archiveRunsTotal,
		archiveSessionsExportedTotal,
		archiveBytesWrittenTotal,
	)
}
