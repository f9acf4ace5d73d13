// Package metrics defines the prometheus counters incremented by the
// ingest pipeline and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the pipeline counters. A single instance is created in
// main and injected into the orchestrator.
type Metrics struct {
	FilesIngested    prometheus.Counter
	FilesSkipped     prometheus.Counter
	NoticesInserted  prometheus.Counter
	NoticesRejected  prometheus.Counter
	NoticesDuplicate prometheus.Counter
	ParseErrors      prometheus.Counter
	TransportErrors  prometheus.Counter
	ExtractErrors    prometheus.Counter
}

// New registers the counters on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FilesIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_files_ingested_total",
			Help: "Containers fully processed and ledgered.",
		}),
		FilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_files_skipped_total",
			Help: "Containers skipped because they were already ledgered.",
		}),
		NoticesInserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_notices_inserted_total",
			Help: "Accepted notices persisted to contract_data.",
		}),
		NoticesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_notices_rejected_total",
			Help: "Parsed notices rejected by the OKPD2 allow-set.",
		}),
		NoticesDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_notices_duplicate_total",
			Help: "Notice inserts skipped on duplicate purchase number.",
		}),
		ParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_parse_errors_total",
			Help: "Malformed notice XML files (deleted, not retried).",
		}),
		TransportErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_transport_errors_total",
			Help: "FTP listing and transfer failures.",
		}),
		ExtractErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "ingest_extract_errors_total",
			Help: "Corrupt or unsupported containers (skipped).",
		}),
	}
}
