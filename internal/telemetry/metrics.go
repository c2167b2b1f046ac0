package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Package-level tracer and meter for sigtrace operations.
var (
	tracer = otel.Tracer("sigtrace")
	meter  = otel.Meter("sigtrace")
)

// Metrics across ingest, store, depgraph, and risk/query operations.
var (
	ingestFilesTotal    metric.Int64Counter
	ingestErrorsTotal   metric.Int64Counter
	ingestLatency       metric.Float64Histogram
	storeNeighborLookup metric.Int64Counter
	blastRadiusCacheHit metric.Int64Counter
	blastRadiusCacheMis metric.Int64Counter
	riskScanLatency     metric.Float64Histogram
	querySearchTotal    metric.Int64Counter
	queryVerifyTotal    metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		ingestFilesTotal, err = meter.Int64Counter(
			"ingest_files_total",
			metric.WithDescription("Total number of files ingested"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ingestErrorsTotal, err = meter.Int64Counter(
			"ingest_errors_total",
			metric.WithDescription("Total number of ingestion errors"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		ingestLatency, err = meter.Float64Histogram(
			"ingest_file_duration_seconds",
			metric.WithDescription("Duration of a single file ingest"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		storeNeighborLookup, err = meter.Int64Counter(
			"store_neighbor_lookups_total",
			metric.WithDescription("Total number of C3 neighbor lookups"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blastRadiusCacheHit, err = meter.Int64Counter(
			"depgraph_blast_radius_cache_hits_total",
			metric.WithDescription("Total number of blast radius cache hits"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		blastRadiusCacheMis, err = meter.Int64Counter(
			"depgraph_blast_radius_cache_misses_total",
			metric.WithDescription("Total number of blast radius cache misses"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		riskScanLatency, err = meter.Float64Histogram(
			"risk_scan_critical_duration_seconds",
			metric.WithDescription("Duration of scan_critical over the corpus"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		querySearchTotal, err = meter.Int64Counter(
			"query_search_substring_total",
			metric.WithDescription("Total number of search_substring calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryVerifyTotal, err = meter.Int64Counter(
			"query_verify_snippet_total",
			metric.WithDescription("Total number of verify_snippet calls"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// RecordIngestFile records a single file ingestion outcome and duration.
func RecordIngestFile(ctx context.Context, duration time.Duration, failed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	ingestFilesTotal.Add(ctx, 1)
	if failed {
		ingestErrorsTotal.Add(ctx, 1)
	}
	ingestLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("failed", failed)))
}

// RecordNeighborLookup records a C3 neighbor lookup.
func RecordNeighborLookup(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	storeNeighborLookup.Add(ctx, 1)
}

// RecordBlastRadiusCache records a blast radius cache hit or miss.
func RecordBlastRadiusCache(ctx context.Context, hit bool) {
	if err := initMetrics(); err != nil {
		return
	}
	if hit {
		blastRadiusCacheHit.Add(ctx, 1)
		return
	}
	blastRadiusCacheMis.Add(ctx, 1)
}

// RecordRiskScan records the duration of a scan_critical call.
func RecordRiskScan(ctx context.Context, duration time.Duration, matched int) {
	if err := initMetrics(); err != nil {
		return
	}
	riskScanLatency.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Int("matched", matched)))
}

// RecordSearch records a search_substring call.
func RecordSearch(ctx context.Context, totalMatches int) {
	if err := initMetrics(); err != nil {
		return
	}
	querySearchTotal.Add(ctx, 1, metric.WithAttributes(attribute.Int("total_matches", totalMatches)))
}

// RecordVerify records a verify_snippet call.
func RecordVerify(ctx context.Context, verified bool) {
	if err := initMetrics(); err != nil {
		return
	}
	queryVerifyTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("verified", verified)))
}

// StartSpan starts a span under the sigtrace tracer for the named
// component operation (e.g. "Ingest.PutFile", "Depgraph.BlastRadius").
func StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}
