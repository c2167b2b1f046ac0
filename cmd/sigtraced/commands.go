package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	rootPath  string
	storePath string
	traceExp  string
	metricExp string

	rootCmd = &cobra.Command{
		Use:   "sigtraced",
		Short: "Structural code-intelligence server for byte-manifold signatures and blast-radius risk",
		Long: `sigtraced ingests a source tree, computes per-file byte-manifold
signatures and chaos profiles, tracks the Go import graph, and serves
risk-composition and signature-search queries over the result.`,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest [path]",
		Short: "Walk a directory and index every file into the signature store",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runIngest,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [path]",
		Short: "Ingest a directory, then keep it in sync with filesystem events",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWatch,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP observability surface (healthz, metrics, debug summary) over an already-ingested store",
		RunE:  runServe,
	}

	queryCmd = &cobra.Command{
		Use:   "query",
		Short: "Run a one-shot query against the signature store",
	}
	querySearchCmd = &cobra.Command{
		Use:   "search [pattern]",
		Short: "search_substring: literal or regex search with line context",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuerySearch,
	}
	queryVerifyCmd = &cobra.Command{
		Use:   "verify [file]",
		Short: "verify_snippet: check a file's per-window signatures against the index",
		Args:  cobra.ExactArgs(1),
		RunE:  runQueryVerify,
	}
	queryClusterCmd = &cobra.Command{
		Use:   "cluster",
		Short: "cluster: k-means over indexed (coherence,stability,entropy) signatures",
		RunE:  runQueryCluster,
	}

	riskCmd = &cobra.Command{
		Use:   "risk",
		Short: "Risk composition (C6) over the ingested store",
	}
	riskScanCmd = &cobra.Command{
		Use:   "scan",
		Short: "scan_critical: top files by combined_risk at or above a threshold",
		RunE:  runRiskScan,
	}

	searchGlob          string
	searchCaseSensitive bool
	searchLimit         int

	verifyCoverage float64
	verifyScope    string

	clusterScope string
	clusterK     int

	riskScope string
	riskMin   float64
	riskLimit int
	riskJSON  bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootPath, "root", ".", "Root directory to index")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "BadgerDB store directory (empty: in-memory)")
	rootCmd.PersistentFlags().StringVar(&traceExp, "trace-exporter", "none", "Trace exporter: stdout or none")
	rootCmd.PersistentFlags().StringVar(&metricExp, "metric-exporter", "prometheus", "Metric exporter: prometheus or none")

	rootCmd.AddCommand(ingestCmd)

	watchCmd.Flags().Bool("once", false, "Ingest once and exit without watching (debug aid)")
	rootCmd.AddCommand(watchCmd)

	serveCmd.Flags().String("addr", ":8088", "HTTP listen address")
	rootCmd.AddCommand(serveCmd)

	rootCmd.AddCommand(queryCmd)
	querySearchCmd.Flags().StringVar(&searchGlob, "glob", "", "Restrict search to paths matching this glob")
	querySearchCmd.Flags().BoolVar(&searchCaseSensitive, "case-sensitive", false, "Case-sensitive match")
	querySearchCmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum hits to return")
	queryCmd.AddCommand(querySearchCmd)

	queryVerifyCmd.Flags().Float64Var(&verifyCoverage, "coverage-threshold", 0.5, "Minimum safe_coverage to verify")
	queryVerifyCmd.Flags().StringVar(&verifyScope, "scope", "", "Restrict neighbor lookup to paths matching this glob")
	queryCmd.AddCommand(queryVerifyCmd)

	queryClusterCmd.Flags().StringVar(&clusterScope, "scope", "", "Restrict clustering to paths matching this glob")
	queryClusterCmd.Flags().IntVar(&clusterK, "k", 3, "Number of clusters")
	queryCmd.AddCommand(queryClusterCmd)

	rootCmd.AddCommand(riskCmd)
	riskScanCmd.Flags().StringVar(&riskScope, "scope", "", "Restrict the scan to paths matching this glob")
	riskScanCmd.Flags().Float64Var(&riskMin, "min-risk", 0.30, "Minimum combined_risk to report")
	riskScanCmd.Flags().IntVar(&riskLimit, "limit", 20, "Maximum files to report")
	riskScanCmd.Flags().BoolVar(&riskJSON, "json", false, "Output as JSON")
	riskCmd.AddCommand(riskScanCmd)
}
