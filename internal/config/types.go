// Package config loads sigtrace's recognized configuration options (spec
// §6) from a YAML file into a singleton, translating them into the
// per-component Config/option values internal/manifold, internal/chaos,
// internal/ingest, internal/store, internal/depgraph, and internal/risk
// each already accept.
package config

import "time"

// SigtraceConfig is the top-level recognized-options document (spec §6).
type SigtraceConfig struct {
	Manifold ManifoldConfig `yaml:"manifold"`
	Chaos    ChaosConfig    `yaml:"chaos"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Store    StoreConfig    `yaml:"store"`
	Depgraph DepgraphConfig `yaml:"depgraph"`
	Risk     RiskConfig     `yaml:"risk"`
}

// ManifoldConfig mirrors manifold.Config (spec §6: window_bytes,
// stride_bytes, signature_precision).
type ManifoldConfig struct {
	WindowBytes int `yaml:"window_bytes"`
	StrideBytes int `yaml:"stride_bytes"`
	Precision   int `yaml:"signature_precision"`
}

// ChaosConfig mirrors chaos.Config (spec §6: chaos_state_window,
// chaos_hazard_percentile, chaos_high_threshold). QuantileMode resolves the
// spec §9 Open Question; "absolute" (default) or "median_centered".
type ChaosConfig struct {
	StateWindow      int     `yaml:"chaos_state_window"`
	HazardPercentile float64 `yaml:"chaos_hazard_percentile"`
	HighThreshold    float64 `yaml:"chaos_high_threshold"`
	QuantileMode     string  `yaml:"quantile_mode"`
}

// IngestConfig mirrors ingest.Config (spec §6: max_bytes_per_file,
// lite_globs, ingest_batch, worker_cap, watcher_debounce_ms).
type IngestConfig struct {
	MaxBytesPerFile   int64    `yaml:"max_bytes_per_file"`
	LiteGlobs         []string `yaml:"lite_globs"`
	BatchSize         int      `yaml:"ingest_batch"`
	WorkerCap         int      `yaml:"worker_cap"`
	WatcherDebounceMs int      `yaml:"watcher_debounce_ms"`
}

// WatcherDebounce returns WatcherDebounceMs as a time.Duration.
func (c IngestConfig) WatcherDebounce() time.Duration {
	return time.Duration(c.WatcherDebounceMs) * time.Millisecond
}

// StoreConfig mirrors store.Config (spec §6: store_timeout_ms) plus the
// BadgerDB path, which isn't a spec-recognized option but must live
// somewhere for the CLI to pick up.
type StoreConfig struct {
	Path           string `yaml:"path"`
	StoreTimeoutMs int    `yaml:"store_timeout_ms"`
	SyncWrites     bool   `yaml:"sync_writes"`
}

// StoreTimeout returns StoreTimeoutMs as a time.Duration.
func (c StoreConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// DepgraphConfig holds C5's is_core threshold (spec §9 Open Question).
type DepgraphConfig struct {
	CoreBlastRadius int `yaml:"core_blast_radius"`
}

// RiskConfig mirrors risk.Weights/risk.Bands (spec §6:
// combined_risk_weights, risk_bands) plus neighbor_default_tolerance, which
// is consumed by internal/query's verify_snippet rather than internal/risk
// but is grouped with the other scalar tuning knobs here.
type RiskConfig struct {
	NeighborDefaultTolerance float64 `yaml:"neighbor_default_tolerance"`
	WeightChaos              float64 `yaml:"weight_chaos"`
	WeightBlastRadius        float64 `yaml:"weight_blast_radius"`
	WeightChurn              float64 `yaml:"weight_churn"`
	BandCritical             float64 `yaml:"band_critical"`
	BandHigh                 float64 `yaml:"band_high"`
	BandModerate             float64 `yaml:"band_moderate"`
}

// DefaultConfig returns spec §6's recognized defaults.
func DefaultConfig() SigtraceConfig {
	return SigtraceConfig{
		Manifold: ManifoldConfig{
			WindowBytes: 64,
			StrideBytes: 48,
			Precision:   3,
		},
		Chaos: ChaosConfig{
			StateWindow:      5,
			HazardPercentile: 0.75,
			HighThreshold:    0.35,
			QuantileMode:     "absolute",
		},
		Ingest: IngestConfig{
			MaxBytesPerFile:   512000,
			LiteGlobs:         []string{"**/*_test.go", "**/testdata/**", "**/docs/**", "**/*.md"},
			BatchSize:         64,
			WorkerCap:         8,
			WatcherDebounceMs: 250,
		},
		Store: StoreConfig{
			Path:           "",
			StoreTimeoutMs: 5000,
			SyncWrites:     true,
		},
		Depgraph: DepgraphConfig{
			CoreBlastRadius: 10,
		},
		Risk: RiskConfig{
			NeighborDefaultTolerance: 0.05,
			WeightChaos:              0.4,
			WeightBlastRadius:        0.3,
			WeightChurn:              0.3,
			BandCritical:             0.40,
			BandHigh:                 0.30,
			BandModerate:             0.20,
		},
	}
}
