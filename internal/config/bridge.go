package config

import (
	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/ingest"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/risk"
	"github.com/sigtrace/sigtrace/internal/store"
)

// Manifold translates ManifoldConfig into manifold.Config.
func (c SigtraceConfig) Manifold() manifold.Config {
	return manifold.Config{
		WindowBytes: c.Manifold.WindowBytes,
		StrideBytes: c.Manifold.StrideBytes,
		Precision:   c.Manifold.Precision,
	}
}

// Chaos translates ChaosConfig into chaos.Config.
func (c SigtraceConfig) Chaos() chaos.Config {
	mode := chaos.QuantileAbsolute
	if c.Chaos.QuantileMode == "median_centered" {
		mode = chaos.QuantileMedianCentered
	}
	return chaos.Config{
		StateWindow:      c.Chaos.StateWindow,
		HazardPercentile: c.Chaos.HazardPercentile,
		HighThreshold:    c.Chaos.HighThreshold,
		QuantileMode:     mode,
	}
}

// Ingest translates IngestConfig into ingest.Config.
func (c SigtraceConfig) Ingest() ingest.Config {
	return ingest.Config{
		MaxBytesPerFile:  c.Ingest.MaxBytesPerFile,
		LiteGlobs:        c.Ingest.LiteGlobs,
		BatchSize:        c.Ingest.BatchSize,
		WorkerCap:        c.Ingest.WorkerCap,
		WatcherDebounce:  c.Ingest.WatcherDebounce(),
		BinaryExtensions: ingest.DefaultBinaryExtensions(),
	}
}

// Store translates StoreConfig into store.Config.
func (c SigtraceConfig) Store() store.Config {
	return store.Config{
		Path:       c.Store.Path,
		InMemory:   c.Store.Path == "",
		SyncWrites: c.Store.SyncWrites,
		OpTimeout:  c.Store.StoreTimeout(),
	}
}

// RiskWeights translates RiskConfig into risk.Weights.
func (c SigtraceConfig) RiskWeights() risk.Weights {
	return risk.Weights{
		Chaos:       c.Risk.WeightChaos,
		BlastRadius: c.Risk.WeightBlastRadius,
		Churn:       c.Risk.WeightChurn,
	}
}

// RiskBands translates RiskConfig into risk.Bands.
func (c SigtraceConfig) RiskBands() risk.Bands {
	return risk.Bands{
		Critical: c.Risk.BandCritical,
		High:     c.Risk.BandHigh,
		Moderate: c.Risk.BandModerate,
	}
}

// CoreBlastRadius returns the is_core threshold for depgraph.IsCore.
func (c SigtraceConfig) CoreBlastRadius() int {
	return c.Depgraph.CoreBlastRadius
}

// NeighborDefaultTolerance returns the default per-window signature
// tolerance for verify_snippet.
func (c SigtraceConfig) NeighborDefaultTolerance() float64 {
	return c.Risk.NeighborDefaultTolerance
}
