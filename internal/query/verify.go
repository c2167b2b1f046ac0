package query

import (
	"context"
	"math"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/store"
)

// NeighborTolerance is the per-window signature tolerance used by
// verify_snippet (spec §4.7).
const NeighborTolerance = 0.05

// VerificationResult is the outcome of verify_snippet.
type VerificationResult struct {
	Verified          bool    `json:"verified"`
	RawMatchRatio     float64 `json:"raw_match_ratio"`
	SafeCoverage      float64 `json:"safe_coverage"`
	CoverageThreshold float64 `json:"coverage_threshold"`
	HazardThreshold   float64 `json:"hazard_threshold"`
	TotalWindows      int     `json:"total_windows"`
	MatchedWindows    int     `json:"matched_windows"`
	GatedHits         int     `json:"gated_hits"`
}

// VerifySnippet runs C1+C2 on snippet, then for each window queries C3 for
// files whose signature lies within NeighborTolerance (spec §4.7).
//
// raw_match_ratio := matched_windows / total_windows.
// safe_coverage := gated_hits / total_windows, where a window counts as a
// gated hit iff it matched AND its log-variance signal does not exceed the
// snippet's own hazard threshold theta (a "safe", low-hazard match) — see
// DESIGN.md for why the gating direction follows sidecar.py's
// `hazard <= hazard_threshold` rather than spec.md's literal "exceeds"
// wording. Verified iff safe_coverage >= coverageThreshold.
func VerifySnippet(ctx context.Context, s store.Store, snippet []byte, coverageThreshold float64, scopeGlob string, manifoldCfg manifold.Config, chaosCfg chaos.Config) (VerificationResult, error) {
	result, err := manifold.Encode(snippet, manifoldCfg)
	if err != nil {
		return VerificationResult{}, err
	}
	profile := chaos.Analyze(result, chaosCfg)

	total := len(result.Windows)
	var matched, gated int

	for _, w := range result.Windows {
		neighbors, err := s.Neighbors(ctx, w.Quantized, NeighborTolerance, scopeGlob, 1)
		if err != nil {
			return VerificationResult{}, err
		}
		if len(neighbors) == 0 {
			continue
		}
		matched++

		signal := math.Abs(math.Log10(math.Max(w.Variance, 1e-9)))
		if signal <= profile.HazardThreshold {
			gated++
		}
	}

	var rawMatchRatio, safeCoverage float64
	if total > 0 {
		rawMatchRatio = float64(matched) / float64(total)
		safeCoverage = float64(gated) / float64(total)
	}

	return VerificationResult{
		Verified:          safeCoverage >= coverageThreshold,
		RawMatchRatio:     rawMatchRatio,
		SafeCoverage:      safeCoverage,
		CoverageThreshold: coverageThreshold,
		HazardThreshold:   profile.HazardThreshold,
		TotalWindows:      total,
		MatchedWindows:    matched,
		GatedHits:         gated,
	}, nil
}
