// Package risk implements C6, the risk composer: combined_risk scoring and
// risk-banding over chaos, blast radius, and (externally supplied) churn
// signals, plus the scan_critical query (spec §4.6).
package risk

import (
	"context"
	"sort"

	"github.com/sigtrace/sigtrace/internal/depgraph"
	"github.com/sigtrace/sigtrace/internal/store"
)

// Band is a risk classification band.
type Band string

// Risk bands per spec §4.6, evaluated in descending order.
const (
	BandCritical Band = "CRITICAL"
	BandHigh     Band = "HIGH"
	BandModerate Band = "MODERATE"
	BandLow      Band = "LOW"
)

// Bands holds the three descending score thresholds for BandOf, in the
// order critical/high/moderate; anything below moderate is BandLow.
// Defaults are spec §6's risk_bands (0.40/0.30/0.20).
type Bands struct {
	Critical float64
	High     float64
	Moderate float64
}

// DefaultBands matches spec §6's recognized risk_bands default.
func DefaultBands() Bands {
	return Bands{Critical: 0.40, High: 0.30, Moderate: 0.20}
}

// BandOf classifies score into a band using the default thresholds.
func BandOf(score float64) Band {
	return DefaultBands().Classify(score)
}

// Classify applies b's thresholds to score.
func (b Bands) Classify(score float64) Band {
	switch {
	case score >= b.Critical:
		return BandCritical
	case score >= b.High:
		return BandHigh
	case score >= b.Moderate:
		return BandModerate
	default:
		return BandLow
	}
}

// Weights holds the three combined_risk term weights (chaos, blast radius,
// churn). Defaults are spec §6's combined_risk_weights (0.4/0.3/0.3).
type Weights struct {
	Chaos       float64
	BlastRadius float64
	Churn       float64
}

// DefaultWeights matches spec §6's recognized combined_risk_weights default.
func DefaultWeights() Weights {
	return Weights{Chaos: 0.4, BlastRadius: 0.3, Churn: 0.3}
}

// ChurnFunc supplies the externally provided churn signal for a path, in
// [0,1]. Spec §4.6: "the repo integrates a VCS-history adapter outside this
// core" — sigtrace ships no such adapter, so the default ChurnFunc always
// returns 0.
type ChurnFunc func(ctx context.Context, path string) (float64, error)

// ZeroChurn is the default ChurnFunc: no VCS-history adapter is wired, so
// churn is always 0.
func ZeroChurn(ctx context.Context, path string) (float64, error) { return 0, nil }

// BlastRadiusNormCap is the denominator in min(blast_radius/50, 1).
const BlastRadiusNormCap = 50.0

// BlastRadiusDepthCap is the depth_cap passed to depgraph.BlastRadius when
// composing combined_risk; spec §4.5's default.
const BlastRadiusDepthCap = 10

// Composer is C6: it combines a file's chaos score, blast radius, and churn
// into a single combined_risk value.
type Composer struct {
	store   store.Store
	graph   *depgraph.Analyzer
	churnFn ChurnFunc
	weights Weights
	bands   Bands
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithChurnFunc overrides the churn signal source.
func WithChurnFunc(fn ChurnFunc) ComposerOption {
	return func(c *Composer) { c.churnFn = fn }
}

// WithWeights overrides the combined_risk term weights.
func WithWeights(w Weights) ComposerOption {
	return func(c *Composer) { c.weights = w }
}

// WithBands overrides the risk band thresholds.
func WithBands(b Bands) ComposerOption {
	return func(c *Composer) { c.bands = b }
}

// NewComposer builds a Composer over s and g. Churn defaults to ZeroChurn;
// weights and bands default to spec §6's recognized defaults.
func NewComposer(s store.Store, g *depgraph.Analyzer, opts ...ComposerOption) *Composer {
	c := &Composer{store: s, graph: g, churnFn: ZeroChurn, weights: DefaultWeights(), bands: DefaultBands()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Score is one file's combined_risk breakdown, returned by CombinedRisk and
// ScanCritical.
type Score struct {
	Path        string  `json:"path"`
	ChaosScore  float64 `json:"chaos_score"`
	BlastRadius int     `json:"blast_radius"`
	Churn       float64 `json:"churn"`
	Combined    float64 `json:"combined_risk"`
	Band        Band    `json:"risk_band"`
}

// CombinedRisk computes combined_risk(path) := 0.4*chaos + 0.3*min(blast_radius/50, 1) + 0.3*churn,
// per spec §4.6. A file with no chaos profile (binary, too-small, or
// lite-mode skipped) contributes a chaos term of 0 rather than erroring,
// since combined_risk must be defined over every indexed file.
func (c *Composer) CombinedRisk(ctx context.Context, path string) (Score, error) {
	var chaosScore float64
	if profile, err := c.store.GetChaosProfile(ctx, path); err == nil {
		chaosScore = profile.ChaosScore
	}

	br, err := c.graph.BlastRadius(ctx, path, BlastRadiusDepthCap)
	if err != nil {
		return Score{}, err
	}

	churn, err := c.churnFn(ctx, path)
	if err != nil {
		return Score{}, err
	}

	normBlast := float64(br.Size) / BlastRadiusNormCap
	if normBlast > 1 {
		normBlast = 1
	}

	combined := c.weights.Chaos*chaosScore + c.weights.BlastRadius*normBlast + c.weights.Churn*churn

	return Score{
		Path:        path,
		ChaosScore:  chaosScore,
		BlastRadius: br.Size,
		Churn:       churn,
		Combined:    combined,
		Band:        c.bands.Classify(combined),
	}, nil
}

// ScanCritical returns the top-limit files matching scopeGlob with
// combined_risk >= minRisk, sorted descending by score with ties broken by
// path (spec §4.6).
func (c *Composer) ScanCritical(ctx context.Context, scopeGlob string, minRisk float64, limit int) ([]Score, error) {
	paths, err := c.store.ListPaths(ctx, scopeGlob)
	if err != nil {
		return nil, err
	}

	scores := make([]Score, 0, len(paths))
	for _, p := range paths {
		score, err := c.CombinedRisk(ctx, p)
		if err != nil {
			return nil, err
		}
		if score.Combined >= minRisk {
			scores = append(scores, score)
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Combined != scores[j].Combined {
			return scores[i].Combined > scores[j].Combined
		}
		return scores[i].Path < scores[j].Path
	})

	if limit > 0 && len(scores) > limit {
		scores = scores[:limit]
	}
	return scores, nil
}
