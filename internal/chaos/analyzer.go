// Package chaos implements the symbolic chaos analyzer (C2): it consumes
// per-window variance from the byte manifold encoder, derives a hazard
// threshold, runs a one-bit delta-sigma modulator over the log-variance
// signal, and classifies each window into one of three symbolic states
// whose persistence yields a file-level chaos score.
package chaos

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/sigtrace/sigtrace/internal/manifold"
)

// QuantileMode selects which signal the hazard quantile is computed over
// (spec §9 Open Question).
type QuantileMode int

const (
	// QuantileAbsolute uses |v| (absolute log-variance). The spec's default.
	QuantileAbsolute QuantileMode = iota
	// QuantileMedianCentered uses v - median(v).
	QuantileMedianCentered
)

// State is one of the three symbolic states of the chaos state machine.
type State int

const (
	LowFluctuation State = iota
	Oscillation
	PersistentHigh
)

func (s State) String() string {
	switch s {
	case LowFluctuation:
		return "LOW_FLUCTUATION"
	case Oscillation:
		return "OSCILLATION"
	case PersistentHigh:
		return "PERSISTENT_HIGH"
	default:
		return "UNKNOWN"
	}
}

// Config controls the analyzer's tunables; see spec §6.
type Config struct {
	StateWindow      int          // K, default 5
	HazardPercentile float64      // p, default 0.75
	HighThreshold    float64      // τ_high, default 0.35
	QuantileMode     QuantileMode
}

// DefaultConfig matches spec §6's recognized defaults.
func DefaultConfig() Config {
	return Config{
		StateWindow:      5,
		HazardPercentile: 0.75,
		HighThreshold:    0.35,
		QuantileMode:     QuantileAbsolute,
	}
}

const epsilon = 1e-9

// RiskClass is the file-level HIGH/LOW classification from spec §3.
type RiskClass int

const (
	RiskLow RiskClass = iota
	RiskHigh
)

func (r RiskClass) String() string {
	if r == RiskHigh {
		return "HIGH"
	}
	return "LOW"
}

// Profile is the chaos profile persisted per file (spec §3).
type Profile struct {
	ChaosScore      float64
	Entropy         float64
	Coherence       float64
	HazardThreshold float64
	WindowsAnalyzed int
	RiskClass       RiskClass
	SymbolicStates  map[State]int
}

// Analyze runs the full C2 pipeline over an already-encoded file: the
// log-variance signal, hazard threshold, delta-sigma modulation, and the
// symbolic state machine, then reduces to a chaos Profile.
//
// Analyze never errors: a manifold.Result with zero windows is the caller's
// responsibility to avoid (spec requires windows_analyzed > 0 for a profile
// to exist at all).
func Analyze(result *manifold.Result, cfg Config) Profile {
	n := len(result.Windows)
	signal := make([]float64, n)
	for i, w := range result.Windows {
		signal[i] = math.Log10(math.Max(w.Variance, epsilon))
	}

	threshold := hazardThreshold(signal, cfg)

	states := runStateMachine(signal, threshold, cfg.StateWindow)

	counts := map[State]int{LowFluctuation: 0, Oscillation: 0, PersistentHigh: 0}
	for _, s := range states {
		counts[s]++
	}

	var sumC, sumE float64
	for _, w := range result.Windows {
		sumC += w.Raw.Coherence
		sumE += w.Raw.Entropy
	}

	chaosScore := 0.0
	if n > 0 {
		chaosScore = float64(counts[PersistentHigh]) / float64(n)
	}

	risk := RiskLow
	if chaosScore >= cfg.HighThreshold {
		risk = RiskHigh
	}

	return Profile{
		ChaosScore:      chaosScore,
		Entropy:         sumE / float64(n),
		Coherence:       sumC / float64(n),
		HazardThreshold: threshold,
		WindowsAnalyzed: n,
		RiskClass:       risk,
		SymbolicStates:  counts,
	}
}

// hazardThreshold computes θ := quantile(transform(signal), p) using linear
// interpolation between order statistics, per spec §4.2.
func hazardThreshold(signal []float64, cfg Config) float64 {
	transformed := make([]float64, len(signal))
	switch cfg.QuantileMode {
	case QuantileMedianCentered:
		median := medianOf(signal)
		for i, v := range signal {
			transformed[i] = math.Abs(v - median)
		}
	default:
		for i, v := range signal {
			transformed[i] = math.Abs(v)
		}
	}
	return quantile(transformed, cfg.HazardPercentile)
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// quantile returns the p-th quantile of values using linear interpolation
// between the two surrounding order statistics. If all values are equal,
// returns that value.
func quantile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	if sorted[0] == sorted[len(sorted)-1] {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// runStateMachine applies the delta-sigma modulator and the 3-state
// symbolic machine over signal, returning the emitted state for each
// window.
func runStateMachine(signal []float64, threshold float64, k int) []State {
	return bitsToStates(modulate(signal, threshold), k)
}

// bitsToStates runs the 3-state symbolic machine over an already-modulated
// bitstream, per spec §4.2 step 4.
func bitsToStates(bits []int, k int) []State {
	if k <= 0 {
		k = 5
	}

	states := make([]State, len(bits))
	window := make([]int, 0, k)
	state := LowFluctuation
	for i, b := range bits {
		window = append(window, b)
		if len(window) > k {
			window = window[1:]
		}
		ones := 0
		for _, v := range window {
			ones += v
		}
		transitions := 0
		for j := 1; j < len(window); j++ {
			if window[j] != window[j-1] {
				transitions++
			}
		}

		switch {
		case ones >= k-1 && transitions <= 1:
			state = PersistentHigh
		case ones <= 1 && transitions <= 1:
			state = LowFluctuation
		default:
			state = Oscillation
		}
		states[i] = state
	}
	return states
}

// profileJSON is the wire shape for Profile: JSON is the reference encoding
// for chaos profiles per spec §6.
type profileJSON struct {
	ChaosScore      float64        `json:"chaos_score"`
	Entropy         float64        `json:"entropy"`
	Coherence       float64        `json:"coherence"`
	HazardThreshold float64        `json:"hazard_threshold"`
	WindowsAnalyzed int            `json:"windows_analyzed"`
	RiskClass       string         `json:"risk_class"`
	SymbolicStates  map[string]int `json:"symbolic_states"`
}

// MarshalJSON renders Profile per spec §6's reference encoding.
func (p Profile) MarshalJSON() ([]byte, error) {
	states := make(map[string]int, len(p.SymbolicStates))
	for s, n := range p.SymbolicStates {
		states[s.String()] = n
	}
	return json.Marshal(profileJSON{
		ChaosScore:      p.ChaosScore,
		Entropy:         p.Entropy,
		Coherence:       p.Coherence,
		HazardThreshold: p.HazardThreshold,
		WindowsAnalyzed: p.WindowsAnalyzed,
		RiskClass:       p.RiskClass.String(),
		SymbolicStates:  states,
	})
}

// UnmarshalJSON parses Profile from spec §6's reference encoding.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var wire profileJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.ChaosScore = wire.ChaosScore
	p.Entropy = wire.Entropy
	p.Coherence = wire.Coherence
	p.HazardThreshold = wire.HazardThreshold
	p.WindowsAnalyzed = wire.WindowsAnalyzed
	if wire.RiskClass == "HIGH" {
		p.RiskClass = RiskHigh
	} else {
		p.RiskClass = RiskLow
	}
	p.SymbolicStates = map[State]int{LowFluctuation: 0, Oscillation: 0, PersistentHigh: 0}
	for name, n := range wire.SymbolicStates {
		switch name {
		case "LOW_FLUCTUATION":
			p.SymbolicStates[LowFluctuation] = n
		case "OSCILLATION":
			p.SymbolicStates[Oscillation] = n
		case "PERSISTENT_HIGH":
			p.SymbolicStates[PersistentHigh] = n
		}
	}
	return nil
}

// modulate runs the one-bit delta-sigma modulator from spec §4.2 step 3.
// Ties (I == 0) emit 1.
func modulate(signal []float64, threshold float64) []int {
	bits := make([]int, len(signal))
	integrator := 0.0
	for i, v := range signal {
		integrator += v - threshold
		var bit int
		if integrator >= 0 {
			bit = 1
		} else {
			bit = 0
		}
		bits[i] = bit
		integrator -= float64(bit*2-1) * threshold
	}
	return bits
}
