// Package manifold implements the byte-stream manifold encoder (C1): it
// turns a raw byte sequence into a sequence of window signatures plus a
// file-level aggregate signature, using windowed variance, Shannon entropy,
// and stability between adjacent windows.
//
// The encoder makes no claim to understand source-language semantics — it
// is a byte-level statistic, not a parser.
package manifold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/sigtrace/sigtrace/internal/sigerr"
)

// Signature is the quantized (coherence, stability, entropy) triple shared
// by windows and file aggregates.
type Signature struct {
	Coherence float64
	Stability float64
	Entropy   float64
}

// Canonical renders the signature as "c{C}_s{S}_e{E}" at the given decimal
// precision, e.g. "c0.812_s1.000_e0.403". Matches spec §6's
// ^c[01]\.\d+_s[01]\.\d+_e[01]\.\d+$ grammar.
func (s Signature) Canonical(precision int) string {
	return fmt.Sprintf("c%s_s%s_e%s",
		formatFixed(s.Coherence, precision),
		formatFixed(s.Stability, precision),
		formatFixed(s.Entropy, precision))
}

// formatFixed renders x with exactly precision fractional digits, always
// with a leading zero (never ".3"), after banker's rounding.
func formatFixed(x float64, precision int) string {
	rounded := RoundHalfEven(x, precision)
	return fmt.Sprintf("%.*f", precision, rounded)
}

// RoundHalfEven rounds x to the given number of decimal places using
// round-half-to-even (banker's rounding), the mode spec §4.1 requires for
// cross-platform determinism.
func RoundHalfEven(x float64, precision int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	scale := math.Pow(10, float64(precision))
	scaled := x * scale
	floor := math.Floor(scaled)
	diff := scaled - floor
	var rounded float64
	switch {
	case diff < 0.5:
		rounded = floor
	case diff > 0.5:
		rounded = floor + 1
	default:
		// Exactly halfway: round to even.
		if math.Mod(floor, 2) == 0 {
			rounded = floor
		} else {
			rounded = floor + 1
		}
	}
	return rounded / scale
}

var canonicalPattern = regexp.MustCompile(`^c([01]\.\d+)_s([01]\.\d+)_e([01]\.\d+)$`)

// ParseSignature parses a canonical "c{C}_s{S}_e{E}" string back into its
// numeric components. Returns sigerr.ErrInvalidSignatureSyntax if s doesn't
// match the grammar in spec §6.
func ParseSignature(s string) (Signature, error) {
	groups := canonicalPattern.FindStringSubmatch(s)
	if groups == nil {
		return Signature{}, sigerr.ErrInvalidSignatureSyntax
	}
	c, err1 := strconv.ParseFloat(groups[1], 64)
	st, err2 := strconv.ParseFloat(groups[2], 64)
	e, err3 := strconv.ParseFloat(groups[3], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Signature{}, sigerr.ErrInvalidSignatureSyntax
	}
	return Signature{Coherence: c, Stability: st, Entropy: e}, nil
}

// clamp01 restricts x to [0, 1].
func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
