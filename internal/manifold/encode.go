package manifold

import (
	"math"

	"github.com/sigtrace/sigtrace/internal/sigerr"
)

// Config controls window size, stride, and rounding precision. Zero-value
// Config is invalid; use DefaultConfig.
type Config struct {
	WindowBytes int
	StrideBytes int
	Precision   int
}

// DefaultConfig matches spec §6's recognized defaults.
func DefaultConfig() Config {
	return Config{WindowBytes: 64, StrideBytes: 48, Precision: 3}
}

// Window is a single window's offset, raw (unrounded) statistics, and the
// quantized signature used as its canonical key.
type Window struct {
	Offset    int
	Variance  float64 // raw population variance of the window's bytes
	Raw       Signature
	Quantized Signature
	Key       string
}

// Result is the full output of Encode: every window plus the file-level
// aggregate signature.
type Result struct {
	Windows      []Window
	Aggregate    Signature
	AggregateKey string
}

// Encode implements the byte-stream manifold encoder (C1). It rejects
// inputs shorter than one window with sigerr.ErrInputTooSmall; all other
// inputs produce at least one window.
//
// Determinism: Encode uses fixed-width float64 accumulators and
// round-half-to-even at Precision digits, so identical (data, cfg) always
// produces a bit-identical Result.
func Encode(data []byte, cfg Config) (*Result, error) {
	if cfg.WindowBytes <= 0 || cfg.StrideBytes <= 0 {
		cfg = DefaultConfig()
	}
	if len(data) < cfg.WindowBytes {
		return nil, sigerr.ErrInputTooSmall
	}

	offsets := windowOffsets(len(data), cfg.WindowBytes, cfg.StrideBytes)
	windows := make([]Window, 0, len(offsets))

	var prevCoherence float64
	var sumC, sumS, sumE float64

	for i, offset := range offsets {
		chunk := data[offset : offset+cfg.WindowBytes]
		variance, mean := varianceAndMean(chunk)
		coherence := clamp01(1 - variance/(255*255.0/12))
		entropy := shannonEntropy(chunk) / 8

		var stability float64
		if i == 0 {
			stability = 1
		} else {
			stability = 1 - math.Abs(coherence-prevCoherence)
		}
		prevCoherence = coherence
		_ = mean

		raw := Signature{Coherence: coherence, Stability: stability, Entropy: entropy}
		quantized := Signature{
			Coherence: RoundHalfEven(coherence, cfg.Precision),
			Stability: RoundHalfEven(stability, cfg.Precision),
			Entropy:   RoundHalfEven(entropy, cfg.Precision),
		}

		sumC += coherence
		sumS += stability
		sumE += entropy

		windows = append(windows, Window{
			Offset:    offset,
			Variance:  variance,
			Raw:       raw,
			Quantized: quantized,
			Key:       quantized.Canonical(cfg.Precision),
		})
	}

	n := float64(len(windows))
	aggregate := Signature{
		Coherence: RoundHalfEven(sumC/n, cfg.Precision),
		Stability: RoundHalfEven(sumS/n, cfg.Precision),
		Entropy:   RoundHalfEven(sumE/n, cfg.Precision),
	}

	return &Result{
		Windows:      windows,
		Aggregate:    aggregate,
		AggregateKey: aggregate.Canonical(cfg.Precision),
	}, nil
}

// windowOffsets returns the byte offsets of every window: full strides from
// 0 while offset+window <= size, plus one trailing window aligned to the
// end of data when the strides don't already reach it exactly. This
// guarantees every window is exactly `window` bytes (no short windows) and
// reproduces the ceil((size-window)/stride)+1 window count from spec §8's
// round-trip scenario.
func windowOffsets(size, window, stride int) []int {
	var offsets []int
	last := size - window
	for offset := 0; offset <= last; offset += stride {
		offsets = append(offsets, offset)
	}
	if last < 0 {
		return offsets
	}
	if len(offsets) == 0 || offsets[len(offsets)-1] != last {
		offsets = append(offsets, last)
	}
	return offsets
}

// varianceAndMean computes the population mean and variance of chunk's byte
// values as IEEE-754 doubles.
func varianceAndMean(chunk []byte) (variance, mean float64) {
	n := float64(len(chunk))
	var sum float64
	for _, b := range chunk {
		sum += float64(b)
	}
	mean = sum / n

	var sqDiff float64
	for _, b := range chunk {
		d := float64(b) - mean
		sqDiff += d * d
	}
	variance = sqDiff / n
	return variance, mean
}

// shannonEntropy returns the Shannon entropy, in bits, of chunk's byte-value
// histogram. 0*log2(0) is defined as 0.
func shannonEntropy(chunk []byte) float64 {
	var histogram [256]int
	for _, b := range chunk {
		histogram[b]++
	}
	n := float64(len(chunk))
	var entropy float64
	for _, count := range histogram {
		if count == 0 {
			continue
		}
		p := float64(count) / n
		entropy -= p * math.Log2(p)
	}
	return entropy
}
