package risk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/depgraph"
	"github.com/sigtrace/sigtrace/internal/store"
)

func newTestComposer(t *testing.T, churn ChurnFunc) (*Composer, store.Store) {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	extractor := depgraph.NewGoExtractor([]byte("module example.com/app\n\ngo 1.25\n"))
	g := depgraph.NewAnalyzer(s, extractor)

	var opts []ComposerOption
	if churn != nil {
		opts = append(opts, WithChurnFunc(churn))
	}
	return NewComposer(s, g, opts...), s
}

func TestBandOf_Boundaries(t *testing.T) {
	assert.Equal(t, BandCritical, BandOf(0.40))
	assert.Equal(t, BandHigh, BandOf(0.30))
	assert.Equal(t, BandModerate, BandOf(0.20))
	assert.Equal(t, BandLow, BandOf(0.19999))
	assert.Equal(t, BandLow, BandOf(0))
}

func TestCombinedRisk_NoProfileContributesZeroChaosTerm(t *testing.T) {
	ctx := context.Background()
	c, s := newTestComposer(t, nil)
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.bin", Binary: true}, nil, nil))

	score, err := c.CombinedRisk(ctx, "a.bin")
	require.NoError(t, err)
	assert.Zero(t, score.ChaosScore)
	assert.Zero(t, score.Combined)
	assert.Equal(t, BandLow, score.Band)
}

func TestCombinedRisk_WeightsChaosBlastAndChurn(t *testing.T) {
	ctx := context.Background()
	churn := func(ctx context.Context, path string) (float64, error) { return 0.5, nil }
	c, s := newTestComposer(t, churn)

	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "hot.go"}, nil, &chaos.Profile{ChaosScore: 1.0}))

	score, err := c.CombinedRisk(ctx, "hot.go")
	require.NoError(t, err)
	// chaos=1.0, blast=0 (no importers indexed), churn=0.5:
	// 0.4*1 + 0.3*0 + 0.3*0.5 = 0.55
	assert.InDelta(t, 0.55, score.Combined, 1e-9)
	assert.Equal(t, BandCritical, score.Band)
}

func TestCombinedRisk_BlastRadiusNormalizedAndCapped(t *testing.T) {
	ctx := context.Background()
	c, s := newTestComposer(t, nil)

	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "core/core.go"}, nil, nil))
	for i := 0; i < 60; i++ {
		dir := "dep" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		path := dir + "/dep.go"
		body := "package dep\nimport \"example.com/app/core\"\n"
		require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: path, Body: []byte(body)}, nil, nil))
	}

	score, err := c.CombinedRisk(ctx, "core/core.go")
	require.NoError(t, err)
	// 60 importers normalize to min(60/50, 1) = 1, contributing 0.3*1.
	assert.InDelta(t, 0.3, score.Combined, 1e-9)
}

func TestScanCritical_FiltersSortsAndLimits(t *testing.T) {
	ctx := context.Background()
	c, s := newTestComposer(t, nil)

	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "low.go"}, nil, &chaos.Profile{ChaosScore: 0.1}))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "mid.go"}, nil, &chaos.Profile{ChaosScore: 0.6}))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "high.go"}, nil, &chaos.Profile{ChaosScore: 0.9}))

	results, err := c.ScanCritical(ctx, "", 0.2, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "high.go", results[0].Path)
	assert.Equal(t, "mid.go", results[1].Path)
}

func TestScanCritical_TiesBrokenByPath(t *testing.T) {
	ctx := context.Background()
	c, s := newTestComposer(t, nil)

	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "b.go"}, nil, &chaos.Profile{ChaosScore: 0.5}))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.go"}, nil, &chaos.Profile{ChaosScore: 0.5}))

	results, err := c.ScanCritical(ctx, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].Path)
	assert.Equal(t, "b.go", results[1].Path)
}

func TestScanCritical_RespectsLimit(t *testing.T) {
	ctx := context.Background()
	c, s := newTestComposer(t, nil)

	for _, p := range []string{"a.go", "b.go", "c.go"} {
		require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: p}, nil, &chaos.Profile{ChaosScore: 0.5}))
	}

	results, err := c.ScanCritical(ctx, "", 0, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
