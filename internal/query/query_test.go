package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/store"
)

func newTestSurface(t *testing.T) (*Surface, store.Store) {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewSurface(s), s
}

func TestSearchSubstring_LiteralCaseInsensitiveByDefault(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	body := "line one\nfunc Hello() {}\nline three\n"
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.go", Body: []byte(body)}, nil, nil))

	result, err := surface.SearchSubstring(ctx, "hello", "", false, 10)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 2, result.Hits[0].Line)
	assert.Equal(t, 1, result.TotalMatches)
}

func TestSearchSubstring_CaseSensitiveExcludesMismatch(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.go", Body: []byte("Hello\n")}, nil, nil))

	result, err := surface.SearchSubstring(ctx, "hello", "", true, 10)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
}

func TestSearchSubstring_RegexDetectedByMetacharacters(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	body := "func Foo() {}\nfunc Bar() {}\n"
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.go", Body: []byte(body)}, nil, nil))

	result, err := surface.SearchSubstring(ctx, `func (Foo|Bar)\(\)`, "", false, 10)
	require.NoError(t, err)
	assert.Len(t, result.Hits, 2)
}

func TestSearchSubstring_ContextIncludesSurroundingLines(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	body := "l1\nl2\nl3\nMATCH\nl5\nl6\nl7\n"
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.txt", Body: []byte(body)}, nil, nil))

	result, err := surface.SearchSubstring(ctx, "MATCH", "", false, 10)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, []string{"l2", "l3", "MATCH", "l5", "l6"}, result.Hits[0].Context)
}

func TestSearchSubstring_TotalMatchesCountsBeyondLimit(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	body := "match\nmatch\nmatch\n"
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.txt", Body: []byte(body)}, nil, nil))

	result, err := surface.SearchSubstring(ctx, "match", "", false, 1)
	require.NoError(t, err)
	assert.Len(t, result.Hits, 1)
	assert.Equal(t, 3, result.TotalMatches)
}

func TestVerifySnippet_ExactSnippetOfIndexedFileVerifies(t *testing.T) {
	ctx := context.Background()
	_, s := newTestSurface(t)

	// A pattern repeating every window_bytes (64) gives every window the
	// same (C,S,E) triple, so it exactly equals the file aggregate too.
	body := make([]byte, 512)
	for i := range body {
		body[i] = byte(i % 64)
	}

	mCfg := manifold.DefaultConfig()
	cCfg := chaos.DefaultConfig()
	result, err := manifold.Encode(body, mCfg)
	require.NoError(t, err)
	profile := chaos.Analyze(result, cCfg)
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "big.bin", Body: body}, &result.Aggregate, &profile))

	verify, err := VerifySnippet(ctx, s, body, 0.0, "", mCfg, cCfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, verify.RawMatchRatio, "the snippet is byte-identical to the indexed file, so every window matches")
	assert.Equal(t, 1.0, verify.SafeCoverage, "uniform variance across windows means every matched window is also gated")
	assert.True(t, verify.Verified, "coverage_threshold of 0 always verifies")
}

// TestVerifySnippet_ScenarioSix is spec §8's literal end-to-end scenario 6:
// verify_snippet(body, 0.5, "*") on the exact body of an indexed file must
// return verified with safe_coverage >= 0.5.
func TestVerifySnippet_ScenarioSix(t *testing.T) {
	ctx := context.Background()
	_, s := newTestSurface(t)

	body := make([]byte, 512)
	for i := range body {
		body[i] = byte(i % 64)
	}

	mCfg := manifold.DefaultConfig()
	cCfg := chaos.DefaultConfig()
	result, err := manifold.Encode(body, mCfg)
	require.NoError(t, err)
	profile := chaos.Analyze(result, cCfg)
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "big.bin", Body: body}, &result.Aggregate, &profile))

	verify, err := VerifySnippet(ctx, s, body, 0.5, "*", mCfg, cCfg)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, verify.SafeCoverage, 0.5)
	assert.True(t, verify.Verified)
}

// TestVerifySnippet_VerifySubsetInvariant is spec §8's "Verify subset"
// invariant: verify_snippet(body(p), 1.0, "*") against a corpus containing
// p must succeed with safe_coverage exactly 1.0.
func TestVerifySnippet_VerifySubsetInvariant(t *testing.T) {
	ctx := context.Background()
	_, s := newTestSurface(t)

	body := make([]byte, 512)
	for i := range body {
		body[i] = byte(i % 64)
	}

	mCfg := manifold.DefaultConfig()
	cCfg := chaos.DefaultConfig()
	result, err := manifold.Encode(body, mCfg)
	require.NoError(t, err)
	profile := chaos.Analyze(result, cCfg)
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "big.bin", Body: body}, &result.Aggregate, &profile))

	verify, err := VerifySnippet(ctx, s, body, 1.0, "*", mCfg, cCfg)
	require.NoError(t, err)
	assert.Equal(t, 1.0, verify.SafeCoverage)
	assert.True(t, verify.Verified)
}

func TestVerifySnippet_UnindexedSnippetHasZeroMatchRatio(t *testing.T) {
	ctx := context.Background()
	_, s := newTestSurface(t)

	body := make([]byte, 512)
	for i := range body {
		body[i] = byte((i * 37) % 256)
	}

	mCfg := manifold.DefaultConfig()
	cCfg := chaos.DefaultConfig()
	verify, err := VerifySnippet(ctx, s, body, 0.5, "", mCfg, cCfg)
	require.NoError(t, err)
	assert.Zero(t, verify.RawMatchRatio)
	assert.False(t, verify.Verified)
}

func TestCluster_KEqualsOneMatchesAllPoints(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	sig := manifold.Signature{Coherence: 0.5, Stability: 0.5, Entropy: 0.5}
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "a.go"}, &sig, nil))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "b.go"}, &sig, nil))

	clusters, err := surface.Cluster(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, clusters, 1)
	assert.ElementsMatch(t, []string{"a.go", "b.go"}, clusters[0].Members)
}

func TestCluster_KClampedToPointCount(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	sig := manifold.Signature{Coherence: 0.1, Stability: 0.1, Entropy: 0.1}
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "only.go"}, &sig, nil))

	clusters, err := surface.Cluster(ctx, "", 5)
	require.NoError(t, err)
	assert.Len(t, clusters, 1)
}

func TestCluster_SeparatesDistantGroups(t *testing.T) {
	ctx := context.Background()
	surface, s := newTestSurface(t)
	low := manifold.Signature{Coherence: 0.0, Stability: 0.0, Entropy: 0.0}
	high := manifold.Signature{Coherence: 1.0, Stability: 1.0, Entropy: 1.0}
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "low1.go"}, &low, nil))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "low2.go"}, &low, nil))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "high1.go"}, &high, nil))
	require.NoError(t, s.PutFile(ctx, store.FileRecord{Path: "high2.go"}, &high, nil))

	clusters, err := surface.Cluster(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, clusters, 2)
	for _, c := range clusters {
		assert.Len(t, c.Members, 2)
	}
}
