package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/sigerr"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutFile_RoundTripByPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := manifold.Signature{Coherence: 0.5, Stability: 0.7, Entropy: 0.2}
	profile := chaos.Profile{ChaosScore: 0.1, RiskClass: chaos.RiskLow, SymbolicStates: map[chaos.State]int{}}

	err := s.PutFile(ctx, FileRecord{Path: "a.go", Body: []byte("package a")}, &sig, &profile)
	require.NoError(t, err)

	got, err := s.GetFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, []byte("package a"), got.Body)

	gotSig, err := s.GetSignature(ctx, "a.go")
	require.NoError(t, err)
	assert.InDelta(t, sig.Coherence, gotSig.Coherence, 1e-9)
	assert.InDelta(t, sig.Stability, gotSig.Stability, 1e-9)
	assert.InDelta(t, sig.Entropy, gotSig.Entropy, 1e-9)

	gotProfile, err := s.GetChaosProfile(ctx, "a.go")
	require.NoError(t, err)
	assert.InDelta(t, profile.ChaosScore, gotProfile.ChaosScore, 1e-9)
}

func TestGetFile_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetFile(context.Background(), "missing.go")
	assert.True(t, sigerr.IsNotFound(err))
}

func TestDeleteFile_RemovesAllFamilies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := manifold.Signature{Coherence: 0.1, Stability: 0.1, Entropy: 0.1}
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "b.go", Body: []byte("x")}, &sig, nil))

	require.NoError(t, s.DeleteFile(ctx, "b.go"))

	_, err := s.GetFile(ctx, "b.go")
	assert.True(t, sigerr.IsNotFound(err))
	_, err = s.GetSignature(ctx, "b.go")
	assert.True(t, sigerr.IsNotFound(err))

	paths, err := s.ListPaths(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, paths, "b.go")
}

func TestPutFile_ChangedSignatureRemovesOldSigIdxMapping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig1 := manifold.Signature{Coherence: 0.100, Stability: 0.100, Entropy: 0.100}
	sig2 := manifold.Signature{Coherence: 0.900, Stability: 0.900, Entropy: 0.900}

	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "c.go", Body: []byte("v1")}, &sig1, nil))
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "c.go", Body: []byte("v2")}, &sig2, nil))

	hits, err := s.Neighbors(ctx, sig1, 0.01, "", 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "stale sigidx entry for the old signature must be gone")

	hits, err = s.Neighbors(ctx, sig2, 0.01, "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "c.go", hits[0].Path)
}

func TestListPaths_GlobFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"src/a.go", "src/b.py", "docs/readme.md"} {
		require.NoError(t, s.PutFile(ctx, FileRecord{Path: p, Body: []byte("x")}, nil, nil))
	}

	goFiles, err := s.ListPaths(ctx, "src/*.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/a.go"}, goFiles)

	all, err := s.ListPaths(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestNeighbors_RanksByDeltaThenPath(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	target := manifold.Signature{Coherence: 0.500, Stability: 0.500, Entropy: 0.500}
	near := manifold.Signature{Coherence: 0.510, Stability: 0.500, Entropy: 0.500}
	far := manifold.Signature{Coherence: 0.540, Stability: 0.500, Entropy: 0.500}

	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "far.go", Body: []byte("x")}, &far, nil))
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "near.go", Body: []byte("x")}, &near, nil))

	hits, err := s.Neighbors(ctx, target, 0.05, "", 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "near.go", hits[0].Path)
	assert.Equal(t, "far.go", hits[1].Path)
	assert.Less(t, hits[0].Delta, hits[1].Delta)
}

func TestRankByChaos_DescendingWithPathTiebreak(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mk := func(score float64) *chaos.Profile {
		return &chaos.Profile{ChaosScore: score, SymbolicStates: map[chaos.State]int{}}
	}
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "b.go", Body: []byte("x")}, nil, mk(0.5)))
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "a.go", Body: []byte("x")}, nil, mk(0.5)))
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "c.go", Body: []byte("x")}, nil, mk(0.9)))

	ranked, err := s.RankByChaos(ctx, "", 0, true)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "c.go", ranked[0].Path)
	assert.Equal(t, "a.go", ranked[1].Path, "equal scores break ties by path")
	assert.Equal(t, "b.go", ranked[2].Path)
}

func TestFact_PutGetDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutFact(ctx, "f1", "hello"))
	text, err := s.GetFact(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.NoError(t, s.DeleteFact(ctx, "f1"))
	_, err = s.GetFact(ctx, "f1")
	assert.True(t, sigerr.IsNotFound(err))
}

func TestDeleteAll_ClearsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sig := manifold.Signature{Coherence: 0.2, Stability: 0.2, Entropy: 0.2}
	require.NoError(t, s.PutFile(ctx, FileRecord{Path: "z.go", Body: []byte("x")}, &sig, nil))

	require.NoError(t, s.DeleteAll(ctx))

	paths, err := s.ListPaths(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, paths)
}
