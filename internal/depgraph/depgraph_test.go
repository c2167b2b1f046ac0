package depgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigtrace/sigtrace/internal/store"
)

const testGoMod = "module example.com/app\n\ngo 1.25\n"

func newTestAnalyzer(t *testing.T) (*Analyzer, store.Store) {
	t.Helper()
	s, err := store.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	extractor := NewGoExtractor([]byte(testGoMod))
	return NewAnalyzer(s, extractor), s
}

func putGoFile(t *testing.T, ctx context.Context, s store.Store, path, body string) {
	t.Helper()
	rec := store.FileRecord{Path: path, Body: []byte(body), SizeBytes: len(body)}
	require.NoError(t, s.PutFile(ctx, rec, nil, nil))
}

func TestGoExtractor_ExtractImports(t *testing.T) {
	ex := NewGoExtractor([]byte(testGoMod))
	body := []byte("package a\n\nimport (\n\t\"fmt\"\n\t\"example.com/app/b\"\n)\n\nfunc F() { fmt.Println() }\n")
	imports, err := ex.ExtractImports(body)
	require.NoError(t, err)
	assert.True(t, imports["fmt"])
	assert.True(t, imports["example.com/app/b"])
}

func TestGoExtractor_PathToModule(t *testing.T) {
	ex := NewGoExtractor([]byte(testGoMod))
	mod, ok := ex.PathToModule("b/file.go")
	require.True(t, ok)
	assert.Equal(t, "example.com/app/b", mod)

	_, ok = ex.PathToModule("README.md")
	assert.False(t, ok)
}

func TestAnalyzer_ImportsResolvesDirectEdge(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAnalyzer(t)
	putGoFile(t, ctx, s, "a/a.go", "package a\nimport \"example.com/app/b\"\n")
	putGoFile(t, ctx, s, "b/b.go", "package b\n")

	imports, err := a.Imports(ctx, "a/a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/b.go"}, imports)
}

func TestAnalyzer_BlastRadiusBFSOverReverseEdges(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAnalyzer(t)
	// a -> b -> c: changing c affects b directly and a indirectly.
	putGoFile(t, ctx, s, "a/a.go", "package a\nimport \"example.com/app/b\"\n")
	putGoFile(t, ctx, s, "b/b.go", "package b\nimport \"example.com/app/c\"\n")
	putGoFile(t, ctx, s, "c/c.go", "package c\n")

	br, err := a.BlastRadius(ctx, "c/c.go", 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/a.go", "b/b.go"}, br.ImportedBy)
	assert.Equal(t, 2, br.Size)
	assert.Equal(t, 2, br.Depth)
}

func TestAnalyzer_BlastRadiusRespectsDepthCap(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAnalyzer(t)
	putGoFile(t, ctx, s, "a/a.go", "package a\nimport \"example.com/app/b\"\n")
	putGoFile(t, ctx, s, "b/b.go", "package b\nimport \"example.com/app/c\"\n")
	putGoFile(t, ctx, s, "c/c.go", "package c\n")

	br, err := a.BlastRadius(ctx, "c/c.go", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"b/b.go"}, br.ImportedBy)
	assert.Equal(t, 1, br.Size)
}

func TestAnalyzer_IsCoreThreshold(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAnalyzer(t)
	putGoFile(t, ctx, s, "core/core.go", "package core\n")
	for i := 0; i < 10; i++ {
		path := string(rune('a'+i)) + "/x.go"
		putGoFile(t, ctx, s, path, "package x\nimport \"example.com/app/core\"\n")
	}

	core, err := a.IsCore(ctx, "core/core.go", 0)
	require.NoError(t, err)
	assert.True(t, core, "10 importers meets the default threshold of 10")

	core, err = a.IsCore(ctx, "core/core.go", 20)
	require.NoError(t, err)
	assert.False(t, core, "raising the override threshold above the importer count flips is_core to false")
}

func TestAnalyzer_InvalidateTriggersRebuildOnNextQuery(t *testing.T) {
	ctx := context.Background()
	a, s := newTestAnalyzer(t)
	putGoFile(t, ctx, s, "a/a.go", "package a\n")

	_, err := a.Imports(ctx, "a/a.go")
	require.NoError(t, err)
	gen1 := a.graph.Generation()

	putGoFile(t, ctx, s, "a/a.go", "package a\nimport \"example.com/app/b\"\n")
	putGoFile(t, ctx, s, "b/b.go", "package b\n")
	a.Invalidate()

	imports, err := a.Imports(ctx, "a/a.go")
	require.NoError(t, err)
	assert.Equal(t, []string{"b/b.go"}, imports)
	assert.Greater(t, a.graph.Generation(), gen1)
}

func TestBlastRadiusCache_GetOrComputeDeduplicatesAndCaches(t *testing.T) {
	cache := NewBlastRadiusCache()
	calls := 0
	compute := func(ctx context.Context, key string) (*BlastRadius, error) {
		calls++
		return &BlastRadius{Path: key, Size: 3}, nil
	}

	r1, err := cache.GetOrCompute(context.Background(), "x", 1, compute)
	require.NoError(t, err)
	r2, err := cache.GetOrCompute(context.Background(), "x", 1, compute)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call hits the cache instead of recomputing")
	assert.Same(t, r1, r2)
}

func TestBlastRadiusCache_GenerationChangeBypassesStaleEntry(t *testing.T) {
	cache := NewBlastRadiusCache()
	compute := func(ctx context.Context, key string) (*BlastRadius, error) {
		return &BlastRadius{Path: key, Size: 1}, nil
	}
	_, err := cache.GetOrCompute(context.Background(), "x", 1, compute)
	require.NoError(t, err)

	_, ok := cache.Get("x", 2)
	assert.False(t, ok, "a different graph generation is a cache miss even for the same key")
}
