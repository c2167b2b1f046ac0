package depgraph

import (
	"context"
	"strconv"
	"sync"

	"github.com/sigtrace/sigtrace/internal/store"
)

// Analyzer is C5: it owns the current Graph snapshot and rebuilds it lazily
// on first query after a change, per spec §4.5. It is safe for concurrent
// use: rebuilds take an exclusive lock while readers hold a shared lock,
// mirroring the teacher graph package's build/read separation.
type Analyzer struct {
	store     store.Store
	extractor ImportExtractor

	mu         sync.RWMutex
	graph      *Graph
	generation uint64
	dirty      bool

	cache *BlastRadiusCache
}

// NewAnalyzer builds an Analyzer over s using extractor. The graph starts
// empty and dirty; it is built on the first query.
func NewAnalyzer(s store.Store, extractor ImportExtractor, opts ...BRCacheOption) *Analyzer {
	return &Analyzer{
		store:     s,
		extractor: extractor,
		graph:     newGraph(0),
		dirty:     true,
		cache:     NewBlastRadiusCache(opts...),
	}
}

// Invalidate marks the graph stale, to be called after any put_file or
// delete_file that changed a file's import set. The actual rebuild is
// deferred to the next query (spec §4.5: "rebuilt lazily... may cache and
// invalidate rather than rebuild eagerly").
func (a *Analyzer) Invalidate() {
	a.mu.Lock()
	a.dirty = true
	a.mu.Unlock()
}

// ensure returns the current graph, rebuilding first if dirty.
func (a *Analyzer) ensure(ctx context.Context) (*Graph, error) {
	a.mu.RLock()
	if !a.dirty {
		g := a.graph
		a.mu.RUnlock()
		return g, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.dirty {
		return a.graph, nil
	}

	g, err := a.build(ctx)
	if err != nil {
		return nil, err
	}
	a.generation++
	g.generation = a.generation
	a.graph = g
	a.dirty = false
	a.cache.InvalidateByGenerationBelow(a.generation)
	return g, nil
}

// build walks every indexed path, extracts its module name and import set,
// and assembles the directed graph (spec §4.5's contract paragraph).
func (a *Analyzer) build(ctx context.Context) (*Graph, error) {
	paths, err := a.store.ListPaths(ctx, "")
	if err != nil {
		return nil, err
	}

	moduleOf := make(map[string]string, len(paths))
	pathOfModule := make(map[string]string, len(paths))
	for _, p := range paths {
		mod, ok := a.extractor.PathToModule(p)
		if !ok {
			continue
		}
		moduleOf[p] = mod
		pathOfModule[mod] = p
	}

	next := newGraph(0)
	for _, p := range paths {
		next.addNode(p)
	}

	for _, p := range paths {
		rec, err := a.store.GetFile(ctx, p)
		if err != nil || rec.Binary {
			continue
		}
		imports, err := a.extractor.ExtractImports(rec.Body)
		if err != nil {
			continue
		}
		for mod := range imports {
			if target, ok := pathOfModule[mod]; ok && target != p {
				next.addEdge(p, target)
			}
		}
	}

	return next, nil
}

// Imports returns path's outbound neighbors (spec §4.5's imports(path)).
func (a *Analyzer) Imports(ctx context.Context, path string) ([]string, error) {
	g, err := a.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return g.Imports(path), nil
}

// BlastRadius computes blast_radius(path, depthCap), using the cache when
// the graph generation is unchanged.
func (a *Analyzer) BlastRadius(ctx context.Context, path string, depthCap int) (BlastRadius, error) {
	g, err := a.ensure(ctx)
	if err != nil {
		return BlastRadius{}, err
	}
	result, err := a.cache.GetOrCompute(ctx, cacheKey(path, depthCap), g.Generation(), func(ctx context.Context, _ string) (*BlastRadius, error) {
		br := g.BlastRadiusOf(path, depthCap)
		return &br, nil
	})
	if err != nil {
		return BlastRadius{}, err
	}
	return *result, nil
}

// IsCore reports whether path's blast radius meets threshold (0 uses the
// package default).
func (a *Analyzer) IsCore(ctx context.Context, path string, threshold int) (bool, error) {
	br, err := a.BlastRadius(ctx, path, 10)
	if err != nil {
		return false, err
	}
	return IsCore(br, threshold), nil
}

func cacheKey(path string, depthCap int) string {
	return path + "\x00" + strconv.Itoa(depthCap)
}
