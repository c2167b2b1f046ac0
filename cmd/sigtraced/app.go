package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sigtrace/sigtrace/internal/config"
	"github.com/sigtrace/sigtrace/internal/depgraph"
	"github.com/sigtrace/sigtrace/internal/ingest"
	"github.com/sigtrace/sigtrace/internal/query"
	"github.com/sigtrace/sigtrace/internal/risk"
	"github.com/sigtrace/sigtrace/internal/store"
)

// app bundles the components wired together for a single invocation of
// sigtraced: the store, C5's dependency analyzer, C6's risk composer, and
// C7's query surface all share one store handle.
type app struct {
	cfg    config.SigtraceConfig
	root   string
	store  store.Store
	graph  *depgraph.Analyzer
	risk   *risk.Composer
	query  *query.Surface
	ingest *ingest.Coordinator
}

// buildApp opens the store at cfg.Store.Path (or in-memory if unset) rooted
// at root, and wires C4 through C7 over it. A non-empty --store flag
// overrides cfg.Store.Path. The returned closer must be called on shutdown.
func buildApp(root string, cfg config.SigtraceConfig) (*app, func() error, error) {
	if storePath != "" {
		cfg.Store.Path = storePath
	}
	s, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	extractor := depgraph.NewGoExtractor(readGoMod(root))
	graph := depgraph.NewAnalyzer(s, extractor)
	composer := risk.NewComposer(s, graph,
		risk.WithWeights(cfg.RiskWeights()),
		risk.WithBands(cfg.RiskBands()),
	)
	surface := query.NewSurface(s)
	coordinator := ingest.NewCoordinator(s,
		ingest.WithManifoldConfig(cfg.Manifold()),
		ingest.WithChaosConfig(cfg.Chaos()),
		ingest.WithIngestConfig(cfg.Ingest()),
	)

	a := &app{
		cfg:    cfg,
		root:   root,
		store:  s,
		graph:  graph,
		risk:   composer,
		query:  surface,
		ingest: coordinator,
	}
	return a, s.Close, nil
}

func openStore(cfg config.SigtraceConfig) (store.Store, error) {
	if cfg.Store.Path == "" {
		return store.OpenInMemory()
	}
	return store.Open(cfg.Store())
}

// readGoMod best-effort reads root's go.mod; depgraph.NewGoExtractor falls
// back to directory-based module naming when it can't be parsed.
func readGoMod(root string) []byte {
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return nil
	}
	return data
}
