package ingest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/store"
)

// CoordinatorOption is a functional option for Coordinator.
type CoordinatorOption func(*Coordinator)

// WithManifoldConfig overrides the C1 configuration used by the pipeline.
func WithManifoldConfig(cfg manifold.Config) CoordinatorOption {
	return func(c *Coordinator) { c.manifoldCfg = cfg }
}

// WithChaosConfig overrides the C2 configuration used by the pipeline.
func WithChaosConfig(cfg chaos.Config) CoordinatorOption {
	return func(c *Coordinator) { c.chaosCfg = cfg }
}

// WithIngestConfig overrides the walker/watcher/batching configuration.
func WithIngestConfig(cfg Config) CoordinatorOption {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithClock overrides the coordinator's timestamp source, for deterministic
// tests.
func WithClock(now func() int64) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator is the ingestion coordinator (C4): it owns the walker, the
// per-file pipeline, and the filesystem watcher, and reports the ingest
// summary defined in spec §4.4.
//
// Thread Safety: Coordinator is safe for concurrent use; Ingest may run
// concurrently with a running Watch, per spec §5.
type Coordinator struct {
	store       store.Store
	cfg         Config
	manifoldCfg manifold.Config
	chaosCfg    chaos.Config
	now         func() int64
}

// NewCoordinator builds a Coordinator over s with default configuration,
// customizable via options.
func NewCoordinator(s store.Store, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		store:       s,
		cfg:         DefaultConfig(),
		manifoldCfg: manifold.DefaultConfig(),
		chaosCfg:    chaos.DefaultConfig(),
		now:         func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ingest walks root and runs the per-file pipeline over every discovered
// file, in batches of cfg.BatchSize with up to cfg.WorkerCap files
// in flight concurrently within each batch. If clearFirst is set, every
// prior record is deleted before the walk begins (spec §4.4 step 4).
//
// On context cancellation, Ingest lets in-flight files finish, then returns
// a partial Summary with Cancelled set; no already-committed file is rolled
// back.
func (c *Coordinator) Ingest(ctx context.Context, root string, clearFirst bool) (Summary, error) {
	startTime := time.Now()

	if clearFirst {
		if err := c.store.DeleteAll(ctx); err != nil {
			return Summary{}, err
		}
	}

	files, walkErrs := walk(ctx, root, c.cfg)

	p := &pipeline{
		store:       c.store,
		manifoldCfg: c.manifoldCfg,
		chaosCfg:    c.chaosCfg,
		liteGlobs:   c.cfg.LiteGlobs,
		now:         c.now,
	}

	var summary Summary
	summary.Errors += len(walkErrs)
	summary.Skipped += len(walkErrs)

	var mu sync.Mutex
	var chaosSum float64
	cancelled := false

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for offset := 0; offset < len(files); offset += batchSize {
		end := offset + batchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[offset:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(c.cfg.WorkerCap)

		for _, f := range batch {
			f := f
			g.Go(func() error {
				outcome := p.processFile(gctx, f.AbsPath, f.RelPath)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case outcome.err != nil:
					summary.Errors++
				case outcome.binary:
					summary.BinaryFiles++
					summary.TotalBytes += outcome.bytes
				default:
					summary.TextFiles++
					summary.TotalBytes += outcome.bytes
					if outcome.hasChaos {
						summary.Signatures++
						chaosSum += outcome.profile.ChaosScore
						if outcome.profile.RiskClass == chaos.RiskHigh {
							summary.HighRiskCount++
						}
					}
				}
				return nil
			})
		}

		_ = g.Wait()
		if ctx.Err() != nil {
			cancelled = true
			break
		}
	}

	if summary.Signatures > 0 {
		summary.AvgChaos = chaosSum / float64(summary.Signatures)
	}
	summary.ElapsedMs = time.Since(startTime).Milliseconds()
	summary.Cancelled = cancelled

	return summary, nil
}
