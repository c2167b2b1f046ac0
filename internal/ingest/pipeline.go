package ingest

import (
	"context"
	"errors"
	"os"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/sigerr"
	"github.com/sigtrace/sigtrace/internal/store"
)

// fileOutcome is what processFile learned about one file, folded into the
// running Summary by the caller.
type fileOutcome struct {
	path     string
	binary   bool
	bytes    int64
	err      error
	profile  *chaos.Profile
	hasChaos bool
}

// pipeline runs the per-file pipeline described in spec §4.4 step 2: text
// files go through C1 -> C2 -> C3.put_file; binary files get metadata-only
// records.
type pipeline struct {
	store       store.Store
	manifoldCfg manifold.Config
	chaosCfg    chaos.Config
	liteGlobs   []string
	now         func() int64
}

func (p *pipeline) processFile(ctx context.Context, absPath, relPath string) fileOutcome {
	body, err := os.ReadFile(absPath)
	if err != nil {
		return fileOutcome{path: relPath, err: err}
	}

	rec := store.FileRecord{
		Path:       relPath,
		Body:       body,
		SizeBytes:  len(body),
		IngestedAt: p.now(),
	}

	if classifyBinary(body) {
		rec.Binary = true
		if err := p.store.PutFile(ctx, rec, nil, nil); err != nil {
			return fileOutcome{path: relPath, err: err}
		}
		return fileOutcome{path: relPath, binary: true, bytes: int64(len(body))}
	}

	result, err := manifold.Encode(body, p.manifoldCfg)
	if err != nil {
		if errors.Is(err, sigerr.ErrInputTooSmall) {
			// Too small to encode: still indexed as a text file with no
			// signature, matching "get_signature -> NotFound" semantics.
			if putErr := p.store.PutFile(ctx, rec, nil, nil); putErr != nil {
				return fileOutcome{path: relPath, err: putErr}
			}
			return fileOutcome{path: relPath, bytes: int64(len(body))}
		}
		return fileOutcome{path: relPath, err: err}
	}

	var profile *chaos.Profile
	if !matchesAny(p.liteGlobs, relPath) {
		analyzed := chaos.Analyze(result, p.chaosCfg)
		profile = &analyzed
	}

	if err := p.store.PutFile(ctx, rec, &result.Aggregate, profile); err != nil {
		return fileOutcome{path: relPath, err: err}
	}

	outcome := fileOutcome{path: relPath, bytes: int64(len(body))}
	if profile != nil {
		outcome.profile = profile
		outcome.hasChaos = true
	}
	return outcome
}

func matchesAny(globs []string, path string) bool {
	for _, g := range globs {
		if store.MatchGlob(g, path) {
			return true
		}
	}
	return false
}
