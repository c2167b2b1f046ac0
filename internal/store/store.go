// Package store implements the structural index (C3): the persistent record
// of every ingested file's body, signature, and chaos profile, keyed by
// path, plus the secondary indexes that make signature-neighborhood and
// chaos-ranked queries efficient.
package store

import (
	"context"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
)

// FileRecord is the body and metadata stored under file:<path>.
type FileRecord struct {
	Path       string
	Body       []byte
	Binary     bool
	SizeBytes  int
	IngestedAt int64 // unix millis, caller-supplied
}

// Neighbor is one hit from Store.Neighbors: a path within tolerance of a
// query signature, plus its Euclidean distance in (C, S, E) space.
type Neighbor struct {
	Path      string
	Signature manifold.Signature
	Delta     float64
}

// RankedFile is one hit from Store.RankByChaos.
type RankedFile struct {
	Path    string
	Profile chaos.Profile
}

// Store is the C3 contract. All operations that touch the same path are
// linearized; operations on different paths may execute concurrently. See
// spec §5 for the concurrency model this interface is designed to support.
type Store interface {
	// PutFile transactionally writes body, signature index, and chaos
	// profile (or clears it if profile is nil) for path, replacing any
	// prior record. If the signature changed, the old sigidx mapping is
	// removed as part of the same transaction.
	PutFile(ctx context.Context, rec FileRecord, sig *manifold.Signature, profile *chaos.Profile) error

	// DeleteFile removes the body, signature entry, chaos profile, and
	// path-list entry for path. Deleting a path that doesn't exist is not
	// an error.
	DeleteFile(ctx context.Context, path string) error

	// GetFile returns sigerr.ErrNotFound if path isn't indexed.
	GetFile(ctx context.Context, path string) (FileRecord, error)

	// GetSignature returns sigerr.ErrNotFound if path isn't indexed or has
	// no signature (e.g. it's a binary file).
	GetSignature(ctx context.Context, path string) (manifold.Signature, error)

	// GetChaosProfile returns sigerr.ErrNotFound if path has no chaos
	// profile.
	GetChaosProfile(ctx context.Context, path string) (chaos.Profile, error)

	// ListPaths returns every indexed path matching glob. An empty glob
	// matches everything.
	ListPaths(ctx context.Context, glob string) ([]string, error)

	// Neighbors returns every indexed file within tolerance of target on
	// each of C, S, E, restricted to scopeGlob, sorted by ascending Δ then
	// by path, capped at limit (0 means unlimited).
	Neighbors(ctx context.Context, target manifold.Signature, tolerance float64, scopeGlob string, limit int) ([]Neighbor, error)

	// RankByChaos returns files matching scopeGlob ordered by chaos score,
	// capped at limit (0 means unlimited).
	RankByChaos(ctx context.Context, scopeGlob string, limit int, descending bool) ([]RankedFile, error)

	// PutFact stores an opaque fact under fact:<id>.
	PutFact(ctx context.Context, id string, text string) error

	// GetFact returns sigerr.ErrNotFound if id doesn't exist.
	GetFact(ctx context.Context, id string) (string, error)

	// DeleteFact removes fact:<id>. Not an error if absent.
	DeleteFact(ctx context.Context, id string) error

	// DeleteAll removes every indexed record, for ingest's clear-first mode.
	DeleteAll(ctx context.Context) error

	// Close releases underlying resources.
	Close() error
}
