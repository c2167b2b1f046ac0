package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"

	"github.com/sigtrace/sigtrace/internal/chaos"
	"github.com/sigtrace/sigtrace/internal/manifold"
	"github.com/sigtrace/sigtrace/internal/sigerr"
)

// Config holds configuration for the BadgerDB-backed Store.
type Config struct {
	// Path is the directory for BadgerDB files. Ignored when InMemory.
	Path string

	// InMemory enables in-memory mode (no disk persistence). Useful for
	// tests.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal log output. If nil, BadgerDB's
	// logging is disabled.
	Logger *slog.Logger

	// OpTimeout is the default per-operation timeout applied when the
	// caller's context carries no deadline. Spec §5 default is 5s.
	OpTimeout time.Duration
}

// DefaultConfig returns production defaults: durable writes, 5s default
// operation timeout.
func DefaultConfig() Config {
	return Config{SyncWrites: true, OpTimeout: 5 * time.Second}
}

// InMemoryConfig returns configuration for ephemeral, in-memory test stores.
func InMemoryConfig() Config {
	return Config{InMemory: true, SyncWrites: false, OpTimeout: 5 * time.Second}
}

type badgerLogger struct{ logger *slog.Logger }

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Error(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warn(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Info(fmt.Sprintf(format, args...)) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debug(fmt.Sprintf(format, args...)) }

// BadgerStore is the Store implementation backed by an embedded BadgerDB
// instance, adapted from the trace service's badger storage factory.
type BadgerStore struct {
	db        *badger.DB
	enc       *zstd.Encoder
	dec       *zstd.Decoder
	opTimeout time.Duration
}

// Open opens (or creates) a BadgerDB-backed Store at the configured path,
// or in memory if cfg.InMemory is set.
func Open(cfg Config) (*BadgerStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("path is required for persistent store")
		}
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &BadgerStore{db: db, enc: enc, dec: dec, opTimeout: timeout}, nil
}

// OpenInMemory is a convenience constructor for ephemeral test stores.
func OpenInMemory() (*BadgerStore, error) {
	return Open(InMemoryConfig())
}

// Close releases the underlying database and codecs.
func (s *BadgerStore) Close() error {
	s.dec.Close()
	return s.db.Close()
}

func (s *BadgerStore) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// fileEnvelope is the JSON payload compressed under file:<path>, carrying
// both the body and its metadata in one record.
type fileEnvelope struct {
	Binary     bool   `json:"binary"`
	SizeBytes  int    `json:"size_bytes"`
	IngestedAt int64  `json:"ingested_at"`
	Body       []byte `json:"body"`
}

const retryAttempts = 3

var retryBackoff = []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 2500 * time.Millisecond}

// withRetry retries fn on badger.ErrConflict using spec §4.3's backoff
// schedule (3 attempts, 100/500/2500ms), surfacing sigerr.ErrStoreConflict
// if every attempt conflicts.
func withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < retryAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, badger.ErrConflict) {
			return lastErr
		}
		if attempt < len(retryBackoff) {
			select {
			case <-time.After(retryBackoff[attempt]):
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", sigerr.ErrCancelled, ctx.Err())
			}
		}
	}
	return fmt.Errorf("%w: %v", sigerr.ErrStoreConflict, lastErr)
}

// PutFile implements Store.PutFile as a single pipelined badger transaction:
// body, signature index, chaos profile, and path-list membership are all
// updated atomically, and any stale sigidx mapping from a changed signature
// is removed in the same transaction.
func (s *BadgerStore) PutFile(ctx context.Context, rec FileRecord, sig *manifold.Signature, profile *chaos.Profile) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	envelope := fileEnvelope{Binary: rec.Binary, SizeBytes: rec.SizeBytes, IngestedAt: rec.IngestedAt, Body: rec.Body}
	rawJSON, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("encode file envelope: %w", err)
	}
	compressed := s.enc.EncodeAll(rawJSON, nil)

	var sigCanonical string
	if sig != nil {
		sigCanonical = sig.Canonical(defaultSignaturePrecision)
	}

	var profileJSON []byte
	if profile != nil {
		profileJSON, err = json.Marshal(*profile)
		if err != nil {
			return fmt.Errorf("encode chaos profile: %w", err)
		}
	}

	return withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			var oldSigCanonical string
			if item, err := txn.Get([]byte(sigKey(rec.Path))); err == nil {
				_ = item.Value(func(val []byte) error {
					oldSigCanonical = string(val)
					return nil
				})
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			if err := txn.Set([]byte(fileKey(rec.Path)), compressed); err != nil {
				return err
			}
			if err := txn.Set([]byte(fileListKey(rec.Path)), nil); err != nil {
				return err
			}

			if oldSigCanonical != "" && oldSigCanonical != sigCanonical {
				if err := txn.Delete([]byte(sigIdxKey(oldSigCanonical) + ":" + rec.Path)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}

			if sigCanonical != "" {
				if err := txn.Set([]byte(sigKey(rec.Path)), []byte(sigCanonical)); err != nil {
					return err
				}
				if err := txn.Set([]byte(sigIdxKey(sigCanonical)+":"+rec.Path), nil); err != nil {
					return err
				}
			} else {
				if err := txn.Delete([]byte(sigKey(rec.Path))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}

			if profileJSON != nil {
				if err := txn.Set([]byte(chaosKey(rec.Path)), profileJSON); err != nil {
					return err
				}
			} else {
				if err := txn.Delete([]byte(chaosKey(rec.Path))); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}

			return nil
		})
	})
}

// defaultSignaturePrecision matches spec §6's signature_precision default.
// PutFile receives already-quantized signatures; this only controls how
// many fractional digits are rendered into the canonical key.
const defaultSignaturePrecision = 3

// DeleteFile implements Store.DeleteFile.
func (s *BadgerStore) DeleteFile(ctx context.Context, path string) error {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	return withRetry(ctx, func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			var oldSig string
			if item, err := txn.Get([]byte(sigKey(path))); err == nil {
				_ = item.Value(func(val []byte) error { oldSig = string(val); return nil })
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			for _, key := range []string{
				fileKey(path),
				fileListKey(path),
				sigKey(path),
				chaosKey(path),
			} {
				if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			if oldSig != "" {
				if err := txn.Delete([]byte(sigIdxKey(oldSig) + ":" + path)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			}
			return nil
		})
	})
}

// GetFile implements Store.GetFile.
func (s *BadgerStore) GetFile(ctx context.Context, path string) (FileRecord, error) {
	if err := ctx.Err(); err != nil {
		return FileRecord{}, fmt.Errorf("%w: %v", sigerr.ErrCancelled, err)
	}

	var rec FileRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fileKey(path)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return sigerr.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw, err := s.dec.DecodeAll(val, nil)
			if err != nil {
				return fmt.Errorf("decompress file body: %w", err)
			}
			var envelope fileEnvelope
			if err := json.Unmarshal(raw, &envelope); err != nil {
				return fmt.Errorf("decode file envelope: %w", err)
			}
			rec = FileRecord{
				Path:       path,
				Body:       envelope.Body,
				Binary:     envelope.Binary,
				SizeBytes:  envelope.SizeBytes,
				IngestedAt: envelope.IngestedAt,
			}
			return nil
		})
	})
	return rec, err
}

// GetSignature implements Store.GetSignature.
func (s *BadgerStore) GetSignature(ctx context.Context, path string) (manifold.Signature, error) {
	var sig manifold.Signature
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sigKey(path)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return sigerr.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, err := manifold.ParseSignature(string(val))
			if err != nil {
				return err
			}
			sig = parsed
			return nil
		})
	})
	return sig, err
}

// GetChaosProfile implements Store.GetChaosProfile.
func (s *BadgerStore) GetChaosProfile(ctx context.Context, path string) (chaos.Profile, error) {
	var profile chaos.Profile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(chaosKey(path)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return sigerr.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		})
	})
	return profile, err
}

// ListPaths implements Store.ListPaths.
func (s *BadgerStore) ListPaths(ctx context.Context, glob string) ([]string, error) {
	prefix := []byte(prefixFileList)
	var paths []string
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			path := strings.TrimPrefix(string(it.Item().Key()), prefixFileList)
			if matchGlob(glob, path) {
				paths = append(paths, path)
			}
		}
		return nil
	})
	sort.Strings(paths)
	return paths, err
}

// Neighbors implements Store.Neighbors by scanning the sigidx key family,
// which holds one member key per (signature, path) pair.
func (s *BadgerStore) Neighbors(ctx context.Context, target manifold.Signature, tolerance float64, scopeGlob string, limit int) ([]Neighbor, error) {
	prefix := []byte(prefixSigIdx)
	var hits []Neighbor

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			rest := bytes.TrimPrefix(it.Item().Key(), prefix)
			parts := strings.SplitN(string(rest), ":", 2)
			if len(parts) != 2 {
				continue
			}
			sigStr, path := parts[0], parts[1]
			if !matchGlob(scopeGlob, path) {
				continue
			}
			sig, err := manifold.ParseSignature(sigStr)
			if err != nil {
				continue
			}
			dc := sig.Coherence - target.Coherence
			ds := sig.Stability - target.Stability
			de := sig.Entropy - target.Entropy
			if math.Abs(dc) > tolerance || math.Abs(ds) > tolerance || math.Abs(de) > tolerance {
				continue
			}
			delta := math.Sqrt(dc*dc + ds*ds + de*de)
			hits = append(hits, Neighbor{Path: path, Signature: sig, Delta: delta})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Delta != hits[j].Delta {
			return hits[i].Delta < hits[j].Delta
		}
		return hits[i].Path < hits[j].Path
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// RankByChaos implements Store.RankByChaos.
func (s *BadgerStore) RankByChaos(ctx context.Context, scopeGlob string, limit int, descending bool) ([]RankedFile, error) {
	prefix := []byte(prefixChaos)
	var ranked []RankedFile

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			path := strings.TrimPrefix(string(it.Item().Key()), prefixChaos)
			if !matchGlob(scopeGlob, path) {
				continue
			}
			var profile chaos.Profile
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &profile)
			}); err != nil {
				return err
			}
			ranked = append(ranked, RankedFile{Path: path, Profile: profile})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Profile.ChaosScore != ranked[j].Profile.ChaosScore {
			if descending {
				return ranked[i].Profile.ChaosScore > ranked[j].Profile.ChaosScore
			}
			return ranked[i].Profile.ChaosScore < ranked[j].Profile.ChaosScore
		}
		return ranked[i].Path < ranked[j].Path
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// PutFact implements Store.PutFact.
func (s *BadgerStore) PutFact(ctx context.Context, id string, text string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(factKey(id)), []byte(text))
	})
}

// GetFact implements Store.GetFact.
func (s *BadgerStore) GetFact(ctx context.Context, id string) (string, error) {
	var text string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(factKey(id)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return sigerr.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { text = string(val); return nil })
	})
	return text, err
}

// DeleteFact implements Store.DeleteFact.
func (s *BadgerStore) DeleteFact(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(factKey(id)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// DeleteAll removes every key in every family, for ingest's clear-first
// mode (spec §4.4).
func (s *BadgerStore) DeleteAll(ctx context.Context) error {
	return s.db.DropAll()
}
