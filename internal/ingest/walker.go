package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// discoveredFile is one file surfaced by walk, before classification.
type discoveredFile struct {
	AbsPath string
	RelPath string
	Size    int64
}

// walk recursively enumerates root, skipping hidden directories, declared
// binary extensions, and files over cfg.MaxBytesPerFile. Non-fatal errors
// (permission denied, unreadable entries) are collected rather than
// aborting the walk, matching spec §4.4's ignore policy.
func walk(ctx context.Context, root string, cfg Config) ([]discoveredFile, []FileError) {
	var files []discoveredFile
	var errs []FileError

	var visit func(dir string) error
	visit = func(dir string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			rel, _ := filepath.Rel(root, dir)
			errs = append(errs, FileError{Path: rel, Err: err})
			return nil
		}

		for _, entry := range entries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			name := entry.Name()
			path := filepath.Join(dir, name)

			if entry.IsDir() {
				if strings.HasPrefix(name, ".") {
					continue
				}
				if err := visit(path); err != nil {
					return err
				}
				continue
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				errs = append(errs, FileError{Path: path, Err: err})
				continue
			}
			rel = filepath.ToSlash(rel)

			if cfg.BinaryExtensions[strings.ToLower(filepath.Ext(name))] {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				errs = append(errs, FileError{Path: rel, Err: err})
				continue
			}
			if cfg.MaxBytesPerFile > 0 && info.Size() > cfg.MaxBytesPerFile {
				continue
			}

			files = append(files, discoveredFile{AbsPath: path, RelPath: rel, Size: info.Size()})
		}
		return nil
	}

	if err := visit(root); err != nil {
		errs = append(errs, FileError{Path: root, Err: err})
	}
	return files, errs
}
