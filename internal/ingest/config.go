package ingest

import (
	"runtime"
	"time"
)

// Config controls the walker, pipeline, and watcher. See spec §6.
type Config struct {
	MaxBytesPerFile  int64
	LiteGlobs        []string
	BatchSize        int
	WorkerCap        int
	WatcherDebounce  time.Duration
	BinaryExtensions map[string]bool
}

// DefaultBinaryExtensions is the declared binary-extension set the walker
// skips outright (never even classified), per spec §4.4.
func DefaultBinaryExtensions() map[string]bool {
	exts := []string{
		".png", ".jpg", ".jpeg", ".gif", ".ico", ".bmp", ".webp",
		".exe", ".dll", ".so", ".dylib", ".a", ".o", ".obj",
		".zip", ".tar", ".gz", ".bz2", ".xz", ".7z", ".rar",
		".pdf", ".woff", ".woff2", ".ttf", ".otf", ".eot",
		".mp3", ".mp4", ".mov", ".avi", ".wav",
	}
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// DefaultLiteGlobs matches spec §4.4's "tests/docs" lite-mode pattern set:
// files that get indexed but skip C2 chaos analysis.
func DefaultLiteGlobs() []string {
	return []string{"**/*_test.go", "**/testdata/**", "**/docs/**", "**/*.md"}
}

// DefaultConfig returns spec §6's recognized defaults.
func DefaultConfig() Config {
	workerCap := runtime.NumCPU()
	if workerCap > 8 {
		workerCap = 8
	}
	if workerCap < 1 {
		workerCap = 1
	}
	return Config{
		MaxBytesPerFile:  512000,
		LiteGlobs:        DefaultLiteGlobs(),
		BatchSize:        64,
		WorkerCap:        workerCap,
		WatcherDebounce:  250 * time.Millisecond,
		BinaryExtensions: DefaultBinaryExtensions(),
	}
}
