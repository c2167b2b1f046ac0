package store

// Key families, per spec §4.3. Keys are ASCII; opaque to callers of the
// Store interface.
//
// The spec names a single "files" key holding the set of all indexed
// paths. Badger has no native set type, so that family is modeled the same
// way sigidx is: one member key per path, under prefixFileList.
const (
	prefixFile     = "file:"
	prefixSig      = "sig:"
	prefixChaos    = "chaos:"
	prefixSigIdx   = "sigidx:"
	prefixFileList = "files:"
	prefixFact     = "fact:"
)

func fileKey(path string) string     { return prefixFile + path }
func sigKey(path string) string      { return prefixSig + path }
func chaosKey(path string) string    { return prefixChaos + path }
func sigIdxKey(sig string) string    { return prefixSigIdx + sig }
func fileListKey(path string) string { return prefixFileList + path }
func factKey(id string) string       { return prefixFact + id }
