// Package scanner discovers vault documents on disk. It walks the vault
// tree, skipping hidden entries, the index data directory, and paths
// excluded by .codexkeepignore rules, and streams the documents it finds
// so large vaults do not have to fit in memory before indexing starts.
package scanner

import (
	"time"
)

// DefaultMaxFileSize is the default maximum document size (5MB).
// Documents larger than this are skipped; a knowledge-base note of
// that size is almost certainly an export artifact, not prose.
const DefaultMaxFileSize = 5 * 1024 * 1024

// DataDirName is the vault-local directory holding index state.
// It is never scanned.
const DataDirName = ".codexkeep"

// FileInfo contains metadata about a discovered document.
type FileInfo struct {
	Path    string    // Relative to the vault root, slash-separated
	AbsPath string    // Absolute path
	Size    int64     // Size in bytes
	ModTime time.Time // Last modification time
}

// FileData pairs a discovered document with its content.
type FileData struct {
	Info    FileInfo
	Content []byte
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the vault root directory to scan.
	RootDir string

	// Extensions are the document extensions to include, with dot.
	// Empty means the defaults (.md, .txt).
	Extensions []string

	// MaxFileSize is the maximum document size in bytes (0 = 5MB default).
	MaxFileSize int64

	// Workers bounds concurrent content reads (0 = NumCPU).
	Workers int

	// ExcludePatterns are extra ignore rules, in .codexkeepignore
	// syntax, applied on top of the vault's ignore file.
	ExcludePatterns []string
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}
