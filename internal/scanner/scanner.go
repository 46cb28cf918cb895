package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codexkeep/codexkeep/internal/ignore"
)

// Scanner discovers vault documents.
type Scanner struct{}

// New creates a new Scanner instance.
func New() *Scanner {
	return &Scanner{}
}

// Scan discovers all documents under the vault root. It returns a channel
// of ScanResult that streams documents as they are found; the channel is
// closed when the walk is complete.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat vault root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root is not a directory: %s", absRoot)
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = []string{".md", ".txt"}
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	rules, err := ignore.ForVault(absRoot)
	if err != nil {
		return nil, fmt.Errorf("load ignore rules: %w", err)
	}
	for _, pattern := range opts.ExcludePatterns {
		rules.Add(pattern)
	}

	results := make(chan ScanResult, 64)

	go func() {
		defer close(results)
		s.walk(ctx, absRoot, extensions, maxFileSize, rules, results)
	}()

	return results, nil
}

// Load discovers documents and reads their contents with a bounded worker
// pool. Unreadable documents are logged and skipped rather than failing
// the whole scan. Results are sorted by path for deterministic indexing.
func (s *Scanner) Load(ctx context.Context, opts *ScanOptions) ([]FileData, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results, err := s.Scan(ctx, opts)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		files []FileData
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var walkErr error
	for result := range results {
		if result.Error != nil {
			// Keep draining so the walker goroutine and in-flight
			// readers can finish before we report the failure.
			if walkErr == nil {
				walkErr = result.Error
			}
			continue
		}
		if walkErr != nil {
			continue
		}
		file := result.File

		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			content, readErr := os.ReadFile(file.AbsPath)
			if readErr != nil {
				slog.Warn("scan_read_failed",
					slog.String("path", file.Path),
					slog.String("error", readErr.Error()))
				return nil
			}

			mu.Lock()
			files = append(files, FileData{Info: *file, Content: content})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if walkErr != nil {
		return nil, walkErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Info.Path < files[j].Info.Path
	})
	return files, nil
}

// walk performs the directory traversal.
func (s *Scanner) walk(ctx context.Context, absRoot string, extensions []string, maxFileSize int64, rules *ignore.Ruleset, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip unreadable entries
		}

		name := d.Name()
		relPath, relErr := filepath.Rel(absRoot, path)
		if relErr != nil {
			return nil
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if path == absRoot {
				return nil
			}
			if strings.HasPrefix(name, ".") || name == DataDirName {
				return filepath.SkipDir
			}
			if rules.Ignored(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !matchesExtension(name, extensions) {
			return nil
		}
		if rules.Ignored(relPath, false) {
			return nil
		}

		// Symlinked documents are skipped; following them risks
		// walking outside the vault.
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > maxFileSize {
			slog.Debug("scan_skip_oversized",
				slog.String("path", path),
				slog.Int64("size", info.Size()))
			return nil
		}

		fileInfo := &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// matchesExtension reports whether a file name carries one of the
// tracked document extensions.
func matchesExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
