// Package index orchestrates the vault indexing pipeline: scan, parse,
// resolve, validate, and write to the graph store. It serves both full
// vault scans and the incremental updates driven by watcher events.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	cerr "github.com/codexkeep/codexkeep/internal/errors"
	"github.com/codexkeep/codexkeep/internal/graph"
	"github.com/codexkeep/codexkeep/internal/parser"
	"github.com/codexkeep/codexkeep/internal/resolver"
	"github.com/codexkeep/codexkeep/internal/scanner"
	"github.com/codexkeep/codexkeep/internal/store"
	"github.com/codexkeep/codexkeep/internal/template"
	"github.com/codexkeep/codexkeep/internal/watcher"
)

// Config contains configuration for the Coordinator.
type Config struct {
	// VaultPath is the absolute path to the vault root.
	VaultPath string

	// Store is the graph store to write to.
	Store *store.Store

	// Registry provides the active template for type resolution and
	// metadata validation.
	Registry *template.Registry

	// Extensions are the document extensions to index, with dot.
	// Empty means the scanner defaults.
	Extensions []string

	// MaxFileSize caps document size in bytes (0 = scanner default).
	MaxFileSize int64

	// Workers bounds concurrent document reads (0 = NumCPU).
	Workers int

	// ExcludePatterns are extra ignore rules applied on top of the
	// vault's .codexkeepignore file.
	ExcludePatterns []string
}

// Coordinator drives indexing. All mutating entry points serialize on an
// internal mutex; the store expects a single writer.
type Coordinator struct {
	config  Config
	scanner *scanner.Scanner
	builder *graph.Builder
	mu      sync.Mutex
}

// NewCoordinator creates an index coordinator.
func NewCoordinator(config Config) *Coordinator {
	return &Coordinator{
		config:  config,
		scanner: scanner.New(),
		builder: graph.New(config.Store, config.Registry),
	}
}

// Report summarizes one scan.
type Report struct {
	// Scanned is the number of documents discovered.
	Scanned int
	// Indexed is the number of documents written to the graph.
	Indexed int
	// Skipped is the number of documents without a metadata block.
	Skipped int
	// Failed is the number of documents rejected for other reasons.
	Failed int
	// Errors holds the reason each non-indexed document was skipped or
	// rejected, keyed by vault-relative path.
	Errors map[string]error
	// Duration is the wall time of the scan.
	Duration time.Duration
}

// Groups returns the report's errors grouped by error code, for display.
func (r *Report) Groups() []cerr.Group {
	return cerr.GroupByCode(r.Errors)
}

// Scan walks the vault and indexes every document. A document that fails
// to parse, resolve, or validate is recorded in the report and does not
// stop the scan. Re-scanning an unchanged vault is idempotent.
func (c *Coordinator) Scan(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()

	files, err := c.scanner.Load(ctx, &scanner.ScanOptions{
		RootDir:         c.config.VaultPath,
		Extensions:      c.config.Extensions,
		MaxFileSize:     c.config.MaxFileSize,
		Workers:         c.config.Workers,
		ExcludePatterns: c.config.ExcludePatterns,
	})
	if err != nil {
		return nil, fmt.Errorf("scan vault: %w", err)
	}

	report := &Report{
		Scanned: len(files),
		Errors:  make(map[string]error),
	}

	res := resolver.New(c.config.Registry.Active())

	var docs []*parser.Document
	for _, file := range files {
		doc, prepErr := c.prepare(ctx, res, file.Info.Path, string(file.Content))
		if prepErr != nil {
			report.Errors[file.Info.Path] = prepErr
			continue
		}
		docs = append(docs, doc)
	}

	for path, buildErr := range c.builder.BuildGraph(ctx, docs) {
		report.Errors[path] = buildErr
	}

	report.Indexed = report.Scanned - len(report.Errors)
	for _, reportErr := range report.Errors {
		if cerr.GetCode(reportErr) == cerr.ErrCodeNoMetadata {
			report.Skipped++
		} else {
			report.Failed++
		}
	}

	if err := c.config.Store.SetMeta(ctx, store.MetaKeyLastScan, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("scan_meta_update_failed", slog.String("error", err.Error()))
	}

	report.Duration = time.Since(start)
	slog.Info("scan_complete",
		slog.Int("scanned", report.Scanned),
		slog.Int("indexed", report.Indexed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// Rebuild clears the graph and re-indexes the vault from scratch.
func (c *Coordinator) Rebuild(ctx context.Context) (*Report, error) {
	c.mu.Lock()
	if err := c.config.Store.ClearAll(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()
	return c.Scan(ctx)
}

// HandleEvent applies one debounced watcher event to the index.
func (c *Coordinator) HandleEvent(ctx context.Context, event watcher.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	slog.Debug("index_event",
		slog.String("path", event.Path),
		slog.String("op", event.Operation.String()))

	switch event.Operation {
	case watcher.OpCreate, watcher.OpModify:
		return c.indexDocument(ctx, event.Path)
	case watcher.OpDelete:
		return c.removeDocument(ctx, event.Path)
	default:
		return nil
	}
}

// IndexDocument parses and indexes a single document by vault-relative path.
func (c *Coordinator) IndexDocument(ctx context.Context, relPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.indexDocument(ctx, relPath)
}

// RemoveDocument removes the node indexed from a vault-relative path.
// Removing a path that was never indexed is a no-op.
func (c *Coordinator) RemoveDocument(ctx context.Context, relPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.removeDocument(ctx, relPath)
}

func (c *Coordinator) indexDocument(ctx context.Context, relPath string) error {
	absPath := filepath.Join(c.config.VaultPath, filepath.FromSlash(relPath))

	content, err := os.ReadFile(absPath)
	if err != nil {
		return cerr.New(cerr.ErrCodeUnreadableDoc, "read document", err).
			WithDetail("path", relPath)
	}

	res := resolver.New(c.config.Registry.Active())
	doc, err := c.prepare(ctx, res, relPath, string(content))
	if err != nil {
		return err
	}
	return c.builder.UpdateNote(ctx, doc)
}

func (c *Coordinator) removeDocument(ctx context.Context, relPath string) error {
	node, err := c.config.Store.GetNodeBySourcePath(ctx, relPath)
	if err != nil {
		return err
	}
	if node == nil {
		return nil
	}
	return c.builder.RemoveNote(ctx, node.ID)
}

// prepare runs the per-document pipeline up to the graph write: parse,
// assign identity, resolve the entity type, and validate metadata against
// the active template.
func (c *Coordinator) prepare(ctx context.Context, res *resolver.Resolver, relPath, content string) (*parser.Document, error) {
	doc, err := parser.Parse(relPath, content)
	if err != nil {
		return nil, err
	}

	if doc.ID == "" {
		if err := c.assignID(ctx, doc); err != nil {
			return nil, err
		}
	}

	if doc.Type == "" {
		resolution := res.Resolve(relPath)
		switch resolution.Confidence {
		case resolver.Exact, resolver.Fallback:
			doc.Type = resolution.Type
		case resolver.Ambiguous:
			return nil, cerr.Newf(cerr.ErrCodeTypeAmbiguous,
				"folder %q matches multiple types: %s",
				resolution.Pattern, strings.Join(resolution.Candidates, ", ")).
				WithSuggestion("declare an explicit type in the document metadata")
		default:
			return nil, cerr.Newf(cerr.ErrCodeTypeUnresolved,
				"no folder rule or default type matches %q", relPath).
				WithSuggestion("declare an explicit type or add a folder mapping to the template")
		}
	}

	if _, known := c.config.Registry.GetEntityType(doc.Type); known {
		schema, schemaErr := c.config.Registry.GetSchema(doc.Type)
		if schemaErr != nil {
			return nil, schemaErr
		}
		if err := schema.Validate(doc.Metadata); err != nil {
			return nil, err
		}
	}

	return doc, nil
}

// assignID gives an un-identified document a stable id: the id of the node
// previously indexed from the same path when one exists, otherwise a fresh
// UUID. Reuse keeps repeated scans from multiplying nodes.
func (c *Coordinator) assignID(ctx context.Context, doc *parser.Document) error {
	existing, err := c.config.Store.GetNodeBySourcePath(ctx, doc.Path)
	if err != nil {
		return err
	}
	if existing != nil {
		doc.ID = existing.ID
		return nil
	}
	doc.ID = uuid.NewString()
	return nil
}
