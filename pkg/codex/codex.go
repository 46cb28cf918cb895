// Package codex is the public embedding surface of codexkeep: open a vault,
// index it, search it, and manage templates, without touching the internal
// packages directly.
//
// # Usage
//
//	keep, err := codex.Open(codex.Options{VaultPath: "/path/to/vault"})
//	if err != nil {
//	    return err
//	}
//	defer keep.Close()
//
//	report, err := keep.Scan(ctx)
//	results, err := keep.Search(ctx, "dragon", codex.SearchOptions{})
//
// # Thread safety
//
// A Keep serializes writes internally; reads may run concurrently. The
// underlying database allows a single writing process, so opening the same
// vault from two processes fails with a lock error.
package codex

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/codexkeep/codexkeep/configs"
	"github.com/codexkeep/codexkeep/internal/config"
	cerr "github.com/codexkeep/codexkeep/internal/errors"
	"github.com/codexkeep/codexkeep/internal/ignore"
	"github.com/codexkeep/codexkeep/internal/index"
	"github.com/codexkeep/codexkeep/internal/search"
	"github.com/codexkeep/codexkeep/internal/store"
	"github.com/codexkeep/codexkeep/internal/template"
	"github.com/codexkeep/codexkeep/internal/watcher"
)

// Options configures Open.
type Options struct {
	// VaultPath is the vault root directory. Required.
	VaultPath string

	// Config overrides the configuration loaded from the vault.
	// Nil means load from .codexkeep.yaml and the environment.
	Config *config.Config

	// InMemory keeps the graph store off disk. Useful for tests and
	// one-shot queries against a scratch vault.
	InMemory bool
}

// Keep is an open vault with its graph store, template registry, search
// engine, and index coordinator wired together.
type Keep struct {
	vaultPath string
	cfg       *config.Config
	store     *store.Store
	registry  *template.Registry
	engine    *search.Engine
	coord     *index.Coordinator
	watch     *watcher.Watcher
}

// Open opens a vault: loads configuration, opens the graph store under
// <vault>/.codexkeep, registers the built-in template plus any configured
// one, and restores the previously active template.
func Open(opts Options) (*Keep, error) {
	if opts.VaultPath == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	info, err := os.Stat(opts.VaultPath)
	if err != nil {
		return nil, fmt.Errorf("stat vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault path is not a directory: %s", opts.VaultPath)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.Load(opts.VaultPath)
		if err != nil {
			return nil, err
		}
	}

	dbPath := ""
	if !opts.InMemory {
		if err := os.MkdirAll(config.DataDir(opts.VaultPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dbPath = config.DBPath(opts.VaultPath)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}

	registry := template.NewRegistry()
	if err := registerTemplates(registry, cfg); err != nil {
		_ = st.Close()
		return nil, err
	}

	keep := &Keep{
		vaultPath: opts.VaultPath,
		cfg:       cfg,
		store:     st,
		registry:  registry,
		engine:    search.New(st),
		coord: index.NewCoordinator(index.Config{
			VaultPath:       opts.VaultPath,
			Store:           st,
			Registry:        registry,
			Extensions:      cfg.Vault.Extensions,
			MaxFileSize:     cfg.MaxFileSize(),
			Workers:         cfg.Index.Workers,
			ExcludePatterns: cfg.Vault.Exclude,
		}),
	}

	if err := keep.restoreActiveTemplate(cfg); err != nil {
		_ = st.Close()
		return nil, err
	}
	return keep, nil
}

// registerTemplates registers the built-in template and, when configured,
// a custom template definition from disk.
func registerTemplates(registry *template.Registry, cfg *config.Config) error {
	builtin, err := template.Load(configs.DefaultTemplate)
	if err != nil {
		return cerr.InternalError("decode built-in template", err)
	}
	if err := registry.Register(builtin, "builtin"); err != nil {
		return err
	}

	if cfg.Template.Path != "" {
		data, err := os.ReadFile(cfg.Template.Path)
		if err != nil {
			return fmt.Errorf("read template file %s: %w", cfg.Template.Path, err)
		}
		custom, err := template.Load(data)
		if err != nil {
			return err
		}
		if err := registry.Register(custom, cfg.Template.Path); err != nil {
			return err
		}
	}
	return nil
}

// restoreActiveTemplate decides the active template: explicit config wins,
// then the id persisted from the last run, then the built-in default.
func (k *Keep) restoreActiveTemplate(cfg *config.Config) error {
	if cfg.Template.Active != "" {
		return k.ActivateTemplate(context.Background(), cfg.Template.Active)
	}

	persisted, err := k.store.GetMeta(context.Background(), store.MetaKeyActiveTemplate)
	if err != nil {
		return err
	}
	if persisted != "" {
		if _, ok := k.registry.Get(persisted); ok {
			return k.ActivateTemplate(context.Background(), persisted)
		}
		// The stored id names a template this run did not register.
		// Fall back to the default rather than fail the open.
	}
	return k.ActivateTemplate(context.Background(), "chronicle")
}

// Close releases the store and stops any running watcher.
func (k *Keep) Close() error {
	if k.watch != nil {
		_ = k.watch.Stop()
		k.watch = nil
	}
	return k.store.Close()
}

// VaultPath returns the vault root directory.
func (k *Keep) VaultPath() string {
	return k.vaultPath
}

// Config returns the effective configuration.
func (k *Keep) Config() *config.Config {
	return k.cfg
}

// Scan walks the vault and indexes every document.
func (k *Keep) Scan(ctx context.Context) (*index.Report, error) {
	return k.coord.Scan(ctx)
}

// Rebuild clears the graph and re-indexes the vault from scratch.
func (k *Keep) Rebuild(ctx context.Context) (*index.Report, error) {
	return k.coord.Rebuild(ctx)
}

// UpsertDocument parses and indexes a single document by vault-relative path.
func (k *Keep) UpsertDocument(ctx context.Context, relPath string) error {
	return k.coord.IndexDocument(ctx, relPath)
}

// RemoveDocument removes the node indexed from a vault-relative path.
func (k *Keep) RemoveDocument(ctx context.Context, relPath string) error {
	return k.coord.RemoveDocument(ctx, relPath)
}

// SearchOptions restricts and shapes search results.
type SearchOptions = search.Options

// SearchResult is one ranked search hit.
type SearchResult = search.Result

// EntityView is a node with its relationships and neighbor nodes.
type EntityView = search.NodeView

// Search runs a query against the index. An empty query browses all
// entities instead of matching.
func (k *Keep) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	if opts.Limit == 0 {
		opts.Limit = k.cfg.Search.MaxResults
	}
	return k.engine.Search(ctx, query, opts)
}

// GetEntity returns one entity with its relationships, or nil when the id
// is unknown.
func (k *Keep) GetEntity(ctx context.Context, id string) (*EntityView, error) {
	return k.engine.GetNodeWithRelationships(ctx, id, "")
}

// GetEntitiesByType returns all entities of one type, newest first.
func (k *Keep) GetEntitiesByType(ctx context.Context, entityType string) ([]*store.Node, error) {
	return k.engine.GetNodesByType(ctx, entityType)
}

// GetStats returns index statistics.
func (k *Keep) GetStats(ctx context.Context) (*store.Stats, error) {
	return k.engine.Stats(ctx)
}

// LastScan returns the time of the last full scan, or zero when the vault
// has never been scanned.
func (k *Keep) LastScan(ctx context.Context) (time.Time, error) {
	value, err := k.store.GetMeta(ctx, store.MetaKeyLastScan)
	if err != nil || value == "" {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, value)
}

// RegisterTemplate registers a template definition at runtime.
// Registration is fail-closed: a definition that does not validate leaves
// the registry untouched.
func (k *Keep) RegisterTemplate(def *template.Definition, source string) error {
	return k.registry.Register(def, source)
}

// ActivateTemplate makes a registered template the active one and persists
// its id so the next open restores it.
func (k *Keep) ActivateTemplate(ctx context.Context, id string) error {
	if err := k.registry.Activate(id); err != nil {
		return err
	}
	return k.store.SetMeta(ctx, store.MetaKeyActiveTemplate, id)
}

// GetActiveTemplate returns the active template definition.
func (k *Keep) GetActiveTemplate() *template.Definition {
	return k.registry.Active()
}

// Templates returns every registered template id, sorted.
func (k *Keep) Templates() []string {
	return k.registry.IDs()
}

// Watch starts the file watcher and applies debounced document changes to
// the index until the context is cancelled. It blocks.
func (k *Keep) Watch(ctx context.Context) error {
	w, err := watcher.New(watcher.Options{
		DebounceWindow: k.cfg.DebounceWindow(),
		Extensions:     k.cfg.Vault.Extensions,
	})
	if err != nil {
		return err
	}
	k.watch = w

	rules, err := ignore.ForVault(k.vaultPath)
	if err != nil {
		return err
	}
	for _, pattern := range k.cfg.Vault.Exclude {
		rules.Add(pattern)
	}

	w.OnEvent(func(event watcher.Event) error {
		if rules.Ignored(event.Path, false) {
			return nil
		}
		return k.coord.HandleEvent(ctx, event)
	})

	return w.Start(ctx, k.vaultPath)
}
