package watcher

import (
	"context"
	"sync"

	"github.com/spf13/afero"

	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/registry"
)

// LoadFunc builds a fresh registry holding the watched graph.
type LoadFunc func(ctx context.Context) (*registry.TemplateRegistry, error)

// Canonicalizer maps a file system path to the path templates are
// registered under.
type Canonicalizer interface {
	ToCanonicalRelative(path string) string
}

// Reloader reloads the watched graph when a file belonging to it changes
// content. Events for files outside the graph, or whose content hash still
// matches the registered template, are ignored.
type Reloader struct {
	fs       afero.Fs
	paths    Canonicalizer
	load     LoadFunc
	logger   logging.Logger
	onReload func(*registry.TemplateRegistry)

	mu      sync.Mutex
	current *registry.TemplateRegistry
}

// NewReloader creates a Reloader. Call Init before handling events.
func NewReloader(fs afero.Fs, paths Canonicalizer, load LoadFunc, logger logging.Logger) *Reloader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reloader{
		fs:     fs,
		paths:  paths,
		load:   load,
		logger: logger.WithComponent("reloader"),
	}
}

// OnReload registers fn to be called with every newly loaded registry.
func (r *Reloader) OnReload(fn func(*registry.TemplateRegistry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = fn
}

// Init performs the first load.
func (r *Reloader) Init(ctx context.Context) error {
	_, err := r.reload(ctx)
	return err
}

// Current returns the registry of the last successful load.
func (r *Reloader) Current() *registry.TemplateRegistry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Changed returns the canonical paths among events whose on-disk content
// no longer matches the registered template. While the graph has templates
// loaded with errors, files that are not registered count as changed too.
func (r *Reloader) Changed(events []ChangeEvent) []string {
	current := r.Current()
	if current == nil {
		return nil
	}
	flagged := hasFlaggedTemplates(current)

	var changed []string
	for _, event := range events {
		rel := r.paths.ToCanonicalRelative(event.Path)
		id, ok := current.FindByPath(rel)
		if !ok {
			if flagged {
				changed = append(changed, rel)
			}
			continue
		}
		tmpl, ok := current.Find(id)
		if !ok {
			continue
		}

		data, err := afero.ReadFile(r.fs, event.Path)
		if err != nil {
			// Removed or unreadable.
			changed = append(changed, rel)
			continue
		}
		if registry.ContentHash(data) != tmpl.Hash {
			changed = append(changed, rel)
		}
	}
	return changed
}

func hasFlaggedTemplates(reg *registry.TemplateRegistry) bool {
	for _, tmpl := range reg.All() {
		if tmpl.LoadedWithErrors {
			return true
		}
	}
	return false
}

// Handle is a ChangeHandler that reloads the graph when needed.
func (r *Reloader) Handle(ctx context.Context, events []ChangeEvent) error {
	changed := r.Changed(events)
	if len(changed) == 0 {
		r.logger.Debug(ctx, "Ignoring unchanged files", "events", len(events))
		return nil
	}

	r.logger.Info(ctx, "Prefab files changed, reloading", "paths", changed)
	_, err := r.reload(ctx)
	return err
}

func (r *Reloader) reload(ctx context.Context) (*registry.TemplateRegistry, error) {
	perf := logging.StartOperation(r.logger, "reload")

	reg, err := r.load(ctx)
	if err != nil {
		perf.EndWithError(ctx, err)
		return nil, err
	}

	r.mu.Lock()
	r.current = reg
	onReload := r.onReload
	r.mu.Unlock()

	flagged := 0
	for _, tmpl := range reg.All() {
		if tmpl.LoadedWithErrors {
			flagged++
			r.logger.Warn(ctx, nil, "Prefab loaded with errors", "path", tmpl.Path)
		}
	}
	perf.End(ctx, "templates", reg.Count(), "with_errors", flagged)

	if onReload != nil {
		onReload(reg)
	}
	return reg, nil
}
