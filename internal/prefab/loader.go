// Package prefab loads prefab documents into a template registry, resolving
// nested instances recursively, and saves templates back to their on-disk
// form.
//
// Loading continues past failures in nested instances: the containing
// template is still registered and returned, carrying a loaded-with-errors
// flag that propagates to every template above it.
package prefab

import (
	"context"

	"github.com/spf13/afero"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/registry"
)

// DefaultMaxDepth bounds how deeply instances may nest.
const DefaultMaxDepth = 64

// Document fields with a fixed meaning.
const (
	fieldInstances = "instances"
	fieldSource    = "source"
	fieldOrigin    = "origin"
)

// Registry stores templates and links for the loader.
type Registry interface {
	FindByPath(path string) (registry.TemplateID, bool)
	Create(path string, doc document.Value) (registry.TemplateID, error)
	Find(id registry.TemplateID) (*registry.Template, bool)
	CreateLink(source, target registry.TemplateID, key string) (registry.LinkID, error)
	FindLink(id registry.LinkID) (*registry.Link, bool)
	SetDirty(id registry.TemplateID, dirty bool) error
}

// hashRecorder is implemented by registries that keep content hashes.
type hashRecorder interface {
	SetHash(id registry.TemplateID, hash string) error
}

// PathResolver converts prefab paths.
type PathResolver interface {
	IsValidPath(path string) bool
	ToAbsolute(path string) string
	ToCanonicalRelative(path string) string
}

// Normalizer expands and strips default values.
type Normalizer interface {
	Expand(doc *document.Value) error
	Strip(doc *document.Value) error
}

// Loader loads and saves prefab templates.
type Loader struct {
	registry   Registry
	resolver   PathResolver
	normalizer Normalizer
	fs         afero.Fs
	logger     logging.Logger
	collector  *errors.Collector
	maxDepth   int
	codecOpts  []codec.Option
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger logging.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger.WithComponent("prefab")
		}
	}
}

// WithCollector records every diagnostic in c.
func WithCollector(c *errors.Collector) Option {
	return func(l *Loader) { l.collector = c }
}

// WithMaxDepth sets the nesting limit. Non-positive values keep the default.
func WithMaxDepth(depth int) Option {
	return func(l *Loader) {
		if depth > 0 {
			l.maxDepth = depth
		}
	}
}

// WithCodecOptions passes options to the codecs used for parsing and
// serializing.
func WithCodecOptions(opts ...codec.Option) Option {
	return func(l *Loader) { l.codecOpts = append(l.codecOpts, opts...) }
}

// NewLoader creates a Loader. Files are read from and written to fs.
func NewLoader(reg Registry, resolver PathResolver, normalizer Normalizer, fs afero.Fs, opts ...Option) *Loader {
	l := &Loader{
		registry:   reg,
		resolver:   resolver,
		normalizer: normalizer,
		fs:         fs,
		logger:     logging.NewNop(),
		maxDepth:   DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads the document at path and everything it nests.
func (l *Loader) LoadFile(ctx context.Context, path string) (registry.TemplateID, error) {
	return l.LoadFileInScope(ctx, path, NewScope())
}

// LoadFileInScope is LoadFile with a caller-provided scope.
func (l *Loader) LoadFileInScope(ctx context.Context, path string, scope *Scope) (registry.TemplateID, error) {
	id, err := l.load(ctx, path, nil, scope)
	if err != nil {
		l.report(ctx, err)
	}
	return id, err
}

// LoadString loads content as if it had been read from originPath.
func (l *Loader) LoadString(ctx context.Context, content, originPath string) (registry.TemplateID, error) {
	return l.LoadStringInScope(ctx, content, originPath, NewScope())
}

// LoadStringInScope is LoadString with a caller-provided scope.
func (l *Loader) LoadStringInScope(ctx context.Context, content, originPath string, scope *Scope) (registry.TemplateID, error) {
	id, err := l.load(ctx, originPath, []byte(content), scope)
	if err != nil {
		l.report(ctx, err)
	}
	return id, err
}

// load resolves one document. A nil content means read it from disk. Fatal
// failures are returned unreported; the caller decides how to report them.
func (l *Loader) load(ctx context.Context, path string, content []byte, scope *Scope) (registry.TemplateID, error) {
	if scope == nil {
		scope = NewScope()
	}

	if !l.resolver.IsValidPath(path) {
		return registry.InvalidTemplateID, errors.NewInvalidPathError(path)
	}

	rel := l.resolver.ToCanonicalRelative(path)

	if scope.Contains(rel) {
		return registry.InvalidTemplateID, errors.NewCycleError(rel).WithContext("chain", append(scope.Paths(), rel))
	}

	if id, ok := l.registry.FindByPath(rel); ok {
		return id, nil
	}

	if scope.Len() >= l.maxDepth {
		return registry.InvalidTemplateID, errors.Newf(errors.CodeNestingTooDeep, "nesting exceeds %d levels", l.maxDepth).
			WithPath(rel).
			WithContext("chain", scope.Paths())
	}

	if content == nil {
		data, err := afero.ReadFile(l.fs, l.resolver.ToAbsolute(path))
		if err != nil {
			return registry.InvalidTemplateID, errors.NewFileReadError(rel, err)
		}
		content = data
	}

	doc, err := codec.ForPath(rel, l.codecOpts...).Parse(content)
	if err != nil {
		return registry.InvalidTemplateID, errors.NewParseError(rel, err)
	}
	if !doc.IsMap() {
		return registry.InvalidTemplateID, errors.Newf(errors.CodeParse, "top level of a prefab must be an object, found %s", doc.Kind()).WithPath(rel)
	}

	doc.Set(fieldOrigin, document.String(rel))

	id, err := l.registry.Create(rel, doc)
	if err != nil {
		return registry.InvalidTemplateID, errors.Wrap(err, errors.CodeTemplateCreation, "failed to create template").WithPath(rel)
	}
	l.recordHash(ctx, id, rel, content)

	scope.push(rel)
	defer scope.pop(rel)

	ok := l.resolveInstances(ctx, id, rel, scope)

	tmpl, _ := l.registry.Find(id)
	if err := l.normalizer.Expand(&tmpl.Document); err != nil {
		ok = false
		l.report(ctx, errors.Wrap(err, errors.CodeNormalization, "failed to expand defaults").WithPath(rel))
	}

	tmpl.LoadedWithErrors = !ok
	if ok {
		l.logger.Debug(ctx, "Loaded prefab", "path", rel, "id", id, "links", len(tmpl.Links))
	} else {
		l.logger.Warn(ctx, nil, "Loaded prefab with errors", "path", rel, "id", id)
	}

	return id, nil
}

// resolveInstances loads every nested instance of template id and links it.
// It reports whether all of them loaded cleanly.
func (l *Loader) resolveInstances(ctx context.Context, id registry.TemplateID, rel string, scope *Scope) bool {
	tmpl, _ := l.registry.Find(id)

	instances, ok := tmpl.Document.Get(fieldInstances)
	if !ok {
		return true
	}
	if !instances.IsMap() {
		l.report(ctx, errors.Newf(errors.CodeInvalidInstance, "%q must be an object, found %s", fieldInstances, instances.Kind()).WithPath(rel))
		return false
	}

	// Linking rewrites entries in place, so iterate over a snapshot of keys.
	keys := instances.Keys()
	allOK := true

	for _, key := range keys {
		if !l.resolver.IsValidPath(key) {
			l.report(ctx, errors.Newf(errors.CodeInvalidPath, "invalid instance key %q", key).WithPath(rel).WithInstance(key))
			allOK = false
			continue
		}

		entry, _ := document.PointerTo(fieldInstances, key).Get(&tmpl.Document)
		source, ok := instanceSource(entry)
		if !ok {
			l.report(ctx, errors.Newf(errors.CodeInvalidInstance, "instance needs a non-empty string %q", fieldSource).WithPath(rel).WithInstance(key))
			allOK = false
			continue
		}

		nested, err := l.load(ctx, source, nil, scope)
		if err != nil {
			l.report(ctx, errors.Wrap(err, errors.CodeOf(err), "nested prefab failed to load").
				WithPath(rel).
				WithInstance(key).
				WithContext("nested_path", source))
			allOK = false
			continue
		}

		if _, err := l.registry.CreateLink(nested, id, key); err != nil {
			l.report(ctx, errors.Wrap(err, errors.CodeLinkCreation, "failed to link nested prefab").
				WithPath(rel).
				WithInstance(key).
				WithContext("nested_path", source))
			allOK = false
			continue
		}

		if nt, ok := l.registry.Find(nested); ok && nt.LoadedWithErrors {
			l.logger.Warn(ctx, nil, "Nested prefab loaded with errors",
				"path", rel, "instance", key, "nested_path", nt.Path)
			allOK = false
		}
	}

	return allOK
}

func instanceSource(entry *document.Value) (string, bool) {
	if entry == nil || !entry.IsMap() {
		return "", false
	}
	v, ok := entry.Get(fieldSource)
	if !ok {
		return "", false
	}
	s, ok := v.AsString()
	return s, ok && s != ""
}

// report logs err and records it in the collector.
func (l *Loader) report(ctx context.Context, err error) {
	fields := []interface{}{"code", errors.CodeOf(err)}
	var pe *errors.PrefabError
	if errors.As(err, &pe) {
		if pe.FilePath != "" {
			fields = append(fields, "path", pe.FilePath)
		}
		if pe.Instance != "" {
			fields = append(fields, "instance", pe.Instance)
		}
		if nested, ok := pe.Context["nested_path"]; ok {
			fields = append(fields, "nested_path", nested)
		}
	}
	l.logger.Error(ctx, err, "Prefab load failed", fields...)

	if l.collector != nil {
		l.collector.AddError(err)
	}
}

// recordHash stores the content hash of data when the registry keeps hashes.
func (l *Loader) recordHash(ctx context.Context, id registry.TemplateID, rel string, data []byte) {
	hr, ok := l.registry.(hashRecorder)
	if !ok {
		return
	}
	if err := hr.SetHash(id, registry.ContentHash(data)); err != nil {
		l.warn(ctx, err, "Failed to record content hash", rel)
	}
}

// warn logs err as a warning and records it in the collector.
func (l *Loader) warn(ctx context.Context, err error, msg string, path string) {
	l.logger.Warn(ctx, err, msg, "path", path)
	if l.collector != nil {
		l.collector.Add(errors.Diagnostic{Severity: errors.SeverityWarning, Path: path, Err: err})
	}
}
