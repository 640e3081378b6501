// Package registry owns loaded prefab templates and the links between them.
//
// Templates and links live in an arena keyed by integer ids. Id 0 is never
// issued and serves as the invalid id. Every template is also indexed by its
// canonical path, which is unique for the lifetime of the registry.
package registry

import (
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
)

// TemplateID identifies a template within one registry.
type TemplateID uint64

// LinkID identifies a link within one registry.
type LinkID uint64

const (
	InvalidTemplateID TemplateID = 0
	InvalidLinkID     LinkID     = 0
)

// Template is one loaded prefab document.
type Template struct {
	ID               TemplateID
	Path             string
	Document         document.Value
	Links            []LinkID
	LoadedWithErrors bool
	Dirty            bool
	Hash             string
	LoadedAt         time.Time
}

// IsValid reports whether the template has a path and a map document.
func (t *Template) IsValid() bool {
	return t != nil && t.Path != "" && t.Document.IsMap()
}

// Link records that Target nests Source under an instance entry.
type Link struct {
	ID           LinkID
	Source       TemplateID
	Target       TemplateID
	InstanceKey  string
	InstancePath document.Pointer
	Document     document.Value
}

// IsValid reports whether both ends of the link are set.
func (l *Link) IsValid() bool {
	return l != nil && l.Source != InvalidTemplateID && l.Target != InvalidTemplateID && !l.InstancePath.IsRoot()
}

// Event represents a change in the template registry
type Event struct {
	Type       EventType
	TemplateID TemplateID
	LinkID     LinkID
	Path       string
	Timestamp  time.Time
}

// EventType represents the type of registry event
type EventType int

const (
	EventTypeTemplateAdded EventType = iota
	EventTypeTemplateRemoved
	EventTypeLinkAdded
	EventTypeDirtyChanged
)

// String returns the string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventTypeTemplateAdded:
		return "template_added"
	case EventTypeTemplateRemoved:
		return "template_removed"
	case EventTypeLinkAdded:
		return "link_added"
	case EventTypeDirtyChanged:
		return "dirty_changed"
	default:
		return "unknown"
	}
}

// TemplateRegistry manages all loaded templates
type TemplateRegistry struct {
	templates  map[TemplateID]*Template
	links      map[LinkID]*Link
	byPath     map[string]TemplateID
	nextID     TemplateID
	nextLinkID LinkID
	mutex      sync.RWMutex
	watchers   []chan Event
}

// NewTemplateRegistry creates a new template registry
func NewTemplateRegistry() *TemplateRegistry {
	return &TemplateRegistry{
		templates: make(map[TemplateID]*Template),
		links:     make(map[LinkID]*Link),
		byPath:    make(map[string]TemplateID),
		watchers:  make([]chan Event, 0),
	}
}

// ContentHash returns the blake3 hash of the bytes a template was read from.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FindByPath returns the template registered under a canonical path.
func (r *TemplateRegistry) FindByPath(path string) (TemplateID, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, ok := r.byPath[path]
	return id, ok
}

// Create registers a new template for path. The document must be a map and
// the path must not be registered yet.
func (r *TemplateRegistry) Create(path string, doc document.Value) (TemplateID, error) {
	if path == "" {
		return InvalidTemplateID, errors.New(errors.CodeInvalidPath, "template path is empty")
	}
	if !doc.IsMap() {
		return InvalidTemplateID, errors.Newf(errors.CodeInvalidTemplate, "template document is a %s, not a map", doc.Kind()).WithPath(path)
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.byPath[path]; ok {
		return InvalidTemplateID, errors.Newf(errors.CodeTemplateCreation, "path already registered as template %d", existing).WithPath(path)
	}

	r.nextID++
	id := r.nextID
	r.templates[id] = &Template{
		ID:       id,
		Path:     path,
		Document: doc,
		LoadedAt: time.Now(),
	}
	r.byPath[path] = id

	r.notify(Event{Type: EventTypeTemplateAdded, TemplateID: id, Path: path})

	return id, nil
}

// Find retrieves a template by id. The returned template is owned by the
// registry; callers mutate it only from the goroutine that is loading it.
func (r *TemplateRegistry) Find(id TemplateID) (*Template, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	t, ok := r.templates[id]
	return t, ok
}

// CreateLink links source into target under instances[key]. The current
// instance entry becomes the link document, and the entry itself is replaced
// by a copy of the source document carrying the entry's source and patches.
func (r *TemplateRegistry) CreateLink(source, target TemplateID, key string) (LinkID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	src, ok := r.templates[source]
	if !ok {
		return InvalidLinkID, errors.Newf(errors.CodeNotFound, "source template %d not found", source)
	}
	tgt, ok := r.templates[target]
	if !ok {
		return InvalidLinkID, errors.Newf(errors.CodeNotFound, "target template %d not found", target)
	}

	at := document.PointerTo("instances", key)
	entry, ok := at.Get(&tgt.Document)
	if !ok || !entry.IsMap() {
		return InvalidLinkID, errors.New(errors.CodeInstanceLocationMissing, "instance entry missing from target document").
			WithPath(tgt.Path).
			WithInstance(key)
	}
	linkDoc := entry.Clone()

	realized := src.Document.Clone()
	realized.Delete("origin")
	for _, field := range []string{"source", "patches"} {
		if v, ok := linkDoc.Get(field); ok {
			realized.Set(field, v.Clone())
		}
	}
	if err := at.Set(&tgt.Document, realized); err != nil {
		return InvalidLinkID, errors.Wrap(err, errors.CodeInstanceLocationMissing, "failed to realize instance").
			WithPath(tgt.Path).
			WithInstance(key)
	}

	r.nextLinkID++
	id := r.nextLinkID
	r.links[id] = &Link{
		ID:           id,
		Source:       source,
		Target:       target,
		InstanceKey:  key,
		InstancePath: at,
		Document:     linkDoc,
	}
	tgt.Links = append(tgt.Links, id)

	r.notify(Event{Type: EventTypeLinkAdded, TemplateID: target, LinkID: id, Path: tgt.Path})

	return id, nil
}

// FindLink retrieves a link by id
func (r *TemplateRegistry) FindLink(id LinkID) (*Link, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	l, ok := r.links[id]
	return l, ok
}

// SetDirty marks a template as modified since it was last saved.
func (r *TemplateRegistry) SetDirty(id TemplateID, dirty bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "template %d not found", id)
	}
	if t.Dirty == dirty {
		return nil
	}
	t.Dirty = dirty

	r.notify(Event{Type: EventTypeDirtyChanged, TemplateID: id, Path: t.Path})

	return nil
}

// SetHash records the content hash a template was parsed from.
func (r *TemplateRegistry) SetHash(id TemplateID, hash string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return errors.Newf(errors.CodeNotFound, "template %d not found", id)
	}
	t.Hash = hash

	return nil
}

// Remove deletes a template together with every link touching it.
func (r *TemplateRegistry) Remove(id TemplateID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	t, ok := r.templates[id]
	if !ok {
		return
	}

	for linkID, l := range r.links {
		if l.Source != id && l.Target != id {
			continue
		}
		if other, ok := r.templates[l.Target]; ok && l.Target != id {
			other.Links = removeLinkID(other.Links, linkID)
		}
		delete(r.links, linkID)
	}

	delete(r.templates, id)
	delete(r.byPath, t.Path)

	r.notify(Event{Type: EventTypeTemplateRemoved, TemplateID: id, Path: t.Path})
}

func removeLinkID(ids []LinkID, id LinkID) []LinkID {
	out := ids[:0]
	for _, l := range ids {
		if l != id {
			out = append(out, l)
		}
	}
	return out
}

// All returns every template ordered by id
func (r *TemplateRegistry) All() []*Template {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

// Count returns the number of registered templates
func (r *TemplateRegistry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.templates)
}

// LinkCount returns the number of registered links
func (r *TemplateRegistry) LinkCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return len(r.links)
}

// Watch returns a channel that receives registry events
func (r *TemplateRegistry) Watch() <-chan Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ch := make(chan Event, 100)
	r.watchers = append(r.watchers, ch)
	return ch
}

// UnWatch removes a watcher channel and closes it
func (r *TemplateRegistry) UnWatch(ch <-chan Event) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for i, watcher := range r.watchers {
		if watcher == ch {
			close(watcher)
			r.watchers = append(r.watchers[:i], r.watchers[i+1:]...)
			break
		}
	}
}

// notify must be called with the mutex held.
func (r *TemplateRegistry) notify(event Event) {
	event.Timestamp = time.Now()
	for _, watcher := range r.watchers {
		select {
		case watcher <- event:
		default:
			// Skip if channel is full
		}
	}
}
