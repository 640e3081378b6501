package prefab

import (
	"context"
	"path"

	"github.com/spf13/afero"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/paths"
	"github.com/conneroisu/prefab/internal/registry"
)

// Collapse returns the on-disk form of template id together with its
// canonical path: defaults stripped, each linked instance replaced by its
// link document and the transient origin removed.
func (l *Loader) Collapse(ctx context.Context, id registry.TemplateID) (document.Value, string, error) {
	tmpl, ok := l.registry.Find(id)
	if !ok {
		return document.Value{}, "", errors.Newf(errors.CodeNotFound, "template %d not found", id)
	}
	if !tmpl.IsValid() {
		return document.Value{}, "", errors.Newf(errors.CodeInvalidTemplate, "template %d is invalid", id).WithPath(tmpl.Path)
	}

	doc := tmpl.Document.Clone()

	if err := l.normalizer.Strip(&doc); err != nil {
		l.warn(ctx, err, "Failed to strip defaults, saving expanded document", tmpl.Path)
	}

	for _, linkID := range tmpl.Links {
		link, ok := l.registry.FindLink(linkID)
		if !ok {
			return document.Value{}, "", errors.Newf(errors.CodeLinkNotFound, "link %d not found", linkID).WithPath(tmpl.Path)
		}
		if !link.IsValid() {
			return document.Value{}, "", errors.Newf(errors.CodeLinkInvalid, "link %d is invalid", linkID).
				WithPath(tmpl.Path).
				WithInstance(link.InstanceKey)
		}
		if _, ok := link.InstancePath.Get(&doc); !ok {
			return document.Value{}, "", errors.Newf(errors.CodeInstanceLocationMissing, "%s not found in document", link.InstancePath).
				WithPath(tmpl.Path).
				WithInstance(link.InstanceKey)
		}
		if err := link.InstancePath.Set(&doc, link.Document.Clone()); err != nil {
			return document.Value{}, "", errors.Wrap(err, errors.CodeInstanceLocationMissing, "failed to restore instance").
				WithPath(tmpl.Path).
				WithInstance(link.InstanceKey)
		}
	}

	doc.Delete(fieldOrigin)

	return doc, tmpl.Path, nil
}

// Save writes template id back to the file it was loaded from.
func (l *Loader) Save(ctx context.Context, id registry.TemplateID) error {
	doc, rel, err := l.Collapse(ctx, id)
	if err != nil {
		return err
	}

	return l.write(ctx, id, rel, l.resolver.ToAbsolute(rel), doc)
}

// SaveTo writes template id to absolutePath, which must name the file the
// template was loaded from. On a mismatch nothing is written.
func (l *Loader) SaveTo(ctx context.Context, id registry.TemplateID, absolutePath string) error {
	if !l.resolver.IsValidPath(absolutePath) || !paths.IsAbs(absolutePath) {
		return errors.Newf(errors.CodeInvalidPath, "save path %q must be absolute", absolutePath).WithPath(absolutePath)
	}

	tmpl, ok := l.registry.Find(id)
	if !ok {
		return errors.Newf(errors.CodeNotFound, "template %d not found", id)
	}

	if rel := l.resolver.ToCanonicalRelative(absolutePath); rel != tmpl.Path {
		return errors.Newf(errors.CodePathIdentityMismatch, "%q resolves to %q", absolutePath, rel).
			WithPath(tmpl.Path).
			WithContext("save_path", absolutePath)
	}

	doc, rel, err := l.Collapse(ctx, id)
	if err != nil {
		return err
	}

	return l.write(ctx, id, rel, absolutePath, doc)
}

// SaveToString returns the serialized on-disk form of template id. The dirty
// flag is left alone.
func (l *Loader) SaveToString(ctx context.Context, id registry.TemplateID) (string, error) {
	doc, rel, err := l.Collapse(ctx, id)
	if err != nil {
		return "", err
	}

	data, err := l.serialize(rel, doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (l *Loader) serialize(rel string, doc document.Value) ([]byte, error) {
	data, err := codec.ForPath(rel, l.codecOpts...).Serialize(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeSerialize, "failed to serialize prefab").WithPath(rel)
	}
	return data, nil
}

func (l *Loader) write(ctx context.Context, id registry.TemplateID, rel, absolutePath string, doc document.Value) error {
	data, err := l.serialize(rel, doc)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(l.fs, absolutePath, data); err != nil {
		return errors.Wrap(err, errors.CodeWrite, "failed to write prefab").
			WithPath(rel).
			WithContext("file", absolutePath)
	}

	if err := l.registry.SetDirty(id, false); err != nil {
		return err
	}
	l.recordHash(ctx, id, rel, data)

	l.logger.Info(ctx, "Saved prefab", "path", rel, "file", absolutePath, "bytes", len(data))
	return nil
}

// writeFileAtomic writes data to a temporary file next to name and renames
// it into place.
func writeFileAtomic(fs afero.Fs, name string, data []byte) error {
	dir := path.Dir(name)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(fs, dir, "."+path.Base(name)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}
	if err := fs.Rename(tmpName, name); err != nil {
		_ = fs.Remove(tmpName)
		return err
	}

	return nil
}
