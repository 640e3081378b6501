package paths

import (
	"path"

	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// RootLookup is an AssetLookup over a priority-ordered list of source roots.
type RootLookup struct {
	fs    afero.Fs
	roots []string
}

// NewRootLookup creates a lookup. Earlier roots win over later ones.
func NewRootLookup(fs afero.Fs, roots ...string) *RootLookup {
	cleaned := make([]string, 0, len(roots))
	for _, root := range roots {
		if root == "" {
			continue
		}
		cleaned = append(cleaned, clean(norm.NFC.String(toSlash(root))))
	}

	return &RootLookup{fs: fs, roots: cleaned}
}

// Roots returns the source roots in priority order.
func (l *RootLookup) Roots() []string {
	out := make([]string, len(l.roots))
	copy(out, l.roots)
	return out
}

// SourceInfo finds the first root holding p. Relative paths must exist on the
// file system under the root; absolute paths only need to lie inside it.
func (l *RootLookup) SourceInfo(p string) (string, string, bool) {
	p = toSlash(p)
	if IsAbs(p) {
		rel, root, ok := l.RelativeSourcePath(p)
		return root, rel, ok
	}

	rel := clean(p)
	for _, root := range l.roots {
		exists, err := afero.Exists(l.fs, path.Join(root, rel))
		if err == nil && exists {
			return root, rel, true
		}
	}

	return "", "", false
}

// RelativeSourcePath returns p relative to the first root that contains it.
// Relative input is never resolved.
func (l *RootLookup) RelativeSourcePath(p string) (string, string, bool) {
	p = toSlash(p)
	if !IsAbs(p) {
		return "", "", false
	}

	p = clean(p)
	for _, root := range l.roots {
		if rel, ok := within(root, p); ok {
			return rel, root, true
		}
	}

	return "", "", false
}
