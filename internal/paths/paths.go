// Package paths converts prefab file references between absolute paths and
// canonical root-relative keys.
//
// Every path handed out by this package uses forward slashes. Canonical keys
// are also cleaned and NFC-normalized, so two spellings of the same file map
// to a single key.
package paths

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// AssetLookup answers which source root a path belongs to.
type AssetLookup interface {
	// SourceInfo locates path under a source root, returning the root and
	// the path relative to it.
	SourceInfo(p string) (root, rel string, ok bool)

	// RelativeSourcePath returns p relative to the highest-priority source
	// root that contains it.
	RelativeSourcePath(p string) (rel, root string, ok bool)
}

// Resolver converts between absolute and canonical relative prefab paths.
type Resolver struct {
	projectRoot string
	lookup      AssetLookup
}

// NewResolver creates a Resolver. A nil lookup falls back to projectRoot for
// every conversion.
func NewResolver(projectRoot string, lookup AssetLookup) *Resolver {
	return &Resolver{
		projectRoot: clean(toSlash(projectRoot)),
		lookup:      lookup,
	}
}

// ProjectRoot returns the slash-separated project root.
func (r *Resolver) ProjectRoot() string {
	return r.projectRoot
}

// IsValidPath reports whether p can name a prefab file.
func (r *Resolver) IsValidPath(p string) bool {
	return IsValidPath(p)
}

// ToAbsolute resolves p to an absolute path. Absolute input is returned
// unchanged.
func (r *Resolver) ToAbsolute(p string) string {
	if IsAbs(p) {
		return p
	}

	p = toSlash(p)
	if r.lookup != nil {
		if root, rel, ok := r.lookup.SourceInfo(p); ok {
			return path.Join(root, rel)
		}
	}

	return path.Join(r.projectRoot, p)
}

// ToCanonicalRelative returns the registry key for p.
func (r *Resolver) ToCanonicalRelative(p string) string {
	p = norm.NFC.String(toSlash(p))

	if r.lookup != nil {
		if rel, _, ok := r.lookup.RelativeSourcePath(p); ok {
			return clean(rel)
		}
	}

	if IsAbs(p) {
		if rel, ok := within(r.projectRoot, clean(p)); ok {
			return rel
		}
		return clean(p)
	}

	return clean(p)
}

// IsValidPath reports whether p is non-empty, free of characters the
// operating system forbids in file names and not a directory reference.
func IsValidPath(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasSuffix(p, "/") || strings.HasSuffix(p, `\`) {
		return false
	}

	for i, r := range p {
		switch {
		case r < 0x20 || r == 0x7f:
			return false
		case r == ':':
			if i != 1 || !isDriveLetter(p[0]) {
				return false
			}
		case strings.ContainsRune(`<>"|?*`, r):
			return false
		}
	}

	return true
}

// IsAbs reports whether p is absolute in either POSIX or drive-letter form.
func IsAbs(p string) bool {
	p = toSlash(p)
	if strings.HasPrefix(p, "/") {
		return true
	}
	return len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && p[2] == '/'
}

// GeneratePath returns a file name for a template that has not been saved
// yet.
func GeneratePath() string {
	return "Prefab_" + uuid.New().String()
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

func clean(p string) string {
	if p == "" {
		return ""
	}
	return path.Clean(p)
}

// within returns p relative to root when root lexically contains p.
func within(root, p string) (string, bool) {
	if root == "" {
		return "", false
	}
	if root == "/" {
		rel := strings.TrimPrefix(p, "/")
		return rel, rel != ""
	}
	if !strings.HasPrefix(p, root+"/") {
		return "", false
	}
	return p[len(root)+1:], true
}
