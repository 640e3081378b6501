//go:build property
// +build property

package paths

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPathProperties tests path validation and canonicalization properties
func TestPathProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	r := NewResolver("/project", nil)

	// Property: canonicalization is idempotent
	properties.Property("canonical key is a fixed point", prop.ForAll(
		func(p string) bool {
			once := r.ToCanonicalRelative(p)
			return once == r.ToCanonicalRelative(once)
		},
		gen.RegexMatch(`^[a-zA-Z0-9_./\\]{1,40}$`),
	))

	// Property: project-relative and absolute spellings share one key
	properties.Property("absolute and relative spellings agree", prop.ForAll(
		func(p string) bool {
			return r.ToCanonicalRelative(p) == r.ToCanonicalRelative("/project/"+p)
		},
		gen.RegexMatch(`^[a-z]{1,8}(/[a-z]{1,8}){0,3}\.prefab$`),
	))

	// Property: forbidden characters always invalidate a path
	properties.Property("forbidden characters rejected", prop.ForAll(
		func(prefix string, bad rune) bool {
			return !IsValidPath(prefix + string(bad) + ".prefab")
		},
		gen.RegexMatch(`^[a-z]{0,10}$`),
		gen.OneConstOf('<', '>', '"', '|', '?', '*', '\x00', '\n'),
	))

	// Property: trailing separators are never valid
	properties.Property("trailing separator rejected", prop.ForAll(
		func(p string, sep string) bool {
			return !IsValidPath(p + sep)
		},
		gen.RegexMatch(`^[a-z/]{0,20}$`),
		gen.OneConstOf("/", `\`),
	))

	// Property: valid relative paths resolve under the project root
	properties.Property("relative paths resolve under root", prop.ForAll(
		func(p string) bool {
			if !IsValidPath(p) {
				return true
			}
			return strings.HasPrefix(r.ToAbsolute(p), "/project/")
		},
		gen.RegexMatch(`^[a-z]{1,8}(/[a-z]{1,8}){0,3}\.prefab$`),
	))

	properties.TestingRun(t)
}
