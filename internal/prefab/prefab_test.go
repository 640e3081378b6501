package prefab

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/prefab/internal/codec"
	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
	"github.com/conneroisu/prefab/internal/logging"
	"github.com/conneroisu/prefab/internal/normalize"
	"github.com/conneroisu/prefab/internal/paths"
	"github.com/conneroisu/prefab/internal/registry"
	"github.com/conneroisu/prefab/internal/schema"
)

const projectRoot = "/project"

const doorPrefab = `{
    "ContainerEntity": {
        "Id": "ContainerEntity",
        "Name": "Door"
    },
    "Entities": {
        "Entity_[100]": {
            "Id": "Entity_[100]",
            "Name": "Hinge"
        }
    }
}
`

const housePrefab = `{
    "ContainerEntity": {
        "Id": "ContainerEntity",
        "Name": "House"
    },
    "instances": {
        "Instance_[1]": {
            "source": "Props/Door.prefab",
            "patches": [
                {
                    "op": "replace",
                    "path": "/ContainerEntity/Name",
                    "value": "Front Door"
                }
            ]
        }
    }
}
`

type fixture struct {
	fs        afero.Fs
	registry  *registry.TemplateRegistry
	logger    *logging.MemoryLogger
	collector *errors.Collector
	loader    *Loader
}

func newFixture(t *testing.T, files map[string]string, opts ...Option) *fixture {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, projectRoot+"/"+name, []byte(content), 0o644))
	}
	return newFixtureOnFs(fs, opts...)
}

func newFixtureOnFs(fs afero.Fs, opts ...Option) *fixture {
	f := &fixture{
		fs:        fs,
		registry:  registry.NewTemplateRegistry(),
		logger:    logging.NewMemoryLogger(),
		collector: errors.NewCollector(),
	}

	resolver := paths.NewResolver(projectRoot, paths.NewRootLookup(fs, projectRoot))
	normalizer := normalize.New(schema.NewInstantiator(schema.Default()))

	opts = append([]Option{WithLogger(f.logger), WithCollector(f.collector)}, opts...)
	f.loader = NewLoader(f.registry, resolver, normalizer, fs, opts...)
	return f
}

func (f *fixture) template(t *testing.T, id registry.TemplateID) *registry.Template {
	t.Helper()
	tmpl, ok := f.registry.Find(id)
	require.True(t, ok, "template %d not registered", id)
	return tmpl
}

func (f *fixture) errorsWithCode(code string) []errors.Diagnostic {
	var out []errors.Diagnostic
	for _, d := range f.collector.Diagnostics() {
		if errors.HasCode(d.Err, code) {
			out = append(out, d)
		}
	}
	return out
}

func TestLoadFile_Leaf(t *testing.T) {
	f := newFixture(t, map[string]string{"Props/Door.prefab": doorPrefab})
	scope := NewScope()

	id, err := f.loader.LoadFileInScope(context.Background(), "Props/Door.prefab", scope)
	require.NoError(t, err)
	assert.NotEqual(t, registry.InvalidTemplateID, id)
	assert.Equal(t, 0, scope.Len())

	tmpl := f.template(t, id)
	assert.Equal(t, "Props/Door.prefab", tmpl.Path)
	assert.False(t, tmpl.LoadedWithErrors)
	assert.Empty(t, tmpl.Links)
	assert.Equal(t, registry.ContentHash([]byte(doorPrefab)), tmpl.Hash)

	origin, ok := tmpl.Document.Get("origin")
	require.True(t, ok)
	s, _ := origin.AsString()
	assert.Equal(t, "Props/Door.prefab", s)

	active, ok := document.PointerTo("ContainerEntity", "IsRuntimeActive").Get(&tmpl.Document)
	require.True(t, ok, "defaults are expanded in memory")
	b, _ := active.AsBool()
	assert.True(t, b)

	assert.False(t, f.collector.HasErrors())
}

func TestLoadFile_AbsoluteAndRelativeShareTemplate(t *testing.T) {
	f := newFixture(t, map[string]string{"Props/Door.prefab": doorPrefab})
	ctx := context.Background()

	a, err := f.loader.LoadFile(ctx, "Props/Door.prefab")
	require.NoError(t, err)
	b, err := f.loader.LoadFile(ctx, "/project/Props/Door.prefab")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 1, f.registry.Count())
}

func TestLoadFile_MemoizesAcrossBranches(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Props/Door.prefab": doorPrefab,
		"Levels/Street.prefab": `{
			"instances": {
				"Left":  {"source": "Props/Door.prefab"},
				"Right": {"source": "Props/Door.prefab"}
			}
		}`,
	})

	id, err := f.loader.LoadFile(context.Background(), "Levels/Street.prefab")
	require.NoError(t, err)

	street := f.template(t, id)
	assert.False(t, street.LoadedWithErrors)
	require.Len(t, street.Links, 2)

	door, ok := f.registry.FindByPath("Props/Door.prefab")
	require.True(t, ok)
	for _, linkID := range street.Links {
		link, ok := f.registry.FindLink(linkID)
		require.True(t, ok)
		assert.Equal(t, door, link.Source)
		assert.Equal(t, id, link.Target)
	}
	assert.Equal(t, 2, f.registry.Count())
}

func TestLoadFile_SpellingsOfOnePathDoNotLookCyclic(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Props/Door.prefab": doorPrefab,
		"Levels/Street.prefab": `{
			"instances": {
				"A": {"source": "./Props/Door.prefab"},
				"B": {"source": "Props/Door.prefab"},
				"C": {"source": "/project/Props/Door.prefab"},
				"D": {"source": "Props/../Props/Door.prefab"}
			}
		}`,
	})
	scope := NewScope()

	id, err := f.loader.LoadFileInScope(context.Background(), "Levels/Street.prefab", scope)
	require.NoError(t, err)

	street := f.template(t, id)
	assert.False(t, street.LoadedWithErrors)
	assert.Len(t, street.Links, 4)
	assert.Equal(t, 2, f.registry.Count())
	assert.Empty(t, f.errorsWithCode(errors.CodeCycleDetected))
	assert.Equal(t, 0, scope.Len())
}

func TestLoadFile_DirectSelfReference(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Loop.prefab": `{"instances": {"Self": {"source": "Loop.prefab"}}}`,
	})
	scope := NewScope()

	id, err := f.loader.LoadFileInScope(context.Background(), "Loop.prefab", scope)
	require.NoError(t, err)
	assert.Equal(t, 0, scope.Len())

	loop := f.template(t, id)
	assert.True(t, loop.LoadedWithErrors)
	assert.Empty(t, loop.Links)
	assert.Equal(t, 1, f.registry.Count())

	cycles := f.errorsWithCode(errors.CodeCycleDetected)
	require.Len(t, cycles, 1)
	assert.Equal(t, "Loop.prefab", cycles[0].Path)
	assert.Equal(t, "Self", cycles[0].Instance)
	assert.Equal(t, "Loop.prefab", cycles[0].NestedPath)
	assert.True(t, stderrors.Is(cycles[0].Err, errors.ErrCycleDetected))

	logged := f.logger.EntriesAt(logging.LevelError)
	require.Len(t, logged, 1)
	assert.Equal(t, errors.CodeCycleDetected, logged[0].Fields["code"])
	assert.Equal(t, "Self", logged[0].Fields["instance"])
}

func TestLoadFile_TransitiveSelfReference(t *testing.T) {
	f := newFixture(t, map[string]string{
		"A.prefab": `{"instances": {"ToB": {"source": "B.prefab"}}}`,
		"B.prefab": `{"instances": {"ToA": {"source": "A.prefab"}}}`,
	})
	scope := NewScope()

	aID, err := f.loader.LoadFileInScope(context.Background(), "A.prefab", scope)
	require.NoError(t, err)
	assert.Equal(t, 0, scope.Len())

	bID, ok := f.registry.FindByPath("B.prefab")
	require.True(t, ok)

	a := f.template(t, aID)
	b := f.template(t, bID)
	assert.True(t, a.LoadedWithErrors, "error flag propagates upwards")
	assert.True(t, b.LoadedWithErrors)
	assert.Len(t, a.Links, 1, "link to a flagged source is kept")
	assert.Empty(t, b.Links)
	assert.Equal(t, 2, f.registry.Count())

	cycles := f.errorsWithCode(errors.CodeCycleDetected)
	require.Len(t, cycles, 1)
	assert.Equal(t, "B.prefab", cycles[0].Path)
	assert.Equal(t, "ToA", cycles[0].Instance)

	assert.Empty(t, f.registry.DetectCycles())
}

func TestLoadFile_SiblingPartialFailure(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		files   map[string]string
		errCode string
	}{
		{
			name:    "missing source",
			source:  "Props/Missing.prefab",
			errCode: errors.CodeFileRead,
		},
		{
			name:    "source fails to parse",
			source:  "Props/Broken.prefab",
			files:   map[string]string{"Props/Broken.prefab": `{"x": `},
			errCode: errors.CodeParse,
		},
		{
			name:    "source is not a map",
			source:  "Props/List.prefab",
			files:   map[string]string{"Props/List.prefab": `[1, 2]`},
			errCode: errors.CodeParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{
				"Props/Door.prefab": doorPrefab,
				"Levels/Town.prefab": `{
					"instances": {
						"Good": {"source": "Props/Door.prefab"},
						"Bad":  {"source": "` + tt.source + `"}
					}
				}`,
			}
			for name, content := range tt.files {
				files[name] = content
			}
			f := newFixture(t, files)

			id, err := f.loader.LoadFile(context.Background(), "Levels/Town.prefab")
			require.NoError(t, err)

			town := f.template(t, id)
			assert.True(t, town.IsValid())
			assert.True(t, town.LoadedWithErrors)
			require.Len(t, town.Links, 1)
			assert.Equal(t, 1, f.registry.LinkCount())

			link, _ := f.registry.FindLink(town.Links[0])
			assert.Equal(t, "Good", link.InstanceKey)

			doorID, _ := f.registry.FindByPath("Props/Door.prefab")
			assert.False(t, f.template(t, doorID).LoadedWithErrors)
			_, ok := f.registry.FindByPath(tt.source)
			assert.False(t, ok)
			assert.Equal(t, 2, f.registry.Count())

			failures := f.errorsWithCode(tt.errCode)
			require.Len(t, failures, 1)
			assert.Equal(t, "Levels/Town.prefab", failures[0].Path)
			assert.Equal(t, "Bad", failures[0].Instance)
			assert.Equal(t, tt.source, failures[0].NestedPath)
		})
	}
}

func TestLoadFile_FlagPropagatesThroughMemoizedTemplate(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Loop.prefab":    `{"instances": {"Self": {"source": "Loop.prefab"}}}`,
		"Wrapper.prefab": `{"instances": {"L": {"source": "Loop.prefab"}}}`,
	})
	ctx := context.Background()

	_, err := f.loader.LoadFile(ctx, "Loop.prefab")
	require.NoError(t, err)

	id, err := f.loader.LoadFile(ctx, "Wrapper.prefab")
	require.NoError(t, err)

	wrapper := f.template(t, id)
	assert.True(t, wrapper.LoadedWithErrors)
	assert.Len(t, wrapper.Links, 1)
}

func TestLoadFile_NestingTooDeep(t *testing.T) {
	f := newFixture(t, map[string]string{
		"A.prefab": `{"instances": {"B": {"source": "B.prefab"}}}`,
		"B.prefab": `{"instances": {"C": {"source": "C.prefab"}}}`,
		"C.prefab": `{}`,
	}, WithMaxDepth(2))

	id, err := f.loader.LoadFile(context.Background(), "A.prefab")
	require.NoError(t, err)
	assert.True(t, f.template(t, id).LoadedWithErrors)

	_, ok := f.registry.FindByPath("C.prefab")
	assert.False(t, ok)
	assert.Len(t, f.errorsWithCode(errors.CodeNestingTooDeep), 1)
}

func TestLoadFile_InvalidInstances(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code string
	}{
		{"missing source", `{"instances": {"X": {"patches": []}}}`, errors.CodeInvalidInstance},
		{"empty source", `{"instances": {"X": {"source": ""}}}`, errors.CodeInvalidInstance},
		{"source not a string", `{"instances": {"X": {"source": 4}}}`, errors.CodeInvalidInstance},
		{"entry not an object", `{"instances": {"X": "Props/Door.prefab"}}`, errors.CodeInvalidInstance},
		{"invalid key", `{"instances": {"Bad|Key": {"source": "Props/Door.prefab"}}}`, errors.CodeInvalidPath},
		{"instances not an object", `{"instances": ["Props/Door.prefab"]}`, errors.CodeInvalidInstance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{
				"Props/Door.prefab": doorPrefab,
				"Root.prefab":       tt.doc,
			})

			id, err := f.loader.LoadFile(context.Background(), "Root.prefab")
			require.NoError(t, err)

			root := f.template(t, id)
			assert.True(t, root.LoadedWithErrors)
			assert.Empty(t, root.Links)
			assert.NotEmpty(t, f.errorsWithCode(tt.code))
		})
	}
}

func TestLoadFile_RootFailures(t *testing.T) {
	tests := []struct {
		name string
		path string
		want error
	}{
		{"empty path", "", errors.ErrInvalidPath},
		{"trailing separator", "Props/", errors.ErrInvalidPath},
		{"missing file", "Props/Nowhere.prefab", errors.ErrFileRead},
		{"bad json", "Broken.prefab", errors.ErrParse},
		{"not an object", "List.prefab", errors.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, map[string]string{
				"Broken.prefab": `{"instances": `,
				"List.prefab":   `[1, 2, 3]`,
			})

			id, err := f.loader.LoadFile(context.Background(), tt.path)
			assert.Equal(t, registry.InvalidTemplateID, id)
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, tt.want), err.Error())
			assert.Equal(t, 0, f.registry.Count())
			assert.True(t, f.collector.HasErrors())
		})
	}
}

func TestLoadFile_NormalizationFailureKeepsLinks(t *testing.T) {
	broken := `{"ContainerEntity": {"Name": 5}, "instances": {"D": {"source": "Props/Door.prefab"}}}`
	f := newFixture(t, map[string]string{
		"Props/Door.prefab": doorPrefab,
		"Broken.prefab":     broken,
	})
	ctx := context.Background()

	id, err := f.loader.LoadFile(ctx, "Broken.prefab")
	require.NoError(t, err)

	tmpl := f.template(t, id)
	assert.True(t, tmpl.LoadedWithErrors)
	assert.Len(t, tmpl.Links, 1)
	assert.Len(t, f.errorsWithCode(errors.CodeNormalization), 1)

	// Saving still works: the strip failure is only a warning.
	doc, rel, err := f.loader.Collapse(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Broken.prefab", rel)

	want, err := (&codec.JSON{}).Parse([]byte(broken))
	require.NoError(t, err)
	assert.True(t, document.Equal(want, doc))

	warnings := f.logger.EntriesAt(logging.LevelWarn)
	var stripWarned bool
	for _, w := range warnings {
		if w.Message == "Failed to strip defaults, saving expanded document" {
			stripWarned = true
		}
	}
	assert.True(t, stripWarned)
}

func TestLoadString(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	id, err := f.loader.LoadString(ctx, doorPrefab, "Props/Inline.prefab")
	require.NoError(t, err)
	assert.Equal(t, "Props/Inline.prefab", f.template(t, id).Path)

	again, err := f.loader.LoadString(ctx, `{"something": "else"}`, "/project/Props/Inline.prefab")
	require.NoError(t, err)
	assert.Equal(t, id, again, "an already registered path is not parsed again")

	_, err = f.loader.LoadString(ctx, `not json`, "Props/Other.prefab")
	assert.True(t, stderrors.Is(err, errors.ErrParse))
}

func TestLoadString_NestedFromDisk(t *testing.T) {
	f := newFixture(t, map[string]string{"Props/Door.prefab": doorPrefab})

	id, err := f.loader.LoadString(context.Background(), housePrefab, "Levels/House.prefab")
	require.NoError(t, err)
	assert.Len(t, f.template(t, id).Links, 1)
}

func TestLoadFile_YAML(t *testing.T) {
	f := newFixture(t, map[string]string{
		"Props/Door.prefab": doorPrefab,
		"Props/Lamp.yaml": `
ContainerEntity:
  Id: ContainerEntity
  Name: Lamp
instances:
  Door:
    source: Props/Door.prefab
`,
	})
	ctx := context.Background()

	id, err := f.loader.LoadFile(ctx, "Props/Lamp.yaml")
	require.NoError(t, err)
	assert.False(t, f.template(t, id).LoadedWithErrors)

	out, err := f.loader.SaveToString(ctx, id)
	require.NoError(t, err)

	got, err := (&codec.YAML{}).Parse([]byte(out))
	require.NoError(t, err)
	want := document.Map(
		document.Field("ContainerEntity", document.Map(
			document.Field("Id", document.String("ContainerEntity")),
			document.Field("Name", document.String("Lamp")),
		)),
		document.Field("instances", document.Map(
			document.Field("Door", document.Map(document.Field("source", document.String("Props/Door.prefab")))),
		)),
	)
	assert.True(t, document.Equal(want, got), out)
}
