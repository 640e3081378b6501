package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefabError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *PrefabError
		expected string
	}{
		{
			name:     "code and message",
			err:      New(CodeNotFound, "template 7 not found"),
			expected: "[ERR_NOT_FOUND] template 7 not found",
		},
		{
			name:     "path and instance",
			err:      New(CodeInvalidInstance, "missing source").WithPath("Levels/Town.prefab").WithInstance("Instance_1"),
			expected: "[ERR_INVALID_INSTANCE] Levels/Town.prefab instance:Instance_1 missing source",
		},
		{
			name:     "with cause",
			err:      NewFileReadError("a.prefab", fmt.Errorf("file does not exist")),
			expected: "[ERR_FILE_READ] a.prefab failed to read prefab file: file does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestPrefabError_IsMatchesTypeAndCode(t *testing.T) {
	err := NewCycleError("Levels/Loop.prefab")

	assert.True(t, errors.Is(err, ErrCycleDetected))
	assert.False(t, errors.Is(err, ErrNotFound))

	wrapped := fmt.Errorf("loading root: %w", err)
	assert.True(t, errors.Is(wrapped, ErrCycleDetected))
	assert.True(t, Is(wrapped, ErrCycleDetected))
}

func TestNew_TakesTypeFromCode(t *testing.T) {
	assert.Equal(t, ErrorTypeGraph, New(CodeCycleDetected, "x").Type)
	assert.True(t, New(CodeCycleDetected, "x").Recoverable)
	assert.Equal(t, ErrorTypeIO, New(CodeWrite, "x").Type)
	assert.False(t, New(CodeWrite, "x").Recoverable)
	assert.Equal(t, ErrorTypeInternal, New("ERR_SOMETHING_ELSE", "x").Type)
}

func TestWrap(t *testing.T) {
	inner := New(CodeParse, "bad json").WithPath("a.prefab").WithInstance("I").WithContext("line", 3)
	outer := Wrap(inner, CodeTemplateCreation, "could not create")

	assert.Equal(t, CodeTemplateCreation, outer.Code)
	assert.Equal(t, "a.prefab", outer.FilePath)
	assert.Equal(t, "I", outer.Instance)
	assert.Equal(t, 3, outer.Context["line"])
	assert.True(t, errors.Is(outer, ErrParse), "inner code remains reachable")
	assert.True(t, HasCode(outer, CodeParse))
	assert.False(t, HasCode(outer, CodeWrite))
	assert.Equal(t, CodeTemplateCreation, CodeOf(outer))
	assert.Same(t, inner, errors.Unwrap(outer))

	noCause := Wrap(nil, CodeWrite, "write failed")
	require.NotNil(t, noCause)
	assert.Nil(t, noCause.Cause)
}

func TestGetRootCause(t *testing.T) {
	root := fmt.Errorf("disk full")
	err := Wrap(Wrap(root, CodeWrite, "a"), CodeWrite, "b")
	assert.Same(t, root, GetRootCause(err))
	assert.Nil(t, GetRootCause(nil))
}

func TestFormatError(t *testing.T) {
	err := New(CodeLinkCreation, "link failed").
		WithContext("target", "Town.prefab").
		WithContext("instance", "Door")

	out := FormatError(err)
	lines := strings.Split(out, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "  instance: Door", lines[1])
	assert.Equal(t, "  target: Town.prefab", lines[2])

	assert.Equal(t, "plain", FormatError(fmt.Errorf("plain")))
	assert.Equal(t, "", FormatError(nil))
}

func TestCollector(t *testing.T) {
	c := NewCollector()
	assert.False(t, c.HasErrors())

	c.Add(Diagnostic{Severity: SeverityWarning, Path: "a.prefab", Err: fmt.Errorf("strip failed")})
	assert.False(t, c.HasErrors())

	c.AddError(New(CodeCycleDetected, "cycle").
		WithPath("b.prefab").
		WithInstance("Loop").
		WithContext("nested_path", "a.prefab"))
	c.AddError(nil)

	assert.True(t, c.HasErrors())
	assert.Len(t, c.Diagnostics(), 2)
	require.Len(t, c.Errors(), 1)
	assert.True(t, errors.Is(c.Errors()[0], ErrCycleDetected))

	byPath := c.ByPath("b.prefab")
	require.Len(t, byPath, 1)
	assert.Equal(t, "Loop", byPath[0].Instance)
	assert.Equal(t, "a.prefab", byPath[0].NestedPath)
	assert.False(t, byPath[0].Timestamp.IsZero())
	assert.Contains(t, byPath[0].Error(), "b.prefab [Loop] -> a.prefab")

	c.Clear()
	assert.Empty(t, c.Diagnostics())
}

func TestSuggestions(t *testing.T) {
	s := Suggestions(NewCycleError("x.prefab"))
	require.NotEmpty(t, s)
	assert.Contains(t, s[0].Command, "x.prefab")

	assert.Nil(t, Suggestions(fmt.Errorf("plain")))
	assert.Nil(t, Suggestions(New(CodeWrite, "x")))

	out := FormatSuggestions("Try:", s)
	assert.True(t, strings.HasPrefix(out, "Try:\n  1. Break the nesting cycle"))
	assert.Equal(t, "", FormatSuggestions("Try:", nil))
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "warning", SeverityWarning.String())
	assert.Equal(t, "unknown", Severity(42).String())
}
