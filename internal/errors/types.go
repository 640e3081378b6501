// Package errors provides the structured error type used across prefab
// loading and saving, plus a collector for load diagnostics.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeGraph      ErrorType = "graph"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeParse      ErrorType = "parse"
	ErrorTypeRegistry   ErrorType = "registry"
	ErrorTypeSchema     ErrorType = "schema"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeInternal   ErrorType = "internal"
)

// Error codes.
const (
	CodeInvalidPath             = "ERR_INVALID_PATH"
	CodeCycleDetected           = "ERR_CYCLE_DETECTED"
	CodeFileRead                = "ERR_FILE_READ"
	CodeParse                   = "ERR_PARSE"
	CodeTemplateCreation        = "ERR_TEMPLATE_CREATION"
	CodeLinkCreation            = "ERR_LINK_CREATION"
	CodeNormalization           = "ERR_NORMALIZATION"
	CodeNotFound                = "ERR_NOT_FOUND"
	CodeInvalidTemplate         = "ERR_INVALID_TEMPLATE"
	CodeInstanceLocationMissing = "ERR_INSTANCE_LOCATION_MISSING"
	CodePathIdentityMismatch    = "ERR_PATH_IDENTITY_MISMATCH"
	CodeWrite                   = "ERR_WRITE"
	CodeNestingTooDeep          = "ERR_NESTING_TOO_DEEP"
	CodeInvalidInstance         = "ERR_INVALID_INSTANCE"
	CodeLinkNotFound            = "ERR_LINK_NOT_FOUND"
	CodeLinkInvalid             = "ERR_LINK_INVALID"
	CodeSerialize               = "ERR_SERIALIZE"
	CodeConfigInvalid           = "ERR_CONFIG_INVALID"
)

type codeInfo struct {
	errType     ErrorType
	recoverable bool
	summary     string
}

var codes = map[string]codeInfo{
	CodeInvalidPath:             {ErrorTypeValidation, true, "invalid prefab path"},
	CodeCycleDetected:           {ErrorTypeGraph, true, "cyclic prefab dependency"},
	CodeFileRead:                {ErrorTypeIO, true, "failed to read prefab file"},
	CodeParse:                   {ErrorTypeParse, true, "failed to parse prefab document"},
	CodeTemplateCreation:        {ErrorTypeRegistry, true, "failed to create template"},
	CodeLinkCreation:            {ErrorTypeRegistry, true, "failed to create link"},
	CodeNormalization:           {ErrorTypeSchema, true, "failed to normalize document"},
	CodeNotFound:                {ErrorTypeRegistry, false, "template not found"},
	CodeInvalidTemplate:         {ErrorTypeRegistry, false, "template is invalid"},
	CodeInstanceLocationMissing: {ErrorTypeGraph, false, "instance location missing from document"},
	CodePathIdentityMismatch:    {ErrorTypeValidation, false, "save path does not match template path"},
	CodeWrite:                   {ErrorTypeIO, false, "failed to write prefab file"},
	CodeNestingTooDeep:          {ErrorTypeGraph, true, "prefab nesting too deep"},
	CodeInvalidInstance:         {ErrorTypeValidation, true, "invalid nested instance"},
	CodeLinkNotFound:            {ErrorTypeRegistry, false, "link not found"},
	CodeLinkInvalid:             {ErrorTypeRegistry, false, "link is invalid"},
	CodeSerialize:               {ErrorTypeParse, false, "failed to serialize prefab document"},
	CodeConfigInvalid:           {ErrorTypeConfig, false, "invalid configuration"},
}

// Sentinels for use with errors.Is. Matching compares Type and Code only.
var (
	ErrInvalidPath             = sentinel(CodeInvalidPath)
	ErrCycleDetected           = sentinel(CodeCycleDetected)
	ErrFileRead                = sentinel(CodeFileRead)
	ErrParse                   = sentinel(CodeParse)
	ErrTemplateCreation        = sentinel(CodeTemplateCreation)
	ErrLinkCreation            = sentinel(CodeLinkCreation)
	ErrNormalization           = sentinel(CodeNormalization)
	ErrNotFound                = sentinel(CodeNotFound)
	ErrInvalidTemplate         = sentinel(CodeInvalidTemplate)
	ErrInstanceLocationMissing = sentinel(CodeInstanceLocationMissing)
	ErrPathIdentityMismatch    = sentinel(CodePathIdentityMismatch)
	ErrWrite                   = sentinel(CodeWrite)
	ErrNestingTooDeep          = sentinel(CodeNestingTooDeep)
	ErrInvalidInstance         = sentinel(CodeInvalidInstance)
	ErrLinkNotFound            = sentinel(CodeLinkNotFound)
	ErrLinkInvalid             = sentinel(CodeLinkInvalid)
	ErrSerialize               = sentinel(CodeSerialize)
	ErrConfigInvalid           = sentinel(CodeConfigInvalid)
)

func sentinel(code string) *PrefabError {
	info := codes[code]
	return &PrefabError{
		Type:        info.errType,
		Code:        code,
		Message:     info.summary,
		Recoverable: info.recoverable,
	}
}

// PrefabError is a structured error type with context.
type PrefabError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	Context     map[string]interface{}
	FilePath    string
	Instance    string
	Recoverable bool
}

// Error implements the error interface.
func (e *PrefabError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.FilePath != "" {
		parts = append(parts, e.FilePath)
	}

	if e.Instance != "" {
		parts = append(parts, "instance:"+e.Instance)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PrefabError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *PrefabError) Is(target error) bool {
	var t *PrefabError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithContext adds context information to the error.
func (e *PrefabError) WithContext(key string, value interface{}) *PrefabError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value

	return e
}

// WithPath sets the prefab path the error refers to.
func (e *PrefabError) WithPath(path string) *PrefabError {
	e.FilePath = path

	return e
}

// WithInstance sets the nested instance key the error refers to.
func (e *PrefabError) WithInstance(key string) *PrefabError {
	e.Instance = key

	return e
}

// New creates an error for a known code. Type and recoverability come from
// the code.
func New(code, message string) *PrefabError {
	info, ok := codes[code]
	if !ok {
		info = codeInfo{errType: ErrorTypeInternal}
	}

	return &PrefabError{
		Type:        info.errType,
		Code:        code,
		Message:     message,
		Recoverable: info.recoverable,
	}
}

// Newf creates an error for a known code with a formatted message.
func Newf(code, format string, args ...interface{}) *PrefabError {
	return New(code, fmt.Sprintf(format, args...))
}

// NewInvalidPathError reports a path that fails validation.
func NewInvalidPathError(path string) *PrefabError {
	return Newf(CodeInvalidPath, "invalid prefab path %q", path).WithPath(path)
}

// NewCycleError reports that path is already being loaded further up the
// nesting chain.
func NewCycleError(path string) *PrefabError {
	return New(CodeCycleDetected, "prefab nests itself through its own instances").WithPath(path)
}

// NewFileReadError reports a read failure.
func NewFileReadError(path string, cause error) *PrefabError {
	return Wrap(cause, CodeFileRead, "failed to read prefab file").WithPath(path)
}

// NewParseError reports a document that could not be parsed.
func NewParseError(path string, cause error) *PrefabError {
	return Wrap(cause, CodeParse, "failed to parse prefab document").WithPath(path)
}

// NewConfigError creates a configuration error.
func NewConfigError(message string) *PrefabError {
	return New(CodeConfigInvalid, message)
}
