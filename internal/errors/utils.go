package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Wrap wraps err with a code. When err is already a PrefabError its path,
// instance and context carry over. A nil err yields an error without cause.
func Wrap(err error, code, message string) *PrefabError {
	wrapped := New(code, message)
	if err == nil {
		return wrapped
	}
	wrapped.Cause = err

	var pe *PrefabError
	if errors.As(err, &pe) {
		wrapped.FilePath = pe.FilePath
		wrapped.Instance = pe.Instance
		for k, v := range pe.Context {
			wrapped.WithContext(k, v)
		}
	}

	return wrapped
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// Join returns an error wrapping the given errors, discarding nils.
func Join(errs ...error) error { return errors.Join(errs...) }

// HasCode checks whether err's chain holds a PrefabError with code.
func HasCode(err error, code string) bool {
	for err != nil {
		var pe *PrefabError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Code == code {
			return true
		}
		err = pe.Cause
	}

	return false
}

// CodeOf returns the code of the outermost PrefabError in err's chain.
func CodeOf(err error) string {
	var pe *PrefabError
	if errors.As(err, &pe) {
		return pe.Code
	}

	return ""
}

// IsRecoverable checks if an error is recoverable.
func IsRecoverable(err error) bool {
	var pe *PrefabError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// GetRootCause returns the innermost error in the chain.
func GetRootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// FormatError formats an error for terminal output, listing its context
// keys in sorted order.
func FormatError(err error) string {
	if err == nil {
		return ""
	}

	var pe *PrefabError
	if !errors.As(err, &pe) || len(pe.Context) == 0 {
		return err.Error()
	}

	keys := make([]string, 0, len(pe.Context))
	for k := range pe.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(err.Error())
	for _, k := range keys {
		fmt.Fprintf(&b, "\n  %s: %v", k, pe.Context[k])
	}

	return b.String()
}
