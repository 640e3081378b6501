package errors

import (
	"fmt"
	"sync"
	"time"
)

// Severity represents the severity of a diagnostic
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

// String returns the string representation of the severity
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Diagnostic is one problem found while loading or saving a prefab.
type Diagnostic struct {
	Severity   Severity
	Path       string
	Instance   string
	NestedPath string
	Err        error
	Timestamp  time.Time
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	msg := fmt.Sprintf("%s: %s", d.Severity, d.Path)
	if d.Instance != "" {
		msg += " [" + d.Instance + "]"
	}
	if d.NestedPath != "" {
		msg += " -> " + d.NestedPath
	}
	if d.Err != nil {
		msg += ": " + d.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (d *Diagnostic) Unwrap() error {
	return d.Err
}

// Collector collects diagnostics. It is safe for concurrent use.
type Collector struct {
	diagnostics []Diagnostic
	mutex       sync.RWMutex
}

// NewCollector creates a new collector
func NewCollector() *Collector {
	return &Collector{
		diagnostics: make([]Diagnostic, 0),
	}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	d.Timestamp = time.Now()
	c.diagnostics = append(c.diagnostics, d)
}

// AddError records err as an error diagnostic, taking path and instance from
// a PrefabError when present.
func (c *Collector) AddError(err error) {
	if err == nil {
		return
	}

	d := Diagnostic{Severity: SeverityError, Err: err}
	var pe *PrefabError
	if As(err, &pe) {
		d.Path = pe.FilePath
		d.Instance = pe.Instance
		if nested, ok := pe.Context["nested_path"].(string); ok {
			d.NestedPath = nested
		}
	}
	c.Add(d)
}

// Diagnostics returns a copy of every collected diagnostic.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	result := make([]Diagnostic, len(c.diagnostics))
	copy(result, c.diagnostics)
	return result
}

// Errors returns the collected diagnostics of at least error severity.
func (c *Collector) Errors() []error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	errs := make([]error, 0, len(c.diagnostics))
	for i := range c.diagnostics {
		if c.diagnostics[i].Severity >= SeverityError {
			d := c.diagnostics[i]
			errs = append(errs, &d)
		}
	}
	return errs
}

// HasErrors returns true if any diagnostic has at least error severity
func (c *Collector) HasErrors() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	for _, d := range c.diagnostics {
		if d.Severity >= SeverityError {
			return true
		}
	}
	return false
}

// ByPath returns the diagnostics reported against path
func (c *Collector) ByPath(path string) []Diagnostic {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	var out []Diagnostic
	for _, d := range c.diagnostics {
		if d.Path == path {
			out = append(out, d)
		}
	}
	return out
}

// Clear removes all diagnostics
func (c *Collector) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.diagnostics = c.diagnostics[:0]
}
