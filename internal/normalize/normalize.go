// Package normalize converts prefab documents between their on-disk form,
// where fields holding default values are omitted, and their in-memory form,
// where every default is spelled out.
package normalize

import (
	"github.com/conneroisu/prefab/internal/document"
	"github.com/conneroisu/prefab/internal/errors"
)

// Instance is a typed view of a document produced by an Instantiator.
type Instance interface {
	// Store writes the instance back out as a document. With stripDefaults
	// set, fields equal to their default are omitted.
	Store(stripDefaults bool) (document.Value, error)
}

// Instantiator builds typed instances from documents, filling in defaults
// for absent fields.
type Instantiator interface {
	Instantiate(doc document.Value) (Instance, error)
}

// Normalizer runs the expand and strip passes over an Instantiator.
type Normalizer struct {
	instantiator Instantiator
}

// New creates a Normalizer.
func New(instantiator Instantiator) *Normalizer {
	return &Normalizer{instantiator: instantiator}
}

// Expand replaces *doc with its defaults-expanded form. On failure *doc is
// left untouched.
func (n *Normalizer) Expand(doc *document.Value) error {
	return n.roundTrip(doc, false)
}

// Strip replaces *doc with its defaults-stripped form. On failure *doc is
// left untouched.
func (n *Normalizer) Strip(doc *document.Value) error {
	return n.roundTrip(doc, true)
}

func (n *Normalizer) roundTrip(doc *document.Value, strip bool) error {
	pass := "expand"
	if strip {
		pass = "strip"
	}

	inst, err := n.instantiator.Instantiate(*doc)
	if err != nil {
		return errors.Wrap(err, errors.CodeNormalization, "failed to instantiate document").
			WithContext("pass", pass)
	}

	out, err := inst.Store(strip)
	if err != nil {
		return errors.Wrap(err, errors.CodeNormalization, "failed to store instance").
			WithContext("pass", pass)
	}

	*doc = out
	return nil
}
