// Package storage holds the per-user document store contract and the local
// backends. A document is a free-form field map written with top-level merge
// semantics: each written key replaces the stored value and unrelated keys are
// left alone.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the user has no document yet.
var ErrNotFound = errors.New("document not found")

// Fields is the raw document. A nil value marks a cleared key.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge returns base with every key of patch written over it. base is not
// modified.
func Merge(base, patch Fields) Fields {
	out := base.Clone()
	for k, v := range patch {
		out[k] = v
	}
	return out
}

// Store is a document database keyed by user name.
type Store interface {
	// Get returns the whole document or ErrNotFound.
	Get(ctx context.Context, user string) (Fields, error)
	// SetMerge writes the given top-level fields, creating the document if
	// it does not exist.
	SetMerge(ctx context.Context, user string, patch Fields) error
	// Subscribe calls onChange with the full document once with its current
	// state and again after every change, including this process's own
	// writes. The returned cancel stops delivery.
	Subscribe(ctx context.Context, user string, onChange func(Fields)) (cancel func(), err error)
	Close() error
}
