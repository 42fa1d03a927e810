// Package idgen wraps the UUID generator so tests can stub it. Callers treat
// the returned identifiers as opaque strings.
package idgen

import "github.com/google/uuid"

// NewFunc produces message and record identifiers; tests override it for
// deterministic IDs.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new globally unique identifier.
func New() string { return NewFunc() }
