package repos

import "errors"

// ErrNotFound is returned by single-record lookups. Direct API lookups map it
// to a 404; callback-path callers treat it as a soft failure and skip the step.
var ErrNotFound = errors.New("record not found")
