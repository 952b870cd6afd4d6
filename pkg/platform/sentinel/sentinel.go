package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally wrapped)
// so services can translate them into domain errors.
//
// These represent factual states about documents, not validation failures:
// - ErrNotFound: document does not exist in the store
// - ErrConflict: a document with the same key already exists
// - ErrInvalidState: document is in the wrong state for the requested update
// - ErrUnavailable: store temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
