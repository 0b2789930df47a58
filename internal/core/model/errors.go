package model

import (
	"errors"
	"fmt"
)

// ValidationError marks input that can never be stored: bad enum value,
// out-of-range score, self-loop, cross-brand edge. Nothing is partially
// applied when one is returned.
type ValidationError struct {
	BrandID string
	ID      string
	Field   string
	Reason  string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
	if e.BrandID != "" {
		msg += " (brand " + e.BrandID
		if e.ID != "" {
			msg += ", id " + e.ID
		}
		msg += ")"
	}
	return msg
}

// NotFoundError reports an unknown node or relation id. Batch callers skip
// the offending item and keep going.
type NotFoundError struct {
	Kind string // "node" or "relation"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// UpstreamError wraps a failure of an external collaborator (embedding
// gateway, inference model). It is transient: the same input may succeed
// on retry.
type UpstreamError struct {
	Upstream string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Upstream, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
