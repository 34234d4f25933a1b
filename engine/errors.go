package engine

import "errors"

// ErrUnavailable means the capture parser failed its startup probe. The
// boundary reports a degraded status instead of an internal fault.
var ErrUnavailable = errors.New("capture parsing is unavailable in this process")

// ValidationError rejects an upload before any parsing happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid upload: " + e.Reason }
