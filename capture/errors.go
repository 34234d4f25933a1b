package capture

import "fmt"

// FormatError means the input is not a recognizable pcap or pcapng
// container, or its header is corrupt.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture format: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("capture format: %s", e.Reason)
}

func (e *FormatError) Unwrap() error { return e.Err }

// TruncatedError means a frame header declared more bytes than the file
// has left. Frame is the zero-based index of the offending frame.
type TruncatedError struct {
	Frame int
	Err   error
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("capture truncated at frame %d: declared length exceeds remaining bytes", e.Frame)
}

func (e *TruncatedError) Unwrap() error { return e.Err }

// LimitError means a resource ceiling was hit before the capture was
// fully materialized.
type LimitError struct {
	What  string // "packets" or "bytes"
	Limit int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("capture exceeds %s limit (%d)", e.What, e.Limit)
}
