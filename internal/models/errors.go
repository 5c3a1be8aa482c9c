package models

import "fmt"

// ValidationError marks a caller-supplied document or request field as
// invalid. It is fatal to the offending document only, never to a batch.
type ValidationError struct {
	DocumentID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("document %s: invalid %s: %s", e.DocumentID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedApproachError reports an unrecognized vectorization approach.
type UnsupportedApproachError struct {
	Approach string
}

func (e *UnsupportedApproachError) Error() string {
	return fmt.Sprintf("unsupported approach: %q", e.Approach)
}

// UnsupportedSearchTypeError reports an unrecognized search type.
type UnsupportedSearchTypeError struct {
	SearchType string
}

func (e *UnsupportedSearchTypeError) Error() string {
	return fmt.Sprintf("unsupported search type: %q", e.SearchType)
}

// ConnectivityError wraps a transport or auth failure against the
// underlying store. Health checks report it as an unhealthy status;
// index/search/delete operations return it to the caller.
type ConnectivityError struct {
	Approach string
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s backend unreachable: %v", e.Approach, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }
