package apperrors

import "errors"

var (
	// ErrNotFound indicates a referenced entity (by slug or id) does not
	// exist within the requested scope. Distinct from an empty search
	// result: callers can branch on "bad reference" vs "no matches".
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a malformed request parameter, such as
	// a non-positive limit or depth, or an unknown entity kind.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrUpstreamUnavailable indicates the vector index, lexical index, or
	// embedding generator failed or timed out. Retryable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
