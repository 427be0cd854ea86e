package model

import "errors"

// Error kinds used across the pipeline. Each component wraps these with
// fmt.Errorf("...: %w", ...) so callers can classify with errors.Is.
var (
	// ErrConfig marks missing credentials or invalid configuration at
	// construction. Fatal: aborts startup.
	ErrConfig = errors.New("configuration error")

	// ErrNetwork marks a feed fetch failure. Fatal: aborts the run.
	ErrNetwork = errors.New("network error")

	// ErrNotFound marks a read of a cache that was never created.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks malformed feature geometry or missing
	// coordinates. Caught per feature; the feature is skipped.
	ErrValidation = errors.New("validation error")

	// ErrUpstream marks an imagery API non-success status or JSON error
	// body after the single re-auth retry. Caught per feature.
	ErrUpstream = errors.New("upstream error")

	// ErrAttachment marks a missing image file or failed attach call.
	// Logged; the record is still created without the image.
	ErrAttachment = errors.New("attachment error")
)
