package lightcurve

import "errors"

// Resolve failures. Callers distinguish them with errors.Is; none of them is
// retried inside the package.
var (
	// ErrInvalidTarget means the caller sent a malformed or unsafe name.
	ErrInvalidTarget = errors.New("invalid target")

	// ErrFetchTimeout means the archive did not answer within the configured
	// bound. Safe to retry later.
	ErrFetchTimeout = errors.New("light curve download timed out")

	// ErrNoData means the archive has no usable series for the target.
	ErrNoData = errors.New("no light curve data found")

	// ErrUnexpectedFetch wraps any other archive failure.
	ErrUnexpectedFetch = errors.New("light curve fetch failed")
)
