package sports

import "errors"

// Upstream failure taxonomy. Everything except ErrBadConfig degrades: the
// fetch pipeline converts it into an empty result for the caller while the
// error itself goes to logs and metrics.
var (
	// ErrRateLimited means the local limiter denied the call before any
	// network traffic happened.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamTransient covers timeouts, 429s and 5xx responses that
	// a later retry may clear.
	ErrUpstreamTransient = errors.New("upstream transient failure")

	// ErrUpstreamPersistent covers 4xx responses and contract breakage
	// that retrying will not fix.
	ErrUpstreamPersistent = errors.New("upstream persistent failure")

	// ErrNoData means the provider answered but has nothing for the
	// requested slice (empty schedule, unknown team).
	ErrNoData = errors.New("no data available")

	// ErrAllProvidersExhausted means every provider in a fallback chain
	// failed or returned nothing.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	// ErrBadConfig is the one hard error in the taxonomy: callers see it
	// instead of an empty result.
	ErrBadConfig = errors.New("invalid configuration")
)
