// Package wgerr defines the error-kind taxonomy shared by the planner
// and the convergence daemon, per the propagation policy: services
// return a kind, and the transport layer (HTTP handler, CLI) is the
// only place that kind turns into a status code or exit code.
package wgerr

import "errors"

// Kind sentinels. Wrap one of these with fmt.Errorf("...: %w", ErrX) and
// callers can classify the failure with errors.Is.
var (
	// ErrValidation covers bad CIDRs, invalid ports, duplicate names,
	// non-IPv4 DNS entries. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrCapacity is NetworkFull from the Address Allocator.
	ErrCapacity = errors.New("capacity exhausted")

	// ErrAuth is a missing or unknown gateway capability token.
	ErrAuth = errors.New("authentication error")

	// ErrNotFound is a resource that no longer exists.
	ErrNotFound = errors.New("not found")

	// ErrConflict is a serialization failure on concurrent mutation.
	// Callers retry a bounded number of times before surfacing it.
	ErrConflict = errors.New("conflict")

	// ErrCrypto is an AEAD seal/unseal failure or malformed key
	// material. Fatal to the operation that hit it; such records are
	// unrecoverable and must be reported, not silently regenerated.
	ErrCrypto = errors.New("crypto error")
)

// Is reports whether err is classified as kind via errors.Is.
func Is(err error, kind error) bool {
	return errors.Is(err, kind)
}
