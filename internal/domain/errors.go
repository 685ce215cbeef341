package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrIdentityExists   = errors.New("identity already exists")
	ErrRelayUnavailable = errors.New("relay unavailable")
	ErrHandleTaken      = errors.New("handle already taken")
	ErrNoReservation    = errors.New("no handle reserved")
	ErrAlreadyClaimed   = errors.New("handle already claimed")
)

// ValidationError marks malformed local input: bad handle format,
// out-of-range resolution, invalid coordinates. Never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InsufficientBreadcrumbsError is a business-rule gate failure carrying
// the required-vs-actual counts so callers can present a precise
// deficit.
type InsufficientBreadcrumbsError struct {
	Required int64
	Current  int64
}

func (e *InsufficientBreadcrumbsError) Error() string {
	return fmt.Sprintf("insufficient breadcrumbs: need %d, have %d", e.Required, e.Current)
}

// InsufficientTrustError is the trust-score analog of the breadcrumb
// gate.
type InsufficientTrustError struct {
	Required float64
	Current  float64
}

func (e *InsufficientTrustError) Error() string {
	return fmt.Sprintf("insufficient trust: need %.1f, have %.1f", e.Required, e.Current)
}

// ChainIntegrityError reports the first breadcrumb whose hash, linkage
// or signature failed verification. Fatal for further use of that chain
// until investigated; never silently repaired.
type ChainIntegrityError struct {
	Index  int
	Reason string
}

func (e *ChainIntegrityError) Error() string {
	return fmt.Sprintf("chain integrity failure at index %d: %s", e.Index, e.Reason)
}
