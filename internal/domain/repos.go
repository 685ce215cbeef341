package domain

import (
	"context"
	"time"
)

// IdentityRepository stores local identities. Delete cascades to the
// identity's breadcrumbs and epochs.
type IdentityRepository interface {
	Insert(ctx context.Context, identity Identity) error
	Get(ctx context.Context, id string) (*Identity, error)
	GetByPublicKey(ctx context.Context, publicKeyHex string) (*Identity, error)
	List(ctx context.Context) ([]Identity, error)
	UpdateHandleStatus(ctx context.Context, id string, status HandleStatus) error
	UpdateCounters(ctx context.Context, id string, breadcrumbCount int64, trustScore float64) error
	Delete(ctx context.Context, id string) error
}

// BreadcrumbRepository is the append-only store for one identity's
// chain. All list results are ordered oldest first (chain order).
type BreadcrumbRepository interface {
	Insert(ctx context.Context, identityID string, crumb Breadcrumb) error
	// Head returns the most recently appended breadcrumb, or ErrNotFound
	// for an empty chain.
	Head(ctx context.Context, identityID string) (*Breadcrumb, error)
	ListAll(ctx context.Context, identityID string) ([]Breadcrumb, error)
	ListUnpublished(ctx context.Context, identityID string) ([]Breadcrumb, error)
	Count(ctx context.Context, identityID string) (int64, error)
	CountUniqueCells(ctx context.Context, identityID string) (int64, error)
	FirstTimestamp(ctx context.Context, identityID string) (*time.Time, error)
}

// EpochRepository stores the epoch chain. Commit persists the epoch and
// marks the consumed breadcrumbs published in a single transaction;
// Insert is idempotent keyed by EpochHash.
type EpochRepository interface {
	Commit(ctx context.Context, epoch Epoch, consumedBreadcrumbIDs []string) error
	Latest(ctx context.Context, identityID string) (*Epoch, error)
	ListByIdentity(ctx context.Context, identityID string) ([]Epoch, error)
	Count(ctx context.Context, identityID string) (int64, error)
}

// RelayClient is the network collaborator. Every call is fallible,
// retryable and slow; an acknowledgement never implies far-side
// durability. Epoch publication is idempotent by epoch hash, claims by
// (handle, identity key).
type RelayClient interface {
	IsHandleAvailable(ctx context.Context, handle string) (bool, error)
	SubmitReservation(ctx context.Context, reservation Reservation) error
	SubmitClaim(ctx context.Context, claim HandleClaim) error
	SubmitRelease(ctx context.Context, release Release) error
	PublishEpoch(ctx context.Context, epoch SignedEpoch) error
	FetchEpochs(ctx context.Context, identityPublicKey string) ([]Epoch, error)
	PublishRecord(ctx context.Context, record SignedRecord) error
}

// TrustScoreCache caches composite scores for cheap reads. Writers to
// the chain or epoch set must invalidate.
type TrustScoreCache interface {
	Get(ctx context.Context, identityID string) (float64, bool, error)
	Put(ctx context.Context, identityID string, score float64, ttl time.Duration) error
	Invalidate(ctx context.Context, identityID string) error
}

// RateLimitDecision reports the outcome of a fixed-window check.
type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
