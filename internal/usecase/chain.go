package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/crypto"
)

// ChainService maintains one identity's append-only, tamper-evident
// location log.
type ChainService struct {
	Crumbs     domain.BreadcrumbRepository
	Identities domain.IdentityRepository
	Crypto     *crypto.Service
	Locks      *IdentityLocks
	Cache      domain.TrustScoreCache
	Clock      Clock
	Logger     *slog.Logger
}

func NewChainService(crumbs domain.BreadcrumbRepository, identities domain.IdentityRepository, cryptoSvc *crypto.Service, locks *IdentityLocks, cache domain.TrustScoreCache, clock Clock, logger *slog.Logger) *ChainService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChainService{
		Crumbs:     crumbs,
		Identities: identities,
		Crypto:     cryptoSvc,
		Locks:      locks,
		Cache:      cache,
		Clock:      clock,
		Logger:     logger,
	}
}

// Append links a new breadcrumb onto the identity's chain. It reads the
// current head and writes the successor under the identity's chain
// lock; two concurrent appends would otherwise claim the same
// predecessor.
func (s *ChainService) Append(ctx context.Context, identity domain.Identity, cellIndex string, resolution uint8, timestamp time.Time, accuracy *float64, source domain.LocationSource) (*domain.Breadcrumb, error) {
	if cellIndex == "" {
		return nil, &domain.ValidationError{Field: "cellIndex", Reason: "must not be empty"}
	}
	if resolution < domain.MinCellResolution || resolution > domain.MaxCellResolution {
		return nil, &domain.ValidationError{
			Field:  "resolution",
			Reason: fmt.Sprintf("must be between %d and %d", domain.MinCellResolution, domain.MaxCellResolution),
		}
	}
	if !domain.ValidSource(source) {
		return nil, &domain.ValidationError{Field: "source", Reason: "unknown location source"}
	}

	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("load signing seed: %w", err)
	}
	defer seed.Zero()

	lock := s.Locks.ForIdentity(identity.ID)
	lock.Lock()
	defer lock.Unlock()

	prev := domain.GenesisHash
	var prevHash *string
	flagged := false
	head, err := s.Crumbs.Head(ctx, identity.ID)
	switch {
	case err == nil:
		prev = head.Hash
		prevHash = &head.Hash
		flagged = timestamp.Before(head.Timestamp)
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	hashInput := fmt.Sprintf("%s|%d|%s", cellIndex, timestamp.UnixMilli(), prev)
	hash := s.Crypto.HashHex([]byte(hashInput))
	signature, err := s.Crypto.SignHex(seed, []byte(hash))
	if err != nil {
		return nil, fmt.Errorf("sign breadcrumb: %w", err)
	}

	crumb := domain.Breadcrumb{
		ID:             crypto.RandomID(),
		CellIndex:      cellIndex,
		CellResolution: resolution,
		Timestamp:      timestamp,
		PrevHash:       prevHash,
		Hash:           hash,
		Signature:      signature,
		Source:         source,
		AccuracyMeters: accuracy,
		Flagged:        flagged,
	}
	if err := s.Crumbs.Insert(ctx, identity.ID, crumb); err != nil {
		return nil, err
	}
	if flagged {
		s.Logger.Warn("breadcrumb timestamp precedes chain head",
			"identity", identity.ID, "breadcrumb", crumb.ID)
	}

	count, err := s.Crumbs.Count(ctx, identity.ID)
	if err == nil {
		if err := s.Identities.UpdateCounters(ctx, identity.ID, count, identity.CachedTrustScore); err != nil {
			s.Logger.Warn("update breadcrumb counter", "identity", identity.ID, "error", err)
		}
	}
	if s.Cache != nil {
		if err := s.Cache.Invalidate(ctx, identity.ID); err != nil {
			s.Logger.Warn("invalidate trust cache", "identity", identity.ID, "error", err)
		}
	}
	return &crumb, nil
}

// VerifyChain recomputes every hash, checks linkage to the predecessor
// and verifies every signature, in chain order. It returns a
// ChainIntegrityError carrying the first invalid index. Temporal order
// is not checked: linkage is by hash, and out-of-order timestamps are
// merely flagged at append time.
func (s *ChainService) VerifyChain(crumbs []domain.Breadcrumb, publicKeyHex string) error {
	for i, crumb := range crumbs {
		prev := domain.GenesisHash
		if i > 0 {
			if crumb.PrevHash == nil || *crumb.PrevHash != crumbs[i-1].Hash {
				return &domain.ChainIntegrityError{Index: i, Reason: "broken link to predecessor"}
			}
			prev = *crumb.PrevHash
		} else if crumb.PrevHash != nil && *crumb.PrevHash != domain.GenesisHash {
			return &domain.ChainIntegrityError{Index: i, Reason: "first breadcrumb has a predecessor"}
		}

		hashInput := fmt.Sprintf("%s|%d|%s", crumb.CellIndex, crumb.Timestamp.UnixMilli(), prev)
		if s.Crypto.HashHex([]byte(hashInput)) != crumb.Hash {
			return &domain.ChainIntegrityError{Index: i, Reason: "hash mismatch"}
		}
		if !s.Crypto.VerifyHex(publicKeyHex, []byte(crumb.Hash), crumb.Signature) {
			return &domain.ChainIntegrityError{Index: i, Reason: "invalid signature"}
		}
	}
	return nil
}

func (s *ChainService) Count(ctx context.Context, identityID string) (int64, error) {
	return s.Crumbs.Count(ctx, identityID)
}

func (s *ChainService) Unpublished(ctx context.Context, identityID string) ([]domain.Breadcrumb, error) {
	return s.Crumbs.ListUnpublished(ctx, identityID)
}
