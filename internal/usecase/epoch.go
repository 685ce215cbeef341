package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/crypto"
	"gnsd/internal/infra/merkle"
)

// PublisherConfig carries the epoch policy knobs. The defaults mirror
// the protocol's published constants; relays may accept stricter local
// settings but the minimum batch keeps epochs meaningfully sized.
type PublisherConfig struct {
	MinBreadcrumbsPerEpoch int
	BlockSize              int
}

func (c PublisherConfig) withDefaults() PublisherConfig {
	if c.MinBreadcrumbsPerEpoch <= 0 {
		c.MinBreadcrumbsPerEpoch = 100
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 10
	}
	return c
}

// Publisher compacts the breadcrumb chain into durable, signed,
// independently verifiable epochs.
type Publisher struct {
	Crumbs domain.BreadcrumbRepository
	Epochs domain.EpochRepository
	Crypto *crypto.Service
	Locks  *IdentityLocks
	Relay  domain.RelayClient
	Cache  domain.TrustScoreCache
	Clock  Clock
	Logger *slog.Logger

	cfg PublisherConfig
}

func NewPublisher(crumbs domain.BreadcrumbRepository, epochs domain.EpochRepository, cryptoSvc *crypto.Service, locks *IdentityLocks, relay domain.RelayClient, cache domain.TrustScoreCache, clock Clock, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		Crumbs: crumbs,
		Epochs: epochs,
		Crypto: cryptoSvc,
		Locks:  locks,
		Relay:  relay,
		Cache:  cache,
		Clock:  clock,
		Logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// Publish drains the oldest batch of unpublished breadcrumbs into a new
// signed epoch. Construction and the local commit happen under the
// identity's chain lock and either succeed completely or leave no
// partial state; relay submission runs afterwards, outside the lock,
// and its failure never rolls back the committed epoch.
func (p *Publisher) Publish(ctx context.Context, identity domain.Identity) (*domain.Epoch, error) {
	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("load signing seed: %w", err)
	}
	defer seed.Zero()

	epoch, err := p.buildAndCommit(ctx, identity, seed)
	if err != nil {
		return nil, err
	}

	if p.Cache != nil {
		if err := p.Cache.Invalidate(ctx, identity.ID); err != nil {
			p.Logger.Warn("invalidate trust cache", "identity", identity.ID, "error", err)
		}
	}

	p.submitBestEffort(ctx, identity, *epoch)
	return epoch, nil
}

func (p *Publisher) buildAndCommit(ctx context.Context, identity domain.Identity, seed *crypto.Secret) (*domain.Epoch, error) {
	lock := p.Locks.ForIdentity(identity.ID)
	lock.Lock()
	defer lock.Unlock()

	pending, err := p.Crumbs.ListUnpublished(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	if len(pending) < p.cfg.MinBreadcrumbsPerEpoch {
		return nil, &domain.InsufficientBreadcrumbsError{
			Required: int64(p.cfg.MinBreadcrumbsPerEpoch),
			Current:  int64(len(pending)),
		}
	}

	// Consume exactly the oldest minimum batch; anything newer waits
	// for the next epoch.
	consumed := pending[:p.cfg.MinBreadcrumbsPerEpoch]

	blockRoots, err := p.blockRoots(consumed)
	if err != nil {
		return nil, err
	}
	root, err := merkle.RootHex(blockRoots)
	if err != nil {
		return nil, err
	}

	index := uint32(0)
	prevHash := domain.GenesisHash
	var prevEpochHash *string
	latest, err := p.Epochs.Latest(ctx, identity.ID)
	switch {
	case err == nil:
		index = latest.EpochIndex + 1
		prevHash = latest.EpochHash
		prevEpochHash = &latest.EpochHash
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	startTime := consumed[0].Timestamp
	endTime := consumed[len(consumed)-1].Timestamp

	epochData := fmt.Sprintf("%s|%d|%d|%d|%s|%s",
		identity.ID, index, startTime.Unix(), endTime.Unix(), root, prevHash)
	epochHash := p.Crypto.HashHex([]byte(epochData))
	signature, err := p.Crypto.SignHex(seed, []byte(epochHash))
	if err != nil {
		return nil, fmt.Errorf("sign epoch: %w", err)
	}

	epoch := domain.Epoch{
		IdentityID:    identity.ID,
		EpochIndex:    index,
		StartTime:     startTime,
		EndTime:       endTime,
		MerkleRoot:    root,
		BlockCount:    uint32(len(blockRoots)),
		PrevEpochHash: prevEpochHash,
		Signature:     signature,
		EpochHash:     epochHash,
	}

	consumedIDs := make([]string, 0, len(consumed))
	for _, crumb := range consumed {
		consumedIDs = append(consumedIDs, crumb.ID)
	}
	if err := p.Epochs.Commit(ctx, epoch, consumedIDs); err != nil {
		return nil, err
	}

	p.Logger.Info("epoch committed",
		"identity", identity.ID, "epoch", index,
		"blocks", epoch.BlockCount, "consumed", len(consumed))
	return &epoch, nil
}

// blockRoots partitions the consumed breadcrumbs oldest-first into
// fixed-size blocks (a trailing short block is allowed) and returns
// each block's Merkle root over the breadcrumb hashes.
func (p *Publisher) blockRoots(consumed []domain.Breadcrumb) ([]string, error) {
	roots := make([]string, 0, (len(consumed)+p.cfg.BlockSize-1)/p.cfg.BlockSize)
	for start := 0; start < len(consumed); start += p.cfg.BlockSize {
		end := start + p.cfg.BlockSize
		if end > len(consumed) {
			end = len(consumed)
		}
		hashes := make([]string, 0, end-start)
		for _, crumb := range consumed[start:end] {
			hashes = append(hashes, crumb.Hash)
		}
		root, err := merkle.RootHex(hashes)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// Submit sends a committed epoch to the relay. Idempotent by epoch
// hash; safe to retry any number of times.
func (p *Publisher) Submit(ctx context.Context, identity domain.Identity, epoch domain.Epoch) error {
	if p.Relay == nil {
		return domain.ErrRelayUnavailable
	}
	return p.Relay.PublishEpoch(ctx, domain.SignedEpoch{
		PKRoot:    identity.PublicKeyHex,
		Epoch:     epoch,
		Signature: epoch.Signature,
	})
}

func (p *Publisher) submitBestEffort(ctx context.Context, identity domain.Identity, epoch domain.Epoch) {
	if p.Relay == nil {
		return
	}
	if err := p.Submit(ctx, identity, epoch); err != nil {
		p.Logger.Warn("epoch submission failed, will retry later",
			"identity", identity.ID, "epoch", epoch.EpochIndex, "error", err)
	}
}

// EpochChain returns the identity's local epochs in index order.
func (p *Publisher) EpochChain(ctx context.Context, identityID string) ([]domain.Epoch, error) {
	return p.Epochs.ListByIdentity(ctx, identityID)
}
