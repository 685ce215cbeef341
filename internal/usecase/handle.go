package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/crypto"
	"gnsd/internal/infra/policy"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

// reservedHandles cannot be claimed by anyone.
var reservedHandles = map[string]struct{}{
	"admin": {}, "root": {}, "system": {}, "gns": {}, "gnsd": {},
	"support": {}, "help": {}, "info": {}, "contact": {},
	"official": {}, "verified": {}, "bot": {},
	"null": {}, "undefined": {}, "localhost": {},
	"api": {}, "www": {}, "app": {}, "mail": {}, "smtp": {}, "ftp": {}, "ssh": {},
}

// HandleConfig carries the claim gate minimums.
type HandleConfig struct {
	MinBreadcrumbsForHandle int64
	MinTrustForHandle       float64
}

func (c HandleConfig) withDefaults() HandleConfig {
	if c.MinBreadcrumbsForHandle <= 0 {
		c.MinBreadcrumbsForHandle = 100
	}
	if c.MinTrustForHandle <= 0 {
		c.MinTrustForHandle = 20.0
	}
	return c
}

// HandleWorkflow drives the unclaimed -> reserved -> claimed state
// machine. Every local transition is persisted before the relay is
// contacted, so a network failure leaves a retryable, unconfirmed local
// record instead of lost state.
type HandleWorkflow struct {
	Identities domain.IdentityRepository
	Crumbs     domain.BreadcrumbRepository
	Epochs     domain.EpochRepository
	Scorer     *Scorer
	Policy     *policy.Engine
	Crypto     *crypto.Service
	Relay      domain.RelayClient
	Clock      Clock
	Logger     *slog.Logger

	cfg HandleConfig
}

func NewHandleWorkflow(identities domain.IdentityRepository, crumbs domain.BreadcrumbRepository, epochs domain.EpochRepository, scorer *Scorer, policyEngine *policy.Engine, cryptoSvc *crypto.Service, relay domain.RelayClient, clock Clock, logger *slog.Logger, cfg HandleConfig) *HandleWorkflow {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HandleWorkflow{
		Identities: identities,
		Crumbs:     crumbs,
		Epochs:     epochs,
		Scorer:     scorer,
		Policy:     policyEngine,
		Crypto:     cryptoSvc,
		Relay:      relay,
		Clock:      clock,
		Logger:     logger,
		cfg:        cfg.withDefaults(),
	}
}

// ValidateFormat normalizes a handle (trim, strip any '@', lowercase)
// and rejects anything outside the 3-20 character [a-z0-9_] format or
// on the reserved list.
func ValidateFormat(handle string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(handle))
	clean = strings.ReplaceAll(clean, "@", "")
	if clean == "" {
		return "", &domain.ValidationError{Field: "handle", Reason: "must not be empty"}
	}
	if len(clean) < 3 {
		return "", &domain.ValidationError{Field: "handle", Reason: "must be at least 3 characters"}
	}
	if len(clean) > 20 {
		return "", &domain.ValidationError{Field: "handle", Reason: "must be at most 20 characters"}
	}
	if !handlePattern.MatchString(clean) {
		return "", &domain.ValidationError{Field: "handle", Reason: "only lowercase letters, digits and underscores"}
	}
	if _, ok := reservedHandles[clean]; ok {
		return "", &domain.ValidationError{Field: "handle", Reason: "reserved"}
	}
	return clean, nil
}

// Reserve validates the handle, checks relay availability, records the
// reservation locally and then submits it. An unreachable relay still
// leaves a durable local reservation marked unconfirmed for later
// retry; a definitive "taken" answer fails without a state change.
func (w *HandleWorkflow) Reserve(ctx context.Context, identity domain.Identity, handle string) (domain.HandleStatus, error) {
	clean, err := ValidateFormat(handle)
	if err != nil {
		return domain.HandleStatus{}, err
	}
	if identity.HandleStatus.State == domain.HandleClaimed {
		return domain.HandleStatus{}, domain.ErrAlreadyClaimed
	}

	relayReachable := true
	if w.Relay != nil {
		available, err := w.Relay.IsHandleAvailable(ctx, clean)
		switch {
		case errors.Is(err, domain.ErrRelayUnavailable):
			relayReachable = false
			w.Logger.Warn("relay unreachable, reserving offline", "handle", clean)
		case err != nil:
			return domain.HandleStatus{}, err
		case !available:
			return domain.HandleStatus{}, domain.ErrHandleTaken
		}
	}

	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		return domain.HandleStatus{}, fmt.Errorf("load signing seed: %w", err)
	}
	defer seed.Zero()

	now := w.Clock()
	timestamp := now.Format(time.RFC3339)
	message := fmt.Sprintf("reserve:%s:%s", clean, timestamp)
	signature, err := w.Crypto.SignHex(seed, []byte(message))
	if err != nil {
		return domain.HandleStatus{}, fmt.Errorf("sign reservation: %w", err)
	}

	status := domain.HandleStatus{
		State:      domain.HandleReserved,
		Handle:     clean,
		ReservedAt: &now,
	}
	if err := w.Identities.UpdateHandleStatus(ctx, identity.ID, status); err != nil {
		return domain.HandleStatus{}, err
	}

	if w.Relay != nil && relayReachable {
		reservation := domain.Reservation{
			Handle:        clean,
			Identity:      identity.PublicKeyHex,
			EncryptionKey: identity.ExchangePublicKeyHex,
			Timestamp:     timestamp,
			Signature:     signature,
		}
		err := w.Relay.SubmitReservation(ctx, reservation)
		switch {
		case err == nil:
			status.NetworkConfirmed = true
			if err := w.Identities.UpdateHandleStatus(ctx, identity.ID, status); err != nil {
				return domain.HandleStatus{}, err
			}
		case errors.Is(err, domain.ErrHandleTaken):
			// Lost the race. Roll the local reservation back.
			rollback := domain.HandleStatus{State: domain.HandleUnclaimed}
			if rbErr := w.Identities.UpdateHandleStatus(ctx, identity.ID, rollback); rbErr != nil {
				w.Logger.Error("rollback reservation", "identity", identity.ID, "error", rbErr)
			}
			return domain.HandleStatus{}, domain.ErrHandleTaken
		default:
			w.Logger.Warn("reservation submission failed, kept locally",
				"handle", clean, "error", err)
		}
	}
	return status, nil
}

// Claim turns a matching reservation into a claimed handle once the
// trajectory requirements hold. The proof is canonically encoded and
// signed; the relay re-derives the same bytes to verify.
func (w *HandleWorkflow) Claim(ctx context.Context, identity domain.Identity, handle string) (domain.HandleStatus, error) {
	if identity.HandleStatus.State != domain.HandleReserved {
		return domain.HandleStatus{}, domain.ErrNoReservation
	}
	requested := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(handle), "@"))
	reserved := strings.ToLower(strings.TrimPrefix(identity.HandleStatus.Handle, "@"))
	if requested != reserved {
		return domain.HandleStatus{}, &domain.ValidationError{
			Field:  "handle",
			Reason: "does not match the reserved handle",
		}
	}

	score, err := w.Scorer.Score(ctx, identity)
	if err != nil {
		return domain.HandleStatus{}, err
	}
	if score.BreadcrumbCount < w.cfg.MinBreadcrumbsForHandle {
		return domain.HandleStatus{}, &domain.InsufficientBreadcrumbsError{
			Required: w.cfg.MinBreadcrumbsForHandle,
			Current:  score.BreadcrumbCount,
		}
	}
	if score.Score < w.cfg.MinTrustForHandle {
		return domain.HandleStatus{}, &domain.InsufficientTrustError{
			Required: w.cfg.MinTrustForHandle,
			Current:  score.Score,
		}
	}

	if w.Policy != nil {
		decision, err := w.Policy.Evaluate(ctx, policy.ClaimInput{
			Handle:          reserved,
			BreadcrumbCount: score.BreadcrumbCount,
			TrustScore:      score.Score,
			ChainValid:      score.Components.ChainIntegrity == 100,
			AccountAge:      w.Clock().Sub(identity.CreatedAt),
			UniqueLocations: score.UniqueLocations,
			Requirements: policy.ClaimRequirements{
				MinBreadcrumbs: w.cfg.MinBreadcrumbsForHandle,
				MinTrustScore:  w.cfg.MinTrustForHandle,
			},
		})
		if err != nil {
			return domain.HandleStatus{}, fmt.Errorf("evaluate claim policy: %w", err)
		}
		if !decision.Allow {
			return domain.HandleStatus{}, fmt.Errorf("claim denied by policy: %s",
				strings.Join(decision.Violations, "; "))
		}
	}

	claim, err := w.buildClaim(ctx, identity, reserved, score)
	if err != nil {
		return domain.HandleStatus{}, err
	}

	now := w.Clock()
	status := domain.HandleStatus{
		State:      domain.HandleClaimed,
		Handle:     reserved,
		ReservedAt: identity.HandleStatus.ReservedAt,
		ClaimedAt:  &now,
	}
	if err := w.Identities.UpdateHandleStatus(ctx, identity.ID, status); err != nil {
		return domain.HandleStatus{}, err
	}

	if w.Relay != nil {
		err := w.Relay.SubmitClaim(ctx, *claim)
		switch {
		case err == nil:
			status.NetworkConfirmed = true
			if err := w.Identities.UpdateHandleStatus(ctx, identity.ID, status); err != nil {
				return domain.HandleStatus{}, err
			}
			w.publishRecordBestEffort(ctx, identity, reserved, score.Score, score.BreadcrumbCount)
		case errors.Is(err, domain.ErrHandleTaken):
			rollback := identity.HandleStatus
			if rbErr := w.Identities.UpdateHandleStatus(ctx, identity.ID, rollback); rbErr != nil {
				w.Logger.Error("rollback claim", "identity", identity.ID, "error", rbErr)
			}
			return domain.HandleStatus{}, domain.ErrHandleTaken
		default:
			w.Logger.Warn("claim submission failed, kept locally",
				"handle", reserved, "error", err)
		}
	}
	return status, nil
}

// Release signs a release message, clears the local handle state and
// notifies the relay best-effort.
func (w *HandleWorkflow) Release(ctx context.Context, identity domain.Identity) error {
	if identity.HandleStatus.State == domain.HandleUnclaimed {
		return domain.ErrNoReservation
	}
	handle := identity.HandleStatus.Handle

	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		return fmt.Errorf("load signing seed: %w", err)
	}
	defer seed.Zero()

	timestamp := w.Clock().Format(time.RFC3339)
	message := fmt.Sprintf("release:%s:%s", handle, timestamp)
	signature, err := w.Crypto.SignHex(seed, []byte(message))
	if err != nil {
		return fmt.Errorf("sign release: %w", err)
	}

	if err := w.Identities.UpdateHandleStatus(ctx, identity.ID, domain.HandleStatus{State: domain.HandleUnclaimed}); err != nil {
		return err
	}

	if w.Relay != nil {
		release := domain.Release{
			Handle:    handle,
			Identity:  identity.PublicKeyHex,
			Timestamp: timestamp,
			Signature: signature,
		}
		if err := w.Relay.SubmitRelease(ctx, release); err != nil {
			w.Logger.Warn("release submission failed", "handle", handle, "error", err)
		}
	}
	return nil
}

func (w *HandleWorkflow) buildClaim(ctx context.Context, identity domain.Identity, handle string, score domain.TrustScore) (*domain.HandleClaim, error) {
	firstAt, err := w.Crumbs.FirstTimestamp(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	firstAtText := ""
	if firstAt != nil {
		firstAtText = firstAt.UTC().Format(time.RFC3339)
	}

	proof := map[string]any{
		"breadcrumb_count":    score.BreadcrumbCount,
		"trust_score":         score.Score,
		"first_breadcrumb_at": firstAtText,
	}
	var latestRoot *string
	latest, err := w.Epochs.Latest(ctx, identity.ID)
	switch {
	case err == nil:
		latestRoot = &latest.MerkleRoot
		proof["latest_epoch_root"] = latest.MerkleRoot
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, err
	}

	payload := map[string]any{
		"handle":   handle,
		"identity": identity.PublicKeyHex,
		"proof":    proof,
	}
	signingBytes, err := crypto.Canonical(payload)
	if err != nil {
		return nil, fmt.Errorf("encode claim: %w", err)
	}

	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		return nil, fmt.Errorf("load signing seed: %w", err)
	}
	defer seed.Zero()

	signature, err := w.Crypto.SignHex(seed, signingBytes)
	if err != nil {
		return nil, fmt.Errorf("sign claim: %w", err)
	}

	claimProof := domain.ClaimProof{
		BreadcrumbCount: score.BreadcrumbCount,
		TrustScore:      score.Score,
		LatestEpochRoot: latestRoot,
	}
	if firstAt != nil {
		claimProof.FirstBreadcrumbAt = firstAt.UTC()
	}
	return &domain.HandleClaim{
		Handle:    handle,
		Identity:  identity.PublicKeyHex,
		Proof:     claimProof,
		Signature: signature,
	}, nil
}

// publishRecordBestEffort pushes the signed identity record so peers
// can resolve the handle to the exchange key.
func (w *HandleWorkflow) publishRecordBestEffort(ctx context.Context, identity domain.Identity, handle string, trustScore float64, breadcrumbCount int64) {
	if w.Relay == nil {
		return
	}
	now := w.Clock().Format(time.RFC3339)
	record := map[string]any{
		"identity":         identity.PublicKeyHex,
		"encryption_key":   identity.ExchangePublicKeyHex,
		"handle":           handle,
		"trust_score":      trustScore,
		"breadcrumb_count": breadcrumbCount,
		"version":          1,
		"created_at":       identity.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":       now,
	}
	signingBytes, err := crypto.Canonical(record)
	if err != nil {
		w.Logger.Warn("encode identity record", "error", err)
		return
	}

	seed, err := crypto.SecretFromHex(identity.SecretSeedHex, crypto.SeedSize)
	if err != nil {
		w.Logger.Warn("load signing seed for record", "error", err)
		return
	}
	defer seed.Zero()

	signature, err := w.Crypto.SignHex(seed, signingBytes)
	if err != nil {
		w.Logger.Warn("sign identity record", "error", err)
		return
	}

	signed := domain.SignedRecord{
		Identity:  identity.PublicKeyHex,
		Record:    record,
		Signature: signature,
	}
	if err := w.Relay.PublishRecord(ctx, signed); err != nil {
		w.Logger.Warn("publish identity record", "handle", handle, "error", err)
	}
}
