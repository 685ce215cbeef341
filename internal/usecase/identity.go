package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"gnsd/internal/domain"
	"gnsd/internal/infra/crypto"
)

// IdentityService mints and manages local identities. An identity is a
// signing keypair; the exchange keypair is derived from the same seed
// on demand and never stored.
type IdentityService struct {
	Identities domain.IdentityRepository
	Crypto     *crypto.Service
	Clock      Clock
	Logger     *slog.Logger
}

func NewIdentityService(identities domain.IdentityRepository, cryptoSvc *crypto.Service, clock Clock, logger *slog.Logger) *IdentityService {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{
		Identities: identities,
		Crypto:     cryptoSvc,
		Clock:      clock,
		Logger:     logger,
	}
}

// Create generates a fresh signing keypair and persists the identity.
func (s *IdentityService) Create(ctx context.Context, displayName string) (*domain.Identity, error) {
	if displayName == "" {
		return nil, &domain.ValidationError{Field: "displayName", Reason: "must not be empty"}
	}

	seed, publicKey, err := s.Crypto.GenerateSigningKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	defer seed.Zero()

	_, exchangePublic, err := s.Crypto.DeriveExchangeKeypair(seed)
	if err != nil {
		return nil, fmt.Errorf("derive exchange key: %w", err)
	}

	identity := domain.Identity{
		ID:                   crypto.RandomID(),
		DisplayName:          displayName,
		PublicKeyHex:         hex.EncodeToString(publicKey),
		ExchangePublicKeyHex: hex.EncodeToString(exchangePublic),
		SecretSeedHex:        seed.Hex(),
		CreatedAt:            s.Clock(),
		HandleStatus:         domain.HandleStatus{State: domain.HandleUnclaimed},
	}
	if err := s.Identities.Insert(ctx, identity); err != nil {
		return nil, err
	}

	s.Logger.Info("identity created",
		"identity", identity.ID, "publicKey", identity.PublicKeyHex[:16])
	return &identity, nil
}

func (s *IdentityService) Get(ctx context.Context, id string) (*domain.Identity, error) {
	return s.Identities.Get(ctx, id)
}

func (s *IdentityService) List(ctx context.Context) ([]domain.Identity, error) {
	return s.Identities.List(ctx)
}

// Delete removes the identity together with its chain and epochs.
func (s *IdentityService) Delete(ctx context.Context, id string) error {
	if err := s.Identities.Delete(ctx, id); err != nil {
		return err
	}
	s.Logger.Info("identity deleted", "identity", id)
	return nil
}
