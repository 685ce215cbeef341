package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gnsd/internal/domain"
)

type IdentityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

var _ domain.IdentityRepository = (*IdentityRepository)(nil)

func (r *IdentityRepository) Insert(ctx context.Context, identity domain.Identity) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := identityToModel(identity)
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
	if res.Error != nil {
		return res.Error
	}
	// OnConflict DoNothing reports a duplicate public key as zero rows
	// affected instead of a driver error.
	if res.RowsAffected == 0 {
		return domain.ErrIdentityExists
	}
	return nil
}

func (r *IdentityRepository) Get(ctx context.Context, id string) (*domain.Identity, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IdentityModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	identity := modelToIdentity(model)
	return &identity, nil
}

func (r *IdentityRepository) GetByPublicKey(ctx context.Context, publicKeyHex string) (*domain.Identity, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model IdentityModel
	err := r.db.WithContext(ctx).First(&model, "public_key = ?", publicKeyHex).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	identity := modelToIdentity(model)
	return &identity, nil
}

func (r *IdentityRepository) List(ctx context.Context) ([]domain.Identity, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []IdentityModel
	if err := r.db.WithContext(ctx).Order("created_at asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Identity, 0, len(models))
	for _, m := range models {
		out = append(out, modelToIdentity(m))
	}
	return out, nil
}

func (r *IdentityRepository) UpdateHandleStatus(ctx context.Context, id string, status domain.HandleStatus) error {
	if r.db == nil {
		return errDBUnavailable
	}
	var handle *string
	if status.Handle != "" {
		h := status.Handle
		handle = &h
	}
	res := r.db.WithContext(ctx).Model(&IdentityModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"handle_state":      string(status.State),
			"handle":            handle,
			"reserved_at":       status.ReservedAt,
			"claimed_at":        status.ClaimedAt,
			"network_confirmed": status.NetworkConfirmed,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) UpdateCounters(ctx context.Context, id string, breadcrumbCount int64, trustScore float64) error {
	if r.db == nil {
		return errDBUnavailable
	}
	res := r.db.WithContext(ctx).Model(&IdentityModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"breadcrumb_count": breadcrumbCount,
			"trust_score":      trustScore,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("identity_id = ?", id).Delete(&BreadcrumbModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("identity_id = ?", id).Delete(&EpochModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&IdentityModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func identityToModel(identity domain.Identity) IdentityModel {
	model := IdentityModel{
		ID:                identity.ID,
		DisplayName:       identity.DisplayName,
		PublicKey:         identity.PublicKeyHex,
		ExchangePublicKey: identity.ExchangePublicKeyHex,
		SecretSeed:        identity.SecretSeedHex,
		CreatedAt:         identity.CreatedAt,
		HandleState:       string(identity.HandleStatus.State),
		ReservedAt:        identity.HandleStatus.ReservedAt,
		ClaimedAt:         identity.HandleStatus.ClaimedAt,
		NetworkConfirmed:  identity.HandleStatus.NetworkConfirmed,
		BreadcrumbCount:   identity.BreadcrumbCount,
		TrustScore:        identity.CachedTrustScore,
	}
	if identity.HandleStatus.Handle != "" {
		h := identity.HandleStatus.Handle
		model.Handle = &h
	}
	if model.HandleState == "" {
		model.HandleState = string(domain.HandleUnclaimed)
	}
	return model
}

func modelToIdentity(model IdentityModel) domain.Identity {
	status := domain.HandleStatus{
		State:            domain.HandleState(model.HandleState),
		ReservedAt:       model.ReservedAt,
		ClaimedAt:        model.ClaimedAt,
		NetworkConfirmed: model.NetworkConfirmed,
	}
	if model.Handle != nil {
		status.Handle = *model.Handle
	}
	return domain.Identity{
		ID:                   model.ID,
		DisplayName:          model.DisplayName,
		PublicKeyHex:         model.PublicKey,
		ExchangePublicKeyHex: model.ExchangePublicKey,
		SecretSeedHex:        model.SecretSeed,
		CreatedAt:            model.CreatedAt,
		HandleStatus:         status,
		BreadcrumbCount:      model.BreadcrumbCount,
		CachedTrustScore:     model.TrustScore,
	}
}
