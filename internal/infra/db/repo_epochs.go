package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gnsd/internal/domain"
)

type EpochRepository struct {
	db *gorm.DB
}

func NewEpochRepository(db *gorm.DB) *EpochRepository {
	return &EpochRepository{db: db}
}

var _ domain.EpochRepository = (*EpochRepository)(nil)

// Commit persists the epoch and marks the consumed breadcrumbs
// published atomically. Re-committing the same epoch hash is a no-op.
func (r *EpochRepository) Commit(ctx context.Context, epoch domain.Epoch, consumedBreadcrumbIDs []string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := epochToModel(epoch)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already committed.
			return nil
		}
		if len(consumedBreadcrumbIDs) == 0 {
			return nil
		}
		return tx.Model(&BreadcrumbModel{}).
			Where("id IN ?", consumedBreadcrumbIDs).
			Update("published", true).Error
	})
}

func (r *EpochRepository) Latest(ctx context.Context, identityID string) (*domain.Epoch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model EpochModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("epoch_index desc").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	epoch := modelToEpoch(model)
	return &epoch, nil
}

func (r *EpochRepository) ListByIdentity(ctx context.Context, identityID string) ([]domain.Epoch, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []EpochModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("epoch_index asc").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Epoch, 0, len(models))
	for _, m := range models {
		out = append(out, modelToEpoch(m))
	}
	return out, nil
}

func (r *EpochRepository) Count(ctx context.Context, identityID string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&EpochModel{}).
		Where("identity_id = ?", identityID).Count(&count).Error
	return count, err
}

func epochToModel(epoch domain.Epoch) EpochModel {
	return EpochModel{
		EpochHash:     epoch.EpochHash,
		IdentityID:    epoch.IdentityID,
		EpochIndex:    epoch.EpochIndex,
		StartTime:     epoch.StartTime,
		EndTime:       epoch.EndTime,
		MerkleRoot:    epoch.MerkleRoot,
		BlockCount:    epoch.BlockCount,
		PrevEpochHash: epoch.PrevEpochHash,
		Signature:     epoch.Signature,
		CreatedAt:     time.Now().UTC(),
	}
}

func modelToEpoch(model EpochModel) domain.Epoch {
	return domain.Epoch{
		IdentityID:    model.IdentityID,
		EpochIndex:    model.EpochIndex,
		StartTime:     model.StartTime,
		EndTime:       model.EndTime,
		MerkleRoot:    model.MerkleRoot,
		BlockCount:    model.BlockCount,
		PrevEpochHash: model.PrevEpochHash,
		Signature:     model.Signature,
		EpochHash:     model.EpochHash,
	}
}
