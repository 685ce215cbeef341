package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"gnsd/internal/domain"
)

type BreadcrumbRepository struct {
	db *gorm.DB
}

func NewBreadcrumbRepository(db *gorm.DB) *BreadcrumbRepository {
	return &BreadcrumbRepository{db: db}
}

var _ domain.BreadcrumbRepository = (*BreadcrumbRepository)(nil)

func (r *BreadcrumbRepository) Insert(ctx context.Context, identityID string, crumb domain.Breadcrumb) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := breadcrumbToModel(identityID, crumb)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *BreadcrumbRepository) Head(ctx context.Context, identityID string) (*domain.Breadcrumb, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model BreadcrumbModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("seq desc").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	crumb := modelToBreadcrumb(model)
	return &crumb, nil
}

func (r *BreadcrumbRepository) ListAll(ctx context.Context, identityID string) ([]domain.Breadcrumb, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return r.list(ctx, r.db.Where("identity_id = ?", identityID))
}

func (r *BreadcrumbRepository) ListUnpublished(ctx context.Context, identityID string) ([]domain.Breadcrumb, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	return r.list(ctx, r.db.Where("identity_id = ? AND published = false", identityID))
}

func (r *BreadcrumbRepository) list(ctx context.Context, query *gorm.DB) ([]domain.Breadcrumb, error) {
	var models []BreadcrumbModel
	if err := query.WithContext(ctx).Order("seq asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Breadcrumb, 0, len(models))
	for _, m := range models {
		out = append(out, modelToBreadcrumb(m))
	}
	return out, nil
}

func (r *BreadcrumbRepository) Count(ctx context.Context, identityID string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&BreadcrumbModel{}).
		Where("identity_id = ?", identityID).Count(&count).Error
	return count, err
}

func (r *BreadcrumbRepository) CountUniqueCells(ctx context.Context, identityID string) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	var count int64
	err := r.db.WithContext(ctx).Model(&BreadcrumbModel{}).
		Where("identity_id = ?", identityID).
		Distinct("cell_index").Count(&count).Error
	return count, err
}

func (r *BreadcrumbRepository) FirstTimestamp(ctx context.Context, identityID string) (*time.Time, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model BreadcrumbModel
	err := r.db.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("seq asc").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts := model.Timestamp
	return &ts, nil
}

func breadcrumbToModel(identityID string, crumb domain.Breadcrumb) BreadcrumbModel {
	return BreadcrumbModel{
		ID:             crumb.ID,
		IdentityID:     identityID,
		CellIndex:      crumb.CellIndex,
		CellResolution: crumb.CellResolution,
		Timestamp:      crumb.Timestamp,
		PrevHash:       crumb.PrevHash,
		Hash:           crumb.Hash,
		Signature:      crumb.Signature,
		Source:         string(crumb.Source),
		AccuracyMeters: crumb.AccuracyMeters,
		Published:      crumb.Published,
		Flagged:        crumb.Flagged,
	}
}

func modelToBreadcrumb(model BreadcrumbModel) domain.Breadcrumb {
	return domain.Breadcrumb{
		ID:             model.ID,
		CellIndex:      model.CellIndex,
		CellResolution: model.CellResolution,
		Timestamp:      model.Timestamp,
		PrevHash:       model.PrevHash,
		Hash:           model.Hash,
		Signature:      model.Signature,
		Source:         domain.LocationSource(model.Source),
		AccuracyMeters: model.AccuracyMeters,
		Published:      model.Published,
		Flagged:        model.Flagged,
	}
}
