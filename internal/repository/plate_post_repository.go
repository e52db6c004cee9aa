package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"plate-service/internal/model"
)

type PlatePostRepository struct {
	db *gorm.DB
}

func NewPlatePostRepository(db *gorm.DB) *PlatePostRepository {
	return &PlatePostRepository{db: db}
}

func (r *PlatePostRepository) Create(ctx context.Context, post *model.PlatePost) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *PlatePostRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PlatePost, error) {
	var post model.PlatePost
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &post, nil
}

type PlatePostListFilter struct {
	OwnerID   *uuid.UUID
	Canonical *string
	Limit     int
	Offset    int
}

// List returns posts newest first. Image bytes are not loaded.
func (r *PlatePostRepository) List(ctx context.Context, filter PlatePostListFilter) ([]model.PlatePost, error) {
	var posts []model.PlatePost
	query := r.db.WithContext(ctx).
		Model(&model.PlatePost{}).
		Omit("image_data")

	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Canonical != nil {
		query = query.Where("plate_canonical = ?", *filter.Canonical)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, err
	}

	return posts, nil
}

func (r *PlatePostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.PlatePost{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
