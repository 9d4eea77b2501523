package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"caffmed-api/internal/model"
)

type PredictionRepository struct {
	db *gorm.DB
}

func NewPredictionRepository(db *gorm.DB) *PredictionRepository {
	return &PredictionRepository{db: db}
}

func (r *PredictionRepository) Create(ctx context.Context, p *model.Prediction) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create prediction failed: %w", err)
	}
	return nil
}

// ListRecent returns the newest records first.
func (r *PredictionRepository) ListRecent(ctx context.Context, limit int) ([]model.Prediction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var predictions []model.Prediction
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&predictions).Error; err != nil {
		return nil, fmt.Errorf("list predictions failed: %w", err)
	}
	return predictions, nil
}

type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// CountByLabel aggregates successful predictions per label.
func (r *PredictionRepository) CountByLabel(ctx context.Context) ([]LabelCount, error) {
	var counts []LabelCount
	err := r.db.WithContext(ctx).
		Model(&model.Prediction{}).
		Select("label, COUNT(*) AS count").
		Where("error = ?", "").
		Group("label").
		Order("label ASC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count predictions by label failed: %w", err)
	}
	return counts, nil
}
