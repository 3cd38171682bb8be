package sql

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/entity"
)

// CreateGeneration inserts a new generation record.
func (r *GormRepository) CreateGeneration(ctx context.Context, generation *entity.DbGeneration) error {
	if err := r.ready(); err != nil {
		return err
	}
	if generation == nil {
		return fmt.Errorf("generation is nil")
	}
	if strings.TrimSpace(generation.ID) == "" {
		return fmt.Errorf("generation id is required")
	}
	return r.db.WithContext(ctx).Create(generation).Error
}

// UpdateGeneration updates a generation with the provided fields.
func (r *GormRepository) UpdateGeneration(ctx context.Context, id string, updates entity.GenerationUpdates) error {
	if err := r.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("invalid generation id")
	}
	fields := updates.ToMap()
	if len(fields) == 0 {
		return fmt.Errorf("no updates provided")
	}
	return r.db.WithContext(ctx).Model(&entity.DbGeneration{}).Where("id = ?", id).Updates(fields).Error
}

// GetGeneration returns a single generation; gorm.ErrRecordNotFound when missing.
func (r *GormRepository) GetGeneration(ctx context.Context, id string) (*entity.DbGeneration, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var generation entity.DbGeneration
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&generation).Error; err != nil {
		return nil, err
	}
	return &generation, nil
}

// ListGenerations returns every generation of a shot, newest first.
func (r *GormRepository) ListGenerations(ctx context.Context, shotID string) ([]entity.DbGeneration, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var generations []entity.DbGeneration
	err := r.db.WithContext(ctx).
		Where("shot_id = ?", shotID).
		Order("created_at DESC, id ASC").
		Find(&generations).Error
	if err != nil {
		return nil, err
	}
	return generations, nil
}

// ListGenerationsByStatus returns every generation in the given status.
func (r *GormRepository) ListGenerationsByStatus(ctx context.Context, status string) ([]entity.DbGeneration, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var generations []entity.DbGeneration
	if err := r.db.WithContext(ctx).Where("status = ?", status).Find(&generations).Error; err != nil {
		return nil, err
	}
	return generations, nil
}
