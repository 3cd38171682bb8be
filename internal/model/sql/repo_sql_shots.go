package sql

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetShot returns a shot; gorm.ErrRecordNotFound when missing.
func (r *GormRepository) GetShot(ctx context.Context, id string) (*entity.DbShot, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	var shot entity.DbShot
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&shot).Error; err != nil {
		return nil, err
	}
	return &shot, nil
}

// EnsureShot returns the shot, creating an empty one on first reference.
func (r *GormRepository) EnsureShot(ctx context.Context, id string) (*entity.DbShot, error) {
	if err := r.ready(); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("shot id is required")
	}
	shot := entity.DbShot{ID: id, BackgroundURLs: entity.URLList{}}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&shot).Error
	if err != nil {
		return nil, err
	}
	return r.GetShot(ctx, id)
}

// UpdateShot sets the shot-level reference URLs.
func (r *GormRepository) UpdateShot(ctx context.Context, id string, updates entity.ShotUpdates) (*entity.DbShot, error) {
	shot, err := r.EnsureShot(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := updates.ToMap()
	if len(fields) == 0 {
		return shot, nil
	}
	if err := r.db.WithContext(ctx).Model(&entity.DbShot{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	return r.GetShot(ctx, id)
}

// AppendShotBackgrounds adds urls to the shot's backgrounds, skipping ones
// already present.
func (r *GormRepository) AppendShotBackgrounds(ctx context.Context, id string, urls []string) (*entity.DbShot, error) {
	if _, err := r.EnsureShot(ctx, id); err != nil {
		return nil, err
	}

	var shot entity.DbShot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&shot).Error; err != nil {
			return err
		}
		shot.BackgroundURLs = shot.BackgroundURLs.Merge(urls...)
		return tx.Model(&entity.DbShot{}).Where("id = ?", id).Update("background_urls", shot.BackgroundURLs).Error
	})
	if err != nil {
		return nil, fmt.Errorf("append backgrounds: %w", err)
	}
	return &shot, nil
}
