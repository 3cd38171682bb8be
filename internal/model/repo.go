package model

import (
	"context"
	"studio/internal/entity"
)

// Repository 定义数据库操作接口
type Repository interface {
	// 镜头
	GetShot(ctx context.Context, id string) (*entity.DbShot, error)
	EnsureShot(ctx context.Context, id string) (*entity.DbShot, error)
	UpdateShot(ctx context.Context, id string, updates entity.ShotUpdates) (*entity.DbShot, error)
	AppendShotBackgrounds(ctx context.Context, id string, urls []string) (*entity.DbShot, error)

	// 生成记录
	CreateGeneration(ctx context.Context, generation *entity.DbGeneration) error
	UpdateGeneration(ctx context.Context, id string, updates entity.GenerationUpdates) error
	GetGeneration(ctx context.Context, id string) (*entity.DbGeneration, error)
	ListGenerations(ctx context.Context, shotID string) ([]entity.DbGeneration, error)
	ListGenerationsByStatus(ctx context.Context, status string) ([]entity.DbGeneration, error)
}
