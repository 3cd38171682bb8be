package entity

// Re-export persisted models and common types so callers only import entity.

import (
	"studio/internal/entity/common"
	"studio/internal/entity/db"
)

// Type aliases for common types
type URLList = common.URLList

// Type aliases for persisted models
type DbGeneration = db.Generation
type DbShot = db.Shot
