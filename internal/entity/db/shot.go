package db

import (
	"studio/internal/entity/common"
	"time"
)

// Shot keeps the per-shot references the generation workflow falls back on.
type Shot struct {
	ID        string    `gorm:"primaryKey;type:varchar(128)" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StoryboardURL  string         `gorm:"column:storyboard_url;type:text" json:"storyboard_url"`
	StyleURL       string         `gorm:"column:style_url;type:text" json:"style_url"`
	BackgroundURLs common.URLList `gorm:"column:background_urls;type:json" json:"background_urls"`
}

// TableName 指定表名
func (Shot) TableName() string {
	return "shots"
}
