package entity

import (
	"studio/internal/entity/dto"

	"gorm.io/datatypes"
)

// GenerationUpdates 生成记录更新字段
type GenerationUpdates struct {
	Status           *dto.GenerationStatus
	ImagePath        *string
	ErrorMessage     *string
	ExternalTaskCode *string
	RefData          *dto.RefData
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u GenerationUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.Status != nil {
		updates["status"] = string(*u.Status)
	}
	if u.ImagePath != nil {
		updates["image_path"] = *u.ImagePath
	}
	if u.ErrorMessage != nil {
		updates["error_message"] = *u.ErrorMessage
	}
	if u.ExternalTaskCode != nil {
		updates["external_task_code"] = *u.ExternalTaskCode
	}
	if u.RefData != nil {
		updates["ref_data"] = datatypes.NewJSONType(*u.RefData)
	}
	return updates
}

// IsEmpty 检查是否没有任何更新字段
func (u GenerationUpdates) IsEmpty() bool {
	return len(u.ToMap()) == 0
}

// ShotUpdates 镜头更新字段
type ShotUpdates struct {
	StoryboardURL *string
	StyleURL      *string
}

// ToMap 转换为 GORM 更新 map（内部使用）
func (u ShotUpdates) ToMap() map[string]interface{} {
	updates := make(map[string]interface{})
	if u.StoryboardURL != nil {
		updates["storyboard_url"] = *u.StoryboardURL
	}
	if u.StyleURL != nil {
		updates["style_url"] = *u.StyleURL
	}
	return updates
}
