package db

import (
	"studio/internal/entity/dto"
	"time"

	"gorm.io/datatypes"
)

// Generation stores one image-generation attempt for a shot.
type Generation struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ShotID      string `gorm:"column:shot_id;type:varchar(128);index;not null" json:"shot_id"`
	RequestedBy string `gorm:"column:requested_by;type:varchar(255)" json:"requested_by"`

	Mode        string `gorm:"column:mode;type:varchar(32);not null" json:"mode"`
	Prompt      string `gorm:"column:prompt;type:text" json:"prompt"`
	Model       string `gorm:"column:model;type:varchar(255)" json:"model"`
	Resolution  string `gorm:"column:resolution;type:varchar(32)" json:"resolution"`
	AspectRatio string `gorm:"column:aspect_ratio;type:varchar(32)" json:"aspect_ratio"`

	Status       string `gorm:"column:status;type:varchar(32);index;not null" json:"status"`
	ImagePath    string `gorm:"column:image_path;type:text" json:"image_path"` // 存储 key 或外部 URL
	ErrorMessage string `gorm:"column:error_message;type:text" json:"error_message"`

	RefData datatypes.JSONType[dto.RefData] `gorm:"column:ref_data;type:json" json:"ref_data"`

	ExternalTaskCode string `gorm:"column:external_task_code;type:varchar(255)" json:"external_task_code"` // 外部（第三方）任务code，或者任务ID
}

// TableName 指定表名
func (Generation) TableName() string {
	return "generations"
}
