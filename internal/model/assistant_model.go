package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Assistant struct {
	Id          uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId     uuid.UUID      `gorm:"type:uuid;not null;index"`
	Name        string         `gorm:"type:text;not null"`
	Kind        string         `gorm:"type:varchar(64);not null"`
	Description string         `gorm:"type:text"`
	Steps       datatypes.JSON `gorm:"type:jsonb"`
	ModelConfig datatypes.JSON `gorm:"type:jsonb"`
	Retrieval   datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"index"`
}

func (Assistant) TableName() string {
	return "assistants"
}
