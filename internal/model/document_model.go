package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Document struct {
	Id         uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Title      string         `gorm:"type:text;not null"`
	MimeType   string         `gorm:"type:varchar(128)"`
	Content    string         `gorm:"type:text"`
	Tags       datatypes.JSON `gorm:"type:jsonb"`
	Status     string         `gorm:"type:varchar(32);not null;default:'pending'"`
	ChunkCount int            `gorm:"default:0"`
	Error      string         `gorm:"type:text"`
	CreatedAt  time.Time      `gorm:"autoCreateTime"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime"`
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (Document) TableName() string {
	return "documents"
}
