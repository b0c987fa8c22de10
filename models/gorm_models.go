// models/gorm_models.go
package models

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// GormRoomRecord 房间归档模型
type GormRoomRecord struct {
	gorm.Model
	Code          int             `gorm:"index;not null"`
	Capacity      int             `gorm:"not null"`
	Players       json.RawMessage `gorm:"type:jsonb;not null"`
	Auxiliary     json.RawMessage `gorm:"type:jsonb"`
	RoomCreatedAt time.Time
	RemovedAt     time.Time
}
