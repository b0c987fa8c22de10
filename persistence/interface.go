// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/roomserver/models"
)

// Database 归档存储接口
type Database interface {
	SaveRoomRecord(rec *models.RoomRecord) error
	GetRoomRecord(code int) (*models.RoomRecord, error)
	CountRoomRecords() (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
