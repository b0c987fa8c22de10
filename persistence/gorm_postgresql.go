// persistence/gorm_postgresql.go
package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/roomserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// autoMigrate 自动迁移表结构
func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormRoomRecord{},
	)
}

// SaveRoomRecord 保存房间归档记录
func (p *GormPostgreSQL) SaveRoomRecord(rec *models.RoomRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}

	row := models.GormRoomRecord{
		Code:          rec.Code,
		Capacity:      rec.Capacity,
		Players:       players,
		Auxiliary:     rec.Auxiliary,
		RoomCreatedAt: rec.CreatedAt,
		RemovedAt:     rec.RemovedAt,
	}
	return p.db.Create(&row).Error
}

// GetRoomRecord 获取指定房间号最近的一条归档记录
func (p *GormPostgreSQL) GetRoomRecord(code int) (*models.RoomRecord, error) {
	var row models.GormRoomRecord
	err := p.db.Where("code = ?", code).Order("removed_at DESC").First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := models.RoomRecord{
		Code:      row.Code,
		Capacity:  row.Capacity,
		Auxiliary: row.Auxiliary,
		CreatedAt: row.RoomCreatedAt,
		RemovedAt: row.RemovedAt,
	}
	if err := json.Unmarshal(row.Players, &rec.Players); err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountRoomRecords 统计归档记录数量
func (p *GormPostgreSQL) CountRoomRecords() (int64, error) {
	var count int64
	err := p.db.Model(&models.GormRoomRecord{}).Count(&count).Error
	return count, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
