// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/roomserver/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 初始化表结构
	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS room_records (
            id SERIAL PRIMARY KEY,
            code INT NOT NULL,
            capacity INT NOT NULL,
            players JSONB NOT NULL,
            auxiliary JSONB,
            room_created_at TIMESTAMP NOT NULL,
            removed_at TIMESTAMP NOT NULL
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_room_records_code ON room_records (code)`)
	return err
}

// SaveRoomRecord 保存房间归档记录
func (p *PostgreSQL) SaveRoomRecord(rec *models.RoomRecord) error {
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return err
	}

	aux := rec.Auxiliary
	if len(aux) == 0 {
		aux = json.RawMessage("null")
	}

	_, err = p.db.Exec(`
        INSERT INTO room_records (code, capacity, players, auxiliary, room_created_at, removed_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Code, rec.Capacity, players, aux, rec.CreatedAt, rec.RemovedAt)
	return err
}

// GetRoomRecord 获取指定房间号最近的一条归档记录
func (p *PostgreSQL) GetRoomRecord(code int) (*models.RoomRecord, error) {
	row := p.db.QueryRow(`
        SELECT code, capacity, players, auxiliary, room_created_at, removed_at
        FROM room_records WHERE code = $1
        ORDER BY removed_at DESC LIMIT 1`, code)

	var rec models.RoomRecord
	var players []byte
	var aux []byte
	err := row.Scan(&rec.Code, &rec.Capacity, &players, &aux, &rec.CreatedAt, &rec.RemovedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(players, &rec.Players); err != nil {
		return nil, err
	}
	if len(aux) > 0 {
		rec.Auxiliary = json.RawMessage(aux)
	}
	return &rec, nil
}

// CountRoomRecords 统计归档记录数量
func (p *PostgreSQL) CountRoomRecords() (int64, error) {
	var count int64
	err := p.db.QueryRow(`SELECT COUNT(*) FROM room_records`).Scan(&count)
	return count, err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
