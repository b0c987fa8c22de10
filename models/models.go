// models/models.go
package models

import (
	"encoding/json"
	"time"
)

// RoomRecord 房间归档记录
// Written when a room is removed; never read back into live state.
type RoomRecord struct {
	Code      int             `json:"code"`
	Capacity  int             `json:"capacity"`
	Players   []PlayerInfo    `json:"players"`
	Auxiliary json.RawMessage `json:"auxiliary,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	RemovedAt time.Time       `json:"removed_at"`
}

// PlayerInfo 玩家信息（用于归档记录）
type PlayerInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}
