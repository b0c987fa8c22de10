// room/room.go
package room

import (
	"encoding/json"
	"math/rand"
	"sync"
	"time"
)

// RoomStatus 表示房间的业务状态
type RoomStatus int

const (
	StatusOpen RoomStatus = iota
	StatusFull
	StatusRemoved
)

// Code space for room codes. Codes are 5-digit decimal integers drawn at
// random; the active-room count is assumed to stay far below the space size.
const (
	codeMin   = 10000
	codeSpace = 90000
)

// Player is a roster entry. Name and color are the identity fields the
// coordinator validates; everything else the client sent rides along in
// Extra untouched.
type Player struct {
	Name  string
	Color string
	Extra map[string]json.RawMessage
}

func (p *Player) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["name"]; ok {
		if err := json.Unmarshal(raw, &p.Name); err != nil {
			return err
		}
		delete(fields, "name")
	}
	if raw, ok := fields["color"]; ok {
		if err := json.Unmarshal(raw, &p.Color); err != nil {
			return err
		}
		delete(fields, "color")
	}
	if len(fields) > 0 {
		p.Extra = fields
	}
	return nil
}

func (p Player) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(p.Extra)+2)
	for k, v := range p.Extra {
		fields[k] = v
	}
	name, err := json.Marshal(p.Name)
	if err != nil {
		return nil, err
	}
	color, err := json.Marshal(p.Color)
	if err != nil {
		return nil, err
	}
	fields["name"] = name
	fields["color"] = color
	return json.Marshal(fields)
}

// Room 是游戏房间的核心结构
type Room struct {
	Code      int
	Capacity  int
	Players   []Player
	Auxiliary json.RawMessage
	Status    RoomStatus
	CreatedAt time.Time

	// shuffled guards the one-time turn randomization at the fill join.
	shuffled bool

	// mutex serializes every check-then-mutate sequence on this room.
	// Each connection runs its own read goroutine, so room state would
	// otherwise race between concurrent joins.
	mutex sync.Mutex
}

// snapshotLocked copies the roster for callers that outlive the room lock.
// The caller must hold r.mutex.
func (r *Room) snapshotLocked() Snapshot {
	players := make([]Player, len(r.Players))
	copy(players, r.Players)
	return Snapshot{
		Code:     r.Code,
		Capacity: r.Capacity,
		Players:  players,
	}
}

// Snapshot is the roster view returned by protocol operations and carried
// in relay payloads.
type Snapshot struct {
	Code     int      `json:"code"`
	Capacity int      `json:"capacity"`
	Players  []Player `json:"players"`
}

// --- 房间注册表 ---

// Registry owns the code→Room mapping. It is an injectable struct rather
// than package state so tests can run isolated instances.
type Registry struct {
	rooms map[int]*Room
	mutex sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[int]*Room),
	}
}

// Create allocates a new open room seeded with its creator and registers it
// under a freshly drawn code.
func (reg *Registry) Create(capacity int, creator Player) *Room {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	code := reg.generateCodeLocked()
	room := &Room{
		Code:      code,
		Capacity:  capacity,
		Players:   []Player{creator},
		Status:    StatusOpen,
		CreatedAt: time.Now(),
	}
	reg.rooms[code] = room
	return room
}

// generateCodeLocked draws random 5-digit codes until one misses the active
// set. The caller must hold reg.mutex.
func (reg *Registry) generateCodeLocked() int {
	for {
		code := codeMin + rand.Intn(codeSpace)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}

func (reg *Registry) Get(code int) (*Room, bool) {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()

	room, exists := reg.rooms[code]
	return room, exists
}

// Remove deletes the room and frees its code for future random reassignment.
func (reg *Registry) Remove(code int) (*Room, bool) {
	reg.mutex.Lock()
	defer reg.mutex.Unlock()

	room, exists := reg.rooms[code]
	if exists {
		delete(reg.rooms, code)
	}
	return room, exists
}

func (reg *Registry) Count() int {
	reg.mutex.RLock()
	defer reg.mutex.RUnlock()
	return len(reg.rooms)
}
