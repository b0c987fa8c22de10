// room/service.go
package room

import (
	"encoding/json"
	"errors"
	"math/rand"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/network"
)

// ErrorKind is the stable code of an expected validation failure. These are
// returned to the client as-is and are never logged as faults.
type ErrorKind string

const (
	ErrInvalidRoomID ErrorKind = "invalid_room_id"
	ErrRoomFull      ErrorKind = "room_full"
	ErrNameExist     ErrorKind = "name_exist"
	ErrColorExist    ErrorKind = "color_exist"
)

func (k ErrorKind) Message() string {
	switch k {
	case ErrInvalidRoomID:
		return "Please enter a valid room code."
	case ErrRoomFull:
		return "This game room is already full."
	case ErrNameExist:
		return "This name is already taken."
	case ErrColorExist:
		return "This color is already taken."
	}
	return "Something went wrong."
}

// ValidationError distinguishes an expected rejection from an internal
// fault. Handlers unwrap it to build the structured error response.
type ValidationError struct {
	Kind ErrorKind
}

func (e *ValidationError) Error() string {
	return string(e.Kind) + ": " + e.Kind.Message()
}

var errBadCapacity = errors.New("room capacity must be at least 1")

// RemoveResult reports a successful removePlayer: who left, the roster that
// remains, and whether the removal closed the room.
type RemoveResult struct {
	Removed    Player
	Snapshot   Snapshot
	RoomClosed bool
	// ClosedRoom is the final room state when the removal closed the room,
	// for archival. Nil otherwise.
	ClosedRoom *Room
}

// Service is the room session protocol: the sole mutation path for rooms.
// It consults the registry and roster predicates, applies the mutation under
// the room mutex, then instructs the broadcaster to notify the other
// members.
type Service struct {
	registry    *Registry
	broadcaster Broadcaster

	// reclaimSeatPregame mirrors config room.reclaim_seat_pregame: when
	// true, removing a player before the game starts keeps capacity so the
	// seat can be refilled, while a mid-game removal always shrinks it.
	reclaimSeatPregame bool
}

func NewService(registry *Registry, broadcaster Broadcaster, reclaimSeatPregame bool) *Service {
	return &Service{
		registry:           registry,
		broadcaster:        broadcaster,
		reclaimSeatPregame: reclaimSeatPregame,
	}
}

// CreateRoom registers a new open room seeded with its creator. An invalid
// capacity is the one internal fault the caller can trigger; the handler
// maps it to the generic exception status.
func (s *Service) CreateRoom(capacity int, creator Player) (*Snapshot, error) {
	if capacity < 1 {
		return nil, errBadCapacity
	}

	room := s.registry.Create(capacity, creator)

	room.mutex.Lock()
	snapshot := room.snapshotLocked()
	room.mutex.Unlock()

	return &snapshot, nil
}

// JoinRoom runs the validation chain in its fixed priority order and, on
// success, appends the player. The join that fills the room triggers the
// one-time turn shuffle before the roster is returned, so the response and
// the relay both carry the authoritative turn order.
func (s *Service) JoinRoom(code int, p Player, actorID string) (*Snapshot, error) {
	room, exists := s.registry.Get(code)
	if !exists {
		return nil, &ValidationError{Kind: ErrInvalidRoomID}
	}

	room.mutex.Lock()
	if room.Status == StatusRemoved {
		// Lost the race with a concurrent removal.
		room.mutex.Unlock()
		return nil, &ValidationError{Kind: ErrInvalidRoomID}
	}
	if isFull(room) {
		room.mutex.Unlock()
		return nil, &ValidationError{Kind: ErrRoomFull}
	}
	if nameTaken(room, p.Name) {
		room.mutex.Unlock()
		return nil, &ValidationError{Kind: ErrNameExist}
	}
	if colorTaken(room, p.Color) {
		room.mutex.Unlock()
		return nil, &ValidationError{Kind: ErrColorExist}
	}

	room.Players = append(room.Players, p)
	if len(room.Players) == room.Capacity {
		if !room.shuffled {
			rand.Shuffle(len(room.Players), func(i, j int) {
				room.Players[i], room.Players[j] = room.Players[j], room.Players[i]
			})
			room.shuffled = true
		}
		room.Status = StatusFull
	}
	snapshot := room.snapshotLocked()
	room.mutex.Unlock()

	s.relay(code, actorID, network.EventJoined, snapshot)
	return &snapshot, nil
}

// Exists reports whether a room is active. Rejoin uses this to decide
// whether to re-attach a connection; it never mutates the roster.
func (s *Service) Exists(code int) bool {
	_, exists := s.registry.Get(code)
	return exists
}

// RecordMove forwards a move to the other members. Moves are transient: the
// payload is relayed verbatim and never stored. Missing rooms are a silent
// no-op.
func (s *Service) RecordMove(code int, pos, player json.RawMessage, actorID string) {
	if _, exists := s.registry.Get(code); !exists {
		logger.Log.Debugf("move for unknown room %d dropped", code)
		return
	}

	s.relay(code, actorID, network.EventPlayedMove, map[string]interface{}{
		"code":   code,
		"pos":    pos,
		"player": player,
	})
}

// UpdateAuxiliary overwrites the room's opaque auxiliary payload, typically
// a board snapshot. The coordinator never inspects it.
func (s *Service) UpdateAuxiliary(code int, payload json.RawMessage) {
	room, exists := s.registry.Get(code)
	if !exists {
		logger.Log.Debugf("auxiliary update for unknown room %d dropped", code)
		return
	}

	room.mutex.Lock()
	room.Auxiliary = payload
	room.mutex.Unlock()
}

// RemovePlayer removes the player holding the given color token. A mid-game
// removal shrinks capacity since the vacated seat will not be refilled; the
// pre-game behavior follows the reclaim policy. If capacity reaches zero the
// room is closed and its code freed.
func (s *Service) RemovePlayer(code int, color string, gameInProgress bool, actorID string) *RemoveResult {
	room, exists := s.registry.Get(code)
	if !exists {
		logger.Log.Debugf("removePlayer for unknown room %d dropped", code)
		return nil
	}

	room.mutex.Lock()
	idx := -1
	for i, p := range room.Players {
		if p.Color == color {
			idx = i
			break
		}
	}
	if idx < 0 {
		room.mutex.Unlock()
		return nil
	}

	removed := room.Players[idx]
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)

	if gameInProgress || !s.reclaimSeatPregame {
		room.Capacity--
	}
	if len(room.Players) < room.Capacity {
		room.Status = StatusOpen
	}

	closed := room.Capacity < 1
	if closed {
		room.Status = StatusRemoved
	}
	snapshot := room.snapshotLocked()
	room.mutex.Unlock()

	if closed {
		s.registry.Remove(code)
	}

	s.relay(code, actorID, network.EventPlayerRemoved, map[string]interface{}{
		"code":     code,
		"player":   removed,
		"capacity": snapshot.Capacity,
		"players":  snapshot.Players,
	})

	result := &RemoveResult{Removed: removed, Snapshot: snapshot, RoomClosed: closed}
	if closed {
		result.ClosedRoom = room
	}
	return result
}

// RemoveRoom deletes the room from the registry. Terminal: the code becomes
// eligible for reassignment and later operations on it behave as
// "room not found". Returns the removed room for archival, or nil.
func (s *Service) RemoveRoom(code int, actorID string) *Room {
	room, exists := s.registry.Remove(code)
	if !exists {
		logger.Log.Debugf("remove for unknown room %d dropped", code)
		return nil
	}

	room.mutex.Lock()
	room.Status = StatusRemoved
	room.mutex.Unlock()

	s.relay(code, actorID, network.EventGameRemoved, map[string]interface{}{
		"code": code,
	})
	return room
}

// relay is fire-and-forget: a failed delivery must never affect the acting
// connection's acknowledgment.
func (s *Service) relay(code int, actorID, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("failed to marshal %s relay for room %d: %v", event, code, err)
		return
	}
	if err := s.broadcaster.BroadcastToRoom(code, actorID, event, data); err != nil {
		logger.Log.Debugf("relay %s to room %d: %v", event, code, err)
	}
}
