// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/roomserver/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(code int, excludeSessionID, event string, data []byte) error
	BroadcastToAll(event string, data []byte) error
}

// RoomBroadcaster relays events to the sessions attached to a room. The
// session named by excludeSessionID is the acting connection; it gets its
// acknowledgment directly and must never see its own relay.
type RoomBroadcaster struct {
	sessionManager *session.Manager
}

func NewRoomBroadcaster(sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom is fire-and-forget: a dead peer's write error is skipped
// so the remaining members still get the event.
func (b *RoomBroadcaster) BroadcastToRoom(code int, excludeSessionID, event string, data []byte) error {
	sessions := b.sessionManager.GetByRoomCode(code)

	for _, s := range sessions {
		if s.ID == excludeSessionID {
			continue
		}
		if err := s.Send(event, data); err != nil {
			// 处理发送错误，可能需要移除玩家
			continue
		}
	}

	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(event string, data []byte) error {
	for _, s := range b.sessionManager.All() {
		if err := s.Send(event, data); err != nil {
			continue
		}
	}
	return nil
}
