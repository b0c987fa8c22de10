// services/room_archive.go
package services

import (
	"time"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/persistence"
	"github.com/wfunc/roomserver/room"
)

// RoomArchive writes a history row when a room is removed. It is write-only
// with respect to live rooms: records are never loaded back into the
// registry, so a restart always starts empty.
type RoomArchive struct {
	db persistence.Database
}

func NewRoomArchive(db persistence.Database) *RoomArchive {
	return &RoomArchive{db: db}
}

// Archive persists the removed room's final state.
func (a *RoomArchive) Archive(r *room.Room) error {
	players := make([]models.PlayerInfo, 0, len(r.Players))
	for _, p := range r.Players {
		players = append(players, models.PlayerInfo{Name: p.Name, Color: p.Color})
	}

	rec := &models.RoomRecord{
		Code:      r.Code,
		Capacity:  r.Capacity,
		Players:   players,
		Auxiliary: r.Auxiliary,
		CreatedAt: r.CreatedAt,
		RemovedAt: time.Now(),
	}
	return a.db.SaveRoomRecord(rec)
}

// ArchiveAsync runs Archive off the event path so a slow database never
// delays an acknowledgment or relay.
func (a *RoomArchive) ArchiveAsync(r *room.Room) {
	go func() {
		if err := a.Archive(r); err != nil {
			logger.Log.Errorf("failed to archive room %d: %v", r.Code, err)
		}
	}()
}

// GetRecord returns the most recent archive row for a code.
func (a *RoomArchive) GetRecord(code int) (*models.RoomRecord, error) {
	return a.db.GetRoomRecord(code)
}

// CountRecords reports how many rooms have been archived.
func (a *RoomArchive) CountRecords() (int64, error) {
	return a.db.CountRoomRecords()
}
