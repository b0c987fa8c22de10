package room

// Broadcaster delivers a room-scoped event to every attached connection
// except the one named by excludeSessionID. This is defined here to break
// the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(code int, excludeSessionID, event string, data []byte) error
}
