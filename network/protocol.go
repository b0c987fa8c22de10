package network

// Inbound commands.
const (
	CmdHeartbeat    = "heartbeat"
	CmdCreate       = "create"
	CmdJoin         = "join"
	CmdRejoin       = "rejoin"
	CmdMove         = "move"
	CmdUpdateAux    = "updateAuxiliary"
	CmdRemovePlayer = "removePlayer"
	CmdRemove       = "remove"
)

// Outbound events. EventRespond carries the direct acknowledgment to the
// acting connection; the rest are relayed to the other room members.
const (
	EventRespond       = "respond"
	EventJoined        = "joined"
	EventPlayedMove    = "on_played_move"
	EventPlayerRemoved = "on_player_removed"
	EventGameRemoved   = "on_game_removed"
)
