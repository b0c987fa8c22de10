package server

import (
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/session"
)

func TestMain(m *testing.M) {
	logger.InitDevelopment()
	m.Run()
}

// MockConnection records every event sent to it.
type MockConnection struct {
	events []sentEvent
}

type sentEvent struct {
	event string
	data  []byte
}

func (m *MockConnection) Send(event string, data []byte) error {
	m.events = append(m.events, sentEvent{event: event, data: data})
	return nil
}

func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func (m *MockConnection) last(t *testing.T) sentEvent {
	t.Helper()
	if len(m.events) == 0 {
		t.Fatal("Expected a sent event, got none")
	}
	return m.events[len(m.events)-1]
}

func newTestServer() *GameServer {
	cfg := &config.Config{}
	cfg.Server.HTTPAddress = ":0"
	cfg.Server.RPCAddress = ":0"
	cfg.Server.HeartbeatTimeout = time.Minute
	cfg.Room.ReclaimSeatPregame = true
	return NewGameServer(cfg, nil, nil)
}

func connect(s *GameServer, id string) (*session.Session, *MockConnection) {
	conn := &MockConnection{}
	sess := session.NewSession(id, conn)
	s.sessionManager.Add(sess)
	return sess, conn
}

func dispatch(s *GameServer, sess *session.Session, event string, payload string) {
	s.handlePacket(sess, &network.Packet{Event: event, Data: json.RawMessage(payload)})
}

type respondPayload struct {
	Status   string            `json:"status"`
	Error    string            `json:"error"`
	Message  string            `json:"message"`
	Code     int               `json:"code"`
	Capacity int               `json:"capacity"`
	Players  []json.RawMessage `json:"players"`
}

func lastRespond(t *testing.T, conn *MockConnection) respondPayload {
	t.Helper()
	sent := conn.last(t)
	if sent.event != network.EventRespond {
		t.Fatalf("Expected a respond event, got %s", sent.event)
	}
	var payload respondPayload
	if err := json.Unmarshal(sent.data, &payload); err != nil {
		t.Fatalf("Respond payload is not valid JSON: %v", err)
	}
	return payload
}

func TestGameServer_CreateJoinMoveScenario(t *testing.T) {
	s := newTestServer()

	annSess, annConn := connect(s, "ann-session")
	boSess, boConn := connect(s, "bo-session")

	// Ann creates a two-seat room.
	dispatch(s, annSess, network.CmdCreate, `{"capacity":2,"player":{"name":"Ann","color":"red"}}`)
	created := lastRespond(t, annConn)
	if created.Status != "created" || created.Capacity != 2 || len(created.Players) != 1 {
		t.Fatalf("Unexpected create response: %+v", created)
	}
	code := created.Code
	if annSess.RoomCode != code {
		t.Errorf("Create should attach the session to the room")
	}

	// Bo tries a bad code.
	dispatch(s, boSess, network.CmdJoin, fmt.Sprintf(`{"code":%d,"player":{"name":"Bo","color":"blue"}}`, code+1))
	rejected := lastRespond(t, boConn)
	if rejected.Status != "error" || rejected.Error != "invalid_room_id" {
		t.Fatalf("Expected invalid_room_id, got %+v", rejected)
	}

	// Bo collides with Ann's name, normalization included.
	dispatch(s, boSess, network.CmdJoin, fmt.Sprintf(`{"code":%d,"player":{"name":"ann ","color":"blue"}}`, code))
	rejected = lastRespond(t, boConn)
	if rejected.Error != "name_exist" {
		t.Fatalf("Expected name_exist, got %+v", rejected)
	}

	// Validation failures never reach Ann.
	if len(annConn.events) != 1 {
		t.Fatalf("Ann should only have her create response so far, got %d events", len(annConn.events))
	}

	// Bo joins cleanly; the room fills.
	dispatch(s, boSess, network.CmdJoin, fmt.Sprintf(`{"code":%d,"player":{"name":"Bo","color":"blue"}}`, code))
	joined := lastRespond(t, boConn)
	if joined.Status != "joined" || len(joined.Players) != 2 {
		t.Fatalf("Unexpected join response: %+v", joined)
	}
	if boSess.RoomCode != code {
		t.Error("Join should attach the session to the room")
	}

	// Ann, and only Ann, gets the joined relay.
	annRelay := annConn.last(t)
	if annRelay.event != network.EventJoined {
		t.Fatalf("Ann should receive the joined relay, got %s", annRelay.event)
	}
	for _, sent := range boConn.events {
		if sent.event == network.EventJoined {
			t.Error("Bo must not receive his own joined relay")
		}
	}

	// Bo plays a move; Ann sees it, Bo does not.
	boEvents := len(boConn.events)
	dispatch(s, boSess, network.CmdMove, fmt.Sprintf(`{"code":%d,"pos":5,"player":{"name":"Bo","color":"blue"}}`, code))
	moveRelay := annConn.last(t)
	if moveRelay.event != network.EventPlayedMove {
		t.Fatalf("Ann should receive on_played_move, got %s", moveRelay.event)
	}
	var movePayload struct {
		Code int             `json:"code"`
		Pos  json.RawMessage `json:"pos"`
	}
	if err := json.Unmarshal(moveRelay.data, &movePayload); err != nil {
		t.Fatalf("Move relay payload invalid: %v", err)
	}
	if movePayload.Code != code || string(movePayload.Pos) != "5" {
		t.Errorf("Unexpected move relay: %+v", movePayload)
	}
	if len(boConn.events) != boEvents {
		t.Error("A move must not echo anything to the acting connection")
	}

	// Bo removes the game; Ann gets on_game_removed and is detached.
	dispatch(s, boSess, network.CmdRemove, fmt.Sprintf(`{"code":%d}`, code))
	removedRelay := annConn.last(t)
	if removedRelay.event != network.EventGameRemoved {
		t.Fatalf("Ann should receive on_game_removed, got %s", removedRelay.event)
	}
	if annSess.RoomCode != 0 || boSess.RoomCode != 0 {
		t.Error("Removing a room should detach its sessions")
	}

	// The code is gone now.
	dispatch(s, boSess, network.CmdJoin, fmt.Sprintf(`{"code":%d,"player":{"name":"Bo","color":"blue"}}`, code))
	rejected = lastRespond(t, boConn)
	if rejected.Error != "invalid_room_id" {
		t.Fatalf("Expected invalid_room_id after removal, got %+v", rejected)
	}
}

func TestGameServer_Rejoin(t *testing.T) {
	s := newTestServer()

	annSess, _ := connect(s, "ann-session")
	boSess, boConn := connect(s, "bo-session")

	dispatch(s, annSess, network.CmdCreate, `{"capacity":3,"player":{"name":"Ann","color":"red"}}`)
	code := annSess.RoomCode

	// Rejoin attaches the connection without touching the roster.
	dispatch(s, boSess, network.CmdRejoin, fmt.Sprintf(`{"code":%d}`, code))
	if boSess.RoomCode != code {
		t.Fatal("Rejoin should attach the session to the room")
	}
	if len(boConn.events) != 0 {
		t.Error("Rejoin has no acknowledgment")
	}

	// Bo now receives relays for the room.
	dispatch(s, annSess, network.CmdMove, fmt.Sprintf(`{"code":%d,"pos":1,"player":{}}`, code))
	if boConn.last(t).event != network.EventPlayedMove {
		t.Error("A rejoined session should receive relays")
	}

	// Rejoining an unknown room is a silent no-op.
	other, otherConn := connect(s, "other-session")
	dispatch(s, other, network.CmdRejoin, `{"code":11111}`)
	if other.RoomCode != 0 {
		t.Error("Rejoin to an unknown room must not attach")
	}
	if len(otherConn.events) != 0 {
		t.Error("Rejoin to an unknown room must stay silent")
	}
}

func TestGameServer_UpdateAuxAndRemovePlayer(t *testing.T) {
	s := newTestServer()

	annSess, annConn := connect(s, "ann-session")
	boSess, boConn := connect(s, "bo-session")

	dispatch(s, annSess, network.CmdCreate, `{"capacity":2,"player":{"name":"Ann","color":"red"}}`)
	code := annSess.RoomCode
	dispatch(s, boSess, network.CmdJoin, fmt.Sprintf(`{"code":%d,"player":{"name":"Bo","color":"blue"}}`, code))

	// Auxiliary snapshots are stored without any acknowledgment or relay.
	annEvents, boEvents := len(annConn.events), len(boConn.events)
	dispatch(s, annSess, network.CmdUpdateAux, fmt.Sprintf(`{"code":%d,"payload":{"board":[0,1,2]}}`, code))
	if len(annConn.events) != annEvents || len(boConn.events) != boEvents {
		t.Error("updateAuxiliary must not emit events")
	}

	// Removing Bo mid-game relays to Ann and shrinks the room.
	dispatch(s, annSess, network.CmdRemovePlayer, fmt.Sprintf(`{"code":%d,"colorToken":"blue","gameInProgress":true}`, code))
	relay := boConn.last(t)
	if relay.event != network.EventPlayerRemoved {
		t.Fatalf("Bo should receive on_player_removed, got %s", relay.event)
	}
	var removedPayload struct {
		Capacity int `json:"capacity"`
	}
	if err := json.Unmarshal(relay.data, &removedPayload); err != nil {
		t.Fatalf("Removal relay payload invalid: %v", err)
	}
	if removedPayload.Capacity != 1 {
		t.Errorf("Expected capacity 1 after mid-game removal, got %d", removedPayload.Capacity)
	}
	if len(annConn.events) != annEvents {
		t.Error("The acting connection must not receive the removal relay")
	}

	// Unknown color is a silent no-op.
	annEvents, boEvents = len(annConn.events), len(boConn.events)
	dispatch(s, annSess, network.CmdRemovePlayer, fmt.Sprintf(`{"code":%d,"colorToken":"green","gameInProgress":true}`, code))
	if len(annConn.events) != annEvents || len(boConn.events) != boEvents {
		t.Error("Removing an unknown color must stay silent")
	}
}

func TestGameServer_CreateExceptionOnBadPayload(t *testing.T) {
	s := newTestServer()

	sess, conn := connect(s, "session")

	dispatch(s, sess, network.CmdCreate, `{"capacity":0,"player":{"name":"Ann","color":"red"}}`)
	resp := lastRespond(t, conn)
	if resp.Status != "exception" {
		t.Fatalf("Expected exception status, got %+v", resp)
	}
	if resp.Message != createExceptionMsg {
		t.Errorf("Expected the fixed exception message, got %q", resp.Message)
	}

	dispatch(s, sess, network.CmdCreate, `not json`)
	resp = lastRespond(t, conn)
	if resp.Status != "exception" {
		t.Fatalf("Expected exception for malformed payload, got %+v", resp)
	}

	// No room was registered by either attempt.
	if s.registry.Count() != 0 {
		t.Errorf("Failed creates must not leave rooms behind, got %d", s.registry.Count())
	}
}

func TestGameServer_Heartbeat(t *testing.T) {
	s := newTestServer()

	sess, conn := connect(s, "session")
	sess.LastActive = time.Now().Add(-time.Hour)

	dispatch(s, sess, network.CmdHeartbeat, ``)
	if time.Since(sess.LastActive) > time.Second {
		t.Error("Heartbeat should refresh LastActive")
	}
	if len(conn.events) != 0 {
		t.Error("Heartbeat has no acknowledgment")
	}
}
