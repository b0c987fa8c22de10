package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/wfunc/roomserver/broadcast"
	"github.com/wfunc/roomserver/config"
	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/monitor"
	"github.com/wfunc/roomserver/network"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
	"github.com/wfunc/roomserver/timer"
	roomserver_rpc "github.com/wfunc/roomserver/rpc"
)

const (
	createExceptionMsg = "Something went wrong, please try to create again."
	joinExceptionMsg   = "Something went wrong, please try to join again."
)

type GameServer struct {
	addr             string
	rpcAddr          string
	heartbeatTimeout time.Duration
	upgrader         websocket.Upgrader
	registry         *room.Registry
	sessionManager   *session.Manager
	service          *room.Service
	broadcaster      broadcast.Broadcaster
	archive          *services.RoomArchive
	mon              *monitor.Monitor
	timers           *timer.Manager
	rpcServer        *roomserver_rpc.Server
	shutdownChan     chan struct{}
}

// NewGameServer wires the coordinator. archive and mon may be nil; the
// server then runs without history rows or metrics.
func NewGameServer(cfg *config.Config, archive *services.RoomArchive, mon *monitor.Monitor) *GameServer {
	s := &GameServer{
		addr:             cfg.Server.HTTPAddress,
		rpcAddr:          cfg.Server.RPCAddress,
		heartbeatTimeout: cfg.Server.HeartbeatTimeout,
		registry:         room.NewRegistry(),
		sessionManager:   session.NewManager(),
		archive:          archive,
		mon:              mon,
		timers:           timer.NewManager(),
		shutdownChan:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	// 初始化广播器
	s.broadcaster = broadcast.NewRoomBroadcaster(s.sessionManager)
	s.service = room.NewService(s.registry, s.broadcaster, cfg.Room.ReclaimSeatPregame)

	return s
}

func (s *GameServer) Start() error {
	// 初始化RPC服务器
	rpcServer, err := roomserver_rpc.NewServer(s.rpcAddr)
	if err != nil {
		return err
	}
	s.rpcServer = rpcServer

	// 注册RPC服务
	coordService := roomserver_rpc.NewCoordinatorService(s.registry, s.sessionManager, s.archive)
	if err := rpc.Register(coordService); err != nil {
		return err
	}
	go s.rpcServer.Start()

	// Sweep dead connections; rooms are never expired, only sessions.
	s.timers.AddTimer(s.heartbeatTimeout, s.heartbeatTimeout/2, s.sweepStaleSessions)
	if s.mon != nil {
		s.timers.AddTimer(10*time.Second, 10*time.Second, func() {
			s.mon.SetActiveRooms(s.registry.Count())
		})
	}

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Room server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	if s.rpcServer != nil {
		s.rpcServer.Stop()
	}
}

func (s *GameServer) sweepStaleSessions() {
	for _, sess := range s.sessionManager.Stale(s.heartbeatTimeout) {
		logger.Log.Infof("Closing stale session %s", sess.GetID())
		sess.Close()
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetHeartbeat(s.heartbeatTimeout)
	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	if s.mon != nil {
		s.mon.IncOnlinePlayers()
	}

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.sessionManager.Remove(sess.GetID())
		if s.mon != nil {
			s.mon.DecOnlinePlayers()
		}
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			packet, err := wsConn.ReadPacket()
			if err != nil {
				return
			}
			s.handlePacket(sess, packet)
		}
	}
}

func (s *GameServer) handlePacket(sess *session.Session, packet *network.Packet) {
	start := time.Now()
	if s.mon != nil {
		s.mon.IncEventsReceived()
		defer func() {
			s.mon.ObserveEventLatency(time.Since(start))
		}()
	}

	switch packet.Event {
	case network.CmdHeartbeat:
		sess.LastActive = time.Now()
	case network.CmdCreate:
		s.handleCreate(sess, packet)
	case network.CmdJoin:
		s.handleJoin(sess, packet)
	case network.CmdRejoin:
		s.handleRejoin(sess, packet)
	case network.CmdMove:
		s.handleMove(sess, packet)
	case network.CmdUpdateAux:
		s.handleUpdateAux(sess, packet)
	case network.CmdRemovePlayer:
		s.handleRemovePlayer(sess, packet)
	case network.CmdRemove:
		s.handleRemove(sess, packet)
	default:
		logger.Log.Infof("Unknown event: %s", packet.Event)
	}
}

type createRequest struct {
	Capacity int         `json:"capacity"`
	Player   room.Player `json:"player"`
}

type joinRequest struct {
	Code   int         `json:"code"`
	Player room.Player `json:"player"`
}

type codeRequest struct {
	Code int `json:"code"`
}

type moveRequest struct {
	Code   int             `json:"code"`
	Pos    json.RawMessage `json:"pos"`
	Player json.RawMessage `json:"player"`
}

type updateAuxRequest struct {
	Code    int             `json:"code"`
	Payload json.RawMessage `json:"payload"`
}

type removePlayerRequest struct {
	Code           int    `json:"code"`
	ColorToken     string `json:"colorToken"`
	GameInProgress bool   `json:"gameInProgress"`
}

type rosterResponse struct {
	Status   string        `json:"status"`
	Code     int           `json:"code"`
	Capacity int           `json:"capacity"`
	Players  []room.Player `json:"players"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
}

func (s *GameServer) respond(sess *session.Session, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Log.Errorf("Failed to marshal response for session %s: %v", sess.GetID(), err)
		return
	}
	if err := sess.Send(network.EventRespond, data); err != nil {
		logger.Log.Debugf("Failed to send response to session %s: %v", sess.GetID(), err)
	}
}

func (s *GameServer) respondException(sess *session.Session, message string) {
	s.respond(sess, errorResponse{Status: "exception", Message: message})
}

// guard converts an unexpected panic in create/join into the generic
// exception response. Validation failures never reach here.
func (s *GameServer) guard(sess *session.Session, message string) {
	if r := recover(); r != nil {
		logger.Log.Errorf("Panic while handling event for session %s: %v", sess.GetID(), r)
		s.respondException(sess, message)
	}
}

func (s *GameServer) handleCreate(sess *session.Session, packet *network.Packet) {
	defer s.guard(sess, createExceptionMsg)

	var req createRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.respondException(sess, createExceptionMsg)
		return
	}

	snapshot, err := s.service.CreateRoom(req.Capacity, req.Player)
	if err != nil {
		logger.Log.Errorf("Create failed for session %s: %v", sess.GetID(), err)
		s.respondException(sess, createExceptionMsg)
		return
	}

	sess.RoomCode = snapshot.Code
	logger.Log.Infof("Session %s created room %d", sess.GetID(), snapshot.Code)
	s.respond(sess, rosterResponse{
		Status:   "created",
		Code:     snapshot.Code,
		Capacity: snapshot.Capacity,
		Players:  snapshot.Players,
	})
}

func (s *GameServer) handleJoin(sess *session.Session, packet *network.Packet) {
	defer s.guard(sess, joinExceptionMsg)

	var req joinRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		s.respondException(sess, joinExceptionMsg)
		return
	}

	snapshot, err := s.service.JoinRoom(req.Code, req.Player, sess.GetID())
	if err != nil {
		var verr *room.ValidationError
		if errors.As(err, &verr) {
			s.respond(sess, errorResponse{
				Status:  "error",
				Error:   string(verr.Kind),
				Message: verr.Kind.Message(),
			})
			return
		}
		logger.Log.Errorf("Join failed for session %s: %v", sess.GetID(), err)
		s.respondException(sess, joinExceptionMsg)
		return
	}

	sess.RoomCode = req.Code
	logger.Log.Infof("Session %s joined room %d", sess.GetID(), req.Code)
	s.respond(sess, rosterResponse{
		Status:   "joined",
		Code:     snapshot.Code,
		Capacity: snapshot.Capacity,
		Players:  snapshot.Players,
	})
}

// handleRejoin re-attaches a connection to an existing room's broadcast
// scope. The roster is untouched; an unknown code is silently ignored.
func (s *GameServer) handleRejoin(sess *session.Session, packet *network.Packet) {
	var req codeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	if s.service.Exists(req.Code) {
		sess.RoomCode = req.Code
		logger.Log.Infof("Session %s rejoined room %d", sess.GetID(), req.Code)
	}
}

func (s *GameServer) handleMove(sess *session.Session, packet *network.Packet) {
	var req moveRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.service.RecordMove(req.Code, req.Pos, req.Player, sess.GetID())
}

func (s *GameServer) handleUpdateAux(sess *session.Session, packet *network.Packet) {
	var req updateAuxRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}
	s.service.UpdateAuxiliary(req.Code, req.Payload)
}

func (s *GameServer) handleRemovePlayer(sess *session.Session, packet *network.Packet) {
	var req removePlayerRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	result := s.service.RemovePlayer(req.Code, req.ColorToken, req.GameInProgress, sess.GetID())
	if result == nil {
		return
	}
	if result.RoomClosed {
		s.detachRoom(req.Code)
		if s.archive != nil && result.ClosedRoom != nil {
			s.archive.ArchiveAsync(result.ClosedRoom)
		}
	}
}

func (s *GameServer) handleRemove(sess *session.Session, packet *network.Packet) {
	var req codeRequest
	if err := json.Unmarshal(packet.Data, &req); err != nil {
		return
	}

	removed := s.service.RemoveRoom(req.Code, sess.GetID())
	if removed == nil {
		return
	}
	s.detachRoom(req.Code)
	if s.archive != nil {
		s.archive.ArchiveAsync(removed)
	}
}

// detachRoom clears the room code from every attached session once a room is
// gone, so a future room reusing the code does not inherit stale listeners.
func (s *GameServer) detachRoom(code int) {
	for _, sess := range s.sessionManager.GetByRoomCode(code) {
		sess.RoomCode = 0
	}
}
