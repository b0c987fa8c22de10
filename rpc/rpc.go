package rpc

import (
	"net"
	"net/rpc"

	"github.com/wfunc/roomserver/logger"
	"github.com/wfunc/roomserver/models"
	"github.com/wfunc/roomserver/room"
	"github.com/wfunc/roomserver/services"
	"github.com/wfunc/roomserver/session"
)

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server. Services are registered by the caller
// before Start.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			// Check if the error is due to the listener being closed.
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// CoordinatorService exposes admin methods over net/rpc.
type CoordinatorService struct {
	registry *room.Registry
	sessions *session.Manager
	archive  *services.RoomArchive
}

// NewCoordinatorService creates a new CoordinatorService. archive may be nil
// when the server runs without a database.
func NewCoordinatorService(registry *room.Registry, sessions *session.Manager, archive *services.RoomArchive) *CoordinatorService {
	return &CoordinatorService{registry: registry, sessions: sessions, archive: archive}
}

type StatsArgs struct{}

type StatsReply struct {
	ActiveRooms   int
	OnlinePlayers int
	ArchivedRooms int64
}

// Stats reports live counts and the archive size.
func (cs *CoordinatorService) Stats(args *StatsArgs, reply *StatsReply) error {
	reply.ActiveRooms = cs.registry.Count()
	reply.OnlinePlayers = cs.sessions.Count()
	if cs.archive != nil {
		count, err := cs.archive.CountRecords()
		if err != nil {
			return err
		}
		reply.ArchivedRooms = count
	}
	return nil
}

type GetRecordArgs struct {
	Code int
}

type GetRecordReply struct {
	Record *models.RoomRecord
}

// GetRecord fetches the most recent archive row for a room code.
func (cs *CoordinatorService) GetRecord(args *GetRecordArgs, reply *GetRecordReply) error {
	if cs.archive == nil {
		return nil
	}
	rec, err := cs.archive.GetRecord(args.Code)
	if err != nil {
		return err
	}
	reply.Record = rec
	return nil
}
