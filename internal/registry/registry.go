// Package registry holds the state shared by every connected session: the
// world, the save directory and the set of live sessions. It also routes
// client messages to the code that handles them.
package registry

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/minicraftmp/server/internal/core"
	"github.com/minicraftmp/server/internal/core/client"
	"github.com/minicraftmp/server/internal/core/data"
	"github.com/minicraftmp/server/internal/core/identity"
	"github.com/minicraftmp/server/internal/core/wire"
	"github.com/minicraftmp/server/internal/session"
	"github.com/minicraftmp/server/internal/world"
)

// Server is the registry every session reports to.
type Server struct {
	Name   string
	Config *core.Config
	Logger *logrus.Logger
	World  *world.World
	// DB is the player index. Nil disables it.
	DB *gorm.DB

	// LookupInterface overrides how sessions find the network interface their
	// identity is derived from.
	LookupInterface func(ip net.IP) (*net.Interface, error)

	saves  *identity.Store
	format world.Format

	mu       sync.RWMutex
	sessions map[*session.Session]*liveSession
}

// Bookkeeping for a connected session.
type liveSession struct {
	connectedAt time.Time
	// Last file the session's player was saved to.
	saveFile string
}

func (s *Server) Identifier() string {
	return s.Name
}

// Init prepares the save directory. It must be called before any client connects.
func (s *Server) Init(_ context.Context) error {
	if err := os.MkdirAll(s.WorldPath(), 0755); err != nil {
		return fmt.Errorf("error creating world directory: %w", err)
	}
	if s.World == nil {
		s.World = world.NewDefault()
	}
	s.saves = identity.NewStore(s.WorldPath(), s.SaveFiles, s.Logger, s.Config.Saves.LookupTTL)
	s.sessions = make(map[*session.Session]*liveSession)
	return nil
}

// Connect starts a session for a newly accepted client.
func (s *Server) Connect(t client.Transport) *session.Session {
	sess := session.New(session.Config{
		Registry:        s,
		World:           s.World,
		Format:          s.format,
		Saves:           s.saves,
		Logger:          s.Logger,
		LookupInterface: s.LookupInterface,
		PacketLogging:   s.Config.Debugging.PacketLoggingEnabled,
	}, t)

	s.mu.Lock()
	s.sessions[sess] = &liveSession{connectedAt: time.Now()}
	s.mu.Unlock()

	return sess
}

// Handle passes a message from the client to its session. An error means the
// client should no longer be read from.
func (s *Server) Handle(_ context.Context, sess *session.Session, msg wire.Message) error {
	sess.Dispatch(msg)
	if sess.State() == session.Disconnected {
		return session.ErrClosed
	}
	return nil
}

// SaveFiles lists the remote player save files in the world directory.
func (s *Server) SaveFiles() ([]string, error) {
	return identity.ListSaveFiles(s.WorldPath())
}

func (s *Server) WorldPath() string {
	return s.Config.WorldPath
}

func (s *Server) SpawnLevel() session.Level {
	return s.World.SpawnLevel()
}

// OnDisconnect forgets sess and tells the other sessions its player is gone.
func (s *Server) OnDisconnect(sess *session.Session) {
	s.mu.Lock()
	live, ok := s.sessions[sess]
	delete(s.sessions, sess)
	s.mu.Unlock()

	if !ok {
		return
	}
	s.Logger.Infof("[%s] %v disconnected", s.Name, sess)

	s.BroadcastEntityRemoval(sess, sess.Client().EntityID())
	s.recordSession(sess, live)
}

func (s *Server) recordSession(sess *session.Session, live *liveSession) {
	if s.DB == nil {
		return
	}
	token, err := sess.Token()
	if err != nil {
		return
	}

	player := &data.Player{
		Token:       token.String(),
		LastAddress: sess.Transport().RemoteIP().String(),
		LastSeen:    time.Now(),
	}
	if live.saveFile != "" {
		player.SaveFile = filepath.Base(live.saveFile)
	}
	if p, ok := sess.Client().(*world.RemotePlayer); ok {
		player.Username = p.Username()
	}
	if err := data.RecordSession(s.DB, player); err != nil {
		s.Logger.Errorf("failed to record session for %s: %v", token, err)
	}
}

// Sessions returns the live sessions.
func (s *Server) Sessions() []*session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*session.Session, 0, len(s.sessions))
	for sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// Broadcast calls send for every session other than except whose player is in
// the world. Failed sends end the session they were made on and are otherwise
// ignored.
func (s *Server) Broadcast(except *session.Session, send func(*session.Session) error) {
	for _, sess := range s.Sessions() {
		if sess == except || !inWorld(sess) {
			continue
		}
		if err := send(sess); err != nil {
			s.Logger.Debugf("broadcast to %v failed: %v", sess, err)
		}
	}
}

func (s *Server) BroadcastEntityUpdate(except *session.Session, e session.Entity, updatedFields string) {
	s.Broadcast(except, func(sess *session.Session) error {
		return sess.SendEntityUpdate(e, updatedFields)
	})
}

func (s *Server) BroadcastEntityAddition(except *session.Session, e session.Entity) {
	s.Broadcast(except, func(sess *session.Session) error {
		return sess.SendEntityAddition(e)
	})
}

func (s *Server) BroadcastEntityRemoval(except *session.Session, entityID int) {
	s.Broadcast(except, func(sess *session.Session) error {
		return sess.SendEntityRemoval(entityID)
	})
}

func (s *Server) setSaveFile(sess *session.Session, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if live, ok := s.sessions[sess]; ok {
		live.saveFile = path
	}
}

// inWorld reports whether the session's player has been spawned.
func inWorld(sess *session.Session) bool {
	p, ok := sess.Client().(*world.RemotePlayer)
	return ok && p.Level() != nil
}
