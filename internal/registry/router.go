package registry

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/minicraftmp/server/internal/core/wire"
	"github.com/minicraftmp/server/internal/session"
	"github.com/minicraftmp/server/internal/world"
)

var (
	errNotInWorld = errors.New("player is not in the world")

	// Types that are held back while a client receives its initial view of
	// the world, so that changes made meanwhile arrive after it.
	worldSyncTypes = []wire.Type{wire.Add, wire.Entity, wire.Remove}
)

// ParsePacket handles one message from a client. It returns false for message
// types the server doesn't accept from clients.
func (s *Server) ParsePacket(sess *session.Session, msg wire.Message) bool {
	var err error
	switch msg.Type {
	case wire.Ping:
		err = sess.SendData(wire.Ping, msg.Payload)
	case wire.Login:
		err = s.handleLogin(sess, msg.Payload)
	case wire.Entities:
		err = s.handleEntities(sess)
	case wire.Respawn:
		err = s.handleRespawn(sess)
	case wire.Move:
		err = s.handleMove(sess, msg.Payload)
	case wire.Save:
		s.handleSave(sess, msg.Payload)
	case wire.Interact:
		err = s.handleInteract(sess, msg.Payload)
	case wire.Disconnect:
		sess.Disconnect()
	default:
		return false
	}

	if err != nil && !errors.Is(err, session.ErrClosed) {
		sess.Logger().Debugf("error handling %s: %v", msg.Type, err)
		_ = sess.SendError(cases.Title(language.English).String(err.Error()))
	}
	return true
}

// LOGIN carries "username;version". The player is spawned, sent whatever was
// saved for it last time, and then sent the entities on its level.
func (s *Server) handleLogin(sess *session.Session, payload string) error {
	fields := strings.Split(payload, ";")
	if len(fields) != 2 || fields[0] == "" {
		return fmt.Errorf("invalid login data %q", payload)
	}
	username, version := fields[0], fields[1]

	player, ok := sess.Client().(*world.RemotePlayer)
	if !ok {
		return errNotInWorld
	}
	player.SetUsername(username)
	sess.Logger().Infof("[%s] %s logged in (client version %s)", s.Name, username, version)

	sess.BeginCaching(worldSyncTypes...)
	err := s.sendInitialWorld(sess)
	// Flushed whether or not the initial world made it out.
	if flushErr := sess.SendCachedPackets(); err == nil {
		err = flushErr
	}
	if err != nil {
		return err
	}

	s.BroadcastEntityAddition(sess, sess.Client())
	return nil
}

func (s *Server) sendInitialWorld(sess *session.Session) error {
	if err := sess.Respawn(); err != nil {
		return err
	}
	if err := sess.SendData(wire.Init, sess.LoadSaveData()); err != nil {
		return err
	}

	self := sess.Client()
	for _, e := range self.(*world.RemotePlayer).Level().Entities() {
		if e.EntityID() == self.EntityID() {
			continue
		}
		if err := sess.SendEntityAddition(e); err != nil {
			return err
		}
	}
	return nil
}

// ENTITIES asks for every entity on the player's level, comma separated.
func (s *Server) handleEntities(sess *session.Session) error {
	player, ok := sess.Client().(*world.RemotePlayer)
	if !ok || player.Level() == nil {
		return errNotInWorld
	}

	var entities []string
	for _, e := range player.Level().Entities() {
		if e.EntityID() == player.EntityID() {
			continue
		}
		if data := s.format.SerializeEntity(e, false); data != "" {
			entities = append(entities, data)
		}
	}
	return sess.SendData(wire.Entities, strings.Join(entities, ","))
}

func (s *Server) handleRespawn(sess *session.Session) error {
	previous := sess.Client().EntityID()
	if err := sess.Respawn(); err != nil {
		return err
	}
	s.BroadcastEntityRemoval(sess, previous)
	s.BroadcastEntityAddition(sess, sess.Client())
	return nil
}

// MOVE carries "x;y;dir". Only the fields that changed are passed on.
func (s *Server) handleMove(sess *session.Session, payload string) error {
	player, ok := sess.Client().(*world.RemotePlayer)
	if !ok || player.Level() == nil {
		return errNotInWorld
	}

	coords, err := parseInts(payload, 3)
	if err != nil {
		return fmt.Errorf("invalid move data %q: %w", payload, err)
	}
	updated := player.Move(coords[0], coords[1], coords[2])
	s.BroadcastEntityUpdate(sess, player, updated)
	return nil
}

// SAVE carries the client's serialized player. Failures are logged by the
// session and never reported to the client.
func (s *Server) handleSave(sess *session.Session, payload string) {
	path, err := sess.WriteSave(payload)
	if err != nil {
		return
	}
	s.setSaveFile(sess, path)
}

// INTERACT carries the item the player now holds, or "null".
func (s *Server) handleInteract(sess *session.Session, payload string) error {
	if payload == wire.NullItem {
		return sess.UpdateActiveItem(nil)
	}
	item, err := world.ParseItem(payload)
	if err != nil {
		return err
	}
	return sess.UpdateActiveItem(item)
}

func parseInts(payload string, n int) ([]int, error) {
	fields := strings.Split(payload, ";")
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}

	values := make([]int, n)
	for i, field := range fields {
		v, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}
