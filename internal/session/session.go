// Package session implements the server side of one client connection: it
// translates between wire messages and changes to the shared world, and saves
// the connected player between visits.
package session

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/minicraftmp/server/internal/core/client"
	"github.com/minicraftmp/server/internal/core/debug"
	"github.com/minicraftmp/server/internal/core/identity"
	"github.com/minicraftmp/server/internal/core/packetcache"
	"github.com/minicraftmp/server/internal/core/wire"
)

// ErrClosed is returned by sends attempted after the session has disconnected.
var ErrClosed = errors.New("session is disconnected")

// State is the lifecycle state of a Session.
type State int32

const (
	Connecting State = iota
	Active
	Respawning
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Active:
		return "ACTIVE"
	case Respawning:
		return "RESPAWNING"
	case Disconnected:
		return "DISCONNECTED"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Config holds the collaborators a Session is built with.
type Config struct {
	Registry Registry
	World    World
	Format   SaveFormat
	Saves    *identity.Store
	Logger   logrus.FieldLogger

	// LookupInterface finds the network interface the session's identity is
	// derived from. Defaults to client.LookupInterface.
	LookupInterface func(ip net.IP) (*net.Interface, error)
	// PacketLogging logs every message sent and received.
	PacketLogging bool
}

// Session is one connected client.
type Session struct {
	registry  Registry
	world     World
	format    SaveFormat
	saves     *identity.Store
	transport client.Transport
	logger    logrus.FieldLogger

	// Network interface the identity token is derived from; nil if the
	// lookup failed.
	computer      *net.Interface
	packetLogging bool

	state atomic.Int32

	clientMu sync.RWMutex
	client   Participant

	// One inbound message is handled at a time.
	dispatchMu sync.Mutex
	// Guards cache and every write to the transport.
	sendMu sync.Mutex
	cache  *packetcache.Cache
	// Serializes active item changes so that the compare and the sends that
	// follow it happen together.
	itemMu sync.Mutex
}

// New sets up a session for a newly accepted connection. The participant is
// created unpositioned; it is placed in the world by a respawn.
func New(cfg Config, transport client.Transport) *Session {
	s := &Session{
		registry:      cfg.Registry,
		world:         cfg.World,
		format:        cfg.Format,
		saves:         cfg.Saves,
		transport:     transport,
		packetLogging: cfg.PacketLogging,
		cache:         packetcache.New(),
	}
	s.state.Store(int32(Connecting))

	remote := net.JoinHostPort(transport.RemoteIP().String(), strconv.Itoa(transport.RemotePort()))
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s.logger = logger.WithField("client", remote)

	s.client = s.world.NewRemotePlayer(transport.RemoteIP(), transport.RemotePort())

	lookup := cfg.LookupInterface
	if lookup == nil {
		lookup = client.LookupInterface
	}
	computer, err := lookup(transport.RemoteIP())
	if err != nil {
		// Without an interface there's no identity; the player is treated as new.
		s.logger.Warnf("couldn't get network interface from socket address: %v", err)
	}
	s.computer = computer

	s.state.Store(int32(Active))
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Client returns the current participant. The participant is replaced on
// respawn, so callers should fetch it again rather than hold on to it.
func (s *Session) Client() Participant {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return s.client
}

// Transport returns the connection the session communicates over.
func (s *Session) Transport() client.Transport {
	return s.transport
}

// Logger returns the session's logger, tagged with the client address.
func (s *Session) Logger() logrus.FieldLogger {
	return s.logger
}

func (s *Session) String() string {
	return "session for " + s.transport.RemoteIP().String()
}

// Dispatch hands an inbound message to the registry's router. Messages the
// router doesn't recognize are answered with an INVALID message.
func (s *Session) Dispatch(msg wire.Message) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if s.State() == Disconnected {
		return
	}
	if s.packetLogging {
		debug.LogMessage(s.logger, debug.ClientToServer, s.transport.RemoteIP().String(), msg)
	}

	if !s.registry.ParsePacket(s, msg) {
		_ = s.SendError(fmt.Sprintf("unrecognized %s message", msg.Type))
	}
}

// SendData sends a message to the client, or defers it if its type is being
// cached. A failed write ends the session.
func (s *Session) SendData(t wire.Type, payload string) error {
	if s.State() == Disconnected {
		return ErrClosed
	}

	s.sendMu.Lock()
	_, err := s.cache.Send(wire.Message{Type: t, Payload: payload}, s.transmit)
	s.sendMu.Unlock()

	if err != nil {
		s.transportFailed(err)
	}
	return err
}

// transmit writes directly to the transport. Callers hold sendMu.
func (s *Session) transmit(m wire.Message) error {
	if s.packetLogging {
		debug.LogMessage(s.logger, debug.ServerToClient, s.transport.RemoteIP().String(), m)
	}
	return s.transport.WriteMessage(m)
}

func (s *Session) transportFailed(err error) {
	s.logger.Warnf("error in client communication: %v", err)
	s.Disconnect()
}

// SendError sends an INVALID message carrying a description of the problem.
func (s *Session) SendError(message string) error {
	s.logger.Debugf("sending error: %q", message)
	return s.SendData(wire.Invalid, message)
}

// BeginCaching defers messages of the given types until SendCachedPackets.
func (s *Session) BeginCaching(types ...wire.Type) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	s.cache.BeginCaching(types...)
}

// SendCachedPackets stops caching and sends every deferred message in order.
func (s *Session) SendCachedPackets() error {
	if s.State() == Disconnected {
		return ErrClosed
	}

	s.sendMu.Lock()
	err := s.cache.Flush(s.transmit)
	s.sendMu.Unlock()

	if err != nil {
		s.transportFailed(err)
	}
	return err
}

// SendEntityUpdate sends the changed fields of an entity. Nothing is sent if
// no fields changed.
func (s *Session) SendEntityUpdate(e Entity, updatedFields string) error {
	if updatedFields == "" {
		return nil
	}
	if _, ok := e.(Participant); ok {
		s.logger.Debugf("sending player update for %d: %s", e.EntityID(), updatedFields)
	}
	return s.SendData(wire.Entity, strconv.Itoa(e.EntityID())+";"+updatedFields)
}

// SendEntityAddition sends an entity that was added to the client's level.
// Entities that serialize to nothing are of no interest to the client.
func (s *Session) SendEntityAddition(e Entity) error {
	data := s.format.SerializeEntity(e, false)
	if data == "" {
		s.logger.Debugf("entity %d not worth adding to client level; not sending", e.EntityID())
		return nil
	}
	return s.SendData(wire.Add, data)
}

func (s *Session) SendEntityRemoval(entityID int) error {
	return s.SendData(wire.Remove, strconv.Itoa(entityID))
}

func (s *Session) SendPlayerHurt(damage, attackDir int) error {
	return s.SendData(wire.Hurt, strconv.Itoa(damage)+";"+strconv.Itoa(attackDir))
}

// UpdateActiveItem changes the participant's held item. The previously held
// item (if any) is sent back to storage first. Nothing happens if the new item
// is equivalent to the held one.
func (s *Session) UpdateActiveItem(item Item) error {
	s.itemMu.Lock()
	defer s.itemMu.Unlock()

	player := s.Client()
	current := player.ActiveItem()
	if itemsMatch(current, item) {
		s.logger.Debugf("player active item is already %v; not updating", item)
		return nil
	}

	if current != nil {
		if err := s.SendData(wire.ChestOut, current.Data()); err != nil {
			return err
		}
	}
	player.SetActiveItem(item)

	payload := wire.NullItem
	if item != nil {
		payload = item.Data()
	}
	return s.SendData(wire.Interact, payload)
}

func itemsMatch(a, b Item) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Matches(b)
}

// Respawn replaces the participant with a new one at the spawn level and sends
// the client its new state.
func (s *Session) Respawn() error {
	if !s.state.CompareAndSwap(int32(Active), int32(Respawning)) {
		if s.State() == Disconnected {
			return ErrClosed
		}
		return fmt.Errorf("cannot respawn while %s", s.State())
	}
	defer s.state.CompareAndSwap(int32(Respawning), int32(Active))

	s.clientMu.Lock()
	s.client = s.world.Respawn(s.client, s.registry.SpawnLevel())
	data := s.client.Data()
	s.clientMu.Unlock()

	return s.SendData(wire.Player, data)
}

// Token derives the identity token of the connected host.
func (s *Session) Token() (identity.Token, error) {
	return identity.DeriveToken(s.computer)
}

// LoadSaveData returns the stored data for this host, or an empty string if
// the host has never saved or can't be identified.
func (s *Session) LoadSaveData() string {
	token, err := s.Token()
	if err != nil {
		s.logger.Infof("no identity for client (%v); treating as a new player", err)
		return ""
	}

	data, err := s.saves.Load(token)
	if err != nil {
		s.logger.Errorf("%v", err)
		return ""
	}
	return data
}

// WriteSave persists playerData for this host and returns the file written.
// Failures are logged and returned; they never end the session.
func (s *Session) WriteSave(playerData string) (string, error) {
	token, err := s.Token()
	if err != nil {
		s.logger.Errorf("error saving player file; couldn't get client hardware address: %v", err)
		return "", err
	}

	path, err := s.saves.Persist(token, playerData)
	if err != nil {
		s.logger.Errorf("%v", err)
		return "", err
	}
	s.logger.Debugf("saved remote player %s to %s", token, path)
	return path, nil
}

// Disconnect closes the connection, removes the participant from the world,
// and tells the registry the session is gone. Only the first call has any
// effect.
func (s *Session) Disconnect() {
	if State(s.state.Swap(int32(Disconnected))) == Disconnected {
		return
	}

	if err := s.transport.Close(); err != nil {
		s.logger.Debugf("failed to close client connection: %v", err)
	}
	s.Client().Remove()
	s.registry.OnDisconnect(s)
}
