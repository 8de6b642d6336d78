package session

import (
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/minicraftmp/server/internal/core/identity"
	"github.com/minicraftmp/server/internal/core/wire"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     []wire.Message
	writeErr error
	closed   int
}

func (t *fakeTransport) RemoteIP() net.IP                    { return net.IPv4(10, 0, 0, 7) }
func (t *fakeTransport) RemotePort() int                     { return 50123 }
func (t *fakeTransport) ReadMessage() (wire.Message, error) { return wire.Message{}, errors.New("not readable") }

func (t *fakeTransport) WriteMessage(m wire.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.sent = append(t.sent, m)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed++
	return nil
}

func (t *fakeTransport) messages() []wire.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]wire.Message(nil), t.sent...)
}

type fakeItem struct {
	name  string
	count int
}

func (i *fakeItem) Data() string { return i.name + "_" + strconv.Itoa(i.count) }

func (i *fakeItem) Matches(other Item) bool {
	o, ok := other.(*fakeItem)
	return ok && o.name == i.name
}

type fakeParticipant struct {
	id      int
	x, y    int
	item    Item
	removed bool
}

func (p *fakeParticipant) EntityID() int          { return p.id }
func (p *fakeParticipant) Data() string           { return strconv.Itoa(p.id) + ";" + strconv.Itoa(p.x) + ";" + strconv.Itoa(p.y) }
func (p *fakeParticipant) ActiveItem() Item       { return p.item }
func (p *fakeParticipant) SetActiveItem(item Item) { p.item = item }
func (p *fakeParticipant) Remove()                { p.removed = true }

type fakeLevel struct {
	depth          int
	spawnX, spawnY int
}

func (l *fakeLevel) Depth() int { return l.depth }

type fakeWorld struct {
	nextID int
}

func (w *fakeWorld) NewRemotePlayer(net.IP, int) Participant {
	w.nextID++
	return &fakeParticipant{id: w.nextID, x: -1, y: -1}
}

func (w *fakeWorld) Respawn(previous Participant, level Level) Participant {
	l := level.(*fakeLevel)
	return &fakeParticipant{id: previous.EntityID(), x: l.spawnX, y: l.spawnY}
}

type fakeEntity struct{ id int }

func (e *fakeEntity) EntityID() int { return e.id }

// Serializes everything except bare entities, which are not of interest to clients.
type fakeFormat struct{}

func (fakeFormat) SerializeEntity(e Entity, fullDetail bool) string {
	if p, ok := e.(*fakeParticipant); ok {
		return "Player[" + p.Data() + "]"
	}
	return ""
}

type fakeRegistry struct {
	mu           sync.Mutex
	dir          string
	handled      []wire.Message
	parse        func(s *Session, msg wire.Message) bool
	disconnected []*Session
	spawn        *fakeLevel
}

func (r *fakeRegistry) ParsePacket(s *Session, msg wire.Message) bool {
	r.mu.Lock()
	r.handled = append(r.handled, msg)
	parse := r.parse
	r.mu.Unlock()
	if parse == nil {
		return msg.Type == wire.Ping
	}
	return parse(s, msg)
}

func (r *fakeRegistry) SaveFiles() ([]string, error) { return identity.ListSaveFiles(r.dir) }

func (r *fakeRegistry) OnDisconnect(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = append(r.disconnected, s)
}

func (r *fakeRegistry) WorldPath() string  { return r.dir }
func (r *fakeRegistry) SpawnLevel() Level { return r.spawn }

type testHarness struct {
	session   *Session
	transport *fakeTransport
	registry  *fakeRegistry
}

func newTestHarness(dir string, hardwareAddr net.HardwareAddr) *testHarness {
	logger, _ := test.NewNullLogger()
	registry := &fakeRegistry{dir: dir, spawn: &fakeLevel{depth: 0, spawnX: 64, spawnY: 32}}
	transport := &fakeTransport{}

	lookup := func(net.IP) (*net.Interface, error) {
		if hardwareAddr == nil {
			return nil, errors.New("no such interface")
		}
		return &net.Interface{Name: "eth0", HardwareAddr: hardwareAddr}, nil
	}

	s := New(Config{
		Registry:        registry,
		World:           &fakeWorld{},
		Format:          fakeFormat{},
		Saves:           identity.NewStore(dir, registry.SaveFiles, logger, time.Minute),
		Logger:          logger,
		LookupInterface: lookup,
		PacketLogging:   true,
	}, transport)

	return &testHarness{session: s, transport: transport, registry: registry}
}
