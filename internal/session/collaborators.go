package session

import (
	"net"

	"github.com/minicraftmp/server/internal/core/wire"
)

// Entity is anything in the world with an entity id.
type Entity interface {
	EntityID() int
}

// Item is an inventory item. Matches compares items by equivalence (same kind
// of item), not identity.
type Item interface {
	Data() string
	Matches(other Item) bool
}

// Participant is the in-world avatar of the connected player.
type Participant interface {
	Entity

	// Data returns the participant's full state as sent in a PLAYER message.
	Data() string
	// ActiveItem returns the held item, or nil.
	ActiveItem() Item
	SetActiveItem(item Item)
	// Remove takes the participant out of the world.
	Remove()
}

// Level is a world level that participants can be spawned into.
type Level interface {
	Depth() int
}

// World creates and respawns participants.
type World interface {
	// NewRemotePlayer returns an unpositioned participant for a remote client.
	NewRemotePlayer(ip net.IP, port int) Participant
	// Respawn returns a new participant carrying over previous' identity,
	// positioned at the spawn point of level.
	Respawn(previous Participant, level Level) Participant
}

// SaveFormat serializes entities for the client. An empty result means the
// entity is not meaningful to the client's view of the world.
type SaveFormat interface {
	SerializeEntity(e Entity, fullDetail bool) string
}

// Registry is the shared server object that routes messages and tracks every
// session and save file.
type Registry interface {
	// ParsePacket interprets a client message, possibly sending replies through
	// s. It returns false if the message was not recognized.
	ParsePacket(s *Session, msg wire.Message) bool
	// SaveFiles enumerates the remote player save files.
	SaveFiles() ([]string, error)
	// OnDisconnect is called once when a session ends.
	OnDisconnect(s *Session)
	WorldPath() string
	SpawnLevel() Level
}
