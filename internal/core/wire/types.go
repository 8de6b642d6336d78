// Message types exchanged between the server and game clients.
package wire

import "strconv"

// Type identifies a message on the wire by its ordinal.
type Type int

// Message types in wire order. The ordinal of each constant is what is sent on
// the wire, so new types must only ever be appended.
const (
	Invalid Type = iota
	Ping
	Usernames
	Login
	Game
	Init
	Tiles
	Entities
	Tile
	Entity
	Player
	Move
	Add
	Remove
	Disconnect
	Save
	Notify
	Interact
	Push
	Pickup
	ChestIn
	ChestOut
	AddItems
	Bed
	Potion
	Hurt
	Die
	Respawn
	Drop
	Stamina
	Shirt
	StopFishing

	numTypes
)

var typeNames = [numTypes]string{
	"INVALID", "PING", "USERNAMES", "LOGIN", "GAME", "INIT", "TILES", "ENTITIES",
	"TILE", "ENTITY", "PLAYER", "MOVE", "ADD", "REMOVE", "DISCONNECT", "SAVE",
	"NOTIFY", "INTERACT", "PUSH", "PICKUP", "CHEST_IN", "CHEST_OUT", "ADD_ITEMS",
	"BED", "POTION", "HURT", "DIE", "RESPAWN", "DROP", "STAMINA", "SHIRT",
	"STOP_FISHING",
}

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	return t >= 0 && t < numTypes
}

func (t Type) String() string {
	if !t.Valid() {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// NullItem is the payload sent in place of item data when there is no item.
const NullItem = "null"
