// Package world is a small in-memory world: levels, entities and remote
// players. It provides what sessions need from the simulation and nothing else.
package world

import (
	"net"
	"sort"
	"sync"

	"github.com/minicraftmp/server/internal/session"
)

// Level holds the entities on one depth of the world.
type Level struct {
	depth          int
	SpawnX, SpawnY int

	mu       sync.RWMutex
	entities map[int]session.Entity
}

func NewLevel(depth, spawnX, spawnY int) *Level {
	return &Level{
		depth:    depth,
		SpawnX:   spawnX,
		SpawnY:   spawnY,
		entities: make(map[int]session.Entity),
	}
}

func (l *Level) Depth() int { return l.depth }

func (l *Level) add(e session.Entity) {
	l.mu.Lock()
	l.entities[e.EntityID()] = e
	l.mu.Unlock()
}

func (l *Level) remove(e session.Entity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// Only remove the entity if it's still the one registered under its id;
	// a respawned player reuses the id of the one it replaced.
	if l.entities[e.EntityID()] == e {
		delete(l.entities, e.EntityID())
	}
}

// Entities returns the entities on the level ordered by id.
func (l *Level) Entities() []session.Entity {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entities := make([]session.Entity, 0, len(l.entities))
	for _, e := range l.entities {
		entities = append(entities, e)
	}
	sort.Slice(entities, func(i, j int) bool {
		return entities[i].EntityID() < entities[j].EntityID()
	})
	return entities
}

// World owns every level and hands out entity ids.
type World struct {
	mu     sync.Mutex
	nextID int
	levels map[int]*Level
	spawn  int
}

// New creates a world from levels. The first level is where players spawn.
func New(levels ...*Level) *World {
	w := &World{levels: make(map[int]*Level)}
	for i, l := range levels {
		if i == 0 {
			w.spawn = l.depth
		}
		w.levels[l.depth] = l
	}
	return w
}

// NewDefault creates a world with a surface level and a few pieces of furniture.
func NewDefault() *World {
	surface := NewLevel(0, 64, 64)
	w := New(surface, NewLevel(-1, 32, 32))
	w.AddEntity(surface, &Furniture{Name: "Workbench", X: 60, Y: 60})
	w.AddEntity(surface, &Furniture{Name: "Chest", X: 62, Y: 60})
	w.AddEntity(surface, &Spark{})
	return w
}

// SpawnLevel returns the level players are spawned into.
func (w *World) SpawnLevel() *Level {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.levels[w.spawn]
}

// Level returns the level at depth, or nil.
func (w *World) Level(depth int) *Level {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.levels[depth]
}

func (w *World) allocateID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextID++
	return w.nextID
}

// AddEntity assigns e an id and places it on level.
func (w *World) AddEntity(level *Level, e identifiable) {
	e.setEntityID(w.allocateID())
	level.add(e)
}

type identifiable interface {
	session.Entity
	setEntityID(id int)
}

// NewRemotePlayer returns a player that isn't on any level yet.
func (w *World) NewRemotePlayer(ip net.IP, port int) session.Participant {
	return &RemotePlayer{
		eid:  w.allocateID(),
		IP:   ip,
		Port: port,
	}
}

// Respawn replaces previous with a fresh player at level's spawn point. The new
// player keeps the id, address and name of the previous one.
func (w *World) Respawn(previous session.Participant, level session.Level) session.Participant {
	prev := previous.(*RemotePlayer)
	prev.Remove()

	target := w.Level(level.Depth())
	if target == nil {
		target = w.SpawnLevel()
	}
	prev.mu.Lock()
	p := &RemotePlayer{
		eid:      prev.eid,
		IP:       prev.IP,
		Port:     prev.Port,
		username: prev.username,
		x:        target.SpawnX,
		y:        target.SpawnY,
		level:    target,
	}
	prev.mu.Unlock()

	target.add(p)
	return p
}
