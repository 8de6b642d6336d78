package world

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/minicraftmp/server/internal/session"
)

// RemotePlayer is the avatar of a player connected over the network.
type RemotePlayer struct {
	IP   net.IP
	Port int

	mu         sync.Mutex
	eid        int
	username   string
	x, y, dir  int
	level      *Level
	activeItem session.Item
}

func (p *RemotePlayer) EntityID() int { return p.eid }

// Data returns the player's state: id;x;y;dir;depth;username. An unpositioned
// player reports depth -1 and position 0,0.
func (p *RemotePlayer) Data() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	depth := -1
	if p.level != nil {
		depth = p.level.Depth()
	}
	return strings.Join([]string{
		strconv.Itoa(p.eid),
		strconv.Itoa(p.x),
		strconv.Itoa(p.y),
		strconv.Itoa(p.dir),
		strconv.Itoa(depth),
		p.username,
	}, ";")
}

func (p *RemotePlayer) ActiveItem() session.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeItem
}

func (p *RemotePlayer) SetActiveItem(item session.Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeItem = item
}

func (p *RemotePlayer) Username() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.username
}

func (p *RemotePlayer) SetUsername(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.username = name
}

// Position returns the player's coordinates and facing direction.
func (p *RemotePlayer) Position() (x, y, dir int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, p.dir
}

// Move places the player at x,y facing dir and returns the changed fields in
// entity update form (name,value pairs separated by semicolons).
func (p *RemotePlayer) Move(x, y, dir int) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	var fields []string
	if x != p.x {
		fields = append(fields, "x,"+strconv.Itoa(x))
	}
	if y != p.y {
		fields = append(fields, "y,"+strconv.Itoa(y))
	}
	if dir != p.dir {
		fields = append(fields, "dir,"+strconv.Itoa(dir))
	}
	p.x, p.y, p.dir = x, y, dir
	return strings.Join(fields, ";")
}

// Level returns the level the player is on, or nil if unpositioned.
func (p *RemotePlayer) Level() *Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Remove takes the player off its level.
func (p *RemotePlayer) Remove() {
	p.mu.Lock()
	level := p.level
	p.level = nil
	p.mu.Unlock()

	if level != nil {
		level.remove(p)
	}
}

func (p *RemotePlayer) String() string {
	return fmt.Sprintf("RemotePlayer(%d, %s)", p.eid, p.IP)
}

// Furniture is a placed, persistent object such as a chest or workbench.
type Furniture struct {
	Name string
	X, Y int
	eid  int
}

func (f *Furniture) EntityID() int      { return f.eid }
func (f *Furniture) setEntityID(id int) { f.eid = id }

// Spark is a short-lived particle. It has no state a client needs.
type Spark struct {
	eid int
}

func (s *Spark) EntityID() int      { return s.eid }
func (s *Spark) setEntityID(id int) { s.eid = id }

// Item is a stack of a named item. Items match when their names do.
type Item struct {
	Name  string
	Count int
}

// Data renders the item as Name_Count.
func (i *Item) Data() string {
	return i.Name + "_" + strconv.Itoa(i.Count)
}

func (i *Item) Matches(other session.Item) bool {
	o, ok := other.(*Item)
	return ok && o != nil && o.Name == i.Name
}

func (i *Item) String() string { return i.Data() }

// ParseItem reads an item rendered by Item.Data. A bare name is a single item.
func ParseItem(data string) (*Item, error) {
	idx := strings.LastIndex(data, "_")
	if idx < 0 {
		if data == "" {
			return nil, fmt.Errorf("empty item data")
		}
		return &Item{Name: data, Count: 1}, nil
	}

	count, err := strconv.Atoi(data[idx+1:])
	if err != nil || count < 1 {
		return nil, fmt.Errorf("invalid item count in %q", data)
	}
	if data[:idx] == "" {
		return nil, fmt.Errorf("missing item name in %q", data)
	}
	return &Item{Name: data[:idx], Count: count}, nil
}
