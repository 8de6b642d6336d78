// Package packetcache defers outbound messages of selected types so that they
// can be delivered to a client as a single burst.
package packetcache

import (
	"fmt"

	"github.com/minicraftmp/server/internal/core/wire"
)

// routing determines what happens to an outbound message of a given type.
type routing uint8

const (
	immediate routing = iota
	deferred
)

// TransmitFunc writes a message directly to the client.
type TransmitFunc func(wire.Message) error

// Cache holds the set of message types currently being deferred and the
// messages that were deferred, in submission order.
//
// Cache does no locking of its own; the owner must serialize calls to Send and
// Flush (in practice the session's send lock).
type Cache struct {
	routes  map[wire.Type]routing
	pending []wire.Message
}

func New() *Cache {
	return &Cache{routes: make(map[wire.Type]routing)}
}

// BeginCaching adds types to the set of deferred message types. Types that are
// already being deferred are unaffected and no buffered entries are reordered.
func (c *Cache) BeginCaching(types ...wire.Type) {
	for _, t := range types {
		c.routes[t] = deferred
	}
}

// Caching reports whether messages of type t are currently being deferred.
func (c *Cache) Caching(t wire.Type) bool {
	return c.routes[t] == deferred
}

// Pending returns the number of deferred messages awaiting a flush.
func (c *Cache) Pending() int {
	return len(c.pending)
}

// Send either defers msg or passes it to transmit. The returned bool is true
// if the message was deferred.
func (c *Cache) Send(msg wire.Message, transmit TransmitFunc) (bool, error) {
	switch c.routes[msg.Type] {
	case deferred:
		c.pending = append(c.pending, msg)
		return true, nil
	default:
		return false, transmit(msg)
	}
}

// Flush stops deferring every type and then transmits the deferred messages
// in the order they were submitted. Both the type set and the pending list are
// empty afterwards, even if a transmit fails; the failed message and everything
// after it are dropped.
func (c *Cache) Flush(transmit TransmitFunc) error {
	for t := range c.routes {
		delete(c.routes, t)
	}

	pending := c.pending
	c.pending = nil

	for i, msg := range pending {
		if err := transmit(msg); err != nil {
			return fmt.Errorf("flushing cached %s (%d of %d): %w", msg.Type, i+1, len(pending), err)
		}
	}
	return nil
}
