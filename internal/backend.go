package internal

import (
	"context"

	"github.com/minicraftmp/server/internal/core/client"
	"github.com/minicraftmp/server/internal/core/wire"
	"github.com/minicraftmp/server/internal/session"
)

// Backend is the game server the frontends hand connected clients to.
type Backend interface {
	// Name returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// Connect starts the session for a newly accepted client. Every transport
	// the frontends accept is handed to Connect exactly once.
	Connect(t client.Transport) *session.Session

	// Handle is the main entry point for processing client messages. It's responsible
	// for generally handling all messages from a client as well as sending any responses.
	// An error ends the client's read loop.
	Handle(ctx context.Context, s *session.Session, msg wire.Message) error
}
