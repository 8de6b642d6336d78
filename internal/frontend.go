package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"

	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"

	"github.com/minicraftmp/server/internal/core"
	"github.com/minicraftmp/server/internal/core/client"
	"github.com/minicraftmp/server/internal/core/wire"
	"github.com/minicraftmp/server/internal/session"
)

// frontend implements the concurrent client connection logic.
//
// Messages are read from any connected clients and passed to a backend instance,
// abstracting the lower level connection details away from the Backend.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger
}

// Start opens a TCP socket for the frontend. A blocking loop for accepting client
// connections is spun off in its own goroutine and added to the WaitGroup. Context
// cancellations will stop the server. The Backend must already be initialized.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) (net.Addr, error) {
	socket, err := f.createSocket()
	if err != nil {
		return nil, fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return socket.Addr(), nil
}

// createSocket opens a TCP socket to listen for client connections on the Address
// provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely responsible for
// accepting new connections and spinning off goroutines for the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), socket.Addr())

	connections := make(chan *net.TCPConn)
	go func() {
		defer close(connections)
		for {
			connection, err := socket.AcceptTCP()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	// Blocks accepting more clients once MaxConnections are connected.
	clients := sizedwaitgroup.New(maxConnections(f.Config))
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			if err := clients.AddWithContext(ctx); err != nil {
				_ = connection.Close()
				break handleLoop
			}
			go func() {
				defer clients.Done()
				runClient(ctx, f.Backend, f.Logger, client.NewClient(connection))
			}()
		}
	}

	_ = socket.Close()
	for connection := range connections {
		_ = connection.Close()
	}

	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	clients.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

func maxConnections(cfg *core.Config) int {
	if cfg.MaxConnections < 1 {
		return 1
	}
	return cfg.MaxConnections
}

// runClient starts a session for t and passes every message it sends to the
// Backend until the connection closes. Shared by every kind of frontend.
func runClient(ctx context.Context, backend Backend, logger *logrus.Logger, t client.Transport) {
	s := backend.Connect(t)
	logger.Infof("[%s] accepted connection from %s", backend.Identifier(), t.RemoteIP())

	// Disconnecting closes the transport, which unblocks the read loop.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.Disconnect()
		case <-done:
		}
	}()

	processMessages(ctx, backend, logger, s)
}

// processMessages starts a blocking loop dedicated to reading data sent from
// a game client and only returns once the connection has closed.
func processMessages(ctx context.Context, backend Backend, logger *logrus.Logger, s *session.Session) {
	defer closeConnectionAndRecover(backend.Identifier(), logger, s)

	for {
		msg, err := s.Transport().ReadMessage()

		if errors.Is(err, wire.ErrMalformedFrame) || errors.Is(err, wire.ErrUnknownType) {
			// The frame was consumed; the stream is still usable.
			_ = s.SendError(err.Error())
			continue
		} else if errors.Is(err, io.EOF) {
			return
		} else if err != nil {
			if s.State() != session.Disconnected {
				logger.Warnf("error reading from %v: %v", s, err)
			}
			return
		}

		if err = backend.Handle(ctx, s, msg); err != nil {
			if !errors.Is(err, session.ErrClosed) {
				logger.Warn("error in client communication: " + err.Error())
			}
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics and disconnects
// the client regardless of the state of the connection.
func closeConnectionAndRecover(serverName string, logger *logrus.Logger, s *session.Session) {
	if err := recover(); err != nil {
		logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			s.Transport().RemoteIP(), err, debug.Stack())
	}

	s.Disconnect()

	logger.Infof("[%s] disconnected client %s", serverName, s.Transport().RemoteIP())
}
