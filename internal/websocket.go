package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/remeh/sizedwaitgroup"
	"github.com/sirupsen/logrus"

	"github.com/minicraftmp/server/internal/core"
	"github.com/minicraftmp/server/internal/core/client"
)

// websocketFrontend accepts clients that connect over a WebSocket instead of a raw
// TCP stream. Once upgraded, clients are handled exactly like TCP clients.
type websocketFrontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	upgrader websocket.Upgrader
	clients  sizedwaitgroup.SizedWaitGroup
	ctx      context.Context
}

func (f *websocketFrontend) Start(ctx context.Context, wg *sync.WaitGroup) (net.Addr, error) {
	socket, err := net.Listen("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	f.ctx = ctx
	f.clients = sizedwaitgroup.New(maxConnections(f.Config))
	f.upgrader = websocket.Upgrader{
		HandshakeTimeout: 10 * time.Second,
		// Game clients don't send an Origin header.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	server := &http.Server{Handler: f}

	wg.Add(1)
	go func() {
		defer wg.Done()

		f.Logger.Printf("[%s] waiting for websocket connections on %v", f.Backend.Identifier(), socket.Addr())
		if err := server.Serve(socket); err != nil && !errors.Is(err, http.ErrServerClosed) {
			f.Logger.Errorf("[%s] websocket server failed: %v", f.Backend.Identifier(), err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)

		// Hijacked connections aren't tracked by the http.Server.
		f.Logger.Infof("[%v] shutting down websocket listener (waiting for connections to close)", f.Backend.Identifier())
		f.clients.Wait()
	}()

	return socket.Addr(), nil
}

func (f *websocketFrontend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := f.clients.AddWithContext(r.Context()); err != nil {
		return
	}
	defer f.clients.Done()

	ws, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.Logger.Warnf("failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	runClient(f.ctx, f.Backend, f.Logger, client.NewWebSocketClient(ws))
}
