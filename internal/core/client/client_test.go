package client

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/websocket"

	"github.com/minicraftmp/server/internal/core/wire"
)

var testMessage = wire.Message{Type: wire.Player, Payload: "12;5;7\nnick=Bob"}

func newTestListener(t *testing.T) (*net.TCPListener, *net.TCPAddr) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("error initializing test listener: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	return listener, listener.Addr().(*net.TCPAddr)
}

func newTestConnection(t *testing.T, addr *net.TCPAddr) *net.TCPConn {
	conn, err := net.DialTCP("tcp", nil, addr)
	if err != nil {
		t.Fatalf("error initializing test connection: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newTestClient(t *testing.T) (*Client, *net.TCPConn) {
	serverListener, addr := newTestListener(t)
	// Connect to the server as if from a game client.
	conn := newTestConnection(t, addr)

	clientConn, err := serverListener.AcceptTCP()
	if err != nil {
		t.Fatalf("error initializing client connection: %s", err)
	}
	return NewClient(clientConn), conn
}

func TestClient_ReadMessage(t *testing.T) {
	client, conn := newTestClient(t)

	frame := append(wire.Encode(testMessage), wire.Terminator)
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("error writing to test connection: %s", err)
	}

	got, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() returned an unexpected error: %s", err)
	}
	if diff := cmp.Diff(testMessage, got); diff != "" {
		t.Fatalf("ReadMessage() result did not match expected; diff:\n%s", diff)
	}
}

func TestClient_WriteMessage(t *testing.T) {
	client, conn := newTestClient(t)

	if err := client.WriteMessage(testMessage); err != nil {
		t.Fatalf("WriteMessage() returned an unexpected error: %s", err)
	}
	client.Close()

	got, err := wire.NewReader(conn).ReadMessage()
	if err != nil {
		t.Fatalf("error reading from test connection: %s", err)
	}
	if diff := cmp.Diff(testMessage, got); diff != "" {
		t.Fatalf("message read from test connection did not match expected; diff:\n%s", diff)
	}
}

func TestClient_Address(t *testing.T) {
	client, conn := newTestClient(t)

	local := conn.LocalAddr().(*net.TCPAddr)
	if !client.RemoteIP().Equal(local.IP) || client.RemotePort() != local.Port {
		t.Errorf("client address = %s, want %s", client, local)
	}
	if !client.LocalIP().Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("LocalIP() = %s, want 127.0.0.1", client.LocalIP())
	}
}

func TestWebSocketClient(t *testing.T) {
	upgrader := websocket.Upgrader{}
	serverSide := make(chan *WebSocketClient, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverSide <- NewWebSocketClient(ws)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("error dialing test server: %v", err)
	}
	defer conn.Close()
	client := <-serverSide
	defer client.Close()

	if client.RemoteIP() == nil {
		t.Errorf("RemoteIP() was not populated")
	}

	if err := conn.WriteMessage(websocket.TextMessage, wire.Encode(testMessage)); err != nil {
		t.Fatalf("error writing to websocket: %v", err)
	}
	got, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() returned an unexpected error: %v", err)
	}
	if diff := cmp.Diff(testMessage, got); diff != "" {
		t.Errorf("ReadMessage() result did not match expected; diff:\n%s", diff)
	}

	if err := client.WriteMessage(wire.Message{Type: wire.Ping}); err != nil {
		t.Fatalf("WriteMessage() returned an unexpected error: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("error reading from websocket: %v", err)
	}
	if string(payload) != "1:" {
		t.Errorf("client received %q, want %q", payload, "1:")
	}
}

func TestLookupInterface(t *testing.T) {
	// TEST-NET-3 addresses are never assigned to a local interface.
	if _, err := LookupInterface(net.ParseIP("203.0.113.77")); !errors.Is(err, ErrNoInterface) {
		t.Errorf("LookupInterface() error = %v, want %v", err, ErrNoInterface)
	}

	iface, err := LookupInterface(net.IPv4(127, 0, 0, 1))
	if err != nil {
		t.Skipf("no loopback interface available: %v", err)
	}
	if iface.Flags&net.FlagLoopback == 0 {
		t.Errorf("LookupInterface(127.0.0.1) = %s, want a loopback interface", iface.Name)
	}
}
