package client

import (
	"fmt"
	"net"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/minicraftmp/server/internal/core/wire"
)

// WebSocketClient is a game client connected over a WebSocket. Every text
// message carries exactly one frame, without the stream terminator.
type WebSocketClient struct {
	ws   *websocket.Conn
	ip   net.IP
	port int

	writeMu sync.Mutex
}

func NewWebSocketClient(ws *websocket.Conn) *WebSocketClient {
	c := &WebSocketClient{ws: ws}
	if addr, ok := ws.RemoteAddr().(*net.TCPAddr); ok {
		c.ip = addr.IP
		c.port = addr.Port
	}
	return c
}

func (c *WebSocketClient) RemoteIP() net.IP { return c.ip }
func (c *WebSocketClient) RemotePort() int  { return c.port }

func (c *WebSocketClient) ReadMessage() (wire.Message, error) {
	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			return wire.Message{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return wire.Decode(string(payload))
	}
}

func (c *WebSocketClient) WriteMessage(m wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteMessage(websocket.TextMessage, wire.Encode(m)); err != nil {
		return fmt.Errorf("failed to send to client %v: %w", c.ip, err)
	}
	return nil
}

func (c *WebSocketClient) Close() error {
	return c.ws.Close()
}
