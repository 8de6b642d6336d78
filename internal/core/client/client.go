package client

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/minicraftmp/server/internal/core/wire"
)

// Transport is a connection to a game client that exchanges whole messages.
type Transport interface {
	RemoteIP() net.IP
	RemotePort() int

	// ReadMessage blocks until the next message from the client arrives.
	ReadMessage() (wire.Message, error)
	// WriteMessage sends a message to the client.
	WriteMessage(m wire.Message) error

	Close() error
}

// Client represents a game client connected over TCP.
type Client struct {
	connection *net.TCPConn
	ip         net.IP
	port       int

	reader *wire.Reader
	writer *wire.Writer
	// Writes can originate from world events as well as the connection's own
	// goroutine; frames must not interleave.
	writeMu sync.Mutex
}

func NewClient(connection *net.TCPConn) *Client {
	addr := connection.RemoteAddr().(*net.TCPAddr)

	return &Client{
		connection: connection,
		ip:         addr.IP,
		port:       addr.Port,
		reader:     wire.NewReader(connection),
		writer:     wire.NewWriter(connection),
	}
}

func (c *Client) RemoteIP() net.IP { return c.ip }
func (c *Client) RemotePort() int  { return c.port }

// LocalIP returns the server-side address the connection was accepted on.
func (c *Client) LocalIP() net.IP {
	return c.connection.LocalAddr().(*net.TCPAddr).IP
}

func (c *Client) String() string {
	return net.JoinHostPort(c.ip.String(), strconv.Itoa(c.port))
}

// ReadMessage consumes the next frame from the client's TCP connection.
func (c *Client) ReadMessage() (wire.Message, error) {
	return c.reader.ReadMessage()
}

// WriteMessage frames m and writes it to the client's TCP connection.
func (c *Client) WriteMessage(m wire.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.writer.WriteMessage(m); err != nil {
		return fmt.Errorf("failed to send to client %v: %w", c, err)
	}
	return nil
}

// Close the TCP connection.
func (c *Client) Close() error {
	return c.connection.Close()
}

// ErrNoInterface is returned when no local network interface carries an address.
var ErrNoInterface = errors.New("no network interface for address")

// LookupInterface returns the local network interface that carries ip.
func LookupInterface(ip net.IP) (*net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing network interfaces: %w", err)
	}

	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.Equal(ip) {
				return &ifaces[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w %s", ErrNoInterface, ip)
}
