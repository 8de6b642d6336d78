// Package identity gives each remote host a stable identity derived from a
// network hardware address and maps that identity to a save file.
//
// The identity is not a trust boundary: any host presenting the same hardware
// address is treated as the same player.
package identity

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
)

// ErrNoHardwareAddress is returned when an identity token cannot be derived
// because no hardware address is available.
var ErrNoHardwareAddress = errors.New("no hardware address available")

// Token is the raw hardware address identifying a remote host.
type Token []byte

// DeriveToken returns the hardware address of iface as a Token. Interfaces
// without a hardware address (loopback, most virtual interfaces) and a nil
// interface (lookup failed earlier) both yield ErrNoHardwareAddress.
func DeriveToken(iface *net.Interface) (Token, error) {
	if iface == nil || len(iface.HardwareAddr) == 0 {
		return nil, ErrNoHardwareAddress
	}
	token := make(Token, len(iface.HardwareAddr))
	copy(token, iface.HardwareAddr)
	return token, nil
}

// ParseToken decodes a token rendered by Token.String.
func ParseToken(s string) (Token, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid identity token %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("invalid identity token: empty")
	}
	return b, nil
}

// String renders every byte as two lower-case hex digits.
func (t Token) String() string {
	return hex.EncodeToString(t)
}

// Equal reports whether both tokens hold the same bytes.
func (t Token) Equal(other Token) bool {
	return bytes.Equal(t, other)
}
