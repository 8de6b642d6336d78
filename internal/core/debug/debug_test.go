package debug

import (
	"strings"
	"testing"

	"github.com/minicraftmp/server/internal/core/wire"
)

func TestFormatMessage(t *testing.T) {
	got := FormatMessage(ServerToClient, "127.0.0.1:5555", wire.Message{
		Type:    wire.Player,
		Payload: "nick=Bob\nx=10",
	})

	for _, want := range []string{"server->client 127.0.0.1:5555", "PLAYER", "Ordinal: (int) 10", "nick=Bob", "x=10"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatMessage() output is missing %q:\n%s", want, got)
		}
	}
}
