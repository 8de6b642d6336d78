package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/sirupsen/logrus"

	"github.com/minicraftmp/server/internal/core/wire"
)

// Direction of a logged message relative to the server.
type Direction string

const (
	ClientToServer Direction = "client->server"
	ServerToClient Direction = "server->client"
)

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// StartUtilities spins off the services associated with debug mode.
func StartUtilities(logger logrus.FieldLogger, pprofPort int) {
	startPprofServer(logger, pprofPort)
}

// This function starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the server. See https://golang.org/pkg/net/http/pprof/
func startPprofServer(logger logrus.FieldLogger, port int) {
	listenerAddr := fmt.Sprintf("localhost:%d", port)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// FormatMessage renders a message for the packet log. Multi-line payloads are
// split so that every line of the player data is visible.
func FormatMessage(dir Direction, remote string, m wire.Message) string {
	dump := struct {
		Type    string
		Ordinal int
		Lines   []string
	}{
		Type:    m.Type.String(),
		Ordinal: int(m.Type),
		Lines:   strings.Split(m.Payload, "\n"),
	}
	return fmt.Sprintf("[%s %s] %s", dir, remote, dumper.Sdump(dump))
}

// LogMessage writes a message to the packet log at debug level.
func LogMessage(logger logrus.FieldLogger, dir Direction, remote string, m wire.Message) {
	logger.Debug(FormatMessage(dir, remote, m))
}
