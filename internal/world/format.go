package world

import (
	"fmt"

	"github.com/minicraftmp/server/internal/session"
)

// Format serializes entities the way they're sent to clients.
type Format struct{}

// SerializeEntity returns the client representation of e, or an empty string
// for entities clients don't track.
func (Format) SerializeEntity(e session.Entity, fullDetail bool) string {
	switch v := e.(type) {
	case *RemotePlayer:
		if fullDetail {
			return "RemotePlayer[" + v.Data() + "]"
		}
		x, y, _ := v.Position()
		return fmt.Sprintf("RemotePlayer[%s:%d:%d:%d]", v.Username(), x, y, v.EntityID())
	case *Furniture:
		return fmt.Sprintf("%s[%d:%d:%d]", v.Name, v.X, v.Y, v.eid)
	default:
		return ""
	}
}
