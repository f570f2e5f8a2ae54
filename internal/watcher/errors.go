package watcher

import (
	"errors"
	"fmt"

	"github.com/danmuck/palctl/internal/protocol/mapping"
)

var (
	ErrDisconnected   = errors.New("watcher: disconnected")
	ErrWatchCancelled = errors.New("watcher: watch cancelled")
)

// PacketError is the fault delivered when a watch's cancel side matches.
type PacketError struct {
	Packet mapping.PacketMap
}

func (e *PacketError) Error() string {
	return fmt.Sprintf("watcher: cancelled by packet %q", e.Packet.Command())
}

// AsPacketError unwraps err into a *PacketError.
func AsPacketError(err error) (*PacketError, bool) {
	var pe *PacketError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
