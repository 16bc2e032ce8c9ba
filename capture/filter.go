package capture

import (
	"fmt"

	"github.com/tcpsnitch/tcpsnitch/events"
)

// BuildFilter assembles the BPF expression targeting one connection's flow:
// peer host and port, narrowed by the local port when the socket is bound.
func BuildFilter(peer events.Addr, local *events.Addr) string {
	filter := fmt.Sprintf("host %s and port %s", peer.IP, peer.Port)
	if local != nil && local.Port != "" {
		filter += fmt.Sprintf(" and port %s", local.Port)
	}
	return filter
}
