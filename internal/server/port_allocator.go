package server

import (
	"fmt"

	"serverhub/pkg/sdk"
)

// AllocatePort returns the lowest port in [start, end] that no server in the
// roster already uses.
func AllocatePort(start, end int, servers []sdk.ServerInstance) (int, error) {
	usedPorts := make(map[int]bool, len(servers))
	for _, s := range servers {
		usedPorts[s.Port] = true
	}

	for port := start; port <= end; port++ {
		if !usedPorts[port] {
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w in range %d-%d", ErrNoFreePort, start, end)
}
