// Package port implements host port selection for the containerized
// notebook launch.
//
// Jupyter conventionally serves on 8888, and students expect the URL
// they have seen in lab sessions. The probe therefore prefers 8888 and
// walks upward only when it is taken (usually by another notebook
// server), falling back to a kernel-assigned ephemeral port when the
// whole range is busy.
package port

import (
	"fmt"
	"net"
)

// DefaultJupyterPort is the conventional Jupyter server port.
const DefaultJupyterPort = 8888

// probeRange is how many consecutive ports above the preferred one are
// tried before falling back to a kernel-assigned port.
const probeRange = 100

// IsAvailable reports whether a TCP port can be bound on the host.
//
// Binding is the only reliable availability test: it asks the OS
// directly instead of parsing /proc/net or shelling out to lsof/ss,
// which may need elevated permissions. The bind targets all interfaces
// because Docker publishes on 0.0.0.0 by default.
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	defer func() { _ = listener.Close() }()
	return true
}

// Free returns an available TCP port, preferring the given port and
// scanning upward through probeRange candidates. When the whole range is
// occupied, the kernel picks an ephemeral port via a ":0" bind.
//
// The sequential scan is deterministic: the same free port is chosen on
// repeated runs, so the notebook URL stays stable across relaunches.
func Free(preferred int) (int, error) {
	for p := preferred; p < preferred+probeRange; p++ {
		if p > 65535 {
			break
		}
		if IsAvailable(p) {
			return p, nil
		}
	}

	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, fmt.Errorf("no free TCP port available: %w", err)
	}
	defer func() { _ = listener.Close() }()

	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}
	return addr.Port, nil
}
