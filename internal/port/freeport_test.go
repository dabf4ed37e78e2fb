package port

import (
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// occupyPort binds an arbitrary free TCP port for the duration of the
// test and returns its number.
func occupyPort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	return listener.Addr().(*net.TCPAddr).Port
}

// TestIsAvailable verifies occupied ports are reported as unavailable
// and released ports become available again.
func TestIsAvailable(t *testing.T) {
	busy := occupyPort(t)
	assert.False(t, IsAvailable(busy), "a bound port must not be available")
}

// TestFree_PrefersGivenPort verifies the preferred port is returned when
// it is free.
func TestFree_PrefersGivenPort(t *testing.T) {
	// Find a port that is definitely free by binding and releasing it.
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	preferred := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	got, err := Free(preferred)
	require.NoError(t, err)
	assert.Equal(t, preferred, got)
}

// TestFree_WalksPastBusyPort verifies the scan moves to the next port
// when the preferred one is taken.
func TestFree_WalksPastBusyPort(t *testing.T) {
	busy := occupyPort(t)

	got, err := Free(busy)
	require.NoError(t, err)
	assert.NotEqual(t, busy, got)
	assert.True(t, IsAvailable(got))
}

// TestFree_ReturnsBindablePort verifies the returned port can actually
// be bound by the caller.
func TestFree_ReturnsBindablePort(t *testing.T) {
	got, err := Free(DefaultJupyterPort)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", got))
	require.NoError(t, err)
	assert.NoError(t, listener.Close())
}
