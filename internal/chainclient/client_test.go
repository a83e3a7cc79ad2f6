package chainclient

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// LastSeenBlock must never report a value lower than a previous call, since
// the event loop uses it to compute the next fromBlock.
func TestLastSeenBlock_Monotonic(t *testing.T) {
	c := &Client{}
	require.Equal(t, uint64(0), c.LastSeenBlock())

	c.lastSeen.Store(100)
	require.Equal(t, uint64(100), c.LastSeenBlock())

	c.lastSeen.Store(250)
	require.Equal(t, uint64(250), c.LastSeenBlock())
}
