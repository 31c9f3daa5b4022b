// SPDX-License-Identifier: MIT
package transport

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebSocketBroadcast(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", 0)
	require.NoError(t, err)
	defer wst.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+wst.Addr()+WebSocketPath, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return wst.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, wst.Send(map[string]any{"type": "band_energy", "mid": 0.5}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got map[string]any
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "band_energy", got["type"])
	assert.InDelta(t, 0.5, got["mid"], 1e-12)
}

func TestWebSocketRateLimit(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", 50*time.Millisecond)
	require.NoError(t, err)
	defer wst.Close()

	now := time.Now()
	assert.True(t, wst.allow(now))
	assert.False(t, wst.allow(now.Add(10*time.Millisecond)))
	assert.True(t, wst.allow(now.Add(60*time.Millisecond)))
}

func TestWebSocketClose(t *testing.T) {
	wst, err := NewWebSocketTransport("127.0.0.1:0", 0)
	require.NoError(t, err)

	require.NoError(t, wst.Close())
	assert.NoError(t, wst.Close(), "Close should be idempotent")
	assert.Error(t, wst.Send("late"))

	_, _, err = websocket.DefaultDialer.Dial("ws://"+wst.Addr()+WebSocketPath, nil)
	assert.Error(t, err)
}

func TestLoggingTransport(t *testing.T) {
	lt := NewLoggingTransport()
	assert.NoError(t, lt.Send([]float64{1, 2}))
	assert.NoError(t, lt.Send(make(chan int)), "unmarshalable data is still accepted")
	assert.NoError(t, lt.Close())
}
