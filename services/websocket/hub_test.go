package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func join(t *testing.T, h *Hub, userID uint, buffer int) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, buffer), userID: userID}
	h.register <- c
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[c]
		return ok
	}, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "channel closed")
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := startHub(t)
	a := join(t, h, 1, 4)
	b := join(t, h, 2, 4)

	h.Broadcast(Message{Type: "attendance.updated", Data: map[string]int{"id": 5}})

	assert.Equal(t, "attendance.updated", receive(t, a).Type)
	assert.Equal(t, "attendance.updated", receive(t, b).Type)
}

func TestBroadcastToUser(t *testing.T) {
	h := startHub(t)
	a := join(t, h, 1, 4)
	a2 := join(t, h, 1, 4)
	b := join(t, h, 2, 4)

	n := h.BroadcastToUser(1, Message{Type: "sms.sent"})
	assert.Equal(t, 2, n)
	assert.Equal(t, "sms.sent", receive(t, a).Type)
	assert.Equal(t, "sms.sent", receive(t, a2).Type)
	assert.Len(t, b.send, 0)

	stats := h.Stats()
	assert.Equal(t, 3, stats.ConnectedClients)
	assert.Equal(t, 2, stats.ConnectedUsers)
	assert.Equal(t, uint64(2), stats.MessagesSent)
}

func TestSlowClientIsDropped(t *testing.T) {
	h := startHub(t)
	slow := join(t, h, 1, 1)

	h.BroadcastToUser(1, Message{Type: "one"})
	h.BroadcastToUser(1, Message{Type: "two"})

	assert.Equal(t, 0, h.GetClientCount())
	assert.Equal(t, "one", receive(t, slow).Type)
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	h := startHub(t)
	c := join(t, h, 3, 1)
	h.unregister <- c

	assert.Eventually(t, func() bool { return h.GetClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-c.send
	assert.False(t, ok)
}
