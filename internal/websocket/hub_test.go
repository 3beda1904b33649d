package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-assistant-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, rdb *redis.Client) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewHub(rdb, logger.NewNopLogger())
	go h.Run(ctx)
	return h
}

func connect(t *testing.T, h *Hub, userId uuid.UUID, buffer int) *Client {
	t.Helper()
	before := h.Connected(userId)
	c := &Client{Hub: h, UserId: userId, send: make(chan []byte, buffer)}
	h.register <- c
	require.Eventually(t, func() bool { return h.Connected(userId) == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case raw := <-c.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(raw, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
		return Envelope{}
	}
}

func TestHub_SendReachesEveryDeviceOfTheUser(t *testing.T) {
	h := startHub(t, nil)
	alice, bob := uuid.New(), uuid.New()

	phone := connect(t, h, alice, 4)
	laptop := connect(t, h, alice, 4)
	other := connect(t, h, bob, 4)

	h.Send(alice, "notification", map[string]string{"type": "document.indexed"})

	for _, c := range []*Client{phone, laptop} {
		env := receive(t, c)
		assert.Equal(t, "notification", env.Type)
		assert.Equal(t, map[string]interface{}{"type": "document.indexed"}, env.Data)
	}
	assert.Empty(t, other.send)
}

func TestHub_EmitTargetsOneConnection(t *testing.T) {
	h := startHub(t, nil)
	alice := uuid.New()

	phone := connect(t, h, alice, 4)
	laptop := connect(t, h, alice, 4)

	require.NoError(t, phone.Emit("turn", map[string]string{"type": "done"}))

	assert.Equal(t, "turn", receive(t, phone).Type)
	assert.Empty(t, laptop.send)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	h := startHub(t, nil)
	alice := uuid.New()
	slow := connect(t, h, alice, 1)

	h.Send(alice, "notification", "first")
	h.Send(alice, "notification", "second")

	assert.Eventually(t, func() bool { return h.Connected(alice) == 0 }, time.Second, 5*time.Millisecond)
	assert.Error(t, slow.Emit("turn", "late"))
}

func TestHub_ClusterFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return c
	}

	first := startHub(t, newClient())
	second := startHub(t, newClient())
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 2
	}, time.Second, 5*time.Millisecond)

	alice := uuid.New()
	remote := connect(t, second, alice, 4)

	first.Send(alice, "notification", "indexed")

	env := receive(t, remote)
	assert.Equal(t, "indexed", env.Data)
}
