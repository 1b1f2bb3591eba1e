package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func startHub(t *testing.T, h *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
}

func connect(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	c := &Client{hub: h, send: make(chan []byte, 8), userID: userID}
	require.True(t, h.attach(c))
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[c]
		return ok
	}, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev Event
		require.NoError(t, json.Unmarshal(raw, &ev))
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an event")
		return Event{}
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("unexpected event %s", raw)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlotEventsReachEveryone(t *testing.T) {
	// Arrange
	h := NewHub(newTestLogger())
	startHub(t, h)
	alice := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	// Act
	h.PublishSlotChanged(context.Background(), "A1", domain.SlotStatusOccupied)

	// Assert
	for _, c := range []*Client{alice, bob} {
		ev := receive(t, c)
		assert.Equal(t, EventSlotChanged, ev.Type)
		assert.Equal(t, "A1", ev.SlotID)
		assert.Equal(t, string(domain.SlotStatusOccupied), ev.Status)
	}
}

func TestHub_BookingEventsStayInUserRoom(t *testing.T) {
	h := NewHub(newTestLogger())
	startHub(t, h)
	alice := connect(t, h, "alice")
	aliceTablet := connect(t, h, "alice")
	bob := connect(t, h, "bob")

	h.PublishBookingChanged(context.Background(), "alice", "b1", domain.BookingStatusCheckedIn)
	h.PublishNotificationCreated(context.Background(), "bob")

	ev := receive(t, alice)
	assert.Equal(t, EventBookingChanged, ev.Type)
	assert.Equal(t, "b1", ev.BookingID)
	assert.Equal(t, EventBookingChanged, receive(t, aliceTablet).Type)
	assert.Equal(t, EventNotificationCreated, receive(t, bob).Type)
	assertSilent(t, alice)
	assertSilent(t, bob)
}

func TestHub_DetachRemovesClient(t *testing.T) {
	h := NewHub(newTestLogger())
	startHub(t, h)
	c := connect(t, h, "alice")
	require.Equal(t, 1, h.ClientCount())

	h.detach(c)

	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.send
	assert.False(t, open)
}

func TestHub_AttachAfterStopFails(t *testing.T) {
	h := NewHub(newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.False(t, h.attach(&Client{hub: h, send: make(chan []byte, 1)}))
}

func TestHub_RelaysAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rc.Close() })
		return rc
	}

	sender := NewHub(newTestLogger()).WithRedis(newClient(), "parkflow:realtime")
	receiver := NewHub(newTestLogger()).WithRedis(newClient(), "parkflow:realtime")
	startHub(t, sender)
	startHub(t, receiver)
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("parkflow:realtime")["parkflow:realtime"] == 2
	}, time.Second, 10*time.Millisecond)

	remote := connect(t, receiver, "alice")
	other := connect(t, receiver, "bob")

	sender.PublishBookingChanged(context.Background(), "alice", "b9", domain.BookingStatusCheckedOut)

	ev := receive(t, remote)
	assert.Equal(t, "b9", ev.BookingID)
	assert.Equal(t, string(domain.BookingStatusCheckedOut), ev.Status)
	assertSilent(t, other)
}
