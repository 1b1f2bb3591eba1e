// Package websocket pushes slot, booking and notification changes to
// connected clients. Slot events reach every client; booking and
// notification events only reach the connections of the owning user.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/seu-repo/parkflow/internal/domain"
	"github.com/seu-repo/parkflow/internal/observability/telemetry"
)

// Event types sent to clients
const (
	EventSlotChanged         = "slot.changed"
	EventBookingChanged      = "booking.changed"
	EventNotificationCreated = "notification.created"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256
)

// Event is the JSON frame written to clients and relayed over Redis
type Event struct {
	Type      string    `json:"type"`
	SlotID    string    `json:"slot_id,omitempty"`
	BookingID string    `json:"booking_id,omitempty"`
	UserID    string    `json:"-"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at"`
}

// relayed carries the routing key, which is hidden from clients
type relayed struct {
	Event
	Owner string `json:"owner,omitempty"`
}

type Hub struct {
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	inbound    chan Event
	done       chan struct{}

	redis   *redis.Client
	channel string

	log *zap.Logger
	mu  sync.RWMutex
}

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan Event, 1024),
		done:       make(chan struct{}),
		log:        log,
	}
}

// WithRedis relays every published event through a Redis channel so that
// clients connected to other instances receive it too.
func (h *Hub) WithRedis(client *redis.Client, channel string) *Hub {
	h.redis = client
	h.channel = channel
	return h
}

// Run owns the client registry until ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.redis != nil {
		go h.listen(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			if client.userID != "" {
				room, ok := h.rooms[client.userID]
				if !ok {
					room = make(map[*Client]struct{})
					h.rooms[client.userID] = room
				}
				room[client] = struct{}{}
			}
			h.mu.Unlock()
			telemetry.RealtimeClients.Inc()
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
			h.mu.Unlock()
		case ev := <-h.inbound:
			h.deliver(ev)
		}
	}
}

// drop must be called with mu held
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	if room, ok := h.rooms[client.userID]; ok {
		delete(room, client)
		if len(room) == 0 {
			delete(h.rooms, client.userID)
		}
	}
	close(client.send)
	telemetry.RealtimeClients.Dec()
}

func (h *Hub) deliver(ev Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("Failed to encode realtime event", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	targets := h.clients
	if ev.Type != EventSlotChanged {
		targets = h.rooms[ev.UserID]
	}
	for client := range targets {
		select {
		case client.send <- message:
		default:
			h.log.Warn("Dropping slow realtime client", zap.String("user_id", client.userID))
			h.drop(client)
		}
	}
}

// ClientCount returns the number of connections registered on this instance
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(ctx context.Context, ev Event) {
	ev.At = time.Now()

	if h.redis == nil {
		h.enqueue(ev)
		return
	}

	payload, err := json.Marshal(relayed{Event: ev, Owner: ev.UserID})
	if err != nil {
		h.log.Error("Failed to encode realtime event", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := h.redis.Publish(ctx, h.channel, payload).Err(); err != nil {
		// Local clients still get the event when the relay is down.
		h.log.Warn("Failed to relay realtime event", zap.String("type", ev.Type), zap.Error(err))
		h.enqueue(ev)
	}
}

func (h *Hub) enqueue(ev Event) {
	select {
	case h.inbound <- ev:
	default:
		h.log.Warn("Realtime queue full, event dropped", zap.String("type", ev.Type))
	}
}

func (h *Hub) listen(ctx context.Context) {
	sub := h.redis.Subscribe(ctx, h.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var r relayed
			if err := json.Unmarshal([]byte(msg.Payload), &r); err != nil {
				h.log.Warn("Ignoring malformed realtime relay message", zap.Error(err))
				continue
			}
			r.Event.UserID = r.Owner
			h.enqueue(r.Event)
		}
	}
}

func (h *Hub) PublishSlotChanged(ctx context.Context, slotID string, status domain.SlotStatus) {
	h.publish(ctx, Event{Type: EventSlotChanged, SlotID: slotID, Status: string(status)})
}

func (h *Hub) PublishBookingChanged(ctx context.Context, userID, bookingID string, status domain.BookingStatus) {
	h.publish(ctx, Event{Type: EventBookingChanged, UserID: userID, BookingID: bookingID, Status: string(status)})
}

func (h *Hub) PublishNotificationCreated(ctx context.Context, userID string) {
	h.publish(ctx, Event{Type: EventNotificationCreated, UserID: userID})
}

// Serve registers conn for userID and blocks until the connection closes
func (h *Hub) Serve(conn *websocket.Conn, userID string) {
	client := &Client{hub: h, conn: conn, send: make(chan []byte, sendBufferSize), userID: userID}
	if !h.attach(client) {
		conn.Close()
		return
	}

	go client.writePump()
	client.readPump()
}

// attach reports false once the hub has stopped
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Clients do not send anything; reading keeps control frames flowing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
