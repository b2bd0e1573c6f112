// Package realtime maintains the live websocket connection to the
// messaging backend and translates its event stream into handler
// callbacks. A Channel is an explicitly constructed instance passed by
// reference; nothing here is process-global, so tests can substitute a
// fake transport.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/models"
	"github.com/myapplejuice/final-project-the-kratos-hub-sub001/internal/observability"
)

// ErrNotAuthenticated is returned by Connect when no token is
// available. Callers must treat it as "do not attempt realtime
// features", not as a transient failure.
var ErrNotAuthenticated = errors.New("not authenticated")

// Handler receives the raw payload of a subscribed event.
type Handler func(payload json.RawMessage)

// TokenSource yields the auth token at connect time.
type TokenSource interface {
	Token() string
}

// Emitter is the outbound surface consumed by room sessions and the
// friend-event reducer. *Channel implements it.
type Emitter interface {
	JoinRoom(roomID string)
	LeaveRoom(roomID string)
	Emit(event string, payload any) error
	On(event string, handler Handler) func()
}

// Channel owns a single logical websocket connection.
type Channel struct {
	url    string
	tokens TokenSource
	dialer *websocket.Dialer

	mu     sync.Mutex // guards conn, connID, done
	conn   *websocket.Conn
	connID string
	done   chan struct{}

	wmu sync.Mutex // serializes writes to conn

	hmu      sync.Mutex
	handlers map[string]map[int]Handler
	nextID   int
}

// NewChannel builds a disconnected channel.
func NewChannel(url string, tokens TokenSource) *Channel {
	return &Channel{
		url:      url,
		tokens:   tokens,
		dialer:   websocket.DefaultDialer,
		handlers: make(map[string]map[int]Handler),
	}
}

// Connect resolves the token, dials, sends the auth frame, and starts
// the read pump. Safe to call while connected: the old connection is
// torn down and the dial uses a freshly resolved token. With no token
// it stays disconnected and returns ErrNotAuthenticated.
func (c *Channel) Connect(ctx context.Context) error {
	token := c.tokens.Token()
	if token == "" {
		return ErrNotAuthenticated
	}

	ctx, span := otel.Tracer("kratos-hub/realtime").Start(ctx, "ws.connect")
	defer span.End()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	auth, err := models.NewEnvelope(models.EventAuth, models.AuthPayload{Token: token})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteJSON(auth); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.connID = uuid.NewString()
	c.done = make(chan struct{})
	done := c.done
	connID := c.connID
	c.mu.Unlock()

	log.Printf("realtime connected conn_id=%s", connID)
	observability.IncWSActive("client")
	observability.IncWSEvent("outbound", models.EventAuth)

	go c.readPump(conn, done)
	return nil
}

// Disconnect closes the connection explicitly. No-op when already
// disconnected.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// Connected reports whether a live connection is held.
func (c *Channel) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Done returns a channel closed when the current connection ends, so
// callers can re-Connect on the next foreground. Reconnection is never
// automatic. Returns nil if Connect never succeeded.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// JoinRoom is a fire-and-forget room subscription. No-op when
// disconnected.
func (c *Channel) JoinRoom(roomID string) {
	_ = c.Emit(models.EventJoinRoom, models.RoomPayload{ChatRoomID: roomID})
}

// LeaveRoom is the fire-and-forget counterpart of JoinRoom.
func (c *Channel) LeaveRoom(roomID string) {
	_ = c.Emit(models.EventLeaveRoom, models.RoomPayload{ChatRoomID: roomID})
}

// Emit sends an event. There is no delivery guarantee and no retry;
// when disconnected the send is silently dropped.
func (c *Channel) Emit(event string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	envelope, err := models.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.wmu.Lock()
	err = conn.WriteJSON(envelope)
	c.wmu.Unlock()
	if err != nil {
		log.Printf("realtime emit %s failed: %v", event, err)
		return err
	}
	observability.IncWSEvent("outbound", event)
	return nil
}

// On subscribes a handler and returns its disposer. Cleanup cannot
// mismatch handler identity: dropping the subscription is always done
// through the returned closure.
func (c *Channel) On(event string, handler Handler) func() {
	c.hmu.Lock()
	defer c.hmu.Unlock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = handler

	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		delete(c.handlers[event], id)
	}
}

func (c *Channel) readPump(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		observability.DecWSActive("client")
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("realtime read error: %v", err)
			}
			return
		}

		var envelope models.Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			log.Printf("realtime dropped undecodable frame: %v", err)
			continue
		}
		observability.IncWSEvent("inbound", envelope.Event)
		c.dispatch(envelope)
	}
}

func (c *Channel) dispatch(envelope models.Envelope) {
	c.hmu.Lock()
	handlers := make([]Handler, 0, len(c.handlers[envelope.Event]))
	for _, h := range c.handlers[envelope.Event] {
		handlers = append(handlers, h)
	}
	c.hmu.Unlock()

	for _, h := range handlers {
		h(envelope.Payload)
	}
}
