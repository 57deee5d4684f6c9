// Package websocket pushes record change events to connected clients. Each
// client is subscribed to its principal's topic, so a write made on one
// device is announced to every other session of the same clinician.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mednote/mednote/internal/platform/auth"
)

// Event types.
const (
	EventCreated = "record.created"
	EventUpdated = "record.updated"
	EventDeleted = "record.deleted"
)

// Resource names carried in Event.Resource.
const (
	ResourcePatient = "patient"
	ResourceNote    = "note"
)

// Event announces one change to a principal's records.
type Event struct {
	Type       string          `json:"type"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	PatientID  string          `json:"patient_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Publisher is satisfied by Hub. Stores depend on it rather than the hub.
type Publisher interface {
	Publish(ctx context.Context, principal string, event Event)
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected session.
type Client struct {
	ID        string
	Principal string
	Send      chan []byte
	conn      Conn
}

// Hub tracks clients by principal. All methods are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // principal -> clients
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[client.Principal]
	if set == nil {
		set = make(map[*Client]struct{})
		h.clients[client.Principal] = set
	}
	set[client] = struct{}{}
}

// Unregister removes client and closes its Send channel. Calling it twice
// is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.clients[client.Principal]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.Principal)
	}
	close(client.Send)
}

// Publish sends event to every client of principal. Slow clients whose
// buffer is full miss the event rather than block the writer.
func (h *Hub) Publish(_ context.Context, principal string, event Event) {
	if principal == "" {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("type", event.Type).Msg("failed to marshal change event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[principal] {
		select {
		case client.Send <- data:
		default:
			h.log.Warn().Str("client", client.ID).Msg("change event dropped, client buffer full")
		}
	}
}

// ClientCount returns the number of connected clients across principals.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// PrincipalCount returns the number of clients connected as principal.
func (h *Hub) PrincipalCount(principal string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[principal])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers are already held to CORSOrigins by the token they must present.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests to a change event stream.
type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// RegisterRoutes mounts the stream on g, which must already authenticate.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

func (h *Handler) HandleConnect(c echo.Context) error {
	principal := auth.UserIDFromContext(c.Request().Context())
	if principal == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "no principal")
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:        uuid.New().String(),
		Principal: principal,
		Send:      make(chan []byte, 64),
		conn:      ws,
	}
	h.hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)
	return nil
}

// readPump discards inbound frames and unregisters the client once the
// connection drops.
func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()
	for message := range client.Send {
		if err := client.conn.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
			return
		}
	}
}
