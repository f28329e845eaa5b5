package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fusionmc/server/internal/auth"
	"github.com/fusionmc/server/internal/commands"
	"github.com/fusionmc/server/internal/config"
	"github.com/fusionmc/server/internal/engine"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// ProtocolVersion1 is the debug overlay subprotocol.
	ProtocolVersion1 = "fusionmc-overlay-v1"

	// Default ping interval (30 seconds)
	defaultPingInterval = 30 * time.Second

	// Pong wait timeout (60 seconds)
	pongWait = 60 * time.Second

	// Write timeout (10 seconds)
	writeTimeout = 10 * time.Second

	// Stats push interval bounds for stats_subscribe.
	minStatsInterval     = 100 * time.Millisecond
	defaultStatsInterval = time.Second
	maxStatsInterval     = time.Minute

	sendBufferSize = 64
)

// OverlayConnection is one debug overlay websocket session.
type OverlayConnection struct {
	id       uuid.UUID
	operator string
	conn     *websocket.Conn
	hub      *OverlayHub

	mu     sync.Mutex
	send   chan []byte
	closed bool
	// stopStats ends the active stats subscription, if any.
	stopStats chan struct{}
}

// OverlayHub tracks the open overlay sessions.
type OverlayHub struct {
	connections map[uuid.UUID]*OverlayConnection
	broadcast   chan []byte
	register    chan *OverlayConnection
	unregister  chan *OverlayConnection
	done        chan struct{}
	mu          sync.RWMutex
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// WebSocketError represents an error message sent over WebSocket
type WebSocketError struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// StatsSubscribeRequest is the data of a stats_subscribe message.
type StatsSubscribeRequest struct {
	IntervalMS int `json:"interval_ms"`
}

// NewOverlayHub creates a new overlay hub
func NewOverlayHub() *OverlayHub {
	return &OverlayHub{
		connections: make(map[uuid.UUID]*OverlayConnection),
		broadcast:   make(chan []byte, 256),
		register:    make(chan *OverlayConnection),
		unregister:  make(chan *OverlayConnection),
		done:        make(chan struct{}),
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes every session.
func (h *OverlayHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, conn := range h.connections {
				conn.close()
				delete(h.connections, id)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.id] = conn
			h.mu.Unlock()
			log.Printf("[Overlay] session %s opened by %s", conn.id, conn.operator)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.id]; ok {
				delete(h.connections, conn.id)
				conn.close()
			}
			h.mu.Unlock()
			log.Printf("[Overlay] session %s closed", conn.id)

		case message := <-h.broadcast:
			h.mu.Lock()
			for id, conn := range h.connections {
				if !conn.enqueue(message) {
					conn.close()
					delete(h.connections, id)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every open session. It never blocks: the message is
// dropped when the hub has stopped or its queue is full.
func (h *OverlayHub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		log.Printf("[Overlay] broadcast queue full, dropping message")
	}
}

// StateChange is the data of a state_changed message.
type StateChange struct {
	Event    string          `json:"event"`
	Operator string          `json:"operator,omitempty"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// PublishStateChange tells every session that an operator changed engine state.
// A nil hub is a no-op.
func (h *OverlayHub) PublishStateChange(event, operator string, snapshot engine.Snapshot) {
	if h == nil {
		return
	}
	h.Broadcast(mustJSON(WebSocketMessage{Type: "state_changed", Data: mustJSON(StateChange{
		Event:    event,
		Operator: operator,
		Snapshot: snapshot,
	})}))
}

// Count returns the number of open sessions.
func (h *OverlayHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// enqueue queues a message without blocking. It reports false when the session is
// closed or its buffer is full.
func (c *OverlayConnection) enqueue(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- message:
		return true
	default:
		return false
	}
}

func (c *OverlayConnection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.stopStats != nil {
		close(c.stopStats)
		c.stopStats = nil
	}
	close(c.send)
}

// OverlayHandlers serves the /ws debug overlay stream.
type OverlayHandlers struct {
	hub          *OverlayHub
	engine       *engine.Engine
	dispatcher   *commands.Dispatcher
	authHandlers *auth.AuthHandlers
	upgrader     websocket.Upgrader
	validator    *validator.Validate
}

// NewOverlayHandlers creates overlay handlers bound to e
func NewOverlayHandlers(e *engine.Engine, cfg *config.Config, allowedOrigins []string) *OverlayHandlers {
	return &OverlayHandlers{
		hub:          NewOverlayHub(),
		engine:       e,
		dispatcher:   commands.NewDispatcher(e),
		authHandlers: newAuthHandlers(cfg),
		validator:    validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Non-browser clients send no Origin.
				return origin == "" || originAllowed(origin, allowedOrigins)
			},
		},
	}
}

// Hub returns the session hub so the caller can run it.
func (h *OverlayHandlers) Hub() *OverlayHub {
	return h.hub
}

// Handler returns the /ws handler wrapped in operator authentication.
func (h *OverlayHandlers) Handler() http.Handler {
	return h.authHandlers.AuthMiddleware(http.HandlerFunc(h.HandleWebSocket))
}

// HandleWebSocket upgrades an authenticated request into an overlay session
func (h *OverlayHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	operator, ok := auth.GetOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	requested := r.Header.Get("Sec-WebSocket-Protocol")
	selected := negotiateVersion(requested)
	if selected == "" {
		log.Printf("[Overlay] version negotiation failed: requested=%s", requested)
		http.Error(w, "Unsupported protocol version", http.StatusBadRequest)
		return
	}

	var responseHeaders http.Header
	if requested != "" {
		responseHeaders = http.Header{}
		responseHeaders.Set("Sec-WebSocket-Protocol", selected)
	}

	conn, err := h.upgrader.Upgrade(w, r, responseHeaders)
	if err != nil {
		log.Printf("[Overlay] upgrade failed: %v", err)
		return
	}

	session := &OverlayConnection{
		id:       uuid.New(),
		operator: operator,
		conn:     conn,
		hub:      h.hub,
		send:     make(chan []byte, sendBufferSize),
	}
	select {
	case h.hub.register <- session:
	case <-h.hub.done:
		conn.Close()
		return
	}

	session.sendJSON(WebSocketMessage{Type: "welcome", Data: mustJSON(map[string]string{
		"session_id": session.id.String(),
		"version":    engine.Version,
		"protocol":   selected,
	})})

	go session.writePump()
	go session.readPump(h)
}

// negotiateVersion selects the highest supported protocol version
func negotiateVersion(requested string) string {
	if requested == "" {
		return ProtocolVersion1
	}
	for _, v := range strings.Split(requested, ",") {
		if strings.TrimSpace(v) == ProtocolVersion1 {
			return ProtocolVersion1
		}
	}
	return ""
}

// readPump handles incoming messages from the WebSocket connection
func (c *OverlayConnection) readPump(handlers *OverlayHandlers) {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("[Overlay] Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Overlay] WebSocket error: %v", err)
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			c.sendError("", "Invalid message format", "InvalidMessageFormat")
			continue
		}
		handlers.handleMessage(c, &msg)
	}
}

// writePump handles outgoing messages to the WebSocket connection
func (c *OverlayConnection) writePump() {
	ticker := time.NewTicker(defaultPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *OverlayConnection) sendJSON(v interface{}) {
	messageBytes, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Overlay] Failed to marshal message: %v", err)
		return
	}
	if !c.enqueue(messageBytes) {
		log.Printf("[Overlay] dropped message for session %s", c.id)
	}
}

// sendError sends an error message to the client
func (c *OverlayConnection) sendError(id, errorMsg, code string) {
	c.sendJSON(WebSocketError{
		Type:    "error",
		ID:      id,
		Error:   errorMsg,
		Message: errorMsg,
		Code:    code,
	})
}

// handleMessage routes messages to appropriate handlers
func (h *OverlayHandlers) handleMessage(conn *OverlayConnection, msg *WebSocketMessage) {
	switch msg.Type {
	case "ping":
		conn.sendJSON(WebSocketMessage{Type: "pong", ID: msg.ID})
	case "stats_subscribe":
		h.handleStatsSubscribe(conn, msg)
	case "stats_unsubscribe":
		conn.stopSubscription()
		conn.sendJSON(WebSocketMessage{Type: "stats_unsubscribed", ID: msg.ID})
	case "command":
		h.handleCommand(conn, msg)
	default:
		conn.sendError(msg.ID, "Unknown message type", "UnknownMessageType")
	}
}

func (h *OverlayHandlers) handleStatsSubscribe(conn *OverlayConnection, msg *WebSocketMessage) {
	var req StatsSubscribeRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			conn.sendError(msg.ID, "Invalid subscription request", "InvalidRequest")
			return
		}
	}
	interval := clampInterval(time.Duration(req.IntervalMS) * time.Millisecond)

	stop := conn.startSubscription()
	if stop == nil {
		return
	}
	conn.sendJSON(WebSocketMessage{Type: "stats_subscribed", ID: msg.ID, Data: mustJSON(map[string]int64{
		"interval_ms": interval.Milliseconds(),
	})})
	conn.sendJSON(WebSocketMessage{Type: "stats", Data: mustJSON(h.engine.Snapshot())})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				conn.sendJSON(WebSocketMessage{Type: "stats", Data: mustJSON(h.engine.Snapshot())})
			}
		}
	}()
}

func (h *OverlayHandlers) handleCommand(conn *OverlayConnection, msg *WebSocketMessage) {
	var req CommandRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil || req.Line == "" {
		conn.sendError(msg.ID, "Command line required", "InvalidRequest")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		conn.sendError(msg.ID, auth.ValidationMessage(err), "ValidationError")
		return
	}
	result := h.dispatcher.Execute(req.Line)
	if !result.Handled {
		conn.sendError(msg.ID, "Not a fusion command", "UnknownCommand")
		return
	}
	log.Printf("[Overlay] %s ran %q", conn.operator, req.Line)
	conn.sendJSON(WebSocketMessage{Type: "command_result", ID: msg.ID, Data: mustJSON(result)})
	if result.Changed {
		h.hub.PublishStateChange("command", conn.operator, h.engine.Snapshot())
	}
}

// startSubscription replaces any running subscription and returns its stop channel,
// or nil when the session is already closed.
func (c *OverlayConnection) startSubscription() chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.stopStats != nil {
		close(c.stopStats)
	}
	c.stopStats = make(chan struct{})
	return c.stopStats
}

func (c *OverlayConnection) stopSubscription() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopStats != nil {
		close(c.stopStats)
		c.stopStats = nil
	}
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return defaultStatsInterval
	case d < minStatsInterval:
		return minStatsInterval
	case d > maxStatsInterval:
		return maxStatsInterval
	}
	return d
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[Overlay] Failed to marshal payload: %v", err)
		return nil
	}
	return b
}
