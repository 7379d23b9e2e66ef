package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/escaperoom/go/internal/events"
	"github.com/rs/zerolog/log"
)

// ConnectionManager fans session events out to websocket subscribers.
type ConnectionManager struct {
	// Connection pools organized by session ID
	sessionConnections map[string]map[*Connection]bool
	mu                 sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig

	broadcastCh chan BroadcastMessage
}

// Connection is one subscribed client. Role is "master" or "player".
type Connection struct {
	ID        string
	SessionID string
	Role      string
	Conn      *websocket.Conn
	Send      chan []byte
	Manager   *ConnectionManager

	ConnectedAt time.Time
}

type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type BroadcastMessage struct {
	SessionID string
	Envelope  events.Envelope
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// kiosks and phones load the UI from other origins
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		sessionConnections: make(map[string]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan BroadcastMessage, 1000),
	}
}

// Start processes broadcasts until ctx is done.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades the request and subscribes it to a session.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, sessionID, role string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		Role:        role,
		Conn:        conn,
		Send:        make(chan []byte, 64),
		Manager:     cm,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("role", role).
		Str("session_id", sessionID).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.sessionConnections[conn.SessionID] == nil {
		cm.sessionConnections[conn.SessionID] = make(map[*Connection]bool)
	}
	cm.sessionConnections[conn.SessionID][conn] = true

	log.Debug().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Int("total_connections", len(cm.sessionConnections[conn.SessionID])).
		Msg("connection registered")
}

func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	connections, exists := cm.sessionConnections[conn.SessionID]
	if !exists {
		return
	}
	if _, exists := connections[conn]; !exists {
		return
	}
	delete(connections, conn)
	close(conn.Send)
	if len(connections) == 0 {
		delete(cm.sessionConnections, conn.SessionID)
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("session_id", conn.SessionID).
		Msg("connection unregistered")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	var all []*Connection
	for _, connections := range cm.sessionConnections {
		for conn := range connections {
			all = append(all, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range all {
		cm.unregisterConnection(conn)
	}
}

// Broadcast queues an envelope for every subscriber of the session. It never
// blocks; a full queue drops the hint.
func (cm *ConnectionManager) Broadcast(sessionID string, envelope events.Envelope) {
	select {
	case cm.broadcastCh <- BroadcastMessage{SessionID: sessionID, Envelope: envelope}:
	default:
		log.Warn().Str("session_id", sessionID).Msg("broadcast channel full, dropping message")
	}
}

func (cm *ConnectionManager) handleBroadcast(message BroadcastMessage) {
	data, err := json.Marshal(message.Envelope)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends happen under the read lock so no Send channel is closed mid-loop.
	var slow []*Connection
	cm.mu.RLock()
	connections := cm.sessionConnections[message.SessionID]
	for conn := range connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	delivered := len(connections) - len(slow)
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}

	log.Debug().
		Str("event_type", message.Envelope.EventType).
		Str("session_id", message.SessionID).
		Int("connections", delivered).
		Msg("event broadcasted")
}

type ConnectionStats struct {
	TotalConnections   int            `json:"total_connections"`
	ActiveSessions     int            `json:"active_sessions"`
	SessionConnections map[string]int `json:"session_connections"`
}

func (cm *ConnectionManager) GetConnectionStats() ConnectionStats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := ConnectionStats{
		ActiveSessions:     len(cm.sessionConnections),
		SessionConnections: make(map[string]int, len(cm.sessionConnections)),
	}
	for sessionID, connections := range cm.sessionConnections {
		stats.TotalConnections += len(connections)
		stats.SessionConnections[sessionID] = len(connections)
	}
	return stats
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message to WebSocket")
				c.Manager.unregisterConnection(c)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to send ping")
				c.Manager.unregisterConnection(c)
				return
			}
		}
	}
}

// readPump only watches for close and pong frames; clients never send commands
// over the socket.
func (c *Connection) readPump() {
	defer c.Manager.unregisterConnection(c)

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}
