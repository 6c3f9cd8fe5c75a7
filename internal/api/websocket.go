package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/officecal/internal/logger"
)

// WebSocketMessage is the envelope pushed to clients.
type WebSocketMessage struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
	Source string      `json:"source"`
}

// ConnectionManager manages active WebSocket connections. Writes happen
// under mu, so each connection has a single writer.
type ConnectionManager struct {
	connections []*websocket.Conn
	mu          sync.Mutex
}

// NewConnectionManager creates a new connection manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{}
}

// Add registers a connection.
func (cm *ConnectionManager) Add(conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connections = append(cm.connections, conn)
	logger.Debug("WebSocket connection added, %d open", len(cm.connections))
}

// Remove deletes a connection.
func (cm *ConnectionManager) Remove(conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.remove(conn)
}

func (cm *ConnectionManager) remove(conn *websocket.Conn) {
	for i, c := range cm.connections {
		if c == conn {
			cm.connections = append(cm.connections[:i], cm.connections[i+1:]...)
			logger.Debug("WebSocket connection removed, %d open", len(cm.connections))
			return
		}
	}
}

// Len returns the number of open connections.
func (cm *ConnectionManager) Len() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return len(cm.connections)
}

// Send writes message to a single connection.
func (cm *ConnectionManager) Send(conn *websocket.Conn, message WebSocketMessage) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return err
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, jsonData)
}

// Broadcast sends message to every connection, dropping the ones that fail.
func (cm *ConnectionManager) Broadcast(message WebSocketMessage) {
	jsonData, err := json.Marshal(message)
	if err != nil {
		logger.Error("Error marshalling WebSocket message: %v", err)
		return
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, conn := range append([]*websocket.Conn(nil), cm.connections...) {
		if err := conn.WriteMessage(websocket.TextMessage, jsonData); err != nil {
			logger.Debug("Error sending WebSocket message: %v", err)
			conn.Close()
			cm.remove(conn)
		}
	}
}

// CloseAll closes and forgets every connection.
func (cm *ConnectionManager) CloseAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, conn := range cm.connections {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
	}
	cm.connections = nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Same-machine tool; CORS is already open.
		return true
	},
}

// handleWebSocket sends the current view, then every recomputed view until
// the client goes away.
func (a *API) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warning("Error upgrading WebSocket: %v", err)
		return
	}
	defer conn.Close()
	// Hijacked connections keep the server's request deadlines.
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	a.conns.Add(conn)
	defer a.conns.Remove(conn)

	if err := a.conns.Send(conn, WebSocketMessage{Action: "view", Data: a.tracker.View(), Source: "tracker"}); err != nil {
		return
	}

	// Clients never send anything useful; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
