package websocket

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/time/rate"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

const writeWait = 10 * time.Second

// client is one registered socket.
type client struct {
	conn     *websocket.Conn
	username string
	encoding string
	limiter  *rate.Limiter

	// writeMu ensures only one goroutine writes to the socket at a time;
	// gorilla connections support a single concurrent writer.
	writeMu sync.Mutex
}

// ConnectionManager handles active WebSocket connections thread-safely
type ConnectionManager struct {
	clients map[string]*client // connID → client
	mu      sync.RWMutex       // protects the map itself

	actionRate  rate.Limit
	actionBurst int
}

func NewConnectionManager(actionsPerSecond float64, burst int) *ConnectionManager {
	return &ConnectionManager{
		clients:     make(map[string]*client),
		actionRate:  rate.Limit(actionsPerSecond),
		actionBurst: burst,
	}
}

// AddConnection registers a socket under connID with the wire encoding it asked for.
func (cm *ConnectionManager) AddConnection(connID string, conn *websocket.Conn, username, encoding string) {
	if encoding == "" {
		encoding = EncodingJSON
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if old, exists := cm.clients[connID]; exists && old.conn != conn {
		old.conn.Close()
	}
	cm.clients[connID] = &client{
		conn:     conn,
		username: username,
		encoding: encoding,
		limiter:  rate.NewLimiter(cm.actionRate, cm.actionBurst),
	}
}

func (cm *ConnectionManager) RemoveConnection(connID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, exists := cm.clients[connID]; exists {
		c.conn.Close()
		delete(cm.clients, connID)
	}
}

// RemoveConnectionIfMatching avoids closing a newer socket registered under the same id.
func (cm *ConnectionManager) RemoveConnectionIfMatching(connID string, conn *websocket.Conn) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if c, exists := cm.clients[connID]; exists && c.conn == conn {
		c.conn.Close()
		delete(cm.clients, connID)
	}
}

func (cm *ConnectionManager) get(connID string) (*client, bool) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	c, ok := cm.clients[connID]
	return c, ok
}

// Allow reports whether connID still has budget for another game action.
func (cm *ConnectionManager) Allow(connID string) bool {
	c, ok := cm.get(connID)
	if !ok {
		return false
	}
	return c.limiter.Allow()
}

func (cm *ConnectionManager) GetUsername(connID string) (string, bool) {
	c, ok := cm.get(connID)
	if !ok {
		return "", false
	}
	return c.username, true
}

func (cm *ConnectionManager) Count() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients)
}

// SendMessage writes message to one connection. A connection that is gone is not an error.
func (cm *ConnectionManager) SendMessage(connID string, message domain.ServerMessage) error {
	c, exists := cm.get(connID)
	if !exists {
		return nil
	}

	frameType, data, err := encode(message, c.encoding)
	if err != nil {
		log.Error().Err(err).Str("component", "ws").Str("connId", connID).Msg("failed to encode message")
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(frameType, data)
}

// BroadcastMessage sends a message to all connected users
func (cm *ConnectionManager) BroadcastMessage(message domain.ServerMessage) {
	cm.mu.RLock()
	ids := make([]string, 0, len(cm.clients))
	for id := range cm.clients {
		ids = append(ids, id)
	}
	cm.mu.RUnlock()

	for _, id := range ids {
		// one slow socket must not hold up the rest
		go func(connID string) {
			cm.SendMessage(connID, message)
		}(id)
	}
}

func encode(message domain.ServerMessage, encoding string) (int, []byte, error) {
	if encoding == EncodingMsgpack {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		enc.UseCompactInts(true)
		if err := enc.Encode(message); err != nil {
			return 0, nil, err
		}
		return websocket.BinaryMessage, buf.Bytes(), nil
	}

	data, err := json.Marshal(message)
	if err != nil {
		return 0, nil, err
	}
	return websocket.TextMessage, data, nil
}
