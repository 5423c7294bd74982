package websocket

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/iamasit07/blockfall/backend/pkg/auth"
	"github.com/iamasit07/blockfall/backend/pkg/uid"
	"github.com/rs/zerolog/log"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// RoomService is the coordinator as seen from the transport.
type RoomService interface {
	CreateRoom(name string) string
	JoinRoom(connID, roomID, playerName string) error
	LeaveRoom(connID string) error
	ListRooms() []domain.RoomSummary
	StartGame(roomID string) error
	HandleAction(connID string, action domain.Action) error
	AddBotToRoom(roomID, ownerID string, difficulty domain.Difficulty, name string) (string, error)
	RemoveBot(roomID, botID string) error
	StartSinglePlayerWithBot(connID string, difficulty domain.Difficulty, playerName string) (string, string, error)
	RoomIDOf(connID string) (string, bool)
}

type TicketValidator interface {
	ValidateTicket(token string) (*auth.Claims, error)
}

// Sender is the part of ConnectionManager the message router needs.
type Sender interface {
	SendMessage(connID string, message domain.ServerMessage) error
	Allow(connID string) bool
}

// Handler manages WebSocket dependencies
type Handler struct {
	ConnManager *ConnectionManager
	Rooms       RoomService
	Tickets     TicketValidator
	Upgrader    websocket.Upgrader

	sender Sender
}

func NewHandler(cm *ConnectionManager, rooms RoomService, tickets TicketValidator, checkOrigin func(r *http.Request) bool) *Handler {
	return &Handler{
		ConnManager: cm,
		Rooms:       rooms,
		Tickets:     tickets,
		Upgrader: websocket.Upgrader{
			CheckOrigin:     checkOrigin,
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sender: cm,
	}
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("component", "ws").Msg("upgrade failed")
		return
	}

	h.handleConnection(conn)
}

func (h *Handler) handleConnection(conn *websocket.Conn) {
	connID := uid.GenerateConnectionID()
	logger := log.With().Str("component", "ws").Str("connId", connID).Logger()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// 1. Wait for init carrying a guest ticket. Until AddConnection this goroutine is the
	// only writer, so init failures go out with WriteJSON and no write lock.
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Debug().Err(err).Msg("read error during init")
		conn.Close()
		return
	}

	msg, req, err := domain.DecodeClientMessage(data)
	initReq, ok := req.(*domain.InitRequest)
	if err != nil || !ok {
		if err == nil {
			err = errors.New("first message must be init")
		}
		logger.Debug().Err(err).Msg("bad init")
		conn.WriteJSON(domain.NewFailedAck(msg.RequestID, err))
		conn.Close()
		return
	}

	claims, err := h.Tickets.ValidateTicket(initReq.Token)
	if err != nil {
		logger.Debug().Err(err).Msg("invalid ticket")
		conn.WriteJSON(domain.NewFailedAck(msg.RequestID, domain.ErrInvalidTicket))
		conn.Close()
		return
	}

	h.ConnManager.AddConnection(connID, conn, claims.Username, initReq.Encoding)
	logger.Info().Str("guestId", claims.GuestID).Str("username", claims.Username).
		Str("encoding", initReq.Encoding).Msg("connection initialized")
	h.ConnManager.SendMessage(connID, domain.NewAck(msg.RequestID, domain.AckPayload{Success: true}))

	stopPing := make(chan struct{})
	go h.keepAlive(connID, conn, stopPing)

	// 2. Cleanup on exit
	defer func() {
		close(stopPing)
		if err := h.Rooms.LeaveRoom(connID); err != nil && !errors.Is(err, domain.ErrNotInRoom) {
			logger.Warn().Err(err).Msg("leave on disconnect failed")
		}
		h.ConnManager.RemoveConnectionIfMatching(connID, conn)
		logger.Info().Msg("connection closed")
	}()

	// 3. Main message loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug().Err(err).Msg("disconnected unexpectedly")
			}
			return
		}
		h.processMessage(connID, data)
	}
}

func (h *Handler) keepAlive(connID string, conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c, ok := h.ConnManager.get(connID)
			if !ok || c.conn != conn {
				return
			}
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (h *Handler) ack(connID, requestID string, payload domain.AckPayload) {
	payload.Success = true
	h.sender.SendMessage(connID, domain.NewAck(requestID, payload))
}

func (h *Handler) fail(connID, requestID string, err error) {
	h.sender.SendMessage(connID, domain.NewFailedAck(requestID, err))
}

// processMessage routes one validated inbound event to the coordinator and acknowledges it.
func (h *Handler) processMessage(connID string, data []byte) {
	msg, req, err := domain.DecodeClientMessage(data)
	if err != nil {
		log.Debug().Err(err).Str("component", "ws").Str("connId", connID).Msg("rejected message")
		h.fail(connID, msg.RequestID, err)
		return
	}

	switch r := req.(type) {
	case *domain.InitRequest:
		h.fail(connID, msg.RequestID, errors.New("connection already initialized"))

	case *domain.CreateRoomRequest:
		roomID := h.Rooms.CreateRoom(r.Name)
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: roomID})

	case *domain.JoinRoomRequest:
		if err := h.Rooms.JoinRoom(connID, r.RoomID, r.PlayerName); err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: r.RoomID})

	case *domain.GetRoomsRequest:
		h.ack(connID, msg.RequestID, domain.AckPayload{Rooms: h.Rooms.ListRooms()})

	case *domain.StartGameRequest:
		if roomID, ok := h.Rooms.RoomIDOf(connID); !ok || roomID != r.RoomID {
			h.fail(connID, msg.RequestID, domain.ErrNotInRoom)
			return
		}
		if err := h.Rooms.StartGame(r.RoomID); err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: r.RoomID})

	case *domain.PlayerActionRequest:
		// answered by the state broadcast, not an ack
		if !h.sender.Allow(connID) {
			log.Debug().Str("component", "ws").Str("connId", connID).Msg("action rate limited")
			return
		}
		h.Rooms.HandleAction(connID, r.Kind)

	case *domain.AddBotRequest:
		roomID, ok := h.Rooms.RoomIDOf(connID)
		if !ok {
			h.fail(connID, msg.RequestID, domain.ErrNotInRoom)
			return
		}
		botID, err := h.Rooms.AddBotToRoom(roomID, connID, r.Difficulty, r.Name)
		if err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: roomID, BotID: botID})

	case *domain.RemoveBotRequest:
		roomID, ok := h.Rooms.RoomIDOf(connID)
		if !ok {
			h.fail(connID, msg.RequestID, domain.ErrNotInRoom)
			return
		}
		if err := h.Rooms.RemoveBot(roomID, r.BotID); err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: roomID, BotID: r.BotID})

	case *domain.StartSinglePlayerRequest:
		roomID, botID, err := h.Rooms.StartSinglePlayerWithBot(connID, r.Difficulty, r.PlayerName)
		if err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: roomID, BotID: botID})

	case *domain.LeaveRoomRequest:
		if err := h.Rooms.LeaveRoom(connID); err != nil {
			h.fail(connID, msg.RequestID, err)
			return
		}
		h.ack(connID, msg.RequestID, domain.AckPayload{RoomID: r.RoomID})
	}
}
