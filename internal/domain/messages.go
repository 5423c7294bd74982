package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ---- inbound ----

type ClientMessageType string

const (
	MsgInit                     ClientMessageType = "init"
	MsgCreateRoom               ClientMessageType = "create_room"
	MsgJoinRoom                 ClientMessageType = "join_room"
	MsgGetRooms                 ClientMessageType = "get_rooms"
	MsgStartGame                ClientMessageType = "start_game"
	MsgPlayerAction             ClientMessageType = "player_action"
	MsgAddBot                   ClientMessageType = "add_bot"
	MsgRemoveBot                ClientMessageType = "remove_bot"
	MsgStartSinglePlayerWithBot ClientMessageType = "start_single_player_with_bot"
	MsgLeaveRoom                ClientMessageType = "leave_room"
)

// ClientMessage is the envelope every inbound frame arrives in.
type ClientMessage struct {
	Type      ClientMessageType `json:"type"`
	RequestID string            `json:"requestId,omitempty"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
}

// Request is a decoded, typed inbound payload.
type Request interface {
	Validate() error
}

type InitRequest struct {
	Token    string `json:"token"`
	Encoding string `json:"encoding"`
}

type CreateRoomRequest struct {
	Name string `json:"name"`
}

type JoinRoomRequest struct {
	RoomID     string `json:"roomId"`
	PlayerName string `json:"playerName"`
}

type GetRoomsRequest struct{}

type StartGameRequest struct {
	RoomID string `json:"roomId"`
}

type PlayerActionRequest struct {
	Kind Action `json:"kind"`
}

type AddBotRequest struct {
	Difficulty Difficulty `json:"difficulty"`
	Name       string     `json:"name,omitempty"`
}

type RemoveBotRequest struct {
	BotID string `json:"botId"`
}

type StartSinglePlayerRequest struct {
	Difficulty Difficulty `json:"difficulty"`
	PlayerName string     `json:"playerName"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (r *InitRequest) Validate() error {
	if blank(r.Token) {
		return missing("token")
	}
	switch r.Encoding {
	case "", "json", "msgpack":
		return nil
	}
	return fmt.Errorf("unsupported encoding %q", r.Encoding)
}

func (r *CreateRoomRequest) Validate() error {
	if blank(r.Name) {
		return missing("name")
	}
	return nil
}

func (r *JoinRoomRequest) Validate() error {
	if blank(r.RoomID) {
		return missing("roomId")
	}
	if blank(r.PlayerName) {
		return missing("playerName")
	}
	return nil
}

func (r *GetRoomsRequest) Validate() error { return nil }

func (r *StartGameRequest) Validate() error {
	if blank(r.RoomID) {
		return missing("roomId")
	}
	return nil
}

func (r *PlayerActionRequest) Validate() error {
	if r.Kind == "" {
		return missing("kind")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownAction, r.Kind)
	}
	return nil
}

func (r *AddBotRequest) Validate() error {
	if r.Difficulty == "" {
		return missing("difficulty")
	}
	if !r.Difficulty.Valid() {
		return ErrInvalidDifficulty
	}
	return nil
}

func (r *RemoveBotRequest) Validate() error {
	if blank(r.BotID) {
		return missing("botId")
	}
	return nil
}

func (r *StartSinglePlayerRequest) Validate() error {
	if r.Difficulty == "" {
		return missing("difficulty")
	}
	if !r.Difficulty.Valid() {
		return ErrInvalidDifficulty
	}
	if blank(r.PlayerName) {
		return missing("playerName")
	}
	return nil
}

func (r *LeaveRoomRequest) Validate() error { return nil }

func newRequest(t ClientMessageType) (Request, bool) {
	switch t {
	case MsgInit:
		return &InitRequest{}, true
	case MsgCreateRoom:
		return &CreateRoomRequest{}, true
	case MsgJoinRoom:
		return &JoinRoomRequest{}, true
	case MsgGetRooms:
		return &GetRoomsRequest{}, true
	case MsgStartGame:
		return &StartGameRequest{}, true
	case MsgPlayerAction:
		return &PlayerActionRequest{}, true
	case MsgAddBot:
		return &AddBotRequest{}, true
	case MsgRemoveBot:
		return &RemoveBotRequest{}, true
	case MsgStartSinglePlayerWithBot:
		return &StartSinglePlayerRequest{}, true
	case MsgLeaveRoom:
		return &LeaveRoomRequest{}, true
	}
	return nil, false
}

// DecodeClientMessage parses the envelope and its typed payload and validates required fields.
// The envelope is returned even on validation failure so the caller can still ack by request id.
func DecodeClientMessage(data []byte) (ClientMessage, Request, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, nil, fmt.Errorf("invalid message: %w", err)
	}

	req, ok := newRequest(msg.Type)
	if !ok {
		return msg, nil, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}

	if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
		if err := json.Unmarshal(msg.Payload, req); err != nil {
			return msg, nil, fmt.Errorf("invalid %s payload: %w", msg.Type, err)
		}
	}

	if err := req.Validate(); err != nil {
		return msg, nil, err
	}
	return msg, req, nil
}

// ---- outbound ----

type ServerMessageType string

const (
	MsgAck             ServerMessageType = "ack"
	MsgError           ServerMessageType = "error"
	MsgRoomUpdate      ServerMessageType = "room_update"
	MsgRoomsListUpdate ServerMessageType = "rooms_list_update"
	MsgGameStarting    ServerMessageType = "game_starting"
	MsgStateUpdate     ServerMessageType = "state_update"
	MsgOpponentUpdate  ServerMessageType = "opponent_update"
	MsgReceiveGarbage  ServerMessageType = "receive_garbage"
)

type ServerMessage struct {
	Type      ServerMessageType `json:"type"`
	RequestID string            `json:"requestId,omitempty"`
	Payload   any               `json:"payload,omitempty"`
}

type AckPayload struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	RoomID  string        `json:"roomId,omitempty"`
	BotID   string        `json:"botId,omitempty"`
	Rooms   []RoomSummary `json:"rooms,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

type PlayerSummary struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	IsBot  bool       `json:"isBot"`
	Score  int        `json:"score"`
	Level  int        `json:"level"`
	Lines  int        `json:"lines"`
	Status GameStatus `json:"status"`
}

type RoomSummary struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	PlayerCount int             `json:"playerCount"`
	MaxPlayers  int             `json:"maxPlayers"`
	Active      bool            `json:"active"`
	CreatedAt   time.Time       `json:"createdAt"`
	Players     []PlayerSummary `json:"players"`
}

type GameStartingPayload struct {
	PlayerCount int `json:"playerCount"`
}

// PieceView is what spectators see of an active piece.
type PieceView struct {
	Kind PieceKind `json:"kind"`
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Mask Shape     `json:"mask"`
}

// OpponentView is the reduced state sent for every other member of a room.
type OpponentView struct {
	PlayerID   string     `json:"playerId"`
	PlayerName string     `json:"playerName"`
	IsBot      bool       `json:"isBot"`
	Status     GameStatus `json:"status"`
	Score      int        `json:"score"`
	Level      int        `json:"level"`
	Lines      int        `json:"lines"`
	Board      [][]int    `json:"board"`
	Piece      *PieceView `json:"piece,omitempty"`
}

// SessionState is the full snapshot a player's own renderer consumes.
type SessionState struct {
	PlayerID       string         `json:"playerId"`
	PlayerName     string         `json:"playerName"`
	Status         GameStatus     `json:"status"`
	Board          Board          `json:"board"`
	Current        *Piece         `json:"current,omitempty"`
	Next           *Piece         `json:"next,omitempty"`
	Held           *Piece         `json:"held,omitempty"`
	CanHold        bool           `json:"canHold"`
	Score          int            `json:"score"`
	Level          int            `json:"level"`
	Lines          int            `json:"lines"`
	DropIntervalMs int64          `json:"dropIntervalMs"`
	Opponents      []OpponentView `json:"opponents"`
}

type OpponentUpdatePayload struct {
	Opponent OpponentView `json:"opponent"`
}

type ReceiveGarbagePayload struct {
	LineCount  int    `json:"lineCount"`
	FromPlayer string `json:"fromPlayer"`
}

func NewAck(requestID string, payload AckPayload) ServerMessage {
	return ServerMessage{Type: MsgAck, RequestID: requestID, Payload: payload}
}

func NewFailedAck(requestID string, err error) ServerMessage {
	return NewAck(requestID, AckPayload{Success: false, Error: err.Error()})
}

func NewErrorMessage(message string) ServerMessage {
	return ServerMessage{Type: MsgError, Payload: ErrorPayload{Message: message}}
}

func NewRoomUpdate(room RoomSummary) ServerMessage {
	return ServerMessage{Type: MsgRoomUpdate, Payload: room}
}

func NewRoomsListUpdate(rooms []RoomSummary) ServerMessage {
	return ServerMessage{Type: MsgRoomsListUpdate, Payload: rooms}
}

func NewGameStarting(playerCount int) ServerMessage {
	return ServerMessage{Type: MsgGameStarting, Payload: GameStartingPayload{PlayerCount: playerCount}}
}

func NewStateUpdate(state SessionState) ServerMessage {
	return ServerMessage{Type: MsgStateUpdate, Payload: state}
}

func NewOpponentUpdate(view OpponentView) ServerMessage {
	return ServerMessage{Type: MsgOpponentUpdate, Payload: OpponentUpdatePayload{Opponent: view}}
}

func NewReceiveGarbage(lineCount int, fromPlayer string) ServerMessage {
	return ServerMessage{Type: MsgReceiveGarbage, Payload: ReceiveGarbagePayload{LineCount: lineCount, FromPlayer: fromPlayer}}
}
