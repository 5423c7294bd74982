package domain

// Board dimensions are fixed for the lifetime of every session.
const (
	Width  = 10
	Height = 20
)

// MaxRoomPlayers caps humans and bots together.
const MaxRoomPlayers = 4

// Cell values. 1-7 are piece kinds, see PieceKind.
type Cell int

const (
	Empty   Cell = 0
	Garbage Cell = 8
)

type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlaying  GameStatus = "playing"
	StatusPaused   GameStatus = "paused"
	StatusGameOver GameStatus = "game_over"
)

// Action is one input from a player or a bot.
type Action string

const (
	ActionMoveLeft  Action = "move_left"
	ActionMoveRight Action = "move_right"
	ActionMoveDown  Action = "move_down"
	ActionRotate    Action = "rotate"
	ActionHardDrop  Action = "hard_drop"
	ActionHold      Action = "hold"
)

func (a Action) Valid() bool {
	switch a {
	case ActionMoveLeft, ActionMoveRight, ActionMoveDown, ActionRotate, ActionHardDrop, ActionHold:
		return true
	}
	return false
}

// basic errors that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrRoomNotFound      Error = "room not found"
	ErrRoomFull          Error = "room is full"
	ErrNotInRoom         Error = "not in a room"
	ErrAlreadyInRoom     Error = "already in a room"
	ErrNotEnoughPlayers  Error = "at least 2 players are required to start"
	ErrBotNotFound       Error = "bot not found"
	ErrInvalidDifficulty Error = "invalid bot difficulty"
	ErrMissingField      Error = "missing required field"
	ErrUnknownMessage    Error = "unknown message type"
	ErrUnknownAction     Error = "unknown action"
	ErrSessionNotFound   Error = "session not found"
	ErrInvalidTicket     Error = "invalid or expired ticket"
)
