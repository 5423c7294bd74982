package domain

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

var BotNames = map[Difficulty]string{
	DifficultyEasy:   "Alice",
	DifficultyMedium: "Bob",
	DifficultyHard:   "Charles",
}

func (d Difficulty) Valid() bool {
	_, ok := BotNames[d]
	return ok
}

func GetBotName(difficulty Difficulty) string {
	if name, ok := BotNames[difficulty]; ok {
		return name
	}
	return "BOT"
}

// GameResult is what gets recorded when a session reaches game over.
type GameResult struct {
	RoomID          string
	PlayerID        string
	PlayerName      string
	IsBot           bool
	Score           int
	Level           int
	Lines           int
	DurationSeconds int
	FinishedAt      time.Time
}

// LeaderboardEntry is one row of the high score table.
type LeaderboardEntry struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}
