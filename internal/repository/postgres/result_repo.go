package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iamasit07/blockfall/backend/internal/domain"
)

type ResultRepo struct {
	DB *sql.DB
}

func NewResultRepo(db *sql.DB) *ResultRepo {
	return &ResultRepo{DB: db}
}

// SaveResult stores one finished game for one player.
func (r *ResultRepo) SaveResult(ctx context.Context, result domain.GameResult) error {
	query := `
	INSERT INTO game_results (room_id, player_id, player_name, is_bot, score, level, lines, duration_seconds, finished_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.DB.ExecContext(ctx, query,
		result.RoomID, result.PlayerID, result.PlayerName, result.IsBot,
		result.Score, result.Level, result.Lines, result.DurationSeconds, result.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert game result: %w", err)
	}
	return nil
}

// Top returns each human player's best score, highest first.
func (r *ResultRepo) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
	SELECT player_name, MAX(score) AS best
	FROM game_results
	WHERE NOT is_bot
	GROUP BY player_name
	ORDER BY best DESC, player_name ASC
	LIMIT $1;
	`
	rows, err := r.DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top scores: %w", err)
	}
	defer rows.Close()

	entries := []domain.LeaderboardEntry{}
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.PlayerName, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
