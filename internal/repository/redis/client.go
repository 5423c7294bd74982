package redis

import (
	"context"
	"fmt"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const leaderboardKey = "blockfall:leaderboard"

// NewClient connects to Redis. A nil client with a nil error means Redis is
// unreachable and callers fall back to PostgreSQL only.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Str("component", "redis").Msg("could not connect, falling back to PostgreSQL only")
		client.Close()
		return nil, nil
	}

	log.Info().Str("component", "redis").Str("addr", addr).Msg("connected")
	return client, nil
}

// Leaderboard keeps each player's best score in a sorted set.
type Leaderboard struct {
	client *redis.Client
	key    string
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client, key: leaderboardKey}
}

// SubmitScore records score for name unless a higher one is already stored.
func (l *Leaderboard) SubmitScore(ctx context.Context, playerName string, score int) error {
	err := l.client.ZAddGT(ctx, l.key, redis.Z{Score: float64(score), Member: playerName}).Err()
	if err != nil {
		return fmt.Errorf("leaderboard submit: %w", err)
	}
	return nil
}

// Top returns up to limit entries, highest score first.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		return []domain.LeaderboardEntry{}, nil
	}
	zs, err := l.client.ZRevRangeWithScores(ctx, l.key, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("leaderboard top: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(zs))
	for _, z := range zs {
		name, _ := z.Member.(string)
		entries = append(entries, domain.LeaderboardEntry{PlayerName: name, Score: int(z.Score)})
	}
	return entries, nil
}
