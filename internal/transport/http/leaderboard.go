package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// ScoreSource is anything that can produce the high score table.
type ScoreSource interface {
	Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

type LeaderboardHandler struct {
	Cache    ScoreSource // optional, redis
	Fallback ScoreSource // optional, postgres
}

func NewLeaderboardHandler(cache, fallback ScoreSource) *LeaderboardHandler {
	return &LeaderboardHandler{Cache: cache, Fallback: fallback}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	limit := defaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLeaderboardLimit)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	var sources []ScoreSource
	for _, source := range []ScoreSource{h.Cache, h.Fallback} {
		if source != nil {
			sources = append(sources, source)
		}
	}
	if len(sources) == 0 {
		c.JSON(http.StatusOK, []domain.LeaderboardEntry{})
		return
	}

	// an empty cache (fresh redis) defers to the database
	for i, source := range sources {
		entries, err := source.Top(ctx, limit)
		if err != nil {
			log.Warn().Err(err).Str("component", "http").Msg("leaderboard source failed")
			continue
		}
		if len(entries) == 0 && i < len(sources)-1 {
			continue
		}
		c.JSON(http.StatusOK, entries)
		return
	}

	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "leaderboard unavailable"})
}
