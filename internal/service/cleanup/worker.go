package cleanup

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// RoomReaper removes rooms that have been idle for longer than the given duration.
type RoomReaper interface {
	CleanupStaleRooms(idle time.Duration) int
}

type Worker struct {
	Rooms    RoomReaper
	Idle     time.Duration
	Interval time.Duration
}

func NewWorker(rooms RoomReaper, idle time.Duration) *Worker {
	return &Worker{Rooms: rooms, Idle: idle, Interval: time.Hour}
}

// Start runs one cleanup immediately and then every Interval until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		w.RunOnce()

		ticker := time.NewTicker(w.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce()
			}
		}
	}()
	log.Info().Str("component", "cleanup").Dur("interval", w.Interval).Msg("background worker started")
}

func (w *Worker) RunOnce() int {
	removed := w.Rooms.CleanupStaleRooms(w.Idle)
	if removed > 0 {
		log.Info().Str("component", "cleanup").Int("rooms", removed).Msg("removed idle rooms")
	}
	return removed
}
