package bot

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// ActionSink is the session a bot plays on. Bots go through the same
// ApplyAction path as human input.
type ActionSink interface {
	ApplyAction(action domain.Action) bool
	IsOver() bool
}

// Driver feeds one bot's decisions into its session on its own timer.
type Driver struct {
	ID         string
	Difficulty domain.Difficulty

	sink     ActionSink
	interval time.Duration
	rng      *rand.Rand

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewDriver(id string, difficulty domain.Difficulty, sink ActionSink, seed int64) *Driver {
	return &Driver{
		ID:         id,
		Difficulty: difficulty,
		sink:       sink,
		interval:   DecisionInterval(difficulty),
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Start is a no-op if the driver is already running.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)

	log.Debug().Str("component", "bot").Str("botId", d.ID).
		Str("difficulty", string(d.Difficulty)).Dur("interval", d.interval).Msg("bot started")
}

// Stop cancels the decision timer. It does not wait for the loop, so it is safe to
// call from the bot's own goroutine. Idempotent.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (d *Driver) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if !d.Step() {
				log.Debug().Str("component", "bot").Str("botId", d.ID).Msg("bot finished, game over")
				return
			}
		}
	}
}

// Step makes one decision. It returns false once the bot's game is over.
func (d *Driver) Step() bool {
	if d.sink.IsOver() {
		return false
	}
	d.sink.ApplyAction(ChooseAction(d.rng))
	return !d.sink.IsOver()
}
