package game

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/rs/zerolog/log"
)

// SessionObserver is told about a session's effects after its lock has been released.
type SessionObserver interface {
	LinesCleared(s *Session, cleared int)
	SessionChanged(s *Session)
	SessionOver(s *Session)
}

// Session is one player's (or bot's) game. All mutation happens under mu:
// gravity ticks, actions and incoming garbage are serialized per session.
type Session struct {
	RoomID     string
	PlayerID   string
	PlayerName string
	IsBot      bool

	mu           sync.Mutex
	status       domain.GameStatus
	board        domain.Board
	current      *domain.Piece
	next         *domain.Piece
	held         *domain.Piece
	canHold      bool
	queue        []domain.PieceKind
	score        int
	level        int
	lines        int
	startedAt    time.Time
	finishedAt   time.Time
	lastDrop     time.Time
	dropInterval time.Duration
	pieceRng     *rand.Rand
	garbageRng   *rand.Rand

	observer SessionObserver
	now      func() time.Time

	// gravity loop bookkeeping
	generation int
	cancel     context.CancelFunc
	started    bool
	stopped    bool
}

// outcome of one serialized operation, reported to the observer after unlock
type outcome struct {
	changed bool
	cleared int
	over    bool
}

func NewSession(roomID, playerID, playerName string, isBot bool, seed int64, observer SessionObserver) *Session {
	s := &Session{
		RoomID:     roomID,
		PlayerID:   playerID,
		PlayerName: playerName,
		IsBot:      isBot,
		observer:   observer,
		now:        time.Now,
	}
	s.resetLocked(seed)
	return s
}

// resetLocked puts the session back to a fresh game seeded with seed.
func (s *Session) resetLocked(seed int64) {
	s.pieceRng = rand.New(rand.NewSource(seed))
	s.garbageRng = rand.New(rand.NewSource(seed ^ 0x5DEECE66D))
	s.status = domain.StatusPlaying
	s.board = domain.NewBoard()
	s.queue = nil
	current, queue := domain.Spawn(s.queue, s.pieceRng)
	next, queue := domain.Spawn(queue, s.pieceRng)
	s.current = &current
	s.next = &next
	s.queue = queue
	s.held = nil
	s.canHold = true
	s.score = 0
	s.level = 0
	s.lines = 0
	s.dropInterval = domain.DropInterval(0)
	s.startedAt = s.now()
	s.finishedAt = time.Time{}
	s.lastDrop = s.startedAt
}

// Start launches the gravity loop. It is a no-op on a running, stopped or finished session.
func (s *Session) Start() {
	s.mu.Lock()
	if s.cancel != nil || s.stopped || s.status != domain.StatusPlaying {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true
	s.generation++
	gen := s.generation
	s.lastDrop = s.now()
	wait := s.dropInterval
	s.mu.Unlock()

	go s.gravityLoop(ctx, gen, wait)
}

// Stop tears the session down for good. Safe to call more than once and
// against a gravity tick that is already in flight.
func (s *Session) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancel
	s.cancel = nil
	s.generation++
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Reset starts a fresh game on the same session, restarting gravity if it was running.
func (s *Session) Reset(seed int64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.cancel = nil
	s.generation++
	s.resetLocked(seed)
	restart := s.started
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if restart {
		s.Start()
	}
}

func (s *Session) gravityLoop(ctx context.Context, gen int, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		next, ok := s.gravityTick(gen)
		if !ok {
			return
		}
		timer.Reset(next)
	}
}

// gravityTick moves the piece down once it is due. A soft drop pushes lastDrop
// forward, in which case only the remaining wait is returned.
func (s *Session) gravityTick(gen int) (time.Duration, bool) {
	s.mu.Lock()
	if s.stopped || gen != s.generation || s.status != domain.StatusPlaying {
		s.mu.Unlock()
		return 0, false
	}

	now := s.now()
	if elapsed := now.Sub(s.lastDrop); elapsed < s.dropInterval {
		wait := s.dropInterval - elapsed
		s.mu.Unlock()
		return wait, true
	}

	out := s.stepLocked(now)
	wait := s.dropInterval
	s.mu.Unlock()

	s.report(out)
	return wait, !out.over
}

// Tick forces one gravity step regardless of the clock.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.stopped || s.status != domain.StatusPlaying || s.current == nil {
		s.mu.Unlock()
		return false
	}
	out := s.stepLocked(s.now())
	s.mu.Unlock()

	s.report(out)
	return out.changed
}

func (s *Session) stepLocked(now time.Time) outcome {
	moved := domain.Move(*s.current, 0, 1)
	if domain.IsValidMove(moved, s.board) {
		s.current = &moved
		s.lastDrop = now
		return outcome{changed: true}
	}
	return s.landLocked(now)
}

// ApplyAction runs one player input. It returns false when the input was rejected
// (illegal move, wrong state); rejections are not errors.
func (s *Session) ApplyAction(action domain.Action) bool {
	s.mu.Lock()
	if s.stopped || s.status != domain.StatusPlaying || s.current == nil {
		status := s.status
		s.mu.Unlock()
		log.Debug().Str("component", "session").Str("playerId", s.PlayerID).
			Str("status", string(status)).Str("action", string(action)).Msg("action dropped")
		return false
	}
	interval := s.dropInterval
	out := s.applyLocked(action, s.now())
	if s.dropInterval != interval && !out.over {
		s.rearmLocked()
	}
	s.mu.Unlock()

	s.report(out)
	return out.changed
}

// rearmLocked restarts a running gravity loop so a changed drop interval counts from now.
func (s *Session) rearmLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.generation++
	go s.gravityLoop(ctx, s.generation, s.dropInterval)
}

func (s *Session) applyLocked(action domain.Action, now time.Time) outcome {
	cur := *s.current

	switch action {
	case domain.ActionMoveLeft, domain.ActionMoveRight:
		dx := -1
		if action == domain.ActionMoveRight {
			dx = 1
		}
		moved := domain.Move(cur, dx, 0)
		if !domain.IsValidMove(moved, s.board) {
			return outcome{}
		}
		s.current = &moved
		return outcome{changed: true}

	case domain.ActionMoveDown:
		return s.stepLocked(now)

	case domain.ActionRotate:
		rotated := domain.Rotate(cur, s.board)
		if rotated.Rotation == cur.Rotation && rotated.X == cur.X && rotated.Y == cur.Y {
			return outcome{}
		}
		s.current = &rotated
		return outcome{changed: true}

	case domain.ActionHardDrop:
		for {
			moved := domain.Move(cur, 0, 1)
			if !domain.IsValidMove(moved, s.board) {
				break
			}
			cur = moved
		}
		s.current = &cur
		return s.landLocked(now)

	case domain.ActionHold:
		return s.holdLocked()
	}

	return outcome{}
}

func (s *Session) holdLocked() outcome {
	if !s.canHold {
		return outcome{}
	}

	var incoming domain.Piece
	if s.held == nil {
		incoming = *s.next
	} else {
		incoming = domain.NewPiece(s.held.Kind)
	}
	if !domain.IsValidMove(incoming, s.board) {
		return outcome{}
	}

	if s.held == nil {
		next, queue := domain.Spawn(s.queue, s.pieceRng)
		s.next = &next
		s.queue = queue
	}
	held := domain.NewPiece(s.current.Kind)
	s.held = &held
	s.current = &incoming
	s.canHold = false
	return outcome{changed: true}
}

// landLocked locks the current piece in and brings the next one into play.
func (s *Session) landLocked(now time.Time) outcome {
	board := domain.MergeIntoBoard(*s.current, s.board)
	board, cleared := domain.ClearLines(board)
	s.board = board

	s.lines += cleared
	s.score += domain.ScoreFor(cleared, s.level)
	if level := domain.LevelFor(s.lines); level != s.level {
		s.level = level
		s.dropInterval = domain.DropInterval(level)
	}

	current := *s.next
	next, queue := domain.Spawn(s.queue, s.pieceRng)
	s.current = &current
	s.next = &next
	s.queue = queue
	s.canHold = true

	if !domain.IsValidMove(current, s.board) {
		s.status = domain.StatusGameOver
		s.finishedAt = now
		return outcome{changed: true, cleared: cleared, over: true}
	}

	s.lastDrop = now
	return outcome{changed: true, cleared: cleared}
}

// ReceiveGarbage pushes lines of garbage in from the bottom. Whatever was in the top
// rows is lost; the active piece is lifted as far as needed to stay legal. Lifting by
// the full line count always fits since the stack moved up by the same amount.
func (s *Session) ReceiveGarbage(lines int) bool {
	if lines <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.status != domain.StatusPlaying {
		return false
	}

	s.board = domain.AddGarbageLines(s.board, lines, s.garbageRng)
	if s.current != nil && !domain.IsValidMove(*s.current, s.board) {
		for dy := 1; dy <= lines; dy++ {
			candidate := domain.Move(*s.current, 0, -dy)
			if domain.IsValidMove(candidate, s.board) {
				s.current = &candidate
				break
			}
		}
	}
	return true
}

func (s *Session) report(out outcome) {
	if out.over {
		s.mu.Lock()
		cancel := s.cancel
		s.cancel = nil
		s.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}

	if s.observer == nil {
		return
	}
	if out.cleared > 0 {
		s.observer.LinesCleared(s, out.cleared)
	}
	if out.changed {
		s.observer.SessionChanged(s)
	}
	if out.over {
		s.observer.SessionOver(s)
	}
}

// Snapshot copies the full state. The returned board is never shared with the session.
func (s *Session) Snapshot() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SessionState{
		PlayerID:       s.PlayerID,
		PlayerName:     s.PlayerName,
		Status:         s.status,
		Board:          domain.CopyBoard(s.board),
		Current:        copyPiece(s.current),
		Next:           copyPiece(s.next),
		Held:           copyPiece(s.held),
		CanHold:        s.canHold,
		Score:          s.score,
		Level:          s.level,
		Lines:          s.lines,
		DropIntervalMs: s.dropInterval.Milliseconds(),
		Opponents:      []domain.OpponentView{},
	}
}

func copyPiece(p *domain.Piece) *domain.Piece {
	if p == nil {
		return nil
	}
	c := *p
	c.Shape = p.Mask()
	return &c
}

func (s *Session) Summary() domain.PlayerSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.PlayerSummary{
		ID:     s.PlayerID,
		Name:   s.PlayerName,
		IsBot:  s.IsBot,
		Score:  s.score,
		Level:  s.level,
		Lines:  s.lines,
		Status: s.status,
	}
}

func (s *Session) Result() domain.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	finished := s.finishedAt
	if finished.IsZero() {
		finished = s.now()
	}
	return domain.GameResult{
		RoomID:          s.RoomID,
		PlayerID:        s.PlayerID,
		PlayerName:      s.PlayerName,
		IsBot:           s.IsBot,
		Score:           s.score,
		Level:           s.level,
		Lines:           s.lines,
		DurationSeconds: int(finished.Sub(s.startedAt).Seconds()),
		FinishedAt:      finished,
	}
}

func (s *Session) Status() domain.GameStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// IsOver lets bot drivers stop once their game has ended.
func (s *Session) IsOver() bool {
	return s.Status() == domain.StatusGameOver
}

func (s *Session) DropInterval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropInterval
}
