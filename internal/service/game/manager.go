package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/iamasit07/blockfall/backend/internal/service/bot"
	"github.com/iamasit07/blockfall/backend/pkg/uid"
	"github.com/rs/zerolog/log"
)

// Notifier is the outbound side of the transport.
type Notifier interface {
	SendMessage(connID string, message domain.ServerMessage) error
	BroadcastMessage(message domain.ServerMessage)
}

type ResultRepository interface {
	SaveResult(ctx context.Context, result domain.GameResult) error
}

type LeaderboardCache interface {
	SubmitScore(ctx context.Context, playerName string, score int) error
}

// RoomManager owns every room, the connection → room index and, through the rooms,
// every session. It is created once at startup and handed to whoever needs it.
type RoomManager struct {
	rooms      map[string]*Room  // roomID → Room
	connToRoom map[string]string // connID → roomID (humans only)
	mu         sync.RWMutex

	conn        Notifier
	results     ResultRepository // optional
	leaderboard LeaderboardCache // optional

	seedMu sync.Mutex
	seeds  *rand.Rand
}

type Option func(*RoomManager)

func WithResultRepository(repo ResultRepository) Option {
	return func(m *RoomManager) { m.results = repo }
}

func WithLeaderboard(cache LeaderboardCache) Option {
	return func(m *RoomManager) { m.leaderboard = cache }
}

// WithSeed makes every seed the manager hands out deterministic.
func WithSeed(seed int64) Option {
	return func(m *RoomManager) { m.seeds = rand.New(rand.NewSource(seed)) }
}

func NewRoomManager(conn Notifier, opts ...Option) *RoomManager {
	m := &RoomManager{
		rooms:      make(map[string]*Room),
		connToRoom: make(map[string]string),
		conn:       conn,
		seeds:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RoomManager) nextSeed() int64 {
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	return m.seeds.Int63()
}

func (m *RoomManager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

// RoomOf resolves the room a connection is seated in.
func (m *RoomManager) RoomOf(connID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, ok := m.connToRoom[connID]
	if !ok {
		return nil, false
	}
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *RoomManager) SessionFor(connID string) (*Session, bool) {
	room, ok := m.RoomOf(connID)
	if !ok {
		return nil, false
	}
	return room.Session(connID)
}

func (m *RoomManager) CreateRoom(name string) string {
	m.mu.Lock()
	roomID := uid.GenerateRoomID()
	for _, taken := m.rooms[roomID]; taken; _, taken = m.rooms[roomID] {
		roomID = uid.GenerateRoomID()
	}
	m.rooms[roomID] = NewRoom(roomID, strings.TrimSpace(name))
	m.mu.Unlock()

	log.Info().Str("component", "room").Str("roomId", roomID).Str("name", name).Msg("room created")
	m.broadcastRoomsList()
	return roomID
}

// JoinRoom seats a connection in a room with a fresh session. A connection already
// seated elsewhere leaves that room first, but only once the target can take it.
func (m *RoomManager) JoinRoom(connID, roomID, playerName string) error {
	m.mu.RLock()
	target, ok := m.rooms[roomID]
	current, seated := m.connToRoom[connID]
	m.mu.RUnlock()

	switch {
	case !ok:
		return domain.ErrRoomNotFound
	case seated && current == roomID:
		return domain.ErrAlreadyInRoom
	case target.PlayerCount() >= target.MaxPlayers:
		return domain.ErrRoomFull
	}

	if seated {
		m.LeaveRoom(connID)
	}

	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotFound
	}

	session := NewSession(roomID, connID, strings.TrimSpace(playerName), false, m.nextSeed(), m)
	member := Member{ID: connID, Name: session.PlayerName, JoinedAt: time.Now()}
	if err := room.addMember(member, session); err != nil {
		m.mu.Unlock()
		return err
	}
	m.connToRoom[connID] = roomID
	m.mu.Unlock()

	session.Start()

	log.Info().Str("component", "room").Str("roomId", roomID).Str("connId", connID).
		Str("player", playerName).Int("players", room.PlayerCount()).Msg("player joined")

	m.notifyRoomUpdate(room)
	m.broadcastRoomsList()
	m.BroadcastState(roomID)
	return nil
}

// LeaveRoom removes the connection's seat, stops its session and every bot it added.
// The room is deleted once no human is left in it.
func (m *RoomManager) LeaveRoom(connID string) error {
	m.mu.Lock()
	roomID, ok := m.connToRoom[connID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrNotInRoom
	}
	delete(m.connToRoom, connID)

	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotFound
	}

	var sessions []*Session
	var drivers []*bot.Driver
	collect := func(id string) {
		s, d, removed := room.removeMember(id)
		if !removed {
			return
		}
		if d != nil {
			drivers = append(drivers, d)
		}
		if s != nil {
			sessions = append(sessions, s)
		}
	}

	collect(connID)
	for _, botID := range room.botsOwnedBy(connID) {
		collect(botID)
	}
	if room.humanCount() == 0 {
		for _, botID := range room.botsOwnedBy("") {
			collect(botID)
		}
	}

	deleted := room.PlayerCount() == 0
	if deleted {
		delete(m.rooms, roomID)
	}
	m.mu.Unlock()

	for _, d := range drivers {
		d.Stop()
	}
	for _, s := range sessions {
		s.Stop()
	}

	log.Info().Str("component", "room").Str("roomId", roomID).Str("connId", connID).
		Bool("roomDeleted", deleted).Msg("player left")

	if !deleted {
		m.notifyRoomUpdate(room)
		m.BroadcastState(roomID)
	}
	m.broadcastRoomsList()
	return nil
}

// SetRoomActive flips the room's active flag and tells its members.
func (m *RoomManager) SetRoomActive(roomID string, active bool) error {
	room, ok := m.GetRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	room.setActive(active)
	m.notifyRoomUpdate(room)
	m.broadcastRoomsList()
	return nil
}

// StartGame is the multiplayer start: it needs at least two players in the room.
func (m *RoomManager) StartGame(roomID string) error {
	room, ok := m.GetRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.PlayerCount() < 2 {
		return domain.ErrNotEnoughPlayers
	}
	return m.beginRound(room)
}

// beginRound restarts every session in the room from one shared seed so all players
// draw the same piece sequence, restarts the bots and activates the room.
func (m *RoomManager) beginRound(room *Room) error {
	seed := m.nextSeed()
	seats := room.seats()
	for _, st := range seats {
		st.session.Reset(seed)
		st.session.Start()
	}
	for _, st := range seats {
		if !st.IsBot {
			continue
		}
		if old, ok := room.botDriver(st.ID); ok {
			old.Stop()
			driver := bot.NewDriver(st.ID, old.Difficulty, st.session, m.nextSeed())
			room.setBotDriver(st.ID, driver)
			driver.Start()
		}
	}

	if err := m.SetRoomActive(room.ID, true); err != nil {
		return err
	}

	log.Info().Str("component", "room").Str("roomId", room.ID).Int("players", len(seats)).Msg("game starting")

	starting := domain.NewGameStarting(len(seats))
	for _, st := range seats {
		if !st.IsBot {
			m.send(st.ID, starting)
		}
	}
	m.BroadcastState(room.ID)
	return nil
}

// AddBotToRoom seats a bot with its own session and decision timer.
func (m *RoomManager) AddBotToRoom(roomID, ownerID string, difficulty domain.Difficulty, name string) (string, error) {
	if !difficulty.Valid() {
		return "", domain.ErrInvalidDifficulty
	}
	if strings.TrimSpace(name) == "" {
		name = domain.GetBotName(difficulty)
	}

	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return "", domain.ErrRoomNotFound
	}

	botID := uid.GenerateBotID()
	session := NewSession(roomID, botID, name, true, m.nextSeed(), m)
	member := Member{ID: botID, Name: name, IsBot: true, OwnerID: ownerID, JoinedAt: time.Now()}
	if err := room.addMember(member, session); err != nil {
		m.mu.Unlock()
		return "", err
	}
	driver := bot.NewDriver(botID, difficulty, session, m.nextSeed())
	room.setBotDriver(botID, driver)
	m.mu.Unlock()

	session.Start()
	driver.Start()

	log.Info().Str("component", "bot").Str("roomId", roomID).Str("botId", botID).
		Str("difficulty", string(difficulty)).Msg("bot added")

	m.notifyRoomUpdate(room)
	m.broadcastRoomsList()
	m.BroadcastState(roomID)
	return botID, nil
}

func (m *RoomManager) RemoveBot(roomID, botID string) error {
	m.mu.Lock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrRoomNotFound
	}
	member, ok := room.member(botID)
	if !ok || !member.IsBot {
		m.mu.Unlock()
		return domain.ErrBotNotFound
	}
	session, driver, _ := room.removeMember(botID)
	m.mu.Unlock()

	if driver != nil {
		driver.Stop()
	}
	if session != nil {
		session.Stop()
	}

	log.Info().Str("component", "bot").Str("roomId", roomID).Str("botId", botID).Msg("bot removed")

	m.notifyRoomUpdate(room)
	m.broadcastRoomsList()
	m.BroadcastState(roomID)
	return nil
}

// StartSinglePlayerWithBot creates a private room for the player and one bot and starts
// it straight away; the two-player gate of StartGame does not apply.
func (m *RoomManager) StartSinglePlayerWithBot(connID string, difficulty domain.Difficulty, playerName string) (string, string, error) {
	if !difficulty.Valid() {
		return "", "", domain.ErrInvalidDifficulty
	}

	roomID := m.CreateRoom(fmt.Sprintf("%s vs %s", strings.TrimSpace(playerName), domain.GetBotName(difficulty)))
	if err := m.JoinRoom(connID, roomID, playerName); err != nil {
		return "", "", err
	}
	botID, err := m.AddBotToRoom(roomID, connID, difficulty, "")
	if err != nil {
		return "", "", err
	}

	room, ok := m.GetRoom(roomID)
	if !ok {
		return "", "", domain.ErrRoomNotFound
	}
	if err := m.beginRound(room); err != nil {
		return "", "", err
	}
	return roomID, botID, nil
}

// HandleAction routes a player's input to their session. Inputs from a connection
// with no session are dropped.
func (m *RoomManager) HandleAction(connID string, action domain.Action) error {
	session, ok := m.SessionFor(connID)
	if !ok {
		log.Debug().Str("component", "session").Str("connId", connID).
			Str("action", string(action)).Msg("action without a session dropped")
		return domain.ErrSessionNotFound
	}
	session.ApplyAction(action)
	return nil
}

func (m *RoomManager) ListRooms() []domain.RoomSummary {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		summaries = append(summaries, r.Summary())
	}
	return summaries
}

// BroadcastState sends every human in the room their own full state plus the
// simplified view of everybody else.
func (m *RoomManager) BroadcastState(roomID string) {
	room, ok := m.GetRoom(roomID)
	if !ok {
		return
	}

	seats := room.seats()
	states := make([]domain.SessionState, len(seats))
	for i, st := range seats {
		states[i] = st.session.Snapshot()
	}

	for i, st := range seats {
		if st.IsBot {
			continue
		}
		state := states[i]
		state.Opponents = make([]domain.OpponentView, 0, len(seats)-1)
		for j, other := range seats {
			if j == i {
				continue
			}
			state.Opponents = append(state.Opponents, ProjectOpponent(states[j], other.IsBot))
		}
		m.send(st.ID, domain.NewStateUpdate(state))
	}
}

// broadcastOpponent is the lighter update used when only a bot's state moved.
func (m *RoomManager) broadcastOpponent(room *Room, s *Session) {
	update := domain.NewOpponentUpdate(ProjectOpponent(s.Snapshot(), s.IsBot))
	for _, member := range room.Members() {
		if member.IsBot || member.ID == s.PlayerID {
			continue
		}
		m.send(member.ID, update)
	}
}

// SendGarbageToOpponents injects the attack for a clear of linesCleared rows into
// every other playing session of the room and alerts the humans hit.
func (m *RoomManager) SendGarbageToOpponents(roomID, fromPlayerID string, linesCleared int) int {
	lines := domain.AttackFor(linesCleared)
	if lines == 0 {
		return 0
	}
	room, ok := m.GetRoom(roomID)
	if !ok {
		return 0
	}

	fromName := fromPlayerID
	if member, ok := room.member(fromPlayerID); ok {
		fromName = member.Name
	}

	hit := 0
	for _, st := range room.seats() {
		if st.ID == fromPlayerID {
			continue
		}
		if !st.session.ReceiveGarbage(lines) {
			continue
		}
		hit++
		if !st.IsBot {
			m.send(st.ID, domain.NewReceiveGarbage(lines, fromName))
		}
	}

	if hit > 0 {
		log.Debug().Str("component", "room").Str("roomId", roomID).Str("from", fromPlayerID).
			Int("lines", lines).Int("targets", hit).Msg("garbage sent")
		m.BroadcastState(roomID)
	}
	return hit
}

// ---- SessionObserver ----

func (m *RoomManager) LinesCleared(s *Session, cleared int) {
	if cleared > 1 {
		m.SendGarbageToOpponents(s.RoomID, s.PlayerID, cleared)
	}
}

func (m *RoomManager) SessionChanged(s *Session) {
	room, ok := m.GetRoom(s.RoomID)
	if !ok {
		return
	}
	room.touch()
	if s.IsBot {
		m.broadcastOpponent(room, s)
		return
	}
	m.BroadcastState(s.RoomID)
}

func (m *RoomManager) SessionOver(s *Session) {
	room, ok := m.GetRoom(s.RoomID)
	if !ok {
		return
	}
	if s.IsBot {
		if driver, ok := room.botDriver(s.PlayerID); ok {
			driver.Stop()
		}
	}

	result := s.Result()
	log.Info().Str("component", "session").Str("roomId", s.RoomID).Str("playerId", s.PlayerID).
		Int("score", result.Score).Int("lines", result.Lines).Int("level", result.Level).Msg("game over")

	m.recordResultAsync(result)
	m.BroadcastState(s.RoomID)
	m.notifyRoomUpdate(room)
}

// recordResultAsync saves in the background so game over broadcasts are not held up.
func (m *RoomManager) recordResultAsync(result domain.GameResult) {
	if m.results == nil && (m.leaderboard == nil || result.IsBot) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if m.results != nil {
			if err := m.results.SaveResult(ctx, result); err != nil {
				log.Error().Err(err).Str("component", "postgres").Str("roomId", result.RoomID).Msg("failed to save result")
			}
		}
		if m.leaderboard != nil && !result.IsBot {
			if err := m.leaderboard.SubmitScore(ctx, result.PlayerName, result.Score); err != nil {
				log.Error().Err(err).Str("component", "redis").Str("player", result.PlayerName).Msg("failed to submit score")
			}
		}
	}()
}

// send delivers to one connection. A connection that has already gone away only
// misses the message.
func (m *RoomManager) send(connID string, message domain.ServerMessage) {
	if err := m.conn.SendMessage(connID, message); err != nil {
		log.Debug().Err(err).Str("component", "room").Str("connId", connID).
			Str("type", string(message.Type)).Msg("message not delivered")
	}
}

func (m *RoomManager) notifyRoomUpdate(room *Room) {
	update := domain.NewRoomUpdate(room.Summary())
	for _, member := range room.Members() {
		if !member.IsBot {
			m.send(member.ID, update)
		}
	}
}

func (m *RoomManager) broadcastRoomsList() {
	m.conn.BroadcastMessage(domain.NewRoomsListUpdate(m.ListRooms()))
}

// CleanupStaleRooms deletes rooms where every game is over and nothing happened for idle.
// Seated connections are released.
func (m *RoomManager) CleanupStaleRooms(idle time.Duration) int {
	now := time.Now()

	m.mu.Lock()
	var stale []*Room
	for id, room := range m.rooms {
		if now.Sub(room.idleSince()) < idle || !room.allOver() {
			continue
		}
		stale = append(stale, room)
		delete(m.rooms, id)
		for _, member := range room.Members() {
			if !member.IsBot {
				delete(m.connToRoom, member.ID)
			}
		}
	}
	m.mu.Unlock()

	for _, room := range stale {
		m.teardownRoom(room)
	}
	if len(stale) > 0 {
		log.Info().Str("component", "room").Int("removed", len(stale)).Msg("stale rooms cleaned up")
		m.broadcastRoomsList()
	}
	return len(stale)
}

// Shutdown stops every timer of every room.
func (m *RoomManager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for id, room := range m.rooms {
		rooms = append(rooms, room)
		delete(m.rooms, id)
	}
	m.connToRoom = make(map[string]string)
	m.mu.Unlock()

	for _, room := range rooms {
		m.teardownRoom(room)
	}
}

func (m *RoomManager) teardownRoom(room *Room) {
	for _, member := range room.Members() {
		session, driver, _ := room.removeMember(member.ID)
		if driver != nil {
			driver.Stop()
		}
		if session != nil {
			session.Stop()
		}
	}
}

// RoomIDOf is RoomOf for callers that only need the id.
func (m *RoomManager) RoomIDOf(connID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	roomID, ok := m.connToRoom[connID]
	return roomID, ok
}
