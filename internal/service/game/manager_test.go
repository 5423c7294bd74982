package game

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, opts ...Option) (*RoomManager, *mockNotifier) {
	t.Helper()
	n := newMockNotifier()
	m := NewRoomManager(n, append([]Option{WithSeed(1)}, opts...)...)
	t.Cleanup(m.Shutdown)
	return m, n
}

// roomWith creates a room and seats the given connections in it.
func roomWith(t *testing.T, m *RoomManager, connIDs ...string) string {
	t.Helper()
	roomID := m.CreateRoom("test room")
	for _, id := range connIDs {
		require.NoError(t, m.JoinRoom(id, roomID, "player-"+id))
	}
	return roomID
}

func sessionOf(t *testing.T, m *RoomManager, connID string) *Session {
	t.Helper()
	s, ok := m.SessionFor(connID)
	require.True(t, ok)
	return s
}

func TestCreateAndJoinRoom(t *testing.T) {
	m, n := newTestManager(t)
	roomID := roomWith(t, m, "c1")

	rooms := m.ListRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, roomID, rooms[0].ID)
	assert.Equal(t, "test room", rooms[0].Name)
	assert.Equal(t, 1, rooms[0].PlayerCount)
	assert.Equal(t, domain.MaxRoomPlayers, rooms[0].MaxPlayers)
	assert.False(t, rooms[0].Active)

	got, ok := m.RoomIDOf("c1")
	assert.True(t, ok)
	assert.Equal(t, roomID, got)

	assert.NotEmpty(t, n.messages("c1", domain.MsgRoomUpdate))
	state, ok := n.lastState("c1")
	require.True(t, ok)
	assert.Equal(t, "player-c1", state.PlayerName)
	assert.Empty(t, state.Opponents)
	n.AssertCalled(t, "BroadcastMessage", mock.MatchedBy(func(msg domain.ServerMessage) bool {
		return msg.Type == domain.MsgRoomsListUpdate
	}))
}

func TestJoinUnknownRoom(t *testing.T) {
	m, _ := newTestManager(t)
	assert.ErrorIs(t, m.JoinRoom("c1", "nope", "ana"), domain.ErrRoomNotFound)
	_, ok := m.RoomIDOf("c1")
	assert.False(t, ok)
}

func TestRoomCapacity(t *testing.T) {
	m, _ := newTestManager(t)
	roomID := roomWith(t, m, "c1")
	for i := 0; i < 3; i++ {
		_, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyEasy, "")
		require.NoError(t, err)
	}

	assert.ErrorIs(t, m.JoinRoom("c2", roomID, "ben"), domain.ErrRoomFull)
	_, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyEasy, "")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	room, _ := m.GetRoom(roomID)
	assert.Equal(t, domain.MaxRoomPlayers, room.PlayerCount())
}

func TestJoinLeavesPreviousRoom(t *testing.T) {
	m, _ := newTestManager(t)
	first := roomWith(t, m, "c1")
	second := m.CreateRoom("second")

	require.NoError(t, m.JoinRoom("c1", second, "ana"))

	_, ok := m.GetRoom(first)
	assert.False(t, ok, "empty room is deleted")
	got, _ := m.RoomIDOf("c1")
	assert.Equal(t, second, got)
}

func TestFailedJoinKeepsCurrentSeat(t *testing.T) {
	m, _ := newTestManager(t)
	home := roomWith(t, m, "c1")
	full := roomWith(t, m, "c2")
	for i := 0; i < 3; i++ {
		_, err := m.AddBotToRoom(full, "c2", domain.DifficultyEasy, "")
		require.NoError(t, err)
	}
	before := sessionOf(t, m, "c1")

	assert.ErrorIs(t, m.JoinRoom("c1", "nope", "ana"), domain.ErrRoomNotFound)
	assert.ErrorIs(t, m.JoinRoom("c1", full, "ana"), domain.ErrRoomFull)
	assert.ErrorIs(t, m.JoinRoom("c1", home, "ana"), domain.ErrAlreadyInRoom)

	got, ok := m.RoomIDOf("c1")
	require.True(t, ok)
	assert.Equal(t, home, got)
	_, ok = m.GetRoom(home)
	assert.True(t, ok, "room survives")
	assert.Same(t, before, sessionOf(t, m, "c1"))
	assert.Equal(t, domain.StatusPlaying, before.Status())
	assert.True(t, before.ApplyAction(domain.ActionMoveDown))
}

func TestLeaveRoom(t *testing.T) {
	m, n := newTestManager(t)
	assert.ErrorIs(t, m.LeaveRoom("c1"), domain.ErrNotInRoom)

	roomID := roomWith(t, m, "c1", "c2")
	s1 := sessionOf(t, m, "c1")

	require.NoError(t, m.LeaveRoom("c1"))

	room, ok := m.GetRoom(roomID)
	require.True(t, ok)
	assert.Equal(t, 1, room.PlayerCount())
	assert.False(t, s1.ApplyAction(domain.ActionMoveLeft), "session stopped")

	state, _ := n.lastState("c2")
	assert.Empty(t, state.Opponents)

	require.NoError(t, m.LeaveRoom("c2"))
	_, ok = m.GetRoom(roomID)
	assert.False(t, ok)
	assert.Empty(t, m.ListRooms())
}

func TestLeaveRemovesOwnedBots(t *testing.T) {
	m, _ := newTestManager(t)
	roomID := roomWith(t, m, "c1", "c2")
	_, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyEasy, "")
	require.NoError(t, err)
	_, err = m.AddBotToRoom(roomID, "c2", domain.DifficultyEasy, "")
	require.NoError(t, err)

	require.NoError(t, m.LeaveRoom("c1"))
	room, _ := m.GetRoom(roomID)
	assert.Equal(t, 2, room.PlayerCount(), "c2 and c2's bot remain")

	require.NoError(t, m.LeaveRoom("c2"))
	_, ok := m.GetRoom(roomID)
	assert.False(t, ok, "bots never keep a room alive")
}

func TestStartGame(t *testing.T) {
	m, n := newTestManager(t)
	assert.ErrorIs(t, m.StartGame("nope"), domain.ErrRoomNotFound)

	roomID := roomWith(t, m, "c1")
	assert.ErrorIs(t, m.StartGame(roomID), domain.ErrNotEnoughPlayers)

	require.NoError(t, m.JoinRoom("c2", roomID, "ben"))
	require.NoError(t, m.StartGame(roomID))

	room, _ := m.GetRoom(roomID)
	assert.True(t, room.IsActive())
	for _, id := range []string{"c1", "c2"} {
		starting := n.messages(id, domain.MsgGameStarting)
		require.Len(t, starting, 1)
		assert.Equal(t, domain.GameStartingPayload{PlayerCount: 2}, starting[0].Payload)
	}

	a, b := sessionOf(t, m, "c1").Snapshot(), sessionOf(t, m, "c2").Snapshot()
	assert.Equal(t, a.Current.Kind, b.Current.Kind, "shared seed")
	assert.Equal(t, a.Next.Kind, b.Next.Kind)
}

func TestHandleAction(t *testing.T) {
	m, _ := newTestManager(t)
	assert.ErrorIs(t, m.HandleAction("ghost", domain.ActionMoveLeft), domain.ErrSessionNotFound)

	roomWith(t, m, "c1")
	s := sessionOf(t, m, "c1")
	x := s.Snapshot().Current.X

	require.NoError(t, m.HandleAction("c1", domain.ActionMoveLeft))
	assert.Equal(t, x-1, s.Snapshot().Current.X)
}

func TestBotsManagement(t *testing.T) {
	m, _ := newTestManager(t)
	roomID := roomWith(t, m, "c1")

	_, err := m.AddBotToRoom(roomID, "c1", "godlike", "")
	assert.ErrorIs(t, err, domain.ErrInvalidDifficulty)
	_, err = m.AddBotToRoom("nope", "c1", domain.DifficultyEasy, "")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	botID, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyMedium, "")
	require.NoError(t, err)

	room, _ := m.GetRoom(roomID)
	summary := room.Summary()
	require.Len(t, summary.Players, 2)
	assert.Equal(t, "Bob", summary.Players[1].Name)
	assert.True(t, summary.Players[1].IsBot)

	assert.ErrorIs(t, m.RemoveBot(roomID, "c1"), domain.ErrBotNotFound, "humans are not bots")
	assert.ErrorIs(t, m.RemoveBot(roomID, "bot-unknown"), domain.ErrBotNotFound)
	require.NoError(t, m.RemoveBot(roomID, botID))
	assert.Equal(t, 1, room.PlayerCount())
}

func TestBroadcastStateProjectsOpponents(t *testing.T) {
	m, n := newTestManager(t)
	roomID := roomWith(t, m, "c1", "c2")
	botID, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyEasy, "Robo")
	require.NoError(t, err)

	m.BroadcastState(roomID)

	state, ok := n.lastState("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", state.PlayerID)
	require.Len(t, state.Opponents, 2)
	assert.Equal(t, "c2", state.Opponents[0].PlayerID)
	assert.False(t, state.Opponents[0].IsBot)
	assert.Equal(t, botID, state.Opponents[1].PlayerID)
	assert.True(t, state.Opponents[1].IsBot)
	for _, op := range state.Opponents {
		assert.Len(t, op.Board, domain.Height)
		assert.NotNil(t, op.Piece)
	}

	assert.Zero(t, n.received(botID), "bots have no connection")
}

func TestSendGarbageToOpponents(t *testing.T) {
	m, n := newTestManager(t)
	roomID := roomWith(t, m, "c1", "c2", "c3")

	assert.Zero(t, m.SendGarbageToOpponents(roomID, "c1", 1), "singles send nothing")

	// a finished opponent is skipped
	s3 := sessionOf(t, m, "c3")
	s3.mu.Lock()
	s3.status = domain.StatusGameOver
	s3.mu.Unlock()

	hit := m.SendGarbageToOpponents(roomID, "c1", 4)
	assert.Equal(t, 1, hit)

	alerts := n.messages("c2", domain.MsgReceiveGarbage)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.ReceiveGarbagePayload{LineCount: 4, FromPlayer: "player-c1"}, alerts[0].Payload)
	assert.Empty(t, n.messages("c1", domain.MsgReceiveGarbage))
	assert.Empty(t, n.messages("c3", domain.MsgReceiveGarbage))

	board := sessionOf(t, m, "c2").Snapshot().Board
	for y := domain.Height - 4; y < domain.Height; y++ {
		holes := 0
		for _, v := range board[y] {
			if v == domain.Empty {
				holes++
			}
		}
		assert.Equal(t, 1, holes, "row %d", y)
	}
	assert.Equal(t, domain.Empty, sessionOf(t, m, "c1").Snapshot().Board[domain.Height-1][0])
}

func TestLineClearRoundTrip(t *testing.T) {
	m, n := newTestManager(t)
	roomID := roomWith(t, m, "c1", "c2")
	require.NoError(t, m.StartGame(roomID))
	a := sessionOf(t, m, "c1")

	// single clear: scored, no attack
	arrange(a, boardWithRows([]int{19}, 0), verticalI(0, 0))
	require.NoError(t, m.HandleAction("c1", domain.ActionHardDrop))

	state := a.Snapshot()
	assert.Equal(t, 1, state.Lines)
	assert.Equal(t, 100*(state.Level+1), state.Score)
	assert.Empty(t, n.messages("c2", domain.MsgReceiveGarbage))

	// four lines: the opponent receives four garbage rows
	arrange(a, boardWithRows([]int{16, 17, 18, 19}, 0), verticalI(0, 0))
	require.NoError(t, m.HandleAction("c1", domain.ActionHardDrop))

	alerts := n.messages("c2", domain.MsgReceiveGarbage)
	require.Len(t, alerts, 1)
	assert.Equal(t, 4, alerts[0].Payload.(domain.ReceiveGarbagePayload).LineCount)

	garbageRows := 0
	for _, row := range sessionOf(t, m, "c2").Snapshot().Board {
		for _, v := range row {
			if v == domain.Garbage {
				garbageRows++
				break
			}
		}
	}
	assert.Equal(t, 4, garbageRows)

	opponent, ok := n.lastState("c2")
	require.True(t, ok)
	require.Len(t, opponent.Opponents, 1)
	assert.Equal(t, 5, opponent.Opponents[0].Lines)
}

func TestStartSinglePlayerWithBot(t *testing.T) {
	m, n := newTestManager(t)

	_, _, err := m.StartSinglePlayerWithBot("c1", "godlike", "ana")
	assert.ErrorIs(t, err, domain.ErrInvalidDifficulty)

	roomID, botID, err := m.StartSinglePlayerWithBot("c1", domain.DifficultyHard, "ana")
	require.NoError(t, err)
	assert.NotEmpty(t, botID)

	room, ok := m.GetRoom(roomID)
	require.True(t, ok)
	assert.True(t, room.IsActive())
	assert.Equal(t, 2, room.PlayerCount())
	assert.Equal(t, "ana vs Charles", room.Name)
	assert.Len(t, n.messages("c1", domain.MsgGameStarting), 1)
}

func TestGameOverRecordsResult(t *testing.T) {
	results := new(mockResultRepository)
	leaderboard := new(mockLeaderboard)
	saved := make(chan domain.GameResult, 1)
	submitted := make(chan int, 1)
	results.On("SaveResult", mock.Anything, mock.Anything).Return(nil).
		Run(func(args mock.Arguments) { saved <- args.Get(1).(domain.GameResult) })
	leaderboard.On("SubmitScore", mock.Anything, "player-c1", mock.Anything).Return(errors.New("redis down")).
		Run(func(args mock.Arguments) { submitted <- args.Int(2) })

	m, _ := newTestManager(t, WithResultRepository(results), WithLeaderboard(leaderboard))
	roomID := roomWith(t, m, "c1")
	s := sessionOf(t, m, "c1")

	arrange(s, topOutBoard(), domain.Move(domain.NewPiece(domain.KindO), -4, 0))
	require.NoError(t, m.HandleAction("c1", domain.ActionHardDrop))
	require.True(t, s.IsOver())

	select {
	case r := <-saved:
		assert.Equal(t, roomID, r.RoomID)
		assert.Equal(t, "player-c1", r.PlayerName)
		assert.False(t, r.IsBot)
	case <-time.After(2 * time.Second):
		t.Fatal("result was not saved")
	}
	select {
	case score := <-submitted:
		assert.Zero(t, score)
	case <-time.After(2 * time.Second):
		t.Fatal("score was not submitted")
	}
}

func TestCleanupStaleRooms(t *testing.T) {
	m, _ := newTestManager(t)
	finished := roomWith(t, m, "c1")
	playing := roomWith(t, m, "c2")

	s := sessionOf(t, m, "c1")
	arrange(s, topOutBoard(), domain.Move(domain.NewPiece(domain.KindO), -4, 0))
	s.ApplyAction(domain.ActionHardDrop)
	require.True(t, s.IsOver())

	assert.Zero(t, m.CleanupStaleRooms(time.Hour), "not idle long enough")
	assert.Equal(t, 1, m.CleanupStaleRooms(0))

	_, ok := m.GetRoom(finished)
	assert.False(t, ok)
	_, ok = m.RoomIDOf("c1")
	assert.False(t, ok)
	_, ok = m.GetRoom(playing)
	assert.True(t, ok)
}

func TestShutdown(t *testing.T) {
	m, _ := newTestManager(t)
	roomID := roomWith(t, m, "c1")
	_, err := m.AddBotToRoom(roomID, "c1", domain.DifficultyHard, "")
	require.NoError(t, err)
	s := sessionOf(t, m, "c1")

	m.Shutdown()

	assert.Empty(t, m.ListRooms())
	assert.False(t, s.ApplyAction(domain.ActionMoveLeft))
	m.Shutdown()
}

// lockedBuffer is written by gravity goroutines while the test reads it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestUndeliveredMessagesAreLogged(t *testing.T) {
	out := &lockedBuffer{}
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(out)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	n := &mockNotifier{sent: make(map[string][]domain.ServerMessage)}
	n.On("SendMessage", "gone", mock.Anything).Return(errors.New("connection not found"))
	n.On("SendMessage", mock.Anything, mock.Anything).Return(nil).Maybe()
	n.On("BroadcastMessage", mock.Anything).Return().Maybe()
	m := NewRoomManager(n, WithSeed(1))
	t.Cleanup(m.Shutdown)

	roomWith(t, m, "gone", "c2")

	assert.Contains(t, out.String(), `"connId":"gone"`)
	assert.Contains(t, out.String(), "message not delivered")
	state, ok := n.lastState("c2")
	require.True(t, ok, "other members are still served")
	assert.Equal(t, "player-c2", state.PlayerName)
	assert.Len(t, state.Opponents, 1)
}
