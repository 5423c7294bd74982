package game

import (
	"context"
	"sync"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockNotifier struct {
	mock.Mock

	mu   sync.Mutex
	sent map[string][]domain.ServerMessage
}

func newMockNotifier() *mockNotifier {
	n := &mockNotifier{sent: make(map[string][]domain.ServerMessage)}
	n.On("SendMessage", mock.Anything, mock.Anything).Return(nil).Maybe()
	n.On("BroadcastMessage", mock.Anything).Return().Maybe()
	return n
}

func (n *mockNotifier) SendMessage(connID string, message domain.ServerMessage) error {
	n.mu.Lock()
	n.sent[connID] = append(n.sent[connID], message)
	n.mu.Unlock()
	return n.Called(connID, message).Error(0)
}

func (n *mockNotifier) BroadcastMessage(message domain.ServerMessage) {
	n.Called(message)
}

// messages returns what connID received of the given type, oldest first.
func (n *mockNotifier) messages(connID string, t domain.ServerMessageType) []domain.ServerMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []domain.ServerMessage
	for _, m := range n.sent[connID] {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (n *mockNotifier) lastState(connID string) (domain.SessionState, bool) {
	msgs := n.messages(connID, domain.MsgStateUpdate)
	if len(msgs) == 0 {
		return domain.SessionState{}, false
	}
	return msgs[len(msgs)-1].Payload.(domain.SessionState), true
}

func (n *mockNotifier) received(connID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent[connID])
}

type mockResultRepository struct {
	mock.Mock
}

func (m *mockResultRepository) SaveResult(ctx context.Context, result domain.GameResult) error {
	return m.Called(ctx, result).Error(0)
}

type mockLeaderboard struct {
	mock.Mock
}

func (m *mockLeaderboard) SubmitScore(ctx context.Context, playerName string, score int) error {
	return m.Called(ctx, playerName, score).Error(0)
}

// recordingObserver stands in for the room manager in session tests.
type recordingObserver struct {
	mu      sync.Mutex
	cleared []int
	changed int
	over    int
}

func (o *recordingObserver) LinesCleared(_ *Session, cleared int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cleared = append(o.cleared, cleared)
}

func (o *recordingObserver) SessionChanged(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.changed++
}

func (o *recordingObserver) SessionOver(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.over++
}

func (o *recordingObserver) counts() (changed, over int, cleared []int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.changed, o.over, append([]int(nil), o.cleared...)
}
