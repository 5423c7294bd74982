package game

import (
	"sync"
	"time"

	"github.com/iamasit07/blockfall/backend/internal/domain"
	"github.com/iamasit07/blockfall/backend/internal/service/bot"
)

// Member is one seat in a room.
type Member struct {
	ID       string
	Name     string
	IsBot    bool
	OwnerID  string // for bots, the human who added it
	JoinedAt time.Time
}

type Room struct {
	ID         string
	Name       string
	MaxPlayers int
	CreatedAt  time.Time

	mu           sync.RWMutex
	members      []Member
	sessions     map[string]*Session // playerID → Session
	bots         map[string]*bot.Driver
	active       bool
	lastActivity time.Time
}

func NewRoom(id, name string) *Room {
	now := time.Now()
	return &Room{
		ID:           id,
		Name:         name,
		MaxPlayers:   domain.MaxRoomPlayers,
		CreatedAt:    now,
		members:      make([]Member, 0, domain.MaxRoomPlayers),
		sessions:     make(map[string]*Session),
		bots:         make(map[string]*bot.Driver),
		lastActivity: now,
	}
}

func (r *Room) addMember(m Member, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) >= r.MaxPlayers {
		return domain.ErrRoomFull
	}
	r.members = append(r.members, m)
	r.sessions[m.ID] = s
	r.lastActivity = time.Now()
	return nil
}

// removeMember drops the seat and hands back its session and bot driver (if any) for teardown.
func (r *Room) removeMember(id string) (*Session, *bot.Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := -1
	for i, m := range r.members {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, false
	}

	r.members = append(r.members[:idx], r.members[idx+1:]...)
	session := r.sessions[id]
	driver := r.bots[id]
	delete(r.sessions, id)
	delete(r.bots, id)
	r.lastActivity = time.Now()
	return session, driver, true
}

func (r *Room) setBotDriver(id string, d *bot.Driver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bots[id] = d
}

func (r *Room) botDriver(id string) (*bot.Driver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.bots[id]
	return d, ok
}

// Members returns a copy safe to iterate without the lock.
func (r *Room) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) member(id string) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

func (r *Room) Session(playerID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[playerID]
	return s, ok
}

func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) humanCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.members {
		if !m.IsBot {
			count++
		}
	}
	return count
}

func (r *Room) IsActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

func (r *Room) setActive(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = active
	r.lastActivity = time.Now()
}

func (r *Room) touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

func (r *Room) idleSince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// seats pairs every member with its session, in join order.
type seat struct {
	Member
	session *Session
}

func (r *Room) seats() []seat {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]seat, 0, len(r.members))
	for _, m := range r.members {
		if s, ok := r.sessions[m.ID]; ok {
			out = append(out, seat{Member: m, session: s})
		}
	}
	return out
}

func (r *Room) Summary() domain.RoomSummary {
	seats := r.seats()
	players := make([]domain.PlayerSummary, 0, len(seats))
	for _, st := range seats {
		players = append(players, st.session.Summary())
	}
	return domain.RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(players),
		MaxPlayers:  r.MaxPlayers,
		Active:      r.IsActive(),
		CreatedAt:   r.CreatedAt,
		Players:     players,
	}
}

// allOver reports whether no session in the room is still being played.
func (r *Room) allOver() bool {
	for _, st := range r.seats() {
		if st.session.Status() != domain.StatusGameOver {
			return false
		}
	}
	return true
}

// botsOwnedBy lists the bots a human added. An empty owner matches every bot.
func (r *Room) botsOwnedBy(ownerID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for _, m := range r.members {
		if m.IsBot && (ownerID == "" || m.OwnerID == ownerID) {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
