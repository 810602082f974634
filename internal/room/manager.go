package room

import (
	"sort"
	"sync"
	"time"

	"boxborne/internal/config"
	"boxborne/internal/game"
	"boxborne/internal/worldmap"
)

// Manager tracks every live room on this hub and enforces the cross-room
// "one player one room" invariant via a shared table of active usernames
// held alongside the room table.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Room
	users map[string]string // username -> room id, across the whole hub

	cfg      config.AppConfig
	maps     *worldmap.Registry
	accounts game.AccountStore
	metrics  Metrics
}

// NewManager constructs an empty manager bound to one hub process.
func NewManager(cfg config.AppConfig, maps *worldmap.Registry, accounts game.AccountStore, metrics Metrics) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		users:    make(map[string]string),
		cfg:      cfg,
		maps:     maps,
		accounts: accounts,
		metrics:  metrics,
	}
}

// CreateGame instantiates a room with merged-with-defaults options and
// registers a close listener that deletes it from the map.
func (m *Manager) CreateGame(host string, opts Options) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := newRoomID(func(candidate string) bool {
		_, taken := m.rooms[candidate]
		return taken
	})
	r := New(id, host, opts, m.cfg, m.maps, m.accounts, m.metrics, m.onRoomClose)
	m.rooms[id] = r
	if m.metrics != nil {
		m.metrics.SetRoomsActive(len(m.rooms))
	}
	return r
}

func (m *Manager) onRoomClose(r *Room, errored bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, r.ID)
	for username, roomID := range m.users {
		if roomID == r.ID {
			delete(m.users, username)
		}
	}
	if m.metrics != nil {
		m.metrics.SetRoomsActive(len(m.rooms))
	}
}

// GetGame returns the room with the given id, if live.
func (m *Manager) GetGame(id string) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// GetGames lists rooms, optionally filtered to those still joinable
// (not yet started and below their player cap).
func (m *Manager) GetGames(onlyJoinable bool) []Info {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]Info, 0, len(rooms))
	for _, r := range rooms {
		info := r.Info()
		if onlyJoinable && (info.Started || info.Players >= info.MaxPlayers) {
			continue
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EndGame requests shutdown of the named room.
func (m *Manager) EndGame(id string) bool {
	m.mu.Lock()
	r, ok := m.rooms[id]
	m.mu.Unlock()
	if !ok {
		return false
	}
	r.Shutdown()
	return true
}

// RequestJoin enforces the one-player-one-room invariant before delegating
// to the target room's own join protocol. The username is reserved in the
// hub-wide table before the room is consulted, so two simultaneous join
// requests for the same name cannot both pass the check.
func (m *Manager) RequestJoin(roomID, username string) (code string, err error) {
	m.mu.Lock()
	r, ok := m.rooms[roomID]
	if !ok {
		m.mu.Unlock()
		return "", ErrRoomNotFound
	}
	existing, already := m.users[username]
	if already && existing != roomID {
		m.mu.Unlock()
		return "", ErrAlreadyExists
	}
	reserved := !already
	m.users[username] = roomID
	m.mu.Unlock()

	code, err = r.RequestJoin(username)
	if err != nil {
		if reserved {
			m.mu.Lock()
			if m.users[username] == roomID {
				delete(m.users, username)
			}
			m.mu.Unlock()
		}
		return "", err
	}

	// If the code is never redeemed the room forgets the pending join on
	// expiry; drop the hub-wide reservation then too, or the username
	// would be locked out of every room until a hub restart.
	ttl := time.Duration(m.cfg.Game.ConnectTimeoutSec+1) * time.Second
	time.AfterFunc(ttl, func() {
		if r.HasPlayer(username) {
			return
		}
		m.mu.Lock()
		if m.users[username] == roomID {
			delete(m.users, username)
		}
		m.mu.Unlock()
	})
	return code, nil
}

// Shutdown requests every live room to shut down. It does not wait for
// their worker goroutines to finish draining; callers that need a bounded
// drain should give the process a grace period before exiting.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	for _, r := range rooms {
		r.Shutdown()
	}
}

// ReleaseUsername drops the hub-wide username reservation once a player's
// socket disconnects or an auth code is never redeemed.
func (m *Manager) ReleaseUsername(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, username)
}
