package room

import (
	"errors"
	"sync"
	"testing"
	"time"

	"boxborne/internal/config"
	"boxborne/internal/store"
	"boxborne/internal/worldmap"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Game:      config.DefaultGame(),
		Anticheat: config.DefaultAnticheat(),
		Chat:      config.DefaultChat(),
	}
}

func testMap(spawns int) *worldmap.Map {
	m := &worldmap.Map{ID: "arena", Width: 16, Height: 16, Pool: "default-pool"}
	m.Grid = make([][][]worldmap.Collision, m.Height)
	for y := range m.Grid {
		m.Grid[y] = make([][]worldmap.Collision, m.Width)
	}
	for i := 0; i < spawns; i++ {
		m.Spawns = append(m.Spawns, worldmap.Point{X: float64(i) + 1.5, Y: 2.5})
	}
	return m
}

func testManager(spawns int) *Manager {
	reg := worldmap.NewRegistry()
	reg.Register(testMap(spawns))
	return NewManager(testConfig(), reg, store.NewMemory(), nil)
}

func TestAuthCodeIsSingleUse(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{})
	defer r.Shutdown()

	code, err := m.RequestJoin(r.ID, "alice")
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	username, _, err := r.Join(code)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if username != "alice" {
		t.Fatalf("expected alice bound, got %q", username)
	}

	if _, _, err := r.Join(code); !errors.Is(err, ErrAuthCodeUnknown) {
		t.Fatalf("expected %v on code reuse, got %v", ErrAuthCodeUnknown, err)
	}
}

func TestJoinUnknownCodeRejected(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{})
	defer r.Shutdown()

	if _, _, err := r.Join("no-such-code"); !errors.Is(err, ErrAuthCodeUnknown) {
		t.Fatalf("expected %v, got %v", ErrAuthCodeUnknown, err)
	}
}

func TestConcurrentJoinSameUsernameOneWinner(t *testing.T) {
	m := testManager(8)
	r1 := m.CreateGame("host1", Options{})
	r2 := m.CreateGame("host2", Options{})
	defer r1.Shutdown()
	defer r2.Shutdown()

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, id := range []string{r1.ID, r2.ID} {
		wg.Add(1)
		go func(slot int, roomID string) {
			defer wg.Done()
			_, results[slot] = m.RequestJoin(roomID, "bob")
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
		} else if !errors.Is(err, ErrAlreadyExists) {
			t.Errorf("loser got %v, want %v", err, ErrAlreadyExists)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning join, got %d", wins)
	}
}

func TestDuplicateJoinSameRoomRejectedOnceBound(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{})
	defer r.Shutdown()

	code, err := m.RequestJoin(r.ID, "carol")
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if _, _, err := r.Join(code); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if _, err := m.RequestJoin(r.ID, "carol"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected %v for a username already bound, got %v", ErrAlreadyExists, err)
	}
}

func TestRoomFullRejectsJoin(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{MaxPlayers: 1})
	defer r.Shutdown()

	code, err := m.RequestJoin(r.ID, "dave")
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if _, _, err := r.Join(code); err != nil {
		t.Fatalf("Join: %v", err)
	}

	if _, err := m.RequestJoin(r.ID, "erin"); !errors.Is(err, ErrRoomFull) {
		t.Fatalf("expected %v, got %v", ErrRoomFull, err)
	}
}

func TestNotEnoughPlayersEndsStartedRoom(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{})

	for _, name := range []string{"frank", "grace"} {
		code, err := m.RequestJoin(r.ID, name)
		if err != nil {
			t.Fatalf("RequestJoin(%s): %v", name, err)
		}
		if _, _, err := r.Join(code); err != nil {
			t.Fatalf("Join(%s): %v", name, err)
		}
	}

	r.HandleReadyStart(true)
	r.Leave("frank")

	select {
	case <-r.Closed():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not shut down after dropping below two players")
	}
}

func TestManagerDropsClosedRooms(t *testing.T) {
	m := testManager(8)
	r := m.CreateGame("host", Options{})

	if _, ok := m.GetGame(r.ID); !ok {
		t.Fatal("freshly created room missing from manager")
	}

	r.Shutdown()
	<-r.Closed()

	// onClose runs on the worker goroutine just after Closed is
	// signalled; give the registry delete a beat.
	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := m.GetGame(r.ID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("closed room still listed by the manager")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetGamesFiltersJoinable(t *testing.T) {
	m := testManager(8)
	open := m.CreateGame("host1", Options{})
	started := m.CreateGame("host2", Options{})
	defer open.Shutdown()
	defer started.Shutdown()

	started.HandleReadyStart(true)

	joinable := m.GetGames(true)
	for _, info := range joinable {
		if info.ID == started.ID {
			t.Fatal("a started room must not be listed as joinable")
		}
	}
	found := false
	for _, info := range joinable {
		if info.ID == open.ID {
			found = true
		}
	}
	if !found {
		t.Fatal("an open room should be listed as joinable")
	}
}

func TestRoomIDsAreUniqueAndWellFormed(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := newRoomID(func(candidate string) bool { return taken[candidate] })
		if len(id) != 6 {
			t.Fatalf("room id %q is not 6 characters", id)
		}
		for _, c := range id {
			if !((c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
				t.Fatalf("room id %q contains %q outside A-Z0-9", id, c)
			}
		}
		if taken[id] {
			t.Fatalf("room id %q issued twice", id)
		}
		taken[id] = true
	}
}

func TestLogLinkHandshakeAndShutdown(t *testing.T) {
	l := newLogLink("TEST01")
	if !l.ready {
		t.Fatal("logging link never completed its handshake")
	}
	l.emit(LogInfo, "hello")

	done := make(chan struct{})
	go func() {
		l.shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * handshakeTimeout + time.Second):
		t.Fatal("loglink shutdown hung past its timeout")
	}

	// A closed link drops frames instead of queueing against a dead sink.
	l.emit(LogInfo, "after close")
}
