package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"boxborne/internal/config"
	"boxborne/internal/room"
	"boxborne/internal/store"
	"boxborne/internal/worldmap"
)

func testManager() *room.Manager {
	cfg := config.AppConfig{
		Game:      config.DefaultGame(),
		Anticheat: config.DefaultAnticheat(),
		Chat:      config.DefaultChat(),
	}
	m := &worldmap.Map{ID: "arena", Width: 16, Height: 16}
	m.Grid = make([][][]worldmap.Collision, m.Height)
	for y := range m.Grid {
		m.Grid[y] = make([][]worldmap.Collision, m.Width)
	}
	for i := 0; i < 8; i++ {
		m.Spawns = append(m.Spawns, worldmap.Point{X: float64(i) + 1.5, Y: 2.5})
	}
	reg := worldmap.NewRegistry()
	reg.Register(m)
	return room.NewManager(cfg, reg, store.NewMemory(), nil)
}

func testServer(t *testing.T) (*httptest.Server, *room.Manager) {
	t.Helper()
	manager := testManager()
	router := NewRouter(RouterConfig{Manager: manager, DisableLogging: true})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		manager.Shutdown()
	})
	return srv, manager
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestCreateGameAndList(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/games/createGame", map[string]interface{}{
		"host": "alice", "public": true,
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("createGame status %d", resp.StatusCode)
	}
	var info room.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode createGame: %v", err)
	}
	if len(info.ID) != 6 {
		t.Fatalf("room id %q is not 6 characters", info.ID)
	}
	if info.MaxPlayers != 8 {
		t.Errorf("expected defaulted maxPlayers 8, got %d", info.MaxPlayers)
	}

	listResp, err := http.Get(srv.URL + "/games/gameList?onlyJoinable=true")
	if err != nil {
		t.Fatalf("gameList: %v", err)
	}
	defer listResp.Body.Close()
	var list []room.Info
	if err := json.NewDecoder(listResp.Body).Decode(&list); err != nil {
		t.Fatalf("decode gameList: %v", err)
	}
	if len(list) != 1 || list[0].ID != info.ID {
		t.Fatalf("expected the new room listed, got %+v", list)
	}
}

func TestCreateGameRequiresHost(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/games/createGame", map[string]interface{}{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing host, got %d", resp.StatusCode)
	}
}

func TestJoinGameIssuesCodeOncePerUsername(t *testing.T) {
	srv, manager := testServer(t)
	r := manager.CreateGame("alice", room.Options{})

	resp := postJSON(t, srv.URL+"/games/joinGame/"+r.ID, map[string]string{"username": "bob"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("joinGame status %d", resp.StatusCode)
	}
	var join struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&join); err != nil {
		t.Fatalf("decode joinGame: %v", err)
	}
	if join.Code == "" {
		t.Fatal("joinGame returned an empty auth code")
	}

	// Redeem the code so bob is bound, then a second join must conflict.
	if _, _, err := r.Join(join.Code); err != nil {
		t.Fatalf("Join: %v", err)
	}
	dup := postJSON(t, srv.URL+"/games/joinGame/"+r.ID, map[string]string{"username": "bob"})
	defer dup.Body.Close()
	if dup.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate join, got %d", dup.StatusCode)
	}
}

func TestJoinGameUnknownRoom(t *testing.T) {
	srv, _ := testServer(t)

	resp := postJSON(t, srv.URL+"/games/joinGame/ZZZZZZ", map[string]string{"username": "bob"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown room, got %d", resp.StatusCode)
	}
}
