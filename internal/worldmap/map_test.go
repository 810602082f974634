package worldmap

import (
	"encoding/json"
	"testing"

	"boxborne/internal/tileset"
)

func testTileset(t *testing.T) *tileset.Tileset {
	t.Helper()
	friction, _ := json.Marshal(0.8)
	spawnPlayer, _ := json.Marshal("player")
	spawnLoot, _ := json.Marshal("lootbox=ammo")

	ts, err := tileset.Load(tileset.Data{
		TileWidth:  32,
		TileHeight: 32,
		Tiles: []tileset.TileData{
			{
				ID: 0,
				ObjectGroup: &tileset.ObjectGroup{
					Objects: []tileset.Rect{
						{X: 0, Y: 0, Width: 32, Height: 32, Properties: []tileset.Property{{Name: "friction", Value: friction}}},
					},
				},
			},
			{ID: 1, Properties: []tileset.Property{{Name: "spawnpoint", Value: spawnPlayer}}},
			{ID: 2, Properties: []tileset.Property{{Name: "spawnpoint", Value: spawnLoot}}},
		},
	})
	if err != nil {
		t.Fatalf("tileset.Load: %v", err)
	}
	return ts
}

// a 3x3 map: solid border, one player spawn and one loot spawn in the
// middle row, on a dedicated "spawns" layer.
func testMapData() Data {
	collision := []int{
		1, 1, 1,
		1, 0, 1,
		1, 1, 1,
	}
	spawns := []int{
		0, 0, 0,
		0, 2, 3,
		0, 0, 0,
	}
	return Data{
		Width:  3,
		Height: 3,
		Layers: []Layer{
			{Name: "collision", Width: 3, Height: 3, Data: collision},
			{Name: "spawns", Width: 3, Height: 3, Data: spawns},
		},
	}
}

func TestLoadPopulatesSpawnsAndLoot(t *testing.T) {
	ts := testTileset(t)
	m, err := Load("test-map", testMapData(), ts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(m.Spawns) != 1 {
		t.Fatalf("expected 1 player spawn, got %d", len(m.Spawns))
	}
	if len(m.Loot) != 1 {
		t.Fatalf("expected 1 loot spawn, got %d", len(m.Loot))
	}
	if m.Loot[0].Variant != "ammo" {
		t.Errorf("expected loot variant 'ammo', got %q", m.Loot[0].Variant)
	}
}

func TestLoadSpawnsLayerCarriesNoCollision(t *testing.T) {
	ts := testTileset(t)
	m, err := Load("test-map", testMapData(), ts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The centre cell only ever has a spawn tag, never a collision tile,
	// so its grid cell must stay empty regardless of the spawns layer.
	if len(m.Grid[1][1]) != 0 {
		t.Errorf("expected centre cell to carry no collisions, got %d", len(m.Grid[1][1]))
	}
}

func TestLoadBorderIsSolid(t *testing.T) {
	ts := testTileset(t)
	m, err := Load("test-map", testMapData(), ts)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(m.Grid[0][0]) == 0 {
		t.Error("expected corner cell to carry a collision")
	}
}

func TestRegistryRoomViewIsolatesCurrentMap(t *testing.T) {
	ts := testTileset(t)
	m1, _ := Load("m1", testMapData(), ts)
	m2, _ := Load("m2", testMapData(), ts)

	reg := NewRegistry()
	reg.Register(m1)
	reg.Register(m2)

	roomA := reg.RoomView()
	roomB := reg.RoomView()

	roomA.SetCurrent(m1)
	roomB.SetCurrent(m2)

	if roomA.Current() != m1 {
		t.Error("room A's current map leaked from room B's SetCurrent")
	}
	if roomB.Current() != m2 {
		t.Error("room B's current map was not set independently of room A")
	}
	if reg.Current() != nil {
		t.Error("the shared registry's own current slot should be untouched by room views")
	}
}

func TestRegistryRoomViewSharesCatalog(t *testing.T) {
	ts := testTileset(t)
	m1, _ := Load("m1", testMapData(), ts)

	reg := NewRegistry()
	reg.Register(m1)

	view := reg.RoomView()
	got, ok := view.Get("m1")
	if !ok || got != m1 {
		t.Error("RoomView should see maps already registered on the parent registry")
	}
}
