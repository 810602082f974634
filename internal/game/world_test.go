package game

import (
	"testing"

	"boxborne/internal/config"
	"boxborne/internal/worldmap"
)

func testConfig() config.AppConfig {
	return config.AppConfig{
		Game:      config.DefaultGame(),
		Anticheat: config.DefaultAnticheat(),
		Chat:      config.DefaultChat(),
	}
}

func worldWithMap(cfg config.AppConfig, m *worldmap.Map) *World {
	reg := worldmap.NewRegistry()
	reg.Register(m)
	reg.SetCurrent(m)
	return NewWorld(cfg, reg)
}

func snapshotFor(t *testing.T, w *World, username string) PlayerTickData {
	t.Helper()
	snap := w.Snapshot()
	for _, pd := range snap.Players {
		if pd.Username == username {
			return pd
		}
	}
	t.Fatalf("player %s missing from snapshot", username)
	return PlayerTickData{}
}

func TestMismatchedEndPositionOverridesTwoSnapshots(t *testing.T) {
	m := emptyMap(10, 10)
	m.Spawns = []worldmap.Point{{X: 2.5, Y: 2.5}}
	w := worldWithMap(testConfig(), m)

	p := NewPlayer(Account{Username: "drifter"}, "#e63946")
	if err := w.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	p.OverrideNextTick = 0 // clear the spawn teleport's override

	input := PlayerTickInput{Tick: 1}
	input.Position.EndX = -999 // nowhere near where the server lands
	input.Position.EndY = -999
	p.ClientTick(input, m, 64)

	if got := snapshotFor(t, w, "drifter"); !got.OverridePosition {
		t.Fatal("first snapshot after a mismatch must carry overridePosition")
	}
	if got := snapshotFor(t, w, "drifter"); !got.OverridePosition {
		t.Fatal("second snapshot must still carry overridePosition")
	}
	if got := snapshotFor(t, w, "drifter"); got.OverridePosition {
		t.Fatal("third snapshot must have cleared overridePosition")
	}
}

func TestMatchingEndPositionDoesNotOverride(t *testing.T) {
	m := emptyMap(10, 10)
	m.Spawns = []worldmap.Point{{X: 2.5, Y: 2.5}}
	w := worldWithMap(testConfig(), m)

	p := NewPlayer(Account{Username: "honest"}, "#e63946")
	if err := w.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	p.OverrideNextTick = 0

	// Re-simulate the tick the same way the server will, then report the
	// exact landing position like a correct client.
	shadow := NewPlayer(Account{Username: "shadow"}, "#e63946")
	shadow.SetPosition(p.X, p.Y)
	shadow.ClientTick(PlayerTickInput{Tick: 1}, m, 64)

	input := PlayerTickInput{Tick: 1}
	input.Position.EndX = shadow.X
	input.Position.EndY = shadow.Y
	p.ClientTick(input, m, 64)

	if p.OverrideNextTick != 0 {
		t.Fatalf("a bit-identical end position must not arm an override, counter=%d", p.OverrideNextTick)
	}
}

func TestWorldTickKicksPersistentlyFastClient(t *testing.T) {
	cfg := testConfig()
	m := emptyMap(10, 10)
	m.Spawns = []worldmap.Point{{X: 2.5, Y: 2.5}}
	w := worldWithMap(cfg, m)

	p := NewPlayer(Account{Username: "speeder"}, "#e63946")
	if err := w.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	p.ClientTickNum = 1000 // far beyond any permissible lead

	for i := 0; i < cfg.Anticheat.MaxFastTickInfractions-1; i++ {
		if kicks := w.Tick(); len(kicks) != 0 {
			t.Fatalf("kicked after only %d infractions", i+1)
		}
	}
	kicks := w.Tick()
	if len(kicks) != 1 {
		t.Fatalf("expected exactly one kick notice, got %d", len(kicks))
	}
	if kicks[0].Reason != ReasonTooFast {
		t.Errorf("expected reason %q, got %q", ReasonTooFast, kicks[0].Reason)
	}
}

func TestLootBoxRespawnCycle(t *testing.T) {
	cfg := testConfig()
	cfg.Game.LootboxRespawnTicks = 3
	m := emptyMap(10, 10)
	// A floor directly under the spawn point, so each construction's drop
	// settles the box onto it at the same height instead of dropping again.
	solidCell(m, 3, 2, 1)
	m.Loot = []worldmap.LootSpawn{{Point: worldmap.Point{X: 3.5, Y: 3.5}, Variant: "health"}}
	w := worldWithMap(cfg, m)

	w.SpawnLootBoxes()
	boxes := w.LootBoxes()
	if len(boxes) != 1 {
		t.Fatalf("expected 1 spawned loot box, got %d", len(boxes))
	}
	taken := boxes[0]
	x, y := taken.X, taken.Y

	w.RemoveLootBox(taken)
	if len(w.LootBoxes()) != 0 {
		t.Fatal("taken loot box should be gone immediately")
	}

	w.Tick()
	w.Tick()
	if len(w.LootBoxes()) != 0 {
		t.Fatal("loot box reappeared before its respawn delay elapsed")
	}

	w.Tick()
	boxes = w.LootBoxes()
	if len(boxes) != 1 {
		t.Fatalf("expected the loot box back after the delay, got %d", len(boxes))
	}
	if boxes[0].Variant != "health" {
		t.Errorf("respawned box lost its variant: %q", boxes[0].Variant)
	}
	if boxes[0].X != x || boxes[0].Y != y {
		t.Errorf("respawned box moved: (%v, %v) vs (%v, %v)", boxes[0].X, boxes[0].Y, x, y)
	}
}

func TestPlayerPickupTakesLootBoxAndSchedulesRespawn(t *testing.T) {
	cfg := testConfig()
	cfg.Game.LootboxRespawnTicks = 2
	m := emptyMap(10, 10)
	m.Spawns = []worldmap.Point{{X: 8.5, Y: 8.5}}
	m.Loot = []worldmap.LootSpawn{{Point: worldmap.Point{X: 3.5, Y: 3.5}, Variant: "health"}}
	w := worldWithMap(cfg, m)

	p := NewPlayer(Account{Username: "scavenger"}, "#e63946")
	if err := w.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	p.HP = 1

	w.SpawnLootBoxes()
	box := w.LootBoxes()[0]
	p.SetPosition(box.X, box.Y)

	w.Tick()
	if len(w.LootBoxes()) != 0 {
		t.Fatal("a box the player stands on should be taken on the next tick")
	}
	if p.HP != p.MaxHP {
		t.Errorf("health pickup should restore full HP, got %d", p.HP)
	}

	// Step off the spawn so the respawned box isn't instantly re-taken.
	p.SetPosition(8.5, 8.5)
	w.Tick()
	if len(w.LootBoxes()) != 0 {
		t.Fatal("box reappeared before its respawn delay elapsed")
	}
	w.Tick()
	if len(w.LootBoxes()) != 1 {
		t.Fatal("expected the box back after the respawn delay")
	}
}

func TestModifierPickupGrantsInactiveModifier(t *testing.T) {
	cfg := testConfig()
	m := emptyMap(10, 10)
	m.Spawns = []worldmap.Point{{X: 8.5, Y: 8.5}}
	m.Loot = []worldmap.LootSpawn{{Point: worldmap.Point{X: 3.5, Y: 3.5}, Variant: "speed"}}
	w := worldWithMap(cfg, m)

	p := NewPlayer(Account{Username: "scavenger"}, "#e63946")
	if err := w.AddPlayer(p); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	w.SpawnLootBoxes()
	p.SetPosition(w.LootBoxes()[0].X, w.LootBoxes()[0].Y)
	w.Tick()

	if len(p.Modifiers) != 1 {
		t.Fatalf("expected one granted modifier, got %d", len(p.Modifiers))
	}
	for _, mod := range p.Modifiers {
		if mod.Kind != ModifierSpeedBoost {
			t.Errorf("expected a speed boost, got kind %d", mod.Kind)
		}
		if mod.Activated {
			t.Error("a granted modifier stays inactive until the client names it")
		}
	}
}

func TestSpawnLootBoxesResetsExistingState(t *testing.T) {
	cfg := testConfig()
	m := emptyMap(10, 10)
	m.Loot = []worldmap.LootSpawn{
		{Point: worldmap.Point{X: 2.5, Y: 2.5}, Variant: "health"},
		{Point: worldmap.Point{X: 7.5, Y: 2.5}, Variant: "ammo"},
	}
	w := worldWithMap(cfg, m)

	w.SpawnLootBoxes()
	w.RemoveLootBox(w.LootBoxes()[0]) // leaves a pending respawn timer
	w.SpawnLootBoxes()

	if got := len(w.LootBoxes()); got != 2 {
		t.Fatalf("expected a full reset to 2 boxes, got %d", got)
	}
	// The stale timer must not resurrect a third box later.
	for i := 0; i < LootBoxRespawnDelay+1; i++ {
		w.Tick()
	}
	if got := len(w.LootBoxes()); got != 2 {
		t.Errorf("a cleared respawn timer fired anyway: %d boxes", got)
	}
}
