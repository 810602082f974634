// Package game implements the per-room domain model: players, projectiles,
// loot boxes, and the world that ties them to a map and a global tick.
package game

import (
	"log"

	"boxborne/internal/config"
	"boxborne/internal/entity"
	"boxborne/internal/worldmap"
)

// KickNotice pairs a player with the reason World.Tick decided to kick them.
// The room runtime still owns socket disconnection; World only decides.
type KickNotice struct {
	Player *Player
	Reason string
}

// Snapshot is the per-tick broadcast unit: the global tick counter and
// every live player's wire data. The room runtime adds TPS before sending.
type Snapshot struct {
	Tick    int64
	Players []PlayerTickData
}

// World owns one room's entity state: its maps, players, projectiles, loot
// boxes, chunk indices, and global tick counter. Exactly one goroutine (the
// room's tick loop) ever touches a World.
type World struct {
	Maps *worldmap.Registry

	anticheat         config.AnticheatConfig
	physicsResolution int
	chunkSizeTiles    int
	lootRespawnTicks  int

	players       map[string]*Player
	playerByID    map[uint64]*Player
	projectiles   []*Projectile
	lootBoxes     []*LootBox
	respawnTimers []*LootBoxRespawn

	playerChunks     *entity.ChunkIndex
	projectileChunks *entity.ChunkIndex

	GlobalTick int64

	Events *EventLog
}

// NewWorld constructs an empty world for one room.
func NewWorld(cfg config.AppConfig, maps *worldmap.Registry) *World {
	w := &World{
		Maps:              maps,
		anticheat:         cfg.Anticheat,
		physicsResolution: cfg.Game.PhysicsResolution,
		chunkSizeTiles:    cfg.Game.ChunkSizeTiles,
		lootRespawnTicks:  cfg.Game.LootboxRespawnTicks,
		players:           make(map[string]*Player),
		playerByID:        make(map[uint64]*Player),
		playerChunks:      entity.NewChunkIndex(cfg.Game.ChunkSizeTiles),
		projectileChunks:  entity.NewChunkIndex(cfg.Game.ChunkSizeTiles),
		Events:            NewEventLog(),
	}
	maps.OnMapChange(func(*worldmap.Map) {
		w.playerChunks.Clear()
		w.projectileChunks.Clear()
	})
	return w
}

// AddPlayer registers a player in the world and spawns it.
func (w *World) AddPlayer(p *Player) error {
	m := w.Maps.Current()
	if err := p.ToRandomSpawnpoint(m); err != nil {
		return err
	}
	w.players[p.Account.Username] = p
	w.playerByID[p.ID] = p
	w.Events.EmitSimple(EventTypePlayerJoin, uint64(w.GlobalTick), p.Account.Username, PlayerJoinPayload{
		Username: p.Account.Username, SpawnX: p.X, SpawnY: p.Y, Color: p.Color,
	})
	return nil
}

// RemovePlayer deregisters a player from the world's chunk index and table.
// It does not touch the room's socket bookkeeping.
func (w *World) RemovePlayer(username string) {
	p, ok := w.players[username]
	if !ok {
		return
	}
	w.playerChunks.Remove(p.ID)
	delete(w.players, username)
	delete(w.playerByID, p.ID)
	w.Events.EmitSimple(EventTypePlayerLeave, uint64(w.GlobalTick), username, nil)
}

// Player returns the live player for username, if connected.
func (w *World) Player(username string) (*Player, bool) {
	p, ok := w.players[username]
	return p, ok
}

// Players returns every live player. The returned slice is freshly built
// and safe for the caller to range over while the world mutates later.
func (w *World) Players() []*Player {
	out := make([]*Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	return out
}

// AddProjectile fires a new projectile into the world.
func (w *World) AddProjectile(pr *Projectile) {
	w.projectiles = append(w.projectiles, pr)
}

// SpawnLootBoxes clears every existing loot box and respawn timer, then
// instantiates one fresh box per loot spawn point of the current map.
func (w *World) SpawnLootBoxes() {
	w.lootBoxes = w.lootBoxes[:0]
	w.respawnTimers = w.respawnTimers[:0]

	m := w.Maps.Current()
	if m == nil {
		return
	}
	for _, spawn := range m.Loot {
		lb := NewLootBox(spawn.Point.X, spawn.Point.Y, spawn.Variant, true, m, w.physicsResolution)
		w.lootBoxes = append(w.lootBoxes, lb)
	}
}

// RemoveLootBox removes a taken loot box and, if it was marked to respawn,
// schedules a timer at its final position.
func (w *World) RemoveLootBox(lb *LootBox) {
	lb.Remove()
	if lb.Respawns {
		w.respawnTimers = append(w.respawnTimers, NewLootBoxRespawn(lb.X, lb.Y, lb.Variant, w.lootRespawnTicks))
	}
	kept := w.lootBoxes[:0]
	for _, existing := range w.lootBoxes {
		if existing != lb {
			kept = append(kept, existing)
		}
	}
	w.lootBoxes = kept
}

// LootBoxes returns the live loot boxes.
func (w *World) LootBoxes() []*LootBox { return w.lootBoxes }

// Tick advances the world by one global tick: background anticheat
// bookkeeping for every player, projectile movement and collision,
// respawn-timer countdown, and chunk-index maintenance. It returns any
// players that crossed a kick threshold this tick.
func (w *World) Tick() []KickNotice {
	w.GlobalTick++
	m := w.Maps.Current()

	var kicks []KickNotice
	for _, p := range w.players {
		if reason := p.BackgroundTick(w.GlobalTick, w.anticheat); reason != "" {
			kicks = append(kicks, KickNotice{Player: p, Reason: reason})
		}
		hw, hh := p.HalfExtents()
		w.playerChunks.Update(p.ID, p.X, p.Y, hw, hh)
	}

	liveProjectiles := w.projectiles[:0]
	for _, pr := range w.projectiles {
		if pr.Removed() {
			continue
		}
		players := w.nearbyPlayers(pr)
		others := w.nearbyProjectiles(pr)
		pr.Tick(m, w.physicsResolution, players, others)
		if !pr.Removed() {
			liveProjectiles = append(liveProjectiles, pr)
			hw, hh := pr.HalfExtents()
			w.projectileChunks.Update(pr.ID, pr.X, pr.Y, hw, hh)
		} else {
			w.projectileChunks.Remove(pr.ID)
		}
	}
	w.projectiles = liveProjectiles

	for _, p := range w.players {
		if p.HP > 0 {
			continue
		}
		if m != nil {
			if err := p.ToRandomSpawnpoint(m); err != nil {
				log.Printf("❌ respawn failed for %s: %v", p.Account.Username, err)
			}
		}
		p.HP = p.MaxHP
		w.Events.EmitSimple(EventTypeRespawn, uint64(w.GlobalTick), p.Account.Username, RespawnPayload{
			Username: p.Account.Username, SpawnX: p.X, SpawnY: p.Y,
		})
	}

	for _, timer := range w.respawnTimers {
		if timer.Tick() {
			if m != nil {
				w.lootBoxes = append(w.lootBoxes, NewLootBox(timer.X, timer.Y, timer.Variant, true, m, w.physicsResolution))
			}
		}
	}
	live := w.respawnTimers[:0]
	for _, timer := range w.respawnTimers {
		if !timer.Removed() {
			live = append(live, timer)
		}
	}
	w.respawnTimers = live

	// Pickups last, after movement has settled: the first player found
	// overlapping a box takes it. RemoveLootBox mutates the box list, so
	// the sweep walks a copy.
	if len(w.lootBoxes) > 0 {
		boxes := append([]*LootBox(nil), w.lootBoxes...)
		for _, lb := range boxes {
			if lb.Removed() {
				continue
			}
			for _, p := range w.players {
				if boxesIntersect(p.Body, lb.Body) {
					w.RemoveLootBox(lb)
					w.applyLootBox(p, lb)
					break
				}
			}
		}
	}

	for _, kick := range kicks {
		log.Printf("⚠️  anticheat kick: %s reason=%s", kick.Player.Account.Username, kick.Reason)
	}

	return kicks
}

// applyLootBox grants a taken box's effect: "health" restores the taker to
// full HP, any variant in lootModifierKinds grants that modifier for the
// client to activate, and an unknown variant is just consumed.
func (w *World) applyLootBox(p *Player, lb *LootBox) {
	if lb.Variant == "health" {
		p.HP = p.MaxHP
	} else if kind, ok := lootModifierKinds[lb.Variant]; ok {
		p.AddModifier(kind, lootModifierTicks)
	}
	w.Events.EmitSimple(EventTypePickup, uint64(w.GlobalTick), p.Account.Username, PickupPayload{
		Username: p.Account.Username, Variant: string(lb.Variant), X: lb.X, Y: lb.Y,
	})
}

// nearbyPlayers returns the candidate players from the projectile's chunk
// overlap set in the player chunk index (getInSameChunks).
func (w *World) nearbyPlayers(pr *Projectile) []*Player {
	hw, hh := pr.HalfExtents()
	ids := w.playerChunks.InSameChunks(pr.ID, pr.X, pr.Y, hw, hh)
	out := make([]*Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := w.playerByID[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// nearbyProjectiles returns the candidate projectiles from pr's chunk overlap
// set in the projectile chunk index, for projectile-vs-projectile collision.
func (w *World) nearbyProjectiles(pr *Projectile) []*Projectile {
	hw, hh := pr.HalfExtents()
	ids := w.projectileChunks.InSameChunks(pr.ID, pr.X, pr.Y, hw, hh)
	if len(ids) == 0 {
		return nil
	}
	want := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]*Projectile, 0, len(ids))
	for _, other := range w.projectiles {
		if want[other.ID] {
			out = append(out, other)
		}
	}
	return out
}

// Snapshot produces the outbound tick snapshot for every live player. It
// reads each player's override-next-tick counter before aging it (via
// AgeOverride), so a counter started at 2 yields two consecutive
// overridePosition=true snapshots before going false.
func (w *World) Snapshot() Snapshot {
	players := make([]PlayerTickData, 0, len(w.players))
	for _, p := range w.players {
		players = append(players, p.ToWireData())
		if p.OverrideNextTick > 0 {
			w.Events.EmitSimple(EventTypeOverride, uint64(w.GlobalTick), p.Account.Username, OverridePayload{Username: p.Account.Username, X: p.X, Y: p.Y})
		}
		p.AgeOverride()
	}
	return Snapshot{Tick: w.GlobalTick, Players: players}
}
