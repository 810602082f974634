package game

import (
	"boxborne/internal/entity"
	"boxborne/internal/tileset"
	"boxborne/internal/worldmap"
)

// LootBoxRespawnDelay is the default number of ticks a taken loot box waits
// before a fresh one replaces it.
const LootBoxRespawnDelay = 800

// lootModifierTicks is how long a modifier granted by a loot box lasts
// once the client activates it.
const lootModifierTicks = 400

// lootModifierKinds maps a loot-box variant to the modifier it grants on
// pickup. The "health" variant heals instead and is handled separately;
// an unmapped variant has no effect beyond the pickup itself.
var lootModifierKinds = map[tileset.LootboxVariant]ModifierKind{
	"speed":     ModifierSpeedBoost,
	"ice":       ModifierIceFriction,
	"grip":      ModifierWallGripLock,
	"heavy":     ModifierHeavyLegs,
	"feather":   ModifierFeatherFall,
	"overdrive": ModifierOverdrive,
}

// LootBox is a stationary, unit-square pickup entity tagged with a variant.
type LootBox struct {
	*entity.Body
	Variant  tileset.LootboxVariant
	Respawns bool
}

// NewLootBox constructs a loot box at (x, y) and immediately drops it to
// the nearest ground below.
func NewLootBox(x, y float64, variant tileset.LootboxVariant, respawns bool, m *worldmap.Map, physicsResolution int) *LootBox {
	body := entity.NewBody(x, y, 1, 1, 0)
	body.VY = -1
	lb := &LootBox{Body: body, Variant: variant, Respawns: respawns}
	lb.NextPosition(m, physicsResolution)
	lb.VX, lb.VY = 0, 0
	return lb
}

// LootBoxRespawn is a no-collision entity that counts down to zero and then
// spawns a fresh LootBox of the same variant at its own position.
type LootBoxRespawn struct {
	*entity.Body
	Variant        tileset.LootboxVariant
	TicksRemaining int
}

// NewLootBoxRespawn schedules a respawn timer at (x, y) that fires after
// delayTicks (LootBoxRespawnDelay when delayTicks is not positive).
func NewLootBoxRespawn(x, y float64, variant tileset.LootboxVariant, delayTicks int) *LootBoxRespawn {
	if delayTicks <= 0 {
		delayTicks = LootBoxRespawnDelay
	}
	body := entity.NewBody(x, y, 0, 0, 0)
	body.CollisionEnabled = false
	return &LootBoxRespawn{Body: body, Variant: variant, TicksRemaining: delayTicks}
}

// Tick decrements the timer. It returns true once per timer when the timer
// reaches zero, signalling the caller to spawn a fresh loot box and remove
// this timer.
func (r *LootBoxRespawn) Tick() bool {
	if r.Removed() {
		return false
	}
	r.TicksRemaining--
	if r.TicksRemaining <= 0 {
		r.Remove()
		return true
	}
	return false
}

// Remove marks a loot box removed. If it was spawned from the map and
// flagged to respawn, the caller is responsible for scheduling a
// LootBoxRespawn at its final position (see World.RemoveLootBox).
func (lb *LootBox) Remove() {
	lb.Body.Remove()
}
