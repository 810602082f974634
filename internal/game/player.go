package game

import (
	"fmt"
	"math"
	"math/rand"

	"boxborne/internal/config"
	"boxborne/internal/entity"
	"boxborne/internal/worldmap"
)

// Palette is the fixed set of colors assigned to joining players, unique
// within a room while it holds no more players than the palette has colors.
var Palette = []string{
	"#e63946", "#2a9d8f", "#457b9d", "#f4a261",
	"#8338ec", "#ffbe0b", "#06d6a0", "#ef476f",
}

// PlayerTickInput is the wire packet a client sends once per client tick.
type PlayerTickInput struct {
	Tick      int64 `json:"tick"`
	Modifiers []int `json:"modifiers"`
	Inputs    struct {
		Left  bool `json:"left"`
		Right bool `json:"right"`
		Up    bool `json:"up"`
		Down  bool `json:"down"`
	} `json:"inputs"`
	Position struct {
		EndX float64 `json:"endx"`
		EndY float64 `json:"endy"`
	} `json:"position"`
}

// ModifierWireEntry is one element of PlayerTickData.Modifiers.
type ModifierWireEntry struct {
	ID       int          `json:"id"`
	Modifier ModifierKind `json:"modifier"`
	Length   int          `json:"length"`
}

// PlayerTickData is the wire record the server emits per player per tick.
type PlayerTickData struct {
	ID               uint64              `json:"id"`
	X                float64             `json:"x"`
	Y                float64             `json:"y"`
	Angle            float64             `json:"angle"`
	VX               float64             `json:"vx"`
	VY               float64             `json:"vy"`
	VA               float64             `json:"va"`
	Username         string              `json:"username"`
	Color            string              `json:"color"`
	Properties       Properties          `json:"properties"`
	Modifiers        []ModifierWireEntry `json:"modifiers"`
	OverridePosition bool                `json:"overridePosition"`
}

const (
	ReasonTooFast      = "client_too_fast"
	ReasonTooSlow      = "client_too_slow"
	ReasonBadModifiers = "bad_modifiers"
)

// Player is an entity specialisation carrying the full movement ruleset,
// modifier effects, lockstep anticheat counters, and a server-authoritative
// override flag.
type Player struct {
	*entity.Body

	Account   Account
	Connected bool
	Color     string

	ClientTickNum int64

	FastTickInfractions int
	SlowTickInfractions int
	OverrideNextTick    int

	Base      Properties
	Effective Properties

	Modifiers   map[int]*Modifier
	modifierSeq int

	HP    int
	MaxHP int
	Kills int
}

const defaultPlayerMaxHP = 100

// TakeDamage applies projectile damage. The default onEntityHit hook uses
// this; a template's own OnEntityHit may bypass it entirely.
func (p *Player) TakeDamage(amount int) {
	p.HP -= amount
	if p.HP < 0 {
		p.HP = 0
	}
}

// NewPlayer constructs a player from a loaded account, placed at the origin
// until spawned.
func NewPlayer(account Account, color string) *Player {
	base := BaseProperties()
	return &Player{
		Body:      entity.NewBody(0, 0, 0.75, 0.75, 0),
		Account:   account,
		Connected: true,
		Color:     color,
		Base:      base,
		Effective: base,
		Modifiers: make(map[int]*Modifier),
		HP:        defaultPlayerMaxHP,
		MaxHP:     defaultPlayerMaxHP,
	}
}

// AddModifier registers a new inactive modifier instance and returns its id.
// A client later activates it by including the id in an input packet.
func (p *Player) AddModifier(kind ModifierKind, ticks int) int {
	p.modifierSeq++
	id := p.modifierSeq
	p.Modifiers[id] = &Modifier{Kind: kind, Remaining: ticks}
	return id
}

func (p *Player) refreshProperties() {
	p.Effective = RefreshProperties(p.Base, p.Modifiers)
}

// BackgroundTick runs for every player on every global tick: it ages
// tick-drift infractions. The override-next-tick counter is aged
// separately, by AgeOverride, after the tick's snapshot has been read —
// see AgeOverride's doc comment. It returns a non-empty kick reason when
// an infraction threshold has just been crossed.
func (p *Player) BackgroundTick(globalTick int64, cfg config.AnticheatConfig) string {
	lead := p.ClientTickNum - globalTick
	lag := globalTick - p.ClientTickNum

	reason := ""
	if lead > cfg.MaxTickLead {
		p.FastTickInfractions++
		if p.FastTickInfractions >= cfg.MaxFastTickInfractions {
			reason = ReasonTooFast
		}
	}
	if lag > cfg.MaxTickLag {
		p.SlowTickInfractions++
		if p.SlowTickInfractions >= cfg.MaxSlowTickInfractions {
			reason = ReasonTooSlow
		}
	}

	if cfg.InfractionDecayRate > 0 && globalTick%cfg.InfractionDecayRate == 0 {
		if p.FastTickInfractions > 0 {
			p.FastTickInfractions--
		}
		if p.SlowTickInfractions > 0 {
			p.SlowTickInfractions--
		}
	}

	return reason
}

// AgeOverride decrements the override-next-tick counter. It must run after
// this tick's snapshot has read the counter (see World.Snapshot), not
// before: a counter started at 2 by ClientTick's mismatch detection must
// produce exactly two consecutive overridePosition=true snapshots, and
// decrementing before the snapshot read would only flag one.
func (p *Player) AgeOverride() {
	if p.OverrideNextTick > 0 {
		p.OverrideNextTick--
	}
}

// ClientTick runs the client-driven physics tick for one received input
// packet: it ages and activates modifiers, applies the movement ruleset,
// advances position via nextPosition, and compares the result against the
// packet's self-reported end position. It returns a non-empty kick reason
// when the packet is rejected outright (bad modifier ids).
func (p *Player) ClientTick(input PlayerTickInput, m *worldmap.Map, physicsResolution int) string {
	p.ClientTickNum = input.Tick

	for id, mod := range p.Modifiers {
		if mod.Activated {
			mod.Remaining--
			if mod.Remaining <= 0 {
				delete(p.Modifiers, id)
			}
		}
	}
	for _, id := range input.Modifiers {
		mod, ok := p.Modifiers[id]
		if !ok {
			return ReasonBadModifiers
		}
		mod.Activated = true
	}
	p.refreshProperties()

	eff := p.Effective

	if eff.Fly {
		moveX := boolToFloat(input.Inputs.Right) - boolToFloat(input.Inputs.Left)
		moveY := boolToFloat(input.Inputs.Up) - boolToFloat(input.Inputs.Down)
		length := math.Hypot(moveX, moveY)
		if length > 0 {
			moveX /= length
			moveY /= length
		}
		p.VX = moveX * eff.MovePower
		p.VY = moveY * eff.MovePower
		p.NextPosition(m, physicsResolution)
		return p.checkOverride(input)
	}

	leftFriction := p.ContactEdges[entity.EdgeLeft]
	rightFriction := p.ContactEdges[entity.EdgeRight]
	topFriction := p.ContactEdges[entity.EdgeTop]
	bottomFriction := p.ContactEdges[entity.EdgeBottom]

	p.VX *= math.Pow(eff.Drag, topFriction+bottomFriction)
	p.VY *= math.Pow(eff.Drag, leftFriction+rightFriction)

	p.VX *= eff.AirDrag
	p.VY *= eff.AirDrag

	moveInput := boolToFloat(input.Inputs.Right) - boolToFloat(input.Inputs.Left)
	pushingWall := leftFriction*moveInput < 0 || rightFriction*moveInput > 0

	switch {
	case pushingWall:
		totalWallFriction := leftFriction + rightFriction
		p.VY *= math.Pow(eff.WallDrag, totalWallFriction)
		if input.Inputs.Up || (input.Inputs.Down && bottomFriction == 0) {
			p.VX -= moveInput * eff.JumpPower * eff.Grip * totalWallFriction * eff.WallJumpPower
			if input.Inputs.Up {
				p.VY += eff.JumpPower * eff.Grip * totalWallFriction
			}
		}
	case bottomFriction != 0:
		p.VX += moveInput * eff.MovePower * eff.Grip * bottomFriction
		if input.Inputs.Up {
			p.VY += eff.JumpPower
		}
	default:
		p.VX += moveInput * eff.AirMovePower
	}

	p.VY -= eff.Gravity * math.Cos(p.Angle)
	p.VX += eff.Gravity * math.Sin(p.Angle)

	p.NextPosition(m, physicsResolution)

	return p.checkOverride(input)
}

func (p *Player) checkOverride(input PlayerTickInput) string {
	// Exact comparison: both sides run the identical tick function over
	// identical inputs, so an honest client reproduces the server's floats
	// bit for bit. Any difference at all means the client diverged.
	if p.X != input.Position.EndX || p.Y != input.Position.EndY {
		p.OverrideNextTick = 2
	}
	return ""
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// SetPosition writes position from server-side code (respawn, teleport) and
// marks the next snapshot as an override so the client hard-snaps.
func (p *Player) SetPosition(x, y float64) {
	p.X, p.Y = x, y
	p.Recompute()
	p.OverrideNextTick = 2
}

// SetVelocity writes velocity from server-side code and marks the next
// snapshot as an override.
func (p *Player) SetVelocity(vx, vy float64) {
	p.VX, p.VY = vx, vy
	p.OverrideNextTick = 2
}

// ToRandomSpawnpoint teleports the player to a uniformly random spawn point
// of m.
func (p *Player) ToRandomSpawnpoint(m *worldmap.Map) error {
	if len(m.Spawns) == 0 {
		return fmt.Errorf("player: map %s has no player spawn points", m.ID)
	}
	s := m.Spawns[rand.Intn(len(m.Spawns))]
	p.SetPosition(s.X, s.Y)
	return nil
}

// SpreadPlayers assigns each player a distinct spawn point drawn without
// replacement from m.Spawns. It returns an error (and stops assigning) if
// the spawn set is exhausted before every player has one.
func SpreadPlayers(players []*Player, m *worldmap.Map) error {
	available := append([]worldmap.Point{}, m.Spawns...)
	rand.Shuffle(len(available), func(i, j int) { available[i], available[j] = available[j], available[i] })

	if len(available) < len(players) {
		return fmt.Errorf("spreadPlayers: spawn set exhausted: have %d spawns for %d players", len(available), len(players))
	}

	for i, p := range players {
		p.SetPosition(available[i].X, available[i].Y)
	}
	return nil
}

// Kick records the infraction against the player's account and returns the
// infraction event payload. The caller (room runtime) is responsible for
// disconnecting the socket and removing the player from the world.
func (p *Player) Kick(reason string) KickPayload {
	recordInfraction(&p.Account, reason)
	count := 0
	for _, inf := range p.Account.Infractions {
		if inf.Reason == reason {
			count = inf.Count
			break
		}
	}
	return KickPayload{Username: p.Account.Username, Reason: reason, Count: count}
}

// ToWireData converts the player's live state to the per-tick wire record.
func (p *Player) ToWireData() PlayerTickData {
	entries := make([]ModifierWireEntry, 0, len(p.Modifiers))
	for id, m := range p.Modifiers {
		entries = append(entries, ModifierWireEntry{ID: id, Modifier: m.Kind, Length: m.Remaining})
	}

	override := p.OverrideNextTick > 0

	return PlayerTickData{
		ID:               p.ID,
		X:                p.X,
		Y:                p.Y,
		Angle:            p.Angle,
		VX:               p.VX,
		VY:               p.VY,
		VA:               p.VA,
		Username:         p.Account.Username,
		Color:            p.Color,
		Properties:       p.Effective,
		Modifiers:        entries,
		OverridePosition: override,
	}
}
