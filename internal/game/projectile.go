package game

import (
	"math"

	"boxborne/internal/entity"
	"boxborne/internal/worldmap"
)

// ProjectileType names a projectile template.
type ProjectileType string

// ProjectileTemplate is the immutable, authored data for one projectile
// type: its local-space polygon, speed, and on-hit behaviours.
type ProjectileTemplate struct {
	Type                    ProjectileType
	LocalVertices           [4]entity.Point
	Speed                   float64
	Damage                  int
	CollidesWithPlayers     bool
	CollidesWithProjectiles bool
	// OnMapHit runs when a contact edge is non-zero after nextPosition.
	// Default behaviour (nil) removes the projectile.
	OnMapHit func(p *Projectile)
	// OnEntityHit runs once per player collision. Default behaviour (nil)
	// damages the target by Damage and removes self.
	OnEntityHit func(p *Projectile, target *Player)
}

// outOfBoundsLimit is how far, in tiles, a projectile may drift past the
// current map's bounds before it is culled.
const outOfBoundsLimit = 20.0

// Projectile is an entity specialisation with a frozen copy of its type
// template and a reference to the player who fired it.
type Projectile struct {
	*entity.Body

	Template ProjectileTemplate
	Owner    *Player
}

// NewProjectile constructs a projectile owned by owner, travelling along
// angle. Its initial velocity is the owner's velocity scaled by 0.25 plus
// the template speed along angle.
func NewProjectile(owner *Player, tmpl ProjectileTemplate, x, y, angle float64) *Projectile {
	body := entity.NewBody(x, y, 0.25, 0.25, angle)
	body.VX = owner.VX*0.25 + tmpl.Speed*math.Cos(angle)
	body.VY = owner.VY*0.25 + tmpl.Speed*math.Sin(angle)

	return &Projectile{
		Body:     body,
		Template: tmpl,
		Owner:    owner,
	}
}

// Tick advances one projectile for one global tick: bounds culling, the
// template's move function, nextPosition, and map/entity collision hooks.
// players is the candidate target set from the projectile's chunk overlap.
func (pr *Projectile) Tick(m *worldmap.Map, physicsResolution int, players []*Player, projectiles []*Projectile) {
	if pr.outOfBounds(m) {
		pr.removeHalted()
		return
	}

	pr.move()
	pr.NextPosition(m, physicsResolution)

	if pr.Removed() {
		return
	}

	if pr.ContactEdges[entity.EdgeLeft] != 0 || pr.ContactEdges[entity.EdgeRight] != 0 ||
		pr.ContactEdges[entity.EdgeTop] != 0 || pr.ContactEdges[entity.EdgeBottom] != 0 {
		pr.hitMap()
		if pr.Removed() {
			return
		}
	}

	if pr.Template.CollidesWithPlayers {
		for _, target := range players {
			if target == pr.Owner {
				continue
			}
			if boxesIntersect(pr.Body, target.Body) {
				pr.hitEntity(target)
				if pr.Removed() {
					return
				}
			}
		}
	}

	if pr.Template.CollidesWithProjectiles {
		for _, other := range projectiles {
			if other == pr || other.Owner == pr.Owner {
				continue
			}
			if boxesIntersect(pr.Body, other.Body) {
				pr.removeHalted()
				return
			}
		}
	}
}

func (pr *Projectile) outOfBounds(m *worldmap.Map) bool {
	if m == nil {
		return false
	}
	return pr.X < -outOfBoundsLimit || pr.X > float64(m.Width)+outOfBoundsLimit ||
		pr.Y < -outOfBoundsLimit || pr.Y > float64(m.Height)+outOfBoundsLimit
}

// move runs the template's per-tick move function. The only template
// defined today, "linear", is a no-op: translation happens entirely via
// constant velocity in nextPosition.
func (pr *Projectile) move() {}

func (pr *Projectile) hitMap() {
	if pr.Template.OnMapHit != nil {
		pr.Template.OnMapHit(pr)
		return
	}
	pr.removeHalted()
}

func (pr *Projectile) hitEntity(target *Player) {
	if pr.Template.OnEntityHit != nil {
		pr.Template.OnEntityHit(pr, target)
		return
	}
	target.TakeDamage(pr.Template.Damage)
	if target.HP == 0 && pr.Owner != nil {
		pr.Owner.Kills++
	}
	pr.removeHalted()
}

// removeHalted zeroes velocity before deregistering so any final snapshot
// shows the projectile halted rather than teleporting.
func (pr *Projectile) removeHalted() {
	pr.VX, pr.VY = 0, 0
	pr.Remove()
}

// boxesIntersect is the axis-aligned overlap test used to narrow a chunk
// index's candidate set to entities that actually overlap.
func boxesIntersect(a, b *entity.Body) bool {
	ax, ay := a.Center()
	bx, by := b.Center()
	ahw, ahh := a.HalfExtents()
	bhw, bhh := b.HalfExtents()
	return math.Abs(ax-bx) <= ahw+bhw && math.Abs(ay-by) <= ahh+bhh
}
