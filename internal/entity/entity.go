// Package entity implements the oriented-box physics kernel shared by every
// moving body in a room: players, projectiles, and loot boxes. It knows
// nothing about game rules — movement ruleset lives in the game package,
// which embeds a Body.
package entity

import (
	"math"
	"sync/atomic"

	"boxborne/internal/worldmap"
)

// Point is a plain coordinate pair with no identity. It is the same type
// throughout the map pipeline, so compiled map collision vertices and body
// vertices feed the one polygon test without copying.
type Point = worldmap.Point

// Collidable is the capability set both entities and map collisions
// satisfy: a centre, axis-aligned bounding half-extents, and four
// clockwise convex polygon vertices.
type Collidable interface {
	Center() (float64, float64)
	HalfExtents() (float64, float64)
	VerticesCW() [4]Point
}

// Edge names a contact-edge direction.
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

var nextID uint64

// NewID returns a fresh, process-wide monotonic entity id.
func NewID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

// Body is the abstract moving oriented-box entity described by the entity
// kernel: a rotated rectangle with cached derived geometry, sub-stepped
// translation against a map's collision grid, and per-edge contact friction.
type Body struct {
	ID uint64

	X, Y          float64
	Width, Height float64
	Angle         float64
	VX, VY        float64
	VA            float64

	CollisionEnabled bool
	removed          bool

	cos, sin     float64
	halfW, halfH float64 // axis-aligned bounding half-extents
	vertices     [4]Point

	// ContactEdges holds the friction of whatever the body is touching in
	// each direction; zero means "not touching".
	ContactEdges [4]float64
}

// NewBody constructs a body at (x, y) and computes its initial cached geometry.
func NewBody(x, y, width, height, angle float64) *Body {
	b := &Body{
		ID:               NewID(),
		X:                x,
		Y:                y,
		Width:            width,
		Height:           height,
		Angle:            angle,
		CollisionEnabled: true,
	}
	b.Recompute()
	return b
}

// Removed reports whether Remove has already run.
func (b *Body) Removed() bool { return b.removed }

// Remove marks the body removed. Idempotent: a second call is a no-op.
func (b *Body) Remove() {
	b.removed = true
}

// Center satisfies Collidable.
func (b *Body) Center() (float64, float64) { return b.X, b.Y }

// HalfExtents satisfies Collidable.
func (b *Body) HalfExtents() (float64, float64) { return b.halfW, b.halfH }

// VerticesCW satisfies Collidable.
func (b *Body) VerticesCW() [4]Point { return b.vertices }

// Recompute refreshes cached cos/sin, bounding half-extents, and world
// vertices from X, Y, Width, Height, Angle. Must run after any mutation of
// those fields and before any collision query.
func (b *Body) Recompute() {
	b.cos = math.Cos(b.Angle)
	b.sin = math.Sin(b.Angle)

	w, h := b.Width, b.Height
	b.halfW = (math.Abs(w*b.cos) + math.Abs(h*b.sin)) / 2
	b.halfH = (math.Abs(h*b.cos) + math.Abs(w*b.sin)) / 2

	hw, hh := w/2, h/2
	// Local corners, clockwise starting top-left in a y-up frame.
	local := [4]Point{
		{X: -hw, Y: hh},
		{X: hw, Y: hh},
		{X: hw, Y: -hh},
		{X: -hw, Y: -hh},
	}
	for i, p := range local {
		rx := p.X*b.cos - p.Y*b.sin
		ry := p.X*b.sin + p.Y*b.cos
		b.vertices[i] = Point{X: b.X + rx, Y: b.Y + ry}
	}
}

// GridCell returns the floor of the body's position, its grid cell.
func (b *Body) GridCell() (int, int) {
	return int(math.Floor(b.X)), int(math.Floor(b.Y))
}

// collidesWithMap scans the map's collision grid cells overlapped by a box
// centred at (x, y) with the body's current half-extents, and returns the
// first MapCollision whose polygon intersects the body's polygon at that
// position (or ok=false).
func (b *Body) collidesWithMap(m *worldmap.Map, x, y float64) (worldmap.Collision, bool) {
	if m == nil {
		return worldmap.Collision{}, false
	}

	minX := int(math.Floor(x - b.halfW))
	maxX := int(math.Floor(x + b.halfW))
	minY := int(math.Floor(y - b.halfH))
	maxY := int(math.Floor(y + b.halfH))

	if minX < 0 {
		minX = 0
	}
	if minY < 0 {
		minY = 0
	}
	if maxX >= m.Width {
		maxX = m.Width - 1
	}
	if maxY >= m.Height {
		maxY = m.Height - 1
	}

	// Probe vertices at the candidate position (translate the cached shape
	// by the delta between the candidate and current centre).
	dx := x - b.X
	dy := y - b.Y
	var probe [4]Point
	for i, v := range b.vertices {
		probe[i] = Point{X: v.X + dx, Y: v.Y + dy}
	}

	for gy := minY; gy <= maxY; gy++ {
		if gy < 0 || gy >= len(m.Grid) {
			continue
		}
		for gx := minX; gx <= maxX; gx++ {
			if gx < 0 || gx >= len(m.Grid[gy]) {
				continue
			}
			for _, c := range m.Grid[gy][gx] {
				if !axesOverlap(x, y, b.halfW, b.halfH, c.CenterX, c.CenterY, c.HalfWidth, c.HalfHeight) {
					continue
				}
				if convexIntersect(probe, c.Vertices) {
					return c, true
				}
			}
		}
	}
	return worldmap.Collision{}, false
}

func axesOverlap(ax, ay, ahw, ahh, bx, by, bhw, bhh float64) bool {
	return math.Abs(ax-bx) <= ahw+bhw && math.Abs(ay-by) <= ahh+bhh
}

// convexIntersect implements the polygon-vs-polygon narrow phase: two convex
// polygons intersect if some vertex of one lies on the inside half-plane of
// every edge of the other, or vice versa. A vertex exactly on an edge counts
// as inside. Overlaps where no vertex of either polygon lies inside the other
// are not detected.
func convexIntersect(a, b [4]Point) bool {
	return anyInside(a, b) || anyInside(b, a)
}

func anyInside(points, poly [4]Point) bool {
	n := len(poly)
	for _, p := range points {
		inside := true
		for e := 0; e < n; e++ {
			if halfPlaneSign(p, poly[e], poly[(e+1)%n]) < 0 {
				inside = false
				break
			}
		}
		if inside {
			return true
		}
	}
	return false
}

// halfPlaneSign is the sign of the 2x2 determinant testing point P against
// directed edge Q->R. For the clockwise winding Recompute and
// compileCollision both emit, non-negative means P is on the inside
// half-plane.
func halfPlaneSign(p, q, r Point) float64 {
	return q.X*(p.Y-r.Y) + p.X*(r.Y-q.Y) + r.X*(q.Y-p.Y)
}

const overPushFactor = 1.01

// NextPosition performs the sub-stepped translation and collision response
// described for the entity kernel: it advances the body's position by its
// current velocity over max(|VX|, |VY|) * resolution sub-steps (at least
// one), resolving collisions against
// m's grid at each sub-step, then advances the angle and refreshes contact
// edges.
func (b *Body) NextPosition(m *worldmap.Map, resolution int) {
	if resolution < 1 {
		resolution = 1
	}

	speed := math.Max(math.Abs(b.VX), math.Abs(b.VY))
	steps := int(speed * float64(resolution))
	if steps < 1 {
		steps = 1
	}

	// Step deltas come from the live velocity each iteration: a slide that
	// zeroes one component stops further motion along that axis, and a
	// stuck resolution (both components zeroed) ends the walk outright.
	for s := 0; s < steps; s++ {
		if b.VX == 0 && b.VY == 0 {
			break
		}
		b.subStep(m, b.VX/float64(steps), b.VY/float64(steps))
	}

	b.Angle += b.VA
	b.Recompute()
	b.refreshContactEdges(m)
}

func (b *Body) subStep(m *worldmap.Map, dx, dy float64) {
	if dx == 0 && dy == 0 {
		return
	}

	xy := Point{X: b.X + dx, Y: b.Y + dy}
	cXY, xyBlocked := b.collidesWithMap(m, xy.X, xy.Y)
	if !xyBlocked {
		b.X, b.Y = xy.X, xy.Y
		b.Recompute()
		return
	}

	xOnly := Point{X: b.X + dx, Y: b.Y}
	cX, xBlocked := b.collidesWithMap(m, xOnly.X, xOnly.Y)

	yOnly := Point{X: b.X, Y: b.Y + dy}
	cY, yBlocked := b.collidesWithMap(m, yOnly.X, yOnly.Y)

	switch {
	case xBlocked && yBlocked:
		// Stuck: snap away from the blocker along both axes with a small
		// over-push, and kill velocity.
		cx, cy := cXY.Center()
		chw, chh := cXY.HalfExtents()
		if b.X < cx {
			b.X = cx - (chw+b.halfW)*overPushFactor
		} else {
			b.X = cx + (chw+b.halfW)*overPushFactor
		}
		if b.Y < cy {
			b.Y = cy - (chh+b.halfH)*overPushFactor
		} else {
			b.Y = cy + (chh+b.halfH)*overPushFactor
		}
		b.VX, b.VY = 0, 0
		b.Recompute()

	case !yBlocked && xBlocked:
		// Vertical slide: y moves, x snaps to the obstacle face.
		cx, _ := cX.Center()
		chw, _ := cX.HalfExtents()
		if b.X < cx {
			b.X = cx - (chw+b.halfW)*overPushFactor
		} else {
			b.X = cx + (chw+b.halfW)*overPushFactor
		}
		b.Y = yOnly.Y
		b.VX = 0
		b.Recompute()

	case !xBlocked:
		// Horizontal slide: x moves, y snaps to the obstacle face.
		_, cy := cY.Center()
		_, chh := cY.HalfExtents()
		if b.Y < cy {
			b.Y = cy - (chh+b.halfH)*overPushFactor
		} else {
			b.Y = cy + (chh+b.halfH)*overPushFactor
		}
		b.X = xOnly.X
		b.VY = 0
		b.Recompute()
	}
}

// refreshContactEdges probes the four directions one sub-unit away and
// records the friction of whatever MapCollision blocks each; a clear
// direction yields zero.
func (b *Body) refreshContactEdges(m *worldmap.Map) {
	const probe = 1.0 / 64

	if c, ok := b.collidesWithMap(m, b.X-probe, b.Y); ok {
		b.ContactEdges[EdgeLeft] = c.Friction
	} else {
		b.ContactEdges[EdgeLeft] = 0
	}
	if c, ok := b.collidesWithMap(m, b.X+probe, b.Y); ok {
		b.ContactEdges[EdgeRight] = c.Friction
	} else {
		b.ContactEdges[EdgeRight] = 0
	}
	if c, ok := b.collidesWithMap(m, b.X, b.Y+probe); ok {
		b.ContactEdges[EdgeTop] = c.Friction
	} else {
		b.ContactEdges[EdgeTop] = 0
	}
	if c, ok := b.collidesWithMap(m, b.X, b.Y-probe); ok {
		b.ContactEdges[EdgeBottom] = c.Friction
	} else {
		b.ContactEdges[EdgeBottom] = 0
	}
}
