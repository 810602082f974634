package game

import (
	"testing"

	"boxborne/internal/worldmap"
)

func emptyMap(w, h int) *worldmap.Map {
	m := &worldmap.Map{Width: w, Height: h}
	m.Grid = make([][][]worldmap.Collision, h)
	for y := range m.Grid {
		m.Grid[y] = make([][]worldmap.Collision, w)
	}
	return m
}

func solidCell(m *worldmap.Map, gx, gy int, friction float64) {
	cx := float64(gx) + 0.5
	cy := float64(gy) + 0.5
	c := worldmap.Collision{
		CenterX: cx, CenterY: cy,
		HalfWidth: 0.5, HalfHeight: 0.5,
		Friction: friction,
		Vertices: [4]worldmap.Point{
			{X: cx - 0.5, Y: cy + 0.5}, {X: cx + 0.5, Y: cy + 0.5},
			{X: cx + 0.5, Y: cy - 0.5}, {X: cx - 0.5, Y: cy - 0.5},
		},
	}
	m.Grid[gy][gx] = append(m.Grid[gy][gx], c)
}

func testTemplate() ProjectileTemplate {
	return ProjectileTemplate{
		Type:                "bolt",
		Speed:               0.5,
		Damage:              1,
		CollidesWithPlayers: true,
	}
}

func TestProjectileInheritsQuarterOwnerVelocity(t *testing.T) {
	owner := NewPlayer(Account{Username: "shooter"}, "#e63946")
	owner.VX = 2.0
	owner.VY = -1.0

	pr := NewProjectile(owner, testTemplate(), 5, 5, 0)

	if pr.VX != 2.0*0.25+0.5 {
		t.Errorf("expected vx = owner vx/4 + speed, got %v", pr.VX)
	}
	if pr.VY != -1.0*0.25 {
		t.Errorf("expected vy = owner vy/4, got %v", pr.VY)
	}
}

func TestProjectileCulledOutOfBounds(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{name: "inside", x: 5, y: 5, want: false},
		{name: "just past the limit left", x: -20.5, y: 5, want: true},
		{name: "just past the limit above", x: 5, y: 30.5, want: true},
	}

	m := emptyMap(10, 10)
	owner := NewPlayer(Account{Username: "shooter"}, "#e63946")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := NewProjectile(owner, testTemplate(), tt.x, tt.y, 0)
			pr.Tick(m, 64, nil, nil)
			if pr.Removed() != tt.want {
				t.Errorf("removed = %v, want %v", pr.Removed(), tt.want)
			}
			if tt.want && (pr.VX != 0 || pr.VY != 0) {
				t.Errorf("a removed projectile must be halted, got (%v, %v)", pr.VX, pr.VY)
			}
		})
	}
}

func TestProjectileRemovedOnMapHit(t *testing.T) {
	m := emptyMap(10, 10)
	solidCell(m, 6, 5, 1)

	owner := NewPlayer(Account{Username: "shooter"}, "#e63946")
	owner.VX, owner.VY = 0, 0
	pr := NewProjectile(owner, testTemplate(), 5, 5.5, 0)

	// Walk it into the wall; the default onMapHit removes it halted.
	for i := 0; i < 5 && !pr.Removed(); i++ {
		pr.Tick(m, 64, nil, nil)
	}

	if !pr.Removed() {
		t.Fatal("expected projectile removed after hitting the map")
	}
	if pr.VX != 0 || pr.VY != 0 {
		t.Errorf("expected halted velocity after removal, got (%v, %v)", pr.VX, pr.VY)
	}
}

func TestProjectileSkipsOwnerButDamagesOthers(t *testing.T) {
	m := emptyMap(10, 10)
	owner := NewPlayer(Account{Username: "shooter"}, "#e63946")
	owner.SetPosition(5, 5)
	target := NewPlayer(Account{Username: "victim"}, "#2a9d8f")
	target.SetPosition(5, 5)

	tmpl := testTemplate()
	tmpl.Speed = 0
	pr := NewProjectile(owner, tmpl, 5, 5, 0)

	pr.Tick(m, 64, []*Player{owner}, nil)
	if pr.Removed() {
		t.Fatal("projectile must never hit its own shooter")
	}

	hpBefore := target.HP
	pr.Tick(m, 64, []*Player{owner, target}, nil)
	if !pr.Removed() {
		t.Fatal("expected projectile removed after hitting a target")
	}
	if target.HP != hpBefore-tmpl.Damage {
		t.Errorf("expected target HP %d, got %d", hpBefore-tmpl.Damage, target.HP)
	}
}
