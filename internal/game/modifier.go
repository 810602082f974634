package game

// ModifierKind enumerates the variants a player's active-modifiers mapping
// may reference. The coefficients below are the server's authoritative copy;
// a real client build must ship the identical table.
type ModifierKind int

const (
	ModifierNone ModifierKind = iota
	ModifierSpeedBoost
	ModifierIceFriction
	ModifierWallGripLock
	ModifierHeavyLegs
	ModifierFeatherFall
	ModifierOverdrive
)

// Modifier is one active modifier instance: its kind, ticks remaining, and
// whether it has been confirmed active by a client input packet.
type Modifier struct {
	Kind      ModifierKind
	Remaining int
	Activated bool
}

// Properties is the effective per-tick movement coefficient set a player's
// physics tick reads from. RefreshProperties recomputes it from base values
// plus every currently active modifier.
type Properties struct {
	Gravity       float64 `json:"gravity"`
	MovePower     float64 `json:"movePower"`
	JumpPower     float64 `json:"jumpPower"`
	WallJumpPower float64 `json:"wallJumpPower"`
	AirMovePower  float64 `json:"airMovePower"`
	Drag          float64 `json:"drag"`
	AirDrag       float64 `json:"airDrag"`
	WallDrag      float64 `json:"wallDrag"`
	Grip          float64 `json:"grip"`
	Fly           bool    `json:"fly"`
}

// BaseProperties returns the fixed starting values every player is
// initialised with before any modifier is applied.
func BaseProperties() Properties {
	return Properties{
		Gravity:       0.012,
		MovePower:     0.02,
		JumpPower:     0.28,
		WallJumpPower: 0.6,
		AirMovePower:  0.012,
		Drag:          0.85,
		AirDrag:       0.995,
		WallDrag:      0.9,
		Grip:          1.0,
		Fly:           false,
	}
}

// applyModifier mutates eff in place for one active modifier kind. Two
// modifiers of different kinds stack; two instances of the same kind do not
// (refreshProperties folds over the set of distinct active kinds).
func applyModifier(eff *Properties, kind ModifierKind) {
	switch kind {
	case ModifierSpeedBoost:
		eff.MovePower *= 2
		eff.AirMovePower *= 2
	case ModifierIceFriction:
		eff.Drag = 0.995
		eff.Grip *= 0.4
	case ModifierWallGripLock:
		eff.WallDrag = 0.5
		eff.Grip *= 1.5
	case ModifierHeavyLegs:
		eff.JumpPower *= 0.5
		eff.Gravity *= 1.5
	case ModifierFeatherFall:
		eff.Gravity *= 0.35
	case ModifierOverdrive:
		eff.MovePower *= 1.5
		eff.JumpPower *= 1.25
		eff.WallJumpPower *= 1.25
	}
}

// RefreshProperties recomputes effective properties from base plus every
// currently activated modifier. Run after aging/adding modifiers so the
// next physics tick observes the right coefficients.
func RefreshProperties(base Properties, modifiers map[int]*Modifier) Properties {
	eff := base
	applied := make(map[ModifierKind]bool, len(modifiers))
	for _, m := range modifiers {
		if m.Activated && !applied[m.Kind] {
			applied[m.Kind] = true
			applyModifier(&eff, m.Kind)
		}
	}
	return eff
}
