package game

import "testing"

func TestRefreshPropertiesOnlyFoldsActiveModifiers(t *testing.T) {
	base := BaseProperties()
	mods := map[int]*Modifier{
		1: {Kind: ModifierSpeedBoost, Remaining: 10, Activated: false},
	}

	got := RefreshProperties(base, mods)
	if got != base {
		t.Error("an inactive modifier must not change effective properties")
	}

	mods[1].Activated = true
	got = RefreshProperties(base, mods)
	if got.MovePower != base.MovePower*2 {
		t.Errorf("expected MovePower doubled by speed boost, got %v", got.MovePower)
	}
}

func TestRefreshPropertiesStacksDistinctKinds(t *testing.T) {
	base := BaseProperties()
	mods := map[int]*Modifier{
		1: {Kind: ModifierSpeedBoost, Remaining: 10, Activated: true},
		2: {Kind: ModifierFeatherFall, Remaining: 10, Activated: true},
	}

	got := RefreshProperties(base, mods)
	if got.MovePower != base.MovePower*2 {
		t.Errorf("speed boost should still apply, got MovePower %v", got.MovePower)
	}
	if got.Gravity != base.Gravity*0.35 {
		t.Errorf("feather fall should still apply, got Gravity %v", got.Gravity)
	}
}

func TestBasePropertiesStartWithoutFly(t *testing.T) {
	base := BaseProperties()
	if base.Fly {
		t.Fatal("base properties should not start in fly mode")
	}
}
