package game

import "testing"

func TestLeaderboardOrdersByKillsThenName(t *testing.T) {
	a := NewPlayer(Account{Username: "ada"}, "#e63946")
	b := NewPlayer(Account{Username: "bea"}, "#2a9d8f")
	c := NewPlayer(Account{Username: "cal"}, "#457b9d")
	a.Kills = 2
	b.Kills = 5
	c.Kills = 2

	entries := Leaderboard([]*Player{a, b, c})

	wantOrder := []string{"bea", "ada", "cal"}
	for i, want := range wantOrder {
		if entries[i].Username != want {
			t.Fatalf("rank %d: got %s, want %s", i+1, entries[i].Username, want)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, entries[i].Rank)
		}
	}
}

func TestProjectileKillCreditsOwner(t *testing.T) {
	owner := NewPlayer(Account{Username: "shooter"}, "#e63946")
	owner.SetPosition(5, 5)
	target := NewPlayer(Account{Username: "victim"}, "#2a9d8f")
	target.SetPosition(5, 5)
	target.HP = 1

	tmpl := testTemplate()
	tmpl.Speed = 0
	pr := NewProjectile(owner, tmpl, 5, 5, 0)
	pr.Tick(emptyMap(10, 10), 64, []*Player{target}, nil)

	if owner.Kills != 1 {
		t.Fatalf("expected the finishing hit to credit a kill, got %d", owner.Kills)
	}
}
