package fallback

import (
	"testing"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		player, enemy int
		want          battle.Action
	}{
		{10, 30, battle.ActionRetreat},
		{30, 10, battle.ActionCharge},
		{15, 20, battle.ActionHold},
		{10, 20, battle.ActionHold}, // exactly 0.5x
		{30, 20, battle.ActionHold}, // exactly 1.5x
		{9, 20, battle.ActionRetreat},
		{31, 20, battle.ActionCharge},
		{0, 0, battle.ActionHold},
		{5, 0, battle.ActionCharge},
		{0, 5, battle.ActionRetreat},
	}
	for _, tt := range tests {
		if got := Decide(tt.player, tt.enemy); got != tt.want {
			t.Errorf("Decide(%d, %d) = %v, want %v", tt.player, tt.enemy, got, tt.want)
		}
	}
}

func TestDecideIsPure(t *testing.T) {
	for p := 0; p < 40; p++ {
		for e := 0; e < 40; e++ {
			first := Decide(p, e)
			for i := 0; i < 3; i++ {
				if got := Decide(p, e); got != first {
					t.Fatalf("Decide(%d, %d) changed from %v to %v", p, e, first, got)
				}
			}
		}
	}
}

type formation struct {
	index int
	units int
}

func (f formation) ID() string          { return "f" }
func (f formation) Index() int          { return f.index }
func (f formation) Side() battle.Side   { return battle.SidePlayer }
func (f formation) Role() sim.Role      { return sim.RoleInfantry }
func (f formation) Center() battle.Vec2 { return battle.Vec2{} }
func (f formation) Units() []sim.UnitState {
	return make([]sim.UnitState, f.units)
}
func (f formation) Issue(battle.Order) error { return nil }

type field struct {
	player, enemy int
	formations    []sim.Formation
}

func (f field) InBattle() bool      { return true }
func (f field) Time() float64       { return 0 }
func (f field) Extent() battle.Rect { return battle.Rect{} }
func (f field) Units(side battle.Side) []sim.UnitState {
	n := f.player
	if side == battle.SideEnemy {
		n = f.enemy
	}
	return make([]sim.UnitState, n)
}
func (f field) Formations(side battle.Side) []sim.Formation {
	if side == battle.SidePlayer {
		return f.formations
	}
	return nil
}

func TestControllerScenarios(t *testing.T) {
	formations := []sim.Formation{formation{index: 0, units: 4}, formation{index: 1, units: 0}, nil, formation{index: 3, units: 6}}
	tests := []struct {
		player, enemy int
		want          battle.Action
	}{
		{10, 30, battle.ActionRetreat},
		{30, 10, battle.ActionCharge},
		{15, 20, battle.ActionHold},
	}
	c := NewController(battle.SidePlayer)
	for _, tt := range tests {
		d := c.Decision(field{player: tt.player, enemy: tt.enemy, formations: formations})
		if len(d.Commands) != 2 {
			t.Fatalf("%d vs %d: %d commands, want 2 (non-empty formations only)", tt.player, tt.enemy, len(d.Commands))
		}
		for i, cmd := range d.Commands {
			if cmd.Action != tt.want {
				t.Errorf("%d vs %d: command %d = %v, want %v", tt.player, tt.enemy, i, cmd.Action, tt.want)
			}
		}
		if d.Commands[0].Selector() != "0" || d.Commands[1].Selector() != "3" {
			t.Errorf("selectors = %q, %q", d.Commands[0].Selector(), d.Commands[1].Selector())
		}
	}
}
