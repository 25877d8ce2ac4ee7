package snapshot

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

type fakeSim struct {
	inBattle bool
	time     float64
	extent   battle.Rect
	units    map[battle.Side][]sim.UnitState
}

func (f *fakeSim) InBattle() bool                         { return f.inBattle }
func (f *fakeSim) Time() float64                          { return f.time }
func (f *fakeSim) Extent() battle.Rect                    { return f.extent }
func (f *fakeSim) Units(side battle.Side) []sim.UnitState { return f.units[side] }
func (f *fakeSim) Formations(battle.Side) []sim.Formation { return nil }

func newFakeSim() *fakeSim {
	return &fakeSim{
		inBattle: true,
		time:     42.5,
		units: map[battle.Side][]sim.UnitState{
			battle.SidePlayer: {
				{ID: "p1", Type: "spearman", Position: battle.Vec2{X: 1, Y: 2}, Health: 100, Formation: "f0", Side: battle.SidePlayer},
				{ID: "p2", Type: "archer", Position: battle.Vec2{X: 3.25, Y: -4}, Health: 55.5, Formation: "f1", Side: battle.SidePlayer, Ranged: true},
			},
			battle.SideEnemy: {
				{ID: "e1", Type: "lancer", Position: battle.Vec2{X: 50, Y: 60}, Health: 80, Side: battle.SideEnemy, Mounted: true},
				{ID: "e2", Type: "lancer", Position: battle.Vec2{X: 52, Y: 61}, Health: 10, Side: battle.SideEnemy, Mounted: true, Routing: true},
			},
		},
	}
}

func TestCaptureNoBattle(t *testing.T) {
	s := newFakeSim()
	s.inBattle = false
	if snap := Capture(s); !snap.Empty() {
		t.Fatalf("expected empty snapshot, got %d units", len(snap.Units))
	}
	if snap := Capture(nil); !snap.Empty() {
		t.Fatal("expected empty snapshot for nil simulation")
	}
}

func TestCaptureNoUnits(t *testing.T) {
	s := &fakeSim{inBattle: true}
	if snap := Capture(s); !snap.Empty() {
		t.Fatal("expected empty snapshot when no units are present")
	}
}

func TestCaptureCopiesUnits(t *testing.T) {
	s := newFakeSim()
	snap := Capture(s)

	if len(snap.Units) != 4 {
		t.Fatalf("expected 4 units, got %d", len(snap.Units))
	}
	if snap.Time != 42.5 {
		t.Errorf("time = %v, want 42.5", snap.Time)
	}
	if got := snap.Count(battle.SideEnemy, false); got != 1 {
		t.Errorf("active enemy count = %d, want 1", got)
	}
	if snap.Units[2].Formation != battle.NoFormation {
		t.Errorf("unassigned unit formation = %q, want %q", snap.Units[2].Formation, battle.NoFormation)
	}

	// Mutating the live state must not reach the snapshot.
	s.units[battle.SidePlayer][0].Health = 1
	if snap.Units[0].Health != 100 {
		t.Errorf("snapshot aliased live state: health %v", snap.Units[0].Health)
	}
}

func TestCaptureExtentFallsBackToUnitBounds(t *testing.T) {
	snap := Capture(newFakeSim())
	want := battle.Rect{Min: battle.Vec2{X: 1, Y: -4}, Max: battle.Vec2{X: 52, Y: 61}}
	if snap.Extent != want {
		t.Errorf("extent = %+v, want %+v", snap.Extent, want)
	}

	s := newFakeSim()
	s.extent = battle.Rect{Max: battle.Vec2{X: 500, Y: 500}}
	if got := Capture(s).Extent; got != s.extent {
		t.Errorf("extent = %+v, want host extent %+v", got, s.extent)
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := Capture(newFakeSim())
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back battle.BattleSnapshot
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back.Units) != len(snap.Units) {
		t.Fatalf("unit count %d, want %d", len(back.Units), len(snap.Units))
	}
	for i := range snap.Units {
		a, b := snap.Units[i], back.Units[i]
		if math.Abs(a.Position.X-b.Position.X) > 1e-9 || math.Abs(a.Position.Y-b.Position.Y) > 1e-9 {
			t.Errorf("unit %s position %+v, want %+v", a.ID, b.Position, a.Position)
		}
		if a.Health != b.Health {
			t.Errorf("unit %s health %v, want %v", a.ID, b.Health, a.Health)
		}
		if a.Side() != b.Side() {
			t.Errorf("unit %s side %v, want %v", a.ID, b.Side(), a.Side())
		}
	}
}

func TestCommanderIDStableUnderReordering(t *testing.T) {
	a := battle.BattleSnapshot{Units: []battle.UnitSnapshot{
		{ID: "1", Type: "lancer"}, {ID: "2", Type: "archer"}, {ID: "3", Type: "lancer"},
	}}
	b := battle.BattleSnapshot{Units: []battle.UnitSnapshot{
		{ID: "9", Type: "archer"}, {ID: "8", Type: "lancer"}, {ID: "7", Type: "lancer"},
	}}
	idA := CommanderID(a, battle.SideEnemy)
	idB := CommanderID(b, battle.SideEnemy)
	if idA == "" || idA != idB {
		t.Fatalf("ids differ for same composition: %q vs %q", idA, idB)
	}

	c := battle.BattleSnapshot{Units: []battle.UnitSnapshot{
		{ID: "1", Type: "lancer"}, {ID: "2", Type: "archer"},
	}}
	if CommanderID(c, battle.SideEnemy) == idA {
		t.Error("different composition produced the same id")
	}
}

func TestCommanderIDUsesRoleWhenTypeMissing(t *testing.T) {
	snap := battle.BattleSnapshot{Units: []battle.UnitSnapshot{{ID: "1", Mounted: true}}}
	typed := battle.BattleSnapshot{Units: []battle.UnitSnapshot{{ID: "1", Type: "cavalry"}}}
	if CommanderID(snap, battle.SideEnemy) != CommanderID(typed, battle.SideEnemy) {
		t.Error("untyped mounted unit should hash like type \"cavalry\"")
	}
	if CommanderID(snap, battle.SidePlayer) != "" {
		t.Error("expected empty id for side with no units")
	}
}
