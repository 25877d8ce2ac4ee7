package command

import (
	"errors"
	"math"
	"testing"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

type fakeFormation struct {
	id     string
	index  int
	side   battle.Side
	role   sim.Role
	center battle.Vec2
	units  int
	health float64
	issued []battle.Order
	failOn battle.OrderKind
	panics bool
}

func (f *fakeFormation) ID() string          { return f.id }
func (f *fakeFormation) Index() int          { return f.index }
func (f *fakeFormation) Side() battle.Side   { return f.side }
func (f *fakeFormation) Role() sim.Role      { return f.role }
func (f *fakeFormation) Center() battle.Vec2 { return f.center }

func (f *fakeFormation) Units() []sim.UnitState {
	out := make([]sim.UnitState, f.units)
	for i := range out {
		out[i] = sim.UnitState{Position: f.center, Health: f.health, Side: f.side}
	}
	return out
}

func (f *fakeFormation) Issue(o battle.Order) error {
	if f.panics {
		panic("handle released by host")
	}
	if o.Kind == f.failOn {
		return errors.New("host rejected order")
	}
	f.issued = append(f.issued, o)
	return nil
}

func kinds(orders []battle.Order) []battle.OrderKind {
	out := make([]battle.OrderKind, len(orders))
	for i, o := range orders {
		out[i] = o.Kind
	}
	return out
}

func equalKinds(a, b []battle.OrderKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type field struct {
	inf, archers, cav *fakeFormation
	eNear, eStrong    *fakeFormation
	resolver          *Resolver
}

func newField() *field {
	f := &field{
		inf:     &fakeFormation{id: "p-inf", index: 0, side: battle.SidePlayer, role: sim.RoleInfantry, center: battle.Vec2{X: 0, Y: 0}, units: 10, health: 100},
		archers: &fakeFormation{id: "p-arc", index: 1, side: battle.SidePlayer, role: sim.RoleRanged, center: battle.Vec2{X: 0, Y: -20}, units: 6, health: 60},
		cav:     &fakeFormation{id: "p-cav", index: 2, side: battle.SidePlayer, role: sim.RoleCavalry, center: battle.Vec2{X: 20, Y: 10}, units: 4, health: 120},
		eNear:   &fakeFormation{id: "e-skirm", index: 0, side: battle.SideEnemy, role: sim.RoleRanged, center: battle.Vec2{X: 40, Y: 0}, units: 3, health: 50},
		eStrong: &fakeFormation{id: "e-main", index: 1, side: battle.SideEnemy, role: sim.RoleInfantry, center: battle.Vec2{X: 100, Y: 0}, units: 20, health: 100},
	}
	f.resolver = NewResolver(
		[]sim.Formation{f.inf, f.archers, f.cav, nil},
		[]sim.Formation{f.eNear, f.eStrong},
	)
	return f
}

func TestTranslateActionTable(t *testing.T) {
	tests := []struct {
		name  string
		cmd   battle.Command
		want  []battle.OrderKind
		check func(t *testing.T, orders []battle.Order)
	}{
		{
			name: "move",
			cmd:  battle.Command{Action: battle.ActionMove, Params: []string{"infantry", "12.5", "-4"}},
			want: []battle.OrderKind{battle.OrderMove},
			check: func(t *testing.T, o []battle.Order) {
				if !o[0].Position.Equal(battle.Vec2{X: 12.5, Y: -4}) {
					t.Errorf("position = %+v", o[0].Position)
				}
			},
		},
		{
			name: "attack nearest by default",
			cmd:  battle.Command{Action: battle.ActionAttack, Params: []string{"cavalry"}},
			want: []battle.OrderKind{battle.OrderEngage},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Target != "e-skirm" {
					t.Errorf("target = %q, want e-skirm", o[0].Target)
				}
			},
		},
		{
			name: "attack strongest",
			cmd:  battle.Command{Action: battle.ActionAttack, Params: []string{"cavalry", "strongest"}},
			want: []battle.OrderKind{battle.OrderEngage},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Target != "e-main" {
					t.Errorf("target = %q, want e-main", o[0].Target)
				}
			},
		},
		{
			name: "attack named enemy role",
			cmd:  battle.Command{Action: battle.ActionAttack, Params: []string{"0", "ranged"}},
			want: []battle.OrderKind{battle.OrderEngage},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Target != "e-skirm" {
					t.Errorf("target = %q", o[0].Target)
				}
			},
		},
		{
			name: "flank strongest",
			cmd:  battle.Command{Action: battle.ActionFlank, Params: []string{"cavalry"}},
			want: []battle.OrderKind{battle.OrderMove},
			check: func(t *testing.T, o []battle.Order) {
				// Line from (20,10) to (100,0); the target must sit on the
				// perpendicular through the enemy.
				line := battle.Vec2{X: 80, Y: -10}
				off := o[0].Position.Sub(battle.Vec2{X: 100, Y: 0})
				if math.Abs(off.Dot(line)) > 1e-6 {
					t.Errorf("flank offset %+v not perpendicular to %+v", off, line)
				}
				if off.Len() < minFlankOffset {
					t.Errorf("flank offset %v too small", off.Len())
				}
			},
		},
		{
			name: "hold",
			cmd:  battle.Command{Action: battle.ActionHold, Params: []string{"infantry"}},
			want: []battle.OrderKind{battle.OrderSpacing, battle.OrderFace, battle.OrderHold},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Spacing != battle.SpacingLoose {
					t.Errorf("spacing = %q", o[0].Spacing)
				}
				if !o[1].Position.Equal(battle.Vec2{X: 40, Y: 0}) {
					t.Errorf("faces %+v, want nearest enemy", o[1].Position)
				}
			},
		},
		{
			name: "charge",
			cmd:  battle.Command{Action: battle.ActionCharge, Params: []string{"cav"}},
			want: []battle.OrderKind{battle.OrderSpacing, battle.OrderCharge, battle.OrderFace},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Spacing != battle.SpacingWide {
					t.Errorf("spacing = %q", o[0].Spacing)
				}
			},
		},
		{
			name: "follow",
			cmd:  battle.Command{Action: battle.ActionFollow, Params: []string{"ranged", "infantry"}},
			want: []battle.OrderKind{battle.OrderFollow},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Target != "p-inf" {
					t.Errorf("leader = %q", o[0].Target)
				}
			},
		},
		{
			name: "retreat",
			cmd:  battle.Command{Action: battle.ActionRetreat, Params: []string{"infantry"}},
			want: []battle.OrderKind{battle.OrderSpacing, battle.OrderRetreat, battle.OrderFace},
			check: func(t *testing.T, o []battle.Order) {
				if o[1].Position.X >= 0 {
					t.Errorf("retreat heads toward the enemy: %+v", o[1].Position)
				}
			},
		},
		{
			name: "change formation",
			cmd:  battle.Command{Action: battle.ActionChangeFormation, Params: []string{"infantry", "Shield Wall"}},
			want: []battle.OrderKind{battle.OrderArrangement},
			check: func(t *testing.T, o []battle.Order) {
				if o[0].Arrangement != battle.ArrangementShieldWall {
					t.Errorf("arrangement = %q", o[0].Arrangement)
				}
			},
		},
		{
			name: "rally to point",
			cmd:  battle.Command{Action: battle.ActionRally, Params: []string{"ranged", "5", "5"}},
			want: []battle.OrderKind{battle.OrderMove},
			check: func(t *testing.T, o []battle.Order) {
				if !o[0].Urgent || !o[0].Position.Equal(battle.Vec2{X: 5, Y: 5}) {
					t.Errorf("rally = %+v", o[0])
				}
			},
		},
		{
			name: "rally to army centre",
			cmd:  battle.Command{Action: battle.ActionRally, Params: []string{"ranged"}},
			want: []battle.OrderKind{battle.OrderMove},
			check: func(t *testing.T, o []battle.Order) {
				want := battle.Centroid([]battle.Vec2{{X: 0, Y: 0}, {X: 0, Y: -20}, {X: 20, Y: 10}})
				if !o[0].Urgent || o[0].Position.Dist(want) > 1e-9 {
					t.Errorf("rally = %+v, want %+v", o[0], want)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fld := newField()
			f, orders, err := NewTranslator().Apply(tt.cmd, fld.resolver)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got := kinds(orders); !equalKinds(got, tt.want) {
				t.Fatalf("orders = %v, want %v", got, tt.want)
			}
			issued := f.(*fakeFormation).issued
			if !equalKinds(kinds(issued), tt.want) {
				t.Errorf("issued = %v, want %v", kinds(issued), tt.want)
			}
			for _, o := range issued {
				if o.Formation != f.ID() {
					t.Errorf("order formation = %q, want %q", o.Formation, f.ID())
				}
			}
			tt.check(t, orders)
		})
	}
}

func TestTranslateDropsUnknownAction(t *testing.T) {
	fld := newField()
	d := battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"infantry"}},
		{Action: battle.ActionUnknown, Raw: "dance", Params: []string{"ranged"}},
		{Action: battle.ActionCharge, Params: []string{"cavalry"}},
	}}

	res := NewTranslator().Translate(d, fld.resolver)

	if len(res.Applied) != len(d.Commands)-1 {
		t.Fatalf("applied = %d, want %d", len(res.Applied), len(d.Commands)-1)
	}
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, ErrUnknownAction) {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(fld.archers.issued) != 0 {
		t.Errorf("unknown action issued orders: %v", kinds(fld.archers.issued))
	}
	if got := res.Actions(); len(got) != 2 || got[0] != "hold" || got[1] != "charge" {
		t.Errorf("Actions() = %v", got)
	}
}

func TestTranslateSkipsUnresolvableFormation(t *testing.T) {
	fld := newField()
	d := battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"horsearcher"}},
		{Action: battle.ActionHold, Params: []string{"7"}},
		{Action: battle.ActionHold},
		{Action: battle.ActionRetreat, Params: []string{"ranged"}},
	}}

	res := NewTranslator().Translate(d, fld.resolver)

	if len(res.Skipped) != 3 {
		t.Fatalf("skipped = %d, want 3", len(res.Skipped))
	}
	for _, s := range res.Skipped {
		if !errors.Is(s.Err, ErrUnknownFormation) || s.Reason != "unknown_formation" {
			t.Errorf("skip = %v (%s)", s.Err, s.Reason)
		}
	}
	if len(res.Applied) != 1 || res.Applied[0].Formation != "p-arc" {
		t.Errorf("applied = %+v", res.Applied)
	}
}

func TestTranslateBadParameters(t *testing.T) {
	tests := []battle.Command{
		{Action: battle.ActionMove, Params: []string{"infantry", "north"}},
		{Action: battle.ActionMove, Params: []string{"infantry", "1", "NaN"}},
		{Action: battle.ActionChangeFormation, Params: []string{"infantry", "blob"}},
		{Action: battle.ActionFlank, Params: []string{"cavalry", "up"}},
		{Action: battle.ActionFollow, Params: []string{"infantry", "0"}},
		{Action: battle.ActionRally, Params: []string{"infantry", "x", "y"}},
	}
	for _, cmd := range tests {
		fld := newField()
		_, _, err := NewTranslator().Apply(cmd, fld.resolver)
		if !errors.Is(err, ErrBadParameter) {
			t.Errorf("%s %v: err = %v, want ErrBadParameter", cmd.Name(), cmd.Params, err)
		}
		if len(fld.inf.issued)+len(fld.cav.issued) != 0 {
			t.Errorf("%s %v issued orders despite bad parameters", cmd.Name(), cmd.Params)
		}
	}
}

func TestTranslateNoEnemies(t *testing.T) {
	inf := &fakeFormation{id: "p-inf", role: sim.RoleInfantry, units: 5, health: 100}
	r := NewResolver([]sim.Formation{inf}, nil)
	tr := NewTranslator()

	_, orders, err := tr.Apply(battle.Command{Action: battle.ActionHold, Params: []string{"infantry"}}, r)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if !equalKinds(kinds(orders), []battle.OrderKind{battle.OrderSpacing, battle.OrderHold}) {
		t.Errorf("hold without enemies = %v", kinds(orders))
	}
	if _, _, err := tr.Apply(battle.Command{Action: battle.ActionFlank, Params: []string{"infantry"}}, r); !errors.Is(err, ErrUnknownFormation) {
		t.Errorf("flank without enemies: err = %v", err)
	}
}

func TestTranslateIssueFailureStopsCommandOnly(t *testing.T) {
	fld := newField()
	fld.inf.failOn = battle.OrderFace
	d := battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"infantry"}},
		{Action: battle.ActionHold, Params: []string{"ranged"}},
	}}

	res := NewTranslator().Translate(d, fld.resolver)

	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "issue_failed" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(fld.inf.issued) != 1 {
		t.Errorf("infantry received %v, want only the spacing order", kinds(fld.inf.issued))
	}
	if len(res.Applied) != 1 {
		t.Errorf("applied = %d, want 1", len(res.Applied))
	}
}

func TestTranslateHandlePanicCostsOnlyItsCommand(t *testing.T) {
	fld := newField()
	fld.inf.panics = true
	d := battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"infantry"}},
		{Action: battle.ActionCharge, Params: []string{"cavalry"}},
	}}

	res := NewTranslator().Translate(d, fld.resolver)

	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, ErrHandleFault) || res.Skipped[0].Reason != "handle_fault" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(res.Applied) != 1 || res.Applied[0].Formation != "p-cav" {
		t.Errorf("applied = %+v", res.Applied)
	}
}

func TestResolverDropsTypedNilHandles(t *testing.T) {
	var gone *fakeFormation
	inf := &fakeFormation{id: "p-inf", index: 1, role: sim.RoleInfantry, units: 5, health: 100}
	enemy := &fakeFormation{id: "e-inf", side: battle.SideEnemy, role: sim.RoleInfantry, center: battle.Vec2{X: 30}, units: 5, health: 100}
	r := NewResolver([]sim.Formation{gone, inf}, []sim.Formation{gone, enemy})

	res := NewTranslator().Translate(battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"0"}},
		{Action: battle.ActionAttack, Params: []string{"infantry"}},
	}}, r)

	if len(res.Skipped) != 1 || res.Skipped[0].Reason != "unknown_formation" {
		t.Fatalf("skipped = %+v", res.Skipped)
	}
	if len(res.Applied) != 1 || res.Applied[0].Orders[0].Target != "e-inf" {
		t.Errorf("applied = %+v", res.Applied)
	}
}

func TestTranslateNilResolver(t *testing.T) {
	res := NewTranslator().Translate(battle.Decision{Commands: []battle.Command{
		{Action: battle.ActionHold, Params: []string{"infantry"}},
	}}, nil)
	if len(res.Skipped) != 1 || !errors.Is(res.Skipped[0].Err, ErrNilFormation) {
		t.Errorf("skipped = %+v", res.Skipped)
	}
}

func TestResolverPrefersFormationWithUnits(t *testing.T) {
	empty := &fakeFormation{id: "a", index: 0, role: sim.RoleInfantry}
	full := &fakeFormation{id: "b", index: 1, role: sim.RoleInfantry, units: 3}
	r := NewResolver([]sim.Formation{empty, full}, nil)

	f, err := r.Resolve("Infantry")
	if err != nil || f.ID() != "b" {
		t.Errorf("Resolve(infantry) = %v, %v; want b", f, err)
	}
	f, err = r.Resolve("a")
	if err != nil || f.ID() != "a" {
		t.Errorf("Resolve(a) by id = %v, %v", f, err)
	}
	f, err = r.Resolve("0")
	if err != nil || f.ID() != "a" {
		t.Errorf("Resolve(0) by index = %v, %v", f, err)
	}
	if len(r.Own()) != 1 {
		t.Errorf("Own() = %d formations, want 1 non-empty", len(r.Own()))
	}
}
