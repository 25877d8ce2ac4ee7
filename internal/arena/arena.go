// Package arena is a small deterministic battle simulation used to drive the
// decision pipeline without a host game. It implements sim.Simulation.
package arena

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

var ErrFormationDestroyed = errors.New("formation has no units left")

const (
	urgentSpeedMul  = 1.5
	chargeSpeedMul  = 1.5
	chargeDamageMul = 1.5
	arrivalRadius   = 1.0
)

type mode int

const (
	modeHold mode = iota
	modeMove
	modeEngage
	modeRetreat
	modeFollow
)

type unit struct {
	state     sim.UnitState
	maxHealth float64
	speed     float64
	damage    float64
	reach     float64
}

// Formation is an arena formation. Every order it receives is recorded.
type Formation struct {
	arena *Arena
	id    string
	index int
	side  battle.Side
	role  sim.Role
	units []*unit

	mode        mode
	dest        battle.Vec2
	target      string
	urgent      bool
	charging    bool
	facing      battle.Vec2
	spacing     battle.Spacing
	arrangement battle.Arrangement

	orders []battle.Order
}

func (f *Formation) ID() string        { return f.id }
func (f *Formation) Index() int        { return f.index }
func (f *Formation) Side() battle.Side { return f.side }
func (f *Formation) Role() sim.Role    { return f.role }

// Units returns copies of the formation's living units.
func (f *Formation) Units() []sim.UnitState {
	out := make([]sim.UnitState, len(f.units))
	for i, u := range f.units {
		out[i] = u.state
	}
	return out
}

// Center is the centroid of the formation's units.
func (f *Formation) Center() battle.Vec2 {
	pts := make([]battle.Vec2, len(f.units))
	for i, u := range f.units {
		pts[i] = u.state.Position
	}
	return battle.Centroid(pts)
}

// Orders returns every order issued to the formation, oldest first.
func (f *Formation) Orders() []battle.Order {
	return append([]battle.Order(nil), f.orders...)
}

// Spacing returns the last spacing ordered.
func (f *Formation) Spacing() battle.Spacing { return f.spacing }

// Arrangement returns the last arrangement ordered.
func (f *Formation) Arrangement() battle.Arrangement { return f.arrangement }

// Issue applies an order to the formation.
func (f *Formation) Issue(o battle.Order) error {
	if len(f.units) == 0 {
		return fmt.Errorf("%s: %w", f.id, ErrFormationDestroyed)
	}
	switch o.Kind {
	case battle.OrderMove:
		f.mode, f.dest, f.urgent, f.charging = modeMove, f.arena.clamp(o.Position), o.Urgent, false
	case battle.OrderEngage:
		f.mode, f.target, f.charging = modeEngage, o.Target, false
	case battle.OrderCharge:
		f.mode, f.target, f.charging = modeEngage, o.Target, true
	case battle.OrderRetreat:
		f.mode, f.charging = modeRetreat, false
		f.dest = f.arena.clamp(o.Position)
		if o.Position.IsZero() {
			f.dest = f.arena.retreatPoint(f)
		}
	case battle.OrderHold:
		f.mode, f.charging = modeHold, false
	case battle.OrderFace:
		f.facing = o.Position.Sub(f.Center()).Norm()
	case battle.OrderSpacing:
		f.spacing = o.Spacing
	case battle.OrderArrangement:
		f.arrangement = o.Arrangement
	case battle.OrderFollow:
		if f.arena.formation(o.Target) == nil {
			return fmt.Errorf("%s: follow unknown formation %q", f.id, o.Target)
		}
		f.mode, f.target, f.charging = modeFollow, o.Target, false
	default:
		return fmt.Errorf("%s: unsupported order %q", f.id, o.Kind)
	}
	f.orders = append(f.orders, o)
	return nil
}

// Arena is a running scenario. It is not safe for concurrent use; Step and
// the decision loop's Tick share one goroutine.
type Arena struct {
	scenario *Scenario
	extent   battle.Rect
	time     float64
	called   bool

	formations map[battle.Side][]*Formation
}

// New builds an arena from a validated scenario.
func New(sc *Scenario) *Arena {
	a := &Arena{
		scenario:   sc,
		extent:     sc.Extent,
		formations: make(map[battle.Side][]*Formation),
	}
	a.formations[battle.SidePlayer] = a.build(battle.SidePlayer, sc.Player)
	a.formations[battle.SideEnemy] = a.build(battle.SideEnemy, sc.Enemy)
	return a
}

func (a *Arena) build(side battle.Side, specs []FormationSpec) []*Formation {
	out := make([]*Formation, 0, len(specs))
	for i, spec := range specs {
		f := &Formation{arena: a, id: spec.ID, index: i, side: side, spacing: battle.SpacingTight}
		ranged, mounted := 0, 0
		n := 0
		for _, g := range spec.Groups {
			for k := 0; k < g.Count; k++ {
				// Lay units out in ranks of ten around the formation position.
				offset := battle.Vec2{X: float64(n/10) * 2, Y: float64(n%10)*2 - 9}
				f.units = append(f.units, &unit{
					state: sim.UnitState{
						ID:        spec.ID + "-" + strconv.Itoa(n),
						Type:      g.Type,
						Position:  a.clamp(spec.Position.Add(offset)),
						Health:    g.Health,
						Formation: spec.ID,
						Side:      side,
						Ranged:    g.Ranged,
						Mounted:   g.Mounted,
					},
					maxHealth: g.Health,
					speed:     g.Speed,
					damage:    g.Damage,
					reach:     g.Range,
				})
				if g.Ranged {
					ranged++
				}
				if g.Mounted {
					mounted++
				}
				n++
			}
		}
		f.role = sim.RoleOf(ranged*2 > n, mounted*2 > n)
		f.dest = f.Center()
		if spec.Stance == stanceEngage {
			f.mode = modeEngage
		}
		out = append(out, f)
	}
	return out
}

// Scenario returns the scenario the arena was built from.
func (a *Arena) Scenario() *Scenario { return a.scenario }

// InBattle reports whether the battle is still running.
func (a *Arena) InBattle() bool { return !a.called }

func (a *Arena) Time() float64       { return a.time }
func (a *Arena) Extent() battle.Rect { return a.extent }

// Units lists the living units on side.
func (a *Arena) Units(side battle.Side) []sim.UnitState {
	var out []sim.UnitState
	for _, f := range a.formations[side] {
		out = append(out, f.Units()...)
	}
	return out
}

// Formations lists every formation on side, including destroyed ones.
func (a *Arena) Formations(side battle.Side) []sim.Formation {
	fs := a.formations[side]
	out := make([]sim.Formation, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}

// Formation returns a formation by id, or nil.
func (a *Arena) Formation(id string) *Formation {
	return a.formation(id)
}

func (a *Arena) formation(id string) *Formation {
	for _, f := range a.all() {
		if f.id == id {
			return f
		}
	}
	return nil
}

// all lists every formation, player side first.
func (a *Arena) all() []*Formation {
	out := make([]*Formation, 0, len(a.formations[battle.SidePlayer])+len(a.formations[battle.SideEnemy]))
	out = append(out, a.formations[battle.SidePlayer]...)
	return append(out, a.formations[battle.SideEnemy]...)
}

// clamp keeps p inside the field. An unset extent leaves p unchanged.
func (a *Arena) clamp(p battle.Vec2) battle.Vec2 {
	if a.extent.IsZero() {
		return p
	}
	return a.extent.Clamp(p)
}

// Decided reports whether one side has no active units left.
func (a *Arena) Decided() bool {
	return sim.ActiveCount(a, battle.SidePlayer) == 0 || sim.ActiveCount(a, battle.SideEnemy) == 0
}

// Step advances the battle by dt seconds: formations move toward their
// orders, units strike the nearest enemy in reach, then the dead are removed
// and the badly hurt rout.
func (a *Arena) Step(dt float64) {
	if a.called || dt <= 0 {
		return
	}
	a.time += dt

	for _, f := range a.all() {
		a.move(f, dt)
	}

	damage := make(map[*unit]float64)
	for _, f := range a.all() {
		for _, u := range f.units {
			if u.state.Routing {
				continue
			}
			t := a.nearestUnit(f.side.Opposite(), u.state.Position)
			if t == nil || t.state.Position.Dist(u.state.Position) > u.reach {
				continue
			}
			d := u.damage * dt
			if f.charging {
				d *= chargeDamageMul
			}
			damage[t] += d
		}
	}

	for _, f := range a.all() {
		alive := f.units[:0]
		for _, u := range f.units {
			u.state.Health -= damage[u]
			if u.state.Health <= 0 {
				continue
			}
			if u.state.Health < u.maxHealth*a.scenario.RoutThreshold {
				u.state.Routing = true
			}
			alive = append(alive, u)
		}
		f.units = alive
	}

	if a.scenario.Duration > 0 && a.time >= a.scenario.Duration {
		a.called = true
		log.Info().Str("scenario", a.scenario.Name).Float64("time", a.time).Msg("Battle called at time limit")
	}
}

func (a *Arena) move(f *Formation, dt float64) {
	for _, u := range f.units {
		if u.state.Routing {
			if e := a.nearestUnit(f.side.Opposite(), u.state.Position); e != nil {
				away := u.state.Position.Sub(e.state.Position).Norm()
				u.state.Position = a.clamp(u.state.Position.Add(away.Scale(u.speed * dt)))
			}
		}
	}

	var goal battle.Vec2
	speedMul := 1.0
	switch f.mode {
	case modeHold:
		return
	case modeMove, modeRetreat:
		goal = f.dest
		if f.urgent {
			speedMul = urgentSpeedMul
		}
	case modeEngage:
		t := a.formation(f.target)
		if t == nil || len(t.units) == 0 {
			t = a.nearestFormation(f.side.Opposite(), f.Center())
		}
		if t == nil {
			return
		}
		goal = t.Center()
		if f.charging {
			speedMul = chargeSpeedMul
		}
	case modeFollow:
		t := a.formation(f.target)
		if t == nil || len(t.units) == 0 {
			f.mode = modeHold
			return
		}
		goal = t.Center()
	}

	center := f.Center()
	delta := goal.Sub(center)
	dist := delta.Len()
	if dist <= arrivalRadius {
		if f.mode == modeMove || f.mode == modeRetreat {
			f.mode, f.urgent = modeHold, false
		}
		return
	}
	dir := delta.Scale(1 / dist)
	for _, u := range f.units {
		if u.state.Routing {
			continue
		}
		step := math.Min(dist, u.speed*speedMul*dt)
		u.state.Position = a.clamp(u.state.Position.Add(dir.Scale(step)))
		u.state.Facing = dir
	}
}

func (a *Arena) nearestUnit(side battle.Side, p battle.Vec2) *unit {
	var best *unit
	bestDist := math.Inf(1)
	for _, f := range a.formations[side] {
		for _, u := range f.units {
			if d := u.state.Position.Dist(p); d < bestDist {
				best, bestDist = u, d
			}
		}
	}
	return best
}

func (a *Arena) nearestFormation(side battle.Side, p battle.Vec2) *Formation {
	var best *Formation
	bestDist := math.Inf(1)
	for _, f := range a.formations[side] {
		if len(f.units) == 0 {
			continue
		}
		if d := f.Center().Dist(p); d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}

// retreatPoint is the point on the field farthest from the enemy along the
// line from the nearest enemy formation.
func (a *Arena) retreatPoint(f *Formation) battle.Vec2 {
	center := f.Center()
	e := a.nearestFormation(f.side.Opposite(), center)
	if e == nil {
		return center
	}
	away := center.Sub(e.Center()).Norm()
	return a.clamp(center.Add(away.Scale(1000)))
}
