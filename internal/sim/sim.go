// Package sim declares what the decision pipeline needs from the host
// simulation. One adapter per host engine version implements these.
package sim

import "github.com/mrblmoore/hannibal-ai/internal/battle"

// Role classifies a formation by what its units can do.
type Role string

const (
	RoleInfantry    Role = "infantry"
	RoleRanged      Role = "ranged"
	RoleCavalry     Role = "cavalry"
	RoleHorseArcher Role = "horsearcher"
)

// RoleOf derives a role from capability flags.
func RoleOf(ranged, mounted bool) Role {
	switch {
	case ranged && mounted:
		return RoleHorseArcher
	case mounted:
		return RoleCavalry
	case ranged:
		return RoleRanged
	default:
		return RoleInfantry
	}
}

// UnitState is the live state of one unit as reported by the host.
type UnitState struct {
	ID        string
	Type      string
	Position  battle.Vec2
	Facing    battle.Vec2
	Health    float64
	Formation string
	Side      battle.Side
	Ranged    bool
	Mounted   bool
	Routing   bool
}

// Formation is a host-owned handle for a group of units sharing one order.
// The pipeline never retains handles across battles.
type Formation interface {
	ID() string
	Index() int
	Side() battle.Side
	Role() Role
	Units() []UnitState
	Center() battle.Vec2
	Issue(o battle.Order) error
}

// Simulation is the host battle as seen from the pipeline.
type Simulation interface {
	// InBattle reports whether a battle is loaded at all.
	InBattle() bool
	Time() float64
	Extent() battle.Rect
	Units(side battle.Side) []UnitState
	// Formations lists live handles. Nil or freed handles are skipped by
	// the translator, and a handle that panics costs only its own command.
	Formations(side battle.Side) []Formation
}

// ActiveCount counts units on side that are not routing.
func ActiveCount(s Simulation, side battle.Side) int {
	n := 0
	for _, u := range s.Units(side) {
		if !u.Routing {
			n++
		}
	}
	return n
}

// Strength sums the health of a formation's non-routing units.
func Strength(f Formation) float64 {
	total := 0.0
	for _, u := range f.Units() {
		if !u.Routing {
			total += u.Health
		}
	}
	return total
}
