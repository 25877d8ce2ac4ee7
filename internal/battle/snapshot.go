// Package battle holds the value types shared by the decision pipeline:
// point-in-time battle snapshots, commander context, the closed action
// vocabulary and the concrete orders it translates into.
package battle

// Side identifies which army a unit or formation fights for.
type Side string

const (
	SidePlayer Side = "player"
	SideEnemy  Side = "enemy"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

// NoFormation marks a unit that belongs to no formation.
const NoFormation = "none"

// UnitSnapshot is a copy of one unit's state at capture time.
type UnitSnapshot struct {
	ID        string  `json:"id"`
	Type      string  `json:"type,omitempty"`
	Position  Vec2    `json:"position"`
	Facing    Vec2    `json:"facing"`
	Health    float64 `json:"health"`
	Formation string  `json:"formation"`
	Player    bool    `json:"isPlayer"`
	Ranged    bool    `json:"isRanged"`
	Mounted   bool    `json:"isMounted"`
	Routing   bool    `json:"isRouting,omitempty"`
}

// Side returns the unit's affiliation.
func (u UnitSnapshot) Side() Side {
	if u.Player {
		return SidePlayer
	}
	return SideEnemy
}

// BattleSnapshot is an immutable capture of the battlefield. Builders hand out
// fresh slices; holders must not modify Units.
type BattleSnapshot struct {
	Time   float64        `json:"time"`
	Extent Rect           `json:"extent"`
	Units  []UnitSnapshot `json:"units"`
}

// Empty reports whether the snapshot carries no battle, the no-op result of
// sampling a simulation with nothing to sample.
func (s BattleSnapshot) Empty() bool { return len(s.Units) == 0 }

// Count returns the number of units on side, optionally skipping routing ones.
func (s BattleSnapshot) Count(side Side, includeRouting bool) int {
	n := 0
	for _, u := range s.Units {
		if u.Side() != side {
			continue
		}
		if u.Routing && !includeRouting {
			continue
		}
		n++
	}
	return n
}
