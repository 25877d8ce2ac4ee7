// Package snapshot captures immutable battle snapshots from the host
// simulation and derives commander ids from force composition.
package snapshot

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

// Capture copies the live state of every unit into a new snapshot. It returns
// an empty snapshot when no battle is loaded.
func Capture(s sim.Simulation) battle.BattleSnapshot {
	if s == nil || !s.InBattle() {
		return battle.BattleSnapshot{}
	}

	player := s.Units(battle.SidePlayer)
	enemy := s.Units(battle.SideEnemy)
	units := make([]battle.UnitSnapshot, 0, len(player)+len(enemy))
	for _, u := range player {
		units = append(units, fromState(u))
	}
	for _, u := range enemy {
		units = append(units, fromState(u))
	}
	if len(units) == 0 {
		return battle.BattleSnapshot{}
	}

	extent := s.Extent()
	if extent.IsZero() {
		points := make([]battle.Vec2, len(units))
		for i, u := range units {
			points[i] = u.Position
		}
		extent = battle.Bounds(points)
	}

	return battle.BattleSnapshot{
		Time:   s.Time(),
		Extent: extent,
		Units:  units,
	}
}

func fromState(u sim.UnitState) battle.UnitSnapshot {
	formation := u.Formation
	if formation == "" {
		formation = battle.NoFormation
	}
	return battle.UnitSnapshot{
		ID:        u.ID,
		Type:      u.Type,
		Position:  u.Position,
		Facing:    u.Facing,
		Health:    u.Health,
		Formation: formation,
		Player:    u.Side == battle.SidePlayer,
		Ranged:    u.Ranged,
		Mounted:   u.Mounted,
		Routing:   u.Routing,
	}
}

// CommanderID hashes the unit-type multiset of side into a stable id. Unit
// order does not matter; units without a type are keyed by role.
func CommanderID(snap battle.BattleSnapshot, side battle.Side) string {
	counts := make(map[string]int)
	for _, u := range snap.Units {
		if u.Side() != side {
			continue
		}
		key := u.Type
		if key == "" {
			key = string(sim.RoleOf(u.Ranged, u.Mounted))
		}
		counts[key]++
	}
	if len(counts) == 0 {
		return ""
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		d.WriteString(k)
		d.WriteString("=")
		d.WriteString(strconv.Itoa(counts[k]))
		d.WriteString(";")
	}
	return fmt.Sprintf("cmd-%016x", d.Sum64())
}
