package command

import (
	"strconv"
	"strings"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

var roleAliases = map[string]sim.Role{
	"infantry":     sim.RoleInfantry,
	"inf":          sim.RoleInfantry,
	"foot":         sim.RoleInfantry,
	"melee":        sim.RoleInfantry,
	"ranged":       sim.RoleRanged,
	"archer":       sim.RoleRanged,
	"archers":      sim.RoleRanged,
	"missile":      sim.RoleRanged,
	"cavalry":      sim.RoleCavalry,
	"cav":          sim.RoleCavalry,
	"horse":        sim.RoleCavalry,
	"horsearcher":  sim.RoleHorseArcher,
	"horsearchers": sim.RoleHorseArcher,
}

// Resolver looks up formation handles for one translation pass.
type Resolver struct {
	own   []sim.Formation
	enemy []sim.Formation
}

// NewResolver builds a resolver over explicit formation lists. Nil handles,
// including typed nils whose ID panics, are dropped.
func NewResolver(own, enemy []sim.Formation) *Resolver {
	return &Resolver{own: compact(own), enemy: compact(enemy)}
}

// ResolverFor builds a resolver for the side controlled by the pipeline.
func ResolverFor(s sim.Simulation, side battle.Side) *Resolver {
	return NewResolver(s.Formations(side), s.Formations(side.Opposite()))
}

// Own returns the controlled side's non-empty formations.
func (r *Resolver) Own() []sim.Formation { return nonEmpty(r.own) }

// Enemy returns the opposing side's non-empty formations.
func (r *Resolver) Enemy() []sim.Formation { return nonEmpty(r.enemy) }

// Resolve finds a controlled formation by index, id or role name.
func (r *Resolver) Resolve(selector string) (sim.Formation, error) {
	return lookup(r.own, selector)
}

// ResolveEnemy finds an enemy formation by index, id or role name.
func (r *Resolver) ResolveEnemy(selector string) (sim.Formation, error) {
	return lookup(r.enemy, selector)
}

// NearestEnemy returns the enemy formation closest to p, or nil.
func (r *Resolver) NearestEnemy(p battle.Vec2) sim.Formation {
	var best sim.Formation
	bestDist := 0.0
	for _, f := range r.Enemy() {
		if d := f.Center().Dist(p); best == nil || d < bestDist {
			best, bestDist = f, d
		}
	}
	return best
}

// StrongestEnemy returns the enemy formation with the most non-routing
// health, or nil.
func (r *Resolver) StrongestEnemy() sim.Formation {
	var best sim.Formation
	bestStrength := 0.0
	for _, f := range r.Enemy() {
		if s := sim.Strength(f); best == nil || s > bestStrength {
			best, bestStrength = f, s
		}
	}
	return best
}

func lookup(formations []sim.Formation, selector string) (sim.Formation, error) {
	key := strings.ToLower(strings.TrimSpace(selector))
	if key == "" {
		return nil, ErrUnknownFormation
	}

	if n, err := strconv.Atoi(key); err == nil {
		for _, f := range formations {
			if f.Index() == n {
				return f, nil
			}
		}
		return nil, ErrUnknownFormation
	}

	for _, f := range formations {
		if strings.EqualFold(f.ID(), key) {
			return f, nil
		}
	}

	role, ok := roleAliases[strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)]
	if !ok {
		return nil, ErrUnknownFormation
	}
	// Prefer a formation that still has units.
	var empty sim.Formation
	for _, f := range formations {
		if f.Role() != role {
			continue
		}
		if len(f.Units()) > 0 {
			return f, nil
		}
		if empty == nil {
			empty = f
		}
	}
	if empty != nil {
		return empty, nil
	}
	return nil, ErrUnknownFormation
}

func compact(in []sim.Formation) []sim.Formation {
	out := make([]sim.Formation, 0, len(in))
	for _, f := range in {
		if usable(f) {
			out = append(out, f)
		}
	}
	return out
}

func usable(f sim.Formation) (ok bool) {
	if f == nil {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	f.ID()
	return true
}

func nonEmpty(in []sim.Formation) []sim.Formation {
	out := make([]sim.Formation, 0, len(in))
	for _, f := range in {
		if len(f.Units()) > 0 {
			out = append(out, f)
		}
	}
	return out
}
