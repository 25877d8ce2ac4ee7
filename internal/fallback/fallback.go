// Package fallback decides formation orders from the force ratio alone. It
// needs no network and no memory.
package fallback

import (
	"strconv"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

const (
	retreatRatio = 0.5
	chargeRatio  = 1.5
)

// Decide picks retreat when outnumbered more than two to one, charge when
// outnumbering by more than half again, and hold otherwise. The boundaries
// themselves hold.
func Decide(playerActive, enemyActive int) battle.Action {
	p, e := float64(playerActive), float64(enemyActive)
	switch {
	case p < retreatRatio*e:
		return battle.ActionRetreat
	case p > chargeRatio*e:
		return battle.ActionCharge
	default:
		return battle.ActionHold
	}
}

// Plan builds one command per non-empty formation, each selected by index.
func Plan(action battle.Action, formations []sim.Formation) battle.Decision {
	var d battle.Decision
	for _, f := range formations {
		if f == nil || len(f.Units()) == 0 {
			continue
		}
		d.Commands = append(d.Commands, battle.Command{
			Action: action,
			Params: []string{strconv.Itoa(f.Index())},
		})
	}
	return d
}

// Controller applies the heuristic for one controlled side.
type Controller struct {
	side battle.Side
}

// NewController creates a controller for side.
func NewController(side battle.Side) *Controller {
	return &Controller{side: side}
}

// Side returns the controlled side.
func (c *Controller) Side() battle.Side { return c.side }

// Decision counts non-routing units on both sides and plans the matching
// action for every controlled formation.
func (c *Controller) Decision(s sim.Simulation) battle.Decision {
	action := Decide(sim.ActiveCount(s, c.side), sim.ActiveCount(s, c.side.Opposite()))
	d := Plan(action, s.Formations(c.side))
	d.Rationale = "fallback: force ratio " + action.String()
	return d
}
