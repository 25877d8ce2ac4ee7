// Package command turns abstract decisions into concrete formation orders.
package command

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/metrics"
	"github.com/mrblmoore/hannibal-ai/internal/sim"
)

var (
	ErrUnknownAction    = errors.New("unknown action")
	ErrUnknownFormation = errors.New("unknown formation")
	ErrNilFormation     = errors.New("nil formation")
	ErrBadParameter     = errors.New("bad parameter")
	ErrHandleFault      = errors.New("formation handle fault")
)

const (
	minFlankOffset  = 30.0
	retreatDistance = 50.0
)

// Applied is a command whose orders were all issued.
type Applied struct {
	Command   battle.Command `json:"command"`
	Formation string         `json:"formation"`
	Orders    []battle.Order `json:"orders"`
}

// Skipped is a command that was dropped, with the reason.
type Skipped struct {
	Command battle.Command `json:"command"`
	Err     error          `json:"-"`
	Reason  string         `json:"reason"`
}

// Result reports what one Translate call did, in command order.
type Result struct {
	Applied []Applied `json:"applied"`
	Skipped []Skipped `json:"skipped"`
}

// Actions returns the action names of every applied command.
func (r Result) Actions() []string {
	out := make([]string, len(r.Applied))
	for i, a := range r.Applied {
		out[i] = a.Command.Name()
	}
	return out
}

// Translator issues orders for decisions. It holds no state between calls.
type Translator struct{}

// NewTranslator creates a Translator.
func NewTranslator() *Translator { return &Translator{} }

// Translate applies each command in order. A command that cannot be applied
// is logged and skipped; the rest still run. Orders of one command are issued
// before the next command is resolved.
func (t *Translator) Translate(d battle.Decision, r *Resolver) Result {
	var res Result
	for i, cmd := range d.Commands {
		id, orders, err := t.applyOne(cmd, r)
		if err != nil {
			reason := skipReason(err)
			metrics.CommandsSkipped.WithLabelValues(reason).Inc()
			log.Warn().Err(err).
				Int("index", i).
				Str("action", cmd.Name()).
				Strs("params", cmd.Params).
				Msg("Dropped command")
			res.Skipped = append(res.Skipped, Skipped{Command: cmd, Err: err, Reason: reason})
			continue
		}
		metrics.CommandsApplied.WithLabelValues(cmd.Action.String()).Inc()
		log.Debug().
			Str("action", cmd.Name()).
			Str("formation", id).
			Int("orders", len(orders)).
			Msg("Applied command")
		res.Applied = append(res.Applied, Applied{Command: cmd, Formation: id, Orders: orders})
	}
	return res
}

// applyOne runs Apply with a host handle panic confined to this command.
func (t *Translator) applyOne(cmd battle.Command, r *Resolver) (id string, orders []battle.Order, err error) {
	defer func() {
		if p := recover(); p != nil {
			id, orders, err = "", nil, fmt.Errorf("%w: %v", ErrHandleFault, p)
		}
	}()
	f, orders, err := t.Apply(cmd, r)
	if err != nil {
		return "", orders, err
	}
	return f.ID(), orders, nil
}

// Apply resolves and executes a single command, returning the formation
// and the orders issued to it.
func (t *Translator) Apply(cmd battle.Command, r *Resolver) (sim.Formation, []battle.Order, error) {
	if cmd.Action == battle.ActionUnknown {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Raw)
	}
	if r == nil {
		return nil, nil, ErrNilFormation
	}
	f, err := r.Resolve(cmd.Selector())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %q", err, cmd.Selector())
	}
	if f == nil {
		return nil, nil, ErrNilFormation
	}

	orders, err := t.plan(cmd, f, r)
	if err != nil {
		return f, nil, err
	}
	for i := range orders {
		orders[i].Formation = f.ID()
		if err := f.Issue(orders[i]); err != nil {
			return f, orders[:i], fmt.Errorf("issue %s to %s: %w", orders[i].Kind, f.ID(), err)
		}
	}
	return f, orders, nil
}

func (t *Translator) plan(cmd battle.Command, f sim.Formation, r *Resolver) ([]battle.Order, error) {
	center := f.Center()
	nearest := r.NearestEnemy(center)

	switch cmd.Action {
	case battle.ActionMove:
		pos, err := position(cmd, 1)
		if err != nil {
			return nil, err
		}
		return []battle.Order{{Kind: battle.OrderMove, Position: pos}}, nil

	case battle.ActionAttack:
		target, err := attackTarget(cmd.Param(1), center, r)
		if err != nil {
			return nil, err
		}
		return []battle.Order{{Kind: battle.OrderEngage, Target: target.ID(), Position: target.Center()}}, nil

	case battle.ActionFlank:
		strongest := r.StrongestEnemy()
		if strongest == nil {
			return nil, fmt.Errorf("%w: no enemy to flank", ErrUnknownFormation)
		}
		pos, err := flankPosition(center, strongest.Center(), cmd.Param(1))
		if err != nil {
			return nil, err
		}
		return []battle.Order{{Kind: battle.OrderMove, Position: pos}}, nil

	case battle.ActionHold:
		orders := []battle.Order{{Kind: battle.OrderSpacing, Spacing: battle.SpacingLoose}}
		orders = appendFace(orders, nearest)
		return append(orders, battle.Order{Kind: battle.OrderHold, Position: center}), nil

	case battle.ActionCharge:
		orders := []battle.Order{{Kind: battle.OrderSpacing, Spacing: battle.SpacingWide}}
		charge := battle.Order{Kind: battle.OrderCharge}
		if nearest != nil {
			charge.Target = nearest.ID()
			charge.Position = nearest.Center()
		}
		orders = append(orders, charge)
		return appendFace(orders, nearest), nil

	case battle.ActionFollow:
		leader, err := r.Resolve(cmd.Param(1))
		if err != nil {
			return nil, fmt.Errorf("%w: leader %q", err, cmd.Param(1))
		}
		if leader.ID() == f.ID() {
			return nil, fmt.Errorf("%w: formation cannot follow itself", ErrBadParameter)
		}
		return []battle.Order{{Kind: battle.OrderFollow, Target: leader.ID()}}, nil

	case battle.ActionRetreat:
		orders := []battle.Order{{Kind: battle.OrderSpacing, Spacing: battle.SpacingLoose}}
		retreat := battle.Order{Kind: battle.OrderRetreat}
		if nearest != nil {
			away := center.Sub(nearest.Center()).Norm()
			retreat.Position = center.Add(away.Scale(retreatDistance))
		}
		orders = append(orders, retreat)
		return appendFace(orders, nearest), nil

	case battle.ActionChangeFormation:
		arr, ok := battle.ParseArrangement(cmd.Param(1))
		if !ok {
			return nil, fmt.Errorf("%w: arrangement %q", ErrBadParameter, cmd.Param(1))
		}
		return []battle.Order{{Kind: battle.OrderArrangement, Arrangement: arr}}, nil

	case battle.ActionRally:
		pos, err := position(cmd, 1)
		if err != nil {
			if cmd.Param(1) != "" {
				return nil, err
			}
			pos = rallyPoint(r.Own())
		}
		return []battle.Order{{Kind: battle.OrderMove, Position: pos, Urgent: true}}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownAction, cmd.Action)
}

func appendFace(orders []battle.Order, enemy sim.Formation) []battle.Order {
	if enemy == nil {
		return orders
	}
	return append(orders, battle.Order{Kind: battle.OrderFace, Position: enemy.Center()})
}

func attackTarget(sel string, from battle.Vec2, r *Resolver) (sim.Formation, error) {
	var target sim.Formation
	switch strings.ToLower(strings.TrimSpace(sel)) {
	case "", "nearest":
		target = r.NearestEnemy(from)
	case "strongest":
		target = r.StrongestEnemy()
	default:
		t, err := r.ResolveEnemy(sel)
		if err != nil {
			return nil, fmt.Errorf("%w: target %q", err, sel)
		}
		target = t
	}
	if target == nil {
		return nil, fmt.Errorf("%w: no enemy to attack", ErrUnknownFormation)
	}
	return target, nil
}

// flankPosition places the formation beside the enemy, perpendicular to the
// line between them. "left"/"right" are relative to the formation's view of
// the enemy.
func flankPosition(from, enemy battle.Vec2, side string) (battle.Vec2, error) {
	line := enemy.Sub(from)
	perp := line.Perp().Norm()
	if perp.IsZero() {
		perp = battle.Vec2{X: 0, Y: 1}
	}
	switch strings.ToLower(strings.TrimSpace(side)) {
	case "", "left":
	case "right":
		perp = perp.Scale(-1)
	default:
		return battle.Vec2{}, fmt.Errorf("%w: flank side %q", ErrBadParameter, side)
	}
	offset := math.Max(line.Len()/2, minFlankOffset)
	return enemy.Add(perp.Scale(offset)), nil
}

func position(cmd battle.Command, at int) (battle.Vec2, error) {
	x, errX := strconv.ParseFloat(cmd.Param(at), 64)
	y, errY := strconv.ParseFloat(cmd.Param(at+1), 64)
	if errX != nil || errY != nil || math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return battle.Vec2{}, fmt.Errorf("%w: position (%q, %q)", ErrBadParameter, cmd.Param(at), cmd.Param(at+1))
	}
	return battle.Vec2{X: x, Y: y}, nil
}

func rallyPoint(own []sim.Formation) battle.Vec2 {
	centers := make([]battle.Vec2, len(own))
	for i, f := range own {
		centers[i] = f.Center()
	}
	return battle.Centroid(centers)
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrUnknownFormation):
		return "unknown_formation"
	case errors.Is(err, ErrNilFormation):
		return "nil_formation"
	case errors.Is(err, ErrBadParameter):
		return "bad_parameter"
	case errors.Is(err, ErrHandleFault):
		return "handle_fault"
	default:
		return "issue_failed"
	}
}
