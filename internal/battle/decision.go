package battle

import (
	"encoding/json"
	"strings"
)

// Action is the closed vocabulary of abstract decisions the reasoning
// service may return.
type Action int

const (
	ActionUnknown         Action = iota // Anything outside the vocabulary
	ActionMove                          // Move formation to a position
	ActionAttack                        // Engage an enemy formation
	ActionFlank                         // Swing perpendicular to the strongest enemy
	ActionHold                          // Loosen, face nearest enemy, stop
	ActionCharge                        // Widen and charge
	ActionFollow                        // Attach movement to a leader formation
	ActionRetreat                       // Loosen and withdraw facing the enemy
	ActionChangeFormation               // Apply a named arrangement
	ActionRally                         // Regroup at a rally point, urgently
)

func (a Action) String() string {
	switch a {
	case ActionMove:
		return "move"
	case ActionAttack:
		return "attack"
	case ActionFlank:
		return "flank"
	case ActionHold:
		return "hold"
	case ActionCharge:
		return "charge"
	case ActionFollow:
		return "follow"
	case ActionRetreat:
		return "retreat"
	case ActionChangeFormation:
		return "change-formation"
	case ActionRally:
		return "rally"
	default:
		return "unknown"
	}
}

// ParseAction maps a loosely spelled action name onto the vocabulary.
// Case, surrounding space and '_'/'-' separators are ignored.
func ParseAction(name string) (Action, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	switch key {
	case "move":
		return ActionMove, true
	case "attack":
		return ActionAttack, true
	case "flank":
		return ActionFlank, true
	case "hold":
		return ActionHold, true
	case "charge":
		return ActionCharge, true
	case "follow":
		return ActionFollow, true
	case "retreat":
		return ActionRetreat, true
	case "changeformation":
		return ActionChangeFormation, true
	case "rally":
		return ActionRally, true
	}
	return ActionUnknown, false
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// Command is one action with its ordered parameters. The first parameter
// selects a formation; the rest are action specific.
type Command struct {
	Action Action   `json:"action"`
	Raw    string   `json:"raw,omitempty"`
	Params []string `json:"parameters"`
}

// Name returns the action name, or the raw name for unknown actions.
func (c Command) Name() string {
	if c.Action == ActionUnknown && c.Raw != "" {
		return c.Raw
	}
	return c.Action.String()
}

// Selector returns the formation selector parameter, or "".
func (c Command) Selector() string {
	if len(c.Params) == 0 {
		return ""
	}
	return c.Params[0]
}

// Param returns parameter i, or "" when absent.
func (c Command) Param(i int) string {
	if i < 0 || i >= len(c.Params) {
		return ""
	}
	return c.Params[i]
}

// Decision is an ordered list of commands plus optional rationale.
type Decision struct {
	Commands  []Command `json:"commands"`
	Rationale string    `json:"reasoning,omitempty"`
}

// Known returns how many commands carry a recognised action.
func (d Decision) Known() int {
	n := 0
	for _, c := range d.Commands {
		if c.Action != ActionUnknown {
			n++
		}
	}
	return n
}
