package battle

import "strings"

// Arrangement is a named formation shape.
type Arrangement string

const (
	ArrangementLine       Arrangement = "line"
	ArrangementSquare     Arrangement = "square"
	ArrangementShieldWall Arrangement = "shield-wall"
	ArrangementLoose      Arrangement = "loose"
	ArrangementCircle     Arrangement = "circle"
	ArrangementWedge      Arrangement = "wedge"
	ArrangementColumn     Arrangement = "column"
	ArrangementSkein      Arrangement = "skein"
)

var arrangements = map[string]Arrangement{
	"line":       ArrangementLine,
	"square":     ArrangementSquare,
	"shieldwall": ArrangementShieldWall,
	"loose":      ArrangementLoose,
	"scatter":    ArrangementLoose,
	"circle":     ArrangementCircle,
	"wedge":      ArrangementWedge,
	"column":     ArrangementColumn,
	"skein":      ArrangementSkein,
}

// ParseArrangement resolves an arrangement name, ignoring case and separators.
func ParseArrangement(name string) (Arrangement, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	a, ok := arrangements[key]
	return a, ok
}

// Spacing is how tightly a formation's ranks are packed.
type Spacing string

const (
	SpacingTight Spacing = "tight"
	SpacingLoose Spacing = "loose"
	SpacingWide  Spacing = "wide"
)

// OrderKind is a concrete instruction a host formation understands.
type OrderKind string

const (
	OrderMove        OrderKind = "move"
	OrderEngage      OrderKind = "engage"
	OrderCharge      OrderKind = "charge"
	OrderRetreat     OrderKind = "retreat"
	OrderHold        OrderKind = "hold"
	OrderFace        OrderKind = "face"
	OrderSpacing     OrderKind = "spacing"
	OrderArrangement OrderKind = "arrangement"
	OrderFollow      OrderKind = "follow"
)

// Order is a concrete side effect on one formation. Only the fields relevant
// to Kind are set.
type Order struct {
	Kind        OrderKind   `json:"kind"`
	Formation   string      `json:"formation"`
	Position    Vec2        `json:"position,omitempty"`
	Target      string      `json:"target,omitempty"`
	Spacing     Spacing     `json:"spacing,omitempty"`
	Arrangement Arrangement `json:"arrangement,omitempty"`
	Urgent      bool        `json:"urgent,omitempty"`
}
