package arena

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
)

// UnitGroup is a block of identical units inside a formation.
type UnitGroup struct {
	Type    string  `yaml:"type"`
	Count   int     `yaml:"count"`
	Health  float64 `yaml:"health"`
	Ranged  bool    `yaml:"ranged"`
	Mounted bool    `yaml:"mounted"`
	Speed   float64 `yaml:"speed"`  // ground units per second
	Damage  float64 `yaml:"damage"` // health per second against one target
	Range   float64 `yaml:"range"`
}

// FormationSpec places one formation on the field.
type FormationSpec struct {
	ID       string      `yaml:"id"`
	Position battle.Vec2 `yaml:"position"`
	Stance   string      `yaml:"stance"` // "hold" (default) or "engage"
	Groups   []UnitGroup `yaml:"units"`
}

// Scenario is a battle loaded from YAML.
type Scenario struct {
	Name          string          `yaml:"name"`
	Extent        battle.Rect     `yaml:"extent"`
	Controlled    battle.Side     `yaml:"controlled"`
	Duration      float64         `yaml:"duration"`       // simulated seconds before the battle is called
	RoutThreshold float64         `yaml:"rout_threshold"` // fraction of max health below which units rout
	Player        []FormationSpec `yaml:"player"`
	Enemy         []FormationSpec `yaml:"enemy"`
}

const (
	defaultHealth = 100.0
	defaultSpeed  = 4.0
	defaultDamage = 5.0
	meleeRange    = 2.0
	defaultRout   = 0.25
)

const (
	stanceHold   = "hold"
	stanceEngage = "engage"
)

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(b)
}

// ParseScenario decodes a scenario and fills defaults.
func ParseScenario(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	sc.applyDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) applyDefaults() {
	if sc.Controlled == "" {
		sc.Controlled = battle.SidePlayer
	}
	if sc.RoutThreshold == 0 {
		sc.RoutThreshold = defaultRout
	}
	for _, specs := range [][]FormationSpec{sc.Player, sc.Enemy} {
		for i := range specs {
			for j := range specs[i].Groups {
				g := &specs[i].Groups[j]
				if g.Health == 0 {
					g.Health = defaultHealth
				}
				if g.Speed == 0 {
					g.Speed = defaultSpeed
				}
				if g.Damage == 0 {
					g.Damage = defaultDamage
				}
				if g.Range == 0 {
					g.Range = meleeRange
				}
			}
		}
	}
}

// Validate reports every problem in the scenario.
func (sc *Scenario) Validate() error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("scenario: name is required"))
	}
	if sc.Controlled != battle.SidePlayer && sc.Controlled != battle.SideEnemy {
		errs = append(errs, fmt.Errorf("scenario: unknown controlled side %q", sc.Controlled))
	}
	if sc.RoutThreshold < 0 || sc.RoutThreshold >= 1 {
		errs = append(errs, fmt.Errorf("scenario: rout_threshold %v outside [0,1)", sc.RoutThreshold))
	}
	if len(sc.Player) == 0 || len(sc.Enemy) == 0 {
		errs = append(errs, errors.New("scenario: both sides need at least one formation"))
	}
	seen := make(map[string]bool)
	for _, specs := range [][]FormationSpec{sc.Player, sc.Enemy} {
		for _, f := range specs {
			if f.ID == "" {
				errs = append(errs, errors.New("scenario: formation without id"))
			} else if seen[f.ID] {
				errs = append(errs, fmt.Errorf("scenario: duplicate formation id %q", f.ID))
			}
			seen[f.ID] = true
			if f.Stance != "" && f.Stance != stanceHold && f.Stance != stanceEngage {
				errs = append(errs, fmt.Errorf("scenario: formation %q has unknown stance %q", f.ID, f.Stance))
			}
			for _, g := range f.Groups {
				if g.Count <= 0 {
					errs = append(errs, fmt.Errorf("scenario: formation %q has a group with count %d", f.ID, g.Count))
				}
				if g.Health < 0 || g.Speed < 0 || g.Damage < 0 || g.Range < 0 {
					errs = append(errs, fmt.Errorf("scenario: formation %q has negative stats", f.ID))
				}
			}
		}
	}
	return errors.Join(errs...)
}
