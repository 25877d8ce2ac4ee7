// Package memory keeps a bounded, decaying per-commander memory scalar and
// tactic success statistics.
package memory

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/metrics"
)

// Config bounds and paces the memory scalar.
type Config struct {
	Min           float64
	Max           float64
	Step          float64 // added per RecordInteraction
	DecayRate     float64 // subtracted per simulated second
	Capacity      int     // commanders kept before eviction
	MaxEncounters int     // encounters kept per commander
}

// DefaultConfig returns the bounds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Min:           0,
		Max:           1,
		Step:          0.1,
		DecayRate:     0.001,
		Capacity:      256,
		MaxEncounters: 10,
	}
}

type tacticCount struct {
	wins int
	uses int
}

type entry struct {
	value      float64
	encounters []battle.Encounter
	tactics    map[string]*tacticCount
	updatedAt  time.Time
}

// Store is safe for concurrent use; the decision loop mutates it from the
// simulation tick while the debug API reads it.
type Store struct {
	mu      sync.Mutex
	cfg     Config
	entries *lru.Cache[string, *entry]
	now     func() time.Time
}

// NewStore creates a store. Invalid bounds fall back to defaults.
func NewStore(cfg Config) *Store {
	def := DefaultConfig()
	if cfg.Max < cfg.Min {
		cfg.Min, cfg.Max = def.Min, def.Max
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.MaxEncounters <= 0 {
		cfg.MaxEncounters = def.MaxEncounters
	}
	if cfg.DecayRate < 0 {
		cfg.DecayRate = 0
	}

	s := &Store{cfg: cfg, now: time.Now}
	// Capacity is validated above, so NewWithEvict cannot fail.
	s.entries, _ = lru.NewWithEvict(cfg.Capacity, func(id string, e *entry) {
		log.Debug().Str("commander", id).Time("updatedAt", e.updatedAt).Msg("Commander memory full, evicted least recently updated")
	})
	return s
}

// Config returns the effective configuration.
func (s *Store) Config() Config { return s.cfg }

// SetClock overrides the wall clock used to stamp encounters.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Len returns the number of commanders held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Len()
}

func (s *Store) clamp(v float64) float64 {
	if v < s.cfg.Min {
		return s.cfg.Min
	}
	if v > s.cfg.Max {
		return s.cfg.Max
	}
	return v
}

// touch returns the entry for id, creating it at the floor, and marks it as
// most recently updated.
func (s *Store) touch(id string) *entry {
	e, ok := s.entries.Peek(id)
	if !ok {
		e = &entry{value: s.cfg.Min, tactics: make(map[string]*tacticCount)}
	}
	e.updatedAt = s.now()
	s.entries.Add(id, e)
	metrics.CommandersStored.Set(float64(s.entries.Len()))
	return e
}

// RecordInteraction moves the commander's memory one step toward Max.
func (s *Store) RecordInteraction(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.touch(id)
	e.value = s.clamp(e.value + s.cfg.Step)
}

// GetMemory returns the memory scalar, or Min for unknown commanders.
func (s *Store) GetMemory(id string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries.Peek(id); ok {
		return e.value
	}
	return s.cfg.Min
}

// Decay lowers every stored value by DecayRate*dt, floored at Min. Splitting
// dt across several calls yields the same result as one call.
func (s *Store) Decay(dt float64) {
	if dt <= 0 || s.cfg.DecayRate == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := s.cfg.DecayRate * dt
	for _, id := range s.entries.Keys() {
		if e, ok := s.entries.Peek(id); ok {
			e.value = s.clamp(e.value - delta)
		}
	}
}

// RecordOutcome appends an encounter and updates tactic success ratios: every
// tactic used counts a use, and a win also counts a success.
func (s *Store) RecordOutcome(id string, tactics []string, won bool) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.touch(id)

	seen := make(map[string]bool, len(tactics))
	used := make([]string, 0, len(tactics))
	for _, name := range tactics {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		used = append(used, name)

		tc := e.tactics[name]
		if tc == nil {
			tc = &tacticCount{}
			e.tactics[name] = tc
		}
		tc.uses++
		if won {
			tc.wins++
		}
	}
	sort.Strings(used)

	e.encounters = append(e.encounters, battle.Encounter{Date: e.updatedAt, Won: won, Tactics: used})
	if over := len(e.encounters) - s.cfg.MaxEncounters; over > 0 {
		e.encounters = append([]battle.Encounter(nil), e.encounters[over:]...)
	}
}

// Context builds the commander context sent with each inference request.
func (s *Store) Context(id string) battle.CommanderContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := battle.CommanderContext{ID: id, Memory: s.cfg.Min}
	e, ok := s.entries.Peek(id)
	if !ok {
		return ctx
	}
	ctx.Memory = e.value
	ctx.EncounterCount = len(e.encounters)
	ctx.PriorEncounters = copyEncounters(e.encounters)
	ctx.SuccessfulTactics = rankTactics(e.tactics)
	return ctx
}

// rankTactics orders tactics with at least one win by ratio, then uses, then name.
func rankTactics(tactics map[string]*tacticCount) []battle.TacticStat {
	var out []battle.TacticStat
	for name, tc := range tactics {
		if tc.wins == 0 {
			continue
		}
		out = append(out, battle.TacticStat{Name: name, Wins: tc.wins, Uses: tc.uses, Ratio: ratio(tc)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ratio != out[j].Ratio {
			return out[i].Ratio > out[j].Ratio
		}
		if out[i].Uses != out[j].Uses {
			return out[i].Uses > out[j].Uses
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func ratio(tc *tacticCount) float64 {
	if tc.uses == 0 {
		return 0
	}
	return float64(tc.wins) / float64(tc.uses)
}

func copyEncounters(in []battle.Encounter) []battle.Encounter {
	out := make([]battle.Encounter, len(in))
	for i, enc := range in {
		enc.Tactics = append([]string(nil), enc.Tactics...)
		out[i] = enc
	}
	return out
}
