package memory

import (
	"sort"

	"github.com/mrblmoore/hannibal-ai/internal/battle"
	"github.com/mrblmoore/hannibal-ai/internal/metrics"
)

// Record returns a detached copy of one commander's state.
func (s *Store) Record(id string) (battle.CommanderRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries.Peek(id)
	if !ok {
		return battle.CommanderRecord{}, false
	}
	return toRecord(id, e), true
}

// Records returns copies of every commander, least recently updated first.
func (s *Store) Records() []battle.CommanderRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := s.entries.Keys()
	out := make([]battle.CommanderRecord, 0, len(keys))
	for _, id := range keys {
		if e, ok := s.entries.Peek(id); ok {
			out = append(out, toRecord(id, e))
		}
	}
	return out
}

// Restore loads persisted records. Values are clamped to the configured
// bounds; when there are more records than capacity the most recently
// updated ones win.
func (s *Store) Restore(records []battle.CommanderRecord) {
	sorted := append([]battle.CommanderRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.Before(sorted[j].UpdatedAt)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range sorted {
		if r.ID == "" {
			continue
		}
		e := &entry{
			value:      s.clamp(r.Memory),
			encounters: copyEncounters(r.Encounters),
			tactics:    make(map[string]*tacticCount, len(r.Tactics)),
			updatedAt:  r.UpdatedAt,
		}
		if over := len(e.encounters) - s.cfg.MaxEncounters; over > 0 {
			e.encounters = e.encounters[over:]
		}
		for name, st := range r.Tactics {
			e.tactics[name] = &tacticCount{wins: st.Wins, uses: st.Uses}
		}
		s.entries.Add(r.ID, e)
	}
	metrics.CommandersStored.Set(float64(s.entries.Len()))
}

// Forget drops a commander. It reports whether the id was held.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.entries.Remove(id)
	metrics.CommandersStored.Set(float64(s.entries.Len()))
	return ok
}

func toRecord(id string, e *entry) battle.CommanderRecord {
	tactics := make(map[string]battle.TacticStat, len(e.tactics))
	for name, tc := range e.tactics {
		tactics[name] = battle.TacticStat{Name: name, Wins: tc.wins, Uses: tc.uses, Ratio: ratio(tc)}
	}
	return battle.CommanderRecord{
		ID:         id,
		Memory:     e.value,
		Encounters: copyEncounters(e.encounters),
		Tactics:    tactics,
		UpdatedAt:  e.updatedAt,
	}
}
