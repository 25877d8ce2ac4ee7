package battle

import "time"

// Encounter records one finished battle against a commander.
type Encounter struct {
	Date    time.Time `json:"date"`
	Won     bool      `json:"won"`
	Tactics []string  `json:"tactics"`
}

// TacticStat is the running success ratio of one tactic against a commander.
type TacticStat struct {
	Name  string  `json:"name"`
	Wins  int     `json:"wins"`
	Uses  int     `json:"uses"`
	Ratio float64 `json:"ratio"`
}

// CommanderContext is what the reasoning service is told about the opposing
// commander alongside each snapshot.
type CommanderContext struct {
	ID                string       `json:"commanderId"`
	Memory            float64      `json:"memory"`
	EncounterCount    int          `json:"encounterCount"`
	PriorEncounters   []Encounter  `json:"priorEncounters"`
	SuccessfulTactics []TacticStat `json:"successfulTactics"`
}

// CommanderRecord is the full persisted state for one commander id.
type CommanderRecord struct {
	ID         string                `json:"id"`
	Memory     float64               `json:"memory"`
	Encounters []Encounter           `json:"encounters"`
	Tactics    map[string]TacticStat `json:"tactics"`
	UpdatedAt  time.Time             `json:"updatedAt"`
}
