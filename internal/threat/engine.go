package threat

import (
	"fmt"
)

// Outcome reports the effect of one scored event.
type Outcome struct {
	Score     float64
	Threshold float64
	// Triggered is true for exactly one crossing of the threshold: the
	// score entry has been cleared and the caller must quarantine.
	Triggered bool
}

// Engine applies scored events against a guild's settings. It assumes the
// caller has already resolved and filtered the actor (the bot itself and
// the guild owner never reach AddScore).
type Engine struct {
	store    *Store
	settings SettingsSource
}

// NewEngine builds an engine over a score store and a settings source.
func NewEngine(store *Store, settings SettingsSource) *Engine {
	return &Engine{store: store, settings: settings}
}

// AddScore scores one event for a member and reports whether the guild's
// threshold was crossed. A zero or negative weight is a no-op.
func (e *Engine) AddScore(guildID, userID string, event EventType) (Outcome, error) {
	cfg, err := e.settings.Guild(guildID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to load settings for guild %s: %w", guildID, err)
	}

	weight := cfg.Weight(event)
	if weight <= 0 {
		return Outcome{Threshold: cfg.Threshold}, nil
	}

	total := e.store.Add(guildID, userID, weight)
	out := Outcome{Score: total, Threshold: cfg.Threshold}
	if total < cfg.Threshold {
		return out, nil
	}

	// Clearing the entry is what guarantees a single trigger: a concurrent
	// crossing for the same member finds the entry already gone.
	score, ok := e.store.ReadAndClear(guildID, userID)
	if !ok {
		return out, nil
	}
	out.Score = score
	out.Triggered = true
	return out, nil
}

// Store exposes the underlying score store for the decay scheduler.
func (e *Engine) Store() *Store {
	return e.store
}
