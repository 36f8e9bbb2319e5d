// Package audit resolves the acting user behind a raw guild event by
// replaying the platform audit log. It holds no state: every resolution is
// a bounded lookback over the most recent entries.
package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// MaxEntryAge is how old an audit entry may be and still be considered the
// cause of the event being correlated. Older entries are unrelated noise.
const MaxEntryAge = 5 * time.Second

// PreQueryDelay is how long callers should wait before querying on paths
// where audit entries are known to lag the gateway event (kicks, webhooks).
const PreQueryDelay = 1500 * time.Millisecond

// Entry is one audit-log record, already shaped for matching.
type Entry struct {
	ActorID   string
	TargetID  string
	ChannelID string
	CreatedAt time.Time
}

// LogFetcher reads the most recent audit entries of one action type, newest
// first. The Discord session adapter implements it; tests supply fakes.
type LogFetcher interface {
	AuditLog(guildID string, action int, limit int) ([]Entry, error)
}

// Resolution classifies the outcome of an actor lookup.
type Resolution int

const (
	// Resolved means a non-exempt actor was identified.
	Resolved Resolution = iota
	// Exempt means the action was performed by the bot itself or the guild
	// owner; scoring callers must treat this as a no-op.
	Exempt
	// Unknown means no matching recent entry exists or the audit log was
	// unreachable. Never attribute threat score to an unresolved actor.
	Unknown
)

// Correlator maps events to actors.
type Correlator struct {
	fetch LogFetcher
	botID string
	log   zerolog.Logger
	now   func() time.Time
}

// New builds a correlator. botID is the bot's own user ID, exempt from all
// attribution.
func New(fetch LogFetcher, botID string, log zerolog.Logger) *Correlator {
	return &Correlator{fetch: fetch, botID: botID, log: log, now: time.Now}
}

// Actor scans up to limit recent entries of the given action type and
// returns the acting user for the event. When targetID is non-empty only
// entries for that target match; likewise channelID for webhook events.
// Entries older than MaxEntryAge never match.
func (c *Correlator) Actor(guildID, ownerID string, action, limit int, targetID, channelID string) (string, Resolution) {
	entry, res := c.Find(guildID, ownerID, action, limit, targetID, channelID)
	return entry.ActorID, res
}

// Find is Actor with the whole matched entry, for callers that also need the
// entry's target (the webhook handler deletes the webhook named there).
func (c *Correlator) Find(guildID, ownerID string, action, limit int, targetID, channelID string) (Entry, Resolution) {
	entries, err := c.fetch.AuditLog(guildID, action, limit)
	if err != nil {
		c.log.Warn().Err(err).Str("guild_id", guildID).Int("action", action).Msg("audit log unreachable")
		return Entry{}, Unknown
	}

	cutoff := c.now().Add(-MaxEntryAge)
	for _, e := range entries {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		if targetID != "" && e.TargetID != targetID {
			continue
		}
		if channelID != "" && e.ChannelID != channelID {
			continue
		}
		if e.ActorID == c.botID || e.ActorID == ownerID {
			return e, Exempt
		}
		return e, Resolved
	}
	return Entry{}, Unknown
}
