// Package settings serves per-guild anti-nuke settings: global defaults
// overlaid with database overrides, cached with a TTL and invalidated on
// write.
package settings

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/threat"
)

// CacheTTL is how long a guild's resolved settings stay cached.
const CacheTTL = 600 * time.Second

// Keys for per-guild overrides, stored under storage.AntiNukePrefix.
const (
	KeyThreshold = "threshold"
	KeyDecay     = "decay"
)

type cacheEntry struct {
	settings threat.Settings
	expires  time.Time
}

// Cache resolves guild settings against storage with an in-memory TTL cache.
// It implements threat.SettingsSource.
type Cache struct {
	db       *storage.DB
	defaults threat.Settings
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewCache builds a settings cache over the database with the given global
// defaults.
func NewCache(db *storage.DB, defaults threat.Settings, log zerolog.Logger) *Cache {
	return &Cache{
		db:       db,
		defaults: defaults,
		log:      log,
		entries:  make(map[string]cacheEntry),
		now:      time.Now,
	}
}

// Guild returns the effective settings of a guild. On a database failure the
// global defaults are returned (and not cached), so scoring keeps working
// through storage outages.
func (c *Cache) Guild(guildID string) (threat.Settings, error) {
	c.mu.Lock()
	if entry, ok := c.entries[guildID]; ok && c.now().Before(entry.expires) {
		c.mu.Unlock()
		return entry.settings, nil
	}
	c.mu.Unlock()

	overrides, err := c.db.GuildConfigsByPrefix(guildID, storage.AntiNukePrefix)
	if err != nil {
		c.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to load anti-nuke overrides, using defaults")
		return c.defaults, nil
	}

	resolved := c.resolve(overrides)

	c.mu.Lock()
	c.entries[guildID] = cacheEntry{settings: resolved, expires: c.now().Add(CacheTTL)}
	c.mu.Unlock()
	return resolved, nil
}

func (c *Cache) resolve(overrides map[string]string) threat.Settings {
	out := threat.Settings{
		Threshold:      c.defaults.Threshold,
		DecayPerSecond: c.defaults.DecayPerSecond,
		Weights:        make(map[threat.EventType]float64, len(c.defaults.Weights)),
	}
	for e, w := range c.defaults.Weights {
		out.Weights[e] = w
	}

	for key, raw := range overrides {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.log.Warn().Str("key", key).Str("value", raw).Msg("ignoring malformed anti-nuke override")
			continue
		}
		switch key {
		case KeyThreshold:
			out.Threshold = value
		case KeyDecay:
			out.DecayPerSecond = value
		default:
			for _, e := range threat.EventTypes() {
				if e.String() == key {
					out.Weights[e] = value
					break
				}
			}
		}
	}
	return out
}

// Set writes one per-guild override and invalidates the guild's cache entry.
func (c *Cache) Set(guildID, key string, value float64) error {
	full := storage.AntiNukePrefix + key
	if err := c.db.SetGuildConfig(guildID, full, strconv.FormatFloat(value, 'f', -1, 64)); err != nil {
		return fmt.Errorf("failed to store setting %s: %w", full, err)
	}
	c.Invalidate(guildID)
	return nil
}

// Reset deletes every override of a guild, returning it to the defaults.
func (c *Cache) Reset(guildID string) error {
	if err := c.db.DeleteGuildConfigsByPrefix(guildID, storage.AntiNukePrefix); err != nil {
		return fmt.Errorf("failed to reset settings: %w", err)
	}
	c.Invalidate(guildID)
	return nil
}

// Invalidate drops a guild's cached entry. Call after any write that affects
// the guild's anti-nuke behavior.
func (c *Cache) Invalidate(guildID string) {
	c.mu.Lock()
	delete(c.entries, guildID)
	c.mu.Unlock()
}

// Defaults exposes the process-wide default settings.
func (c *Cache) Defaults() threat.Settings {
	return c.defaults
}
