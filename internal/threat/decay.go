package threat

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DecayInterval is the fixed period of the decay scheduler.
const DecayInterval = 2 * time.Second

// RunDecay decrements all outstanding scores at the guild's configured rate
// until ctx is done. A settings lookup failure for one guild is logged and
// skipped; the sweep continues with the next guild. Call from main.
func RunDecay(ctx context.Context, store *Store, settings SettingsSource, interval time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			decaySweep(store, settings, interval, log)
		}
	}
}

func decaySweep(store *Store, settings SettingsSource, interval time.Duration, log zerolog.Logger) {
	for _, guildID := range store.GuildIDs() {
		cfg, err := settings.Guild(guildID)
		if err != nil {
			log.Warn().Err(err).Str("guild_id", guildID).Msg("decay sweep: settings lookup failed, skipping guild")
			continue
		}
		store.DecayTick(guildID, cfg.DecayPerSecond*interval.Seconds())
	}
}
