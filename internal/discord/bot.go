// Package discord owns the live gateway session: event handlers, slash
// command dispatch, and the adapters that let the service packages stay
// ignorant of the platform library.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/audit"
	"github.com/bastionbot/bastion/internal/command"
	"github.com/bastionbot/bastion/internal/config"
	"github.com/bastionbot/bastion/internal/confirm"
	"github.com/bastionbot/bastion/internal/notify"
	"github.com/bastionbot/bastion/internal/quarantine"
	"github.com/bastionbot/bastion/internal/settings"
	"github.com/bastionbot/bastion/internal/stats"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/telegram"
	"github.com/bastionbot/bastion/internal/threat"
)

// Services are the session-independent dependencies, constructed in main.
type Services struct {
	Config   *config.Config
	DB       *storage.DB
	Journal  *storage.IncidentJournal
	Relay    *telegram.Relay
	Settings *settings.Cache
	Engine   *threat.Engine
	Confirms *confirm.Manager
	Counters *stats.Counters
	Log      zerolog.Logger
}

// Bot is the running Discord bot.
type Bot struct {
	dg  *discordgo.Session
	svc *Services
	log zerolog.Logger

	quarantine *quarantine.Service
	notifier   *notify.Notifier
	correlator *audit.Correlator
	roleCache  *rolePermCache
	deps       *command.Deps
}

// StartBot opens the gateway session and blocks until ctx is done.
func StartBot(ctx context.Context, svc *Services) error {
	b := &Bot{
		svc:       svc,
		log:       svc.Log,
		roleCache: newRolePermCache(),
	}
	if err := b.run(ctx, svc.Config.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	b.dg = dg
	b.configureIntents()

	adapter := newSessionAdapter(dg)
	b.quarantine = quarantine.NewService(b.svc.DB, adapter, b.log)
	b.notifier = notify.New(b.svc.DB, adapter, b.svc.Relay, b.log)

	b.deps = &command.Deps{
		DB:         b.svc.DB,
		Settings:   b.svc.Settings,
		Quarantine: b.quarantine,
		Journal:    b.svc.Journal,
		Relay:      b.svc.Relay,
		Log:        b.log,
	}

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteractionCreate)

	dg.AddHandler(b.onChannelDelete)
	dg.AddHandler(b.onChannelCreate)
	dg.AddHandler(b.onRoleCreate)
	dg.AddHandler(b.onBanAdd)
	dg.AddHandler(b.onMemberRemove)

	dg.AddHandler(b.onMemberUpdate)
	dg.AddHandler(b.onRoleUpdate)
	dg.AddHandler(b.onRoleDelete)
	dg.AddHandler(b.onWebhooksUpdate)
	dg.AddHandler(b.onChannelDeleteConfig)

	dg.AddHandler(b.onMemberAdd)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	// Open returns after Ready, so the session knows its own user by now.
	b.correlator = audit.New(adapter, dg.State.User.ID, b.log)

	<-ctx.Done()
	b.log.Info().Msg("shutdown signal received, closing session")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsAll
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	if b.svc.Config.InitSlashCommands {
		for _, g := range r.Guilds {
			if err := b.registerCommands(g.ID); err != nil {
				b.log.Error().Err(err).Str("guild_id", g.ID).Msg("failed to register slash commands")
			}
		}
	} else {
		b.log.Info().Msg("slash command registration skipped")
	}

	b.log.Info().Str("username", s.State.User.Username).Int("guilds", len(r.Guilds)).Msg("bot is running")
}

// onGuildCreate fires once per guild after Ready and again when the bot is
// invited somewhere new. It is the point where the full role list is
// available, so the permission cache gets seeded here.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if err := b.svc.DB.UpsertGuild(g.ID, g.Name); err != nil {
		b.log.Error().Err(err).Str("guild_id", g.ID).Msg("failed to upsert guild")
	}

	perms := make(map[string]int64, len(g.Roles))
	for _, role := range g.Roles {
		perms[role.ID] = role.Permissions
	}
	b.roleCache.SeedGuild(g.ID, perms)

	if b.svc.Config.InitSlashCommands {
		if err := b.registerCommands(g.ID); err != nil {
			b.log.Error().Err(err).Str("guild_id", g.ID).Msg("failed to register slash commands")
		}
	}
}

// registerCommands overwrites the guild's slash command set with the
// registered commands in one call.
func (b *Bot) registerCommands(guildID string) error {
	appID := b.dg.State.User.ID
	if appID == "" {
		user, err := b.dg.User("@me")
		if err != nil {
			return err
		}
		appID = user.ID
	}

	defs := make([]*discordgo.ApplicationCommand, 0)
	for _, cmd := range command.All() {
		if def := cmd.Definition(); def != nil {
			defs = append(defs, def)
		}
	}

	_, err := b.dg.ApplicationCommandBulkOverwrite(appID, guildID, defs)
	if err != nil {
		return fmt.Errorf("failed to overwrite commands for guild %s: %w", guildID, err)
	}
	return nil
}

// guildOwnerID resolves the owner of a guild, preferring session state.
func (b *Bot) guildOwnerID(guildID string) (string, error) {
	if g, err := b.dg.State.Guild(guildID); err == nil && g.OwnerID != "" {
		return g.OwnerID, nil
	}
	g, err := b.dg.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild %s: %w", guildID, err)
	}
	return g.OwnerID, nil
}
