package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/audit"
	"github.com/bastionbot/bastion/internal/quarantine"
)

// onMemberAdd gates newly joined members: unapproved bots are banned on
// sight, and returning members with an active quarantine record get the
// quarantine role right back.
func (b *Bot) onMemberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if e.User.Bot {
		b.gateBot(e.GuildID, e.User.ID, e.User.Username)
		return
	}

	res := b.quarantine.ReapplyOnJoin(e.GuildID, e.User.ID)
	switch res.Code {
	case quarantine.CodeOK:
		ownerID, err := b.guildOwnerID(e.GuildID)
		if err == nil {
			b.notifier.Incident(e.GuildID, ownerID, fmt.Sprintf(
				"🔁 <@%s> rejoined while quarantined; the quarantine role has been re-applied.", e.User.ID))
		}
	case quarantine.CodeNotInQuarantine:
		// Normal join.
	default:
		b.log.Error().
			Str("guild_id", e.GuildID).Str("user_id", e.User.ID).
			Str("code", res.Code.String()).
			Msg("failed to re-apply quarantine on rejoin")
	}
}

// gateBot bans bots nobody whitelisted. The audit log names who invited the
// bot; invitations by the owner pass without a whitelist entry.
func (b *Bot) gateBot(guildID, botID, botName string) {
	allowed, err := b.svc.DB.IsBotAllowed(guildID, botID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to check bot whitelist")
		return
	}
	if allowed {
		return
	}

	ownerID, err := b.guildOwnerID(guildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to resolve guild owner")
		return
	}

	if b.correlator != nil {
		actorID, resolution := b.correlator.Actor(guildID, ownerID,
			int(discordgo.AuditLogActionBotAdd), auditLookback, botID, "")
		if resolution == audit.Exempt {
			return
		}
		if err := b.dg.GuildBanCreateWithReason(guildID, botID, "Anti-nuke: unauthorized bot", 0); err != nil {
			b.log.Error().Err(err).Str("guild_id", guildID).Str("bot_id", botID).Msg("failed to ban unauthorized bot")
			b.notifier.Incident(guildID, ownerID, fmt.Sprintf(
				"⚠️ Unauthorized bot **%s** joined and banning it **failed**. Remove it manually.", botName))
			return
		}
		b.notifier.Incident(guildID, ownerID, fmt.Sprintf(
			"🤖 Unauthorized bot **%s** was banned%s. Whitelist it with `/botwhitelist add` before inviting it.",
			botName, actorSuffix(actorID, "invited")))
	}
}
