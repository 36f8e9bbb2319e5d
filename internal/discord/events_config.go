package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/storage"
)

// onRoleDelete keeps configuration honest when the quarantine role itself is
// deleted: the stale reference is cleared and the owner is told the guild is
// unprotected until a new role is set up.
func (b *Bot) onRoleDelete(s *discordgo.Session, e *discordgo.GuildRoleDelete) {
	b.roleCache.Delete(e.GuildID, e.RoleID)

	roleID, found, err := b.svc.DB.GetGuildConfig(e.GuildID, storage.KeyQuarantineRole)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to read quarantine role config")
		return
	}
	if !found || roleID != e.RoleID {
		return
	}

	if err := b.svc.DB.DeleteGuildConfig(e.GuildID, storage.KeyQuarantineRole); err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to clear quarantine role config")
		return
	}

	ownerID, err := b.guildOwnerID(e.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to resolve guild owner")
		return
	}
	b.notifier.OwnerDM(ownerID, fmt.Sprintf(
		"⚠️ The quarantine role in your server was deleted. Anti-nuke containment is disabled until you run `/setup quarantine-role` again. (guild %s)", e.GuildID))
}

// onChannelDeleteConfig clears the log channel reference when that channel
// is deleted. The deletion still goes through threat scoring separately.
func (b *Bot) onChannelDeleteConfig(s *discordgo.Session, e *discordgo.ChannelDelete) {
	if e.GuildID == "" {
		return
	}

	channelID, found, err := b.svc.DB.GetGuildConfig(e.GuildID, storage.KeyLogChannel)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to read log channel config")
		return
	}
	if !found || channelID != e.ID {
		return
	}

	if err := b.svc.DB.DeleteGuildConfig(e.GuildID, storage.KeyLogChannel); err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to clear log channel config")
	}
}
