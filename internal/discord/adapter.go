package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/audit"
	"github.com/bastionbot/bastion/internal/quarantine"
)

// sessionAdapter wraps the live Discord session behind the narrow interfaces
// the service packages consume, translating REST errors into the sentinel
// errors those packages branch on.
type sessionAdapter struct {
	s *discordgo.Session
}

func newSessionAdapter(s *discordgo.Session) *sessionAdapter {
	return &sessionAdapter{s: s}
}

// mapRESTError converts a Discord REST failure into the sentinels the
// quarantine state machine understands. Anything else passes through.
func mapRESTError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", quarantine.ErrForbidden, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", quarantine.ErrNotFound, err)
		}
	}
	return err
}

func (a *sessionAdapter) MemberRoleIDs(guildID, userID string) ([]string, error) {
	member, err := a.s.State.Member(guildID, userID)
	if err != nil {
		member, err = a.s.GuildMember(guildID, userID)
		if err != nil {
			return nil, mapRESTError(err)
		}
	}
	// Member.Roles never contains the guild's default role.
	roles := make([]string, len(member.Roles))
	copy(roles, member.Roles)
	return roles, nil
}

func (a *sessionAdapter) SetMemberRoles(guildID, userID string, roleIDs []string) error {
	_, err := a.s.GuildMemberEdit(guildID, userID, &discordgo.GuildMemberParams{Roles: &roleIDs})
	return mapRESTError(err)
}

func (a *sessionAdapter) AddMemberRole(guildID, userID, roleID string) error {
	return mapRESTError(a.s.GuildMemberRoleAdd(guildID, userID, roleID))
}

func (a *sessionAdapter) Ban(guildID, userID, reason string) error {
	return mapRESTError(a.s.GuildBanCreateWithReason(guildID, userID, reason, 0))
}

func (a *sessionAdapter) RoleExists(guildID, roleID string) bool {
	if _, err := a.s.State.Role(guildID, roleID); err == nil {
		return true
	}
	roles, err := a.s.GuildRoles(guildID)
	if err != nil {
		return false
	}
	for _, r := range roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}

// AuditLog fetches the newest entries of one action type, shaped for the
// correlator. Entry timestamps come from the snowflake ID.
func (a *sessionAdapter) AuditLog(guildID string, action int, limit int) ([]audit.Entry, error) {
	page, err := a.s.GuildAuditLog(guildID, "", "", action, limit)
	if err != nil {
		return nil, err
	}
	return auditEntries(page), nil
}

// auditEntries flattens an audit-log page. Discord sends entry `options`
// (and the channel ID inside them) only for a few action types; webhook
// entries instead name their channel in the page's webhook list or in the
// entry's `channel_id` change, so the channel is resolved from whichever
// source the entry carries.
func auditEntries(page *discordgo.GuildAuditLog) []audit.Entry {
	webhookChannels := make(map[string]string, len(page.Webhooks))
	for _, wh := range page.Webhooks {
		webhookChannels[wh.ID] = wh.ChannelID
	}

	entries := make([]audit.Entry, 0, len(page.AuditLogEntries))
	for _, e := range page.AuditLogEntries {
		createdAt, err := discordgo.SnowflakeTimestamp(e.ID)
		if err != nil {
			continue
		}
		entry := audit.Entry{
			ActorID:   e.UserID,
			TargetID:  e.TargetID,
			CreatedAt: createdAt,
		}
		switch {
		case e.Options != nil && e.Options.ChannelID != "":
			entry.ChannelID = e.Options.ChannelID
		case webhookChannels[e.TargetID] != "":
			entry.ChannelID = webhookChannels[e.TargetID]
		default:
			entry.ChannelID = channelFromChanges(e.Changes)
		}
		entries = append(entries, entry)
	}
	return entries
}

func channelFromChanges(changes []*discordgo.AuditLogChange) string {
	for _, ch := range changes {
		if ch.Key == nil || *ch.Key != discordgo.AuditLogChangeKeyChannelID {
			continue
		}
		if id, ok := ch.NewValue.(string); ok {
			return id
		}
	}
	return ""
}

func (a *sessionAdapter) SendChannel(channelID, message string) error {
	_, err := a.s.ChannelMessageSend(channelID, message)
	return err
}

func (a *sessionAdapter) SendDM(userID, message string) error {
	ch, err := a.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = a.s.ChannelMessageSend(ch.ID, message)
	return err
}
