package discord

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/audit"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/threat"
)

// auditLookback is how many recent audit entries a correlation scans.
const auditLookback = 10

func (b *Bot) onChannelDelete(s *discordgo.Session, e *discordgo.ChannelDelete) {
	if e.GuildID == "" {
		return
	}
	b.scoreEvent(e.GuildID, threat.EventChannelDelete, int(discordgo.AuditLogActionChannelDelete), e.ID, "", 0)
}

func (b *Bot) onChannelCreate(s *discordgo.Session, e *discordgo.ChannelCreate) {
	if e.GuildID == "" {
		return
	}
	b.scoreEvent(e.GuildID, threat.EventChannelCreate, int(discordgo.AuditLogActionChannelCreate), e.ID, "", 0)
}

func (b *Bot) onRoleCreate(s *discordgo.Session, e *discordgo.GuildRoleCreate) {
	b.roleCache.Set(e.GuildID, e.Role.ID, e.Role.Permissions)
	b.scoreEvent(e.GuildID, threat.EventRoleCreate, int(discordgo.AuditLogActionRoleCreate), e.Role.ID, "", 0)
}

func (b *Bot) onBanAdd(s *discordgo.Session, e *discordgo.GuildBanAdd) {
	b.scoreEvent(e.GuildID, threat.EventBan, int(discordgo.AuditLogActionMemberBanAdd), e.User.ID, "", 0)
}

// onMemberRemove fires for leaves and kicks alike; only a matching recent
// kick entry in the audit log distinguishes them. The entry lags the gateway
// event, hence the delay before querying.
func (b *Bot) onMemberRemove(s *discordgo.Session, e *discordgo.GuildMemberRemove) {
	b.scoreEvent(e.GuildID, threat.EventKick, int(discordgo.AuditLogActionMemberKick), e.User.ID, "", audit.PreQueryDelay)
}

// scoreEvent attributes one guild event to an actor and feeds it to the
// threat engine. Events whose actor is exempt or cannot be resolved score
// nothing. Handlers run in their own goroutines, so the delay is a plain
// sleep.
func (b *Bot) scoreEvent(guildID string, event threat.EventType, auditAction int, targetID, channelID string, delay time.Duration) {
	if b.correlator == nil {
		return
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	ownerID, err := b.guildOwnerID(guildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to resolve guild owner")
		return
	}

	actorID, resolution := b.correlator.Actor(guildID, ownerID, auditAction, auditLookback, targetID, channelID)
	switch resolution {
	case audit.Exempt:
		return
	case audit.Unknown:
		b.log.Debug().Str("guild_id", guildID).Str("event", event.String()).Msg("no attributable actor, not scored")
		return
	}

	out, err := b.svc.Engine.AddScore(guildID, actorID, event)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", actorID).Msg("failed to score event")
		return
	}

	b.log.Debug().
		Str("guild_id", guildID).
		Str("user_id", actorID).
		Str("event", event.String()).
		Float64("score", out.Score).
		Float64("threshold", out.Threshold).
		Msg("event scored")

	if out.Triggered {
		b.onThreatTriggered(guildID, ownerID, actorID, event, out)
	}
}

// onThreatTriggered runs the containment procedure for a member whose score
// crossed the threshold: quarantine (or ban when hierarchy blocks the role
// edit), journal the incident, notify every sink, and ask the owner what to
// do with the member.
func (b *Bot) onThreatTriggered(guildID, ownerID, userID string, event threat.EventType, out threat.Outcome) {
	b.svc.Counters.AntiNukeTriggers.Add(1)

	reason := fmt.Sprintf("Anti-nuke: threat score %.1f crossed threshold %.1f (last event: %s)", out.Score, out.Threshold, event)
	res, banned := b.quarantine.QuarantineOrBan(guildID, userID, reason)
	if !res.OK() {
		b.log.Error().
			Str("guild_id", guildID).
			Str("user_id", userID).
			Str("code", res.Code.String()).
			Msg("containment failed after threat trigger")
		b.notifier.Incident(guildID, ownerID, fmt.Sprintf(
			"⚠️ **Anti-nuke triggered** for <@%s> (score %.1f/%.1f) but containment failed: %s. Check the bot's role and configuration.",
			userID, out.Score, out.Threshold, res.Code))
		return
	}

	action := "quarantine"
	if banned {
		action = "ban"
	}

	username := userID
	if member, err := b.dg.GuildMember(guildID, userID); err == nil {
		username = member.User.Username
	}

	if err := b.svc.Journal.Append(guildID, storage.Incident{
		UserID:    userID,
		Username:  username,
		EventType: event.String(),
		Score:     out.Score,
		Threshold: out.Threshold,
		Action:    action,
		Reason:    reason,
		Datetime:  time.Now(),
	}); err != nil {
		b.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to journal incident")
	}

	if banned {
		b.notifier.Incident(guildID, ownerID, fmt.Sprintf(
			"🚨 **Anti-nuke triggered**: <@%s> (score %.1f/%.1f, last event: %s) could not be quarantined and has been **banned**.",
			userID, out.Score, out.Threshold, event))
		return
	}

	b.notifier.GuildLog(guildID, fmt.Sprintf(
		"🚨 **Anti-nuke triggered**: <@%s> (score %.1f/%.1f, last event: %s) has been quarantined.",
		userID, out.Score, out.Threshold, event))
	b.notifier.Relay(guildID, fmt.Sprintf(
		"🚨 **Anti-nuke triggered**: %s (score %.1f/%.1f, last event: %s) has been quarantined.",
		username, out.Score, out.Threshold, event))
	b.sendDecisionDM(guildID, ownerID, userID, out)
}

// sendDecisionDM asks the guild owner what to do with a quarantined member.
// DM delivery failing is not fatal here: the member is already contained and
// the owner can still act through /quarantine.
func (b *Bot) sendDecisionDM(guildID, ownerID, userID string, out threat.Outcome) {
	ch, err := b.dg.UserChannelCreate(ownerID)
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", ownerID).Msg("failed to open owner DM for decision")
		return
	}

	content := fmt.Sprintf(
		"🚨 **Anti-nuke triggered** in your server.\n<@%s> reached threat score %.1f (threshold %.1f) and has been quarantined.\nWhat should happen to them?",
		userID, out.Score, out.Threshold)

	_, err = b.dg.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
		Content: content,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "Restore roles",
						Style:    discordgo.SuccessButton,
						CustomID: fmt.Sprintf("%s%s:%s:restore", componentDecisionPrefix, guildID, userID),
					},
					discordgo.Button{
						Label:    "Ban",
						Style:    discordgo.DangerButton,
						CustomID: fmt.Sprintf("%s%s:%s:ban", componentDecisionPrefix, guildID, userID),
					},
					discordgo.Button{
						Label:    "Keep quarantined",
						Style:    discordgo.SecondaryButton,
						CustomID: fmt.Sprintf("%s%s:%s:keep", componentDecisionPrefix, guildID, userID),
					},
				},
			},
		},
	})
	if err != nil {
		b.log.Warn().Err(err).Str("user_id", ownerID).Msg("failed to send decision DM")
	}
}
