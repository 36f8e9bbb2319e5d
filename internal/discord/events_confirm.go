package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/audit"
	"github.com/bastionbot/bastion/internal/confirm"
	"github.com/bastionbot/bastion/internal/guard"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/threat"
)

// onMemberUpdate intercepts grants of roles carrying dangerous permissions.
// The grant is reverted immediately and only re-applied if the guild owner
// approves it within the confirmation window.
func (b *Bot) onMemberUpdate(s *discordgo.Session, e *discordgo.GuildMemberUpdate) {
	if b.correlator == nil || e.BeforeUpdate == nil {
		return
	}

	added := diffRoles(e.BeforeUpdate.Roles, e.Roles)
	if len(added) == 0 {
		return
	}

	ownerID, err := b.guildOwnerID(e.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to resolve guild owner")
		return
	}
	if e.User.ID == ownerID {
		return
	}

	for _, roleID := range added {
		perms, ok := b.rolePermissions(e.GuildID, roleID)
		if !ok || !guard.IsDangerous(perms) {
			continue
		}

		// A grant performed by the bot itself or the owner passes. An
		// unattributable grant is still intercepted: the role is dangerous
		// no matter who granted it.
		actorID, resolution := b.correlator.Actor(e.GuildID, ownerID,
			int(discordgo.AuditLogActionMemberRoleUpdate), auditLookback, e.User.ID, "")
		if resolution == audit.Exempt {
			continue
		}

		b.interceptRoleGrant(e.GuildID, ownerID, actorID, e.User.ID, roleID, perms)
	}
}

func (b *Bot) interceptRoleGrant(guildID, ownerID, actorID, userID, roleID string, perms int64) {
	b.svc.Counters.ActionsIntercepted.Add(1)

	if err := b.dg.GuildMemberRoleRemove(guildID, userID, roleID); err != nil {
		b.log.Error().Err(err).
			Str("guild_id", guildID).Str("user_id", userID).Str("role_id", roleID).
			Msg("failed to revert dangerous role grant")
		b.notifier.GuildLog(guildID, fmt.Sprintf(
			"⚠️ <@%s> was granted role <@&%s> with dangerous permissions and the revert **failed**. Remove it manually.",
			userID, roleID))
		return
	}

	dangerous := strings.Join(guard.DangerousIn(perms), ", ")
	b.journalInterception(guildID, userID, "dangerous_role_grant",
		fmt.Sprintf("role %s carries: %s", roleID, dangerous))

	id := b.svc.Confirms.Create(guildID, ownerID, confirm.Timeout, func(d confirm.Decision) {
		switch d {
		case confirm.Approved:
			if err := b.dg.GuildMemberRoleAdd(guildID, userID, roleID); err != nil {
				b.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to re-apply approved role")
				b.notifier.GuildLog(guildID, fmt.Sprintf("⚠️ The owner approved role <@&%s> for <@%s> but re-applying it failed.", roleID, userID))
				return
			}
			b.notifier.GuildLog(guildID, fmt.Sprintf("✅ Role <@&%s> for <@%s> was approved by the owner and re-applied.", roleID, userID))
		case confirm.Denied:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⛔ Role <@&%s> for <@%s> was denied by the owner and stays removed.", roleID, userID))
		case confirm.TimedOut:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⏱️ Role <@&%s> for <@%s>: the owner did not respond in time, it stays removed.", roleID, userID))
		}
	})

	content := fmt.Sprintf(
		"⚠️ **Dangerous role grant intercepted** in your server.\n<@%s> was granted <@&%s> (permissions: %s)%s.\nThe role has been removed. Approve the grant?",
		userID, roleID, dangerous, actorSuffix(actorID, "granted"))
	b.askOwner(guildID, ownerID, id, content)
}

// onRoleUpdate intercepts permission escalations on existing roles. Unlike a
// role grant, an escalation with no attributable actor is left alone: most
// such updates are routine integration changes and the permission diff is
// already capped by what the editor could do.
func (b *Bot) onRoleUpdate(s *discordgo.Session, e *discordgo.GuildRoleUpdate) {
	if b.correlator == nil {
		return
	}

	before, seen := b.roleCache.Get(e.GuildID, e.Role.ID)
	b.roleCache.Set(e.GuildID, e.Role.ID, e.Role.Permissions)
	if !seen {
		return
	}

	escalated := guard.Escalated(before, e.Role.Permissions)
	if len(escalated) == 0 {
		return
	}

	ownerID, err := b.guildOwnerID(e.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to resolve guild owner")
		return
	}

	actorID, resolution := b.correlator.Actor(e.GuildID, ownerID,
		int(discordgo.AuditLogActionRoleUpdate), auditLookback, e.Role.ID, "")
	if resolution != audit.Resolved {
		return
	}

	b.interceptEscalation(e.GuildID, ownerID, actorID, e.Role.ID, before, e.Role.Permissions, escalated)
}

func (b *Bot) interceptEscalation(guildID, ownerID, actorID, roleID string, before, after int64, escalated []string) {
	b.svc.Counters.ActionsIntercepted.Add(1)

	if _, err := b.dg.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &before}); err != nil {
		b.log.Error().Err(err).
			Str("guild_id", guildID).Str("role_id", roleID).
			Msg("failed to revert permission escalation")
		b.notifier.GuildLog(guildID, fmt.Sprintf(
			"⚠️ Role <@&%s> gained dangerous permissions (%s) and the revert **failed**. Fix it manually.",
			roleID, strings.Join(escalated, ", ")))
		return
	}

	b.journalInterception(guildID, actorID, "permission_escalation",
		fmt.Sprintf("role %s gained: %s", roleID, strings.Join(escalated, ", ")))

	id := b.svc.Confirms.Create(guildID, ownerID, confirm.Timeout, func(d confirm.Decision) {
		switch d {
		case confirm.Approved:
			if _, err := b.dg.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{Permissions: &after}); err != nil {
				b.log.Error().Err(err).Str("guild_id", guildID).Str("role_id", roleID).Msg("failed to re-apply approved permissions")
				b.notifier.GuildLog(guildID, fmt.Sprintf("⚠️ The owner approved the permission change on <@&%s> but re-applying it failed.", roleID))
				return
			}
			b.notifier.GuildLog(guildID, fmt.Sprintf("✅ Permission change on <@&%s> was approved by the owner and re-applied.", roleID))
		case confirm.Denied:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⛔ Permission change on <@&%s> was denied by the owner and stays reverted.", roleID))
		case confirm.TimedOut:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⏱️ Permission change on <@&%s>: the owner did not respond in time, it stays reverted.", roleID))
		}
	})

	content := fmt.Sprintf(
		"⚠️ **Permission escalation intercepted** in your server.\nRole <@&%s> gained: %s%s.\nThe change has been reverted. Approve it?",
		roleID, strings.Join(escalated, ", "), actorSuffix(actorID, "changed"))
	b.askOwner(guildID, ownerID, id, content)
}

// onWebhooksUpdate intercepts webhook creation. The gateway event names only
// the channel; the audit log supplies both the creator and the webhook ID,
// and lags the event enough to need the delay.
func (b *Bot) onWebhooksUpdate(s *discordgo.Session, e *discordgo.WebhooksUpdate) {
	if b.correlator == nil {
		return
	}
	time.Sleep(audit.PreQueryDelay)

	ownerID, err := b.guildOwnerID(e.GuildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to resolve guild owner")
		return
	}

	entry, resolution := b.correlator.Find(e.GuildID, ownerID,
		int(discordgo.AuditLogActionWebhookCreate), auditLookback, "", e.ChannelID)
	if resolution != audit.Resolved {
		return
	}

	out, allowed := b.scoreWebhookCreation(e.GuildID, entry.ActorID)
	if out.Triggered {
		b.onThreatTriggered(e.GuildID, ownerID, entry.ActorID, threat.EventWebhookCreate, out)
	}
	if allowed {
		b.log.Info().Str("guild_id", e.GuildID).Str("user_id", entry.ActorID).Msg("webhook creation allowed by grant")
		return
	}

	b.interceptWebhook(e.GuildID, ownerID, entry.ActorID, entry.TargetID, e.ChannelID)
}

// scoreWebhookCreation charges the webhook weight to the creator and reports
// whether an unexpired owner-approved grant lets this one creation through.
// The score accrues even when a grant exists.
func (b *Bot) scoreWebhookCreation(guildID, actorID string) (threat.Outcome, bool) {
	out, err := b.svc.Engine.AddScore(guildID, actorID, threat.EventWebhookCreate)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", actorID).Msg("failed to score webhook creation")
	}

	allowed, err := b.svc.DB.ConsumeActionGrant(guildID, actorID, storage.ActionWebhookCreate)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to check webhook grant")
	}
	return out, allowed
}

func (b *Bot) interceptWebhook(guildID, ownerID, actorID, webhookID, channelID string) {
	b.svc.Counters.ActionsIntercepted.Add(1)

	if err := b.dg.WebhookDelete(webhookID); err != nil {
		b.log.Error().Err(err).
			Str("guild_id", guildID).Str("webhook_id", webhookID).
			Msg("failed to delete intercepted webhook")
		b.notifier.GuildLog(guildID, fmt.Sprintf(
			"⚠️ <@%s> created a webhook in <#%s> and deleting it **failed**. Remove it manually.",
			actorID, channelID))
		return
	}

	b.journalInterception(guildID, actorID, "webhook_create",
		fmt.Sprintf("webhook in channel %s deleted", channelID))

	id := b.svc.Confirms.Create(guildID, ownerID, confirm.Timeout, func(d confirm.Decision) {
		switch d {
		case confirm.Approved:
			// The webhook is gone; approval issues a one-shot grant so the
			// creator can recreate it without another interception.
			if err := b.svc.DB.CreateActionGrant(guildID, actorID, storage.ActionWebhookCreate, time.Hour); err != nil {
				b.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", actorID).Msg("failed to issue webhook grant")
				return
			}
			b.notifier.GuildLog(guildID, fmt.Sprintf("✅ The owner approved webhook creation by <@%s>. They may create one webhook within the next hour.", actorID))
		case confirm.Denied:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⛔ Webhook creation by <@%s> was denied by the owner.", actorID))
		case confirm.TimedOut:
			b.notifier.GuildLog(guildID, fmt.Sprintf("⏱️ Webhook creation by <@%s>: the owner did not respond in time.", actorID))
		}
	})

	content := fmt.Sprintf(
		"⚠️ **Webhook creation intercepted** in your server.\n<@%s> created a webhook in <#%s>; it has been deleted.\nAllow them to create one?",
		actorID, channelID)
	b.askOwner(guildID, ownerID, id, content)
}

// askOwner delivers a pending confirmation to the owner's DMs. Failure fails
// closed: the confirmation is cancelled and the reverted state stands.
func (b *Bot) askOwner(guildID, ownerID, confirmID, content string) {
	ch, err := b.dg.UserChannelCreate(ownerID)
	if err == nil {
		_, err = b.dg.ChannelMessageSendComplex(ch.ID, &discordgo.MessageSend{
			Content: content,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.Button{
							Label:    "Approve",
							Style:    discordgo.SuccessButton,
							CustomID: fmt.Sprintf("%s%s:approve", componentConfirmPrefix, confirmID),
						},
						discordgo.Button{
							Label:    "Deny",
							Style:    discordgo.DangerButton,
							CustomID: fmt.Sprintf("%s%s:deny", componentConfirmPrefix, confirmID),
						},
					},
				},
			},
		})
	}
	if err != nil {
		b.svc.Confirms.Cancel(confirmID)
		b.log.Warn().Err(err).Str("user_id", ownerID).Msg("owner unreachable, confirmation cancelled")
		b.notifier.GuildLog(guildID, "⚠️ The server owner could not be reached for a confirmation. The intercepted action stays reverted.")
	}
}

func (b *Bot) journalInterception(guildID, userID, eventType, reason string) {
	if err := b.svc.Journal.Append(guildID, storage.Incident{
		UserID:    userID,
		EventType: eventType,
		Action:    "reverted",
		Reason:    reason,
		Datetime:  time.Now(),
	}); err != nil {
		b.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to journal interception")
	}
}

// rolePermissions reads a role's permission bitset, preferring the cache.
func (b *Bot) rolePermissions(guildID, roleID string) (int64, bool) {
	if perms, ok := b.roleCache.Get(guildID, roleID); ok {
		return perms, true
	}
	role, err := b.dg.State.Role(guildID, roleID)
	if err != nil {
		return 0, false
	}
	b.roleCache.Set(guildID, roleID, role.Permissions)
	return role.Permissions, true
}

// diffRoles returns the IDs present in after but not in before.
func diffRoles(before, after []string) []string {
	known := make(map[string]struct{}, len(before))
	for _, id := range before {
		known[id] = struct{}{}
	}
	var added []string
	for _, id := range after {
		if _, ok := known[id]; !ok {
			added = append(added, id)
		}
	}
	return added
}

func actorSuffix(actorID, verb string) string {
	if actorID == "" {
		return ""
	}
	return fmt.Sprintf(" (%s by <@%s>)", verb, actorID)
}
