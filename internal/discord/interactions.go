package discord

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
	"github.com/bastionbot/bastion/internal/quarantine"
)

const (
	componentConfirmPrefix  = "confirm:"
	componentDecisionPrefix = "qdec:"
)

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.dispatchCommand(s, i)
	case discordgo.InteractionMessageComponent:
		b.dispatchComponent(s, i)
	}
}

func (b *Bot) dispatchCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	cmd, ok := command.Get(name)
	if !ok {
		b.log.Warn().Str("command", name).Msg("unknown command")
		return
	}

	ctx := &command.Context{Session: s, Event: i, Deps: b.deps}

	if cmd.OwnerOnly() {
		ownerID, err := b.guildOwnerID(i.GuildID)
		if err != nil {
			b.log.Error().Err(err).Str("guild_id", i.GuildID).Msg("failed to resolve guild owner")
			command.RespondEphemeral(s, i, "Something went wrong, please try again later.")
			return
		}
		if ctx.UserID() != ownerID {
			command.RespondEphemeral(s, i, "Only the server owner can use this command.")
			return
		}
	}

	if err := cmd.Run(ctx); err != nil {
		b.log.Error().Err(err).Str("command", name).Str("guild_id", i.GuildID).Msg("command failed")
		command.RespondEphemeral(s, i, fmt.Sprintf("Error running command: %v", err))
	}
}

func (b *Bot) dispatchComponent(s *discordgo.Session, i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	switch {
	case strings.HasPrefix(customID, componentConfirmPrefix):
		b.handleConfirmButton(s, i, customID)
	case strings.HasPrefix(customID, componentDecisionPrefix):
		b.handleDecisionButton(s, i, customID)
	default:
		b.log.Warn().Str("custom_id", customID).Msg("unmatched component interaction")
	}
}

// handleConfirmButton settles an owner confirmation. The correlation ID in
// the custom ID is the single source of truth; a click on an already settled
// confirmation only gets an ephemeral notice.
func (b *Bot) handleConfirmButton(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	parts := strings.Split(customID, ":")
	if len(parts) != 3 {
		b.log.Warn().Str("custom_id", customID).Msg("malformed confirm component")
		return
	}
	id, verdict := parts[1], parts[2]
	approved := verdict == "approve"

	responderID := interactionUserID(i)
	if !b.svc.Confirms.Resolve(id, responderID, approved) {
		command.RespondEphemeral(s, i, "This confirmation has already been resolved or has expired.")
		return
	}

	outcome := "Denied. The action stays reverted."
	if approved {
		outcome = "Approved."
	}
	b.updateComponentMessage(s, i, fmt.Sprintf("%s\n\n**%s**", i.Message.Content, outcome))
}

// handleDecisionButton applies the owner's verdict on a quarantined member:
// restore, ban, or keep.
func (b *Bot) handleDecisionButton(s *discordgo.Session, i *discordgo.InteractionCreate, customID string) {
	parts := strings.Split(customID, ":")
	if len(parts) != 4 {
		b.log.Warn().Str("custom_id", customID).Msg("malformed decision component")
		return
	}
	guildID, userID, verdict := parts[1], parts[2], parts[3]

	ownerID, err := b.guildOwnerID(guildID)
	if err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to resolve guild owner")
		command.RespondEphemeral(s, i, "Something went wrong, please try again later.")
		return
	}
	if interactionUserID(i) != ownerID {
		command.RespondEphemeral(s, i, "Only the server owner can decide this.")
		return
	}

	var res quarantine.Result
	var outcome string
	switch verdict {
	case "restore":
		res = b.quarantine.Restore(guildID, userID, "owner decision")
		outcome = fmt.Sprintf("**Restored**: <@%s> got their roles back.", userID)
	case "ban":
		res = b.quarantine.Ban(guildID, userID, "Anti-nuke: owner decision")
		outcome = fmt.Sprintf("**Banned**: <@%s> has been banned.", userID)
	case "keep":
		res = b.quarantine.Keep(guildID, userID)
		outcome = fmt.Sprintf("**Kept**: <@%s> stays in quarantine.", userID)
	default:
		b.log.Warn().Str("custom_id", customID).Msg("unknown decision verdict")
		return
	}

	if !res.OK() {
		command.RespondEphemeral(s, i, fmt.Sprintf("Could not apply the decision: %s.", res.Code))
		return
	}

	b.notifier.GuildLog(guildID, outcome)
	b.updateComponentMessage(s, i, fmt.Sprintf("%s\n\n%s", i.Message.Content, outcome))
}

// updateComponentMessage rewrites the message a button lives on and strips
// its components so the buttons cannot be clicked again.
func (b *Bot) updateComponentMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: []discordgo.MessageComponent{},
		},
	})
	if err != nil {
		b.log.Warn().Err(err).Msg("failed to update component message")
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
