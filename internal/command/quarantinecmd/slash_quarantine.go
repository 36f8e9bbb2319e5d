package quarantinecmd

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
	"github.com/bastionbot/bastion/internal/quarantine"
)

func init() {
	command.Register(&QuarantineCommand{}, command.WithCommandLogger())
}

// QuarantineCommand lets the owner inspect and resolve quarantines manually.
type QuarantineCommand struct{}

func (c *QuarantineCommand) Name() string        { return "quarantine" }
func (c *QuarantineCommand) Description() string { return "Inspect and resolve quarantined members" }
func (c *QuarantineCommand) OwnerOnly() bool     { return true }

func (c *QuarantineCommand) Definition() *discordgo.ApplicationCommand {
	target := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "member",
		Description: "The quarantined member",
		Required:    true,
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List active quarantines and recent incidents",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "restore",
				Description: "Release a member and give their roles back",
				Options:     []*discordgo.ApplicationCommandOption{target},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "ban",
				Description: "Ban a quarantined member",
				Options:     []*discordgo.ApplicationCommandOption{target},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "keep",
				Description: "Close the case but leave the member quarantined",
				Options:     []*discordgo.ApplicationCommandOption{target},
			},
		},
	}
}

func (c *QuarantineCommand) Run(ctx *command.Context) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "No subcommand provided.")
	}

	sub := data.Options[0]
	if sub.Name == "list" {
		return c.runList(ctx)
	}

	userID := sub.Options[0].UserValue(nil).ID
	var res quarantine.Result
	switch sub.Name {
	case "restore":
		res = ctx.Deps.Quarantine.Restore(ctx.GuildID(), userID, "Released by the server owner")
	case "ban":
		res = ctx.Deps.Quarantine.Ban(ctx.GuildID(), userID, "Banned by the server owner after quarantine")
	case "keep":
		res = ctx.Deps.Quarantine.Keep(ctx.GuildID(), userID)
	default:
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Unknown subcommand.")
	}

	return command.RespondEphemeral(ctx.Session, ctx.Event, resultMessage(sub.Name, userID, res))
}

func resultMessage(action, userID string, res quarantine.Result) string {
	if res.OK() {
		switch action {
		case "restore":
			return fmt.Sprintf("<@%s> has been released; their roles are back.", userID)
		case "ban":
			return fmt.Sprintf("<@%s> has been banned.", userID)
		case "keep":
			return fmt.Sprintf("Case closed; <@%s> stays quarantined.", userID)
		}
	}

	switch res.Code {
	case quarantine.CodeNotInQuarantine:
		return fmt.Sprintf("<@%s> is not in quarantine.", userID)
	case quarantine.CodeUserNotFound:
		return "That member is no longer in the server."
	case quarantine.CodeHierarchy:
		return "My role sits too low to edit that member. Move my role up and try again."
	default:
		return "Something went wrong, please try again later."
	}
}

func (c *QuarantineCommand) runList(ctx *command.Context) error {
	records, err := ctx.Deps.DB.ActiveQuarantines(ctx.GuildID())
	if err != nil {
		ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to list quarantines")
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong, please try again later.")
	}

	var sb strings.Builder
	if len(records) == 0 {
		sb.WriteString("No members are quarantined right now.\n")
	} else {
		sb.WriteString("**Active quarantines**\n")
		for _, rec := range records {
			fmt.Fprintf(&sb, "• <@%s> — %s (since <t:%d:R>)\n", rec.UserID, rec.Reason, rec.QuarantinedAt.Unix())
		}
	}

	incidents, err := ctx.Deps.Journal.Recent(ctx.GuildID())
	if err == nil && len(incidents) > 0 {
		sb.WriteString("\n**Recent incidents**\n")
		for i := len(incidents) - 1; i >= 0 && i >= len(incidents)-5; i-- {
			inc := incidents[i]
			fmt.Fprintf(&sb, "• <t:%d:R> %s — %s (%.1f/%.1f) → %s\n",
				inc.Datetime.Unix(), inc.Username, inc.EventType, inc.Score, inc.Threshold, inc.Action)
		}
	}

	return command.RespondEmbedEphemeral(ctx.Session, ctx.Event, &discordgo.MessageEmbed{
		Title:       "Quarantine overview",
		Description: sb.String(),
	})
}
