package antinuke

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
	"github.com/bastionbot/bastion/internal/settings"
	"github.com/bastionbot/bastion/internal/threat"
)

func init() {
	command.Register(&AntiNukeCommand{}, command.WithCommandLogger())
}

// AntiNukeCommand views and tunes the guild's threat scoring settings.
type AntiNukeCommand struct{}

func (c *AntiNukeCommand) Name() string        { return "antinuke" }
func (c *AntiNukeCommand) Description() string { return "View or tune the anti-nuke thresholds" }
func (c *AntiNukeCommand) OwnerOnly() bool     { return true }

func (c *AntiNukeCommand) Definition() *discordgo.ApplicationCommand {
	settingChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: "threshold", Value: settings.KeyThreshold},
		{Name: "decay per second", Value: settings.KeyDecay},
	}
	for _, e := range threat.EventTypes() {
		settingChoices = append(settingChoices, &discordgo.ApplicationCommandOptionChoice{
			Name: "weight: " + e.String(), Value: e.String(),
		})
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "view",
				Description: "Show the effective settings for this server",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Override one setting for this server",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "setting",
						Description: "Which setting to change",
						Required:    true,
						Choices:     settingChoices,
					},
					{
						Type:        discordgo.ApplicationCommandOptionNumber,
						Name:        "value",
						Description: "New value (0 disables scoring for a weight)",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reset",
				Description: "Drop all overrides and return to the defaults",
			},
		},
	}
}

func (c *AntiNukeCommand) Run(ctx *command.Context) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "No subcommand provided.")
	}

	sub := data.Options[0]
	switch sub.Name {
	case "view":
		return c.runView(ctx)
	case "set":
		return c.runSet(ctx, sub)
	case "reset":
		return c.runReset(ctx)
	default:
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Unknown subcommand.")
	}
}

func (c *AntiNukeCommand) runView(ctx *command.Context) error {
	cfg, err := ctx.Deps.Settings.Guild(ctx.GuildID())
	if err != nil {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong reading the settings. Please try again later.")
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "Quarantine threshold", Value: fmt.Sprintf("%.1f", cfg.Threshold), Inline: true},
		{Name: "Decay per second", Value: fmt.Sprintf("%.1f", cfg.DecayPerSecond), Inline: true},
	}
	for _, e := range threat.EventTypes() {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name: e.String(), Value: fmt.Sprintf("%.1f", cfg.Weight(e)), Inline: true,
		})
	}

	return command.RespondEmbedEphemeral(ctx.Session, ctx.Event, &discordgo.MessageEmbed{
		Title:  "Anti-nuke settings",
		Fields: fields,
	})
}

func (c *AntiNukeCommand) runSet(ctx *command.Context, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	key := sub.Options[0].StringValue()
	value := sub.Options[1].FloatValue()
	if value < 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Values cannot be negative.")
	}

	if err := ctx.Deps.Settings.Set(ctx.GuildID(), key, value); err != nil {
		ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Str("key", key).Msg("failed to store setting")
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong saving the setting. Please try again later.")
	}
	return command.RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("`%s` is now **%.1f** for this server.", key, value))
}

func (c *AntiNukeCommand) runReset(ctx *command.Context) error {
	if err := ctx.Deps.Settings.Reset(ctx.GuildID()); err != nil {
		ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to reset settings")
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong resetting the settings. Please try again later.")
	}
	return command.RespondEphemeral(ctx.Session, ctx.Event, "All anti-nuke overrides dropped; defaults apply again.")
}
