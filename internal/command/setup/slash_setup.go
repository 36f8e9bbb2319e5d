package setup

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
	"github.com/bastionbot/bastion/internal/storage"
)

// QuarantineRoleName is the name of the role the bot creates when none is
// configured yet.
const QuarantineRoleName = "🚫 Quarantine"

func init() {
	command.Register(&SetupCommand{}, command.WithCommandLogger())
}

// SetupCommand configures the quarantine role and the log channel.
type SetupCommand struct{}

func (c *SetupCommand) Name() string        { return "setup" }
func (c *SetupCommand) Description() string { return "Configure the security system" }
func (c *SetupCommand) OwnerOnly() bool     { return true }

func (c *SetupCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "quarantine-role",
				Description: "Find or create the quarantine role and register it",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "log-channel",
				Description: "Set the channel security events are posted to",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionChannel,
						Name:        "channel",
						Description: "The log channel",
						Required:    true,
						ChannelTypes: []discordgo.ChannelType{
							discordgo.ChannelTypeGuildText,
						},
					},
				},
			},
		},
	}
}

func (c *SetupCommand) Run(ctx *command.Context) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "No subcommand provided.")
	}

	sub := data.Options[0]
	switch sub.Name {
	case "quarantine-role":
		return c.runQuarantineRole(ctx)
	case "log-channel":
		return c.runLogChannel(ctx, sub)
	default:
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Unknown subcommand.")
	}
}

// runQuarantineRole looks for an existing role by name, creates a
// zero-permission one when missing, and registers its ID. Registering the
// ID is what arms the quarantine state machine.
func (c *SetupCommand) runQuarantineRole(ctx *command.Context) error {
	s, e := ctx.Session, ctx.Event

	guild, err := s.State.Guild(e.GuildID)
	if err != nil {
		return command.RespondEphemeral(s, e, "Something went wrong reading the server state.")
	}

	var role *discordgo.Role
	for _, r := range guild.Roles {
		if r.Name == QuarantineRoleName {
			role = r
			break
		}
	}

	if role == nil {
		perms := int64(0)
		role, err = s.GuildRoleCreate(e.GuildID, &discordgo.RoleParams{
			Name:        QuarantineRoleName,
			Permissions: &perms,
		})
		if err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to create quarantine role")
			return command.RespondEphemeral(s, e, "I could not create the quarantine role. Do I have Manage Roles?")
		}
	}

	if err := ctx.Deps.DB.SetGuildConfig(e.GuildID, storage.KeyQuarantineRole, role.ID); err != nil {
		ctx.Deps.Log.Error().Err(err).Str("guild_id", e.GuildID).Msg("failed to store quarantine role")
		return command.RespondEphemeral(s, e, "Something went wrong saving the configuration.")
	}
	ctx.Deps.Settings.Invalidate(e.GuildID)

	return command.RespondEphemeral(s, e, fmt.Sprintf(
		"Quarantine role is <@&%s>. Make sure my own role sits above it and above the members I should be able to isolate.", role.ID))
}

func (c *SetupCommand) runLogChannel(ctx *command.Context, sub *discordgo.ApplicationCommandInteractionDataOption) error {
	channel := sub.Options[0].ChannelValue(nil)
	if err := ctx.Deps.DB.SetGuildConfig(ctx.GuildID(), storage.KeyLogChannel, channel.ID); err != nil {
		ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to store log channel")
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong saving the configuration.")
	}
	return command.RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("Security events will be posted to <#%s>.", channel.ID))
}
