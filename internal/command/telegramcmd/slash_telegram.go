package telegramcmd

import (
	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
)

func init() {
	command.Register(&TelegramCommand{}, command.WithCommandLogger())
}

// TelegramCommand links a Telegram chat that receives copies of security
// alerts. The bot token is stored encrypted.
type TelegramCommand struct{}

func (c *TelegramCommand) Name() string        { return "telegram" }
func (c *TelegramCommand) Description() string { return "Relay security alerts to Telegram" }
func (c *TelegramCommand) OwnerOnly() bool     { return true }

func (c *TelegramCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "link",
				Description: "Link a Telegram chat for alerts",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "chat-id",
						Description: "Your Telegram chat ID",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "bot-token",
						Description: "Your Telegram bot token (stored encrypted)",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "unlink",
				Description: "Stop relaying alerts to Telegram",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "test",
				Description: "Send a test message to the linked chat",
			},
		},
	}
}

func (c *TelegramCommand) Run(ctx *command.Context) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "No subcommand provided.")
	}

	sub := data.Options[0]
	switch sub.Name {
	case "link":
		chatID := sub.Options[0].StringValue()
		token := sub.Options[1].StringValue()
		if err := ctx.Deps.Relay.Link(ctx.GuildID(), chatID, token); err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to link telegram")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "Could not link Telegram. Is the relay enabled on this deployment?")
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Telegram linked. Security alerts will be relayed there.")

	case "unlink":
		if err := ctx.Deps.Relay.Unlink(ctx.GuildID()); err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to unlink telegram")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong, please try again later.")
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Telegram unlinked.")

	case "test":
		configured, err := ctx.Deps.Relay.Configured(ctx.GuildID())
		if err != nil || !configured {
			return command.RespondEphemeral(ctx.Session, ctx.Event, "No Telegram chat is linked. Use `/telegram link` first.")
		}
		if err := ctx.Deps.Relay.Send(ctx.GuildID(), "**Test**: this chat receives security alerts for your server."); err != nil {
			ctx.Deps.Log.Warn().Err(err).Str("guild_id", ctx.GuildID()).Msg("telegram test send failed")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "The test message could not be delivered. Check the chat ID and token.")
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Test message sent.")

	default:
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Unknown subcommand.")
	}
}
