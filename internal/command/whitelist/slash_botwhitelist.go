package whitelist

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/bastionbot/bastion/internal/command"
)

func init() {
	command.Register(&BotWhitelistCommand{}, command.WithCommandLogger())
}

// BotWhitelistCommand manages the list of bot accounts allowed to join.
// Unlisted bots added by anyone but the owner are banned on sight by the
// join gate.
type BotWhitelistCommand struct{}

func (c *BotWhitelistCommand) Name() string        { return "botwhitelist" }
func (c *BotWhitelistCommand) Description() string { return "Manage which bots may join this server" }
func (c *BotWhitelistCommand) OwnerOnly() bool     { return true }

func (c *BotWhitelistCommand) Definition() *discordgo.ApplicationCommand {
	target := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "bot",
		Description: "The bot account",
		Required:    true,
	}
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Allow a bot to join",
				Options:     []*discordgo.ApplicationCommandOption{target},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a bot from the whitelist",
				Options:     []*discordgo.ApplicationCommandOption{target},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "Show the whitelisted bots",
			},
		},
	}
}

func (c *BotWhitelistCommand) Run(ctx *command.Context) error {
	data := ctx.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return command.RespondEphemeral(ctx.Session, ctx.Event, "No subcommand provided.")
	}

	sub := data.Options[0]
	switch sub.Name {
	case "add":
		botID := sub.Options[0].UserValue(nil).ID
		if err := ctx.Deps.DB.AllowBot(ctx.GuildID(), botID); err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to whitelist bot")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong, please try again later.")
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("<@%s> may join this server now.", botID))

	case "remove":
		botID := sub.Options[0].UserValue(nil).ID
		if err := ctx.Deps.DB.DisallowBot(ctx.GuildID(), botID); err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to remove bot from whitelist")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong, please try again later.")
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, fmt.Sprintf("<@%s> removed from the whitelist.", botID))

	case "list":
		ids, err := ctx.Deps.DB.AllowedBots(ctx.GuildID())
		if err != nil {
			ctx.Deps.Log.Error().Err(err).Str("guild_id", ctx.GuildID()).Msg("failed to list bot whitelist")
			return command.RespondEphemeral(ctx.Session, ctx.Event, "Something went wrong, please try again later.")
		}
		if len(ids) == 0 {
			return command.RespondEphemeral(ctx.Session, ctx.Event, "No bots are whitelisted. Any bot not added by you will be banned on join.")
		}
		mentions := make([]string, len(ids))
		for i, id := range ids {
			mentions[i] = fmt.Sprintf("<@%s>", id)
		}
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Whitelisted bots: "+strings.Join(mentions, ", "))

	default:
		return command.RespondEphemeral(ctx.Session, ctx.Event, "Unknown subcommand.")
	}
}
