package command

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/quarantine"
	"github.com/bastionbot/bastion/internal/settings"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/telegram"
)

// Deps are the services commands operate on, constructed once in main and
// passed through the dispatcher.
type Deps struct {
	DB         *storage.DB
	Settings   *settings.Cache
	Quarantine *quarantine.Service
	Journal    *storage.IncidentJournal
	Relay      *telegram.Relay
	Log        zerolog.Logger
}

// Context is what the dispatcher hands a command on execution.
type Context struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Deps    *Deps
}

// GuildID returns the guild the interaction came from.
func (c *Context) GuildID() string { return c.Event.GuildID }

// UserID returns the invoking user.
func (c *Context) UserID() string {
	if c.Event.Member != nil {
		return c.Event.Member.User.ID
	}
	if c.Event.User != nil {
		return c.Event.User.ID
	}
	return ""
}

// Command is a slash command.
type Command interface {
	Name() string
	Description() string
	// OwnerOnly commands are refused for anyone but the guild owner.
	OwnerOnly() bool
	Definition() *discordgo.ApplicationCommand
	Run(ctx *Context) error
}
