// Package notify fans security events out to the guild's log channel, the
// owner's direct messages, and the Telegram relay. Every sink is
// best-effort: a closed DM or an unreachable relay is logged and never
// rolls back the state transition that produced the notification.
package notify

import (
	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
)

// Messenger is the Discord delivery surface. The session adapter implements
// it; tests supply fakes.
type Messenger interface {
	SendChannel(channelID, message string) error
	SendDM(userID, message string) error
}

// RelaySender delivers to the external relay.
type RelaySender interface {
	Send(guildID, message string) error
}

// Notifier delivers to up to three sinks per event.
type Notifier struct {
	db    *storage.DB
	msg   Messenger
	relay RelaySender
	log   zerolog.Logger
}

// New builds a notifier. relay may be nil when no external relay is wired.
func New(db *storage.DB, msg Messenger, relay RelaySender, log zerolog.Logger) *Notifier {
	return &Notifier{db: db, msg: msg, relay: relay, log: log}
}

// GuildLog posts to the guild's configured log channel, if any.
func (n *Notifier) GuildLog(guildID, message string) {
	channelID, found, err := n.db.GetGuildConfig(guildID, storage.KeyLogChannel)
	if err != nil {
		n.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to read log channel config")
		return
	}
	if !found || channelID == "" {
		return
	}
	if err := n.msg.SendChannel(channelID, message); err != nil {
		n.log.Warn().Err(err).Str("guild_id", guildID).Str("channel_id", channelID).Msg("failed to post to log channel")
	}
}

// OwnerDM sends a direct message to the guild owner.
func (n *Notifier) OwnerDM(ownerID, message string) {
	if err := n.msg.SendDM(ownerID, message); err != nil {
		n.log.Warn().Err(err).Str("user_id", ownerID).Msg("failed to DM owner")
	}
}

// Relay forwards to the external relay, if one is linked for the guild.
func (n *Notifier) Relay(guildID, message string) {
	if n.relay == nil {
		return
	}
	if err := n.relay.Send(guildID, message); err != nil {
		n.log.Warn().Err(err).Str("guild_id", guildID).Msg("failed to relay alert")
	}
}

// Incident delivers one event to all three sinks.
func (n *Notifier) Incident(guildID, ownerID, message string) {
	n.GuildLog(guildID, message)
	n.OwnerDM(ownerID, message)
	n.Relay(guildID, message)
}
