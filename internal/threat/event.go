package threat

// EventType enumerates the guild events that can earn threat score. The set
// is closed: scoring code switches over it exhaustively.
type EventType int

const (
	EventChannelDelete EventType = iota
	EventChannelCreate
	EventRoleCreate
	EventBan
	EventKick
	EventWebhookCreate
)

var eventNames = [...]string{
	EventChannelDelete: "channel_delete",
	EventChannelCreate: "channel_create",
	EventRoleCreate:    "role_create",
	EventBan:           "ban",
	EventKick:          "kick",
	EventWebhookCreate: "webhook_create",
}

func (e EventType) String() string {
	if int(e) < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// EventTypes lists every scored event type, in settings-key order.
func EventTypes() []EventType {
	return []EventType{
		EventChannelDelete,
		EventChannelCreate,
		EventRoleCreate,
		EventBan,
		EventKick,
		EventWebhookCreate,
	}
}

// Settings are the per-guild anti-nuke knobs: the quarantine threshold, the
// decay rate, and one weight per scored event type.
type Settings struct {
	Threshold      float64
	DecayPerSecond float64
	Weights        map[EventType]float64
}

// Weight returns the score added for one occurrence of an event type.
func (s Settings) Weight(e EventType) float64 {
	return s.Weights[e]
}

// SettingsSource yields the effective settings of a guild. Implementations
// are expected to cache; the decay scheduler calls this on every tick.
type SettingsSource interface {
	Guild(guildID string) (Settings, error)
}
