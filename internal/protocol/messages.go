// Package protocol defines the JSON event types exchanged between the
// triage bot, the gateway, and the platform bridge over NATS, plus the
// normalization of conversational menu answers.
package protocol

// ---------------------------------------------------------------------------
// Direct-message events (user <-> bot conversations)
// ---------------------------------------------------------------------------

// InboundDM is a direct message from a user to the bot, published on
// dm.inbound by the gateway or the platform bridge.
type InboundDM struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name,omitempty"`
	Content  string `json:"content"`
	Ts       int64  `json:"ts,omitempty"`
}

// OutboundDM is a reply from the bot to a user, published on
// dm.outbound.<user_id>.
type OutboundDM struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
	Ts      int64  `json:"ts,omitempty"`
}

// ---------------------------------------------------------------------------
// Guild events (automated flagging pipeline)
// ---------------------------------------------------------------------------

// ChannelMessage is a message posted in a monitored guild channel,
// published on guild.message.
type ChannelMessage struct {
	GuildID    string `json:"guild_id"`
	ChannelID  string `json:"channel_id"`
	MessageID  string `json:"message_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	ImageURL   string `json:"image_url,omitempty"`
	Ts         int64  `json:"ts,omitempty"`
}

// EditEvent signals that a previously delivered message was edited,
// published on guild.edit. The bot refetches and rescores it.
type EditEvent struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// ---------------------------------------------------------------------------
// Platform bridge request/reply
// ---------------------------------------------------------------------------

// FetchResponse status values.
const (
	FetchOK              = "ok"
	FetchUnknownGuild    = "unknown_guild"
	FetchChannelNotFound = "channel_not_found"
	FetchMessageNotFound = "message_not_found"
)

// FetchRequest asks the platform bridge to resolve a message reference.
// Sent as a NATS request on platform.fetch.
type FetchRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
}

// FetchResponse carries the resolved message snapshot, or a status
// explaining why the reference could not be resolved.
type FetchResponse struct {
	Status     string `json:"status"`
	AuthorID   string `json:"author_id,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
	Content    string `json:"content,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// ChannelSend asks the platform bridge to post content to a channel,
// published on platform.send.<channel_id>.
type ChannelSend struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

// MarkerRequest asks the platform bridge to apply a reaction marker to a
// message, published on platform.marker.
type MarkerRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
	MessageID string `json:"message_id"`
	Marker    string `json:"marker"`
}
