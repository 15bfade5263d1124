// Package platform defines the narrow contract the triage core needs from the
// chat platform: resolving message links, sending replies and notifications,
// and marking messages. The platform connection itself lives outside this
// process; the concrete adapter in this package speaks NATS to whatever
// service holds it.
package platform

import (
	"context"
	"errors"
	"regexp"
)

// refPattern extracts the guild/channel/message ID triple from a message link,
// e.g. https://chat.example.com/channels/123/456/789.
var refPattern = regexp.MustCompile(`/(\d+)/(\d+)/(\d+)`)

// MessageRef identifies a message by its guild/channel/message composite key.
type MessageRef struct {
	GuildID   string
	ChannelID string
	MessageID string
}

// ParseRef extracts a MessageRef from a message link. Returns false if the
// link does not contain the expected ID triple.
func ParseRef(link string) (MessageRef, bool) {
	m := refPattern.FindStringSubmatch(link)
	if m == nil {
		return MessageRef{}, false
	}
	return MessageRef{GuildID: m[1], ChannelID: m[2], MessageID: m[3]}, true
}

// Key returns the stable string identity used to key cases.
func (r MessageRef) Key() string {
	return r.GuildID + "/" + r.ChannelID + "/" + r.MessageID
}

// IsZero reports whether the reference is empty.
func (r MessageRef) IsZero() bool {
	return r.GuildID == "" && r.ChannelID == "" && r.MessageID == ""
}

// Message is a snapshot of a platform message at lookup time.
type Message struct {
	Ref        MessageRef
	AuthorID   string
	AuthorName string
	Content    string
	ImageURL   string // first attachment, if any
}

// Lookup errors returned by FetchMessage. Callers distinguish them to give
// the user a precise re-prompt.
var (
	ErrNotMember       = errors.New("platform: bot is not a member of that guild")
	ErrChannelNotFound = errors.New("platform: channel not found")
	ErrMessageNotFound = errors.New("platform: message not found")
)

// Platform resolves message references and delivers outbound traffic.
type Platform interface {
	// FetchMessage resolves a reference to a message snapshot. Returns
	// ErrNotMember, ErrChannelNotFound or ErrMessageNotFound when the
	// reference cannot be resolved.
	FetchMessage(ctx context.Context, ref MessageRef) (*Message, error)

	// Send posts content to a channel.
	Send(ctx context.Context, channelID string, content string) error

	// Notify delivers a direct message to a user.
	Notify(ctx context.Context, userID string, content string) error

	// AddMarker applies a reaction marker to a message.
	AddMarker(ctx context.Context, ref MessageRef, marker string) error
}
