package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modbot/triage/internal/protocol"
)

// Transport is the slice of the messaging client the NATS-backed platform
// adapter needs.
type Transport interface {
	RequestFetch(data []byte, timeout time.Duration) ([]byte, error)
	PublishChannelSend(channelID string, data []byte) error
	PublishNotify(userID string, data []byte) error
	PublishMarker(data []byte) error
}

// NATSPlatform implements Platform over the NATS bridge subjects. Message
// lookups are request/reply against the platform bridge; sends, direct
// notifications, and markers are fire-and-forget publishes.
type NATSPlatform struct {
	transport Transport
}

// NewNATSPlatform wraps a messaging transport as a Platform.
func NewNATSPlatform(t Transport) *NATSPlatform {
	return &NATSPlatform{transport: t}
}

// FetchMessage resolves a message reference through the platform bridge.
// Bridge-side lookup failures map onto the package sentinel errors.
func (p *NATSPlatform) FetchMessage(ctx context.Context, ref MessageRef) (*Message, error) {
	req, err := json.Marshal(protocol.FetchRequest{
		GuildID:   ref.GuildID,
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
	})
	if err != nil {
		return nil, fmt.Errorf("platform: marshal fetch request: %w", err)
	}

	timeout := time.Duration(0)
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	data, err := p.transport.RequestFetch(req, timeout)
	if err != nil {
		return nil, fmt.Errorf("platform: fetch %s: %w", ref.Key(), err)
	}

	var resp protocol.FetchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("platform: decode fetch response: %w", err)
	}

	switch resp.Status {
	case protocol.FetchOK:
		return &Message{
			Ref:        ref,
			AuthorID:   resp.AuthorID,
			AuthorName: resp.AuthorName,
			Content:    resp.Content,
			ImageURL:   resp.ImageURL,
		}, nil
	case protocol.FetchUnknownGuild:
		return nil, ErrNotMember
	case protocol.FetchChannelNotFound:
		return nil, ErrChannelNotFound
	case protocol.FetchMessageNotFound:
		return nil, ErrMessageNotFound
	default:
		return nil, fmt.Errorf("platform: fetch %s: unexpected status %q", ref.Key(), resp.Status)
	}
}

// Send posts content to a channel via the bridge.
func (p *NATSPlatform) Send(_ context.Context, channelID string, content string) error {
	data, err := json.Marshal(protocol.ChannelSend{ChannelID: channelID, Content: content})
	if err != nil {
		return fmt.Errorf("platform: marshal send: %w", err)
	}
	if err := p.transport.PublishChannelSend(channelID, data); err != nil {
		return fmt.Errorf("platform: send to %s: %w", channelID, err)
	}
	return nil
}

// Notify delivers a direct notification to a user via the bridge.
func (p *NATSPlatform) Notify(_ context.Context, userID string, content string) error {
	data, err := json.Marshal(protocol.OutboundDM{UserID: userID, Content: content, Ts: time.Now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("platform: marshal notify: %w", err)
	}
	if err := p.transport.PublishNotify(userID, data); err != nil {
		return fmt.Errorf("platform: notify %s: %w", userID, err)
	}
	return nil
}

// AddMarker applies a reaction marker to a message via the bridge.
func (p *NATSPlatform) AddMarker(_ context.Context, ref MessageRef, marker string) error {
	data, err := json.Marshal(protocol.MarkerRequest{
		GuildID:   ref.GuildID,
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
		Marker:    marker,
	})
	if err != nil {
		return fmt.Errorf("platform: marshal marker: %w", err)
	}
	if err := p.transport.PublishMarker(data); err != nil {
		return fmt.Errorf("platform: add marker to %s: %w", ref.Key(), err)
	}
	return nil
}
