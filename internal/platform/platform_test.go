package platform

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/modbot/triage/internal/protocol"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		link string
		want MessageRef
		ok   bool
	}{
		{"https://chat.example.com/channels/123/456/789", MessageRef{"123", "456", "789"}, true},
		{"message link: https://chat.example.com/channels/1/2/3 please review", MessageRef{"1", "2", "3"}, true},
		{"/10/20/30", MessageRef{"10", "20", "30"}, true},
		{"https://chat.example.com/channels/123/456", MessageRef{}, false},
		{"no link here", MessageRef{}, false},
		{"", MessageRef{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseRef(tt.link)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseRef(%q) = (%+v, %v), want (%+v, %v)", tt.link, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMessageRefKey(t *testing.T) {
	ref := MessageRef{GuildID: "1", ChannelID: "2", MessageID: "3"}
	if ref.Key() != "1/2/3" {
		t.Errorf("Key() = %q", ref.Key())
	}
	if ref.IsZero() {
		t.Error("IsZero() = true for populated ref")
	}
	if !(MessageRef{}).IsZero() {
		t.Error("IsZero() = false for zero ref")
	}
}

type fakeTransport struct {
	fetchResp []byte
	fetchErr  error

	sends   map[string][]byte
	notifies map[string][]byte
	markers [][]byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sends: make(map[string][]byte), notifies: make(map[string][]byte)}
}

func (f *fakeTransport) RequestFetch(data []byte, _ time.Duration) ([]byte, error) {
	return f.fetchResp, f.fetchErr
}

func (f *fakeTransport) PublishChannelSend(channelID string, data []byte) error {
	f.sends[channelID] = data
	return nil
}

func (f *fakeTransport) PublishNotify(userID string, data []byte) error {
	f.notifies[userID] = data
	return nil
}

func (f *fakeTransport) PublishMarker(data []byte) error {
	f.markers = append(f.markers, data)
	return nil
}

func fetchResponse(t *testing.T, resp protocol.FetchResponse) []byte {
	t.Helper()
	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestNATSPlatform_FetchMessage(t *testing.T) {
	ref := MessageRef{GuildID: "1", ChannelID: "2", MessageID: "3"}
	ft := newFakeTransport()
	ft.fetchResp = fetchResponse(t, protocol.FetchResponse{
		Status:     protocol.FetchOK,
		AuthorID:   "author-1",
		AuthorName: "alice",
		Content:    "hello",
		ImageURL:   "https://cdn.example.com/a.png",
	})
	p := NewNATSPlatform(ft)

	msg, err := p.FetchMessage(context.Background(), ref)
	if err != nil {
		t.Fatalf("FetchMessage() error: %v", err)
	}
	if msg.Ref != ref || msg.AuthorID != "author-1" || msg.Content != "hello" || msg.ImageURL == "" {
		t.Errorf("message = %+v", msg)
	}
}

func TestNATSPlatform_FetchStatusErrors(t *testing.T) {
	tests := []struct {
		status string
		want   error
	}{
		{protocol.FetchUnknownGuild, ErrNotMember},
		{protocol.FetchChannelNotFound, ErrChannelNotFound},
		{protocol.FetchMessageNotFound, ErrMessageNotFound},
	}
	for _, tt := range tests {
		ft := newFakeTransport()
		ft.fetchResp = fetchResponse(t, protocol.FetchResponse{Status: tt.status})
		p := NewNATSPlatform(ft)

		_, err := p.FetchMessage(context.Background(), MessageRef{"1", "2", "3"})
		if !errors.Is(err, tt.want) {
			t.Errorf("status %q: error = %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestNATSPlatform_FetchTransportError(t *testing.T) {
	ft := newFakeTransport()
	ft.fetchErr = errors.New("timeout")
	p := NewNATSPlatform(ft)

	if _, err := p.FetchMessage(context.Background(), MessageRef{"1", "2", "3"}); err == nil {
		t.Error("FetchMessage() = nil error on transport failure")
	}
}

func TestNATSPlatform_Send(t *testing.T) {
	ft := newFakeTransport()
	p := NewNATSPlatform(ft)

	if err := p.Send(context.Background(), "chan-1", "announcement"); err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	var got protocol.ChannelSend
	if err := json.Unmarshal(ft.sends["chan-1"], &got); err != nil {
		t.Fatal(err)
	}
	if got.ChannelID != "chan-1" || got.Content != "announcement" {
		t.Errorf("published = %+v", got)
	}
}

func TestNATSPlatform_Notify(t *testing.T) {
	ft := newFakeTransport()
	p := NewNATSPlatform(ft)

	if err := p.Notify(context.Background(), "user-1", "outcome"); err != nil {
		t.Fatalf("Notify() error: %v", err)
	}
	var got protocol.OutboundDM
	if err := json.Unmarshal(ft.notifies["user-1"], &got); err != nil {
		t.Fatal(err)
	}
	if got.UserID != "user-1" || got.Content != "outcome" {
		t.Errorf("published = %+v", got)
	}
}

func TestNATSPlatform_AddMarker(t *testing.T) {
	ft := newFakeTransport()
	p := NewNATSPlatform(ft)

	ref := MessageRef{GuildID: "1", ChannelID: "2", MessageID: "3"}
	if err := p.AddMarker(context.Background(), ref, "🚫"); err != nil {
		t.Fatalf("AddMarker() error: %v", err)
	}
	var got protocol.MarkerRequest
	if err := json.Unmarshal(ft.markers[0], &got); err != nil {
		t.Fatal(err)
	}
	if got.MessageID != "3" || got.Marker != "🚫" {
		t.Errorf("published = %+v", got)
	}
}
