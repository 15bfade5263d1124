package report

import (
	"context"
	"strings"
	"testing"

	"github.com/modbot/triage/internal/casestore"
	"github.com/modbot/triage/internal/platform"
)

const goodLink = "https://chat.example.com/channels/100/200/300"

type fakePlatform struct {
	fetchErr error
	msg      *platform.Message
	sent     []string
	notified map[string][]string
	markers  []string
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		msg: &platform.Message{
			Ref:        platform.MessageRef{GuildID: "100", ChannelID: "200", MessageID: "300"},
			AuthorID:   "author-1",
			AuthorName: "alice",
			Content:    "offending text",
		},
		notified: make(map[string][]string),
	}
}

func (f *fakePlatform) FetchMessage(_ context.Context, _ platform.MessageRef) (*platform.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.msg, nil
}

func (f *fakePlatform) Send(_ context.Context, _ string, content string) error {
	f.sent = append(f.sent, content)
	return nil
}

func (f *fakePlatform) Notify(_ context.Context, userID string, content string) error {
	f.notified[userID] = append(f.notified[userID], content)
	return nil
}

func (f *fakePlatform) AddMarker(_ context.Context, _ platform.MessageRef, marker string) error {
	f.markers = append(f.markers, marker)
	return nil
}

type fakeScorer struct {
	scores map[string]float64
}

func (f *fakeScorer) Score(_ context.Context, _, _ string) map[string]float64 {
	if f.scores == nil {
		return map[string]float64{}
	}
	return f.scores
}

func newTestSession(t *testing.T) (*Session, *casestore.Store, *fakePlatform) {
	t.Helper()
	store := casestore.NewStore()
	pf := newFakePlatform()
	deps := Deps{
		Store:        store,
		Scorer:       &fakeScorer{scores: map[string]float64{"TOXICITY": 0.9}},
		Platform:     pf,
		ModChannelID: "mod-channel",
	}
	return NewSession("reporter-1", deps), store, pf
}

// drive feeds inputs in order and returns the replies to the last one.
func drive(t *testing.T, s *Session, inputs ...string) []string {
	t.Helper()
	var replies []string
	for _, in := range inputs {
		replies = s.Handle(context.Background(), in)
	}
	return replies
}

func TestReport_SpamHappyPath(t *testing.T) {
	s, store, pf := newTestSession(t)

	replies := drive(t, s, "report")
	if len(replies) == 0 || !strings.Contains(replies[0], "copy paste the link") {
		t.Fatalf("start replies = %v", replies)
	}

	replies = drive(t, s, goodLink)
	if !strings.Contains(strings.Join(replies, " "), "I found this message") {
		t.Fatalf("link replies = %v", replies)
	}

	replies = drive(t, s, "spam")
	if !strings.Contains(replies[0], "reported this message for spam") {
		t.Errorf("submit reply = %v", replies)
	}
	if s.State() != StateSubmitted || !s.Done() {
		t.Errorf("state = %v, want Submitted", s.State())
	}

	c, ok := store.Peek()
	if !ok {
		t.Fatal("no case written")
	}
	if c.ReportCount != 1 || c.Reporters[0] != "reporter-1" {
		t.Errorf("case = %+v", c)
	}
	if c.Priority != 0.9 {
		t.Errorf("priority = %v, want 0.9 from scorer", c.Priority)
	}
	if len(pf.sent) != 1 || !strings.Contains(pf.sent[0], "Report submitted") {
		t.Errorf("mod channel messages = %v", pf.sent)
	}
}

func TestReport_CategoryByMenuIndex(t *testing.T) {
	s, store, _ := newTestSession(t)

	// 1 = spam in the menu.
	drive(t, s, "report", goodLink, "1")
	if !s.Done() {
		t.Fatalf("state = %v, want Submitted after index answer", s.State())
	}
	if store.Len() != 1 {
		t.Error("no case written for index answer")
	}
}

func TestReport_HateRequiresSubcategory(t *testing.T) {
	s, store, _ := newTestSession(t)

	replies := drive(t, s, "report", goodLink, "hate")
	if s.State() != StateChooseSubcategory {
		t.Fatalf("state = %v, want ChooseSubcategory", s.State())
	}
	if !strings.Contains(replies[0], "category of hate speech") {
		t.Errorf("subcategory prompt = %v", replies)
	}

	replies = drive(t, s, "religion")
	if !s.Done() {
		t.Fatalf("state = %v, want Submitted", s.State())
	}
	if !strings.Contains(replies[0], "hate speech targeting religion") {
		t.Errorf("confirmation = %v", replies)
	}
	c, _ := store.Peek()
	if !strings.Contains(c.JoinedNotes(), "religion") {
		t.Errorf("case note = %q, want subcategory recorded", c.JoinedNotes())
	}
}

func TestReport_SomethingElseCapturesNote(t *testing.T) {
	s, store, _ := newTestSession(t)

	drive(t, s, "report", goodLink, "hate", "something else")
	if s.State() != StateDescription {
		t.Fatalf("state = %v, want Description", s.State())
	}

	drive(t, s, "targets my disability")
	if !s.Done() {
		t.Fatal("not submitted after free-text description")
	}
	c, _ := store.Peek()
	if !strings.Contains(c.JoinedNotes(), "targets my disability") {
		t.Errorf("note = %q", c.JoinedNotes())
	}
}

func TestReport_OtherCategoryDescription(t *testing.T) {
	s, _, _ := newTestSession(t)

	replies := drive(t, s, "report", goodLink, "other")
	if !strings.Contains(replies[0], "Briefly describe") {
		t.Errorf("description prompt = %v", replies)
	}

	// Empty description re-prompts in place.
	replies = drive(t, s, "   ")
	if s.State() != StateDescription {
		t.Errorf("state = %v, empty description must not advance", s.State())
	}

	drive(t, s, "it doxxes a coworker")
	if !s.Done() {
		t.Error("not submitted after description")
	}
}

func TestReport_BadLinkStaysInState(t *testing.T) {
	s, _, _ := newTestSession(t)

	replies := drive(t, s, "report", "not a link")
	if s.State() != StateAwaitingMessageRef {
		t.Errorf("state = %v, want AwaitingMessageRef after parse failure", s.State())
	}
	if !strings.Contains(replies[0], "couldn't read that link") {
		t.Errorf("reply = %v", replies)
	}
}

func TestReport_LookupErrors(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{platform.ErrNotMember, "guilds that I'm not in"},
		{platform.ErrChannelNotFound, "channel was deleted"},
		{platform.ErrMessageNotFound, "message was deleted"},
	}
	for _, tc := range cases {
		s, _, pf := newTestSession(t)
		pf.fetchErr = tc.err

		replies := drive(t, s, "report", goodLink)
		if s.State() != StateAwaitingMessageRef {
			t.Errorf("%v: state = %v, want AwaitingMessageRef", tc.err, s.State())
		}
		if !strings.Contains(replies[0], tc.want) {
			t.Errorf("%v: reply = %v, want %q", tc.err, replies, tc.want)
		}
	}
}

func TestReport_UnrecognizedCategoryReprompts(t *testing.T) {
	s, store, _ := newTestSession(t)

	replies := drive(t, s, "report", goodLink, "bogus")
	if s.State() != StateChooseCategory {
		t.Errorf("state = %v, want ChooseCategory", s.State())
	}
	if !strings.Contains(replies[0], "Unrecognised option") {
		t.Errorf("reply = %v", replies)
	}
	if store.Len() != 0 {
		t.Error("case written before a valid category")
	}
}

func TestReport_CancelFromEveryState(t *testing.T) {
	paths := [][]string{
		{},                                  // Start
		{"report"},                          // AwaitingMessageRef
		{"report", goodLink},                // ChooseCategory
		{"report", goodLink, "hate"},        // ChooseSubcategory
		{"report", goodLink, "other"},       // Description
	}
	for i, path := range paths {
		s, store, _ := newTestSession(t)
		drive(t, s, path...)

		replies := s.Handle(context.Background(), "cancel")
		if s.State() != StateCancelled {
			t.Errorf("path %d: state = %v, want Cancelled", i, s.State())
		}
		if len(replies) != 1 || replies[0] != "Report cancelled." {
			t.Errorf("path %d: replies = %v", i, replies)
		}
		if store.Len() != 0 {
			t.Errorf("path %d: cancelled report reached the store", i)
		}
	}
}

type fakeThrottle struct {
	allow bool
	calls int
}

func (f *fakeThrottle) Allow(_ context.Context, _ string) bool {
	f.calls++
	return f.allow
}

func TestReport_ThrottledSubmission(t *testing.T) {
	store := casestore.NewStore()
	pf := newFakePlatform()
	th := &fakeThrottle{allow: false}
	deps := Deps{Store: store, Scorer: &fakeScorer{}, Platform: pf, Throttle: th, ModChannelID: "mod"}
	s := NewSession("reporter-1", deps)

	replies := drive(t, s, "report", goodLink, "spam")
	if !strings.Contains(replies[0], "too many reports") {
		t.Errorf("replies = %v", replies)
	}
	if s.State() != StateCancelled {
		t.Errorf("state = %v, want Cancelled", s.State())
	}
	if th.calls != 1 {
		t.Errorf("throttle consulted %d times, want 1", th.calls)
	}
	if store.Len() != 0 {
		t.Error("throttled report reached the store")
	}
	if len(pf.sent) != 0 {
		t.Errorf("mod channel notified for a throttled report: %v", pf.sent)
	}
}

func TestReport_ThrottleAllowsSubmission(t *testing.T) {
	store := casestore.NewStore()
	pf := newFakePlatform()
	th := &fakeThrottle{allow: true}
	deps := Deps{Store: store, Scorer: &fakeScorer{}, Platform: pf, Throttle: th, ModChannelID: "mod"}
	s := NewSession("reporter-1", deps)

	drive(t, s, "report", goodLink, "spam")
	if s.State() != StateSubmitted {
		t.Errorf("state = %v, want Submitted", s.State())
	}
	if store.Len() != 1 {
		t.Error("allowed report did not reach the store")
	}
}

func TestReport_TwoReportersMergeOneCase(t *testing.T) {
	store := casestore.NewStore()
	pf := newFakePlatform()
	deps := Deps{Store: store, Scorer: &fakeScorer{}, Platform: pf, ModChannelID: "mod"}

	for _, user := range []string{"reporter-1", "reporter-2"} {
		s := NewSession(user, deps)
		drive(t, s, "report", goodLink, "spam")
	}

	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 merged case", store.Len())
	}
	c, _ := store.Peek()
	if c.ReportCount != 2 || len(c.Reporters) != 2 {
		t.Errorf("case = count %d, reporters %v", c.ReportCount, c.Reporters)
	}
}
