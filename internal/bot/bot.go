// Package bot routes inbound traffic to the right conversation: direct
// messages feed the report and review state machines, channel messages
// and edits feed the automated flagging pipeline. Events for the same
// user are serialized; events for different users proceed concurrently.
package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/modbot/triage/internal/casestore"
	"github.com/modbot/triage/internal/escalation"
	"github.com/modbot/triage/internal/metrics"
	"github.com/modbot/triage/internal/platform"
	"github.com/modbot/triage/internal/protocol"
	"github.com/modbot/triage/internal/report"
	"github.com/modbot/triage/internal/review"
	"github.com/modbot/triage/internal/scoring"
	"github.com/modbot/triage/internal/session"
)

// Thresholds are the auto-flag cutoffs. A channel message is flagged when
// any of the severe text attributes exceeds Text, or the hateful-meme
// probability exceeds Image.
type Thresholds struct {
	Text  float64
	Image float64
}

// DefaultThresholds returns the standard auto-flag cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{Text: 0.8, Image: 0.5}
}

// autoFlagAttrs are the text attributes severe enough to flag without a
// human report. Milder attributes (TOXICITY, PROFANITY, FLIRTATION) only
// inform moderators once a case exists.
var autoFlagAttrs = []string{"SEVERE_TOXICITY", "IDENTITY_ATTACK", "THREAT"}

const helpText = "I handle reports of policy-violating messages.\n" +
	"Say `report` to report a message, or `review` to review pending cases.\n" +
	"Say `cancel` at any time to abandon an in-progress conversation."

// Scorer aggregates classifier signals for a message.
type Scorer interface {
	Score(ctx context.Context, text, imageURL string) map[string]float64
}

// Deps are the injected collaborators for the dispatcher.
type Deps struct {
	Store        *casestore.Store
	Scorer       Scorer
	Platform     platform.Platform
	Counters     *escalation.Counters
	Suspender    review.Suspender // optional
	Auditor      review.Auditor   // optional
	Throttle     report.Throttle  // optional, limits report submissions
	ModChannelID string
	Thresholds   Thresholds
}

// Bot dispatches inbound events to conversations and the auto-flag
// pipeline.
type Bot struct {
	deps     Deps
	sessions *session.Registry

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-user event serialization
}

// New creates a dispatcher with the given collaborators.
func New(deps Deps) *Bot {
	if deps.Thresholds == (Thresholds{}) {
		deps.Thresholds = DefaultThresholds()
	}
	return &Bot{
		deps:     deps,
		sessions: session.NewRegistry(),
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing one user's DM events.
func (b *Bot) userLock(userID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[userID] = l
	}
	return l
}

// HandleDM consumes one direct message and returns the replies to send
// back to the user. Events from the same user are handled one at a time.
func (b *Bot) HandleDM(ctx context.Context, dm protocol.InboundDM) []string {
	l := b.userLock(dm.UserID)
	l.Lock()
	defer l.Unlock()

	input := strings.TrimSpace(dm.Content)
	if strings.EqualFold(input, "help") {
		return []string{helpText}
	}

	replies := b.route(ctx, dm.UserID, input)
	metrics.PendingCases.Set(float64(b.deps.Store.Len()))
	return replies
}

// route forwards the input to the user's active flow, or starts a new one
// on a start keyword. An active reporter flow takes the input before an
// active moderator flow.
func (b *Bot) route(ctx context.Context, userID, input string) []string {
	if flow, ok := b.sessions.Get(userID, session.RoleReporter); ok {
		return b.step(ctx, userID, session.RoleReporter, flow, input)
	}
	if flow, ok := b.sessions.Get(userID, session.RoleModerator); ok {
		return b.step(ctx, userID, session.RoleModerator, flow, input)
	}

	switch {
	case strings.EqualFold(input, report.StartKeyword):
		s := report.NewSession(userID, report.Deps{
			Store:        b.deps.Store,
			Scorer:       b.deps.Scorer,
			Platform:     b.deps.Platform,
			Throttle:     b.deps.Throttle,
			ModChannelID: b.deps.ModChannelID,
		})
		b.sessions.Put(userID, session.RoleReporter, s)
		return b.step(ctx, userID, session.RoleReporter, s, input)

	case strings.EqualFold(input, review.StartKeyword):
		s := b.newReviewSession(userID)
		b.sessions.Put(userID, session.RoleModerator, s)
		return b.step(ctx, userID, session.RoleModerator, s, input)
	}

	return []string{"Say `report` to report a message, `review` to review pending cases, or `help` for more information."}
}

func (b *Bot) newReviewSession(userID string) *review.Session {
	return review.NewSession(userID, review.Deps{
		Store:        b.deps.Store,
		Counters:     b.deps.Counters,
		Platform:     b.deps.Platform,
		Suspender:    b.deps.Suspender,
		Auditor:      b.deps.Auditor,
		ModChannelID: b.deps.ModChannelID,
	})
}

// step runs one input through a flow and drops it once terminal. A review
// session that asked to continue is replaced with a fresh one, which
// immediately presents the next case.
func (b *Bot) step(ctx context.Context, userID string, role session.Role, flow session.Flow, input string) []string {
	replies := flow.Handle(ctx, input)
	if !flow.Done() {
		return replies
	}
	b.sessions.Remove(userID, role)

	if r, ok := flow.(*review.Session); ok && r.WantsNext() {
		next := b.newReviewSession(userID)
		b.sessions.Put(userID, session.RoleModerator, next)
		more := b.step(ctx, userID, session.RoleModerator, next, review.StartKeyword)
		replies = append(replies, more...)
	}
	return replies
}

// HandleChannelMessage runs the automated flagging pipeline over a new
// channel message: score it, and when any severe attribute crosses its
// threshold, synthesize a report and alert the moderator channel.
func (b *Bot) HandleChannelMessage(ctx context.Context, m protocol.ChannelMessage) {
	ref := platform.MessageRef{GuildID: m.GuildID, ChannelID: m.ChannelID, MessageID: m.MessageID}
	snap := &platform.Message{
		Ref:        ref,
		AuthorID:   m.AuthorID,
		AuthorName: m.AuthorName,
		Content:    m.Content,
		ImageURL:   m.ImageURL,
	}
	b.autoFlag(ctx, snap)
}

// HandleEdit refetches an edited message and runs it through the flagging
// pipeline again. Editing a clean message into a violating one is caught
// here.
func (b *Bot) HandleEdit(ctx context.Context, e protocol.EditEvent) {
	ref := platform.MessageRef{GuildID: e.GuildID, ChannelID: e.ChannelID, MessageID: e.MessageID}
	msg, err := b.deps.Platform.FetchMessage(ctx, ref)
	if err != nil {
		log.Printf("[bot] fetch edited message %s: %v", ref.Key(), err)
		return
	}
	b.autoFlag(ctx, msg)
}

func (b *Bot) autoFlag(ctx context.Context, msg *platform.Message) {
	// Scoring happens before the store's critical section.
	scores := b.deps.Scorer.Score(ctx, msg.Content, msg.ImageURL)
	if !b.exceedsThresholds(scores) {
		return
	}

	c := b.deps.Store.AddReport(msg.Ref, msg, scores, casestore.AutoReporter, "automatically flagged")
	metrics.ReportsTotal.WithLabelValues("auto").Inc()
	metrics.PendingCases.Set(float64(b.deps.Store.Len()))
	log.Printf("[bot] auto-flagged %s (priority %.2f)", msg.Ref.Key(), c.Priority)

	parts := make([]string, 0, len(c.Scores))
	for _, attr := range c.SortedScores() {
		parts = append(parts, fmt.Sprintf("%s=%.2f", attr, c.Scores[attr]))
	}
	modMsg := fmt.Sprintf("Automatically flagged message %s:\n```%s: %s```Scores: %s",
		msg.Ref.Key(), msg.AuthorName, msg.Content, strings.Join(parts, ", "))
	if err := b.deps.Platform.Send(ctx, b.deps.ModChannelID, modMsg); err != nil {
		log.Printf("[bot] notify mod channel: %v", err)
	}
}

func (b *Bot) exceedsThresholds(scores map[string]float64) bool {
	for _, attr := range autoFlagAttrs {
		if scores[attr] > b.deps.Thresholds.Text {
			return true
		}
	}
	return scores[scoring.AttrHatefulMeme] > b.deps.Thresholds.Image
}
