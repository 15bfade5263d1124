// Package review implements the moderator-side conversation: a finite
// state machine that surfaces the highest-severity pending case, walks
// the moderator through a disposition, applies the escalation policy on
// confirmed hate speech, fans out notifications, and loops to the next
// case. A case leaves the queue and the store as one atomic step when a
// review finalizes.
package review

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/modbot/triage/internal/audit"
	"github.com/modbot/triage/internal/casestore"
	"github.com/modbot/triage/internal/escalation"
	"github.com/modbot/triage/internal/metrics"
	"github.com/modbot/triage/internal/platform"
	"github.com/modbot/triage/internal/protocol"
)

// Conversation keywords.
const (
	StartKeyword    = "review"
	CancelKeyword   = "cancel"
	ContinueKeyword = "yes"
)

// ViolationMarker is the reaction applied to messages confirmed as
// violating.
const ViolationMarker = "🚫"

// State identifies where the conversation is.
type State int

const (
	StateStart State = iota
	StateChooseDisposition
	StateChooseCategory
	StateCategoryNote
	StateAdditionalNote
	StateAwaitNext
	StateComplete
	StateCancelled
)

// Dispositions presented to the moderator, in menu order.
var dispositions = []string{"hate", "other", "none", "further-review"}

var dispositionDescriptions = map[string]string{
	"hate":           "The message violates our platform's hate speech policies.",
	"other":          "The message violates our policies for some other abuse type.",
	"none":           "The message is non-violating.",
	"further-review": "You wish to request additional review for this message.",
}

// Hate-speech categories, in menu order.
var categories = []string{"race", "religion", "gender identity", "sexual orientation", "something else"}

const apology = "Something went wrong on our end and this review cannot continue. " +
	"We apologize for the inconvenience; please start a new review."

// CaseStore is the slice of the case store the review flow needs.
type CaseStore interface {
	Peek() (casestore.Case, bool)
	Remove(key string) (casestore.Case, bool)
	Len() int
}

// Suspender applies account actions for escalation tiers. Optional.
type Suspender interface {
	Apply(ctx context.Context, authorID string, tier escalation.Tier) error
}

// Auditor persists finalized resolutions. Optional.
type Auditor interface {
	Record(ctx context.Context, r audit.Resolution) error
}

// Deps are the injected collaborators for a review session.
type Deps struct {
	Store        CaseStore
	Counters     *escalation.Counters
	Platform     platform.Platform
	Suspender    Suspender
	Auditor      Auditor
	ModChannelID string
}

// Session is one moderator's in-progress review conversation. A session
// handles exactly one case; continuing to the next case gets a fresh
// session sharing the same counters.
type Session struct {
	deps        Deps
	moderatorID string
	state       State

	current   casestore.Case
	count     int // author's post-increment violation counter
	category  string
	note      string
	wantsNext bool
}

// NewSession creates a review session for the given moderator identity.
func NewSession(moderatorID string, deps Deps) *Session {
	return &Session{deps: deps, moderatorID: moderatorID, state: StateStart}
}

// State returns the current conversation state.
func (s *Session) State() State { return s.state }

// Done reports whether the conversation reached a terminal state.
func (s *Session) Done() bool {
	return s.state == StateComplete || s.state == StateCancelled
}

// WantsNext reports whether the moderator asked to continue with the next
// pending case. The dispatcher replaces a finished session that wants
// more with a fresh one.
func (s *Session) WantsNext() bool { return s.wantsNext }

// Handle consumes one moderator input and returns the replies to send
// back.
func (s *Session) Handle(ctx context.Context, input string) []string {
	if strings.EqualFold(strings.TrimSpace(input), CancelKeyword) {
		s.state = StateCancelled
		return []string{"Review cancelled."}
	}

	switch s.state {
	case StateStart:
		return s.begin(ctx)
	case StateChooseDisposition:
		return s.handleDisposition(ctx, input)
	case StateChooseCategory:
		return s.handleCategory(ctx, input)
	case StateCategoryNote:
		return s.handleCategoryNote(ctx, input)
	case StateAdditionalNote:
		return s.handleAdditionalNote(ctx, input)
	case StateAwaitNext:
		return s.handleAwaitNext(input)
	}
	return nil
}

// begin peeks (without popping) the highest-priority case and presents it
// with the disposition menu. The case's message reference is the implicit
// input; the moderator never types a link.
func (s *Session) begin(ctx context.Context) []string {
	if s.deps.Store.Len() == 0 {
		s.state = StateComplete
		return []string{"No cases to review at this time. Bye!"}
	}

	c, ok := s.deps.Store.Peek()
	if !ok {
		log.Printf("[review] queue non-empty but peek failed for moderator=%s", s.moderatorID)
		s.state = StateComplete
		return []string{apology}
	}
	s.current = c

	var b strings.Builder
	b.WriteString("Thank you for starting the reviewing process. ")
	b.WriteString("Say `help` at any time for more information.\n")
	fmt.Fprintf(&b, "Found %d pending cases.\n\n", s.deps.Store.Len())
	b.WriteString("This message was reported for violating our platform policies:\n")

	// Refetch so the moderator sees edits made since the report. The
	// snapshot stands in when the message is gone or the platform is
	// unreachable.
	if cur, err := s.deps.Platform.FetchMessage(ctx, c.Ref); err == nil && cur.Content != c.Content {
		fmt.Fprintf(&b, "Original message: ```%s: %s```\n", c.AuthorName, c.Content)
		fmt.Fprintf(&b, "Current message: ```%s: %s```\n", cur.AuthorName, cur.Content)
	} else {
		fmt.Fprintf(&b, "```%s: %s```\n", c.AuthorName, c.Content)
	}

	fmt.Fprintf(&b, "Message: %s\n", c.Ref.Key())
	fmt.Fprintf(&b, "Reports: %d | Priority: %.2f\n", c.ReportCount, c.Priority)
	if len(c.Scores) > 0 {
		parts := make([]string, 0, len(c.Scores))
		for _, attr := range c.SortedScores() {
			parts = append(parts, fmt.Sprintf("%s=%.2f", attr, c.Scores[attr]))
		}
		b.WriteString("Scores: " + strings.Join(parts, ", ") + "\n")
	}
	if notes := c.JoinedNotes(); notes != "" {
		b.WriteString("Notes: " + notes + "\n")
	}

	menu := "Please tell us what is wrong with this message:\n" +
		protocol.FormatMenu(dispositions, dispositionDescriptions) +
		"\nAnswer with the keyword or its number."

	s.state = StateChooseDisposition
	return []string{b.String(), menu}
}

func (s *Session) handleDisposition(ctx context.Context, input string) []string {
	choice, ok := protocol.NormalizeAnswer(input, dispositions)
	if !ok {
		return []string{"Unrecognised option. Please select from `hate`, `other`, `none` or `further-review`."}
	}

	switch choice {
	case "none":
		if !s.finalize(ctx, "none", "", escalation.Decision{}) {
			return []string{apology}
		}
		s.notifyReporters(ctx, "The message you reported was reviewed and found to be non-violating, "+
			"so it will not be removed from our platform. You may have the option to re-appeal.")
		reply := "You have marked the message as non-violating, so it will not be removed from our platform.\n" +
			"The reporters will be notified of our decision and may have the option to re-appeal.\n" +
			"Review complete. Thank you!"
		return append([]string{reply}, s.awaitNext()...)

	case "other":
		if !s.finalize(ctx, "other", "", escalation.Decision{}) {
			return []string{apology}
		}
		reply := "The message will be forwarded to the appropriate team for further action.\n" +
			"Review complete. Thank you!"
		return append([]string{reply}, s.awaitNext()...)

	case "further-review":
		s.state = StateAdditionalNote
		return []string{"Briefly describe your reason for seeking additional review."}

	default: // hate
		s.count = s.deps.Counters.Increment(s.current.AuthorID)
		s.state = StateChooseCategory
		return []string{"Select the category of hate speech:\n" + protocol.FormatMenu(categories, nil)}
	}
}

func (s *Session) handleCategory(ctx context.Context, input string) []string {
	choice, ok := protocol.NormalizeAnswer(input, categories)
	if !ok {
		return []string{"Unrecognised option. Please select from `race`, `religion`, " +
			"`gender identity`, `sexual orientation` and `something else`."}
	}

	if choice == "something else" {
		s.state = StateCategoryNote
		return []string{"Briefly describe the problem."}
	}

	s.category = choice
	return s.resolve(ctx)
}

func (s *Session) handleCategoryNote(ctx context.Context, input string) []string {
	text := strings.TrimSpace(input)
	if text == "" {
		return []string{"Please provide a brief description, or say `cancel` to cancel."}
	}
	s.category = "something else"
	s.note = text
	return s.resolve(ctx)
}

func (s *Session) handleAdditionalNote(ctx context.Context, input string) []string {
	text := strings.TrimSpace(input)
	if text == "" {
		return []string{"Please provide a brief reason, or say `cancel` to cancel."}
	}

	if !s.finalize(ctx, "further-review", "", escalation.Decision{}) {
		return []string{apology}
	}
	modMsg := fmt.Sprintf("Case %s escalated for additional review by %s: %s",
		s.current.Ref.Key(), s.moderatorID, text)
	if err := s.deps.Platform.Send(ctx, s.deps.ModChannelID, modMsg); err != nil {
		log.Printf("[review] notify mod channel: %v", err)
	}

	reply := "The message will be forwarded along with your feedback for additional review.\n" +
		"Review complete. Thank you!"
	return append([]string{reply}, s.awaitNext()...)
}

func (s *Session) handleAwaitNext(input string) []string {
	if strings.EqualFold(strings.TrimSpace(input), ContinueKeyword) {
		s.state = StateComplete
		s.wantsNext = true
		return nil
	}
	s.state = StateComplete
	return []string{"Review stopped."}
}

// resolve applies the escalation decision for a confirmed hate-speech
// violation: marker, notification fan-out, suspension, audit, and the
// atomic removal of the case.
func (s *Session) resolve(ctx context.Context) []string {
	d := escalation.Decide(s.count)

	if !s.finalize(ctx, "hate", s.category, d) {
		return []string{apology}
	}

	if err := s.deps.Platform.AddMarker(ctx, s.current.Ref, ViolationMarker); err != nil {
		log.Printf("[review] add marker to %s: %v", s.current.Ref.Key(), err)
	}

	modMsg := fmt.Sprintf("Case %s resolved as hate speech (%s) by %s. %s",
		s.current.Ref.Key(), s.category, s.moderatorID, d.ModeratorMessage)
	if err := s.deps.Platform.Send(ctx, s.deps.ModChannelID, modMsg); err != nil {
		log.Printf("[review] notify mod channel: %v", err)
	}
	if err := s.deps.Platform.Notify(ctx, s.current.AuthorID, d.AuthorMessage); err != nil {
		log.Printf("[review] notify author %s: %v", s.current.AuthorID, err)
	}
	s.notifyReporters(ctx, d.ReporterMessage)

	if s.deps.Suspender != nil && d.Tier != escalation.TierWarn {
		if err := s.deps.Suspender.Apply(ctx, s.current.AuthorID, d.Tier); err != nil {
			log.Printf("[review] apply %s suspension to %s: %v", d.Tier, s.current.AuthorID, err)
		}
	}
	metrics.EscalationsTotal.WithLabelValues(d.Tier.String()).Inc()

	return append([]string{d.ModeratorMessage + "\n\nReview complete. Thank you!"}, s.awaitNext()...)
}

// finalize removes the case from the queue and store as one atomic step
// and records the resolution. Returns false when the case vanished
// underneath this session, which aborts the review with an apology (the
// process and other sessions are unaffected).
func (s *Session) finalize(ctx context.Context, disposition, category string, d escalation.Decision) bool {
	removed, ok := s.deps.Store.Remove(s.current.Ref.Key())
	if !ok {
		log.Printf("[review] case %s disappeared before finalize (moderator=%s)",
			s.current.Ref.Key(), s.moderatorID)
		s.state = StateComplete
		return false
	}
	s.current = removed
	metrics.ReviewsTotal.WithLabelValues(disposition).Inc()
	metrics.PendingCases.Set(float64(s.deps.Store.Len()))

	if s.deps.Auditor != nil {
		tier := ""
		if disposition == "hate" {
			tier = d.Tier.String()
		}
		r := audit.Resolution{
			CaseKey:     removed.Ref.Key(),
			AuthorID:    removed.AuthorID,
			ModeratorID: s.moderatorID,
			Disposition: disposition,
			Category:    category,
			Tier:        tier,
			ReportCount: removed.ReportCount,
			Priority:    removed.Priority,
			Notes:       removed.Notes,
		}
		if err := s.deps.Auditor.Record(ctx, r); err != nil {
			log.Printf("[review] record resolution for %s: %v", removed.Ref.Key(), err)
		}
	}
	return true
}

// notifyReporters delivers the outcome to every human reporter. The
// synthetic reporter used by the automated flagging pipeline is skipped.
func (s *Session) notifyReporters(ctx context.Context, content string) {
	for _, reporter := range s.current.Reporters {
		if reporter == casestore.AutoReporter {
			continue
		}
		if err := s.deps.Platform.Notify(ctx, reporter, content); err != nil {
			log.Printf("[review] notify reporter %s: %v", reporter, err)
		}
	}
}

// awaitNext either offers the next pending case or ends the conversation.
func (s *Session) awaitNext() []string {
	if n := s.deps.Store.Len(); n > 0 {
		s.state = StateAwaitNext
		return []string{fmt.Sprintf("Do you wish to continue reviewing the remaining %d cases?\nEnter `yes` to continue.", n)}
	}
	s.state = StateComplete
	return []string{"No more cases to review at this time. Bye!"}
}
