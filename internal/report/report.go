// Package report implements the reporting-side conversation: a finite
// state machine that walks a user through identifying a message,
// classifying the violation, and submitting the report into the case
// store. All states before submission are pure prompt/validation logic;
// the only side effects happen on the Submitted transition.
package report

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/modbot/triage/internal/casestore"
	"github.com/modbot/triage/internal/metrics"
	"github.com/modbot/triage/internal/platform"
	"github.com/modbot/triage/internal/protocol"
)

// Conversation keywords.
const (
	StartKeyword  = "report"
	CancelKeyword = "cancel"
)

// State identifies where the conversation is.
type State int

const (
	StateStart State = iota
	StateAwaitingMessageRef
	StateChooseCategory
	StateChooseSubcategory
	StateDescription
	StateSubmitted
	StateCancelled
)

// Violation categories presented to the reporter, in menu order.
var categories = []string{"spam", "hate", "harmful", "misinfo", "other"}

var categoryDescriptions = map[string]string{
	"spam":    "The message is unwanted and/or repeated.",
	"hate":    "The message constitutes hate speech targeting a person or group.",
	"harmful": "The message incites violence and/or promotes harmful behavior.",
	"misinfo": "The message aims at spreading/promoting incorrect information.",
	"other":   "None of the above. I wish to describe the issue myself.",
}

// Hate-speech subcategories, in menu order.
var subcategories = []string{"race", "religion", "gender identity", "sexual orientation", "something else"}

// expansions maps category keywords to the wording used in confirmations
// and case notes.
var expansions = map[string]string{
	"spam":    "spam",
	"hate":    "hate speech",
	"harmful": "violence/harmful behavior",
	"misinfo": "misinformation",
	"other":   "other",
}

// CaseStore is the slice of the case store the report flow needs.
type CaseStore interface {
	AddReport(ref platform.MessageRef, snap *platform.Message, scores map[string]float64, reporter, note string) casestore.Case
}

// Scorer aggregates classifier signals for the reported message.
type Scorer interface {
	Score(ctx context.Context, text, imageURL string) map[string]float64
}

// Throttle limits how many reports one user may submit. Optional.
type Throttle interface {
	Allow(ctx context.Context, userID string) bool
}

// Deps are the injected collaborators for a report session.
type Deps struct {
	Store        CaseStore
	Scorer       Scorer
	Platform     platform.Platform
	Throttle     Throttle
	ModChannelID string
}

// Session is one user's in-progress report conversation.
type Session struct {
	deps   Deps
	userID string
	state  State

	link        string
	target      *platform.Message
	category    string
	subcategory string
	note        string
}

// NewSession creates a report session for the given reporter identity.
func NewSession(userID string, deps Deps) *Session {
	return &Session{deps: deps, userID: userID, state: StateStart}
}

// State returns the current conversation state.
func (s *Session) State() State { return s.state }

// Done reports whether the conversation reached a terminal state.
func (s *Session) Done() bool {
	return s.state == StateSubmitted || s.state == StateCancelled
}

// Handle consumes one user input and returns the replies to send back.
func (s *Session) Handle(ctx context.Context, input string) []string {
	if strings.EqualFold(strings.TrimSpace(input), CancelKeyword) {
		s.state = StateCancelled
		return []string{"Report cancelled."}
	}

	switch s.state {
	case StateStart:
		// The start keyword itself carries no information; emit the
		// instructions and wait for the message link.
		s.state = StateAwaitingMessageRef
		return []string{
			"Thank you for starting the reporting process. " +
				"Say `help` at any time for more information.\n\n" +
				"Please copy paste the link to the message you want to report.\n" +
				"You can obtain this link by right-clicking the message and clicking `Copy Message Link`.",
		}
	case StateAwaitingMessageRef:
		return s.handleMessageRef(ctx, input)
	case StateChooseCategory:
		return s.handleCategory(ctx, input)
	case StateChooseSubcategory:
		return s.handleSubcategory(ctx, input)
	case StateDescription:
		return s.handleDescription(ctx, input)
	}
	return nil
}

func (s *Session) handleMessageRef(ctx context.Context, input string) []string {
	ref, ok := platform.ParseRef(input)
	if !ok {
		return []string{"I'm sorry, I couldn't read that link. Please try again or say `cancel` to cancel."}
	}

	msg, err := s.deps.Platform.FetchMessage(ctx, ref)
	switch {
	case errors.Is(err, platform.ErrNotMember):
		return []string{"I cannot accept reports of messages from guilds that I'm not in. " +
			"Please have the guild owner add me to the guild and try again."}
	case errors.Is(err, platform.ErrChannelNotFound):
		return []string{"It seems this channel was deleted or never existed. Please try again or say `cancel` to cancel."}
	case errors.Is(err, platform.ErrMessageNotFound):
		return []string{"It seems this message was deleted or never existed. Please try again or say `cancel` to cancel."}
	case err != nil:
		log.Printf("[report] fetch %s for user=%s: %v", ref.Key(), s.userID, err)
		return []string{"Something went wrong looking up that message. Please try again or say `cancel` to cancel."}
	}

	s.link = strings.TrimSpace(input)
	s.target = msg
	s.state = StateChooseCategory

	found := "I found this message:```" + msg.AuthorName + ": " + msg.Content + "```"
	menu := "Please tell us what is wrong with this message:\n" +
		protocol.FormatMenu(categories, categoryDescriptions) +
		"\nAnswer with the keyword or its number."
	return []string{found, menu}
}

func (s *Session) handleCategory(ctx context.Context, input string) []string {
	choice, ok := protocol.NormalizeAnswer(input, categories)
	if !ok {
		return []string{"Unrecognised option. Please select from `spam`, `hate`, `harmful`, `misinfo`, or `other`."}
	}

	s.category = choice
	switch choice {
	case "hate":
		s.state = StateChooseSubcategory
		return []string{"Select the category of hate speech:\n" + protocol.FormatMenu(subcategories, nil)}
	case "other":
		s.state = StateDescription
		return []string{"Briefly describe the problem."}
	default:
		return s.submit(ctx)
	}
}

func (s *Session) handleSubcategory(ctx context.Context, input string) []string {
	choice, ok := protocol.NormalizeAnswer(input, subcategories)
	if !ok {
		return []string{"Unrecognised option. Please select from `race`, `religion`, " +
			"`gender identity`, `sexual orientation` and `something else`."}
	}

	if choice == "something else" {
		s.state = StateDescription
		return []string{"Briefly describe the problem."}
	}

	s.subcategory = choice
	return s.submit(ctx)
}

func (s *Session) handleDescription(ctx context.Context, input string) []string {
	text := strings.TrimSpace(input)
	if text == "" {
		return []string{"Please provide a brief description, or say `cancel` to cancel."}
	}
	s.note = text
	return s.submit(ctx)
}

// violationLabel describes what the message was reported for.
func (s *Session) violationLabel() string {
	label := expansions[s.category]
	if s.subcategory != "" {
		label += " targeting " + s.subcategory
	}
	return label
}

// submit is the only transition with side effects: it aggregates scores,
// writes the case, and notifies the moderator channel.
func (s *Session) submit(ctx context.Context) []string {
	if s.deps.Throttle != nil && !s.deps.Throttle.Allow(ctx, s.userID) {
		log.Printf("[report] throttled submission from user=%s", s.userID)
		s.state = StateCancelled
		return []string{"You have submitted too many reports recently. Please wait before reporting again."}
	}

	label := s.violationLabel()
	note := label
	if s.note != "" {
		note = label + ": " + s.note
	}

	// Scoring happens before the store's critical section so the lock is
	// never held across classifier I/O.
	scores := s.deps.Scorer.Score(ctx, s.target.Content, s.target.ImageURL)
	c := s.deps.Store.AddReport(s.target.Ref, s.target, scores, s.userID, note)
	metrics.ReportsTotal.WithLabelValues("user").Inc()

	modMsg := fmt.Sprintf("Report submitted for: %s\n```%s: %s```Reason: %s (report %d for this message)",
		s.link, s.target.AuthorName, s.target.Content, note, c.ReportCount)
	if err := s.deps.Platform.Send(ctx, s.deps.ModChannelID, modMsg); err != nil {
		log.Printf("[report] notify mod channel: %v", err)
	}

	s.state = StateSubmitted
	reply := "You have reported this message for " + label + ".\n" +
		"Please review documents for support and our platform policies at https://support.example.com/policies.\n" +
		"Report complete. Thank you!"
	return []string{reply}
}
