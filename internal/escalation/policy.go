// Package escalation maps an author's cumulative count of confirmed
// hate-speech violations to an account action and the notification
// templates sent to the moderator channel, the author, and the
// reporters. The policy is a pure function; applying the action and
// delivering the messages is the caller's job.
package escalation

import "fmt"

// Tier is the severity level of the account action.
type Tier int

const (
	// TierWarn is issued on the first confirmed violation.
	TierWarn Tier = iota
	// TierTemporary disables the account for a limited period (violations 2-5).
	TierTemporary
	// TierPermanent disables the account for good (more than 5 violations).
	TierPermanent
)

func (t Tier) String() string {
	switch t {
	case TierWarn:
		return "warn"
	case TierTemporary:
		return "temporary"
	case TierPermanent:
		return "permanent"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Decision carries the chosen tier and the three message templates the
// caller fans out.
type Decision struct {
	Tier             Tier
	ModeratorMessage string
	AuthorMessage    string
	ReporterMessage  string
}

// Decide returns the action for an author whose confirmed-violation
// counter has just reached count:
//
//	count == 1  -> warn
//	2..5        -> temporary suspension
//	count > 5   -> permanent suspension
//
// Deterministic and side-effect free.
func Decide(count int) Decision {
	switch {
	case count <= 1:
		return Decision{
			Tier: TierWarn,
			ModeratorMessage: "The author has been warned and the message has been taken down. " +
				"The author may have the option to re-appeal.",
			AuthorMessage: "Your message was found to violate our hate speech policies and has been taken down. " +
				"You have been warned. You may have the option to re-appeal.",
			ReporterMessage: "The message you reported was confirmed to violate our hate speech policies. " +
				"It has been taken down and the author has been warned. Thank you for your report.",
		}
	case count <= 5:
		return Decision{
			Tier: TierTemporary,
			ModeratorMessage: "The author's account has been temporarily disabled on the platform " +
				"and the message has been taken down. The author may have the option to re-appeal.",
			AuthorMessage: "Your message was found to violate our hate speech policies and has been taken down. " +
				"Due to repeated violations your account has been temporarily disabled. " +
				"You may have the option to re-appeal.",
			ReporterMessage: "The message you reported was confirmed to violate our hate speech policies. " +
				"It has been taken down and the author's account has been temporarily disabled. " +
				"Thank you for your report.",
		}
	default:
		return Decision{
			Tier: TierPermanent,
			ModeratorMessage: "The author's account has been permanently disabled due to continued " +
				"violations and the message has been taken down.",
			AuthorMessage: "Your message was found to violate our hate speech policies and has been taken down. " +
				"Due to continued violations your account has been permanently disabled.",
			ReporterMessage: "The message you reported was confirmed to violate our hate speech policies. " +
				"It has been taken down and the author's account has been permanently disabled. " +
				"Thank you for your report.",
		}
	}
}
