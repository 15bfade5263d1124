// Package scoring aggregates content signals for a message: per-attribute
// toxicity scores from a text classifier and a combined multimodal
// hatefulness probability from an image classifier. Both collaborators
// fail open: when one is unreachable its attributes are simply omitted,
// so a classifier outage never blocks a report from being filed.
package scoring

import (
	"context"
	"log"
	"time"

	"github.com/modbot/triage/internal/metrics"
)

// AttrHatefulMeme is the reserved attribute key for the image classifier
// result. Text attributes never use this key.
const AttrHatefulMeme = "HATEFUL_MEME_SCORE"

// DefaultTimeout bounds each collaborator call when no timeout is
// configured. Expiry is treated as a scoring failure (fail open).
const DefaultTimeout = 10 * time.Second

// TextScorer scores message text and returns per-attribute probabilities
// in [0,1].
type TextScorer interface {
	Score(ctx context.Context, text string) (map[string]float64, error)
}

// ImageScorer scores an image (with optional accompanying text) and
// returns one combined hatefulness probability in [0,1].
type ImageScorer interface {
	Score(ctx context.Context, imageURL, text string) (float64, error)
}

// Aggregator merges text and image signals into one attribute mapping.
type Aggregator struct {
	text    TextScorer
	image   ImageScorer
	timeout time.Duration
}

// NewAggregator builds an Aggregator. Either scorer may be nil, in which
// case that signal source is skipped.
func NewAggregator(text TextScorer, image ImageScorer, timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Aggregator{text: text, image: image, timeout: timeout}
}

// Score asks the text scorer when text is non-empty and the image scorer
// when imageURL is present, and returns the union of both mappings. Each
// call is bounded by the configured timeout. Collaborator errors are
// logged and their attributes omitted; the result is never nil.
func (a *Aggregator) Score(ctx context.Context, text, imageURL string) map[string]float64 {
	scores := make(map[string]float64)
	start := time.Now()
	defer func() {
		metrics.ScoringLatency.Observe(time.Since(start).Seconds())
	}()

	if a.text != nil && text != "" {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		attrs, err := a.text.Score(callCtx, text)
		cancel()
		if err != nil {
			log.Printf("[scoring] text scorer failed, proceeding without text attributes: %v", err)
		} else {
			for k, v := range attrs {
				scores[k] = v
			}
		}
	}

	if a.image != nil && imageURL != "" {
		callCtx, cancel := context.WithTimeout(ctx, a.timeout)
		p, err := a.image.Score(callCtx, imageURL, text)
		cancel()
		if err != nil {
			log.Printf("[scoring] image scorer failed, omitting %s: %v", AttrHatefulMeme, err)
		} else {
			scores[AttrHatefulMeme] = p
		}
	}

	return scores
}
