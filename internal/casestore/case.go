// Package casestore holds the authoritative map of reported messages and the
// priority queue of cases pending moderator review. Repeated reports of the
// same message merge into one case; the queue orders cases by descending
// severity with FIFO ordering among equal severities.
package casestore

import (
	"sort"
	"strings"

	"github.com/modbot/triage/internal/platform"
)

// AutoReporter is the synthetic reporter identity used by the automated
// flagging pipeline. It dedupes like any other reporter and is excluded
// from outcome notifications.
const AutoReporter = "auto"

// Case is the merged record of all flags against one specific message.
type Case struct {
	Ref        platform.MessageRef
	AuthorID   string
	AuthorName string
	Content    string // message content snapshot at first report
	ImageURL   string

	// Scores maps attribute name to a probability in [0,1]. Merging
	// reports takes the per-attribute maximum.
	Scores map[string]float64

	// ReportCount is incremented on every report, including repeats by
	// the same reporter.
	ReportCount int

	// Reporters holds distinct reporter identities in first-seen order.
	Reporters []string

	// Notes holds the free-text notes supplied across reports.
	Notes []string

	// Priority is the maximum value across Scores. It never decreases.
	Priority float64

	seq uint64 // creation order, breaks priority ties FIFO
}

// HasReporter reports whether the identity already flagged this case.
func (c *Case) HasReporter(id string) bool {
	for _, r := range c.Reporters {
		if r == id {
			return true
		}
	}
	return false
}

// SortedScores returns the attribute names ordered by descending score,
// for moderator display.
func (c *Case) SortedScores() []string {
	attrs := make([]string, 0, len(c.Scores))
	for a := range c.Scores {
		attrs = append(attrs, a)
	}
	sort.Slice(attrs, func(i, j int) bool {
		if c.Scores[attrs[i]] != c.Scores[attrs[j]] {
			return c.Scores[attrs[i]] > c.Scores[attrs[j]]
		}
		return attrs[i] < attrs[j]
	})
	return attrs
}

// JoinedNotes concatenates all notes for display. Returns "" when no
// report carried a note.
func (c *Case) JoinedNotes() string {
	return strings.Join(c.Notes, "; ")
}

// clone returns a deep copy so callers never alias store-owned state.
func (c *Case) clone() Case {
	out := *c
	out.Scores = make(map[string]float64, len(c.Scores))
	for k, v := range c.Scores {
		out.Scores[k] = v
	}
	out.Reporters = append([]string(nil), c.Reporters...)
	out.Notes = append([]string(nil), c.Notes...)
	return out
}

// merge folds a new report into the case: per-attribute score maximum,
// report count increment, reporter dedup, note append, and priority
// recomputation.
func (c *Case) merge(scores map[string]float64, reporter, note string) {
	for attr, v := range scores {
		if cur, ok := c.Scores[attr]; !ok || v > cur {
			c.Scores[attr] = v
		}
	}
	c.ReportCount++
	if reporter != "" && !c.HasReporter(reporter) {
		c.Reporters = append(c.Reporters, reporter)
	}
	if note != "" {
		c.Notes = append(c.Notes, note)
	}
	for _, v := range c.Scores {
		if v > c.Priority {
			c.Priority = v
		}
	}
}
