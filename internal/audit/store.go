// Package audit provides PostgreSQL-backed storage for finalized case
// resolutions. Each row captures what was decided about a reported
// message, by whom, and what action was applied, so moderation decisions
// stay reviewable after the in-memory case is gone. Auditing is
// supplementary: the triage core works without a database.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// validDispositions is the set of allowed disposition values, matching
// the CHECK constraint on the case_resolutions table.
var validDispositions = map[string]bool{
	"hate":           true,
	"other":          true,
	"none":           true,
	"further-review": true,
}

// Store manages case resolutions in PostgreSQL.
type Store struct {
	db *sql.DB
}

// Resolution represents a single finalized review to be persisted.
type Resolution struct {
	ID          uuid.UUID
	CaseKey     string
	AuthorID    string
	ModeratorID string
	Disposition string // hate | other | none | further-review
	Category    string // hate subcategory, empty otherwise
	Tier        string // escalation tier for hate dispositions, empty otherwise
	ReportCount int
	Priority    float64
	Notes       []string
	ResolvedAt  time.Time
}

// NewStore creates a new resolution store backed by the given database
// handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts a finalized resolution. The disposition is validated
// against the allowed set before insertion; notes are joined for storage.
func (s *Store) Record(ctx context.Context, r Resolution) error {
	if !validDispositions[r.Disposition] {
		return fmt.Errorf("audit: invalid disposition %q", r.Disposition)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.ResolvedAt.IsZero() {
		r.ResolvedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO case_resolutions
			(id, case_key, author_id, moderator_id, disposition, category, tier, report_count, priority, notes, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.CaseKey,
		r.AuthorID,
		r.ModeratorID,
		r.Disposition,
		r.Category,
		r.Tier,
		r.ReportCount,
		r.Priority,
		strings.Join(r.Notes, "; "),
		r.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// CountConfirmed returns the number of confirmed hate resolutions against
// an author. Useful for rebuilding violation counters after a restart.
func (s *Store) CountConfirmed(ctx context.Context, authorID string) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM case_resolutions
		WHERE author_id = $1
		  AND disposition = 'hate'`

	var count int
	err := s.db.QueryRowContext(ctx, query, authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("audit: count confirmed: %w", err)
	}
	return count, nil
}
