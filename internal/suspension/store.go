// Package suspension enforces escalation decisions against author
// accounts, backed by Redis. Records are simple key-value pairs:
//
//	Key:   suspension:<author_id>
//	Value: <tier>
//	TTL:   suspension duration (none for permanent)
//
// The triage core treats enforcement as best effort: a Redis outage is
// logged by the caller and never blocks a review from finalizing.
package suspension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/modbot/triage/internal/escalation"
)

const (
	// Prefix is the Redis key prefix for suspension records.
	Prefix = "suspension:"

	// TemporaryDuration is how long a temporary suspension lasts.
	TemporaryDuration = 7 * 24 * time.Hour
)

// Status describes an author's current suspension.
type Status struct {
	Suspended bool
	Permanent bool
	Tier      string
	Remaining time.Duration // zero for permanent suspensions
}

// Store manages suspension records in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a suspension store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Apply enforces the given escalation tier on an author. Warnings carry
// no account action and are a no-op here. Temporary suspensions expire
// after TemporaryDuration; permanent ones never expire. A permanent
// suspension is never downgraded by a later temporary one.
func (s *Store) Apply(ctx context.Context, authorID string, tier escalation.Tier) error {
	key := Prefix + authorID

	switch tier {
	case escalation.TierWarn:
		return nil
	case escalation.TierTemporary:
		cur, err := s.Status(ctx, authorID)
		if err != nil {
			return err
		}
		if cur.Permanent {
			return nil
		}
		if err := s.client.Set(ctx, key, tier.String(), TemporaryDuration).Err(); err != nil {
			return fmt.Errorf("suspension: apply temporary: %w", err)
		}
		return nil
	case escalation.TierPermanent:
		if err := s.client.Set(ctx, key, tier.String(), 0).Err(); err != nil {
			return fmt.Errorf("suspension: apply permanent: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("suspension: unknown tier %v", tier)
	}
}

// Status returns the author's current suspension status.
func (s *Store) Status(ctx context.Context, authorID string) (Status, error) {
	key := Prefix + authorID

	tier, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("suspension: get: %w", err)
	}

	st := Status{Suspended: true, Tier: tier}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		// The record exists but the TTL can't be read. Report suspended
		// with zero remaining rather than hiding the suspension.
		return st, nil
	}
	if ttl > 0 {
		st.Remaining = ttl
	} else {
		st.Permanent = true
	}
	return st, nil
}

// Lift removes an author's suspension immediately (e.g. a successful
// appeal).
func (s *Store) Lift(ctx context.Context, authorID string) error {
	key := Prefix + authorID
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("suspension: lift: %w", err)
	}
	return nil
}
