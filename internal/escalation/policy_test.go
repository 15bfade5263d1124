package escalation

import (
	"strings"
	"sync"
	"testing"
)

func TestDecide_Tiers(t *testing.T) {
	cases := []struct {
		count    int
		expected Tier
	}{
		{1, TierWarn},
		{2, TierTemporary},
		{3, TierTemporary},
		{5, TierTemporary},
		{6, TierPermanent},
		{10, TierPermanent},
	}
	for _, tc := range cases {
		got := Decide(tc.count)
		if got.Tier != tc.expected {
			t.Errorf("Decide(%d).Tier = %v, want %v", tc.count, got.Tier, tc.expected)
		}
	}
}

func TestDecide_MessagesMatchTier(t *testing.T) {
	d := Decide(1)
	if !strings.Contains(d.ModeratorMessage, "warned") {
		t.Errorf("warn tier moderator message = %q, want mention of warning", d.ModeratorMessage)
	}
	if !strings.Contains(d.AuthorMessage, "re-appeal") {
		t.Errorf("warn tier author message should mention the appeal option: %q", d.AuthorMessage)
	}

	d = Decide(3)
	if !strings.Contains(d.ModeratorMessage, "temporarily") {
		t.Errorf("temporary tier moderator message = %q", d.ModeratorMessage)
	}

	d = Decide(7)
	if !strings.Contains(d.ModeratorMessage, "permanently") {
		t.Errorf("permanent tier moderator message = %q", d.ModeratorMessage)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	for i := 1; i <= 8; i++ {
		if Decide(i) != Decide(i) {
			t.Errorf("Decide(%d) not deterministic", i)
		}
	}
}

func TestTierString(t *testing.T) {
	if TierWarn.String() != "warn" || TierTemporary.String() != "temporary" || TierPermanent.String() != "permanent" {
		t.Error("Tier.String() mismatch")
	}
}

func TestCounters_EscalationScenario(t *testing.T) {
	c := NewCounters()

	// First confirmed disposition: warn.
	if n := c.Increment("author-a"); n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
	if Decide(c.Get("author-a")).Tier != TierWarn {
		t.Error("count 1 should warn")
	}

	// Two more: temporary suspension.
	c.Increment("author-a")
	n := c.Increment("author-a")
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
	if Decide(n).Tier != TierTemporary {
		t.Error("count 3 should be temporary")
	}

	// Four more: permanent suspension.
	for i := 0; i < 4; i++ {
		n = c.Increment("author-a")
	}
	if n != 7 {
		t.Fatalf("count = %d, want 7", n)
	}
	if Decide(n).Tier != TierPermanent {
		t.Error("count 7 should be permanent")
	}

	// Independent authors do not share counters.
	if c.Get("author-b") != 0 {
		t.Error("fresh author should start at 0")
	}
}

func TestCounters_ConcurrentIncrements(t *testing.T) {
	c := NewCounters()
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Increment("author-a")
		}()
	}
	wg.Wait()
	if got := c.Get("author-a"); got != n {
		t.Errorf("count = %d, want %d", got, n)
	}
}
