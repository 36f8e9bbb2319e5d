package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeFetcher struct {
	entries []Entry
	err     error
}

func (f *fakeFetcher) AuditLog(guildID string, action int, limit int) ([]Entry, error) {
	return f.entries, f.err
}

func testCorrelator(fetch *fakeFetcher, now time.Time) *Correlator {
	c := New(fetch, "bot", zerolog.Nop())
	c.now = func() time.Time { return now }
	return c
}

func TestActorResolvesFreshEntry(t *testing.T) {
	now := time.Now()
	fetch := &fakeFetcher{entries: []Entry{
		{ActorID: "attacker", TargetID: "ch1", CreatedAt: now.Add(-time.Second)},
	}}
	c := testCorrelator(fetch, now)

	actor, res := c.Actor("g1", "owner", 12, 10, "ch1", "")
	if res != Resolved || actor != "attacker" {
		t.Errorf("expected (attacker, Resolved), got (%q, %v)", actor, res)
	}
}

func TestActorIgnoresOldEntries(t *testing.T) {
	now := time.Now()
	fetch := &fakeFetcher{entries: []Entry{
		{ActorID: "attacker", TargetID: "ch1", CreatedAt: now.Add(-MaxEntryAge - time.Second)},
	}}
	c := testCorrelator(fetch, now)

	if _, res := c.Actor("g1", "owner", 12, 10, "ch1", ""); res != Unknown {
		t.Errorf("stale entry should not resolve, got %v", res)
	}
}

func TestActorMatchesTarget(t *testing.T) {
	now := time.Now()
	fetch := &fakeFetcher{entries: []Entry{
		{ActorID: "other", TargetID: "ch9", CreatedAt: now},
		{ActorID: "attacker", TargetID: "ch1", CreatedAt: now},
	}}
	c := testCorrelator(fetch, now)

	actor, res := c.Actor("g1", "owner", 12, 10, "ch1", "")
	if res != Resolved || actor != "attacker" {
		t.Errorf("expected target-matched entry, got (%q, %v)", actor, res)
	}
}

func TestActorMatchesChannel(t *testing.T) {
	now := time.Now()
	fetch := &fakeFetcher{entries: []Entry{
		{ActorID: "other", TargetID: "wh9", ChannelID: "c9", CreatedAt: now},
		{ActorID: "attacker", TargetID: "wh1", ChannelID: "c1", CreatedAt: now},
	}}
	c := testCorrelator(fetch, now)

	entry, res := c.Find("g1", "owner", 50, 10, "", "c1")
	if res != Resolved || entry.ActorID != "attacker" || entry.TargetID != "wh1" {
		t.Errorf("expected channel-matched entry wh1, got (%+v, %v)", entry, res)
	}
}

func TestActorExemptions(t *testing.T) {
	now := time.Now()
	c := testCorrelator(&fakeFetcher{}, now)

	tests := []struct {
		name  string
		actor string
	}{
		{"bot itself", "bot"},
		{"guild owner", "owner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c.fetch = &fakeFetcher{entries: []Entry{
				{ActorID: tt.actor, TargetID: "ch1", CreatedAt: now},
			}}
			actor, res := c.Actor("g1", "owner", 12, 10, "ch1", "")
			if res != Exempt || actor != tt.actor {
				t.Errorf("expected (%q, Exempt), got (%q, %v)", tt.actor, actor, res)
			}
		})
	}
}

func TestActorFetchError(t *testing.T) {
	c := testCorrelator(&fakeFetcher{err: errors.New("api down")}, time.Now())

	if _, res := c.Actor("g1", "owner", 12, 10, "", ""); res != Unknown {
		t.Errorf("fetch failure must resolve to Unknown, got %v", res)
	}
}

func TestActorNoEntries(t *testing.T) {
	c := testCorrelator(&fakeFetcher{}, time.Now())

	if _, res := c.Actor("g1", "owner", 12, 10, "", ""); res != Unknown {
		t.Errorf("empty log must resolve to Unknown, got %v", res)
	}
}
