package threat

import (
	"testing"
)

func TestStoreAdd(t *testing.T) {
	s := NewStore()

	if got := s.Add("g1", "u1", 10); got != 10 {
		t.Errorf("expected total 10, got %v", got)
	}
	if got := s.Add("g1", "u1", 10); got != 20 {
		t.Errorf("expected total 20, got %v", got)
	}
	if got := s.Add("g1", "u2", 5); got != 5 {
		t.Errorf("expected separate member total 5, got %v", got)
	}
	if got := s.Add("g2", "u1", 3); got != 3 {
		t.Errorf("expected separate guild total 3, got %v", got)
	}
}

func TestStoreAddNonPositiveWeight(t *testing.T) {
	s := NewStore()
	s.Add("g1", "u1", 7)

	if got := s.Add("g1", "u1", 0); got != 7 {
		t.Errorf("zero weight changed total: got %v", got)
	}
	if got := s.Add("g1", "u1", -5); got != 7 {
		t.Errorf("negative weight changed total: got %v", got)
	}
}

func TestStoreReadAndClear(t *testing.T) {
	s := NewStore()
	s.Add("g1", "u1", 30)

	score, ok := s.ReadAndClear("g1", "u1")
	if !ok || score != 30 {
		t.Fatalf("expected (30, true), got (%v, %v)", score, ok)
	}

	// Entry is gone: a second clear finds nothing.
	if _, ok := s.ReadAndClear("g1", "u1"); ok {
		t.Error("second ReadAndClear should report no entry")
	}
	if got := s.Score("g1", "u1"); got != 0 {
		t.Errorf("expected score 0 after clear, got %v", got)
	}
}

func TestStoreDecayTick(t *testing.T) {
	s := NewStore()
	s.Add("g1", "u1", 10)
	s.Add("g1", "u2", 3)

	s.DecayTick("g1", 4)
	if got := s.Score("g1", "u1"); got != 6 {
		t.Errorf("expected 6 after decay, got %v", got)
	}

	// u2 hit the floor and was deleted.
	if got := s.Score("g1", "u2"); got != 0 {
		t.Errorf("expected 0 after floor, got %v", got)
	}
	if _, ok := s.ReadAndClear("g1", "u2"); ok {
		t.Error("floored entry should have been removed")
	}
}

func TestStoreGuildIDs(t *testing.T) {
	s := NewStore()
	s.Add("g1", "u1", 1)
	s.Add("g2", "u1", 1)

	ids := s.GuildIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 guilds, got %d", len(ids))
	}
}
