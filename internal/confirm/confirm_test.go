package confirm

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestResolveApproved(t *testing.T) {
	m := NewManager(zerolog.Nop())

	done := make(chan Decision, 1)
	id := m.Create("g1", "owner", time.Minute, func(d Decision) { done <- d })

	if !m.Resolve(id, "owner", true) {
		t.Fatal("resolve by owner should succeed")
	}

	select {
	case d := <-done:
		if d != Approved {
			t.Errorf("expected Approved, got %s", d)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}

	if m.Count() != 0 {
		t.Errorf("expected no pending confirmations, got %d", m.Count())
	}
}

func TestResolveRejectsNonOwner(t *testing.T) {
	m := NewManager(zerolog.Nop())

	id := m.Create("g1", "owner", time.Minute, func(d Decision) {
		t.Error("callback should not run for a non-owner response")
	})

	if m.Resolve(id, "intruder", true) {
		t.Fatal("non-owner resolve should be refused")
	}
	if m.Count() != 1 {
		t.Error("confirmation should still be pending")
	}
}

func TestResolveUnknownID(t *testing.T) {
	m := NewManager(zerolog.Nop())
	if m.Resolve("no-such-id", "owner", true) {
		t.Fatal("unknown ID should not resolve")
	}
}

func TestResolveIsSingleShot(t *testing.T) {
	m := NewManager(zerolog.Nop())

	calls := make(chan Decision, 2)
	id := m.Create("g1", "owner", time.Minute, func(d Decision) { calls <- d })

	if !m.Resolve(id, "owner", false) {
		t.Fatal("first resolve should succeed")
	}
	if m.Resolve(id, "owner", true) {
		t.Fatal("second resolve should be a no-op")
	}

	d := <-calls
	if d != Denied {
		t.Errorf("expected Denied, got %s", d)
	}
	select {
	case <-calls:
		t.Fatal("callback ran twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimeout(t *testing.T) {
	m := NewManager(zerolog.Nop())

	done := make(chan Decision, 1)
	id := m.Create("g1", "owner", 20*time.Millisecond, func(d Decision) { done <- d })

	select {
	case d := <-done:
		if d != TimedOut {
			t.Errorf("expected TimedOut, got %s", d)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout never fired")
	}

	// A click after the timeout does nothing.
	if m.Resolve(id, "owner", true) {
		t.Error("resolve after timeout should be a no-op")
	}
}

func TestCancel(t *testing.T) {
	m := NewManager(zerolog.Nop())

	id := m.Create("g1", "owner", 20*time.Millisecond, func(d Decision) {
		t.Error("callback should not run after cancel")
	})
	m.Cancel(id)

	if m.Count() != 0 {
		t.Errorf("expected no pending confirmations, got %d", m.Count())
	}
	// Wait past the original timeout to catch a stray timer firing.
	time.Sleep(50 * time.Millisecond)
}

func TestOwner(t *testing.T) {
	m := NewManager(zerolog.Nop())
	id := m.Create("g1", "owner", time.Minute, func(Decision) {})

	owner, ok := m.Owner(id)
	if !ok || owner != "owner" {
		t.Errorf("expected (owner, true), got (%q, %v)", owner, ok)
	}
	if _, ok := m.Owner("missing"); ok {
		t.Error("unknown ID should report not found")
	}
}
