package threat

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestDecaySweep(t *testing.T) {
	store := NewStore()
	store.Add("g1", "u1", 10)
	store.Add("g2", "u1", 10)

	decaySweep(store, testSettings(), DecayInterval, zerolog.Nop())

	// 2 points/second over a 2 second interval.
	if got := store.Score("g1", "u1"); got != 6 {
		t.Errorf("expected 6 after sweep, got %v", got)
	}
	if got := store.Score("g2", "u1"); got != 6 {
		t.Errorf("expected 6 after sweep, got %v", got)
	}
}

func TestDecaySweepSkipsFailingGuild(t *testing.T) {
	store := NewStore()
	store.Add("g1", "u1", 10)

	src := &fakeSettings{err: errors.New("db down")}
	decaySweep(store, src, DecayInterval, zerolog.Nop())

	if got := store.Score("g1", "u1"); got != 10 {
		t.Errorf("failing guild should be skipped untouched, got %v", got)
	}
}
