package threat

import (
	"errors"
	"testing"
)

type fakeSettings struct {
	cfg Settings
	err error
}

func (f *fakeSettings) Guild(guildID string) (Settings, error) {
	return f.cfg, f.err
}

func testSettings() *fakeSettings {
	return &fakeSettings{cfg: Settings{
		Threshold:      25,
		DecayPerSecond: 2,
		Weights: map[EventType]float64{
			EventChannelDelete: 10,
			EventChannelCreate: 10,
			EventRoleCreate:    5,
			EventBan:           8,
			EventKick:          8,
			EventWebhookCreate: 5,
		},
	}}
}

func TestEngineAccumulatesBelowThreshold(t *testing.T) {
	e := NewEngine(NewStore(), testSettings())

	out, err := e.AddScore("g1", "u1", EventChannelDelete)
	if err != nil {
		t.Fatal(err)
	}
	if out.Triggered {
		t.Error("single event should not trigger")
	}
	if out.Score != 10 {
		t.Errorf("expected score 10, got %v", out.Score)
	}
}

func TestEngineTriggersOnThreshold(t *testing.T) {
	e := NewEngine(NewStore(), testSettings())

	// Three channel deletions: 10 + 10 + 10 crosses 25 on the third.
	for i := 0; i < 2; i++ {
		out, err := e.AddScore("g1", "u1", EventChannelDelete)
		if err != nil {
			t.Fatal(err)
		}
		if out.Triggered {
			t.Fatalf("event %d should not trigger", i+1)
		}
	}

	out, err := e.AddScore("g1", "u1", EventChannelDelete)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Triggered {
		t.Fatal("third event should trigger")
	}
	if out.Score != 30 {
		t.Errorf("expected final score 30, got %v", out.Score)
	}

	// The trigger cleared the entry: the next event starts from zero.
	out, err = e.AddScore("g1", "u1", EventChannelDelete)
	if err != nil {
		t.Fatal(err)
	}
	if out.Triggered || out.Score != 10 {
		t.Errorf("expected fresh score 10 without trigger, got %+v", out)
	}
}

func TestEngineZeroWeightIsNoOp(t *testing.T) {
	src := testSettings()
	src.cfg.Weights[EventWebhookCreate] = 0
	e := NewEngine(NewStore(), src)

	out, err := e.AddScore("g1", "u1", EventWebhookCreate)
	if err != nil {
		t.Fatal(err)
	}
	if out.Score != 0 || out.Triggered {
		t.Errorf("zero-weight event should not score, got %+v", out)
	}
	if e.Store().Score("g1", "u1") != 0 {
		t.Error("store should hold no entry for a zero-weight event")
	}
}

func TestEngineSettingsError(t *testing.T) {
	src := &fakeSettings{err: errors.New("db down")}
	e := NewEngine(NewStore(), src)

	if _, err := e.AddScore("g1", "u1", EventBan); err == nil {
		t.Fatal("expected error when settings cannot be loaded")
	}
}
