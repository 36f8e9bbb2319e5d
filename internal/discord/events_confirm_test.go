package discord

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/settings"
	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/internal/threat"
)

func newScoringBot(t *testing.T) (*Bot, *storage.DB) {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "bastion.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	defaults := threat.Settings{
		Threshold:      25,
		DecayPerSecond: 2,
		Weights:        map[threat.EventType]float64{threat.EventWebhookCreate: 5},
	}
	engine := threat.NewEngine(threat.NewStore(), settings.NewCache(db, defaults, zerolog.Nop()))

	b := &Bot{
		svc: &Services{DB: db, Engine: engine},
		log: zerolog.Nop(),
	}
	return b, db
}

func TestWebhookScoreAccruesDespiteGrant(t *testing.T) {
	b, db := newScoringBot(t)

	if err := db.CreateActionGrant("g1", "u1", storage.ActionWebhookCreate, time.Hour); err != nil {
		t.Fatal(err)
	}

	out, allowed := b.scoreWebhookCreation("g1", "u1")
	if !allowed {
		t.Fatal("expected the grant to allow the creation")
	}
	if out.Score != 5 {
		t.Errorf("expected score 5 despite the grant, got %v", out.Score)
	}
	if out.Triggered {
		t.Error("score below threshold must not trigger")
	}

	// The grant is one-shot; a second creation is no longer allowed and
	// keeps accruing.
	out, allowed = b.scoreWebhookCreation("g1", "u1")
	if allowed {
		t.Fatal("expected the consumed grant to reject a second creation")
	}
	if out.Score != 10 {
		t.Errorf("expected score 10 after two creations, got %v", out.Score)
	}
}
