package quarantine

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
)

// fakeModerator is an in-memory GuildModerator.
type fakeModerator struct {
	roles        map[string][]string // userID -> role IDs
	guildRoles   map[string]bool     // roleID -> exists
	banned       map[string]string   // userID -> reason
	setRolesErr  error
	memberErr    error
	banErr       error
	addRoleCalls []string
}

func newFakeModerator() *fakeModerator {
	return &fakeModerator{
		roles:      make(map[string][]string),
		guildRoles: make(map[string]bool),
		banned:     make(map[string]string),
	}
}

func (f *fakeModerator) MemberRoleIDs(guildID, userID string) ([]string, error) {
	if f.memberErr != nil {
		return nil, f.memberErr
	}
	return f.roles[userID], nil
}

func (f *fakeModerator) SetMemberRoles(guildID, userID string, roleIDs []string) error {
	if f.setRolesErr != nil {
		return f.setRolesErr
	}
	f.roles[userID] = roleIDs
	return nil
}

func (f *fakeModerator) AddMemberRole(guildID, userID, roleID string) error {
	f.addRoleCalls = append(f.addRoleCalls, userID+":"+roleID)
	f.roles[userID] = append(f.roles[userID], roleID)
	return nil
}

func (f *fakeModerator) Ban(guildID, userID, reason string) error {
	if f.banErr != nil {
		return f.banErr
	}
	f.banned[userID] = reason
	return nil
}

func (f *fakeModerator) RoleExists(guildID, roleID string) bool {
	return f.guildRoles[roleID]
}

func testService(t *testing.T) (*Service, *fakeModerator, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	mod := newFakeModerator()
	mod.guildRoles["qrole"] = true
	if err := db.SetGuildConfig("g1", storage.KeyQuarantineRole, "qrole"); err != nil {
		t.Fatal(err)
	}
	return NewService(db, mod, zerolog.Nop()), mod, db
}

func TestQuarantineSwapsRoles(t *testing.T) {
	svc, mod, db := testService(t)
	mod.roles["u1"] = []string{"r1", "r2"}

	res := svc.Quarantine("g1", "u1", "testing")
	if !res.OK() {
		t.Fatalf("expected OK, got %s", res.Code)
	}

	if len(mod.roles["u1"]) != 1 || mod.roles["u1"][0] != "qrole" {
		t.Errorf("expected member to hold only the quarantine role, got %v", mod.roles["u1"])
	}

	rec, active, err := db.ActiveQuarantine("g1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if !active {
		t.Fatal("expected an active record")
	}
	if len(rec.RoleIDs) != 2 {
		t.Errorf("expected snapshot of 2 roles, got %v", rec.RoleIDs)
	}
}

func TestQuarantineNotConfigured(t *testing.T) {
	svc, _, db := testService(t)
	if err := db.DeleteGuildConfig("g1", storage.KeyQuarantineRole); err != nil {
		t.Fatal(err)
	}

	res := svc.Quarantine("g1", "u1", "testing")
	if res.Code != CodeNotConfigured {
		t.Errorf("expected %s, got %s", CodeNotConfigured, res.Code)
	}
}

func TestQuarantineRoleDeleted(t *testing.T) {
	svc, mod, _ := testService(t)
	mod.guildRoles["qrole"] = false

	res := svc.Quarantine("g1", "u1", "testing")
	if res.Code != CodeRoleNotFound {
		t.Errorf("expected %s, got %s", CodeRoleNotFound, res.Code)
	}
}

func TestDoubleQuarantineOverwritesSnapshot(t *testing.T) {
	svc, mod, db := testService(t)
	mod.roles["u1"] = []string{"r1"}

	if res := svc.Quarantine("g1", "u1", "first"); !res.OK() {
		t.Fatalf("first quarantine failed: %s", res.Code)
	}

	// The member now holds only the quarantine role; a second quarantine
	// snapshots that state without creating a second record.
	if res := svc.Quarantine("g1", "u1", "second"); !res.OK() {
		t.Fatalf("second quarantine failed: %s", res.Code)
	}

	recs, err := db.ActiveQuarantines("g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one active record, got %d", len(recs))
	}
	if recs[0].Reason != "second" {
		t.Errorf("expected overwritten reason, got %q", recs[0].Reason)
	}
}

func TestQuarantineHierarchyFallsBackToBan(t *testing.T) {
	svc, mod, db := testService(t)
	mod.roles["u1"] = []string{"r1"}
	mod.setRolesErr = ErrForbidden

	res, banned := svc.QuarantineOrBan("g1", "u1", "testing")
	if !res.OK() {
		t.Fatalf("expected OK after fallback, got %s", res.Code)
	}
	if !banned {
		t.Fatal("expected the ban fallback to fire")
	}
	if _, ok := mod.banned["u1"]; !ok {
		t.Error("member was not banned")
	}

	// The record is resolved by the ban.
	_, active, err := db.ActiveQuarantine("g1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("record should be inactive after ban")
	}
}

func TestRestoreSkipsDeletedRoles(t *testing.T) {
	svc, mod, db := testService(t)
	mod.roles["u1"] = []string{"r1", "r2"}
	mod.guildRoles["r1"] = true
	// r2 is never registered: deleted since the snapshot.

	if res := svc.Quarantine("g1", "u1", "testing"); !res.OK() {
		t.Fatalf("quarantine failed: %s", res.Code)
	}
	if res := svc.Restore("g1", "u1", "testing"); !res.OK() {
		t.Fatalf("restore failed: %s", res.Code)
	}

	if len(mod.roles["u1"]) != 1 || mod.roles["u1"][0] != "r1" {
		t.Errorf("expected only surviving role r1, got %v", mod.roles["u1"])
	}

	_, active, err := db.ActiveQuarantine("g1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("record should be inactive after restore")
	}
}

func TestRestoreWithoutRecord(t *testing.T) {
	svc, _, _ := testService(t)

	res := svc.Restore("g1", "u1", "testing")
	if res.Code != CodeNotInQuarantine {
		t.Errorf("expected %s, got %s", CodeNotInQuarantine, res.Code)
	}
}

func TestKeepDeactivatesWithoutRoleChanges(t *testing.T) {
	svc, mod, db := testService(t)
	mod.roles["u1"] = []string{"r1"}

	if res := svc.Quarantine("g1", "u1", "testing"); !res.OK() {
		t.Fatalf("quarantine failed: %s", res.Code)
	}
	if res := svc.Keep("g1", "u1"); !res.OK() {
		t.Fatalf("keep failed: %s", res.Code)
	}

	if len(mod.roles["u1"]) != 1 || mod.roles["u1"][0] != "qrole" {
		t.Errorf("keep should not touch roles, got %v", mod.roles["u1"])
	}
	_, active, err := db.ActiveQuarantine("g1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if active {
		t.Error("record should be inactive after keep")
	}
}

func TestReapplyOnJoin(t *testing.T) {
	svc, mod, _ := testService(t)
	mod.roles["u1"] = []string{"r1"}

	if res := svc.Quarantine("g1", "u1", "testing"); !res.OK() {
		t.Fatalf("quarantine failed: %s", res.Code)
	}

	// Member left and rejoined with no roles.
	mod.roles["u1"] = nil

	if res := svc.ReapplyOnJoin("g1", "u1"); !res.OK() {
		t.Fatalf("reapply failed: %s", res.Code)
	}
	if len(mod.addRoleCalls) != 1 || mod.addRoleCalls[0] != "u1:qrole" {
		t.Errorf("expected a single AddMemberRole for the quarantine role, got %v", mod.addRoleCalls)
	}
}

func TestReapplyOnJoinWithoutRecord(t *testing.T) {
	svc, _, _ := testService(t)

	res := svc.ReapplyOnJoin("g1", "u1")
	if res.Code != CodeNotInQuarantine {
		t.Errorf("expected %s, got %s", CodeNotInQuarantine, res.Code)
	}
}
