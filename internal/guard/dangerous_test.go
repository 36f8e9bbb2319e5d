package guard

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestDangerousIn(t *testing.T) {
	perms := int64(discordgo.PermissionAdministrator | discordgo.PermissionBanMembers | discordgo.PermissionSendMessages)

	got := DangerousIn(perms)
	if len(got) != 2 {
		t.Fatalf("expected 2 dangerous permissions, got %v", got)
	}
	if got[0] != "administrator" || got[1] != "ban_members" {
		t.Errorf("unexpected names: %v", got)
	}
}

func TestDangerousInHarmless(t *testing.T) {
	perms := int64(discordgo.PermissionSendMessages | discordgo.PermissionAddReactions)
	if got := DangerousIn(perms); got != nil {
		t.Errorf("expected nil for harmless permissions, got %v", got)
	}
}

func TestEscalated(t *testing.T) {
	before := int64(discordgo.PermissionKickMembers | discordgo.PermissionSendMessages)
	after := before | discordgo.PermissionAdministrator | discordgo.PermissionManageWebhooks

	got := Escalated(before, after)
	if len(got) != 2 {
		t.Fatalf("expected 2 escalated permissions, got %v", got)
	}
	if got[0] != "administrator" || got[1] != "manage_webhooks" {
		t.Errorf("unexpected names: %v", got)
	}
}

func TestEscalatedIgnoresRemovals(t *testing.T) {
	before := int64(discordgo.PermissionAdministrator)
	after := int64(discordgo.PermissionSendMessages)

	if got := Escalated(before, after); got != nil {
		t.Errorf("dropping permissions is not an escalation, got %v", got)
	}
}

func TestIsDangerous(t *testing.T) {
	if !IsDangerous(discordgo.PermissionManageServer) {
		t.Error("manage_guild should be dangerous")
	}
	if IsDangerous(discordgo.PermissionSendMessages) {
		t.Error("send_messages should not be dangerous")
	}
}
