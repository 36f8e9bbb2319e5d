// Package guard defines the fixed, guild-independent set of permissions
// considered capable of large-scale damage. A role grant or permission
// change touching any of them goes through the owner-confirmation workflow.
package guard

import (
	"github.com/bwmarrin/discordgo"
)

type dangerousPermission struct {
	bit  int64
	name string
}

var dangerousPermissions = []dangerousPermission{
	{discordgo.PermissionAdministrator, "administrator"},
	{discordgo.PermissionManageServer, "manage_guild"},
	{discordgo.PermissionManageRoles, "manage_roles"},
	{discordgo.PermissionManageChannels, "manage_channels"},
	{discordgo.PermissionManageWebhooks, "manage_webhooks"},
	{discordgo.PermissionBanMembers, "ban_members"},
	{discordgo.PermissionKickMembers, "kick_members"},
	{discordgo.PermissionMentionEveryone, "mention_everyone"},
}

// DangerousIn returns the names of the dangerous permissions present in a
// permission bitset.
func DangerousIn(perms int64) []string {
	var out []string
	for _, p := range dangerousPermissions {
		if perms&p.bit != 0 {
			out = append(out, p.name)
		}
	}
	return out
}

// Escalated returns the names of the dangerous permissions present in after
// but not in before.
func Escalated(before, after int64) []string {
	return DangerousIn(after &^ before)
}

// IsDangerous reports whether a permission bitset carries any dangerous
// permission.
func IsDangerous(perms int64) bool {
	return len(DangerousIn(perms)) > 0
}
