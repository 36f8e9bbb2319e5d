// Package quarantine implements the member isolation state machine:
// normal → quarantined → restored, banned, or kept-quarantined. Role
// snapshots are persisted before any role edit, so a process restart never
// loses the information needed to reverse a quarantine.
package quarantine

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
)

// ErrForbidden is returned by GuildModerator implementations when the
// platform refuses an edit because of role hierarchy.
var ErrForbidden = errors.New("insufficient role hierarchy")

// ErrNotFound is returned by GuildModerator implementations when the target
// member does not exist in the guild.
var ErrNotFound = errors.New("member not found")

// GuildModerator is the platform surface the state machine needs. The
// Discord session adapter implements it; tests supply fakes.
type GuildModerator interface {
	// MemberRoleIDs returns the member's current role IDs, excluding the
	// guild's default role.
	MemberRoleIDs(guildID, userID string) ([]string, error)
	// SetMemberRoles replaces the member's role set with exactly roleIDs.
	SetMemberRoles(guildID, userID string, roleIDs []string) error
	// AddMemberRole grants a single role without touching the rest.
	AddMemberRole(guildID, userID, roleID string) error
	// Ban bans the user outright.
	Ban(guildID, userID, reason string) error
	// RoleExists reports whether a role still exists in the guild.
	RoleExists(guildID, roleID string) bool
}

// Service drives quarantine state transitions against storage and the
// platform.
type Service struct {
	db  *storage.DB
	mod GuildModerator
	log zerolog.Logger
}

// NewService builds the state machine.
func NewService(db *storage.DB, mod GuildModerator, log zerolog.Logger) *Service {
	return &Service{db: db, mod: mod, log: log}
}

// Quarantine snapshots the member's roles, persists an active record, and
// swaps the member to exactly the quarantine role. A second quarantine for
// the same member overwrites the prior snapshot.
func (s *Service) Quarantine(guildID, userID, reason string) Result {
	roleID, found, err := s.db.GetGuildConfig(guildID, storage.KeyQuarantineRole)
	if err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to read quarantine role config")
		return fail(CodeStorage)
	}
	if !found || roleID == "" {
		return fail(CodeNotConfigured)
	}
	if !s.mod.RoleExists(guildID, roleID) {
		return fail(CodeRoleNotFound)
	}

	snapshot, err := s.mod.MemberRoleIDs(guildID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fail(CodeUserNotFound)
		}
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to read member roles")
		return fail(CodeStorage)
	}

	// Snapshot first: if the role edit fails the record stays active and a
	// later restore or ban still resolves it.
	if err := s.db.UpsertQuarantine(guildID, userID, snapshot, reason); err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to persist quarantine record")
		return fail(CodeStorage)
	}

	if err := s.mod.SetMemberRoles(guildID, userID, []string{roleID}); err != nil {
		if errors.Is(err, ErrForbidden) {
			return fail(CodeHierarchy)
		}
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to apply quarantine role")
		return fail(CodeStorage)
	}

	s.log.Info().Str("guild_id", guildID).Str("user_id", userID).Str("reason", reason).Msg("member quarantined")
	return ok()
}

// QuarantineOrBan quarantines a member and, when the bot's hierarchy is too
// low for the role edit, falls back to an outright ban, so a flagged member
// is never left with full privileges. The second return value reports that the
// fallback fired.
func (s *Service) QuarantineOrBan(guildID, userID, reason string) (Result, bool) {
	res := s.Quarantine(guildID, userID, reason)
	if res.Code != CodeHierarchy {
		return res, false
	}
	s.log.Warn().Str("guild_id", guildID).Str("user_id", userID).Msg("quarantine blocked by hierarchy, falling back to ban")
	return s.Ban(guildID, userID, "Anti-nuke: quarantine failed, fallback to ban"), true
}

// Restore re-applies the snapshotted role set and marks the record
// inactive. Roles deleted since the snapshot are skipped silently.
func (s *Service) Restore(guildID, userID, reason string) Result {
	rec, active, err := s.db.ActiveQuarantine(guildID, userID)
	if err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to read quarantine record")
		return fail(CodeStorage)
	}
	if !active {
		return fail(CodeNotInQuarantine)
	}

	roles := make([]string, 0, len(rec.RoleIDs))
	for _, id := range rec.RoleIDs {
		if s.mod.RoleExists(guildID, id) {
			roles = append(roles, id)
		}
	}

	if err := s.mod.SetMemberRoles(guildID, userID, roles); err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			return fail(CodeHierarchy)
		case errors.Is(err, ErrNotFound):
			return fail(CodeUserNotFound)
		}
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to restore member roles")
		return fail(CodeStorage)
	}

	if err := s.db.DeactivateQuarantine(guildID, userID); err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to deactivate quarantine record")
		return fail(CodeStorage)
	}

	s.log.Info().Str("guild_id", guildID).Str("user_id", userID).Str("reason", reason).Msg("member restored from quarantine")
	return ok()
}

// Ban bans the user and marks any active quarantine record inactive. Used
// both as a direct moderator decision and as the hierarchy fallback.
func (s *Service) Ban(guildID, userID, reason string) Result {
	if err := s.mod.Ban(guildID, userID, reason); err != nil {
		if errors.Is(err, ErrForbidden) {
			return fail(CodeHierarchy)
		}
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to ban member")
		return fail(CodeStorage)
	}

	if err := s.db.DeactivateQuarantine(guildID, userID); err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to deactivate quarantine record after ban")
		return fail(CodeStorage)
	}

	s.log.Info().Str("guild_id", guildID).Str("user_id", userID).Str("reason", reason).Msg("member banned")
	return ok()
}

// Keep marks the record inactive without touching roles: the owner decided
// the member stays in the quarantine role as-is.
func (s *Service) Keep(guildID, userID string) Result {
	_, active, err := s.db.ActiveQuarantine(guildID, userID)
	if err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to read quarantine record")
		return fail(CodeStorage)
	}
	if !active {
		return fail(CodeNotInQuarantine)
	}

	if err := s.db.DeactivateQuarantine(guildID, userID); err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to deactivate quarantine record")
		return fail(CodeStorage)
	}
	return ok()
}

// ReapplyOnJoin re-applies the quarantine role to a member who left and
// rejoined while their record was still active. The original snapshot stays
// authoritative; nothing is re-snapshotted.
func (s *Service) ReapplyOnJoin(guildID, userID string) Result {
	_, active, err := s.db.ActiveQuarantine(guildID, userID)
	if err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to read quarantine record")
		return fail(CodeStorage)
	}
	if !active {
		return fail(CodeNotInQuarantine)
	}

	roleID, found, err := s.db.GetGuildConfig(guildID, storage.KeyQuarantineRole)
	if err != nil {
		s.log.Error().Err(err).Str("guild_id", guildID).Msg("failed to read quarantine role config")
		return fail(CodeStorage)
	}
	if !found || roleID == "" {
		return fail(CodeNotConfigured)
	}
	if !s.mod.RoleExists(guildID, roleID) {
		return fail(CodeRoleNotFound)
	}

	if err := s.mod.AddMemberRole(guildID, userID, roleID); err != nil {
		if errors.Is(err, ErrForbidden) {
			return fail(CodeHierarchy)
		}
		s.log.Error().Err(err).Str("guild_id", guildID).Str("user_id", userID).Msg("failed to re-apply quarantine role")
		return fail(CodeStorage)
	}

	s.log.Info().Str("guild_id", guildID).Str("user_id", userID).Msg("quarantine re-applied after rejoin")
	return ok()
}
