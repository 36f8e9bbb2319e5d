package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// QuarantineRecord is the durable snapshot taken when a member is
// quarantined. The role snapshot is the sole source of truth for restoring
// the member later.
type QuarantineRecord struct {
	GuildID       string
	UserID        string
	RoleIDs       []string
	Reason        string
	Status        string
	QuarantinedAt time.Time
}

const (
	QuarantineActive   = "active"
	QuarantineInactive = "inactive"
)

// UpsertQuarantine creates an active quarantine record, replacing any prior
// record for the same member. Re-quarantining overwrites the previous
// snapshot, which keeps re-entry idempotent: at most one active record per
// (guild, user) can ever exist.
func (d *DB) UpsertQuarantine(guildID, userID string, roleIDs []string, reason string) error {
	rolesJSON, err := json.Marshal(roleIDs)
	if err != nil {
		return fmt.Errorf("failed to encode role snapshot: %w", err)
	}
	_, err = d.db.Exec(
		`INSERT INTO quarantined_users (guild_id, user_id, roles_json, reason, status, quarantined_at)
		 VALUES (?, ?, ?, ?, 'active', ?)
		 ON CONFLICT (guild_id, user_id) DO UPDATE SET
			roles_json = excluded.roles_json,
			reason = excluded.reason,
			status = 'active',
			quarantined_at = excluded.quarantined_at`,
		guildID, userID, string(rolesJSON), reason, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quarantine for %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// ActiveQuarantine returns the active record for a member, if any.
func (d *DB) ActiveQuarantine(guildID, userID string) (*QuarantineRecord, bool, error) {
	var (
		rolesJSON string
		rec       = QuarantineRecord{GuildID: guildID, UserID: userID, Status: QuarantineActive}
		at        int64
	)
	err := d.db.QueryRow(
		`SELECT roles_json, reason, quarantined_at FROM quarantined_users
		 WHERE guild_id = ? AND user_id = ? AND status = 'active'`,
		guildID, userID,
	).Scan(&rolesJSON, &rec.Reason, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read quarantine for %s in guild %s: %w", userID, guildID, err)
	}
	if err := json.Unmarshal([]byte(rolesJSON), &rec.RoleIDs); err != nil {
		return nil, false, fmt.Errorf("failed to decode role snapshot: %w", err)
	}
	rec.QuarantinedAt = time.Unix(at, 0)
	return &rec, true, nil
}

// DeactivateQuarantine marks a member's record inactive. It is a no-op when
// no record exists.
func (d *DB) DeactivateQuarantine(guildID, userID string) error {
	_, err := d.db.Exec(
		`UPDATE quarantined_users SET status = 'inactive' WHERE guild_id = ? AND user_id = ?`,
		guildID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate quarantine for %s in guild %s: %w", userID, guildID, err)
	}
	return nil
}

// ActiveQuarantines lists the active records of a guild, newest first.
func (d *DB) ActiveQuarantines(guildID string) ([]QuarantineRecord, error) {
	rows, err := d.db.Query(
		`SELECT user_id, roles_json, reason, quarantined_at FROM quarantined_users
		 WHERE guild_id = ? AND status = 'active' ORDER BY quarantined_at DESC`,
		guildID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantines for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []QuarantineRecord
	for rows.Next() {
		rec := QuarantineRecord{GuildID: guildID, Status: QuarantineActive}
		var rolesJSON string
		var at int64
		if err := rows.Scan(&rec.UserID, &rolesJSON, &rec.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan quarantine row: %w", err)
		}
		if err := json.Unmarshal([]byte(rolesJSON), &rec.RoleIDs); err != nil {
			return nil, fmt.Errorf("failed to decode role snapshot: %w", err)
		}
		rec.QuarantinedAt = time.Unix(at, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountActiveQuarantines returns the number of active records across all
// guilds.
func (d *DB) CountActiveQuarantines() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM quarantined_users WHERE status = 'active'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count quarantines: %w", err)
	}
	return n, nil
}
