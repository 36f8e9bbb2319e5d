package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ActionWebhookCreate is the only grant type issued today; the column is a
// string so future owner-approved action types need no migration.
const ActionWebhookCreate = "webhook_create"

// CreateActionGrant issues a one-time, time-boxed exemption for an action the
// owner has approved.
func (d *DB) CreateActionGrant(guildID, userID, actionType string, lifetime time.Duration) error {
	_, err := d.db.Exec(
		`INSERT INTO action_permissions (guild_id, user_id, action_type, expires_at) VALUES (?, ?, ?, ?)`,
		guildID, userID, actionType, time.Now().Add(lifetime).Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s grant for %s in guild %s: %w", actionType, userID, guildID, err)
	}
	return nil
}

// ConsumeActionGrant marks one valid, unused grant as used and reports
// whether one existed. The single UPDATE makes consumption atomic: two
// concurrent consumers of the same grant cannot both succeed.
func (d *DB) ConsumeActionGrant(guildID, userID, actionType string) (bool, error) {
	res, err := d.db.Exec(
		`UPDATE action_permissions SET is_used = 1
		 WHERE id = (
			SELECT id FROM action_permissions
			WHERE guild_id = ? AND user_id = ? AND action_type = ?
			  AND is_used = 0 AND expires_at > ?
			LIMIT 1
		 )`,
		guildID, userID, actionType, time.Now().Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to consume %s grant for %s in guild %s: %w", actionType, userID, guildID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read grant update result: %w", err)
	}
	return n > 0, nil
}

// PurgeExpiredGrants deletes grants that are used or past expiry. They are
// already inert; this only keeps the table small.
func (d *DB) PurgeExpiredGrants() error {
	_, err := d.db.Exec(
		`DELETE FROM action_permissions WHERE is_used = 1 OR expires_at <= ?`,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to purge expired grants: %w", err)
	}
	return nil
}

// RunGrantJanitor clears dead action grants every minute until ctx is done.
// Call from main.
func RunGrantJanitor(ctx context.Context, db *DB, log zerolog.Logger) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := db.PurgeExpiredGrants(); err != nil {
				log.Error().Err(err).Msg("grant janitor sweep failed")
			}
		}
	}
}
