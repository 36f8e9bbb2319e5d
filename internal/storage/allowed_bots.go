package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// AllowBot whitelists a bot account for a guild.
func (d *DB) AllowBot(guildID, botID string) error {
	_, err := d.db.Exec(
		`INSERT INTO allowed_bots (guild_id, bot_id) VALUES (?, ?)
		 ON CONFLICT (guild_id, bot_id) DO NOTHING`,
		guildID, botID,
	)
	if err != nil {
		return fmt.Errorf("failed to whitelist bot %s in guild %s: %w", botID, guildID, err)
	}
	return nil
}

// DisallowBot removes a bot from a guild's whitelist.
func (d *DB) DisallowBot(guildID, botID string) error {
	_, err := d.db.Exec(
		`DELETE FROM allowed_bots WHERE guild_id = ? AND bot_id = ?`,
		guildID, botID,
	)
	if err != nil {
		return fmt.Errorf("failed to remove bot %s from whitelist in guild %s: %w", botID, guildID, err)
	}
	return nil
}

// IsBotAllowed reports whether a bot account is whitelisted for a guild.
func (d *DB) IsBotAllowed(guildID, botID string) (bool, error) {
	var one int
	err := d.db.QueryRow(
		`SELECT 1 FROM allowed_bots WHERE guild_id = ? AND bot_id = ?`,
		guildID, botID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bot whitelist for guild %s: %w", guildID, err)
	}
	return true, nil
}

// AllowedBots lists the whitelisted bot IDs of a guild.
func (d *DB) AllowedBots(guildID string) ([]string, error) {
	rows, err := d.db.Query(`SELECT bot_id FROM allowed_bots WHERE guild_id = ?`, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bot whitelist for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan whitelist row: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
