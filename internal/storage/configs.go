package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Guild config keys used across the bot.
const (
	KeyQuarantineRole = "quarantine_role_id"
	KeyLogChannel     = "log_channel_id"
	KeyTelegramChat   = "telegram_chat_id"
	KeyTelegramToken  = "telegram_bot_token_encrypted"

	// Per-guild anti-nuke overrides share this prefix so they can be
	// fetched in one query and invalidated as a group.
	AntiNukePrefix = "antinuke_"
)

// UpsertGuild records a guild the bot is a member of.
func (d *DB) UpsertGuild(guildID, name string) error {
	_, err := d.db.Exec(
		`INSERT INTO guilds (guild_id, guild_name, joined_at) VALUES (?, ?, ?)
		 ON CONFLICT (guild_id) DO UPDATE SET guild_name = excluded.guild_name`,
		guildID, name, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert guild %s: %w", guildID, err)
	}
	return nil
}

// CountGuilds returns the number of known guilds.
func (d *DB) CountGuilds() (int, error) {
	var n int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM guilds`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count guilds: %w", err)
	}
	return n, nil
}

// SetGuildConfig inserts or replaces a single per-guild setting.
func (d *DB) SetGuildConfig(guildID, key, value string) error {
	_, err := d.db.Exec(
		`INSERT INTO guild_configs (guild_id, config_key, config_value) VALUES (?, ?, ?)
		 ON CONFLICT (guild_id, config_key) DO UPDATE SET config_value = excluded.config_value`,
		guildID, key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set config %s for guild %s: %w", key, guildID, err)
	}
	return nil
}

// GetGuildConfig reads a single per-guild setting. The second return value is
// false when the key is not set.
func (d *DB) GetGuildConfig(guildID, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRow(
		`SELECT config_value FROM guild_configs WHERE guild_id = ? AND config_key = ?`,
		guildID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get config %s for guild %s: %w", key, guildID, err)
	}
	return value, true, nil
}

// DeleteGuildConfig removes a single per-guild setting.
func (d *DB) DeleteGuildConfig(guildID, key string) error {
	_, err := d.db.Exec(
		`DELETE FROM guild_configs WHERE guild_id = ? AND config_key = ?`,
		guildID, key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete config %s for guild %s: %w", key, guildID, err)
	}
	return nil
}

// GuildConfigsByPrefix returns every setting of a guild whose key starts with
// prefix, with the prefix stripped from the returned keys.
func (d *DB) GuildConfigsByPrefix(guildID, prefix string) (map[string]string, error) {
	rows, err := d.db.Query(
		`SELECT config_key, config_value FROM guild_configs WHERE guild_id = ? AND config_key LIKE ?`,
		guildID, prefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query configs for guild %s: %w", guildID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan config row: %w", err)
		}
		out[strings.TrimPrefix(k, prefix)] = v
	}
	return out, rows.Err()
}

// DeleteGuildConfigsByPrefix removes every setting of a guild whose key
// starts with prefix. Used by the settings reset command.
func (d *DB) DeleteGuildConfigsByPrefix(guildID, prefix string) error {
	_, err := d.db.Exec(
		`DELETE FROM guild_configs WHERE guild_id = ? AND config_key LIKE ?`,
		guildID, prefix+"%",
	)
	if err != nil {
		return fmt.Errorf("failed to delete configs for guild %s: %w", guildID, err)
	}
	return nil
}
