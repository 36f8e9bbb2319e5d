// Package telegram relays security alerts to a guild owner's Telegram chat.
// Delivery is strictly best-effort: the relay never fails the action that
// produced the alert.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/bastionbot/bastion/internal/storage"
	"github.com/bastionbot/bastion/pkg/retry"
)

const defaultAPIBase = "https://api.telegram.org"

// Relay sends per-guild alerts through the guild's own Telegram bot token.
type Relay struct {
	db      *storage.DB
	cipher  *TokenCipher
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	apiBase string
}

// NewRelay builds the relay. cipher may be nil, in which case linking is
// disabled and sends are no-ops.
func NewRelay(db *storage.DB, cipher *TokenCipher, log zerolog.Logger) *Relay {
	return &Relay{
		db:     db,
		cipher: cipher,
		client: &http.Client{Timeout: 10 * time.Second},
		// Telegram allows roughly 30 messages/second per bot; one per
		// second with small bursts is plenty for alerts.
		limiter: rate.NewLimiter(rate.Every(time.Second), 5),
		log:     log,
		apiBase: defaultAPIBase,
	}
}

// Link stores a guild's Telegram chat ID and encrypted bot token.
func (r *Relay) Link(guildID, chatID, botToken string) error {
	if r.cipher == nil {
		return fmt.Errorf("telegram relay is disabled: no token key configured")
	}
	encrypted, err := r.cipher.Encrypt(botToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt telegram token: %w", err)
	}
	if err := r.db.SetGuildConfig(guildID, storage.KeyTelegramChat, chatID); err != nil {
		return err
	}
	return r.db.SetGuildConfig(guildID, storage.KeyTelegramToken, encrypted)
}

// Unlink removes a guild's Telegram configuration.
func (r *Relay) Unlink(guildID string) error {
	if err := r.db.DeleteGuildConfig(guildID, storage.KeyTelegramChat); err != nil {
		return err
	}
	return r.db.DeleteGuildConfig(guildID, storage.KeyTelegramToken)
}

// Configured reports whether a guild has a linked Telegram chat.
func (r *Relay) Configured(guildID string) (bool, error) {
	_, found, err := r.db.GetGuildConfig(guildID, storage.KeyTelegramChat)
	return found, err
}

// Send delivers a message to a guild's linked chat. Guilds without a link
// are a silent no-op. Errors are returned for logging only; callers must
// not fail their own operation on them.
func (r *Relay) Send(guildID, message string) error {
	if r.cipher == nil {
		return nil
	}
	chatID, found, err := r.db.GetGuildConfig(guildID, storage.KeyTelegramChat)
	if err != nil || !found {
		return err
	}
	encrypted, found, err := r.db.GetGuildConfig(guildID, storage.KeyTelegramToken)
	if err != nil || !found {
		return err
	}
	token, err := r.cipher.Decrypt(encrypted)
	if err != nil {
		return fmt.Errorf("failed to decrypt telegram token for guild %s: %w", guildID, err)
	}

	if !r.limiter.Allow() {
		r.log.Warn().Str("guild_id", guildID).Msg("telegram alert dropped: rate limit")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return retry.Do(ctx, retry.DefaultConfig(), func() error {
		return r.sendOnce(guildID, chatID, token, message)
	})
}

// sendOnce is one delivery attempt. A rejection from the API (bad chat ID,
// revoked token) is permanent; network failures and server errors retry.
func (r *Relay) sendOnce(guildID, chatID, token, message string) error {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", DiscordMarkdownToHTML(message))
	form.Set("parse_mode", "HTML")

	resp, err := r.client.PostForm(fmt.Sprintf("%s/bot%s/sendMessage", r.apiBase, token), form)
	if err != nil {
		return fmt.Errorf("failed to reach telegram for guild %s: %w", guildID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("telegram returned %d for guild %s", resp.StatusCode, guildID)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !result.OK {
		return &retry.Permanent{Err: fmt.Errorf("telegram rejected alert for guild %s: %s", guildID, result.Description)}
	}
	return nil
}

var (
	mentionRe   = regexp.MustCompile(`<(@[!&]?|#)\d+>`)
	boldRe      = regexp.MustCompile(`\*\*(.*?)\*\*`)
	underlineRe = regexp.MustCompile(`__(.*?)__`)
	italicRe    = regexp.MustCompile(`\*(.*?)\*|_(.*?)_`)
	codeRe      = regexp.MustCompile("`(.*?)`")
)

// DiscordMarkdownToHTML converts the bot's Discord-flavored alert text into
// the HTML subset Telegram accepts, dropping Discord mention syntax it
// cannot render.
func DiscordMarkdownToHTML(text string) string {
	text = mentionRe.ReplaceAllString(text, "")

	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	text = replacer.Replace(text)

	text = boldRe.ReplaceAllString(text, "<b>$1</b>")
	text = underlineRe.ReplaceAllString(text, "<u>$1</u>")
	text = italicRe.ReplaceAllString(text, "<i>$1$2</i>")
	text = codeRe.ReplaceAllString(text, "<code>$1</code>")
	return text
}
