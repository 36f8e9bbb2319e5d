package telegram

import (
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/bastionbot/bastion/internal/storage"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func testRelay(t *testing.T) (*Relay, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cipher, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	return NewRelay(db, cipher, zerolog.Nop()), db
}

func TestTokenCipherRoundTrip(t *testing.T) {
	cipher, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}

	sealed, err := cipher.Encrypt("123456:bot-token")
	if err != nil {
		t.Fatal(err)
	}
	if sealed == "123456:bot-token" {
		t.Fatal("ciphertext equals plaintext")
	}

	got, err := cipher.Decrypt(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if got != "123456:bot-token" {
		t.Errorf("round trip changed the token: %q", got)
	}
}

func TestTokenCipherRejectsBadKey(t *testing.T) {
	if _, err := NewTokenCipher("deadbeef"); err == nil {
		t.Error("short key should be rejected")
	}
	if _, err := NewTokenCipher("zz" + testKey[2:]); err == nil {
		t.Error("non-hex key should be rejected")
	}
}

func TestTokenCipherRejectsTampering(t *testing.T) {
	cipher, err := NewTokenCipher(testKey)
	if err != nil {
		t.Fatal(err)
	}
	wrongKey, _ := NewTokenCipher(hex.EncodeToString(make([]byte, 32)))

	sealed, err := cipher.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wrongKey.Decrypt(sealed); err == nil {
		t.Error("decryption with the wrong key should fail")
	}
}

func TestLinkStoresEncryptedToken(t *testing.T) {
	r, db := testRelay(t)

	if err := r.Link("g1", "chat42", "123456:bot-token"); err != nil {
		t.Fatal(err)
	}

	stored, found, err := db.GetGuildConfig("g1", storage.KeyTelegramToken)
	if err != nil || !found {
		t.Fatalf("token config missing: %v", err)
	}
	if stored == "123456:bot-token" {
		t.Error("token stored in plaintext")
	}

	configured, err := r.Configured("g1")
	if err != nil || !configured {
		t.Errorf("expected configured guild, got (%v, %v)", configured, err)
	}
}

func TestUnlink(t *testing.T) {
	r, _ := testRelay(t)

	if err := r.Link("g1", "chat42", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := r.Unlink("g1"); err != nil {
		t.Fatal(err)
	}

	configured, err := r.Configured("g1")
	if err != nil {
		t.Fatal(err)
	}
	if configured {
		t.Error("guild should no longer be configured")
	}
}

func TestSendWithoutLinkIsNoOp(t *testing.T) {
	r, _ := testRelay(t)
	if err := r.Send("g1", "hello"); err != nil {
		t.Errorf("unlinked guild must be a silent no-op, got %v", err)
	}
}

func TestSendDeliversMessage(t *testing.T) {
	var gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		req.ParseForm()
		gotChat = req.FormValue("chat_id")
		gotText = req.FormValue("text")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	r, _ := testRelay(t)
	r.apiBase = srv.URL

	if err := r.Link("g1", "chat42", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := r.Send("g1", "**alert** for <@123>"); err != nil {
		t.Fatal(err)
	}

	if gotChat != "chat42" {
		t.Errorf("expected chat42, got %q", gotChat)
	}
	if gotText != "<b>alert</b> for " {
		t.Errorf("unexpected converted text: %q", gotText)
	}
}

func TestSendSurfacesRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"ok":false,"description":"chat not found"}`)
	}))
	defer srv.Close()

	r, _ := testRelay(t)
	r.apiBase = srv.URL

	if err := r.Link("g1", "bad-chat", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := r.Send("g1", "hello"); err == nil {
		t.Error("rejected delivery should return an error")
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	r, _ := testRelay(t)
	r.apiBase = srv.URL

	if err := r.Link("g1", "chat42", "tok"); err != nil {
		t.Fatal(err)
	}
	if err := r.Send("g1", "hello"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestDiscordMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "**danger**", "<b>danger</b>"},
		{"underline", "__note__", "<u>note</u>"},
		{"italic star", "*hint*", "<i>hint</i>"},
		{"italic underscore", "_hint_", "<i>hint</i>"},
		{"code", "`rm -rf`", "<code>rm -rf</code>"},
		{"user mention stripped", "hello <@123456>", "hello "},
		{"role mention stripped", "ping <@&9876>", "ping "},
		{"channel mention stripped", "see <#555>", "see "},
		{"html escaped", "a < b & c > d", "a &lt; b &amp; c &gt; d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DiscordMarkdownToHTML(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
