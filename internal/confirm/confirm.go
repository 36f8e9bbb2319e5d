// Package confirm tracks yes/no decisions delegated to a guild owner. Each
// pending confirmation is keyed by a correlation ID carried in the message
// components; it resolves exactly once, by the owner's response or by the
// timeout, whichever comes first. Pending state is in-memory only: a crash
// loses it, and the already-reverted action simply stays reverted.
package confirm

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Timeout is the default window the owner has to respond.
const Timeout = time.Hour

// Decision is the terminal state of a pending confirmation.
type Decision int

const (
	Approved Decision = iota
	Denied
	TimedOut
)

func (d Decision) String() string {
	switch d {
	case Approved:
		return "approved"
	case Denied:
		return "denied"
	case TimedOut:
		return "timed out"
	}
	return "unknown"
}

type pendingConfirmation struct {
	guildID string
	ownerID string
	timer   *time.Timer
	resolve func(Decision)
}

// Manager owns all outstanding confirmations.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*pendingConfirmation
	log     zerolog.Logger
}

// NewManager returns an empty confirmation manager.
func NewManager(log zerolog.Logger) *Manager {
	return &Manager{pending: make(map[string]*pendingConfirmation), log: log}
}

// Create registers a pending confirmation and returns its correlation ID.
// resolve is invoked exactly once, from whichever of Resolve or the timeout
// fires first. It runs outside the manager lock, so it may do slow I/O.
func (m *Manager) Create(guildID, ownerID string, timeout time.Duration, resolve func(Decision)) string {
	id := uuid.NewString()

	p := &pendingConfirmation{guildID: guildID, ownerID: ownerID, resolve: resolve}
	p.timer = time.AfterFunc(timeout, func() {
		m.finish(id, TimedOut)
	})

	m.mu.Lock()
	m.pending[id] = p
	m.mu.Unlock()

	m.log.Debug().Str("confirmation_id", id).Str("guild_id", guildID).Msg("confirmation pending")
	return id
}

// Resolve settles a pending confirmation from an owner response. It returns
// false when the ID is unknown (already resolved, timed out, or never ours)
// or when responderID is not the owner the question was addressed to; in
// both cases nothing happens, so a late or duplicated click has no effect.
func (m *Manager) Resolve(id, responderID string, approved bool) bool {
	m.mu.Lock()
	p, ok := m.pending[id]
	if !ok || p.ownerID != responderID {
		m.mu.Unlock()
		return false
	}
	m.mu.Unlock()

	decision := Denied
	if approved {
		decision = Approved
	}
	return m.finish(id, decision)
}

// finish removes the entry and runs its callback; only the caller that
// actually removed the entry proceeds, which is what makes resolution
// single-shot under a double-click or a click racing the timeout.
func (m *Manager) finish(id string, d Decision) bool {
	m.mu.Lock()
	p, ok := m.pending[id]
	if !ok {
		m.mu.Unlock()
		return false
	}
	delete(m.pending, id)
	m.mu.Unlock()

	p.timer.Stop()
	m.log.Debug().Str("confirmation_id", id).Str("decision", d.String()).Msg("confirmation resolved")
	p.resolve(d)
	return true
}

// Cancel removes a pending confirmation without running its callback. Used
// when the question could not be delivered to the owner and the caller has
// already acted on the failure.
func (m *Manager) Cancel(id string) {
	m.mu.Lock()
	p, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if ok {
		p.timer.Stop()
	}
}

// Owner returns the owner a pending confirmation is addressed to.
func (m *Manager) Owner(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[id]
	if !ok {
		return "", false
	}
	return p.ownerID, true
}

// Count returns the number of outstanding confirmations.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}
