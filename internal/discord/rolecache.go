package discord

import (
	"sync"
)

// rolePermCache remembers the last seen permission bitset of every role. The
// gateway's role-update event carries only the new state, so detecting a
// permission escalation needs our own record of the old one.
type rolePermCache struct {
	mu     sync.RWMutex
	guilds map[string]map[string]int64
}

func newRolePermCache() *rolePermCache {
	return &rolePermCache{guilds: make(map[string]map[string]int64)}
}

// Get returns the cached permissions for a role. ok is false for roles never
// seen, which callers must treat as "no baseline" rather than zero.
func (c *rolePermCache) Get(guildID, roleID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	perms, ok := c.guilds[guildID][roleID]
	return perms, ok
}

// Set records a role's current permissions.
func (c *rolePermCache) Set(guildID, roleID string, perms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	roles, ok := c.guilds[guildID]
	if !ok {
		roles = make(map[string]int64)
		c.guilds[guildID] = roles
	}
	roles[roleID] = perms
}

// Delete forgets a role.
func (c *rolePermCache) Delete(guildID, roleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.guilds[guildID], roleID)
}

// SeedGuild replaces a guild's cached roles wholesale, used when the gateway
// delivers the full guild state.
func (c *rolePermCache) SeedGuild(guildID string, perms map[string]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guilds[guildID] = perms
}
