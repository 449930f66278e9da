package approval

import "sync"

// Cache remembers approved_for_session decisions for the lifetime of a
// session. It is owned by the session object and passed into the decision
// engine by reference, never persisted. Concurrent commands consult and
// update it simultaneously, so access is serialized internally.
type Cache struct {
	mu      sync.Mutex
	entries []cacheEntry
	roots   []string
}

type cacheEntry struct {
	prefix    []string
	escalated bool
}

// NewCache returns an empty session cache.
func NewCache() *Cache {
	return &Cache{}
}

// Approve remembers that commands with the given prefix are approved for
// the rest of the session. escalated records whether the approval grants
// unsandboxed execution.
func (c *Cache) Approve(prefix []string, escalated bool) {
	if len(prefix) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, cacheEntry{prefix: append([]string(nil), prefix...), escalated: escalated})
}

// Covers reports whether a remembered prefix covers the command, and
// whether that approval was an escalated one.
func (c *Cache) Covers(cmd []string) (covered, escalated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if hasPrefix(cmd, entry.prefix) {
			if entry.escalated {
				return true, true
			}
			covered = true
		}
	}
	return covered, false
}

// ApproveRoot remembers that writes under root are approved for the rest
// of the session.
func (c *Cache) ApproveRoot(root string) {
	if root == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = append(c.roots, root)
}

// Roots returns the writable roots granted this session.
func (c *Cache) Roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.roots...)
}

func hasPrefix(cmd, prefix []string) bool {
	if len(prefix) == 0 || len(cmd) < len(prefix) {
		return false
	}
	for i, tok := range prefix {
		if cmd[i] != tok {
			return false
		}
	}
	return true
}
