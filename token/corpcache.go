package token

import "sync"

// CorpCache maps tenant (corp) identifiers to their AccessTokens. It is
// intentionally process-local: corp tokens are cheap to re-mint, so there is
// no persistence hook. Entries are replaced lazily when found invalid and are
// never evicted, so the cache grows with the number of distinct tenants
// served; that unbounded growth is an accepted trade-off of the design.
type CorpCache struct {
	mu     sync.RWMutex
	tokens map[string]AccessToken
}

func NewCorpCache() *CorpCache {
	return &CorpCache{tokens: make(map[string]AccessToken)}
}

// Get returns the cached token for corpID. An expired or absent entry is a
// miss; Get never returns an invalid token.
func (c *CorpCache) Get(corpID string) (AccessToken, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tokens[corpID]
	if !ok || !t.Valid() {
		return AccessToken{}, false
	}
	return t, true
}

// Put stores the token for corpID, overwriting any previous entry. Two
// concurrent fetches for the same tenant may both Put; the later write wins
// and both tokens are independently valid, so no compare-and-swap is needed.
func (c *CorpCache) Put(corpID string, t AccessToken) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tokens[corpID] = t
}

// Drop removes the entry for corpID, forcing the next acquisition to fetch.
func (c *CorpCache) Drop(corpID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.tokens, corpID)
}

// Len reports the number of cached entries, valid or not.
func (c *CorpCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.tokens)
}
