package layout

import "skelgen/internal/btf"

type cacheEntry struct {
	Layout TypeLayout
	Err    *Error
}

type cache struct {
	byType map[btf.TypeID]*cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[btf.TypeID]*cacheEntry, 256)}
}

func (c *cache) get(id btf.TypeID) (*cacheEntry, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.byType[id]
	return e, ok
}

func (c *cache) put(id btf.TypeID, e *cacheEntry) {
	if c == nil || e == nil {
		return
	}
	c.byType[id] = e
}
