package ldb

import (
	"sync"

	"ldb/util"
)

type Deleter func(key []byte, value interface{})
type Handle interface{}

// Cache maps keys to values with a fixed capacity measured in charge units.
// Handles returned by Insert and Lookup pin their entry until released; a
// pinned entry survives eviction and Erase, and its deleter runs only when
// the last handle is released.
type Cache interface {
	Insert(key []byte, value interface{}, charge int, deleter Deleter) Handle
	Lookup(key []byte) Handle
	Release(handle Handle)
	Value(handle Handle) interface{}
	Erase(key []byte)
	NewID() uint64
	Prune()
	TotalCharge() int
}

type lruHandle struct {
	value   interface{}
	deleter Deleter
	next    *lruHandle
	prev    *lruHandle
	charge  int
	inCache bool
	refs    uint32
	hash    uint32
	key     []byte
}

// lruCache keeps two lists: lru holds entries referenced only by the cache in
// eviction order, inUse holds entries also pinned by clients.
type lruCache struct {
	capacity int
	mutex    sync.Mutex
	usage    int
	lru      lruHandle
	inUse    lruHandle
	table    map[string]*lruHandle
}

func newLRUCache(capacity int) *lruCache {
	c := &lruCache{
		capacity: capacity,
		table:    make(map[string]*lruHandle),
	}
	c.lru.next = &c.lru
	c.lru.prev = &c.lru
	c.inUse.next = &c.inUse
	c.inUse.prev = &c.inUse
	return c
}

func (c *lruCache) totalCharge() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.usage
}

func (c *lruCache) ref(h *lruHandle) {
	if h.refs == 1 && h.inCache {
		lruRemove(h)
		lruAppend(&c.inUse, h)
	}
	h.refs++
}

func (c *lruCache) unref(h *lruHandle) {
	if h.refs == 0 {
		panic("lruCache: refs == 0")
	}
	h.refs--
	if h.refs == 0 {
		if h.inCache {
			panic("lruCache: unreferenced handle still in cache")
		}
		if h.deleter != nil {
			h.deleter(h.key, h.value)
		}
	} else if h.inCache && h.refs == 1 {
		lruRemove(h)
		lruAppend(&c.lru, h)
	}
}

func lruRemove(h *lruHandle) {
	h.next.prev = h.prev
	h.prev.next = h.next
}

func lruAppend(list *lruHandle, h *lruHandle) {
	h.next = list
	h.prev = list.prev
	h.prev.next = h
	h.next.prev = h
}

func (c *lruCache) lookup(key []byte) Handle {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if h, ok := c.table[string(key)]; ok {
		c.ref(h)
		return h
	}
	return nil
}

func (c *lruCache) release(h *lruHandle) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.unref(h)
}

func (c *lruCache) insert(key []byte, hash uint32, value interface{}, charge int, deleter Deleter) Handle {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	h := &lruHandle{
		value:   value,
		deleter: deleter,
		charge:  charge,
		refs:    1,
		hash:    hash,
		key:     append([]byte(nil), key...),
	}
	if c.capacity > 0 {
		h.refs++
		h.inCache = true
		lruAppend(&c.inUse, h)
		c.usage += charge
		k := string(h.key)
		old := c.table[k]
		c.table[k] = h
		c.finishErase(old)
	}
	for c.usage > c.capacity && c.lru.next != &c.lru {
		old := c.lru.next
		if old.refs != 1 {
			panic("lruCache: evicted handle is pinned")
		}
		delete(c.table, string(old.key))
		c.finishErase(old)
	}
	return h
}

// finishErase finalises removal of h after it was dropped from the table.
func (c *lruCache) finishErase(h *lruHandle) bool {
	if h == nil {
		return false
	}
	if !h.inCache {
		panic("lruCache: erased handle not in cache")
	}
	lruRemove(h)
	h.inCache = false
	c.usage -= h.charge
	c.unref(h)
	return true
}

func (c *lruCache) erase(key []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	k := string(key)
	if h, ok := c.table[k]; ok {
		delete(c.table, k)
		c.finishErase(h)
	}
}

func (c *lruCache) prune() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	for c.lru.next != &c.lru {
		h := c.lru.next
		delete(c.table, string(h.key))
		c.finishErase(h)
	}
}

const (
	numShardBits = 4
	numShards    = 1 << numShardBits
)

type shardedLRUCache struct {
	shard   [numShards]*lruCache
	idMutex sync.Mutex
	lastID  uint64
}

func NewLRUCache(capacity int) Cache {
	c := &shardedLRUCache{}
	perShard := (capacity + (numShards - 1)) / numShards
	for i := range c.shard {
		c.shard[i] = newLRUCache(perShard)
	}
	return c
}

func (c *shardedLRUCache) Insert(key []byte, value interface{}, charge int, deleter Deleter) Handle {
	hash := hashSlice(key)
	return c.shard[shard(hash)].insert(key, hash, value, charge, deleter)
}

func (c *shardedLRUCache) Lookup(key []byte) Handle {
	return c.shard[shard(hashSlice(key))].lookup(key)
}

func (c *shardedLRUCache) Release(handle Handle) {
	h := handle.(*lruHandle)
	c.shard[shard(h.hash)].release(h)
}

func (c *shardedLRUCache) Value(handle Handle) interface{} {
	return handle.(*lruHandle).value
}

func (c *shardedLRUCache) Erase(key []byte) {
	c.shard[shard(hashSlice(key))].erase(key)
}

func (c *shardedLRUCache) NewID() uint64 {
	c.idMutex.Lock()
	defer c.idMutex.Unlock()
	c.lastID++
	return c.lastID
}

func (c *shardedLRUCache) Prune() {
	for _, s := range c.shard {
		s.prune()
	}
}

func (c *shardedLRUCache) TotalCharge() int {
	total := 0
	for _, s := range c.shard {
		total += s.totalCharge()
	}
	return total
}

func hashSlice(b []byte) uint32 {
	return util.Hash(b, 0)
}

func shard(hash uint32) uint32 {
	return hash >> (32 - numShardBits)
}
