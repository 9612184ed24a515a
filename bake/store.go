package bake

import (
	"bytes"
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"
)

type ColumnID uint32

// columnStore 柱列驻留, 相同的柱列共享一份数据.
type columnStore struct {
	mu     sync.RWMutex
	nextID ColumnID
	data   map[ColumnID]*Column
	byHash map[uint64][]ColumnID
}

func newColumnStore() *columnStore {
	return &columnStore{
		data:   make(map[ColumnID]*Column),
		byHash: make(map[uint64][]ColumnID),
	}
}

func hashSpans(spans []Span) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, s := range spans {
		binary.LittleEndian.PutUint16(buf[0:], s.Begin)
		binary.LittleEndian.PutUint16(buf[2:], s.End)
		binary.LittleEndian.PutUint32(buf[4:], uint32(s.Material))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

func (cs *columnStore) Intern(col *Column) ColumnID {
	col.Normalize()
	h := hashSpans(col.spans)
	cs.mu.RLock()
	for _, id := range cs.byHash[h] {
		if cs.data[id].equal(col) {
			cs.mu.RUnlock()
			return id
		}
	}
	cs.mu.RUnlock()

	cs.mu.Lock()
	defer cs.mu.Unlock()
	// double-check
	for _, id := range cs.byHash[h] {
		if cs.data[id].equal(col) {
			return id
		}
	}
	id := cs.nextID
	cs.nextID++
	cs.data[id] = &Column{spans: append([]Span(nil), col.spans...)}
	cs.byHash[h] = append(cs.byHash[h], id)
	return id
}

func (cs *columnStore) Get(id ColumnID) *Column {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.data[id]
}

func (cs *columnStore) Len() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.data)
}

type cacheEntry struct {
	key      []byte
	snapshot []byte
}

// Cache 按烘焙输入保存矩阵快照, 输入不变时可以跳过烘焙.
type Cache struct {
	mu     sync.RWMutex
	byHash map[uint64][]cacheEntry
	n      int
}

func NewCache() *Cache {
	return &Cache{byHash: make(map[uint64][]cacheEntry)}
}

func hashKey(key []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(key)
	return h.Sum64()
}

func (c *Cache) Get(key []byte) ([]byte, bool) {
	h := hashKey(key)
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.byHash[h] {
		if bytes.Equal(e.key, key) {
			return e.snapshot, true
		}
	}
	return nil, false
}

// Put stores a copy of snapshot under key, replacing an older entry.
func (c *Cache) Put(key, snapshot []byte) {
	h := hashKey(key)
	entry := cacheEntry{key: bytes.Clone(key), snapshot: bytes.Clone(snapshot)}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.byHash[h] {
		if bytes.Equal(e.key, key) {
			c.byHash[h][i] = entry
			return
		}
	}
	c.byHash[h] = append(c.byHash[h], entry)
	c.n++
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.n
}

func floorDiv(v, size float64) float64 { return math.Floor(v / size) }
