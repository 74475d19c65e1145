package store

import (
	"container/list"
	"sync"
	"time"
)

// Dedup remembers feature IDs seen during a run. It is a TTL-bound LRU so
// memory stays capped on very wide catalog windows.
type Dedup struct {
	mu    sync.Mutex
	cap   int
	ttl   time.Duration
	now   func() time.Time
	ll    *list.List // most recent at front
	items map[string]*list.Element
}

type entry struct {
	key string
	exp time.Time
}

func NewDedup(maxKeys int, ttl time.Duration) *Dedup {
	if maxKeys <= 0 {
		maxKeys = 100000
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedup{
		cap:   maxKeys,
		ttl:   ttl,
		now:   time.Now,
		ll:    list.New(),
		items: make(map[string]*list.Element),
	}
}

// Seen reports whether key is held and not expired.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.liveLocked(key)
}

// Mark records key, refreshing its expiry if already present.
func (d *Dedup) Mark(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.markLocked(key)
}

// Observe marks key and reports whether it had been seen before.
func (d *Dedup) Observe(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := d.liveLocked(key)
	d.markLocked(key)
	return seen
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ll.Len()
}

func (d *Dedup) liveLocked(key string) bool {
	el, ok := d.items[key]
	if !ok {
		return false
	}
	if d.now().Before(el.Value.(entry).exp) {
		d.ll.MoveToFront(el)
		return true
	}
	d.ll.Remove(el)
	delete(d.items, key)
	return false
}

func (d *Dedup) markLocked(key string) {
	exp := d.now().Add(d.ttl)
	if el, ok := d.items[key]; ok {
		el.Value = entry{key: key, exp: exp}
		d.ll.MoveToFront(el)
		return
	}
	d.items[key] = d.ll.PushFront(entry{key: key, exp: exp})
	for d.ll.Len() > d.cap {
		d.evict(d.ll.Back())
	}
	// expired entries collect at the tail
	for t := d.ll.Back(); t != nil && !d.now().Before(t.Value.(entry).exp); t = d.ll.Back() {
		d.evict(t)
	}
}

func (d *Dedup) evict(el *list.Element) {
	d.ll.Remove(el)
	delete(d.items, el.Value.(entry).key)
}
