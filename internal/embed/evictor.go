package embed

import (
	"container/list"
	"time"
)

// Evictor implements a replacement policy for the embedding cache. All
// methods are called with the cache lock held and must not block.
type Evictor interface {
	// Touched records a read or write of key.
	Touched(key string)
	// Victim picks the key to evict when the cache is full.
	Victim() (key string, ok bool)
	// Removed tells the policy that key left the cache.
	Removed(key string)
	// Stale reports whether key must be treated as absent on read.
	Stale(key string) bool
}

// lruEvictor evicts the least recently used key. Entries never go stale.
type lruEvictor struct {
	order *list.List // front = most recently used
	index map[string]*list.Element
}

// NewLRU returns the default least-recently-used eviction policy.
func NewLRU() Evictor {
	return &lruEvictor{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

func (l *lruEvictor) Touched(key string) {
	if el, ok := l.index[key]; ok {
		l.order.MoveToFront(el)
		return
	}
	l.index[key] = l.order.PushFront(key)
}

func (l *lruEvictor) Victim() (string, bool) {
	el := l.order.Back()
	if el == nil {
		return "", false
	}
	return el.Value.(string), true
}

func (l *lruEvictor) Removed(key string) {
	if el, ok := l.index[key]; ok {
		l.order.Remove(el)
		delete(l.index, key)
	}
}

func (l *lruEvictor) Stale(string) bool {
	return false
}

// ttlEvictor wraps another policy with a maximum entry age. Expired entries
// read as absent and are preferred as eviction victims. Age counts from the
// first Touched call; later touches do not refresh it.
type ttlEvictor struct {
	inner  Evictor
	maxAge time.Duration
	added  map[string]time.Time
	now    func() time.Time
}

// NewTTL wraps inner with a maximum entry age.
func NewTTL(inner Evictor, maxAge time.Duration) Evictor {
	return &ttlEvictor{
		inner:  inner,
		maxAge: maxAge,
		added:  make(map[string]time.Time),
		now:    time.Now,
	}
}

func (t *ttlEvictor) Touched(key string) {
	if _, ok := t.added[key]; !ok {
		t.added[key] = t.now()
	}
	t.inner.Touched(key)
}

func (t *ttlEvictor) Victim() (string, bool) {
	var oldest string
	var oldestAt time.Time
	for key, at := range t.added {
		if t.now().Sub(at) > t.maxAge && (oldest == "" || at.Before(oldestAt)) {
			oldest, oldestAt = key, at
		}
	}
	if oldest != "" {
		return oldest, true
	}
	return t.inner.Victim()
}

func (t *ttlEvictor) Removed(key string) {
	delete(t.added, key)
	t.inner.Removed(key)
}

func (t *ttlEvictor) Stale(key string) bool {
	at, ok := t.added[key]
	return ok && t.now().Sub(at) > t.maxAge
}
