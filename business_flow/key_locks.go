package businessflow

import "sync"

// keyLocks serializes work per string key. Resolution work on the same
// normalized product code or the same performer name must not interleave its
// read-modify-write cycles, while unrelated keys keep processing in parallel.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLockEntry
}

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLockEntry)}
}

// defaultProductLocks is shared by every flow that mutates canonical
// products, so resolution and merges on the same code never interleave.
var defaultProductLocks = newKeyLocks()

// defaultPerformerLocks serializes performer resolution per canonical name,
// so two credits carrying the same new name cannot both miss the lookup and
// insert duplicate identities.
var defaultPerformerLocks = newKeyLocks()

// Lock acquires the mutex for the given key, creating it on first use.
// Entries are reference counted so the map does not grow without bound
// across batches.
func (kl *keyLocks) Lock(key string) {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if !ok {
		entry = &keyLockEntry{}
		kl.locks[key] = entry
	}
	entry.refs++
	kl.mu.Unlock()

	entry.mu.Lock()
}

// Unlock releases the mutex for the given key and drops the entry once
// nobody is waiting on it.
func (kl *keyLocks) Unlock(key string) {
	kl.mu.Lock()
	entry, ok := kl.locks[key]
	if ok {
		entry.refs--
		if entry.refs <= 0 {
			delete(kl.locks, key)
		}
	}
	kl.mu.Unlock()

	if ok {
		entry.mu.Unlock()
	}
}
