package ledger

import (
	"sort"
	"sync"
)

// lockSet serializes mutations per pocket or goal. Keyed locks are taken under
// a shared global lock; exclusive operations take the global lock alone.
type lockSet struct {
	global sync.RWMutex
	mu     sync.Mutex
	keys   map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newLockSet() *lockSet {
	return &lockSet{keys: map[string]*keyLock{}}
}

func pocketKey(id string) string { return "pocket:" + id }
func goalKey(id string) string   { return "goal:" + id }

// lock acquires keys in sorted order and returns the release func.
func (s *lockSet) lock(keys ...string) func() {
	s.global.RLock()

	sorted := dedupe(keys)
	held := make([]*keyLock, 0, len(sorted))
	for _, k := range sorted {
		s.mu.Lock()
		kl, ok := s.keys[k]
		if !ok {
			kl = &keyLock{}
			s.keys[k] = kl
		}
		kl.refs++
		s.mu.Unlock()

		kl.mu.Lock()
		held = append(held, kl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			s.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(s.keys, sorted[i])
			}
			s.mu.Unlock()
		}
		s.global.RUnlock()
	}
}

// lockAll excludes every keyed operation.
func (s *lockSet) lockAll() func() {
	s.global.Lock()
	return s.global.Unlock
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
