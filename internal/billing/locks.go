package billing

import (
	"sort"
	"sync"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/types"
)

// keyLocks hands out mutexes per logical key. Lock acquires a whole set in
// one sorted order so two callers never deadlock; carrier keys sort before
// client keys by prefix.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

func carrierLockKey(k types.CarrierCycle) string {
	return "carrier:" + k.Carrier + "\x00" + k.CyclePeriod
}

func clientLockKey(k types.ClientCycle) string {
	return "client:" + k.Client + "\x00" + k.CyclePeriod
}

// Lock acquires every key and returns the matching unlock function.
func (l *keyLocks) Lock(keys ...string) func() {
	keys = dedupeSorted(keys)

	held := make([]*keyLock, len(keys))
	l.mu.Lock()
	for i, k := range keys {
		kl, ok := l.locks[k]
		if !ok {
			kl = &keyLock{}
			l.locks[k] = kl
		}
		kl.refs++
		held[i] = kl
	}
	l.mu.Unlock()

	for _, kl := range held {
		kl.mu.Lock()
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, k := range keys {
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, k)
			}
		}
		l.mu.Unlock()
	}
}

func dedupeSorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	n := 0
	for i, k := range out {
		if i > 0 && k == out[n-1] {
			continue
		}
		out[n] = k
		n++
	}
	return out[:n]
}
