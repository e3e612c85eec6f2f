package pennywise

import (
	"strings"
	"sync"
)

// inflightGuard rejects a mutation while an identical one is still running.
// Keys are entity, operation and target id (or a fingerprint for creates).
type inflightGuard struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInflightGuard() *inflightGuard {
	return &inflightGuard{keys: make(map[string]struct{})}
}

// acquire claims key; the returned release must be called when done
func (g *inflightGuard) acquire(entity, op, id string) (release func(), err error) {
	key := strings.Join([]string{entity, op, id}, "/")

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.keys[key]; busy {
		return nil, WrapError(ErrDuplicateRequest, "DUPLICATE_REQUEST", entity+" "+op+" already in progress")
	}
	g.keys[key] = struct{}{}

	return func() {
		g.mu.Lock()
		delete(g.keys, key)
		g.mu.Unlock()
	}, nil
}

// busy reports how many mutations are in flight
func (g *inflightGuard) busy() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}
