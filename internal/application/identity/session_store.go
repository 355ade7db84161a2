package identity

import (
	"sync"

	"github.com/erp/console/internal/domain/identity"
)

// SessionObserver receives the identity held by the store when a
// session change is delivered. The argument is nil for "no identity".
type SessionObserver func(*identity.AuthContext)

// SessionStore holds the live authenticated identity and fans out
// change notifications. It is the exclusive owner of the identity
// snapshot; only the AuthManager writes to it, consumers go through
// AuthManager operations.
//
// Set updates the held value synchronously, then notifies subscribers
// asynchronously in subscription order. Observers are handed the most
// recent value that has completed by the time their callback fires, so
// a burst of Set calls may collapse into notifications that all carry
// the final value.
type SessionStore struct {
	mu      sync.Mutex
	current *identity.AuthContext
	nextID  uint64
	order   []uint64
	subs    map[uint64]SessionObserver
}

// NewSessionStore creates an empty session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		subs: make(map[uint64]SessionObserver),
	}
}

// Current returns the held identity, or nil when unauthenticated
func (s *SessionStore) Current() *identity.AuthContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set replaces the held identity and schedules notification of all
// current subscribers. The store mutation is synchronous; by the time
// Set returns, Current reflects the new value.
func (s *SessionStore) Set(ctx *identity.AuthContext) {
	s.mu.Lock()
	s.current = ctx
	round := make([]uint64, len(s.order))
	copy(round, s.order)
	s.mu.Unlock()

	go s.notify(round)
}

// Subscribe registers an observer and returns its unsubscribe
// function. An observer that unsubscribes during a notification round
// is not called again within that round.
func (s *SessionStore) Subscribe(fn SessionObserver) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.order = append(s.order, id)
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
		for i, other := range s.order {
			if other == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// notify delivers one round in subscription order. Each observer's
// registration and the current value are re-checked immediately before
// its callback runs.
func (s *SessionStore) notify(round []uint64) {
	for _, id := range round {
		s.mu.Lock()
		fn, ok := s.subs[id]
		current := s.current
		s.mu.Unlock()
		if ok {
			fn(current)
		}
	}
}
