package store

import (
	"context"
	"sync"

	"github.com/usememos/supportbot/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// conversationLocks serializes writes per conversation id. An entry
	// lives only while some writer holds or waits for it.
	locksMu           sync.Mutex
	conversationLocks map[string]*conversationLock
}

type conversationLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:            driver,
		profile:           profile,
		conversationLocks: map[string]*conversationLock{},
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) lockConversation(conversationID string) func() {
	s.locksMu.Lock()
	l, ok := s.conversationLocks[conversationID]
	if !ok {
		l = &conversationLock{}
		s.conversationLocks[conversationID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(s.conversationLocks, conversationID)
		}
	}
}

// heldConversationLocks reports how many conversation ids have a live lock.
func (s *Store) heldConversationLocks() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.conversationLocks)
}
