package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConversationLocksArePruned(t *testing.T) {
	s := New(nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			unlock := s.lockConversation(id)
			unlock()
		}([]string{"a", "b", "c"}[i%3])
	}
	wg.Wait()
	require.Zero(t, s.heldConversationLocks())

	unlock := s.lockConversation("a")
	require.Equal(t, 1, s.heldConversationLocks())
	unlock()
	require.Zero(t, s.heldConversationLocks())
}

func TestConversationLockSerializesWriters(t *testing.T) {
	s := New(nil, nil)
	unlock := s.lockConversation("a")

	acquired := make(chan struct{})
	go func() {
		release := s.lockConversation("a")
		close(acquired)
		release()
	}()

	other := s.lockConversation("b")
	other()

	select {
	case <-acquired:
		t.Fatal("second writer entered while the first held the lock")
	default:
	}
	unlock()
	<-acquired
	require.Eventually(t, func() bool { return s.heldConversationLocks() == 0 }, time.Second, 5*time.Millisecond)
}
