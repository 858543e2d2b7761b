package chatmemory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usememos/supportbot/plugin/chatmemory"
	teststore "github.com/usememos/supportbot/store/test"
)

func repositories(t *testing.T) map[string]chatmemory.Repository {
	ctx := context.Background()
	return map[string]chatmemory.Repository{
		"memory": chatmemory.NewInMemoryRepository(),
		"store":  chatmemory.NewStoreRepository(teststore.NewTestingStore(ctx, t)),
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := chatmemory.NewWindow(repo, 4)
			for i := 0; i < 7; i++ {
				require.NoError(t, w.Append(ctx, "c1", chatmemory.Entry{Role: chatmemory.RoleUser, Content: fmt.Sprintf("m%d", i)}))
			}

			entries, err := w.Load(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, entries, 4)
			for i, e := range entries {
				require.Equal(t, fmt.Sprintf("m%d", i+3), e.Content)
				require.NotZero(t, e.CreatedTs)
			}
		})
	}
}

func TestWindowUnknownConversation(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			w := chatmemory.NewWindow(repo, 0)
			require.Equal(t, chatmemory.DefaultMaxMessages, w.MaxMessages())

			entries, err := w.Load(context.Background(), "never-seen")
			require.NoError(t, err)
			require.NotNil(t, entries)
			require.Empty(t, entries)
		})
	}
}

func TestWindowAppendKeepsOrder(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := chatmemory.NewWindow(repo, 20)
			require.NoError(t, w.Append(ctx, "c1",
				chatmemory.Entry{Role: chatmemory.RoleUser, Content: "question"},
				chatmemory.Entry{Role: chatmemory.RoleAssistant, Content: "answer"},
			))

			entries, err := w.Load(ctx, "c1")
			require.NoError(t, err)
			require.Equal(t, []string{chatmemory.RoleUser, chatmemory.RoleAssistant}, []string{entries[0].Role, entries[1].Role})

			require.NoError(t, w.Clear(ctx, "c1"))
			entries, err = w.Load(ctx, "c1")
			require.NoError(t, err)
			require.Empty(t, entries)
		})
	}
}

func TestWindowRejectsEmptyID(t *testing.T) {
	w := chatmemory.NewWindow(chatmemory.NewInMemoryRepository(), 5)
	require.Error(t, w.Append(context.Background(), "", chatmemory.Entry{Role: chatmemory.RoleUser, Content: "x"}))
}

func TestWindowConcurrentAppend(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := chatmemory.NewWindow(repo, 10)

			var wg sync.WaitGroup
			for _, id := range []string{"a", "b", "c"} {
				for i := 0; i < 15; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, w.Append(ctx, id, chatmemory.Entry{Role: chatmemory.RoleUser, Content: id}))
					}()
				}
			}
			wg.Wait()

			for _, id := range []string{"a", "b", "c"} {
				entries, err := w.Load(ctx, id)
				require.NoError(t, err)
				require.Len(t, entries, 10)
				for _, e := range entries {
					require.Equal(t, id, e.Content)
				}
			}
		})
	}
}

func TestWindowSharedRepositoryLastCapWins(t *testing.T) {
	ctx := context.Background()
	repo := chatmemory.NewInMemoryRepository()
	wide := chatmemory.NewWindow(repo, 10)
	narrow := chatmemory.NewWindow(repo, 2)

	for i := 0; i < 6; i++ {
		require.NoError(t, wide.Append(ctx, "shared", chatmemory.Entry{Role: chatmemory.RoleUser, Content: fmt.Sprintf("m%d", i)}))
	}
	entries, err := wide.Load(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, entries, 6)

	require.NoError(t, narrow.Append(ctx, "shared", chatmemory.Entry{Role: chatmemory.RoleUser, Content: "m6"}))
	entries, err = wide.Load(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "m5", entries[0].Content)
	require.Equal(t, "m6", entries[1].Content)
}

func TestWindowConcurrentExchangesStayPaired(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			w := chatmemory.NewWindow(repo, 100)

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, w.Append(ctx, "shared",
						chatmemory.Entry{Role: chatmemory.RoleUser, Content: fmt.Sprintf("U%d", i)},
						chatmemory.Entry{Role: chatmemory.RoleAssistant, Content: fmt.Sprintf("A%d", i)},
					))
				}()
			}
			wg.Wait()

			entries, err := w.Load(ctx, "shared")
			require.NoError(t, err)
			require.Len(t, entries, 40)
			for i := 0; i < len(entries); i += 2 {
				require.Equal(t, chatmemory.RoleUser, entries[i].Role)
				require.Equal(t, "A"+entries[i].Content[1:], entries[i+1].Content)
			}
		})
	}
}

// failingRepository fails every append once broken is set.
type failingRepository struct {
	chatmemory.Repository
	calls  int
	broken bool
}

func (r *failingRepository) Append(ctx context.Context, conversationID string, entries []chatmemory.Entry, maxMessages int) error {
	r.calls++
	if r.broken {
		return errors.New("db down")
	}
	return r.Repository.Append(ctx, conversationID, entries, maxMessages)
}

func TestWindowFailedAppendLeavesNothing(t *testing.T) {
	ctx := context.Background()
	repo := &failingRepository{Repository: chatmemory.NewInMemoryRepository()}
	w := chatmemory.NewWindow(repo, 10)

	require.NoError(t, w.Append(ctx, "c",
		chatmemory.Entry{Role: chatmemory.RoleUser, Content: "U1"},
		chatmemory.Entry{Role: chatmemory.RoleAssistant, Content: "A1"},
	))
	require.Equal(t, 1, repo.calls)

	repo.broken = true
	err := w.Append(ctx, "c",
		chatmemory.Entry{Role: chatmemory.RoleUser, Content: "U2"},
		chatmemory.Entry{Role: chatmemory.RoleAssistant, Content: "A2"},
	)
	require.ErrorContains(t, err, "db down")
	require.Equal(t, 2, repo.calls)

	entries, err := w.Load(ctx, "c")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "A1", entries[1].Content)
}
