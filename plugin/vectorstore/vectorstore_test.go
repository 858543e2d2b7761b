package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewInMemory(NewHashEmbeddingFunc(128))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(context.Background(), []Document{
		{ID: "billing-0", Content: "Refunds are issued within 14 days of a subscription payment.", Category: "billing", Source: "billing.txt"},
		{ID: "billing-1", Content: "You can upgrade or downgrade your plan from the billing page.", Category: "billing", Source: "billing.txt"},
		{ID: "faq-0", Content: "Tasks can be exported to CSV from the project menu.", Category: "faq", Source: "faq.txt"},
		{ID: "troubleshooting-0", Content: "If the board is slow loading, clear the browser cache.", Category: "troubleshooting", Source: "troubleshooting.txt"},
	}))
	return s
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.Equal(t, 4, s.Count())

	results, err := s.Search(ctx, "how do refunds for a subscription payment work", 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "billing-0", results[0].ID)
	require.Equal(t, "billing", results[0].Category)
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearchIsDeterministic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, err := s.Search(ctx, "export my tasks", 4, "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Search(ctx, "export my tasks", 4, "")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSearchByCategory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.Search(ctx, "plan page", 3, "billing")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.Equal(t, "billing", r.Category)
	}
}

func TestSearchClampsK(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	results, err := s.Search(ctx, "cache", 50, "")
	require.NoError(t, err)
	require.Len(t, results, 4)

	empty, err := NewInMemory(NewHashEmbeddingFunc(16))
	require.NoError(t, err)
	results, err = empty.Search(ctx, "anything", 3, "")
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestPersistentStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := New(dir, NewHashEmbeddingFunc(32))
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []Document{{ID: "a", Content: "hello world", Category: "faq"}}))

	reopened, err := New(dir, NewHashEmbeddingFunc(32))
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Count())
}
