package teststore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/usememos/supportbot/store"
)

func TestConversationMessageTrim(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	for i := 0; i < 7; i++ {
		_, err := ts.AppendConversationMessages(ctx, "conv-a", []*store.ConversationMessage{
			{Role: "user", Content: fmt.Sprintf("m%d", i)},
		}, 4)
		require.NoError(t, err)
	}
	_, err := ts.AppendConversationMessages(ctx, "conv-b", []*store.ConversationMessage{{Role: "user", Content: "other"}}, 4)
	require.NoError(t, err)

	list, err := ts.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: "conv-a"})
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, m := range list {
		require.Equal(t, fmt.Sprintf("m%d", i+3), m.Content)
	}

	other, err := ts.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: "conv-b"})
	require.NoError(t, err)
	require.Len(t, other, 1)

	require.NoError(t, ts.DeleteConversationMessages(ctx, "conv-a"))
	list, err = ts.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: "conv-a"})
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestConversationMessageConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	var wg sync.WaitGroup
	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := ts.AppendConversationMessages(ctx, "busy", []*store.ConversationMessage{
				{Role: "user", Content: fmt.Sprintf("u%d", i)},
				{Role: "assistant", Content: fmt.Sprintf("a%d", i)},
			}, 10)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := ts.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: "busy"})
	require.NoError(t, err)
	require.Len(t, list, 10)
	for i := 0; i < len(list); i += 2 {
		require.Equal(t, "user", list[i].Role)
		require.Equal(t, "assistant", list[i+1].Role)
		require.Equal(t, "a"+list[i].Content[1:], list[i+1].Content)
	}
}

func TestConversationMessageBatchRollsBack(t *testing.T) {
	if getDriverFromEnv() != "sqlite" {
		t.Skip("uses a sqlite trigger to fail the second insert")
	}
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)
	_, err := ts.GetDriver().GetDB().ExecContext(ctx, `CREATE TRIGGER reject_message BEFORE INSERT ON conversation_message
		WHEN NEW.content = 'rejected'
		BEGIN SELECT RAISE(ABORT, 'message rejected'); END`)
	require.NoError(t, err)

	_, err = ts.AppendConversationMessages(ctx, "conv-a", []*store.ConversationMessage{{Role: "user", Content: "kept"}}, 10)
	require.NoError(t, err)

	_, err = ts.AppendConversationMessages(ctx, "conv-a", []*store.ConversationMessage{
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "rejected"},
	}, 10)
	require.Error(t, err)

	list, err := ts.ListConversationMessages(ctx, &store.FindConversationMessage{ConversationID: "conv-a"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "kept", list[0].Content)
}

func TestConversationSessionUpsert(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	session, err := ts.UpsertConversationSession(ctx, &store.UpsertConversationSession{
		ConversationID: "customer-1",
		CustomerID:     1,
		LastSentiment:  "neutral",
		MessageDelta:   2,
	})
	require.NoError(t, err)
	require.Equal(t, int32(2), session.MessageCount)
	require.False(t, session.Ended)

	require.NoError(t, ts.EndConversationSession(ctx, "customer-1"))
	conversationID := "customer-1"
	ended, err := ts.GetConversationSession(ctx, &store.FindConversationSession{ConversationID: &conversationID})
	require.NoError(t, err)
	require.True(t, ended.Ended)

	session, err = ts.UpsertConversationSession(ctx, &store.UpsertConversationSession{
		ConversationID: "customer-1",
		LastSentiment:  "angry",
		MessageDelta:   2,
		TicketUID:      "abc",
	})
	require.NoError(t, err)
	require.Equal(t, int32(4), session.MessageCount)
	require.Equal(t, int32(1), session.CustomerID)
	require.Equal(t, "angry", session.LastSentiment)
	require.Equal(t, "abc", session.TicketUID)
	require.False(t, session.Ended)
}
