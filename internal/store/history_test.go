package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_AppendAndWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendMessage(ctx, 42, "user", fmt.Sprintf("question %d", i)))
		require.NoError(t, s.AppendMessage(ctx, 42, "assistant", fmt.Sprintf("answer %d", i)))
	}

	// The window keeps the most recent messages, in chronological order.
	msgs, err := s.RecentMessages(ctx, 42, 4)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "question 3", msgs[0].Content)
	assert.Equal(t, "answer 3", msgs[1].Content)
	assert.Equal(t, "question 4", msgs[2].Content)
	assert.Equal(t, "answer 4", msgs[3].Content)
	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestHistory_PerChatIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, 1, "user", "hello from one"))
	require.NoError(t, s.AppendMessage(ctx, 2, "user", "hello from two"))

	msgs, err := s.RecentMessages(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello from one", msgs[0].Content)
}

func TestHistory_EmptyContentSkipped(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, 7, "user", "   "))

	msgs, err := s.RecentMessages(ctx, 7, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistory_Clear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, 9, "user", "remember me"))
	require.NoError(t, s.AppendMessage(ctx, 9, "assistant", "ok"))
	require.NoError(t, s.AppendMessage(ctx, 10, "user", "other chat"))

	n, err := s.ClearMessages(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	msgs, err := s.RecentMessages(ctx, 9, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Other chats keep their history.
	msgs, err = s.RecentMessages(ctx, 10, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}
