package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScope_MergeDeduplicatesAndKeepsOrder(t *testing.T) {
	scope := NewScope()

	added := scope.Merge([]string{"a.txt", "b.txt"})
	assert.Equal(t, 2, added)

	added = scope.Merge([]string{"b.txt", "c.txt", "a.txt"})
	assert.Equal(t, 1, added)

	assert.Equal(t, []string{"a.txt", "b.txt", "c.txt"}, scope.Names())
}

func TestScope_MergeEmptyIsIdempotent(t *testing.T) {
	scope := NewScope()
	scope.Merge([]string{"a.txt"})

	assert.Equal(t, 0, scope.Merge(nil))
	assert.Equal(t, 0, scope.Merge([]string{}))
	assert.Equal(t, []string{"a.txt"}, scope.Names())
}

func TestScope_Remove(t *testing.T) {
	scope := NewScope()
	scope.Merge([]string{"a.txt", "b.txt", "c.txt"})

	assert.True(t, scope.Remove("b.txt"))
	assert.False(t, scope.Remove("b.txt"))
	assert.Equal(t, []string{"a.txt", "c.txt"}, scope.Names())
	assert.False(t, scope.Contains("b.txt"))

	// a removed name can come back, at the end
	scope.Merge([]string{"b.txt"})
	assert.Equal(t, []string{"a.txt", "c.txt", "b.txt"}, scope.Names())
}

func TestScope_Clear(t *testing.T) {
	scope := NewScope()
	scope.Merge([]string{"a.txt", "b.txt"})

	assert.Equal(t, 2, scope.Clear())
	assert.Equal(t, 0, scope.Len())
	assert.Empty(t, scope.Names())

	// clearing detaches the session only; re-merging must work
	scope.Merge([]string{"a.txt"})
	assert.Equal(t, []string{"a.txt"}, scope.Names())
}

func TestScope_NamesIsASnapshot(t *testing.T) {
	scope := NewScope()
	scope.Merge([]string{"a.txt", "b.txt"})

	snapshot := scope.Names()
	scope.Remove("a.txt")
	scope.Merge([]string{"d.txt"})

	assert.Equal(t, []string{"a.txt", "b.txt"}, snapshot)
}

func TestSession_LoadFencing(t *testing.T) {
	s := NewSession()

	tokenA := s.Select(1)
	tokenB := s.Select(2)
	require.NotEqual(t, tokenA, tokenB)

	// A's load resolves late, after B was selected: it must be discarded
	assert.False(t, s.ApplyLoaded(tokenA, []Message{{Role: RoleUser, Content: "from A"}}))
	assert.Equal(t, 0, s.Thread.Len())

	assert.True(t, s.ApplyLoaded(tokenB, []Message{{Role: RoleUser, Content: "from B"}}))
	msgs := s.Thread.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "from B", msgs[0].Content)
}

func TestSession_SelectReplacesThread(t *testing.T) {
	s := NewSession()

	token := s.Select(1)
	require.True(t, s.ApplyLoaded(token, []Message{{Role: RoleUser, Content: "old"}}))
	assert.Equal(t, 1, s.Thread.Len())

	s.Select(2)
	assert.Equal(t, 0, s.Thread.Len())
}

func TestSession_DeselectInvalidatesPendingLoad(t *testing.T) {
	s := NewSession()

	token := s.Select(1)
	s.Deselect()

	assert.False(t, s.ApplyLoaded(token, []Message{{Role: RoleUser, Content: "late"}}))
	_, active := s.ActiveChat()
	assert.False(t, active)
}

func TestSession_DropChat(t *testing.T) {
	s := NewSession()
	s.Select(7)

	assert.False(t, s.DropChat(3))
	id, active := s.ActiveChat()
	assert.True(t, active)
	assert.EqualValues(t, 7, id)

	assert.True(t, s.DropChat(7))
	_, active = s.ActiveChat()
	assert.False(t, active)
	assert.Equal(t, 0, s.Thread.Len())
}

func TestSession_BeginAskValidation(t *testing.T) {
	s := NewSession()

	// no active chat
	_, _, ok := s.BeginAsk("hi")
	assert.False(t, ok)

	s.Select(1)

	// empty query
	_, _, ok = s.BeginAsk("   ")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Thread.Len())

	chatID, scope, ok := s.BeginAsk("hi")
	require.True(t, ok)
	assert.EqualValues(t, 1, chatID)
	assert.Empty(t, scope)
	assert.True(t, s.Asking())
}

func TestSession_SingleFlight(t *testing.T) {
	s := NewSession()
	s.Select(1)

	_, _, ok := s.BeginAsk("first")
	require.True(t, ok)

	// second submission while busy is rejected with no thread change
	_, _, ok = s.BeginAsk("second")
	assert.False(t, ok)
	assert.Equal(t, 1, s.Thread.Len())

	s.FinishAsk("answer", nil)
	assert.False(t, s.Asking())

	// the dispatcher is free again
	_, _, ok = s.BeginAsk("third")
	assert.True(t, ok)
}

func TestSession_AskScopeSnapshot(t *testing.T) {
	s := NewSession()
	s.Select(1)
	s.Scope.Merge([]string{"a.txt", "b.txt"})

	_, scope, ok := s.BeginAsk("hi")
	require.True(t, ok)

	// later scope edits must not affect the in-flight snapshot
	s.Scope.Remove("a.txt")
	assert.Equal(t, []string{"a.txt", "b.txt"}, scope)
}

func TestSession_FinishAskSuccess(t *testing.T) {
	s := NewSession()
	s.Select(1)
	s.Scope.Merge([]string{"a.txt", "b.txt"})

	_, _, ok := s.BeginAsk("hi")
	require.True(t, ok)
	s.FinishAsk("hello", nil)

	msgs := s.Thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hello"}, msgs[1])
}

func TestSession_FinishAskFailureAppendsFallback(t *testing.T) {
	s := NewSession()
	s.Select(1)

	_, _, ok := s.BeginAsk("hi")
	require.True(t, ok)
	s.FinishAsk("", errors.New("network down"))

	msgs := s.Thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hi"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: FallbackAnswer}, msgs[1])
	assert.False(t, s.Asking())

	// busy state is cleared: the next ask is accepted
	_, _, ok = s.BeginAsk("again")
	assert.True(t, ok)
}

func TestSession_AskResultDiscardedAfterSwitch(t *testing.T) {
	s := NewSession()
	s.Select(1)

	_, _, ok := s.BeginAsk("hi")
	require.True(t, ok)

	// switching chats mid-flight: the answer must not land in chat 2's thread
	s.Select(2)
	s.FinishAsk("late answer", nil)

	assert.Equal(t, 0, s.Thread.Len())
	assert.False(t, s.Asking())
}

func TestSession_StreamedAsk(t *testing.T) {
	t.Run("chunks grow the provisional answer", func(t *testing.T) {
		s := NewSession()
		s.Select(1)

		_, _, ok := s.BeginAsk("hi")
		require.True(t, ok)

		s.BeginAnswer()
		s.AppendAnswerChunk("hel")
		s.AppendAnswerChunk("lo")
		s.FinishStreamedAsk(nil)

		msgs := s.Thread.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, "hello", msgs[1].Content)
		assert.False(t, s.Asking())
	})

	t.Run("failure replaces the partial answer with the fallback", func(t *testing.T) {
		s := NewSession()
		s.Select(1)

		_, _, ok := s.BeginAsk("hi")
		require.True(t, ok)

		s.BeginAnswer()
		s.AppendAnswerChunk("hel")
		s.FinishStreamedAsk(errors.New("stream cut"))

		msgs := s.Thread.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, FallbackAnswer, msgs[1].Content)
	})

	t.Run("failure before any chunk still appends the fallback", func(t *testing.T) {
		s := NewSession()
		s.Select(1)

		_, _, ok := s.BeginAsk("hi")
		require.True(t, ok)
		s.FinishStreamedAsk(errors.New("refused"))

		msgs := s.Thread.Messages()
		require.Len(t, msgs, 2)
		assert.Equal(t, FallbackAnswer, msgs[1].Content)
	})
}
