package main

import (
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestModel(t *testing.T) model {
	t.Helper()
	config := &Config{
		ServerURL:   "http://localhost:8000",
		ModelName:   "gpt-4o-mini",
		BM25TopK:    5,
		HTTPTimeout: 5,
	}
	client := NewBackendClient(config.ServerURL, 5*time.Second, nil)
	return initialModel(client, config, NewSession(), zap.NewNop())
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	switch typed := next.(type) {
	case model:
		return typed, cmd
	case *model:
		return *typed, cmd
	}
	t.Fatalf("unexpected model type %T", next)
	return m, nil
}

func TestUI_DeleteChatRequiresConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.chats = []ChatSession{{ID: 1, Name: "Chat 1"}}

	m, cmd := update(t, m, keyMsg("d"))
	assert.Nil(t, cmd)
	assert.Equal(t, confirmDeleteChat, m.confirm)
	assert.EqualValues(t, 1, m.confirmChat.ID)

	t.Run("declining aborts with no request", func(t *testing.T) {
		declined, cmd := update(t, m, keyMsg("n"))
		assert.Nil(t, cmd)
		assert.Equal(t, confirmNone, declined.confirm)
		assert.Len(t, declined.chats, 1)
	})

	t.Run("confirming issues the delete", func(t *testing.T) {
		confirmed, cmd := update(t, m, keyMsg("y"))
		assert.Equal(t, confirmNone, confirmed.confirm)
		assert.NotNil(t, cmd)
	})
}

func TestUI_DeletingActiveChatClearsSelection(t *testing.T) {
	m := newTestModel(t)
	m.session.Select(1)

	m, _ = update(t, m, chatDeletedMsg{id: 1})
	_, active := m.session.ActiveChat()
	assert.False(t, active)
	assert.Equal(t, 0, m.session.Thread.Len())
}

func TestUI_ClearScopeRequiresConfirmation(t *testing.T) {
	m := newTestModel(t)
	m.currentView = scopeView
	m.session.Scope.Merge([]string{"a.txt", "b.txt"})

	m, _ = update(t, m, keyMsg("c"))
	require.Equal(t, confirmClearScope, m.confirm)

	t.Run("declining keeps the scope", func(t *testing.T) {
		declined, _ := update(t, m, keyMsg("esc"))
		assert.Equal(t, confirmNone, declined.confirm)
		assert.Equal(t, 2, declined.session.Scope.Len())
	})

	t.Run("confirming empties the scope", func(t *testing.T) {
		confirmed, _ := update(t, m, keyMsg("y"))
		assert.Equal(t, confirmNone, confirmed.confirm)
		assert.Equal(t, 0, confirmed.session.Scope.Len())
	})
}

func TestUI_ScopeRemoveSingleEntry(t *testing.T) {
	m := newTestModel(t)
	m.currentView = scopeView
	m.session.Scope.Merge([]string{"a.txt", "b.txt", "c.txt"})
	m.scopeCursor = 1

	m, _ = update(t, m, keyMsg("x"))
	assert.Equal(t, []string{"a.txt", "c.txt"}, m.session.Scope.Names())
}

func TestUI_SemanticUploadMergesScope(t *testing.T) {
	m := newTestModel(t)
	m.session.Scope.Merge([]string{"a.txt"})

	m, _ = update(t, m, uploadDoneMsg{
		pipeline: PipelineSemantic,
		result:   UploadResult{FileNames: []string{"a.txt", "b.txt"}, Indexed: 2},
	})

	assert.Equal(t, []string{"a.txt", "b.txt"}, m.session.Scope.Names())
	assert.False(t, m.uploading)
}

func TestUI_LexicalUploadLeavesScopeAlone(t *testing.T) {
	m := newTestModel(t)
	m.session.Scope.Merge([]string{"a.txt"})

	m, _ = update(t, m, uploadDoneMsg{
		pipeline: PipelineLexical,
		result:   UploadResult{FileNames: []string{"x.txt"}, Indexed: 1},
	})

	assert.Equal(t, []string{"a.txt"}, m.session.Scope.Names())
}

func TestUI_UploadMissingCredentialPointsToSettings(t *testing.T) {
	m := newTestModel(t)

	m, _ = update(t, m, uploadDoneMsg{
		pipeline: PipelineSemantic,
		err:      fmt.Errorf("%w: configure it first", ErrMissingCredential),
	})

	assert.Contains(t, m.status, "Settings")
	assert.Equal(t, 0, m.session.Scope.Len())
}

func TestUI_AskBusyDropsSecondSubmission(t *testing.T) {
	m := newTestModel(t)
	m.currentView = chatView
	m.session.Select(1)
	_, _, ok := m.session.BeginAsk("first")
	require.True(t, ok)

	m.textarea.SetValue("second")
	m, cmd := update(t, m, keyMsg("enter"))
	assert.Nil(t, cmd)
	// only the first optimistic message exists
	assert.Equal(t, 1, m.session.Thread.Len())
}

func TestUI_AskDoneRestoresInput(t *testing.T) {
	m := newTestModel(t)
	m.currentView = chatView
	m.session.Select(1)
	_, _, ok := m.session.BeginAsk("hi")
	require.True(t, ok)

	m, cmd := update(t, m, askDoneMsg{answer: "hello"})
	assert.NotNil(t, cmd)
	assert.False(t, m.session.Asking())

	msgs := m.session.Thread.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestUI_StaleLoadIsDiscarded(t *testing.T) {
	m := newTestModel(t)
	staleToken := m.session.Select(1)
	freshToken := m.session.Select(2)

	m, _ = update(t, m, messagesLoadedMsg{
		token:    staleToken,
		messages: []Message{{Role: RoleUser, Content: "from chat 1"}},
	})
	assert.Equal(t, 0, m.session.Thread.Len())

	m, _ = update(t, m, messagesLoadedMsg{
		token:    freshToken,
		messages: []Message{{Role: RoleUser, Content: "from chat 2"}},
	})
	msgs := m.session.Thread.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "from chat 2", msgs[0].Content)
}

func TestUI_SearchResultsKeepOrderAndScopeUntouched(t *testing.T) {
	m := newTestModel(t)
	m.currentView = searchView
	m.session.Scope.Merge([]string{"a.txt"})
	m.searching = true

	m, _ = update(t, m, searchDoneMsg{results: []string{"r1", "r2", "r3"}})
	assert.False(t, m.searching)
	assert.Equal(t, []string{"r1", "r2", "r3"}, m.searchResults)
	assert.Equal(t, []string{"a.txt"}, m.session.Scope.Names())
}

func TestUI_EmptySearchRejectedLocally(t *testing.T) {
	m := newTestModel(t)
	m.currentView = searchView
	m.searchInput.SetValue("   ")

	_, cmd := update(t, m, keyMsg("enter"))
	assert.Nil(t, cmd)
}

func TestUI_EmptyAPIKeyRejectedLocally(t *testing.T) {
	m := newTestModel(t)
	m.currentView = settingsView
	m.apiKeyInput.SetValue("  ")

	m, cmd := update(t, m, keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.configStatus, "required")
	assert.False(t, m.savingConfig)
}

func TestUI_EmptyUploadSelectionRejectedLocally(t *testing.T) {
	m := newTestModel(t)
	m.currentView = uploadView
	m.uploadInput.SetValue("")

	m, cmd := update(t, m, keyMsg("enter"))
	assert.Nil(t, cmd)
	assert.False(t, m.uploading)
}

func TestUI_ChatCreatedAutoSelects(t *testing.T) {
	m := newTestModel(t)

	m, cmd := update(t, m, chatCreatedMsg{ID: 9, Name: "Chat 9"})
	assert.NotNil(t, cmd)
	assert.Equal(t, chatView, m.currentView)

	id, active := m.session.ActiveChat()
	assert.True(t, active)
	assert.EqualValues(t, 9, id)
}
