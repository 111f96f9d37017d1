package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type view int

const (
	chatListView view = iota
	chatView
	scopeView
	searchView
	settingsView
	uploadView
)

// confirmAction models the pending-confirmation step destructive operations
// go through before any request is made. Declining leaves all state
// untouched.
type confirmAction int

const (
	confirmNone confirmAction = iota
	confirmDeleteChat
	confirmClearScope
)

type model struct {
	client  *BackendClient
	config  *Config
	session *Session
	log     *zap.Logger

	currentView view
	width       int
	height      int

	chats      []ChatSession
	chatCursor int

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	loading  bool

	confirm     confirmAction
	confirmChat ChatSession

	scopeCursor int

	searchInput   textinput.Model
	searchResults []string
	searching     bool
	searched      bool

	apiKeyInput   textinput.Model
	modelCursor   int
	settingsFocus int
	savingConfig  bool
	configStatus  string

	uploadInput    textinput.Model
	uploadPipeline Pipeline
	uploading      bool

	status string
	err    error

	chunkChan chan string
	errChan   chan error
}

type chatsMsg []ChatSession
type chatCreatedMsg ChatSession
type chatDeletedMsg struct{ id int64 }

type messagesLoadedMsg struct {
	token    string
	messages []Message
}

type loadFailedMsg struct {
	token string
	err   error
}

type askDoneMsg struct {
	answer string
	err    error
}

type streamStartMsg struct {
	chunkChan chan string
	errChan   chan error
}
type streamChunkMsg string
type streamDoneMsg struct{ err error }

type uploadDoneMsg struct {
	pipeline Pipeline
	result   UploadResult
	err      error
}

type searchDoneMsg struct {
	results []string
	err     error
}

type configSavedMsg struct{ err error }

type errMsg struct{ err error }

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("141")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	okStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("78"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

func initialModel(client *BackendClient, config *Config, session *Session, log *zap.Logger) model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about your documents..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)

	vp := viewport.New(80, 20)
	vp.SetContent("")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	searchInput := textinput.New()
	searchInput.Placeholder = "Search the BM25 corpus..."
	searchInput.CharLimit = 0
	searchInput.Width = 60

	apiKeyInput := textinput.New()
	apiKeyInput.Placeholder = "sk-..."
	apiKeyInput.EchoMode = textinput.EchoPassword
	apiKeyInput.CharLimit = 0
	apiKeyInput.Width = 60

	uploadInput := textinput.New()
	uploadInput.Placeholder = "/path/to/a.txt /path/to/b.pdf"
	uploadInput.CharLimit = 0
	uploadInput.Width = 60

	return model{
		client:      client,
		config:      config,
		session:     session,
		log:         log,
		currentView: chatListView,
		textarea:    ta,
		viewport:    vp,
		spinner:     sp,
		searchInput: searchInput,
		apiKeyInput: apiKeyInput,
		uploadInput: uploadInput,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.loadChats)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 10
		m.textarea.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		if m.confirm != confirmNone {
			return m.handleConfirmKeys(msg)
		}
		switch m.currentView {
		case chatListView:
			return m.handleChatListKeys(msg)
		case chatView:
			return m.handleChatKeys(msg)
		case scopeView:
			return m.handleScopeKeys(msg)
		case searchView:
			return m.handleSearchKeys(msg)
		case settingsView:
			return m.handleSettingsKeys(msg)
		case uploadView:
			return m.handleUploadKeys(msg)
		}

	case spinner.TickMsg:
		if m.busy() {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case chatsMsg:
		m.chats = msg
		if m.chatCursor >= len(m.chats) {
			m.chatCursor = len(m.chats) - 1
		}
		if m.chatCursor < 0 {
			m.chatCursor = 0
		}
		return m, nil

	case chatCreatedMsg:
		// refresh the directory and auto-select the new chat
		return m, tea.Batch(m.loadChats, m.openChat(ChatSession(msg)))

	case chatDeletedMsg:
		if m.session.DropChat(msg.id) {
			m.viewport.SetContent("")
		}
		m.status = "Chat deleted"
		return m, m.loadChats

	case messagesLoadedMsg:
		if !m.session.ApplyLoaded(msg.token, msg.messages) {
			m.log.Info("discarded stale message load", zap.String("token", msg.token))
			return m, nil
		}
		m.loading = false
		m.updateViewport()
		return m, nil

	case loadFailedMsg:
		if !m.session.ApplyLoaded(msg.token, nil) {
			return m, nil
		}
		m.loading = false
		m.err = msg.err
		return m, nil

	case askDoneMsg:
		m.session.FinishAsk(msg.answer, msg.err)
		if msg.err != nil {
			m.log.Warn("ask failed", zap.Error(msg.err))
		}
		m.updateViewport()
		m.textarea.Focus()
		return m, textarea.Blink

	case streamStartMsg:
		m.chunkChan = msg.chunkChan
		m.errChan = msg.errChan
		m.session.BeginAnswer()
		m.updateViewport()
		return m, m.waitForChunks(m.chunkChan, m.errChan)

	case streamChunkMsg:
		m.session.AppendAnswerChunk(string(msg))
		m.updateViewport()
		return m, m.waitForChunks(m.chunkChan, m.errChan)

	case streamDoneMsg:
		m.session.FinishStreamedAsk(msg.err)
		if msg.err != nil {
			m.log.Warn("streaming ask failed", zap.Error(msg.err))
		}
		m.updateViewport()
		m.textarea.Focus()
		return m, textarea.Blink

	case uploadDoneMsg:
		m.uploading = false
		return m.applyUpload(msg)

	case searchDoneMsg:
		m.searching = false
		m.searched = true
		if msg.err != nil {
			m.err = msg.err
			m.searchResults = nil
			return m, nil
		}
		m.err = nil
		m.searchResults = msg.results
		return m, nil

	case configSavedMsg:
		m.savingConfig = false
		if msg.err != nil {
			m.configStatus = errorStyle.Render("Failed to save configuration")
			m.log.Warn("config save failed", zap.Error(msg.err))
		} else {
			m.configStatus = okStyle.Render("Configuration saved")
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		m.loading = false
		return m, nil
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m model) busy() bool {
	return m.session.Asking() || m.loading || m.searching || m.uploading || m.savingConfig
}

// applyUpload reconciles a finished upload. Only the semantic pipeline
// touches the retrieval scope; the lexical corpus is chat-independent.
func (m *model) applyUpload(msg uploadDoneMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if errors.Is(msg.err, ErrMissingCredential) {
			m.status = errorStyle.Render("Backend API key not configured. Set it in Settings first.")
			return m, nil
		}
		m.status = errorStyle.Render("Upload failed: " + msg.err.Error())
		return m, nil
	}

	if msg.pipeline == PipelineSemantic {
		added := m.session.Scope.Merge(msg.result.FileNames)
		m.status = okStyle.Render(fmt.Sprintf("Indexed %d file(s), %d new in scope: %s",
			msg.result.Indexed, added, strings.Join(msg.result.FileNames, ", ")))
	} else {
		m.status = okStyle.Render(fmt.Sprintf("Indexed %d file(s) into the BM25 corpus", msg.result.Indexed))
	}
	m.uploadInput.Reset()
	return m, nil
}

func (m model) View() string {
	if m.confirm != confirmNone {
		return m.renderConfirm()
	}
	switch m.currentView {
	case chatListView:
		return m.renderChatList()
	case chatView:
		return m.renderChat()
	case scopeView:
		return m.renderScope()
	case searchView:
		return m.renderSearch()
	case settingsView:
		return m.renderSettings()
	case uploadView:
		return m.renderUpload()
	}
	return ""
}

func (m model) renderConfirm() string {
	var question, note string
	switch m.confirm {
	case confirmDeleteChat:
		question = fmt.Sprintf("Delete chat %q?", m.confirmChat.Name)
		note = "This removes the chat and its messages from the backend."
	case confirmClearScope:
		question = fmt.Sprintf("Remove all %d document(s) from this session's scope?", m.session.Scope.Len())
		note = "Files stay indexed on the backend; only this session is detached."
	}

	var b strings.Builder
	b.WriteString(promptStyle.Render(question) + "\n\n")
	b.WriteString(helpStyle.Render(note) + "\n\n")
	b.WriteString(helpStyle.Render("y: confirm | n/esc: cancel"))
	return b.String()
}

func (m model) renderChatList() string {
	title := titleStyle.Render("RAG Chat")
	info := helpStyle.Render(fmt.Sprintf("server: %s | model: %s", m.config.ServerURL, m.config.ModelName))
	help := helpStyle.Render("↑/↓: navigate | enter: open | n: new | d: delete | b: bm25 search | o: documents | u: upload | s: settings | q: quit")

	var b strings.Builder
	b.WriteString(title + "  " + info + "\n\n")

	if len(m.chats) == 0 {
		b.WriteString(helpStyle.Render("No chats yet. Press 'n' to create one.") + "\n")
	} else {
		for i, chat := range m.chats {
			cursor := " "
			if i == m.chatCursor {
				cursor = ">"
			}
			line := fmt.Sprintf("%s %s", cursor, chat.Name)
			if id, ok := m.session.ActiveChat(); ok && id == chat.ID {
				line += helpStyle.Render("  (active)")
			}
			if i == m.chatCursor {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	}
	b.WriteString("\n" + help)
	return b.String()
}

func (m model) renderChat() string {
	title := titleStyle.Render("RAG Chat")
	for _, chat := range m.chats {
		if id, ok := m.session.ActiveChat(); ok && id == chat.ID {
			title += " - " + chat.Name
			break
		}
	}

	scopeLine := helpStyle.Render("No documents in scope; answers are ungrounded until you upload some.")
	if n := m.session.Scope.Len(); n > 0 {
		scopeLine = helpStyle.Render(fmt.Sprintf("Using %d document(s): %s", n, strings.Join(m.session.Scope.Names(), ", ")))
	}

	status := ""
	if m.loading {
		status = m.spinner.View() + helpStyle.Render(" Loading messages...")
	} else if m.session.Asking() {
		status = m.spinner.View() + helpStyle.Render(" Thinking...")
	}
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Error: %v", m.err))
	}

	help := helpStyle.Render("esc: chats | enter: send | ctrl+o: documents | ctrl+b: search | ctrl+u: upload | pgup/pgdn: scroll | ctrl+c: quit")

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(scopeLine + "\n\n")
	b.WriteString(m.viewport.View() + "\n\n")
	b.WriteString(m.textarea.View() + "\n")
	if status != "" {
		b.WriteString(status + "\n")
	}
	b.WriteString(help)
	return b.String()
}

func (m model) renderScope() string {
	title := titleStyle.Render("Session Documents")
	help := helpStyle.Render("↑/↓: navigate | x: remove | c: clear all | u: upload | esc: back")

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(helpStyle.Render("Documents scoping semantic retrieval for this session. Removal never deletes backend data.") + "\n\n")

	names := m.session.Scope.Names()
	if len(names) == 0 {
		b.WriteString(helpStyle.Render("Scope is empty. Press 'u' to upload and index documents.") + "\n")
	} else {
		for i, name := range names {
			cursor := " "
			if i == m.scopeCursor {
				cursor = ">"
			}
			line := fmt.Sprintf("%s %s", cursor, name)
			if i == m.scopeCursor {
				line = selectedStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + m.status + "\n")
	}
	b.WriteString("\n" + help)
	return b.String()
}

func (m model) renderSearch() string {
	title := titleStyle.Render("BM25 Search")
	help := helpStyle.Render("enter: search | esc: back")

	var b strings.Builder
	b.WriteString(title + "  " + helpStyle.Render(fmt.Sprintf("top_k=%d, corpus-wide", m.config.BM25TopK)) + "\n\n")
	b.WriteString(m.searchInput.View() + "\n\n")

	if m.searching {
		b.WriteString(m.spinner.View() + helpStyle.Render(" Searching...") + "\n")
	} else if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n")
	} else if m.searched && len(m.searchResults) == 0 {
		b.WriteString(helpStyle.Render("No results.") + "\n")
	} else {
		for i, result := range m.searchResults {
			b.WriteString(fmt.Sprintf("%d. %s\n", i+1, result))
		}
	}

	b.WriteString("\n" + help)
	return b.String()
}

func (m model) renderSettings() string {
	title := titleStyle.Render("Settings")
	help := helpStyle.Render("tab: next field | ↑/↓: pick model | enter: save | esc: back")

	keyLabel := "  Backend API key:"
	if m.settingsFocus == 0 {
		keyLabel = selectedStyle.Render("> Backend API key:")
	}
	modelLabel := "  Model:"
	if m.settingsFocus == 1 {
		modelLabel = selectedStyle.Render("> Model:")
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	b.WriteString(keyLabel + "\n")
	b.WriteString("  " + m.apiKeyInput.View() + "\n\n")
	b.WriteString(modelLabel + "\n")
	for i, name := range SupportedModels {
		cursor := " "
		if i == m.modelCursor {
			cursor = ">"
		}
		line := fmt.Sprintf("  %s %s", cursor, name)
		if i == m.modelCursor && m.settingsFocus == 1 {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\n")
	if m.savingConfig {
		b.WriteString(m.spinner.View() + helpStyle.Render(" Saving...") + "\n")
	} else if m.configStatus != "" {
		b.WriteString(m.configStatus + "\n")
	}
	b.WriteString("\n" + help)
	return b.String()
}

func (m model) renderUpload() string {
	title := titleStyle.Render("Upload Documents")
	help := helpStyle.Render("tab: switch pipeline | enter: upload | esc: back")

	semantic := "  semantic (RAG index, joins session scope)"
	lexical := "  lexical (BM25 corpus, chat-independent)"
	if m.uploadPipeline == PipelineSemantic {
		semantic = selectedStyle.Render("> semantic (RAG index, joins session scope)")
	} else {
		lexical = selectedStyle.Render("> lexical (BM25 corpus, chat-independent)")
	}

	var b strings.Builder
	b.WriteString(title + "\n\n")
	b.WriteString(semantic + "\n")
	b.WriteString(lexical + "\n\n")
	b.WriteString(helpStyle.Render("File paths, space separated:") + "\n")
	b.WriteString("  " + m.uploadInput.View() + "\n\n")

	if m.uploading {
		b.WriteString(m.spinner.View() + helpStyle.Render(" Uploading...") + "\n")
	} else if m.status != "" {
		b.WriteString(m.status + "\n")
	}
	b.WriteString("\n" + help)
	return b.String()
}

func (m *model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		action := m.confirm
		m.confirm = confirmNone
		switch action {
		case confirmDeleteChat:
			return m, m.deleteChat(m.confirmChat.ID)
		case confirmClearScope:
			removed := m.session.Scope.Clear()
			m.scopeCursor = 0
			m.status = okStyle.Render(fmt.Sprintf("Removed %d document(s) from scope; files stay indexed on the backend", removed))
			return m, nil
		}
	case "n", "N", "esc", "q":
		m.confirm = confirmNone
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m *model) handleChatListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "up", "k":
		if m.chatCursor > 0 {
			m.chatCursor--
		}

	case "down", "j":
		if m.chatCursor < len(m.chats)-1 {
			m.chatCursor++
		}

	case "enter":
		if len(m.chats) > 0 {
			return m, m.openChat(m.chats[m.chatCursor])
		}

	case "n":
		return m, m.createChat

	case "d":
		if len(m.chats) > 0 {
			m.confirm = confirmDeleteChat
			m.confirmChat = m.chats[m.chatCursor]
		}

	case "b":
		return m, m.enterSearch()

	case "o":
		m.currentView = scopeView
		m.status = ""

	case "u":
		return m, m.enterUpload()

	case "s":
		return m, m.enterSettings()
	}

	return m, nil
}

func (m *model) handleChatKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	if msg.Type == tea.KeyEsc {
		m.currentView = chatListView
		m.err = nil
		return m, m.loadChats
	}
	if msg.Type == tea.KeyCtrlN {
		return m, m.createChat
	}
	if msg.Type == tea.KeyCtrlO {
		m.currentView = scopeView
		m.status = ""
		return m, nil
	}
	if msg.Type == tea.KeyCtrlB {
		return m, m.enterSearch()
	}
	if msg.Type == tea.KeyCtrlU {
		return m, m.enterUpload()
	}
	if msg.Type == tea.KeyCtrlS {
		return m, m.enterSettings()
	}

	if msg.Type == tea.KeyPgUp || msg.Type == tea.KeyCtrlK {
		m.viewport.LineUp(5)
		return m, nil
	}
	if msg.Type == tea.KeyPgDown || msg.Type == tea.KeyCtrlJ {
		m.viewport.LineDown(5)
		return m, nil
	}

	if msg.Type == tea.KeyEnter {
		// one ask in flight at a time; extra submits are dropped here
		if m.session.Asking() {
			return m, nil
		}
		return m, m.submitAsk()
	}

	if !m.session.Asking() {
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *model) handleScopeKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		if _, ok := m.session.ActiveChat(); ok {
			m.currentView = chatView
		} else {
			m.currentView = chatListView
		}
		m.status = ""
		return m, nil

	case "up", "k":
		if m.scopeCursor > 0 {
			m.scopeCursor--
		}

	case "down", "j":
		if m.scopeCursor < m.session.Scope.Len()-1 {
			m.scopeCursor++
		}

	case "x", "d":
		names := m.session.Scope.Names()
		if m.scopeCursor < len(names) {
			name := names[m.scopeCursor]
			m.session.Scope.Remove(name)
			if m.scopeCursor >= m.session.Scope.Len() && m.scopeCursor > 0 {
				m.scopeCursor--
			}
			m.status = okStyle.Render(fmt.Sprintf("Removed %s from scope; it stays indexed on the backend", name))
		}

	case "c":
		if m.session.Scope.Len() > 0 {
			m.confirm = confirmClearScope
		}

	case "u":
		return m, m.enterUpload()
	}

	return m, nil
}

func (m *model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.searchInput.Blur()
		m.err = nil
		m.currentView = chatListView
		return m, nil
	case tea.KeyEnter:
		// resubmission while pending is a UX nicety, not a correctness rule
		if m.searching {
			return m, nil
		}
		return m, m.submitSearch()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *model) handleSettingsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.apiKeyInput.Blur()
		m.currentView = chatListView
		return m, nil
	case tea.KeyTab:
		m.settingsFocus = (m.settingsFocus + 1) % 2
		if m.settingsFocus == 0 {
			m.apiKeyInput.Focus()
			return m, textinput.Blink
		}
		m.apiKeyInput.Blur()
		return m, nil
	case tea.KeyEnter:
		if m.savingConfig {
			return m, nil
		}
		return m, m.submitConfig()
	}

	if m.settingsFocus == 1 {
		switch msg.String() {
		case "up", "k":
			if m.modelCursor > 0 {
				m.modelCursor--
			}
			return m, nil
		case "down", "j":
			if m.modelCursor < len(SupportedModels)-1 {
				m.modelCursor++
			}
			return m, nil
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.apiKeyInput, cmd = m.apiKeyInput.Update(msg)
	return m, cmd
}

func (m *model) handleUploadKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		m.uploadInput.Blur()
		m.currentView = chatListView
		return m, nil
	case tea.KeyTab:
		if m.uploadPipeline == PipelineSemantic {
			m.uploadPipeline = PipelineLexical
		} else {
			m.uploadPipeline = PipelineSemantic
		}
		return m, nil
	case tea.KeyEnter:
		if m.uploading {
			return m, nil
		}
		return m, m.submitUpload()
	}

	var cmd tea.Cmd
	m.uploadInput, cmd = m.uploadInput.Update(msg)
	return m, cmd
}

func (m *model) enterSearch() tea.Cmd {
	m.currentView = searchView
	m.err = nil
	m.searchInput.Focus()
	return textinput.Blink
}

func (m *model) enterSettings() tea.Cmd {
	m.currentView = settingsView
	m.settingsFocus = 0
	m.configStatus = ""
	for i, name := range SupportedModels {
		if name == m.config.ModelName {
			m.modelCursor = i
		}
	}
	m.apiKeyInput.Focus()
	return textinput.Blink
}

func (m *model) enterUpload() tea.Cmd {
	m.currentView = uploadView
	m.status = ""
	m.uploadInput.Focus()
	return textinput.Blink
}

func (m *model) updateViewport() {
	var content strings.Builder

	for _, message := range m.session.Thread.Messages() {
		if message.Role == RoleUser {
			content.WriteString(userStyle.Render("You:") + "\n")
		} else {
			content.WriteString(assistantStyle.Render("Assistant:") + "\n")
		}
		content.WriteString(message.Content + "\n\n")
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

// openChat makes chat the active session and starts a fenced message load.
// The returned command resolves with the token allocated here; by the time
// it lands the user may have selected a different chat, in which case the
// session rejects the stale result.
func (m *model) openChat(chat ChatSession) tea.Cmd {
	token := m.session.Select(chat.ID)
	m.loading = true
	m.err = nil
	m.currentView = chatView
	m.viewport.SetContent("")
	m.textarea.Reset()
	m.textarea.Focus()

	client := m.client
	id := chat.ID
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		msgs, err := client.LoadMessages(context.Background(), id)
		if err != nil {
			return loadFailedMsg{token: token, err: err}
		}
		return messagesLoadedMsg{token: token, messages: msgs}
	})
}

func (m model) loadChats() tea.Msg {
	chats, err := m.client.ListChats(context.Background())
	if err != nil {
		return errMsg{err: err}
	}
	return chatsMsg(chats)
}

func (m model) createChat() tea.Msg {
	chat, err := m.client.CreateChat(context.Background())
	if err != nil {
		return errMsg{err: err}
	}
	return chatCreatedMsg(chat)
}

func (m *model) deleteChat(id int64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		if err := client.DeleteChat(context.Background(), id); err != nil {
			return errMsg{err: err}
		}
		return chatDeletedMsg{id: id}
	}
}

// submitAsk runs the query dispatcher: validate, append the optimistic user
// message, snapshot the scope, and fire exactly one request.
func (m *model) submitAsk() tea.Cmd {
	query := strings.TrimSpace(m.textarea.Value())
	chatID, scope, ok := m.session.BeginAsk(query)
	if !ok {
		return nil
	}

	m.textarea.Reset()
	m.err = nil
	m.updateViewport()

	if m.config.StreamAsk {
		return tea.Batch(m.spinner.Tick, m.streamAnswer(chatID, query, scope))
	}

	client := m.client
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		answer, err := client.Ask(context.Background(), chatID, query, scope)
		return askDoneMsg{answer: answer, err: err}
	})
}

func (m model) streamAnswer(chatID int64, query string, scope []string) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		chunkChan := make(chan string, 100)
		errChan := make(chan error, 1)

		go func() {
			err := client.AskStream(context.Background(), chatID, query, scope, func(chunk string) error {
				chunkChan <- chunk
				return nil
			})
			close(chunkChan)
			if err != nil {
				errChan <- err
			}
			close(errChan)
		}()

		return streamStartMsg{chunkChan: chunkChan, errChan: errChan}
	}
}

func (m model) waitForChunks(chunkChan chan string, errChan chan error) tea.Cmd {
	return func() tea.Msg {
		select {
		case chunk, ok := <-chunkChan:
			if !ok {
				select {
				case err := <-errChan:
					if err != nil {
						return streamDoneMsg{err: err}
					}
				default:
				}
				return streamDoneMsg{}
			}
			return streamChunkMsg(chunk)
		case err := <-errChan:
			return streamDoneMsg{err: err}
		}
	}
}

func (m *model) submitSearch() tea.Cmd {
	query := strings.TrimSpace(m.searchInput.Value())
	if query == "" {
		return nil
	}

	m.searching = true
	m.err = nil
	client := m.client
	topK := m.config.BM25TopK
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		results, err := client.SearchBM25(context.Background(), query, topK)
		return searchDoneMsg{results: results, err: err}
	})
}

func (m *model) submitConfig() tea.Cmd {
	apiKey := strings.TrimSpace(m.apiKeyInput.Value())
	if apiKey == "" {
		m.configStatus = errorStyle.Render("API key is required")
		return nil
	}

	modelName := SupportedModels[m.modelCursor]
	m.savingConfig = true
	m.configStatus = ""
	m.config.ModelName = modelName

	client := m.client
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		err := client.SaveConfig(context.Background(), apiKey, modelName)
		return configSavedMsg{err: err}
	})
}

func (m *model) submitUpload() tea.Cmd {
	paths := strings.Fields(m.uploadInput.Value())
	if len(paths) == 0 {
		m.status = errorStyle.Render("Select at least one file")
		return nil
	}

	m.uploading = true
	m.status = ""
	client := m.client
	pipeline := m.uploadPipeline
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		result, err := client.Upload(context.Background(), pipeline, paths)
		return uploadDoneMsg{pipeline: pipeline, result: result, err: err}
	})
}
