package main

import (
	"strings"

	"github.com/google/uuid"
)

// FallbackAnswer is appended in place of an assistant reply when an ask
// request fails for any reason.
const FallbackAnswer = "Sorry, I encountered an error processing your request."

type ChatSession struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Scope is the set of document names restricting semantic retrieval for the
// active chat. Membership is unique and first-seen order is preserved for
// display. Removing a name only detaches it from the session; the document
// stays indexed on the backend.
type Scope struct {
	names []string
	seen  map[string]struct{}
}

func NewScope() *Scope {
	return &Scope{seen: make(map[string]struct{})}
}

// Merge unions refs into the scope and returns how many were new.
func (s *Scope) Merge(refs []string) int {
	added := 0
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := s.seen[ref]; ok {
			continue
		}
		s.seen[ref] = struct{}{}
		s.names = append(s.names, ref)
		added++
	}
	return added
}

func (s *Scope) Remove(ref string) bool {
	if _, ok := s.seen[ref]; !ok {
		return false
	}
	delete(s.seen, ref)
	for i, name := range s.names {
		if name == ref {
			s.names = append(s.names[:i], s.names[i+1:]...)
			break
		}
	}
	return true
}

func (s *Scope) Clear() int {
	removed := len(s.names)
	s.names = nil
	s.seen = make(map[string]struct{})
	return removed
}

func (s *Scope) Contains(ref string) bool {
	_, ok := s.seen[ref]
	return ok
}

func (s *Scope) Len() int {
	return len(s.names)
}

// Names returns a snapshot safe to hand to an in-flight request.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Thread is the ordered message log of the active chat. It is replaced
// wholesale on selection and append-only afterwards.
type Thread struct {
	messages []Message
}

func (t *Thread) Replace(msgs []Message) {
	t.messages = append([]Message(nil), msgs...)
}

func (t *Thread) AppendUser(content string) {
	t.messages = append(t.messages, Message{Role: RoleUser, Content: content})
}

func (t *Thread) AppendAssistant(content string) {
	t.messages = append(t.messages, Message{Role: RoleAssistant, Content: content})
}

func (t *Thread) AppendFallback() {
	t.AppendAssistant(FallbackAnswer)
}

func (t *Thread) growLast(chunk string) {
	if len(t.messages) == 0 {
		return
	}
	t.messages[len(t.messages)-1].Content += chunk
}

func (t *Thread) setLastAssistant(content string) bool {
	if len(t.messages) == 0 || t.messages[len(t.messages)-1].Role != RoleAssistant {
		return false
	}
	t.messages[len(t.messages)-1].Content = content
	return true
}

func (t *Thread) Len() int {
	return len(t.messages)
}

func (t *Thread) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Session coordinates the active chat pointer, its message thread, the
// retrieval scope, and the single-flight ask guard. All mutation happens
// from the UI event loop, so no locking is needed.
type Session struct {
	Thread Thread
	Scope  *Scope

	activeChat int64
	hasActive  bool
	loadToken  string
	asking     bool
	askChat    int64
}

func NewSession() *Session {
	return &Session{Scope: NewScope()}
}

func (s *Session) ActiveChat() (int64, bool) {
	return s.activeChat, s.hasActive
}

// Select makes chatID the active chat, clears the visible thread, and
// returns a fresh load token. A message load result may only be applied
// while its token is still the current one, so a late-arriving load for a
// previously selected chat is discarded.
func (s *Session) Select(chatID int64) string {
	s.activeChat = chatID
	s.hasActive = true
	s.loadToken = uuid.NewString()
	s.Thread.Replace(nil)
	return s.loadToken
}

// Deselect clears the active chat pointer and the thread, invalidating any
// pending load.
func (s *Session) Deselect() {
	s.activeChat = 0
	s.hasActive = false
	s.loadToken = ""
	s.Thread.Replace(nil)
}

// ApplyLoaded installs a completed message load if token still matches the
// current selection. Returns false when the result is stale.
func (s *Session) ApplyLoaded(token string, msgs []Message) bool {
	if !s.hasActive || token == "" || token != s.loadToken {
		return false
	}
	s.Thread.Replace(msgs)
	return true
}

// DropChat reacts to a chat deletion. If the deleted chat is the active
// one, the selection and thread are cleared; returns true in that case.
func (s *Session) DropChat(chatID int64) bool {
	if !s.hasActive || s.activeChat != chatID {
		return false
	}
	s.Deselect()
	return true
}

// BeginAsk validates a submission and, if accepted, appends the optimistic
// user message, marks the dispatcher busy, and returns the chat id and
// scope snapshot to send. Empty query, no active chat, or an ask already in
// flight all reject the submission with no state change beyond the refusal.
func (s *Session) BeginAsk(query string) (chatID int64, scope []string, ok bool) {
	query = strings.TrimSpace(query)
	if query == "" || !s.hasActive || s.asking {
		return 0, nil, false
	}
	s.Thread.AppendUser(query)
	s.asking = true
	s.askChat = s.activeChat
	return s.activeChat, s.Scope.Names(), true
}

// askTargetsActive reports whether the in-flight ask still belongs to the
// visible thread. Switching or deleting the chat mid-flight means the
// eventual result must not land in another chat's thread.
func (s *Session) askTargetsActive() bool {
	return s.hasActive && s.activeChat == s.askChat
}

// FinishAsk records the outcome of the in-flight ask and clears the busy
// flag. On failure the fixed fallback message is appended; the optimistic
// user message is kept either way.
func (s *Session) FinishAsk(answer string, err error) {
	if !s.asking {
		return
	}
	s.asking = false
	if !s.askTargetsActive() {
		return
	}
	if err != nil {
		s.Thread.AppendFallback()
		return
	}
	s.Thread.AppendAssistant(answer)
}

func (s *Session) Asking() bool {
	return s.asking
}

// BeginAnswer opens a provisional assistant message that streamed chunks
// will grow. Only valid while an ask is in flight.
func (s *Session) BeginAnswer() {
	if !s.asking || !s.askTargetsActive() {
		return
	}
	s.Thread.AppendAssistant("")
}

func (s *Session) AppendAnswerChunk(chunk string) {
	if !s.asking || !s.askTargetsActive() {
		return
	}
	s.Thread.growLast(chunk)
}

// FinishStreamedAsk terminates a streaming ask. A failure overwrites the
// provisional assistant message with the fixed fallback text rather than
// leaving a truncated answer behind.
func (s *Session) FinishStreamedAsk(err error) {
	if !s.asking {
		return
	}
	s.asking = false
	if !s.askTargetsActive() {
		return
	}
	if err != nil {
		if !s.Thread.setLastAssistant(FallbackAnswer) {
			s.Thread.AppendFallback()
		}
	}
}
