package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lazycook/chat-platform/internal/ai"
	"github.com/lazycook/chat-platform/internal/apperr"
	"github.com/lazycook/chat-platform/internal/common"
	"github.com/lazycook/chat-platform/internal/plan"
)

var ErrChatNotFound = errors.New("chat not found")

// Dispatcher produces the assistant reply for an authorized model. history
// holds the earlier turns of the chat, oldest first.
type Dispatcher interface {
	Complete(ctx context.Context, prompt string, model plan.Model, history []ai.Message) (string, error)
}

// DefaultContextWindow is how many earlier messages go along with a prompt.
const DefaultContextWindow = 20

const interruptedText = "⚠️ This reply was interrupted. Please send your message again."

// Pending identifies a user/assistant pair appended by Post and not yet
// resolved.
type Pending struct {
	ChatID             string
	UserMessageID      string
	AssistantMessageID string
	Prompt             string
	History            []ai.Message
	Plan               plan.Plan
	Model              plan.Model
}

type SendResult struct {
	ChatID    string
	Title     string
	User      Message
	Assistant Message
	// Err is the Router or Gateway failure that was written into the thread.
	Err error
	// Warning is set when the mirror write failed. Local state is kept.
	Warning error
	// Stale is true when the chat or the assistant slot was gone at resolve
	// time; nothing was written.
	Stale bool
}

type Option func(*Manager)

// WithMirror routes writes somewhere other than the Store (e.g. a queue).
func WithMirror(m Mirror) Option { return func(mg *Manager) { mg.mirror = m } }

func WithClock(now func() time.Time) Option { return func(mg *Manager) { mg.now = now } }

// WithContextWindow sets how many earlier messages are sent with a prompt.
// Values outside 1..100 fall back to DefaultContextWindow.
func WithContextWindow(n int) Option {
	return func(mg *Manager) {
		if n <= 0 || n > 100 {
			n = DefaultContextWindow
		}
		mg.window = n
	}
}

// WithWarningHook is called for every persistence warning.
func WithWarningHook(f func(error)) Option { return func(mg *Manager) { mg.onWarning = f } }

// Manager owns one user's chats for the running session. Local state is
// authoritative; every change is then mirrored without rollback or retry.
type Manager struct {
	mu      sync.Mutex
	userID  string
	plan    plan.Plan
	model   plan.Model
	chats   map[string]*Chat
	order   []string // newest first
	deleted map[string]struct{}
	active  string
	window  int

	dispatcher Dispatcher
	store      Store
	mirror     Mirror
	now        func() time.Time
	onWarning  func(error)

	// mirrorMu orders mirror writes; each write snapshots under it so an older
	// snapshot never lands after a newer one.
	mirrorMu sync.Mutex
	// loadMu serialises Load; loaded flips only after a successful ListChats.
	loadMu sync.Mutex
	loaded bool
}

// NewManager builds an empty session. store may be nil for a purely local
// session.
func NewManager(userID string, p plan.Plan, d Dispatcher, store Store, opts ...Option) *Manager {
	m := &Manager{
		userID:     userID,
		chats:      make(map[string]*Chat),
		deleted:    make(map[string]struct{}),
		dispatcher: d,
		store:      store,
		window:     DefaultContextWindow,
		now:        time.Now,
	}
	if store != nil {
		m.mirror = store
	}
	for _, o := range opts {
		o(m)
	}
	m.setPlanLocked(p)
	return m
}

func (m *Manager) UserID() string { return m.userID }

func (m *Manager) Plan() plan.Plan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.plan
}

func (m *Manager) Model() plan.Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// SetPlan switches tier and resets the requested model to the one the new
// plan grants.
func (m *Manager) SetPlan(p plan.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setPlanLocked(p)
}

func (m *Manager) setPlanLocked(p plan.Plan) {
	m.plan = p
	if mdl, err := plan.ModelFor(p); err == nil {
		m.model = mdl
	}
}

// SetModel records the model the user asked for. It is not validated here;
// Authorize gates it on every send.
func (m *Manager) SetModel(mdl plan.Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = mdl
}

// Load hydrates the session from the Store. A failure is a persistence
// warning: the session keeps working locally and the next Load tries again.
// Stored chats are merged with any created locally in the meantime.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.loadMu.Lock()
	defer m.loadMu.Unlock()
	if m.loaded {
		return nil
	}

	chats, err := m.store.ListChats(ctx, m.userID)
	if err != nil {
		return m.warn("chat.Load", "", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chats {
		if _, ok := m.chats[c.ID]; ok {
			continue
		}
		if _, ok := m.deleted[c.ID]; ok {
			continue
		}
		cc := c.clone()
		cc.interruptPending()
		m.chats[c.ID] = &cc
		m.order = append(m.order, c.ID)
	}
	m.resortLocked()
	if m.active == "" && len(m.order) > 0 {
		m.active = m.order[0]
	}
	m.loaded = true
	return nil
}

func (m *Manager) newID() string {
	return common.MustULID()
}

// CreateChat allocates an empty chat and makes it active. It is mirrored with
// the first message, not now.
func (m *Manager) CreateChat() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked()
}

func (m *Manager) createLocked() string {
	now := m.now()
	c := &Chat{
		ID:        m.newID(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
	}
	m.chats[c.ID] = c
	m.order = append([]string{c.ID}, m.order...)
	m.active = c.ID
	return c.ID
}

func (m *Manager) resortLocked() {
	list := make([]Chat, 0, len(m.order))
	for _, id := range m.order {
		list = append(list, Chat{ID: id, CreatedAt: m.chats[id].CreatedAt})
	}
	SortNewestFirst(list)
	for i := range list {
		m.order[i] = list[i].ID
	}
}

// SelectChat moves the active pointer. Unknown ids are ignored.
func (m *Manager) SelectChat(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; ok {
		m.active = id
	}
}

func (m *Manager) ActiveChatID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Chats returns copies, newest first.
func (m *Manager) Chats() []Chat {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Chat, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.chats[id].clone())
	}
	return out
}

func (m *Manager) Chat(id string) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return Chat{}, ErrChatNotFound
	}
	return c.clone(), nil
}

// State reports the lifecycle state; ok is false for ids never seen.
func (m *Manager) State(id string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.chats[id]; ok {
		return c.State(), true
	}
	if _, ok := m.deleted[id]; ok {
		return StateDeleted, true
	}
	return "", false
}

// RenameChat sets the title; a blank title restores the placeholder.
func (m *Manager) RenameChat(ctx context.Context, id, title string) error {
	m.mu.Lock()
	c, ok := m.chats[id]
	if !ok {
		m.mu.Unlock()
		return ErrChatNotFound
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	c.Title = title
	c.UpdatedAt = m.now()
	m.mu.Unlock()

	_ = m.mirrorChat(ctx, id)
	return nil
}

// DeleteChat removes the chat. When it was active, the most recent remaining
// chat takes over, or a fresh empty one is created. Returns the active id.
func (m *Manager) DeleteChat(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	if _, ok := m.chats[id]; !ok {
		m.mu.Unlock()
		return "", ErrChatNotFound
	}
	delete(m.chats, id)
	m.deleted[id] = struct{}{}
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == id {
		if len(m.order) > 0 {
			m.active = m.order[0]
		} else {
			m.createLocked()
		}
	}
	active := m.active
	m.mu.Unlock()

	if m.mirror != nil {
		m.mirrorMu.Lock()
		err := m.mirror.DeleteChat(ctx, m.userID, id)
		m.mirrorMu.Unlock()
		if err != nil {
			_ = m.warn("chat.DeleteChat", id, err)
		}
	}
	return active, nil
}

// SendMessage is Post followed by Resolve. Blank text is a no-op and returns
// nil.
func (m *Manager) SendMessage(ctx context.Context, chatID, text string) *SendResult {
	p, ok := m.Post(chatID, text)
	if !ok {
		return nil
	}
	return m.Resolve(ctx, p)
}

// Post appends the user message and an empty pending assistant message, in
// that order, in one step. A missing or deleted chatID gets a new chat. The
// first user message names an untitled chat.
func (m *Manager) Post(chatID, text string) (*Pending, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatID]
	if !ok {
		chatID = m.createLocked()
		c = m.chats[chatID]
	}

	now := m.now()
	first := c.userMessages() == 0
	history := c.history(m.window)
	user := Message{ID: m.newID(), Role: RoleUser, Content: text, CreatedAt: now}
	asst := Message{ID: m.newID(), Role: RoleAssistant, Pending: true, CreatedAt: now}
	c.Messages = append(c.Messages, user, asst)
	c.UpdatedAt = now
	if first {
		c.Title = DeriveTitle(text)
	}

	return &Pending{
		ChatID:             chatID,
		UserMessageID:      user.ID,
		AssistantMessageID: asst.ID,
		Prompt:             text,
		History:            history,
		Plan:               m.plan,
		Model:              m.model,
	}, true
}

// Resolve authorizes, dispatches and fills the assistant slot of p by id. A
// failure becomes the slot's content; the user message is never touched. If
// the slot no longer exists the reply is dropped.
func (m *Manager) Resolve(ctx context.Context, p *Pending) *SendResult {
	res := &SendResult{ChatID: p.ChatID}

	var content string
	decision := plan.Authorize(p.Plan, p.Model)
	if err := decision.Err(); err != nil {
		res.Err = err
		content = FailureText(err)
	} else if m.dispatcher == nil {
		res.Err = apperr.New(apperr.KindGateway, "chat.Resolve", "no gateway configured")
		content = FailureText(res.Err)
	} else {
		reply, err := m.dispatcher.Complete(ctx, p.Prompt, p.Model, p.History)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindUnknown {
				err = apperr.Wrap(apperr.KindGateway, "chat.Resolve", err)
			}
			res.Err = err
			content = FailureText(err)
		} else {
			content = reply
		}
	}

	m.mu.Lock()
	c, ok := m.chats[p.ChatID]
	idx := -1
	if ok {
		idx = c.indexOf(p.AssistantMessageID)
	}
	if idx < 0 {
		m.mu.Unlock()
		res.Stale = true
		return res
	}
	c.Messages[idx].Content = content
	c.Messages[idx].Pending = false
	c.Messages[idx].Failed = res.Err != nil
	c.UpdatedAt = m.now()

	res.Title = c.Title
	res.Assistant = c.Messages[idx]
	if u := c.indexOf(p.UserMessageID); u >= 0 {
		res.User = c.Messages[u]
	}
	m.mu.Unlock()

	res.Warning = m.mirrorChat(ctx, p.ChatID)
	return res
}

// mirrorChat writes the current snapshot of chatID. The error returned is
// already logged.
func (m *Manager) mirrorChat(ctx context.Context, chatID string) error {
	if m.mirror == nil {
		return nil
	}
	m.mirrorMu.Lock()
	defer m.mirrorMu.Unlock()

	m.mu.Lock()
	c, ok := m.chats[chatID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	snap := c.clone()
	m.mu.Unlock()

	if err := m.mirror.SaveChat(ctx, m.userID, snap); err != nil {
		return m.warn("chat.SaveChat", chatID, err)
	}
	return nil
}

func (m *Manager) warn(op, chatID string, err error) error {
	w := apperr.Wrap(apperr.KindPersistence, op, err)
	log.Printf("chat_mirror_warning user=%s chat=%s err=%v", m.userID, chatID, err)
	if m.onWarning != nil {
		m.onWarning(w)
	}
	return w
}

// FailureText is what the assistant slot shows for a failed send.
func FailureText(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindPlanDenied:
		return fmt.Sprintf("⚠️ %s", apperr.Detail(err))
	case apperr.KindAuth:
		return "⚠️ Your session has expired. Please sign in again."
	case apperr.KindGateway:
		return fmt.Sprintf("⚠️ The AI service failed to respond (%s). Please try again.", apperr.Detail(err))
	}
	return fmt.Sprintf("⚠️ Something went wrong: %v", err)
}
