package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"foundit-backend/internal/models"
	"foundit-backend/internal/repository"
	"foundit-backend/internal/session"
)

// memStore is an in-memory database implementing UserStore, PostStore,
// ChatStore, and SessionStore for service tests.
type memStore struct {
	mu sync.Mutex

	users    map[string]models.User
	posts    []models.Post
	chats    map[string]models.Chat
	messages []models.Message

	sessions      map[string]string
	loginFailures map[string]int

	postInserts    int
	messageInserts int
	chatUpserts    int

	clock time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:         make(map[string]models.User),
		chats:         make(map[string]models.Chat),
		sessions:      make(map[string]string),
		loginFailures: make(map[string]int),
		clock:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// tick returns a strictly increasing timestamp so creation order is
// reflected in created_at, like server-assigned timestamps.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) addUser(id, email, displayName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = models.User{ID: id, Email: email, DisplayName: displayName, CreatedAt: m.tick()}
}

// UserStore

func (m *memStore) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memStore) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	m.users[userID] = u
	return nil
}

// postStore facade: Create collides with UserStore.Create, so the post
// side lives on a wrapper type over the same memStore.
type memPostStore struct{ m *memStore }

func (p memPostStore) Create(ctx context.Context, post *models.Post) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	post.CreatedAt = p.m.tick()
	p.m.posts = append(p.m.posts, *post)
	p.m.postInserts++
	return nil
}

func (p memPostStore) GetByID(ctx context.Context, id string) (*models.Post, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	for _, post := range p.m.posts {
		if post.ID == id {
			post := post
			return &post, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (p memPostStore) List(ctx context.Context) ([]models.Post, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	out := make([]models.Post, len(p.m.posts))
	copy(out, p.m.posts)
	return out, nil
}

func (p memPostStore) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	var out []models.Post
	for _, post := range p.m.posts {
		if post.AuthorID == authorID {
			out = append(out, post)
		}
	}
	return out, nil
}

// SetResolved mirrors the transactional cascade: the post flag and
// every chat referencing the post flip together.
func (p memPostStore) SetResolved(ctx context.Context, postID string, resolved bool) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	found := false
	for i := range p.m.posts {
		if p.m.posts[i].ID == postID {
			p.m.posts[i].Resolved = resolved
			found = true
		}
	}
	if !found {
		return repository.ErrNotFound
	}
	for id, chat := range p.m.chats {
		if chat.PostID == postID {
			chat.Resolved = resolved
			chat.UpdatedAt = p.m.tick()
			p.m.chats[id] = chat
		}
	}
	return nil
}

func (p memPostStore) Delete(ctx context.Context, id string) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	for i, post := range p.m.posts {
		if post.ID == id {
			p.m.posts = append(p.m.posts[:i], p.m.posts[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

// chatStore facade, same reason as memPostStore.
type memChatStore struct{ m *memStore }

func (c memChatStore) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	chat, ok := c.m.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &chat, nil
}

func (c memChatStore) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	var out []models.Chat
	for _, chat := range c.m.chats {
		if chat.UserAID == userID || chat.UserBID == userID {
			out = append(out, chat)
		}
	}
	return out, nil
}

func (c memChatStore) InsertMessage(ctx context.Context, msg *models.Message) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	// the message lands before the chat row exists on first contact
	// exists on first send
	msg.CreatedAt = c.m.tick()
	c.m.messages = append(c.m.messages, *msg)
	c.m.messageInserts++
	return nil
}

func (c memChatStore) UpsertChat(ctx context.Context, chat *models.Chat) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	existing, ok := c.m.chats[chat.ID]
	if ok {
		existing.LastMessage = chat.LastMessage
		existing.LastSenderID = chat.LastSenderID
		existing.UpdatedAt = c.m.tick()
		c.m.chats[chat.ID] = existing
	} else {
		now := c.m.tick()
		chat.CreatedAt = now
		chat.UpdatedAt = now
		c.m.chats[chat.ID] = *chat
	}
	c.m.chatUpserts++
	return nil
}

func (c memChatStore) ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	var out []models.Message
	for _, msg := range c.m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	// the cap drops the oldest messages, keeping the newest
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// SessionStore

func (m *memStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[tokenHash] = userID
	return nil
}

func (m *memStore) LookupRefreshSession(ctx context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.sessions[tokenHash]
	if !ok {
		return "", session.ErrSessionNotFound
	}
	return userID, nil
}

func (m *memStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memStore) RecordLoginFailure(ctx context.Context, email string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loginFailures[email]++
	return m.loginFailures[email], nil
}

func (m *memStore) LoginFailures(ctx context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginFailures[email], nil
}

func (m *memStore) ClearLoginFailures(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.loginFailures, email)
	return nil
}

// fakeSender records frames sent to one connection
type fakeSender struct {
	mu     sync.Mutex
	frames []WSMessage
	fail   bool
}

func (f *fakeSender) Send(msg WSMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send fail")
	}
	f.frames = append(f.frames, msg)
	return nil
}

func (f *fakeSender) last() *WSMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	msg := f.frames[len(f.frames)-1]
	return &msg
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}
