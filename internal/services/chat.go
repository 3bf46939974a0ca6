package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foundit-backend/internal/models"
	"foundit-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const messageHistoryLimit = 500

var (
	// ErrChatResolved rejects sends into a settled conversation.
	ErrChatResolved = errors.New("this conversation is resolved")
	// ErrEmptyMessage rejects blank or whitespace-only messages.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrSelfChat rejects a chat where both participants are the same user.
	ErrSelfChat = errors.New("cannot open a chat with yourself")
)

// ChatID computes the canonical conversation identifier for two
// participants: their IDs sorted and joined with "_". Pure and
// order-independent, so both sides always land in the same chat.
func ChatID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}

// ChatStore is the persistence surface the chat service needs
type ChatStore interface {
	GetByID(ctx context.Context, id string) (*models.Chat, error)
	ListByUser(ctx context.Context, userID string) ([]models.Chat, error)
	InsertMessage(ctx context.Context, msg *models.Message) error
	UpsertChat(ctx context.Context, chat *models.Chat) error
	ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
}

// ChatService handles conversations and messages
type ChatService struct {
	chatRepo ChatStore
	postRepo PostStore
	userRepo UserStore
}

// NewChatService creates a new chat service
func NewChatService(chatRepo ChatStore, postRepo PostStore, userRepo UserStore) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		postRepo: postRepo,
		userRepo: userRepo,
	}
}

// SendMessageInput is a message submission
type SendMessageInput struct {
	PeerID string `json:"peer_id"`
	Text   string `json:"text"`
	// PostID associates the conversation with a post when the chat is
	// created by this message. Ignored for existing chats.
	PostID string `json:"post_id"`
}

// SendMessage appends a message and refreshes the chat's last-message
// cache. All rejections happen before any write: blank text, a resolved
// chat, or messaging yourself never reach the store. The append and the
// chat upsert are two sequential writes, not a transaction.
func (s *ChatService) SendMessage(ctx context.Context, senderID string, in SendMessageInput) (*models.Message, *models.Chat, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}
	if in.PeerID == "" || in.PeerID == senderID {
		return nil, nil, ErrSelfChat
	}

	chatID := ChatID(senderID, in.PeerID)

	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load chat: %w", err)
	}
	if chat != nil && chat.Resolved {
		return nil, nil, ErrChatResolved
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load sender: %w", err)
	}
	senderName := sender.DisplayName
	if senderName == "" {
		senderName = "Unknown"
	}

	if chat == nil {
		chat = &models.Chat{
			ID:      chatID,
			UserAID: min(senderID, in.PeerID),
			UserBID: max(senderID, in.PeerID),
		}
		if in.PostID != "" {
			post, err := s.postRepo.GetByID(ctx, in.PostID)
			switch {
			case err == nil:
				chat.PostID = post.ID
				chat.PostTitle = post.Title
				chat.Resolved = post.Resolved
			case !errors.Is(err, repository.ErrNotFound):
				// the chat opens without the association rather than
				// failing the send; the resolve cascade will miss it
				log.Error().Err(err).Str("post_id", in.PostID).Msg("Failed to load post for new chat")
			}
		}
		// a resolved post means the conversation opens resolved too
		if chat.Resolved {
			return nil, nil, ErrChatResolved
		}
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Text:       text,
	}
	if err := s.chatRepo.InsertMessage(ctx, msg); err != nil {
		return nil, nil, fmt.Errorf("failed to append message: %w", err)
	}

	chat.LastMessage = text
	chat.LastSenderID = senderID
	if err := s.chatRepo.UpsertChat(ctx, chat); err != nil {
		return nil, nil, fmt.Errorf("failed to update chat: %w", err)
	}

	return msg, chat, nil
}

// ListChats returns a user's conversations, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.Chat, error) {
	return s.chatRepo.ListByUser(ctx, userID)
}

// Conversation returns the chat between the caller and a peer along
// with its message history, oldest first. The chat is nil when no
// message has ever been sent.
func (s *ChatService) Conversation(ctx context.Context, userID, peerID string) (*models.Chat, []models.Message, error) {
	if peerID == "" || peerID == userID {
		return nil, nil, ErrSelfChat
	}
	chatID := ChatID(userID, peerID)

	chat, err := s.chatRepo.GetByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load chat: %w", err)
	}

	messages, err := s.chatRepo.ListMessages(ctx, chatID, messageHistoryLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return chat, messages, nil
}

// PeerOf returns the other participant of a chat
func PeerOf(chat *models.Chat, userID string) string {
	if chat.UserAID == userID {
		return chat.UserBID
	}
	return chat.UserAID
}
