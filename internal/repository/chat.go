package repository

import (
	"context"
	"errors"
	"fmt"

	"foundit-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const chatColumns = `id, user_a_id, user_b_id, post_id, post_title, last_message,
		last_sender_id, resolved, created_at, updated_at`

// ChatRepository handles database operations for chats and messages
type ChatRepository struct {
	db *pgxpool.Pool
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *pgxpool.Pool) *ChatRepository {
	return &ChatRepository{db: db}
}

func scanChat(row pgx.Row) (*models.Chat, error) {
	var chat models.Chat
	err := row.Scan(
		&chat.ID, &chat.UserAID, &chat.UserBID, &chat.PostID, &chat.PostTitle,
		&chat.LastMessage, &chat.LastSenderID, &chat.Resolved,
		&chat.CreatedAt, &chat.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// GetByID retrieves a chat by its canonical ID
func (r *ChatRepository) GetByID(ctx context.Context, id string) (*models.Chat, error) {
	query := `SELECT ` + chatColumns + ` FROM chats WHERE id = $1`
	chat, err := scanChat(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get chat: %w", err)
	}
	return chat, nil
}

// ListByUser retrieves a user's chats, most recently updated first.
func (r *ChatRepository) ListByUser(ctx context.Context, userID string) ([]models.Chat, error) {
	query := `
		SELECT ` + chatColumns + `
		FROM chats
		WHERE user_a_id = $1 OR user_b_id = $1
		ORDER BY updated_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, *chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return chats, nil
}

// InsertMessage appends a message. The server assigns the creation
// timestamp so ordering within a chat is monotonic.
func (r *ChatRepository) InsertMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, chat_id, sender_id, sender_name, text, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		msg.ID, msg.ChatID, msg.SenderID, msg.SenderName, msg.Text,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// UpsertChat creates the chat row on first message and refreshes the
// last-message cache afterwards. The post reference and cached title
// are set on creation only.
func (r *ChatRepository) UpsertChat(ctx context.Context, chat *models.Chat) error {
	query := `
		INSERT INTO chats (id, user_a_id, user_b_id, post_id, post_title,
			last_message, last_sender_id, resolved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			last_message = EXCLUDED.last_message,
			last_sender_id = EXCLUDED.last_sender_id,
			updated_at = now()
	`
	_, err := r.db.Exec(ctx, query,
		chat.ID, chat.UserAID, chat.UserBID, chat.PostID, chat.PostTitle,
		chat.LastMessage, chat.LastSenderID, chat.Resolved,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}
	return nil
}

// ListMessages retrieves a chat's most recent messages, returned oldest
// first. The cap drops the oldest messages, never the newest.
func (r *ChatRepository) ListMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	query := `
		SELECT id, chat_id, sender_id, sender_name, text, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Query(ctx, query, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		err := rows.Scan(
			&msg.ID, &msg.ChatID, &msg.SenderID, &msg.SenderName,
			&msg.Text, &msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// rows came newest first; flip back to chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
