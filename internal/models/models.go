package models

import "time"

// User represents a registered account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PhotoURL     *string   `json:"photo_url,omitempty"`
	PasswordHash string    `json:"-"`
	PushToken    *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PostKind is the coarse category of a post
type PostKind string

const (
	KindLost  PostKind = "lost"
	KindFound PostKind = "found"
)

// Post represents a lost-or-found item post
type Post struct {
	ID          string    `json:"id"`
	Kind        PostKind  `json:"type"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AuthorID    string    `json:"user_id"`
	AuthorName  string    `json:"user_name"`
	Anonymous   bool      `json:"anonymous"`
	Resolved    bool      `json:"resolved"`
	ImageURL    *string   `json:"image_url,omitempty"`
	ImageKey    *string   `json:"image_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chat represents a conversation between two users about a post.
// Its ID is the two participant IDs sorted and joined with "_",
// so both sides always resolve to the same chat.
type Chat struct {
	ID           string    `json:"id"`
	UserAID      string    `json:"user_a_id"`
	UserBID      string    `json:"user_b_id"`
	PostID       string    `json:"post_id"`
	PostTitle    string    `json:"post_title"`
	LastMessage  string    `json:"last_message"`
	LastSenderID string    `json:"last_sender_id"`
	Resolved     bool      `json:"resolved"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is a single chat message. Messages are append-only and are
// never edited or deleted.
type Message struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chat_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
