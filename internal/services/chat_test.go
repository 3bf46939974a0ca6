package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newChatFixture() (*ChatService, *PostService, *memStore) {
	m := newMemStore()
	m.addUser("user-a", "alice@campus.edu", "Alice")
	m.addUser("user-b", "bob@campus.edu", "Bob")
	posts := NewPostService(memPostStore{m}, m, nil)
	chats := NewChatService(memChatStore{m}, memPostStore{m}, m)
	return chats, posts, m
}

func TestChatIDOrderIndependent(t *testing.T) {
	if got, want := ChatID("user-b", "user-a"), "user-a_user-b"; got != want {
		t.Fatalf("ChatID = %q, want %q", got, want)
	}
	if ChatID("user-a", "user-b") != ChatID("user-b", "user-a") {
		t.Fatal("ChatID must not depend on argument order")
	}
	// pure: same inputs, same output, no state
	if ChatID("x", "y") != ChatID("x", "y") {
		t.Fatal("ChatID is not deterministic")
	}
}

func TestSendMessageRejectsBeforeAnyWrite(t *testing.T) {
	chats, _, m := newChatFixture()
	ctx := context.Background()

	if _, _, err := chats.SendMessage(ctx, "user-a", SendMessageInput{PeerID: "user-b", Text: "   "}); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("blank text error = %v, want ErrEmptyMessage", err)
	}
	if _, _, err := chats.SendMessage(ctx, "user-a", SendMessageInput{PeerID: "user-a", Text: "hi"}); !errors.Is(err, ErrSelfChat) {
		t.Fatalf("self chat error = %v, want ErrSelfChat", err)
	}

	if m.messageInserts != 0 || m.chatUpserts != 0 {
		t.Fatalf("rejected sends reached the store: %d messages, %d upserts", m.messageInserts, m.chatUpserts)
	}
}

func TestSendMessageCreatesChatImplicitly(t *testing.T) {
	chats, posts, m := newChatFixture()
	ctx := context.Background()

	post, err := posts.Create(ctx, "user-a", CreatePostInput{Title: "Black Backpack", Description: "d"})
	if err != nil {
		t.Fatalf("Create post failed: %v", err)
	}

	msg, chat, err := chats.SendMessage(ctx, "user-b", SendMessageInput{
		PeerID: "user-a",
		Text:   "Is this yours?",
		PostID: post.ID,
	})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if chat.ID != "user-a_user-b" {
		t.Fatalf("chat id = %q, want user-a_user-b", chat.ID)
	}
	if chat.UserAID != "user-a" || chat.UserBID != "user-b" {
		t.Fatalf("participants = %q/%q, want sorted pair", chat.UserAID, chat.UserBID)
	}
	if chat.PostTitle != "Black Backpack" {
		t.Fatalf("post title = %q", chat.PostTitle)
	}
	if chat.LastMessage != "Is this yours?" || chat.LastSenderID != "user-b" {
		t.Fatalf("last message = %q from %q", chat.LastMessage, chat.LastSenderID)
	}
	if msg.SenderName != "Bob" {
		t.Fatalf("sender name = %q, want Bob", msg.SenderName)
	}

	// message append then chat upsert, one each
	if m.messageInserts != 1 || m.chatUpserts != 1 {
		t.Fatalf("writes = %d messages, %d upserts; want 1 and 1", m.messageInserts, m.chatUpserts)
	}
}

func TestSendMessageUpdatesExistingChat(t *testing.T) {
	chats, _, m := newChatFixture()
	ctx := context.Background()

	if _, _, err := chats.SendMessage(ctx, "user-a", SendMessageInput{PeerID: "user-b", Text: "first"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	_, chat, err := chats.SendMessage(ctx, "user-b", SendMessageInput{PeerID: "user-a", Text: "second"})
	if err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}

	if chat.LastMessage != "second" || chat.LastSenderID != "user-b" {
		t.Fatalf("chat not updated: last=%q sender=%q", chat.LastMessage, chat.LastSenderID)
	}
	if m.messageInserts != 2 || m.chatUpserts != 2 {
		t.Fatalf("writes = %d messages, %d upserts; want 2 and 2", m.messageInserts, m.chatUpserts)
	}

	msgs, err := chats.chatRepo.ListMessages(ctx, chat.ID, messageHistoryLimit)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Fatalf("history out of order: %+v", msgs)
	}
}

func TestHistoryCapKeepsNewestMessages(t *testing.T) {
	chats, _, _ := newChatFixture()
	ctx := context.Background()

	for i := 0; i <= messageHistoryLimit; i++ {
		text := fmt.Sprintf("msg %d", i)
		if _, _, err := chats.SendMessage(ctx, "user-a", SendMessageInput{PeerID: "user-b", Text: text}); err != nil {
			t.Fatalf("SendMessage %d failed: %v", i, err)
		}
	}

	chat, msgs, err := chats.Conversation(ctx, "user-b", "user-a")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if len(msgs) != messageHistoryLimit {
		t.Fatalf("history len = %d, want %d", len(msgs), messageHistoryLimit)
	}

	newest := fmt.Sprintf("msg %d", messageHistoryLimit)
	if msgs[len(msgs)-1].Text != newest {
		t.Fatalf("last history entry = %q, want %q", msgs[len(msgs)-1].Text, newest)
	}
	if chat.LastMessage != newest {
		t.Fatalf("chat last message = %q, want %q", chat.LastMessage, newest)
	}
	// the oldest message fell off the window
	if msgs[0].Text != "msg 1" {
		t.Fatalf("first history entry = %q, want msg 1", msgs[0].Text)
	}
}

func TestSendMessageResolvedChatRejected(t *testing.T) {
	chats, posts, m := newChatFixture()
	ctx := context.Background()

	post, err := posts.Create(ctx, "user-a", CreatePostInput{Title: "Keys", Description: "d"})
	if err != nil {
		t.Fatalf("Create post failed: %v", err)
	}
	if _, _, err := chats.SendMessage(ctx, "user-b", SendMessageInput{PeerID: "user-a", Text: "hello", PostID: post.ID}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if _, err := posts.SetResolved(ctx, "user-a", post.ID, true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	before := m.messageInserts
	if _, _, err := chats.SendMessage(ctx, "user-b", SendMessageInput{PeerID: "user-a", Text: "still there?"}); !errors.Is(err, ErrChatResolved) {
		t.Fatalf("send into resolved chat error = %v, want ErrChatResolved", err)
	}
	if m.messageInserts != before {
		t.Fatal("rejected send wrote a message")
	}
}

func TestConversationAbsentChat(t *testing.T) {
	chats, _, _ := newChatFixture()

	chat, msgs, err := chats.Conversation(context.Background(), "user-a", "user-b")
	if err != nil {
		t.Fatalf("Conversation failed: %v", err)
	}
	if chat != nil || msgs != nil {
		t.Fatalf("expected empty conversation, got chat=%v msgs=%v", chat, msgs)
	}
}

func TestPeerOf(t *testing.T) {
	chats, _, m := newChatFixture()
	ctx := context.Background()

	if _, _, err := chats.SendMessage(ctx, "user-a", SendMessageInput{PeerID: "user-b", Text: "hi"}); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	chat, err := memChatStore{m}.GetByID(ctx, "user-a_user-b")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got := PeerOf(chat, "user-a"); got != "user-b" {
		t.Fatalf("PeerOf(user-a) = %q, want user-b", got)
	}
	if got := PeerOf(chat, "user-b"); got != "user-a" {
		t.Fatalf("PeerOf(user-b) = %q, want user-a", got)
	}
}
