package services

import (
	"context"
	"strings"
	"sync"

	"foundit-backend/internal/feedview"
	"foundit-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Subscription channels. A connection holds at most one live
// subscription per channel name; subscribing again replaces the
// previous one.
const (
	ChannelFeed    = "feed"
	ChannelMyPosts = "my_posts"
	ChannelChats   = "chats"
	ChannelChat    = "chat"
)

// WSMessage is the frame exchanged over a live connection
type WSMessage struct {
	Type    string           `json:"type"`
	Channel string           `json:"channel,omitempty"`
	Params  *SubscribeParams `json:"params,omitempty"`
	Data    interface{}      `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
}

// SubscribeParams selects what a channel delivers
type SubscribeParams struct {
	Segment         string `json:"segment,omitempty"`
	Search          string `json:"search,omitempty"`
	Sort            string `json:"sort,omitempty"`
	IncludeResolved bool   `json:"include_resolved,omitempty"`
	PeerID          string `json:"peer_id,omitempty"`
}

// FeedSnapshot is the payload of a feed or my_posts snapshot frame
type FeedSnapshot struct {
	Posts  []models.Post          `json:"posts"`
	Counts feedview.SegmentCounts `json:"counts"`
}

// ChatSnapshot is the payload of a chat snapshot frame
type ChatSnapshot struct {
	Chat     *models.Chat     `json:"chat"`
	Messages []models.Message `json:"messages"`
}

// Sender delivers a frame to one connection
type Sender interface {
	Send(msg WSMessage) error
}

// ClientSession is one authenticated websocket connection and its live
// subscriptions.
type ClientSession struct {
	UserID string
	sender Sender

	mu   sync.Mutex
	subs map[string]SubscribeParams
}

// Send writes one frame to the connection behind this session
func (cs *ClientSession) Send(msg WSMessage) error {
	return cs.sender.Send(msg)
}

// WSHub tracks connected clients and re-delivers full snapshots when
// the underlying collections change. Every delivery replaces the
// subscriber's whole list; there is no incremental patching.
type WSHub struct {
	mu      sync.RWMutex
	clients map[*ClientSession]struct{}

	postService *PostService
	chatService *ChatService
}

// NewWSHub creates a new hub
func NewWSHub(postService *PostService, chatService *ChatService) *WSHub {
	return &WSHub{
		clients:     make(map[*ClientSession]struct{}),
		postService: postService,
		chatService: chatService,
	}
}

// Register adds a connection for a user
func (h *WSHub) Register(userID string, sender Sender) *ClientSession {
	cs := &ClientSession{
		UserID: userID,
		sender: sender,
		subs:   make(map[string]SubscribeParams),
	}

	h.mu.Lock()
	h.clients[cs] = struct{}{}
	h.mu.Unlock()

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
	return cs
}

// Unregister drops a connection and closes all of its subscriptions
func (h *WSHub) Unregister(cs *ClientSession) {
	h.mu.Lock()
	delete(h.clients, cs)
	h.mu.Unlock()

	cs.mu.Lock()
	cs.subs = make(map[string]SubscribeParams)
	cs.mu.Unlock()

	log.Info().Str("user_id", cs.UserID).Msg("WebSocket connection unregistered")
}

// IsOnline reports whether a user has at least one live connection
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for cs := range h.clients {
		if cs.UserID == userID {
			return true
		}
	}
	return false
}

// Subscribe opens a live subscription on a channel and delivers the
// initial snapshot. An existing subscription on the same channel is
// closed first, so the connection never holds two for one logical view.
func (h *WSHub) Subscribe(ctx context.Context, cs *ClientSession, channel string, params SubscribeParams) error {
	switch channel {
	case ChannelFeed, ChannelMyPosts, ChannelChats, ChannelChat:
	default:
		return cs.sender.Send(WSMessage{Type: "error", Channel: channel, Message: "unknown channel"})
	}
	if channel == ChannelChat && params.PeerID == "" {
		return cs.sender.Send(WSMessage{Type: "error", Channel: channel, Message: "peer_id is required"})
	}

	cs.mu.Lock()
	delete(cs.subs, channel)
	cs.subs[channel] = params
	cs.mu.Unlock()

	return h.refresh(ctx, cs, channel, params)
}

// Unsubscribe closes a subscription
func (h *WSHub) Unsubscribe(cs *ClientSession, channel string) {
	cs.mu.Lock()
	delete(cs.subs, channel)
	cs.mu.Unlock()
}

// PostsChanged re-delivers feed and my_posts snapshots to every
// subscriber after any post mutation.
func (h *WSHub) PostsChanged(ctx context.Context) {
	h.eachSubscription(func(cs *ClientSession, channel string, params SubscribeParams) {
		if channel == ChannelFeed || channel == ChannelMyPosts {
			h.deliver(ctx, cs, channel, params)
		}
	})
}

// ChatChanged re-delivers snapshots touching one conversation: the
// chat-list views of both participants and any open chat view on it.
func (h *WSHub) ChatChanged(ctx context.Context, chatID string) {
	h.eachSubscription(func(cs *ClientSession, channel string, params SubscribeParams) {
		switch channel {
		case ChannelChats:
			if participatesIn(chatID, cs.UserID) {
				h.deliver(ctx, cs, channel, params)
			}
		case ChannelChat:
			if ChatID(cs.UserID, params.PeerID) == chatID {
				h.deliver(ctx, cs, channel, params)
			}
		}
	})
}

// AllChatsChanged re-delivers every chat-related snapshot. Used when a
// post resolution cascades to an unknown set of chats.
func (h *WSHub) AllChatsChanged(ctx context.Context) {
	h.eachSubscription(func(cs *ClientSession, channel string, params SubscribeParams) {
		if channel == ChannelChats || channel == ChannelChat {
			h.deliver(ctx, cs, channel, params)
		}
	})
}

func (h *WSHub) eachSubscription(fn func(cs *ClientSession, channel string, params SubscribeParams)) {
	h.mu.RLock()
	clients := make([]*ClientSession, 0, len(h.clients))
	for cs := range h.clients {
		clients = append(clients, cs)
	}
	h.mu.RUnlock()

	for _, cs := range clients {
		cs.mu.Lock()
		subs := make(map[string]SubscribeParams, len(cs.subs))
		for ch, p := range cs.subs {
			subs[ch] = p
		}
		cs.mu.Unlock()

		for ch, p := range subs {
			fn(cs, ch, p)
		}
	}
}

func (h *WSHub) deliver(ctx context.Context, cs *ClientSession, channel string, params SubscribeParams) {
	if err := h.refresh(ctx, cs, channel, params); err != nil {
		// a dead connection: drop it, the read loop will clean up
		log.Error().Err(err).Str("user_id", cs.UserID).Str("channel", channel).Msg("Failed to deliver snapshot")
		h.Unregister(cs)
	}
}

// refresh builds the current full snapshot for a subscription and sends
// it. A query failure leaves the subscriber at its last received value;
// there is no automatic retry.
func (h *WSHub) refresh(ctx context.Context, cs *ClientSession, channel string, params SubscribeParams) error {
	var data interface{}

	switch channel {
	case ChannelFeed:
		posts, counts, err := h.postService.Feed(ctx, feedview.Options{
			Segment:         feedview.Segment(params.Segment),
			Search:          params.Search,
			Sort:            feedview.SortKey(params.Sort),
			IncludeResolved: params.IncludeResolved,
		})
		if err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to build snapshot")
			return nil
		}
		data = FeedSnapshot{Posts: posts, Counts: counts}

	case ChannelMyPosts:
		posts, err := h.postService.OwnPosts(ctx, cs.UserID, feedview.Options{
			Segment: feedview.Segment(params.Segment),
			Search:  params.Search,
			Sort:    feedview.SortKey(params.Sort),
		})
		if err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to build snapshot")
			return nil
		}
		data = FeedSnapshot{Posts: posts, Counts: feedview.Counts(posts)}

	case ChannelChats:
		chats, err := h.chatService.ListChats(ctx, cs.UserID)
		if err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to build snapshot")
			return nil
		}
		data = chats

	case ChannelChat:
		chat, messages, err := h.chatService.Conversation(ctx, cs.UserID, params.PeerID)
		if err != nil {
			log.Error().Err(err).Str("channel", channel).Msg("Failed to build snapshot")
			return nil
		}
		data = ChatSnapshot{Chat: chat, Messages: messages}
	}

	return cs.sender.Send(WSMessage{Type: "snapshot", Channel: channel, Data: data})
}

// participatesIn reports whether a user is one of the two participants
// encoded in a canonical chat ID.
func participatesIn(chatID, userID string) bool {
	a, b, ok := strings.Cut(chatID, "_")
	if !ok {
		return false
	}
	return a == userID || b == userID
}
