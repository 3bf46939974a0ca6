package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"foundit-backend/internal/middleware"
	"foundit-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	chatService *services.ChatService
	userService *services.UserService
	pushService *services.PushService
	hub         *services.WSHub
}

// NewChatHandler creates a new chat handler. pushService may be nil
// when push delivery is not configured.
func NewChatHandler(
	chatService *services.ChatService,
	userService *services.UserService,
	pushService *services.PushService,
	hub *services.WSHub,
) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		pushService: pushService,
		hub:         hub,
	}
}

type sendMessageRequest struct {
	Text   string `json:"text"`
	PostID string `json:"post_id,omitempty"`
}

// List handles GET /api/v1/chats
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	chats, err := h.chatService.ListChats(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list chats")
		respondError(w, "Failed to load chats", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, chats)
}

// Conversation handles GET /api/v1/chats/{peerID}. An absent
// conversation is not an error; the body carries a null chat.
func (h *ChatHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	peerID := chi.URLParam(r, "peerID")

	chat, messages, err := h.chatService.Conversation(r.Context(), userID, peerID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("peer_id", peerID).Msg("Failed to load conversation")
		respondError(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, services.ChatSnapshot{Chat: chat, Messages: messages})
}

// SendMessage handles POST /api/v1/chats/{peerID}/messages
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	peerID := chi.URLParam(r, "peerID")

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, chat, err := h.chatService.SendMessage(ctx, userID, services.SendMessageInput{
		PeerID: peerID,
		Text:   req.Text,
		PostID: req.PostID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage):
			respondError(w, "Message text is required", http.StatusUnprocessableEntity)
		case errors.Is(err, services.ErrSelfChat):
			respondError(w, "Cannot message yourself", http.StatusUnprocessableEntity)
		case errors.Is(err, services.ErrChatResolved):
			respondError(w, "This conversation is closed", http.StatusConflict)
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send message")
			respondError(w, "Failed to send message", http.StatusInternalServerError)
		}
		return
	}

	h.hub.ChatChanged(ctx, chat.ID)
	h.notifyPeer(ctx, peerID, msg.SenderName, msg.Text)

	respondJSON(w, http.StatusCreated, map[string]interface{}{"message": msg, "chat": chat})
}

// notifyPeer pushes a new-message alert to the recipient's device when
// they have no live connection. Best effort; delivery failures are
// logged and dropped.
func (h *ChatHandler) notifyPeer(ctx context.Context, peerID, senderName, text string) {
	if h.pushService == nil || h.hub.IsOnline(peerID) {
		return
	}

	peer, err := h.userService.GetByID(ctx, peerID)
	if err != nil {
		log.Error().Err(err).Str("peer_id", peerID).Msg("Failed to load push recipient")
		return
	}
	if peer.PushToken == nil || *peer.PushToken == "" {
		return
	}

	if err := h.pushService.NotifyNewMessage(*peer.PushToken, senderName, text); err != nil {
		log.Error().Err(err).Str("peer_id", peerID).Msg("Failed to deliver push notification")
	}
}
