package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"foundit-backend/internal/middleware"
	"foundit-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// WebSocketHandler handles live-query WebSocket connections
type WebSocketHandler struct {
	hub         *services.WSHub
	userService *services.UserService
	chatService *services.ChatService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	chatService *services.ChatService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		userService: userService,
		chatService: chatService,
	}
}

// wsSender adapts one gorilla connection to the hub's Sender. Writes
// are serialized; gorilla forbids concurrent writers on a connection.
type wsSender struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSender) Send(msg services.WSMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(msg)
}

// clientFrame is what we accept from the socket
type clientFrame struct {
	Type    string                   `json:"type"`
	Channel string                   `json:"channel"`
	Params  services.SubscribeParams `json:"params"`
	PeerID  string                   `json:"peer_id"`
	Text    string                   `json:"text"`
	PostID  string                   `json:"post_id"`
}

// HandleWebSocket handles GET /ws?token=...
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.ValidateWebSocketToken(r.URL.Query().Get("token"), h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	cs := h.hub.Register(userID, &wsSender{conn: conn})
	defer h.hub.Unregister(cs)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	ctx := r.Context()
	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket read error")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(messageBytes, &frame); err != nil {
			h.sendError(cs, "", "invalid frame")
			continue
		}

		switch frame.Type {
		case "subscribe":
			if err := h.hub.Subscribe(ctx, cs, frame.Channel, frame.Params); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to deliver initial snapshot")
				return
			}

		case "unsubscribe":
			h.hub.Unsubscribe(cs, frame.Channel)

		case "send_message":
			h.handleSendMessage(ctx, cs, userID, frame)

		case "ping":
			if err := cs.Send(services.WSMessage{Type: "pong"}); err != nil {
				return
			}

		default:
			h.sendError(cs, frame.Channel, "unknown message type: "+frame.Type)
		}
	}
}

func (h *WebSocketHandler) handleSendMessage(ctx context.Context, cs *services.ClientSession, userID string, frame clientFrame) {
	_, chat, err := h.chatService.SendMessage(ctx, userID, services.SendMessageInput{
		PeerID: frame.PeerID,
		Text:   frame.Text,
		PostID: frame.PostID,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage),
			errors.Is(err, services.ErrSelfChat),
			errors.Is(err, services.ErrChatResolved):
			h.sendError(cs, services.ChannelChat, err.Error())
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send message")
			h.sendError(cs, services.ChannelChat, "failed to send message")
		}
		return
	}
	h.hub.ChatChanged(ctx, chat.ID)
}

func (h *WebSocketHandler) sendError(cs *services.ClientSession, channel, message string) {
	if err := cs.Send(services.WSMessage{Type: "error", Channel: channel, Message: message}); err != nil {
		h.hub.Unregister(cs)
	}
}
