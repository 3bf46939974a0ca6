package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"foundit-backend/internal/feedview"
	"foundit-backend/internal/middleware"
	"foundit-backend/internal/repository"
	"foundit-backend/internal/search"
	"foundit-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PostHandler handles lost-and-found post HTTP requests
type PostHandler struct {
	postService *services.PostService
	index       *search.Meili
	hub         *services.WSHub
}

// NewPostHandler creates a new post handler. index may be nil when
// search is not configured.
func NewPostHandler(postService *services.PostService, index *search.Meili, hub *services.WSHub) *PostHandler {
	return &PostHandler{
		postService: postService,
		index:       index,
		hub:         hub,
	}
}

// Create handles POST /api/v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var in services.CreatePostInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	post, err := h.postService.Create(r.Context(), userID, in)
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			respondError(w, verr.Error(), http.StatusUnprocessableEntity)
			return
		}
		log.Error().Err(err).Msg("Failed to create post")
		respondError(w, "Failed to create post", http.StatusInternalServerError)
		return
	}

	log.Info().Str("post_id", post.ID).Str("user_id", userID).Msg("Post created")
	h.hub.PostsChanged(r.Context())
	respondJSON(w, http.StatusCreated, post)
}

// List handles GET /api/v1/posts
func (h *PostHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := feedOptions(r)

	posts, counts, err := h.postService.Feed(r.Context(), opts)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load feed")
		respondError(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, services.FeedSnapshot{Posts: posts, Counts: counts})
}

// Mine handles GET /api/v1/posts/mine
func (h *PostHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	posts, err := h.postService.OwnPosts(r.Context(), userID, feedOptions(r))
	if err != nil {
		log.Error().Err(err).Msg("Failed to load own posts")
		respondError(w, "Failed to load posts", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, services.FeedSnapshot{Posts: posts, Counts: feedview.Counts(posts)})
}

// Search handles GET /api/v1/posts/search
func (h *PostHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.index == nil || !h.index.Healthy() {
		respondError(w, "Search is unavailable", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query().Get("q")
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			respondError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	hits, total, err := h.index.Search(q, limit)
	if err != nil {
		log.Error().Err(err).Str("query", q).Msg("Search failed")
		respondError(w, "Search failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"hits": hits, "total": total})
}

type resolveRequest struct {
	Resolved bool `json:"resolved"`
	Confirm  bool `json:"confirm"`
}

// Resolve handles POST /api/v1/posts/{postID}/resolve. Resolution
// cascades onto every chat opened about the post, so the request must
// carry confirm=true.
func (h *PostHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postID")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Confirm {
		respondError(w, "Resolving closes all chats about this post; repeat with confirm=true", http.StatusPreconditionRequired)
		return
	}

	post, err := h.postService.SetResolved(r.Context(), userID, postID, req.Resolved)
	if err != nil {
		h.respondPostError(w, err, "Failed to resolve post")
		return
	}

	log.Info().Str("post_id", postID).Str("user_id", userID).Bool("resolved", req.Resolved).Msg("Post resolution updated")
	h.hub.PostsChanged(r.Context())
	h.hub.AllChatsChanged(r.Context())
	respondJSON(w, http.StatusOK, post)
}

// Delete handles DELETE /api/v1/posts/{postID}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	postID := chi.URLParam(r, "postID")

	if r.URL.Query().Get("confirm") != "true" {
		respondError(w, "Deletion is permanent; repeat with confirm=true", http.StatusPreconditionRequired)
		return
	}

	if err := h.postService.Delete(r.Context(), userID, postID); err != nil {
		h.respondPostError(w, err, "Failed to delete post")
		return
	}

	log.Info().Str("post_id", postID).Str("user_id", userID).Msg("Post deleted")
	h.hub.PostsChanged(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *PostHandler) respondPostError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		respondError(w, "Post not found", http.StatusNotFound)
	case errors.Is(err, services.ErrForbidden):
		respondError(w, "Only the author may do that", http.StatusForbidden)
	default:
		log.Error().Err(err).Msg(fallback)
		respondError(w, fallback, http.StatusInternalServerError)
	}
}

// feedOptions reads the shared feed-shaping query parameters
func feedOptions(r *http.Request) feedview.Options {
	q := r.URL.Query()
	return feedview.Options{
		Segment:         feedview.Segment(q.Get("segment")),
		Search:          q.Get("search"),
		Sort:            feedview.SortKey(q.Get("sort")),
		IncludeResolved: q.Get("include_resolved") == "true",
	}
}
