package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"foundit-backend/internal/feedview"
	"foundit-backend/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrForbidden is returned when a user acts on a post they do not own.
var ErrForbidden = errors.New("only the post's author may do that")

// ValidationError is a local input failure. It is raised before any
// store call and is shown inline next to the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PostStore is the persistence surface the post service needs
type PostStore interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context) ([]models.Post, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
	SetResolved(ctx context.Context, postID string, resolved bool) error
	Delete(ctx context.Context, id string) error
}

// PostIndexer pushes posts into the optional search index
type PostIndexer interface {
	IndexPost(post models.Post) error
	DeletePost(id string) error
	Healthy() bool
}

// PostService handles post-related business logic
type PostService struct {
	postRepo PostStore
	userRepo UserStore
	index    PostIndexer // nil when search is not configured
}

// NewPostService creates a new post service
func NewPostService(postRepo PostStore, userRepo UserStore, index PostIndexer) *PostService {
	return &PostService{
		postRepo: postRepo,
		userRepo: userRepo,
		index:    index,
	}
}

// CreatePostInput is the submission payload for a new post
type CreatePostInput struct {
	Kind        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	Anonymous   bool   `json:"anonymous"`
	ImageURL    string `json:"image_url"`
	ImageKey    string `json:"image_key"`
}

// Create validates and stores a post. Required-field validation happens
// before any store call; a blank title or description never touches the
// database.
func (s *PostService) Create(ctx context.Context, authorID string, in CreatePostInput) (*models.Post, error) {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" {
		return nil, &ValidationError{Field: "title", Message: "Title is required"}
	}
	if description == "" {
		return nil, &ValidationError{Field: "description", Message: "Description is required"}
	}

	kind := models.PostKind(in.Kind)
	if kind != models.KindFound {
		kind = models.KindLost
	}

	author, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load author: %w", err)
	}

	post := &models.Post{
		ID:          uuid.New().String(),
		Kind:        kind,
		Title:       title,
		Description: description,
		Location:    strings.TrimSpace(in.Location),
		AuthorID:    author.ID,
		AuthorName:  resolveAuthorName(author, in.Anonymous),
		Anonymous:   in.Anonymous,
		Resolved:    false,
	}
	if in.ImageURL != "" {
		post.ImageURL = &in.ImageURL
	}
	if in.ImageKey != "" {
		post.ImageKey = &in.ImageKey
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.indexPost(*post)
	return post, nil
}

// resolveAuthorName picks the display name attached to a post:
// "Anonymous" when requested, else the profile name, else the local
// part of the email, else "Unknown".
func resolveAuthorName(author *models.User, anonymous bool) string {
	if anonymous {
		return "Anonymous"
	}
	if author.DisplayName != "" {
		return author.DisplayName
	}
	if local, _, ok := strings.Cut(author.Email, "@"); ok && local != "" {
		return local
	}
	return "Unknown"
}

// SetResolved flips the resolved flag on a post the caller owns. The
// same flag cascades to every chat referencing the post in one
// transaction with the primary update.
func (s *PostService) SetResolved(ctx context.Context, userID, postID string, resolved bool) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, ErrForbidden
	}

	if err := s.postRepo.SetResolved(ctx, postID, resolved); err != nil {
		return nil, err
	}
	post.Resolved = resolved

	s.indexPost(*post)
	return post, nil
}

// Delete permanently removes a post the caller owns. There is no
// soft-delete and no undo.
func (s *PostService) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != userID {
		return ErrForbidden
	}

	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}

	if s.index != nil && s.index.Healthy() {
		if err := s.index.DeletePost(postID); err != nil {
			log.Error().Err(err).Str("post_id", postID).Msg("Failed to remove post from search index")
		}
	}
	return nil
}

// Feed returns the filtered, ordered feed snapshot for the given view
// options, plus segment counts over the full list.
func (s *PostService) Feed(ctx context.Context, opts feedview.Options) ([]models.Post, feedview.SegmentCounts, error) {
	posts, err := s.postRepo.List(ctx)
	if err != nil {
		return nil, feedview.SegmentCounts{}, err
	}
	opts.MatchAuthor = true
	return feedview.Apply(posts, opts), feedview.Counts(posts), nil
}

// OwnPosts returns a user's own posts. Resolved posts stay visible to
// their owner regardless of the default feed behavior.
func (s *PostService) OwnPosts(ctx context.Context, userID string, opts feedview.Options) ([]models.Post, error) {
	posts, err := s.postRepo.ListByAuthor(ctx, userID)
	if err != nil {
		return nil, err
	}
	opts.IncludeResolved = true
	opts.MatchAuthor = false
	return feedview.Apply(posts, opts), nil
}

func (s *PostService) indexPost(post models.Post) {
	if s.index == nil || !s.index.Healthy() {
		return
	}
	if err := s.index.IndexPost(post); err != nil {
		log.Error().Err(err).Str("post_id", post.ID).Msg("Failed to index post")
	}
}
