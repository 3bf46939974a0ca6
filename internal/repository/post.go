package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foundit-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postColumns = `id, kind, title, description, location, author_id, author_name,
		anonymous, resolved, image_url, image_key, created_at`

// PostRepository handles database operations for posts
type PostRepository struct {
	db *pgxpool.Pool
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *pgxpool.Pool) *PostRepository {
	return &PostRepository{db: db}
}

func scanPost(row pgx.Row) (*models.Post, error) {
	var post models.Post
	err := row.Scan(
		&post.ID, &post.Kind, &post.Title, &post.Description, &post.Location,
		&post.AuthorID, &post.AuthorName, &post.Anonymous, &post.Resolved,
		&post.ImageURL, &post.ImageKey, &post.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, kind, title, description, location, author_id, author_name,
			anonymous, resolved, image_url, image_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query,
		post.ID, post.Kind, post.Title, post.Description, post.Location,
		post.AuthorID, post.AuthorName, post.Anonymous, post.Resolved,
		post.ImageURL, post.ImageKey,
	).Scan(&post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// List retrieves every post, newest first.
func (r *PostRepository) List(ctx context.Context) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC`
	return r.queryPosts(ctx, query)
}

// ListByAuthor retrieves the posts owned by a user, newest first.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE author_id = $1 ORDER BY created_at DESC`
	return r.queryPosts(ctx, query, authorID)
}

func (r *PostRepository) queryPosts(ctx context.Context, query string, args ...any) ([]models.Post, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}
	return posts, nil
}

// SetResolved flips the resolved flag on a post and cascades it to
// every chat referencing the post, in a single transaction. Either both
// updates land or neither does.
func (r *PostRepository) SetResolved(ctx context.Context, postID string, resolved bool) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin resolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `UPDATE posts SET resolved = $1 WHERE id = $2`, resolved, postID)
	if err != nil {
		return fmt.Errorf("failed to update post resolved flag: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	_, err = tx.Exec(ctx,
		`UPDATE chats SET resolved = $1, updated_at = $2 WHERE post_id = $3`,
		resolved, time.Now(), postID,
	)
	if err != nil {
		return fmt.Errorf("failed to cascade resolved flag to chats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit resolve tx: %w", err)
	}
	return nil
}

// Delete permanently removes a post
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
