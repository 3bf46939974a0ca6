// Package search provides optional full-text post search backed by
// Meilisearch. The service runs fine without it; callers must tolerate
// a nil or unhealthy index.
package search

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"foundit-backend/internal/models"

	meili "github.com/meilisearch/meilisearch-go"
	"github.com/rs/zerolog/log"
)

const idxPosts = "foundit_posts"

// PostRecord is the data indexed per post
type PostRecord struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	AuthorName  string `json:"authorName"`
	Resolved    bool   `json:"resolved"`
}

// Hit is a single search result with highlight markup in Title/Snippet
type Hit struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
	Location string `json:"location"`
}

// Meili indexes and searches posts via Meilisearch
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the posts index. A failed
// initial connection is not fatal; a background loop keeps retrying.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Meilisearch unavailable, search disabled until it recovers")
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxPosts,
		PrimaryKey: "id",
	}); err != nil {
		log.Debug().Err(err).Msg("create posts index (may already exist)")
	}

	index := m.client.Index(idxPosts)
	filterable := []interface{}{"kind", "resolved"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Error().Err(err).Msg("failed to update filterable attributes")
	}
	searchable := []string{"title", "description", "location", "authorName"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Error().Err(err).Msg("failed to update searchable attributes")
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Info().Msg("Meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexPost adds or replaces a post in the index
func (m *Meili) IndexPost(post models.Post) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	rec := PostRecord{
		ID:          post.ID,
		Kind:        string(post.Kind),
		Title:       post.Title,
		Description: post.Description,
		Location:    post.Location,
		AuthorName:  post.AuthorName,
		Resolved:    post.Resolved,
	}
	if _, err := m.client.Index(idxPosts).AddDocuments([]PostRecord{rec}, nil); err != nil {
		return fmt.Errorf("index post: %w", err)
	}
	return nil
}

// DeletePost removes a post from the index
func (m *Meili) DeletePost(id string) error {
	if !m.healthy.Load() {
		return fmt.Errorf("meilisearch unhealthy")
	}
	if _, err := m.client.Index(idxPosts).DeleteDocument(id, nil); err != nil {
		return fmt.Errorf("delete post from index: %w", err)
	}
	return nil
}

// Search runs a full-text query over unresolved posts
func (m *Meili) Search(q string, limit int) ([]Hit, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}
	if limit <= 0 {
		limit = 20
	}

	resp, err := m.client.Index(idxPosts).Search(q, &meili.SearchRequest{
		Limit:                 int64(limit),
		Filter:                "resolved = false",
		AttributesToHighlight: []string{"title", "description"},
		HighlightPreTag:       "<mark>",
		HighlightPostTag:      "</mark>",
	})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	hits := make([]Hit, 0, len(resp.Hits))
	for _, raw := range resp.Hits {
		hits = append(hits, Hit{
			ID:       decodeString(raw, "id"),
			Kind:     decodeString(raw, "kind"),
			Title:    firstNonBlank(decodeFormattedString(raw, "title"), decodeString(raw, "title")),
			Snippet:  firstNonBlank(decodeFormattedString(raw, "description"), decodeString(raw, "description")),
			Location: decodeString(raw, "location"),
		})
	}
	return hits, int(resp.EstimatedTotalHits), nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeFormattedString(hit meili.Hit, key string) string {
	raw, ok := hit["_formatted"]
	if !ok {
		return ""
	}
	var formatted map[string]string
	if err := json.Unmarshal(raw, &formatted); err != nil {
		return ""
	}
	return formatted[key]
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
