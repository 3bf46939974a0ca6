// Package feedview shapes a full post snapshot into the list a feed
// view renders. The transform is a pure function of its inputs: same
// posts and options always produce the same output in the same order.
package feedview

import (
	"sort"
	"strings"

	"foundit-backend/internal/models"
)

// Segment is the coarse category filter applied to posts.
type Segment string

const (
	SegmentAll   Segment = "all"
	SegmentLost  Segment = "lost"
	SegmentFound Segment = "found"
)

// SortKey selects the final ordering of the list.
type SortKey string

const (
	SortLatest SortKey = "latest" // creation timestamp, newest first
	SortAlpha  SortKey = "alpha"  // title, ascending
)

// Options are the view inputs. The zero value means: all segments, no
// search text, latest first, resolved posts hidden.
type Options struct {
	Segment         Segment
	Search          string
	Sort            SortKey
	IncludeResolved bool
	// MatchAuthor extends the text search to the author display name.
	// The feed view sets it; the owner's own listing does not.
	MatchAuthor bool
}

// Apply filters and orders posts. Stages run in a fixed sequence, each
// narrowing the previous stage's output: segment, text search, resolved
// visibility, then a stable sort. The input slice is not modified.
func Apply(posts []models.Post, opts Options) []models.Post {
	out := make([]models.Post, 0, len(posts))

	// Stage 1: segment
	for _, p := range posts {
		if opts.Segment == "" || opts.Segment == SegmentAll || kindOf(p) == models.PostKind(opts.Segment) {
			out = append(out, p)
		}
	}

	// Stage 2: case-insensitive substring search
	if q := strings.ToLower(strings.TrimSpace(opts.Search)); q != "" {
		matched := out[:0]
		for _, p := range out {
			if matchesQuery(p, q, opts.MatchAuthor) {
				matched = append(matched, p)
			}
		}
		out = matched
	}

	// Stage 3: resolved visibility
	if !opts.IncludeResolved {
		visible := out[:0]
		for _, p := range out {
			if !p.Resolved {
				visible = append(visible, p)
			}
		}
		out = visible
	}

	// Stage 4: stable sort
	switch opts.Sort {
	case SortAlpha:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Title < out[j].Title
		})
	default:
		// missing timestamps sort as zero, i.e. oldest
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	}

	return out
}

// Counts reports segment totals over the full list, before any search
// or visibility narrowing.
type SegmentCounts struct {
	All   int `json:"all"`
	Lost  int `json:"lost"`
	Found int `json:"found"`
}

func Counts(posts []models.Post) SegmentCounts {
	c := SegmentCounts{All: len(posts)}
	for _, p := range posts {
		switch kindOf(p) {
		case models.KindFound:
			c.Found++
		default:
			c.Lost++
		}
	}
	return c
}

// kindOf substitutes the documented default for a missing kind.
func kindOf(p models.Post) models.PostKind {
	if p.Kind == "" {
		return models.KindLost
	}
	return p.Kind
}

func matchesQuery(p models.Post, q string, matchAuthor bool) bool {
	if strings.Contains(strings.ToLower(p.Title), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Location), q) {
		return true
	}
	return matchAuthor && strings.Contains(strings.ToLower(p.AuthorName), q)
}
