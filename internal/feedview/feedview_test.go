package feedview

import (
	"testing"
	"time"

	"foundit-backend/internal/models"
)

func post(id, kind, title, desc, loc, author string, resolved bool, created time.Time) models.Post {
	return models.Post{
		ID:          id,
		Kind:        models.PostKind(kind),
		Title:       title,
		Description: desc,
		Location:    loc,
		AuthorName:  author,
		Resolved:    resolved,
		CreatedAt:   created,
	}
}

func ids(posts []models.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func sampleFeed() []models.Post {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.Post{
		post("p1", "lost", "Black Backpack", "North Face, has stickers", "Library", "Ada", false, base.Add(3*time.Hour)),
		post("p2", "found", "Water Bottle", "Blue metal bottle", "Gym", "Ben", false, base.Add(2*time.Hour)),
		post("p3", "lost", "AirPods Case", "White case, scratched", "Cafeteria", "Cleo", true, base.Add(1*time.Hour)),
		post("p4", "found", "Umbrella", "Left near the library entrance", "Library", "Dana", false, base),
	}
}

func TestApplyStageComposition(t *testing.T) {
	posts := sampleFeed()

	got := Apply(posts, Options{Segment: SegmentFound, Search: "library", MatchAuthor: true})
	if len(got) != 1 || got[0].ID != "p4" {
		t.Fatalf("segment+search = %v, want [p4]", ids(got))
	}

	// The search stage narrows the segment stage's output, never the
	// original list: "library" also matches p1 (lost), which must not
	// reappear after the found-only segment filter.
	got = Apply(posts, Options{Segment: SegmentFound, Search: "backpack"})
	if len(got) != 0 {
		t.Fatalf("search must not widen past segment filter, got %v", ids(got))
	}
}

func TestApplySearchFields(t *testing.T) {
	posts := sampleFeed()

	// case-insensitive, matches any of title/description/location
	for _, q := range []string{"BACKPACK", "north face", "gym"} {
		if got := Apply(posts, Options{Search: q}); len(got) != 1 {
			t.Fatalf("search %q = %v, want one match", q, ids(got))
		}
	}

	// author name only matches when the view asks for it
	if got := Apply(posts, Options{Search: "ben"}); len(got) != 0 {
		t.Fatalf("author matched without MatchAuthor: %v", ids(got))
	}
	if got := Apply(posts, Options{Search: "ben", MatchAuthor: true}); len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("author search = %v, want [p2]", ids(got))
	}

	// blank search keeps everything (minus resolved by default)
	if got := Apply(posts, Options{Search: "   "}); len(got) != 3 {
		t.Fatalf("blank search = %v, want 3 unresolved posts", ids(got))
	}
}

func TestApplyResolvedVisibility(t *testing.T) {
	posts := sampleFeed()

	for _, p := range Apply(posts, Options{}) {
		if p.Resolved {
			t.Fatalf("resolved post %s visible in default view", p.ID)
		}
	}

	got := Apply(posts, Options{IncludeResolved: true})
	if len(got) != len(posts) {
		t.Fatalf("IncludeResolved lost posts: got %d, want %d", len(got), len(posts))
	}
}

func TestApplySortOrders(t *testing.T) {
	posts := sampleFeed()

	latest := Apply(posts, Options{IncludeResolved: true})
	want := []string{"p1", "p2", "p3", "p4"}
	for i, id := range ids(latest) {
		if id != want[i] {
			t.Fatalf("latest order = %v, want %v", ids(latest), want)
		}
	}

	alpha := Apply(posts, Options{Sort: SortAlpha, IncludeResolved: true})
	want = []string{"p3", "p1", "p4", "p2"}
	for i, id := range ids(alpha) {
		if id != want[i] {
			t.Fatalf("alpha order = %v, want %v", ids(alpha), want)
		}
	}
}

func TestApplyMissingTimestampSortsOldest(t *testing.T) {
	posts := []models.Post{
		post("old", "lost", "a", "", "", "", false, time.Time{}),
		post("new", "lost", "b", "", "", "", false, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	got := Apply(posts, Options{})
	if got[0].ID != "new" || got[1].ID != "old" {
		t.Fatalf("zero timestamp should sort last under latest: %v", ids(got))
	}
}

func TestApplySortStability(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	posts := []models.Post{
		post("a", "lost", "Same Title", "", "", "", false, created),
		post("b", "lost", "Same Title", "", "", "", false, created),
		post("c", "lost", "Same Title", "", "", "", false, created),
	}

	for _, key := range []SortKey{SortLatest, SortAlpha} {
		got := Apply(posts, Options{Sort: key})
		if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
			t.Fatalf("sort %q not stable for equal keys: %v", key, ids(got))
		}
	}
}

func TestApplyIsPureAndIdempotent(t *testing.T) {
	posts := sampleFeed()
	opts := Options{Segment: SegmentLost, Search: "a", Sort: SortAlpha, MatchAuthor: true}

	first := Apply(posts, opts)
	second := Apply(posts, opts)
	if len(first) != len(second) {
		t.Fatalf("repeated apply changed length: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("repeated apply changed order: %v vs %v", ids(first), ids(second))
		}
	}

	// input list untouched
	if posts[0].ID != "p1" || posts[3].ID != "p4" {
		t.Fatalf("Apply mutated its input: %v", ids(posts))
	}
}

func TestApplyDefaultsMissingKind(t *testing.T) {
	posts := []models.Post{post("x", "", "No Kind", "", "", "", false, time.Time{})}

	if got := Apply(posts, Options{Segment: SegmentLost}); len(got) != 1 {
		t.Fatalf("missing kind should default to lost, got %v", ids(got))
	}
	if got := Apply(posts, Options{Segment: SegmentFound}); len(got) != 0 {
		t.Fatalf("missing kind matched found segment: %v", ids(got))
	}
}

func TestCounts(t *testing.T) {
	c := Counts(sampleFeed())
	if c.All != 4 || c.Lost != 2 || c.Found != 2 {
		t.Fatalf("Counts = %+v, want all=4 lost=2 found=2", c)
	}
}
