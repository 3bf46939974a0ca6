package services

import (
	"context"
	"errors"
	"testing"

	"foundit-backend/internal/feedview"
)

func newPostFixture() (*PostService, *memStore) {
	m := newMemStore()
	m.addUser("user-1", "ada@campus.edu", "Ada Lovelace")
	m.addUser("user-2", "ben@campus.edu", "")
	svc := NewPostService(memPostStore{m}, m, nil)
	return svc, m
}

func TestCreateValidatesBeforeStore(t *testing.T) {
	svc, m := newPostFixture()
	ctx := context.Background()

	cases := []CreatePostInput{
		{Title: "", Description: "desc"},
		{Title: "   ", Description: "desc"},
		{Title: "title", Description: ""},
		{Title: "title", Description: " \t "},
	}
	for _, in := range cases {
		_, err := svc.Create(ctx, "user-1", in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Create(%+v) error = %v, want ValidationError", in, err)
		}
	}

	if m.postInserts != 0 {
		t.Fatalf("invalid submissions reached the store: %d inserts", m.postInserts)
	}
}

func TestCreateIssuesSingleInsert(t *testing.T) {
	svc, m := newPostFixture()

	post, err := svc.Create(context.Background(), "user-1", CreatePostInput{
		Kind:        "lost",
		Title:       "  Black Backpack  ",
		Description: "North Face, has stickers",
		Location:    "Library",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if m.postInserts != 1 {
		t.Fatalf("expected exactly one insert, got %d", m.postInserts)
	}
	if post.Resolved {
		t.Fatal("new post must start unresolved")
	}
	if post.Title != "Black Backpack" {
		t.Fatalf("title not trimmed: %q", post.Title)
	}
	if post.AuthorName != "Ada Lovelace" {
		t.Fatalf("author name = %q, want display name", post.AuthorName)
	}
}

func TestCreateAuthorNameResolution(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	anon, err := svc.Create(ctx, "user-1", CreatePostInput{Title: "t", Description: "d", Anonymous: true})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if anon.AuthorName != "Anonymous" {
		t.Fatalf("anonymous author name = %q, want Anonymous", anon.AuthorName)
	}

	// no display name: fall back to the local part of the email
	fromEmail, err := svc.Create(ctx, "user-2", CreatePostInput{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if fromEmail.AuthorName != "ben" {
		t.Fatalf("email fallback author name = %q, want ben", fromEmail.AuthorName)
	}
}

func TestSetResolvedOwnerOnly(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	post, err := svc.Create(ctx, "user-1", CreatePostInput{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := svc.SetResolved(ctx, "user-2", post.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner resolve error = %v, want ErrForbidden", err)
	}
	if err := svc.Delete(ctx, "user-2", post.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner delete error = %v, want ErrForbidden", err)
	}

	resolved, err := svc.SetResolved(ctx, "user-1", post.ID, true)
	if err != nil {
		t.Fatalf("owner resolve failed: %v", err)
	}
	if !resolved.Resolved {
		t.Fatal("resolve did not flip the flag")
	}
}

func TestResolvedHiddenFromDefaultFeedButNotOwner(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	post, err := svc.Create(ctx, "user-1", CreatePostInput{Title: "Black Backpack", Description: "d"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.SetResolved(ctx, "user-1", post.ID, true); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	feed, _, err := svc.Feed(ctx, feedview.Options{})
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	for _, p := range feed {
		if p.ID == post.ID {
			t.Fatal("resolved post visible in default feed")
		}
	}

	withResolved, _, err := svc.Feed(ctx, feedview.Options{IncludeResolved: true})
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(withResolved) != 1 || withResolved[0].ID != post.ID {
		t.Fatal("resolved post missing when visibility requested")
	}

	own, err := svc.OwnPosts(ctx, "user-1", feedview.Options{})
	if err != nil {
		t.Fatalf("OwnPosts failed: %v", err)
	}
	if len(own) != 1 || own[0].ID != post.ID {
		t.Fatal("resolved post hidden from its owner's listing")
	}
}

func TestDeleteRemovesFromSnapshots(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	post, err := svc.Create(ctx, "user-1", CreatePostInput{Title: "t", Description: "d"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(ctx, "user-1", post.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	feed, _, err := svc.Feed(ctx, feedview.Options{IncludeResolved: true})
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	for _, p := range feed {
		if p.ID == post.ID {
			t.Fatal("deleted post still present in snapshot")
		}
	}
}
