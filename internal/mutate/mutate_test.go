package mutate

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"warbler/internal/store/memory"
	"warbler/pkg/domain"
)

func newSeededStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	var n int
	store.SetIDFunc(func() string {
		n++
		return fmt.Sprintf("gen-%d", n)
	})
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var ticks int
	store.SetNowFunc(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	})

	ctx := context.Background()
	for _, row := range []domain.Row{
		{"id": "u1", "username": "ada42", "following": []string{}, "followers": []string{}},
		{"id": "u2", "username": "grace7", "following": []string{}, "followers": []string{}},
	} {
		if _, err := store.Insert(ctx, domain.TableUsers, row); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	if _, err := store.Insert(ctx, domain.TableUserStats, domain.Row{
		"id": "s1", "user_id": "u1", "likes": []string{}, "tweets": []string{},
	}); err != nil {
		t.Fatalf("seed stats: %v", err)
	}
	if _, err := store.Insert(ctx, domain.TableTweets, domain.Row{
		"id": "t1", "created_by": "u2", "text": "hello", "user_likes": []string{}, "user_retweets": []string{},
	}); err != nil {
		t.Fatalf("seed tweet: %v", err)
	}
	return store
}

func mustRow(t *testing.T, store domain.Store, table, id string) domain.Row {
	t.Helper()
	row, err := store.SelectSingle(context.Background(), domain.ByID(table, id))
	if err != nil {
		t.Fatalf("load %s/%s: %v", table, id, err)
	}
	return row
}

func ids(v any) []string { return stringList(v) }

func TestManageFollowRoundTrip(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageFollow(ctx, store, Follow, "u1", "u2"); err != nil {
		t.Fatalf("follow: %v", err)
	}
	user := mustRow(t, store, domain.TableUsers, "u1")
	target := mustRow(t, store, domain.TableUsers, "u2")
	if got := ids(user["following"]); len(got) != 1 || got[0] != "u2" {
		t.Fatalf("following not updated: %v", got)
	}
	if got := ids(target["followers"]); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("followers not updated: %v", got)
	}
	if user["updated_at"] == nil {
		t.Fatalf("expected updated_at on follower row")
	}

	if err := ManageFollow(ctx, store, Unfollow, "u1", "u2"); err != nil {
		t.Fatalf("unfollow: %v", err)
	}
	if got := ids(mustRow(t, store, domain.TableUsers, "u1")["following"]); len(got) != 0 {
		t.Fatalf("unfollow left residue: %v", got)
	}
	if got := ids(mustRow(t, store, domain.TableUsers, "u2")["followers"]); len(got) != 0 {
		t.Fatalf("unfollow left residue: %v", got)
	}

	if err := ManageFollow(ctx, store, Follow, "u1", "ghost"); err == nil {
		t.Fatalf("expected error for missing target")
	}
}

func TestManageLikePairsWrites(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageLike(ctx, store, Like, "u1", "t1"); err != nil {
		t.Fatalf("like: %v", err)
	}
	tweet := mustRow(t, store, domain.TableTweets, "t1")
	stats := mustRow(t, store, domain.TableUserStats, "s1")
	if got := ids(tweet["user_likes"]); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("tweet likes: %v", got)
	}
	if got := ids(stats["likes"]); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("stats likes: %v", got)
	}

	if err := ManageLike(ctx, store, Unlike, "u1", "t1"); err != nil {
		t.Fatalf("unlike: %v", err)
	}
	if got := ids(mustRow(t, store, domain.TableTweets, "t1")["user_likes"]); len(got) != 0 {
		t.Fatalf("unlike left residue: %v", got)
	}

	if err := ManageLike(ctx, store, Like, "u1", "ghost"); !errors.Is(err, ErrTweetNotFound) {
		t.Fatalf("expected ErrTweetNotFound, got %v", err)
	}
	if err := ManageLike(ctx, store, Like, "u2", "t1"); !errors.Is(err, ErrStatsNotFound) {
		t.Fatalf("expected ErrStatsNotFound, got %v", err)
	}
}

func TestManageRetweetPairsWrites(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageRetweet(ctx, store, Retweet, "u1", "t1"); err != nil {
		t.Fatalf("retweet: %v", err)
	}
	if got := ids(mustRow(t, store, domain.TableTweets, "t1")["user_retweets"]); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("tweet retweets: %v", got)
	}
	if got := ids(mustRow(t, store, domain.TableUserStats, "s1")["tweets"]); len(got) != 1 || got[0] != "t1" {
		t.Fatalf("stats tweets: %v", got)
	}
	if err := ManageRetweet(ctx, store, Unretweet, "u1", "t1"); err != nil {
		t.Fatalf("unretweet: %v", err)
	}
	if got := ids(mustRow(t, store, domain.TableTweets, "t1")["user_retweets"]); len(got) != 0 {
		t.Fatalf("unretweet left residue: %v", got)
	}
}

func TestManageBookmarkAndClear(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageBookmark(ctx, store, BookmarkAdd, "u1", "t1"); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	if err := ManageBookmark(ctx, store, BookmarkAdd, "u2", "t1"); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	rows, err := store.Select(ctx, domain.Query{Table: domain.TableBookmarks, Filter: domain.Filter{"user_id": "u1"}})
	if err != nil || len(rows) != 1 || rows[0]["tweet_id"] != "t1" {
		t.Fatalf("bookmark rows: %v %+v", err, rows)
	}
	if rows[0]["created_at"] == nil || domain.RowID(rows[0]) == "" {
		t.Fatalf("bookmark row missing defaults: %+v", rows[0])
	}

	if err := ManageBookmark(ctx, store, BookmarkRemove, "u1", "t1"); err != nil {
		t.Fatalf("unbookmark: %v", err)
	}
	rows, _ = store.Select(ctx, domain.Query{Table: domain.TableBookmarks})
	if len(rows) != 1 || rows[0]["user_id"] != "u2" {
		t.Fatalf("remove deleted wrong rows: %+v", rows)
	}

	if err := ClearAllBookmarks(ctx, store, "u2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if rows, _ := store.Select(ctx, domain.Query{Table: domain.TableBookmarks}); len(rows) != 0 {
		t.Fatalf("clear left rows: %+v", rows)
	}
}

func TestManagePinnedTweet(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManagePinnedTweet(ctx, store, Pin, "u1", "t1"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["pinned_tweet"]; got != "t1" {
		t.Fatalf("pinned_tweet = %v", got)
	}
	if err := ManagePinnedTweet(ctx, store, Unpin, "u1", ""); err != nil {
		t.Fatalf("unpin: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["pinned_tweet"]; got != nil {
		t.Fatalf("expected nil pinned_tweet, got %v", got)
	}
}

func TestManageReplyClampsAtZero(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageReply(ctx, store, Decrement, "t1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if got := mustRow(t, store, domain.TableTweets, "t1")["user_replies"]; got != float64(0) {
		t.Fatalf("expected clamp at 0, got %v", got)
	}
	if err := ManageReply(ctx, store, Increment, "t1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := mustRow(t, store, domain.TableTweets, "t1")["user_replies"]; got != float64(1) {
		t.Fatalf("expected 1, got %v", got)
	}
	// Deleted parent: silent no-op.
	if err := ManageReply(ctx, store, Increment, "ghost"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestUserCountersClampAndIgnoreMissing(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	if err := ManageTotalTweets(ctx, store, Decrement, "u1"); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["total_tweets"]; got != float64(0) {
		t.Fatalf("expected clamp at 0, got %v", got)
	}
	if err := ManageTotalTweets(ctx, store, Increment, "u1"); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["total_tweets"]; got != float64(1) {
		t.Fatalf("expected 1, got %v", got)
	}

	if err := ManageTotalPhotos(ctx, store, Increment, "u1", 3); err != nil {
		t.Fatalf("photos increment: %v", err)
	}
	if err := ManageTotalPhotos(ctx, store, Decrement, "u1", 5); err != nil {
		t.Fatalf("photos decrement: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["total_photos"]; got != float64(0) {
		t.Fatalf("expected clamp at 0, got %v", got)
	}

	if err := ManageTotalTweets(ctx, store, Increment, "ghost"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestProfileUpdates(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()

	bio := "builder of engines"
	if err := UpdateUserData(ctx, store, "u1", domain.EditableUserData{
		Bio:      &bio,
		Name:     "Ada L.",
		PhotoURL: "/assets/ada.png",
	}); err != nil {
		t.Fatalf("update data: %v", err)
	}
	user := mustRow(t, store, domain.TableUsers, "u1")
	if user["bio"] != bio || user["name"] != "Ada L." || user["updated_at"] == nil {
		t.Fatalf("profile not merged: %+v", user)
	}

	before := user["updated_at"]
	theme := "dim"
	accent := "purple"
	if err := UpdateUserTheme(ctx, store, "u1", &theme, &accent); err != nil {
		t.Fatalf("update theme: %v", err)
	}
	user = mustRow(t, store, domain.TableUsers, "u1")
	if user["theme"] != "dim" || user["accent"] != "purple" {
		t.Fatalf("theme not applied: %+v", user)
	}
	if user["updated_at"] != before {
		t.Fatalf("theme change must not touch updated_at")
	}

	if err := UpdateUsername(ctx, store, "u1", "countess"); err != nil {
		t.Fatalf("update username: %v", err)
	}
	if got := mustRow(t, store, domain.TableUsers, "u1")["username"]; got != "countess" {
		t.Fatalf("username = %v", got)
	}
}

func TestRemoveTweet(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	if err := RemoveTweet(ctx, store, "t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := store.SelectSingle(ctx, domain.ByID(domain.TableTweets, "t1")); !errors.Is(err, domain.ErrNoRows) {
		t.Fatalf("tweet still present: %v", err)
	}
}
