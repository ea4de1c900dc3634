// Package mutate implements the write operations of the data layer:
// follows, likes, retweets, bookmarks, pinned tweets, counters, and
// profile edits. Paired writes (for example a like touching both the
// tweet and the liker's stats) are issued as two independent updates.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warbler/internal/metrics"
	"warbler/pkg/domain"
)

// Action direction discriminators, one type per operation family.
type (
	FollowAction   string
	LikeAction     string
	RetweetAction  string
	BookmarkAction string
	PinAction      string
	CounterAction  string
)

const (
	Follow   FollowAction = "follow"
	Unfollow FollowAction = "unfollow"

	Like   LikeAction = "like"
	Unlike LikeAction = "unlike"

	Retweet   RetweetAction = "retweet"
	Unretweet RetweetAction = "unretweet"

	BookmarkAdd    BookmarkAction = "bookmark"
	BookmarkRemove BookmarkAction = "unbookmark"

	Pin   PinAction = "pin"
	Unpin PinAction = "unpin"

	Increment CounterAction = "increment"
	Decrement CounterAction = "decrement"
)

var (
	// ErrTweetNotFound is returned when a like or retweet references a
	// tweet that no longer exists.
	ErrTweetNotFound = errors.New("mutate: tweet not found")
	// ErrStatsNotFound is returned when the acting user has no stats row.
	ErrStatsNotFound = errors.New("mutate: user stats not found")
)

// nowFunc is swapped in tests for deterministic timestamps.
var nowFunc = func() time.Time { return time.Now().UTC() }

// toggleID appends id to list or filters it out. Appending does not
// deduplicate; repeated toggles in the same direction stack.
func toggleID(list []string, id string, add bool) []string {
	if add {
		return append(list, id)
	}
	next := make([]string, 0, len(list))
	for _, v := range list {
		if v != id {
			next = append(next, v)
		}
	}
	return next
}

// stringList coerces a JSON-normalized row value into a string slice.
func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func counterValue(v any) int64 {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return 0
	}
	return int64(f)
}

// ManageFollow updates the follower's following list and the target's
// followers list with two independent writes.
func ManageFollow(ctx context.Context, store domain.Store, action FollowAction, userID, targetID string) error {
	metrics.Mutations.WithLabelValues(string(action)).Inc()
	add := action == Follow

	userRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableUsers, userID))
	if err != nil {
		return fmt.Errorf("load user %s: %w", userID, err)
	}
	targetRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableUsers, targetID))
	if err != nil {
		return fmt.Errorf("load user %s: %w", targetID, err)
	}

	now := nowFunc()
	if _, err := store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, domain.Row{
		"following":  toggleID(stringList(userRow["following"]), targetID, add),
		"updated_at": now,
	}); err != nil {
		return err
	}
	_, err = store.Update(ctx, domain.TableUsers, domain.Filter{"id": targetID}, domain.Row{
		"followers":  toggleID(stringList(targetRow["followers"]), userID, add),
		"updated_at": now,
	})
	return err
}

// ManageLike toggles userID in the tweet's likes and the tweet in the
// user's stats with two independent writes.
func ManageLike(ctx context.Context, store domain.Store, action LikeAction, userID, tweetID string) error {
	metrics.Mutations.WithLabelValues(string(action)).Inc()
	add := action == Like

	tweetRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableTweets, tweetID))
	if err != nil {
		return ErrTweetNotFound
	}
	statsRow, err := store.SelectSingle(ctx, domain.Query{
		Table:  domain.TableUserStats,
		Filter: domain.Filter{"user_id": userID},
	})
	if err != nil {
		return ErrStatsNotFound
	}

	now := nowFunc()
	if _, err := store.Update(ctx, domain.TableTweets, domain.Filter{"id": tweetID}, domain.Row{
		"user_likes": toggleID(stringList(tweetRow["user_likes"]), userID, add),
		"updated_at": now,
	}); err != nil {
		return err
	}
	_, err = store.Update(ctx, domain.TableUserStats, domain.Filter{"user_id": userID}, domain.Row{
		"likes":      toggleID(stringList(statsRow["likes"]), tweetID, add),
		"updated_at": now,
	})
	return err
}

// ManageRetweet toggles userID in the tweet's retweets and the tweet in
// the user's stats with two independent writes.
func ManageRetweet(ctx context.Context, store domain.Store, action RetweetAction, userID, tweetID string) error {
	metrics.Mutations.WithLabelValues(string(action)).Inc()
	add := action == Retweet

	tweetRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableTweets, tweetID))
	if err != nil {
		return ErrTweetNotFound
	}
	statsRow, err := store.SelectSingle(ctx, domain.Query{
		Table:  domain.TableUserStats,
		Filter: domain.Filter{"user_id": userID},
	})
	if err != nil {
		return ErrStatsNotFound
	}

	now := nowFunc()
	if _, err := store.Update(ctx, domain.TableTweets, domain.Filter{"id": tweetID}, domain.Row{
		"user_retweets": toggleID(stringList(tweetRow["user_retweets"]), userID, add),
		"updated_at":    now,
	}); err != nil {
		return err
	}
	_, err = store.Update(ctx, domain.TableUserStats, domain.Filter{"user_id": userID}, domain.Row{
		"tweets":     toggleID(stringList(statsRow["tweets"]), tweetID, add),
		"updated_at": now,
	})
	return err
}

// ManageBookmark inserts or deletes the bookmark row linking userID and
// tweetID.
func ManageBookmark(ctx context.Context, store domain.Store, action BookmarkAction, userID, tweetID string) error {
	metrics.Mutations.WithLabelValues(string(action)).Inc()
	if action == BookmarkAdd {
		_, err := store.Insert(ctx, domain.TableBookmarks, domain.Row{
			"user_id":  userID,
			"tweet_id": tweetID,
		})
		return err
	}
	_, err := store.Delete(ctx, domain.TableBookmarks, domain.Filter{
		"user_id":  userID,
		"tweet_id": tweetID,
	})
	return err
}

// ClearAllBookmarks deletes every bookmark owned by userID.
func ClearAllBookmarks(ctx context.Context, store domain.Store, userID string) error {
	metrics.Mutations.WithLabelValues("clear_bookmarks").Inc()
	_, err := store.Delete(ctx, domain.TableBookmarks, domain.Filter{"user_id": userID})
	return err
}

// ManagePinnedTweet points the user's pinned tweet at tweetID, or clears
// it on Unpin.
func ManagePinnedTweet(ctx context.Context, store domain.Store, action PinAction, userID, tweetID string) error {
	metrics.Mutations.WithLabelValues(string(action)).Inc()
	var pinned any
	if action == Pin {
		pinned = tweetID
	}
	_, err := store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, domain.Row{
		"pinned_tweet": pinned,
		"updated_at":   nowFunc(),
	})
	return err
}

// ManageReply adjusts a tweet's reply counter, clamped at zero. A missing
// tweet is a silent no-op; the parent may have been deleted concurrently.
func ManageReply(ctx context.Context, store domain.Store, action CounterAction, tweetID string) error {
	metrics.Mutations.WithLabelValues("reply_" + string(action)).Inc()
	tweetRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableTweets, tweetID))
	if err != nil {
		return nil
	}
	count := counterValue(tweetRow["user_replies"])
	if action == Increment {
		count++
	} else if count > 0 {
		count--
	}
	_, err = store.Update(ctx, domain.TableTweets, domain.Filter{"id": tweetID}, domain.Row{
		"user_replies": count,
		"updated_at":   nowFunc(),
	})
	return err
}

// ManageTotalTweets adjusts the user's tweet counter, clamped at zero. A
// missing user is a silent no-op.
func ManageTotalTweets(ctx context.Context, store domain.Store, action CounterAction, userID string) error {
	metrics.Mutations.WithLabelValues("total_tweets_" + string(action)).Inc()
	return adjustUserCounter(ctx, store, action, userID, "total_tweets")
}

// ManageTotalPhotos adjusts the user's photo counter by delta photos,
// clamped at zero. A missing user is a silent no-op.
func ManageTotalPhotos(ctx context.Context, store domain.Store, action CounterAction, userID string, delta int64) error {
	metrics.Mutations.WithLabelValues("total_photos_" + string(action)).Inc()
	userRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableUsers, userID))
	if err != nil {
		return nil
	}
	count := counterValue(userRow["total_photos"])
	if action == Increment {
		count += delta
	} else {
		count -= delta
		if count < 0 {
			count = 0
		}
	}
	_, err = store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, domain.Row{
		"total_photos": count,
		"updated_at":   nowFunc(),
	})
	return err
}

func adjustUserCounter(ctx context.Context, store domain.Store, action CounterAction, userID, field string) error {
	userRow, err := store.SelectSingle(ctx, domain.ByID(domain.TableUsers, userID))
	if err != nil {
		return nil
	}
	count := counterValue(userRow[field])
	if action == Increment {
		count++
	} else if count > 0 {
		count--
	}
	_, err = store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, domain.Row{
		field:        count,
		"updated_at": nowFunc(),
	})
	return err
}

// UpdateUserData merges the editable profile fields into the user row.
func UpdateUserData(ctx context.Context, store domain.Store, userID string, data domain.EditableUserData) error {
	metrics.Mutations.WithLabelValues("update_profile").Inc()
	patch, err := domain.EncodeRow(data)
	if err != nil {
		return err
	}
	patch["updated_at"] = nowFunc()
	_, err = store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, patch)
	return err
}

// UpdateUserTheme sets theme and accent without touching updated_at, so
// cosmetic changes do not reorder freshness-sorted views.
func UpdateUserTheme(ctx context.Context, store domain.Store, userID string, theme, accent *string) error {
	metrics.Mutations.WithLabelValues("update_theme").Inc()
	patch := domain.Row{}
	if theme != nil {
		patch["theme"] = *theme
	}
	if accent != nil {
		patch["accent"] = *accent
	}
	if len(patch) == 0 {
		return nil
	}
	_, err := store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, patch)
	return err
}

// UpdateUsername changes the user's handle.
func UpdateUsername(ctx context.Context, store domain.Store, userID, username string) error {
	metrics.Mutations.WithLabelValues("update_username").Inc()
	_, err := store.Update(ctx, domain.TableUsers, domain.Filter{"id": userID}, domain.Row{
		"username":   username,
		"updated_at": nowFunc(),
	})
	return err
}

// RemoveTweet deletes the tweet row by id.
func RemoveTweet(ctx context.Context, store domain.Store, tweetID string) error {
	metrics.Mutations.WithLabelValues("remove_tweet").Inc()
	_, err := store.Delete(ctx, domain.TableTweets, domain.Filter{"id": tweetID})
	return err
}
