// Package domain defines the persistent entities, the schemaless row and
// query primitives, and the backend capability interfaces consumed by the
// warbler data-access layer.
package domain

import "time"

// Table names of the hosted schema.
const (
	TableUsers     = "users"
	TableTweets    = "tweets"
	TableUserStats = "user_stats"
	TableBookmarks = "bookmarks"
)

// Tables lists every table of the hosted schema, in persistence-bucket order.
func Tables() []string {
	return []string{TableUsers, TableTweets, TableUserStats, TableBookmarks}
}

// User is the application-level user record, created lazily on first sign-in.
// Following and Followers hold user IDs; PinnedTweet references a tweet ID.
type User struct {
	ID            string     `json:"id"`
	Bio           *string    `json:"bio"`
	Name          string     `json:"name"`
	Theme         *string    `json:"theme"`
	Accent        *string    `json:"accent"`
	Website       *string    `json:"website"`
	Location      *string    `json:"location"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	PhotoURL      string     `json:"photo_url"`
	CoverPhotoURL *string    `json:"cover_photo_url"`
	Verified      bool       `json:"verified"`
	Following     []string   `json:"following"`
	Followers     []string   `json:"followers"`
	TotalTweets   int64      `json:"total_tweets"`
	TotalPhotos   int64      `json:"total_photos"`
	PinnedTweet   *string    `json:"pinned_tweet"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at"`
}

// EditableUserData is the subset of User fields a profile edit may change.
type EditableUserData struct {
	Bio           *string `json:"bio"`
	Name          string  `json:"name"`
	Website       *string `json:"website"`
	PhotoURL      string  `json:"photo_url"`
	Location      *string `json:"location"`
	CoverPhotoURL *string `json:"cover_photo_url"`
}

// ImagePreview describes one uploaded image attachment.
type ImagePreview struct {
	ID   string `json:"id"`
	Src  string `json:"src"`
	Alt  string `json:"alt"`
	Type string `json:"type"`
}

// Tweet is a post. Text is nil for retweet-only posts. ParentID and
// ParentUsername are set on replies. UserLikes and UserRetweets hold user IDs.
type Tweet struct {
	ID             string         `json:"id"`
	Text           *string        `json:"text"`
	Images         []ImagePreview `json:"images"`
	ParentID       *string        `json:"parent_id"`
	ParentUsername *string        `json:"parent_username"`
	UserLikes      []string       `json:"user_likes"`
	UserRetweets   []string       `json:"user_retweets"`
	UserReplies    int64          `json:"user_replies"`
	CreatedBy      string         `json:"created_by"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      *time.Time     `json:"updated_at"`
}

// Stats mirrors, per user, which tweets the user has liked and retweeted so
// that "did I like X" never requires scanning all tweets. Kept consistent
// with the corresponding Tweet arrays by paired, non-transactional writes.
type Stats struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Likes     []string   `json:"likes"`
	Tweets    []string   `json:"tweets"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// Bookmark joins a user to a tweet. Unique per (user, tweet) pair by
// application convention; not enforced here.
type Bookmark struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TweetID   string    `json:"tweet_id"`
	CreatedAt time.Time `json:"created_at"`
}
