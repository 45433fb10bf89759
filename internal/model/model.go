// Package model defines the records persisted and exported by redditharvest.
package model

import "time"

// Post is a harvested submission.
type Post struct {
	UID           string    `json:"uid"`
	Subreddit     string    `json:"subreddit"`
	PostID        string    `json:"post_id"`
	Title         string    `json:"post_title"`
	Score         int       `json:"post_score"`
	Permalink     string    `json:"post_url"`
	ContentURL    string    `json:"post_content_url"`
	SelfText      string    `json:"post_text"`
	CreatedUTC    float64   `json:"timestamp"`
	UpvoteRatio   float64   `json:"post_upvote_ratio"`
	Ups           int       `json:"post_ups"`
	TotalAwards   int       `json:"post_total_awards_received"`
	LinkFlairText string    `json:"post_link_flair_text"`
	Author        string    `json:"post_author"`
	NumComments   int       `json:"post_num_comments"`
	HasImages     bool      `json:"has_images"`
	NumImages     int       `json:"num_images"`
	IsGallery     bool      `json:"is_gallery"`
	ContentType   string    `json:"content_type"`
	HarvestedAt   time.Time `json:"harvested_at"`
}

// Comment is a harvested comment, flattened from its thread.
type Comment struct {
	UID        string   `json:"uid"`
	Subreddit  string   `json:"subreddit"`
	PostID     string   `json:"post_id"`
	CommentID  string   `json:"comment_id"`
	Body       string   `json:"comment_text"`
	Score      int      `json:"comment_score"`
	Author     string   `json:"comment_author"`
	CreatedUTC float64  `json:"comment_created_utc"`
	ParentID   string   `json:"parent_id"`
	ReplyToID  string   `json:"reply_to_id"`
	Sentiment  string   `json:"comment_sentiment"`
	HasImages  bool     `json:"has_images"`
	NumImages  int      `json:"num_images"`
	ImageURLs  []string `json:"image_urls,omitempty"`
}

// Image source labels.
const (
	ImageSourcePostURL     = "post_url"
	ImageSourceGallery     = "gallery"
	ImageSourcePostText    = "post_text"
	ImageSourceCommentText = "comment_text"
)

// Image type labels.
const (
	ImageTypeDirectLink    = "direct_link"
	ImageTypeRedditGallery = "reddit_gallery"
	ImageTypeEmbeddedLink  = "embedded_link"
)

// ImageRef is a single image URL found in a post or comment.
type ImageRef struct {
	UID       string `json:"uid"`
	Subreddit string `json:"subreddit"`
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id,omitempty"`
	Index     int    `json:"image_index"`
	URL       string `json:"image_url"`
	Source    string `json:"image_source"`
	Type      string `json:"image_type"`
	MediaID   string `json:"media_id,omitempty"`
}

// Target is a subreddit registered for harvesting.
type Target struct {
	UID       string    `json:"uid"`
	Name      string    `json:"name"`
	AddedAt   time.Time `json:"added_at"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
}

// SubredditCounts aggregates stored record totals for one subreddit.
type SubredditCounts struct {
	Subreddit string `json:"subreddit"`
	Posts     int    `json:"posts"`
	Comments  int    `json:"comments"`
	Images    int    `json:"images"`
}

// RunSummary records the outcome of one subreddit harvest.
type RunSummary struct {
	UID       string        `json:"uid"`
	Subreddit string        `json:"subreddit"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Posts     int           `json:"posts"`
	Comments  int           `json:"comments"`
	Images    int           `json:"images"`
	Skipped   int           `json:"skipped"`
	Err       string        `json:"error,omitempty"`
}
