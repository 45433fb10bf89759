package reddit

import (
	"encoding/json"
	"fmt"
)

// Thing kinds used by the listing endpoints.
const (
	KindComment = "t1"
	KindLink    = "t3"
	KindListing = "Listing"
	KindMore    = "more"
)

// thing is the generic Reddit envelope: a kind tag plus a payload whose
// shape depends on the kind.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing is the paginated container payload.
type listing struct {
	After    string  `json:"after"`
	Before   string  `json:"before"`
	Children []thing `json:"children"`
}

// MediaSource is the source entry of a gallery item.
type MediaSource struct {
	URL    string `json:"u"`
	Width  int    `json:"x"`
	Height int    `json:"y"`
}

// MediaMetadata describes one gallery item of a submission.
type MediaMetadata struct {
	Status string       `json:"status"`
	Type   string       `json:"e"`
	Source *MediaSource `json:"s"`
}

// Link is a submission as returned by the listing endpoints.
type Link struct {
	ID            string                   `json:"id"`
	Name          string                   `json:"name"`
	Subreddit     string                   `json:"subreddit"`
	Title         string                   `json:"title"`
	Author        string                   `json:"author"`
	Score         int                      `json:"score"`
	Ups           int                      `json:"ups"`
	UpvoteRatio   float64                  `json:"upvote_ratio"`
	TotalAwards   int                      `json:"total_awards_received"`
	LinkFlairText string                   `json:"link_flair_text"`
	NumComments   int                      `json:"num_comments"`
	Permalink     string                   `json:"permalink"`
	URL           string                   `json:"url"`
	SelfText      string                   `json:"selftext"`
	CreatedUTC    float64                  `json:"created_utc"`
	IsGallery     bool                     `json:"is_gallery"`
	MediaMetadata map[string]MediaMetadata `json:"media_metadata"`
}

// AuthorOrDeleted returns the author name, or the "[deleted]" placeholder
// when the account is gone.
func (l *Link) AuthorOrDeleted() string {
	if l.Author == "" {
		return "[deleted]"
	}

	return l.Author
}

// Comment is a single comment with its reply tree.
type Comment struct {
	ID         string  `json:"id"`
	Author     string  `json:"author"`
	Body       string  `json:"body"`
	Score      int     `json:"score"`
	CreatedUTC float64 `json:"created_utc"`
	ParentID   string  `json:"parent_id"`
	Replies    []Comment
}

// AuthorOrDeleted returns the author name, or the "[deleted]" placeholder
// when the account is gone.
func (c *Comment) AuthorOrDeleted() string {
	if c.Author == "" {
		return "[deleted]"
	}

	return c.Author
}

// commentData is the wire shape of a t1 payload. Replies is either an
// empty string or a nested Listing thing, so it needs its own decode step.
type commentData struct {
	ID         string          `json:"id"`
	Author     string          `json:"author"`
	Body       string          `json:"body"`
	Score      int             `json:"score"`
	CreatedUTC float64         `json:"created_utc"`
	ParentID   string          `json:"parent_id"`
	Replies    json.RawMessage `json:"replies"`
}

// SubredditInfo is the about payload of a subreddit.
type SubredditInfo struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Title       string  `json:"title"`
	Subscribers int     `json:"subscribers"`
	Over18      bool    `json:"over18"`
	CreatedUTC  float64 `json:"created_utc"`
	Description string  `json:"public_description"`
}

// decodeListing unwraps a Listing thing into its payload.
func decodeListing(t thing) (*listing, error) {
	if t.Kind != KindListing {
		return nil, fmt.Errorf("expected Listing, got %q", t.Kind)
	}

	var l listing
	if err := json.Unmarshal(t.Data, &l); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	return &l, nil
}

// decodeLinks extracts the t3 children of a listing, skipping anything else.
func decodeLinks(l *listing) ([]Link, error) {
	links := make([]Link, 0, len(l.Children))

	for _, child := range l.Children {
		if child.Kind != KindLink {
			continue
		}

		var link Link
		if err := json.Unmarshal(child.Data, &link); err != nil {
			return nil, fmt.Errorf("failed to decode link: %w", err)
		}

		links = append(links, link)
	}

	return links, nil
}

// decodeComments extracts the t1 children of a listing as a tree. Unresolved
// "more" stubs are dropped rather than expanded; harvesting stays within the
// comments the first response carries.
func decodeComments(l *listing) ([]Comment, error) {
	comments := make([]Comment, 0, len(l.Children))

	for _, child := range l.Children {
		if child.Kind != KindComment {
			continue
		}

		c, err := decodeComment(child.Data)
		if err != nil {
			return nil, err
		}

		comments = append(comments, *c)
	}

	return comments, nil
}

func decodeComment(data json.RawMessage) (*Comment, error) {
	var cd commentData
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, fmt.Errorf("failed to decode comment: %w", err)
	}

	c := &Comment{
		ID:         cd.ID,
		Author:     cd.Author,
		Body:       cd.Body,
		Score:      cd.Score,
		CreatedUTC: cd.CreatedUTC,
		ParentID:   cd.ParentID,
	}

	// An empty replies field arrives as "" rather than an object.
	if len(cd.Replies) == 0 || string(cd.Replies) == `""` {
		return c, nil
	}

	var t thing
	if err := json.Unmarshal(cd.Replies, &t); err != nil {
		return nil, fmt.Errorf("failed to decode replies envelope: %w", err)
	}

	l, err := decodeListing(t)
	if err != nil {
		return nil, err
	}

	replies, err := decodeComments(l)
	if err != nil {
		return nil, err
	}

	c.Replies = replies

	return c, nil
}
