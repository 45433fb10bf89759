// Package scrape orchestrates harvesting subreddits into the store.
package scrape

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/inovacc/redditharvest/internal/media"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/reddit"
	"github.com/inovacc/redditharvest/internal/store"
)

// API is the slice of the Reddit client the harvester needs.
type API interface {
	HotPosts(ctx context.Context, subreddit string, opts reddit.HotPostsOptions) (*reddit.HotPostsResult, error)
	Comments(ctx context.Context, subreddit, postID string, opts reddit.CommentsOptions) (*reddit.CommentsResult, error)
}

// Options bounds a harvest.
type Options struct {
	// Limit is the listing page size (max 100).
	Limit int

	// Pages bounds the harvest at Limit*Pages posts.
	Pages int

	// MaxComments is the number of top-level threads kept per post.
	MaxComments int

	// Refresh rescrapes posts already in the store.
	Refresh bool

	Logger *slog.Logger
}

// Event reports harvest progress for display layers.
type Event struct {
	Subreddit string
	PostID    string
	Title     string
	Current   int
	Total     int
	Skipped   bool
}

// Harvester pulls posts, comments and image references for subreddits.
type Harvester struct {
	api     API
	db      store.Store
	opts    Options
	logger  *slog.Logger
	OnEvent func(Event)
}

// NewHarvester creates a harvester writing into db.
func NewHarvester(api API, db store.Store, opts Options) *Harvester {
	if opts.Limit <= 0 {
		opts.Limit = 100
	}

	if opts.Pages <= 0 {
		opts.Pages = 5
	}

	if opts.MaxComments <= 0 {
		opts.MaxComments = 5
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Harvester{
		api:    api,
		db:     db,
		opts:   opts,
		logger: logger,
	}
}

// Result accumulates everything harvested from one subreddit.
type Result struct {
	Subreddit string
	Posts     int
	Comments  int
	Images    int
	Skipped   int
	Duration  time.Duration
}

// HarvestSubreddit pages through a subreddit's hot listing, collecting each
// post with its comment threads and image references, and persists the
// records as it goes. A failed comment fetch skips the post rather than
// aborting the subreddit.
func (h *Harvester) HarvestSubreddit(ctx context.Context, subreddit string) (*Result, error) {
	start := time.Now()

	result := &Result{Subreddit: subreddit}
	total := h.opts.Limit * h.opts.Pages

	h.logger.Info("harvesting subreddit", "subreddit", subreddit, "max_posts", total)

	var (
		after     string
		processed int
	)

	for page := 0; page < h.opts.Pages && processed < total; page++ {
		listing, err := h.api.HotPosts(ctx, subreddit, reddit.HotPostsOptions{
			Limit: h.opts.Limit,
			After: after,
		})
		if err != nil {
			return nil, h.classify(subreddit, err)
		}

		if len(listing.Posts) == 0 {
			break
		}

		for i := range listing.Posts {
			if processed >= total {
				break
			}

			link := &listing.Posts[i]
			processed++

			if err := h.harvestPost(ctx, subreddit, link, processed, total, result); err != nil {
				return nil, err
			}
		}

		after = listing.After
		if after == "" {
			break
		}
	}

	result.Duration = time.Since(start)

	h.logger.Info("subreddit done",
		"subreddit", subreddit,
		"posts", result.Posts,
		"comments", result.Comments,
		"images", result.Images,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)

	return result, nil
}

func (h *Harvester) harvestPost(ctx context.Context, subreddit string, link *reddit.Link, current, total int, result *Result) error {
	if !h.opts.Refresh {
		seen, err := h.db.PostSeen(subreddit, link.ID)
		if err != nil {
			return err
		}

		if seen {
			result.Skipped++
			h.logger.Debug("skipping post",
				"subreddit", subreddit, "post", link.ID, "reason", SkipReasonSeen)
			h.emit(Event{Subreddit: subreddit, PostID: link.ID, Title: link.Title, Current: current, Total: total, Skipped: true})

			return nil
		}
	}

	h.logger.Debug("processing post", "subreddit", subreddit, "post", link.ID, "title", truncate(link.Title, 50))

	images := PostImages(subreddit, link)

	post := buildPost(subreddit, link, len(images))

	comments, commentImages, err := h.harvestComments(ctx, subreddit, link.ID)
	if err != nil {
		// Keep the post, note the gap; mirrors the original continuing
		// past per-post failures.
		h.logger.Warn("comment fetch failed, keeping post without comments",
			"subreddit", subreddit, "post", link.ID, "reason", SkipReasonCommentsFailed, "error", err)
	}

	images = append(images, commentImages...)

	if err := h.db.SavePost(post); err != nil {
		return err
	}

	if err := h.db.SaveComments(comments); err != nil {
		return err
	}

	if err := h.db.SaveImages(images); err != nil {
		return err
	}

	result.Posts++
	result.Comments += len(comments)
	result.Images += len(images)

	h.emit(Event{Subreddit: subreddit, PostID: link.ID, Title: link.Title, Current: current, Total: total})

	return nil
}

// harvestComments fetches a post's comment forest and flattens up to
// MaxComments top-level threads.
func (h *Harvester) harvestComments(ctx context.Context, subreddit, postID string) ([]model.Comment, []model.ImageRef, error) {
	resp, err := h.api.Comments(ctx, subreddit, postID, reddit.CommentsOptions{})
	if err != nil {
		return nil, nil, err
	}

	comments, images := FlattenComments(subreddit, postID, resp.Comments, h.opts.MaxComments)

	return comments, images, nil
}

func (h *Harvester) emit(ev Event) {
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
}

// classify wraps listing failures in a SubredditError with a readable reason.
func (h *Harvester) classify(subreddit string, err error) error {
	reason := "fetch failed"

	switch {
	case reddit.IsForbidden(err):
		reason = "private or banned"
	case reddit.IsNotFound(err):
		reason = "not found"
	case reddit.IsRateLimited(err):
		reason = "rate limited"
	}

	return &SubredditError{Subreddit: subreddit, Reason: reason, Err: err}
}

// buildPost maps a wire link onto the persisted record.
func buildPost(subreddit string, link *reddit.Link, numImages int) *model.Post {
	contentType := "text"
	if media.IsImageURL(link.URL) {
		contentType = "image"
	}

	return &model.Post{
		Subreddit:     subreddit,
		PostID:        link.ID,
		Title:         link.Title,
		Score:         link.Score,
		Permalink:     "https://reddit.com" + link.Permalink,
		ContentURL:    link.URL,
		SelfText:      link.SelfText,
		CreatedUTC:    link.CreatedUTC,
		UpvoteRatio:   link.UpvoteRatio,
		Ups:           link.Ups,
		TotalAwards:   link.TotalAwards,
		LinkFlairText: link.LinkFlairText,
		Author:        link.AuthorOrDeleted(),
		NumComments:   link.NumComments,
		HasImages:     numImages > 0,
		NumImages:     numImages,
		IsGallery:     link.IsGallery,
		ContentType:   contentType,
		HarvestedAt:   time.Now(),
	}
}

// PostImages collects every image reference a submission carries: a direct
// image content URL, gallery items, and links embedded in the selftext.
func PostImages(subreddit string, link *reddit.Link) []model.ImageRef {
	var images []model.ImageRef

	index := 0

	if media.IsImageURL(link.URL) {
		images = append(images, model.ImageRef{
			Subreddit: subreddit,
			PostID:    link.ID,
			Index:     index,
			URL:       link.URL,
			Source:    model.ImageSourcePostURL,
			Type:      model.ImageTypeDirectLink,
		})
		index++
	}

	if link.IsGallery && len(link.MediaMetadata) > 0 {
		// Map iteration order is random; keep gallery output stable.
		ids := make([]string, 0, len(link.MediaMetadata))
		for id := range link.MediaMetadata {
			ids = append(ids, id)
		}

		sort.Strings(ids)

		for _, id := range ids {
			meta := link.MediaMetadata[id]
			if meta.Source == nil || meta.Source.URL == "" {
				continue
			}

			images = append(images, model.ImageRef{
				Subreddit: subreddit,
				PostID:    link.ID,
				Index:     index,
				URL:       media.FullResolution(meta.Source.URL),
				Source:    model.ImageSourceGallery,
				Type:      model.ImageTypeRedditGallery,
				MediaID:   id,
			})
			index++
		}
	}

	for _, u := range media.ExtractURLs(link.SelfText) {
		images = append(images, model.ImageRef{
			Subreddit: subreddit,
			PostID:    link.ID,
			Index:     index,
			URL:       u,
			Source:    model.ImageSourcePostText,
			Type:      model.ImageTypeEmbeddedLink,
		})
		index++
	}

	return images
}

// FlattenComments walks up to maxTopLevel top-level threads depth-first,
// producing flat comment records plus image references found in comment
// bodies. Duplicate comment ids are dropped.
func FlattenComments(subreddit, postID string, forest []reddit.Comment, maxTopLevel int) ([]model.Comment, []model.ImageRef) {
	var (
		comments []model.Comment
		images   []model.ImageRef
	)

	processed := make(map[string]struct{})

	topLevel := 0

	for i := range forest {
		if topLevel >= maxTopLevel {
			break
		}

		collectThread(subreddit, postID, &forest[i], processed, &comments, &images)
		topLevel++
	}

	return comments, images
}

func collectThread(subreddit, postID string, node *reddit.Comment, processed map[string]struct{}, comments *[]model.Comment, images *[]model.ImageRef) {
	if _, ok := processed[node.ID]; ok {
		return
	}

	processed[node.ID] = struct{}{}

	urls := media.ExtractURLs(node.Body)

	*comments = append(*comments, model.Comment{
		Subreddit:  subreddit,
		PostID:     postID,
		CommentID:  node.ID,
		Body:       node.Body,
		Score:      node.Score,
		Author:     node.AuthorOrDeleted(),
		CreatedUTC: node.CreatedUTC,
		ParentID:   node.ParentID,
		ReplyToID:  replyToID(node.ParentID),
		Sentiment:  "N/A",
		HasImages:  len(urls) > 0,
		NumImages:  len(urls),
		ImageURLs:  urls,
	})

	for i, u := range urls {
		*images = append(*images, model.ImageRef{
			Subreddit: subreddit,
			PostID:    postID,
			CommentID: node.ID,
			Index:     i,
			URL:       u,
			Source:    model.ImageSourceCommentText,
			Type:      model.ImageTypeEmbeddedLink,
		})
	}

	for i := range node.Replies {
		collectThread(subreddit, postID, &node.Replies[i], processed, comments, images)
	}
}

// replyToID strips the type prefix from a fullname like "t1_abc" or "t3_xyz".
func replyToID(parentID string) string {
	if idx := strings.IndexByte(parentID, '_'); idx >= 0 {
		return parentID[idx+1:]
	}

	return parentID
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
