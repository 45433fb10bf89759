package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/reddit"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeAPI serves canned listings keyed by subreddit.
type fakeAPI struct {
	mu           sync.Mutex
	pages        map[string][]reddit.HotPostsResult
	comments     map[string]reddit.CommentsResult
	pageIdx      map[string]int
	hotErr       error
	commentsErr  error
	commentCalls int
}

func (f *fakeAPI) HotPosts(_ context.Context, subreddit string, _ reddit.HotPostsOptions) (*reddit.HotPostsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.hotErr != nil {
		return nil, f.hotErr
	}

	if f.pageIdx == nil {
		f.pageIdx = make(map[string]int)
	}

	pages := f.pages[subreddit]
	idx := f.pageIdx[subreddit]

	if idx >= len(pages) {
		return &reddit.HotPostsResult{}, nil
	}

	f.pageIdx[subreddit] = idx + 1

	return &pages[idx], nil
}

func (f *fakeAPI) Comments(_ context.Context, _, postID string, _ reddit.CommentsOptions) (*reddit.CommentsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commentCalls++

	if f.commentsErr != nil {
		return nil, f.commentsErr
	}

	res := f.comments[postID]

	return &res, nil
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	db, err := store.NewBolt(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func link(id, title, url string) reddit.Link {
	return reddit.Link{
		ID:        id,
		Title:     title,
		URL:       url,
		Author:    "author-" + id,
		Permalink: "/r/test/comments/" + id + "/",
	}
}

func quietOptions() Options {
	return Options{
		Limit:       100,
		Pages:       1,
		MaxComments: 5,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPostImages_DirectLink(t *testing.T) {
	l := link("abc", "a pic", "https://i.redd.it/pic.jpg")

	images := PostImages("test", &l)
	require.Len(t, images, 1)
	require.Equal(t, model.ImageSourcePostURL, images[0].Source)
	require.Equal(t, model.ImageTypeDirectLink, images[0].Type)
	require.Equal(t, "https://i.redd.it/pic.jpg", images[0].URL)
}

func TestPostImages_Gallery(t *testing.T) {
	l := link("abc", "gallery", "https://reddit.com/gallery/abc")
	l.IsGallery = true
	l.MediaMetadata = map[string]reddit.MediaMetadata{
		"m2": {Source: &reddit.MediaSource{URL: "https://preview.redd.it/two.jpg?width=640&amp;s=x"}},
		"m1": {Source: &reddit.MediaSource{URL: "https://preview.redd.it/one.jpg"}},
		"m3": {Source: nil},
	}

	images := PostImages("test", &l)
	require.Len(t, images, 2, "items without a source are dropped")

	// Ordered by media id with preview rewritten to full resolution.
	require.Equal(t, "m1", images[0].MediaID)
	require.Equal(t, "https://i.redd.it/one.jpg", images[0].URL)
	require.Equal(t, "m2", images[1].MediaID)
	require.Equal(t, "https://i.redd.it/two.jpg?width=640&s=x", images[1].URL)
	require.Equal(t, model.ImageTypeRedditGallery, images[0].Type)
}

func TestPostImages_SelfText(t *testing.T) {
	l := link("abc", "text post", "https://reddit.com/r/test/comments/abc")
	l.SelfText = "look https://i.imgur.com/x.png and https://example.com/page"

	images := PostImages("test", &l)
	require.Len(t, images, 1)
	require.Equal(t, model.ImageSourcePostText, images[0].Source)
	require.Equal(t, model.ImageTypeEmbeddedLink, images[0].Type)
}

func TestPostImages_IndexesAreSequential(t *testing.T) {
	l := link("abc", "mixed", "https://i.redd.it/head.jpg")
	l.SelfText = "also https://i.redd.it/body.jpg"

	images := PostImages("test", &l)
	require.Len(t, images, 2)
	require.Equal(t, 0, images[0].Index)
	require.Equal(t, 1, images[1].Index)
}

func TestFlattenComments(t *testing.T) {
	forest := []reddit.Comment{
		{
			ID:       "c1",
			Author:   "alice",
			Body:     "top with https://i.redd.it/a.jpg",
			ParentID: "t3_abc",
			Replies: []reddit.Comment{
				{ID: "c2", Author: "", Body: "nested", ParentID: "t1_c1"},
			},
		},
		{ID: "c3", Author: "bob", Body: "second thread", ParentID: "t3_abc"},
		{ID: "c4", Author: "carol", Body: "third thread", ParentID: "t3_abc"},
	}

	comments, images := FlattenComments("test", "abc", forest, 2)

	require.Len(t, comments, 3, "third top-level thread is beyond the cap")

	first := comments[0]
	require.Equal(t, "c1", first.CommentID)
	require.Equal(t, "abc", first.ReplyToID)
	require.Equal(t, "N/A", first.Sentiment)
	require.True(t, first.HasImages)
	require.Equal(t, []string{"https://i.redd.it/a.jpg"}, first.ImageURLs)

	nested := comments[1]
	require.Equal(t, "c2", nested.CommentID)
	require.Equal(t, "[deleted]", nested.Author)
	require.Equal(t, "c1", nested.ReplyToID)

	require.Len(t, images, 1)
	require.Equal(t, "c1", images[0].CommentID)
	require.Equal(t, model.ImageSourceCommentText, images[0].Source)
}

func TestFlattenComments_Dedupe(t *testing.T) {
	forest := []reddit.Comment{
		{ID: "c1", Body: "once", ParentID: "t3_abc"},
		{ID: "c1", Body: "again", ParentID: "t3_abc"},
	}

	comments, _ := FlattenComments("test", "abc", forest, 5)
	require.Len(t, comments, 1)
}

func TestHarvestSubreddit(t *testing.T) {
	api := &fakeAPI{
		pages: map[string][]reddit.HotPostsResult{
			"test": {
				{
					Posts: []reddit.Link{
						link("p1", "first", "https://i.redd.it/p1.jpg"),
						link("p2", "second", "https://example.com/article"),
					},
					After: "t3_p2",
				},
			},
		},
		comments: map[string]reddit.CommentsResult{
			"p1": {Comments: []reddit.Comment{
				{ID: "c1", Author: "x", Body: "nice https://i.imgur.com/z.gif", ParentID: "t3_p1"},
			}},
		},
	}

	db := newTestStore(t)
	h := NewHarvester(api, db, quietOptions())

	var events []Event

	h.OnEvent = func(ev Event) { events = append(events, ev) }

	res, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, 2, res.Posts)
	require.Equal(t, 1, res.Comments)
	require.Equal(t, 2, res.Images, "one post image, one comment image")
	require.Zero(t, res.Skipped)
	require.Len(t, events, 2)

	posts, err := db.GetPosts("test")
	require.NoError(t, err)
	require.Len(t, posts, 2)

	var byID = map[string]model.Post{}
	for _, p := range posts {
		byID[p.PostID] = p
	}

	require.Equal(t, "image", byID["p1"].ContentType)
	require.True(t, byID["p1"].HasImages)
	require.Equal(t, "text", byID["p2"].ContentType)
	require.Equal(t, "https://reddit.com/r/test/comments/p1/", byID["p1"].Permalink)

	comments, err := db.GetComments("test")
	require.NoError(t, err)
	require.Len(t, comments, 1)
}

func TestHarvestSubreddit_SkipsSeenPosts(t *testing.T) {
	page := reddit.HotPostsResult{
		Posts: []reddit.Link{link("p1", "first", "https://example.com")},
	}

	api := &fakeAPI{
		pages:    map[string][]reddit.HotPostsResult{"test": {page}},
		comments: map[string]reddit.CommentsResult{},
	}

	db := newTestStore(t)
	h := NewHarvester(api, db, quietOptions())

	res, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, 1, res.Posts)

	// Second run sees the same listing again.
	api.pageIdx = nil

	res, err = h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Zero(t, res.Posts)
	require.Equal(t, 1, res.Skipped)
}

func TestHarvestSubreddit_LogsSkipReason(t *testing.T) {
	page := reddit.HotPostsResult{
		Posts: []reddit.Link{link("p1", "first", "https://example.com")},
	}

	api := &fakeAPI{
		pages:    map[string][]reddit.HotPostsResult{"test": {page}},
		comments: map[string]reddit.CommentsResult{},
	}

	db := newTestStore(t)

	var buf bytes.Buffer

	opts := quietOptions()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	h := NewHarvester(api, db, opts)

	_, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)

	api.pageIdx = nil
	buf.Reset()

	res, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, 1, res.Skipped)
	require.Contains(t, buf.String(), "skipping post")
	require.Contains(t, buf.String(), SkipReasonSeen.String())
}

func TestHarvestSubreddit_RefreshRescrapes(t *testing.T) {
	page := reddit.HotPostsResult{
		Posts: []reddit.Link{link("p1", "first", "https://example.com")},
	}

	api := &fakeAPI{
		pages:    map[string][]reddit.HotPostsResult{"test": {page}},
		comments: map[string]reddit.CommentsResult{},
	}

	db := newTestStore(t)

	opts := quietOptions()
	opts.Refresh = true

	h := NewHarvester(api, db, opts)

	_, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)

	api.pageIdx = nil

	res, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, 1, res.Posts)
	require.Zero(t, res.Skipped)
}

func TestHarvestSubreddit_CommentFailureKeepsPost(t *testing.T) {
	api := &fakeAPI{
		pages: map[string][]reddit.HotPostsResult{
			"test": {{Posts: []reddit.Link{link("p1", "first", "https://example.com")}}},
		},
		commentsErr: fmt.Errorf("boom"),
	}

	db := newTestStore(t)
	h := NewHarvester(api, db, quietOptions())

	res, err := h.HarvestSubreddit(context.Background(), "test")
	require.NoError(t, err)
	require.Equal(t, 1, res.Posts)
	require.Zero(t, res.Comments)

	posts, err := db.GetPosts("test")
	require.NoError(t, err)
	require.Len(t, posts, 1)
}

func TestHarvestSubreddit_ListingError(t *testing.T) {
	api := &fakeAPI{hotErr: fmt.Errorf("dial tcp: refused")}

	db := newTestStore(t)
	h := NewHarvester(api, db, quietOptions())

	_, err := h.HarvestSubreddit(context.Background(), "test")
	require.Error(t, err)

	var subErr *SubredditError

	require.ErrorAs(t, err, &subErr)
	require.Equal(t, "test", subErr.Subreddit)
	require.Equal(t, "fetch failed", subErr.Reason)
}

func TestExecuteBatch(t *testing.T) {
	api := &fakeAPI{
		pages: map[string][]reddit.HotPostsResult{
			"good": {{Posts: []reddit.Link{link("p1", "first", "https://i.redd.it/p1.jpg")}}},
		},
		comments: map[string]reddit.CommentsResult{},
	}

	db := newTestStore(t)
	require.NoError(t, db.SaveTarget("good"))
	require.NoError(t, db.SaveTarget("empty"))

	h := NewHarvester(api, db, quietOptions())

	result, err := ExecuteBatch(context.Background(), BatchOptions{
		Plan:      &Plan{Subreddits: []string{"good", "empty"}, Parallel: 2},
		Harvester: h,
		Store:     db,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Quiet:     true,
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Zero(t, result.Failed)
	require.Equal(t, 1, result.Posts)
	require.Len(t, result.Summaries, 2)

	runs, err := db.GetRuns("good")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	targets, err := db.ListTargets()
	require.NoError(t, err)
	require.False(t, targets[0].LastRunAt.IsZero(), "successful run must touch the target")
}

func TestExecuteBatch_EmptyPlan(t *testing.T) {
	db := newTestStore(t)
	h := NewHarvester(&fakeAPI{}, db, quietOptions())

	_, err := ExecuteBatch(context.Background(), BatchOptions{
		Plan:      &Plan{},
		Harvester: h,
		Quiet:     true,
	})
	require.Error(t, err)
}
