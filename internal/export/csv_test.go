package export

import (
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/store"
	"github.com/stretchr/testify/require"
)

func newTestExporter(t *testing.T) (*Exporter, store.Store) {
	t.Helper()

	db, err := store.NewBolt(filepath.Join(t.TempDir(), "test.bolt"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return NewExporter(db, ExporterOptions{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}), db
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)

	defer func() { _ = f.Close() }()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	return rows
}

func seedSubreddit(t *testing.T, db store.Store) {
	t.Helper()

	require.NoError(t, db.SavePost(&model.Post{
		Subreddit:   "golang",
		PostID:      "p1",
		Title:       "a post, with comma",
		Score:       42,
		Permalink:   "https://reddit.com/r/golang/comments/p1/",
		ContentURL:  "https://i.redd.it/pic.jpg",
		CreatedUTC:  1700000000,
		UpvoteRatio: 0.93,
		Author:      "alice",
		HasImages:   true,
		NumImages:   1,
		ContentType: "image",
	}))

	require.NoError(t, db.SaveComments([]model.Comment{
		{
			Subreddit: "golang",
			PostID:    "p1",
			CommentID: "c1",
			Body:      "line one\nline two",
			Author:    "bob",
			ParentID:  "t3_p1",
			ReplyToID: "p1",
			Sentiment: "N/A",
			HasImages: true,
			NumImages: 2,
			ImageURLs: []string{"https://i.redd.it/a.jpg", "https://i.redd.it/b.jpg"},
		},
	}))

	require.NoError(t, db.SaveImages([]model.ImageRef{
		{Subreddit: "golang", PostID: "p1", Index: 0, URL: "https://i.redd.it/pic.jpg", Source: model.ImageSourcePostURL, Type: model.ImageTypeDirectLink},
	}))
}

func TestExportSubreddit(t *testing.T) {
	exporter, db := newTestExporter(t)
	seedSubreddit(t, db)

	dir := t.TempDir()

	result, err := exporter.ExportSubreddit("golang", dir)
	require.NoError(t, err)
	require.Equal(t, 1, result.Posts)
	require.Equal(t, 1, result.Comments)
	require.Equal(t, 1, result.Images)

	posts := readCSV(t, filepath.Join(dir, "golang_posts.csv"))
	require.Len(t, posts, 2)
	require.Equal(t, postHeader, posts[0])

	row := posts[1]
	require.Equal(t, "golang", row[0])
	require.Equal(t, "p1", row[1])
	require.Equal(t, "a post, with comma", row[2])
	require.Equal(t, "42", row[3])
	require.Equal(t, "1700000000", row[7])
	require.Equal(t, "0.93", row[8])
	require.Equal(t, "true", row[14])

	comments := readCSV(t, filepath.Join(dir, "golang_comments.csv"))
	require.Len(t, comments, 2)
	require.Equal(t, commentHeader, comments[0])
	require.Equal(t, "line one\nline two", comments[1][2])
	require.Equal(t, "https://i.redd.it/a.jpg|https://i.redd.it/b.jpg", comments[1][11])
	require.Equal(t, "golang", comments[1][12])

	images := readCSV(t, filepath.Join(dir, "golang_images.csv"))
	require.Len(t, images, 2)
	require.Equal(t, imageHeader, images[0])
	require.Equal(t, "post_url", images[1][5])
}

func TestExportSubreddit_NoImagesFile(t *testing.T) {
	exporter, db := newTestExporter(t)

	require.NoError(t, db.SavePost(&model.Post{
		Subreddit: "golang", PostID: "p1", Title: "plain", ContentType: "text",
	}))

	dir := t.TempDir()

	result, err := exporter.ExportSubreddit("golang", dir)
	require.NoError(t, err)
	require.Empty(t, result.ImagesFile)

	_, err = os.Stat(filepath.Join(dir, "golang_images.csv"))
	require.True(t, os.IsNotExist(err), "images csv must not exist when no images were found")
}

func TestExportAll(t *testing.T) {
	exporter, db := newTestExporter(t)
	seedSubreddit(t, db)

	require.NoError(t, db.SavePost(&model.Post{
		Subreddit: "pics", PostID: "x1", Title: "other",
	}))

	dir := t.TempDir()

	results, err := exporter.ExportAll(dir)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "golang", results[0].Subreddit)
	require.Equal(t, "pics", results[1].Subreddit)
}

func TestExportJSON(t *testing.T) {
	exporter, db := newTestExporter(t)
	seedSubreddit(t, db)

	dir := t.TempDir()

	path, err := exporter.ExportJSON("golang", dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "golang.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"post_id": "p1"`)
	require.Contains(t, string(data), `"comment_id": "c1"`)
}
