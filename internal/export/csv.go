// Package export writes harvested records to per-subreddit CSV and JSON
// files.
package export

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/inovacc/redditharvest/internal/encoding"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/store"
)

var postHeader = []string{
	"subreddit", "post_id", "post_title", "post_score", "post_url",
	"post_content_url", "post_text", "timestamp", "post_upvote_ratio",
	"post_ups", "post_total_awards_received", "post_link_flair_text",
	"post_author", "post_num_comments", "has_images", "num_images",
	"is_gallery", "content_type",
}

var commentHeader = []string{
	"post_id", "comment_id", "comment_text", "comment_score",
	"comment_author", "comment_created_utc", "parent_id", "reply_to_id",
	"comment_sentiment", "has_images", "num_images", "image_urls",
	"subreddit",
}

var imageHeader = []string{
	"subreddit", "post_id", "comment_id", "image_index", "image_url",
	"image_source", "image_type", "media_id",
}

// ExporterOptions configures an Exporter.
type ExporterOptions struct {
	Logger *slog.Logger
}

// Exporter writes store contents to disk.
type Exporter struct {
	db     store.Store
	logger *slog.Logger
}

// NewExporter creates an exporter reading from db.
func NewExporter(db store.Store, opts ExporterOptions) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Exporter{db: db, logger: logger}
}

// Result describes the files written for one subreddit.
type Result struct {
	Subreddit    string
	PostsFile    string
	CommentsFile string
	ImagesFile   string
	Posts        int
	Comments     int
	Images       int
}

// ExportSubreddit writes <sub>_posts.csv, <sub>_comments.csv and, when any
// images were found, <sub>_images.csv into dir.
func (e *Exporter) ExportSubreddit(subreddit, dir string) (*Result, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	posts, err := e.db.GetPosts(subreddit)
	if err != nil {
		return nil, err
	}

	comments, err := e.db.GetComments(subreddit)
	if err != nil {
		return nil, err
	}

	images, err := e.db.GetImages(subreddit)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Subreddit: subreddit,
		Posts:     len(posts),
		Comments:  len(comments),
		Images:    len(images),
	}

	result.PostsFile = filepath.Join(dir, subreddit+"_posts.csv")
	if err := writeCSV(result.PostsFile, postHeader, postRows(posts)); err != nil {
		return nil, err
	}

	result.CommentsFile = filepath.Join(dir, subreddit+"_comments.csv")
	if err := writeCSV(result.CommentsFile, commentHeader, commentRows(comments)); err != nil {
		return nil, err
	}

	// The images file is only produced when something was found.
	if len(images) > 0 {
		result.ImagesFile = filepath.Join(dir, subreddit+"_images.csv")
		if err := writeCSV(result.ImagesFile, imageHeader, imageRows(images)); err != nil {
			return nil, err
		}
	}

	e.logger.Info("exported subreddit",
		"subreddit", subreddit,
		"posts", result.Posts,
		"comments", result.Comments,
		"images", result.Images,
		"dir", dir,
	)

	return result, nil
}

// ExportAll exports every subreddit with stored posts.
func (e *Exporter) ExportAll(dir string) ([]Result, error) {
	subs, err := e.db.Subreddits()
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(subs))

	for _, sub := range subs {
		res, err := e.ExportSubreddit(sub, dir)
		if err != nil {
			return nil, err
		}

		results = append(results, *res)
	}

	return results, nil
}

// subredditDump is the JSON export shape.
type subredditDump struct {
	Subreddit string           `json:"subreddit"`
	Posts     []model.Post     `json:"posts"`
	Comments  []model.Comment  `json:"comments"`
	Images    []model.ImageRef `json:"images"`
}

// ExportJSON writes a single <sub>.json with every record for the subreddit.
func (e *Exporter) ExportJSON(subreddit, dir string) (string, error) {
	posts, err := e.db.GetPosts(subreddit)
	if err != nil {
		return "", err
	}

	comments, err := e.db.GetComments(subreddit)
	if err != nil {
		return "", err
	}

	images, err := e.db.GetImages(subreddit)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, subreddit+".json")

	err = encoding.SaveJSON(path, subredditDump{
		Subreddit: subreddit,
		Posts:     posts,
		Comments:  comments,
		Images:    images,
	})
	if err != nil {
		return "", err
	}

	return path, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write(header); err != nil {
		_ = f.Close()

		return err
	}

	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()

		return err
	}

	w.Flush()

	if err := w.Error(); err != nil {
		_ = f.Close()

		return err
	}

	return f.Close()
}

func postRows(posts []model.Post) [][]string {
	rows := make([][]string, 0, len(posts))

	for _, p := range posts {
		rows = append(rows, []string{
			p.Subreddit,
			p.PostID,
			p.Title,
			strconv.Itoa(p.Score),
			p.Permalink,
			p.ContentURL,
			p.SelfText,
			formatFloat(p.CreatedUTC),
			formatFloat(p.UpvoteRatio),
			strconv.Itoa(p.Ups),
			strconv.Itoa(p.TotalAwards),
			p.LinkFlairText,
			p.Author,
			strconv.Itoa(p.NumComments),
			strconv.FormatBool(p.HasImages),
			strconv.Itoa(p.NumImages),
			strconv.FormatBool(p.IsGallery),
			p.ContentType,
		})
	}

	return rows
}

func commentRows(comments []model.Comment) [][]string {
	rows := make([][]string, 0, len(comments))

	for _, c := range comments {
		rows = append(rows, []string{
			c.PostID,
			c.CommentID,
			c.Body,
			strconv.Itoa(c.Score),
			c.Author,
			formatFloat(c.CreatedUTC),
			c.ParentID,
			c.ReplyToID,
			c.Sentiment,
			strconv.FormatBool(c.HasImages),
			strconv.Itoa(c.NumImages),
			strings.Join(c.ImageURLs, "|"),
			c.Subreddit,
		})
	}

	return rows
}

func imageRows(images []model.ImageRef) [][]string {
	rows := make([][]string, 0, len(images))

	for _, img := range images {
		rows = append(rows, []string{
			img.Subreddit,
			img.PostID,
			img.CommentID,
			strconv.Itoa(img.Index),
			img.URL,
			img.Source,
			img.Type,
			img.MediaID,
		})
	}

	return rows
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
