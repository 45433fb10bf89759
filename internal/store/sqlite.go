//go:build sqlite

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/params"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS targets (
	name        TEXT PRIMARY KEY,
	uid         TEXT NOT NULL,
	added_at    TEXT NOT NULL,
	last_run_at TEXT
);
CREATE TABLE IF NOT EXISTS posts (
	subreddit TEXT NOT NULL,
	post_id   TEXT NOT NULL,
	data      TEXT NOT NULL,
	created   REAL NOT NULL,
	PRIMARY KEY (subreddit, post_id)
);
CREATE TABLE IF NOT EXISTS comments (
	subreddit  TEXT NOT NULL,
	post_id    TEXT NOT NULL,
	comment_id TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (subreddit, post_id, comment_id)
);
CREATE TABLE IF NOT EXISTS images (
	uid       TEXT PRIMARY KEY,
	subreddit TEXT NOT NULL,
	post_id   TEXT NOT NULL,
	idx       INTEGER NOT NULL,
	data      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	uid        TEXT PRIMARY KEY,
	subreddit  TEXT NOT NULL,
	started_at TEXT NOT NULL,
	data       TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS config (
	id   INTEGER PRIMARY KEY CHECK (id = 1),
	data TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_images_sub ON images (subreddit, post_id, idx);
CREATE INDEX IF NOT EXISTS idx_runs_sub ON runs (subreddit, started_at);
`

// Sqlite implements Store on modernc.org/sqlite.
type Sqlite struct {
	db *sql.DB
}

func initDB() (Store, error) {
	return NewSqlite(filepath.Join(params.AppdataDir, "redditharvest.db"))
}

// NewSqlite opens a SQLite store at path, bootstrapping the schema.
func NewSqlite(path string) (*Sqlite, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't handle multiple writers well
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}

	return &Sqlite{db: db}, nil
}

func (s *Sqlite) Ping() error {
	return s.db.Ping()
}

func (s *Sqlite) Close() error {
	return s.db.Close()
}

func (s *Sqlite) SaveTarget(name string) error {
	if name == "" {
		return errors.New("target name is required")
	}

	_, err := s.db.Exec(
		`INSERT INTO targets (name, uid, added_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`,
		name, uuid.New().String(), time.Now().Format(time.RFC3339Nano),
	)

	return err
}

func (s *Sqlite) RemoveTarget(name string) error {
	_, err := s.db.Exec(`DELETE FROM targets WHERE name = ?`, name)

	return err
}

func (s *Sqlite) ListTargets() ([]model.Target, error) {
	rows, err := s.db.Query(`SELECT name, uid, added_at, last_run_at FROM targets ORDER BY name`)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var targets []model.Target

	for rows.Next() {
		var (
			t       model.Target
			added   string
			lastRun sql.NullString
		)

		if err := rows.Scan(&t.Name, &t.UID, &added, &lastRun); err != nil {
			return nil, err
		}

		if t.AddedAt, err = time.Parse(time.RFC3339Nano, added); err != nil {
			return nil, err
		}

		if lastRun.Valid {
			if t.LastRunAt, err = time.Parse(time.RFC3339Nano, lastRun.String); err != nil {
				return nil, err
			}
		}

		targets = append(targets, t)
	}

	return targets, rows.Err()
}

func (s *Sqlite) TouchTarget(name string, at time.Time) error {
	_, err := s.db.Exec(
		`UPDATE targets SET last_run_at = ? WHERE name = ?`,
		at.Format(time.RFC3339Nano), name,
	)

	return err
}

func (s *Sqlite) SavePost(p *model.Post) error {
	if p == nil {
		return errors.New("post is required")
	}

	if p.UID == "" {
		p.UID = uuid.New().String()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO posts (subreddit, post_id, data, created) VALUES (?, ?, ?, ?)
		 ON CONFLICT (subreddit, post_id) DO UPDATE SET data = excluded.data`,
		p.Subreddit, p.PostID, string(data), p.CreatedUTC,
	)

	return err
}

func (s *Sqlite) PostSeen(subreddit, postID string) (bool, error) {
	var count int

	err := s.db.QueryRow(
		`SELECT COUNT(1) FROM posts WHERE subreddit = ? AND post_id = ?`,
		subreddit, postID,
	).Scan(&count)

	return count > 0, err
}

func (s *Sqlite) GetPosts(subreddit string) ([]model.Post, error) {
	rows, err := s.db.Query(
		`SELECT data FROM posts WHERE subreddit = ? ORDER BY created DESC`, subreddit)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var posts []model.Post

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var p model.Post
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, err
		}

		posts = append(posts, p)
	}

	return posts, rows.Err()
}

func (s *Sqlite) SaveComments(comments []model.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()

	for i := range comments {
		c := &comments[i]

		if c.UID == "" {
			c.UID = uuid.New().String()
		}

		data, err := json.Marshal(c)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO comments (subreddit, post_id, comment_id, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT (subreddit, post_id, comment_id) DO UPDATE SET data = excluded.data`,
			c.Subreddit, c.PostID, c.CommentID, string(data),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Sqlite) GetComments(subreddit string) ([]model.Comment, error) {
	rows, err := s.db.Query(
		`SELECT data FROM comments WHERE subreddit = ? ORDER BY post_id, comment_id`, subreddit)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var comments []model.Comment

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var c model.Comment
		if err := json.Unmarshal([]byte(data), &c); err != nil {
			return nil, err
		}

		comments = append(comments, c)
	}

	return comments, rows.Err()
}

func (s *Sqlite) SaveImages(images []model.ImageRef) error {
	if len(images) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	defer func() { _ = tx.Rollback() }()

	for i := range images {
		img := &images[i]

		if img.UID == "" {
			img.UID = uuid.New().String()
		}

		data, err := json.Marshal(img)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(
			`INSERT INTO images (uid, subreddit, post_id, idx, data) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (uid) DO NOTHING`,
			img.UID, img.Subreddit, img.PostID, img.Index, string(data),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Sqlite) GetImages(subreddit string) ([]model.ImageRef, error) {
	rows, err := s.db.Query(
		`SELECT data FROM images WHERE subreddit = ? ORDER BY post_id, idx`, subreddit)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var images []model.ImageRef

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var img model.ImageRef
		if err := json.Unmarshal([]byte(data), &img); err != nil {
			return nil, err
		}

		images = append(images, img)
	}

	return images, rows.Err()
}

func (s *Sqlite) SaveRun(r *model.RunSummary) error {
	if r == nil {
		return errors.New("run summary is required")
	}

	if r.UID == "" {
		r.UID = uuid.New().String()
	}

	data, err := json.Marshal(r)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (uid, subreddit, started_at, data) VALUES (?, ?, ?, ?)`,
		r.UID, r.Subreddit, r.StartedAt.Format(time.RFC3339Nano), string(data),
	)

	return err
}

func (s *Sqlite) GetRuns(subreddit string) ([]model.RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT data FROM runs WHERE subreddit = ? ORDER BY started_at`, subreddit)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var runs []model.RunSummary

	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}

		var r model.RunSummary
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, err
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

func (s *Sqlite) Subreddits() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT subreddit FROM posts ORDER BY subreddit`)
	if err != nil {
		return nil, err
	}

	defer func() { _ = rows.Close() }()

	var subs []string

	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

func (s *Sqlite) Counts(subreddit string) (*model.SubredditCounts, error) {
	counts := &model.SubredditCounts{Subreddit: subreddit}

	for table, dst := range map[string]*int{
		"posts":    &counts.Posts,
		"comments": &counts.Comments,
		"images":   &counts.Images,
	} {
		query := fmt.Sprintf(`SELECT COUNT(1) FROM %s WHERE subreddit = ?`, table)
		if err := s.db.QueryRow(query, subreddit).Scan(dst); err != nil {
			return nil, err
		}
	}

	return counts, nil
}

func (s *Sqlite) GetConfig() (*model.Config, error) {
	var data string

	err := s.db.QueryRow(`SELECT data FROM config WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		def := model.DefaultConfig()

		return &def, nil
	}

	if err != nil {
		return nil, err
	}

	var cfg model.Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (s *Sqlite) SaveConfig(cfg *model.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(
		`INSERT INTO config (id, data) VALUES (1, ?) ON CONFLICT (id) DO UPDATE SET data = excluded.data`,
		string(data))

	return err
}
