//go:build !sqlite

package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inovacc/redditharvest/internal/model"
	"github.com/inovacc/redditharvest/internal/params"
	"go.etcd.io/bbolt"
)

const (
	boltBucketTargets  = "targets"  // key: subreddit name -> Target JSON
	boltBucketPosts    = "posts"    // key: sub/post_id -> Post JSON
	boltBucketComments = "comments" // key: sub/post_id/comment_id -> Comment JSON
	boltBucketImages   = "images"   // key: sub/uid -> ImageRef JSON
	boltBucketRuns     = "runs"     // key: sub/uid -> RunSummary JSON
	boltBucketConfig   = "config"   // key: "config" -> Config JSON
)

var boltBuckets = []string{
	boltBucketTargets,
	boltBucketPosts,
	boltBucketComments,
	boltBucketImages,
	boltBucketRuns,
	boltBucketConfig,
}

type Bolt struct {
	db *bbolt.DB
}

func initDB() (Store, error) {
	return NewBolt(filepath.Join(params.AppdataDir, "redditharvest.bolt"))
}

// NewBolt opens (and if needed initializes) a bbolt store at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Bolt{db: db}, nil
}

func (b *Bolt) Ping() error {
	return b.db.View(func(tx *bbolt.Tx) error {
		return nil
	})
}

func (b *Bolt) Close() error {
	return b.db.Close()
}

func postKey(subreddit, postID string) []byte {
	return []byte(subreddit + "/" + postID)
}

func subPrefix(subreddit string) []byte {
	return []byte(subreddit + "/")
}

func (b *Bolt) SaveTarget(name string) error {
	if name == "" {
		return errors.New("target name is required")
	}

	target := model.Target{
		UID:     uuid.New().String(),
		Name:    name,
		AddedAt: time.Now(),
	}

	data, err := json.Marshal(&target)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		targets := tx.Bucket([]byte(boltBucketTargets))

		if targets.Get([]byte(name)) != nil {
			return nil
		}

		return targets.Put([]byte(name), data)
	})
}

func (b *Bolt) RemoveTarget(name string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketTargets)).Delete([]byte(name))
	})
}

func (b *Bolt) ListTargets() ([]model.Target, error) {
	var targets []model.Target

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketTargets)).ForEach(func(k, v []byte) error {
			var t model.Target
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("corrupt target record %s: %w", k, err)
			}

			targets = append(targets, t)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(targets, func(i, j int) bool { return targets[i].Name < targets[j].Name })

	return targets, nil
}

func (b *Bolt) TouchTarget(name string, at time.Time) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		targets := tx.Bucket([]byte(boltBucketTargets))

		data := targets.Get([]byte(name))
		if data == nil {
			return nil
		}

		var t model.Target
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}

		t.LastRunAt = at

		updated, err := json.Marshal(&t)
		if err != nil {
			return err
		}

		return targets.Put([]byte(name), updated)
	})
}

func (b *Bolt) SavePost(p *model.Post) error {
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

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketPosts)).Put(postKey(p.Subreddit, p.PostID), data)
	})
}

func (b *Bolt) PostSeen(subreddit, postID string) (bool, error) {
	var seen bool

	err := b.db.View(func(tx *bbolt.Tx) error {
		seen = tx.Bucket([]byte(boltBucketPosts)).Get(postKey(subreddit, postID)) != nil

		return nil
	})

	return seen, err
}

func (b *Bolt) GetPosts(subreddit string) ([]model.Post, error) {
	var posts []model.Post

	err := b.scanPrefix(boltBucketPosts, subreddit, func(v []byte) error {
		var p model.Post
		if err := json.Unmarshal(v, &p); err != nil {
			return err
		}

		posts = append(posts, p)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedUTC > posts[j].CreatedUTC })

	return posts, nil
}

func (b *Bolt) SaveComments(comments []model.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketComments))

		for i := range comments {
			c := &comments[i]

			if c.UID == "" {
				c.UID = uuid.New().String()
			}

			data, err := json.Marshal(c)
			if err != nil {
				return err
			}

			key := []byte(c.Subreddit + "/" + c.PostID + "/" + c.CommentID)
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *Bolt) GetComments(subreddit string) ([]model.Comment, error) {
	var comments []model.Comment

	err := b.scanPrefix(boltBucketComments, subreddit, func(v []byte) error {
		var c model.Comment
		if err := json.Unmarshal(v, &c); err != nil {
			return err
		}

		comments = append(comments, c)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return comments, nil
}

func (b *Bolt) SaveImages(images []model.ImageRef) error {
	if len(images) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucketImages))

		for i := range images {
			img := &images[i]

			if img.UID == "" {
				img.UID = uuid.New().String()
			}

			data, err := json.Marshal(img)
			if err != nil {
				return err
			}

			key := []byte(img.Subreddit + "/" + img.UID)
			if err := bucket.Put(key, data); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *Bolt) GetImages(subreddit string) ([]model.ImageRef, error) {
	var images []model.ImageRef

	err := b.scanPrefix(boltBucketImages, subreddit, func(v []byte) error {
		var img model.ImageRef
		if err := json.Unmarshal(v, &img); err != nil {
			return err
		}

		images = append(images, img)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(images, func(i, j int) bool {
		if images[i].PostID != images[j].PostID {
			return images[i].PostID < images[j].PostID
		}

		return images[i].Index < images[j].Index
	})

	return images, nil
}

func (b *Bolt) SaveRun(r *model.RunSummary) error {
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

	return b.db.Update(func(tx *bbolt.Tx) error {
		key := []byte(r.Subreddit + "/" + r.UID)

		return tx.Bucket([]byte(boltBucketRuns)).Put(key, data)
	})
}

func (b *Bolt) GetRuns(subreddit string) ([]model.RunSummary, error) {
	var runs []model.RunSummary

	err := b.scanPrefix(boltBucketRuns, subreddit, func(v []byte) error {
		var r model.RunSummary
		if err := json.Unmarshal(v, &r); err != nil {
			return err
		}

		runs = append(runs, r)

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })

	return runs, nil
}

func (b *Bolt) Subreddits() ([]string, error) {
	seen := make(map[string]struct{})

	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketPosts)).ForEach(func(k, _ []byte) error {
			if idx := strings.IndexByte(string(k), '/'); idx > 0 {
				seen[string(k[:idx])] = struct{}{}
			}

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	subs := make([]string, 0, len(seen))
	for sub := range seen {
		subs = append(subs, sub)
	}

	sort.Strings(subs)

	return subs, nil
}

func (b *Bolt) Counts(subreddit string) (*model.SubredditCounts, error) {
	counts := &model.SubredditCounts{Subreddit: subreddit}

	err := b.db.View(func(tx *bbolt.Tx) error {
		for bucket, dst := range map[string]*int{
			boltBucketPosts:    &counts.Posts,
			boltBucketComments: &counts.Comments,
			boltBucketImages:   &counts.Images,
		} {
			c := tx.Bucket([]byte(bucket)).Cursor()
			prefix := subPrefix(subreddit)

			for k, _ := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, _ = c.Next() {
				*dst++
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return counts, nil
}

func (b *Bolt) GetConfig() (*model.Config, error) {
	var cfg *model.Config

	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(boltBucketConfig)).Get([]byte("config"))
		if data == nil {
			return nil
		}

		cfg = &model.Config{}

		return json.Unmarshal(data, cfg)
	})
	if err != nil {
		return nil, err
	}

	if cfg == nil {
		def := model.DefaultConfig()

		return &def, nil
	}

	return cfg, nil
}

func (b *Bolt) SaveConfig(cfg *model.Config) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return err
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(boltBucketConfig)).Put([]byte("config"), data)
	})
}

// scanPrefix iterates values under subreddit's key prefix in bucket.
func (b *Bolt) scanPrefix(bucket, subreddit string, fn func(v []byte) error) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucket)).Cursor()
		prefix := subPrefix(subreddit)

		for k, v := c.Seek(prefix); k != nil && strings.HasPrefix(string(k), string(prefix)); k, v = c.Next() {
			if err := fn(v); err != nil {
				return fmt.Errorf("corrupt record %s: %w", k, err)
			}
		}

		return nil
	})
}
