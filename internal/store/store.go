// Package store persists harvested records between runs.
package store

import (
	"sync"
	"time"

	"github.com/inovacc/redditharvest/internal/model"
)

// Store defines the persistence operations used by the app.
type Store interface {
	Ping() error
	Close() error

	// Target operations
	SaveTarget(name string) error
	RemoveTarget(name string) error
	ListTargets() ([]model.Target, error)
	TouchTarget(name string, at time.Time) error

	// Harvest records
	SavePost(p *model.Post) error
	PostSeen(subreddit, postID string) (bool, error)
	GetPosts(subreddit string) ([]model.Post, error)
	SaveComments(comments []model.Comment) error
	GetComments(subreddit string) ([]model.Comment, error)
	SaveImages(images []model.ImageRef) error
	GetImages(subreddit string) ([]model.ImageRef, error)

	// Run summaries
	SaveRun(r *model.RunSummary) error
	GetRuns(subreddit string) ([]model.RunSummary, error)

	// Aggregates
	Subreddits() ([]string, error)
	Counts(subreddit string) (*model.SubredditCounts, error)

	// Config
	GetConfig() (*model.Config, error)
	SaveConfig(cfg *model.Config) error
}

var (
	instance Store
	once     sync.Once
	initErr  error
)

// GetDB returns the process-wide store, opening it on first use. The
// backend is selected at build time: bbolt by default, SQLite with the
// sqlite build tag.
func GetDB() Store {
	once.Do(func() {
		instance, initErr = initDB()
	})

	if initErr != nil {
		panic(initErr)
	}

	return instance
}
