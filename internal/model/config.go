package model

// Config holds the application configuration
type Config struct {
	// ClientID is the Reddit application client id
	ClientID string `json:"client_id,omitempty"`

	// ClientSecret is the Reddit application client secret
	ClientSecret string `json:"client_secret,omitempty"`

	// UserAgent identifies the scraper to Reddit; required by the API
	UserAgent string `json:"user_agent,omitempty"`

	// OutputDir is the default directory for CSV exports
	OutputDir string `json:"output_dir"`

	// PostLimit is the listing page size when fetching hot posts
	PostLimit int `json:"post_limit"`

	// Pages bounds the harvest at PostLimit*Pages posts per subreddit
	Pages int `json:"pages"`

	// MaxComments is the number of top-level comment threads kept per post
	MaxComments int `json:"max_comments"`

	// Parallel is the number of subreddits harvested concurrently
	Parallel int `json:"parallel"`

	// RequestsPerSecond throttles the Reddit API client
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// DefaultConfig returns a Config with sensible defaults.
// The limits mirror what the scraper has always used: 100-post pages,
// five pages, five top-level threads per post.
func DefaultConfig() Config {
	return Config{
		OutputDir:         "./reddit_data",
		PostLimit:         100,
		Pages:             5,
		MaxComments:       5,
		Parallel:          4,
		RequestsPerSecond: 1.0,
	}
}
