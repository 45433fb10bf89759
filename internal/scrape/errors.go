package scrape

import "fmt"

// SubredditError indicates a subreddit could not be harvested
type SubredditError struct {
	Subreddit string
	Reason    string
	Err       error
}

func (e *SubredditError) Error() string {
	return fmt.Sprintf("subreddit %s: %s: %v", e.Subreddit, e.Reason, e.Err)
}

func (e *SubredditError) Unwrap() error {
	return e.Err
}

// SkipReason categorizes why a post was skipped
type SkipReason int

const (
	SkipReasonNone SkipReason = iota
	SkipReasonSeen
	SkipReasonCommentsFailed
)

func (r SkipReason) String() string {
	switch r {
	case SkipReasonNone:
		return ""
	case SkipReasonSeen:
		return "already harvested"
	case SkipReasonCommentsFailed:
		return "comment fetch failed"
	}

	return ""
}
