package xs

import (
	"time"

	"xsched/internal/model"
)

// TweetClaim describes a conditional transition into the posting state.
// The claim succeeds only if the row still holds Content and one of the From
// statuses (and, when DueBy is set, a scheduled time at or before it).
type TweetClaim struct {
	ID      int64
	Content string
	From    []model.TweetStatus
	DueBy   *time.Time
	Now     time.Time
}

// Database is the persistence store. Lookups return nil, nil when the row
// does not exist. State transitions are conditional updates that report
// whether a row changed, so concurrent callers can never both win.
type Database interface {
	// Tweet operations

	// CreateTweet inserts a tweet and, when usage is non-nil, its hook usage
	// row in the same transaction.
	CreateTweet(tweet *model.Tweet, usage *model.HookUsage) (*model.Tweet, error)
	FindTweet(id int64) (*model.Tweet, error)

	// ListTweets orders by scheduled time (unscheduled last), then newest first.
	ListTweets(filter model.TweetFilter) ([]*model.Tweet, error)

	// ListDueTweets returns scheduled tweets whose time is at or before now.
	ListDueTweets(now time.Time, limit int) ([]*model.Tweet, error)

	ApproveTweet(id int64, now time.Time) (bool, error)
	ScheduleTweet(id int64, when time.Time, now time.Time) (bool, error)

	// UpdateTweetContent replaces the content of an editable tweet and
	// returns it to draft.
	UpdateTweetContent(id int64, content string, now time.Time) (bool, error)

	ClaimTweet(claim TweetClaim) (bool, error)

	// CompleteTweet records a successful post. It only applies to a tweet in
	// the posting state that has never been posted.
	CompleteTweet(id int64, postedAt time.Time, remoteID, remoteURL string) (bool, error)
	FailTweet(id int64, message string, now time.Time) (bool, error)

	// ResetTweet returns a failed tweet to draft.
	ResetTweet(id int64, now time.Time) (bool, error)

	// DeleteTweet removes the tweet and its media rows. Hook usage rows stay.
	DeleteTweet(id int64) error

	CountTweets(since time.Time) (*model.TweetCounts, error)

	// Hook operations

	// CreateHookTemplates inserts all templates in one transaction and
	// returns their identifiers in input order.
	CreateHookTemplates(hooks []*model.HookTemplate) ([]int64, error)
	FindHookTemplate(id int64) (*model.HookTemplate, error)
	ListHookTemplates(filter model.HookFilter) ([]*model.HookTemplate, error)
	UpdateHookStats(id int64, successRate, avgEngagement float64, now time.Time) error

	CreateHookUsage(usage *model.HookUsage) (*model.HookUsage, error)
	FindHookUsage(id int64) (*model.HookUsage, error)
	ListHookUsages(hookID int64) ([]*model.HookUsage, error)
	ListHookUsagesForTweet(tweetID int64) ([]*model.HookUsage, error)

	// ScoreHookUsage attaches score and metrics to a usage that has no score yet.
	ScoreHookUsage(usage *model.HookUsage) (bool, error)

	// HookPerformance averages scored usages per template, best first.
	HookPerformance(limit int) ([]*model.HookPerformance, error)

	// Media operations

	CreateMedia(media *model.Media) (*model.Media, error)
	FindMedia(id int64) (*model.Media, error)

	// ListMedia lists media for one tweet, or all media when tweetID is nil.
	ListMedia(tweetID *int64) ([]*model.Media, error)
	DeleteMedia(id int64) error

	// API usage operations

	CreateUsageRecord(record *model.UsageRecord) (*model.UsageRecord, error)
	SumUsageCost(since time.Time) (float64, error)
	SummarizeUsage(since time.Time) ([]*model.UsageSummary, error)

	// BackupTo writes a consistent copy of the store to path.
	BackupTo(path string) error

	// Close closes the database connection.
	Close() error
}
