package model

import "time"

// TweetStatus is the lifecycle state of a tweet.
type TweetStatus string

const (
	StatusDraft     TweetStatus = "draft"
	StatusApproved  TweetStatus = "approved"
	StatusScheduled TweetStatus = "scheduled"
	StatusPosting   TweetStatus = "posting" // claimed by exactly one poster
	StatusPosted    TweetStatus = "posted"
	StatusFailed    TweetStatus = "failed"
)

// AllStatuses lists every tweet status in lifecycle order.
var AllStatuses = []TweetStatus{
	StatusDraft, StatusApproved, StatusScheduled, StatusPosting, StatusPosted, StatusFailed,
}

// ParseTweetStatus returns the status named by s.
func ParseTweetStatus(s string) (TweetStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// ContentType classifies the voice of a tweet.
type ContentType string

const (
	ContentPersonal     ContentType = "personal"
	ContentProfessional ContentType = "professional"
	ContentCasual       ContentType = "casual"
	ContentEducational  ContentType = "educational"
	ContentPromotional  ContentType = "promotional"
	ContentNews         ContentType = "news"
	ContentInsight      ContentType = "insight"
	ContentHowTo        ContentType = "howto"
	ContentCustom       ContentType = "custom"
)

// ContentTypes lists the accepted content types. The first entry is the default.
var ContentTypes = []ContentType{
	ContentPersonal, ContentProfessional, ContentCasual, ContentEducational,
	ContentPromotional, ContentNews, ContentInsight, ContentHowTo, ContentCustom,
}

// ParseContentType returns the content type named by s. An empty string
// selects the default.
func ParseContentType(s string) (ContentType, bool) {
	if s == "" {
		return ContentPersonal, true
	}
	for _, ct := range ContentTypes {
		if string(ct) == s {
			return ct, true
		}
	}
	return "", false
}

// Tweet is a unit of content with a lifecycle.
type Tweet struct {
	ID            int64
	Content       string
	ContentType   ContentType
	Status        TweetStatus
	ScheduledTime *time.Time
	PostedTime    *time.Time
	RemoteID      string
	RemoteURL     string
	ErrorMessage  string
	RetryCount    int
	HookID        *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TweetFilter narrows a tweet listing. Zero values mean no filter.
type TweetFilter struct {
	Status TweetStatus
	Limit  int
}

// HookTemplate is a reusable opening pattern.
type HookTemplate struct {
	ID                 int64
	Category           HookCategory
	Name               string
	HookText           string
	ExampleTweet       string
	Separator          string // empty means the configured default
	StructureNotes     string
	PerformanceMetrics map[string]float64
	Tags               []string
	SuccessRate        float64
	AvgEngagementRate  float64
	Source             string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HookFilter narrows a hook template listing.
type HookFilter struct {
	Category *HookCategory
	Tag      string
	Limit    int
}

// HookUsage records one application of a hook template to a tweet.
// TweetID is historical and may outlive the tweet.
type HookUsage struct {
	ID               int64
	HookID           int64
	TweetID          int64
	AdaptedContent   string
	PerformanceScore *float64
	Views            int64
	Likes            int64
	Reposts          int64
	Replies          int64
	EngagementRate   *float64
	UsedAt           time.Time
}

// HookPerformance aggregates the scored usages of one template.
type HookPerformance struct {
	HookID       int64
	Name         string
	Category     HookCategory
	AvgScore     float64
	ScoredUsages int
}

// MediaKind distinguishes generated and uploaded media.
type MediaKind string

const (
	MediaImage  MediaKind = "image"
	MediaVideo  MediaKind = "video"
	MediaUpload MediaKind = "upload"
)

// Media is a file attached to (or generated for) a tweet.
type Media struct {
	ID             int64
	TweetID        *int64
	FilePath       string
	Kind           MediaKind
	MIMEType       string
	GenerationCost float64
	Prompt         string
	CreatedAt      time.Time
}

// UsageRecord is one billable (or free) external API call.
type UsageRecord struct {
	ID        int64
	APIName   string
	Operation string
	Cost      float64
	CreatedAt time.Time
}

// UsageSummary is the spend of one API over a period.
type UsageSummary struct {
	APIName string
	Calls   int
	Cost    float64
}

// TweetCounts summarises tweet activity over a period.
type TweetCounts struct {
	Created   int
	Posted    int
	Failed    int
	Scheduled int
	Drafts    int
}
