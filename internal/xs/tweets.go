package xs

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"xsched/internal/model"
)

// LifecycleOptions configures the TweetManager.
type LifecycleOptions struct {
	CharacterLimit int
	PostTimes      []string // "HH:MM" default posting slots
	Location       *time.Location
}

// TweetManager owns the tweet lifecycle:
//
//	draft -> approved -> scheduled -> posting -> posted | failed
//
// Every transition is a conditional update in the database, so a tweet is
// handed to the poster at most once per claim.
type TweetManager struct {
	database Database
	hooks    *HookMatcher
	usage    *UsageTracker
	media    MediaStore
	poster   Poster
	logger   Logger
	clock    Clock
	opts     LifecycleOptions
}

// NewTweetManager creates a TweetManager with the provided dependencies.
func NewTweetManager(database Database, hooks *HookMatcher, usage *UsageTracker, media MediaStore, poster Poster, logger Logger, clock Clock, opts LifecycleOptions) *TweetManager {
	if opts.CharacterLimit <= 0 {
		opts.CharacterLimit = DefaultCharacterLimit
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &TweetManager{
		database: database,
		hooks:    hooks,
		usage:    usage,
		media:    media,
		poster:   poster,
		logger:   logger,
		clock:    clock,
		opts:     opts,
	}
}

// HookMode selects how Create picks a hook template.
type HookMode int

const (
	HookNone HookMode = iota
	HookByID
	HookByCategory
	HookAuto
)

// HookSelection tells Create whether and how to apply a hook. Vars fill
// placeholders in the hook text.
type HookSelection struct {
	Mode     HookMode
	ID       int64
	Category model.HookCategory
	Topic    string // for HookAuto; defaults to the content
	Vars     map[string]string
}

// Create stores a new draft. When a hook is selected, the stored content is
// the adapted text and a hook usage row is written with the tweet.
func (m *TweetManager) Create(content string, contentType model.ContentType, sel HookSelection) (*model.Tweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, kindError(ErrValidation, "content is empty")
	}
	ct, ok := model.ParseContentType(string(contentType))
	if !ok {
		return nil, kindError(ErrValidation, "unknown content type %q", contentType)
	}

	hook, err := m.selectHook(content, sel)
	if err != nil {
		return nil, err
	}
	final := content
	if hook != nil {
		final = m.hooks.Adapt(hook, content, sel.Vars)
	}
	if err := checkLength(final, m.opts.CharacterLimit); err != nil {
		return nil, err
	}

	now := m.clock.Now().UTC()
	tweet := &model.Tweet{
		Content:     final,
		ContentType: ct,
		Status:      model.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	var usage *model.HookUsage
	if hook != nil {
		tweet.HookID = &hook.ID
		usage = &model.HookUsage{HookID: hook.ID, AdaptedContent: final, UsedAt: now}
	}

	created, err := m.database.CreateTweet(tweet, usage)
	if err != nil {
		return nil, storeError("creating tweet", err)
	}
	if hook != nil {
		m.logger.Info("tweet created", "id", created.ID, "hook", hook.ID, "category", hook.Category.String())
	} else {
		m.logger.Info("tweet created", "id", created.ID)
	}
	return created, nil
}

// selectHook resolves sel to a template. Category and auto selection rank
// candidates against the topic, which defaults to the content.
func (m *TweetManager) selectHook(content string, sel HookSelection) (*model.HookTemplate, error) {
	topic := sel.Topic
	if topic == "" {
		topic = content
	}
	switch sel.Mode {
	case HookNone:
		return nil, nil
	case HookByID:
		return m.hooks.Show(sel.ID)
	case HookByCategory:
		ranked, err := m.hooks.Suggest(SuggestQuery{Topic: topic, Category: &sel.Category, Count: 1})
		if err != nil {
			return nil, err
		}
		if len(ranked) == 0 {
			return nil, kindError(ErrNotFound, "no hook template in category %s", sel.Category)
		}
		return ranked[0].Hook, nil
	case HookAuto:
		ranked, err := m.hooks.Suggest(SuggestQuery{Topic: topic, Count: 1})
		if err != nil {
			return nil, err
		}
		if len(ranked) == 0 {
			return nil, kindError(ErrNotFound, "no hook templates available")
		}
		return ranked[0].Hook, nil
	}
	return nil, kindError(ErrValidation, "unknown hook selection mode %d", sel.Mode)
}

// Show returns one tweet.
func (m *TweetManager) Show(id int64) (*model.Tweet, error) {
	tweet, err := m.database.FindTweet(id)
	if err != nil {
		return nil, storeError("finding tweet", err)
	}
	if tweet == nil {
		return nil, kindError(ErrNotFound, "tweet %d", id)
	}
	return tweet, nil
}

// TweetDetails is a tweet with its media and hook usages.
type TweetDetails struct {
	Tweet  *model.Tweet
	Media  []*model.Media
	Usages []*model.HookUsage
}

// Details returns a tweet with everything attached to it.
func (m *TweetManager) Details(id int64) (*TweetDetails, error) {
	tweet, err := m.Show(id)
	if err != nil {
		return nil, err
	}
	media, err := m.database.ListMedia(&id)
	if err != nil {
		return nil, storeError("listing media", err)
	}
	usages, err := m.database.ListHookUsagesForTweet(id)
	if err != nil {
		return nil, storeError("listing hook usages", err)
	}
	return &TweetDetails{Tweet: tweet, Media: media, Usages: usages}, nil
}

// List returns tweets in queue order.
func (m *TweetManager) List(filter model.TweetFilter) ([]*model.Tweet, error) {
	tweets, err := m.database.ListTweets(filter)
	if err != nil {
		return nil, storeError("listing tweets", err)
	}
	return tweets, nil
}

// StuckPosting lists tweets left in the posting state, e.g. by a crash
// mid-post. They are never retried automatically.
func (m *TweetManager) StuckPosting() ([]*model.Tweet, error) {
	return m.List(model.TweetFilter{Status: model.StatusPosting})
}

// transitionError explains why a conditional update matched no row.
func (m *TweetManager) transitionError(id int64, action string) error {
	tweet, err := m.Show(id)
	if err != nil {
		return err
	}
	return kindError(ErrInvalidState, "cannot %s tweet %d in state %s", action, id, tweet.Status)
}

// Approve marks a draft ready to post.
func (m *TweetManager) Approve(id int64) (*model.Tweet, error) {
	tweet, err := m.Show(id)
	if err != nil {
		return nil, err
	}
	if tweet.Status != model.StatusDraft {
		return nil, kindError(ErrInvalidState, "cannot approve tweet %d in state %s", id, tweet.Status)
	}
	if err := checkLength(tweet.Content, m.opts.CharacterLimit); err != nil {
		return nil, err
	}

	ok, err := m.database.ApproveTweet(id, m.clock.Now().UTC())
	if err != nil {
		return nil, storeError("approving tweet", err)
	}
	if !ok {
		return nil, m.transitionError(id, "approve")
	}
	m.logger.Info("tweet approved", "id", id)
	return m.Show(id)
}

// Schedule sets the time at which the daemon will post the tweet. The time
// must be in the future whatever state the tweet is in.
func (m *TweetManager) Schedule(id int64, when time.Time) (*model.Tweet, error) {
	now := m.clock.Now()
	if !when.After(now) {
		return nil, kindError(ErrInvalidTime, "%s is not in the future", when.UTC().Format(time.RFC3339))
	}

	ok, err := m.database.ScheduleTweet(id, when.UTC(), now.UTC())
	if err != nil {
		return nil, storeError("scheduling tweet", err)
	}
	if !ok {
		return nil, m.transitionError(id, "schedule")
	}
	m.logger.Info("tweet scheduled", "id", id, "at", when.UTC().Format(time.RFC3339))
	return m.Show(id)
}

// ScheduleNextSlot schedules the tweet at the next configured posting time.
func (m *TweetManager) ScheduleNextSlot(id int64) (*model.Tweet, error) {
	slot, err := NextSlot(m.clock.Now(), m.opts.PostTimes, m.opts.Location)
	if err != nil {
		return nil, err
	}
	return m.Schedule(id, slot)
}

// Edit replaces the content of a tweet that has not been posted and
// returns it to draft.
func (m *TweetManager) Edit(id int64, content string) (*model.Tweet, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, kindError(ErrValidation, "content is empty")
	}
	if err := checkLength(content, m.opts.CharacterLimit); err != nil {
		return nil, err
	}

	ok, err := m.database.UpdateTweetContent(id, content, m.clock.Now().UTC())
	if err != nil {
		return nil, storeError("updating tweet", err)
	}
	if !ok {
		return nil, m.transitionError(id, "edit")
	}
	m.logger.Info("tweet edited", "id", id)
	return m.Show(id)
}

// Reset returns a failed tweet to draft so it can be approved or scheduled again.
func (m *TweetManager) Reset(id int64) (*model.Tweet, error) {
	ok, err := m.database.ResetTweet(id, m.clock.Now().UTC())
	if err != nil {
		return nil, storeError("resetting tweet", err)
	}
	if !ok {
		return nil, m.transitionError(id, "reset")
	}
	m.logger.Info("tweet reset to draft", "id", id)
	return m.Show(id)
}

// Delete removes a tweet and its media. Posted or in-flight tweets need force.
func (m *TweetManager) Delete(id int64, force bool) error {
	tweet, err := m.Show(id)
	if err != nil {
		return err
	}
	if !force && (tweet.Status == model.StatusPosted || tweet.Status == model.StatusPosting) {
		return kindError(ErrInvalidState, "tweet %d is %s; use force to delete it", id, tweet.Status)
	}

	media, err := m.database.ListMedia(&id)
	if err != nil {
		return storeError("listing media", err)
	}
	if err := m.database.DeleteTweet(id); err != nil {
		return storeError("deleting tweet", err)
	}
	for _, md := range media {
		if err := m.media.Remove(md.FilePath); err != nil {
			m.logger.Warn("failed to remove media file", "path", md.FilePath, "error", err)
		}
	}
	m.logger.Info("tweet deleted", "id", id, "status", string(tweet.Status), "media", len(media))
	return nil
}

// PostOptions modifies Post.
type PostOptions struct {
	// Force also allows posting a draft that was never approved.
	Force bool
}

func postableStatuses(force bool) []model.TweetStatus {
	statuses := []model.TweetStatus{model.StatusApproved, model.StatusScheduled, model.StatusFailed}
	if force {
		statuses = append(statuses, model.StatusDraft)
	}
	return statuses
}

// Post publishes a tweet now. Re-posting a failed tweet is an explicit retry.
func (m *TweetManager) Post(ctx context.Context, id int64, opts PostOptions) (*model.Tweet, error) {
	tweet, err := m.Show(id)
	if err != nil {
		return nil, err
	}
	from := postableStatuses(opts.Force)
	if !slices.Contains(from, tweet.Status) {
		return nil, kindError(ErrInvalidState, "cannot post tweet %d in state %s", id, tweet.Status)
	}
	if err := checkLength(tweet.Content, m.opts.CharacterLimit); err != nil {
		return nil, err
	}
	if err := m.ready(ctx); err != nil {
		return nil, err
	}

	claimed, err := m.attempt(ctx, TweetClaim{
		ID:      id,
		Content: tweet.Content,
		From:    from,
		Now:     m.clock.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, m.transitionError(id, "post")
	}
	return m.Show(id)
}

func (m *TweetManager) ready(ctx context.Context) error {
	if err := m.poster.Ready(ctx); err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			return err
		}
		return kindError(ErrNotAuthenticated, "%v", err)
	}
	return nil
}

// attempt claims the tweet and, if the claim wins, makes exactly one poster
// call and records its outcome. It reports false when another caller holds
// or has consumed the claim.
func (m *TweetManager) attempt(ctx context.Context, claim TweetClaim) (bool, error) {
	ok, err := m.database.ClaimTweet(claim)
	if err != nil {
		return false, storeError("claiming tweet", err)
	}
	if !ok {
		return false, nil
	}
	id := claim.ID

	media, err := m.database.ListMedia(&id)
	if err != nil {
		m.fail(id, "loading media: "+err.Error())
		return true, storeError("listing media", err)
	}
	attachments, closeAll, err := m.openMedia(media)
	if err != nil {
		m.fail(id, err.Error())
		return true, storeError("opening media", err)
	}

	m.logger.Info("posting tweet", "id", id, "media", len(attachments))
	res, postErr := m.poster.Post(ctx, PostRequest{Text: claim.Content, Media: attachments})
	closeAll()
	if postErr == nil && res == nil {
		postErr = errors.New("poster returned no result")
	}
	if postErr != nil {
		m.fail(id, postErr.Error())
		return true, collaboratorError("posting tweet", postErr)
	}

	ok, err = m.database.CompleteTweet(id, m.clock.Now().UTC(), res.RemoteID, res.URL)
	if err != nil {
		m.logger.Error("post published but not recorded", "id", id, "remote_id", res.RemoteID, "error", err)
		return true, storeError("recording post", err)
	}
	if !ok {
		return true, kindError(ErrInvalidState, "tweet %d left the posting state during the post", id)
	}
	if _, err := m.usage.RecordCall("x", "tweet_create", 0); err != nil {
		m.logger.Warn("failed to record api usage", "error", err)
	}
	m.logger.Info("tweet posted", "id", id, "remote_id", res.RemoteID)
	return true, nil
}

func (m *TweetManager) fail(id int64, message string) {
	ok, err := m.database.FailTweet(id, message, m.clock.Now().UTC())
	if err != nil {
		m.logger.Error("failed to mark tweet failed", "id", id, "error", err)
		return
	}
	if ok {
		m.logger.Warn("tweet post failed", "id", id, "error", message)
	}
}

func (m *TweetManager) openMedia(media []*model.Media) ([]MediaAttachment, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	attachments := make([]MediaAttachment, 0, len(media))
	for _, md := range media {
		rc, err := m.media.Open(md.FilePath)
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		closers = append(closers, rc)
		attachments = append(attachments, MediaAttachment{
			Name:     md.FilePath,
			Kind:     md.Kind,
			MIMEType: md.MIMEType,
			Content:  rc,
		})
	}
	return attachments, closeAll, nil
}

// DispatchReport lists what one dispatch pass did with each due tweet.
type DispatchReport struct {
	Posted  []int64
	Failed  []int64
	Skipped []int64 // claimed elsewhere first
}

// DispatchDue posts every scheduled tweet whose time has come. A tweet whose
// claim is lost to a concurrent caller is skipped. It stops early only on a
// store error or context cancellation between tweets.
func (m *TweetManager) DispatchDue(ctx context.Context) (*DispatchReport, error) {
	now := m.clock.Now().UTC()
	due, err := m.database.ListDueTweets(now, 0)
	if err != nil {
		return nil, storeError("listing due tweets", err)
	}
	report := &DispatchReport{}
	if len(due) == 0 {
		return report, nil
	}
	if err := m.ready(ctx); err != nil {
		return report, err
	}

	for _, tweet := range due {
		if ctx.Err() != nil {
			break
		}
		claim := TweetClaim{
			ID:      tweet.ID,
			Content: tweet.Content,
			From:    []model.TweetStatus{model.StatusScheduled},
			DueBy:   &now,
			Now:     now,
		}

		if err := checkLength(tweet.Content, m.opts.CharacterLimit); err != nil {
			ok, cerr := m.database.ClaimTweet(claim)
			if cerr != nil {
				return report, storeError("claiming tweet", cerr)
			}
			if ok {
				m.fail(tweet.ID, err.Error())
				report.Failed = append(report.Failed, tweet.ID)
			} else {
				report.Skipped = append(report.Skipped, tweet.ID)
			}
			continue
		}

		claimed, err := m.attempt(ctx, claim)
		switch {
		case !claimed:
			if err != nil {
				return report, err
			}
			report.Skipped = append(report.Skipped, tweet.ID)
		case err == nil:
			report.Posted = append(report.Posted, tweet.ID)
		case errors.Is(err, ErrStore):
			return report, err
		default:
			report.Failed = append(report.Failed, tweet.ID)
		}
	}
	return report, nil
}
