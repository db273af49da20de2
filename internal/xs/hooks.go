package xs

import (
	"io"
	"math"
	"strings"

	"xsched/internal/model"
)

// HookMatcher stores hook templates, suggests them for topics and applies them to posts.
type HookMatcher struct {
	database Database
	logger   Logger
	clock    Clock
	opts     HookOptions
}

// NewHookMatcher creates a HookMatcher. Zero weights in opts are kept as given;
// callers wanting the stock weights start from DefaultHookOptions.
func NewHookMatcher(database Database, logger Logger, clock Clock, opts HookOptions) *HookMatcher {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultHookOptions().DefaultCount
	}
	return &HookMatcher{
		database: database,
		logger:   logger,
		clock:    clock,
		opts:     opts,
	}
}

// Import parses a batch of hook definitions and stores every valid entry.
// Invalid entries are reported in the result and do not fail the batch
// unless no entry at all is valid.
func (h *HookMatcher) Import(r io.Reader, format ImportFormat) (*ImportReport, error) {
	entries, err := parseHookBatch(r, format)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{}
	var valid []*model.HookTemplate
	now := h.clock.Now().UTC()
	for i, e := range entries {
		if e.hook == nil {
			report.Rejected = append(report.Rejected, ImportRejection{Index: i, Reason: e.reason})
			continue
		}
		e.hook.CreatedAt = now
		e.hook.UpdatedAt = now
		valid = append(valid, e.hook)
	}

	if len(valid) > 0 {
		ids, err := h.database.CreateHookTemplates(valid)
		if err != nil {
			return nil, storeError("storing hook templates", err)
		}
		report.Imported = ids
	}

	h.logger.Info("hooks imported", "format", string(format), "imported", len(report.Imported), "rejected", len(report.Rejected))
	for _, r := range report.Rejected {
		h.logger.Warn("hook rejected", "index", r.Index, "reason", r.Reason)
	}
	if len(report.Imported) == 0 {
		return report, kindError(ErrValidation, "no valid hooks in batch (%d rejected)", len(report.Rejected))
	}
	return report, nil
}

// List returns templates matching filter.
func (h *HookMatcher) List(filter model.HookFilter) ([]*model.HookTemplate, error) {
	hooks, err := h.database.ListHookTemplates(filter)
	if err != nil {
		return nil, storeError("listing hook templates", err)
	}
	return hooks, nil
}

// Show returns one template.
func (h *HookMatcher) Show(id int64) (*model.HookTemplate, error) {
	hook, err := h.database.FindHookTemplate(id)
	if err != nil {
		return nil, storeError("finding hook template", err)
	}
	if hook == nil {
		return nil, kindError(ErrNotFound, "hook %d", id)
	}
	return hook, nil
}

// SuggestQuery selects and ranks templates.
type SuggestQuery struct {
	Topic    string
	Category *model.HookCategory
	Count    int
}

// Suggest returns the best templates for the topic. Fewer templates than
// requested is not an error.
func (h *HookMatcher) Suggest(q SuggestQuery) ([]*ScoredHook, error) {
	hooks, err := h.List(model.HookFilter{Category: q.Category})
	if err != nil {
		return nil, err
	}
	count := q.Count
	if count <= 0 {
		count = h.opts.DefaultCount
	}
	ranked := rankHooks(hooks, q.Topic, h.opts)
	if len(ranked) > count {
		ranked = ranked[:count]
	}
	return ranked, nil
}

// Adapt applies hook to content. It has no side effects.
func (h *HookMatcher) Adapt(hook *model.HookTemplate, content string, vars map[string]string) string {
	return AdaptHook(hook, content, vars, h.opts.DefaultSeparator)
}

// Preview loads a template and shows what it would do to content.
func (h *HookMatcher) Preview(hookID int64, content string, vars map[string]string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", kindError(ErrValidation, "content is empty")
	}
	hook, err := h.Show(hookID)
	if err != nil {
		return "", err
	}
	return h.Adapt(hook, content, vars), nil
}

// Analyze rates the opening of text and, when it has no hook, recommends templates.
func (h *HookMatcher) Analyze(text string) (*HookAnalysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, kindError(ErrValidation, "text is empty")
	}
	a := AnalyzeHook(text)
	if !a.HasHook {
		recs, err := h.Suggest(SuggestQuery{Topic: truncateRunes(strings.TrimSpace(text), 50), Count: 2})
		if err != nil {
			return nil, err
		}
		a.Recommendations = recs
	}
	return a, nil
}

// RecordUsage stores one application of a template to an existing tweet.
func (h *HookMatcher) RecordUsage(hookID, tweetID int64, adapted string) (*model.HookUsage, error) {
	if _, err := h.Show(hookID); err != nil {
		return nil, err
	}
	tweet, err := h.database.FindTweet(tweetID)
	if err != nil {
		return nil, storeError("finding tweet", err)
	}
	if tweet == nil {
		return nil, kindError(ErrNotFound, "tweet %d", tweetID)
	}

	usage, err := h.database.CreateHookUsage(&model.HookUsage{
		HookID:         hookID,
		TweetID:        tweetID,
		AdaptedContent: adapted,
		UsedAt:         h.clock.Now().UTC(),
	})
	if err != nil {
		return nil, storeError("recording hook usage", err)
	}
	return usage, nil
}

// UsageMetrics is post-hoc performance data for a hook usage. Score, when
// set, is used as is; otherwise it is derived from the engagement rate.
type UsageMetrics struct {
	Views   int64
	Likes   int64
	Reposts int64
	Replies int64
	Score   *float64
}

// ScoreUsage attaches a performance score to a usage exactly once and
// refreshes the template's success rate and average engagement.
func (h *HookMatcher) ScoreUsage(usageID int64, m UsageMetrics) (*model.HookUsage, error) {
	if m.Views < 0 || m.Likes < 0 || m.Reposts < 0 || m.Replies < 0 {
		return nil, kindError(ErrValidation, "metrics must be non-negative")
	}
	if m.Score == nil && m.Views == 0 {
		return nil, kindError(ErrValidation, "either a score or a positive view count is required")
	}
	if m.Score != nil && (math.IsNaN(*m.Score) || *m.Score < 0 || *m.Score > 10) {
		return nil, kindError(ErrValidation, "score %.2f outside 0..10", *m.Score)
	}

	usage, err := h.database.FindHookUsage(usageID)
	if err != nil {
		return nil, storeError("finding hook usage", err)
	}
	if usage == nil {
		return nil, kindError(ErrNotFound, "hook usage %d", usageID)
	}
	if usage.PerformanceScore != nil {
		return nil, kindError(ErrInvalidState, "hook usage %d is already scored", usageID)
	}

	usage.Views, usage.Likes, usage.Reposts, usage.Replies = m.Views, m.Likes, m.Reposts, m.Replies
	if m.Views > 0 {
		engagement := float64(m.Likes+m.Reposts+m.Replies) / float64(m.Views) * 100
		usage.EngagementRate = &engagement
	}
	score := 0.0
	switch {
	case m.Score != nil:
		score = *m.Score
	case usage.EngagementRate != nil:
		score = math.Min(10, *usage.EngagementRate*2)
	}
	usage.PerformanceScore = &score

	ok, err := h.database.ScoreHookUsage(usage)
	if err != nil {
		return nil, storeError("scoring hook usage", err)
	}
	if !ok {
		return nil, kindError(ErrInvalidState, "hook usage %d is already scored", usageID)
	}

	if err := h.refreshStats(usage.HookID); err != nil {
		return nil, err
	}
	h.logger.Info("hook usage scored", "usage", usageID, "hook", usage.HookID, "score", score)
	return usage, nil
}

func (h *HookMatcher) refreshStats(hookID int64) error {
	usages, err := h.database.ListHookUsages(hookID)
	if err != nil {
		return storeError("listing hook usages", err)
	}

	var scored, successes, engaged int
	var engagementSum float64
	for _, u := range usages {
		if u.PerformanceScore == nil {
			continue
		}
		scored++
		if *u.PerformanceScore >= h.opts.SuccessScore {
			successes++
		}
		if u.EngagementRate != nil {
			engaged++
			engagementSum += *u.EngagementRate
		}
	}
	if scored == 0 {
		return nil
	}

	hook, err := h.Show(hookID)
	if err != nil {
		return err
	}
	avgEngagement := hook.AvgEngagementRate
	if engaged > 0 {
		avgEngagement = engagementSum / float64(engaged)
	}
	successRate := float64(successes) / float64(scored)
	if err := h.database.UpdateHookStats(hookID, successRate, avgEngagement, h.clock.Now().UTC()); err != nil {
		return storeError("updating hook stats", err)
	}
	return nil
}

// Performance returns the topN templates by average usage score. Templates
// without scored usages are left out.
func (h *HookMatcher) Performance(topN int) ([]*model.HookPerformance, error) {
	if topN <= 0 {
		topN = 10
	}
	perf, err := h.database.HookPerformance(topN)
	if err != nil {
		return nil, storeError("computing hook performance", err)
	}
	return perf, nil
}

// CategoryCount is the number of stored templates in one category.
type CategoryCount struct {
	Kind  model.CategoryKind
	Count int
}

// Types counts stored templates per category kind, covering every kind.
func (h *HookMatcher) Types() ([]CategoryCount, error) {
	hooks, err := h.List(model.HookFilter{})
	if err != nil {
		return nil, err
	}
	counts := make(map[model.CategoryKind]int, len(model.CategoryKinds))
	for _, hook := range hooks {
		counts[hook.Category.Kind]++
	}
	out := make([]CategoryCount, len(model.CategoryKinds))
	for i, k := range model.CategoryKinds {
		out[i] = CategoryCount{Kind: k, Count: counts[k]}
	}
	return out, nil
}
