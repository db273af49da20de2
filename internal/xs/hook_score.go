package xs

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"unicode"

	"xsched/internal/model"
)

// HookOptions tunes hook suggestion and scoring.
type HookOptions struct {
	TagWeight         float64
	PerformanceWeight float64
	TextWeight        float64

	// SuccessScore is the usage score at or above which a usage counts as a success.
	SuccessScore float64

	// DefaultSeparator joins prepended hooks and content.
	DefaultSeparator string

	// DefaultCount is the number of suggestions returned when none is requested.
	DefaultCount int
}

// DefaultHookOptions returns the stock weights.
func DefaultHookOptions() HookOptions {
	return HookOptions{
		TagWeight:         0.6,
		PerformanceWeight: 0.3,
		TextWeight:        0.1,
		SuccessScore:      7,
		DefaultSeparator:  " ",
		DefaultCount:      3,
	}
}

// ScoredHook is a template with its suggestion score.
type ScoredHook struct {
	Hook  *model.HookTemplate
	Score float64
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {}, "from": {},
	"your": {}, "you": {}, "are": {}, "how": {}, "what": {}, "why": {}, "into": {},
	"about": {}, "have": {}, "has": {}, "was": {}, "will": {}, "can": {}, "not": {},
	"but": {}, "our": {}, "its": {}, "just": {}, "more": {}, "than": {},
}

// topicKeywords lower-cases topic and returns its distinct significant words
// in order of appearance.
func topicKeywords(topic string) []string {
	fields := words(topic)
	seen := make(map[string]struct{}, len(fields))
	var keywords []string
	for _, f := range fields {
		if len([]rune(f)) < 3 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		keywords = append(keywords, f)
	}
	return keywords
}

// words lower-cases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func tagMatches(tag, keyword string) bool {
	tag = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tag)), "#")
	if tag == keyword {
		return true
	}
	if len(tag) < 4 || len(keyword) < 4 {
		return false
	}
	return strings.HasPrefix(keyword, tag) || strings.HasPrefix(tag, keyword)
}

// performanceScore folds the stored success rate and engagement into [0, 1].
func performanceScore(h *model.HookTemplate) float64 {
	engagement := h.AvgEngagementRate
	if engagement == 0 {
		engagement = h.PerformanceMetrics["engagement_rate"]
	}
	return 0.5*clamp01(h.SuccessRate) + 0.5*clamp01(engagement/10)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// scoreHook combines tag overlap, stored performance and example-text match.
// With no keywords only performance counts.
func scoreHook(h *model.HookTemplate, keywords []string, opts HookOptions) float64 {
	perf := opts.PerformanceWeight * performanceScore(h)
	if len(keywords) == 0 {
		return perf
	}

	var tagHits, textHits int
	text := strings.ToLower(h.ExampleTweet + " " + h.HookText)
	for _, k := range keywords {
		if slices.ContainsFunc(h.Tags, func(tag string) bool { return tagMatches(tag, k) }) {
			tagHits++
		}
		if strings.Contains(text, k) {
			textHits++
		}
	}
	n := float64(len(keywords))
	return opts.TagWeight*float64(tagHits)/n + perf + opts.TextWeight*float64(textHits)/n
}

// rankHooks scores hooks against topic and orders them best first, breaking
// ties by identifier ascending.
func rankHooks(hooks []*model.HookTemplate, topic string, opts HookOptions) []*ScoredHook {
	keywords := topicKeywords(topic)
	scored := make([]*ScoredHook, len(hooks))
	for i, h := range hooks {
		scored[i] = &ScoredHook{Hook: h, Score: scoreHook(h, keywords, opts)}
	}
	slices.SortFunc(scored, func(a, b *ScoredHook) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Hook.ID, b.Hook.ID)
	})
	return scored
}
