package xs

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"xsched/internal/model"
)

var (
	capsPattern    = regexp.MustCompile(`[A-Z]{3,}`)
	numberPattern  = regexp.MustCompile(`\d+`)
	resultsPattern = regexp.MustCompile(`\$[\d,]+[kK]?|\d+[kK]\s*(monthly|per|/)`)
	listPattern    = regexp.MustCompile(`\d+\s+\w+\s+that`)
	urgencyPattern = regexp.MustCompile(`(?i)\b(now|today|stop|never|before|tonight|hurry)\b`)
	youPattern     = regexp.MustCompile(`(?i)\byou(r|'re)?\b`)
)

// Attention element names reported by AnalyzeHook.
const (
	ElementCaps          = "caps"
	ElementEmoji         = "emoji"
	ElementNumbers       = "numbers"
	ElementQuestion      = "question"
	ElementExclamation   = "exclamation"
	ElementUrgency       = "urgency"
	ElementDirectAddress = "direct_address"
)

var elementWeights = map[string]float64{
	ElementCaps:          2,
	ElementEmoji:         1,
	ElementNumbers:       2,
	ElementQuestion:      1.5,
	ElementExclamation:   1,
	ElementUrgency:       1.5,
	ElementDirectAddress: 1,
}

// elementOrder keeps reported elements stable.
var elementOrder = []string{
	ElementCaps, ElementEmoji, ElementNumbers, ElementQuestion,
	ElementExclamation, ElementUrgency, ElementDirectAddress,
}

// HookAnalysis describes how strongly a post opens.
type HookAnalysis struct {
	FirstLine        string
	DetectedCategory model.HookCategory
	Elements         []string
	Strength         float64 // 0..10
	HasHook          bool
	Improvements     []string
	Recommendations  []*ScoredHook
}

// AnalyzeHook inspects the first line of text. Recommendations are left
// for the caller to fill.
func AnalyzeHook(text string) *HookAnalysis {
	text = strings.TrimSpace(text)
	firstLine, _, found := strings.Cut(text, "\n")
	if !found {
		firstLine = truncateRunes(text, 50)
	}

	present := map[string]bool{
		ElementCaps:          capsPattern.MatchString(firstLine),
		ElementEmoji:         containsEmoji(firstLine),
		ElementNumbers:       numberPattern.MatchString(firstLine),
		ElementQuestion:      strings.HasSuffix(strings.TrimSpace(firstLine), "?"),
		ElementExclamation:   strings.Contains(firstLine, "!"),
		ElementUrgency:       urgencyPattern.MatchString(firstLine),
		ElementDirectAddress: youPattern.MatchString(firstLine),
	}

	a := &HookAnalysis{
		FirstLine:        firstLine,
		DetectedCategory: DetectCategory(text),
	}
	for _, name := range elementOrder {
		if present[name] {
			a.Elements = append(a.Elements, name)
			a.Strength += elementWeights[name]
		}
	}
	a.Strength = math.Min(a.Strength, 10)
	a.HasHook = a.Strength >= 3

	if a.Strength < 5 {
		a.Improvements = []string{
			"Open with a stronger hook",
			"Add numbers or specific results",
			"Use attention-grabbing punctuation or emojis",
		}
	}
	return a
}

// DetectCategory guesses the hook category of an example post.
func DetectCategory(text string) model.HookCategory {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "comment", "i'll send", "i'll dm", "repost"):
		return model.HookCategory{Kind: model.CategoryValueGiveaway}
	case containsAny(lower, "holy", "sh*t", "insane", "crazy", "wtf"):
		return model.HookCategory{Kind: model.CategoryShock}
	case resultsPattern.MatchString(text):
		return model.HookCategory{Kind: model.CategoryResults}
	case containsAny(lower, "i've cracked", "i've built", "i spent"):
		return model.HookCategory{Kind: model.CategoryAuthority}
	case containsAny(lower, "asked me not to", "secretly", "nobody talks"):
		return model.HookCategory{Kind: model.CategoryInsider}
	case listPattern.MatchString(lower):
		return model.HookCategory{Kind: model.CategoryList}
	case containsAny(lower, "free for", "next 24", "limited time"):
		return model.HookCategory{Kind: model.CategoryTimeSensitive}
	case containsAny(lower, "unpopular opinion", "everyone is wrong", "stop doing"):
		return model.HookCategory{Kind: model.CategoryContrarian}
	case containsAny(lower, "years ago", "last week i", "story time"):
		return model.HookCategory{Kind: model.CategoryStory}
	case hasAnyPrefix(text, "Why", "How", "What", "When"):
		return model.HookCategory{Kind: model.CategoryQuestion}
	default:
		return model.HookCategory{Kind: model.CategoryCustom}
	}
}

var tagKeywords = []struct {
	tag      string
	patterns []string
}{
	{"AI", []string{"ai", "chatgpt", "claude", "openai", "llm", "gemini"}},
	{"automation", []string{"automat", "n8n", "zapier", "workflow"}},
	{"coding", []string{"code", "coding", "developer", "programming"}},
	{"business", []string{"business", "client", "revenue", "profit"}},
	{"viral", []string{"viral", "views", "million"}},
}

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

// ExtractTags collects hashtags and topic tags from an example post.
func ExtractTags(text string) []string {
	var tags []string
	seen := map[string]struct{}{}
	add := func(tag string) {
		if _, ok := seen[tag]; ok {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	for _, m := range hashtagPattern.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	ws := words(text)
	for _, tk := range tagKeywords {
		for _, p := range tk.patterns {
			if matchesWordPrefix(ws, p) {
				add(tk.tag)
				break
			}
		}
	}
	return tags
}

// matchesWordPrefix reports whether some word starts with p. Short patterns
// like "ai" must match a whole word.
func matchesWordPrefix(ws []string, p string) bool {
	for _, w := range ws {
		if w == p || (len(p) > 3 && strings.HasPrefix(w, p)) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsEmoji(s string) bool {
	for _, r := range s {
		switch {
		case r >= 0x1F300 && r <= 0x1FAFF, // pictographs, emoticons, transport, supplemental
			r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
			return true
		case unicode.Is(unicode.So, r) && r > 0xFFFF:
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
