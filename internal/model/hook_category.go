package model

import (
	"fmt"
	"strings"
)

// CategoryKind is the closed set of hook pattern categories.
type CategoryKind string

const (
	CategoryShock         CategoryKind = "shock"
	CategoryValueGiveaway CategoryKind = "value_giveaway"
	CategoryAuthority     CategoryKind = "authority"
	CategoryResults       CategoryKind = "results"
	CategoryContrarian    CategoryKind = "contrarian"
	CategoryInsider       CategoryKind = "insider"
	CategoryList          CategoryKind = "list"
	CategoryQuestion      CategoryKind = "question"
	CategoryStory         CategoryKind = "story"
	CategoryTimeSensitive CategoryKind = "time_sensitive"
	CategoryCustom        CategoryKind = "custom"
)

// CategoryKinds lists the known categories, custom last.
var CategoryKinds = []CategoryKind{
	CategoryShock, CategoryValueGiveaway, CategoryAuthority, CategoryResults,
	CategoryContrarian, CategoryInsider, CategoryList, CategoryQuestion,
	CategoryStory, CategoryTimeSensitive, CategoryCustom,
}

// HookCategory is a category kind plus, for custom categories, a free-form label.
type HookCategory struct {
	Kind  CategoryKind
	Label string
}

// ParseHookCategory accepts a known kind name, "custom", or "custom:<label>".
func ParseHookCategory(s string) (HookCategory, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return HookCategory{}, fmt.Errorf("empty hook category")
	}
	if label, ok := strings.CutPrefix(s, string(CategoryCustom)+":"); ok {
		return HookCategory{Kind: CategoryCustom, Label: strings.TrimSpace(label)}, nil
	}
	for _, k := range CategoryKinds {
		if string(k) == s {
			return HookCategory{Kind: k}, nil
		}
	}
	return HookCategory{}, fmt.Errorf("unknown hook category %q", s)
}

// String renders the category in the form accepted by ParseHookCategory.
func (c HookCategory) String() string {
	if c.Kind == CategoryCustom && c.Label != "" {
		return string(CategoryCustom) + ":" + c.Label
	}
	return string(c.Kind)
}

// IsZero reports whether no category was set.
func (c HookCategory) IsZero() bool {
	return c.Kind == ""
}
