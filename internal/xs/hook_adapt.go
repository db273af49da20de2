package xs

import (
	"regexp"
	"strconv"
	"strings"

	"xsched/internal/model"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

const contentPlaceholder = "{content}"

// AdaptHook applies hook to content. It never changes the content itself
// except for list hooks, which number its lines. A "{content}" placeholder in
// the hook text fixes where the content goes; other "{key}" placeholders are
// filled from vars and left in place when vars has no value for them.
func AdaptHook(hook *model.HookTemplate, content string, vars map[string]string, defaultSeparator string) string {
	text := strings.TrimSpace(fillPlaceholders(hook.HookText, vars))

	if strings.Contains(text, contentPlaceholder) {
		return strings.Replace(text, contentPlaceholder, content, 1)
	}

	switch hook.Category.Kind {
	case model.CategoryValueGiveaway:
		// the hook is a call to action and closes the post
		return content + "\n\n" + text
	case model.CategoryQuestion:
		text = strings.TrimRight(text, " .!:")
		if !strings.HasSuffix(text, "?") {
			text += "?"
		}
		return text + "\n\n" + content
	case model.CategoryList:
		text = strings.TrimRight(text, " .:")
		return text + ":\n\n" + numberLines(content)
	}
	return text + separatorFor(hook, defaultSeparator) + content
}

func separatorFor(hook *model.HookTemplate, defaultSeparator string) string {
	if hook.Separator != "" {
		return hook.Separator
	}
	return defaultSeparator
}

func fillPlaceholders(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		if key == "content" {
			return m
		}
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// numberLines turns each non-blank line of content into a numbered item,
// dropping any bullet the line already carried.
func numberLines(content string) string {
	var items []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		for _, bullet := range []string{"- ", "* ", "• "} {
			line = strings.TrimPrefix(line, bullet)
		}
		if line == "" {
			continue
		}
		items = append(items, strconv.Itoa(len(items)+1)+". "+line)
	}
	return strings.Join(items, "\n")
}
