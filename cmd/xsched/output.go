package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"xsched/internal/model"
	"xsched/internal/xs"
)

// initColor enables colour only when stdout is a terminal and NO_COLOR is unset.
func initColor() {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	color.NoColor = !tty || os.Getenv("NO_COLOR") != ""
}

// printKV writes one machine-readable KEY=value line.
func printKV(key string, value any) {
	fmt.Printf("%s=%v\n", key, value)
}

func errorLabel(kind string) string {
	return color.New(color.FgRed, color.Bold).Sprintf("error [%s]:", kind)
}

func warnLabel() string {
	return color.New(color.FgYellow, color.Bold).Sprint("warning:")
}

func statusText(s model.TweetStatus) string {
	switch s {
	case model.StatusPosted:
		return color.GreenString(string(s))
	case model.StatusFailed:
		return color.RedString(string(s))
	case model.StatusScheduled:
		return color.CyanString(string(s))
	case model.StatusPosting:
		return color.YellowString(string(s))
	}
	return string(s)
}

func verdictText(b *xs.BudgetStatus) string {
	if b.Over {
		return color.RedString(b.Verdict())
	}
	return color.GreenString(b.Verdict())
}

// warnBudget prints an advisory warning when the budget is spent.
func warnBudget(b *xs.BudgetStatus) {
	if b != nil && b.Over {
		fmt.Fprintf(os.Stderr, "%s monthly budget exceeded: $%.2f of $%.2f spent\n", warnLabel(), b.Spent, b.Limit)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// truncate shortens s to n runes, flattening newlines.
func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s id %q", xs.ErrValidation, what, s)
	}
	return id, nil
}

// parseVars parses repeated key=value flags.
func parseVars(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", xs.ErrValidation, p)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

// parseWhen parses a schedule time in loc. It accepts RFC 3339, a local
// "YYYY-MM-DD HH:MM" or "YYYY-MM-DDTHH:MM", or a "+duration" offset from now.
func parseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		d, err := time.ParseDuration(rest)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid offset %q", xs.ErrValidation, s)
		}
		return now.Add(d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse time %q (use RFC 3339, \"YYYY-MM-DD HH:MM\" or +duration)", xs.ErrValidation, s)
}

func wrapArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return fmt.Errorf("%w: %w", xs.ErrValidation, err)
		}
		return nil
	}
}

func exactArgs(n int) cobra.PositionalArgs { return wrapArgs(cobra.ExactArgs(n)) }

func maxArgs(n int) cobra.PositionalArgs { return wrapArgs(cobra.MaximumNArgs(n)) }

func rangeArgs(lo, hi int) cobra.PositionalArgs { return wrapArgs(cobra.RangeArgs(lo, hi)) }

var noArgs = wrapArgs(cobra.NoArgs)
