package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"xsched/internal/app"
	"xsched/internal/model"
	"xsched/internal/xs"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "Manage hook templates",
}

var hooksImportFormat string

var hooksImportCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import hook templates from a json, csv or txt file",
	Long: `Import hook templates. Invalid entries are reported and skipped; the
command fails only when no entry is valid. Pass "-" to read stdin, which
requires --format.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ImportHooks", func(a *app.XSApp) error {
			report, err := a.ImportHooks(args[0], hooksImportFormat, cmd.InOrStdin())
			if report != nil {
				printKV("HOOKS_IMPORTED", len(report.Imported))
				printKV("HOOKS_REJECTED", len(report.Rejected))
				for _, r := range report.Rejected {
					fmt.Fprintf(os.Stderr, "%s entry %d: %s\n", warnLabel(), r.Index+1, r.Reason)
				}
			}
			return err
		})
	},
}

var (
	hooksCategory string
	hooksTag      string
	hooksLimit    int
)

func categoryFlag() (*model.HookCategory, error) {
	if hooksCategory == "" {
		return nil, nil
	}
	cat, err := model.ParseHookCategory(hooksCategory)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", xs.ErrValidation, err)
	}
	return &cat, nil
}

var hooksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hook templates",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := categoryFlag()
		if err != nil {
			return err
		}
		filter := model.HookFilter{Category: cat, Tag: hooksTag, Limit: hooksLimit}
		return withApp("ListHooks", func(a *app.XSApp) error {
			hooks, err := a.Hooks().List(filter)
			if err != nil {
				return err
			}
			if len(hooks) == 0 {
				fmt.Println("No hook templates. Import some with: xsched hooks import FILE")
				return nil
			}
			rows := make([][]string, 0, len(hooks))
			for _, h := range hooks {
				rows = append(rows, []string{
					strconv.FormatInt(h.ID, 10),
					h.Category.String(),
					truncate(h.Name, 30),
					truncate(h.HookText, 40),
					fmt.Sprintf("%.0f%%", h.SuccessRate*100),
					strings.Join(h.Tags, ","),
				})
			}
			fmt.Println(renderTable(
				[]string{"ID", "Category", "Name", "Hook", "Success", "Tags"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

var hooksShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a hook template",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "hook")
		if err != nil {
			return err
		}
		return withApp("ShowHook", func(a *app.XSApp) error {
			h, err := a.Hooks().Show(id)
			if err != nil {
				return err
			}
			printKV("HOOK_ID", h.ID)
			fmt.Printf("Name:       %s\n", h.Name)
			fmt.Printf("Category:   %s\n", h.Category)
			fmt.Printf("Hook:       %s\n", h.HookText)
			if h.ExampleTweet != "" {
				fmt.Printf("Example:    %s\n", h.ExampleTweet)
			}
			if h.StructureNotes != "" {
				fmt.Printf("Structure:  %s\n", h.StructureNotes)
			}
			if len(h.Tags) > 0 {
				fmt.Printf("Tags:       %s\n", strings.Join(h.Tags, ", "))
			}
			fmt.Printf("Success:    %.0f%%\n", h.SuccessRate*100)
			fmt.Printf("Engagement: %.2f%%\n", h.AvgEngagementRate)
			if h.Source != "" {
				fmt.Printf("Source:     %s\n", h.Source)
			}
			return nil
		})
	},
}

var hooksCount int

var hooksSuggestCmd = &cobra.Command{
	Use:   "suggest TOPIC",
	Short: "Suggest the best hook templates for a topic",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := categoryFlag()
		if err != nil {
			return err
		}
		q := xs.SuggestQuery{Topic: args[0], Category: cat, Count: hooksCount}
		return withApp("SuggestHooks", func(a *app.XSApp) error {
			suggestions, err := a.Hooks().Suggest(q)
			if err != nil {
				return err
			}
			if len(suggestions) == 0 {
				fmt.Println("No matching hook templates.")
				return nil
			}
			fmt.Println(scoredTable(suggestions))
			return nil
		})
	},
}

func scoredTable(hooks []*xs.ScoredHook) string {
	rows := make([][]string, 0, len(hooks))
	for _, s := range hooks {
		rows = append(rows, []string{
			strconv.FormatInt(s.Hook.ID, 10),
			fmt.Sprintf("%.2f", s.Score),
			s.Hook.Category.String(),
			truncate(s.Hook.HookText, 50),
		})
	}
	return renderTable(
		[]string{"ID", "Score", "Category", "Hook"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
	)
}

var hooksAnalyzeCmd = &cobra.Command{
	Use:   "analyze TEXT",
	Short: "Rate the opening line of a tweet",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readContent(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		return withApp("AnalyzeHook", func(a *app.XSApp) error {
			r, err := a.Hooks().Analyze(text)
			if err != nil {
				return err
			}
			printKV("HOOK_STRENGTH", fmt.Sprintf("%.1f", r.Strength))
			printKV("HOOK_CATEGORY", r.DetectedCategory)
			printKV("HAS_HOOK", r.HasHook)
			fmt.Printf("First line: %s\n", r.FirstLine)
			if len(r.Elements) > 0 {
				fmt.Printf("Elements:   %s\n", strings.Join(r.Elements, ", "))
			}
			for _, imp := range r.Improvements {
				fmt.Printf("  - %s\n", imp)
			}
			if len(r.Recommendations) > 0 {
				fmt.Println("\nRecommended templates:")
				fmt.Println(scoredTable(r.Recommendations))
			}
			return nil
		})
	},
}

var hooksVars []string

var hooksPreviewCmd = &cobra.Command{
	Use:   "preview HOOK_ID CONTENT",
	Short: "Show a hook applied to content without saving anything",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "hook")
		if err != nil {
			return err
		}
		vars, err := parseVars(hooksVars)
		if err != nil {
			return err
		}
		return withApp("PreviewHook", func(a *app.XSApp) error {
			adapted, err := a.Hooks().Preview(id, args[1], vars)
			if err != nil {
				return err
			}
			fmt.Println(adapted)
			limit := a.Config().Platform.CharacterLimit
			n := xs.CharCount(adapted)
			if n > limit {
				fmt.Fprintf(os.Stderr, "%s %d/%d characters, too long to post\n", warnLabel(), n, limit)
			} else {
				fmt.Fprintf(os.Stderr, "%d/%d characters\n", n, limit)
			}
			return nil
		})
	},
}

var hooksTop int

var hooksPerformanceCmd = &cobra.Command{
	Use:   "performance",
	Short: "Rank hook templates by average usage score",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("HookPerformance", func(a *app.XSApp) error {
			perf, err := a.Hooks().Performance(hooksTop)
			if err != nil {
				return err
			}
			if len(perf) == 0 {
				fmt.Println("No scored hook usages yet.")
				return nil
			}
			rows := make([][]string, 0, len(perf))
			for _, p := range perf {
				rows = append(rows, []string{
					strconv.FormatInt(p.HookID, 10),
					truncate(p.Name, 30),
					p.Category.String(),
					fmt.Sprintf("%.2f", p.AvgScore),
					strconv.Itoa(p.ScoredUsages),
				})
			}
			fmt.Println(renderTable(
				[]string{"ID", "Name", "Category", "Avg Score", "Uses"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		})
	},
}

var (
	scoreViews   int64
	scoreLikes   int64
	scoreReposts int64
	scoreReplies int64
	scoreValue   float64
)

var hooksScoreCmd = &cobra.Command{
	Use:   "score USAGE_ID",
	Short: "Record how a hook usage performed",
	Long: `Record engagement for a hook usage. The score is derived from the
metrics unless --score is given. A usage can be scored once.`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "usage")
		if err != nil {
			return err
		}
		m := xs.UsageMetrics{Views: scoreViews, Likes: scoreLikes, Reposts: scoreReposts, Replies: scoreReplies}
		if cmd.Flags().Changed("score") {
			v := scoreValue
			m.Score = &v
		}
		return withApp("ScoreHookUsage", func(a *app.XSApp) error {
			u, err := a.Hooks().ScoreUsage(id, m)
			if err != nil {
				return err
			}
			printKV("USAGE_ID", u.ID)
			printKV("HOOK_ID", u.HookID)
			if u.PerformanceScore != nil {
				printKV("PERFORMANCE_SCORE", fmt.Sprintf("%.2f", *u.PerformanceScore))
			}
			if u.EngagementRate != nil {
				printKV("ENGAGEMENT_RATE", fmt.Sprintf("%.2f", *u.EngagementRate))
			}
			return nil
		})
	},
}

var hooksTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List hook categories and how many templates each has",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("HookTypes", func(a *app.XSApp) error {
			counts, err := a.Hooks().Types()
			if err != nil {
				return err
			}
			title := cases.Title(language.English)
			rows := make([][]string, 0, len(counts))
			for _, c := range counts {
				rows = append(rows, []string{
					string(c.Kind),
					title.String(strings.ReplaceAll(string(c.Kind), "_", " ")),
					strconv.Itoa(c.Count),
				})
			}
			fmt.Println(renderTable(
				[]string{"Category", "Name", "Templates"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
			))
			return nil
		})
	},
}

func init() {
	hooksImportCmd.Flags().StringVar(&hooksImportFormat, "format", "", "json, csv or txt (default from file extension)")

	for _, c := range []*cobra.Command{hooksListCmd, hooksSuggestCmd} {
		c.Flags().StringVarP(&hooksCategory, "category", "c", "", "Hook category, or custom:<label>")
	}
	hooksListCmd.Flags().StringVar(&hooksTag, "tag", "", "Only templates with this tag")
	hooksListCmd.Flags().IntVarP(&hooksLimit, "limit", "n", 0, "Maximum number of templates")
	hooksSuggestCmd.Flags().IntVarP(&hooksCount, "count", "n", 0, "Number of suggestions (default from config)")
	hooksPreviewCmd.Flags().StringArrayVar(&hooksVars, "var", nil, "Placeholder value as key=value (repeatable)")
	hooksPerformanceCmd.Flags().IntVarP(&hooksTop, "top", "n", 10, "Number of templates to show")

	hooksScoreCmd.Flags().Int64Var(&scoreViews, "views", 0, "Impressions")
	hooksScoreCmd.Flags().Int64Var(&scoreLikes, "likes", 0, "Likes")
	hooksScoreCmd.Flags().Int64Var(&scoreReposts, "reposts", 0, "Reposts")
	hooksScoreCmd.Flags().Int64Var(&scoreReplies, "replies", 0, "Replies")
	hooksScoreCmd.Flags().Float64Var(&scoreValue, "score", 0, "Explicit score from 0 to 10")

	hooksCmd.AddCommand(hooksImportCmd)
	hooksCmd.AddCommand(hooksListCmd)
	hooksCmd.AddCommand(hooksShowCmd)
	hooksCmd.AddCommand(hooksSuggestCmd)
	hooksCmd.AddCommand(hooksAnalyzeCmd)
	hooksCmd.AddCommand(hooksPreviewCmd)
	hooksCmd.AddCommand(hooksPerformanceCmd)
	hooksCmd.AddCommand(hooksScoreCmd)
	hooksCmd.AddCommand(hooksTypesCmd)

	rootCmd.AddCommand(hooksCmd)
}
