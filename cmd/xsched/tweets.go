package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"xsched/internal/app"
	"xsched/internal/daemon"
	"xsched/internal/model"
	"xsched/internal/xs"
)

// create command
var (
	createType     string
	createHookID   int64
	createCategory string
	createAutoHook bool
	createTopic    string
	createVars     []string
	createSchedule string
	createNextSlot bool
	createApprove  bool
)

var createCmd = &cobra.Command{
	Use:   "create CONTENT",
	Short: "Create a draft tweet, optionally opened with a hook",
	Long: `Create a draft tweet. Pass "-" as CONTENT to read it from stdin.

A hook can be chosen by id (--hook-id), by category (--hook-category) or
automatically from the content or --topic (--auto-hook).`,
	Args: exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args[0], cmd.InOrStdin())
		if err != nil {
			return err
		}
		contentType, ok := model.ParseContentType(createType)
		if !ok {
			return fmt.Errorf("%w: unknown content type %q", xs.ErrValidation, createType)
		}
		sel, err := hookSelection()
		if err != nil {
			return err
		}
		if createSchedule != "" && createNextSlot {
			return fmt.Errorf("%w: --schedule and --next-slot are exclusive", xs.ErrValidation)
		}

		return withApp("Create", func(a *app.XSApp) error {
			var when time.Time
			if createSchedule != "" {
				loc, err := a.Config().Location()
				if err != nil {
					return fmt.Errorf("%w: %w", xs.ErrValidation, err)
				}
				if when, err = parseWhen(createSchedule, time.Now(), loc); err != nil {
					return err
				}
				if !when.After(time.Now()) {
					return fmt.Errorf("%w: %s is not in the future", xs.ErrInvalidTime, when.Format(time.RFC3339))
				}
			}

			tweet, err := a.Tweets().Create(content, contentType, sel)
			if err != nil {
				return err
			}
			id := tweet.ID
			switch {
			case createSchedule != "":
				tweet, err = a.Tweets().Schedule(id, when)
			case createNextSlot:
				tweet, err = a.Tweets().ScheduleNextSlot(id)
			case createApprove:
				tweet, err = a.Tweets().Approve(id)
			}
			if err != nil {
				// the draft exists even though the follow-up step failed
				printKV("TWEET_ID", id)
				printKV("TWEET_STATUS", model.StatusDraft)
				return err
			}
			printTweet(tweet)
			if tweet.HookID != nil {
				printKV("HOOK_ID", *tweet.HookID)
			}
			fmt.Fprintf(os.Stderr, "%d/%d characters\n", xs.CharCount(tweet.Content), a.Config().Platform.CharacterLimit)
			return nil
		})
	},
}

func hookSelection() (xs.HookSelection, error) {
	vars, err := parseVars(createVars)
	if err != nil {
		return xs.HookSelection{}, err
	}
	sel := xs.HookSelection{Topic: createTopic, Vars: vars}

	modes := 0
	if createHookID != 0 {
		modes++
		sel.Mode, sel.ID = xs.HookByID, createHookID
	}
	if createCategory != "" {
		modes++
		cat, err := model.ParseHookCategory(createCategory)
		if err != nil {
			return sel, fmt.Errorf("%w: %w", xs.ErrValidation, err)
		}
		sel.Mode, sel.Category = xs.HookByCategory, cat
	}
	if createAutoHook {
		modes++
		sel.Mode = xs.HookAuto
	}
	if modes > 1 {
		return sel, fmt.Errorf("%w: choose one of --hook-id, --hook-category or --auto-hook", xs.ErrValidation)
	}
	return sel, nil
}

func readContent(arg string, stdin io.Reader) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("%w: reading stdin: %w", xs.ErrValidation, err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

func printTweet(t *model.Tweet) {
	printKV("TWEET_ID", t.ID)
	printKV("TWEET_STATUS", t.Status)
	if t.ScheduledTime != nil {
		printKV("SCHEDULED_TIME", t.ScheduledTime.UTC().Format(time.RFC3339))
	}
	if t.RemoteID != "" {
		printKV("REMOTE_ID", t.RemoteID)
	}
}

// schedule command
var scheduleNextSlot bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule ID [WHEN]",
	Short: "Schedule a tweet for a time or the next free posting slot",
	Long: `Schedule a tweet. WHEN may be RFC 3339, "YYYY-MM-DD HH:MM" in the
configured timezone, or an offset such as +2h. With --next-slot the tweet
goes to the next default posting time.`,
	Args: rangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "tweet")
		if err != nil {
			return err
		}
		if scheduleNextSlot == (len(args) == 2) {
			return fmt.Errorf("%w: give either WHEN or --next-slot", xs.ErrValidation)
		}

		return withApp("Schedule", func(a *app.XSApp) error {
			var tweet *model.Tweet
			if scheduleNextSlot {
				tweet, err = a.Tweets().ScheduleNextSlot(id)
			} else {
				loc, lerr := a.Config().Location()
				if lerr != nil {
					return fmt.Errorf("%w: %w", xs.ErrValidation, lerr)
				}
				when, perr := parseWhen(args[1], time.Now(), loc)
				if perr != nil {
					return perr
				}
				tweet, err = a.Tweets().Schedule(id, when)
			}
			if err != nil {
				return err
			}
			printTweet(tweet)
			return nil
		})
	},
}

// post command
var postForce bool

func runPost(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0], "tweet")
	if err != nil {
		return err
	}
	return withApp("Post", func(a *app.XSApp) error {
		tweet, err := postTweet(cmd.Context(), a.Tweets(), id, postForce)
		if tweet != nil {
			printTweet(tweet)
			if tweet.RemoteURL != "" {
				printKV("TWEET_URL", tweet.RemoteURL)
			}
		}
		return err
	})
}

type tweetPoster interface {
	Post(ctx context.Context, id int64, opts xs.PostOptions) (*model.Tweet, error)
	Show(id int64) (*model.Tweet, error)
}

// postTweet posts id and returns the tweet to report. When the platform
// rejected the post the tweet is reloaded so its failed state is printed.
func postTweet(ctx context.Context, tweets tweetPoster, id int64, force bool) (*model.Tweet, error) {
	tweet, err := tweets.Post(ctx, id, xs.PostOptions{Force: force})
	if tweet == nil && errors.Is(err, xs.ErrCollaborator) {
		if reloaded, showErr := tweets.Show(id); showErr == nil {
			tweet = reloaded
		}
	}
	return tweet, err
}

var postCmd = &cobra.Command{
	Use:   "post ID",
	Short: "Post a tweet now",
	Args:  exactArgs(1),
	RunE:  runPost,
}

// queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage queued tweets",
}

var (
	queueStatus string
	queueLimit  int
)

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tweets in queue order",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filter model.TweetFilter
		if queueStatus != "" {
			s, ok := model.ParseTweetStatus(queueStatus)
			if !ok {
				return fmt.Errorf("%w: unknown status %q", xs.ErrValidation, queueStatus)
			}
			filter.Status = s
		}
		filter.Limit = queueLimit

		return withApp("QueueList", func(a *app.XSApp) error {
			tweets, err := a.Tweets().List(filter)
			if err != nil {
				return err
			}
			if len(tweets) == 0 {
				fmt.Println("Queue is empty.")
				return nil
			}
			rows := make([][]string, 0, len(tweets))
			for _, t := range tweets {
				hook := "-"
				if t.HookID != nil {
					hook = strconv.FormatInt(*t.HookID, 10)
				}
				rows = append(rows, []string{
					strconv.FormatInt(t.ID, 10),
					statusText(t.Status),
					formatTime(t.ScheduledTime),
					string(t.ContentType),
					hook,
					truncate(t.Content, 50),
				})
			}
			fmt.Println(renderTable(
				[]string{"ID", "Status", "Scheduled", "Type", "Hook", "Content"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		})
	},
}

var queueShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a tweet with its media and hook usage",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "tweet")
		if err != nil {
			return err
		}
		return withApp("QueueShow", func(a *app.XSApp) error {
			d, err := a.Tweets().Details(id)
			if err != nil {
				return err
			}
			t := d.Tweet
			printTweet(t)
			fmt.Printf("Type:       %s\n", t.ContentType)
			fmt.Printf("Scheduled:  %s\n", formatTime(t.ScheduledTime))
			fmt.Printf("Posted:     %s\n", formatTime(t.PostedTime))
			if t.RemoteURL != "" {
				fmt.Printf("URL:        %s\n", t.RemoteURL)
			}
			if t.ErrorMessage != "" {
				fmt.Printf("Error:      %s (retries: %d)\n", color.RedString(t.ErrorMessage), t.RetryCount)
			}
			fmt.Printf("Characters: %d/%d\n", xs.CharCount(t.Content), a.Config().Platform.CharacterLimit)
			fmt.Printf("\n%s\n", t.Content)

			if len(d.Media) > 0 {
				fmt.Println()
				fmt.Println(mediaTable(d.Media))
			}
			for _, u := range d.Usages {
				score := "unscored"
				if u.PerformanceScore != nil {
					score = fmt.Sprintf("%.1f", *u.PerformanceScore)
				}
				fmt.Printf("Hook usage %d: hook %d, score %s\n", u.ID, u.HookID, score)
			}
			return nil
		})
	},
}

var queueApproveCmd = &cobra.Command{
	Use:   "approve ID",
	Short: "Approve a draft for scheduling",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tweetAction("Approve", args[0], func(a *app.XSApp, id int64) (*model.Tweet, error) {
			return a.Tweets().Approve(id)
		})
	},
}

var queueEditCmd = &cobra.Command{
	Use:   "edit ID CONTENT",
	Short: "Replace the content of an unposted tweet",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := readContent(args[1], cmd.InOrStdin())
		if err != nil {
			return err
		}
		return tweetAction("Edit", args[0], func(a *app.XSApp, id int64) (*model.Tweet, error) {
			return a.Tweets().Edit(id, content)
		})
	},
}

var queueResetCmd = &cobra.Command{
	Use:   "reset ID",
	Short: "Return a failed tweet to draft",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return tweetAction("Reset", args[0], func(a *app.XSApp, id int64) (*model.Tweet, error) {
			return a.Tweets().Reset(id)
		})
	},
}

var queueDeleteForce bool

var queueDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a tweet and its media",
	Long:  "Delete a tweet and its media. Posted tweets need --force.",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "tweet")
		if err != nil {
			return err
		}
		return withApp("Delete", func(a *app.XSApp) error {
			if err := a.Tweets().Delete(id, queueDeleteForce); err != nil {
				return err
			}
			printKV("TWEET_ID", id)
			printKV("TWEET_STATUS", "deleted")
			return nil
		})
	},
}

var queuePostCmd = &cobra.Command{
	Use:   "post ID",
	Short: "Post a queued tweet now",
	Args:  exactArgs(1),
	RunE:  runPost,
}

func tweetAction(operation, rawID string, fn func(a *app.XSApp, id int64) (*model.Tweet, error)) error {
	id, err := parseID(rawID, "tweet")
	if err != nil {
		return err
	}
	return withApp(operation, func(a *app.XSApp) error {
		tweet, err := fn(a, id)
		if err != nil {
			return err
		}
		printTweet(tweet)
		return nil
	})
}

// daemon command
var daemonOnce bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Post scheduled tweets as they come due",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("Daemon", func(a *app.XSApp) error {
			d, err := a.NewDaemon()
			if err != nil {
				return err
			}
			if daemonOnce {
				report, err := d.Poll(cmd.Context())
				printKV("POSTED", len(report.Posted))
				printKV("FAILED", len(report.Failed))
				printKV("SKIPPED", len(report.Skipped))
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(os.Stderr, "daemon polling every %s (Ctrl-C to stop)\n", a.Config().PollInterval())
			if err := d.Run(ctx); err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return fmt.Errorf("%w: %w", xs.ErrInvalidState, err)
				}
				return err
			}
			return nil
		})
	},
}

func init() {
	createCmd.Flags().StringVarP(&createType, "type", "t", string(model.ContentPersonal), "Content type")
	createCmd.Flags().Int64Var(&createHookID, "hook-id", 0, "Open with this hook template")
	createCmd.Flags().StringVar(&createCategory, "hook-category", "", "Open with the best hook in this category")
	createCmd.Flags().BoolVar(&createAutoHook, "auto-hook", false, "Open with the best hook for the topic")
	createCmd.Flags().StringVar(&createTopic, "topic", "", "Topic for --auto-hook (defaults to the content)")
	createCmd.Flags().StringArrayVar(&createVars, "var", nil, "Hook placeholder value as key=value (repeatable)")
	createCmd.Flags().StringVarP(&createSchedule, "schedule", "s", "", "Schedule for this time")
	createCmd.Flags().BoolVar(&createNextSlot, "next-slot", false, "Schedule for the next posting slot")
	createCmd.Flags().BoolVar(&createApprove, "approve", false, "Approve the draft immediately")

	scheduleCmd.Flags().BoolVar(&scheduleNextSlot, "next-slot", false, "Use the next default posting slot")

	postCmd.Flags().BoolVarP(&postForce, "force", "f", false, "Allow posting a draft")
	queuePostCmd.Flags().BoolVarP(&postForce, "force", "f", false, "Allow posting a draft")

	queueListCmd.Flags().StringVar(&queueStatus, "status", "", "Only tweets with this status")
	queueListCmd.Flags().IntVarP(&queueLimit, "limit", "n", 0, "Maximum number of tweets")
	queueDeleteCmd.Flags().BoolVarP(&queueDeleteForce, "force", "f", false, "Allow deleting a posted tweet")

	daemonCmd.Flags().BoolVar(&daemonOnce, "once", false, "Dispatch due tweets once and exit")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueApproveCmd)
	queueCmd.AddCommand(queuePostCmd)
	queueCmd.AddCommand(queueDeleteCmd)
	queueCmd.AddCommand(queueEditCmd)
	queueCmd.AddCommand(queueResetCmd)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(daemonCmd)
}
