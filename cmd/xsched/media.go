package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"xsched/internal/app"
	"xsched/internal/model"
	"xsched/internal/xs"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Generate, attach and manage media",
}

var (
	mediaTweet       int64
	mediaAspectRatio string
	mediaQuality     string
	mediaDuration    int
)

func mediaTweetID() *int64 {
	if mediaTweet == 0 {
		return nil
	}
	id := mediaTweet
	return &id
}

func printGenerated(key string, g *xs.Generated) {
	printKV("MEDIA_ID", g.Media.ID)
	printKV(key, g.Media.FilePath)
	printKV("GENERATION_COST", fmt.Sprintf("%.4f", g.Media.GenerationCost))
	if g.Budget != nil {
		printKV("BUDGET_STATUS", g.Budget.Verdict())
		warnBudget(g.Budget)
	}
}

var mediaGenerateImageCmd = &cobra.Command{
	Use:   "generate-image PROMPT",
	Short: "Generate an image, optionally for a tweet",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := xs.ImageRequest{Prompt: args[0], AspectRatio: mediaAspectRatio, Quality: mediaQuality}
		return withApp("GenerateImage", func(a *app.XSApp) error {
			g, err := a.Media().GenerateImage(cmd.Context(), req, mediaTweetID())
			if err != nil {
				return err
			}
			printGenerated("IMAGE_PATH", g)
			return nil
		})
	},
}

var mediaGenerateVideoCmd = &cobra.Command{
	Use:   "generate-video PROMPT",
	Short: "Generate a video, optionally for a tweet",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := xs.VideoRequest{Prompt: args[0], DurationSeconds: mediaDuration, AspectRatio: mediaAspectRatio}
		return withApp("GenerateVideo", func(a *app.XSApp) error {
			g, err := a.Media().GenerateVideo(cmd.Context(), req, mediaTweetID())
			if err != nil {
				return err
			}
			printGenerated("VIDEO_PATH", g)
			return nil
		})
	},
}

var mediaAttachCmd = &cobra.Command{
	Use:   "attach TWEET_ID PATH",
	Short: "Attach an image or video file to a tweet",
	Args:  exactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "tweet")
		if err != nil {
			return err
		}
		return withApp("AttachMedia", func(a *app.XSApp) error {
			m, err := a.Media().Attach(id, args[1])
			if err != nil {
				return err
			}
			printKV("MEDIA_ID", m.ID)
			printKV("TWEET_ID", id)
			key := "IMAGE_PATH"
			if m.Kind == model.MediaVideo {
				key = "VIDEO_PATH"
			}
			printKV(key, m.FilePath)
			return nil
		})
	},
}

var mediaListCmd = &cobra.Command{
	Use:   "list",
	Short: "List media, optionally for one tweet",
	Args:  noArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp("ListMedia", func(a *app.XSApp) error {
			media, err := a.Media().List(mediaTweetID())
			if err != nil {
				return err
			}
			if len(media) == 0 {
				fmt.Println("No media.")
				return nil
			}
			fmt.Println(mediaTable(media))
			return nil
		})
	},
}

var mediaRemoveCmd = &cobra.Command{
	Use:   "remove MEDIA_ID",
	Short: "Delete a media file and its record",
	Args:  exactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "media")
		if err != nil {
			return err
		}
		return withApp("RemoveMedia", func(a *app.XSApp) error {
			if err := a.Media().Remove(id); err != nil {
				return err
			}
			printKV("MEDIA_ID", id)
			return nil
		})
	},
}

func mediaTable(media []*model.Media) string {
	rows := make([][]string, 0, len(media))
	for _, m := range media {
		tweet := "-"
		if m.TweetID != nil {
			tweet = strconv.FormatInt(*m.TweetID, 10)
		}
		rows = append(rows, []string{
			strconv.FormatInt(m.ID, 10),
			tweet,
			string(m.Kind),
			fmt.Sprintf("$%.4f", m.GenerationCost),
			m.FilePath,
		})
	}
	return renderTable(
		[]string{"ID", "Tweet", "Kind", "Cost", "Path"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func init() {
	for _, c := range []*cobra.Command{mediaGenerateImageCmd, mediaGenerateVideoCmd, mediaListCmd} {
		c.Flags().Int64Var(&mediaTweet, "tweet", 0, "Tweet id")
	}
	for _, c := range []*cobra.Command{mediaGenerateImageCmd, mediaGenerateVideoCmd} {
		c.Flags().StringVar(&mediaAspectRatio, "aspect-ratio", "1:1", "Aspect ratio: 1:1, 9:16 or 16:9")
	}
	mediaGenerateImageCmd.Flags().StringVar(&mediaQuality, "quality", "standard", "Image quality: standard or hd")
	mediaGenerateVideoCmd.Flags().IntVar(&mediaDuration, "duration", 5, fmt.Sprintf("Length in seconds (%d-%d)", xs.MinVideoSeconds, xs.MaxVideoSeconds))

	mediaCmd.AddCommand(mediaGenerateImageCmd)
	mediaCmd.AddCommand(mediaGenerateVideoCmd)
	mediaCmd.AddCommand(mediaAttachCmd)
	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaRemoveCmd)

	rootCmd.AddCommand(mediaCmd)
}
