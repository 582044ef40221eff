package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reclaim-app/reclaim/internal/app"
)

var (
	matchDryRun   bool
	reviewAccept  bool
	reviewReject  bool
	reviewFoundID string
	enrichImage   string
)

// matchCmd groups the lost/found matching commands
var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Pair lost reports with found reports",
}

var matchRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Match every open lost report against open found reports",
	Long: `Run scores every open lost report against the open found reports in its
category and records the best pair when it clears matching.min_match_score.
Re-running is safe; previous best matches are overwritten.

Example:
  reclaim match run
  reclaim match run --timeout 30m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			summary, err := a.Matching.MatchAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ %d lost reports, %d matched, %d errors\n",
				summary.Processed, summary.MatchedPairs, summary.Errors)
			return printJSON(summary)
		})
	},
}

var matchItemCmd = &cobra.Command{
	Use:   "item <lost-id>",
	Short: "Find the best found item for one lost report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			find := a.Matching.MatchItem
			if matchDryRun {
				find = a.Matching.FindBestMatch
			}
			sug, err := find(ctx, args[0])
			if err != nil {
				return err
			}
			if sug == nil {
				fmt.Fprintf(os.Stderr, "No candidate reached the minimum score of %d\n", a.Config.Matching.MinMatchScore)
				return nil
			}
			return printJSON(sug)
		})
	},
}

var matchPreviewCmd = &cobra.Command{
	Use:   "preview <lost-id> <found-id>",
	Short: "Score one lost/found pair with an explanation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			ps, err := a.Matching.Preview(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(ps)
		})
	},
}

var matchReviewCmd = &cobra.Command{
	Use:   "review <match-id>",
	Short: "Record an administrator decision on a suggested match",
	Long: `Review marks a suggested match as accepted or rejected. Pass --found when the
administrator returned a different found item than the one suggested.

Example:
  reclaim match review 3f0c... --accept
  reclaim match review 3f0c... --reject --found F-1042`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if reviewAccept == reviewReject {
			return fmt.Errorf("exactly one of --accept or --reject is required")
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			rec, err := a.Matching.ReviewMatch(ctx, args[0], reviewAccept, reviewFoundID)
			if err != nil {
				return err
			}
			return printJSON(rec)
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich <item-id>",
	Short: "Run object detection and embeddings for one item",
	Long: `Enrich fetches the item image, runs every configured detector, computes the
image and text embeddings and stores them on the item. Unavailable models are
skipped and reported as degraded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Enricher.Enrich(ctx, args[0], enrichImage)
			if err != nil {
				return err
			}
			if len(res.Degraded) > 0 {
				fmt.Fprintf(os.Stderr, "⚠ degraded: %v\n", res.Degraded)
			}
			return printJSON(res)
		})
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(enrichCmd)
	matchCmd.AddCommand(matchRunCmd, matchItemCmd, matchPreviewCmd, matchReviewCmd)

	matchItemCmd.Flags().BoolVar(&matchDryRun, "dry-run", false, "report the best match without recording it")
	matchReviewCmd.Flags().BoolVar(&reviewAccept, "accept", false, "accept the suggestion")
	matchReviewCmd.Flags().BoolVar(&reviewReject, "reject", false, "reject the suggestion")
	matchReviewCmd.Flags().StringVar(&reviewFoundID, "found", "", "found item actually returned, when different")
	enrichCmd.Flags().StringVar(&enrichImage, "image-url", "", "image to analyse (omit for text-only reports)")
}
