package cli

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/reclaim-app/reclaim/internal/app"
	"github.com/reclaim-app/reclaim/internal/model"
	"github.com/reclaim-app/reclaim/internal/worker"
)

var (
	assessFile        string
	assessConcurrency int
)

// claimsCmd groups the claim scoring commands
var claimsCmd = &cobra.Command{
	Use:   "claims",
	Short: "Score ownership claims and resolve competing ones",
}

var claimsAssessCmd = &cobra.Command{
	Use:   "assess [claim-id...]",
	Short: "Score claims for fraud risk",
	Long: `Assess evaluates each claim, records its confidence and fraud risk, and
leaves its status unchanged.

Example:
  reclaim claims assess c-1001
  reclaim claims assess --file claim-ids.txt --concurrency 8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := args
		if assessFile != "" {
			fromFile, err := worker.ReadIDsFromFile(assessFile)
			if err != nil {
				return err
			}
			ids = append(ids, fromFile...)
		}
		if len(ids) == 0 {
			return fmt.Errorf("no claim ids given (pass ids or --file)")
		}

		return withApp(func(ctx context.Context, a *app.App) error {
			if len(ids) == 1 {
				ev, err := a.Evaluator.Assess(ctx, ids[0])
				if err != nil {
					return err
				}
				return printJSON(ev)
			}

			var mu sync.Mutex
			evals := make(map[string]*model.ClaimEvaluation, len(ids))
			results, summary := worker.NewBatchProcessor(assessConcurrency).Process(ctx, ids, func(ctx context.Context, id string) error {
				ev, err := a.Evaluator.Assess(ctx, id)
				if err != nil {
					return err
				}
				mu.Lock()
				evals[id] = ev
				mu.Unlock()
				return nil
			})
			for _, r := range results {
				if r.Err != nil {
					fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.ID, r.Err)
				}
			}
			fmt.Fprintf(os.Stderr, "✓ assessed %d of %d claims\n", summary.Succeeded, summary.Processed)
			return printJSON(map[string]any{"summary": summary, "evaluations": evals})
		})
	},
}

var claimsPreviewCmd = &cobra.Command{
	Use:   "preview <item-id>",
	Short: "Rank the open claims on an item without changing anything",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Resolver.Preview(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(res)
		})
	},
}

var claimsResolveCmd = &cobra.Command{
	Use:   "resolve <item-id>",
	Short: "Resolve the open claims on an item",
	Long: `Resolve auto-awards the item when the winning claim is confident enough and
clearly ahead; otherwise competing claims are marked for manual review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			res, err := a.Resolver.Process(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "%s\n", res.Reason)
			return printJSON(res)
		})
	},
}

var claimsProcessAllCmd = &cobra.Command{
	Use:   "process-all",
	Short: "Resolve every item with open claims",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			summary, err := a.Resolver.ProcessAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ %d items: %d resolved, %d need review, %d errors\n",
				summary.Processed, summary.Resolved, summary.NeedsReview, summary.Errors)
			return printJSON(summary)
		})
	},
}

func init() {
	rootCmd.AddCommand(claimsCmd)
	claimsCmd.AddCommand(claimsAssessCmd, claimsPreviewCmd, claimsResolveCmd, claimsProcessAllCmd)

	claimsAssessCmd.Flags().StringVar(&assessFile, "file", "", "file with one claim id per line (# comments allowed)")
	claimsAssessCmd.Flags().IntVar(&assessConcurrency, "concurrency", 4, "number of concurrent workers")
}
