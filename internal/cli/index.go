package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reclaim-app/reclaim/internal/app"
)

var similarK int

// indexCmd groups the similar-item index commands
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Maintain and query the similar-item index",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Clear the index and reload every item with an image embedding",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			n, err := a.Matching.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "✓ indexed %d items (%s backend)\n", n, a.Config.Index.Backend)
			return nil
		})
	},
}

var indexSimilarCmd = &cobra.Command{
	Use:   "similar <item-id>",
	Short: "List items whose images look like this item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			hits, err := a.Matching.SimilarItems(ctx, args[0], similarK)
			if err != nil {
				return err
			}
			return printJSON(hits)
		})
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexRebuildCmd, indexSimilarCmd)
	indexSimilarCmd.Flags().IntVar(&similarK, "k", 0, "number of results (default matching.similar_results)")
}
