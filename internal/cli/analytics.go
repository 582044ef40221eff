package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/reclaim-app/reclaim/internal/analytics"
	"github.com/reclaim-app/reclaim/internal/app"
)

var (
	analyticsDays int
	analyticsFrom string
	analyticsTo   string
)

// analyticsCmd prints one admin report
var analyticsCmd = &cobra.Command{
	Use:   "analytics <report>",
	Short: "Print an analytics report",
	Long: `Analytics rolls up recorded match and claim outcomes.

Reports: ` + strings.Join(analytics.Reports, ", ") + `

Example:
  reclaim analytics overview --days 7
  reclaim analytics thresholds --from 2024-01-01T00:00:00Z --to 2024-04-01T00:00:00Z`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: analytics.Reports,
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := analyticsWindow(time.Now())
		if err != nil {
			return err
		}
		return withApp(func(ctx context.Context, a *app.App) error {
			out, err := a.Analytics.Report(ctx, args[0], win)
			if err != nil {
				return err
			}
			return printJSON(out)
		})
	},
}

func analyticsWindow(now time.Time) (analytics.Window, error) {
	if analyticsFrom == "" && analyticsTo == "" {
		return analytics.LastDays(now, analyticsDays), nil
	}
	win := analytics.Window{To: now}
	var err error
	if analyticsFrom != "" {
		if win.From, err = time.Parse(time.RFC3339, analyticsFrom); err != nil {
			return win, fmt.Errorf("--from: %w", err)
		}
	}
	if analyticsTo != "" {
		if win.To, err = time.Parse(time.RFC3339, analyticsTo); err != nil {
			return win, fmt.Errorf("--to: %w", err)
		}
	}
	return win, nil
}

func init() {
	rootCmd.AddCommand(analyticsCmd)
	analyticsCmd.Flags().IntVar(&analyticsDays, "days", 30, "report on the last N days")
	analyticsCmd.Flags().StringVar(&analyticsFrom, "from", "", "window start (RFC 3339, overrides --days)")
	analyticsCmd.Flags().StringVar(&analyticsTo, "to", "", "window end (RFC 3339, default now)")
}
