package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakeplan/internal/lib/recorder"
)

func GetHistoryCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"h"},
		Usage:   "Show recently computed plans (requires database.sqlite_path in the config)",
		Action:  HistoryList,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of plans to show",
				Value: 10,
			},
		},
	}
}

func HistoryList(ctx context.Context, command *cli.Command) error {
	if App.cfg.Database.SQLitePath == "" {
		return cli.Exit("plan history isn't enabled - set database.sqlite_path in the config", 1)
	}
	rec, err := App.getRecorder()
	if err != nil {
		return err
	}
	plans, err := rec.RecentPlans(ctx, int(command.Int("limit")))
	if err != nil {
		return fmt.Errorf("failed to read plan history: %w", err)
	}
	renderHistory(os.Stdout, plans)
	return nil
}

func renderHistory(out io.Writer, plans []recorder.PlanRecord) {
	if len(plans) == 0 {
		fmt.Fprintln(out, "No plans recorded")
		return
	}
	for _, plan := range plans {
		fmt.Fprintf(out, "Plan %d: %s ZRX on %s at %s (from %s)\n", plan.ID, plan.Effective.StringFixed(2), plan.Network,
			plan.CreatedAt.Format(time.RFC3339), plan.Source)
		sb := new(strings.Builder)
		tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', tabwriter.AlignRight)
		for _, entry := range plan.Entries {
			fmt.Fprintf(tw, "\t%s\t%s\t%s\t\n", entry.PoolID, entry.PoolName, entry.ZrxAmount.StringFixed(2))
		}
		tw.Flush()
		fmt.Fprint(out, sb.String())
	}
}
