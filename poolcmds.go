package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
	"github.com/TxnLab/stakeplan/internal/lib/catalog"
	"github.com/TxnLab/stakeplan/internal/lib/misc"
	"github.com/TxnLab/stakeplan/internal/lib/zrx"
)

func GetPoolCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "pools",
		Aliases: []string{"pool"},
		Usage:   "Inspect the staking pool catalog",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "List pools, best first, with the score they're ranked by",
				Action:  PoolsList,
				Flags: []cli.Flag{
					catalogFlag(),
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Show ALL pools, not just those eligible for new stake",
						Value: false,
					},
				},
			},
			{
				Name:      "save",
				Usage:     "Save a snapshot of the staking backend catalog for later use w/ --catalog",
				ArgsUsage: "<file>",
				Action:    PoolsSave,
			},
			{
				Name:      "show",
				Aliases:   []string{"s"},
				Usage:     "Show a single pool as reported by the staking backend",
				ArgsUsage: "<pool id>",
				Action:    PoolShow,
			},
		},
	}
}

func PoolsList(ctx context.Context, command *cli.Command) error {
	provider, _ := getProvider(command)
	pools, err := provider.StakingPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to load staking pools: %w", err)
	}
	ranked, err := App.policy.Rank(pools)
	if err != nil {
		return err
	}
	renderPoolList(os.Stdout, ranked, command.Bool("all"))
	return nil
}

func renderPoolList(out io.Writer, ranked []allocation.RankedPool, all bool) {
	sb := new(strings.Builder)
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Rank\tPool\tName\tOperator Share\tCurrent Stake\tNext Epoch Stake\t7d Fees (ETH)\tScore\t")
	var shown int
	for i, rp := range ranked {
		if !all && !rp.Eligible() {
			continue
		}
		shown++
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s%%\t%s\t%s\t%s\t%s\t\n", i+1, rp.Pool.PoolID, rp.Pool.DisplayName(),
			rp.Pool.OperatorShare.Shift(2).String(), zrx.FormattedZrxAmount(rp.Pool.CurrentZrxStaked),
			zrx.FormattedZrxAmount(rp.Pool.NextEpochZrxStaked), rp.Pool.SevenDayFeesGeneratedInEth.String(), rp.Score.String())
	}
	tw.Flush()
	fmt.Fprint(out, sb.String())
	if hidden := len(ranked) - shown; hidden > 0 {
		fmt.Fprintf(out, "(%d ineligible pools hidden - use --all to show)\n", hidden)
	}
}

func PoolsSave(ctx context.Context, command *cli.Command) error {
	path := command.Args().First()
	if path == "" {
		return cli.Exit("file to save to must be specified", 1)
	}
	records, err := App.backend.FetchPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch staking pools: %w", err)
	}
	if err := catalog.SaveFile(path, records); err != nil {
		return err
	}
	misc.Infof(App.logger, "saved %d pools to %s", len(records), path)
	return nil
}

func PoolShow(ctx context.Context, command *cli.Command) error {
	poolID := command.Args().First()
	if poolID == "" {
		return cli.Exit("pool id must be specified", 1)
	}
	rec, err := App.backend.FetchPool(ctx, poolID)
	if err != nil {
		return err
	}
	fmt.Print(formatPool(rec))
	return nil
}

func formatPool(rec catalog.PoolWithStats) string {
	var (
		out  strings.Builder
		pool = rec.StakingPool()
	)
	fmt.Fprintf(&out, "Pool: %s (%s)\n", pool.PoolID, pool.DisplayName())
	if poolHash, err := zrx.PoolIDToBytes32(pool.PoolID); err == nil {
		fmt.Fprintf(&out, "Pool ID (bytes32): %s\n", poolHash.Hex())
	}
	fmt.Fprintf(&out, "Operator: %s\n", pool.OperatorAddress)
	if rec.MetaData.WebsiteURL != "" {
		fmt.Fprintf(&out, "Website: %s\n", rec.MetaData.WebsiteURL)
	}
	if rec.MetaData.Location != "" {
		fmt.Fprintf(&out, "Location: %s\n", rec.MetaData.Location)
	}
	fmt.Fprintf(&out, "Verified: %t\n", rec.MetaData.IsVerified)
	fmt.Fprintf(&out, "Created: block %d, tx %s\n", rec.CreatedAt.BlockNumber, rec.CreatedAt.TxHash)
	fmt.Fprintf(&out, "Operator Share: %s%% (next epoch %s%%)\n", pool.OperatorShare.Shift(2), rec.NextEpochStats.OperatorShare.Shift(2))
	fmt.Fprintf(&out, "Current Stake: %s ZRX\n", zrx.FormattedZrxAmount(pool.CurrentZrxStaked))
	fmt.Fprintf(&out, "Next Epoch Stake: %s ZRX\n", zrx.FormattedZrxAmount(pool.NextEpochZrxStaked))
	fmt.Fprintf(&out, "Fees (7 days): %s ETH\n", pool.SevenDayFeesGeneratedInEth)
	fmt.Fprintf(&out, "Makers: %d\n", len(rec.CurrentEpochStats.MakerAddresses))
	return out.String()
}
