package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/manifoldco/promptui"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/TxnLab/stakeplan/internal/lib/allocation"
	"github.com/TxnLab/stakeplan/internal/lib/catalog"
	"github.com/TxnLab/stakeplan/internal/lib/misc"
	"github.com/TxnLab/stakeplan/internal/lib/recorder"
	"github.com/TxnLab/stakeplan/internal/lib/zrx"
)

func GetPlanCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "plan",
		Aliases: []string{"p"},
		Usage:   "Compute how an amount of ZRX should be spread across staking pools",
		Action:  PlanCompute,
		Flags: []cli.Flag{
			catalogFlag(),
			&cli.StringFlag{
				Name:    "amount",
				Usage:   "Amount of ZRX to stake, ie: 177.77 - anything past cents is dropped. Prompted for if not set",
				Aliases: []string{"a"},
			},
			&cli.StringSliceFlag{
				Name:  "pool",
				Usage: "Only consider these pool ids (repeatable)",
			},
			&cli.IntFlag{
				Name:  "max-pools",
				Usage: "Spread stake over at most this many pools (0 = no limit). Overrides the config file",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output the plan as json",
			},
			&cli.BoolFlag{
				Name:  "batch",
				Usage: "Also output the staking proxy batchExecute calldata which would carry out the plan",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Usage:   "Don't ask for confirmation",
				Aliases: []string{"y"},
			},
		},
	}
}

func catalogFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "catalog",
		Usage: "Read pools from this json file instead of the staking backend",
	}
}

// getProvider returns the catalog source the command should use - a json file if --catalog is set,
// otherwise the staking backend.
func getProvider(command *cli.Command) (catalog.Provider, string) {
	if path := command.String("catalog"); path != "" {
		return catalog.FileProvider{Path: path}, path
	}
	return App.backend, App.network.BackendURL
}

func loadPools(ctx context.Context, command *cli.Command) ([]allocation.StakingPool, string, error) {
	provider, source := getProvider(command)
	poolIDs := command.StringSlice("pool")
	if backend, ok := provider.(*catalog.Client); ok && len(poolIDs) > 0 {
		// no need to pull the whole catalog
		pools, err := backend.FetchPoolsByID(ctx, poolIDs)
		return pools, source, err
	}
	pools, err := provider.StakingPools(ctx)
	if err != nil {
		return nil, source, err
	}
	if len(poolIDs) > 0 {
		pools, err = catalog.Select(pools, poolIDs)
	}
	return pools, source, err
}

func PlanCompute(ctx context.Context, command *cli.Command) error {
	requested, err := getAmount(command.String("amount"))
	if err != nil {
		return err
	}
	pools, source, err := loadPools(ctx, command)
	if err != nil {
		return fmt.Errorf("failed to load staking pools: %w", err)
	}
	policy := App.policy
	if command.IsSet("max-pools") {
		policy.MaxPools = int(command.Int("max-pools"))
	}

	report, err := computePlan(policy, App.network.Name, requested, pools)
	if err != nil {
		return cli.Exit(err, 1)
	}
	misc.Debugf(App.logger, "plan for %s ZRX over %d pools from %s", report.Effective, len(report.Entries), source)

	if command.Bool("batch") && len(report.Plan) > 0 {
		if !command.Bool("yes") && term.IsTerminal(int(os.Stdin.Fd())) {
			if _, err := yesNo(fmt.Sprintf("Encode staking calls to move %s ZRX into %d pools", zrx.FormattedZrxAmount(report.Effective), len(report.Entries))); err != nil {
				return errors.New("cancelled")
			}
		}
		report.Batch, err = zrx.BuildStakeBatch(App.network, report.Plan)
		if err != nil {
			return fmt.Errorf("failed to build stake batch: %w", err)
		}
	}

	if command.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report.toJSON()); err != nil {
			return err
		}
	} else {
		renderPlan(os.Stdout, report)
	}

	rec, err := App.getRecorder()
	if err != nil {
		return err
	}
	if len(report.Plan) > 0 {
		planRecord := report.toRecord(source)
		if err := rec.RecordPlan(ctx, planRecord); err != nil {
			misc.Warnf(App.logger, "unable to record plan: %v", err)
		} else if planRecord.ID != 0 {
			misc.Debugf(App.logger, "recorded plan id:%d", planRecord.ID)
		}
	}
	return nil
}

func getAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		var err error
		amount, err = (&promptui.Prompt{
			Label:    "Amount of ZRX to stake",
			Validate: func(input string) error { _, err := parseAmount(input); return err },
		}).Run()
		if err != nil {
			return decimal.Zero, err
		}
	}
	return parseAmount(amount)
}

func parseAmount(amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative: %s", amount)
	}
	return value, nil
}

type planReport struct {
	Network   string
	Requested decimal.Decimal
	Effective decimal.Decimal
	Plan      []allocation.AllocationEntry
	// parallel to Plan
	Entries []planReportEntry
	Batch   *zrx.StakeBatch
}

type planReportEntry struct {
	Rank  int
	Score decimal.Decimal
}

// computePlan runs the allocation and pairs each entry w/ the score and rank it got.
func computePlan(policy allocation.Policy, network string, requested decimal.Decimal, pools []allocation.StakingPool) (*planReport, error) {
	plan, err := policy.Allocate(requested, pools)
	if err != nil {
		return nil, err
	}
	report := &planReport{
		Network:   network,
		Requested: requested,
		Effective: allocation.EffectiveAmount(requested),
		Plan:      plan,
	}
	if len(plan) == 0 {
		return report, nil
	}
	ranked, err := policy.Rank(pools)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]planReportEntry, len(ranked))
	for i, rp := range ranked {
		byID[rp.Pool.PoolID] = planReportEntry{Rank: i + 1, Score: rp.Score}
	}
	for _, entry := range plan {
		report.Entries = append(report.Entries, byID[entry.Pool.PoolID])
	}
	return report, nil
}

func renderPlan(out io.Writer, report *planReport) {
	if len(report.Plan) == 0 {
		fmt.Fprintln(out, "Nothing to stake")
		return
	}
	sb := new(strings.Builder)
	tw := tabwriter.NewWriter(sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Rank\tPool\tName\tOperator Share\tCurrent Stake\tScore\tAllocation\t")
	for i, entry := range report.Plan {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s%%\t%s\t%s\t%s\t\n", report.Entries[i].Rank, entry.Pool.PoolID, entry.Pool.DisplayName(),
			entry.Pool.OperatorShare.Shift(2).String(), zrx.FormattedZrxAmount(entry.Pool.CurrentZrxStaked),
			report.Entries[i].Score.String(), entry.ZrxAmount.StringFixed(2))
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t\t\t%s\t\n", allocation.Total(report.Plan).StringFixed(2))
	tw.Flush()
	fmt.Fprint(out, sb.String())

	if report.Batch != nil {
		renderBatch(out, report.Batch)
	}
}

func renderBatch(out io.Writer, batch *zrx.StakeBatch) {
	fmt.Fprintf(out, "\nStaking proxy: %s\n", batch.To.Hex())
	fmt.Fprintf(out, "stake %s ZRX (%s base units)\n", zrx.FormattedZrxAmount(zrx.FromBaseUnits(batch.Total, zrx.Decimals)), batch.Total.Dec())
	for _, move := range batch.Moves {
		fmt.Fprintf(out, "moveStake undelegated -> pool %s (%s): %s ZRX\n", move.PoolID, move.PoolHash.Hex(),
			zrx.FormattedZrxAmount(zrx.FromBaseUnits(move.ZrxAmount, zrx.Decimals)))
	}
	fmt.Fprintf(out, "batchExecute calldata:\n%s\n", batch.CalldataHex())
}

type planJSON struct {
	Network   string          `json:"network"`
	Requested decimal.Decimal `json:"requested"`
	Effective decimal.Decimal `json:"effective"`
	Entries   []planEntryJSON `json:"entries"`
	Batch     *batchJSON      `json:"batch,omitempty"`
}

type planEntryJSON struct {
	PoolID    string          `json:"poolId"`
	Name      string          `json:"name"`
	Rank      int             `json:"rank"`
	Score     decimal.Decimal `json:"score"`
	ZrxAmount decimal.Decimal `json:"zrxAmount"`
}

type batchJSON struct {
	To             string `json:"to"`
	TotalBaseUnits string `json:"totalBaseUnits"`
	Calldata       string `json:"calldata"`
}

func (r *planReport) toJSON() planJSON {
	out := planJSON{
		Network:   r.Network,
		Requested: r.Requested,
		Effective: r.Effective,
		Entries:   make([]planEntryJSON, 0, len(r.Plan)),
	}
	for i, entry := range r.Plan {
		out.Entries = append(out.Entries, planEntryJSON{
			PoolID:    entry.Pool.PoolID,
			Name:      entry.Pool.DisplayName(),
			Rank:      r.Entries[i].Rank,
			Score:     r.Entries[i].Score,
			ZrxAmount: entry.ZrxAmount,
		})
	}
	if r.Batch != nil {
		out.Batch = &batchJSON{
			To:             r.Batch.To.Hex(),
			TotalBaseUnits: r.Batch.Total.Dec(),
			Calldata:       r.Batch.CalldataHex(),
		}
	}
	return out
}

func (r *planReport) toRecord(source string) *recorder.PlanRecord {
	rec := &recorder.PlanRecord{
		Source:    source,
		Network:   r.Network,
		Requested: r.Requested,
		Effective: r.Effective,
	}
	for i, entry := range r.Plan {
		rec.Entries = append(rec.Entries, recorder.PlanEntry{
			PoolID:    entry.Pool.PoolID,
			PoolName:  entry.Pool.DisplayName(),
			Score:     r.Entries[i].Score,
			ZrxAmount: entry.ZrxAmount,
		})
	}
	return rec
}

func yesNo(prompt string) (string, error) {
	return (&promptui.Prompt{
		Label:     prompt,
		IsConfirm: true,
	}).Run()
}
