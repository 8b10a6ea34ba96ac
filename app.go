package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakeplan/internal/config"
	"github.com/TxnLab/stakeplan/internal/lib/allocation"
	"github.com/TxnLab/stakeplan/internal/lib/catalog"
	"github.com/TxnLab/stakeplan/internal/lib/misc"
	"github.com/TxnLab/stakeplan/internal/lib/recorder"
	"github.com/TxnLab/stakeplan/internal/lib/zrx"
)

var logLevel = new(slog.LevelVar) // Info by default

func initApp() *StakePlanApp {
	log.SetFlags(0)
	logger := misc.NewLogger(os.Stdout, logLevel)
	slog.SetDefault(logger)
	if os.Getenv("DEBUG") == "1" {
		logLevel.Set(slog.LevelDebug)
	}

	misc.LoadEnvSettings(logger)

	// We initialize our wrapper instance first, so we can call its methods in the 'Before' lambda func
	// in initialization of cli App instance.
	appConfig := &StakePlanApp{logger: logger}

	appConfig.cliCmd = &cli.Command{
		Name:    "stakeplan",
		Usage:   "Plan how to spread ZRX stake across 0x staking pools",
		Version: misc.GetVersionInfo(),
		Before: func(ctx context.Context, cmd *cli.Command) error {
			// Further bootstrap of the 'app' but within context of 'cli' as it will have access to
			// flags (network to use for eg) already set.
			return appConfig.initClients(ctx, cmd)
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			return appConfig.close()
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "envfile",
				Usage:   "env file to load",
				Sources: cli.EnvVars("STAKEPLAN_ENVFILE"),
				Aliases: []string{"e"},
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network to plan for (mainnet, kovan, local). Overrides the config file",
				Aliases: []string{"n"},
				Sources: cli.EnvVars("ZRX_NETWORK"),
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file (allocation policy, daemon schedule, plan history)",
				Value:   "stakeplan.yaml",
				Aliases: []string{"c"},
				Sources: cli.EnvVars("STAKEPLAN_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Staking backend url. Overrides the config file and network default",
			},
		},
		Commands: []*cli.Command{
			GetPlanCmdOpts(),
			GetPoolCmdOpts(),
			GetHistoryCmdOpts(),
			GetDaemonCmdOpts(),
		},
	}
	return appConfig
}

type StakePlanApp struct {
	cliCmd  *cli.Command
	logger  *slog.Logger
	cfg     *config.Config
	network zrx.Network
	policy  allocation.Policy
	backend *catalog.Client
	// set once plan history is first needed - see getRecorder
	recorder recorder.Recorder
}

// initClients loads configuration (env files, yaml config, network defaults) and initializes the
// staking backend client.
func (ac *StakePlanApp) initClients(ctx context.Context, cmd *cli.Command) error {
	if envfile := cmd.String("envfile"); envfile != "" {
		err := loadNamedEnvFile(ctx, envfile)
		if err != nil {
			return err
		}
	}
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if network := cmd.String("network"); network != "" {
		cfg.Network = network
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Now load .env.{network} overrides - ie: .env.kovan w/ contract addresses for a fork
	misc.LoadEnvForNetwork(ac.logger, cfg.Network)

	network, err := zrx.GetNetwork(cfg.Network)
	if err != nil {
		return err
	}
	switch {
	case cmd.String("backend") != "":
		network.BackendURL = cmd.String("backend")
	case cfg.BackendURL != "":
		network.BackendURL = cfg.BackendURL
	}
	misc.Debugf(ac.logger, "network config: %s", network)

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}
	backend, err := catalog.NewClient(ac.logger, catalog.ClientConfig{
		BaseURL: network.BackendURL,
		APIKey:  network.BackendAPIKey,
	})
	if err != nil {
		return err
	}

	ac.cfg = cfg
	ac.network = network
	ac.policy = policy
	ac.backend = backend
	return nil
}

// getRecorder returns the plan history store - sqlite if a database path is configured, otherwise
// a no-op recorder.
func (ac *StakePlanApp) getRecorder() (recorder.Recorder, error) {
	if ac.recorder != nil {
		return ac.recorder, nil
	}
	if ac.cfg == nil || ac.cfg.Database.SQLitePath == "" {
		ac.recorder = recorder.NewNoopRecorder()
		return ac.recorder, nil
	}
	rec, err := recorder.NewSQLiteRecorder(ac.logger, ac.cfg.Database.SQLitePath)
	if err != nil {
		return nil, err
	}
	ac.recorder = rec
	return rec, nil
}

func (ac *StakePlanApp) close() error {
	if ac.recorder == nil {
		return nil
	}
	return ac.recorder.Close()
}

func loadNamedEnvFile(ctx context.Context, envFile string) error {
	misc.Infof(App.logger, "loading env file:%s", envFile)
	return godotenv.Load(envFile)
}
