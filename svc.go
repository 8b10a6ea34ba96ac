package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v3"

	"github.com/TxnLab/stakeplan/internal/lib/misc"
)

func GetDaemonCmdOpts() *cli.Command {
	return &cli.Command{
		Name:    "daemon",
		Aliases: []string{"d"},
		Usage:   "Run as a daemon - refreshing the catalog on a schedule and serving /metrics and /plan",
		Action:  runAsDaemon,
		Flags: []cli.Flag{
			catalogFlag(),
		},
	}
}

func runAsDaemon(_ context.Context, command *cli.Command) error {
	var wg sync.WaitGroup

	referenceAmount, err := App.cfg.ReferenceAmount()
	if err != nil {
		return err
	}
	rec, err := App.getRecorder()
	if err != nil {
		return err
	}
	provider, source := getProvider(command)
	misc.Infof(App.logger, "network:%s, catalog from:%s", App.network.Name, source)

	// Create channel used by both the signal handler and server goroutines
	// to notify the main goroutine when to stop the server.
	errc := make(chan error, 2)

	// Setup interrupt handler. This optional step configures the process so
	// that SIGINT and SIGTERM signals cause the services to stop gracefully.
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	daemon := newDaemon(App.logger, provider, App.policy, App.network.Name, referenceAmount, rec, App.cfg.Daemon.RefreshCron)
	if err := daemon.start(ctx, &wg); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/plan", daemon)
	srv := &http.Server{Addr: App.cfg.Daemon.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		misc.Infof(App.logger, "serving metrics on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	misc.Infof(App.logger, "exiting (%v)", <-errc) // wait for termination signal

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		misc.Warnf(App.logger, "metrics server shutdown: %v", err)
	}

	// Send cancellation signal to the goroutines.
	cancel()
	misc.Infof(App.logger, "waiting on background tasks..")
	wg.Wait()

	misc.Infof(App.logger, "exited")
	return nil
}
