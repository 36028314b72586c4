package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/pkl-testcase/wo_backend/config"
	"github.com/pkl-testcase/wo_backend/ledger"
	"github.com/pkl-testcase/wo_backend/models"
	"github.com/pkl-testcase/wo_backend/utils"
	"github.com/pkl-testcase/wo_backend/workflow"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type sweepOptions struct {
	serviceNos string
	timeout    time.Duration
}

// address-sweep copies every ledger address into the matching work orders once.
// It uses the same DB_*, LEDGER_* and REDIS_* settings as the API server.
func main() {
	var opts sweepOptions
	flag.StringVar(&opts.serviceNos, "service-nos", "", "Optional: comma-separated service numbers. If empty, sweeps every service number in work_orders.")
	flag.DurationVar(&opts.timeout, "timeout", workflow.SweepLockTTL, "Upper bound for the whole run")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts, config.GetLogger(), os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code. Every deferred close runs before main exits.
func run(ctx context.Context, opts sweepOptions, logger *logrus.Logger, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseSettingsFromEnv("DB_"))
	if err != nil {
		fmt.Fprintf(stderr, "connect database: %v\n", err)
		return 1
	}
	defer config.CloseDatabase(db)

	var rdb *redis.Client
	var locker *redislock.Client
	if config.RedisConfigured() {
		rdb, locker, err = config.ConnectRedisWithRetry(ctx)
		if err != nil {
			fmt.Fprintf(stderr, "connect redis: %v\n", err)
			return 1
		}
		defer rdb.Close()
	}

	addressLedger, closeLedger, err := ledger.NewFromEnv(ctx, db, rdb, false)
	if err != nil {
		fmt.Fprintf(stderr, "ledger: %v\n", err)
		return 1
	}
	defer closeLedger()

	store := models.NewWorkOrderStore(db, models.WithQueryTimeout(config.QueryTimeout()))
	var reconcilerOpts []workflow.ReconcilerOption
	if locker != nil {
		reconcilerOpts = append(reconcilerOpts, workflow.WithSweepLocker(locker))
	}
	reconciler := workflow.NewReconciler(store, addressLedger, logger, reconcilerOpts...)

	start := time.Now()
	var updated int64
	if keys := utils.SplitAndTrim(opts.serviceNos); len(keys) > 0 {
		updated, err = reconciler.Reconcile(ctx, keys)
	} else {
		updated, err = reconciler.Sweep(ctx)
	}
	fmt.Fprintf(stdout, "address sweep: driver=%s colocated=%v updated=%d elapsed=%s\n",
		config.LedgerDriver(), reconciler.Colocated(), updated, time.Since(start).Round(time.Millisecond))
	if err != nil {
		config.LogError(logger, "address-sweep", "run", "sweep", map[string]any{"updated": updated}, err)
		return 1
	}
	return 0
}
