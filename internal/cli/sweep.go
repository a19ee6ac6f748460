package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sellerdesk/sellerdesk/internal/sweep"
)

// NewTickCmd создаёт команду ручного прохода планировщика.
//
// Полезна для отладки и разовых прогонов: тот же Sweeper, что
// в сервисе, под той же блокировкой — столкнуться с работающим
// планировщиком невозможно.
func NewTickCmd(envFn func() *Env) *cobra.Command {
	var jobType string

	cmd := &cobra.Command{
		Use:   "tick",
		Short: "Run one scheduler sweep manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()
			ctx := cmd.Context()

			schedules, err := env.Schedules(ctx)
			if err != nil {
				return err
			}
			router, err := env.Router(ctx)
			if err != nil {
				return err
			}
			guard, err := env.Guard()
			if err != nil {
				return err
			}

			sweeper := sweep.New(sweep.Config{
				Store:  schedules,
				Router: router,
				Rearm:  env.cfg.RearmInterval,
				Batch:  env.cfg.SchedBatch,
				Logger: env.logger,
			})

			var dispatched int
			ran, err := guard.WithLock(ctx, sweep.LockKindSweep, func(ctx context.Context) error {
				n, err := sweeper.Tick(ctx, jobType)
				dispatched = n
				return err
			})
			if err != nil {
				return err
			}
			if !ran {
				return fmt.Errorf("a sweep is already running elsewhere")
			}

			env.out.Success(fmt.Sprintf("Dispatched %d schedule(s)", dispatched))
			env.out.Print(
				[]string{"DISPATCHED"},
				[][]string{{fmt.Sprint(dispatched)}},
				map[string]int{"dispatched": dispatched},
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobType, "job-type", "", "Sweep only schedules of this job type")

	return cmd
}

// NewRetrySweepCmd создаёт команду ручного перевзвода зависших
// элементов работы.
func NewRetrySweepCmd(envFn func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-sweep",
		Short: "Requeue stale work items manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()
			ctx := cmd.Context()

			items, err := env.WorkItems(ctx)
			if err != nil {
				return err
			}
			schedules, err := env.Schedules(ctx)
			if err != nil {
				return err
			}
			router, err := env.Router(ctx)
			if err != nil {
				return err
			}
			guard, err := env.Guard()
			if err != nil {
				return err
			}

			retry := sweep.NewRetrySweeper(sweep.RetryConfig{
				Store:     items,
				Schedules: schedules,
				Router:    router,
				Guard:     guard,
				Lookback:  env.cfg.RetryLookback,
				MinAge:    env.cfg.RetryMinAge,
				Batch:     env.cfg.RetryBatch,
				Logger:    env.logger,
			})

			var requeued int
			ran, err := guard.WithLock(ctx, sweep.LockKindRetry, func(ctx context.Context) error {
				n, err := retry.Run(ctx)
				requeued = n
				return err
			})
			if err != nil {
				return err
			}
			if !ran {
				return fmt.Errorf("a retry sweep is already running elsewhere")
			}

			env.out.Success(fmt.Sprintf("Requeued %d work item(s)", requeued))
			env.out.Print(
				[]string{"REQUEUED"},
				[][]string{{fmt.Sprint(requeued)}},
				map[string]int{"requeued": requeued},
			)
			return nil
		},
	}
}
