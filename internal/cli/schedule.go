package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sellerdesk/sellerdesk/internal/domain"
	"github.com/sellerdesk/sellerdesk/internal/repo"
	"github.com/sellerdesk/sellerdesk/internal/sweep"
)

// NewScheduleCmd создаёт группу команд для управления расписаниями.
func NewScheduleCmd(envFn func() *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage job schedules",
	}

	cmd.AddCommand(
		newScheduleListCmd(envFn),
		newScheduleCreateCmd(envFn),
		newScheduleShowCmd(envFn),
		newScheduleDeleteCmd(envFn),
		newScheduleEnableCmd(envFn),
		newScheduleDisableCmd(envFn),
	)

	return cmd
}

func newScheduleListCmd(envFn func() *Env) *cobra.Command {
	var jobType string
	var enabledOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()

			schedules, err := env.Schedules(cmd.Context())
			if err != nil {
				return err
			}

			filter := repo.ScheduleFilter{JobType: jobType, Limit: limit}
			if enabledOnly {
				t := true
				filter.Enabled = &t
			}

			list, err := schedules.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "JOB_TYPE", "CRON", "TZ", "ENABLED", "LAST_STATUS", "LAST_RUN"}
			rows := make([][]string, len(list))
			for i := range list {
				s := &list[i]
				rows[i] = []string{
					s.ID.String(), s.Name, s.JobType, s.CronExpr, s.Timezone,
					strconv.FormatBool(s.Enabled), string(s.LastRunStatus),
					formatTime(s.LastRunAt),
				}
			}

			env.out.Print(headers, rows, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&jobType, "job-type", "", "Filter by job type")
	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Only enabled schedules")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of rows")

	return cmd
}

func newScheduleCreateCmd(envFn func() *Env) *cobra.Command {
	var name string
	var shopID string
	var frequency string
	var cronExpr string
	var timezone string
	var disabled bool
	var options []string

	cmd := &cobra.Command{
		Use:   "create JOB_TYPE",
		Short: "Create a schedule for a job type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()

			info, ok := domain.LookupJobType(args[0])
			if !ok {
				return fmt.Errorf("unknown job type %q, see 'sellerdesk jobs list'", args[0])
			}

			s := &domain.Schedule{
				ID:        uuid.New(),
				Name:      name,
				JobType:   info.Type,
				Frequency: domain.Frequency(frequency),
				CronExpr:  cronExpr,
				Timezone:  timezone,
				Enabled:   !disabled,
				CreatedAt: time.Now().UTC(),
			}
			if s.Name == "" {
				s.Name = info.Name
			}
			if s.Frequency == "" {
				s.Frequency = info.DefaultFrequency
			}
			if !s.Frequency.Valid() {
				return fmt.Errorf("invalid frequency %q", frequency)
			}
			if s.CronExpr == "" {
				s.CronExpr = s.Frequency.CronExpr()
			}
			if s.CronExpr == "" {
				return fmt.Errorf("--cron is required for custom frequency")
			}
			if err := sweep.ValidateCron(s.CronExpr); err != nil {
				return err
			}

			if shopID != "" {
				id, err := uuid.Parse(shopID)
				if err != nil {
					return fmt.Errorf("invalid shop id %q: %w", shopID, err)
				}
				s.ShopID = &id
			}

			if len(options) > 0 {
				s.Options = make(map[string]any)
				for _, kv := range options {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid option format %q, expected KEY=VALUE", kv)
					}
					s.Options[parts[0]] = parts[1]
				}
			}

			schedules, err := env.Schedules(cmd.Context())
			if err != nil {
				return err
			}
			if err := schedules.Create(cmd.Context(), s); err != nil {
				return err
			}

			env.out.Success(fmt.Sprintf("Schedule created: %s", s.ID))
			env.out.Print(
				[]string{"ID", "NAME", "JOB_TYPE", "FREQUENCY", "CRON", "TZ", "ENABLED"},
				[][]string{{
					s.ID.String(), s.Name, s.JobType, string(s.Frequency),
					s.CronExpr, s.Timezone, strconv.FormatBool(s.Enabled),
				}},
				s,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Schedule name (default: job type name)")
	cmd.Flags().StringVar(&shopID, "shop", "", "Target shop ID (default: all shops)")
	cmd.Flags().StringVar(&frequency, "frequency", "", "Cadence: every_minute, hourly, daily, weekly, custom")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (e.g. '*/5 * * * *')")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for the cron expression")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	cmd.Flags().StringSliceVar(&options, "option", nil, "Job options as KEY=VALUE (repeatable)")

	return cmd
}

func newScheduleShowCmd(envFn func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details and run state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
			}

			schedules, err := env.Schedules(cmd.Context())
			if err != nil {
				return err
			}

			s, err := schedules.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			shop := "-"
			if s.ShopID != nil {
				shop = s.ShopID.String()
			}

			env.out.Print(
				[]string{"ID", "NAME", "JOB_TYPE", "SHOP", "CRON", "TZ", "ENABLED", "LAST_STATUS", "LAST_RUN", "LAST_ENDED", "MESSAGE"},
				[][]string{{
					s.ID.String(), s.Name, s.JobType, shop, s.CronExpr, s.Timezone,
					strconv.FormatBool(s.Enabled), string(s.LastRunStatus),
					formatTime(s.LastRunAt), formatTime(s.LastRunEndedAt), s.LastRunMessage,
				}},
				s,
			)
			return nil
		},
	}
}

func newScheduleDeleteCmd(envFn func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env := envFn()
			defer env.Close()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
			}

			schedules, err := env.Schedules(cmd.Context())
			if err != nil {
				return err
			}
			if err := schedules.Delete(cmd.Context(), id); err != nil {
				return err
			}

			env.out.Success(fmt.Sprintf("Schedule deleted: %s", id))
			return nil
		},
	}
}

func newScheduleEnableCmd(envFn func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "enable ID",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE:  setEnabledRunE(envFn, true, "Schedule enabled"),
	}
}

func newScheduleDisableCmd(envFn func() *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "disable ID",
		Short: "Disable a schedule (queued job still finishes)",
		Args:  cobra.ExactArgs(1),
		RunE:  setEnabledRunE(envFn, false, "Schedule disabled"),
	}
}

func setEnabledRunE(envFn func() *Env, enabled bool, msg string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		env := envFn()
		defer env.Close()

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid schedule id %q: %w", args[0], err)
		}

		schedules, err := env.Schedules(cmd.Context())
		if err != nil {
			return err
		}
		if err := schedules.SetEnabled(cmd.Context(), id, enabled); err != nil {
			return err
		}

		env.out.Success(fmt.Sprintf("%s: %s", msg, id))
		return nil
	}
}
